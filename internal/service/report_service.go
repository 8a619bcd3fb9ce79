package service

import (
	"context"
	"strconv"
	"strings"

	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/export"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type rangeLister interface {
	Ranges(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
}

type tabularExporter interface {
	Render(data export.Dataset) ([]byte, error)
	ContentType() string
	Extension() string
}

var availabilityReportHeaders = []string{"Start", "End (exclusive)", "Nights", "Status", "References", "Notes"}

// ReportService renders availability reports for download.
type ReportService struct {
	ranges    rangeLister
	exporters map[dto.ReportFormat]tabularExporter
	logger    *zap.Logger
}

// NewReportService constructs the service with the CSV and PDF exporters.
func NewReportService(ranges rangeLister, csv, pdf tabularExporter, logger *zap.Logger) *ReportService {
	if logger == nil {
		logger = zap.NewNop()
	}
	exporters := make(map[dto.ReportFormat]tabularExporter, 2)
	if csv != nil {
		exporters[dto.ReportFormatCSV] = csv
	}
	if pdf != nil {
		exporters[dto.ReportFormatPDF] = pdf
	}
	return &ReportService{ranges: ranges, exporters: exporters, logger: logger}
}

// AvailabilityReport tabulates the merged ranges of an apartment in the requested format.
func (s *ReportService) AvailabilityReport(ctx context.Context, apartmentID string, query dto.AvailabilityQuery, format dto.ReportFormat) (*dto.ReportFile, error) {
	if format == "" {
		format = dto.ReportFormatCSV
	}
	exporter, ok := s.exporters[dto.ReportFormat(strings.ToLower(string(format)))]
	if !ok {
		return nil, appErrors.Clone(appErrors.ErrValidation, "format must be csv or pdf")
	}

	availability, err := s.ranges.Ranges(ctx, apartmentID, query)
	if err != nil {
		return nil, err
	}

	dataset := export.Dataset{
		Title:   availability.ApartmentName + " availability " + availability.StartDate.String() + " to " + availability.EndDate.String(),
		Headers: availabilityReportHeaders,
		Rows:    make([]map[string]string, 0, len(availability.Ranges)),
	}
	for _, r := range availability.Ranges {
		dataset.Rows = append(dataset.Rows, map[string]string{
			"Start":           r.StartDate.String(),
			"End (exclusive)": r.EndDate.String(),
			"Nights":          strconv.Itoa(r.Nights),
			"Status":          r.Status,
			"References":      strings.Join(r.References, ", "),
			"Notes":           strings.Join(r.Notes, "; "),
		})
	}

	body, err := exporter.Render(dataset)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render report")
	}
	s.logger.Debug("availability report rendered",
		zap.String("apartment_id", apartmentID),
		zap.String("format", string(format)),
		zap.Int("rows", len(dataset.Rows)),
	)
	return &dto.ReportFile{
		Filename:    response.Filename(availability.ApartmentName, "availability-"+availability.StartDate.String(), exporter.Extension()),
		ContentType: exporter.ContentType(),
		Body:        body,
	}, nil
}
