package service

import (
	"context"
	"errors"
	"strings"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/internal/repository"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

type availabilityStore interface {
	ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error)
	UpsertBlocked(ctx context.Context, apartmentID string, window models.DateWindow, notes *string) (int64, error)
	DeleteBlocked(ctx context.Context, apartmentID string, window models.DateWindow) (int64, error)
}

type feedInvalidator interface {
	Invalidate(ctx context.Context, apartmentID string) error
}

// AvailabilityService exposes merged availability and manual blocks to admins.
type AvailabilityService struct {
	apartments feedApartmentReader
	store      availabilityStore
	feeds      feedInvalidator
	window     WindowPolicy
	validator  *validator.Validate
	logger     *zap.Logger
}

// NewAvailabilityService constructs the service.
func NewAvailabilityService(apartments feedApartmentReader, store availabilityStore, feeds feedInvalidator, window WindowPolicy, validate *validator.Validate, logger *zap.Logger) *AvailabilityService {
	if validate == nil {
		validate = validator.New()
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &AvailabilityService{apartments: apartments, store: store, feeds: feeds, window: window, validator: validate, logger: logger}
}

// Ranges returns the merged booked and blocked ranges inside the requested window.
func (s *AvailabilityService) Ranges(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	start, end, err := s.window.Resolve(query.StartDate, query.EndDate)
	if err != nil {
		return nil, err
	}
	apartment, err := s.apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	rows, err := s.store.ListUnavailable(ctx, apartment.ID, toWindow(start, end))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}

	merged := ical.MergeByStatus(availabilityDays(rows))
	ranges := make([]dto.AvailabilityRange, 0, len(merged))
	for _, r := range merged {
		ranges = append(ranges, dto.AvailabilityRange{
			StartDate:  r.Start,
			EndDate:    r.End,
			Nights:     r.Nights(),
			Status:     string(r.Status),
			References: r.References,
			Notes:      r.Notes,
		})
	}
	return &dto.AvailabilityResponse{
		ApartmentID:   apartment.ID,
		ApartmentName: apartment.Name,
		StartDate:     start,
		EndDate:       end,
		Ranges:        ranges,
	}, nil
}

// Block marks [start, end) as unavailable. Booked days inside the range are a conflict.
func (s *AvailabilityService) Block(ctx context.Context, apartmentID string, req dto.BlockRequest) (*dto.BlockResult, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload")
	}
	start, err := ical.ParseDate(req.StartDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "startDate must be YYYY-MM-DD")
	}
	end, err := ical.ParseDate(req.EndDate)
	if err != nil {
		return nil, appErrors.Clone(appErrors.ErrValidation, "endDate must be YYYY-MM-DD")
	}
	if err := checkSpan(start, end, maxBlockDays); err != nil {
		return nil, err
	}
	apartment, err := s.apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}

	var notes *string
	if trimmed := strings.TrimSpace(req.Notes); trimmed != "" {
		notes = &trimmed
	}
	n, err := s.store.UpsertBlocked(ctx, apartment.ID, toWindow(start, end), notes)
	if err != nil {
		if errors.Is(err, repository.ErrBookedOverlap) {
			return nil, appErrors.Wrap(err, appErrors.ErrConflict.Code, appErrors.ErrConflict.Status, "range overlaps a confirmed booking")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to block dates")
	}
	s.invalidate(ctx, apartment.ID)
	s.logger.Info("dates blocked",
		zap.String("apartment_id", apartment.ID),
		zap.String("start_date", start.String()),
		zap.String("end_date", end.String()),
	)
	return &dto.BlockResult{ApartmentID: apartment.ID, StartDate: start, EndDate: end, Days: int(n)}, nil
}

// Unblock removes manual blocks in the window. Both bounds are required.
func (s *AvailabilityService) Unblock(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.BlockResult, error) {
	if strings.TrimSpace(query.StartDate) == "" || strings.TrimSpace(query.EndDate) == "" {
		return nil, appErrors.Clone(appErrors.ErrValidation, "start_date and end_date are required")
	}
	start, end, err := s.window.Resolve(query.StartDate, query.EndDate)
	if err != nil {
		return nil, err
	}
	apartment, err := s.apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	n, err := s.store.DeleteBlocked(ctx, apartment.ID, toWindow(start, end))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to unblock dates")
	}
	if n > 0 {
		s.invalidate(ctx, apartment.ID)
	}
	return &dto.BlockResult{ApartmentID: apartment.ID, StartDate: start, EndDate: end, Days: int(n)}, nil
}

func (s *AvailabilityService) apartment(ctx context.Context, apartmentID string) (*models.Apartment, error) {
	apartment, err := s.apartments.GetByID(ctx, apartmentID)
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "apartment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load apartment")
	}
	return apartment, nil
}

func (s *AvailabilityService) invalidate(ctx context.Context, apartmentID string) {
	if s.feeds == nil {
		return
	}
	if err := s.feeds.Invalidate(ctx, apartmentID); err != nil {
		s.logger.Warn("feed cache invalidation failed", zap.String("apartment_id", apartmentID), zap.Error(err))
	}
}
