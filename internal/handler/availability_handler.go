package handler

import (
	"context"
	"fmt"
	"net/http"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/middleware"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type availabilityManager interface {
	Ranges(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error)
	Block(ctx context.Context, apartmentID string, req dto.BlockRequest) (*dto.BlockResult, error)
	Unblock(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.BlockResult, error)
}

type availabilityReporter interface {
	AvailabilityReport(ctx context.Context, apartmentID string, query dto.AvailabilityQuery, format dto.ReportFormat) (*dto.ReportFile, error)
}

// AvailabilityHandler exposes availability ranges and manual blocks.
type AvailabilityHandler struct {
	availability availabilityManager
	reports      availabilityReporter
}

// NewAvailabilityHandler constructs handler.
func NewAvailabilityHandler(availability availabilityManager, reports availabilityReporter) *AvailabilityHandler {
	return &AvailabilityHandler{availability: availability, reports: reports}
}

// Ranges godoc
// @Summary Merged availability ranges
// @Tags Availability
// @Produce json
// @Param id path string true "Apartment ID"
// @Param start_date query string false "First day (YYYY-MM-DD)"
// @Param end_date query string false "Exclusive last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /admin/apartments/{id}/availability [get]
func (h *AvailabilityHandler) Ranges(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	result, err := h.availability.Ranges(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil, middleware.ExtractMeta(c))
}

// Block godoc
// @Summary Block dates
// @Tags Availability
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Apartment ID"
// @Param payload body dto.BlockRequest true "Dates to block"
// @Success 201 {object} response.Envelope
// @Failure 409 {object} response.Envelope
// @Router /admin/apartments/{id}/blocks [post]
func (h *AvailabilityHandler) Block(c *gin.Context) {
	var req dto.BlockRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid block payload"))
		return
	}
	result, err := h.availability.Block(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, result)
}

// Unblock godoc
// @Summary Release blocked dates
// @Tags Availability
// @Produce json
// @Security BearerAuth
// @Param id path string true "Apartment ID"
// @Param start_date query string true "First day (YYYY-MM-DD)"
// @Param end_date query string true "Exclusive last day (YYYY-MM-DD)"
// @Success 200 {object} response.Envelope
// @Router /admin/apartments/{id}/blocks [delete]
func (h *AvailabilityHandler) Unblock(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	result, err := h.availability.Unblock(c.Request.Context(), c.Param("id"), query)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, result, nil)
}

// Report godoc
// @Summary Download availability report
// @Tags Availability
// @Produce text/csv
// @Produce application/pdf
// @Security BearerAuth
// @Param id path string true "Apartment ID"
// @Param format query string false "csv or pdf" default(csv)
// @Param start_date query string false "First day (YYYY-MM-DD)"
// @Param end_date query string false "Exclusive last day (YYYY-MM-DD)"
// @Success 200 {file} file
// @Router /admin/apartments/{id}/availability/report [get]
func (h *AvailabilityHandler) Report(c *gin.Context) {
	var query dto.AvailabilityQuery
	if err := c.ShouldBindQuery(&query); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid query parameters"))
		return
	}
	format := dto.ReportFormat(strings.ToLower(c.DefaultQuery("format", string(dto.ReportFormatCSV))))
	file, err := h.reports.AvailabilityReport(c.Request.Context(), c.Param("id"), query, format)
	if err != nil {
		response.Error(c, err)
		return
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", file.Filename))
	c.Header("Cache-Control", "no-store")
	c.Data(http.StatusOK, file.ContentType, file.Body)
}
