package handler

import (
	"context"
	"time"

	"github.com/gin-gonic/gin"
	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/middleware"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type feedRenderer interface {
	Render(ctx context.Context, apartmentID string, mode models.FeedMode) (*models.FeedDocument, error)
	CacheTTL() time.Duration
}

// FeedHandler serves subscribable iCalendar feeds.
type FeedHandler struct {
	feeds  feedRenderer
	logger *zap.Logger
}

// NewFeedHandler constructs a FeedHandler.
func NewFeedHandler(feeds feedRenderer, logger *zap.Logger) *FeedHandler {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &FeedHandler{feeds: feeds, logger: logger}
}

// Availability godoc
// @Summary Availability feed
// @Description Merged booked and blocked ranges of the apartment as all-day events.
// @Tags Feeds
// @Produce text/calendar
// @Param id path string true "Apartment ID"
// @Param token query string false "Signed feed token"
// @Success 200 {string} string "iCalendar document"
// @Failure 401 {object} response.Envelope
// @Failure 404 {object} response.Envelope
// @Router /feeds/apartments/{id}/availability.ics [get]
func (h *FeedHandler) Availability(c *gin.Context) {
	h.serve(c, models.FeedModeAvailability, response.CacheFor(h.feeds.CacheTTL()))
}

// Bookings godoc
// @Summary Bookings feed
// @Description One event per confirmed booking.
// @Tags Feeds
// @Produce text/calendar
// @Param id path string true "Apartment ID"
// @Param token query string false "Signed feed token"
// @Success 200 {string} string "iCalendar document"
// @Router /feeds/apartments/{id}/bookings.ics [get]
func (h *FeedHandler) Bookings(c *gin.Context) {
	h.serve(c, models.FeedModeBookings, response.NoCache)
}

// Calendar godoc
// @Summary Combined feed
// @Description Bookings plus manually blocked ranges.
// @Tags Feeds
// @Produce text/calendar
// @Param id path string true "Apartment ID"
// @Param token query string false "Signed feed token"
// @Success 200 {string} string "iCalendar document"
// @Router /feeds/apartments/{id}/calendar.ics [get]
func (h *FeedHandler) Calendar(c *gin.Context) {
	h.serve(c, models.FeedModeCalendar, response.NoCache)
}

func (h *FeedHandler) serve(c *gin.Context, mode models.FeedMode, policy response.CachePolicy) {
	doc, err := h.feeds.Render(c.Request.Context(), c.Param("id"), mode)
	if err != nil {
		response.Error(c, err)
		return
	}
	middleware.SetCacheHit(c, doc.CacheHit)

	fields := []zap.Field{
		zap.String("apartment_id", doc.ApartmentID),
		zap.String("mode", string(mode)),
		zap.Int("events", doc.EventCount),
		zap.Bool("cache_hit", doc.CacheHit),
	}
	if access := feedAccessFromContext(c); access != nil {
		fields = append(fields, zap.String("access", access.Method))
	}
	if doc.SkippedEvents > 0 {
		fields = append(fields, zap.Int("skipped", doc.SkippedEvents))
	}
	h.logger.Debug("feed served", fields...)

	response.Calendar(c, response.CalendarFile{
		Filename:    doc.Filename,
		Body:        doc.Body,
		GeneratedAt: doc.GeneratedAt,
		CacheHit:    doc.CacheHit,
	}, policy)
}
