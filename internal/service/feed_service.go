package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type feedApartmentReader interface {
	GetByID(ctx context.Context, id string) (*models.Apartment, error)
}

type feedAvailabilityReader interface {
	ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error)
}

type feedBookingReader interface {
	ListConfirmed(ctx context.Context, apartmentID string) ([]models.Booking, error)
	ListConfirmedBetween(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.Booking, error)
}

type feedCache interface {
	Get(ctx context.Context, key string, dest interface{}) (bool, error)
	Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error
	Invalidate(ctx context.Context, pattern string) error
}

// FeedConfig controls feed windows, caching and invalid event handling.
type FeedConfig struct {
	Window          WindowPolicy
	CacheTTL        time.Duration
	SkipInvalid     bool
	DefaultTimezone string
}

// FeedService renders apartment calendar feeds.
type FeedService struct {
	apartments   feedApartmentReader
	availability feedAvailabilityReader
	bookings     feedBookingReader
	cache        feedCache
	builder      *ical.Builder
	metrics      *MetricsService
	logger       *zap.Logger
	cfg          FeedConfig
}

// NewFeedService constructs a FeedService.
func NewFeedService(
	apartments feedApartmentReader,
	availability feedAvailabilityReader,
	bookings feedBookingReader,
	cache feedCache,
	builder *ical.Builder,
	metrics *MetricsService,
	logger *zap.Logger,
	cfg FeedConfig,
) *FeedService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if builder == nil {
		builder = ical.NewBuilder(ical.Config{Timezone: cfg.DefaultTimezone})
	}
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = time.Hour
	}
	return &FeedService{
		apartments:   apartments,
		availability: availability,
		bookings:     bookings,
		cache:        cache,
		builder:      builder,
		metrics:      metrics,
		logger:       logger,
		cfg:          cfg,
	}
}

// FeedCacheKey returns the cache key of an apartment feed.
func FeedCacheKey(apartmentID string, mode models.FeedMode) string {
	return fmt.Sprintf("feed:apartment:%s:%s", apartmentID, mode)
}

// CacheTTL is the lifetime of cached availability feeds, also used as the public max-age.
func (s *FeedService) CacheTTL() time.Duration {
	return s.cfg.CacheTTL
}

// Render returns the calendar document of the apartment in the requested mode.
// Only availability feeds are served from cache.
func (s *FeedService) Render(ctx context.Context, apartmentID string, mode models.FeedMode) (*models.FeedDocument, error) {
	if !mode.Valid() {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("unknown feed mode %q", mode))
	}
	apartment, err := s.apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}

	if mode == models.FeedModeAvailability && s.cache != nil {
		var cached models.FeedDocument
		hit, err := s.cache.Get(ctx, FeedCacheKey(apartment.ID, mode), &cached)
		if err == nil && hit {
			cached.CacheHit = true
			return &cached, nil
		}
	}

	doc, err := s.render(ctx, apartment, mode)
	if err != nil {
		return nil, err
	}
	if mode == models.FeedModeAvailability {
		s.store(ctx, doc)
	}
	return doc, nil
}

// Warm re-renders the availability feed and refreshes the cache entry.
func (s *FeedService) Warm(ctx context.Context, apartmentID string) (*models.FeedDocument, error) {
	apartment, err := s.apartment(ctx, apartmentID)
	if err != nil {
		return nil, err
	}
	doc, err := s.render(ctx, apartment, models.FeedModeAvailability)
	if err != nil {
		return nil, err
	}
	s.store(ctx, doc)
	return doc, nil
}

// Invalidate drops every cached feed of the apartment.
func (s *FeedService) Invalidate(ctx context.Context, apartmentID string) error {
	if s.cache == nil {
		return nil
	}
	return s.cache.Invalidate(ctx, fmt.Sprintf("feed:apartment:%s:*", apartmentID))
}

func (s *FeedService) store(ctx context.Context, doc *models.FeedDocument) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Set(ctx, FeedCacheKey(doc.ApartmentID, doc.Mode), doc, s.cfg.CacheTTL); err != nil {
		s.logger.Warn("feed cache write failed", zap.String("apartment_id", doc.ApartmentID), zap.Error(err))
	}
}

func (s *FeedService) apartment(ctx context.Context, apartmentID string) (*models.Apartment, error) {
	start := time.Now()
	apartment, err := s.apartments.GetByID(ctx, apartmentID)
	s.metrics.ObserveDBQuery("apartment_get", time.Since(start))
	if err != nil {
		if isNoRows(err) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "apartment not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load apartment")
	}
	if !apartment.Active {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "apartment not found")
	}
	return apartment, nil
}

func (s *FeedService) render(ctx context.Context, apartment *models.Apartment, mode models.FeedMode) (*models.FeedDocument, error) {
	started := time.Now()
	startDate, endDate := s.cfg.Window.Default()
	window := toWindow(startDate, endDate)

	var events []ical.Event
	switch mode {
	case models.FeedModeAvailability:
		days, err := s.unavailable(ctx, apartment.ID, window)
		if err != nil {
			return nil, err
		}
		events = rangeEvents(apartment, ical.MergeByStatus(days))
	case models.FeedModeBookings:
		begin := time.Now()
		bookings, err := s.bookings.ListConfirmed(ctx, apartment.ID)
		s.metrics.ObserveDBQuery("bookings_confirmed", time.Since(begin))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
		}
		events = bookingEvents(bookings)
	case models.FeedModeCalendar:
		begin := time.Now()
		bookings, err := s.bookings.ListConfirmedBetween(ctx, apartment.ID, window)
		s.metrics.ObserveDBQuery("bookings_confirmed_window", time.Since(begin))
		if err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load bookings")
		}
		days, err := s.unavailable(ctx, apartment.ID, window)
		if err != nil {
			return nil, err
		}
		blocked := make([]ical.Day, 0, len(days))
		for _, day := range days {
			if day.Status == ical.DayBlocked {
				blocked = append(blocked, day)
			}
		}
		events = append(bookingEvents(bookings), rangeEvents(apartment, ical.MergeByStatus(blocked))...)
	}

	skipped := 0
	if s.cfg.SkipInvalid {
		events, skipped = s.dropInvalid(apartment.ID, mode, events)
	}

	generatedAt := s.builder.Now()
	body, err := s.builder.BuildAt(generatedAt, apartment.ID, apartment.Name, apartment.TimezoneOr(s.cfg.DefaultTimezone), events)
	if err != nil {
		var invalid *ical.ValidationError
		if errors.As(err, &invalid) {
			s.metrics.RecordFeedValidationFailure(mode)
			s.logger.Error("calendar feed rejected",
				zap.String("apartment_id", apartment.ID),
				zap.String("mode", string(mode)),
				zap.String("uid", invalid.UID),
				zap.String("reason", invalid.Reason),
			)
			return nil, appErrors.Wrap(err, appErrors.ErrInvalidFeed.Code, appErrors.ErrInvalidFeed.Status,
				fmt.Sprintf("event %q is invalid: %s", invalid.UID, invalid.Reason))
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to build calendar")
	}

	s.metrics.ObserveFeedRender(mode, len(events), time.Since(started))
	return &models.FeedDocument{
		ApartmentID:   apartment.ID,
		ApartmentName: apartment.Name,
		Mode:          mode,
		Filename:      response.Filename(apartment.Name, string(mode), "ics"),
		Body:          body,
		EventCount:    len(events),
		SkippedEvents: skipped,
		GeneratedAt:   generatedAt,
	}, nil
}

func (s *FeedService) unavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]ical.Day, error) {
	begin := time.Now()
	rows, err := s.availability.ListUnavailable(ctx, apartmentID, window)
	s.metrics.ObserveDBQuery("availability_unavailable", time.Since(begin))
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load availability")
	}
	return availabilityDays(rows), nil
}

func (s *FeedService) dropInvalid(apartmentID string, mode models.FeedMode, events []ical.Event) ([]ical.Event, int) {
	valid := events[:0]
	skipped := 0
	for _, event := range events {
		if err := event.Validate(); err != nil {
			skipped++
			s.metrics.RecordFeedValidationFailure(mode)
			s.logger.Warn("skipping invalid calendar event",
				zap.String("apartment_id", apartmentID),
				zap.String("mode", string(mode)),
				zap.Error(err),
			)
			continue
		}
		valid = append(valid, event)
	}
	return valid, skipped
}

func availabilityDays(rows []models.AvailabilityDay) []ical.Day {
	days := make([]ical.Day, 0, len(rows))
	for _, row := range rows {
		days = append(days, ical.Day{
			Date:      ical.DateOf(row.Date),
			Status:    ical.DayStatus(row.Status),
			Reference: deref(row.BookingReference),
			Notes:     deref(row.Notes),
		})
	}
	return days
}

func rangeEvents(apartment *models.Apartment, ranges []ical.Range) []ical.Event {
	events := make([]ical.Event, 0, len(ranges))
	for _, r := range ranges {
		events = append(events, ical.RangeEvent(apartment.ID, apartment.Name, r))
	}
	return events
}

func bookingEvents(bookings []models.Booking) []ical.Event {
	events := make([]ical.Event, 0, len(bookings))
	for _, b := range bookings {
		events = append(events, ical.BookingEvent(ical.Booking{
			ID:        b.ID,
			CheckIn:   ical.DateOf(b.CheckInDate),
			CheckOut:  ical.DateOf(b.CheckOutDate),
			GuestName: deref(b.GuestName),
			Reference: deref(b.BookingReference),
		}))
	}
	return events
}

func isNoRows(err error) bool {
	return errors.Is(err, sql.ErrNoRows)
}

func deref(value *string) string {
	if value == nil {
		return ""
	}
	return *value
}
