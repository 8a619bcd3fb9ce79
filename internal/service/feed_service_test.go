package service

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

type feedFixture struct {
	apartments   *stubApartments
	availability *stubAvailability
	bookings     *stubBookings
	cache        *stubFeedCache
	metrics      *MetricsService
}

func newFeedFixture() *feedFixture {
	return &feedFixture{
		apartments: newStubApartments(
			models.Apartment{ID: "apt-1", Name: "Loft North", Timezone: strPtr("Asia/Jakarta"), Active: true},
			models.Apartment{ID: "apt-old", Name: "Closed Unit", Active: false},
		),
		availability: &stubAvailability{},
		bookings:     &stubBookings{},
		cache:        newStubFeedCache(),
		metrics:      NewMetricsService(),
	}
}

func (f *feedFixture) service(skipInvalid bool) *FeedService {
	builder := ical.NewBuilder(ical.Config{Timezone: "UTC"}, ical.WithClock(pinnedClock))
	return NewFeedService(f.apartments, f.availability, f.bookings, f.cache, builder, f.metrics, nil, FeedConfig{
		Window:          WindowPolicy{LookbackDays: 30, HorizonDays: 365, Now: pinnedClock},
		SkipInvalid:     skipInvalid,
		DefaultTimezone: "UTC",
	})
}

func TestFeedServiceRenderAvailabilityMergesRanges(t *testing.T) {
	f := newFeedFixture()
	f.availability.days = []models.AvailabilityDay{
		{Date: day("2024-03-01"), Status: models.AvailabilityBooked, BookingReference: strPtr("BK-1")},
		{Date: day("2024-03-02"), Status: models.AvailabilityBooked, BookingReference: strPtr("BK-1")},
		{Date: day("2024-03-03"), Status: models.AvailabilityBlocked, Notes: strPtr("painting")},
		{Date: day("2024-03-10"), Status: models.AvailabilityBooked},
	}
	svc := f.service(false)

	doc, err := svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)

	assert.Equal(t, 3, doc.EventCount)
	assert.Equal(t, "loft-north-availability.ics", doc.Filename)
	assert.False(t, doc.CacheHit)
	assert.Contains(t, doc.Body, "UID:range-apt-1-20240301\r\n")
	assert.Contains(t, doc.Body, "DTEND;VALUE=DATE:20240303\r\n")
	assert.Contains(t, doc.Body, "UID:range-apt-1-20240303\r\n")
	assert.Contains(t, doc.Body, "STATUS:TENTATIVE\r\n")
	assert.Contains(t, doc.Body, "X-WR-TIMEZONE:Asia/Jakarta\r\n")
	assert.Equal(t, day("2024-01-31"), f.availability.lastWindow.Start)
	assert.Equal(t, day("2025-03-01"), f.availability.lastWindow.End)
	assert.Contains(t, f.cache.entries, "feed:apartment:apt-1:availability")
	assert.Equal(t, uint64(1), f.metrics.Snapshot().FeedsRendered)
	assert.Equal(t, pinnedNow.UTC().Truncate(time.Second), doc.GeneratedAt)
	assert.Contains(t, doc.Body, "DTSTAMP:"+doc.GeneratedAt.Format("20060102T150405Z")+"\r\n")
}

func TestFeedServiceServesAvailabilityFromCache(t *testing.T) {
	f := newFeedFixture()
	f.availability.days = []models.AvailabilityDay{{Date: day("2024-03-05"), Status: models.AvailabilityBlocked}}
	svc := f.service(false)

	first, err := svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)
	second, err := svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)

	assert.True(t, second.CacheHit)
	assert.Equal(t, first.Body, second.Body)
	assert.Equal(t, 1, f.availability.calls)

	require.NoError(t, svc.Invalidate(context.Background(), "apt-1"))
	assert.Equal(t, []string{"feed:apartment:apt-1:*"}, f.cache.invalidated)
	_, err = svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)
	assert.Equal(t, 2, f.availability.calls)
}

func TestFeedServiceBookingsAreNeverCached(t *testing.T) {
	f := newFeedFixture()
	f.bookings.all = []models.Booking{{
		ID:           "bk-1",
		CheckInDate:  day("2024-03-01"),
		CheckOutDate: day("2024-03-05"),
		GuestName:    strPtr("A, B"),
	}}
	svc := f.service(false)

	for i := 0; i < 2; i++ {
		doc, err := svc.Render(context.Background(), "apt-1", models.FeedModeBookings)
		require.NoError(t, err)
		assert.False(t, doc.CacheHit)
		assert.Contains(t, doc.Body, "SUMMARY:Booking: A\\, B\r\n")
		assert.Equal(t, "loft-north-bookings.ics", doc.Filename)
	}
	assert.Equal(t, 2, f.bookings.calls)
	assert.Empty(t, f.cache.entries)
}

func TestFeedServiceCalendarCombinesBookingsAndBlocks(t *testing.T) {
	f := newFeedFixture()
	f.bookings.windowed = []models.Booking{{ID: "bk-1", CheckInDate: day("2024-03-01"), CheckOutDate: day("2024-03-03")}}
	f.availability.days = []models.AvailabilityDay{
		{Date: day("2024-03-01"), Status: models.AvailabilityBooked},
		{Date: day("2024-03-02"), Status: models.AvailabilityBooked},
		{Date: day("2024-03-07"), Status: models.AvailabilityBlocked},
		{Date: day("2024-03-08"), Status: models.AvailabilityBlocked},
	}
	svc := f.service(false)

	doc, err := svc.Render(context.Background(), "apt-1", models.FeedModeCalendar)
	require.NoError(t, err)

	assert.Equal(t, 2, doc.EventCount)
	assert.Contains(t, doc.Body, "UID:booking-bk-1\r\n")
	assert.Contains(t, doc.Body, "UID:range-apt-1-20240307\r\n")
	assert.NotContains(t, doc.Body, "range-apt-1-20240301")
	assert.Equal(t, 2, strings.Count(doc.Body, "BEGIN:VEVENT"))
}

func TestFeedServiceRejectsInvalidEvents(t *testing.T) {
	f := newFeedFixture()
	f.bookings.all = []models.Booking{
		{ID: "bk-ok", CheckInDate: day("2024-03-01"), CheckOutDate: day("2024-03-02")},
		{ID: "bk-bad", CheckInDate: day("2024-03-04"), CheckOutDate: day("2024-03-04")},
	}

	_, err := f.service(false).Render(context.Background(), "apt-1", models.FeedModeBookings)
	require.Error(t, err)
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusUnprocessableEntity, appErr.Status)
	assert.Contains(t, appErr.Message, "booking-bk-bad")
	assert.Equal(t, uint64(1), f.metrics.Snapshot().FeedValidationFailures)

	doc, err := f.service(true).Render(context.Background(), "apt-1", models.FeedModeBookings)
	require.NoError(t, err)
	assert.Equal(t, 1, doc.EventCount)
	assert.Equal(t, 1, doc.SkippedEvents)
	assert.NotContains(t, doc.Body, "bk-bad")
}

func TestFeedServiceNotFound(t *testing.T) {
	f := newFeedFixture()
	svc := f.service(false)

	for _, id := range []string{"missing", "apt-old"} {
		_, err := svc.Render(context.Background(), id, models.FeedModeAvailability)
		var appErr *appErrors.Error
		require.True(t, errors.As(err, &appErr), id)
		assert.Equal(t, http.StatusNotFound, appErr.Status, id)
	}
}

func TestFeedServiceUnknownMode(t *testing.T) {
	_, err := newFeedFixture().service(false).Render(context.Background(), "apt-1", models.FeedMode("ical"))
	var appErr *appErrors.Error
	require.True(t, errors.As(err, &appErr))
	assert.Equal(t, http.StatusBadRequest, appErr.Status)
}

func TestFeedServiceWarmRefreshesCache(t *testing.T) {
	f := newFeedFixture()
	svc := f.service(false)
	_, err := svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)

	f.availability.days = []models.AvailabilityDay{{Date: day("2024-04-01"), Status: models.AvailabilityBlocked}}
	doc, err := svc.Warm(context.Background(), "apt-1")
	require.NoError(t, err)
	assert.Equal(t, 1, doc.EventCount)

	cached, err := svc.Render(context.Background(), "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)
	assert.True(t, cached.CacheHit)
	assert.Equal(t, 1, cached.EventCount)
}
