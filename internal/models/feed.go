package models

import "time"

// FeedMode selects which events a feed contains.
type FeedMode string

const (
	// FeedModeAvailability renders merged booked/blocked ranges.
	FeedModeAvailability FeedMode = "availability"
	// FeedModeBookings renders one event per confirmed booking.
	FeedModeBookings FeedMode = "bookings"
	// FeedModeCalendar renders bookings plus manual blocks.
	FeedModeCalendar FeedMode = "calendar"
)

// Valid reports whether m is a known mode.
func (m FeedMode) Valid() bool {
	switch m {
	case FeedModeAvailability, FeedModeBookings, FeedModeCalendar:
		return true
	}
	return false
}

// FeedDocument is a rendered calendar plus the metadata needed to serve it.
type FeedDocument struct {
	ApartmentID   string    `json:"apartment_id"`
	ApartmentName string    `json:"apartment_name"`
	Mode          FeedMode  `json:"mode"`
	Filename      string    `json:"filename"`
	Body          string    `json:"body"`
	EventCount    int       `json:"event_count"`
	SkippedEvents int       `json:"skipped_events"`
	GeneratedAt   time.Time `json:"generated_at"`
	CacheHit      bool      `json:"-"`
}

// FeedAccess identifies how a feed request was authorised.
type FeedAccess struct {
	Method      string `json:"method"`
	Subject     string `json:"subject"`
	ApartmentID string `json:"apartment_id,omitempty"`
	Scope       string `json:"scope,omitempty"`
}
