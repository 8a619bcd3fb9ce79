package models

import "time"

// AvailabilityStatus is the state of one apartment day.
type AvailabilityStatus string

const (
	AvailabilityAvailable AvailabilityStatus = "available"
	AvailabilityBooked    AvailabilityStatus = "booked"
	AvailabilityBlocked   AvailabilityStatus = "blocked"
)

// AvailabilityDay is one row of apartment_availability, unique per (apartment, date).
type AvailabilityDay struct {
	ApartmentID      string             `db:"apartment_id" json:"apartment_id"`
	Date             time.Time          `db:"date" json:"date"`
	Status           AvailabilityStatus `db:"status" json:"status"`
	BookingReference *string            `db:"booking_reference" json:"booking_reference,omitempty"`
	Notes            *string            `db:"notes" json:"notes,omitempty"`
	UpdatedAt        time.Time          `db:"updated_at" json:"updated_at"`
}

// DateWindow is a half-open span of days [Start, End).
type DateWindow struct {
	Start time.Time
	End   time.Time
}

// Days returns the number of days covered by the window.
func (w DateWindow) Days() int {
	return int(w.End.Sub(w.Start).Hours() / 24)
}
