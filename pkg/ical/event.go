package ical

import (
	"fmt"
	"strings"
)

// EventStatus is the STATUS value of a VEVENT.
type EventStatus string

const (
	StatusConfirmed EventStatus = "CONFIRMED"
	StatusTentative EventStatus = "TENTATIVE"
)

// Event is a single all-day VEVENT. End is exclusive.
type Event struct {
	UID         string
	Start       Date
	End         Date
	Summary     string
	Description string
	Status      EventStatus
}

// ValidationError reports an event that cannot be rendered.
type ValidationError struct {
	UID    string
	Reason string
}

func (e *ValidationError) Error() string {
	if e.UID == "" {
		return "ical: invalid event: " + e.Reason
	}
	return fmt.Sprintf("ical: invalid event %q: %s", e.UID, e.Reason)
}

// Validate checks that e can be rendered as an all-day event.
func (e Event) Validate() error {
	invalid := func(reason string) error {
		return &ValidationError{UID: e.UID, Reason: reason}
	}
	switch {
	case strings.TrimSpace(e.UID) == "":
		return invalid("missing uid")
	case e.Start.IsZero():
		return invalid("missing start date")
	case e.End.IsZero():
		return invalid("missing end date")
	case !e.Start.Valid():
		return invalid("invalid start date")
	case !e.End.Valid():
		return invalid("invalid end date")
	case !e.End.After(e.Start):
		return invalid("end date must be after start date")
	}
	switch e.Status {
	case StatusConfirmed, StatusTentative:
		return nil
	default:
		return invalid(fmt.Sprintf("unknown status %q", e.Status))
	}
}

// Booking is a confirmed stay covering [CheckIn, CheckOut).
type Booking struct {
	ID        string
	CheckIn   Date
	CheckOut  Date
	GuestName string
	Reference string
}

// RangeEvent renders a merged availability range. Booked runs are CONFIRMED,
// manual blocks TENTATIVE.
func RangeEvent(resourceID, resourceName string, r Range) Event {
	label, status := "Blocked", StatusTentative
	if r.Status == DayBooked {
		label, status = "Booked", StatusConfirmed
	}

	summary := label
	if resourceName != "" {
		summary = resourceName + " - " + label
	}

	lines := []string{
		fmt.Sprintf("%s from %s to %s (%d night%s)", label, r.Start, r.End, r.Nights(), plural(r.Nights())),
	}
	if len(r.References) > 0 {
		lines = append(lines, "References: "+strings.Join(r.References, ", "))
	}
	if len(r.Notes) > 0 {
		lines = append(lines, "Notes: "+strings.Join(r.Notes, "; "))
	}

	return Event{
		UID:         fmt.Sprintf("range-%s-%s", resourceID, r.Start.Compact()),
		Start:       r.Start,
		End:         r.End,
		Summary:     summary,
		Description: strings.Join(lines, "\n"),
		Status:      status,
	}
}

// BookingEvent renders one confirmed booking.
func BookingEvent(b Booking) Event {
	summary := "Booking"
	if b.GuestName != "" {
		summary = "Booking: " + b.GuestName
	}

	lines := make([]string, 0, 4)
	if b.GuestName != "" {
		lines = append(lines, "Guest: "+b.GuestName)
	}
	if b.Reference != "" {
		lines = append(lines, "Reference: "+b.Reference)
	}
	lines = append(lines, "Check-in: "+b.CheckIn.String(), "Check-out: "+b.CheckOut.String())

	return Event{
		UID:         "booking-" + b.ID,
		Start:       b.CheckIn,
		End:         b.CheckOut,
		Summary:     summary,
		Description: strings.Join(lines, "\n"),
		Status:      StatusConfirmed,
	}
}

func plural(n int) string {
	if n == 1 {
		return ""
	}
	return "s"
}
