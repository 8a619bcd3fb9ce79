package models

import "time"

// BookingStatus mirrors the booking lifecycle of the booking widget.
type BookingStatus string

const (
	BookingPending   BookingStatus = "pending"
	BookingConfirmed BookingStatus = "confirmed"
	BookingCancelled BookingStatus = "cancelled"
)

// Booking covers the half-open stay [CheckInDate, CheckOutDate).
type Booking struct {
	ID               string        `db:"id" json:"id"`
	ApartmentID      string        `db:"apartment_id" json:"apartment_id"`
	CheckInDate      time.Time     `db:"check_in_date" json:"check_in_date"`
	CheckOutDate     time.Time     `db:"check_out_date" json:"check_out_date"`
	GuestName        *string       `db:"guest_name" json:"guest_name,omitempty"`
	BookingReference *string       `db:"booking_reference" json:"booking_reference,omitempty"`
	Status           BookingStatus `db:"status" json:"status"`
	CreatedAt        time.Time     `db:"created_at" json:"created_at"`
}
