package dto

import "github.com/noah-isme/coliving-calendar-api/pkg/ical"

// AvailabilityQuery bounds availability lookups. Dates are YYYY-MM-DD, end exclusive.
type AvailabilityQuery struct {
	StartDate string `form:"start_date"`
	EndDate   string `form:"end_date"`
}

// AvailabilityRange is one merged unavailable range.
type AvailabilityRange struct {
	StartDate  ical.Date `json:"startDate"`
	EndDate    ical.Date `json:"endDate"`
	Nights     int       `json:"nights"`
	Status     string    `json:"status"`
	References []string  `json:"references,omitempty"`
	Notes      []string  `json:"notes,omitempty"`
}

// AvailabilityResponse lists the merged ranges for a window.
type AvailabilityResponse struct {
	ApartmentID   string              `json:"apartmentId"`
	ApartmentName string              `json:"apartmentName"`
	StartDate     ical.Date           `json:"startDate"`
	EndDate       ical.Date           `json:"endDate"`
	Ranges        []AvailabilityRange `json:"ranges"`
}

// BlockRequest marks [StartDate, EndDate) as manually blocked.
type BlockRequest struct {
	StartDate string `json:"startDate" validate:"required"`
	EndDate   string `json:"endDate" validate:"required"`
	Notes     string `json:"notes" validate:"max=500"`
}

// BlockResult reports the outcome of a block or unblock call.
type BlockResult struct {
	ApartmentID string    `json:"apartmentId"`
	StartDate   ical.Date `json:"startDate"`
	EndDate     ical.Date `json:"endDate"`
	Days        int       `json:"days"`
}
