package models

import "time"

// Apartment is a bookable unit whose availability is exported as a calendar.
type Apartment struct {
	ID        string    `db:"id" json:"id"`
	Name      string    `db:"name" json:"name"`
	Slug      string    `db:"slug" json:"slug"`
	Timezone  *string   `db:"timezone" json:"timezone,omitempty"`
	Active    bool      `db:"active" json:"active"`
	CreatedAt time.Time `db:"created_at" json:"created_at"`
	UpdatedAt time.Time `db:"updated_at" json:"updated_at"`
}

// TimezoneOr returns the apartment zone label or fallback when unset.
func (a Apartment) TimezoneOr(fallback string) string {
	if a.Timezone != nil && *a.Timezone != "" {
		return *a.Timezone
	}
	return fallback
}
