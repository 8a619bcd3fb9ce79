package service

import (
	"fmt"
	"strings"
	"time"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

const (
	// maxBlockDays caps a single manual block.
	maxBlockDays = 366
	// maxQueryDays caps availability lookups and reports.
	maxQueryDays = 2 * 366
)

// WindowPolicy derives the default date window around today.
type WindowPolicy struct {
	LookbackDays int
	HorizonDays  int
	Now          func() time.Time
}

// Default returns [today-lookback, today+horizon) in UTC dates.
func (p WindowPolicy) Default() (ical.Date, ical.Date) {
	now := time.Now
	if p.Now != nil {
		now = p.Now
	}
	today := ical.DateOf(now().UTC())
	return today.AddDays(-p.LookbackDays), today.AddDays(p.HorizonDays)
}

// Resolve parses optional YYYY-MM-DD bounds, falling back to the default window for
// any bound left empty.
func (p WindowPolicy) Resolve(startRaw, endRaw string) (ical.Date, ical.Date, error) {
	start, end := p.Default()
	if raw := strings.TrimSpace(startRaw); raw != "" {
		parsed, err := ical.ParseDate(raw)
		if err != nil {
			return ical.Date{}, ical.Date{}, appErrors.Clone(appErrors.ErrValidation, "start_date must be YYYY-MM-DD")
		}
		start = parsed
	}
	if raw := strings.TrimSpace(endRaw); raw != "" {
		parsed, err := ical.ParseDate(raw)
		if err != nil {
			return ical.Date{}, ical.Date{}, appErrors.Clone(appErrors.ErrValidation, "end_date must be YYYY-MM-DD")
		}
		end = parsed
	}
	if err := checkSpan(start, end, maxQueryDays); err != nil {
		return ical.Date{}, ical.Date{}, err
	}
	return start, end, nil
}

func checkSpan(start, end ical.Date, limit int) error {
	if !end.After(start) {
		return appErrors.Clone(appErrors.ErrValidation, "end_date must be after start_date")
	}
	if start.DaysUntil(end) > limit {
		return appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("date range must not exceed %d days", limit))
	}
	return nil
}

func toWindow(start, end ical.Date) models.DateWindow {
	return models.DateWindow{Start: start.Time(), End: end.Time()}
}
