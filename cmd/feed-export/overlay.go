package main

import (
	"context"
	"sort"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

type unavailableLister interface {
	ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error)
}

// blockOverlay merges manifest blocks into the stored availability rows.
// Stored rows win on a shared date so booked nights are never downgraded.
type blockOverlay struct {
	base   unavailableLister
	blocks map[string][]extraBlock
}

func (o *blockOverlay) ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error) {
	rows, err := o.base.ListUnavailable(ctx, apartmentID, window)
	if err != nil {
		return nil, err
	}
	extra := o.blocks[apartmentID]
	if len(extra) == 0 {
		return rows, nil
	}

	taken := make(map[ical.Date]struct{}, len(rows))
	for _, row := range rows {
		taken[ical.DateOf(row.Date)] = struct{}{}
	}
	first, last := ical.DateOf(window.Start), ical.DateOf(window.End)
	for _, block := range extra {
		notes := block.Notes
		for d := block.Start; d.Before(block.End); d = d.AddDays(1) {
			if d.Before(first) || !d.Before(last) {
				continue
			}
			if _, ok := taken[d]; ok {
				continue
			}
			taken[d] = struct{}{}
			row := models.AvailabilityDay{ApartmentID: apartmentID, Date: d.Time(), Status: models.AvailabilityBlocked}
			if notes != "" {
				row.Notes = &notes
			}
			rows = append(rows, row)
		}
	}
	sort.Slice(rows, func(i, j int) bool { return rows[i].Date.Before(rows[j].Date) })
	return rows, nil
}
