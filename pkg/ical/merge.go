package ical

import "sort"

// DayStatus is the availability state of one day.
type DayStatus string

const (
	DayAvailable DayStatus = "available"
	DayBooked    DayStatus = "booked"
	DayBlocked   DayStatus = "blocked"
)

// Day is one availability row for a resource.
type Day struct {
	Date      Date
	Status    DayStatus
	Reference string
	Notes     string
}

// Range is a half-open run of days [Start, End).
type Range struct {
	Start      Date
	End        Date
	Status     DayStatus
	References []string
	Notes      []string
}

// Nights returns the number of days covered by r.
func (r Range) Nights() int {
	return r.Start.DaysUntil(r.End)
}

// Contains reports whether d falls inside r.
func (r Range) Contains(d Date) bool {
	return !d.Before(r.Start) && d.Before(r.End)
}

// Merge collapses dates into the fewest contiguous half-open ranges, ordered by start.
// It ignores status; availability feeds use MergeByStatus so booked and blocked
// runs stay separate events.
func Merge(dates []Date) []Range {
	if len(dates) == 0 {
		return []Range{}
	}
	sorted := uniqueSorted(dates)

	ranges := make([]Range, 0, len(sorted))
	start, end := sorted[0], sorted[0]
	for _, d := range sorted[1:] {
		if d == end.AddDays(1) {
			end = d
			continue
		}
		ranges = append(ranges, Range{Start: start, End: end.AddDays(1)})
		start, end = d, d
	}
	return append(ranges, Range{Start: start, End: end.AddDays(1)})
}

// MergeByStatus merges unavailable days into ranges that never cross a status boundary.
// Available days are ignored; a date listed as both booked and blocked counts as booked.
func MergeByStatus(days []Day) []Range {
	byDate := make(map[Date]Day, len(days))
	for _, day := range days {
		if day.Status != DayBooked && day.Status != DayBlocked {
			continue
		}
		if existing, ok := byDate[day.Date]; ok && existing.Status == DayBooked {
			continue
		}
		byDate[day.Date] = day
	}
	if len(byDate) == 0 {
		return []Range{}
	}

	ordered := make([]Day, 0, len(byDate))
	for _, day := range byDate {
		ordered = append(ordered, day)
	}
	sort.Slice(ordered, func(i, j int) bool { return ordered[i].Date.Before(ordered[j].Date) })

	ranges := make([]Range, 0, len(ordered))
	current := openRange(ordered[0])
	last := ordered[0].Date
	for _, day := range ordered[1:] {
		if day.Date == last.AddDays(1) && day.Status == current.Status {
			current.collect(day)
			last = day.Date
			continue
		}
		current.End = last.AddDays(1)
		ranges = append(ranges, current)
		current = openRange(day)
		last = day.Date
	}
	current.End = last.AddDays(1)
	return append(ranges, current)
}

func openRange(day Day) Range {
	r := Range{Start: day.Date, Status: day.Status}
	r.collect(day)
	return r
}

func (r *Range) collect(day Day) {
	r.References = appendUnique(r.References, day.Reference)
	r.Notes = appendUnique(r.Notes, day.Notes)
}

func appendUnique(list []string, value string) []string {
	if value == "" {
		return list
	}
	for _, existing := range list {
		if existing == value {
			return list
		}
	}
	return append(list, value)
}

func uniqueSorted(dates []Date) []Date {
	seen := make(map[Date]struct{}, len(dates))
	out := make([]Date, 0, len(dates))
	for _, d := range dates {
		if _, ok := seen[d]; ok {
			continue
		}
		seen[d] = struct{}{}
		out = append(out, d)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Before(out[j]) })
	return out
}
