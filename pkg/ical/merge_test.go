package ical

import (
	"math/rand"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func d(t *testing.T, raw string) Date {
	t.Helper()
	parsed, err := ParseDate(raw)
	require.NoError(t, err)
	return parsed
}

func TestMergeConsecutiveRuns(t *testing.T) {
	dates := []Date{d(t, "2024-01-10"), d(t, "2024-01-02"), d(t, "2024-01-01"), d(t, "2024-01-03"), d(t, "2024-01-02")}

	ranges := Merge(dates)

	require.Len(t, ranges, 2)
	assert.Equal(t, d(t, "2024-01-01"), ranges[0].Start)
	assert.Equal(t, d(t, "2024-01-04"), ranges[0].End)
	assert.Equal(t, d(t, "2024-01-10"), ranges[1].Start)
	assert.Equal(t, d(t, "2024-01-11"), ranges[1].End)
	assert.Equal(t, 3, ranges[0].Nights())
}

func TestMergeEmptyAndSingle(t *testing.T) {
	assert.Empty(t, Merge(nil))

	ranges := Merge([]Date{d(t, "2024-01-05")})
	require.Len(t, ranges, 1)
	assert.Equal(t, d(t, "2024-01-05"), ranges[0].Start)
	assert.Equal(t, d(t, "2024-01-06"), ranges[0].End)
}

func TestMergeAcrossMonthAndLeapDay(t *testing.T) {
	ranges := Merge([]Date{d(t, "2024-02-28"), d(t, "2024-02-29"), d(t, "2024-03-01")})
	require.Len(t, ranges, 1)
	assert.Equal(t, "2024-03-02", ranges[0].End.String())
}

func TestMergeCoversExactlyTheInput(t *testing.T) {
	rng := rand.New(rand.NewSource(42))
	base := d(t, "2024-01-01")
	for round := 0; round < 50; round++ {
		input := map[Date]struct{}{}
		dates := make([]Date, 0, 40)
		for i := 0; i < 40; i++ {
			day := base.AddDays(rng.Intn(90))
			input[day] = struct{}{}
			dates = append(dates, day)
		}

		ranges := Merge(dates)

		covered := map[Date]struct{}{}
		for i, r := range ranges {
			require.True(t, r.End.After(r.Start))
			if i > 0 {
				// strictly after the previous end, otherwise the runs would have been joined
				require.True(t, r.Start.After(ranges[i-1].End))
			}
			for day := r.Start; day.Before(r.End); day = day.AddDays(1) {
				covered[day] = struct{}{}
			}
		}
		require.Equal(t, input, covered)
	}
}

func TestMergeByStatusSplitsAtStatusBoundary(t *testing.T) {
	days := []Day{
		{Date: d(t, "2024-05-01"), Status: DayBooked, Reference: "BK-1"},
		{Date: d(t, "2024-05-02"), Status: DayBooked, Reference: "BK-1"},
		{Date: d(t, "2024-05-03"), Status: DayBlocked, Notes: "painting"},
		{Date: d(t, "2024-05-04"), Status: DayAvailable},
		{Date: d(t, "2024-05-05"), Status: DayBlocked, Notes: "painting"},
	}

	ranges := MergeByStatus(days)

	require.Len(t, ranges, 3)
	assert.Equal(t, DayBooked, ranges[0].Status)
	assert.Equal(t, "2024-05-03", ranges[0].End.String())
	assert.Equal(t, []string{"BK-1"}, ranges[0].References)
	assert.Equal(t, DayBlocked, ranges[1].Status)
	assert.Equal(t, "2024-05-04", ranges[1].End.String())
	assert.Equal(t, []string{"painting"}, ranges[1].Notes)
	assert.Equal(t, "2024-05-05", ranges[2].Start.String())
}

func TestMergeByStatusBookedWinsOnDuplicateDate(t *testing.T) {
	days := []Day{
		{Date: d(t, "2024-05-01"), Status: DayBlocked},
		{Date: d(t, "2024-05-01"), Status: DayBooked},
		{Date: d(t, "2024-05-01"), Status: DayBlocked},
	}

	ranges := MergeByStatus(days)

	require.Len(t, ranges, 1)
	assert.Equal(t, DayBooked, ranges[0].Status)
	assert.Equal(t, 1, ranges[0].Nights())
}

func TestMergeByStatusIgnoresAvailable(t *testing.T) {
	assert.Empty(t, MergeByStatus([]Day{{Date: d(t, "2024-05-01"), Status: DayAvailable}}))
}

func TestDateHelpers(t *testing.T) {
	compact, err := ParseDate("20240301")
	require.NoError(t, err)
	assert.Equal(t, d(t, "2024-03-01"), compact)
	assert.Equal(t, "20240301", compact.Compact())

	_, err = ParseDate("2024-13-01")
	require.Error(t, err)

	assert.False(t, NewDate(2023, time.February, 29).Valid())
	assert.True(t, NewDate(2024, time.February, 29).Valid())
	assert.Equal(t, 4, d(t, "2024-03-01").DaysUntil(d(t, "2024-03-05")))

	text, err := compact.MarshalText()
	require.NoError(t, err)
	assert.Equal(t, "2024-03-01", string(text))

	var decoded Date
	require.NoError(t, decoded.UnmarshalText([]byte("2024-03-01")))
	assert.Equal(t, compact, decoded)

	r := Range{Start: d(t, "2024-03-01"), End: d(t, "2024-03-03")}
	assert.True(t, r.Contains(d(t, "2024-03-02")))
	assert.False(t, r.Contains(d(t, "2024-03-03")))
}
