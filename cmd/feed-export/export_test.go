package main

import (
	"context"
	"errors"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

const sampleManifest = `
output_dir: ./out
workers: 3
apartments:
  - id: apt-1
    modes: [availability, bookings]
  - id: apt-2
blocks:
  - apartment_id: apt-2
    start_date: "2024-03-10"
    end_date: "2024-03-12"
    notes: deep clean
`

func TestParseManifest(t *testing.T) {
	m, err := parseManifest([]byte(sampleManifest))
	require.NoError(t, err)

	assert.Equal(t, "./out", m.OutputDir)
	assert.Equal(t, 3, m.Workers)
	require.Len(t, m.Apartments, 2)
	assert.Equal(t, []models.FeedMode{models.FeedModeAvailability, models.FeedModeBookings}, m.Apartments[0].Modes)
	assert.Equal(t, []models.FeedMode{models.FeedModeAvailability}, m.Apartments[1].Modes)

	blocks, err := m.extraBlocks()
	require.NoError(t, err)
	require.Len(t, blocks["apt-2"], 1)
	assert.Equal(t, ical.NewDate(2024, time.March, 10), blocks["apt-2"][0].Start)
	assert.Equal(t, "deep clean", blocks["apt-2"][0].Notes)
}

func TestParseManifestRejectsUnknownMode(t *testing.T) {
	_, err := parseManifest([]byte("apartments:\n  - id: apt-1\n    modes: [weekly]\n"))
	assert.Error(t, err)

	_, err = parseManifest([]byte("workers: 2\n"))
	assert.Error(t, err)
}

func TestManifestBlockWithBadDate(t *testing.T) {
	m, err := parseManifest([]byte(`
apartments:
  - id: apt-1
blocks:
  - apartment_id: apt-1
    start_date: "2024-02-30"
    end_date: "2024-03-02"
`))
	require.NoError(t, err)

	_, err = m.extraBlocks()
	var invalid *ical.ValidationError
	require.ErrorAs(t, err, &invalid)
	assert.Equal(t, "manifest-block-0", invalid.UID)
	assert.Contains(t, invalid.Reason, "start_date")
}

func TestManifestBlocksMatchTrimmedApartmentIDs(t *testing.T) {
	m, err := parseManifest([]byte(`
apartments:
  - id: " apt-1 "
blocks:
  - apartment_id: " apt-1"
    start_date: "2024-03-01"
    end_date: "2024-03-02"
`))
	require.NoError(t, err)
	require.Equal(t, "apt-1", m.Apartments[0].ID)

	blocks, err := m.extraBlocks()
	require.NoError(t, err)
	assert.Len(t, blocks[m.Apartments[0].ID], 1)
	assert.NotContains(t, blocks, " apt-1")
}

type storedRows struct {
	rows []models.AvailabilityDay
}

func (s storedRows) ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error) {
	return append([]models.AvailabilityDay(nil), s.rows...), nil
}

func TestBlockOverlayKeepsStoredRows(t *testing.T) {
	booked := time.Date(2024, 3, 11, 0, 0, 0, 0, time.UTC)
	overlay := &blockOverlay{
		base: storedRows{rows: []models.AvailabilityDay{{ApartmentID: "apt-1", Date: booked, Status: models.AvailabilityBooked}}},
		blocks: map[string][]extraBlock{
			"apt-1": {{Start: ical.NewDate(2024, time.March, 10), End: ical.NewDate(2024, time.March, 13), Notes: "paint"}},
		},
	}
	window := models.DateWindow{
		Start: time.Date(2024, 3, 1, 0, 0, 0, 0, time.UTC),
		End:   time.Date(2024, 3, 12, 0, 0, 0, 0, time.UTC),
	}

	rows, err := overlay.ListUnavailable(context.Background(), "apt-1", window)
	require.NoError(t, err)

	require.Len(t, rows, 2)
	assert.Equal(t, time.Date(2024, 3, 10, 0, 0, 0, 0, time.UTC), rows[0].Date)
	assert.Equal(t, models.AvailabilityBlocked, rows[0].Status)
	require.NotNil(t, rows[0].Notes)
	assert.Equal(t, "paint", *rows[0].Notes)
	assert.Equal(t, models.AvailabilityBooked, rows[1].Status)

	other, err := overlay.ListUnavailable(context.Background(), "apt-2", window)
	require.NoError(t, err)
	assert.Len(t, other, 1)
}

type fakeRenderer struct {
	mu       sync.Mutex
	failures map[string]int
}

func (f *fakeRenderer) Render(ctx context.Context, apartmentID string, mode models.FeedMode) (*models.FeedDocument, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failures[apartmentID] > 0 {
		f.failures[apartmentID]--
		return nil, errors.New("database unavailable")
	}
	return &models.FeedDocument{ApartmentID: apartmentID, Mode: mode, Filename: apartmentID + "-" + string(mode) + ".ics", Body: "BEGIN:VCALENDAR\r\n"}, nil
}

type memoryStore struct {
	mu    sync.Mutex
	files map[string][]byte
}

func (m *memoryStore) Save(filename string, data []byte) (string, error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.files[filename] = data
	return filename, nil
}

func TestBatchExporterRetriesAndReportsFailures(t *testing.T) {
	store := &memoryStore{files: map[string][]byte{}}
	exporter := &batchExporter{
		feeds:      &fakeRenderer{failures: map[string]int{"apt-1": 1, "apt-2": 10}},
		store:      store,
		logger:     zap.NewNop(),
		workers:    2,
		retries:    1,
		retryDelay: time.Millisecond,
	}

	result, err := exporter.Run(context.Background(), []manifestApartment{
		{ID: "apt-1", Modes: []models.FeedMode{models.FeedModeAvailability}},
		{ID: "apt-2", Modes: []models.FeedMode{models.FeedModeBookings}},
		{ID: "apt-3", Modes: []models.FeedMode{models.FeedModeCalendar}},
	})
	require.NoError(t, err)

	sort.Strings(result.Written)
	assert.Equal(t, []string{"apt-1-availability.ics", "apt-3-calendar.ics"}, result.Written)
	assert.Equal(t, []exportTask{{ApartmentID: "apt-2", Mode: models.FeedModeBookings}}, result.Failed)
	assert.Len(t, store.files, 2)
}
