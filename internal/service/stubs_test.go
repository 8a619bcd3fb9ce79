package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

var pinnedNow = time.Date(2024, 3, 1, 9, 30, 0, 0, time.UTC)

func pinnedClock() time.Time { return pinnedNow }

func strPtr(v string) *string { return &v }

func day(raw string) time.Time {
	d, err := ical.ParseDate(raw)
	if err != nil {
		panic(err)
	}
	return d.Time()
}

type stubApartments struct {
	items  map[string]*models.Apartment
	active []models.Apartment
	err    error
}

func newStubApartments(apartments ...models.Apartment) *stubApartments {
	s := &stubApartments{items: map[string]*models.Apartment{}}
	for i := range apartments {
		a := apartments[i]
		s.items[a.ID] = &a
		if a.Active {
			s.active = append(s.active, a)
		}
	}
	return s
}

func (s *stubApartments) GetByID(ctx context.Context, id string) (*models.Apartment, error) {
	if s.err != nil {
		return nil, s.err
	}
	a, ok := s.items[id]
	if !ok {
		return nil, fmt.Errorf("get apartment: %w", sql.ErrNoRows)
	}
	return a, nil
}

func (s *stubApartments) ListActive(ctx context.Context) ([]models.Apartment, error) {
	return s.active, s.err
}

type stubAvailability struct {
	days       []models.AvailabilityDay
	err        error
	calls      int
	lastWindow models.DateWindow

	upserted  int64
	upsertErr error
	deleted   int64
	lastNotes *string
}

func (s *stubAvailability) ListUnavailable(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.AvailabilityDay, error) {
	s.calls++
	s.lastWindow = window
	return s.days, s.err
}

func (s *stubAvailability) UpsertBlocked(ctx context.Context, apartmentID string, window models.DateWindow, notes *string) (int64, error) {
	s.lastWindow = window
	s.lastNotes = notes
	if s.upsertErr != nil {
		return 0, s.upsertErr
	}
	return s.upserted, nil
}

func (s *stubAvailability) DeleteBlocked(ctx context.Context, apartmentID string, window models.DateWindow) (int64, error) {
	s.lastWindow = window
	return s.deleted, s.err
}

type stubBookings struct {
	all      []models.Booking
	windowed []models.Booking
	err      error
	calls    int
}

func (s *stubBookings) ListConfirmed(ctx context.Context, apartmentID string) ([]models.Booking, error) {
	s.calls++
	return s.all, s.err
}

func (s *stubBookings) ListConfirmedBetween(ctx context.Context, apartmentID string, window models.DateWindow) ([]models.Booking, error) {
	s.calls++
	return s.windowed, s.err
}

type stubFeedCache struct {
	mu          sync.Mutex
	entries     map[string][]byte
	invalidated []string
}

func newStubFeedCache() *stubFeedCache {
	return &stubFeedCache{entries: map[string][]byte{}}
}

func (c *stubFeedCache) Get(ctx context.Context, key string, dest interface{}) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()
	raw, ok := c.entries[key]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, dest)
}

func (c *stubFeedCache) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	c.entries[key] = raw
	return nil
}

func (c *stubFeedCache) Invalidate(ctx context.Context, pattern string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.invalidated = append(c.invalidated, pattern)
	prefix := strings.TrimSuffix(pattern, "*")
	for key := range c.entries {
		if strings.HasPrefix(key, prefix) {
			delete(c.entries, key)
		}
	}
	return nil
}

type stubInvalidator struct {
	calls []string
	err   error
}

func (s *stubInvalidator) Invalidate(ctx context.Context, apartmentID string) error {
	s.calls = append(s.calls, apartmentID)
	return s.err
}
