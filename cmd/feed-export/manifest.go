package main

import (
	"fmt"
	"os"
	"strings"

	"gopkg.in/yaml.v3"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

// manifest describes one batch export run.
type manifest struct {
	OutputDir  string              `yaml:"output_dir"`
	Workers    int                 `yaml:"workers"`
	Retries    int                 `yaml:"retries"`
	Apartments []manifestApartment `yaml:"apartments"`
	Blocks     []manifestBlock     `yaml:"blocks"`
}

type manifestApartment struct {
	ID    string            `yaml:"id"`
	Modes []models.FeedMode `yaml:"modes"`
}

// manifestBlock adds blocked nights on top of what is stored for the apartment.
type manifestBlock struct {
	ApartmentID string `yaml:"apartment_id"`
	StartDate   string `yaml:"start_date"`
	EndDate     string `yaml:"end_date"`
	Notes       string `yaml:"notes"`
}

type extraBlock struct {
	Start ical.Date
	End   ical.Date
	Notes string
}

func loadManifest(path string) (*manifest, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("read manifest: %w", err)
	}
	return parseManifest(raw)
}

func parseManifest(raw []byte) (*manifest, error) {
	var m manifest
	if err := yaml.Unmarshal(raw, &m); err != nil {
		return nil, fmt.Errorf("decode manifest: %w", err)
	}
	if len(m.Apartments) == 0 {
		return nil, fmt.Errorf("manifest lists no apartments")
	}
	for i := range m.Apartments {
		apt := &m.Apartments[i]
		apt.ID = strings.TrimSpace(apt.ID)
		if apt.ID == "" {
			return nil, fmt.Errorf("apartments[%d]: id is required", i)
		}
		if len(apt.Modes) == 0 {
			apt.Modes = []models.FeedMode{models.FeedModeAvailability}
		}
		for _, mode := range apt.Modes {
			if !mode.Valid() {
				return nil, fmt.Errorf("apartments[%d]: unknown mode %q", i, mode)
			}
		}
	}
	if m.Workers <= 0 {
		m.Workers = 2
	}
	if m.Retries < 0 {
		m.Retries = 0
	}
	return &m, nil
}

// extraBlocks validates the manifest blocks and groups them by apartment.
func (m *manifest) extraBlocks() (map[string][]extraBlock, error) {
	blocks := make(map[string][]extraBlock)
	for i, b := range m.Blocks {
		uid := fmt.Sprintf("manifest-block-%d", i)
		start, err := ical.ParseDate(strings.TrimSpace(b.StartDate))
		if err != nil {
			return nil, &ical.ValidationError{UID: uid, Reason: fmt.Sprintf("invalid start_date %q", b.StartDate)}
		}
		end, err := ical.ParseDate(strings.TrimSpace(b.EndDate))
		if err != nil {
			return nil, &ical.ValidationError{UID: uid, Reason: fmt.Sprintf("invalid end_date %q", b.EndDate)}
		}
		if !start.Before(end) {
			return nil, &ical.ValidationError{UID: uid, Reason: "end_date must be after start_date"}
		}
		apartmentID := strings.TrimSpace(b.ApartmentID)
		if apartmentID == "" {
			return nil, &ical.ValidationError{UID: uid, Reason: "apartment_id is required"}
		}
		blocks[apartmentID] = append(blocks[apartmentID], extraBlock{Start: start, End: end, Notes: b.Notes})
	}
	return blocks, nil
}
