package ical

import (
	"fmt"
	"strings"
	"time"

	ics "github.com/arran4/golang-ical"
)

const (
	defaultProdID   = "-//Coliving//Calendar Feed//EN"
	defaultTimezone = "UTC"
	defaultRefresh  = time.Hour
)

// Config holds deployment specific document settings.
type Config struct {
	ProductID       string
	Timezone        string
	RefreshInterval time.Duration
	UIDDomain       string
}

// Option customises a Builder.
type Option func(*Builder)

// WithClock overrides the generation timestamp source.
func WithClock(now func() time.Time) Option {
	return func(b *Builder) {
		if now != nil {
			b.now = now
		}
	}
}

// Builder renders all-day events into an iCalendar document.
type Builder struct {
	cfg Config
	now func() time.Time
}

// NewBuilder constructs a Builder, filling unset config with defaults.
func NewBuilder(cfg Config, opts ...Option) *Builder {
	if cfg.ProductID == "" {
		cfg.ProductID = defaultProdID
	}
	if cfg.Timezone == "" {
		cfg.Timezone = defaultTimezone
	}
	if cfg.RefreshInterval <= 0 {
		cfg.RefreshInterval = defaultRefresh
	}
	b := &Builder{cfg: cfg, now: time.Now}
	for _, opt := range opts {
		opt(b)
	}
	return b
}

// Now returns the generation timestamp the next Build would stamp, truncated to
// the second precision of DTSTAMP.
func (b *Builder) Now() time.Time {
	return b.now().UTC().Truncate(time.Second)
}

// Build renders the document for one resource stamped with the builder clock.
func (b *Builder) Build(resourceID, resourceName, timezone string, events []Event) (string, error) {
	return b.BuildAt(b.Now(), resourceID, resourceName, timezone, events)
}

// BuildAt renders the document with an explicit DTSTAMP. Every event is validated
// before any output is produced; an invalid event yields a *ValidationError.
// An empty timezone falls back to the configured one.
func (b *Builder) BuildAt(stamp time.Time, resourceID, resourceName, timezone string, events []Event) (string, error) {
	for _, ev := range events {
		if err := ev.Validate(); err != nil {
			return "", err
		}
	}
	if timezone == "" {
		timezone = b.cfg.Timezone
	}
	refresh := FormatDuration(b.cfg.RefreshInterval)

	cal := ics.NewCalendar()
	cal.SetProductId(b.cfg.ProductID)
	cal.SetCalscale("GREGORIAN")
	cal.SetMethod(ics.MethodPublish)
	cal.SetXWRCalName(plainText(resourceName))
	cal.SetXWRTimezone(plainText(timezone))
	if resourceID != "" {
		cal.SetXWRCalID(plainText(resourceID))
	}
	cal.SetRefreshInterval(refresh)
	cal.SetXPublishedTTL(refresh)

	for _, ev := range events {
		vevent := cal.AddEvent(plainText(b.uid(ev.UID)))
		vevent.SetDtStampTime(stamp)
		vevent.SetAllDayStartAt(ev.Start.Time())
		vevent.SetAllDayEndAt(ev.End.Time())
		vevent.SetSummary(plainText(ev.Summary))
		vevent.SetDescription(plainText(ev.Description))
		vevent.SetStatus(ics.ObjectStatus(ev.Status))
		vevent.SetTimeTransparency(ics.TransparencyOpaque)
	}

	return cal.Serialize(ics.WithNewLineWindows), nil
}

func (b *Builder) uid(raw string) string {
	if b.cfg.UIDDomain == "" || strings.Contains(raw, "@") {
		return raw
	}
	return raw + "@" + b.cfg.UIDDomain
}

// FormatDuration renders d as an iCalendar DURATION value, e.g. PT1H or P1D.
func FormatDuration(d time.Duration) string {
	d = d.Truncate(time.Second)
	if d <= 0 {
		return "PT0S"
	}
	day := 24 * time.Hour
	if d%day == 0 {
		return fmt.Sprintf("P%dD", d/day)
	}

	var sb strings.Builder
	sb.WriteString("P")
	if days := d / day; days > 0 {
		fmt.Fprintf(&sb, "%dD", days)
		d -= days * day
	}
	sb.WriteString("T")
	if h := d / time.Hour; h > 0 {
		fmt.Fprintf(&sb, "%dH", h)
		d -= h * time.Hour
	}
	if m := d / time.Minute; m > 0 {
		fmt.Fprintf(&sb, "%dM", m)
		d -= m * time.Minute
	}
	if s := d / time.Second; s > 0 {
		fmt.Fprintf(&sb, "%dS", s)
	}
	return sb.String()
}

// plainText drops carriage returns; the serializer escapes the rest.
func plainText(s string) string {
	return strings.ReplaceAll(s, "\r", "")
}
