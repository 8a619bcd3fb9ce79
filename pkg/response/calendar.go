package response

import (
	"fmt"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gosimple/slug"
)

// CalendarContentType is the media type of iCalendar documents.
const CalendarContentType = "text/calendar; charset=utf-8"

// CachePolicy describes how long clients and proxies may reuse a feed.
type CachePolicy struct {
	MaxAge time.Duration
}

// NoCache forces calendar clients to revalidate on every poll.
var NoCache = CachePolicy{}

// CacheFor allows public caching for ttl.
func CacheFor(ttl time.Duration) CachePolicy {
	return CachePolicy{MaxAge: ttl}
}

// Header renders the Cache-Control value.
func (p CachePolicy) Header() string {
	if p.MaxAge <= 0 {
		return "no-cache, no-store, must-revalidate"
	}
	return "public, max-age=" + strconv.Itoa(int(p.MaxAge/time.Second))
}

// CalendarFile is a rendered feed ready to be written.
type CalendarFile struct {
	Filename    string
	Body        string
	GeneratedAt time.Time
	CacheHit    bool
}

// Calendar writes an iCalendar document as an attachment.
func Calendar(c *gin.Context, file CalendarFile, policy CachePolicy) {
	filename := file.Filename
	if filename == "" {
		filename = "calendar.ics"
	}
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", filename))
	c.Header("Cache-Control", policy.Header())
	if policy.MaxAge <= 0 {
		c.Header("Pragma", "no-cache")
	}
	if !file.GeneratedAt.IsZero() {
		c.Header("Last-Modified", file.GeneratedAt.UTC().Format(http.TimeFormat))
	}
	if file.CacheHit {
		c.Header("X-Cache", "HIT")
	} else {
		c.Header("X-Cache", "MISS")
	}
	c.Data(http.StatusOK, CalendarContentType, []byte(file.Body))
}

// Filename builds a download name such as "loft-north-availability.ics".
func Filename(name, suffix, ext string) string {
	base := slug.Make(name)
	if base == "" {
		base = "calendar"
	}
	if suffix != "" {
		base += "-" + slug.Make(suffix)
	}
	return base + "." + ext
}
