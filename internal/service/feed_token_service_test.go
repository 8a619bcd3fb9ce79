package service

import (
	"context"
	"net/http"
	"net/url"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/pkg/feedtoken"
)

func newFeedTokenService() *FeedTokenService {
	apartments := newStubApartments(models.Apartment{ID: "apt-1", Name: "Loft North", Active: true})
	return NewFeedTokenService(feedtoken.NewSigner("feed-secret", 0), apartments, nil, nil, FeedTokenConfig{
		PublicBaseURL: "https://calendar.example.com/",
		APIPrefix:     "/api/v1",
	})
}

func TestFeedTokenServiceIssueAndVerify(t *testing.T) {
	svc := newFeedTokenService()

	res, err := svc.Issue(context.Background(), "apt-1", dto.IssueFeedTokenRequest{Scope: "availability", TTLHours: 24})
	require.NoError(t, err)

	parsed, err := url.Parse(res.SubscribeURL)
	require.NoError(t, err)
	assert.Equal(t, "/api/v1/feeds/apartments/apt-1/availability.ics", parsed.Path)
	assert.Equal(t, res.Token, parsed.Query().Get("token"))

	access, err := svc.Verify(res.Token, "apt-1", models.FeedModeAvailability)
	require.NoError(t, err)
	assert.Equal(t, "token", access.Method)
	assert.Equal(t, "availability", access.Scope)

	_, err = svc.Verify(res.Token, "apt-1", models.FeedModeBookings)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
	_, err = svc.Verify(res.Token, "apt-2", models.FeedModeAvailability)
	assert.Equal(t, http.StatusForbidden, statusOf(t, err))
}

func TestFeedTokenServiceWildcardScope(t *testing.T) {
	svc := newFeedTokenService()

	res, err := svc.Issue(context.Background(), "apt-1", dto.IssueFeedTokenRequest{Scope: "*"})
	require.NoError(t, err)
	assert.Contains(t, res.SubscribeURL, "/calendar.ics?token=")

	for _, mode := range []models.FeedMode{models.FeedModeAvailability, models.FeedModeBookings, models.FeedModeCalendar} {
		_, err := svc.Verify(res.Token, "apt-1", mode)
		assert.NoError(t, err, mode)
	}
}

func TestFeedTokenServiceRejects(t *testing.T) {
	svc := newFeedTokenService()

	_, err := svc.Issue(context.Background(), "apt-1", dto.IssueFeedTokenRequest{Scope: "everything"})
	assert.Equal(t, http.StatusBadRequest, statusOf(t, err))

	_, err = svc.Issue(context.Background(), "missing", dto.IssueFeedTokenRequest{Scope: "bookings"})
	assert.Equal(t, http.StatusNotFound, statusOf(t, err))

	_, err = svc.Verify("garbage", "apt-1", models.FeedModeAvailability)
	assert.Equal(t, http.StatusUnauthorized, statusOf(t, err))
}
