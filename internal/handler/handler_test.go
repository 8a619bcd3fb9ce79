package handler

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/middleware"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	"github.com/noah-isme/coliving-calendar-api/internal/service"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/ical"
)

func newGinContext(method, path string, body []byte) (*gin.Context, *httptest.ResponseRecorder) {
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	req, _ := http.NewRequest(method, path, bytes.NewReader(body))
	req.Header.Set("Content-Type", "application/json")
	c.Request = req
	return c, w
}

type feedRendererMock struct {
	doc     *models.FeedDocument
	err     error
	gotMode models.FeedMode
	gotID   string
}

func (m *feedRendererMock) Render(ctx context.Context, apartmentID string, mode models.FeedMode) (*models.FeedDocument, error) {
	m.gotID, m.gotMode = apartmentID, mode
	return m.doc, m.err
}

func (m *feedRendererMock) CacheTTL() time.Duration { return 30 * time.Minute }

func TestFeedHandlerAvailabilityIsCacheable(t *testing.T) {
	feeds := &feedRendererMock{doc: &models.FeedDocument{
		ApartmentID: "apt-1",
		Filename:    "loft-availability.ics",
		Body:        "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n",
		GeneratedAt: time.Date(2024, 3, 1, 9, 0, 0, 0, time.UTC),
		CacheHit:    true,
	}}
	handler := NewFeedHandler(feeds, nil)

	c, w := newGinContext(http.MethodGet, "/feeds/apartments/apt-1/availability.ics?token=t", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}
	c.Set(middleware.ContextFeedAccessKey, &models.FeedAccess{Method: "token"})

	handler.Availability(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "apt-1", feeds.gotID)
	assert.Equal(t, models.FeedModeAvailability, feeds.gotMode)
	assert.Equal(t, "public, max-age=1800", w.Header().Get("Cache-Control"))
	assert.Equal(t, "HIT", w.Header().Get("X-Cache"))
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", w.Body.String())
}

func TestFeedHandlerBookingsNotCached(t *testing.T) {
	feeds := &feedRendererMock{doc: &models.FeedDocument{ApartmentID: "apt-1", Filename: "loft-bookings.ics", Body: "x"}}
	handler := NewFeedHandler(feeds, nil)

	c, w := newGinContext(http.MethodGet, "/feeds/apartments/apt-1/bookings.ics", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Bookings(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, models.FeedModeBookings, feeds.gotMode)
	assert.Equal(t, "no-cache, no-store, must-revalidate", w.Header().Get("Cache-Control"))
}

func TestFeedHandlerInvalidFeed(t *testing.T) {
	feeds := &feedRendererMock{err: appErrors.Clone(appErrors.ErrInvalidFeed, "event invalid")}
	handler := NewFeedHandler(feeds, nil)

	c, w := newGinContext(http.MethodGet, "/feeds/apartments/apt-1/calendar.ics", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Calendar(c)

	assert.Equal(t, http.StatusUnprocessableEntity, w.Code)
	assert.Equal(t, models.FeedModeCalendar, feeds.gotMode)
}

type availabilityMock struct {
	query    dto.AvailabilityQuery
	blockReq dto.BlockRequest
	blockErr error
}

func (m *availabilityMock) Ranges(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.AvailabilityResponse, error) {
	m.query = query
	start, _ := ical.ParseDate(query.StartDate)
	return &dto.AvailabilityResponse{ApartmentID: apartmentID, StartDate: start, Ranges: []dto.AvailabilityRange{}}, nil
}

func (m *availabilityMock) Block(ctx context.Context, apartmentID string, req dto.BlockRequest) (*dto.BlockResult, error) {
	m.blockReq = req
	if m.blockErr != nil {
		return nil, m.blockErr
	}
	return &dto.BlockResult{ApartmentID: apartmentID, Days: 3}, nil
}

func (m *availabilityMock) Unblock(ctx context.Context, apartmentID string, query dto.AvailabilityQuery) (*dto.BlockResult, error) {
	m.query = query
	return &dto.BlockResult{ApartmentID: apartmentID, Days: 2}, nil
}

type reporterMock struct {
	format dto.ReportFormat
}

func (m *reporterMock) AvailabilityReport(ctx context.Context, apartmentID string, query dto.AvailabilityQuery, format dto.ReportFormat) (*dto.ReportFile, error) {
	m.format = format
	return &dto.ReportFile{Filename: "loft-availability-2024-03-01.csv", ContentType: "text/csv; charset=utf-8", Body: []byte("a,b\n")}, nil
}

func TestAvailabilityHandlerRanges(t *testing.T) {
	svc := &availabilityMock{}
	handler := NewAvailabilityHandler(svc, &reporterMock{})

	c, w := newGinContext(http.MethodGet, "/admin/apartments/apt-1/availability?start_date=2024-03-01&end_date=2024-04-01", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Ranges(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-01", svc.query.StartDate)
	assert.Equal(t, "2024-04-01", svc.query.EndDate)

	var body struct {
		Data dto.AvailabilityResponse `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, "apt-1", body.Data.ApartmentID)
}

func TestAvailabilityHandlerBlock(t *testing.T) {
	svc := &availabilityMock{}
	handler := NewAvailabilityHandler(svc, &reporterMock{})

	payload, _ := json.Marshal(dto.BlockRequest{StartDate: "2024-03-10", EndDate: "2024-03-13", Notes: "painting"})
	c, w := newGinContext(http.MethodPost, "/admin/apartments/apt-1/blocks", payload)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Block(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "painting", svc.blockReq.Notes)
}

func TestAvailabilityHandlerBlockConflict(t *testing.T) {
	svc := &availabilityMock{blockErr: appErrors.Clone(appErrors.ErrConflict, "dates already booked")}
	handler := NewAvailabilityHandler(svc, &reporterMock{})

	payload, _ := json.Marshal(dto.BlockRequest{StartDate: "2024-03-10", EndDate: "2024-03-13"})
	c, w := newGinContext(http.MethodPost, "/admin/apartments/apt-1/blocks", payload)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Block(c)

	assert.Equal(t, http.StatusConflict, w.Code)
}

func TestAvailabilityHandlerBlockMalformedJSON(t *testing.T) {
	handler := NewAvailabilityHandler(&availabilityMock{}, &reporterMock{})

	c, w := newGinContext(http.MethodPost, "/admin/apartments/apt-1/blocks", []byte("{"))
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Block(c)

	assert.Equal(t, http.StatusBadRequest, w.Code)
}

func TestAvailabilityHandlerUnblock(t *testing.T) {
	svc := &availabilityMock{}
	handler := NewAvailabilityHandler(svc, &reporterMock{})

	c, w := newGinContext(http.MethodDelete, "/admin/apartments/apt-1/blocks?start_date=2024-03-10&end_date=2024-03-12", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Unblock(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, "2024-03-10", svc.query.StartDate)
}

func TestAvailabilityHandlerReport(t *testing.T) {
	reports := &reporterMock{}
	handler := NewAvailabilityHandler(&availabilityMock{}, reports)

	c, w := newGinContext(http.MethodGet, "/admin/apartments/apt-1/availability/report?format=CSV", nil)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Report(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Equal(t, dto.ReportFormatCSV, reports.format)
	assert.Equal(t, `attachment; filename="loft-availability-2024-03-01.csv"`, w.Header().Get("Content-Disposition"))
	assert.Equal(t, "a,b\n", w.Body.String())
}

type feedTokenIssuerMock struct {
	req dto.IssueFeedTokenRequest
}

func (m *feedTokenIssuerMock) Issue(ctx context.Context, apartmentID string, req dto.IssueFeedTokenRequest) (*dto.FeedTokenResponse, error) {
	m.req = req
	return &dto.FeedTokenResponse{Token: "tok", Scope: req.Scope}, nil
}

func TestFeedTokenHandlerIssue(t *testing.T) {
	issuer := &feedTokenIssuerMock{}
	handler := NewFeedTokenHandler(issuer)

	payload, _ := json.Marshal(dto.IssueFeedTokenRequest{Scope: "availability", TTLHours: 24})
	c, w := newGinContext(http.MethodPost, "/admin/apartments/apt-1/feed-tokens", payload)
	c.Params = gin.Params{{Key: "id", Value: "apt-1"}}

	handler.Issue(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, 24, issuer.req.TTLHours)
}

type apiKeyManagerMock struct {
	createdBy string
	revokeErr error
}

func (m *apiKeyManagerMock) Create(ctx context.Context, req dto.CreateAPIKeyRequest, createdBy string) (*dto.CreatedAPIKey, error) {
	m.createdBy = createdBy
	return &dto.CreatedAPIKey{ID: "key-1", Name: req.Name, Key: "clv_abcdefgh_secret"}, nil
}

func (m *apiKeyManagerMock) List(ctx context.Context) ([]models.APIKey, error) {
	return []models.APIKey{{ID: "key-1", Name: "Channel manager", Prefix: "abcdefgh"}}, nil
}

func (m *apiKeyManagerMock) Revoke(ctx context.Context, id string) error {
	return m.revokeErr
}

func TestAPIKeyHandlerCreateUsesCaller(t *testing.T) {
	keys := &apiKeyManagerMock{}
	handler := NewAPIKeyHandler(keys)

	payload, _ := json.Marshal(dto.CreateAPIKeyRequest{Name: "Channel manager"})
	c, w := newGinContext(http.MethodPost, "/admin/api-keys", payload)
	c.Set(middleware.ContextUserKey, &models.JWTClaims{UserID: "admin-1", Role: models.RoleAdmin})

	handler.Create(c)

	require.Equal(t, http.StatusCreated, w.Code)
	assert.Equal(t, "admin-1", keys.createdBy)
	assert.Contains(t, w.Body.String(), "clv_abcdefgh_secret")
}

func TestAPIKeyHandlerListHidesHash(t *testing.T) {
	handler := NewAPIKeyHandler(&apiKeyManagerMock{})

	c, w := newGinContext(http.MethodGet, "/admin/api-keys", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.NotContains(t, w.Body.String(), "key_hash")
	assert.NotContains(t, w.Body.String(), "KeyHash")
}

func TestAPIKeyHandlerRevokeNotFound(t *testing.T) {
	handler := NewAPIKeyHandler(&apiKeyManagerMock{revokeErr: appErrors.Clone(appErrors.ErrNotFound, "api key not found")})

	c, w := newGinContext(http.MethodDelete, "/admin/api-keys/key-9", nil)
	c.Params = gin.Params{{Key: "id", Value: "key-9"}}

	handler.Revoke(c)

	assert.Equal(t, http.StatusNotFound, w.Code)
}

func TestMetricsHandlerReady(t *testing.T) {
	healthy := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingerFunc(func(ctx context.Context) error { return nil }),
	})
	c, w := newGinContext(http.MethodGet, "/ready", nil)
	healthy.Ready(c)
	assert.Equal(t, http.StatusOK, w.Code)

	degraded := NewMetricsHandler(service.NewMetricsService(), map[string]Pinger{
		"postgres": PingerFunc(func(ctx context.Context) error { return nil }),
		"redis":    PingerFunc(func(ctx context.Context) error { return errors.New("connection refused") }),
	})
	c, w = newGinContext(http.MethodGet, "/ready", nil)
	degraded.Ready(c)
	assert.Equal(t, http.StatusServiceUnavailable, w.Code)
	assert.Contains(t, w.Body.String(), "connection refused")
}

func TestMetricsHandlerSummary(t *testing.T) {
	handler := NewMetricsHandler(service.NewMetricsService(), nil)
	c, w := newGinContext(http.MethodGet, "/admin/metrics/summary", nil)

	handler.Summary(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Body.String(), "cache_hit_ratio")
}
