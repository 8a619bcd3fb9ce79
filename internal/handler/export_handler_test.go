package handler

import (
	"encoding/json"
	"net/http"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/noah-isme/coliving-calendar-api/pkg/storage"
)

func newExportStore(t *testing.T) *storage.LocalStorage {
	store, err := storage.NewLocalStorage(t.TempDir())
	require.NoError(t, err)
	_, err = store.Save("2024-03-01/loft-availability.ics", []byte("BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n"))
	require.NoError(t, err)
	return store
}

func TestExportHandlerList(t *testing.T) {
	handler := NewExportHandler(newExportStore(t))

	c, w := newGinContext(http.MethodGet, "/admin/exports", nil)
	handler.List(c)

	require.Equal(t, http.StatusOK, w.Code)
	var body struct {
		Data []string `json:"data"`
	}
	require.NoError(t, json.Unmarshal(w.Body.Bytes(), &body))
	assert.Equal(t, []string{"2024-03-01/loft-availability.ics"}, body.Data)
}

func TestExportHandlerDownload(t *testing.T) {
	handler := NewExportHandler(newExportStore(t))

	c, w := newGinContext(http.MethodGet, "/admin/exports/2024-03-01/loft-availability.ics", nil)
	c.Params = gin.Params{{Key: "path", Value: "/2024-03-01/loft-availability.ics"}}
	handler.Download(c)

	require.Equal(t, http.StatusOK, w.Code)
	assert.Contains(t, w.Header().Get("Content-Type"), "text/calendar")
	assert.Contains(t, w.Header().Get("Content-Disposition"), `filename="loft-availability.ics"`)
	assert.Equal(t, "BEGIN:VCALENDAR\r\nEND:VCALENDAR\r\n", w.Body.String())
}

func TestExportHandlerDownloadErrors(t *testing.T) {
	handler := NewExportHandler(newExportStore(t))

	cases := map[string]int{
		"/missing.ics":     http.StatusNotFound,
		"/2024-03-01":      http.StatusNotFound,
		"/../../etc/hosts": http.StatusBadRequest,
	}
	for path, status := range cases {
		c, w := newGinContext(http.MethodGet, "/admin/exports"+path, nil)
		c.Params = gin.Params{{Key: "path", Value: path}}
		handler.Download(c)
		assert.Equal(t, status, w.Code, path)
	}
}
