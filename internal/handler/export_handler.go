package handler

import (
	"errors"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"strings"

	"github.com/gin-gonic/gin"

	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
	"github.com/noah-isme/coliving-calendar-api/pkg/storage"
)

type exportStore interface {
	List() ([]string, error)
	Open(filename string) (*os.File, error)
}

// ExportHandler serves calendar files written by the batch exporter.
type ExportHandler struct {
	store exportStore
}

// NewExportHandler constructs handler.
func NewExportHandler(store exportStore) *ExportHandler {
	return &ExportHandler{store: store}
}

// List godoc
// @Summary List exported calendar files
// @Tags Exports
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/exports [get]
func (h *ExportHandler) List(c *gin.Context) {
	files, err := h.store.List()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list exports"))
		return
	}
	response.JSON(c, http.StatusOK, files, nil)
}

// Download godoc
// @Summary Download an exported calendar file
// @Tags Exports
// @Produce text/calendar
// @Security BearerAuth
// @Param path path string true "File path relative to the export directory"
// @Success 200 {file} file
// @Router /admin/exports/{path} [get]
func (h *ExportHandler) Download(c *gin.Context) {
	name := strings.TrimPrefix(c.Param("path"), "/")
	file, err := h.store.Open(name)
	if err != nil {
		switch {
		case errors.Is(err, storage.ErrInvalidPath):
			response.Error(c, appErrors.Clone(appErrors.ErrValidation, "invalid export path"))
		case errors.Is(err, os.ErrNotExist):
			response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export not found"))
		default:
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to open export"))
		}
		return
	}
	defer file.Close() //nolint:errcheck

	info, err := file.Stat()
	if err != nil || info.IsDir() {
		response.Error(c, appErrors.Clone(appErrors.ErrNotFound, "export not found"))
		return
	}
	base := filepath.Base(name)
	c.Header("Content-Disposition", fmt.Sprintf("attachment; filename=%q", base))
	if strings.HasSuffix(base, ".ics") {
		c.Header("Content-Type", "text/calendar; charset=utf-8")
	}
	http.ServeContent(c.Writer, c.Request, base, info.ModTime(), file)
}
