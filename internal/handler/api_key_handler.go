package handler

import (
	"context"
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type apiKeyManager interface {
	Create(ctx context.Context, req dto.CreateAPIKeyRequest, createdBy string) (*dto.CreatedAPIKey, error)
	List(ctx context.Context) ([]models.APIKey, error)
	Revoke(ctx context.Context, id string) error
}

// APIKeyHandler manages integration keys for feed consumers.
type APIKeyHandler struct {
	keys apiKeyManager
}

// NewAPIKeyHandler constructs handler.
func NewAPIKeyHandler(keys apiKeyManager) *APIKeyHandler {
	return &APIKeyHandler{keys: keys}
}

// List godoc
// @Summary List API keys
// @Tags API Keys
// @Produce json
// @Security BearerAuth
// @Success 200 {object} response.Envelope
// @Router /admin/api-keys [get]
func (h *APIKeyHandler) List(c *gin.Context) {
	keys, err := h.keys.List(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	response.JSON(c, http.StatusOK, keys, nil)
}

// Create godoc
// @Summary Create an API key
// @Description The raw key is only returned once.
// @Tags API Keys
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param payload body dto.CreateAPIKeyRequest true "Key name"
// @Success 201 {object} response.Envelope
// @Router /admin/api-keys [post]
func (h *APIKeyHandler) Create(c *gin.Context) {
	var req dto.CreateAPIKeyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid api key payload"))
		return
	}
	claims := claimsFromContext(c)
	if claims == nil {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}
	created, err := h.keys.Create(c.Request.Context(), req, claims.UserID)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, created)
}

// Revoke godoc
// @Summary Revoke an API key
// @Tags API Keys
// @Security BearerAuth
// @Param id path string true "API key ID"
// @Success 204
// @Router /admin/api-keys/{id} [delete]
func (h *APIKeyHandler) Revoke(c *gin.Context) {
	if err := h.keys.Revoke(c.Request.Context(), c.Param("id")); err != nil {
		response.Error(c, err)
		return
	}
	response.NoContent(c)
}
