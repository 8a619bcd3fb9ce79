package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coliving-calendar-api/internal/dto"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

type feedTokenIssuer interface {
	Issue(ctx context.Context, apartmentID string, req dto.IssueFeedTokenRequest) (*dto.FeedTokenResponse, error)
}

// FeedTokenHandler mints subscription links for calendar clients.
type FeedTokenHandler struct {
	tokens feedTokenIssuer
}

// NewFeedTokenHandler constructs handler.
func NewFeedTokenHandler(tokens feedTokenIssuer) *FeedTokenHandler {
	return &FeedTokenHandler{tokens: tokens}
}

// Issue godoc
// @Summary Issue a feed subscription token
// @Tags Feeds
// @Accept json
// @Produce json
// @Security BearerAuth
// @Param id path string true "Apartment ID"
// @Param payload body dto.IssueFeedTokenRequest true "Token scope"
// @Success 201 {object} response.Envelope
// @Router /admin/apartments/{id}/feed-tokens [post]
func (h *FeedTokenHandler) Issue(c *gin.Context) {
	var req dto.IssueFeedTokenRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid token payload"))
		return
	}
	token, err := h.tokens.Issue(c.Request.Context(), c.Param("id"), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.Created(c, token)
}
