package middleware

import (
	"context"
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coliving-calendar-api/internal/models"
	appErrors "github.com/noah-isme/coliving-calendar-api/pkg/errors"
	"github.com/noah-isme/coliving-calendar-api/pkg/response"
)

// ContextFeedAccessKey stores the *models.FeedAccess of an authorised feed request.
const ContextFeedAccessKey = "feedAccess"

// APIKeyHeader carries integration keys.
const APIKeyHeader = "X-API-Key"

type feedTokenVerifier interface {
	Verify(token, apartmentID string, mode models.FeedMode) (*models.FeedAccess, error)
}

type apiKeyAuthenticator interface {
	Authenticate(ctx context.Context, raw string) (*models.APIKey, error)
}

// FeedAccess authorises a feed request for mode. An X-API-Key header grants every
// feed; otherwise the signed ?token= must cover the apartment in :id and the mode.
func FeedAccess(tokens feedTokenVerifier, keys apiKeyAuthenticator, mode models.FeedMode) gin.HandlerFunc {
	return func(c *gin.Context) {
		if raw := strings.TrimSpace(c.GetHeader(APIKeyHeader)); raw != "" && keys != nil {
			key, err := keys.Authenticate(c.Request.Context(), raw)
			if err != nil {
				response.Error(c, err)
				c.Abort()
				return
			}
			c.Set(ContextFeedAccessKey, &models.FeedAccess{Method: "api_key", Subject: key.ID})
			c.Next()
			return
		}

		token := strings.TrimSpace(c.Query("token"))
		if token == "" || tokens == nil {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "feed token required"))
			c.Abort()
			return
		}
		access, err := tokens.Verify(token, c.Param("id"), mode)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		c.Set(ContextFeedAccessKey, access)
		c.Next()
	}
}
