package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/coliving-calendar-api/internal/middleware"
	"github.com/noah-isme/coliving-calendar-api/internal/models"
)

func claimsFromContext(c *gin.Context) *models.JWTClaims {
	value, exists := c.Get(middleware.ContextUserKey)
	if !exists {
		return nil
	}
	claims, ok := value.(*models.JWTClaims)
	if !ok {
		return nil
	}
	return claims
}

func feedAccessFromContext(c *gin.Context) *models.FeedAccess {
	value, exists := c.Get(middleware.ContextFeedAccessKey)
	if !exists {
		return nil
	}
	access, ok := value.(*models.FeedAccess)
	if !ok {
		return nil
	}
	return access
}
