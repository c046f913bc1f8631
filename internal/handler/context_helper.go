package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/datashare-api/internal/middleware"
	"github.com/noah-isme/datashare-api/internal/models"
	appErrors "github.com/noah-isme/datashare-api/pkg/errors"
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

// actorFromContext returns the authenticated organization and user.
func actorFromContext(c *gin.Context) (models.Actor, error) {
	claims := claimsFromContext(c)
	if claims == nil || claims.OrgID == "" || claims.UserID == "" {
		return models.Actor{}, appErrors.ErrUnauthorized
	}
	return models.Actor{OrgID: claims.OrgID, UserID: claims.UserID}, nil
}
