package handler

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/middleware"
	"github.com/noah-isme/classroom-grading-api/internal/models"
	"github.com/noah-isme/classroom-grading-api/internal/service"
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

// actorFromContext turns verified claims into the service-layer actor. A missing claim yields
// the zero actor, which the authorization matrix treats as a non-member.
func actorFromContext(c *gin.Context) service.Actor {
	claims := claimsFromContext(c)
	if claims == nil {
		return service.Actor{}
	}
	return service.Actor{UserID: claims.UserID, Email: claims.Email, FullName: claims.FullName, Role: claims.Role}
}
