package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/classroom-grading-api/internal/models"
	appErrors "github.com/noah-isme/classroom-grading-api/pkg/errors"
	"github.com/noah-isme/classroom-grading-api/pkg/response"
)

// RequirePlatformRole gates platform-wide routes such as the admin listing.
// Classroom-scoped permissions are decided by the service layer, not here.
func RequirePlatformRole(roles ...models.PlatformRole) gin.HandlerFunc {
	allowed := make(map[models.PlatformRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	return func(c *gin.Context) {
		value, exists := c.Get(ContextUserKey)
		if !exists {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		claims, ok := value.(*models.JWTClaims)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrNoPermission)
			c.Abort()
			return
		}
		c.Next()
	}
}
