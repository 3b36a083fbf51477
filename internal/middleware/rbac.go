package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sgea-api/internal/models"
	appErrors "github.com/noah-isme/sgea-api/pkg/errors"
	"github.com/noah-isme/sgea-api/pkg/response"
)

// RequireRoles rejects callers whose token role is not listed. Services still
// check roles against the stored user; this only short-circuits whole route
// groups.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles))
	for _, r := range roles {
		allowed[r] = struct{}{}
	}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.Clone(appErrors.ErrRoleNotPermitted, "role "+claims.Role.Label()+" not permitted"))
			c.Abort()
			return
		}
		c.Next()
	}
}
