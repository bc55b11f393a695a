package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/noah-isme/sk-governance-api/internal/models"
	appErrors "github.com/noah-isme/sk-governance-api/pkg/errors"
	"github.com/noah-isme/sk-governance-api/pkg/response"
)

// RequireRoles allows the request through only when the caller holds one of roles.
// SUPERADMIN passes every check.
func RequireRoles(roles ...models.UserRole) gin.HandlerFunc {
	allowed := make(map[models.UserRole]struct{}, len(roles)+1)
	for _, r := range roles {
		allowed[r] = struct{}{}
	}
	allowed[models.RoleSuperAdmin] = struct{}{}

	return func(c *gin.Context) {
		claims, ok := Claims(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}
		if _, ok := allowed[claims.Role]; !ok {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}
		c.Next()
	}
}
