package middleware

import (
	"github.com/gin-gonic/gin"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/response"
)

// RequirePermission gates a route on an admin capability. It reads the
// admin record attached by AuthenticateAdmin rather than the token, so a
// revoked grant takes effect before the token expires. system_admin
// passes every check.
func RequirePermission(perm models.Permission) gin.HandlerFunc {
	return func(c *gin.Context) {
		admin, ok := CurrentAdmin(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			c.Abort()
			return
		}

		if !admin.Permissions.Has(perm) {
			response.Error(c, appErrors.ErrForbidden)
			c.Abort()
			return
		}

		c.Next()
	}
}
