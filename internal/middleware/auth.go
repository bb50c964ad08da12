package middleware

import (
	"strings"

	"github.com/gin-gonic/gin"

	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/service"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/response"
)

// Context keys storing the authenticated principal.
const (
	ContextClaimsKey = "authClaims"
	ContextUserKey   = "currentUser"
	ContextAdminKey  = "currentAdmin"
)

// AuthenticateUser protects routes requiring a user token. The account is
// re-fetched so a deleted user fails even with a live token. The active
// flag does not gate users; only admins carry that extra check.
func AuthenticateUser(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			return
		}
		// A kind mismatch reads the same as a bad token so the gate never
		// leaks which check failed.
		if claims.Kind != models.KindUser {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		user, err := authService.CurrentUser(c.Request.Context(), claims.ID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextUserKey, user)
		c.Next()
	}
}

// AuthenticateAdmin protects routes requiring an admin token. The admin
// record is attached for downstream permission checks. Deactivated admins
// fail with the same 401 as a bad token.
func AuthenticateAdmin(authService *service.AuthService) gin.HandlerFunc {
	return func(c *gin.Context) {
		claims, ok := bearerClaims(c, authService)
		if !ok {
			return
		}
		if claims.Kind != models.KindAdmin {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		admin, err := authService.CurrentAdmin(c.Request.Context(), claims.ID)
		if err != nil {
			response.Error(c, err)
			c.Abort()
			return
		}
		if !admin.IsActive {
			response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid or expired token"))
			c.Abort()
			return
		}

		c.Set(ContextClaimsKey, claims)
		c.Set(ContextAdminKey, admin)
		c.Next()
	}
}

func bearerClaims(c *gin.Context, authService *service.AuthService) (*models.TokenClaims, bool) {
	header := c.GetHeader("Authorization")
	if header == "" {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Authentication required"))
		c.Abort()
		return nil, false
	}

	parts := strings.SplitN(header, " ", 2)
	if len(parts) != 2 || !strings.EqualFold(parts[0], "Bearer") {
		response.Error(c, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid authorization header"))
		c.Abort()
		return nil, false
	}

	claims, err := authService.ValidateToken(parts[1])
	if err != nil {
		response.Error(c, err)
		c.Abort()
		return nil, false
	}
	return claims, true
}

// CurrentUser returns the user attached by AuthenticateUser.
func CurrentUser(c *gin.Context) (*models.User, bool) {
	value, exists := c.Get(ContextUserKey)
	if !exists {
		return nil, false
	}
	user, ok := value.(*models.User)
	return user, ok
}

// CurrentAdmin returns the admin attached by AuthenticateAdmin.
func CurrentAdmin(c *gin.Context) (*models.Admin, bool) {
	value, exists := c.Get(ContextAdminKey)
	if !exists {
		return nil, false
	}
	admin, ok := value.(*models.Admin)
	return admin, ok
}
