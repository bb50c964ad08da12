package middleware

import (
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"

	"github.com/notevault/notevault-api/internal/models"
)

func runPermission(t *testing.T, admin *models.Admin, perm models.Permission) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	w := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(w)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin", nil)
	if admin != nil {
		c.Set(ContextAdminKey, admin)
	}
	RequirePermission(perm)(c)
	return w
}

func TestRequirePermissionGranted(t *testing.T) {
	admin := &models.Admin{
		Credential:  models.Credential{ID: "a1"},
		Permissions: models.PermissionSet{models.PermUserManagement},
	}
	w := runPermission(t, admin, models.PermUserManagement)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionDenied(t *testing.T) {
	admin := &models.Admin{
		Credential:  models.Credential{ID: "a1"},
		Permissions: models.PermissionSet{models.PermAnalytics},
	}
	w := runPermission(t, admin, models.PermUserManagement)
	assert.Equal(t, http.StatusForbidden, w.Code)
}

func TestRequirePermissionSystemAdminWildcard(t *testing.T) {
	admin := &models.Admin{
		Credential:  models.Credential{ID: "a1"},
		Permissions: models.PermissionSet{models.PermSystemAdmin},
	}
	w := runPermission(t, admin, models.PermContentManagement)
	assert.Equal(t, http.StatusOK, w.Code)
}

func TestRequirePermissionNoAdminAttached(t *testing.T) {
	w := runPermission(t, nil, models.PermUserManagement)
	assert.Equal(t, http.StatusUnauthorized, w.Code)
}
