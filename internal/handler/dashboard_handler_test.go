package handler

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type fakeStatsProvider struct {
	stats  *models.DashboardStats
	cached bool
	err    error
}

func (f *fakeStatsProvider) Stats(context.Context) (*models.DashboardStats, bool, error) {
	return f.stats, f.cached, f.err
}

func getDashboard(t *testing.T, provider *fakeStatsProvider) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodGet, "/admin/dashboard", nil)
	NewDashboardHandler(provider, nil).Stats(c)
	return rec
}

func TestDashboardStatsSuccess(t *testing.T) {
	rec := getDashboard(t, &fakeStatsProvider{
		stats: &models.DashboardStats{
			TotalUsers:  42,
			TotalNotes:  7,
			GeneratedAt: time.Now().UTC(),
		},
		cached: true,
	})

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["cached"])

	stats, ok := data["stats"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, float64(42), stats["totalUsers"])
}

func TestDashboardStatsFailure(t *testing.T) {
	rec := getDashboard(t, &fakeStatsProvider{err: appErrors.ErrInternal})

	assert.Equal(t, http.StatusInternalServerError, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
}
