package handler

import (
	"context"

	"github.com/gin-gonic/gin"

	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/service"
	"github.com/notevault/notevault-api/pkg/response"
)

type dashboardStatsProvider interface {
	Stats(ctx context.Context) (*models.DashboardStats, bool, error)
}

// DashboardHandler serves the admin dashboard aggregates.
type DashboardHandler struct {
	service dashboardStatsProvider
	metrics *service.MetricsService
}

// NewDashboardHandler creates a new handler.
func NewDashboardHandler(svc dashboardStatsProvider, metrics *service.MetricsService) *DashboardHandler {
	return &DashboardHandler{service: svc, metrics: metrics}
}

// Stats godoc
// @Summary Admin dashboard statistics
// @Description Aggregate counts, popular subjects and recent uploads
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /admin/dashboard [get]
func (h *DashboardHandler) Stats(c *gin.Context) {
	stats, cached, err := h.service.Stats(c.Request.Context())
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordCacheOperation(cached)
	}

	response.OK(c, "", gin.H{"stats": stats, "cached": cached})
}
