package handler

import (
	"net/http"
	"strconv"

	"github.com/gin-gonic/gin"

	"github.com/notevault/notevault-api/internal/middleware"
	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/service"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/response"
)

// AdminUserHandler exposes the admin panel's user management endpoints.
type AdminUserHandler struct {
	service *service.AdminUserService
}

// NewAdminUserHandler creates a new handler.
func NewAdminUserHandler(svc *service.AdminUserService) *AdminUserHandler {
	return &AdminUserHandler{service: svc}
}

// ListUsers godoc
// @Summary List managed user accounts
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Param search query string false "Name or email search"
// @Param verified query bool false "Filter by verification state"
// @Param active query bool false "Filter by active state"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /admin/users [get]
func (h *AdminUserHandler) ListUsers(c *gin.Context) {
	filter := models.UserFilter{
		Search:   c.Query("search"),
		Verified: queryBool(c, "verified"),
		Active:   queryBool(c, "active"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}

	users, pagination, err := h.service.ListUsers(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "", gin.H{"users": users, "pagination": pagination})
}

// UpdateUserStatus godoc
// @Summary Activate or deactivate a user
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /admin/users/{id}/status [patch]
func (h *AdminUserHandler) UpdateUserStatus(c *gin.Context) {
	actor, ok := middleware.CurrentAdmin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateUserStatusRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid status payload"))
		return
	}

	user, err := h.service.SetUserStatus(c.Request.Context(), actor.ID, c.Param("id"), c.ClientIP(), req)
	if err != nil {
		response.Error(c, err)
		return
	}

	message := "User account activated"
	if req.IsActive != nil && !*req.IsActive {
		message = "User account deactivated"
	}
	response.OK(c, message, gin.H{"user": user})
}

// DeleteUser godoc
// @Summary Delete a user account
// @Tags Admin
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /admin/users/{id} [delete]
func (h *AdminUserHandler) DeleteUser(c *gin.Context) {
	actor, ok := middleware.CurrentAdmin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.DeleteUser(c.Request.Context(), actor.ID, c.Param("id"), c.ClientIP()); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "User deleted successfully", nil)
}

// UpdateAdminRole godoc
// @Summary Reassign an admin's role
// @Tags Admin
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /admin/admins/{id}/role [patch]
func (h *AdminUserHandler) UpdateAdminRole(c *gin.Context) {
	actor, ok := middleware.CurrentAdmin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateAdminRoleRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid role payload"))
		return
	}

	admin, err := h.service.SetAdminRole(c.Request.Context(), actor.ID, c.Param("id"), c.ClientIP(), req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Admin role updated", gin.H{"admin": admin})
}

func queryBool(c *gin.Context, key string) *bool {
	raw := c.Query(key)
	if raw == "" {
		return nil
	}
	value, err := strconv.ParseBool(raw)
	if err != nil {
		return nil
	}
	return &value
}
