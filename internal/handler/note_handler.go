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

// NoteHandler wires HTTP endpoints to the note service.
type NoteHandler struct {
	service *service.NoteService
	metrics *service.MetricsService
}

// NewNoteHandler creates a new handler.
func NewNoteHandler(svc *service.NoteService, metrics *service.MetricsService) *NoteHandler {
	return &NoteHandler{service: svc, metrics: metrics}
}

// Create godoc
// @Summary Upload a note
// @Description Create a note with attached files (multipart form)
// @Tags Notes
// @Accept mpfd
// @Produce json
// @Security BearerAuth
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /notes [post]
func (h *NoteHandler) Create(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.CreateNoteRequest
	if err := c.ShouldBind(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid note payload"))
		return
	}

	form, err := c.MultipartForm()
	if err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid multipart form"))
		return
	}

	var uploads []service.Upload
	for _, header := range form.File["files"] {
		file, err := header.Open()
		if err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to read upload"))
			return
		}
		defer file.Close() //nolint:errcheck
		uploads = append(uploads, service.Upload{
			Filename: header.Filename,
			Size:     header.Size,
			Reader:   file,
		})
	}

	note, err := h.service.Create(c.Request.Context(), user.ID, req, uploads)
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordUpload()
	}

	response.Created(c, "Note uploaded successfully", gin.H{"note": note})
}

// List godoc
// @Summary List notes
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Param subject query string false "Filter by subject"
// @Param semester query string false "Filter by semester"
// @Param search query string false "Title or description search"
// @Param page query int false "Page"
// @Param pageSize query int false "Page size"
// @Success 200 {object} map[string]interface{}
// @Router /notes [get]
func (h *NoteHandler) List(c *gin.Context) {
	filter := models.NoteFilter{
		Subject:  c.Query("subject"),
		Semester: c.Query("semester"),
		Search:   c.Query("search"),
		Page:     queryInt(c, "page", 1),
		PageSize: queryInt(c, "pageSize", 20),
	}

	notes, pagination, err := h.service.List(c.Request.Context(), filter)
	if err != nil {
		response.Error(c, err)
		return
	}

	response.OK(c, "", gin.H{"notes": notes, "pagination": pagination})
}

// Get godoc
// @Summary Fetch one note
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /notes/{id} [get]
func (h *NoteHandler) Get(c *gin.Context) {
	note, err := h.service.Get(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"note": note})
}

// RecordView godoc
// @Summary Record a note view
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Router /notes/{id}/view [post]
func (h *NoteHandler) RecordView(c *gin.Context) {
	note, err := h.service.RecordView(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "", gin.H{"note": note})
}

// Update godoc
// @Summary Edit note metadata
// @Tags Notes
// @Accept json
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /notes/{id} [patch]
func (h *NoteHandler) Update(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	var req models.UpdateNoteRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid note payload"))
		return
	}

	note, err := h.service.Update(c.Request.Context(), c.Param("id"), user.ID, false, req)
	if err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Note updated successfully", gin.H{"note": note})
}

// Delete godoc
// @Summary Delete own note
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /notes/{id} [delete]
func (h *NoteHandler) Delete(c *gin.Context) {
	user, ok := middleware.CurrentUser(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), user.ID, false); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Note deleted successfully", nil)
}

// AdminDelete removes any note, gated by the content_management permission.
func (h *NoteHandler) AdminDelete(c *gin.Context) {
	admin, ok := middleware.CurrentAdmin(c)
	if !ok {
		response.Error(c, appErrors.ErrUnauthorized)
		return
	}

	if err := h.service.Delete(c.Request.Context(), c.Param("id"), admin.ID, true); err != nil {
		response.Error(c, err)
		return
	}
	response.OK(c, "Note deleted successfully", nil)
}

// Download godoc
// @Summary Request a signed download link
// @Tags Notes
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /notes/{id}/attachments/{attachmentId}/download [get]
func (h *NoteHandler) Download(c *gin.Context) {
	token, attachment, err := h.service.Download(c.Request.Context(), c.Param("id"), c.Param("attachmentId"))
	if err != nil {
		response.Error(c, err)
		return
	}
	if h.metrics != nil {
		h.metrics.RecordDownload()
	}

	response.OK(c, "", gin.H{
		"downloadUrl": h.service.FileURL(token),
		"filename":    attachment.OriginalFilename,
	})
}

// ServeFile streams an attachment behind a signed token. The route is
// public; the token is the credential.
func (h *NoteHandler) ServeFile(c *gin.Context) {
	file, filename, err := h.service.ServeFile(c.Param("token"))
	if err != nil {
		response.Error(c, err)
		return
	}
	defer file.Close() //nolint:errcheck

	c.FileAttachment(file.Name(), filename)
}

// ExportPDF godoc
// @Summary Export a note as PDF
// @Tags Notes
// @Produce application/pdf
// @Security BearerAuth
// @Success 200 {file} binary
// @Router /notes/{id}/export.pdf [get]
func (h *NoteHandler) ExportPDF(c *gin.Context) {
	raw, filename, err := h.service.ExportPDF(c.Request.Context(), c.Param("id"))
	if err != nil {
		response.Error(c, err)
		return
	}

	c.Header("Content-Disposition", `attachment; filename="`+filename+`"`)
	c.Data(http.StatusOK, "application/pdf", raw)
}

func queryInt(c *gin.Context, key string, fallback int) int {
	raw := c.Query(key)
	if raw == "" {
		return fallback
	}
	value, err := strconv.Atoi(raw)
	if err != nil {
		return fallback
	}
	return value
}
