package service

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"os"
	"path"
	"path/filepath"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"
	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/export"
)

type noteRepository interface {
	Create(ctx context.Context, note *models.Note) error
	FindByID(ctx context.Context, id string) (*models.Note, error)
	Update(ctx context.Context, note *models.Note) error
	Delete(ctx context.Context, id string) error
	List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error)
	IncrementViews(ctx context.Context, id string) error
	IncrementDownloads(ctx context.Context, id string) error
}

type attachmentStorage interface {
	SaveStream(relPath string, r io.Reader) (string, int64, error)
	Open(relPath string) (*os.File, error)
	Delete(relPath string) error
}

type urlSigner interface {
	Generate(attachmentID, relPath string) (string, time.Time, error)
	Parse(token string, allowExpired bool) (attachmentID, relPath string, expiresAt time.Time, err error)
}

type pdfRenderer interface {
	Render(doc export.Document) ([]byte, error)
}

// Upload is one file from the multipart request.
type Upload struct {
	Filename string
	Size     int64
	Reader   io.Reader
}

// NoteConfig bounds attachment uploads.
type NoteConfig struct {
	MaxFileSizeBytes int64
	MaxFiles         int
	FileRoutePrefix  string
}

// NoteService manages shared notes and their attachments.
type NoteService struct {
	repo      noteRepository
	storage   attachmentStorage
	signer    urlSigner
	pdf       pdfRenderer
	validator *validator.Validate
	logger    *zap.Logger
	config    NoteConfig
}

// NewNoteService constructs a NoteService instance.
func NewNoteService(repo noteRepository, storage attachmentStorage, signer urlSigner, pdf pdfRenderer, validate *validator.Validate, logger *zap.Logger, config NoteConfig) *NoteService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.MaxFileSizeBytes <= 0 {
		config.MaxFileSizeBytes = 10 << 20
	}
	if config.MaxFiles <= 0 {
		config.MaxFiles = 5
	}
	if config.FileRoutePrefix == "" {
		config.FileRoutePrefix = "/api/files"
	}
	return &NoteService{
		repo:      repo,
		storage:   storage,
		signer:    signer,
		pdf:       pdf,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// Create stores the uploaded files and inserts the note.
func (s *NoteService) Create(ctx context.Context, uploaderID string, req models.CreateNoteRequest, files []Upload) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}
	if len(files) > s.config.MaxFiles {
		return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("A note can carry at most %d files", s.config.MaxFiles))
	}

	noteID := uuid.NewString()
	attachments := make(models.AttachmentList, 0, len(files))
	saved := make([]string, 0, len(files))

	cleanup := func() {
		for _, relPath := range saved {
			if err := s.storage.Delete(relPath); err != nil {
				s.logger.Warn("failed to remove orphaned attachment", zap.String("path", relPath), zap.Error(err))
			}
		}
	}

	for _, file := range files {
		if file.Size > s.config.MaxFileSizeBytes {
			cleanup()
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("File %s exceeds the size limit", file.Filename))
		}
		attachmentID := uuid.NewString()
		relPath := path.Join("notes", noteID, attachmentID+sanitizeExt(file.Filename))
		// LimitReader guards against understated multipart sizes.
		relPath, written, err := s.storage.SaveStream(relPath, io.LimitReader(file.Reader, s.config.MaxFileSizeBytes+1))
		if err != nil {
			cleanup()
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store attachment")
		}
		if written > s.config.MaxFileSizeBytes {
			saved = append(saved, relPath)
			cleanup()
			return nil, appErrors.Clone(appErrors.ErrValidation, fmt.Sprintf("File %s exceeds the size limit", file.Filename))
		}
		saved = append(saved, relPath)
		attachments = append(attachments, models.Attachment{
			ID:               attachmentID,
			PublicID:         relPath,
			Bytes:            written,
			Format:           strings.TrimPrefix(sanitizeExt(file.Filename), "."),
			OriginalFilename: file.Filename,
		})
	}

	note := &models.Note{
		ID:          noteID,
		Title:       req.Title,
		Description: req.Description,
		Subject:     req.Subject,
		Semester:    req.Semester,
		Tags:        models.TagList(req.Tags),
		Attachments: attachments,
		UploaderID:  uploaderID,
	}
	if err := s.repo.Create(ctx, note); err != nil {
		cleanup()
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create note")
	}

	s.decorateURLs(note)
	return note, nil
}

// List returns notes matching the filter along with pagination metadata.
func (s *NoteService) List(ctx context.Context, filter models.NoteFilter) ([]models.Note, models.Pagination, error) {
	notes, total, err := s.repo.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list notes")
	}
	for i := range notes {
		s.decorateURLs(&notes[i])
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return notes, models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// Get returns a note without touching its counters.
func (s *NoteService) Get(ctx context.Context, id string) (*models.Note, error) {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, err
	}
	s.decorateURLs(note)
	return note, nil
}

// RecordView bumps the view counter and returns the fresh note.
func (s *NoteService) RecordView(ctx context.Context, id string) (*models.Note, error) {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if err := s.repo.IncrementViews(ctx, id); err != nil {
		s.logger.Warn("failed to bump view counter", zap.String("note_id", id), zap.Error(err))
	} else {
		note.Views++
	}
	s.decorateURLs(note)
	return note, nil
}

// Update rewrites note metadata. Only the uploader may edit; admins bypass
// the ownership check.
func (s *NoteService) Update(ctx context.Context, id, requesterID string, isAdmin bool, req models.UpdateNoteRequest) (*models.Note, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid note payload")
	}

	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, err
	}
	if !isAdmin && note.UploaderID != requesterID {
		return nil, appErrors.Clone(appErrors.ErrForbidden, "You can only edit your own notes")
	}

	if req.Title != nil {
		note.Title = *req.Title
	}
	if req.Description != nil {
		note.Description = *req.Description
	}
	if req.Subject != nil {
		note.Subject = *req.Subject
	}
	if req.Semester != nil {
		note.Semester = *req.Semester
	}
	if req.Tags != nil {
		note.Tags = models.TagList(req.Tags)
	}

	if err := s.repo.Update(ctx, note); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update note")
	}
	s.decorateURLs(note)
	return note, nil
}

// Delete removes a note and its stored files.
func (s *NoteService) Delete(ctx context.Context, id, requesterID string, isAdmin bool) error {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return err
	}
	if !isAdmin && note.UploaderID != requesterID {
		return appErrors.Clone(appErrors.ErrForbidden, "You can only delete your own notes")
	}

	if err := s.repo.Delete(ctx, id); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "Note not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete note")
	}

	for _, attachment := range note.Attachments {
		if err := s.storage.Delete(attachment.PublicID); err != nil {
			s.logger.Warn("failed to remove attachment file", zap.String("path", attachment.PublicID), zap.Error(err))
		}
	}
	return nil
}

// Download bumps the download counter and returns a short-lived signed
// token for the requested attachment.
func (s *NoteService) Download(ctx context.Context, noteID, attachmentID string) (string, *models.Attachment, error) {
	note, err := s.findNote(ctx, noteID)
	if err != nil {
		return "", nil, err
	}

	var target *models.Attachment
	for i := range note.Attachments {
		if note.Attachments[i].ID == attachmentID {
			target = &note.Attachments[i]
			break
		}
	}
	if target == nil {
		return "", nil, appErrors.Clone(appErrors.ErrNotFound, "Attachment not found")
	}

	token, _, err := s.signer.Generate(target.ID, target.PublicID)
	if err != nil {
		return "", nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to sign download")
	}

	if err := s.repo.IncrementDownloads(ctx, noteID); err != nil {
		s.logger.Warn("failed to bump download counter", zap.String("note_id", noteID), zap.Error(err))
	}

	return token, target, nil
}

// FileURL builds the public download path for a signed token.
func (s *NoteService) FileURL(token string) string {
	return s.config.FileRoutePrefix + "/" + token
}

// ServeFile resolves a signed token into an open file handle. The caller
// owns closing the file.
func (s *NoteService) ServeFile(token string) (*os.File, string, error) {
	_, relPath, _, err := s.signer.Parse(token, false)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrForbidden.Code, appErrors.ErrForbidden.Status, "Invalid or expired download link")
	}
	file, err := s.storage.Open(relPath)
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrNotFound.Code, appErrors.ErrNotFound.Status, "File not found")
	}
	return file, filepath.Base(relPath), nil
}

// ExportPDF renders the note body as a downloadable PDF.
func (s *NoteService) ExportPDF(ctx context.Context, id string) ([]byte, string, error) {
	note, err := s.findNote(ctx, id)
	if err != nil {
		return nil, "", err
	}

	meta := []export.MetaRow{
		{Label: "Subject", Value: note.Subject},
	}
	if note.Semester != "" {
		meta = append(meta, export.MetaRow{Label: "Semester", Value: note.Semester})
	}
	if len(note.Tags) > 0 {
		meta = append(meta, export.MetaRow{Label: "Tags", Value: strings.Join(note.Tags, ", ")})
	}
	meta = append(meta, export.MetaRow{Label: "Uploaded", Value: note.CreatedAt.Format("2 Jan 2006")})

	raw, err := s.pdf.Render(export.Document{
		Title: note.Title,
		Meta:  meta,
		Body:  note.Description,
	})
	if err != nil {
		return nil, "", appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to render pdf")
	}

	filename := slugify(note.Title) + ".pdf"
	return raw, filename, nil
}

func (s *NoteService) findNote(ctx context.Context, id string) (*models.Note, error) {
	note, err := s.repo.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Note not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load note")
	}
	return note, nil
}

// decorateURLs fills fresh signed download links. Tokens expire, so they
// are never persisted.
func (s *NoteService) decorateURLs(note *models.Note) {
	for i := range note.Attachments {
		attachment := &note.Attachments[i]
		token, _, err := s.signer.Generate(attachment.ID, attachment.PublicID)
		if err != nil {
			s.logger.Warn("failed to sign attachment url", zap.String("attachment_id", attachment.ID), zap.Error(err))
			continue
		}
		attachment.URL = s.config.FileRoutePrefix + "/" + token
	}
}

func sanitizeExt(filename string) string {
	ext := strings.ToLower(filepath.Ext(filename))
	for _, r := range ext {
		if r != '.' && (r < 'a' || r > 'z') && (r < '0' || r > '9') {
			return ""
		}
	}
	return ext
}

func slugify(raw string) string {
	var b strings.Builder
	lastDash := true
	for _, r := range strings.ToLower(raw) {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			lastDash = false
		default:
			if !lastDash {
				b.WriteByte('-')
				lastDash = true
			}
		}
	}
	slug := strings.Trim(b.String(), "-")
	if slug == "" {
		slug = "note"
	}
	return slug
}
