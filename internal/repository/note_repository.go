package repository

import (
	"context"
	"database/sql"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/notevault/notevault-api/internal/models"
)

const noteColumns = `id, title, description, subject, semester, tags, attachments, uploader_id, views, downloads, created_at, updated_at`

// NoteRepository provides database access for shared notes.
type NoteRepository struct {
	db *sqlx.DB
}

// NewNoteRepository creates a new instance of NoteRepository.
func NewNoteRepository(db *sqlx.DB) *NoteRepository {
	return &NoteRepository{db: db}
}

// Create inserts a new note row.
func (r *NoteRepository) Create(ctx context.Context, note *models.Note) error {
	if note.ID == "" {
		note.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if note.CreatedAt.IsZero() {
		note.CreatedAt = now
	}
	note.UpdatedAt = now
	if note.Tags == nil {
		note.Tags = models.TagList{}
	}
	if note.Attachments == nil {
		note.Attachments = models.AttachmentList{}
	}

	const query = `INSERT INTO notes (id, title, description, subject, semester, tags, attachments, uploader_id, views, downloads, created_at, updated_at)
		VALUES (:id, :title, :description, :subject, :semester, :tags, :attachments, :uploader_id, :views, :downloads, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("create note: %w", err)
	}
	return nil
}

// FindByID returns a note by identifier.
func (r *NoteRepository) FindByID(ctx context.Context, id string) (*models.Note, error) {
	query := fmt.Sprintf(`SELECT %s FROM notes WHERE id = $1 LIMIT 1`, noteColumns)
	var note models.Note
	if err := r.db.GetContext(ctx, &note, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find note by id: %w", err)
	}
	return &note, nil
}

// Update rewrites the mutable columns of a note row.
func (r *NoteRepository) Update(ctx context.Context, note *models.Note) error {
	note.UpdatedAt = time.Now().UTC()
	const query = `UPDATE notes SET title = :title, description = :description, subject = :subject, semester = :semester, tags = :tags, attachments = :attachments, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, note); err != nil {
		return fmt.Errorf("update note: %w", err)
	}
	return nil
}

// Delete removes a note row permanently.
func (r *NoteRepository) Delete(ctx context.Context, id string) error {
	const query = `DELETE FROM notes WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id)
	if err != nil {
		return fmt.Errorf("delete note: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}

// List returns notes based on filters with total count, newest first.
func (r *NoteRepository) List(ctx context.Context, filter models.NoteFilter) ([]models.Note, int, error) {
	baseQuery := `FROM notes WHERE 1=1`
	var conditions []string
	var args []interface{}

	if filter.Subject != "" {
		conditions = append(conditions, fmt.Sprintf("LOWER(subject) = $%d", len(args)+1))
		args = append(args, strings.ToLower(filter.Subject))
	}
	if filter.Semester != "" {
		conditions = append(conditions, fmt.Sprintf("semester = $%d", len(args)+1))
		args = append(args, filter.Semester)
	}
	if filter.Search != "" {
		conditions = append(conditions, fmt.Sprintf("(LOWER(title) LIKE $%d OR LOWER(description) LIKE $%d)", len(args)+1, len(args)+1))
		args = append(args, "%"+strings.ToLower(filter.Search)+"%")
	}

	if len(conditions) > 0 {
		baseQuery += " AND " + strings.Join(conditions, " AND ")
	}

	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	offset := (page - 1) * pageSize

	listQuery := fmt.Sprintf("SELECT %s %s ORDER BY created_at DESC LIMIT %d OFFSET %d", noteColumns, baseQuery, pageSize, offset)

	var notes []models.Note
	if err := r.db.SelectContext(ctx, &notes, listQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("list notes: %w", err)
	}

	countQuery := fmt.Sprintf("SELECT COUNT(*) %s", baseQuery)
	var total int
	if err := r.db.GetContext(ctx, &total, countQuery, args...); err != nil {
		return nil, 0, fmt.Errorf("count notes: %w", err)
	}

	return notes, total, nil
}

// IncrementViews bumps the view counter.
func (r *NoteRepository) IncrementViews(ctx context.Context, id string) error {
	const query = `UPDATE notes SET views = views + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment note views: %w", err)
	}
	return nil
}

// IncrementDownloads bumps the download counter.
func (r *NoteRepository) IncrementDownloads(ctx context.Context, id string) error {
	const query = `UPDATE notes SET downloads = downloads + 1 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id); err != nil {
		return fmt.Errorf("increment note downloads: %w", err)
	}
	return nil
}

// CountAll returns the total number of notes.
func (r *NoteRepository) CountAll(ctx context.Context) (int, error) {
	const query = `SELECT COUNT(*) FROM notes`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("count all notes: %w", err)
	}
	return total, nil
}

// CountCreatedSince returns how many notes were uploaded after the cutoff.
func (r *NoteRepository) CountCreatedSince(ctx context.Context, since time.Time) (int, error) {
	const query = `SELECT COUNT(*) FROM notes WHERE created_at >= $1`
	var total int
	if err := r.db.GetContext(ctx, &total, query, since); err != nil {
		return 0, fmt.Errorf("count notes since: %w", err)
	}
	return total, nil
}

// TotalDownloads sums the download counters across all notes.
func (r *NoteRepository) TotalDownloads(ctx context.Context) (int, error) {
	const query = `SELECT COALESCE(SUM(downloads), 0) FROM notes`
	var total int
	if err := r.db.GetContext(ctx, &total, query); err != nil {
		return 0, fmt.Errorf("total note downloads: %w", err)
	}
	return total, nil
}

// PopularSubjects ranks subjects by note count.
func (r *NoteRepository) PopularSubjects(ctx context.Context, limit int) ([]models.SubjectCount, error) {
	if limit <= 0 {
		limit = 5
	}
	const query = `SELECT subject, COUNT(*) AS count FROM notes GROUP BY subject ORDER BY count DESC, subject ASC LIMIT $1`
	subjects := make([]models.SubjectCount, 0, limit)
	if err := r.db.SelectContext(ctx, &subjects, query, limit); err != nil {
		return nil, fmt.Errorf("popular subjects: %w", err)
	}
	return subjects, nil
}

// Recent returns the newest notes for the dashboard activity feed.
func (r *NoteRepository) Recent(ctx context.Context, limit int) ([]models.RecentNote, error) {
	if limit <= 0 {
		limit = 10
	}
	const query = `SELECT id, title, subject, created_at FROM notes ORDER BY created_at DESC LIMIT $1`
	recent := make([]models.RecentNote, 0, limit)
	if err := r.db.SelectContext(ctx, &recent, query, limit); err != nil {
		return nil, fmt.Errorf("recent notes: %w", err)
	}
	return recent, nil
}
