package models

import (
	"database/sql/driver"
	"encoding/json"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// Attachment describes one uploaded file belonging to a note. URL is the
// public download route; PublicID is the relative storage path.
type Attachment struct {
	ID               string `json:"id"`
	URL              string `json:"url"`
	PublicID         string `json:"publicId"`
	Bytes            int64  `json:"bytes"`
	Format           string `json:"format"`
	OriginalFilename string `json:"originalFilename"`
}

// AttachmentList is stored as a JSONB column on the notes table.
type AttachmentList []Attachment

// Value implements driver.Valuer.
func (a AttachmentList) Value() (driver.Value, error) {
	if a == nil {
		a = AttachmentList{}
	}
	raw, err := json.Marshal(a)
	if err != nil {
		return nil, fmt.Errorf("marshal attachments: %w", err)
	}
	return raw, nil
}

// Scan implements sql.Scanner.
func (a *AttachmentList) Scan(src interface{}) error {
	if src == nil {
		*a = AttachmentList{}
		return nil
	}
	var raw []byte
	switch v := src.(type) {
	case []byte:
		raw = v
	case string:
		raw = []byte(v)
	default:
		return fmt.Errorf("scan attachments: unsupported type %T", src)
	}
	if err := json.Unmarshal(raw, a); err != nil {
		return fmt.Errorf("scan attachments: %w", err)
	}
	return nil
}

// TagList is stored as a Postgres text array.
type TagList = pq.StringArray

// Note represents a shared study note stored in the notes table.
type Note struct {
	ID          string         `db:"id" json:"id"`
	Title       string         `db:"title" json:"title"`
	Description string         `db:"description" json:"description,omitempty"`
	Subject     string         `db:"subject" json:"subject"`
	Semester    string         `db:"semester" json:"semester,omitempty"`
	Tags        TagList        `db:"tags" json:"tags"`
	Attachments AttachmentList `db:"attachments" json:"attachments"`
	UploaderID  string         `db:"uploader_id" json:"uploadedBy"`
	Views       int            `db:"views" json:"views"`
	Downloads   int            `db:"downloads" json:"downloads"`
	CreatedAt   time.Time      `db:"created_at" json:"createdAt"`
	UpdatedAt   time.Time      `db:"updated_at" json:"updatedAt"`
}

// CreateNoteRequest is the metadata part of the multipart upload form.
type CreateNoteRequest struct {
	Title       string   `json:"title" form:"title" validate:"required,min=3,max=200"`
	Description string   `json:"description" form:"description" validate:"omitempty,max=2000"`
	Subject     string   `json:"subject" form:"subject" validate:"required,min=2,max=100"`
	Semester    string   `json:"semester" form:"semester" validate:"omitempty,max=50"`
	Tags        []string `json:"tags" form:"tags" validate:"omitempty,dive,min=1,max=50"`
}

// UpdateNoteRequest carries the editable note fields. Nil means unchanged.
type UpdateNoteRequest struct {
	Title       *string  `json:"title" validate:"omitempty,min=3,max=200"`
	Description *string  `json:"description" validate:"omitempty,max=2000"`
	Subject     *string  `json:"subject" validate:"omitempty,min=2,max=100"`
	Semester    *string  `json:"semester" validate:"omitempty,max=50"`
	Tags        []string `json:"tags" validate:"omitempty,dive,min=1,max=50"`
}

// NoteFilter captures filtering criteria for listing notes.
type NoteFilter struct {
	Subject  string
	Semester string
	Search   string
	Page     int
	PageSize int
}
