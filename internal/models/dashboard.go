package models

import "time"

// SubjectCount is one entry of the popular-subjects ranking.
type SubjectCount struct {
	Subject string `db:"subject" json:"subject"`
	Count   int    `db:"count" json:"count"`
}

// RecentNote is a trimmed note row shown in the dashboard activity feed.
type RecentNote struct {
	ID        string    `db:"id" json:"id"`
	Title     string    `db:"title" json:"title"`
	Subject   string    `db:"subject" json:"subject"`
	CreatedAt time.Time `db:"created_at" json:"createdAt"`
}

// DashboardStats aggregates the numbers shown on the admin dashboard.
type DashboardStats struct {
	TotalUsers            int            `json:"totalUsers"`
	TotalNotes            int            `json:"totalNotes"`
	TotalDownloads        int            `json:"totalDownloads"`
	NewUsersThisMonth     int            `json:"newUsersThisMonth"`
	NotesUploadedThisWeek int            `json:"notesUploadedThisWeek"`
	PopularSubjects       []SubjectCount `json:"popularSubjects"`
	RecentActivity        []RecentNote   `json:"recentActivity"`
	GeneratedAt           time.Time      `json:"generatedAt"`
}

// UpdateUserStatusRequest toggles an account's active flag.
type UpdateUserStatusRequest struct {
	IsActive *bool `json:"isActive" validate:"required"`
}

// UpdateAdminRoleRequest reassigns an admin's role. Permissions are reset
// to the role's defaults.
type UpdateAdminRoleRequest struct {
	Role       AdminRole `json:"role" validate:"required,oneof=admin hr faculty"`
	Department string    `json:"department" validate:"required_if=Role faculty,omitempty,max=100"`
}
