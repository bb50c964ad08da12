package models

import "time"

// AuditAction constants represent admin actions recorded in the audit trail.
const (
	AuditActionUserDelete       = "USER_DELETE"
	AuditActionUserStatusChange = "USER_STATUS_CHANGE"
	AuditActionUserRoleChange   = "USER_ROLE_CHANGE"
	AuditActionNoteDelete       = "NOTE_DELETE"
)

// AuditLog represents one admin action against a managed resource.
type AuditLog struct {
	ID         string    `db:"id" json:"id"`
	AdminID    string    `db:"admin_id" json:"adminId"`
	Action     string    `db:"action" json:"action"`
	Resource   string    `db:"resource" json:"resource"`
	ResourceID *string   `db:"resource_id" json:"resourceId,omitempty"`
	Detail     []byte    `db:"detail" json:"detail,omitempty"`
	IPAddress  string    `db:"ip_address" json:"ipAddress"`
	CreatedAt  time.Time `db:"created_at" json:"createdAt"`
}
