package models

import (
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"
)

// PrincipalKind distinguishes the two authenticated populations. They live
// in separate tables and carry separate capabilities, so the kind is baked
// into every issued token.
type PrincipalKind string

const (
	KindUser  PrincipalKind = "user"
	KindAdmin PrincipalKind = "admin"
)

// Valid reports whether the kind is one of the two known values.
func (k PrincipalKind) Valid() bool {
	return k == KindUser || k == KindAdmin
}

// AdminRole represents the staff role assigned to an admin account.
type AdminRole string

const (
	RoleAdmin   AdminRole = "admin"
	RoleHR      AdminRole = "hr"
	RoleFaculty AdminRole = "faculty"
)

// Valid reports whether the role is a known admin role.
func (r AdminRole) Valid() bool {
	switch r {
	case RoleAdmin, RoleHR, RoleFaculty:
		return true
	}
	return false
}

// Permission is a named capability granted to admin accounts.
type Permission string

const (
	PermContentManagement Permission = "content_management"
	PermUserManagement    Permission = "user_management"
	PermAnalytics         Permission = "analytics"
	PermSystemAdmin       Permission = "system_admin"
)

// DefaultPermissions maps each admin role to the capabilities it falls
// back to when a role is reassigned.
var DefaultPermissions = map[AdminRole][]Permission{
	RoleAdmin:   {PermContentManagement, PermUserManagement, PermAnalytics, PermSystemAdmin},
	RoleHR:      {PermUserManagement, PermAnalytics},
	RoleFaculty: {PermContentManagement, PermAnalytics},
}

// PermissionSet is the list of capabilities stored on an admin row. It is
// persisted as a Postgres text array.
type PermissionSet []Permission

// Has reports whether the set grants the capability. system_admin acts as
// a wildcard.
func (p PermissionSet) Has(perm Permission) bool {
	for _, candidate := range p {
		if candidate == perm || candidate == PermSystemAdmin {
			return true
		}
	}
	return false
}

// Value implements driver.Valuer.
func (p PermissionSet) Value() (driver.Value, error) {
	arr := make(pq.StringArray, len(p))
	for i, perm := range p {
		arr[i] = string(perm)
	}
	return arr.Value()
}

// Scan implements sql.Scanner.
func (p *PermissionSet) Scan(src interface{}) error {
	var arr pq.StringArray
	if err := arr.Scan(src); err != nil {
		return fmt.Errorf("scan permission set: %w", err)
	}
	out := make(PermissionSet, len(arr))
	for i, raw := range arr {
		out[i] = Permission(raw)
	}
	*p = out
	return nil
}

// Credential holds the columns shared by the users and admins tables:
// identity, password hash and the email verification state. OTP material
// never leaves the server.
type Credential struct {
	ID              string     `db:"id" json:"id"`
	FirstName       string     `db:"first_name" json:"firstName"`
	LastName        string     `db:"last_name" json:"lastName"`
	Email           string     `db:"email" json:"email"`
	PasswordHash    string     `db:"password_hash" json:"-"`
	IsEmailVerified bool       `db:"is_email_verified" json:"isEmailVerified"`
	EmailOTP        *string    `db:"email_otp" json:"-"`
	OTPExpires      *time.Time `db:"otp_expires" json:"-"`
	IsActive        bool       `db:"is_active" json:"isActive"`
	LastLogin       *time.Time `db:"last_login" json:"lastLogin,omitempty"`
	LoginCount      int        `db:"login_count" json:"loginCount"`
	CreatedAt       time.Time  `db:"created_at" json:"createdAt"`
	UpdatedAt       time.Time  `db:"updated_at" json:"updatedAt"`
}

// User represents a note-consuming account stored in the users table.
type User struct {
	Credential
}

// Admin represents a staff account stored in the admins table.
type Admin struct {
	Credential
	Role        AdminRole     `db:"role" json:"role"`
	Department  *string       `db:"department" json:"department,omitempty"`
	Permissions PermissionSet `db:"permissions" json:"permissions"`
}

// UserFilter captures filtering criteria for listing user accounts.
type UserFilter struct {
	Search   string
	Verified *bool
	Active   *bool
	Page     int
	PageSize int
}

// Pagination contains pagination metadata returned in list responses.
type Pagination struct {
	Page       int `json:"page"`
	PageSize   int `json:"pageSize"`
	TotalCount int `json:"totalCount"`
}
