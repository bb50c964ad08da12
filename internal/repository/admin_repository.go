package repository

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"

	"github.com/notevault/notevault-api/internal/models"
)

const adminColumns = `id, first_name, last_name, email, password_hash, is_email_verified, email_otp, otp_expires, is_active, last_login, login_count, role, department, permissions, created_at, updated_at`

// AdminRepository provides database access for admin accounts.
type AdminRepository struct {
	db *sqlx.DB
}

// NewAdminRepository creates a new instance of AdminRepository.
func NewAdminRepository(db *sqlx.DB) *AdminRepository {
	return &AdminRepository{db: db}
}

// FindByEmail returns an admin by email address regardless of state.
func (r *AdminRepository) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE email = $1 LIMIT 1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by email: %w", err)
	}
	return &admin, nil
}

// FindActiveByEmail returns an admin by email, skipping deactivated
// accounts. Login resolves admins through this lookup so a disabled
// account reads as unknown.
func (r *AdminRepository) FindActiveByEmail(ctx context.Context, email string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE email = $1 AND is_active = TRUE LIMIT 1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, email); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find active admin by email: %w", err)
	}
	return &admin, nil
}

// FindByID returns an admin by identifier.
func (r *AdminRepository) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE id = $1 LIMIT 1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, id); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by id: %w", err)
	}
	return &admin, nil
}

// FindByEmailAndOTP returns the admin matching email and a live OTP.
func (r *AdminRepository) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.Admin, error) {
	query := fmt.Sprintf(`SELECT %s FROM admins WHERE email = $1 AND email_otp = $2 AND otp_expires > NOW() LIMIT 1`, adminColumns)
	var admin models.Admin
	if err := r.db.GetContext(ctx, &admin, query, email, otp); err != nil {
		if err == sql.ErrNoRows {
			return nil, err
		}
		return nil, fmt.Errorf("find admin by otp: %w", err)
	}
	return &admin, nil
}

// Create inserts a new admin row.
func (r *AdminRepository) Create(ctx context.Context, admin *models.Admin) error {
	if admin.ID == "" {
		admin.ID = uuid.NewString()
	}
	now := time.Now().UTC()
	if admin.CreatedAt.IsZero() {
		admin.CreatedAt = now
	}
	admin.UpdatedAt = now

	const query = `INSERT INTO admins (id, first_name, last_name, email, password_hash, is_email_verified, email_otp, otp_expires, is_active, login_count, role, department, permissions, created_at, updated_at)
		VALUES (:id, :first_name, :last_name, :email, :password_hash, :is_email_verified, :email_otp, :otp_expires, :is_active, :login_count, :role, :department, :permissions, :created_at, :updated_at)`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("create admin: %w", err)
	}
	return nil
}

// Update rewrites the mutable columns of an admin row.
func (r *AdminRepository) Update(ctx context.Context, admin *models.Admin) error {
	admin.UpdatedAt = time.Now().UTC()
	const query = `UPDATE admins SET first_name = :first_name, last_name = :last_name, password_hash = :password_hash, email_otp = :email_otp, otp_expires = :otp_expires, is_email_verified = :is_email_verified, is_active = :is_active, role = :role, department = :department, permissions = :permissions, updated_at = :updated_at WHERE id = :id`
	if _, err := r.db.NamedExecContext(ctx, query, admin); err != nil {
		return fmt.Errorf("update admin: %w", err)
	}
	return nil
}

// SetOTP stores a fresh verification code and its expiry.
func (r *AdminRepository) SetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	const query = `UPDATE admins SET email_otp = $2, otp_expires = $3, updated_at = $4 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, otp, expires, time.Now().UTC()); err != nil {
		return fmt.Errorf("set admin otp: %w", err)
	}
	return nil
}

// MarkVerified flips the verification flag and clears OTP material.
func (r *AdminRepository) MarkVerified(ctx context.Context, id string) error {
	const query = `UPDATE admins SET is_email_verified = TRUE, email_otp = NULL, otp_expires = NULL, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, time.Now().UTC()); err != nil {
		return fmt.Errorf("mark admin verified: %w", err)
	}
	return nil
}

// RecordLogin stamps last_login and bumps the login counter.
func (r *AdminRepository) RecordLogin(ctx context.Context, id string, ts time.Time) error {
	const query = `UPDATE admins SET last_login = $2, login_count = login_count + 1, updated_at = $2 WHERE id = $1`
	if _, err := r.db.ExecContext(ctx, query, id, ts); err != nil {
		return fmt.Errorf("record admin login: %w", err)
	}
	return nil
}

// UpdateRole reassigns the role, department and permission set.
func (r *AdminRepository) UpdateRole(ctx context.Context, id string, role models.AdminRole, department *string, permissions models.PermissionSet) error {
	const query = `UPDATE admins SET role = $2, department = $3, permissions = $4, updated_at = $5 WHERE id = $1`
	res, err := r.db.ExecContext(ctx, query, id, role, department, permissions, time.Now().UTC())
	if err != nil {
		return fmt.Errorf("update admin role: %w", err)
	}
	if affected, err := res.RowsAffected(); err == nil && affected == 0 {
		return sql.ErrNoRows
	}
	return nil
}
