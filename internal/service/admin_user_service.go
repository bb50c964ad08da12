package service

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"time"

	"github.com/go-playground/validator/v10"
	"go.uber.org/zap"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type managedUserRepository interface {
	FindByID(ctx context.Context, id string) (*models.User, error)
	List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error)
	UpdateStatus(ctx context.Context, id string, active bool) error
	Delete(ctx context.Context, id string) error
}

type managedAdminRepository interface {
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	UpdateRole(ctx context.Context, id string, role models.AdminRole, department *string, permissions models.PermissionSet) error
}

type auditWriter interface {
	Create(ctx context.Context, log *models.AuditLog) error
}

type statsInvalidator interface {
	Invalidate(ctx context.Context)
}

// AdminUserService covers the user management surface of the admin panel.
// Every mutation lands in the audit trail.
type AdminUserService struct {
	users     managedUserRepository
	admins    managedAdminRepository
	audit     auditWriter
	stats     statsInvalidator
	validator *validator.Validate
	logger    *zap.Logger
}

// NewAdminUserService constructs an AdminUserService instance.
func NewAdminUserService(users managedUserRepository, admins managedAdminRepository, audit auditWriter, stats statsInvalidator, validate *validator.Validate, logger *zap.Logger) *AdminUserService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	return &AdminUserService{
		users:     users,
		admins:    admins,
		audit:     audit,
		stats:     stats,
		validator: validate,
		logger:    logger,
	}
}

// ListUsers returns managed user accounts with pagination metadata.
func (s *AdminUserService) ListUsers(ctx context.Context, filter models.UserFilter) ([]models.User, models.Pagination, error) {
	users, total, err := s.users.List(ctx, filter)
	if err != nil {
		return nil, models.Pagination{}, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list users")
	}
	page := filter.Page
	if page < 1 {
		page = 1
	}
	pageSize := filter.PageSize
	if pageSize <= 0 || pageSize > 100 {
		pageSize = 20
	}
	return users, models.Pagination{Page: page, PageSize: pageSize, TotalCount: total}, nil
}

// SetUserStatus toggles an account's active flag.
func (s *AdminUserService) SetUserStatus(ctx context.Context, actorID, userID, actorIP string, req models.UpdateUserStatusRequest) (*models.User, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid status payload")
	}

	if err := s.users.UpdateStatus(ctx, userID, *req.IsActive); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update status")
	}

	s.record(ctx, actorID, models.AuditActionUserStatusChange, "users", &userID, actorIP, map[string]interface{}{
		"isActive": *req.IsActive,
	})

	user, err := s.users.FindByID(ctx, userID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload user")
	}
	return user, nil
}

// DeleteUser removes a user account permanently.
func (s *AdminUserService) DeleteUser(ctx context.Context, actorID, userID, actorIP string) error {
	if err := s.users.Delete(ctx, userID); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return appErrors.Clone(appErrors.ErrNotFound, "User not found")
		}
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to delete user")
	}

	s.record(ctx, actorID, models.AuditActionUserDelete, "users", &userID, actorIP, nil)
	if s.stats != nil {
		s.stats.Invalidate(ctx)
	}
	return nil
}

// SetAdminRole reassigns an admin's role. Permissions reset to the new
// role's defaults, dropping any grants the old role carried.
func (s *AdminUserService) SetAdminRole(ctx context.Context, actorID, adminID, actorIP string, req models.UpdateAdminRoleRequest) (*models.Admin, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid role payload")
	}

	// Department only exists for faculty accounts; any value supplied with
	// another role is dropped.
	var department *string
	if req.Role == models.RoleFaculty && req.Department != "" {
		department = &req.Department
	}
	permissions := models.PermissionSet(models.DefaultPermissions[req.Role])

	if err := s.admins.UpdateRole(ctx, adminID, req.Role, department, permissions); err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "Admin not found")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to update role")
	}

	s.record(ctx, actorID, models.AuditActionUserRoleChange, "admins", &adminID, actorIP, map[string]interface{}{
		"role": req.Role,
	})

	admin, err := s.admins.FindByID(ctx, adminID)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to reload admin")
	}
	return admin, nil
}

func (s *AdminUserService) record(ctx context.Context, actorID, action, resource string, resourceID *string, ip string, detail map[string]interface{}) {
	var raw []byte
	if detail != nil {
		encoded, err := json.Marshal(detail)
		if err != nil {
			s.logger.Warn("failed to encode audit detail", zap.Error(err))
		} else {
			raw = encoded
		}
	}
	entry := &models.AuditLog{
		AdminID:    actorID,
		Action:     action,
		Resource:   resource,
		ResourceID: resourceID,
		Detail:     raw,
		IPAddress:  ip,
		CreatedAt:  time.Now().UTC(),
	}
	if err := s.audit.Create(ctx, entry); err != nil {
		s.logger.Warn("failed to record audit log", zap.String("action", action), zap.Error(err))
	}
}
