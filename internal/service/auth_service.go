package service

import (
	"context"
	"crypto/rand"
	"database/sql"
	"errors"
	"fmt"
	"math/big"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/golang-jwt/jwt/v5"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type authUserRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.User, error)
	FindByID(ctx context.Context, id string) (*models.User, error)
	FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.User, error)
	Create(ctx context.Context, user *models.User) error
	Update(ctx context.Context, user *models.User) error
	SetOTP(ctx context.Context, id, otp string, expires time.Time) error
	MarkVerified(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, ts time.Time) error
}

type authAdminRepository interface {
	FindByEmail(ctx context.Context, email string) (*models.Admin, error)
	FindActiveByEmail(ctx context.Context, email string) (*models.Admin, error)
	FindByID(ctx context.Context, id string) (*models.Admin, error)
	FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.Admin, error)
	Create(ctx context.Context, admin *models.Admin) error
	Update(ctx context.Context, admin *models.Admin) error
	SetOTP(ctx context.Context, id, otp string, expires time.Time) error
	MarkVerified(ctx context.Context, id string) error
	RecordLogin(ctx context.Context, id string, ts time.Time) error
}

// AuthConfig defines configuration for authentication flows.
type AuthConfig struct {
	TokenSecret string
	TokenExpiry time.Duration
	OTPTTL      time.Duration
	BcryptCost  int
}

// AuthService implements registration, OTP verification and login for both
// user and admin populations.
type AuthService struct {
	users     authUserRepository
	admins    authAdminRepository
	notifier  Notifier
	validator *validator.Validate
	logger    *zap.Logger
	config    AuthConfig
}

// NewAuthService constructs an AuthService instance.
func NewAuthService(users authUserRepository, admins authAdminRepository, notifier Notifier, validate *validator.Validate, logger *zap.Logger, config AuthConfig) *AuthService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if validate == nil {
		validate = validator.New()
	}
	if config.TokenExpiry <= 0 {
		config.TokenExpiry = 7 * 24 * time.Hour
	}
	if config.OTPTTL <= 0 {
		config.OTPTTL = 10 * time.Minute
	}
	if config.BcryptCost <= 0 {
		config.BcryptCost = 12
	}
	return &AuthService{
		users:     users,
		admins:    admins,
		notifier:  notifier,
		validator: validate,
		logger:    logger,
		config:    config,
	}
}

// RegisterUser creates an unverified user account and emails an OTP. A
// verified account with the same email blocks registration; an unverified
// one is overwritten so a typo in the first attempt is recoverable.
func (s *AuthService) RegisterUser(ctx context.Context, req models.RegisterUserRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	req.Email = normalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}
	expires := time.Now().UTC().Add(s.config.OTPTTL)

	existing, err := s.users.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.IsEmailVerified:
		return nil, appErrors.Clone(appErrors.ErrConflict, "An account with this email already exists")
	case err == nil:
		existing.FirstName = req.FirstName
		existing.LastName = req.LastName
		existing.PasswordHash = string(hash)
		existing.EmailOTP = &otp
		existing.OTPExpires = &expires
		existing.IsActive = true
		if err := s.users.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh pending registration")
		}
	case errors.Is(err, sql.ErrNoRows):
		user := &models.User{Credential: models.Credential{
			FirstName:    req.FirstName,
			LastName:     req.LastName,
			Email:        req.Email,
			PasswordHash: string(hash),
			EmailOTP:     &otp,
			OTPExpires:   &expires,
			IsActive:     true,
		}}
		if err := s.users.Create(ctx, user); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	if err := s.notifier.SendOTP(ctx, req.Email, req.FirstName, otp); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to send verification email. Please try again.")
	}

	return &models.RegisterResponse{Email: req.Email, OTPSent: true}, nil
}

// RegisterAdmin creates an unverified admin account and emails an OTP.
// Permissions come from the request, defaulting to content_management when
// none are named.
func (s *AuthService) RegisterAdmin(ctx context.Context, req models.RegisterAdminRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid registration payload")
	}
	req.Email = normalizeEmail(req.Email)

	hash, err := bcrypt.GenerateFromPassword([]byte(req.Password), s.config.BcryptCost)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to hash password")
	}

	otp, err := generateOTP()
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}
	expires := time.Now().UTC().Add(s.config.OTPTTL)

	// Department only exists for faculty accounts; any value supplied with
	// another role is dropped.
	var department *string
	if req.Role == models.RoleFaculty && req.Department != "" {
		department = &req.Department
	}
	permissions := req.Permissions
	if len(permissions) == 0 {
		permissions = models.PermissionSet{models.PermContentManagement}
	}

	existing, err := s.admins.FindByEmail(ctx, req.Email)
	switch {
	case err == nil && existing.IsEmailVerified:
		return nil, appErrors.Clone(appErrors.ErrConflict, "An admin account with this email already exists")
	case err == nil:
		existing.FirstName = req.FirstName
		existing.LastName = req.LastName
		existing.PasswordHash = string(hash)
		existing.EmailOTP = &otp
		existing.OTPExpires = &expires
		existing.IsActive = true
		existing.Role = req.Role
		existing.Department = department
		existing.Permissions = permissions
		if err := s.admins.Update(ctx, existing); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to refresh pending registration")
		}
	case errors.Is(err, sql.ErrNoRows):
		admin := &models.Admin{
			Credential: models.Credential{
				FirstName:    req.FirstName,
				LastName:     req.LastName,
				Email:        req.Email,
				PasswordHash: string(hash),
				EmailOTP:     &otp,
				OTPExpires:   &expires,
				IsActive:     true,
			},
			Role:        req.Role,
			Department:  department,
			Permissions: permissions,
		}
		if err := s.admins.Create(ctx, admin); err != nil {
			return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to create account")
		}
	default:
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to check existing account")
	}

	if err := s.notifier.SendAdminOTP(ctx, req.Email, req.FirstName, otp, req.Role); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to send verification email. Please try again.")
	}

	return &models.RegisterResponse{Email: req.Email, OTPSent: true, Role: req.Role}, nil
}

// VerifyUserOTP confirms a user's email and issues the first token.
func (s *AuthService) VerifyUserOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.UserAuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	req.Email = normalizeEmail(req.Email)

	user, err := s.users.FindByEmailAndOTP(ctx, req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidOTP
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify code")
	}

	if err := s.users.MarkVerified(ctx, user.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark account verified")
	}
	user.IsEmailVerified = true
	user.EmailOTP = nil
	user.OTPExpires = nil

	if err := s.notifier.QueueWelcome(user.Email, user.FirstName); err != nil {
		s.logger.Warn("failed to queue welcome mail", zap.String("email", user.Email), zap.Error(err))
	}

	token, err := s.mintToken(user.ID, user.Email, models.KindUser, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	return &models.UserAuthResponse{Token: token, User: user}, nil
}

// VerifyAdminOTP confirms an admin's email and issues the first token.
func (s *AuthService) VerifyAdminOTP(ctx context.Context, req models.VerifyOTPRequest) (*models.AdminAuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid verification payload")
	}
	req.Email = normalizeEmail(req.Email)

	admin, err := s.admins.FindByEmailAndOTP(ctx, req.Email, req.OTP)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidOTP
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to verify code")
	}

	if err := s.admins.MarkVerified(ctx, admin.ID); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to mark account verified")
	}
	admin.IsEmailVerified = true
	admin.EmailOTP = nil
	admin.OTPExpires = nil

	if err := s.notifier.QueueAdminWelcome(admin.Email, admin.FirstName, admin.Role, admin.Department); err != nil {
		s.logger.Warn("failed to queue welcome mail", zap.String("email", admin.Email), zap.Error(err))
	}

	token, err := s.mintToken(admin.ID, admin.Email, models.KindAdmin, admin.Permissions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	return &models.AdminAuthResponse{Token: token, Admin: admin}, nil
}

// ResendUserOTP issues a fresh verification code for a pending user.
func (s *AuthService) ResendUserOTP(ctx context.Context, req models.ResendOTPRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resend payload")
	}
	req.Email = normalizeEmail(req.Email)

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No pending registration found for this email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	// Verified accounts answer the same 404 so resend never reveals
	// registration state.
	if user.IsEmailVerified {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No pending registration found for this email")
	}

	err = s.reissueOTP(
		func(otp string, expires time.Time) error {
			return s.users.SetOTP(ctx, user.ID, otp, expires)
		},
		func(otp string) error {
			return s.notifier.SendOTP(ctx, req.Email, user.FirstName, otp)
		},
	)
	if err != nil {
		return nil, err
	}
	return &models.RegisterResponse{Email: req.Email, OTPSent: true}, nil
}

// ResendAdminOTP issues a fresh verification code for a pending admin.
func (s *AuthService) ResendAdminOTP(ctx context.Context, req models.ResendOTPRequest) (*models.RegisterResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid resend payload")
	}
	req.Email = normalizeEmail(req.Email)

	admin, err := s.admins.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrNotFound, "No pending registration found for this email")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	if admin.IsEmailVerified {
		return nil, appErrors.Clone(appErrors.ErrNotFound, "No pending registration found for this email")
	}

	err = s.reissueOTP(
		func(otp string, expires time.Time) error {
			return s.admins.SetOTP(ctx, admin.ID, otp, expires)
		},
		func(otp string) error {
			return s.notifier.SendAdminOTP(ctx, req.Email, admin.FirstName, otp, admin.Role)
		},
	)
	if err != nil {
		return nil, err
	}
	return &models.RegisterResponse{Email: req.Email, OTPSent: true, Role: admin.Role}, nil
}

func (s *AuthService) reissueOTP(store func(otp string, expires time.Time) error, send func(otp string) error) error {
	otp, err := generateOTP()
	if err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to generate verification code")
	}
	expires := time.Now().UTC().Add(s.config.OTPTTL)
	if err := store(otp, expires); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to store verification code")
	}
	if err := send(otp); err != nil {
		return appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "Failed to send verification email. Please try again.")
	}
	return nil
}

// LoginUser authenticates a user and returns an issued token. Unverified
// accounts get a 403 carrying the redirect payload for the OTP screen. The
// active flag is an admin dashboard control and does not gate user login.
func (s *AuthService) LoginUser(ctx context.Context, req models.LoginRequest) (*models.UserAuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	req.Email = normalizeEmail(req.Email)

	user, err := s.users.FindByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if !user.IsEmailVerified {
		return nil, appErrors.WithFields(appErrors.ErrVerificationRequired, map[string]interface{}{
			"requiresVerification": true,
			"email":                user.Email,
		})
	}

	now := time.Now().UTC()
	if err := s.users.RecordLogin(ctx, user.ID, now); err != nil {
		s.logger.Warn("failed to record login", zap.String("user_id", user.ID), zap.Error(err))
	} else {
		user.LastLogin = &now
		user.LoginCount++
	}

	token, err := s.mintToken(user.ID, user.Email, models.KindUser, nil)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	return &models.UserAuthResponse{Token: token, User: user}, nil
}

// LoginAdmin authenticates an admin. Deactivated admins are resolved
// through the active-only lookup so they read as unknown accounts.
func (s *AuthService) LoginAdmin(ctx context.Context, req models.LoginRequest) (*models.AdminAuthResponse, error) {
	if err := s.validator.Struct(req); err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrValidation.Code, appErrors.ErrValidation.Status, "invalid login payload")
	}
	req.Email = normalizeEmail(req.Email)

	admin, err := s.admins.FindActiveByEmail(ctx, req.Email)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.ErrInvalidCredentials
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}

	if err := bcrypt.CompareHashAndPassword([]byte(admin.PasswordHash), []byte(req.Password)); err != nil {
		return nil, appErrors.ErrInvalidCredentials
	}

	if !admin.IsEmailVerified {
		return nil, appErrors.WithFields(appErrors.ErrVerificationRequired, map[string]interface{}{
			"requiresVerification": true,
			"email":                admin.Email,
			"isAdmin":              true,
			"role":                 admin.Role,
		})
	}

	now := time.Now().UTC()
	if err := s.admins.RecordLogin(ctx, admin.ID, now); err != nil {
		s.logger.Warn("failed to record login", zap.String("admin_id", admin.ID), zap.Error(err))
	} else {
		admin.LastLogin = &now
		admin.LoginCount++
	}

	token, err := s.mintToken(admin.ID, admin.Email, models.KindAdmin, admin.Permissions)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to issue token")
	}

	return &models.AdminAuthResponse{Token: token, Admin: admin}, nil
}

// CurrentUser loads the profile behind a user token.
func (s *AuthService) CurrentUser(ctx context.Context, id string) (*models.User, error) {
	user, err := s.users.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return user, nil
}

// CurrentAdmin loads the profile behind an admin token.
func (s *AuthService) CurrentAdmin(ctx context.Context, id string) (*models.Admin, error) {
	admin, err := s.admins.FindByID(ctx, id)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Account no longer exists")
		}
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to load account")
	}
	return admin, nil
}

// ValidateToken parses and validates a token returning the claims.
func (s *AuthService) ValidateToken(tokenString string) (*models.TokenClaims, error) {
	token, err := jwt.ParseWithClaims(tokenString, &models.TokenClaims{}, func(token *jwt.Token) (interface{}, error) {
		if token.Method != jwt.SigningMethodHS256 {
			return nil, fmt.Errorf("unexpected signing method: %v", token.Header["alg"])
		}
		return []byte(s.config.TokenSecret), nil
	})
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrUnauthorized.Code, appErrors.ErrUnauthorized.Status, "Invalid or expired token")
	}

	claims, ok := token.Claims.(*models.TokenClaims)
	if !ok || !token.Valid {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid or expired token")
	}
	if !claims.Kind.Valid() {
		return nil, appErrors.Clone(appErrors.ErrUnauthorized, "Invalid or expired token")
	}

	return claims, nil
}

func (s *AuthService) mintToken(id, email string, kind models.PrincipalKind, permissions models.PermissionSet) (string, error) {
	issuedAt := time.Now().UTC()
	claims := &models.TokenClaims{
		ID:          id,
		Email:       email,
		Kind:        kind,
		Permissions: permissions,
		RegisteredClaims: jwt.RegisteredClaims{
			Subject:   id,
			ExpiresAt: jwt.NewNumericDate(issuedAt.Add(s.config.TokenExpiry)),
			IssuedAt:  jwt.NewNumericDate(issuedAt),
			NotBefore: jwt.NewNumericDate(issuedAt),
		},
	}

	token := jwt.NewWithClaims(jwt.SigningMethodHS256, claims)
	return token.SignedString([]byte(s.config.TokenSecret))
}

// normalizeEmail folds an address to its stored form so lookups never
// miss on case or stray whitespace.
func normalizeEmail(email string) string {
	return strings.ToLower(strings.TrimSpace(email))
}

// generateOTP returns a six digit code in [100000, 999999].
func generateOTP() (string, error) {
	n, err := rand.Int(rand.Reader, big.NewInt(900000))
	if err != nil {
		return "", err
	}
	return fmt.Sprintf("%06d", n.Int64()+100000), nil
}
