package service

import (
	"context"
	"database/sql"
	"errors"
	"strconv"
	"testing"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/notevault/notevault-api/internal/models"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

type mockUserRepo struct {
	byEmail     *models.User
	byID        *models.User
	byOTP       *models.User
	created     *models.User
	updated     *models.User
	otpSet      string
	verified    bool
	loginStamps int
}

func (m *mockUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if m.byEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.byEmail, nil
}

func (m *mockUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockUserRepo) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.User, error) {
	if m.byOTP == nil {
		return nil, sql.ErrNoRows
	}
	return m.byOTP, nil
}

func (m *mockUserRepo) Create(ctx context.Context, user *models.User) error {
	user.ID = "u1"
	m.created = user
	return nil
}

func (m *mockUserRepo) Update(ctx context.Context, user *models.User) error {
	m.updated = user
	return nil
}

func (m *mockUserRepo) SetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	m.otpSet = otp
	return nil
}

func (m *mockUserRepo) MarkVerified(ctx context.Context, id string) error {
	m.verified = true
	return nil
}

func (m *mockUserRepo) RecordLogin(ctx context.Context, id string, ts time.Time) error {
	m.loginStamps++
	return nil
}

type mockAdminRepo struct {
	byEmail       *models.Admin
	activeByEmail *models.Admin
	byID          *models.Admin
	byOTP         *models.Admin
	created       *models.Admin
	verified      bool
	loginStamps   int
}

func (m *mockAdminRepo) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if m.byEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.byEmail, nil
}

func (m *mockAdminRepo) FindActiveByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if m.activeByEmail == nil {
		return nil, sql.ErrNoRows
	}
	return m.activeByEmail, nil
}

func (m *mockAdminRepo) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	if m.byID == nil {
		return nil, sql.ErrNoRows
	}
	return m.byID, nil
}

func (m *mockAdminRepo) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.Admin, error) {
	if m.byOTP == nil {
		return nil, sql.ErrNoRows
	}
	return m.byOTP, nil
}

func (m *mockAdminRepo) Create(ctx context.Context, admin *models.Admin) error {
	admin.ID = "a1"
	m.created = admin
	return nil
}

func (m *mockAdminRepo) Update(ctx context.Context, admin *models.Admin) error { return nil }

func (m *mockAdminRepo) SetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	return nil
}

func (m *mockAdminRepo) MarkVerified(ctx context.Context, id string) error {
	m.verified = true
	return nil
}

func (m *mockAdminRepo) RecordLogin(ctx context.Context, id string, ts time.Time) error {
	m.loginStamps++
	return nil
}

type mockNotifier struct {
	otps          []string
	adminOtps     []string
	adminOtpRoles []models.AdminRole
	welcomes      []string
	adminWelcomes []string
	sendErr       error
}

func (m *mockNotifier) SendOTP(ctx context.Context, email, firstName, otp string) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.otps = append(m.otps, otp)
	return nil
}

func (m *mockNotifier) SendAdminOTP(ctx context.Context, email, firstName, otp string, role models.AdminRole) error {
	if m.sendErr != nil {
		return m.sendErr
	}
	m.adminOtps = append(m.adminOtps, otp)
	m.adminOtpRoles = append(m.adminOtpRoles, role)
	return nil
}

func (m *mockNotifier) QueueWelcome(email, firstName string) error {
	m.welcomes = append(m.welcomes, email)
	return nil
}

func (m *mockNotifier) QueueAdminWelcome(email, firstName string, role models.AdminRole, department *string) error {
	m.adminWelcomes = append(m.adminWelcomes, email)
	return nil
}

func newAuthService(users *mockUserRepo, admins *mockAdminRepo, notifier *mockNotifier) *AuthService {
	return NewAuthService(users, admins, notifier, validator.New(), zap.NewNop(), AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		OTPTTL:      10 * time.Minute,
		BcryptCost:  bcrypt.MinCost,
	})
}

func TestRegisterUserCreatesPendingAccount(t *testing.T) {
	users := &mockUserRepo{}
	notifier := &mockNotifier{}
	svc := newAuthService(users, &mockAdminRepo{}, notifier)

	res, err := svc.RegisterUser(context.Background(), models.RegisterUserRequest{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	assert.Equal(t, "ada@example.com", res.Email)

	require.NotNil(t, users.created)
	assert.False(t, users.created.IsEmailVerified)
	require.NotNil(t, users.created.EmailOTP)
	require.Len(t, notifier.otps, 1)
	assert.Equal(t, *users.created.EmailOTP, notifier.otps[0])
	assert.NotEqual(t, "secret1", users.created.PasswordHash)
}

func TestRegisterUserConflictsWhenVerified(t *testing.T) {
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", IsEmailVerified: true,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.RegisterUser(context.Background(), models.RegisterUserRequest{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret1",
	})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrConflict.Code, appErr.Code)
}

func TestRegisterUserOverwritesUnverified(t *testing.T) {
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", FirstName: "Old",
	}}}
	notifier := &mockNotifier{}
	svc := newAuthService(users, &mockAdminRepo{}, notifier)

	_, err := svc.RegisterUser(context.Background(), models.RegisterUserRequest{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret1",
	})
	require.NoError(t, err)
	require.NotNil(t, users.updated)
	assert.Equal(t, "Ada", users.updated.FirstName)
	assert.Nil(t, users.created)
	assert.Len(t, notifier.otps, 1)
}

func TestRegisterUserMailFailureSurfaces(t *testing.T) {
	users := &mockUserRepo{}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{sendErr: errors.New("smtp down")})

	_, err := svc.RegisterUser(context.Background(), models.RegisterUserRequest{
		FirstName: "Ada", LastName: "Lovelace",
		Email: "ada@example.com", Password: "secret1",
	})
	require.Error(t, err)
	assert.Contains(t, appErrors.FromError(err).Message, "verification email")
}

func TestRegisterAdminDefaultsToContentManagement(t *testing.T) {
	admins := &mockAdminRepo{}
	notifier := &mockNotifier{}
	svc := newAuthService(&mockUserRepo{}, admins, notifier)

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role: models.RoleHR,
	})
	require.NoError(t, err)
	require.NotNil(t, admins.created)
	assert.Equal(t, models.PermissionSet{models.PermContentManagement}, admins.created.Permissions)
	require.Len(t, notifier.adminOtpRoles, 1)
	assert.Equal(t, models.RoleHR, notifier.adminOtpRoles[0])
}

func TestRegisterAdminHonorsRequestedPermissions(t *testing.T) {
	admins := &mockAdminRepo{}
	svc := newAuthService(&mockUserRepo{}, admins, &mockNotifier{})

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role:        models.RoleHR,
		Permissions: models.PermissionSet{models.PermUserManagement, models.PermAnalytics},
	})
	require.NoError(t, err)
	require.NotNil(t, admins.created)
	assert.ElementsMatch(t, models.PermissionSet{models.PermUserManagement, models.PermAnalytics}, admins.created.Permissions)
}

func TestRegisterAdminRejectsUnknownPermission(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role:        models.RoleHR,
		Permissions: models.PermissionSet{"root"},
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestRegisterAdminNonFacultyDropsDepartment(t *testing.T) {
	admins := &mockAdminRepo{}
	svc := newAuthService(&mockUserRepo{}, admins, &mockNotifier{})

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role: models.RoleHR, Department: "Physics",
	})
	require.NoError(t, err)
	require.NotNil(t, admins.created)
	assert.Nil(t, admins.created.Department)
}

func TestRegisterAdminFacultyKeepsDepartment(t *testing.T) {
	admins := &mockAdminRepo{}
	svc := newAuthService(&mockUserRepo{}, admins, &mockNotifier{})

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role: models.RoleFaculty, Department: "Physics",
	})
	require.NoError(t, err)
	require.NotNil(t, admins.created)
	require.NotNil(t, admins.created.Department)
	assert.Equal(t, "Physics", *admins.created.Department)
}

func TestRegisterAdminFacultyRequiresDepartment(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.RegisterAdmin(context.Background(), models.RegisterAdminRequest{
		FirstName: "Grace", LastName: "Hopper",
		Email: "grace@example.com", Password: "longenough",
		Role: models.RoleFaculty,
	})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrValidation.Code, appErrors.FromError(err).Code)
}

func TestVerifyUserOTPSuccessIssuesToken(t *testing.T) {
	users := &mockUserRepo{byOTP: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", FirstName: "Ada",
	}}}
	notifier := &mockNotifier{}
	svc := newAuthService(users, &mockAdminRepo{}, notifier)

	res, err := svc.VerifyUserOTP(context.Background(), models.VerifyOTPRequest{Email: "ada@example.com", OTP: "123456"})
	require.NoError(t, err)
	assert.True(t, users.verified)
	assert.NotEmpty(t, res.Token)
	assert.True(t, res.User.IsEmailVerified)
	assert.Equal(t, []string{"ada@example.com"}, notifier.welcomes)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.KindUser, claims.Kind)
	assert.Equal(t, "u1", claims.ID)
}

func TestVerifyUserOTPInvalidCode(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.VerifyUserOTP(context.Background(), models.VerifyOTPRequest{Email: "ada@example.com", OTP: "000000"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidOTP.Code, appErrors.FromError(err).Code)
}

func TestVerifyAdminOTPQueuesAdminWelcome(t *testing.T) {
	department := "Physics"
	admins := &mockAdminRepo{byOTP: &models.Admin{
		Credential: models.Credential{ID: "a1", Email: "grace@example.com", FirstName: "Grace"},
		Role:       models.RoleFaculty,
		Department: &department,
	}}
	notifier := &mockNotifier{}
	svc := newAuthService(&mockUserRepo{}, admins, notifier)

	res, err := svc.VerifyAdminOTP(context.Background(), models.VerifyOTPRequest{Email: "grace@example.com", OTP: "123456"})
	require.NoError(t, err)
	assert.True(t, admins.verified)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, []string{"grace@example.com"}, notifier.adminWelcomes)
	assert.Empty(t, notifier.welcomes)
}

func TestLoginUserSuccess(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", PasswordHash: string(hash),
		IsEmailVerified: true, IsActive: true,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	res, err := svc.LoginUser(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
	assert.Equal(t, 1, users.loginStamps)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.KindUser, claims.Kind)
	assert.Empty(t, claims.Permissions)
}

func TestLoginUserWrongPassword(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", PasswordHash: string(hash),
		IsEmailVerified: true, IsActive: true,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.LoginUser(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "wrong"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginUserUnverifiedCarriesRedirectPayload(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", PasswordHash: string(hash), IsActive: true,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.LoginUser(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrVerificationRequired.Code, appErr.Code)
	assert.Equal(t, true, appErr.Fields["requiresVerification"])
	assert.Equal(t, "ada@example.com", appErr.Fields["email"])
}

func TestLoginUserDeactivatedStillLogsIn(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", PasswordHash: string(hash),
		IsEmailVerified: true, IsActive: false,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	// The active flag is an admin dashboard control; only admin login
	// filters on it.
	res, err := svc.LoginUser(context.Background(), models.LoginRequest{Email: "ada@example.com", Password: "secret1"})
	require.NoError(t, err)
	assert.NotEmpty(t, res.Token)
}

func TestLoginAdminUnverifiedCarriesRolePayload(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	admins := &mockAdminRepo{activeByEmail: &models.Admin{
		Credential: models.Credential{ID: "a1", Email: "grace@example.com", PasswordHash: string(hash), IsActive: true},
		Role:       models.RoleHR,
	}}
	svc := newAuthService(&mockUserRepo{}, admins, &mockNotifier{})

	_, err := svc.LoginAdmin(context.Background(), models.LoginRequest{Email: "grace@example.com", Password: "longenough"})
	require.Error(t, err)
	appErr := appErrors.FromError(err)
	assert.Equal(t, appErrors.ErrVerificationRequired.Code, appErr.Code)
	assert.Equal(t, true, appErr.Fields["isAdmin"])
	assert.Equal(t, models.RoleHR, appErr.Fields["role"])
}

func TestLoginAdminDeactivatedReadsAsUnknown(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.LoginAdmin(context.Background(), models.LoginRequest{Email: "grace@example.com", Password: "longenough"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrInvalidCredentials.Code, appErrors.FromError(err).Code)
}

func TestLoginAdminTokenEmbedsPermissions(t *testing.T) {
	hash, _ := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	admins := &mockAdminRepo{activeByEmail: &models.Admin{
		Credential:  models.Credential{ID: "a1", Email: "grace@example.com", PasswordHash: string(hash), IsEmailVerified: true, IsActive: true},
		Role:        models.RoleAdmin,
		Permissions: models.PermissionSet{models.PermSystemAdmin},
	}}
	svc := newAuthService(&mockUserRepo{}, admins, &mockNotifier{})

	res, err := svc.LoginAdmin(context.Background(), models.LoginRequest{Email: "grace@example.com", Password: "longenough"})
	require.NoError(t, err)

	claims, err := svc.ValidateToken(res.Token)
	require.NoError(t, err)
	assert.Equal(t, models.KindAdmin, claims.Kind)
	assert.True(t, claims.Permissions.Has(models.PermUserManagement))
}

func TestResendUserOTPAlreadyVerified(t *testing.T) {
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", IsEmailVerified: true,
	}}}
	svc := newAuthService(users, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.ResendUserOTP(context.Background(), models.ResendOTPRequest{Email: "ada@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResendUserOTPUnknownEmail(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})

	_, err := svc.ResendUserOTP(context.Background(), models.ResendOTPRequest{Email: "ghost@example.com"})
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrNotFound.Code, appErrors.FromError(err).Code)
}

func TestResendUserOTPStoresFreshCode(t *testing.T) {
	users := &mockUserRepo{byEmail: &models.User{Credential: models.Credential{
		ID: "u1", Email: "ada@example.com", FirstName: "Ada",
	}}}
	notifier := &mockNotifier{}
	svc := newAuthService(users, &mockAdminRepo{}, notifier)

	res, err := svc.ResendUserOTP(context.Background(), models.ResendOTPRequest{Email: "ada@example.com"})
	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	require.Len(t, notifier.otps, 1)
	assert.Equal(t, users.otpSet, notifier.otps[0])
}

func TestResendAdminOTPCarriesRole(t *testing.T) {
	admins := &mockAdminRepo{byEmail: &models.Admin{
		Credential: models.Credential{ID: "a1", Email: "grace@example.com", FirstName: "Grace"},
		Role:       models.RoleFaculty,
	}}
	notifier := &mockNotifier{}
	svc := newAuthService(&mockUserRepo{}, admins, notifier)

	res, err := svc.ResendAdminOTP(context.Background(), models.ResendOTPRequest{Email: "grace@example.com"})
	require.NoError(t, err)
	assert.True(t, res.OTPSent)
	assert.Equal(t, models.RoleFaculty, res.Role)
	require.Len(t, notifier.adminOtpRoles, 1)
	assert.Equal(t, models.RoleFaculty, notifier.adminOtpRoles[0])
}

func TestGenerateOTPRange(t *testing.T) {
	for i := 0; i < 50; i++ {
		otp, err := generateOTP()
		require.NoError(t, err)
		require.Len(t, otp, 6)
		n, err := strconv.Atoi(otp)
		require.NoError(t, err)
		assert.GreaterOrEqual(t, n, 100000)
		assert.LessOrEqual(t, n, 999999)
	}
}

func TestValidateTokenRejectsGarbage(t *testing.T) {
	svc := newAuthService(&mockUserRepo{}, &mockAdminRepo{}, &mockNotifier{})
	_, err := svc.ValidateToken("not-a-token")
	require.Error(t, err)
	assert.Equal(t, appErrors.ErrUnauthorized.Code, appErrors.FromError(err).Code)
}
