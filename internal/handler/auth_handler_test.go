package handler

import (
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"golang.org/x/crypto/bcrypt"

	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/service"
)

type fakeUserRepo struct {
	user    *models.User
	created *models.User
}

func (f *fakeUserRepo) FindByEmail(ctx context.Context, email string) (*models.User, error) {
	if f.user == nil {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeUserRepo) FindByID(ctx context.Context, id string) (*models.User, error) {
	if f.user == nil {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeUserRepo) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.User, error) {
	if f.user == nil || f.user.EmailOTP == nil || *f.user.EmailOTP != otp {
		return nil, sql.ErrNoRows
	}
	return f.user, nil
}

func (f *fakeUserRepo) Create(ctx context.Context, user *models.User) error {
	f.created = user
	return nil
}

func (f *fakeUserRepo) Update(ctx context.Context, user *models.User) error { return nil }
func (f *fakeUserRepo) SetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	return nil
}
func (f *fakeUserRepo) MarkVerified(ctx context.Context, id string) error { return nil }
func (f *fakeUserRepo) RecordLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

type fakeAdminRepo struct {
	admin *models.Admin
}

func (f *fakeAdminRepo) FindByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if f.admin == nil {
		return nil, sql.ErrNoRows
	}
	return f.admin, nil
}

func (f *fakeAdminRepo) FindActiveByEmail(ctx context.Context, email string) (*models.Admin, error) {
	if f.admin == nil || !f.admin.IsActive {
		return nil, sql.ErrNoRows
	}
	return f.admin, nil
}

func (f *fakeAdminRepo) FindByID(ctx context.Context, id string) (*models.Admin, error) {
	if f.admin == nil {
		return nil, sql.ErrNoRows
	}
	return f.admin, nil
}

func (f *fakeAdminRepo) FindByEmailAndOTP(ctx context.Context, email, otp string) (*models.Admin, error) {
	return nil, sql.ErrNoRows
}

func (f *fakeAdminRepo) Create(ctx context.Context, admin *models.Admin) error { return nil }
func (f *fakeAdminRepo) Update(ctx context.Context, admin *models.Admin) error { return nil }
func (f *fakeAdminRepo) SetOTP(ctx context.Context, id, otp string, expires time.Time) error {
	return nil
}
func (f *fakeAdminRepo) MarkVerified(ctx context.Context, id string) error { return nil }
func (f *fakeAdminRepo) RecordLogin(ctx context.Context, id string, ts time.Time) error {
	return nil
}

type silentNotifier struct{}

func (silentNotifier) SendOTP(ctx context.Context, email, firstName, otp string) error { return nil }
func (silentNotifier) SendAdminOTP(ctx context.Context, email, firstName, otp string, role models.AdminRole) error {
	return nil
}
func (silentNotifier) QueueWelcome(email, firstName string) error { return nil }
func (silentNotifier) QueueAdminWelcome(email, firstName string, role models.AdminRole, department *string) error {
	return nil
}

func newAuthHandler(users *fakeUserRepo, admins *fakeAdminRepo) *AuthHandler {
	svc := service.NewAuthService(users, admins, silentNotifier{}, validator.New(), zap.NewNop(), service.AuthConfig{
		TokenSecret: "secret",
		TokenExpiry: time.Hour,
		BcryptCost:  bcrypt.MinCost,
	})
	return NewAuthHandler(svc, nil)
}

func postJSON(t *testing.T, handler gin.HandlerFunc, body string) *httptest.ResponseRecorder {
	t.Helper()
	gin.SetMode(gin.TestMode)
	rec := httptest.NewRecorder()
	c, _ := gin.CreateTestContext(rec)
	c.Request = httptest.NewRequest(http.MethodPost, "/", strings.NewReader(body))
	c.Request.Header.Set("Content-Type", "application/json")
	handler(c)
	return rec
}

func decodeBody(t *testing.T, rec *httptest.ResponseRecorder) map[string]interface{} {
	t.Helper()
	var body map[string]interface{}
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &body))
	return body
}

func TestRegisterUserCreatesPendingAccount(t *testing.T) {
	users := &fakeUserRepo{}
	handler := newAuthHandler(users, &fakeAdminRepo{})

	rec := postJSON(t, handler.Register(models.KindUser), `{
		"firstName": "Ada",
		"lastName": "Lovelace",
		"email": "ada@example.com",
		"password": "secret1"
	}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	require.NotNil(t, users.created)
	assert.False(t, users.created.IsEmailVerified)
	assert.NotNil(t, users.created.EmailOTP)

	body := decodeBody(t, rec)
	assert.Equal(t, true, body["success"])
	assert.Contains(t, body["message"], "check your email")

	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["otpSent"])
}

func TestRegisterUserRejectsBadPayload(t *testing.T) {
	handler := newAuthHandler(&fakeUserRepo{}, &fakeAdminRepo{})

	rec := postJSON(t, handler.Register(models.KindUser), `{"email": "not-an-email"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, false, body["success"])
	assert.Equal(t, "Validation failed", body["message"])

	details, ok := body["errors"].([]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, details)
}

func TestLoginUserSuccess(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &fakeUserRepo{user: &models.User{Credential: models.Credential{
		ID:              "u1",
		Email:           "ada@example.com",
		PasswordHash:    string(hash),
		IsEmailVerified: true,
		IsActive:        true,
	}}}
	handler := newAuthHandler(users, &fakeAdminRepo{})

	rec := postJSON(t, handler.Login(models.KindUser), `{"email": "ada@example.com", "password": "secret1"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
}

func TestLoginUserUnverifiedCarriesRedirectPayload(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("secret1"), bcrypt.MinCost)
	require.NoError(t, err)
	users := &fakeUserRepo{user: &models.User{Credential: models.Credential{
		ID:           "u1",
		Email:        "ada@example.com",
		PasswordHash: string(hash),
		IsActive:     true,
	}}}
	handler := newAuthHandler(users, &fakeAdminRepo{})

	rec := postJSON(t, handler.Login(models.KindUser), `{"email": "ada@example.com", "password": "secret1"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["requiresVerification"])
	assert.Equal(t, "ada@example.com", body["email"])
}

func TestVerifyUserOTPIssuesToken(t *testing.T) {
	otp := "123456"
	users := &fakeUserRepo{user: &models.User{Credential: models.Credential{
		ID:       "u1",
		Email:    "ada@example.com",
		EmailOTP: &otp,
		IsActive: true,
	}}}
	handler := newAuthHandler(users, &fakeAdminRepo{})

	rec := postJSON(t, handler.VerifyOTP(models.KindUser), `{"email": "ada@example.com", "otp": "123456"}`)

	assert.Equal(t, http.StatusCreated, rec.Code)
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.NotEmpty(t, data["token"])
}

func TestVerifyUserOTPWrongCode(t *testing.T) {
	otp := "123456"
	users := &fakeUserRepo{user: &models.User{Credential: models.Credential{
		ID:       "u1",
		Email:    "ada@example.com",
		EmailOTP: &otp,
	}}}
	handler := newAuthHandler(users, &fakeAdminRepo{})

	rec := postJSON(t, handler.VerifyOTP(models.KindUser), `{"email": "ada@example.com", "otp": "654321"}`)

	assert.Equal(t, http.StatusBadRequest, rec.Code)
}

func TestResendOTPUnknownEmail(t *testing.T) {
	handler := newAuthHandler(&fakeUserRepo{}, &fakeAdminRepo{})

	rec := postJSON(t, handler.ResendOTP(models.KindUser), `{"email": "nobody@example.com"}`)

	assert.Equal(t, http.StatusNotFound, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, "No pending registration found for this email", body["message"])
}

func TestResendAdminOTPIncludesRole(t *testing.T) {
	admins := &fakeAdminRepo{admin: &models.Admin{
		Credential: models.Credential{
			ID:        "a1",
			Email:     "grace@example.com",
			FirstName: "Grace",
		},
		Role: models.RoleHR,
	}}
	handler := newAuthHandler(&fakeUserRepo{}, admins)

	rec := postJSON(t, handler.ResendOTP(models.KindAdmin), `{"email": "grace@example.com"}`)

	assert.Equal(t, http.StatusOK, rec.Code)
	body := decodeBody(t, rec)
	data, ok := body["data"].(map[string]interface{})
	require.True(t, ok)
	assert.Equal(t, true, data["otpSent"])
	assert.Equal(t, string(models.RoleHR), data["role"])
}

func TestLoginAdminUnverifiedIncludesRole(t *testing.T) {
	hash, err := bcrypt.GenerateFromPassword([]byte("longenough"), bcrypt.MinCost)
	require.NoError(t, err)
	admins := &fakeAdminRepo{admin: &models.Admin{
		Credential: models.Credential{
			ID:           "a1",
			Email:        "grace@example.com",
			PasswordHash: string(hash),
			IsActive:     true,
		},
		Role: models.RoleHR,
	}}
	handler := newAuthHandler(&fakeUserRepo{}, admins)

	rec := postJSON(t, handler.Login(models.KindAdmin), `{"email": "grace@example.com", "password": "longenough"}`)

	assert.Equal(t, http.StatusForbidden, rec.Code)
	body := decodeBody(t, rec)
	assert.Equal(t, true, body["isAdmin"])
	assert.Equal(t, string(models.RoleHR), body["role"])
}
