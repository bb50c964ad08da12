package handler

import (
	"net/http"

	"github.com/gin-gonic/gin"

	"github.com/notevault/notevault-api/internal/middleware"
	"github.com/notevault/notevault-api/internal/models"
	"github.com/notevault/notevault-api/internal/service"
	appErrors "github.com/notevault/notevault-api/pkg/errors"
	"github.com/notevault/notevault-api/pkg/response"
)

// AuthHandler wires HTTP endpoints to the auth service. The same handler
// serves both populations; each route builder takes the principal kind.
type AuthHandler struct {
	service *service.AuthService
	metrics *service.MetricsService
}

// NewAuthHandler creates a new handler.
func NewAuthHandler(svc *service.AuthService, metrics *service.MetricsService) *AuthHandler {
	return &AuthHandler{service: svc, metrics: metrics}
}

// Register godoc
// @Summary Register an account
// @Description Create an unverified account and email a verification code
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Failure 409 {object} map[string]interface{}
// @Router /auth/user/register [post]
func (h *AuthHandler) Register(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var (
			res *models.RegisterResponse
			err error
		)
		switch kind {
		case models.KindAdmin:
			var req models.RegisterAdminRequest
			if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
				response.Error(c, appErrors.Wrap(bindErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid registration payload"))
				return
			}
			res, err = h.service.RegisterAdmin(c.Request.Context(), req)
		default:
			var req models.RegisterUserRequest
			if bindErr := c.ShouldBindJSON(&req); bindErr != nil {
				response.Error(c, appErrors.Wrap(bindErr, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid registration payload"))
				return
			}
			res, err = h.service.RegisterUser(c.Request.Context(), req)
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordOTPMail()
		}

		// The account is only pending at this point, so the original API
		// answers 200 and reserves 201 for the completed verification.
		response.OK(c, "Registration successful! Please check your email for the verification code.", res)
	}
}

// VerifyOTP godoc
// @Summary Verify email address
// @Description Confirm the emailed code and issue the first token
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 201 {object} map[string]interface{}
// @Failure 400 {object} map[string]interface{}
// @Router /auth/user/verify-otp [post]
func (h *AuthHandler) VerifyOTP(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.VerifyOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid verification payload"))
			return
		}

		// Verification completes the registration, so this is the 201.
		if kind == models.KindAdmin {
			res, err := h.service.VerifyAdminOTP(c.Request.Context(), req)
			if err != nil {
				response.Error(c, err)
				return
			}
			response.Created(c, "Email verified successfully! Registration completed.", res)
			return
		}

		res, err := h.service.VerifyUserOTP(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		response.Created(c, "Email verified successfully! Registration completed.", res)
	}
}

// ResendOTP godoc
// @Summary Resend verification code
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 404 {object} map[string]interface{}
// @Router /auth/user/resend-otp [post]
func (h *AuthHandler) ResendOTP(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.ResendOTPRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid resend payload"))
			return
		}

		var (
			res *models.RegisterResponse
			err error
		)
		if kind == models.KindAdmin {
			res, err = h.service.ResendAdminOTP(c.Request.Context(), req)
		} else {
			res, err = h.service.ResendUserOTP(c.Request.Context(), req)
		}
		if err != nil {
			response.Error(c, err)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordOTPMail()
		}

		response.OK(c, "A new verification code has been sent to your email", res)
	}
}

// Login godoc
// @Summary Authenticate an account
// @Description Authenticate by email and password
// @Tags Authentication
// @Accept json
// @Produce json
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Failure 403 {object} map[string]interface{}
// @Router /auth/user/login [post]
func (h *AuthHandler) Login(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		var req models.LoginRequest
		if err := c.ShouldBindJSON(&req); err != nil {
			response.Error(c, appErrors.Wrap(err, appErrors.ErrValidation.Code, http.StatusBadRequest, "Invalid login payload"))
			return
		}

		if kind == models.KindAdmin {
			res, err := h.service.LoginAdmin(c.Request.Context(), req)
			if err != nil {
				response.Error(c, err)
				return
			}
			if h.metrics != nil {
				h.metrics.RecordLogin(string(models.KindAdmin))
			}
			response.OK(c, "Login successful", res)
			return
		}

		res, err := h.service.LoginUser(c.Request.Context(), req)
		if err != nil {
			response.Error(c, err)
			return
		}
		if h.metrics != nil {
			h.metrics.RecordLogin(string(models.KindUser))
		}
		response.OK(c, "Login successful", res)
	}
}

// Me godoc
// @Summary Current account profile
// @Tags Authentication
// @Produce json
// @Security BearerAuth
// @Success 200 {object} map[string]interface{}
// @Failure 401 {object} map[string]interface{}
// @Router /auth/user/me [get]
func (h *AuthHandler) Me(kind models.PrincipalKind) gin.HandlerFunc {
	return func(c *gin.Context) {
		if kind == models.KindAdmin {
			admin, ok := middleware.CurrentAdmin(c)
			if !ok {
				response.Error(c, appErrors.ErrUnauthorized)
				return
			}
			response.OK(c, "", gin.H{"admin": admin})
			return
		}

		user, ok := middleware.CurrentUser(c)
		if !ok {
			response.Error(c, appErrors.ErrUnauthorized)
			return
		}
		response.OK(c, "", gin.H{"user": user})
	}
}
