package models

import (
	"github.com/golang-jwt/jwt/v5"
)

// RegisterUserRequest holds the payload for user self-registration.
type RegisterUserRequest struct {
	FirstName string `json:"firstName" validate:"required,min=2,max=50"`
	LastName  string `json:"lastName" validate:"required,min=2,max=50"`
	Email     string `json:"email" validate:"required,email"`
	Password  string `json:"password" validate:"required,min=6"`
}

// RegisterAdminRequest holds the payload for admin registration. Faculty
// accounts must name their department. Permissions default to
// content_management when omitted.
type RegisterAdminRequest struct {
	FirstName   string        `json:"firstName" validate:"required,min=2,max=50"`
	LastName    string        `json:"lastName" validate:"required,min=2,max=50"`
	Email       string        `json:"email" validate:"required,email"`
	Password    string        `json:"password" validate:"required,min=8"`
	Role        AdminRole     `json:"role" validate:"required,oneof=admin hr faculty"`
	Department  string        `json:"department" validate:"required_if=Role faculty,omitempty,max=100"`
	Permissions PermissionSet `json:"permissions" validate:"omitempty,dive,oneof=content_management user_management analytics system_admin"`
}

// VerifyOTPRequest confirms ownership of an email address.
type VerifyOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
	OTP   string `json:"otp" validate:"required,len=6,numeric"`
}

// ResendOTPRequest asks for a fresh verification code.
type ResendOTPRequest struct {
	Email string `json:"email" validate:"required,email"`
}

// LoginRequest holds credentials for authenticating either population.
type LoginRequest struct {
	Email    string `json:"email" validate:"required,email"`
	Password string `json:"password" validate:"required"`
}

// TokenClaims is the JWT payload. The userType claim carries the
// principal kind so a user token can never pass the admin gate.
type TokenClaims struct {
	ID          string        `json:"id"`
	Email       string        `json:"email"`
	Kind        PrincipalKind `json:"userType"`
	Permissions PermissionSet `json:"permissions,omitempty"`
	jwt.RegisteredClaims
}

// RegisterResponse is returned after a successful registration. The client
// is redirected to the OTP entry screen.
type RegisterResponse struct {
	Email   string    `json:"email"`
	OTPSent bool      `json:"otpSent"`
	Role    AdminRole `json:"role,omitempty"`
}

// UserAuthResponse returns the issued token and user profile.
type UserAuthResponse struct {
	Token string `json:"token"`
	User  *User  `json:"user"`
}

// AdminAuthResponse returns the issued token and admin profile.
type AdminAuthResponse struct {
	Token string `json:"token"`
	Admin *Admin `json:"admin"`
}
