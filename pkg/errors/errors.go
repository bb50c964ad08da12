package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Error represents a typed domain error with HTTP awareness. Fields carries
// extra top-level keys for the response envelope (e.g. the verification
// redirect payload on login).
type Error struct {
	Code    string                 `json:"code"`
	Message string                 `json:"message"`
	Status  int                    `json:"status"`
	Fields  map[string]interface{} `json:"-"`
	Err     error                  `json:"-"`
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e == nil {
		return "<nil>"
	}
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Err)
	}
	return e.Message
}

// Unwrap returns the wrapped error.
func (e *Error) Unwrap() error {
	if e == nil {
		return nil
	}
	return e.Err
}

// New creates a new Error instance.
func New(code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message}
}

// Wrap attaches context to an existing error.
func Wrap(err error, code string, status int, message string) *Error {
	return &Error{Code: code, Status: status, Message: message, Err: err}
}

// Predefined errors for common scenarios.
var (
	ErrInvalidCredentials   = New("INVALID_CREDENTIALS", http.StatusUnauthorized, "Invalid email or password")
	ErrVerificationRequired = New("VERIFICATION_REQUIRED", http.StatusForbidden, "Please verify your email address to login. Check your inbox for the verification code.")
	ErrInvalidOTP           = New("INVALID_OTP", http.StatusBadRequest, "Invalid or expired OTP. Please request a new one.")
	ErrNotFound             = New("NOT_FOUND", http.StatusNotFound, "Resource not found")
	ErrForbidden            = New("FORBIDDEN", http.StatusForbidden, "Insufficient permissions")
	ErrUnauthorized         = New("UNAUTHORIZED", http.StatusUnauthorized, "Unauthorized")
	ErrConflict             = New("CONFLICT", http.StatusConflict, "Conflict")
	ErrValidation           = New("VALIDATION_ERROR", http.StatusBadRequest, "Validation failed")
	ErrTooManyRequests      = New("TOO_MANY_REQUESTS", http.StatusTooManyRequests, "Too many requests, please try again later")
	ErrInternal             = New("INTERNAL_ERROR", http.StatusInternalServerError, "Internal server error")
	ErrCacheMiss            = New("CACHE_MISS", http.StatusInternalServerError, "cache miss")
)

// FromError normalises any error into an *Error.
func FromError(err error) *Error {
	if err == nil {
		return nil
	}
	var e *Error
	if errors.As(err, &e) {
		return e
	}
	return Wrap(err, ErrInternal.Code, ErrInternal.Status, ErrInternal.Message)
}

// Clone returns a copy of the error allowing for message overrides.
func Clone(err *Error, message string) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	if message != "" {
		clone.Message = message
	}
	return &clone
}

// WithFields returns a copy of the error carrying extra envelope keys.
func WithFields(err *Error, fields map[string]interface{}) *Error {
	if err == nil {
		return nil
	}
	clone := *err
	clone.Fields = fields
	return &clone
}
