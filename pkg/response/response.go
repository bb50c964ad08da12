package response

import (
	"errors"
	"net/http"

	"github.com/gin-gonic/gin"
	"github.com/go-playground/validator/v10"

	appErrors "github.com/notevault/notevault-api/pkg/errors"
)

// All endpoints answer with the `{success, message?, data?, errors?}`
// envelope the frontend was built against. Error responses may carry extra
// top-level keys (requiresVerification, email, ...) taken from the error's
// Fields.

// JSON sends a success envelope with the given status.
func JSON(c *gin.Context, status int, message string, data interface{}) {
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")

	body := gin.H{"success": true}
	if message != "" {
		body["message"] = message
	}
	if data != nil {
		body["data"] = data
	}
	c.JSON(status, body)
}

// OK responds with HTTP 200.
func OK(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusOK, message, data)
}

// Created responds with HTTP 201.
func Created(c *gin.Context, message string, data interface{}) {
	JSON(c, http.StatusCreated, message, data)
}

// Error sends a failure envelope derived from the error. Struct validation
// failures get the field-by-field breakdown the frontend renders inline.
func Error(c *gin.Context, err error) {
	var fieldErrs validator.ValidationErrors
	if errors.As(err, &fieldErrs) {
		details := make([]gin.H, 0, len(fieldErrs))
		for _, fe := range fieldErrs {
			details = append(details, gin.H{"field": fe.Field(), "rule": fe.Tag()})
		}
		ValidationError(c, details)
		return
	}

	appErr := appErrors.FromError(err)

	body := gin.H{"success": false, "message": appErr.Message}
	for key, value := range appErr.Fields {
		body[key] = value
	}

	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(appErr.Status, body)
}

// ValidationError reports field-level validation detail in the shape the
// original API used: a 400 with message "Validation failed" and an errors
// array.
func ValidationError(c *gin.Context, details interface{}) {
	body := gin.H{"success": false, "message": "Validation failed"}
	if details != nil {
		body["errors"] = details
	}
	c.Header("Cache-Control", "no-store")
	c.Header("Pragma", "no-cache")
	c.JSON(http.StatusBadRequest, body)
}
