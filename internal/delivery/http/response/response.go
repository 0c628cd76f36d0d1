// Package response writes the JSON envelope shared by every HTTP endpoint.
package response

import (
	"net/http"

	domainerrors "idlink/internal/domain/errors"

	"github.com/labstack/echo/v4"
)

// Response unified API response structure
type Response struct {
	Success bool                    `json:"success"`
	Code    int                     `json:"code"`    // HTTP status code
	Message string                  `json:"message"` // User-friendly message
	Data    any                     `json:"data,omitempty"`
	Error   *domainerrors.ErrorInfo `json:"error,omitempty"`
}

// Success successful response
func Success(c echo.Context, statusCode int, data any, message string) error {
	if message == "" {
		message = "Success"
	}

	return c.JSON(statusCode, Response{
		Success: true,
		Code:    statusCode,
		Message: message,
		Data:    data,
	})
}

// Error error response
func Error(c echo.Context, statusCode int, errorCode string, message string, details any) error {
	if message == "" {
		message = http.StatusText(statusCode)
	}

	return c.JSON(statusCode, Response{
		Success: false,
		Code:    statusCode,
		Message: message,
		Error: &domainerrors.ErrorInfo{
			Code:    errorCode,
			Details: details,
		},
	})
}

// AppError writes the status, code and message carried by a domain error.
func AppError(c echo.Context, err domainerrors.AppError) error {
	var details any
	if d := err.Details(); d != "" {
		details = d
	}

	return Error(c, err.HTTPCode(), err.ErrorCode(), err.Message(), details)
}

// ValidationError 400 error listing the rule each form field broke.
func ValidationError(c echo.Context, fields map[string]string) error {
	return Error(c, http.StatusBadRequest, domainerrors.ErrValidationFailed.ErrorCode(), domainerrors.ErrValidationFailed.Message(), fields)
}

// BindingError binding error response
func BindingError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusBadRequest, errorCode, message, nil)
}

// InternalServerError 500 error
func InternalServerError(c echo.Context, errorCode string, message string) error {
	return Error(c, http.StatusInternalServerError, errorCode, message, nil)
}
