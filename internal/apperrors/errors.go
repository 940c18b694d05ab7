// Package apperrors provides the categorized errors returned by the API.
package apperrors

import (
	"errors"
	"net/http"
)

// Error codes, one per category.
const (
	CodeValidation     = "validation_error"
	CodeAuthentication = "authentication_error"
	CodeConflict       = "conflict"
	CodeNotFound       = "not_found"
	CodeInternal       = "internal_error"
)

// APIError represents a categorized error and its response body.
type APIError struct {
	Code          string   `json:"code"`
	Message       string   `json:"message"`
	MissingFields []string `json:"missingFields,omitempty"`
	StatusCode    int      `json:"-"`
}

// Error implements the error interface.
func (e *APIError) Error() string {
	return e.Message
}

// Is matches any APIError of the same category.
func (e *APIError) Is(target error) bool {
	t, ok := target.(*APIError)
	if !ok {
		return false
	}
	return e.Code == t.Code
}

// WithMessage returns a copy of the error with a custom message.
func (e *APIError) WithMessage(message string) *APIError {
	return &APIError{
		Code:          e.Code,
		Message:       message,
		MissingFields: e.MissingFields,
		StatusCode:    e.StatusCode,
	}
}

// Category sentinels; compare with errors.Is.
var (
	// ErrValidation is returned for malformed or missing input.
	ErrValidation = &APIError{
		Code:       CodeValidation,
		Message:    "Invalid request",
		StatusCode: http.StatusBadRequest,
	}

	// ErrAuthentication is returned for bad credentials or sessions. The
	// message is intentionally the same for every cause.
	ErrAuthentication = &APIError{
		Code:       CodeAuthentication,
		Message:    "Invalid email or password",
		StatusCode: http.StatusUnauthorized,
	}

	// ErrConflict is returned when a unique resource already exists.
	ErrConflict = &APIError{
		Code:       CodeConflict,
		Message:    "Resource already exists",
		StatusCode: http.StatusBadRequest,
	}

	// ErrNotFound is returned when a referenced entity is gone.
	ErrNotFound = &APIError{
		Code:       CodeNotFound,
		Message:    "Resource not found",
		StatusCode: http.StatusNotFound,
	}

	// ErrInternal is returned for anything unexpected.
	ErrInternal = &APIError{
		Code:       CodeInternal,
		Message:    "Internal server error",
		StatusCode: http.StatusInternalServerError,
	}
)

// Validation creates a validation error with a custom message.
func Validation(message string) *APIError {
	return ErrValidation.WithMessage(message)
}

// MissingFields creates a validation error listing the missing field names.
func MissingFields(fields []string) *APIError {
	return &APIError{
		Code:          CodeValidation,
		Message:       "All fields are required",
		MissingFields: fields,
		StatusCode:    http.StatusBadRequest,
	}
}

// Unauthorized creates an authentication error with a custom message.
func Unauthorized(message string) *APIError {
	return ErrAuthentication.WithMessage(message)
}

// Conflict creates a conflict error with a custom message.
func Conflict(message string) *APIError {
	return ErrConflict.WithMessage(message)
}

// NotFound creates a not found error with a custom message.
func NotFound(message string) *APIError {
	return ErrNotFound.WithMessage(message)
}

// As converts err to an APIError. Anything that is not already categorized
// becomes ErrInternal so internals never reach the caller.
func As(err error) *APIError {
	var apiErr *APIError
	if errors.As(err, &apiErr) {
		return apiErr
	}
	return ErrInternal
}
