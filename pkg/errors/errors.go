package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
)

// ErrorType represents different classes of application errors
type ErrorType string

const (
	ErrorTypeMalformedInput ErrorType = "malformed_input"
	ErrorTypeValidation     ErrorType = "validation"
	ErrorTypeDuplicate      ErrorType = "duplicate"
	ErrorTypeRateLimit      ErrorType = "rate_limit"
	ErrorTypeDataSource     ErrorType = "data_source_unavailable"
	ErrorTypeNotFound       ErrorType = "not_found"
	ErrorTypeForbidden      ErrorType = "forbidden"
	ErrorTypeInternal       ErrorType = "internal"
)

// Machine-readable codes returned to API clients.
const (
	CodeMalformedJSON         = "malformed_json"
	CodeValidationFailed      = "validation_failed"
	CodeDuplicateDetected     = "duplicate_detected"
	CodeRateLimited           = "rate_limited"
	CodeDataSourceUnavailable = "data_source_unavailable"
	CodeInvalidParameter      = "invalid_parameter"
	CodeNotFound              = "not_found"
	CodeForbidden             = "forbidden"
	CodeInternal              = "internal_error"
)

// AppError represents a structured application error
type AppError struct {
	Type       ErrorType              `json:"-"`
	Code       string                 `json:"code"`
	Message    string                 `json:"message"`
	StatusCode int                    `json:"-"`
	Internal   error                  `json:"-"`
	Details    map[string]interface{} `json:"details,omitempty"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Internal != nil {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Internal.Error())
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the wrapped error
func (e *AppError) Unwrap() error {
	return e.Internal
}

// WithDetails returns a copy of the error carrying extra details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	cp := *e
	cp.Details = details
	return &cp
}

// NewMalformedInputError is returned when a request body cannot be parsed.
func NewMalformedInputError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeMalformedInput,
		Code:       CodeMalformedJSON,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Internal:   internal,
	}
}

// NewValidationFailedError is returned when core or high-frequency properties are rejected.
func NewValidationFailedError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeValidationFailed,
		Message:    message,
		StatusCode: http.StatusBadRequest,
	}
}

// NewInvalidParameterError is returned for bad query parameters.
func NewInvalidParameterError(message string, details map[string]interface{}) *AppError {
	return &AppError{
		Type:       ErrorTypeValidation,
		Code:       CodeInvalidParameter,
		Message:    message,
		StatusCode: http.StatusBadRequest,
		Details:    details,
	}
}

// NewDuplicateError is returned when a suggestion lies too close to an existing toilet.
func NewDuplicateError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeDuplicate,
		Code:       CodeDuplicateDetected,
		Message:    message,
		StatusCode: http.StatusConflict,
	}
}

// NewRateLimitError creates a new rate limit error
func NewRateLimitError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeRateLimit,
		Code:       CodeRateLimited,
		Message:    message,
		StatusCode: http.StatusTooManyRequests,
	}
}

// NewDataSourceError wraps a dataset or collector failure. Callers recover from
// these locally; the status code only applies if one escapes to a handler.
func NewDataSourceError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeDataSource,
		Code:       CodeDataSourceUnavailable,
		Message:    message,
		StatusCode: http.StatusServiceUnavailable,
		Internal:   internal,
	}
}

// NewNotFoundError creates a new not found error
func NewNotFoundError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeNotFound,
		Code:       CodeNotFound,
		Message:    message,
		StatusCode: http.StatusNotFound,
	}
}

// NewForbiddenError creates a new forbidden error
func NewForbiddenError(message string) *AppError {
	return &AppError{
		Type:       ErrorTypeForbidden,
		Code:       CodeForbidden,
		Message:    message,
		StatusCode: http.StatusForbidden,
	}
}

// NewInternalError creates a new internal server error
func NewInternalError(message string, internal error) *AppError {
	return &AppError{
		Type:       ErrorTypeInternal,
		Code:       CodeInternal,
		Message:    message,
		StatusCode: http.StatusInternalServerError,
		Internal:   internal,
	}
}

// AsAppError extracts an AppError from err, converting anything else into an
// internal error so the route boundary always has a status and code to emit.
func AsAppError(err error) *AppError {
	if err == nil {
		return nil
	}
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}
	return NewInternalError("An unexpected error occurred", err)
}

// ErrorResponse represents the JSON error envelope
type ErrorResponse struct {
	Success bool      `json:"success"`
	Error   *AppError `json:"error"`
}
