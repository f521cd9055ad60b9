// Package errors defines the application error taxonomy. Every error the
// domain raises carries a Kind from a closed set, so severity classification
// downstream is a total switch over the enum instead of string sniffing.
package errors

import (
	"errors"
	"fmt"
	"net/http"
)

// Kind is the closed set of error kinds. New kinds require a matching
// severity mapping in the trackers.
type Kind string

const (
	// Client-facing kinds
	KindValidation       Kind = "VALIDATION"
	KindNotFound         Kind = "NOT_FOUND"
	KindConflict         Kind = "CONFLICT"
	KindUnauthorized     Kind = "UNAUTHORIZED"
	KindAuthorization    Kind = "AUTHORIZATION"
	KindDuplicateMarking Kind = "DUPLICATE_MARKING"
	KindBulkPartial      Kind = "BULK_PARTIAL_FAILURE"

	// System kinds
	KindInternal  Kind = "INTERNAL"
	KindTimeout   Kind = "TIMEOUT"
	KindRateLimit Kind = "RATE_LIMIT"
	KindDatabase  Kind = "DATABASE"
	KindExternal  Kind = "EXTERNAL"
)

// AppError is the application error type. Code is a stable identifier used
// for aggregation; Details are attached verbatim to tracked events.
type AppError struct {
	Kind       Kind                   `json:"kind"`
	Message    string                 `json:"message"`
	Code       string                 `json:"code,omitempty"`
	Details    map[string]interface{} `json:"details,omitempty"`
	Cause      error                  `json:"-"`
	HTTPStatus int                    `json:"-"`
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Kind, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Kind, e.Message)
}

// Unwrap returns the underlying error.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// WithCode sets the aggregation code.
func (e *AppError) WithCode(code string) *AppError {
	e.Code = code
	return e
}

// WithDetails attaches free-form details.
func (e *AppError) WithDetails(details map[string]interface{}) *AppError {
	e.Details = details
	return e
}

// WithCause wraps an underlying error.
func (e *AppError) WithCause(err error) *AppError {
	e.Cause = err
	return e
}

// Constructor functions for common error kinds.

// NewValidationError creates a validation error.
func NewValidationError(message string) *AppError {
	return &AppError{
		Kind:       KindValidation,
		Message:    message,
		Code:       "VALIDATION_FAILED",
		HTTPStatus: http.StatusBadRequest,
	}
}

// NewNotFoundError creates a not found error for a resource.
func NewNotFoundError(resource string) *AppError {
	return &AppError{
		Kind:       KindNotFound,
		Message:    fmt.Sprintf("%s not found", resource),
		Code:       "NOT_FOUND",
		HTTPStatus: http.StatusNotFound,
	}
}

// NewConflictError creates a conflict error.
func NewConflictError(message string) *AppError {
	return &AppError{
		Kind:       KindConflict,
		Message:    message,
		Code:       "CONFLICT",
		HTTPStatus: http.StatusConflict,
	}
}

// NewUnauthorizedError creates an authentication error.
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "unauthorized"
	}
	return &AppError{
		Kind:       KindUnauthorized,
		Message:    message,
		Code:       "UNAUTHORIZED",
		HTTPStatus: http.StatusUnauthorized,
	}
}

// NewAuthorizationError creates a permission error: the actor is known but
// not allowed to perform the operation.
func NewAuthorizationError(message string) *AppError {
	if message == "" {
		message = "forbidden"
	}
	return &AppError{
		Kind:       KindAuthorization,
		Message:    message,
		Code:       "FORBIDDEN",
		HTTPStatus: http.StatusForbidden,
	}
}

// NewInternalError creates an internal error.
func NewInternalError(message string) *AppError {
	return &AppError{
		Kind:       KindInternal,
		Message:    message,
		Code:       "INTERNAL",
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewTimeoutError creates a timeout error.
func NewTimeoutError(operation string) *AppError {
	return &AppError{
		Kind:       KindTimeout,
		Message:    fmt.Sprintf("operation '%s' timed out", operation),
		Code:       "TIMEOUT",
		HTTPStatus: http.StatusRequestTimeout,
	}
}

// NewRateLimitError creates a rate limit error.
func NewRateLimitError(limit int, window string) *AppError {
	return &AppError{
		Kind:       KindRateLimit,
		Message:    fmt.Sprintf("rate limit exceeded: %d requests per %s", limit, window),
		Code:       "RATE_LIMITED",
		HTTPStatus: http.StatusTooManyRequests,
	}
}

// NewDatabaseError creates a database error.
func NewDatabaseError(operation string, err error) *AppError {
	return &AppError{
		Kind:       KindDatabase,
		Message:    fmt.Sprintf("database operation '%s' failed", operation),
		Code:       "DATABASE_ERROR",
		Cause:      err,
		HTTPStatus: http.StatusInternalServerError,
	}
}

// NewExternalError creates an external service error.
func NewExternalError(service string, err error) *AppError {
	return &AppError{
		Kind:       KindExternal,
		Message:    fmt.Sprintf("external service '%s' error", service),
		Code:       "EXTERNAL_ERROR",
		Cause:      err,
		HTTPStatus: http.StatusBadGateway,
	}
}

// Helper functions.

// IsAppError checks if an error is an AppError.
func IsAppError(err error) bool {
	var appErr *AppError
	return errors.As(err, &appErr)
}

// GetAppError extracts an AppError from an error chain, or nil.
func GetAppError(err error) *AppError {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr
	}
	return nil
}

// IsKind checks if an error has a specific kind.
func IsKind(err error, kind Kind) bool {
	appErr := GetAppError(err)
	return appErr != nil && appErr.Kind == kind
}

// IsNotFound checks for the not-found kind.
func IsNotFound(err error) bool {
	return IsKind(err, KindNotFound)
}

// IsValidation checks for the validation kind.
func IsValidation(err error) bool {
	return IsKind(err, KindValidation)
}

// IsAuthorization checks for the authorization kind.
func IsAuthorization(err error) bool {
	return IsKind(err, KindAuthorization)
}

// StatusOf returns the HTTP status for an error, defaulting to 500 for
// anything outside the taxonomy.
func StatusOf(err error) int {
	if appErr := GetAppError(err); appErr != nil && appErr.HTTPStatus != 0 {
		return appErr.HTTPStatus
	}
	return http.StatusInternalServerError
}

// Wrap wraps an error with additional context.
func Wrap(err error, message string) error {
	if err == nil {
		return nil
	}

	if appErr := GetAppError(err); appErr != nil {
		appErr.Message = fmt.Sprintf("%s: %s", message, appErr.Message)
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Wrapf wraps an error with a formatted message.
func Wrapf(err error, format string, args ...interface{}) error {
	return Wrap(err, fmt.Sprintf(format, args...))
}
