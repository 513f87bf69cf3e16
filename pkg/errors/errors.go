package errors

import (
	stderrors "errors"
	"fmt"
	"time"
)

// ErrorType represents the type of error
type ErrorType string

const (
	ErrorTypeValidation ErrorType = "validation"
	ErrorTypeNotFound   ErrorType = "not_found"
	ErrorTypeConflict   ErrorType = "conflict"
	ErrorTypeInternal   ErrorType = "internal"
	ErrorTypeExternal   ErrorType = "external"
	ErrorTypeTimeout    ErrorType = "timeout"
	// ErrorTypeTransient marks failures worth retrying (network blips, throttling)
	ErrorTypeTransient ErrorType = "transient"
	// ErrorTypeProbe marks health-probe failures; never surfaced to wrapped callers
	ErrorTypeProbe ErrorType = "probe"
	// ErrorTypeBackup marks backup-provider failures; never surfaced to wrapped callers
	ErrorTypeBackup ErrorType = "backup"
)

// AppError represents an application error with context
type AppError struct {
	Type      ErrorType         `json:"type"`
	Code      string            `json:"code"`
	Message   string            `json:"message"`
	Details   map[string]string `json:"details,omitempty"`
	Timestamp time.Time         `json:"timestamp"`
	Cause     error             `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause
func (e *AppError) Unwrap() error {
	return e.Cause
}

// NewAppError creates a new application error
func NewAppError(errorType ErrorType, code, message string) *AppError {
	return &AppError{
		Type:      errorType,
		Code:      code,
		Message:   message,
		Details:   make(map[string]string),
		Timestamp: time.Now(),
	}
}

// WithCause adds a cause to the error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// WithDetail adds a detail to the error
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// Common error constructors
func NewValidationError(message string) *AppError {
	return NewAppError(ErrorTypeValidation, "VALIDATION_ERROR", message)
}

func NewNotFoundError(resource string) *AppError {
	return NewAppError(ErrorTypeNotFound, "NOT_FOUND", fmt.Sprintf("%s not found", resource))
}

func NewConflictError(message string) *AppError {
	return NewAppError(ErrorTypeConflict, "CONFLICT", message)
}

func NewInternalError(message string) *AppError {
	return NewAppError(ErrorTypeInternal, "INTERNAL_ERROR", message)
}

func NewExternalError(service, message string) *AppError {
	return NewAppError(ErrorTypeExternal, "EXTERNAL_SERVICE_ERROR", message).
		WithDetail("service", service)
}

func NewTimeoutError(operation string) *AppError {
	return NewAppError(ErrorTypeTimeout, "TIMEOUT", fmt.Sprintf("%s timed out", operation))
}

func NewTransientError(message string) *AppError {
	return NewAppError(ErrorTypeTransient, "TRANSIENT_ERROR", message)
}

// NewProbeError wraps a failed health probe for a named service
func NewProbeError(serviceName string, cause error) *AppError {
	return NewAppError(ErrorTypeProbe, "PROBE_FAILED", fmt.Sprintf("health probe for %s failed", serviceName)).
		WithDetail("service", serviceName).
		WithCause(cause)
}

// NewBackupError wraps a failed backup provider run
func NewBackupError(sourceConfigID string, cause error) *AppError {
	return NewAppError(ErrorTypeBackup, "BACKUP_FAILED", fmt.Sprintf("backup of %s failed", sourceConfigID)).
		WithDetail("source_config_id", sourceConfigID).
		WithCause(cause)
}

// IsType checks if the error (or any error it wraps) is of a specific type
func IsType(err error, errorType ErrorType) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type == errorType
	}
	return false
}

// IsRetryable reports whether an error belongs to the transient class:
// timeouts, external-service failures, and errors explicitly marked transient.
func IsRetryable(err error) bool {
	return IsType(err, ErrorTypeTransient) ||
		IsType(err, ErrorTypeTimeout) ||
		IsType(err, ErrorTypeExternal)
}

// IsNotFound checks if the error is a not-found error
func IsNotFound(err error) bool {
	return IsType(err, ErrorTypeNotFound)
}

// GetCode returns the error code if it's an AppError
func GetCode(err error) string {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return "UNKNOWN_ERROR"
}

// GetType returns the error type if it's an AppError
func GetType(err error) ErrorType {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Type
	}
	return ErrorTypeInternal
}
