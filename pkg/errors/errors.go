// Package errors provides structured error handling for the application
// with stable error codes and HTTP status mapping
package errors

import (
	stderrors "errors"
	"fmt"
	"net/http"
	"runtime"
	"strings"
	"time"
)

// ErrorCode represents an error code
type ErrorCode string

// Error codes for the extraction pipeline
const (
	// Client errors (4xx)
	CodeBadRequest       ErrorCode = "BAD_REQUEST"
	CodeUnauthorized     ErrorCode = "UNAUTHORIZED"
	CodeNotFound         ErrorCode = "NOT_FOUND"
	CodeValidationFailed ErrorCode = "VALIDATION_FAILED"

	// Pipeline errors
	CodeFetchFailed          ErrorCode = "FETCH_FAILED"
	CodeCleanupError         ErrorCode = "CLEANUP_ERROR"
	CodeModelError           ErrorCode = "MODEL_ERROR"
	CodeSchemaViolation      ErrorCode = "SCHEMA_VIOLATION"
	CodeTransformationFailed ErrorCode = "TRANSFORMATION_FAILED"

	// Non-fatal dependency errors
	CodeCacheUnavailable   ErrorCode = "CACHE_UNAVAILABLE"
	CodeStorageUnavailable ErrorCode = "STORAGE_UNAVAILABLE"

	// Server errors (5xx)
	CodeInternal ErrorCode = "INTERNAL_ERROR"
)

// AppError represents an application error with structured information
type AppError struct {
	Code       ErrorCode              `json:"code"`
	Message    string                 `json:"message"`
	Details    string                 `json:"details,omitempty"`
	Metadata   map[string]interface{} `json:"metadata,omitempty"`
	Cause      error                  `json:"-"`
	StackTrace string                 `json:"-"`
}

// Error implements the error interface
func (e *AppError) Error() string {
	if e.Details != "" {
		return fmt.Sprintf("%s: %s (%s)", e.Code, e.Message, e.Details)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause error
func (e *AppError) Unwrap() error {
	return e.Cause
}

// StatusCode returns the appropriate HTTP status code
func (e *AppError) StatusCode() int {
	switch e.Code {
	case CodeBadRequest, CodeValidationFailed:
		return http.StatusBadRequest
	case CodeUnauthorized:
		return http.StatusUnauthorized
	case CodeNotFound:
		return http.StatusNotFound
	case CodeSchemaViolation, CodeTransformationFailed:
		return http.StatusUnprocessableEntity
	case CodeFetchFailed, CodeModelError:
		return http.StatusBadGateway
	case CodeCacheUnavailable, CodeStorageUnavailable:
		return http.StatusServiceUnavailable
	default:
		return http.StatusInternalServerError
	}
}

// WithMetadata adds metadata to the error
func (e *AppError) WithMetadata(key string, value interface{}) *AppError {
	if e.Metadata == nil {
		e.Metadata = make(map[string]interface{})
	}
	e.Metadata[key] = value
	return e
}

// WithCause adds a cause error
func (e *AppError) WithCause(cause error) *AppError {
	e.Cause = cause
	return e
}

// NewAppError creates a new application error
func NewAppError(code ErrorCode, message, details string) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		Details:    details,
		StackTrace: getStackTrace(),
	}
}

// Predefined error constructors for common scenarios

// NewBadRequestError creates a bad request error
func NewBadRequestError(message string) *AppError {
	return NewAppError(CodeBadRequest, message, "")
}

// NewValidationError creates a validation error
func NewValidationError(details string) *AppError {
	return NewAppError(CodeValidationFailed, "Validation failed", details)
}

// NewUnauthorizedError creates an unauthorized error
func NewUnauthorizedError(message string) *AppError {
	if message == "" {
		message = "Authentication required"
	}
	return NewAppError(CodeUnauthorized, message, "")
}

// NewNotFoundError creates a not found error
func NewNotFoundError(resource string) *AppError {
	message := "Resource not found"
	if resource != "" {
		message = fmt.Sprintf("%s not found", resource)
	}
	return NewAppError(CodeNotFound, message, "")
}

// NewFetchFailedError creates an error for a failed upstream HTML fetch
func NewFetchFailedError(url string, status int) *AppError {
	return NewAppError(
		CodeFetchFailed,
		"Upstream fetch failed",
		fmt.Sprintf("Fetching %s returned status %d", url, status),
	).WithMetadata("url", url).WithMetadata("status", status)
}

// NewCleanupError creates an error for a failed cleanup strategy.
// These are recoverable: the engine counts them and moves to the next strategy.
func NewCleanupError(strategy string, cause error) *AppError {
	return NewAppError(
		CodeCleanupError,
		"Cleanup strategy failed",
		fmt.Sprintf("Strategy %s raised an error", strategy),
	).WithMetadata("strategy", strategy).WithCause(cause)
}

// NewModelError creates an error for a failed generative model call
func NewModelError(provider string, cause error) *AppError {
	return NewAppError(
		CodeModelError,
		"Generative model call failed",
		fmt.Sprintf("Provider %s did not return a usable response", provider),
	).WithMetadata("provider", provider).WithCause(cause)
}

// NewSchemaViolationError creates an error for a recipe failing structural validation
func NewSchemaViolationError(path, reason string) *AppError {
	return NewAppError(
		CodeSchemaViolation,
		"Recipe failed schema validation",
		fmt.Sprintf("%s: %s", path, reason),
	).WithMetadata("path", path).WithMetadata("reason", reason)
}

// NewTransformationFailedError creates an error for an exhausted retry budget.
// It carries the violations from the final attempt.
func NewTransformationFailedError(lastViolation error) *AppError {
	details := ""
	if lastViolation != nil {
		details = lastViolation.Error()
	}
	return NewAppError(
		CodeTransformationFailed,
		"Transformation retry budget exhausted",
		details,
	).WithCause(lastViolation)
}

// NewCacheUnavailableError creates a non-fatal cache failure error
func NewCacheUnavailableError(operation string, cause error) *AppError {
	return NewAppError(
		CodeCacheUnavailable,
		"Cache store unavailable",
		fmt.Sprintf("Cache %s failed", operation),
	).WithMetadata("operation", operation).WithCause(cause)
}

// NewStorageUnavailableError creates a non-fatal file storage failure error
func NewStorageUnavailableError(operation string, cause error) *AppError {
	return NewAppError(
		CodeStorageUnavailable,
		"File storage unavailable",
		fmt.Sprintf("FileStore %s failed", operation),
	).WithMetadata("operation", operation).WithCause(cause)
}

// NewInternalError creates an internal server error
func NewInternalError(message string) *AppError {
	if message == "" {
		message = "An unexpected error occurred"
	}
	return NewAppError(CodeInternal, message, "")
}

// Utility functions

// Wrap wraps an error as an internal error if it's not already an AppError
func Wrap(err error, message string) *AppError {
	if err == nil {
		return nil
	}

	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr
	}

	return NewInternalError(message).WithCause(err)
}

// Is checks if an error is of a specific error code
func Is(err error, code ErrorCode) bool {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code == code
	}
	return false
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if stderrors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// getStackTrace captures the current stack trace
func getStackTrace() string {
	const depth = 32
	var pcs [depth]uintptr
	n := runtime.Callers(3, pcs[:])
	frames := runtime.CallersFrames(pcs[:n])

	var builder strings.Builder
	for {
		frame, more := frames.Next()
		if !strings.Contains(frame.File, "pkg/errors") {
			builder.WriteString(fmt.Sprintf("%s:%d %s\n", frame.File, frame.Line, frame.Function))
		}
		if !more {
			break
		}
	}

	return builder.String()
}

// ValidationError represents a field validation error
type ValidationError struct {
	Field   string      `json:"field"`
	Value   interface{} `json:"value,omitempty"`
	Tag     string      `json:"tag,omitempty"`
	Message string      `json:"message"`
}

// ValidationErrors represents multiple validation errors
type ValidationErrors []ValidationError

// Error implements the error interface
func (v ValidationErrors) Error() string {
	if len(v) == 0 {
		return "validation failed"
	}

	if len(v) == 1 {
		return v[0].Message
	}

	var messages []string
	for _, err := range v {
		messages = append(messages, err.Message)
	}

	return strings.Join(messages, "; ")
}

// NewValidationErrors creates validation errors from field-level errors
func NewValidationErrors(errors []ValidationError) *AppError {
	validationErrs := ValidationErrors(errors)

	return NewAppError(
		CodeValidationFailed,
		"Validation failed",
		validationErrs.Error(),
	).WithMetadata("validation_errors", validationErrs)
}

// ErrorResponse represents an API error response
type ErrorResponse struct {
	Error ErrorDetails `json:"error"`
}

// ErrorDetails represents the error details in API responses
type ErrorDetails struct {
	Code      ErrorCode              `json:"code"`
	Message   string                 `json:"message"`
	Details   string                 `json:"details,omitempty"`
	Metadata  map[string]interface{} `json:"metadata,omitempty"`
	RequestID string                 `json:"request_id,omitempty"`
	Timestamp string                 `json:"timestamp"`
}

// ToErrorResponse converts an AppError to an API error response
func ToErrorResponse(err *AppError, requestID string) ErrorResponse {
	return ErrorResponse{
		Error: ErrorDetails{
			Code:      err.Code,
			Message:   err.Message,
			Details:   err.Details,
			Metadata:  err.Metadata,
			RequestID: requestID,
			Timestamp: fmt.Sprintf("%d", time.Now().Unix()),
		},
	}
}
