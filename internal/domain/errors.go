package domain

import (
	"errors"
	"fmt"
	"time"
)

// Failure categories surfaced to callers. Wrap them with fmt.Errorf("...: %w") and
// classify with errors.Is.
var (
	ErrNotFound           = errors.New("not found")
	ErrInvalidInput       = errors.New("invalid input")
	ErrExtractionFailure  = errors.New("extraction failed")
	ErrModelUnavailable   = errors.New("classifier model unavailable")
	ErrStorageFailure     = errors.New("storage failure")
	ErrInvalidCredentials = errors.New("invalid credentials")
	ErrUserExists         = errors.New("username already exists")
)

// Error codes for the wire error shape
const (
	ErrCodeInvalidInput   = "INVALID_INPUT"
	ErrCodeExtraction     = "EXTRACTION_ERROR"
	ErrCodeModel          = "MODEL_UNAVAILABLE"
	ErrCodeStorage        = "STORAGE_ERROR"
	ErrCodeAuthentication = "AUTHENTICATION_ERROR"
	ErrCodeConflict       = "CONFLICT"
	ErrCodeInternalServer = "INTERNAL_SERVER_ERROR"
)

// APIError represents a standardized error response
type APIError struct {
	Code      string    `json:"code"`
	Message   string    `json:"message"`
	Details   string    `json:"details,omitempty"`
	Timestamp time.Time `json:"timestamp"`
	RequestID string    `json:"request_id"`
}

// Error implements the error interface
func (e *APIError) Error() string {
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// NewAPIError creates a new APIError with timestamp
func NewAPIError(code, message, details, requestID string) *APIError {
	return &APIError{
		Code:      code,
		Message:   message,
		Details:   details,
		Timestamp: time.Now().UTC(),
		RequestID: requestID,
	}
}

// ExtractionError carries the page on which text acquisition failed. Page is -1
// when the failure is not tied to a page (image input, unreadable PDF).
type ExtractionError struct {
	Page  int
	Cause error
}

func (e *ExtractionError) Error() string {
	if e.Page >= 0 {
		return fmt.Sprintf("extraction failed on page %d: %v", e.Page+1, e.Cause)
	}
	return fmt.Sprintf("extraction failed: %v", e.Cause)
}

// Unwrap exposes both the category sentinel and the underlying cause.
func (e *ExtractionError) Unwrap() []error {
	return []error{ErrExtractionFailure, e.Cause}
}

// NewExtractionError wraps cause for the given zero-based page index.
func NewExtractionError(page int, cause error) *ExtractionError {
	return &ExtractionError{Page: page, Cause: cause}
}

// ValidationError represents input validation errors
type ValidationError struct {
	Field   string      `json:"field"`
	Message string      `json:"message"`
	Value   interface{} `json:"value"`
}

// Error implements the error interface
func (e *ValidationError) Error() string {
	return fmt.Sprintf("validation error for field '%s': %s", e.Field, e.Message)
}

// Unwrap classifies every validation error as invalid input.
func (e *ValidationError) Unwrap() error {
	return ErrInvalidInput
}

// NewValidationError creates a new ValidationError
func NewValidationError(field, message string, value interface{}) *ValidationError {
	return &ValidationError{
		Field:   field,
		Message: message,
		Value:   value,
	}
}

// ErrorCode maps an error to its wire code.
func ErrorCode(err error) string {
	switch {
	case errors.Is(err, ErrInvalidInput):
		return ErrCodeInvalidInput
	case errors.Is(err, ErrExtractionFailure):
		return ErrCodeExtraction
	case errors.Is(err, ErrModelUnavailable):
		return ErrCodeModel
	case errors.Is(err, ErrStorageFailure):
		return ErrCodeStorage
	case errors.Is(err, ErrInvalidCredentials):
		return ErrCodeAuthentication
	case errors.Is(err, ErrUserExists):
		return ErrCodeConflict
	default:
		return ErrCodeInternalServer
	}
}
