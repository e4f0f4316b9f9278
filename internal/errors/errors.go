package errors

import (
	"errors"
	"fmt"
)

// AppError is the structured error type for lmssearch.
// It carries enough context for logging, CLI output and MCP tool results.
type AppError struct {
	// Code is the unique error code (e.g., "ERR_503_INDEX_WRITE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Datastore, Backend, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates the operation may succeed on a later attempt.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *AppError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Is matches another AppError by code, so errors.Is works against
// sentinel values built with New.
func (e *AppError) Is(target error) bool {
	if t, ok := target.(*AppError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
func (e *AppError) WithDetail(key, value string) *AppError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *AppError) WithSuggestion(suggestion string) *AppError {
	e.Suggestion = suggestion
	return e
}

// New creates a new AppError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *AppError {
	return &AppError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates an AppError from an existing error.
func Wrap(code string, err error) *AppError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// ConfigurationError reports an operation attempted before the engine was
// initialized or with an unusable configuration.
func ConfigurationError(message string, cause error) *AppError {
	return New(ErrCodeNotInitialized, message, cause)
}

// ConfigError creates a configuration file error.
func ConfigError(message string, cause error) *AppError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// BackendError creates an error for an operation the search backend rejected.
func BackendError(code, message string, cause error) *AppError {
	return New(code, message, cause)
}

// DatastoreError creates an error for a failed datastore read.
func DatastoreError(message string, cause error) *AppError {
	return New(ErrCodeDatastoreQuery, message, cause)
}

// TimeoutError creates an error for a backend call that exceeded its deadline.
func TimeoutError(message string, cause error) *AppError {
	return New(ErrCodeBackendTimeout, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(code, message string, cause error) *AppError {
	return New(code, message, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
func IsFatal(err error) bool {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from the first AppError in the chain.
// Returns empty string if there is none.
func GetCode(err error) string {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Code
	}
	return ""
}

// GetCategory extracts the category from the first AppError in the chain.
func GetCategory(err error) Category {
	var ae *AppError
	if errors.As(err, &ae) {
		return ae.Category
	}
	return ""
}
