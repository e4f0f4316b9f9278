// Package errors provides structured error handling for lmssearch.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Datastore errors
//   - 3XX: Backend availability and timeout errors
//   - 4XX: Validation errors
//   - 5XX: Backend operation errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration and initialization errors.
	CategoryConfig Category = "CONFIG"
	// CategoryDatastore indicates relational datastore read errors.
	CategoryDatastore Category = "DATASTORE"
	// CategoryTimeout indicates a backend that did not answer in time.
	CategoryTimeout Category = "TIMEOUT"
	// CategoryValidation indicates invalid caller input.
	CategoryValidation Category = "VALIDATION"
	// CategoryBackend indicates a rejected search backend operation.
	CategoryBackend Category = "BACKEND"
)

// Severity defines error severity levels.
type Severity string

const (
	// SeverityFatal indicates unrecoverable error, must abort.
	SeverityFatal Severity = "FATAL"
	// SeverityError indicates operation failed but can continue.
	SeverityError Severity = "ERROR"
	// SeverityWarning indicates degraded operation, continuing.
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"
	ErrCodeNotInitialized = "ERR_104_NOT_INITIALIZED"

	// Datastore errors (200-299)
	ErrCodeDatastoreOpen  = "ERR_201_DATASTORE_OPEN"
	ErrCodeDatastoreQuery = "ERR_202_DATASTORE_QUERY"
	ErrCodeIndexLocked    = "ERR_203_INDEX_LOCKED"
	ErrCodeCorruptIndex   = "ERR_205_CORRUPT_INDEX"

	// Timeout errors (300-399)
	ErrCodeBackendTimeout     = "ERR_301_BACKEND_TIMEOUT"
	ErrCodeBackendUnavailable = "ERR_302_BACKEND_UNAVAILABLE"

	// Validation errors (400-499)
	ErrCodeInvalidInput  = "ERR_401_INVALID_INPUT"
	ErrCodeInvalidFilter = "ERR_403_INVALID_FILTER"
	ErrCodeInvalidSort   = "ERR_407_INVALID_SORT"

	// Backend errors (500-599)
	ErrCodeIndexCreate      = "ERR_501_INDEX_CREATE"
	ErrCodeSettingsRejected = "ERR_502_SETTINGS_REJECTED"
	ErrCodeIndexWrite       = "ERR_503_INDEX_WRITE"
	ErrCodeSearchFailed     = "ERR_504_SEARCH_FAILED"
	ErrCodeDeleteFailed     = "ERR_505_DELETE_FAILED"
	ErrCodeSyncFailed       = "ERR_506_SYNC_FAILED"
	ErrCodeInternal         = "ERR_599_INTERNAL"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryBackend
	}

	// Extract numeric portion (e.g., "101" from "ERR_101_CONFIG_NOT_FOUND")
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryDatastore
	case '3':
		return CategoryTimeout
	case '4':
		return CategoryValidation
	default:
		return CategoryBackend
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeIndexLocked:
		return SeverityFatal
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode reports codes whose operation may succeed on the next sync tick.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeBackendTimeout, ErrCodeBackendUnavailable,
		ErrCodeIndexWrite, ErrCodeSyncFailed, ErrCodeDatastoreQuery:
		return true
	default:
		return false
	}
}
