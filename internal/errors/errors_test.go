package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("connection refused")

	// When: wrapping with AppError
	appErr := DatastoreError("read changed topics", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, appErr)
	assert.Equal(t, originalErr, errors.Unwrap(appErr))
	assert.True(t, errors.Is(appErr, originalErr))
}

func TestAppError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		expected string
	}{
		{
			name:     "not initialized",
			code:     ErrCodeNotInitialized,
			message:  "engine not initialized",
			expected: "[ERR_104_NOT_INITIALIZED] engine not initialized",
		},
		{
			name:     "index write",
			code:     ErrCodeIndexWrite,
			message:  "2 batches failed",
			expected: "[ERR_503_INDEX_WRITE] 2 batches failed",
		},
		{
			name:     "timeout",
			code:     ErrCodeBackendTimeout,
			message:  "health probe timed out",
			expected: "[ERR_301_BACKEND_TIMEOUT] health probe timed out",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, nil)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestAppError_Is_MatchesByCode(t *testing.T) {
	// Given: a sentinel and a wrapped error with the same code
	sentinel := New(ErrCodeNotInitialized, "", nil)
	err := fmt.Errorf("search topics: %w", ConfigurationError("call Initialize first", nil))

	// Then: they match by code through the wrap chain
	assert.True(t, errors.Is(err, sentinel))
	assert.False(t, errors.Is(err, New(ErrCodeSearchFailed, "", nil)))
}

func TestNew_DerivesCategoryFromCode(t *testing.T) {
	tests := []struct {
		code     string
		category Category
	}{
		{ErrCodeConfigInvalid, CategoryConfig},
		{ErrCodeNotInitialized, CategoryConfig},
		{ErrCodeDatastoreQuery, CategoryDatastore},
		{ErrCodeBackendTimeout, CategoryTimeout},
		{ErrCodeInvalidFilter, CategoryValidation},
		{ErrCodeIndexCreate, CategoryBackend},
		{"bogus", CategoryBackend},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			assert.Equal(t, tt.category, New(tt.code, "x", nil).Category)
		})
	}
}

func TestNew_RetryableAndSeverity(t *testing.T) {
	// Given: a timeout and a corrupt index
	timeout := TimeoutError("probe", nil)
	corrupt := New(ErrCodeCorruptIndex, "meta unreadable", nil)

	// Then: timeout is a retryable warning, corrupt index is fatal
	assert.True(t, IsRetryable(timeout))
	assert.Equal(t, SeverityWarning, timeout.Severity)
	assert.True(t, IsFatal(corrupt))
	assert.False(t, IsRetryable(corrupt))
	assert.False(t, IsRetryable(errors.New("plain")))
}

func TestGetCode_WalksChain(t *testing.T) {
	err := fmt.Errorf("cycle: %w", BackendError(ErrCodeSyncFailed, "all collections failed", nil))

	assert.Equal(t, ErrCodeSyncFailed, GetCode(err))
	assert.Equal(t, CategoryBackend, GetCategory(err))
	assert.Empty(t, GetCode(errors.New("plain")))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestWithDetail_AddsContext(t *testing.T) {
	err := BackendError(ErrCodeIndexWrite, "batch rejected", nil).
		WithDetail("collection", "topics").
		WithSuggestion("check the index data directory")

	assert.Equal(t, "topics", err.Details["collection"])
	assert.Equal(t, "check the index data directory", err.Suggestion)
}

func TestFormatForCLI(t *testing.T) {
	// Given: an error with suggestion
	err := ConfigurationError("engine not initialized", nil).
		WithSuggestion("run Initialize before searching")

	// When: formatting for CLI
	out := FormatForCLI(err)

	// Then: message, hint and code are present
	assert.Contains(t, out, "Error: engine not initialized")
	assert.Contains(t, out, "Hint: run Initialize before searching")
	assert.Contains(t, out, "Code: ERR_104_NOT_INITIALIZED")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_PlainErrorIsWrappedAsInternal(t *testing.T) {
	data, err := FormatJSON(errors.New("boom"))
	require.NoError(t, err)

	var decoded map[string]any
	require.NoError(t, json.Unmarshal(data, &decoded))
	assert.Equal(t, ErrCodeInternal, decoded["code"])
	assert.Equal(t, "boom", decoded["message"])
}

func TestLogAttrs(t *testing.T) {
	err := DatastoreError("count changed rows", errors.New("disk I/O error")).WithDetail("table", "topics")

	attrs := LogAttrs(err)

	assert.Contains(t, attrs, "error_code")
	assert.Contains(t, attrs, ErrCodeDatastoreQuery)
	assert.Contains(t, attrs, "disk I/O error")
	assert.Contains(t, attrs, "detail_table")
	assert.Equal(t, []any{"error", "plain"}, LogAttrs(errors.New("plain")))
	assert.Nil(t, LogAttrs(nil))
}
