package errors

import (
	"encoding/json"
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestIndexError_Unwrap_PreservesOriginalError(t *testing.T) {
	// Given: an original error
	originalErr := errors.New("disk full")

	// When: wrapping with IndexError
	ie := New(ErrCodeStoreIO, "failed to write documents", originalErr)

	// Then: unwrapping returns original error
	require.NotNil(t, ie)
	assert.Equal(t, originalErr, errors.Unwrap(ie))
	assert.True(t, errors.Is(ie, originalErr))
}

func TestIndexError_Error_ReturnsFormattedMessage(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		message  string
		cause    error
		expected string
	}{
		{
			name:     "config error",
			code:     ErrCodeInvalidIndexURI,
			message:  "unsupported scheme",
			expected: "[ERR_103_INVALID_INDEX_URI] unsupported scheme",
		},
		{
			name:     "with cause",
			code:     ErrCodeIndexFailed,
			message:  "reindex aborted",
			cause:    errors.New("boom"),
			expected: "[ERR_505_INDEX_FAILED] reindex aborted: boom",
		},
		{
			name:     "wrapped cause is not repeated",
			code:     ErrCodeSearchFailed,
			message:  "boom",
			cause:    errors.New("boom"),
			expected: "[ERR_503_SEARCH_FAILED] boom",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, tt.message, tt.cause)
			assert.Equal(t, tt.expected, err.Error())
		})
	}
}

func TestIndexError_Is_MatchesByCode(t *testing.T) {
	// Given: two errors with same code
	err1 := New(ErrCodeIndexInconsistent, "person A not indexed", nil)
	err2 := New(ErrCodeIndexInconsistent, "person B not indexed", nil)

	// Then: they match by code, but not across codes
	assert.True(t, errors.Is(err1, err2))
	assert.False(t, errors.Is(err1, New(ErrCodeIndexFailed, "x", nil)))
}

func TestCategoryAndSeverity_DerivedFromCode(t *testing.T) {
	tests := []struct {
		code      string
		category  Category
		severity  Severity
		retryable bool
	}{
		{ErrCodeConfigInvalid, CategoryConfig, SeverityError, false},
		{ErrCodeCorruptIndex, CategoryIO, SeverityFatal, false},
		{ErrCodeNetworkUnavailable, CategoryNetwork, SeverityWarning, true},
		{ErrCodeInvalidFilter, CategoryValidation, SeverityError, false},
		{ErrCodeIndexInconsistent, CategoryInternal, SeverityWarning, true},
		{"bad", CategoryInternal, SeverityError, false},
	}

	for _, tt := range tests {
		t.Run(tt.code, func(t *testing.T) {
			err := New(tt.code, "msg", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
			assert.Equal(t, tt.retryable, err.Retryable)
		})
	}
}

func TestHelpers_FindIndexErrorThroughWrapping(t *testing.T) {
	// Given: an IndexError wrapped by fmt.Errorf
	inner := New(ErrCodeIndexFailed, "stopped", nil).WithDetail("progress", "3/10")
	err := fmt.Errorf("job failed: %w", inner)

	// Then: helpers see through the wrapping
	assert.Equal(t, ErrCodeIndexFailed, GetCode(err))
	assert.Equal(t, CategoryInternal, GetCategory(err))
	assert.True(t, IsRetryable(err))
	assert.False(t, IsFatal(err))
	assert.True(t, HasCode(err, ErrCodeIndexFailed))
	assert.False(t, HasCode(err, ErrCodeSearchFailed))

	// And: plain errors carry no code
	assert.Empty(t, GetCode(errors.New("plain")))
	assert.False(t, IsRetryable(nil))
}

func TestWrap_NilReturnsNil(t *testing.T) {
	assert.Nil(t, Wrap(ErrCodeInternal, nil))
}

func TestFormatForCLI_IncludesDetailsAndHint(t *testing.T) {
	// Given: an error with details and a suggestion
	err := ConfigError("malformed SEARCH_INDEX_DB_URI", nil).
		WithDetail("uri", "ftp://x").
		WithSuggestion("use sqlite:///path or bleve:///dir")

	// When: formatting for the terminal
	out := FormatForCLI(err)

	// Then: everything is present
	assert.Contains(t, out, "Error: [ERR_102_CONFIG_INVALID] malformed SEARCH_INDEX_DB_URI")
	assert.Contains(t, out, "uri: ftp://x")
	assert.Contains(t, out, "Hint: use sqlite:///path or bleve:///dir")
	assert.Empty(t, FormatForCLI(nil))
}

func TestFormatJSON_WrapsPlainErrors(t *testing.T) {
	out := FormatJSON(errors.New("boom"))

	var decoded map[string]any
	require.NoError(t, json.Unmarshal([]byte(out), &decoded))
	assert.Equal(t, ErrCodeInternal, decoded["code"])
	assert.Equal(t, "boom", decoded["message"])
	assert.Equal(t, "{}", FormatJSON(nil))
}
