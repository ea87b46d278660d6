// Package errors provides coded errors for the search index engine.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (index files, database files)
//   - 3XX: Network errors (remote embedding endpoint)
//   - 4XX: Validation errors
//   - 5XX: Internal errors
package errors

import "strings"

// Category groups codes by their hundreds digit.
type Category string

const (
	CategoryConfig     Category = "CONFIG"
	CategoryIO         Category = "IO"
	CategoryNetwork    Category = "NETWORK"
	CategoryValidation Category = "VALIDATION"
	CategoryInternal   Category = "INTERNAL"
)

// Severity tells the CLI and the MCP layer how loudly to report an error.
// Fatal errors need manual repair, warnings leave the genealogy data
// intact and are fixed by a later reindex.
type Severity string

const (
	SeverityFatal   Severity = "FATAL"
	SeverityError   Severity = "ERROR"
	SeverityWarning Severity = "WARNING"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound   = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    = "ERR_102_CONFIG_INVALID"
	ErrCodeInvalidIndexURI  = "ERR_103_INVALID_INDEX_URI"
	ErrCodeEmbeddingModel   = "ERR_104_EMBEDDING_MODEL"
	ErrCodeSemanticDisabled = "ERR_105_SEMANTIC_DISABLED"

	// IO errors (200-299)
	ErrCodeFileNotFound = "ERR_201_FILE_NOT_FOUND"
	ErrCodeCorruptIndex = "ERR_205_CORRUPT_INDEX"
	ErrCodeStoreIO      = "ERR_207_STORE_IO"
	ErrCodeDatabaseRead = "ERR_208_DATABASE_READ"
	ErrCodeIndexLocked  = "ERR_209_INDEX_LOCKED"

	// Network errors (300-399)
	ErrCodeNetworkTimeout     = "ERR_301_NETWORK_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeModelDownload      = "ERR_303_MODEL_DOWNLOAD"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeInvalidQuery      = "ERR_403_INVALID_QUERY"
	ErrCodeInvalidTree       = "ERR_407_INVALID_TREE"
	ErrCodeUnknownClass      = "ERR_408_UNKNOWN_CLASS"
	ErrCodeInvalidFilter     = "ERR_409_INVALID_FILTER"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed   = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed      = "ERR_503_SEARCH_FAILED"
	ErrCodeTextExtraction    = "ERR_504_TEXT_EXTRACTION"
	ErrCodeIndexFailed       = "ERR_505_INDEX_FAILED"
	ErrCodeIndexInconsistent = "ERR_506_INDEX_INCONSISTENT"
)

func categoryFromCode(code string) Category {
	if !strings.HasPrefix(code, "ERR_") || len(code) < 7 {
		return CategoryInternal
	}
	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryIO
	case '3':
		return CategoryNetwork
	case '4':
		return CategoryValidation
	default:
		return CategoryInternal
	}
}

func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex:
		return SeverityFatal
	case ErrCodeIndexInconsistent:
		// the primary write succeeded; search is merely stale
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
// Nothing retries internally; the flag tells callers a whole-operation
// retry is expected to succeed.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeNetworkTimeout, ErrCodeNetworkUnavailable, ErrCodeModelDownload,
		ErrCodeIndexFailed, ErrCodeIndexInconsistent, ErrCodeIndexLocked:
		return true
	default:
		return false
	}
}
