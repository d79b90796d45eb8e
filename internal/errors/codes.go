// Package errors provides structured error handling for askdocs.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: IO errors (file, disk, database)
//   - 3XX: Network errors
//   - 4XX: Validation errors
//   - 5XX: Internal errors
//   - 6XX: Retrieval degradation (fallback paths, not user-visible failures)
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryIO indicates file, disk, and database I/O errors.
	CategoryIO Category = "IO"
	// CategoryNetwork indicates network-related errors.
	CategoryNetwork Category = "NETWORK"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryInternal indicates unexpected internal errors.
	CategoryInternal Category = "INTERNAL"
	// CategoryDegraded indicates a recoverable condition handled by a fallback path.
	CategoryDegraded Category = "DEGRADED"
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
	// SeverityInfo indicates informational only.
	SeverityInfo Severity = "INFO"
)

// Error codes organized by category.
const (
	// Config errors (100-199)
	ErrCodeConfigNotFound = "ERR_101_CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid  = "ERR_102_CONFIG_INVALID"

	// IO errors (200-299)
	ErrCodeStoreFailed  = "ERR_201_STORE_FAILED"
	ErrCodeCorruptIndex = "ERR_202_CORRUPT_INDEX"

	// Network errors (300-399)
	ErrCodeUpstreamTimeout    = "ERR_301_UPSTREAM_TIMEOUT"
	ErrCodeNetworkUnavailable = "ERR_302_NETWORK_UNAVAILABLE"
	ErrCodeConfluenceAPI      = "ERR_303_CONFLUENCE_API"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeDimensionMismatch = "ERR_402_DIMENSION_MISMATCH"
	ErrCodeQueryEmpty        = "ERR_403_QUERY_EMPTY"

	// Internal errors (500-599)
	ErrCodeInternal          = "ERR_501_INTERNAL"
	ErrCodeEmbeddingFailed   = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed      = "ERR_503_SEARCH_FAILED"
	ErrCodeSyncFailed        = "ERR_504_SYNC_FAILED"

	// Degradation signals (600-699)
	ErrCodeIndexUnavailable = "ERR_601_INDEX_UNAVAILABLE"
	ErrCodeCacheUnavailable = "ERR_602_CACHE_UNAVAILABLE"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
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
	case '6':
		return CategoryDegraded
	default:
		return CategoryInternal
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	if code == ErrCodeCorruptIndex {
		return SeverityFatal
	}

	// Degradation signals are absorbed by fallback paths.
	if categoryFromCode(code) == CategoryDegraded {
		return SeverityWarning
	}

	if isRetryableCode(code) {
		return SeverityWarning
	}

	return SeverityError
}

// isRetryableCode checks if an error code represents a retryable error.
func isRetryableCode(code string) bool {
	switch code {
	case ErrCodeUpstreamTimeout, ErrCodeNetworkUnavailable, ErrCodeConfluenceAPI,
		ErrCodeEmbeddingFailed:
		return true
	}
	return false
}
