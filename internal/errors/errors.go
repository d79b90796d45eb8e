package errors

import (
	"fmt"
)

// RetrievalError is the structured error type for askdocs.
// It provides rich context for error handling, logging, and user presentation.
type RetrievalError struct {
	// Code is the unique error code (e.g., "ERR_601_INDEX_UNAVAILABLE").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, IO, Network, etc.).
	Category Category

	// Severity is the error severity level.
	Severity Severity

	// Details contains additional context as key-value pairs.
	Details map[string]string

	// Cause is the underlying error that caused this error.
	Cause error

	// Retryable indicates if the operation can be retried.
	Retryable bool

	// Suggestion is an actionable suggestion for the user.
	Suggestion string
}

// Error implements the error interface.
func (e *RetrievalError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *RetrievalError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
// This enables errors.Is() to work with RetrievalError.
func (e *RetrievalError) Is(target error) bool {
	if t, ok := target.(*RetrievalError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *RetrievalError) WithDetail(key, value string) *RetrievalError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
// Returns the error for method chaining.
func (e *RetrievalError) WithSuggestion(suggestion string) *RetrievalError {
	e.Suggestion = suggestion
	return e
}

// New creates a new RetrievalError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *RetrievalError {
	return &RetrievalError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a RetrievalError from an existing error.
// The error's message becomes the RetrievalError message.
func Wrap(code string, err error) *RetrievalError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// Sentinel errors for the retrieval taxonomy. Callers match with errors.Is.
var (
	// ErrIndexUnavailable signals that no vectors are indexed. It triggers
	// the text fallback path and is never surfaced to the caller.
	ErrIndexUnavailable = New(ErrCodeIndexUnavailable, "no vectors indexed", nil)

	// ErrEmbeddingUnavailable signals that the embedding provider failed.
	// Retrieval degrades to text-only search where possible.
	ErrEmbeddingUnavailable = New(ErrCodeEmbeddingFailed, "embedding provider unavailable", nil)

	// ErrUpstreamTimeout signals that a blocking call exceeded its deadline.
	ErrUpstreamTimeout = New(ErrCodeUpstreamTimeout, "upstream call exceeded deadline", nil)

	// ErrCacheUnavailable signals that the cache backend is unreachable.
	// Treated as pure performance degradation; retrieval proceeds uncached.
	ErrCacheUnavailable = New(ErrCodeCacheUnavailable, "cache backend unavailable", nil)
)

// ConfigError creates a configuration-related error.
func ConfigError(message string, cause error) *RetrievalError {
	return New(ErrCodeConfigInvalid, message, cause)
}

// StoreError creates a storage-related error.
func StoreError(message string, cause error) *RetrievalError {
	return New(ErrCodeStoreFailed, message, cause)
}

// ValidationError creates a validation-related error.
func ValidationError(message string, cause error) *RetrievalError {
	return New(ErrCodeInvalidInput, message, cause)
}

// InternalError creates an internal error.
func InternalError(message string, cause error) *RetrievalError {
	return New(ErrCodeInternal, message, cause)
}

// IsRetryable checks if an error is retryable.
// Returns true if the error is a RetrievalError with Retryable flag set.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RetrievalError); ok {
		return re.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	if err == nil {
		return false
	}
	if re, ok := err.(*RetrievalError); ok {
		return re.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a RetrievalError.
// Returns empty string if not a RetrievalError.
func GetCode(err error) string {
	if re, ok := err.(*RetrievalError); ok {
		return re.Code
	}
	return ""
}

// GetCategory extracts the category from a RetrievalError.
// Returns empty string if not a RetrievalError.
func GetCategory(err error) Category {
	if re, ok := err.(*RetrievalError); ok {
		return re.Category
	}
	return ""
}
