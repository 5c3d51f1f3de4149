package errors

import (
	"errors"
	"fmt"
)

// Sentinel errors for the retrieval core. Wrapped by coded errors so that
// callers can branch with errors.Is without inspecting codes.
var (
	// ErrEmbeddingUnavailable means the embedding model could not be loaded.
	// Fatal to ingestion; retrieval degrades to lexical-only.
	ErrEmbeddingUnavailable = errors.New("embedding model unavailable")

	// ErrVectorIndexUnavailable means the vector sub-index is missing or
	// corrupt. Non-fatal: searches degrade to lexical-only.
	ErrVectorIndexUnavailable = errors.New("vector index unavailable")

	// ErrDimensionMismatch means a vector's dimension does not match the
	// store's configured dimension. Fatal for that single chunk write.
	ErrDimensionMismatch = errors.New("embedding dimension mismatch")

	// ErrSourceUnreadable means the content source could not be fetched.
	ErrSourceUnreadable = errors.New("content source unreadable")
)

// PostmillError is the structured error type for postmill.
// It provides context for error handling, logging, and user presentation.
type PostmillError struct {
	// Code is the unique error code (e.g., "ERR_403_DIMENSION_MISMATCH").
	Code string

	// Message is the human-readable error message.
	Message string

	// Category is the error category (Config, Storage, Source, etc.).
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
func (e *PostmillError) Error() string {
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

// Unwrap returns the underlying cause for error chain support.
func (e *PostmillError) Unwrap() error {
	return e.Cause
}

// Is checks if this error matches the target error by code.
func (e *PostmillError) Is(target error) bool {
	if t, ok := target.(*PostmillError); ok {
		return e.Code == t.Code
	}
	return false
}

// WithDetail adds a key-value detail to the error.
// Returns the error for method chaining.
func (e *PostmillError) WithDetail(key, value string) *PostmillError {
	if e.Details == nil {
		e.Details = make(map[string]string)
	}
	e.Details[key] = value
	return e
}

// WithSuggestion adds an actionable suggestion for the user.
func (e *PostmillError) WithSuggestion(suggestion string) *PostmillError {
	e.Suggestion = suggestion
	return e
}

// New creates a new PostmillError with the given code and message.
// Category, severity, and retryable flag are derived from the code.
func New(code string, message string, cause error) *PostmillError {
	return &PostmillError{
		Code:      code,
		Message:   message,
		Category:  categoryFromCode(code),
		Severity:  severityFromCode(code),
		Cause:     cause,
		Retryable: isRetryableCode(code),
	}
}

// Wrap creates a PostmillError from an existing error.
// The error's message becomes the PostmillError message.
func Wrap(code string, err error) *PostmillError {
	if err == nil {
		return nil
	}
	return New(code, err.Error(), err)
}

// EmbeddingUnavailable creates the fatal embedding-load error.
func EmbeddingUnavailable(cause error) *PostmillError {
	return New(ErrCodeEmbeddingUnavailable, "embedding model could not be loaded", wrapCause(ErrEmbeddingUnavailable, cause)).
		WithSuggestion("check the embedding endpoint or switch to the static backend")
}

// DimensionMismatch creates the per-chunk fatal dimension error.
func DimensionMismatch(expected, got int) *PostmillError {
	e := New(ErrCodeDimensionMismatch,
		fmt.Sprintf("dimension mismatch: expected %d, got %d", expected, got),
		ErrDimensionMismatch)
	return e.WithSuggestion("run 'postmill ingest --force' after changing the embedding model")
}

// SourceUnreadable creates a source fetch error, propagated to ingest callers.
func SourceUnreadable(source string, cause error) *PostmillError {
	return New(ErrCodeSourceUnreadable,
		fmt.Sprintf("cannot read source %s", source),
		wrapCause(ErrSourceUnreadable, cause)).
		WithDetail("source", source)
}

// wrapCause joins a sentinel with the concrete cause so both survive
// errors.Is / errors.As checks up the chain.
func wrapCause(sentinel, cause error) error {
	if cause == nil {
		return sentinel
	}
	return fmt.Errorf("%w: %w", sentinel, cause)
}

// IsRetryable checks if an error is retryable.
func IsRetryable(err error) bool {
	var pe *PostmillError
	if errors.As(err, &pe) {
		return pe.Retryable
	}
	return false
}

// IsFatal checks if an error has fatal severity.
// Fatal errors should abort the current operation.
func IsFatal(err error) bool {
	var pe *PostmillError
	if errors.As(err, &pe) {
		return pe.Severity == SeverityFatal
	}
	return false
}

// GetCode extracts the error code from a PostmillError.
// Returns empty string if not a PostmillError.
func GetCode(err error) string {
	var pe *PostmillError
	if errors.As(err, &pe) {
		return pe.Code
	}
	return ""
}
