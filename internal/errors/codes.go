// Package errors provides structured error handling for postmill.
//
// Error codes follow the pattern ERR_XXX_DESCRIPTION where:
//   - 1XX: Configuration errors
//   - 2XX: Storage errors (SQLite, index files)
//   - 3XX: Source and network errors
//   - 4XX: Validation errors
//   - 5XX: Embedding and retrieval errors
package errors

// Category defines error categories for classification.
type Category string

const (
	// CategoryConfig indicates configuration-related errors.
	CategoryConfig Category = "CONFIG"
	// CategoryStorage indicates database and index file errors.
	CategoryStorage Category = "STORAGE"
	// CategorySource indicates content-source and network errors.
	CategorySource Category = "SOURCE"
	// CategoryValidation indicates input validation errors.
	CategoryValidation Category = "VALIDATION"
	// CategoryRetrieval indicates embedding and search errors.
	CategoryRetrieval Category = "RETRIEVAL"
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

	// Storage errors (200-299)
	ErrCodeStoreOpen    = "ERR_201_STORE_OPEN"
	ErrCodeStoreWrite   = "ERR_202_STORE_WRITE"
	ErrCodeCorruptIndex = "ERR_203_CORRUPT_INDEX"
	ErrCodeVectorIndex  = "ERR_204_VECTOR_INDEX_UNAVAILABLE"
	ErrCodeLexicalIndex = "ERR_205_LEXICAL_INDEX_UNAVAILABLE"

	// Source errors (300-399)
	ErrCodeSourceUnreadable = "ERR_301_SOURCE_UNREADABLE"
	ErrCodeNetworkTimeout   = "ERR_302_NETWORK_TIMEOUT"

	// Validation errors (400-499)
	ErrCodeInvalidInput      = "ERR_401_INVALID_INPUT"
	ErrCodeMalformedQuery    = "ERR_402_MALFORMED_QUERY"
	ErrCodeDimensionMismatch = "ERR_403_DIMENSION_MISMATCH"

	// Embedding/retrieval errors (500-599)
	ErrCodeEmbeddingUnavailable = "ERR_501_EMBEDDING_UNAVAILABLE"
	ErrCodeEmbeddingFailed      = "ERR_502_EMBEDDING_FAILED"
	ErrCodeSearchFailed         = "ERR_503_SEARCH_FAILED"
	ErrCodeChunkingFailed       = "ERR_504_CHUNKING_FAILED"
	ErrCodeIngestFailed         = "ERR_505_INGEST_FAILED"
)

// categoryFromCode extracts category from error code.
func categoryFromCode(code string) Category {
	if len(code) < 7 {
		return CategoryRetrieval
	}

	switch code[4] {
	case '1':
		return CategoryConfig
	case '2':
		return CategoryStorage
	case '3':
		return CategorySource
	case '4':
		return CategoryValidation
	default:
		return CategoryRetrieval
	}
}

// severityFromCode determines severity based on error code.
func severityFromCode(code string) Severity {
	switch code {
	case ErrCodeCorruptIndex, ErrCodeEmbeddingUnavailable:
		return SeverityFatal
	case ErrCodeVectorIndex, ErrCodeLexicalIndex, ErrCodeMalformedQuery:
		// Degraded operation: retrieval continues with the other ranker.
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
	case ErrCodeNetworkTimeout, ErrCodeStoreWrite:
		return true
	default:
		return false
	}
}
