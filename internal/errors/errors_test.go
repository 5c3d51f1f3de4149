package errors

import (
	stderrors "errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNew_DerivesCategoryAndSeverity(t *testing.T) {
	tests := []struct {
		name     string
		code     string
		category Category
		severity Severity
	}{
		{"config", ErrCodeConfigInvalid, CategoryConfig, SeverityError},
		{"storage fatal", ErrCodeCorruptIndex, CategoryStorage, SeverityFatal},
		{"vector degrade", ErrCodeVectorIndex, CategoryStorage, SeverityWarning},
		{"source retryable", ErrCodeNetworkTimeout, CategorySource, SeverityWarning},
		{"malformed query", ErrCodeMalformedQuery, CategoryValidation, SeverityWarning},
		{"embedding fatal", ErrCodeEmbeddingUnavailable, CategoryRetrieval, SeverityFatal},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := New(tt.code, "boom", nil)
			assert.Equal(t, tt.category, err.Category)
			assert.Equal(t, tt.severity, err.Severity)
		})
	}
}

func TestSentinels_SurviveWrapping(t *testing.T) {
	cause := fmt.Errorf("connection refused")
	err := EmbeddingUnavailable(cause)

	assert.True(t, stderrors.Is(err, ErrEmbeddingUnavailable))
	assert.True(t, IsFatal(err))
	assert.Equal(t, ErrCodeEmbeddingUnavailable, GetCode(err))
}

func TestDimensionMismatch(t *testing.T) {
	err := DimensionMismatch(384, 768)

	require.True(t, stderrors.Is(err, ErrDimensionMismatch))
	assert.Contains(t, err.Message, "expected 384")
	assert.True(t, IsFatal(err) == false)
	assert.NotEmpty(t, err.Suggestion)
}

func TestWrap_NilReturnsNil(t *testing.T) {
	var pe *PostmillError = Wrap(ErrCodeStoreWrite, nil)
	assert.Nil(t, pe)
}

func TestIsRetryable(t *testing.T) {
	assert.True(t, IsRetryable(New(ErrCodeStoreWrite, "locked", nil)))
	assert.False(t, IsRetryable(New(ErrCodeInvalidInput, "bad", nil)))
	assert.False(t, IsRetryable(stderrors.New("plain")))
}

func TestWithDetail_Chaining(t *testing.T) {
	err := SourceUnreadable("notion:abc123", fmt.Errorf("timeout")).
		WithDetail("attempt", "2")

	assert.Equal(t, "notion:abc123", err.Details["source"])
	assert.Equal(t, "2", err.Details["attempt"])
	assert.True(t, stderrors.Is(err, ErrSourceUnreadable))
}
