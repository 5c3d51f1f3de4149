package search

import (
	"strings"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestFormatContext_NoResultsReturnsSentinel(t *testing.T) {
	out := FormatContext(nil, 4000)
	assert.Equal(t, NoContextSentinel, out)
	assert.NotEmpty(t, out, "sentinel must be distinguishable from empty string")
}

func TestFormatContext_RankedOrderWithHeaders(t *testing.T) {
	results := []RankedResult{
		{SourceType: "page", FusedScore: 0.91, Content: "first chunk"},
		{SourceType: "database", FusedScore: 0.52, Content: "second chunk"},
	}

	out := FormatContext(results, 4000)

	require.Contains(t, out, "[1. page] (score: 0.91)")
	require.Contains(t, out, "[2. database] (score: 0.52)")
	assert.Less(t, strings.Index(out, "first chunk"), strings.Index(out, "second chunk"))
}

func TestFormatContext_TruncatesLastEntryWithMarker(t *testing.T) {
	long := strings.Repeat("x", 5000)
	results := []RankedResult{
		{SourceType: "page", FusedScore: 0.9, Content: long},
	}

	out := FormatContext(results, 500)

	assert.LessOrEqual(t, len(out), 500)
	assert.Contains(t, out, "[1. page]", "header is never truncated")
	assert.True(t, strings.HasSuffix(strings.TrimRight(out, "\n"), "..."),
		"truncated content carries an explicit marker")
}

func TestFormatContext_TruncationKeepsValidUTF8(t *testing.T) {
	// Multibyte content whose byte budget lands mid-rune.
	long := strings.Repeat("caffè è un'arte ", 400)
	results := []RankedResult{
		{SourceType: "page", FusedScore: 0.9, Content: long},
	}

	for budget := 200; budget < 240; budget++ {
		out := FormatContext(results, budget)
		assert.True(t, utf8.ValidString(out), "budget %d produced invalid UTF-8", budget)
	}
}

func TestFormatContext_StopsWhenBudgetExhausted(t *testing.T) {
	results := []RankedResult{
		{SourceType: "page", FusedScore: 0.9, Content: strings.Repeat("a", 300)},
		{SourceType: "page", FusedScore: 0.8, Content: strings.Repeat("b", 300)},
		{SourceType: "page", FusedScore: 0.7, Content: strings.Repeat("c", 300)},
	}

	out := FormatContext(results, 400)

	assert.Contains(t, out, "[1. page]")
	assert.NotContains(t, out, "[3. page]", "entries past the budget are dropped")
}

func TestFormatContext_ZeroBudgetUsesDefault(t *testing.T) {
	results := []RankedResult{{SourceType: "page", FusedScore: 0.5, Content: "small"}}
	out := FormatContext(results, 0)
	assert.Contains(t, out, "small")
}
