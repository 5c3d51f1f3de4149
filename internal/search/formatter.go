package search

import (
	"fmt"
	"strings"
	"unicode/utf8"
)

// NoContextSentinel is returned when retrieval produced no usable results.
// Callers branch on it instead of an empty string.
const NoContextSentinel = "No relevant context found."

// DefaultMaxContextChars bounds the formatted context handed to the prompt.
const DefaultMaxContextChars = 4000

// headerOverhead reserves room for the newlines around each entry.
const headerOverhead = 10

// FormatContext renders ranked results into a prompt-ready context block.
// Results are emitted in ranked order until the character budget runs out;
// the last entry may be content-truncated (never header-truncated) with an
// explicit marker.
func FormatContext(results []RankedResult, maxChars int) string {
	if len(results) == 0 {
		return NoContextSentinel
	}
	if maxChars <= 0 {
		maxChars = DefaultMaxContextChars
	}

	var parts []string
	used := 0

	for i, r := range results {
		header := fmt.Sprintf("[%d. %s] (score: %.2f)", i+1, r.SourceType, r.FusedScore)
		content := r.Content

		available := maxChars - used - len(header) - headerOverhead
		if available <= 100 {
			break
		}
		if len(content) > available {
			content = cutAtRuneBoundary(content, available-3) + "..."
		}

		entry := header + "\n" + content + "\n"
		parts = append(parts, entry)
		used += len(entry)
	}

	if len(parts) == 0 {
		return NoContextSentinel
	}
	return strings.Join(parts, "\n")
}

// cutAtRuneBoundary cuts s to at most n bytes without splitting a rune.
func cutAtRuneBoundary(s string, n int) string {
	if n <= 0 {
		return ""
	}
	if len(s) <= n {
		return s
	}
	for n > 0 && !utf8.RuneStart(s[n]) {
		n--
	}
	return s[:n]
}
