// Package chunk splits raw document text into retrieval-sized passages.
//
// Documents are split on paragraph boundaries and consecutive paragraphs are
// grouped up to a maximum size. Oversized paragraphs are further split at
// sentence boundaries. Chunking is pure: no I/O, deterministic for identical
// input and thresholds.
package chunk

import (
	"log/slog"
	"regexp"
	"strings"
)

var (
	// Paragraphs are separated by a blank line (possibly with whitespace).
	paragraphSep = regexp.MustCompile(`\n\s*\n`)

	// First top-level markdown header, used as the document title.
	titlePattern = regexp.MustCompile(`(?m)^#\s+(.+)$`)

	// Sentence terminators followed by whitespace. Go regexp has no
	// lookbehind, so the boundary offsets are computed from match indices.
	sentenceEnd = regexp.MustCompile(`[.!?]\s+`)
)

// Chunker splits documents into chunks bounded by size thresholds.
type Chunker struct {
	minSize int
	maxSize int
}

// New creates a chunker. Non-positive thresholds fall back to defaults.
func New(minSize, maxSize int) *Chunker {
	if minSize <= 0 {
		minSize = DefaultMinChunkSize
	}
	if maxSize <= 0 {
		maxSize = DefaultMaxChunkSize
	}
	return &Chunker{minSize: minSize, maxSize: maxSize}
}

// Chunk splits content into ordered chunks for sourceID.
//
// Rules:
//   - consecutive paragraphs are grouped until appending the next one would
//     exceed the maximum size
//   - a paragraph longer than the maximum is split at sentence boundaries
//     and accumulated the same way; a single sentence over the maximum is
//     kept whole rather than cut mid-sentence
//   - groups under the minimum size are not emitted on their own; if nothing
//     at all is emitted, the entire input becomes one whole-document chunk
//   - a detected document title is prefixed to every chunk that does not
//     already start with it
//
// Empty or whitespace-only input yields zero chunks.
func (c *Chunker) Chunk(content, sourceID string) []*Chunk {
	if strings.TrimSpace(content) == "" {
		return nil
	}

	title := sourceID
	if m := titlePattern.FindStringSubmatch(content); m != nil {
		title = strings.TrimSpace(m[1])
	}

	acc := accumulator{
		chunker:  c,
		sourceID: sourceID,
		title:    title,
	}

	for _, para := range paragraphSep.Split(strings.TrimSpace(content), -1) {
		para = strings.TrimSpace(para)
		if para == "" {
			continue
		}

		if len(para) > c.maxSize {
			// Oversized paragraph: flush what we have, then accumulate
			// sentence by sentence. The trailing sentences stay in the
			// buffer and may merge with following paragraphs.
			acc.flush()
			for _, sentence := range splitSentences(para) {
				acc.add(sentence)
			}
			continue
		}

		acc.add(para)
	}
	acc.flush()

	chunks := acc.chunks
	if len(chunks) == 0 {
		// Input too short for any paragraph group: emit the whole
		// document as a single chunk so short sources are searchable.
		chunks = []*Chunk{{
			Content:  content,
			SourceID: sourceID,
			Type:     TypeFullDocument,
			Metadata: metadata(sourceID, title, TypeFullDocument),
		}}
	}

	// Prefix the document title for context, idempotently.
	if title != sourceID {
		prefix := "# " + title
		for _, ch := range chunks {
			if !strings.HasPrefix(ch.Content, prefix) {
				ch.Content = prefix + "\n\n" + ch.Content
			}
		}
	}

	return chunks
}

// accumulator groups paragraphs (or sentences) into size-bounded chunks.
type accumulator struct {
	chunker  *Chunker
	sourceID string
	title    string
	parts    []string
	size     int
	chunks   []*Chunk
}

// add appends part to the buffer, flushing first when the buffer is
// non-empty and the part would push it past the maximum size.
func (a *accumulator) add(part string) {
	if a.size+len(part) > a.chunker.maxSize && len(a.parts) > 0 {
		a.flush()
	}
	a.parts = append(a.parts, part)
	a.size += len(part) + 2 // joined with "\n\n"
}

// flush emits the buffered parts as one chunk when they meet the minimum
// size. Undersized buffers are discarded; the whole-document fallback in
// Chunk covers inputs where that would lose everything.
func (a *accumulator) flush() {
	if len(a.parts) == 0 {
		return
	}
	content := strings.Join(a.parts, "\n\n")
	a.parts = nil
	a.size = 0

	if len(content) < a.chunker.minSize {
		slog.Debug("discarding undersized chunk buffer",
			slog.String("source_id", a.sourceID),
			slog.Int("size", len(content)))
		return
	}

	a.chunks = append(a.chunks, &Chunk{
		Content:  content,
		SourceID: a.sourceID,
		Type:     TypeParagraphGroup,
		Metadata: metadata(a.sourceID, a.title, TypeParagraphGroup),
	})
}

// splitSentences splits text after terminal punctuation followed by
// whitespace. The punctuation stays with the preceding sentence.
func splitSentences(text string) []string {
	var sentences []string
	start := 0
	for _, loc := range sentenceEnd.FindAllStringIndex(text, -1) {
		// loc[0] is the terminator; keep it, drop the whitespace.
		end := loc[0] + 1
		s := strings.TrimSpace(text[start:end])
		if s != "" {
			sentences = append(sentences, s)
		}
		start = loc[1]
	}
	if rest := strings.TrimSpace(text[start:]); rest != "" {
		sentences = append(sentences, rest)
	}
	return sentences
}

func metadata(sourceID, title string, t Type) map[string]string {
	return map[string]string{
		MetaSourceID:  sourceID,
		MetaDocTitle:  title,
		MetaChunkType: string(t),
	}
}
