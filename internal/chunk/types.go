package chunk

// Default chunk size thresholds in characters.
const (
	DefaultMinChunkSize = 100
	DefaultMaxChunkSize = 2000
)

// Type tags how a chunk was produced.
type Type string

const (
	// TypeParagraphGroup is a chunk built from one or more paragraphs.
	TypeParagraphGroup Type = "paragraph_group"

	// TypeFullDocument is the whole-document fallback emitted when the
	// input is too short to produce any paragraph-group chunk.
	TypeFullDocument Type = "full_document"
)

// Metadata keys attached to every chunk.
const (
	MetaSourceID  = "source_id"
	MetaDocTitle  = "doc_title"
	MetaChunkType = "chunk_type"
)

// Chunk is a retrieval-sized passage of source text. The store assigns the
// persistent id; until then a chunk is identified by position in the slice.
type Chunk struct {
	Content  string
	SourceID string
	Type     Type
	Metadata map[string]string
}
