// Package search implements hybrid retrieval: BM25-family lexical ranking
// and HNSW cosine ranking, min-max normalized and fused by weighted linear
// combination.
package search

// RankedResult is one fused retrieval hit. Raw scores keep each backend's
// native convention; normalized scores always lie in [0, 1].
type RankedResult struct {
	ChunkID int64 `json:"chunk_id"`

	// LexicalRaw is the backend's raw BM25 score (negative for FTS5,
	// positive for bleve); zero when the chunk had no lexical match.
	LexicalRaw  float64 `json:"lexical_raw"`
	LexicalNorm float64 `json:"lexical_norm"`

	// VectorRaw is the cosine distance in [0, 2]; zero when the chunk was
	// not a vector candidate.
	VectorRaw  float64 `json:"vector_raw"`
	VectorNorm float64 `json:"vector_norm"`

	FusedScore float64 `json:"fused_score"`

	Content    string            `json:"content"`
	SourceType string            `json:"source_type"`
	SourceID   string            `json:"source_id"`
	Metadata   map[string]string `json:"metadata,omitempty"`
}
