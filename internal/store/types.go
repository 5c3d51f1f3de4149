// Package store persists chunks across three co-indexed projections: a
// SQLite metadata table, a lexical index (FTS5 in the same database, or a
// bleve index), and an HNSW vector index. The SQLite rowid is the shared
// surrogate key joining all three.
package store

import (
	"context"
	"time"
)

// Source types recognized by ingestion. The set is open; these are the
// built-in ones.
const (
	SourceTypeDatabase = "database"
	SourceTypePage     = "page"
	SourceTypeFile     = "file"
)

// Lexical backend names.
const (
	BackendFTS5  = "fts5"
	BackendBleve = "bleve"
)

// Chunk is one stored unit of retrievable content.
type Chunk struct {
	ID         int64             `json:"id"`
	SourceType string            `json:"source_type"`
	SourceID   string            `json:"source_id"`
	ChunkType  string            `json:"chunk_type"`
	Content    string            `json:"content"`
	Metadata   map[string]string `json:"metadata,omitempty"`
	CreatedAt  time.Time         `json:"created_at"`
}

// ChunkDraft is a chunk before it has an id, as produced by the chunker and
// handed to Save together with its vector.
type ChunkDraft struct {
	SourceType string
	SourceID   string
	ChunkType  string
	Content    string
	Metadata   map[string]string
}

// ScoreOrder documents a lexical backend's raw score convention so the
// normalizer can invert where needed.
type ScoreOrder int

const (
	// HigherBetter: larger raw score means a better match (bleve).
	HigherBetter ScoreOrder = iota
	// LowerBetter: smaller raw score means a better match (FTS5 bm25(),
	// which reports negative values).
	LowerBetter
)

// LexicalRanker is the BM25-family ranking query surface. Chunks with no
// matching terms are absent from the result map.
type LexicalRanker interface {
	// SearchLexical returns raw scores keyed by chunk id. Malformed query
	// syntax is escaped; an irrecoverable syntax error yields an empty map.
	SearchLexical(ctx context.Context, query string, limit int) (map[int64]float64, error)

	// ScoreOrder reports the raw score convention.
	ScoreOrder() ScoreOrder
}

// VectorRanker is the nearest-neighbor query surface. An unavailable vector
// backend returns an empty map, never an error.
type VectorRanker interface {
	// SearchVector returns raw cosine distances in [0,2] keyed by chunk id,
	// at most limit entries.
	SearchVector(ctx context.Context, vector []float32, limit int) (map[int64]float64, error)
}

// Stats summarizes store contents.
type Stats struct {
	TotalChunks   int64            `json:"total_chunks"`
	BySourceType  map[string]int64 `json:"counts_by_source_type"`
	VectorCount   int              `json:"vector_count"`
	VectorBackend bool             `json:"vector_backend_available"`
}

// VectorIndexConfig configures the HNSW graph.
type VectorIndexConfig struct {
	Dimensions int
	M          int
	EfSearch   int
	Ml         float64
}

// DefaultVectorIndexConfig returns the tuning used unless overridden.
func DefaultVectorIndexConfig(dims int) VectorIndexConfig {
	return VectorIndexConfig{
		Dimensions: dims,
		M:          16,
		EfSearch:   20,
		Ml:         0.25,
	}
}
