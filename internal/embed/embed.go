// Package embed generates fixed-width dense vectors for text.
//
// Two backends are provided: an OpenAI-compatible API client (covers local
// embedding servers) and a deterministic offline hash embedder. Both map
// empty or whitespace-only text to the zero vector; that is a defined
// sentinel, not a failure.
package embed

import (
	"context"
	"math"
)

// Common embedding constants.
const (
	// DefaultDimensions matches MiniLM-L6-v2, the default model.
	DefaultDimensions = 384

	// DefaultBatchSize is the default batch size for embedding requests.
	DefaultBatchSize = 32

	// MaxBatchSize caps a single request to prevent memory exhaustion.
	MaxBatchSize = 256
)

// Embedder generates vector embeddings for text.
type Embedder interface {
	// Embed generates an embedding for a single text. Empty or
	// whitespace-only text yields the zero vector of the configured
	// dimension.
	Embed(ctx context.Context, text string) ([]float32, error)

	// EmbedBatch generates embeddings for multiple texts, preserving
	// order and length of the input.
	EmbedBatch(ctx context.Context, texts []string) ([][]float32, error)

	// Dimensions returns the embedding dimension.
	Dimensions() int

	// ModelName returns the model identifier.
	ModelName() string

	// Available checks if the embedder is ready.
	Available(ctx context.Context) bool

	// Close releases resources.
	Close() error
}

// Config selects and configures an embedding backend.
type Config struct {
	// Backend is "openai" or "static".
	Backend string

	// Endpoint is the OpenAI-compatible base URL.
	Endpoint string

	// Model is the embedding model name.
	Model string

	// Token is the API token. May be empty for local servers.
	Token string

	// Dimensions is the fixed system-wide embedding dimension.
	Dimensions int

	// BatchSize bounds a single API request.
	BatchSize int

	// CacheSize is the LRU embedding cache size (0 disables caching).
	CacheSize int
}

// ZeroVector returns the zero vector sentinel of the given dimension.
func ZeroVector(dim int) []float32 {
	return make([]float32, dim)
}

// IsZeroVector reports whether v is the all-zero sentinel.
func IsZeroVector(v []float32) bool {
	for _, x := range v {
		if x != 0 {
			return false
		}
	}
	return true
}

// normalizeVector normalizes a vector to unit length.
// The zero vector is returned unchanged.
func normalizeVector(v []float32) []float32 {
	var sumSquares float64
	for _, val := range v {
		sumSquares += float64(val) * float64(val)
	}

	magnitude := math.Sqrt(sumSquares)
	if magnitude == 0 {
		return v
	}

	normalized := make([]float32, len(v))
	for i, val := range v {
		normalized[i] = float32(float64(val) / magnitude)
	}
	return normalized
}
