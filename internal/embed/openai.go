package embed

import (
	"context"
	"fmt"
	"strings"
	"sync"
	"time"

	"github.com/tmc/langchaingo/embeddings"
	"github.com/tmc/langchaingo/llms/openai"
)

// OpenAIEmbedder calls an OpenAI-compatible embeddings endpoint (Ollama,
// llama.cpp server, or the hosted API) via langchaingo.
type OpenAIEmbedder struct {
	mu       sync.RWMutex
	client   *embeddings.EmbedderImpl
	endpoint string
	model    string
	dims     int
	batch    int
	closed   bool
}

// NewOpenAIEmbedder creates an embedder backed by an OpenAI-compatible API.
// The token may be empty for local servers that do not check it.
func NewOpenAIEmbedder(cfg Config) (*OpenAIEmbedder, error) {
	if cfg.Endpoint == "" {
		return nil, fmt.Errorf("embeddings endpoint is required")
	}
	if cfg.Model == "" {
		return nil, fmt.Errorf("embeddings model is required")
	}
	dims := cfg.Dimensions
	if dims <= 0 {
		dims = DefaultDimensions
	}
	batch := cfg.BatchSize
	if batch <= 0 {
		batch = DefaultBatchSize
	}
	if batch > MaxBatchSize {
		batch = MaxBatchSize
	}

	token := cfg.Token
	if token == "" {
		// langchaingo refuses an empty token even for local servers.
		token = "postmill-local"
	}

	llm, err := openai.New(
		openai.WithBaseURL(cfg.Endpoint),
		openai.WithToken(token),
		openai.WithEmbeddingModel(cfg.Model),
	)
	if err != nil {
		return nil, fmt.Errorf("create embeddings client: %w", err)
	}

	client, err := embeddings.NewEmbedder(llm,
		embeddings.WithBatchSize(batch),
		embeddings.WithStripNewLines(false),
	)
	if err != nil {
		return nil, fmt.Errorf("create embedder: %w", err)
	}

	return &OpenAIEmbedder{
		client:   client,
		endpoint: cfg.Endpoint,
		model:    cfg.Model,
		dims:     dims,
		batch:    batch,
	}, nil
}

// Embed generates an embedding for a single text. Empty text returns the
// zero-vector sentinel without touching the network.
func (e *OpenAIEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	client := e.client
	e.mu.RUnlock()

	if strings.TrimSpace(text) == "" {
		return ZeroVector(e.dims), nil
	}

	vec, err := client.EmbedQuery(ctx, text)
	if err != nil {
		return nil, fmt.Errorf("embed query: %w", err)
	}
	if len(vec) != e.dims {
		return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dims, len(vec))
	}
	return vec, nil
}

// EmbedBatch generates embeddings for multiple texts. Empty texts are
// filtered out before the API call and mapped back to zero vectors so the
// result aligns positionally with the input.
func (e *OpenAIEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return nil, fmt.Errorf("embedder is closed")
	}
	client := e.client
	e.mu.RUnlock()

	if len(texts) == 0 {
		return [][]float32{}, nil
	}

	nonEmpty := make([]string, 0, len(texts))
	positions := make([]int, 0, len(texts))
	for i, text := range texts {
		if strings.TrimSpace(text) != "" {
			nonEmpty = append(nonEmpty, text)
			positions = append(positions, i)
		}
	}

	results := make([][]float32, len(texts))
	for i := range results {
		results[i] = ZeroVector(e.dims)
	}
	if len(nonEmpty) == 0 {
		return results, nil
	}

	vecs, err := client.EmbedDocuments(ctx, nonEmpty)
	if err != nil {
		return nil, fmt.Errorf("embed documents: %w", err)
	}
	if len(vecs) != len(nonEmpty) {
		return nil, fmt.Errorf("embedding count mismatch: expected %d, got %d", len(nonEmpty), len(vecs))
	}
	for i, vec := range vecs {
		if len(vec) != e.dims {
			return nil, fmt.Errorf("embedding dimension mismatch: expected %d, got %d", e.dims, len(vec))
		}
		results[positions[i]] = vec
	}
	return results, nil
}

// Dimensions returns the embedding dimension.
func (e *OpenAIEmbedder) Dimensions() int {
	return e.dims
}

// ModelName returns the model identifier.
func (e *OpenAIEmbedder) ModelName() string {
	return e.model
}

// Available probes the endpoint with a tiny embedding request.
func (e *OpenAIEmbedder) Available(ctx context.Context) bool {
	e.mu.RLock()
	if e.closed {
		e.mu.RUnlock()
		return false
	}
	client := e.client
	e.mu.RUnlock()

	probeCtx, cancel := context.WithTimeout(ctx, 5*time.Second)
	defer cancel()
	_, err := client.EmbedQuery(probeCtx, "ping")
	return err == nil
}

// Close releases resources.
func (e *OpenAIEmbedder) Close() error {
	e.mu.Lock()
	defer e.mu.Unlock()
	e.closed = true
	return nil
}

var _ Embedder = (*OpenAIEmbedder)(nil)
