package search

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"golang.org/x/sync/errgroup"

	"github.com/postmill/postmill/internal/embed"
	pmerrors "github.com/postmill/postmill/internal/errors"
	"github.com/postmill/postmill/internal/store"
)

// Options carries the engine defaults, overridable per query.
type Options struct {
	TopK            int
	KeywordWeight   float64
	SemanticWeight  float64
	CandidateLimit  int
	MaxContextChars int
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	return Options{
		TopK:            10,
		KeywordWeight:   0.5,
		SemanticWeight:  0.5,
		CandidateLimit:  100,
		MaxContextChars: DefaultMaxContextChars,
	}
}

// Query is one retrieval request. Zero-valued fields fall back to the
// engine defaults.
type Query struct {
	Text           string
	TopK           int
	KeywordWeight  *float64
	SemanticWeight *float64
}

// Engine runs hybrid retrieval against the store.
type Engine struct {
	store    *store.Store
	provider *embed.Provider
	opts     Options
}

// NewEngine creates a retrieval engine.
func NewEngine(st *store.Store, provider *embed.Provider, opts Options) *Engine {
	if opts.TopK <= 0 {
		opts.TopK = DefaultOptions().TopK
	}
	if opts.CandidateLimit <= 0 {
		opts.CandidateLimit = DefaultOptions().CandidateLimit
	}
	if opts.MaxContextChars <= 0 {
		opts.MaxContextChars = DefaultMaxContextChars
	}
	return &Engine{store: st, provider: provider, opts: opts}
}

// Retrieve runs both rankers, fuses their candidates, attaches metadata in
// one batched lookup, and formats the context block. An empty query
// short-circuits: the zero-vector embedding is degenerate for cosine
// ranking, so no ranker runs at all. An unavailable embedder or vector
// index degrades retrieval to lexical-only instead of failing.
func (e *Engine) Retrieve(ctx context.Context, q Query) (string, []RankedResult, error) {
	start := time.Now()

	text := strings.TrimSpace(q.Text)
	if text == "" {
		return NoContextSentinel, nil, nil
	}

	topK := q.TopK
	if topK <= 0 {
		topK = e.opts.TopK
	}
	keywordWeight := e.opts.KeywordWeight
	if q.KeywordWeight != nil {
		keywordWeight = *q.KeywordWeight
	}
	semanticWeight := e.opts.SemanticWeight
	if q.SemanticWeight != nil {
		semanticWeight = *q.SemanticWeight
	}

	queryVector := e.embedQuery(ctx, text)

	var (
		lexicalRaw map[int64]float64
		vectorRaw  map[int64]float64
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		lexicalRaw, err = e.store.Lexical().SearchLexical(gctx, text, e.opts.CandidateLimit)
		return err
	})
	g.Go(func() error {
		vectorRaw = e.searchVector(gctx, queryVector)
		return nil
	})
	if err := g.Wait(); err != nil {
		return "", nil, err
	}

	results := Fuse(lexicalRaw, vectorRaw, e.store.Lexical().ScoreOrder(),
		keywordWeight, semanticWeight, topK)

	if err := e.attachMetadata(ctx, results); err != nil {
		return "", nil, err
	}

	slog.Debug("retrieval complete",
		"query_len", len(text),
		"lexical_candidates", len(lexicalRaw),
		"vector_candidates", len(vectorRaw),
		"results", len(results),
		"duration_ms", time.Since(start).Milliseconds())

	return FormatContext(results, e.opts.MaxContextChars), results, nil
}

// embedQuery returns the query vector, or nil when embeddings are
// unavailable (lexical-only retrieval).
func (e *Engine) embedQuery(ctx context.Context, text string) []float32 {
	embedder, err := e.provider.Get(ctx)
	if err != nil {
		slog.Warn("embedder unavailable, retrieval degrades to lexical-only",
			"code", pmerrors.GetCode(err), "error", err)
		return nil
	}
	vector, err := embedder.Embed(ctx, text)
	if err != nil {
		slog.Warn("query embedding failed, retrieval degrades to lexical-only",
			"error", err)
		return nil
	}
	return vector
}

// searchVector runs the vector ranker, returning an empty map when the
// backend or the query vector is unavailable. Vector ranking never fails a
// retrieval.
func (e *Engine) searchVector(ctx context.Context, vector []float32) map[int64]float64 {
	vr := e.store.Vector()
	if vr == nil || vector == nil || embed.IsZeroVector(vector) {
		return map[int64]float64{}
	}
	raw, err := vr.SearchVector(ctx, vector, e.opts.CandidateLimit)
	if err != nil {
		slog.Warn("vector search failed, continuing lexical-only", "error", err)
		return map[int64]float64{}
	}
	return raw
}

// attachMetadata fills content and source fields with one batched lookup.
func (e *Engine) attachMetadata(ctx context.Context, results []RankedResult) error {
	if len(results) == 0 {
		return nil
	}
	ids := make([]int64, len(results))
	for i, r := range results {
		ids[i] = r.ChunkID
	}
	chunks, err := e.store.GetMetadataByIDs(ctx, ids)
	if err != nil {
		return err
	}
	for i := range results {
		if c, ok := chunks[results[i].ChunkID]; ok {
			results[i].Content = c.Content
			results[i].SourceType = c.SourceType
			results[i].SourceID = c.SourceID
			results[i].Metadata = c.Metadata
		}
	}
	return nil
}
