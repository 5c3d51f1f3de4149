package search

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmill/postmill/internal/embed"
	"github.com/postmill/postmill/internal/store"
)

const testDims = 64

func newTestEngine(t *testing.T) (*Engine, *store.Store, embed.Embedder) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Config{
		DatabasePath:    filepath.Join(dir, "postmill.db"),
		VectorIndexPath: filepath.Join(dir, "vectors.hnsw"),
		LexicalBackend:  store.BackendFTS5,
		Dimensions:      testDims,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	provider := embed.NewProvider(embed.Config{Backend: "static", Dimensions: testDims})
	t.Cleanup(func() { _ = provider.Close() })
	embedder, err := provider.Get(context.Background())
	require.NoError(t, err)

	engine := NewEngine(st, provider, DefaultOptions())
	return engine, st, embedder
}

func seedChunk(t *testing.T, st *store.Store, embedder embed.Embedder, sourceID, content string) int64 {
	t.Helper()
	ctx := context.Background()
	vec, err := embedder.Embed(ctx, content)
	require.NoError(t, err)
	id, err := st.Save(ctx, store.ChunkDraft{
		SourceType: store.SourceTypePage,
		SourceID:   sourceID,
		ChunkType:  "paragraph_group",
		Content:    content,
	}, vec)
	require.NoError(t, err)
	return id
}

func TestEngine_RetrieveEndToEnd(t *testing.T) {
	engine, st, embedder := newTestEngine(t)
	ctx := context.Background()

	wanted := seedChunk(t, st, embedder, "gardening",
		"Tomato plants thrive with deep weekly watering and full sun.")
	seedChunk(t, st, embedder, "finance",
		"Quarterly revenue figures exceeded analyst expectations.")

	formatted, results, err := engine.Retrieve(ctx, Query{Text: "watering tomato plants"})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	assert.Equal(t, wanted, results[0].ChunkID)
	assert.Equal(t, store.SourceTypePage, results[0].SourceType)
	assert.NotEmpty(t, results[0].Content, "metadata is attached to every survivor")
	assert.Contains(t, formatted, "Tomato plants")
	assert.NotEqual(t, NoContextSentinel, formatted)

	// Ranked descending by fused score
	for i := 1; i < len(results); i++ {
		assert.GreaterOrEqual(t, results[i-1].FusedScore, results[i].FusedScore)
	}
}

func TestEngine_EmptyQueryShortCircuits(t *testing.T) {
	engine, st, embedder := newTestEngine(t)
	seedChunk(t, st, embedder, "doc", "populated index content")

	for _, q := range []string{"", "   ", "\n\t"} {
		formatted, results, err := engine.Retrieve(context.Background(), Query{Text: q, TopK: 5})
		require.NoError(t, err)
		assert.Equal(t, NoContextSentinel, formatted)
		assert.Empty(t, results, "zero-vector embeddings never reach the vector ranker")
	}
}

func TestEngine_DegradesToLexicalOnlyWithoutVectorIndex(t *testing.T) {
	dir := t.TempDir()
	st, err := store.Open(store.Config{
		DatabasePath:   filepath.Join(dir, "postmill.db"),
		LexicalBackend: store.BackendFTS5,
		Dimensions:     testDims,
	})
	require.NoError(t, err)
	defer st.Close()
	ctx := context.Background()

	// Embedder that always fails to load: both halves of the vector path
	// are unavailable.
	provider := embed.NewProvider(embed.Config{Backend: "does-not-exist"})
	engine := NewEngine(st, provider, DefaultOptions())

	_, err = st.Save(ctx, store.ChunkDraft{
		SourceType: store.SourceTypePage, SourceID: "doc", ChunkType: "paragraph_group",
		Content: "lexical evidence about sourdough fermentation",
	}, make([]float32, testDims))
	require.NoError(t, err)

	formatted, results, err := engine.Retrieve(ctx, Query{Text: "sourdough fermentation"})
	require.NoError(t, err, "degradation must never raise")
	require.NotEmpty(t, results)
	assert.Zero(t, results[0].VectorNorm)
	assert.Contains(t, formatted, "sourdough")
}

func TestEngine_NoMatchesReturnsSentinel(t *testing.T) {
	engine, st, embedder := newTestEngine(t)
	seedChunk(t, st, embedder, "doc", "entirely unrelated material")

	// The static embedder always produces a vector, so vector candidates
	// exist; restrict to a nonsense lexical-only query via weights.
	formatted, results, err := engine.Retrieve(context.Background(),
		Query{Text: "zzzzqqqq xyzzyx"})
	require.NoError(t, err)

	if len(results) == 0 {
		assert.Equal(t, NoContextSentinel, formatted)
	}
}

func TestEngine_TopKLimitsResults(t *testing.T) {
	engine, st, embedder := newTestEngine(t)
	for i := 0; i < 8; i++ {
		seedChunk(t, st, embedder, "doc",
			"shared topic about hiking trails and mountain weather "+string(rune('a'+i)))
	}

	_, results, err := engine.Retrieve(context.Background(),
		Query{Text: "hiking mountain weather", TopK: 3})
	require.NoError(t, err)
	assert.LessOrEqual(t, len(results), 3)
}

func TestEngine_PerQueryWeightOverrides(t *testing.T) {
	engine, st, embedder := newTestEngine(t)
	seedChunk(t, st, embedder, "doc", "content about jazz improvisation")

	kw, sw := 1.0, 0.0
	_, results, err := engine.Retrieve(context.Background(),
		Query{Text: "jazz improvisation", KeywordWeight: &kw, SemanticWeight: &sw})
	require.NoError(t, err)
	require.NotEmpty(t, results)

	// Semantic dimension contributes nothing under a zero weight
	assert.InDelta(t, results[0].LexicalNorm, results[0].FusedScore, 1e-9)
}
