package embed

import (
	"context"
	"math"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

func TestStaticEmbedder_Deterministic(t *testing.T) {
	// Given a static embedder
	e := NewStaticEmbedder(384)
	defer e.Close()
	ctx := context.Background()

	// When embedding the same text twice
	v1, err := e.Embed(ctx, "drafting a post about morning routines")
	require.NoError(t, err)
	v2, err := e.Embed(ctx, "drafting a post about morning routines")
	require.NoError(t, err)

	// Then the vectors are identical and normalized
	assert.Equal(t, v1, v2)
	assert.Len(t, v1, 384)

	var norm float64
	for _, x := range v1 {
		norm += float64(x) * float64(x)
	}
	assert.InDelta(t, 1.0, math.Sqrt(norm), 1e-5)
}

func TestStaticEmbedder_EmptyTextReturnsZeroVector(t *testing.T) {
	e := NewStaticEmbedder(64)
	defer e.Close()

	for _, text := range []string{"", "   ", "\n\t"} {
		vec, err := e.Embed(context.Background(), text)
		require.NoError(t, err)
		assert.True(t, IsZeroVector(vec), "text %q should produce the zero-vector sentinel", text)
		assert.Len(t, vec, 64)
	}
}

func TestStaticEmbedder_SimilarTextsCloserThanUnrelated(t *testing.T) {
	e := NewStaticEmbedder(384)
	defer e.Close()
	ctx := context.Background()

	a, err := e.Embed(ctx, "tips for growing tomatoes in a small garden")
	require.NoError(t, err)
	b, err := e.Embed(ctx, "advice on growing tomato plants in gardens")
	require.NoError(t, err)
	c, err := e.Embed(ctx, "quarterly revenue exceeded analyst expectations")
	require.NoError(t, err)

	simAB := cosine(a, b)
	simAC := cosine(a, c)
	assert.Greater(t, simAB, simAC,
		"related texts should score higher than unrelated (ab=%.4f ac=%.4f)", simAB, simAC)
}

func cosine(a, b []float32) float64 {
	var dot float64
	for i := range a {
		dot += float64(a[i]) * float64(b[i])
	}
	return dot
}

func TestStaticEmbedder_BatchMatchesSingle(t *testing.T) {
	e := NewStaticEmbedder(128)
	defer e.Close()
	ctx := context.Background()

	texts := []string{"first snippet", "", "third snippet"}
	batch, err := e.EmbedBatch(ctx, texts)
	require.NoError(t, err)
	require.Len(t, batch, 3)

	for i, text := range texts {
		single, err := e.Embed(ctx, text)
		require.NoError(t, err)
		assert.Equal(t, single, batch[i], "batch result %d diverges from single embed", i)
	}
	assert.True(t, IsZeroVector(batch[1]))
}

func TestStaticEmbedder_Closed(t *testing.T) {
	e := NewStaticEmbedder(32)
	require.NoError(t, e.Close())

	_, err := e.Embed(context.Background(), "anything")
	assert.Error(t, err)
	assert.False(t, e.Available(context.Background()))
}

func TestTokenize_DropsStopWords(t *testing.T) {
	tokens := tokenize("The quick fix for a slow garden is not the soil")
	assert.Equal(t, []string{"quick", "fix", "slow", "garden", "soil"}, tokens)
}

func TestCachedEmbedder_ServesFromCache(t *testing.T) {
	counter := &countingEmbedder{inner: NewStaticEmbedder(64)}
	c, err := NewCachedEmbedder(counter, 16)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	v1, err := c.Embed(ctx, "repeated text")
	require.NoError(t, err)
	v2, err := c.Embed(ctx, "repeated text")
	require.NoError(t, err)

	assert.Equal(t, v1, v2)
	assert.Equal(t, 1, counter.calls, "second embed should not reach the backend")

	hits, misses := c.CacheStats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestCachedEmbedder_BatchPartialCache(t *testing.T) {
	counter := &countingEmbedder{inner: NewStaticEmbedder(64)}
	c, err := NewCachedEmbedder(counter, 16)
	require.NoError(t, err)
	defer c.Close()
	ctx := context.Background()

	// Given one text already cached
	_, err = c.Embed(ctx, "cached already")
	require.NoError(t, err)

	// When batching a mix of cached and new texts
	results, err := c.EmbedBatch(ctx, []string{"fresh one", "cached already", "fresh two"})
	require.NoError(t, err)
	require.Len(t, results, 3)

	// Then only the misses reached the backend
	assert.Equal(t, 2, counter.batchTexts, "only the two uncached texts should be computed")
	for i, vec := range results {
		assert.Len(t, vec, 64, "result %d", i)
	}
}

// countingEmbedder tracks backend calls for cache tests.
type countingEmbedder struct {
	inner      Embedder
	calls      int
	batchTexts int
}

func (c *countingEmbedder) Embed(ctx context.Context, text string) ([]float32, error) {
	c.calls++
	return c.inner.Embed(ctx, text)
}

func (c *countingEmbedder) EmbedBatch(ctx context.Context, texts []string) ([][]float32, error) {
	c.calls++
	c.batchTexts += len(texts)
	return c.inner.EmbedBatch(ctx, texts)
}

func (c *countingEmbedder) Dimensions() int                    { return c.inner.Dimensions() }
func (c *countingEmbedder) ModelName() string                  { return c.inner.ModelName() }
func (c *countingEmbedder) Available(ctx context.Context) bool { return c.inner.Available(ctx) }
func (c *countingEmbedder) Close() error                       { return c.inner.Close() }

func TestProvider_StaticBackend(t *testing.T) {
	p := NewProvider(Config{Backend: "static", Dimensions: 128, CacheSize: 8})
	defer p.Close()

	e, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Equal(t, 128, e.Dimensions())
	assert.Equal(t, "static", e.ModelName())

	// Same instance on repeat calls.
	e2, err := p.Get(context.Background())
	require.NoError(t, err)
	assert.Same(t, e, e2)
}

func TestProvider_UnknownBackend(t *testing.T) {
	p := NewProvider(Config{Backend: "does-not-exist"})
	_, err := p.Get(context.Background())
	require.Error(t, err)
	assert.ErrorIs(t, err, pmerrors.ErrEmbeddingUnavailable)
}
