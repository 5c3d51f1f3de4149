package compose

import (
	"context"
	"path/filepath"
	"testing"
	"unicode/utf8"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmill/postmill/internal/embed"
	"github.com/postmill/postmill/internal/search"
	"github.com/postmill/postmill/internal/store"
)

const testDims = 32

// stubGenerator echoes its inputs so tests can assert on the wiring.
type stubGenerator struct {
	lastContext string
	draft       string
	err         error
}

func (s *stubGenerator) GeneratePost(_ context.Context, topic, retrievedContext string) (string, error) {
	s.lastContext = retrievedContext
	if s.err != nil {
		return "", s.err
	}
	if s.draft != "" {
		return s.draft, nil
	}
	return "draft about " + topic, nil
}

type stubApprover struct{ verdict bool }

func (s stubApprover) Approve(context.Context, string) (bool, error) { return s.verdict, nil }

type stubPoster struct{ handle string }

func (s stubPoster) Publish(context.Context, string) (string, error) { return s.handle, nil }

func newComposeFixture(t *testing.T) (*store.Store, *search.Engine) {
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

	return st, search.NewEngine(st, provider, search.DefaultOptions())
}

func seed(t *testing.T, st *store.Store, content string) {
	t.Helper()
	ctx := context.Background()
	provider := embed.NewProvider(embed.Config{Backend: "static", Dimensions: testDims})
	embedder, err := provider.Get(ctx)
	require.NoError(t, err)
	vec, err := embedder.Embed(ctx, content)
	require.NoError(t, err)
	_, err = st.Save(ctx, store.ChunkDraft{
		SourceType: store.SourceTypePage, SourceID: "notes", ChunkType: "paragraph_group",
		Content: content,
	}, vec)
	require.NoError(t, err)
}

func TestPipeline_DraftGroundedInRetrievedContext(t *testing.T) {
	st, engine := newComposeFixture(t)
	seed(t, st, "Morning pages practice: write three pages before coffee.")

	gen := &stubGenerator{}
	p := NewPipeline(engine, st.Posts(), gen, nil, nil)

	outcome, err := p.Draft(context.Background(), "morning pages practice")
	require.NoError(t, err)

	assert.True(t, outcome.ContextUsed)
	assert.Contains(t, gen.lastContext, "Morning pages",
		"retrieved context reaches the generator prompt")
	assert.Equal(t, store.PostStatusDraft, outcome.Status)

	posts, err := st.Posts().ListPosts(context.Background(), store.PostStatusDraft, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.Equal(t, outcome.Draft, posts[0].Content)
	assert.Equal(t, "page:notes", posts[0].SourceRef)
}

func TestPipeline_NoContextDraftsFromTopicAlone(t *testing.T) {
	st, engine := newComposeFixture(t)
	// Empty index: retrieval returns the sentinel

	gen := &stubGenerator{}
	p := NewPipeline(engine, st.Posts(), gen, nil, nil)

	outcome, err := p.Draft(context.Background(), "some niche topic")
	require.NoError(t, err)
	assert.False(t, outcome.ContextUsed)
	assert.Empty(t, gen.lastContext, "the sentinel never leaks into the prompt")
}

func TestPipeline_ApprovalAndPublish(t *testing.T) {
	st, engine := newComposeFixture(t)
	seed(t, st, "Notes on fermentation timing for rye sourdough.")

	p := NewPipeline(engine, st.Posts(), &stubGenerator{},
		stubApprover{verdict: true}, stubPoster{handle: "mastodon:987"})

	outcome, err := p.Draft(context.Background(), "rye sourdough fermentation")
	require.NoError(t, err)
	assert.Equal(t, store.PostStatusPublished, outcome.Status)
	assert.Equal(t, "mastodon:987", outcome.PublishedID)

	posts, err := st.Posts().ListPosts(context.Background(), store.PostStatusPublished, 10)
	require.NoError(t, err)
	require.Len(t, posts, 1)
	assert.NotNil(t, posts[0].PostedAt)
}

func TestPipeline_RejectionStopsBeforePublishing(t *testing.T) {
	st, engine := newComposeFixture(t)
	seed(t, st, "Draft material that will be rejected by review.")

	p := NewPipeline(engine, st.Posts(), &stubGenerator{},
		stubApprover{verdict: false}, stubPoster{handle: "never-used"})

	outcome, err := p.Draft(context.Background(), "rejected review material")
	require.NoError(t, err)
	assert.Equal(t, store.PostStatusRejected, outcome.Status)
	assert.Empty(t, outcome.PublishedID)

	published, err := st.Posts().ListPosts(context.Background(), store.PostStatusPublished, 10)
	require.NoError(t, err)
	assert.Empty(t, published)
}

func TestTrimAtWord(t *testing.T) {
	tests := []struct {
		name  string
		in    string
		limit int
		want  string
	}{
		{"under limit unchanged", "short post", 500, "short post"},
		{"cuts at word boundary", "alpha beta gamma delta", 16, "alpha beta"},
		{"no late space hard cut", "abcdefghijklmnop", 8, "abcdefgh"},
		{"multibyte at boundary kept", "caffè lungo", 6, "caffè"},
		{"never splits a rune", "caffè lungo", 5, "caff"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			assert.Equal(t, tt.want, trimAtWord(tt.in, tt.limit))
		})
	}
}

func TestTrimAtWord_AlwaysValidUTF8(t *testing.T) {
	s := "un ristretto è più corto di un caffè normale — più intenso però"
	for limit := 1; limit <= len(s); limit++ {
		assert.True(t, utf8.ValidString(trimAtWord(s, limit)), "limit %d", limit)
	}
}
