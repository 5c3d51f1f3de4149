package watch

import (
	"context"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmill/postmill/internal/chunk"
	"github.com/postmill/postmill/internal/embed"
	"github.com/postmill/postmill/internal/ingest"
	"github.com/postmill/postmill/internal/store"
)

func newWatchFixture(t *testing.T) (*ingest.Pipeline, *store.Store) {
	t.Helper()
	dir := t.TempDir()
	st, err := store.Open(store.Config{
		DatabasePath:   filepath.Join(dir, "postmill.db"),
		LexicalBackend: store.BackendFTS5,
		Dimensions:     32,
	})
	require.NoError(t, err)
	t.Cleanup(func() { _ = st.Close() })

	provider := embed.NewProvider(embed.Config{Backend: "static", Dimensions: 32})
	t.Cleanup(func() { _ = provider.Close() })

	return ingest.NewPipeline(st, provider, chunk.New(10, 800), 2), st
}

func TestWatcher_ReingestsChangedFile(t *testing.T) {
	pipeline, st := newWatchFixture(t)
	dir := t.TempDir()
	path := filepath.Join(dir, "doc.md")
	require.NoError(t, os.WriteFile(path, []byte("initial body of the note"), 0o644))

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(pipeline, []string{dir}, 50*time.Millisecond)
	done := make(chan error, 1)
	go func() { done <- w.Run(ctx) }()

	// Give the watcher time to arm, then modify the file
	time.Sleep(200 * time.Millisecond)
	require.NoError(t, os.WriteFile(path, []byte("updated body of the note with more words"), 0o644))

	require.Eventually(t, func() bool {
		ok, err := st.IsIngested(context.Background(), "file", filepath.Clean(path))
		return err == nil && ok
	}, 5*time.Second, 50*time.Millisecond, "changed file should be re-ingested")

	cancel()
	assert.ErrorIs(t, <-done, context.Canceled)
}

func TestWatcher_IgnoresNonTextFiles(t *testing.T) {
	pipeline, st := newWatchFixture(t)
	dir := t.TempDir()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	w := New(pipeline, []string{dir}, 50*time.Millisecond)
	go func() { _ = w.Run(ctx) }()
	time.Sleep(200 * time.Millisecond)

	binPath := filepath.Join(dir, "image.png")
	require.NoError(t, os.WriteFile(binPath, []byte{0x89, 0x50}, 0o644))
	time.Sleep(300 * time.Millisecond)

	ok, err := st.IsIngested(context.Background(), "file", filepath.Clean(binPath))
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestNew_DefaultDebounce(t *testing.T) {
	w := New(nil, nil, 0)
	assert.Equal(t, DefaultDebounce, w.debounce)
}
