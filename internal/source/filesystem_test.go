package source

import (
	"context"
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

func TestFilesystemSource_FetchWalksDirectories(t *testing.T) {
	dir := t.TempDir()
	require.NoError(t, os.MkdirAll(filepath.Join(dir, "nested"), 0o755))
	require.NoError(t, os.MkdirAll(filepath.Join(dir, ".hidden"), 0o755))

	files := map[string]string{
		"notes.md":          "# Notes\n\nsome notes",
		"nested/deep.txt":   "deep content",
		"ignored.json":      `{"not": "text"}`,
		".hidden/secret.md": "should be skipped",
	}
	for name, content := range files {
		require.NoError(t, os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644))
	}

	docs, err := NewFilesystemSource([]string{dir}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 2, "only .md/.txt outside hidden dirs are picked up")

	byID := make(map[string]Document)
	for _, d := range docs {
		assert.Equal(t, "file", d.SourceType)
		byID[filepath.Base(d.SourceID)] = d
	}
	assert.Equal(t, "# Notes\n\nsome notes", byID["notes.md"].Content)
	assert.Equal(t, "deep content", byID["deep.txt"].Content)
}

func TestFilesystemSource_SingleFile(t *testing.T) {
	path := filepath.Join(t.TempDir(), "single.md")
	require.NoError(t, os.WriteFile(path, []byte("solo"), 0o644))

	docs, err := NewFilesystemSource([]string{path}).Fetch(context.Background())
	require.NoError(t, err)
	require.Len(t, docs, 1)
	assert.Equal(t, filepath.Clean(path), docs[0].SourceID)
}

func TestFilesystemSource_MissingPathIsSourceUnreadable(t *testing.T) {
	docs, err := NewFilesystemSource([]string{"/does/not/exist"}).Fetch(context.Background())
	require.Error(t, err)
	assert.Nil(t, docs)
	assert.ErrorIs(t, err, pmerrors.ErrSourceUnreadable)
}
