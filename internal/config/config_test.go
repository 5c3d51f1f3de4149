package config

import (
	"os"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestDefault_Validates(t *testing.T) {
	cfg := Default(t.TempDir())
	require.NoError(t, cfg.Validate())

	assert.Equal(t, 0.5, cfg.Search.KeywordWeight)
	assert.Equal(t, 0.5, cfg.Search.SemanticWeight)
	assert.Equal(t, 384, cfg.Embeddings.Dimensions)
	assert.Equal(t, "fts5", cfg.Store.LexicalBackend)
	assert.Equal(t, 100, cfg.Chunking.MinChunkSize)
	assert.Equal(t, 2000, cfg.Chunking.MaxChunkSize)
}

func TestLoad_MissingFileUsesDefaults(t *testing.T) {
	cfg, err := Load(filepath.Join(t.TempDir(), "nope.yaml"))
	require.NoError(t, err)
	assert.Equal(t, 10, cfg.Search.TopK)
}

func TestLoad_FileOverridesDefaults(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "postmill.yaml")
	yaml := `
search:
  keyword_weight: 0.7
  semantic_weight: 0.3
  top_k: 5
  candidate_limit: 100
  max_context_chars: 4000
chunking:
  min_chunk_size: 50
  max_chunk_size: 800
`
	require.NoError(t, os.WriteFile(path, []byte(yaml), 0o644))

	cfg, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 0.7, cfg.Search.KeywordWeight)
	assert.Equal(t, 5, cfg.Search.TopK)
	assert.Equal(t, 800, cfg.Chunking.MaxChunkSize)
	// Untouched sections keep defaults.
	assert.Equal(t, "openai", cfg.Embeddings.Backend)
}

func TestLoad_EnvOverridesFile(t *testing.T) {
	t.Setenv("POSTMILL_KEYWORD_WEIGHT", "0.9")
	t.Setenv("POSTMILL_EMBED_BACKEND", "static")

	cfg, err := Load("")
	require.NoError(t, err)
	assert.Equal(t, 0.9, cfg.Search.KeywordWeight)
	assert.Equal(t, "static", cfg.Embeddings.Backend)
}

func TestValidate_Rejections(t *testing.T) {
	tests := []struct {
		name   string
		mutate func(*Config)
	}{
		{"negative weight", func(c *Config) { c.Search.KeywordWeight = -0.1 }},
		{"zero top_k", func(c *Config) { c.Search.TopK = 0 }},
		{"min above max", func(c *Config) { c.Chunking.MinChunkSize = 3000 }},
		{"zero dimensions", func(c *Config) { c.Embeddings.Dimensions = 0 }},
		{"bad backend", func(c *Config) { c.Embeddings.Backend = "cuda" }},
		{"bad lexical backend", func(c *Config) { c.Store.LexicalBackend = "lucene" }},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := Default(t.TempDir())
			tt.mutate(cfg)
			assert.Error(t, cfg.Validate())
		})
	}
}

func TestSaveLoad_RoundTrip(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "postmill.yaml")

	cfg := Default(dir)
	cfg.Search.TopK = 25
	require.NoError(t, cfg.Save(path))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, 25, loaded.Search.TopK)
}
