// Package config loads and validates postmill configuration.
//
// Precedence, lowest to highest:
//  1. Built-in defaults
//  2. Config file (postmill.yaml in the data directory or --config path)
//  3. Environment variables (POSTMILL_*)
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"

	"gopkg.in/yaml.v3"
)

// CurrentVersion is the config schema version.
const CurrentVersion = 1

// Config represents the complete postmill configuration.
type Config struct {
	Version    int              `yaml:"version"`
	DataDir    string           `yaml:"data_dir"`
	Store      StoreConfig      `yaml:"store"`
	Search     SearchConfig     `yaml:"search"`
	Chunking   ChunkingConfig   `yaml:"chunking"`
	Embeddings EmbeddingsConfig `yaml:"embeddings"`
	Sources    SourcesConfig    `yaml:"sources"`
	Generation GenerationConfig `yaml:"generation"`
	Server     ServerConfig     `yaml:"server"`
	LogLevel   string           `yaml:"log_level"`
}

// StoreConfig configures the index store.
type StoreConfig struct {
	// LexicalBackend selects the lexical index backend.
	// Options: "fts5" (default, same-transaction writes) or "bleve".
	LexicalBackend string `yaml:"lexical_backend"`

	// CacheSizeMB is the SQLite page cache size in MB (default: 64).
	CacheSizeMB int `yaml:"cache_size_mb"`
}

// SearchConfig configures hybrid retrieval.
type SearchConfig struct {
	// KeywordWeight is the fusion weight for lexical (BM25) scores.
	KeywordWeight float64 `yaml:"keyword_weight"`

	// SemanticWeight is the fusion weight for vector similarity scores.
	// The engine does not force the weights to sum to 1; that is the
	// caller's choice.
	SemanticWeight float64 `yaml:"semantic_weight"`

	// TopK is the default number of fused results (default: 10).
	TopK int `yaml:"top_k"`

	// CandidateLimit is how many candidates each ranker contributes
	// before fusion (default: 100).
	CandidateLimit int `yaml:"candidate_limit"`

	// MaxContextChars bounds the formatted context string (default: 4000).
	MaxContextChars int `yaml:"max_context_chars"`
}

// ChunkingConfig configures the document chunker.
type ChunkingConfig struct {
	// MinChunkSize is the minimum chunk length in characters (default: 100).
	MinChunkSize int `yaml:"min_chunk_size"`

	// MaxChunkSize is the maximum chunk length in characters (default: 2000).
	MaxChunkSize int `yaml:"max_chunk_size"`
}

// EmbeddingsConfig configures the embedding backend.
type EmbeddingsConfig struct {
	// Backend selects the embedder: "openai" (OpenAI-compatible API) or
	// "static" (offline hash embedder).
	Backend string `yaml:"backend"`

	// Endpoint is the OpenAI-compatible base URL (default: local server).
	Endpoint string `yaml:"endpoint"`

	// Model is the embedding model name.
	Model string `yaml:"model"`

	// Dimensions is the embedding dimension; fixed system-wide and must
	// match what is stored in the vector index.
	Dimensions int `yaml:"dimensions"`

	// BatchSize is the embedding batch size (default: 32).
	BatchSize int `yaml:"batch_size"`

	// CacheSize is the LRU query-embedding cache size (default: 1000).
	CacheSize int `yaml:"cache_size"`
}

// SourcesConfig configures local content sources.
type SourcesConfig struct {
	// Paths are files or directories to ingest (.md, .txt).
	Paths []string `yaml:"paths"`

	// WatchDebounce is the quiet period before re-ingesting a changed
	// file in watch mode (default: "500ms").
	WatchDebounce string `yaml:"watch_debounce"`
}

// GenerationConfig configures the post drafting client.
type GenerationConfig struct {
	// Endpoint is the OpenAI-compatible chat base URL.
	Endpoint string `yaml:"endpoint"`

	// Model is the chat model name.
	Model string `yaml:"model"`

	// MaxPostChars bounds generated posts (default: 500, Mastodon limit).
	MaxPostChars int `yaml:"max_post_chars"`
}

// ServerConfig configures the HTTP API.
type ServerConfig struct {
	// Addr is the listen address (default: "127.0.0.1:8787").
	Addr string `yaml:"addr"`
}

// Default returns the built-in default configuration rooted at dataDir.
func Default(dataDir string) *Config {
	return &Config{
		Version: CurrentVersion,
		DataDir: dataDir,
		Store: StoreConfig{
			LexicalBackend: "fts5",
			CacheSizeMB:    64,
		},
		Search: SearchConfig{
			KeywordWeight:   0.5,
			SemanticWeight:  0.5,
			TopK:            10,
			CandidateLimit:  100,
			MaxContextChars: 4000,
		},
		Chunking: ChunkingConfig{
			MinChunkSize: 100,
			MaxChunkSize: 2000,
		},
		Embeddings: EmbeddingsConfig{
			Backend:    "openai",
			Endpoint:   "http://localhost:11434/v1",
			Model:      "all-minilm",
			Dimensions: 384,
			BatchSize:  32,
			CacheSize:  1000,
		},
		Sources: SourcesConfig{
			WatchDebounce: "500ms",
		},
		Generation: GenerationConfig{
			Endpoint:     "http://localhost:11434/v1",
			Model:        "llama3.2",
			MaxPostChars: 500,
		},
		Server: ServerConfig{
			Addr: "127.0.0.1:8787",
		},
		LogLevel: "info",
	}
}

// DefaultDataDir returns ~/.postmill, falling back to the working directory.
func DefaultDataDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".postmill"
	}
	return filepath.Join(home, ".postmill")
}

// DatabasePath returns the SQLite database path under the data directory.
func (c *Config) DatabasePath() string {
	return filepath.Join(c.DataDir, "postmill.db")
}

// VectorIndexPath returns the HNSW snapshot path under the data directory.
func (c *Config) VectorIndexPath() string {
	return filepath.Join(c.DataDir, "vectors.hnsw")
}

// BleveIndexPath returns the bleve index directory under the data directory.
func (c *Config) BleveIndexPath() string {
	return filepath.Join(c.DataDir, "lexical.bleve")
}

// Load reads configuration from path, layering file values over defaults
// and environment variables over both. A missing file is not an error.
func Load(path string) (*Config, error) {
	cfg := Default(DefaultDataDir())

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, fmt.Errorf("read config %s: %w", path, err)
			}
		} else if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	applyEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// Save writes the configuration as YAML to path.
func (c *Config) Save(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create config dir: %w", err)
	}
	data, err := yaml.Marshal(c)
	if err != nil {
		return fmt.Errorf("marshal config: %w", err)
	}
	return os.WriteFile(path, data, 0o644)
}

// applyEnv overrides config fields from POSTMILL_* environment variables.
func applyEnv(cfg *Config) {
	if v := os.Getenv("POSTMILL_DATA_DIR"); v != "" {
		cfg.DataDir = v
	}
	if v := os.Getenv("POSTMILL_LOG_LEVEL"); v != "" {
		cfg.LogLevel = v
	}
	if v, ok := envFloat("POSTMILL_KEYWORD_WEIGHT"); ok {
		cfg.Search.KeywordWeight = v
	}
	if v, ok := envFloat("POSTMILL_SEMANTIC_WEIGHT"); ok {
		cfg.Search.SemanticWeight = v
	}
	if v := os.Getenv("POSTMILL_EMBED_BACKEND"); v != "" {
		cfg.Embeddings.Backend = v
	}
	if v := os.Getenv("POSTMILL_EMBED_ENDPOINT"); v != "" {
		cfg.Embeddings.Endpoint = v
	}
	if v := os.Getenv("POSTMILL_EMBED_MODEL"); v != "" {
		cfg.Embeddings.Model = v
	}
	if v, ok := envInt("POSTMILL_EMBED_DIMENSIONS"); ok {
		cfg.Embeddings.Dimensions = v
	}
	if v := os.Getenv("POSTMILL_SERVER_ADDR"); v != "" {
		cfg.Server.Addr = v
	}
}

func envFloat(key string) (float64, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, false
	}
	return v, true
}

func envInt(key string) (int, bool) {
	raw := os.Getenv(key)
	if raw == "" {
		return 0, false
	}
	v, err := strconv.Atoi(raw)
	if err != nil {
		return 0, false
	}
	return v, true
}

// Validate checks configuration invariants.
func (c *Config) Validate() error {
	if c.Search.KeywordWeight < 0 || c.Search.SemanticWeight < 0 {
		return fmt.Errorf("search weights must be non-negative (keyword=%v semantic=%v)",
			c.Search.KeywordWeight, c.Search.SemanticWeight)
	}
	if c.Search.TopK <= 0 {
		return fmt.Errorf("search.top_k must be positive, got %d", c.Search.TopK)
	}
	if c.Chunking.MinChunkSize <= 0 || c.Chunking.MaxChunkSize <= 0 {
		return fmt.Errorf("chunk sizes must be positive (min=%d max=%d)",
			c.Chunking.MinChunkSize, c.Chunking.MaxChunkSize)
	}
	if c.Chunking.MinChunkSize > c.Chunking.MaxChunkSize {
		return fmt.Errorf("min_chunk_size %d exceeds max_chunk_size %d",
			c.Chunking.MinChunkSize, c.Chunking.MaxChunkSize)
	}
	if c.Embeddings.Dimensions <= 0 {
		return fmt.Errorf("embeddings.dimensions must be positive, got %d", c.Embeddings.Dimensions)
	}
	switch c.Embeddings.Backend {
	case "openai", "static":
	default:
		return fmt.Errorf("unknown embeddings backend %q (want openai or static)", c.Embeddings.Backend)
	}
	switch c.Store.LexicalBackend {
	case "fts5", "bleve":
	default:
		return fmt.Errorf("unknown lexical backend %q (want fts5 or bleve)", c.Store.LexicalBackend)
	}
	return nil
}
