// Package cmd provides the CLI commands for postmill.
package cmd

import (
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/postmill/postmill/internal/config"
	"github.com/postmill/postmill/internal/embed"
	"github.com/postmill/postmill/internal/logging"
	"github.com/postmill/postmill/internal/search"
	"github.com/postmill/postmill/internal/store"
	"github.com/postmill/postmill/pkg/version"
)

// Global flags shared by all commands.
var (
	cfgFile     string
	dataDirFlag string
	offline     bool
	debugMode   bool

	loggingCleanup func()
)

// NewRootCmd creates the root command for the postmill CLI.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "postmill",
		Short: "Hybrid retrieval and post drafting over your own notes",
		Long: `Postmill indexes local notes and documents into a hybrid search
engine (BM25 + semantic embeddings) and drafts social posts grounded
in the retrieved content.

Run 'postmill init' once, 'postmill ingest <paths>' to index, then
'postmill search' or 'postmill draft'.`,
		Version:       version.Version,
		SilenceUsage:  true,
		SilenceErrors: false,
	}

	cmd.SetVersionTemplate("postmill version {{.Version}}\n")

	cmd.PersistentFlags().StringVar(&cfgFile, "config", "", "Config file (default: <data-dir>/postmill.yaml)")
	cmd.PersistentFlags().StringVar(&dataDirFlag, "data-dir", "", "Data directory (default: ~/.postmill)")
	cmd.PersistentFlags().BoolVar(&offline, "offline", false, "Use static embeddings (no embedding server needed)")
	cmd.PersistentFlags().BoolVar(&debugMode, "debug", false, "Enable debug logging")

	cmd.PersistentPreRunE = setupRun
	cmd.PersistentPostRun = teardownRun

	cmd.AddCommand(newInitCmd())
	cmd.AddCommand(newIngestCmd())
	cmd.AddCommand(newSearchCmd())
	cmd.AddCommand(newStatsCmd())
	cmd.AddCommand(newServeCmd())
	cmd.AddCommand(newDraftCmd())
	cmd.AddCommand(newPostsCmd())
	cmd.AddCommand(newLogsCmd())
	cmd.AddCommand(newVersionCmd())

	return cmd
}

// Execute runs the root command.
func Execute() error {
	return NewRootCmd().Execute()
}

// setupRun loads .env before any command so API tokens and POSTMILL_*
// overrides are visible to config loading.
func setupRun(_ *cobra.Command, _ []string) error {
	// Missing .env is the normal case.
	_ = godotenv.Load()
	return nil
}

func teardownRun(_ *cobra.Command, _ []string) {
	if loggingCleanup != nil {
		loggingCleanup()
		loggingCleanup = nil
	}
}

// loadConfig resolves flags, file and environment into a final config.
func loadConfig() (*config.Config, error) {
	path := cfgFile
	if path == "" {
		dir := dataDirFlag
		if dir == "" {
			dir = os.Getenv("POSTMILL_DATA_DIR")
		}
		if dir == "" {
			dir = config.DefaultDataDir()
		}
		path = filepath.Join(dir, "postmill.yaml")
	}

	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if dataDirFlag != "" {
		cfg.DataDir = dataDirFlag
	}
	if offline {
		cfg.Embeddings.Backend = "static"
	}
	if debugMode {
		cfg.LogLevel = "debug"
	}
	if err := os.MkdirAll(cfg.DataDir, 0o755); err != nil {
		return nil, fmt.Errorf("create data dir %s: %w", cfg.DataDir, err)
	}
	return cfg, nil
}

// setupLogging installs the default logger for CLI runs. Failures fall
// back to the stock slog handler rather than aborting the command.
func setupLogging(cfg *config.Config) {
	logCfg := logging.DefaultConfig(cfg.DataDir)
	logCfg.Level = cfg.LogLevel
	cleanup, err := logging.SetupDefault(logCfg)
	if err != nil {
		slog.Warn("logging setup failed, using stderr", "error", err)
		return
	}
	loggingCleanup = cleanup
}

// openStore opens the index store described by the config.
func openStore(cfg *config.Config) (*store.Store, error) {
	return store.Open(store.Config{
		DatabasePath:    cfg.DatabasePath(),
		VectorIndexPath: cfg.VectorIndexPath(),
		BleveIndexPath:  cfg.BleveIndexPath(),
		LexicalBackend:  cfg.Store.LexicalBackend,
		Dimensions:      cfg.Embeddings.Dimensions,
	})
}

// newProvider builds the lazy embedder provider from the config.
func newProvider(cfg *config.Config) *embed.Provider {
	return embed.NewProvider(embed.Config{
		Backend:    cfg.Embeddings.Backend,
		Endpoint:   cfg.Embeddings.Endpoint,
		Model:      cfg.Embeddings.Model,
		Token:      firstNonEmptyEnv("POSTMILL_EMBED_TOKEN", "OPENAI_API_KEY"),
		Dimensions: cfg.Embeddings.Dimensions,
		BatchSize:  cfg.Embeddings.BatchSize,
		CacheSize:  cfg.Embeddings.CacheSize,
	})
}

// firstNonEmptyEnv returns the first set environment variable.
func firstNonEmptyEnv(keys ...string) string {
	for _, key := range keys {
		if v := os.Getenv(key); v != "" {
			return v
		}
	}
	return ""
}

// newEngine wires the retrieval engine with the configured defaults.
func newEngine(cfg *config.Config, st *store.Store, provider *embed.Provider) *search.Engine {
	return search.NewEngine(st, provider, search.Options{
		TopK:            cfg.Search.TopK,
		KeywordWeight:   cfg.Search.KeywordWeight,
		SemanticWeight:  cfg.Search.SemanticWeight,
		CandidateLimit:  cfg.Search.CandidateLimit,
		MaxContextChars: cfg.Search.MaxContextChars,
	})
}
