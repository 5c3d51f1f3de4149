package cmd

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"
)

func newInitCmd() *cobra.Command {
	var force bool

	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize the data directory and config",
		Long: `Create the postmill data directory, write a default config file,
and set up the database schema. Safe to re-run; --force overwrites an
existing config file with defaults.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd.Context(), cmd, force)
		},
	}

	cmd.Flags().BoolVar(&force, "force", false, "Overwrite an existing config file")

	return cmd
}

func runInit(ctx context.Context, cmd *cobra.Command, force bool) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	configPath := cfgFile
	if configPath == "" {
		configPath = filepath.Join(cfg.DataDir, "postmill.yaml")
	}
	if _, err := os.Stat(configPath); os.IsNotExist(err) || force {
		if err := cfg.Save(configPath); err != nil {
			return fmt.Errorf("write config: %w", err)
		}
		fmt.Fprintf(cmd.OutOrStdout(), "Wrote config: %s\n", configPath)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Config exists: %s (use --force to overwrite)\n", configPath)
	}

	// Opening the store creates the SQLite schema and index directories.
	st, err := openStore(cfg)
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	defer st.Close()

	// Warm the embedder so a misconfigured backend surfaces now rather
	// than during the first ingest.
	provider := newProvider(cfg)
	defer provider.Close()
	if _, err := provider.Get(ctx); err != nil {
		fmt.Fprintf(cmd.OutOrStdout(),
			"Warning: embedding backend %q unavailable (%v)\n"+
				"Searches will run lexical-only until it comes back, or use --offline.\n",
			cfg.Embeddings.Backend, err)
	} else {
		fmt.Fprintf(cmd.OutOrStdout(), "Embedding backend ready: %s (%s, %d dims)\n",
			cfg.Embeddings.Backend, cfg.Embeddings.Model, cfg.Embeddings.Dimensions)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Data directory: %s\n", cfg.DataDir)
	fmt.Fprintln(cmd.OutOrStdout(), "Ready. Try: postmill ingest <path> && postmill search \"a topic\"")
	return nil
}
