package cmd

import (
	"context"
	"fmt"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/postmill/postmill/internal/chunk"
	"github.com/postmill/postmill/internal/ingest"
	"github.com/postmill/postmill/internal/source"
	"github.com/postmill/postmill/internal/watch"
)

// ingestOptions holds CLI flags for ingest.
type ingestOptions struct {
	force   bool
	watch   bool
	workers int
}

func newIngestCmd() *cobra.Command {
	var opts ingestOptions

	cmd := &cobra.Command{
		Use:   "ingest [paths...]",
		Short: "Index documents into the search engine",
		Long: `Chunk, embed and index documents from the given paths (.md, .txt).
Without arguments, the paths from the config's sources section are used.

Already-ingested sources are skipped unless --force is set. With
--watch, postmill keeps running and re-ingests files as they change.

Examples:
  postmill ingest ./notes
  postmill ingest ./notes ./drafts --force
  postmill ingest --watch`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runIngest(cmd.Context(), cmd, args, opts)
		},
	}

	cmd.Flags().BoolVarP(&opts.force, "force", "f", false, "Re-ingest even if already indexed")
	cmd.Flags().BoolVarP(&opts.watch, "watch", "w", false, "Keep running and re-ingest changed files")
	cmd.Flags().IntVar(&opts.workers, "workers", runtime.NumCPU(), "Parallel index writers")

	return cmd
}

func runIngest(ctx context.Context, cmd *cobra.Command, paths []string, opts ingestOptions) error {
	cfg, err := loadConfig()
	if err != nil {
		return err
	}
	setupLogging(cfg)

	if len(paths) == 0 {
		paths = cfg.Sources.Paths
	}
	if len(paths) == 0 {
		return fmt.Errorf("no paths given and no sources configured; run 'postmill ingest <path>'")
	}

	// One writer at a time; concurrent ingests would race on the vector
	// snapshot file.
	lock, err := ingest.AcquireLock(cfg.DataDir)
	if err != nil {
		return err
	}
	defer lock.Release()

	st, err := openStore(cfg)
	if err != nil {
		return err
	}
	defer st.Close()

	provider := newProvider(cfg)
	defer provider.Close()

	chunker := chunk.New(cfg.Chunking.MinChunkSize, cfg.Chunking.MaxChunkSize)
	pipeline := ingest.NewPipeline(st, provider, chunker, opts.workers)

	start := time.Now()
	fetcher := source.NewFilesystemSource(paths)
	written, err := pipeline.IngestAll(ctx, fetcher, opts.force)
	if err != nil {
		return err
	}
	if err := st.Flush(); err != nil {
		return err
	}
	fmt.Fprintf(cmd.OutOrStdout(), "Ingested %d chunks in %s\n", written, time.Since(start).Round(time.Millisecond))

	if !opts.watch {
		return nil
	}

	debounce := watch.DefaultDebounce
	if d, err := time.ParseDuration(cfg.Sources.WatchDebounce); err == nil && d > 0 {
		debounce = d
	}

	watchCtx, stop := signal.NotifyContext(ctx, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	fmt.Fprintln(cmd.OutOrStdout(), "Watching for changes (Ctrl-C to stop)...")
	watcher := watch.New(pipeline, paths, debounce)
	if err := watcher.Run(watchCtx); err != nil && watchCtx.Err() == nil {
		return err
	}
	return st.Flush()
}
