// Package watch re-ingests source files as they change on disk.
package watch

import (
	"context"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"sync"
	"time"

	"github.com/fsnotify/fsnotify"

	"github.com/postmill/postmill/internal/ingest"
)

// DefaultDebounce batches rapid editor write bursts into one re-ingest.
const DefaultDebounce = 2 * time.Second

// watchedExtensions mirrors the filesystem source's file types.
var watchedExtensions = map[string]bool{
	".md":       true,
	".markdown": true,
	".txt":      true,
}

// Watcher re-ingests changed files with a per-path debounce.
type Watcher struct {
	pipeline *ingest.Pipeline
	paths    []string
	debounce time.Duration

	mu      sync.Mutex
	pending map[string]*time.Timer
}

// New creates a watcher over the given files and directories.
func New(pipeline *ingest.Pipeline, paths []string, debounce time.Duration) *Watcher {
	if debounce <= 0 {
		debounce = DefaultDebounce
	}
	return &Watcher{
		pipeline: pipeline,
		paths:    paths,
		debounce: debounce,
		pending:  make(map[string]*time.Timer),
	}
}

// Run blocks until the context is cancelled, re-ingesting files as they
// change. Directories are watched recursively at their current depth; new
// subdirectories are added as they appear.
func (w *Watcher) Run(ctx context.Context) error {
	fw, err := fsnotify.NewWatcher()
	if err != nil {
		return err
	}
	defer fw.Close()

	for _, root := range w.paths {
		if err := addRecursive(fw, root); err != nil {
			return err
		}
	}
	slog.Info("watching sources", "paths", w.paths, "debounce", w.debounce)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		case event, ok := <-fw.Events:
			if !ok {
				return nil
			}
			w.handleEvent(ctx, fw, event)
		case err, ok := <-fw.Errors:
			if !ok {
				return nil
			}
			slog.Warn("watch error", "error", err)
		}
	}
}

func (w *Watcher) handleEvent(ctx context.Context, fw *fsnotify.Watcher, event fsnotify.Event) {
	if event.Op.Has(fsnotify.Create) {
		if info, err := os.Stat(event.Name); err == nil && info.IsDir() {
			if err := addRecursive(fw, event.Name); err != nil {
				slog.Warn("cannot watch new directory", "path", event.Name, "error", err)
			}
			return
		}
	}

	if !event.Op.Has(fsnotify.Write) && !event.Op.Has(fsnotify.Create) {
		return
	}
	if !watchedExtensions[strings.ToLower(filepath.Ext(event.Name))] {
		return
	}

	w.schedule(ctx, filepath.Clean(event.Name))
}

// schedule (re)arms the debounce timer for one file.
func (w *Watcher) schedule(ctx context.Context, path string) {
	w.mu.Lock()
	defer w.mu.Unlock()

	if timer, ok := w.pending[path]; ok {
		timer.Reset(w.debounce)
		return
	}
	w.pending[path] = time.AfterFunc(w.debounce, func() {
		w.mu.Lock()
		delete(w.pending, path)
		w.mu.Unlock()
		w.reingest(ctx, path)
	})
}

func (w *Watcher) reingest(ctx context.Context, path string) {
	if ctx.Err() != nil {
		return
	}
	data, err := os.ReadFile(path)
	if err != nil {
		slog.Warn("changed file unreadable, skipping", "path", path, "error", err)
		return
	}

	n, err := w.pipeline.Ingest(ctx, "file", path, string(data), true)
	if err != nil {
		slog.Error("re-ingest failed", "path", path, "error", err)
		return
	}
	slog.Info("file re-ingested", "path", path, "chunks", n)
}

func addRecursive(fw *fsnotify.Watcher, root string) error {
	info, err := os.Stat(root)
	if err != nil {
		return err
	}
	if !info.IsDir() {
		return fw.Add(filepath.Dir(root))
	}
	return filepath.WalkDir(root, func(path string, d os.DirEntry, err error) error {
		if err != nil {
			return err
		}
		if d.IsDir() {
			if strings.HasPrefix(d.Name(), ".") && path != root {
				return filepath.SkipDir
			}
			return fw.Add(path)
		}
		return nil
	})
}
