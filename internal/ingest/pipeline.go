// Package ingest turns source documents into stored, embedded chunks.
package ingest

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"sync/atomic"

	"github.com/panjf2000/ants/v2"

	"github.com/postmill/postmill/internal/chunk"
	"github.com/postmill/postmill/internal/embed"
	pmerrors "github.com/postmill/postmill/internal/errors"
	"github.com/postmill/postmill/internal/source"
	"github.com/postmill/postmill/internal/store"
)

// DefaultWorkers is the ingestion pool size when not configured.
const DefaultWorkers = 4

// Pipeline chunks, embeds and stores documents. Chunk writes are
// independent transactions, so they run in parallel on a worker pool.
type Pipeline struct {
	store    *store.Store
	provider *embed.Provider
	chunker  *chunk.Chunker
	workers  int
}

// NewPipeline creates an ingestion pipeline.
func NewPipeline(st *store.Store, provider *embed.Provider, chunker *chunk.Chunker, workers int) *Pipeline {
	if workers <= 0 {
		workers = DefaultWorkers
	}
	return &Pipeline{store: st, provider: provider, chunker: chunker, workers: workers}
}

// Ingest processes one logical document and returns the number of chunks
// written. An already ingested (sourceType, sourceID) pair is a no-op
// returning 0 unless force is set; force supersedes the previous chunks by
// deleting them first. An unavailable embedder is fatal; a dimension
// mismatch aborts only the offending chunk's write.
func (p *Pipeline) Ingest(ctx context.Context, sourceType, sourceID, text string, force bool) (int, error) {
	already, err := p.store.IsIngested(ctx, sourceType, sourceID)
	if err != nil {
		return 0, err
	}
	if already && !force {
		slog.Debug("source already ingested, skipping",
			"source_type", sourceType, "source_id", sourceID)
		return 0, nil
	}

	chunks := p.chunker.Chunk(text, sourceID)
	if len(chunks) == 0 {
		slog.Debug("document produced no chunks",
			"source_type", sourceType, "source_id", sourceID)
		return 0, nil
	}

	embedder, err := p.provider.Get(ctx)
	if err != nil {
		return 0, err
	}

	texts := make([]string, len(chunks))
	for i, c := range chunks {
		texts[i] = c.Content
	}
	vectors, err := embedder.EmbedBatch(ctx, texts)
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeEmbeddingFailed, "embed document chunks", err)
	}

	if already && force {
		if _, err := p.store.DeleteSource(ctx, sourceType, sourceID); err != nil {
			return 0, err
		}
	}

	written, err := p.saveParallel(ctx, sourceType, chunks, vectors)
	if err != nil {
		return written, err
	}

	slog.Info("document ingested",
		"source_type", sourceType,
		"source_id", sourceID,
		"chunks", written,
		"forced", force)
	return written, nil
}

// saveParallel writes chunks concurrently. Each write is its own
// transaction; dimension mismatches skip the chunk, any other write error
// fails the batch.
func (p *Pipeline) saveParallel(ctx context.Context, sourceType string,
	chunks []*chunk.Chunk, vectors [][]float32) (int, error) {

	pool, err := ants.NewPool(p.workers)
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeIngestFailed, "create worker pool", err)
	}
	defer pool.Release()

	var (
		written  atomic.Int64
		mu       sync.Mutex
		firstErr error
		wg       sync.WaitGroup
	)

	for i := range chunks {
		i := i
		wg.Add(1)
		submitErr := pool.Submit(func() {
			defer wg.Done()

			draft := store.ChunkDraft{
				SourceType: sourceType,
				SourceID:   chunks[i].SourceID,
				ChunkType:  string(chunks[i].Type),
				Content:    chunks[i].Content,
				Metadata:   chunks[i].Metadata,
			}
			if _, err := p.store.Save(ctx, draft, vectors[i]); err != nil {
				if errors.Is(err, pmerrors.ErrDimensionMismatch) {
					slog.Warn("chunk skipped on dimension mismatch",
						"source_id", chunks[i].SourceID, "error", err)
					return
				}
				mu.Lock()
				if firstErr == nil {
					firstErr = err
				}
				mu.Unlock()
				return
			}
			written.Add(1)
		})
		if submitErr != nil {
			wg.Done()
			mu.Lock()
			if firstErr == nil {
				firstErr = pmerrors.New(pmerrors.ErrCodeIngestFailed, "submit chunk write", submitErr)
			}
			mu.Unlock()
		}
	}
	wg.Wait()

	return int(written.Load()), firstErr
}

// IngestAll fetches every document from a source and ingests them in turn.
// Fetch failures propagate as source-unreadable; per-document counts are
// summed.
func (p *Pipeline) IngestAll(ctx context.Context, fetcher source.Fetcher, force bool) (int, error) {
	docs, err := fetcher.Fetch(ctx)
	if err != nil {
		return 0, err
	}

	total := 0
	for _, doc := range docs {
		n, err := p.Ingest(ctx, doc.SourceType, doc.SourceID, doc.Content, force)
		if err != nil {
			return total, err
		}
		total += n
	}

	slog.Info("source ingested",
		"fetcher", fetcher.Name(), "documents", len(docs), "chunks", total)
	return total, nil
}
