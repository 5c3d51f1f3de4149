package store

import (
	"context"
	"errors"
	"log/slog"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// Config selects the store's backends and paths.
type Config struct {
	DatabasePath    string
	VectorIndexPath string
	BleveIndexPath  string
	LexicalBackend  string // "fts5" (default) or "bleve"
	Dimensions      int
}

// Store coordinates the three projections behind the single chunk id:
// SQLite metadata, the lexical index, and the HNSW vector index.
type Store struct {
	sqlite *SQLiteStore
	bleve  *BleveIndex // nil unless LexicalBackend == "bleve"
	vector *HNSWIndex  // nil when the vector backend failed to load

	vectorPath string
	dimensions int
}

// Open wires up the configured backends. A corrupt or unreadable vector
// snapshot does not fail the open: the store runs lexical-only and vector
// searches return empty results.
func Open(cfg Config) (*Store, error) {
	if cfg.LexicalBackend == "" {
		cfg.LexicalBackend = BackendFTS5
	}

	sqlite, err := OpenSQLite(cfg.DatabasePath, cfg.LexicalBackend == BackendFTS5)
	if err != nil {
		return nil, err
	}

	s := &Store{
		sqlite:     sqlite,
		vectorPath: cfg.VectorIndexPath,
		dimensions: cfg.Dimensions,
	}

	if cfg.LexicalBackend == BackendBleve {
		bleveIdx, err := NewBleveIndex(cfg.BleveIndexPath)
		if err != nil {
			_ = sqlite.Close()
			return nil, err
		}
		s.bleve = bleveIdx
	}

	vector := NewHNSWIndex(DefaultVectorIndexConfig(cfg.Dimensions))
	if err := vector.Load(cfg.VectorIndexPath); err != nil {
		slog.Warn("vector index unavailable, running lexical-only",
			"path", cfg.VectorIndexPath, "error", err)
		_ = vector.Close()
	} else {
		s.vector = vector
	}

	return s, nil
}

// Save writes one chunk across all projections and returns its id. The
// metadata and FTS5 rows commit in one transaction; the vector is validated
// before the transaction so a dimension mismatch aborts the whole chunk
// write. With the bleve backend a failed lexical write removes the already
// committed metadata row (compensation).
func (s *Store) Save(ctx context.Context, draft ChunkDraft, vector []float32) (int64, error) {
	if s.vector != nil && len(vector) != s.dimensions {
		return 0, pmerrors.DimensionMismatch(s.dimensions, len(vector))
	}

	id, err := s.sqlite.SaveChunk(ctx, draft)
	if err != nil {
		return 0, err
	}

	if s.bleve != nil {
		if err := s.bleve.IndexChunk(ctx, id, draft.Content); err != nil {
			if delErr := s.sqlite.DeleteChunk(ctx, id); delErr != nil {
				slog.Error("compensating delete failed, metadata row orphaned",
					"chunk_id", id, "error", delErr)
			}
			return 0, err
		}
	}

	if s.vector != nil {
		if err := s.vector.Add(id, vector); err != nil {
			if delErr := s.sqlite.DeleteChunk(ctx, id); delErr != nil {
				slog.Error("compensating delete failed, metadata row orphaned",
					"chunk_id", id, "error", delErr)
			}
			if s.bleve != nil {
				if delErr := s.bleve.DeleteChunks(ctx, id); delErr != nil {
					slog.Error("lexical cleanup failed", "chunk_id", id, "error", delErr)
				}
			}
			return 0, err
		}
	}

	return id, nil
}

// DeleteSource removes every chunk of one logical document from all three
// projections.
func (s *Store) DeleteSource(ctx context.Context, sourceType, sourceID string) (int, error) {
	ids, err := s.sqlite.DeleteSource(ctx, sourceType, sourceID)
	if err != nil {
		return 0, err
	}
	if len(ids) == 0 {
		return 0, nil
	}
	if s.bleve != nil {
		if err := s.bleve.DeleteChunks(ctx, ids...); err != nil {
			return 0, err
		}
	}
	if s.vector != nil {
		s.vector.Delete(ids...)
	}
	return len(ids), nil
}

// GetMetadataByIDs delegates the batched metadata fetch.
func (s *Store) GetMetadataByIDs(ctx context.Context, ids []int64) (map[int64]Chunk, error) {
	return s.sqlite.GetMetadataByIDs(ctx, ids)
}

// IsIngested reports whether (sourceType, sourceID) already has chunks.
func (s *Store) IsIngested(ctx context.Context, sourceType, sourceID string) (bool, error) {
	return s.sqlite.IsIngested(ctx, sourceType, sourceID)
}

// Stats aggregates counts across the projections.
func (s *Store) Stats(ctx context.Context) (Stats, error) {
	stats, err := s.sqlite.Stats(ctx)
	if err != nil {
		return stats, err
	}
	if s.vector != nil {
		stats.VectorCount = s.vector.Len()
		stats.VectorBackend = true
	}
	return stats, nil
}

// Lexical returns the active lexical ranker.
func (s *Store) Lexical() LexicalRanker {
	if s.bleve != nil {
		return s.bleve
	}
	return s.sqlite
}

// Vector returns the vector ranker, or nil when running lexical-only.
func (s *Store) Vector() VectorRanker {
	if s.vector == nil {
		return nil
	}
	return s.vector
}

// VectorAvailable reports whether the vector projection is active.
func (s *Store) VectorAvailable() bool {
	return s.vector != nil
}

// Posts returns the post-tracking surface (same database).
func (s *Store) Posts() *SQLiteStore {
	return s.sqlite
}

// Flush persists the vector snapshot and checkpoints the WAL.
func (s *Store) Flush() error {
	var errs []error
	if s.vector != nil && s.vectorPath != "" {
		if err := s.vector.Save(s.vectorPath); err != nil {
			errs = append(errs, err)
		}
	}
	if err := s.sqlite.Checkpoint(); err != nil {
		errs = append(errs, err)
	}
	return errors.Join(errs...)
}

// Close flushes and closes every backend.
func (s *Store) Close() error {
	var errs []error
	if err := s.Flush(); err != nil {
		errs = append(errs, err)
	}
	if s.vector != nil {
		errs = append(errs, s.vector.Close())
	}
	if s.bleve != nil {
		errs = append(errs, s.bleve.Close())
	}
	errs = append(errs, s.sqlite.Close())
	return errors.Join(errs...)
}
