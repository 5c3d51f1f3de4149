package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"regexp"
	"strings"
	"time"

	_ "modernc.org/sqlite"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// SQLiteStore holds the metadata table, the FTS5 lexical projection, and
// the posts table in one database file.
type SQLiteStore struct {
	db      *sql.DB
	path    string
	ftsOwns bool // FTS5 is the active lexical backend
}

// OpenSQLite opens (or creates) the database at path. When ftsLexical is
// true the FTS5 projection is maintained on the write path; a bleve-backed
// store passes false and indexes lexically outside SQLite.
func OpenSQLite(path string, ftsLexical bool) (*SQLiteStore, error) {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, "create data directory", err)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, "open database", err)
	}

	// modernc.org/sqlite needs pragmas applied on the live connection.
	pragmas := []string{
		"PRAGMA journal_mode = WAL",
		"PRAGMA busy_timeout = 5000",
		"PRAGMA synchronous = NORMAL",
		"PRAGMA cache_size = -65536",
		"PRAGMA temp_store = MEMORY",
		"PRAGMA foreign_keys = ON",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			_ = db.Close()
			return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, fmt.Sprintf("apply %s", pragma), err)
		}
	}

	s := &SQLiteStore{db: db, path: path, ftsOwns: ftsLexical}
	if err := s.initSchema(); err != nil {
		_ = db.Close()
		return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, "initialize schema", err)
	}
	return s, nil
}

func (s *SQLiteStore) initSchema() error {
	schema := `
	CREATE TABLE IF NOT EXISTS schema_version (
		version INTEGER PRIMARY KEY
	);

	-- Chunk metadata. The rowid (id) is the surrogate key shared with the
	-- lexical and vector projections.
	CREATE TABLE IF NOT EXISTS chunks (
		id INTEGER PRIMARY KEY,
		source_type TEXT NOT NULL,
		source_id TEXT NOT NULL,
		chunk_type TEXT NOT NULL,
		content TEXT NOT NULL,
		metadata TEXT NOT NULL DEFAULT '{}',
		created_at INTEGER NOT NULL
	);

	CREATE INDEX IF NOT EXISTS idx_chunks_source
		ON chunks(source_type, source_id);

	-- Lexical projection. Row ids mirror chunks.id; rows are written in the
	-- same transaction as their metadata row, never by triggers.
	CREATE VIRTUAL TABLE IF NOT EXISTS chunks_fts USING fts5(
		content,
		tokenize='unicode61'
	);

	-- Drafted posts produced by the compose pipeline.
	CREATE TABLE IF NOT EXISTS posts (
		id INTEGER PRIMARY KEY,
		content TEXT NOT NULL,
		status TEXT NOT NULL DEFAULT 'draft',
		source_ref TEXT NOT NULL DEFAULT '',
		published_id TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		posted_at INTEGER
	);

	INSERT OR IGNORE INTO schema_version (version) VALUES (1);
	`
	_, err := s.db.Exec(schema)
	return err
}

// SaveChunk writes a chunk's metadata row and, when FTS5 is the active
// lexical backend, its lexical row in one transaction. Returns the new
// chunk id.
func (s *SQLiteStore) SaveChunk(ctx context.Context, draft ChunkDraft) (int64, error) {
	metaJSON, err := json.Marshal(orEmpty(draft.Metadata))
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "encode chunk metadata", err)
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	res, err := tx.ExecContext(ctx,
		`INSERT INTO chunks (source_type, source_id, chunk_type, content, metadata, created_at)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		draft.SourceType, draft.SourceID, draft.ChunkType, draft.Content,
		string(metaJSON), time.Now().Unix())
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "insert chunk", err)
	}
	id, err := res.LastInsertId()
	if err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "read chunk id", err)
	}

	if s.ftsOwns {
		if _, err := tx.ExecContext(ctx,
			`INSERT INTO chunks_fts (rowid, content) VALUES (?, ?)`,
			id, draft.Content); err != nil {
			return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "insert lexical row", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return 0, pmerrors.New(pmerrors.ErrCodeStoreWrite, "commit chunk", err)
	}
	return id, nil
}

// DeleteChunk removes one chunk's metadata and lexical rows. Used as the
// compensating action when a post-commit projection write fails.
func (s *SQLiteStore) DeleteChunk(ctx context.Context, id int64) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return pmerrors.New(pmerrors.ErrCodeStoreWrite, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM chunks WHERE id = ?`, id); err != nil {
		return pmerrors.New(pmerrors.ErrCodeStoreWrite, "delete chunk", err)
	}
	if s.ftsOwns {
		if _, err := tx.ExecContext(ctx, `DELETE FROM chunks_fts WHERE rowid = ?`, id); err != nil {
			return pmerrors.New(pmerrors.ErrCodeStoreWrite, "delete lexical row", err)
		}
	}
	return tx.Commit()
}

// DeleteSource removes every chunk of (sourceType, sourceID) from the
// metadata table and the FTS5 projection, returning the removed ids so the
// caller can drop the matching vectors.
func (s *SQLiteStore) DeleteSource(ctx context.Context, sourceType, sourceID string) ([]int64, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT id FROM chunks WHERE source_type = ? AND source_id = ?`,
		sourceType, sourceID)
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "list source chunks", err)
	}
	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			_ = rows.Close()
			return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "scan chunk id", err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		_ = rows.Close()
		return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "iterate source chunks", err)
	}
	_ = rows.Close()

	if len(ids) == 0 {
		return nil, nil
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "begin transaction", err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx,
		`DELETE FROM chunks WHERE source_type = ? AND source_id = ?`,
		sourceType, sourceID); err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "delete source chunks", err)
	}
	if s.ftsOwns {
		for _, id := range ids {
			if _, err := tx.ExecContext(ctx,
				`DELETE FROM chunks_fts WHERE rowid = ?`, id); err != nil {
				return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "delete lexical rows", err)
			}
		}
	}
	if err := tx.Commit(); err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreWrite, "commit delete", err)
	}
	return ids, nil
}

// GetMetadataByIDs fetches chunks for a set of ids in one query. Unknown
// ids are simply absent from the result map.
func (s *SQLiteStore) GetMetadataByIDs(ctx context.Context, ids []int64) (map[int64]Chunk, error) {
	result := make(map[int64]Chunk, len(ids))
	if len(ids) == 0 {
		return result, nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?,", len(ids)), ",")
	args := make([]any, len(ids))
	for i, id := range ids {
		args[i] = id
	}

	rows, err := s.db.QueryContext(ctx,
		`SELECT id, source_type, source_id, chunk_type, content, metadata, created_at
		 FROM chunks WHERE id IN (`+placeholders+`)`, args...)
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "fetch chunk metadata", err)
	}
	defer rows.Close()

	for rows.Next() {
		var c Chunk
		var metaJSON string
		var createdAt int64
		if err := rows.Scan(&c.ID, &c.SourceType, &c.SourceID, &c.ChunkType,
			&c.Content, &metaJSON, &createdAt); err != nil {
			return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "scan chunk", err)
		}
		c.CreatedAt = time.Unix(createdAt, 0).UTC()
		if err := json.Unmarshal([]byte(metaJSON), &c.Metadata); err != nil {
			slog.Warn("chunk metadata is not valid JSON, ignoring",
				"chunk_id", c.ID, "error", err)
			c.Metadata = map[string]string{}
		}
		result[c.ID] = c
	}
	return result, rows.Err()
}

// IsIngested reports whether any chunk exists for (sourceType, sourceID).
func (s *SQLiteStore) IsIngested(ctx context.Context, sourceType, sourceID string) (bool, error) {
	var one int
	err := s.db.QueryRowContext(ctx,
		`SELECT 1 FROM chunks WHERE source_type = ? AND source_id = ? LIMIT 1`,
		sourceType, sourceID).Scan(&one)
	if err == sql.ErrNoRows {
		return false, nil
	}
	if err != nil {
		return false, pmerrors.New(pmerrors.ErrCodeSearchFailed, "check ingestion state", err)
	}
	return true, nil
}

// Stats returns chunk counts grouped by source type.
func (s *SQLiteStore) Stats(ctx context.Context) (Stats, error) {
	stats := Stats{BySourceType: make(map[string]int64)}

	rows, err := s.db.QueryContext(ctx,
		`SELECT source_type, COUNT(*) FROM chunks GROUP BY source_type`)
	if err != nil {
		return stats, pmerrors.New(pmerrors.ErrCodeSearchFailed, "count chunks", err)
	}
	defer rows.Close()

	for rows.Next() {
		var sourceType string
		var count int64
		if err := rows.Scan(&sourceType, &count); err != nil {
			return stats, pmerrors.New(pmerrors.ErrCodeSearchFailed, "scan counts", err)
		}
		stats.BySourceType[sourceType] = count
		stats.TotalChunks += count
	}
	return stats, rows.Err()
}

// ftsTermPattern extracts plain word tokens from a query; everything else
// (FTS5 operators, quotes, punctuation) is dropped before matching.
var ftsTermPattern = regexp.MustCompile(`[\pL\pN]+`)

// SearchLexical runs a BM25 query against the FTS5 projection. Raw scores
// come straight from bm25(): negative, smaller = better (LowerBetter).
func (s *SQLiteStore) SearchLexical(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	results := make(map[int64]float64)

	terms := ftsTermPattern.FindAllString(query, -1)
	if len(terms) == 0 {
		return results, nil
	}
	// Quote each term so reserved FTS5 syntax never reaches the parser.
	for i, term := range terms {
		terms[i] = `"` + strings.ReplaceAll(term, `"`, `""`) + `"`
	}
	match := strings.Join(terms, " OR ")

	rows, err := s.db.QueryContext(ctx,
		`SELECT rowid, bm25(chunks_fts) AS score
		 FROM chunks_fts
		 WHERE chunks_fts MATCH ?
		 ORDER BY score
		 LIMIT ?`, match, limit)
	if err != nil {
		if strings.Contains(err.Error(), "fts5") || strings.Contains(err.Error(), "syntax error") {
			slog.Warn("lexical query rejected by FTS5, returning no matches",
				"query", query, "error", err)
			return results, nil
		}
		return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "lexical search", err)
	}
	defer rows.Close()

	for rows.Next() {
		var id int64
		var score float64
		if err := rows.Scan(&id, &score); err != nil {
			return nil, pmerrors.New(pmerrors.ErrCodeSearchFailed, "scan lexical result", err)
		}
		results[id] = score
	}
	return results, rows.Err()
}

// ScoreOrder reports the bm25() convention.
func (s *SQLiteStore) ScoreOrder() ScoreOrder {
	return LowerBetter
}

// Checkpoint flushes the WAL into the main database file.
func (s *SQLiteStore) Checkpoint() error {
	_, err := s.db.Exec("PRAGMA wal_checkpoint(TRUNCATE)")
	return err
}

// Path returns the database file path.
func (s *SQLiteStore) Path() string {
	return s.path
}

// Close checkpoints and closes the database.
func (s *SQLiteStore) Close() error {
	if err := s.Checkpoint(); err != nil {
		slog.Warn("wal checkpoint on close failed", "error", err)
	}
	return s.db.Close()
}

func orEmpty(m map[string]string) map[string]string {
	if m == nil {
		return map[string]string{}
	}
	return m
}

var _ LexicalRanker = (*SQLiteStore)(nil)
