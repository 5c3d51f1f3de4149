package store

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"sync"

	"github.com/blevesearch/bleve/v2"
	"github.com/blevesearch/bleve/v2/analysis/analyzer/custom"
	"github.com/blevesearch/bleve/v2/analysis/lang/en"
	"github.com/blevesearch/bleve/v2/analysis/token/lowercase"
	"github.com/blevesearch/bleve/v2/analysis/tokenizer/unicode"
	"github.com/blevesearch/bleve/v2/mapping"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// proseAnalyzerName is the custom analyzer registered for chunk content.
const proseAnalyzerName = "prose"

// BleveIndex is the alternate lexical backend. Unlike FTS5 it lives outside
// the SQLite transaction, so the store compensates on write failure instead
// of rolling back. Raw scores are positive, larger = better.
type BleveIndex struct {
	mu     sync.RWMutex
	index  bleve.Index
	path   string
	closed bool
}

// bleveChunk is the indexed document shape.
type bleveChunk struct {
	Content string `json:"content"`
}

// NewBleveIndex opens or creates a bleve index at path. An empty path
// creates an in-memory index (tests).
func NewBleveIndex(path string) (*BleveIndex, error) {
	indexMapping, err := proseIndexMapping()
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, "build index mapping", err)
	}

	var idx bleve.Index
	if path == "" {
		idx, err = bleve.NewMemOnly(indexMapping)
	} else {
		idx, err = bleve.Open(path)
		if err == bleve.ErrorIndexPathDoesNotExist {
			idx, err = bleve.New(path, indexMapping)
		}
	}
	if err != nil {
		return nil, pmerrors.New(pmerrors.ErrCodeStoreOpen, "open lexical index", err)
	}

	return &BleveIndex{index: idx, path: path}, nil
}

// proseIndexMapping builds a mapping with unicode tokenization, lowercasing
// and English stop word removal.
func proseIndexMapping() (*mapping.IndexMappingImpl, error) {
	indexMapping := bleve.NewIndexMapping()
	err := indexMapping.AddCustomAnalyzer(proseAnalyzerName, map[string]interface{}{
		"type":      custom.Name,
		"tokenizer": unicode.Name,
		"token_filters": []string{
			lowercase.Name,
			en.StopName,
		},
	})
	if err != nil {
		return nil, fmt.Errorf("add prose analyzer: %w", err)
	}
	indexMapping.DefaultAnalyzer = proseAnalyzerName
	return indexMapping, nil
}

// IndexChunk adds one chunk's content under its id.
func (b *BleveIndex) IndexChunk(ctx context.Context, id int64, content string) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	if err := b.index.Index(strconv.FormatInt(id, 10), bleveChunk{Content: content}); err != nil {
		return pmerrors.New(pmerrors.ErrCodeStoreWrite, "index chunk content", err)
	}
	return nil
}

// DeleteChunks removes ids from the index.
func (b *BleveIndex) DeleteChunks(ctx context.Context, ids ...int64) error {
	b.mu.Lock()
	defer b.mu.Unlock()

	if b.closed {
		return fmt.Errorf("lexical index is closed")
	}
	batch := b.index.NewBatch()
	for _, id := range ids {
		batch.Delete(strconv.FormatInt(id, 10))
	}
	if err := b.index.Batch(batch); err != nil {
		return pmerrors.New(pmerrors.ErrCodeStoreWrite, "delete chunks from lexical index", err)
	}
	return nil
}

// SearchLexical runs a match query against chunk content. Raw scores are
// positive tf-idf/BM25 style, larger = better (HigherBetter).
func (b *BleveIndex) SearchLexical(ctx context.Context, query string, limit int) (map[int64]float64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()

	results := make(map[int64]float64)
	if b.closed {
		return nil, fmt.Errorf("lexical index is closed")
	}
	if strings.TrimSpace(query) == "" {
		return results, nil
	}

	matchQuery := bleve.NewMatchQuery(query)
	matchQuery.SetField("content")
	request := bleve.NewSearchRequest(matchQuery)
	request.Size = limit

	res, err := b.index.SearchInContext(ctx, request)
	if err != nil {
		// A query the analyzer cannot process yields no matches, not an
		// error for the caller.
		slog.Warn("lexical query rejected by bleve, returning no matches",
			"query", query, "error", err)
		return results, nil
	}

	for _, hit := range res.Hits {
		id, err := strconv.ParseInt(hit.ID, 10, 64)
		if err != nil {
			slog.Warn("non-numeric document id in lexical index", "doc_id", hit.ID)
			continue
		}
		results[id] = hit.Score
	}
	return results, nil
}

// ScoreOrder reports the bleve convention.
func (b *BleveIndex) ScoreOrder() ScoreOrder {
	return HigherBetter
}

// DocCount returns the number of indexed chunks.
func (b *BleveIndex) DocCount() (uint64, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	if b.closed {
		return 0, fmt.Errorf("lexical index is closed")
	}
	return b.index.DocCount()
}

// Close closes the underlying index.
func (b *BleveIndex) Close() error {
	b.mu.Lock()
	defer b.mu.Unlock()
	if b.closed {
		return nil
	}
	b.closed = true
	return b.index.Close()
}

var _ LexicalRanker = (*BleveIndex)(nil)
