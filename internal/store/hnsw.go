package store

import (
	"bufio"
	"context"
	"encoding/gob"
	"fmt"
	"log/slog"
	"math"
	"os"
	"path/filepath"
	"sync"

	"github.com/coder/hnsw"

	pmerrors "github.com/postmill/postmill/internal/errors"
)

// HNSWIndex is the vector projection: an HNSW graph keyed directly by the
// chunk rowid. A sidecar gob file tracks which keys are live, because
// deletions are lazy (the graph node stays, the key is dropped from the
// live set).
type HNSWIndex struct {
	mu     sync.RWMutex
	graph  *hnsw.Graph[uint64]
	config VectorIndexConfig
	live   map[int64]bool
	closed bool
}

// hnswSidecar is the persisted companion to the graph snapshot.
type hnswSidecar struct {
	Live   map[int64]bool
	Config VectorIndexConfig
}

// NewHNSWIndex creates an empty vector index with cosine distance.
func NewHNSWIndex(cfg VectorIndexConfig) *HNSWIndex {
	if cfg.M == 0 {
		cfg.M = 16
	}
	if cfg.EfSearch == 0 {
		cfg.EfSearch = 20
	}
	if cfg.Ml == 0 {
		cfg.Ml = 0.25
	}

	graph := hnsw.NewGraph[uint64]()
	graph.Distance = hnsw.CosineDistance
	graph.M = cfg.M
	graph.EfSearch = cfg.EfSearch
	graph.Ml = cfg.Ml

	return &HNSWIndex{
		graph:  graph,
		config: cfg,
		live:   make(map[int64]bool),
	}
}

// Add inserts one vector under the chunk id. The vector must match the
// configured dimension; zero vectors are validated but otherwise stored
// like any other.
func (x *HNSWIndex) Add(id int64, vector []float32) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}
	if len(vector) != x.config.Dimensions {
		return pmerrors.DimensionMismatch(x.config.Dimensions, len(vector))
	}

	// Cosine distance needs unit vectors.
	vec := make([]float32, len(vector))
	copy(vec, vector)
	normalizeInPlace(vec)

	// SQLite reuses freed rowids, so a forced re-ingest can hand us an id
	// whose lazily deleted node is still in the graph. The graph rejects
	// duplicate keys; drop the old node first.
	if _, ok := x.graph.Lookup(uint64(id)); ok {
		x.graph.Delete(uint64(id))
	}
	x.graph.Add(hnsw.MakeNode(uint64(id), vec))
	x.live[id] = true
	return nil
}

// Delete drops ids from the live set. Graph nodes are left behind (lazy
// deletion) and filtered out of search results.
func (x *HNSWIndex) Delete(ids ...int64) {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return
	}
	for _, id := range ids {
		delete(x.live, id)
	}
}

// Contains reports whether the id is live in the index.
func (x *HNSWIndex) Contains(id int64) bool {
	x.mu.RLock()
	defer x.mu.RUnlock()
	return !x.closed && x.live[id]
}

// Len returns the number of live vectors.
func (x *HNSWIndex) Len() int {
	x.mu.RLock()
	defer x.mu.RUnlock()
	if x.closed {
		return 0
	}
	return len(x.live)
}

// SearchVector returns raw cosine distances for the nearest live chunks,
// at most limit entries. An empty graph yields an empty map.
func (x *HNSWIndex) SearchVector(ctx context.Context, vector []float32, limit int) (map[int64]float64, error) {
	x.mu.RLock()
	defer x.mu.RUnlock()

	results := make(map[int64]float64)
	if x.closed || x.graph.Len() == 0 || limit <= 0 {
		return results, nil
	}
	if len(vector) != x.config.Dimensions {
		return nil, pmerrors.DimensionMismatch(x.config.Dimensions, len(vector))
	}

	query := make([]float32, len(vector))
	copy(query, vector)
	normalizeInPlace(query)

	// Over-fetch to compensate for lazily deleted nodes still in the graph.
	fetch := limit + (x.graph.Len() - len(x.live))
	nodes := x.graph.Search(query, fetch)

	for _, node := range nodes {
		id := int64(node.Key)
		if !x.live[id] {
			continue
		}
		results[id] = float64(x.graph.Distance(query, node.Value))
		if len(results) >= limit {
			break
		}
	}
	return results, nil
}

// Save writes the graph snapshot and sidecar atomically (temp file then
// rename), so a crash mid-save leaves the previous snapshot intact.
func (x *HNSWIndex) Save(path string) error {
	x.mu.RLock()
	defer x.mu.RUnlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("create index directory: %w", err)
	}

	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create index file: %w", err)
	}
	if err := x.graph.Export(file); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("export graph: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close index file: %w", err)
	}
	if err := os.Rename(tmpPath, path); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("rename index file: %w", err)
	}

	return x.saveSidecar(path + ".meta")
}

func (x *HNSWIndex) saveSidecar(path string) error {
	tmpPath := path + ".tmp"
	file, err := os.Create(tmpPath)
	if err != nil {
		return fmt.Errorf("create sidecar file: %w", err)
	}

	sidecar := hnswSidecar{Live: x.live, Config: x.config}
	if err := gob.NewEncoder(file).Encode(sidecar); err != nil {
		_ = file.Close()
		_ = os.Remove(tmpPath)
		return fmt.Errorf("encode sidecar: %w", err)
	}
	if err := file.Close(); err != nil {
		_ = os.Remove(tmpPath)
		return fmt.Errorf("close sidecar file: %w", err)
	}
	return os.Rename(tmpPath, path)
}

// Load restores a saved snapshot. A missing snapshot is not an error (fresh
// index); a corrupt one is reported as vector-index-unavailable so callers
// can degrade to lexical-only.
func (x *HNSWIndex) Load(path string) error {
	x.mu.Lock()
	defer x.mu.Unlock()

	if x.closed {
		return fmt.Errorf("vector index is closed")
	}

	if _, err := os.Stat(path); os.IsNotExist(err) {
		return nil
	}

	sidecarFile, err := os.Open(path + ".meta")
	if err != nil {
		return x.loadFailure("open sidecar", err)
	}
	var sidecar hnswSidecar
	decodeErr := gob.NewDecoder(sidecarFile).Decode(&sidecar)
	_ = sidecarFile.Close()
	if decodeErr != nil {
		return x.loadFailure("decode sidecar", decodeErr)
	}
	if sidecar.Config.Dimensions != x.config.Dimensions {
		return x.loadFailure("dimension check", pmerrors.DimensionMismatch(
			x.config.Dimensions, sidecar.Config.Dimensions))
	}

	file, err := os.Open(path)
	if err != nil {
		return x.loadFailure("open snapshot", err)
	}
	defer file.Close()

	// Import needs an io.ByteReader.
	if err := x.graph.Import(bufio.NewReader(file)); err != nil {
		return x.loadFailure("import graph", err)
	}

	x.live = sidecar.Live
	if x.live == nil {
		x.live = make(map[int64]bool)
	}
	slog.Info("vector index loaded", "path", path, "vectors", len(x.live))
	return nil
}

func (x *HNSWIndex) loadFailure(stage string, err error) error {
	return pmerrors.New(pmerrors.ErrCodeVectorIndex,
		fmt.Sprintf("vector index load failed at %s", stage),
		fmt.Errorf("%w: %w", pmerrors.ErrVectorIndexUnavailable, err))
}

// Close releases the graph.
func (x *HNSWIndex) Close() error {
	x.mu.Lock()
	defer x.mu.Unlock()
	if x.closed {
		return nil
	}
	x.closed = true
	x.graph = nil
	return nil
}

// normalizeInPlace scales a vector to unit length. The zero vector is left
// unchanged.
func normalizeInPlace(v []float32) {
	var sum float64
	for _, x := range v {
		sum += float64(x) * float64(x)
	}
	if sum == 0 {
		return
	}
	norm := float32(math.Sqrt(sum))
	for i := range v {
		v[i] /= norm
	}
}

var _ VectorRanker = (*HNSWIndex)(nil)
