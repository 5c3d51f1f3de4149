package search

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/postmill/postmill/internal/store"
)

func TestFuse_WeightedCombination(t *testing.T) {
	// Given a chunk with known normalized scores: three lexical candidates
	// put chunk 1 at norm 0.8, and three vector candidates put it at 0.4
	lexical := map[int64]float64{
		1: -2.6, // (max - s) / (max - min) = (-1 - -2.6) / 2 = 0.8
		2: -3.0,
		3: -1.0,
	}
	vector := map[int64]float64{
		1: 1.2, // sim 0.4 -> (0.4 - 0.0) / (1.0 - 0.0) = 0.4
		2: 0.0, // sim 1.0 -> 1.0
		3: 2.0, // sim 0.0 -> 0.0
	}

	// When fusing with keyword_weight=0.7, semantic_weight=0.3
	results := Fuse(lexical, vector, store.LowerBetter, 0.7, 0.3, 10)

	// Then chunk 1's fused score is 0.7*0.8 + 0.3*0.4 = 0.68
	var found *RankedResult
	for i := range results {
		if results[i].ChunkID == 1 {
			found = &results[i]
		}
	}
	require.NotNil(t, found)
	assert.InDelta(t, 0.8, found.LexicalNorm, 1e-9)
	assert.InDelta(t, 0.4, found.VectorNorm, 1e-9)
	assert.InDelta(t, 0.68, found.FusedScore, 1e-9)
}

func TestFuse_UnionWithMissingDimensionZero(t *testing.T) {
	lexical := map[int64]float64{1: -2.0, 2: -1.0}
	vector := map[int64]float64{3: 0.5}

	results := Fuse(lexical, vector, store.LowerBetter, 0.5, 0.5, 10)
	require.Len(t, results, 3, "candidate set is the union of both rankers")

	byID := indexByID(results)
	assert.Zero(t, byID[1].VectorNorm, "lexical-only candidate scores 0 on the vector dimension")
	assert.Zero(t, byID[3].LexicalNorm, "vector-only candidate scores 0 on the lexical dimension")
	assert.InDelta(t, 1.0, byID[3].VectorNorm, 1e-9, "singleton vector candidate normalizes to 1.0")
}

func TestFuse_AllEqualScoresNormalizeToOne(t *testing.T) {
	lexical := map[int64]float64{7: -1.5, 8: -1.5, 9: -1.5}

	results := Fuse(lexical, nil, store.LowerBetter, 1.0, 0.0, 10)
	require.Len(t, results, 3)
	for _, r := range results {
		assert.InDelta(t, 1.0, r.LexicalNorm, 1e-9)
		assert.InDelta(t, 1.0, r.FusedScore, 1e-9)
	}

	// Double tie: deterministic ascending id order
	assert.Equal(t, int64(7), results[0].ChunkID)
	assert.Equal(t, int64(8), results[1].ChunkID)
	assert.Equal(t, int64(9), results[2].ChunkID)
}

func TestFuse_Monotonicity(t *testing.T) {
	// A has a better raw lexical score than B (FTS5: more negative wins),
	// identical vector scores
	lexical := map[int64]float64{1: -5.0, 2: -2.0, 3: -1.0}
	vector := map[int64]float64{1: 1.0, 2: 1.0}

	for _, weights := range [][2]float64{{0.5, 0.5}, {1, 0}, {0, 1}, {0.9, 0.3}} {
		results := Fuse(lexical, vector, store.LowerBetter, weights[0], weights[1], 10)
		byID := indexByID(results)
		assert.GreaterOrEqual(t, byID[1].FusedScore, byID[2].FusedScore,
			"weights %v", weights)
	}
}

func TestFuse_ScoreBounds(t *testing.T) {
	lexical := map[int64]float64{1: -9.3, 2: -0.01, 3: -4.4, 4: -2.2}
	vector := map[int64]float64{2: 0.03, 3: 1.97, 5: 0.8}

	results := Fuse(lexical, vector, store.LowerBetter, 0.5, 0.5, 10)
	var sawLexOne, sawLexZero bool
	for _, r := range results {
		assert.GreaterOrEqual(t, r.LexicalNorm, 0.0)
		assert.LessOrEqual(t, r.LexicalNorm, 1.0)
		assert.GreaterOrEqual(t, r.VectorNorm, 0.0)
		assert.LessOrEqual(t, r.VectorNorm, 1.0)
		if r.LexicalNorm == 1.0 {
			sawLexOne = true
		}
		if r.ChunkID == 2 && r.LexicalNorm == 0.0 {
			sawLexZero = true
		}
	}
	assert.True(t, sawLexOne, "best lexical match maps to exactly 1.0")
	assert.True(t, sawLexZero, "worst lexical match maps to exactly 0.0")
}

func TestFuse_HigherBetterBackend(t *testing.T) {
	// Bleve-style positive scores: larger wins
	lexical := map[int64]float64{1: 4.0, 2: 1.0, 3: 2.5}

	results := Fuse(lexical, nil, store.HigherBetter, 1.0, 0.0, 10)
	byID := indexByID(results)
	assert.InDelta(t, 1.0, byID[1].LexicalNorm, 1e-9)
	assert.InDelta(t, 0.0, byID[2].LexicalNorm, 1e-9)
	assert.InDelta(t, 0.5, byID[3].LexicalNorm, 1e-9)
}

func TestFuse_TruncatesToTopK(t *testing.T) {
	lexical := map[int64]float64{1: -5, 2: -4, 3: -3, 4: -2, 5: -1}

	results := Fuse(lexical, nil, store.LowerBetter, 1.0, 0.0, 2)
	require.Len(t, results, 2)
	assert.Equal(t, int64(1), results[0].ChunkID, "best match survives truncation")
}

func TestFuse_EmptyInputs(t *testing.T) {
	assert.Empty(t, Fuse(nil, nil, store.LowerBetter, 0.5, 0.5, 10))
	assert.Empty(t, Fuse(map[int64]float64{}, map[int64]float64{}, store.LowerBetter, 0.5, 0.5, 10))
}

func indexByID(results []RankedResult) map[int64]RankedResult {
	m := make(map[int64]RankedResult, len(results))
	for _, r := range results {
		m[r.ChunkID] = r
	}
	return m
}
