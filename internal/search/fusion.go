package search

import (
	"sort"

	"github.com/postmill/postmill/internal/store"
)

// normalizeLexical min-max rescales raw lexical scores to [0, 1] so the
// best match maps to 1.0 and the worst to 0.0 regardless of the backend's
// raw convention. All-equal scores (including a singleton) map to 1.0.
func normalizeLexical(raw map[int64]float64, order store.ScoreOrder) map[int64]float64 {
	if len(raw) == 0 {
		return map[int64]float64{}
	}

	minScore, maxScore := rawBounds(raw)
	normalized := make(map[int64]float64, len(raw))
	if minScore == maxScore {
		for id := range raw {
			normalized[id] = 1.0
		}
		return normalized
	}

	span := maxScore - minScore
	for id, score := range raw {
		if order == store.LowerBetter {
			normalized[id] = (maxScore - score) / span
		} else {
			normalized[id] = (score - minScore) / span
		}
	}
	return normalized
}

// normalizeDistances converts cosine distances to similarities via
// 1 - distance/2, then min-max rescales to [0, 1]. All-equal distances map
// to 1.0.
func normalizeDistances(raw map[int64]float64) map[int64]float64 {
	if len(raw) == 0 {
		return map[int64]float64{}
	}

	similarities := make(map[int64]float64, len(raw))
	for id, dist := range raw {
		similarities[id] = 1 - dist/2
	}

	minSim, maxSim := rawBounds(similarities)
	normalized := make(map[int64]float64, len(similarities))
	if minSim == maxSim {
		for id := range similarities {
			normalized[id] = 1.0
		}
		return normalized
	}

	span := maxSim - minSim
	for id, sim := range similarities {
		normalized[id] = (sim - minSim) / span
	}
	return normalized
}

func rawBounds(m map[int64]float64) (minV, maxV float64) {
	first := true
	for _, v := range m {
		if first {
			minV, maxV = v, v
			first = false
			continue
		}
		if v < minV {
			minV = v
		}
		if v > maxV {
			maxV = v
		}
	}
	return minV, maxV
}

// Fuse combines the two rankings over the union of their candidates. A
// chunk present in only one ranking scores 0.0 on the missing dimension.
// Results are ordered by descending fused score, ties broken by ascending
// chunk id, and truncated to topK. Content and metadata are attached by the
// caller afterwards.
func Fuse(lexicalRaw, vectorRaw map[int64]float64, order store.ScoreOrder,
	keywordWeight, semanticWeight float64, topK int) []RankedResult {

	lexNorm := normalizeLexical(lexicalRaw, order)
	vecNorm := normalizeDistances(vectorRaw)

	seen := make(map[int64]bool, len(lexNorm)+len(vecNorm))
	results := make([]RankedResult, 0, len(lexNorm)+len(vecNorm))
	for id := range lexNorm {
		seen[id] = true
	}
	for id := range vecNorm {
		seen[id] = true
	}

	for id := range seen {
		r := RankedResult{
			ChunkID:     id,
			LexicalRaw:  lexicalRaw[id],
			LexicalNorm: lexNorm[id],
			VectorRaw:   vectorRaw[id],
			VectorNorm:  vecNorm[id],
		}
		r.FusedScore = keywordWeight*r.LexicalNorm + semanticWeight*r.VectorNorm
		results = append(results, r)
	}

	sort.Slice(results, func(i, j int) bool {
		if results[i].FusedScore != results[j].FusedScore {
			return results[i].FusedScore > results[j].FusedScore
		}
		return results[i].ChunkID < results[j].ChunkID
	})

	if topK > 0 && len(results) > topK {
		results = results[:topK]
	}
	return results
}
