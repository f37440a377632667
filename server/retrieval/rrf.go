// Package retrieval fuses semantic (vector) and lexical (full-text) search
// into a single ranked result list.
package retrieval

import (
	"sort"
)

// RRFDampingFactor is the k constant of Reciprocal Rank Fusion. k = 60 is a
// common default.
const RRFDampingFactor = 60

// FuseRanks merges two candidate id lists with Reciprocal Rank Fusion:
// RRF(d) = Σ 1 / (k + rank_i(d)) with 1-based ranks. Ids appearing in both
// lists sum both contributions. The returned order is descending by fused
// score; equal-scored ids keep their first-appearance order (semantic list
// first), which makes ties deterministic but not independently meaningful.
func FuseRanks(semantic, lexical []int32, k int) []int32 {
	if k <= 0 {
		k = RRFDampingFactor
	}

	scores := make(map[int32]float64)
	order := make([]int32, 0, len(semantic)+len(lexical))
	seen := make(map[int32]bool)

	for rank, id := range semantic {
		scores[id] += 1.0 / float64(k+rank+1)
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}
	for rank, id := range lexical {
		scores[id] += 1.0 / float64(k+rank+1)
		if !seen[id] {
			seen[id] = true
			order = append(order, id)
		}
	}

	sort.SliceStable(order, func(i, j int) bool {
		return scores[order[i]] > scores[order[j]]
	})
	return order
}
