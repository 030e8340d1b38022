package search

import (
	"math"
	"sort"
)

// fuse z-normalizes each non-degraded source's scores across the union
// of every id any source returned (an id a source didn't return scores
// zero for that source, per spec.md §4.12), applies the per-source
// weight, sums, and returns the top k by descending score with ties
// broken by the lexicographically smaller id.
func fuse(results []AdapterResult, weightOf func(source string) float64, k int) ([]Hit, []string) {
	union := make(map[string]struct{})
	var degraded []string
	for _, r := range results {
		if r.Degraded {
			degraded = append(degraded, r.Source)
			continue
		}
		for _, h := range r.Hits {
			union[h.ID] = struct{}{}
		}
	}
	ids := make([]string, 0, len(union))
	for id := range union {
		ids = append(ids, id)
	}
	sort.Strings(ids)

	fused := make(map[string]float64, len(ids))
	metadata := make(map[string]map[string]any, len(ids))

	for _, r := range results {
		if r.Degraded {
			continue
		}
		raw := make(map[string]float64, len(r.Hits))
		for _, h := range r.Hits {
			raw[h.ID] = h.Score
			if _, ok := metadata[h.ID]; !ok {
				metadata[h.ID] = h.Metadata
			}
		}

		vec := make([]float64, len(ids))
		for i, id := range ids {
			vec[i] = raw[id] // zero for ids this source never returned
		}
		z := zNormalize(vec)

		w := weightOf(r.Source)
		for i, id := range ids {
			fused[id] += w * z[i]
		}
	}

	hits := make([]Hit, 0, len(ids))
	for _, id := range ids {
		hits = append(hits, Hit{ID: id, Score: fused[id], Metadata: metadata[id]})
	}
	sort.Slice(hits, func(i, j int) bool {
		if hits[i].Score != hits[j].Score {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].ID < hits[j].ID
	})
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return hits, degraded
}

func zNormalize(v []float64) []float64 {
	n := float64(len(v))
	if n == 0 {
		return v
	}
	var mean float64
	for _, x := range v {
		mean += x
	}
	mean /= n

	var variance float64
	for _, x := range v {
		d := x - mean
		variance += d * d
	}
	variance /= n
	std := math.Sqrt(variance)

	out := make([]float64, len(v))
	if std == 0 {
		return out // every entry identical (often all-zero): contributes nothing
	}
	for i, x := range v {
		out[i] = (x - mean) / std
	}
	return out
}
