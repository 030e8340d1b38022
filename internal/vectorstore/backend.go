package vectorstore

import "github.com/ashgrove-systems/godagent-memory/internal/vectormath"

// candidate is a backend-internal search result: an id plus its raw
// (pre-normalization) metric score against the query.
type candidate struct {
	id  VectorID
	raw float32
}

// Backend is the pluggable kNN search strategy a Store delegates to. A
// Backend indexes ids only; the Store is the sole owner of vector bytes, so
// every Backend method that needs a vector's contents takes it as an
// argument rather than storing a copy.
type Backend interface {
	// Add indexes id with the given (already-validated) vector.
	Add(id VectorID, vector []float32)
	// Remove tombstones id so it no longer appears in search results.
	Remove(id VectorID)
	// Search returns up to k candidates ordered by descending raw score
	// for the given metric. lookup resolves an id to its current vector,
	// used by backends (like the flat scan) that don't cache vectors
	// themselves.
	Search(query []float32, k int, metric vectormath.Metric, lookup func(VectorID) ([]float32, bool)) []candidate
	// Count returns the number of live (non-tombstoned) ids.
	Count() int
}

// flatBackend does a linear scan over every live id. It is correct and
// simple, and is the default backend — HNSW is opt-in for larger stores
// (spec.md §4.1).
type flatBackend struct {
	ids map[VectorID]struct{}
}

func newFlatBackend() *flatBackend {
	return &flatBackend{ids: make(map[VectorID]struct{})}
}

func (f *flatBackend) Add(id VectorID, _ []float32) {
	f.ids[id] = struct{}{}
}

func (f *flatBackend) Remove(id VectorID) {
	delete(f.ids, id)
}

func (f *flatBackend) Count() int { return len(f.ids) }

func (f *flatBackend) Search(query []float32, k int, metric vectormath.Metric, lookup func(VectorID) ([]float32, bool)) []candidate {
	if k <= 0 || len(f.ids) == 0 {
		return nil
	}
	out := make([]candidate, 0, len(f.ids))
	for id := range f.ids {
		vec, ok := lookup(id)
		if !ok {
			continue
		}
		raw := vectormath.Score(metric, query, vec, true)
		out = append(out, candidate{id: id, raw: raw})
	}
	higherBetter := vectormath.HigherIsBetter(metric)
	sortCandidates(out, higherBetter)
	if len(out) > k {
		out = out[:k]
	}
	return out
}

// sortCandidates orders candidates best-first in place using a simple
// insertion sort — search result sets are small (k and the live set are
// both typically far under 10^4 for the flat backend's intended scale).
func sortCandidates(c []candidate, higherBetter bool) {
	better := func(a, b float32) bool {
		if higherBetter {
			return a > b
		}
		return a < b
	}
	for i := 1; i < len(c); i++ {
		j := i
		for j > 0 && better(c[j].raw, c[j-1].raw) {
			c[j], c[j-1] = c[j-1], c[j]
			j--
		}
	}
}
