package vectorstore

import (
	"math"
	"math/rand"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
)

// HNSWConfig parameterizes the hierarchical navigable small-world backend
// (spec.md §4.2): M bounds links per node per layer, EfConstruction bounds
// the build-time candidate pool, EfSearch the query-time one.
type HNSWConfig struct {
	M              int
	EfConstruction int
	EfSearch       int
}

// DefaultHNSWConfig returns reasonable defaults for embeddings in the
// hundreds-to-low-thousands of dimensions, matching the values the pack's
// own HNSW reference implementation (nornicdb's index package) documents.
func DefaultHNSWConfig() HNSWConfig {
	return HNSWConfig{M: 16, EfConstruction: 200, EfSearch: 64}
}

type hnswNode struct {
	id        VectorID
	vector    []float32
	level     int
	neighbors [][]VectorID // neighbors[level] = connected ids at that layer
	tombstone bool
}

// hnswBackend is a layered graph with probabilistically assigned node
// levels, rebuilt from the teacher's dropped
// internal/memory/sublinear_retriever_*.go snapshot (HNSWGraph/HNSWNode)
// and generalized to the spec's diversity-aware neighbor-selection
// heuristic and tombstone deletes (spec.md §4.2).
type hnswBackend struct {
	mu             sync.RWMutex
	cfg            HNSWConfig
	ml             float64 // 1/ln(M), the level-generation factor
	nodes          map[VectorID]*hnswNode
	entryPoint     VectorID
	maxLevel       int
	liveCount      int
	rng            *rand.Rand
}

func newHNSWBackend(cfg HNSWConfig) *hnswBackend {
	if cfg.M < 2 {
		cfg.M = 2
	}
	if cfg.EfConstruction < cfg.M {
		cfg.EfConstruction = cfg.M
	}
	if cfg.EfSearch < cfg.M {
		cfg.EfSearch = cfg.M
	}
	return &hnswBackend{
		cfg:   cfg,
		ml:    1.0 / math.Log(float64(cfg.M)),
		nodes: make(map[VectorID]*hnswNode),
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

func (h *hnswBackend) Count() int {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.liveCount
}

func (h *hnswBackend) randomLevel() int {
	r := h.rng.Float64()
	if r <= 0 {
		r = 1e-12
	}
	return int(math.Floor(-math.Log(r) * h.ml))
}

func (h *hnswBackend) distance(a, b []float32) float32 {
	return vectormath.EuclideanDistance(a, b)
}

func (h *hnswBackend) Add(id VectorID, vector []float32) {
	h.mu.Lock()
	defer h.mu.Unlock()

	if existing, ok := h.nodes[id]; ok {
		existing.vector = vector
		if existing.tombstone {
			existing.tombstone = false
			h.liveCount++
		}
		return
	}

	level := h.randomLevel()
	node := &hnswNode{id: id, vector: vector, level: level, neighbors: make([][]VectorID, level+1)}

	if len(h.nodes) == 0 {
		h.nodes[id] = node
		h.entryPoint = id
		h.maxLevel = level
		h.liveCount++
		return
	}
	h.nodes[id] = node
	h.liveCount++

	entry := h.entryPoint
	for l := h.maxLevel; l > level; l-- {
		cands := h.searchLayer(vector, entry, 1, l)
		if len(cands) > 0 {
			entry = cands[0]
		}
	}

	for l := min(level, h.maxLevel); l >= 0; l-- {
		cands := h.searchLayer(vector, entry, h.cfg.EfConstruction, l)
		m := h.cfg.M
		if l == 0 {
			m = h.cfg.M * 2
		}
		selected := h.selectNeighbors(vector, cands, m, l)
		node.neighbors[l] = selected

		for _, nbrID := range selected {
			nbr := h.nodes[nbrID]
			if nbr == nil || l >= len(nbr.neighbors) {
				continue
			}
			nbr.neighbors[l] = append(nbr.neighbors[l], id)
			maxConn := h.cfg.M
			if l == 0 {
				maxConn = h.cfg.M * 2
			}
			if len(nbr.neighbors[l]) > maxConn {
				nbr.neighbors[l] = h.selectNeighbors(nbr.vector, nbr.neighbors[l], maxConn, l)
			}
		}
		if len(cands) > 0 {
			entry = cands[0]
		}
	}

	if level > h.maxLevel {
		h.entryPoint = id
		h.maxLevel = level
	}
}

// selectNeighbors prunes candidates to at most m using the diversity-aware
// heuristic from spec.md §4.2: keep a candidate only if it is closer to the
// base vector than to any neighbor already selected, which avoids packing
// the neighbor list with near-duplicates of the same direction.
func (h *hnswBackend) selectNeighbors(base []float32, candidateIDs []VectorID, m int, level int) []VectorID {
	type scored struct {
		id   VectorID
		dist float32
	}
	pool := make([]scored, 0, len(candidateIDs))
	for _, id := range candidateIDs {
		n := h.nodes[id]
		if n == nil || n.tombstone {
			continue
		}
		pool = append(pool, scored{id: id, dist: h.distance(base, n.vector)})
	}
	for i := 1; i < len(pool); i++ {
		j := i
		for j > 0 && pool[j].dist < pool[j-1].dist {
			pool[j], pool[j-1] = pool[j-1], pool[j]
			j--
		}
	}

	selected := make([]VectorID, 0, m)
	for _, cand := range pool {
		if len(selected) >= m {
			break
		}
		candNode := h.nodes[cand.id]
		diverse := true
		for _, keptID := range selected {
			keptNode := h.nodes[keptID]
			if h.distance(candNode.vector, keptNode.vector) < cand.dist {
				diverse = false
				break
			}
		}
		if diverse {
			selected = append(selected, cand.id)
		}
	}
	// Backfill with the closest remaining candidates if the diversity
	// filter left room to spare, so well-separated graphs don't end up
	// under-connected.
	if len(selected) < m {
		have := make(map[VectorID]struct{}, len(selected))
		for _, id := range selected {
			have[id] = struct{}{}
		}
		for _, cand := range pool {
			if len(selected) >= m {
				break
			}
			if _, ok := have[cand.id]; ok {
				continue
			}
			selected = append(selected, cand.id)
		}
	}
	return selected
}

// searchLayer performs a greedy best-first search within a single layer,
// returning up to ef candidate ids ordered nearest-first.
func (h *hnswBackend) searchLayer(query []float32, entry VectorID, ef int, level int) []VectorID {
	entryNode := h.nodes[entry]
	if entryNode == nil {
		return nil
	}
	visited := map[VectorID]struct{}{entry: {}}
	type item struct {
		id   VectorID
		dist float32
	}
	candidates := []item{{entry, h.distance(query, entryNode.vector)}}
	result := []item{}
	if !entryNode.tombstone {
		result = append(result, candidates[0])
	}

	for len(candidates) > 0 {
		// pop closest candidate
		ci := 0
		for i := 1; i < len(candidates); i++ {
			if candidates[i].dist < candidates[ci].dist {
				ci = i
			}
		}
		cur := candidates[ci]
		candidates = append(candidates[:ci], candidates[ci+1:]...)

		if len(result) >= ef {
			worst := result[0].dist
			for _, r := range result {
				if r.dist > worst {
					worst = r.dist
				}
			}
			if cur.dist > worst {
				break
			}
		}

		curNode := h.nodes[cur.id]
		if curNode == nil || level >= len(curNode.neighbors) {
			continue
		}
		for _, nbrID := range curNode.neighbors[level] {
			if _, ok := visited[nbrID]; ok {
				continue
			}
			visited[nbrID] = struct{}{}
			nbrNode := h.nodes[nbrID]
			if nbrNode == nil {
				continue
			}
			d := h.distance(query, nbrNode.vector)
			candidates = append(candidates, item{nbrID, d})
			if !nbrNode.tombstone {
				result = append(result, item{nbrID, d})
			}
		}
	}

	for i := 1; i < len(result); i++ {
		j := i
		for j > 0 && result[j].dist < result[j-1].dist {
			result[j], result[j-1] = result[j-1], result[j]
			j--
		}
	}
	if len(result) > ef {
		result = result[:ef]
	}
	out := make([]VectorID, len(result))
	for i, r := range result {
		out[i] = r.id
	}
	return out
}

func (h *hnswBackend) Remove(id VectorID) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if n, ok := h.nodes[id]; ok && !n.tombstone {
		n.tombstone = true
		h.liveCount--
	}
}

// Search expands the bottom-layer candidate pool to EfSearch, per spec.md
// §4.2, then converts Euclidean distance into the caller's requested
// metric's raw score by re-scoring the surviving candidates directly
// against their vectors (HNSW is built on Euclidean proximity but must
// still serve cosine/dot/manhattan queries faithfully).
func (h *hnswBackend) Search(query []float32, k int, metric vectormath.Metric, lookup func(VectorID) ([]float32, bool)) []candidate {
	h.mu.RLock()
	defer h.mu.RUnlock()

	if len(h.nodes) == 0 || k <= 0 {
		return nil
	}

	entry := h.entryPoint
	for l := h.maxLevel; l > 0; l-- {
		cands := h.searchLayer(query, entry, 1, l)
		if len(cands) > 0 {
			entry = cands[0]
		}
	}
	ef := h.cfg.EfSearch
	if ef < k {
		ef = k
	}
	ids := h.searchLayer(query, entry, ef, 0)

	out := make([]candidate, 0, len(ids))
	for _, id := range ids {
		n := h.nodes[id]
		if n == nil || n.tombstone {
			continue
		}
		vec := n.vector
		if lookup != nil {
			if v, ok := lookup(id); ok {
				vec = v
			}
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
