package search

import (
	"context"
	"sort"

	"github.com/ashgrove-systems/godagent-memory/internal/graphstore"
	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
)

// GraphAdapter is the C6 hypergraph source: it walks the neighborhood of
// an anchor node and scores each neighbor by cosine similarity of its
// embedding to the query vector (spec.md §4.12, "Graph adapter (C6
// neighbor similarity)"). A query with no AnchorNode yields no hits
// rather than scanning the whole store.
type GraphAdapter struct {
	Store     *graphstore.Store
	HopRadius int
}

func (a *GraphAdapter) Name() string { return "graph" }

func (a *GraphAdapter) Search(ctx context.Context, q Query, k int) (AdapterResult, error) {
	if q.AnchorNode == "" || len(q.Vector) == 0 {
		return AdapterResult{}, nil
	}
	hop := a.HopRadius
	if hop <= 0 {
		hop = 2
	}
	neighbors, err := a.Store.Neighbors(graphstore.NodeID(q.AnchorNode), hop)
	if err != nil {
		return AdapterResult{}, err
	}

	hits := make([]Hit, 0, len(neighbors))
	for _, id := range neighbors {
		node, err := a.Store.GetNode(id)
		if err != nil {
			continue
		}
		raw := vectormath.CosineSimilarity(q.Vector, node.Embedding)
		score := vectormath.Normalize01(vectormath.Cosine, raw, true)
		importance, _ := a.Store.Importance(id)
		hits = append(hits, Hit{
			ID:    string(id),
			Score: float64(score),
			Metadata: map[string]any{
				"importance": importance,
			},
		})
	}

	sort.Slice(hits, func(i, j int) bool { return hits[i].Score > hits[j].Score })
	if k > 0 && len(hits) > k {
		hits = hits[:k]
	}
	return AdapterResult{Hits: hits}, nil
}
