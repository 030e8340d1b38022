package search

import (
	"context"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/gnn"
	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

// VectorAdapter is the C2 vector-store source, optionally GNN-enhancing
// the query embedding before search (spec.md §4.12).
type VectorAdapter struct {
	Store            *vectorstore.Store
	Metric           vectormath.Metric
	InputsNormalized bool

	Enhancer        *gnn.Network
	EnhanceGraph    func(vector []float32) *gnn.TrajectoryGraph // resolves a neighborhood for attention, nil disables
	EnhanceBreaker  *CircuitBreaker
	EnhanceTimeout  time.Duration
}

func (a *VectorAdapter) Name() string { return "vector" }

func (a *VectorAdapter) Search(ctx context.Context, q Query, k int) (AdapterResult, error) {
	vector := q.Vector
	if a.Enhancer != nil && a.EnhanceBreaker != nil && a.EnhanceBreaker.Allow() {
		if enhanced, ok := a.enhance(vector); ok {
			vector = enhanced
			a.EnhanceBreaker.OnSuccess()
		} else {
			a.EnhanceBreaker.OnFailure()
		}
	}

	raw, err := a.Store.Search(vector, k, vectorstore.SearchOptions{Metric: a.Metric})
	if err != nil {
		return AdapterResult{}, err
	}

	hits := make([]Hit, 0, len(raw))
	for _, h := range raw {
		score := vectormath.Normalize01(a.Metric, h.Score, a.InputsNormalized)
		hits = append(hits, Hit{ID: string(h.ID), Score: float64(score), Metadata: metadataToMap(h.Metadata)})
	}
	return AdapterResult{Hits: hits}, nil
}

// metadataToMap flattens a vectorstore.Metadata's typed fields into the
// caller-facing map[string]any shape AdapterResult hits use.
func metadataToMap(m vectorstore.Metadata) map[string]any {
	out := make(map[string]any, len(m.Fields))
	for k, v := range m.Fields {
		switch v.Kind {
		case vectorstore.KindString:
			out[k] = v.Str
		case vectorstore.KindNumber:
			out[k] = v.Num
		case vectorstore.KindBool:
			out[k] = v.Bool
		}
	}
	return out
}

// enhance runs the GNN forward pass on a background goroutine so a slow
// enhancement never blocks past EnhanceTimeout (default 50ms, spec.md
// §5): on timeout it returns ok=false and the caller falls back to the
// raw embedding.
func (a *VectorAdapter) enhance(vector []float32) ([]float32, bool) {
	timeout := a.EnhanceTimeout
	if timeout <= 0 {
		timeout = 50 * time.Millisecond
	}
	var graph *gnn.TrajectoryGraph
	if a.EnhanceGraph != nil {
		graph = a.EnhanceGraph(vector)
	}

	ch := make(chan []float32, 1)
	go func() {
		result := a.Enhancer.Enhance(vector, graph, false)
		ch <- result.Vector
	}()

	select {
	case v := <-ch:
		return v, true
	case <-time.After(timeout):
		return nil, false
	}
}
