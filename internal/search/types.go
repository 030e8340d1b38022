// Package search implements Unified Search / Quad-Fusion (C13): a
// parallel fan-out across four source adapters (vector, graph, memory,
// pattern), per-source z-normalization and weighted fusion, backpressure
// handling for slow/failed adapters, and a circuit breaker guarding GNN
// query enhancement. Grounded on the teacher's remem_loop.go RETRIEVE
// phase for the fan-out-then-merge shape, generalized from its
// agent/tier/breakthrough three-way merge into N typed adapters; the
// circuit breaker state machine is grounded on
// bd776c4a_semaj90-mau5law__cognitive-microservice.go's three-state
// ollamaCB, generalized from single-trial half-open to a
// successes-to-close counter per spec.md §4.12.
package search

import (
	"context"
	"time"
)

// Query is a unified search request. Exactly one of Vector/Text is
// expected to be populated by the caller; TaskType/Signature/Route/
// AnchorNode are per-adapter hints consulted by the memory, pattern, and
// graph adapters respectively.
type Query struct {
	Vector     []float32
	Text       string
	Route      string // canonical route, used to look up a learned C12 fusion weight
	AnchorNode string // seed node for the graph adapter's neighbor walk
	TaskType   string // memory (C11 pattern) adapter filter
	Signature  string // memory (C11 pattern) adapter filter
}

// Hit is one ranked result, normalized to [0,1] before fusion.
type Hit struct {
	ID       string
	Score    float64
	Metadata map[string]any
}

// AdapterResult is what each source adapter returns (spec.md §4.12).
type AdapterResult struct {
	Source    string
	Hits      []Hit
	LatencyMs int64
	Degraded  bool
}

// Result is the fused, capped search response.
type Result struct {
	Hits            []Hit
	Partial         bool
	DegradedSources []string
}

// Adapter is one Quad-Fusion source.
type Adapter interface {
	Name() string
	Search(ctx context.Context, q Query, k int) (AdapterResult, error)
}

// runAdapter wraps an Adapter call with a timeout and converts a
// cancellation/timeout/error into a degraded, empty result rather than
// failing the whole search (spec.md §4.12, "Backpressure").
func runAdapter(ctx context.Context, a Adapter, q Query, k int, timeout time.Duration) AdapterResult {
	start := time.Now()
	cctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	type outcome struct {
		res AdapterResult
		err error
	}
	ch := make(chan outcome, 1)
	go func() {
		res, err := a.Search(cctx, q, k)
		ch <- outcome{res: res, err: err}
	}()

	select {
	case o := <-ch:
		if o.err != nil {
			return AdapterResult{Source: a.Name(), Degraded: true, LatencyMs: time.Since(start).Milliseconds()}
		}
		o.res.Source = a.Name()
		o.res.LatencyMs = time.Since(start).Milliseconds()
		return o.res
	case <-cctx.Done():
		return AdapterResult{Source: a.Name(), Degraded: true, LatencyMs: time.Since(start).Milliseconds()}
	}
}
