package search

import (
	"context"
	"strings"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
)

// EngineConfig tunes Unified Search fanout and fusion.
type EngineConfig struct {
	AdapterTimeout time.Duration
	// Weights holds explicit per-adapter overrides; an adapter absent
	// here falls back to its C12 learned route weight if Bank is set,
	// else to 1.0.
	Weights map[string]float64
	Bank    *reasoning.Bank
}

func (c EngineConfig) withDefaults() EngineConfig {
	if c.AdapterTimeout == 0 {
		c.AdapterTimeout = 100 * time.Millisecond
	}
	return c
}

// Engine runs Quad-Fusion search across its registered adapters.
type Engine struct {
	adapters []Adapter
	cfg      EngineConfig
}

func NewEngine(adapters []Adapter, cfg EngineConfig) *Engine {
	return &Engine{adapters: adapters, cfg: cfg.withDefaults()}
}

// Search fans out to every adapter in parallel, each bounded by
// AdapterTimeout, then fuses the results (spec.md §4.12). A timed-out or
// erroring adapter degrades rather than failing the whole call; if any
// adapter degraded, Result.Partial is true.
func (e *Engine) Search(ctx context.Context, q Query, k int) Result {
	results := make([]AdapterResult, len(e.adapters))
	var wg sync.WaitGroup
	for i, a := range e.adapters {
		wg.Add(1)
		go func(i int, a Adapter) {
			defer wg.Done()
			results[i] = runAdapter(ctx, a, q, k, e.cfg.AdapterTimeout)
		}(i, a)
	}
	wg.Wait()

	hits, degraded := fuse(results, e.weightFor(q.Route), k)
	return Result{Hits: hits, Partial: len(degraded) > 0, DegradedSources: degraded}
}

// weightFor resolves a per-source fusion weight: an explicit override
// wins, otherwise a C12 learned weight for "search/<source>" on this
// query's route, defaulting to 1.0 if neither is present.
func (e *Engine) weightFor(route string) func(source string) float64 {
	return func(source string) float64 {
		if w, ok := e.cfg.Weights[source]; ok {
			return w
		}
		if e.cfg.Bank != nil && route != "" {
			learnedRoute := strings.Join([]string{"search", source, route}, "/")
			if rw, ok := e.cfg.Bank.RouteWeightSnapshot(learnedRoute); ok {
				return rw.Weight
			}
		}
		return 1.0
	}
}
