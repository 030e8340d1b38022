package search

import (
	"context"
	"testing"
	"time"
)

type stubAdapter struct {
	name  string
	hits  []Hit
	delay time.Duration
	err   error
}

func (s *stubAdapter) Name() string { return s.name }

func (s *stubAdapter) Search(ctx context.Context, q Query, k int) (AdapterResult, error) {
	if s.delay > 0 {
		select {
		case <-time.After(s.delay):
		case <-ctx.Done():
			return AdapterResult{}, ctx.Err()
		}
	}
	if s.err != nil {
		return AdapterResult{}, s.err
	}
	return AdapterResult{Hits: s.hits}, nil
}

func TestEngine_Search_FusesAcrossAdapters(t *testing.T) {
	a := &stubAdapter{name: "a", hits: []Hit{{ID: "x", Score: 1.0}, {ID: "y", Score: 0.0}}}
	b := &stubAdapter{name: "b", hits: []Hit{{ID: "x", Score: 0.8}, {ID: "z", Score: 1.0}}}

	e := NewEngine([]Adapter{a, b}, EngineConfig{AdapterTimeout: 50 * time.Millisecond})
	result := e.Search(context.Background(), Query{}, 10)

	if result.Partial {
		t.Fatalf("expected non-partial result, got degraded sources %v", result.DegradedSources)
	}
	if len(result.Hits) != 3 {
		t.Fatalf("expected 3 unioned ids, got %d: %+v", len(result.Hits), result.Hits)
	}
	if result.Hits[0].ID != "x" {
		t.Fatalf("expected 'x' (present and high-scoring in both sources) ranked first, got %+v", result.Hits[0])
	}
}

func TestEngine_Search_TimeoutMarksPartialAndDegraded(t *testing.T) {
	fast := &stubAdapter{name: "fast", hits: []Hit{{ID: "x", Score: 1.0}}}
	slow := &stubAdapter{name: "slow", delay: 200 * time.Millisecond}

	e := NewEngine([]Adapter{fast, slow}, EngineConfig{AdapterTimeout: 20 * time.Millisecond})
	result := e.Search(context.Background(), Query{}, 10)

	if !result.Partial {
		t.Fatalf("expected partial result when an adapter times out")
	}
	if len(result.DegradedSources) != 1 || result.DegradedSources[0] != "slow" {
		t.Fatalf("expected 'slow' reported degraded, got %v", result.DegradedSources)
	}
	if len(result.Hits) != 1 || result.Hits[0].ID != "x" {
		t.Fatalf("expected fusion to proceed with the surviving source, got %+v", result.Hits)
	}
}

func TestEngine_Search_AdapterErrorDegradesWithoutFailingSearch(t *testing.T) {
	ok := &stubAdapter{name: "ok", hits: []Hit{{ID: "x", Score: 1.0}}}
	broken := &stubAdapter{name: "broken", err: errBoom}

	e := NewEngine([]Adapter{ok, broken}, EngineConfig{AdapterTimeout: 50 * time.Millisecond})
	result := e.Search(context.Background(), Query{}, 10)

	if !result.Partial {
		t.Fatalf("expected partial result when an adapter errors")
	}
	if len(result.Hits) != 1 {
		t.Fatalf("expected only the healthy adapter's id, got %+v", result.Hits)
	}
}

func TestEngine_Search_CapsAtK(t *testing.T) {
	a := &stubAdapter{name: "a", hits: []Hit{{ID: "1", Score: 0.9}, {ID: "2", Score: 0.5}, {ID: "3", Score: 0.1}}}
	e := NewEngine([]Adapter{a}, EngineConfig{AdapterTimeout: 50 * time.Millisecond})
	result := e.Search(context.Background(), Query{}, 2)
	if len(result.Hits) != 2 {
		t.Fatalf("expected result capped at k=2, got %d", len(result.Hits))
	}
}

func TestEngine_Search_ExplicitWeightOverridesDefault(t *testing.T) {
	a := &stubAdapter{name: "a", hits: []Hit{{ID: "x", Score: 1.0}}}
	b := &stubAdapter{name: "b", hits: []Hit{{ID: "y", Score: 1.0}}}

	e := NewEngine([]Adapter{a, b}, EngineConfig{
		AdapterTimeout: 50 * time.Millisecond,
		Weights:        map[string]float64{"a": 5.0, "b": 0.0},
	})
	result := e.Search(context.Background(), Query{}, 10)
	if result.Hits[0].ID != "x" {
		t.Fatalf("expected heavily-weighted source 'a' to dominate, got %+v", result.Hits)
	}
}

var errBoom = fmtError("boom")

type fmtError string

func (e fmtError) Error() string { return string(e) }
