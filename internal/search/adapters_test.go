package search

import (
	"context"
	"testing"

	"github.com/ashgrove-systems/godagent-memory/internal/graphstore"
	"github.com/ashgrove-systems/godagent-memory/internal/pattern"
	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

func TestGraphAdapter_ScoresNeighborsByCosineSimilarity(t *testing.T) {
	gs := graphstore.New(graphstore.Config{Dimension: 3})
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	must(gs.CreateNode("center", []float32{1, 0, 0}, nil, graphstore.NodeCreateOptions{Seed: true}))
	must(gs.CreateNode("close", []float32{0.9, 0.1, 0}, nil, graphstore.NodeCreateOptions{Seed: true}))
	must(gs.CreateNode("far", []float32{0, 1, 0}, nil, graphstore.NodeCreateOptions{Seed: true}))
	if _, err := gs.CreateHyperedge([]graphstore.NodeID{"center", "close", "far"}, "link", 1.0); err != nil {
		t.Fatalf("create hyperedge: %v", err)
	}

	a := &GraphAdapter{Store: gs, HopRadius: 1}
	res, err := a.Search(context.Background(), Query{Vector: []float32{1, 0, 0}, AnchorNode: "center"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 neighbor hits, got %d: %+v", len(res.Hits), res.Hits)
	}
	if res.Hits[0].ID != "close" {
		t.Fatalf("expected 'close' ranked above 'far', got %+v", res.Hits)
	}
}

func TestGraphAdapter_NoAnchorReturnsEmpty(t *testing.T) {
	gs := graphstore.New(graphstore.Config{Dimension: 3})
	a := &GraphAdapter{Store: gs}
	res, err := a.Search(context.Background(), Query{Vector: []float32{1, 0, 0}}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 0 {
		t.Fatalf("expected no hits without an anchor node, got %+v", res.Hits)
	}
}

func TestMemoryAdapter_SurfacesPatternConfidence(t *testing.T) {
	ps := pattern.NewStore()
	ps.Update(pattern.PatternKey{TaskType: "retry", Signature: "timeout"}, true)
	ps.Update(pattern.PatternKey{TaskType: "retry", Signature: "timeout"}, true)

	a := &MemoryAdapter{Store: ps}
	res, err := a.Search(context.Background(), Query{TaskType: "retry"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 1 || res.Hits[0].ID != "retry/timeout" {
		t.Fatalf("unexpected hits: %+v", res.Hits)
	}
}

func TestPatternAdapter_LowConfidenceTrajectoryScoresLower(t *testing.T) {
	bank := reasoning.NewBank(reasoning.Config{})
	highID, _ := bank.CreateTrajectory("agent/plan", nil, nil)
	bank.ProvideFeedback(highID, 1.0)
	lowID, _ := bank.CreateTrajectory("agent/plan", nil, nil)
	bank.ProvideFeedback(lowID, 0.05) // below default QualityFloor, marks low-confidence

	a := &PatternAdapter{Bank: bank}
	res, err := a.Search(context.Background(), Query{Route: "agent/plan"}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) != 2 {
		t.Fatalf("expected 2 trajectory hits, got %d", len(res.Hits))
	}
	scores := map[string]float64{}
	for _, h := range res.Hits {
		scores[h.ID] = h.Score
	}
	if scores[string(highID)] <= scores[string(lowID)] {
		t.Fatalf("expected high-quality trajectory to outscore the low-confidence one: %+v", scores)
	}
}

func TestVectorAdapter_NormalizesScoresByMetric(t *testing.T) {
	vs := vectorstore.New(vectorstore.Config{Dimension: 2})
	if err := vs.Insert("a", []float32{1, 0}, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := vs.Insert("b", []float32{0, 1}, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	a := &VectorAdapter{Store: vs, Metric: vectormath.Cosine}
	res, err := a.Search(context.Background(), Query{Vector: []float32{1, 0}}, 10)
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(res.Hits) == 0 {
		t.Fatalf("expected hits")
	}
	for _, h := range res.Hits {
		if h.Score < 0 || h.Score > 1 {
			t.Fatalf("expected normalized score in [0,1], got %v for %s", h.Score, h.ID)
		}
	}
	if res.Hits[0].ID != "a" {
		t.Fatalf("expected exact match 'a' ranked first, got %+v", res.Hits)
	}
}
