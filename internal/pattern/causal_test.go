package pattern

import (
	"testing"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

func TestCausalGraph_AddLinkRejectsDirectCycle(t *testing.T) {
	g := NewCausalGraph()
	if err := g.AddLink("rain", "wet-ground", "obs-1", 0.9); err != nil {
		t.Fatalf("add rain->wet-ground: %v", err)
	}
	if err := g.AddLink("wet-ground", "rain", "obs-2", 0.9); err != errs.ErrCyclicGraph {
		t.Fatalf("expected ErrCyclicGraph for the reverse link, got %v", err)
	}
}

func TestCausalGraph_AddLinkRejectsIndirectCycle(t *testing.T) {
	g := NewCausalGraph()
	must := func(err error) {
		t.Helper()
		if err != nil {
			t.Fatalf("unexpected error: %v", err)
		}
	}
	must(g.AddLink("a", "b", "e1", 0.8))
	must(g.AddLink("b", "c", "e2", 0.8))
	if err := g.AddLink("c", "a", "e3", 0.8); err != errs.ErrCyclicGraph {
		t.Fatalf("expected ErrCyclicGraph closing a->b->c->a, got %v", err)
	}
}

func TestCausalGraph_AddLinkRejectsSelfLoop(t *testing.T) {
	g := NewCausalGraph()
	if err := g.AddLink("a", "a", "e1", 0.5); err != errs.ErrCyclicGraph {
		t.Fatalf("expected self-loop rejection, got %v", err)
	}
}

func TestCausalGraph_FindCausesReturnsChainWithProductConfidence(t *testing.T) {
	g := NewCausalGraph()
	if err := g.AddLink("storm", "power-outage", "e1", 0.9); err != nil {
		t.Fatalf("add: %v", err)
	}
	if err := g.AddLink("power-outage", "server-down", "e2", 0.8); err != nil {
		t.Fatalf("add: %v", err)
	}

	chains := g.FindCauses("server-down", 5)
	if len(chains) == 0 {
		t.Fatalf("expected at least one chain")
	}
	top := chains[0]
	if top.Path[0] != "storm" || top.Path[len(top.Path)-1] != "server-down" {
		t.Fatalf("expected chain from storm to server-down, got %v", top.Path)
	}
	wantConfidence := 0.9 * 0.8
	if diff := top.Confidence - wantConfidence; diff > 1e-9 || diff < -1e-9 {
		t.Fatalf("expected confidence %v, got %v", wantConfidence, top.Confidence)
	}
}

func TestCausalGraph_FindEffectsWalksForward(t *testing.T) {
	g := NewCausalGraph()
	if err := g.AddLink("storm", "power-outage", "e1", 0.9); err != nil {
		t.Fatalf("add: %v", err)
	}
	chains := g.FindEffects("storm", 5)
	if len(chains) != 1 || chains[0].Path[len(chains[0].Path)-1] != "power-outage" {
		t.Fatalf("expected chain from storm to power-outage, got %+v", chains)
	}
}

func TestCausalGraph_FindCausesUnknownNodeReturnsEmpty(t *testing.T) {
	g := NewCausalGraph()
	if chains := g.FindCauses("nowhere", 5); chains != nil {
		t.Fatalf("expected nil for unknown node, got %v", chains)
	}
}
