// Package graphstore implements the hypergraph store (C6): nodes carrying
// an embedding plus label/property bags, and n-ary hyperedges (three or
// more participants) connecting them. The edge table plus its inverted
// node→edge index are generalized from the teacher's AgentAffinityGraph
// (agent_aware_structures.go), which keeps a dense pairwise adjacency
// matrix and per-node routing table; here the adjacency is sparse and
// n-ary instead of pairwise. Cycle-safe traversal (neighbors, subgraph)
// borrows its visited-set BFS shape from semantic_network.go.
package graphstore

import "time"

// NodeID is an opaque, caller-assigned identifier for a graph node.
type NodeID string

// EdgeID is an opaque, store-assigned identifier for a hyperedge.
type EdgeID string

// PropValue is a scalar property value attached to a node or edge.
type PropValue struct {
	Str    string
	Num    float64
	Bool   bool
	IsNum  bool
	IsBool bool
}

func StringProp(s string) PropValue { return PropValue{Str: s} }
func NumberProp(n float64) PropValue { return PropValue{Num: n, IsNum: true} }
func BoolProp(b bool) PropValue       { return PropValue{Bool: b, IsBool: true} }

// Node is a graph node: an embedding plus label/property metadata
// (spec.md §2, "Graph node").
type Node struct {
	ID         NodeID
	Embedding  []float32
	Labels     map[string]struct{}
	Properties map[string]PropValue
	CreatedAt  time.Time
}

func newNode(id NodeID, embedding []float32, labels []string) *Node {
	n := &Node{
		ID:         id,
		Embedding:  append([]float32(nil), embedding...),
		Labels:     make(map[string]struct{}, len(labels)),
		Properties: make(map[string]PropValue),
		CreatedAt:  time.Now(),
	}
	for _, l := range labels {
		n.Labels[l] = struct{}{}
	}
	return n
}

func (n *Node) clone() *Node {
	cp := &Node{
		ID:         n.ID,
		Embedding:  append([]float32(nil), n.Embedding...),
		Labels:     make(map[string]struct{}, len(n.Labels)),
		Properties: make(map[string]PropValue, len(n.Properties)),
		CreatedAt:  n.CreatedAt,
	}
	for l := range n.Labels {
		cp.Labels[l] = struct{}{}
	}
	for k, v := range n.Properties {
		cp.Properties[k] = v
	}
	return cp
}

// HasLabel reports whether the node carries label.
func (n *Node) HasLabel(label string) bool {
	_, ok := n.Labels[label]
	return ok
}

// Hyperedge relates three or more nodes simultaneously (spec.md §2,
// "Hyperedge") — it carries no embedding of its own; its importance is
// the sum of its own weight contributed to each incident node's total.
type Hyperedge struct {
	ID           EdgeID
	Participants map[NodeID]struct{}
	Kind         string
	Weight       float64
	CreatedAt    time.Time
}

func (e *Hyperedge) clone() *Hyperedge {
	cp := &Hyperedge{ID: e.ID, Kind: e.Kind, Weight: e.Weight, CreatedAt: e.CreatedAt, Participants: make(map[NodeID]struct{}, len(e.Participants))}
	for p := range e.Participants {
		cp.Participants[p] = struct{}{}
	}
	return cp
}

// ParticipantList returns e's participants as a stable-ordered slice.
func (e *Hyperedge) ParticipantList() []NodeID {
	out := make([]NodeID, 0, len(e.Participants))
	for p := range e.Participants {
		out = append(out, p)
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j] < out[j-1] {
			out[j], out[j-1] = out[j-1], out[j]
			j--
		}
	}
	return out
}
