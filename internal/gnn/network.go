package gnn

import (
	"math"
	"math/rand"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// GraphNode is one candidate in a TrajectoryGraph: a feature vector at the
// network's input dimension plus its hypergraph importance (spec.md §2,
// "importance = Σ incident edge weights" — computed by graphstore and
// passed in here, not recomputed).
type GraphNode struct {
	ID         string
	Features   []float32
	Importance float64
}

// TrajectoryGraph is the bounded neighborhood an Enhance call may attend
// over (spec.md §4.7: "≤ max_nodes, default 50").
type TrajectoryGraph struct {
	Nodes    []GraphNode
	EdgeIDs  []string // sorted hyperedge ids contributing to this neighborhood, for cache keying
	MaxNodes int
}

func (g *TrajectoryGraph) maxNodes() int {
	if g == nil || g.MaxNodes <= 0 {
		return 50
	}
	return g.MaxNodes
}

// NetworkConfig sizes the three projection layers (spec.md §4.7).
type NetworkConfig struct {
	Dim        int // input/output dimension (D)
	Hidden1    int // D_hidden1, default 1024
	Hidden2    int // D_hidden2, default 1280
	ClipNorm   float32
	LearnRate  float32
}

func (c *NetworkConfig) applyDefaults() {
	if c.Hidden1 <= 0 {
		c.Hidden1 = 1024
	}
	if c.Hidden2 <= 0 {
		c.Hidden2 = 1280
	}
	if c.ClipNorm <= 0 {
		c.ClipNorm = 5.0
	}
	if c.LearnRate <= 0 {
		c.LearnRate = 0.001
	}
}

// Network is the 3-layer GNN enhancer.
type Network struct {
	cfg NetworkConfig
	L1  *Layer
	L2  *Layer
	L3  *Layer
}

// NewNetwork builds a freshly Xavier-initialized 3-layer network.
func NewNetwork(cfg NetworkConfig, rng *rand.Rand) *Network {
	cfg.applyDefaults()
	return &Network{
		cfg: cfg,
		L1:  NewLayer(cfg.Dim, cfg.Hidden1, ReLU, rng),
		L2:  NewLayer(cfg.Hidden1, cfg.Hidden2, ReLU, rng),
		L3:  NewLayer(cfg.Hidden2, cfg.Dim, Identity, rng),
	}
}

// EnhanceResult is the output of Enhance, plus activation caches when the
// caller requested them.
type EnhanceResult struct {
	Vector []float32
	Caches []*LayerCache // nil unless collectActivations was set
}

// Aggregate computes the graph-context vector for center: scaled
// dot-product attention against every node (scaled by the node's
// hypergraph importance), softmax, weighted sum of node features,
// residual-combined with center (spec.md §4.7, "Graph aggregation").
// Isolated nodes (importance 0) still participate, just at low weight —
// the importance multiplies the attention score rather than masking a
// candidate out entirely.
func Aggregate(center []float32, graph *TrajectoryGraph) []float32 {
	if graph == nil || len(graph.Nodes) == 0 {
		return center
	}
	nodes := graph.Nodes
	if max := graph.maxNodes(); len(nodes) > max {
		nodes = nodes[:max]
	}

	d := float64(len(center))
	scores := make([]float64, len(nodes))
	maxScore := math.Inf(-1)
	for i, n := range nodes {
		raw := float64(dot32(center, n.Features)) / math.Sqrt(d)
		scores[i] = raw * n.Importance
		if scores[i] > maxScore {
			maxScore = scores[i]
		}
	}
	var sumExp float64
	weights := make([]float64, len(nodes))
	for i, s := range scores {
		w := math.Exp(s - maxScore)
		weights[i] = w
		sumExp += w
	}
	agg := make([]float32, len(center))
	if sumExp > 0 {
		for i, n := range nodes {
			w := float32(weights[i] / sumExp)
			for j, f := range n.Features {
				agg[j] += w * f
			}
		}
	}
	out := make([]float32, len(center))
	for i := range out {
		out[i] = center[i] + agg[i]
	}
	return out
}

// Enhance runs the 3-layer forward pass, optionally preceded by graph
// aggregation, and L2-renormalizes the output (spec.md §4.7).
func (n *Network) Enhance(query []float32, graph *TrajectoryGraph, collectActivations bool) *EnhanceResult {
	input := query
	if graph != nil {
		input = Aggregate(query, graph)
	}

	var caches []*LayerCache
	h1, c1 := n.L1.Forward(input, collectActivations)
	h2raw, c2 := n.L2.Forward(h1, collectActivations)
	h2 := h2raw
	if n.L1.DimOut == n.L2.DimOut {
		h2 = make([]float32, len(h2raw))
		for i := range h2 {
			h2[i] = h2raw[i] + h1[i]
		}
	}
	out, c3 := n.L3.Forward(h2, collectActivations)
	out = l2normalize(out)

	if collectActivations {
		caches = []*LayerCache{c1, c2, c3}
	}
	return &EnhanceResult{Vector: out, Caches: caches}
}

// Backward runs layer_backward across all three layers in reverse,
// clips the combined gradient by global L2 norm, and returns per-layer
// gradients plus the gradient w.r.t. the network's input. A NaN/Inf
// gradient anywhere is rejected wholesale (spec.md §4.7: "NaN/Inf produce
// a GradientInvalid error and the optimizer step is skipped").
func (n *Network) Backward(dLdy []float32, caches []*LayerCache) ([]*LayerGrad, []float32, error) {
	if len(caches) != 3 || caches[0] == nil || caches[1] == nil || caches[2] == nil {
		return nil, nil, errs.ErrGradientInvalid
	}
	g3 := n.L3.Backward(dLdy, caches[2])
	g2 := n.L2.Backward(g3.Dx, caches[1])
	g1 := n.L1.Backward(g2.Dx, caches[0])

	grads := []*LayerGrad{g1, g2, g3}
	if !clipGlobalNorm(grads, n.cfg.ClipNorm) {
		return nil, nil, errs.ErrGradientInvalid
	}
	return grads, g1.Dx, nil
}

// ApplyGradients performs one SGD step across all three layers.
func (n *Network) ApplyGradients(grads []*LayerGrad) {
	n.L1.ApplyGradient(grads[0], n.cfg.LearnRate)
	n.L2.ApplyGradient(grads[1], n.cfg.LearnRate)
	n.L3.ApplyGradient(grads[2], n.cfg.LearnRate)
}
