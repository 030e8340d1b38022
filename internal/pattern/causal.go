package pattern

import (
	"sort"
	"sync"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// causalEdge is one cause->effect link in the arena graph.
type causalEdge struct {
	to         int
	evidence   string
	confidence float64
}

// CausalGraph is an arena (dense integer id) store of causal links:
// entities are interned to small ints so edge lists are plain slices
// rather than string-keyed maps, and every AddLink is rejected if it
// would close a cycle (spec.md §4.10, "Tarjan on the affected subgraph").
type CausalGraph struct {
	mu       sync.RWMutex
	ids      map[string]int
	labels   []string
	outEdges [][]causalEdge
}

func NewCausalGraph() *CausalGraph {
	return &CausalGraph{ids: make(map[string]int)}
}

func (g *CausalGraph) internLocked(label string) int {
	if id, ok := g.ids[label]; ok {
		return id
	}
	id := len(g.labels)
	g.ids[label] = id
	g.labels = append(g.labels, label)
	g.outEdges = append(g.outEdges, nil)
	return id
}

// AddLink records cause -> effect with supporting evidence and
// confidence, rejecting the link if it would create a cycle.
func (g *CausalGraph) AddLink(cause, effect, evidence string, confidence float64) error {
	g.mu.Lock()
	defer g.mu.Unlock()

	causeID := g.internLocked(cause)
	effectID := g.internLocked(effect)

	g.outEdges[causeID] = append(g.outEdges[causeID], causalEdge{to: effectID, evidence: evidence, confidence: confidence})
	if hasCycle(g.outEdges) {
		// Roll back: this link is what introduced the cycle.
		edges := g.outEdges[causeID]
		g.outEdges[causeID] = edges[:len(edges)-1]
		return errs.ErrCyclicGraph
	}
	return nil
}

// hasCycle runs Tarjan's SCC algorithm over the full arena graph and
// reports whether any strongly connected component has more than one
// node (a self-loop also counts as a 1-node cycle).
func hasCycle(outEdges [][]causalEdge) bool {
	n := len(outEdges)
	index := make([]int, n)
	lowlink := make([]int, n)
	onStack := make([]bool, n)
	for i := range index {
		index[i] = -1
	}
	var stack []int
	counter := 0
	found := false

	var strongconnect func(v int)
	strongconnect = func(v int) {
		index[v] = counter
		lowlink[v] = counter
		counter++
		stack = append(stack, v)
		onStack[v] = true

		for _, e := range outEdges[v] {
			w := e.to
			if index[w] == -1 {
				strongconnect(w)
				if lowlink[w] < lowlink[v] {
					lowlink[v] = lowlink[w]
				}
			} else if onStack[w] {
				if index[w] < lowlink[v] {
					lowlink[v] = index[w]
				}
			}
		}

		if lowlink[v] == index[v] {
			size := 0
			for {
				w := stack[len(stack)-1]
				stack = stack[:len(stack)-1]
				onStack[w] = false
				size++
				if w == v {
					break
				}
			}
			if size > 1 {
				found = true
			} else if len(outEdges[v]) > 0 {
				for _, e := range outEdges[v] {
					if e.to == v {
						found = true
					}
				}
			}
		}
	}

	for v := 0; v < n; v++ {
		if index[v] == -1 {
			strongconnect(v)
		}
	}
	return found
}

// CausalChain is one cause->...->effect path with its combined
// confidence (the product of its link confidences).
type CausalChain struct {
	Path       []string
	Evidence   []string
	Confidence float64
}

// FindCauses returns ordered chains ending at effect, walking backward up
// to maxDepth hops.
func (g *CausalGraph) FindCauses(effect string, maxDepth int) []CausalChain {
	g.mu.RLock()
	defer g.mu.RUnlock()

	effectID, ok := g.ids[effect]
	if !ok {
		return nil
	}
	inEdges := g.buildReverseIndexLocked()
	var chains []CausalChain
	var walk func(node int, path []string, evidence []string, confidence float64, depth int)
	walk = func(node int, path []string, evidence []string, confidence float64, depth int) {
		preds := inEdges[node]
		if len(preds) == 0 || depth >= maxDepth {
			if len(path) > 1 {
				chains = append(chains, CausalChain{
					Path:       reverseStrings(path),
					Evidence:   reverseStrings(evidence),
					Confidence: confidence,
				})
			}
			return
		}
		for _, e := range preds {
			walk(e.to, append(append([]string{}, path...), g.labels[e.to]), append(append([]string{}, evidence...), e.evidence), confidence*e.confidence, depth+1)
		}
	}
	walk(effectID, []string{effect}, nil, 1.0, 0)

	sort.Slice(chains, func(i, j int) bool { return chains[i].Confidence > chains[j].Confidence })
	return chains
}

// FindEffects returns ordered chains starting at cause, walking forward
// up to maxDepth hops.
func (g *CausalGraph) FindEffects(cause string, maxDepth int) []CausalChain {
	g.mu.RLock()
	defer g.mu.RUnlock()

	causeID, ok := g.ids[cause]
	if !ok {
		return nil
	}
	var chains []CausalChain
	var walk func(node int, path []string, evidence []string, confidence float64, depth int)
	walk = func(node int, path []string, evidence []string, confidence float64, depth int) {
		edges := g.outEdges[node]
		if len(edges) == 0 || depth >= maxDepth {
			if len(path) > 1 {
				chains = append(chains, CausalChain{Path: append([]string{}, path...), Evidence: append([]string{}, evidence...), Confidence: confidence})
			}
			return
		}
		for _, e := range edges {
			walk(e.to, append(append([]string{}, path...), g.labels[e.to]), append(append([]string{}, evidence...), e.evidence), confidence*e.confidence, depth+1)
		}
	}
	walk(causeID, []string{cause}, nil, 1.0, 0)

	sort.Slice(chains, func(i, j int) bool { return chains[i].Confidence > chains[j].Confidence })
	return chains
}

// reverseInEdge is a causalEdge reinterpreted as "from e.to to this node".
type reverseInEdge struct {
	to         int // the predecessor node
	evidence   string
	confidence float64
}

func (g *CausalGraph) buildReverseIndexLocked() [][]reverseInEdge {
	rev := make([][]reverseInEdge, len(g.labels))
	for from, edges := range g.outEdges {
		for _, e := range edges {
			rev[e.to] = append(rev[e.to], reverseInEdge{to: from, evidence: e.evidence, confidence: e.confidence})
		}
	}
	return rev
}

func reverseStrings(in []string) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[len(in)-1-i] = s
	}
	return out
}
