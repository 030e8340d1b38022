package graphstore

import (
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// Config configures a Store.
type Config struct {
	Dimension int
}

// Store is the hypergraph store (C6). All mutations are transactional in
// the sense spec.md §4.5 requires: either a node/edge and its inverted
// index entries all land, or none do — every mutating method below stages
// its changes in locals and only touches s.nodes/s.edges/s.adjacency after
// every precondition has passed.
type Store struct {
	mu        sync.RWMutex
	cfg       Config
	nodes     map[NodeID]*Node
	edges     map[EdgeID]*Hyperedge
	adjacency map[NodeID]map[EdgeID]struct{} // inverted index: node -> incident edge ids
	nextEdge  uint64
}

// New builds an empty Store.
func New(cfg Config) *Store {
	return &Store{
		cfg:       cfg,
		nodes:     make(map[NodeID]*Node),
		edges:     make(map[EdgeID]*Hyperedge),
		adjacency: make(map[NodeID]map[EdgeID]struct{}),
	}
}

// NodeCreateOptions configures CreateNode's orphan-prevention behavior
// (spec.md §2, "Graph node"; §4.5 scenario 3).
type NodeCreateOptions struct {
	// Seed exempts the node from the orphan check — used for the first
	// node(s) in an otherwise-empty graph.
	Seed bool
	// LinkTo names existing nodes to hyperedge the new node to. The
	// distinct LinkTo entries plus the new node itself must number >= 3 or
	// the call fails with InvalidHyperedge (and the node is not created).
	LinkTo     []NodeID
	EdgeKind   string
	EdgeWeight float64
}

func (s *Store) validateEmbedding(v []float32) error {
	if s.cfg.Dimension > 0 && len(v) != s.cfg.Dimension {
		return &errs.DimensionError{Expected: s.cfg.Dimension, Actual: len(v)}
	}
	return nil
}

// CreateNode inserts a node, enforcing orphan prevention: a non-seed node
// must be linked to at least one existing node, and that link must form a
// valid hyperedge (>=3 participants) or the whole call fails and nothing
// is created (spec.md §4.5, §8 "non-seed nodes have at least one incident
// hyperedge at the end of their creation transaction").
func (s *Store) CreateNode(id NodeID, embedding []float32, labels []string, opts NodeCreateOptions) error {
	if err := s.validateEmbedding(embedding); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.nodes[id]; exists {
		return errs.ErrDuplicateId
	}

	if opts.Seed {
		s.nodes[id] = newNode(id, embedding, labels)
		s.adjacency[id] = make(map[EdgeID]struct{})
		return nil
	}

	if len(opts.LinkTo) == 0 {
		return errs.ErrOrphanNode
	}
	participants := make([]NodeID, 0, len(opts.LinkTo)+1)
	participants = append(participants, id)
	for _, target := range dedupe(opts.LinkTo) {
		if _, ok := s.nodes[target]; !ok {
			return errs.ErrNotFound
		}
		participants = append(participants, target)
	}
	if len(participants) < 3 {
		return errs.ErrInvalidHyperedge
	}

	kind := opts.EdgeKind
	if kind == "" {
		kind = "link"
	}
	weight := opts.EdgeWeight
	if weight == 0 {
		weight = 1.0
	}

	node := newNode(id, embedding, labels)
	edge := s.buildEdge(participants, kind, weight)

	s.nodes[id] = node
	s.adjacency[id] = make(map[EdgeID]struct{})
	s.commitEdge(edge)
	return nil
}

// buildEdge stages a new hyperedge without touching store state.
func (s *Store) buildEdge(participants []NodeID, kind string, weight float64) *Hyperedge {
	s.nextEdge++
	id := EdgeID(edgeIDString(s.nextEdge))
	e := &Hyperedge{ID: id, Kind: kind, Weight: weight, Participants: make(map[NodeID]struct{}, len(participants))}
	for _, p := range participants {
		e.Participants[p] = struct{}{}
	}
	return e
}

// commitEdge applies a staged edge to s.edges and the inverted index. Must
// be called with s.mu held.
func (s *Store) commitEdge(e *Hyperedge) {
	e.CreatedAt = time.Now()
	s.edges[e.ID] = e
	for p := range e.Participants {
		if s.adjacency[p] == nil {
			s.adjacency[p] = make(map[EdgeID]struct{})
		}
		s.adjacency[p][e.ID] = struct{}{}
	}
}

func edgeIDString(n uint64) string {
	const digits = "0123456789abcdefghijklmnopqrstuvwxyz"
	if n == 0 {
		return "e0"
	}
	buf := make([]byte, 0, 16)
	for n > 0 {
		buf = append(buf, digits[n%36])
		n /= 36
	}
	out := make([]byte, len(buf)+1)
	out[0] = 'e'
	for i, b := range buf {
		out[len(buf)-i] = b
	}
	return string(out)
}

// CreateHyperedge links an arbitrary set of existing nodes. Fails with
// InvalidHyperedge if fewer than 3 participants, NotFound if any
// participant doesn't exist yet (spec.md §2, §4.5).
func (s *Store) CreateHyperedge(participants []NodeID, kind string, weight float64) (EdgeID, error) {
	if len(dedupe(participants)) < 3 {
		return "", errs.ErrInvalidHyperedge
	}
	s.mu.Lock()
	defer s.mu.Unlock()

	uniq := dedupe(participants)
	for _, p := range uniq {
		if _, ok := s.nodes[p]; !ok {
			return "", errs.ErrNotFound
		}
	}
	edge := s.buildEdge(uniq, kind, weight)
	s.commitEdge(edge)
	return edge.ID, nil
}

func dedupe(ids []NodeID) []NodeID {
	seen := make(map[NodeID]struct{}, len(ids))
	out := make([]NodeID, 0, len(ids))
	for _, id := range ids {
		if _, ok := seen[id]; ok {
			continue
		}
		seen[id] = struct{}{}
		out = append(out, id)
	}
	return out
}

// GetNode returns a defensive copy of a node.
func (s *Store) GetNode(id NodeID) (*Node, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	n, ok := s.nodes[id]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return n.clone(), nil
}

// IncidentEdges returns every hyperedge that includes node (spec.md §4.5).
func (s *Store) IncidentEdges(node NodeID) ([]*Hyperedge, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[node]; !ok {
		return nil, errs.ErrNotFound
	}
	ids := s.adjacency[node]
	out := make([]*Hyperedge, 0, len(ids))
	for id := range ids {
		out = append(out, s.edges[id].clone())
	}
	return out, nil
}

// Importance sums the weight of every hyperedge incident to node (spec.md
// §2, "importance = Σ incident edge weights").
func (s *Store) Importance(node NodeID) (float64, error) {
	edges, err := s.IncidentEdges(node)
	if err != nil {
		return 0, err
	}
	var total float64
	for _, e := range edges {
		total += e.Weight
	}
	return total, nil
}

// Neighbors returns every node reachable from node within hopRadius hops
// through shared hyperedge membership, excluding node itself.
func (s *Store) Neighbors(node NodeID, hopRadius int) ([]NodeID, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if _, ok := s.nodes[node]; !ok {
		return nil, errs.ErrNotFound
	}
	visited := map[NodeID]int{node: 0}
	frontier := []NodeID{node}
	for hop := 0; hop < hopRadius && len(frontier) > 0; hop++ {
		var next []NodeID
		for _, cur := range frontier {
			for edgeID := range s.adjacency[cur] {
				for p := range s.edges[edgeID].Participants {
					if _, seen := visited[p]; !seen {
						visited[p] = hop + 1
						next = append(next, p)
					}
				}
			}
		}
		frontier = next
	}
	out := make([]NodeID, 0, len(visited))
	for id := range visited {
		if id == node {
			continue
		}
		out = append(out, id)
	}
	return out, nil
}

// SubgraphResult is the induced subgraph returned by Subgraph.
type SubgraphResult struct {
	Nodes []*Node
	Edges []*Hyperedge
}

// Subgraph returns the induced subgraph reachable from seed within depth
// hops: every visited node plus every hyperedge fully contained within the
// visited set.
func (s *Store) Subgraph(seed NodeID, depth int) (*SubgraphResult, error) {
	ids, err := s.Neighbors(seed, depth)
	if err != nil {
		return nil, err
	}
	s.mu.RLock()
	defer s.mu.RUnlock()

	visited := map[NodeID]struct{}{seed: {}}
	for _, id := range ids {
		visited[id] = struct{}{}
	}

	result := &SubgraphResult{}
	for id := range visited {
		if n, ok := s.nodes[id]; ok {
			result.Nodes = append(result.Nodes, n.clone())
		}
	}
	seenEdges := make(map[EdgeID]struct{})
	for id := range visited {
		for edgeID := range s.adjacency[id] {
			if _, done := seenEdges[edgeID]; done {
				continue
			}
			edge := s.edges[edgeID]
			contained := true
			for p := range edge.Participants {
				if _, ok := visited[p]; !ok {
					contained = false
					break
				}
			}
			if contained {
				seenEdges[edgeID] = struct{}{}
				result.Edges = append(result.Edges, edge.clone())
			}
		}
	}
	return result, nil
}

// NodeCount returns the number of nodes in the store.
func (s *Store) NodeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.nodes)
}

// EdgeCount returns the number of hyperedges in the store.
func (s *Store) EdgeCount() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.edges)
}
