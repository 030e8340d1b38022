package reasoning

import (
	"sync"
)

// Bank is the Reasoning Bank / Sona Engine: a trajectory ledger plus a
// per-route learned weight, each weight update guarded by a Fisher-
// regularized drift check and backed by a rotating checkpoint ring.
type Bank struct {
	mu  sync.RWMutex
	cfg Config

	trajectories map[TrajectoryID]*Trajectory
	weights      map[string]*RouteWeight
	checkpoints  map[string][]*Checkpoint // per-route ring, oldest first
	steps        map[string]int           // per-route monotonic step counter
	restores     map[string]map[string]restoreHistory
}

type restoreHistory struct {
	count     int
	firstStep int
}

func NewBank(cfg Config) *Bank {
	return &Bank{
		cfg:          cfg.withDefaults(),
		trajectories: make(map[TrajectoryID]*Trajectory),
		weights:      make(map[string]*RouteWeight),
		checkpoints:  make(map[string][]*Checkpoint),
		steps:        make(map[string]int),
		restores:     make(map[string]map[string]restoreHistory),
	}
}

func (b *Bank) getOrInitWeightLocked(route string) *RouteWeight {
	rw, ok := b.weights[route]
	if ok {
		return rw
	}
	rw = &RouteWeight{
		Route:            route,
		Weight:           b.cfg.InitWeight,
		InitWeight:       b.cfg.InitWeight,
		Fisher:           0,
		CheckpointWeight: b.cfg.InitWeight,
	}
	b.weights[route] = rw
	return rw
}

// RouteWeightSnapshot returns a copy of the current learned state for a
// route, or the zero value with ok=false if the route has never received
// feedback.
func (b *Bank) RouteWeightSnapshot(route string) (RouteWeight, bool) {
	route = canonicalizeRoute(route)
	b.mu.RLock()
	defer b.mu.RUnlock()
	rw, ok := b.weights[route]
	if !ok {
		return RouteWeight{}, false
	}
	return *rw, true
}
