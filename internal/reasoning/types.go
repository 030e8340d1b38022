// Package reasoning implements the Reasoning Bank / Sona Engine (C12): a
// trajectory ledger, a Fisher-regularized drift-guarded route-weight
// update protocol, and a rotating checkpoint ring with rollback-loop
// detection. The route-weight update and drift guard are grounded on the
// teacher's curriculum_learner.go bounded-step scoring updates; the
// checkpoint/rollback shape is grounded on consolidator.go's
// offline-consolidation idiom, generalized into an explicit snapshot +
// restore protocol since no teacher component persists its own state.
package reasoning

import "time"

// TrajectoryID follows the {prefix}_{epoch_ms}_{rand} pattern (spec.md
// §4.8/§4.11) shared with provenance ids.
type TrajectoryID string

// Trajectory is one recorded route execution (spec.md §4.11).
type Trajectory struct {
	ID            TrajectoryID
	Route         string // canonicalized: lowercased, slash-joined
	Labels        []string
	ContextIDs    []string
	Quality       float64
	LowConfidence bool
	CreatedAt     time.Time
}

// RouteWeight is the Sona Engine's learned weight for one route.
type RouteWeight struct {
	Route               string
	Weight              float64
	InitWeight          float64
	Fisher              float64
	CheckpointWeight    float64
	UpdatedAt           time.Time
	Cooling             bool
	ConsecutiveFailures int
}

// Checkpoint is a persisted snapshot of a route's weight state (spec.md
// §4.11: "{ id, reason, weights_snapshot, fisher_snapshot, created_at,
// crc32 }").
type Checkpoint struct {
	ID               string
	Route            string
	Reason           string
	WeightsSnapshot  float64
	FisherSnapshot   float64
	CreatedAt        time.Time
	CRC32            uint32
	Step             int
}
