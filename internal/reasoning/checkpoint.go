package reasoning

import (
	"fmt"
	"hash/crc32"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

func checksumOf(route, reason string, weight, fisher float64, step int) uint32 {
	raw := fmt.Sprintf("%s|%s|%.17g|%.17g|%d", route, reason, weight, fisher, step)
	return crc32.ChecksumIEEE([]byte(raw))
}

// checkpointLocked snapshots a route's current weight/Fisher state into
// its ring buffer, trims the ring to cfg.MaxCheckpoints, and rebases the
// drift baseline (CheckpointWeight) to the new snapshot.
func (b *Bank) checkpointLocked(route, reason string, step int) *Checkpoint {
	rw := b.weights[route]
	cp := &Checkpoint{
		ID:              newID("ckpt"),
		Route:           route,
		Reason:          reason,
		WeightsSnapshot: rw.Weight,
		FisherSnapshot:  rw.Fisher,
		CreatedAt:       time.Now(),
		Step:            step,
	}
	cp.CRC32 = checksumOf(cp.Route, cp.Reason, cp.WeightsSnapshot, cp.FisherSnapshot, cp.Step)

	ring := append(b.checkpoints[route], cp)
	if len(ring) > b.cfg.MaxCheckpoints {
		ring = ring[len(ring)-b.cfg.MaxCheckpoints:]
	}
	b.checkpoints[route] = ring
	rw.CheckpointWeight = rw.Weight
	return cp
}

// Checkpoint manually snapshots a route's current state, e.g. before a
// risky bulk feedback replay.
func (b *Bank) Checkpoint(route, reason string) (Checkpoint, error) {
	route = canonicalizeRoute(route)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.weights[route]; !ok {
		return Checkpoint{}, errs.ErrNotFound
	}
	return *b.checkpointLocked(route, reason, b.steps[route]), nil
}

// Checkpoints returns the route's ring buffer, oldest first.
func (b *Bank) Checkpoints(route string) []Checkpoint {
	route = canonicalizeRoute(route)
	b.mu.RLock()
	defer b.mu.RUnlock()
	ring := b.checkpoints[route]
	out := make([]Checkpoint, len(ring))
	for i, cp := range ring {
		out[i] = *cp
	}
	return out
}

// rollbackLocked restores a route's weight/Fisher state to its most
// recent checkpoint and records the restore for rollback-loop detection:
// a checkpoint restored cfg.RollbackLoopCount times within
// cfg.RollbackWindowSteps of its own creation step signals the route is
// oscillating rather than converging.
func (b *Bank) rollbackLocked(route string, step int) error {
	ring := b.checkpoints[route]
	if len(ring) == 0 {
		return fmt.Errorf("route %q has no checkpoint to roll back to: %w", route, errs.ErrCheckpointError)
	}
	target := ring[len(ring)-1]
	if checksumOf(target.Route, target.Reason, target.WeightsSnapshot, target.FisherSnapshot, target.Step) != target.CRC32 {
		return fmt.Errorf("checkpoint %s for route %q: %w", target.ID, route, errs.ErrChecksumMismatch)
	}

	rw := b.weights[route]
	rw.Weight = target.WeightsSnapshot
	rw.Fisher = target.FisherSnapshot
	rw.CheckpointWeight = target.WeightsSnapshot

	hist := b.restores[route]
	if hist == nil {
		hist = make(map[string]restoreHistory)
		b.restores[route] = hist
	}
	rh := hist[target.ID]
	if rh.count == 0 || step-target.Step > b.cfg.RollbackWindowSteps {
		rh = restoreHistory{count: 1, firstStep: step}
	} else {
		rh.count++
	}
	hist[target.ID] = rh

	if rh.count >= b.cfg.RollbackLoopCount {
		return fmt.Errorf("checkpoint %s for route %q restored %d times within %d steps: %w",
			target.ID, route, rh.count, b.cfg.RollbackWindowSteps, errs.ErrRollbackLoop)
	}
	return nil
}

// Rollback restores a route to its most recent checkpoint on demand.
func (b *Bank) Rollback(route string) error {
	route = canonicalizeRoute(route)
	b.mu.Lock()
	defer b.mu.Unlock()
	if _, ok := b.weights[route]; !ok {
		return errs.ErrNotFound
	}
	return b.rollbackLocked(route, b.steps[route])
}
