package reasoning

import (
	"fmt"
	"math"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

func clamp(v, lo, hi float64) float64 {
	if v < lo {
		return lo
	}
	if v > hi {
		return hi
	}
	return v
}

// ProvideFeedback scores a trajectory's outcome and, quality permitting,
// updates its route's learned weight (spec.md §4.11):
//
//	reward r    = 2*quality - 1
//	delta       = eta*r - lambda*(weight - init_weight)
//	candidate   = clamp(weight + delta, weight_min, weight_max)
//	drift       = |candidate - checkpoint_weight|
//
// Quality below cfg.QualityFloor marks the trajectory Low-confidence and
// returns nil without touching the weight — the quality gate governs
// trajectory inclusion, never feedback acceptance. Candidates whose drift
// reaches RejectThreshold are rejected with a *errs.DriftExceededError;
// two consecutive rejections auto-rolls the route back to its last
// checkpoint and flags it as cooling.
func (b *Bank) ProvideFeedback(id TrajectoryID, quality float64) error {
	if quality < 0 || quality > 1 {
		return fmt.Errorf("quality %.4f out of [0,1]: %w", quality, errs.ErrFeedbackValidation)
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	t, ok := b.trajectories[id]
	if !ok {
		return errs.ErrNotFound
	}
	t.Quality = quality

	if quality < b.cfg.QualityFloor {
		t.LowConfidence = true
		return nil
	}

	route := t.Route
	rw := b.getOrInitWeightLocked(route)
	if rw.Cooling {
		return fmt.Errorf("route %q is cooling after repeated rejected updates: %w", route, errs.ErrWeightPersistence)
	}

	r := 2*quality - 1
	delta := b.cfg.LearningRate*r - b.cfg.Regularization*(rw.Weight-rw.InitWeight)
	candidate := clamp(rw.Weight+delta, b.cfg.WeightMin, b.cfg.WeightMax)
	drift := math.Abs(candidate - rw.CheckpointWeight)

	b.steps[route]++
	step := b.steps[route]

	if drift >= b.cfg.RejectThreshold {
		rw.ConsecutiveFailures++
		driftErr := &errs.DriftExceededError{Route: route, Drift: drift, Threshold: b.cfg.RejectThreshold}
		if rw.ConsecutiveFailures >= 2 {
			if err := b.rollbackLocked(route, step); err != nil {
				log.Warn().Str("route", route).Err(err).Msg("route rollback after repeated drift rejections failed")
			}
			rw.Cooling = true
			log.Warn().Str("route", route).Msg("route flagged cooling after repeated drift rejections")
		}
		return driftErr
	}

	if drift >= b.cfg.AlertThreshold {
		log.Warn().Str("route", route).Float64("drift", drift).Float64("alert_threshold", b.cfg.AlertThreshold).
			Msg("route weight drift crossed alert threshold")
	}

	rw.ConsecutiveFailures = 0
	rw.Weight = candidate
	rw.Fisher = b.cfg.FisherDecay*rw.Fisher + (1-b.cfg.FisherDecay)*r*r
	rw.UpdatedAt = time.Now()

	if step%b.cfg.CheckpointInterval == 0 {
		b.checkpointLocked(route, "periodic", step)
	}
	return nil
}

// Reset clears the cooling flag on a route so future feedback can resume
// updating its weight. Used once an operator (or a health check) has
// confirmed the upstream cause of repeated drift rejections is resolved.
func (b *Bank) Reset(route string) {
	route = canonicalizeRoute(route)
	b.mu.Lock()
	defer b.mu.Unlock()
	if rw, ok := b.weights[route]; ok {
		rw.Cooling = false
		rw.ConsecutiveFailures = 0
	}
}
