package reasoning

import (
	"sort"
	"strings"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// canonicalizeRoute lowercases and slash-joins a route so that
// "Agent/Retrieval" and "agent/retrieval" address the same route weight.
func canonicalizeRoute(route string) string {
	parts := strings.Split(route, "/")
	for i, p := range parts {
		parts[i] = strings.ToLower(strings.TrimSpace(p))
	}
	return strings.Join(parts, "/")
}

// canonicalizeLabels sorts labels so that label order never affects
// trajectory identity or lookups.
func canonicalizeLabels(labels []string) []string {
	out := append([]string(nil), labels...)
	sort.Strings(out)
	return out
}

// CreateTrajectory records one route execution and returns its id. It
// never fails on low quality — quality is supplied later via
// ProvideFeedback and only then decides whether the trajectory
// contributes to the route's weight update.
func (b *Bank) CreateTrajectory(route string, labels, contextIDs []string) (TrajectoryID, error) {
	if strings.TrimSpace(route) == "" {
		return "", errs.ErrTrajectoryValidation
	}
	id := TrajectoryID(newID("traj"))
	t := &Trajectory{
		ID:         id,
		Route:      canonicalizeRoute(route),
		Labels:     canonicalizeLabels(labels),
		ContextIDs: append([]string(nil), contextIDs...),
		CreatedAt:  time.Now(),
	}

	b.mu.Lock()
	b.trajectories[id] = t
	b.mu.Unlock()
	return id, nil
}

// Trajectory returns a copy of a recorded trajectory.
func (b *Bank) Trajectory(id TrajectoryID) (Trajectory, error) {
	b.mu.RLock()
	defer b.mu.RUnlock()
	t, ok := b.trajectories[id]
	if !ok {
		return Trajectory{}, errs.ErrNotFound
	}
	return *t, nil
}

// Trajectories returns up to topK trajectories recorded for route, most
// recently created first. Used by the Unified Search pattern adapter
// (spec.md §4.12, "Pattern adapter (C12 trajectory retrieval)").
func (b *Bank) Trajectories(route string, topK int) []Trajectory {
	route = canonicalizeRoute(route)
	b.mu.RLock()
	defer b.mu.RUnlock()

	var matches []Trajectory
	for _, t := range b.trajectories {
		if t.Route == route {
			matches = append(matches, *t)
		}
	}
	sort.Slice(matches, func(i, j int) bool { return matches[i].CreatedAt.After(matches[j].CreatedAt) })
	if topK > 0 && len(matches) > topK {
		matches = matches[:topK]
	}
	return matches
}
