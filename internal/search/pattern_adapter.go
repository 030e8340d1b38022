package search

import (
	"context"

	"github.com/ashgrove-systems/godagent-memory/internal/reasoning"
)

// PatternAdapter is the C12 trajectory-retrieval source: it surfaces the
// most recent trajectories recorded for the query's route, scored by
// recorded quality (spec.md §4.12, "Pattern adapter (C12 trajectory
// retrieval)"). A trajectory with no feedback yet, or one marked
// low-confidence, scores lower than a trajectory with strong feedback.
type PatternAdapter struct {
	Bank *reasoning.Bank
}

func (a *PatternAdapter) Name() string { return "pattern" }

func (a *PatternAdapter) Search(ctx context.Context, q Query, k int) (AdapterResult, error) {
	if q.Route == "" {
		return AdapterResult{}, nil
	}
	trajectories := a.Bank.Trajectories(q.Route, k)
	hits := make([]Hit, 0, len(trajectories))
	for _, t := range trajectories {
		score := t.Quality
		if score == 0 {
			score = 0.5 // no feedback recorded yet: neutral prior
		}
		if t.LowConfidence {
			score *= 0.5
		}
		hits = append(hits, Hit{
			ID:    string(t.ID),
			Score: score,
			Metadata: map[string]any{
				"route":          t.Route,
				"low_confidence": t.LowConfidence,
			},
		})
	}
	return AdapterResult{Hits: hits}, nil
}
