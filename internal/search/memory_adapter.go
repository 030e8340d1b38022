package search

import (
	"context"
	"fmt"

	"github.com/ashgrove-systems/godagent-memory/internal/pattern"
)

// MemoryAdapter is the C11 pattern-store source: it surfaces confidence-
// ranked patterns matching the query's task type / signature (spec.md
// §4.12, "Memory adapter (C11 pattern match)").
type MemoryAdapter struct {
	Store *pattern.Store
}

func (a *MemoryAdapter) Name() string { return "memory" }

func (a *MemoryAdapter) Search(ctx context.Context, q Query, k int) (AdapterResult, error) {
	if q.TaskType == "" {
		return AdapterResult{}, nil
	}
	matches := a.Store.Query(q.TaskType, q.Signature, k)
	hits := make([]Hit, 0, len(matches))
	for _, p := range matches {
		hits = append(hits, Hit{
			ID:    fmt.Sprintf("%s/%s", p.Key.TaskType, p.Key.Signature),
			Score: p.Confidence,
			Metadata: map[string]any{
				"success_count": p.SuccessCount,
				"failure_count": p.FailureCount,
			},
		})
	}
	return AdapterResult{Hits: hits}, nil
}
