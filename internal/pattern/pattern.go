// Package pattern implements the Pattern Store & Causal Memory (C11):
// Beta-posterior pattern confidence indexed by (task_type, signature), and
// a causal hypergraph with Tarjan cycle detection gating every new link.
// Pattern confidence scoring is grounded on the teacher's meta_learner.go
// example-weighted adaptation scoring (confidence as a function of
// accumulated outcome evidence); the causal graph's link bookkeeping is
// grounded on world_model.go's state-transition modeling, generalized
// from a single in-process world model to an arena (dense integer id)
// store per spec.md §9's remediation note.
package pattern

import (
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// PatternKey identifies a pattern by its task type and observed
// signature.
type PatternKey struct {
	TaskType  string
	Signature string
}

// Pattern is one observed (task_type, signature) outcome record.
type Pattern struct {
	Key          PatternKey
	SuccessCount int
	FailureCount int
	Confidence   float64
	LastUpdated  time.Time
}

// recencyFactor decays a pattern's ranking weight with time since its
// last update, halving every 24h.
func recencyFactor(p Pattern, now time.Time) float64 {
	if p.LastUpdated.IsZero() {
		return 1
	}
	halfLives := now.Sub(p.LastUpdated).Hours() / 24
	return math.Pow(0.5, halfLives)
}

// Store is the Beta-posterior pattern confidence index (spec.md §4.10).
type Store struct {
	mu       sync.RWMutex
	patterns map[PatternKey]*Pattern
}

func NewStore() *Store {
	return &Store{patterns: make(map[PatternKey]*Pattern)}
}

// Update records an observation's outcome and recomputes the pattern's
// calibrated confidence as the mean of a Beta(1,1)-prior posterior:
// confidence = (successes+1) / (successes+failures+2).
func (s *Store) Update(key PatternKey, success bool) Pattern {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.patterns[key]
	if !ok {
		p = &Pattern{Key: key}
		s.patterns[key] = p
	}
	if success {
		p.SuccessCount++
	} else {
		p.FailureCount++
	}
	p.Confidence = float64(p.SuccessCount+1) / float64(p.SuccessCount+p.FailureCount+2)
	p.LastUpdated = time.Now()
	return *p
}

// Query returns the top_k highest-confidence patterns for a task type,
// optionally narrowed to an exact signature, ranked by confidence ×
// recency factor (spec.md §4.10).
func (s *Store) Query(taskType, signature string, topK int) []Pattern {
	s.mu.RLock()
	defer s.mu.RUnlock()

	now := time.Now()
	var candidates []Pattern
	for key, p := range s.patterns {
		if key.TaskType != taskType {
			continue
		}
		if signature != "" && key.Signature != signature {
			continue
		}
		candidates = append(candidates, *p)
	}

	sort.Slice(candidates, func(i, j int) bool {
		si := candidates[i].Confidence * recencyFactor(candidates[i], now)
		sj := candidates[j].Confidence * recencyFactor(candidates[j], now)
		return si > sj
	})

	if topK > 0 && len(candidates) > topK {
		candidates = candidates[:topK]
	}
	return candidates
}

// Get looks up a single pattern by key.
func (s *Store) Get(key PatternKey) (Pattern, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.patterns[key]
	if !ok {
		return Pattern{}, errs.ErrNotFound
	}
	return *p, nil
}
