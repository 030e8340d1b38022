package search

import (
	"sync"
	"time"
)

type breakerState int

const (
	breakerClosed breakerState = iota
	breakerOpen
	breakerHalfOpen
)

// BreakerConfig tunes the circuit breaker guarding GNN query enhancement
// (spec.md §4.12/§5): Threshold consecutive failures trip it open,
// ResetTimeout auto-demotes it to half-open, and SuccessesToClose
// successful trials in half-open close it again.
type BreakerConfig struct {
	Threshold        int
	ResetTimeout     time.Duration
	SuccessesToClose int
}

func (c BreakerConfig) withDefaults() BreakerConfig {
	if c.Threshold == 0 {
		c.Threshold = 3
	}
	if c.ResetTimeout == 0 {
		c.ResetTimeout = 5 * time.Second
	}
	if c.SuccessesToClose == 0 {
		c.SuccessesToClose = 2
	}
	return c
}

// CircuitBreaker is a standard three-state breaker: Closed allows calls
// and counts failures, Open rejects calls until ResetTimeout elapses,
// HalfOpen allows trial calls and needs SuccessesToClose consecutive
// successes to close, any failure reopening it immediately.
type CircuitBreaker struct {
	mu           sync.Mutex
	state        breakerState
	cfg          BreakerConfig
	failCount    int
	successCount int
	openedAt     time.Time
}

func NewCircuitBreaker(cfg BreakerConfig) *CircuitBreaker {
	return &CircuitBreaker{cfg: cfg.withDefaults(), state: breakerClosed}
}

// Allow reports whether a call may proceed, advancing Open to HalfOpen
// once ResetTimeout has elapsed.
func (b *CircuitBreaker) Allow() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerClosed, breakerHalfOpen:
		return true
	case breakerOpen:
		if time.Since(b.openedAt) > b.cfg.ResetTimeout {
			b.state = breakerHalfOpen
			b.failCount = 0
			b.successCount = 0
			return true
		}
		return false
	}
	return true
}

func (b *CircuitBreaker) OnSuccess() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerHalfOpen:
		b.successCount++
		if b.successCount >= b.cfg.SuccessesToClose {
			b.state = breakerClosed
			b.failCount = 0
			b.successCount = 0
		}
	case breakerClosed:
		b.failCount = 0
	}
}

func (b *CircuitBreaker) OnFailure() {
	b.mu.Lock()
	defer b.mu.Unlock()
	switch b.state {
	case breakerHalfOpen:
		b.state = breakerOpen
		b.openedAt = time.Now()
		b.failCount = 0
		b.successCount = 0
	case breakerClosed:
		b.failCount++
		if b.failCount >= b.cfg.Threshold {
			b.state = breakerOpen
			b.openedAt = time.Now()
		}
	}
}

// IsOpen reports whether the breaker is currently rejecting calls
// without advancing past ResetTimeout (read-only introspection, e.g. for
// status endpoints).
func (b *CircuitBreaker) IsOpen() bool {
	b.mu.Lock()
	defer b.mu.Unlock()
	return b.state == breakerOpen && time.Since(b.openedAt) <= b.cfg.ResetTimeout
}
