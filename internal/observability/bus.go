package observability

import "sync/atomic"

// Bus is a bounded event queue: Emit never blocks the caller, and once
// full the oldest queued event is dropped to make room for the new one
// (spec.md §5, "Observability Bus: lock-free queue bounded by BUS_QUEUE;
// FIFO eviction when full; emit is non-blocking even when the daemon is
// absent").
type Bus struct {
	ch      chan Event
	dropped uint64
}

// NewBus creates a Bus with the given queue capacity.
func NewBus(capacity int) *Bus {
	if capacity <= 0 {
		capacity = 1024
	}
	return &Bus{ch: make(chan Event, capacity)}
}

// Emit enqueues e without blocking. If the queue is full, the oldest
// event is dropped (best-effort: a concurrent drain may win the race,
// in which case Emit's own send still succeeds on the now-free slot).
func (b *Bus) Emit(e Event) {
	select {
	case b.ch <- e:
		return
	default:
	}
	select {
	case <-b.ch:
		atomic.AddUint64(&b.dropped, 1)
	default:
	}
	select {
	case b.ch <- e:
	default:
		atomic.AddUint64(&b.dropped, 1)
	}
}

// Events exposes the receive side for a drain loop (e.g. the daemon's
// NDJSON event forwarder).
func (b *Bus) Events() <-chan Event { return b.ch }

// Dropped returns the total count of events evicted or discarded due to
// backpressure.
func (b *Bus) Dropped() uint64 { return atomic.LoadUint64(&b.dropped) }

// Len reports the number of events currently queued.
func (b *Bus) Len() int { return len(b.ch) }
