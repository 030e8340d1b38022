// Package observability implements the Observability Bus & Metrics (C14):
// a bounded, non-blocking event queue and the Prometheus collector set
// exposed on the daemon's /metrics endpoint. The bus's bounded,
// drop-oldest-on-full queue is original to this repository (spec.md §5
// has no teacher analogue for a lock-free event queue); the structured
// logger and the metrics/logging pairing are grounded on
// jhkimqd-chaos-utils's pkg/reporting/logger.go and
// pkg/monitoring/collector shape.
package observability

import (
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
)

// Event is one observability record (spec.md §6, "Observability
// protocol"): `{ id: "evt_{ms}_{rand}", timestamp_ms, component,
// operation, status, metadata }`.
type Event struct {
	ID          string
	TimestampMs int64
	Component   string
	Operation   string
	Status      string
	Metadata    map[string]any
}

func newEventID() string {
	rnd := strings.ReplaceAll(uuid.NewString(), "-", "")[:12]
	return fmt.Sprintf("evt_%d_%s", time.Now().UnixMilli(), rnd)
}

// NewEvent stamps an id and timestamp for a caller-assembled event.
func NewEvent(component, operation, status string, metadata map[string]any) Event {
	return Event{
		ID:          newEventID(),
		TimestampMs: time.Now().UnixMilli(),
		Component:   component,
		Operation:   operation,
		Status:      status,
		Metadata:    metadata,
	}
}
