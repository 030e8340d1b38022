// Package vectorstore implements the content-addressed vector store (C2),
// its HNSW index backend (C3), and the per-vector int8 quantizer (C4).
//
// The store owns all vector bytes; a configured Backend (flat or HNSW) owns
// only ids and whatever side-structures it needs for sub-linear search. The
// store is generalized from the teacher's sketch/filter structures
// (internal/memory/advanced_structures.go) for locking discipline, and its
// HNSW backend is rebuilt from the teacher's dropped
// internal/memory/sublinear_retriever_*.go snapshot.
package vectorstore

import (
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
)

// VectorID is an opaque, caller-assigned identifier for a stored vector.
type VectorID string

// Tier is the compression tier a record currently lives at. Tiers are
// ordered Hot < Warm < Cool < Cold < Frozen; transitions are strictly
// forward (see internal/compression).
type Tier int

const (
	TierHot Tier = iota
	TierWarm
	TierCool
	TierCold
	TierFrozen
)

func (t Tier) String() string {
	switch t {
	case TierHot:
		return "hot"
	case TierWarm:
		return "warm"
	case TierCool:
		return "cool"
	case TierCold:
		return "cold"
	case TierFrozen:
		return "frozen"
	default:
		return "unknown"
	}
}

// Index returns the tier's position in the canonical forward order, used by
// compression to reject backward transitions.
func (t Tier) Index() int { return int(t) }

// ValueKind tags the scalar type held by a Value.
type ValueKind int

const (
	KindString ValueKind = iota
	KindNumber
	KindBool
)

// Value is a typed scalar in a Metadata map. This replaces the free-form
// "unknown" union the spec's source pattern used (spec.md §9, Design Notes)
// with an explicit tagged union plus an escape hatch on Metadata itself.
type Value struct {
	Kind ValueKind
	Str  string
	Num  float64
	Bool bool
}

func StringValue(s string) Value { return Value{Kind: KindString, Str: s} }
func NumberValue(n float64) Value { return Value{Kind: KindNumber, Num: n} }
func BoolValue(b bool) Value       { return Value{Kind: KindBool, Bool: b} }

// Metadata is a typed map of scalar fields attached to a vector record,
// plus an opaque-bytes escape hatch for payloads callers don't want the
// store to interpret (spec.md §9).
type Metadata struct {
	Fields map[string]Value
	Extra  []byte
}

// NewMetadata returns an empty, ready-to-use Metadata.
func NewMetadata() Metadata {
	return Metadata{Fields: make(map[string]Value)}
}

func (m Metadata) Clone() Metadata {
	out := Metadata{Fields: make(map[string]Value, len(m.Fields))}
	for k, v := range m.Fields {
		out.Fields[k] = v
	}
	if m.Extra != nil {
		out.Extra = append([]byte(nil), m.Extra...)
	}
	return out
}

// Record is a stored vector and its bookkeeping. Vector always holds the
// current logical float32 representation regardless of tier: compression
// never leaks a compressed dtype to a caller (spec.md §4.4).
type Record struct {
	ID        VectorID
	Vector    []float32
	Metadata  Metadata
	Tier      Tier
	Bytes     int // physical footprint at the current tier, for accounting
	CreatedAt time.Time
	UpdatedAt time.Time
}

func (r *Record) clone() *Record {
	cp := *r
	cp.Vector = append([]float32(nil), r.Vector...)
	cp.Metadata = r.Metadata.Clone()
	return &cp
}

// Hit is one ranked result from Search.
type Hit struct {
	ID       VectorID
	Score    float32
	Metadata Metadata
}

// Filter decides whether a candidate record should be considered during
// search, evaluated on the backend's scored candidates before ranking and
// the top-k cut.
type Filter func(Metadata) bool

// SearchOptions configures a Search call.
type SearchOptions struct {
	Metric vectormath.Metric
	Filter Filter
}

// AccessNotifier is implemented by the compression manager (internal/compression)
// and, optionally, the observability bus. The store calls it on every
// logical access so heat tracking and metrics stay decoupled from storage.
type AccessNotifier interface {
	RecordAccess(id VectorID)
}

// TransitionHook is the shape of a tier-transition callback. Store has no
// method to register one and never calls it; tier changes reach the store
// only through ApplyTierTransition.
type TransitionHook interface {
	NotifyTransition(id VectorID, from, to Tier)
}
