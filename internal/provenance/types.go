// Package provenance implements the Provenance Store (C9): sources and
// derivation chains, L-Score computation, and citation-path traversal. The
// repository-interface shape (store/get/list behind a narrow type, one
// concrete sqlite-backed implementation) is grounded on
// db-repository-interfaces.go's DocumentRepository; persistence itself
// follows the teacher's database/sql + modernc.org/sqlite idiom
// (internal/memory/store.go).
package provenance

import "time"

// SourceID and ProvenanceID both follow the {prefix}_{epoch_ms}_{rand}
// pattern (spec.md §4.8) so a caller can tell the two id spaces apart at a
// glance without a schema lookup.
type SourceID string
type ProvenanceID string

// Source is one cited piece of evidence. Domain and Tags are not part of
// spec.md's provenance data model proper; they back the daemon's
// `knowledge.*` RPCs (spec.md §4.14), which need a source classified and
// searchable independent of any provenance chain that later cites it.
type Source struct {
	ID          SourceID
	Title       string
	URI         string
	Kind        string // e.g. academic, official, blog, anecdotal
	Relevance   float64
	Domain      string
	Tags        []string
	RetrievedAt time.Time
}

// DerivationStep is one inference step in a provenance chain.
type DerivationStep struct {
	Operation  string
	Confidence float64 // must be in (0, 1]
	Timestamp  time.Time
}

// Provenance is a derivation chain: the sources it drew on, the steps
// applied to them, and an optional parent this chain was derived from
// (spec.md §4.8 "Citation path").
type Provenance struct {
	ID         ProvenanceID
	Domain     string
	Sources    []SourceID
	Steps      []DerivationStep
	ParentID   ProvenanceID // zero value means no parent
	CreatedAt  time.Time
}

// LScoreResult is the outcome of scoring a provenance chain.
type LScoreResult struct {
	Score       float64
	Geometric   float64 // G: geometric mean of step confidences
	Arithmetic  float64 // A: arithmetic mean of source relevances
	DepthFactor float64
}

// CitationEntry is one source surfaced by a citation-path traversal, with
// its contribution to the originating chain's score.
type CitationEntry struct {
	Source       Source
	ProvenanceID ProvenanceID
	Contribution float64
}
