// Package shadow implements the Shadow Validator (C10): an adversarial
// retrieval pass over a candidate answer's conclusion, classifying the
// documents that survive an "exclude this conclusion's own cluster"
// filter by evidence type, weighting them by credibility, and reducing
// that to a verdict. The evidence-classification and credibility-weighted
// scoring shape is grounded on
// b8a913fb_hurttlocker-cortex__internal-search-search.go's multi-source
// result classification (class boost multipliers, weighted score fusion),
// generalized from ranking boosts to a refutation-strength verdict.
package shadow

import (
	"context"
	"fmt"
	"sort"
)

// EvidenceKind classifies a piece of retrieved evidence (spec.md §4.9).
type EvidenceKind string

const (
	EvidenceAcademic  EvidenceKind = "academic"
	EvidenceOfficial  EvidenceKind = "official"
	EvidenceBlog      EvidenceKind = "blog"
	EvidenceAnecdotal EvidenceKind = "anecdotal"
)

// credibilityWeights mirrors the teacher's classBoostMultipliers table:
// a fixed per-kind weight, conservative at the low-credibility end.
var credibilityWeights = map[EvidenceKind]float64{
	EvidenceAcademic:  1.0,
	EvidenceOfficial:  0.9,
	EvidenceBlog:      0.5,
	EvidenceAnecdotal: 0.25,
}

// RawDocument is one document returned by the adversarial retrieval, not
// yet weighted.
type RawDocument struct {
	Content    string
	Kind       EvidenceKind
	Similarity float64 // similarity to the refutation query, in [0,1]
}

// Evidence is a RawDocument after credibility weighting.
type Evidence struct {
	Document           RawDocument
	Credibility        float64
	RefutationStrength float64 // Similarity * Credibility
}

// Verdict is the Shadow Validator's final call on a candidate answer.
type Verdict string

const (
	VerdictInnocent             Verdict = "innocent"
	VerdictGuilty               Verdict = "guilty"
	VerdictInsufficientEvidence Verdict = "insufficient_evidence"
)

// Config tunes verdict thresholds and the minimum sample size needed for
// a confident call.
type Config struct {
	MinSampleSize     int
	GuiltyThreshold   float64 // refutation score at or above this => Guilty
	InnocentThreshold float64 // refutation score at or below this => Innocent
}

func (c *Config) applyDefaults() {
	if c.MinSampleSize <= 0 {
		c.MinSampleSize = 3
	}
	if c.GuiltyThreshold <= 0 {
		c.GuiltyThreshold = 0.6
	}
	if c.InnocentThreshold <= 0 {
		c.InnocentThreshold = 0.3
	}
}

// Retriever issues the adversarial retrieval: evidence similar to the
// candidate's conclusion embedding but drawn from outside its own cluster
// (spec.md §4.9: "adversarial filter NOT conclusion_embedding_cluster").
type Retriever interface {
	RetrieveExcluding(ctx context.Context, conclusionEmbedding []float32, clusterID string, k int) ([]RawDocument, error)
}

// Result is the outcome of a Validate call.
type Result struct {
	Verdict         Verdict
	Evidence        []Evidence
	RefutationScore float64
	Confidence      float64
}

// Validate runs the adversarial retrieval, classifies and credibility-
// weights what comes back, and reduces that to a verdict (spec.md §4.9).
func Validate(ctx context.Context, retriever Retriever, conclusionEmbedding []float32, clusterID string, k int, cfg Config) (Result, error) {
	cfg.applyDefaults()

	docs, err := retriever.RetrieveExcluding(ctx, conclusionEmbedding, clusterID, k)
	if err != nil {
		return Result{}, fmt.Errorf("adversarial retrieval: %w", err)
	}

	evidence := weighEvidence(docs)
	score := refutationScore(evidence)
	confidence := confidenceBand(evidence, cfg.MinSampleSize)

	verdict := VerdictInsufficientEvidence
	if len(evidence) >= cfg.MinSampleSize {
		switch {
		case score >= cfg.GuiltyThreshold:
			verdict = VerdictGuilty
		case score <= cfg.InnocentThreshold:
			verdict = VerdictInnocent
		default:
			verdict = VerdictInsufficientEvidence
		}
	}

	return Result{Verdict: verdict, Evidence: evidence, RefutationScore: score, Confidence: confidence}, nil
}

// weighEvidence assigns a credibility weight to every document and
// derives its refutation strength, ordered strongest-first.
func weighEvidence(docs []RawDocument) []Evidence {
	evidence := make([]Evidence, 0, len(docs))
	for _, d := range docs {
		credibility, ok := credibilityWeights[d.Kind]
		if !ok {
			credibility = credibilityWeights[EvidenceAnecdotal]
		}
		evidence = append(evidence, Evidence{
			Document:           d,
			Credibility:        credibility,
			RefutationStrength: d.Similarity * credibility,
		})
	}
	sort.Slice(evidence, func(i, j int) bool {
		return evidence[i].RefutationStrength > evidence[j].RefutationStrength
	})
	return evidence
}

// refutationScore is the credibility-weighted mean refutation strength
// across all evidence.
func refutationScore(evidence []Evidence) float64 {
	if len(evidence) == 0 {
		return 0
	}
	var weightedSum, weightTotal float64
	for _, e := range evidence {
		weightedSum += e.RefutationStrength * e.Credibility
		weightTotal += e.Credibility
	}
	if weightTotal == 0 {
		return 0
	}
	return weightedSum / weightTotal
}

// confidenceBand derives a [0,1] confidence from sample size (more
// evidence = more confident, saturating at minSampleSize) and credibility
// variance (more disagreement across source quality = less confident).
func confidenceBand(evidence []Evidence, minSampleSize int) float64 {
	if len(evidence) == 0 {
		return 0
	}
	sizeFactor := float64(len(evidence)) / float64(minSampleSize)
	if sizeFactor > 1 {
		sizeFactor = 1
	}

	var mean float64
	for _, e := range evidence {
		mean += e.Credibility
	}
	mean /= float64(len(evidence))

	var variance float64
	for _, e := range evidence {
		d := e.Credibility - mean
		variance += d * d
	}
	variance /= float64(len(evidence))

	confidence := sizeFactor * (1 - variance)
	if confidence < 0 {
		confidence = 0
	}
	if confidence > 1 {
		confidence = 1
	}
	return confidence
}
