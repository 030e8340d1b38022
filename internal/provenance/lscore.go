package provenance

import (
	"math"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

const (
	defaultLambda         = 0.1
	defaultDepthSoftLimit  = 3
	defaultDomainThreshold = 0.6
)

// LScoreConfig holds the tunables for ComputeLScore (spec.md §4.8).
type LScoreConfig struct {
	Lambda        float64
	DepthSoftLimit int
}

func (c *LScoreConfig) applyDefaults() {
	if c.Lambda <= 0 {
		c.Lambda = defaultLambda
	}
	if c.DepthSoftLimit <= 0 {
		c.DepthSoftLimit = defaultDepthSoftLimit
	}
}

// ComputeLScore scores a provenance chain given its steps and the
// relevances of the sources it cites:
//   G = (∏ confidence_i)^(1/n)            — geometric mean of step confidences
//   A = mean(r_j)                          — arithmetic mean of source relevances
//   depth_factor = 1 / (1 + λ·max(0, n-depth_soft_limit))
//   L = G · A · depth_factor, clipped to [0,1]
func ComputeLScore(steps []DerivationStep, sourceRelevances []float64, cfg LScoreConfig) (LScoreResult, error) {
	cfg.applyDefaults()
	if len(steps) == 0 {
		return LScoreResult{}, errs.ErrProvenanceValidation
	}
	if len(sourceRelevances) == 0 {
		return LScoreResult{}, errs.ErrProvenanceValidation
	}

	n := len(steps)
	logSum := 0.0
	for _, step := range steps {
		if step.Confidence <= 0 || step.Confidence > 1 {
			return LScoreResult{}, errs.ErrProvenanceValidation
		}
		logSum += math.Log(step.Confidence)
	}
	g := math.Exp(logSum / float64(n))

	var sum float64
	for _, r := range sourceRelevances {
		sum += r
	}
	a := sum / float64(len(sourceRelevances))

	over := n - cfg.DepthSoftLimit
	if over < 0 {
		over = 0
	}
	depthFactor := 1.0 / (1.0 + cfg.Lambda*float64(over))

	score := g * a * depthFactor
	if score < 0 {
		score = 0
	}
	if score > 1 {
		score = 1
	}

	return LScoreResult{Score: score, Geometric: g, Arithmetic: a, DepthFactor: depthFactor}, nil
}

// ValidateLScore checks result against a per-domain threshold table
// (default 0.6), returning an LScoreRejectionError when the score falls
// short.
func ValidateLScore(result LScoreResult, domain string, thresholds map[string]float64) error {
	threshold := defaultDomainThreshold
	if t, ok := thresholds[domain]; ok {
		threshold = t
	}
	if result.Score < threshold {
		return &errs.LScoreRejectionError{Domain: domain, Score: result.Score, Threshold: threshold}
	}
	return nil
}
