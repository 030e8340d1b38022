// Package compression implements the 5-tier adaptive compression manager
// (C5): a heat-score scheduler that migrates vectors Hot→Warm→Cool→Cold→Frozen
// under access pressure, strictly forward, with on-access decompression back
// to float32. The heat ledger and scheduler loop are generalized from the
// teacher's internal/memory/consolidator.go periodic-sweep shape (timer
// driven, sorts by a scalar score, acts on the tail).
package compression

import "github.com/ashgrove-systems/godagent-memory/internal/vectorstore"

// TierSpec describes one compression tier's format, footprint, and the
// heat window that schedules vectors into and out of it (spec.md §3).
type TierSpec struct {
	Tier           vectorstore.Tier
	BytesPerVector func(dim int) int
	MinHeat        float64 // heat must fall below this to be a candidate for demotion out of this tier
	MaxHeat        float64
	MaxError       float64 // max tolerated mean(|x-x̂|)/mean(|x|)
}

// DefaultTierSpecs returns the canonical 5-tier ladder.
func DefaultTierSpecs() []TierSpec {
	return []TierSpec{
		{Tier: vectorstore.TierHot, BytesPerVector: func(d int) int { return d * 4 }, MinHeat: 0.65, MaxHeat: 1.0, MaxError: 0},
		{Tier: vectorstore.TierWarm, BytesPerVector: func(d int) int { return d * 2 }, MinHeat: 0.35, MaxHeat: 0.65, MaxError: 0.02},
		{Tier: vectorstore.TierCool, BytesPerVector: func(d int) int { return d + 8 }, MinHeat: 0.15, MaxHeat: 0.35, MaxError: 0.08},
		{Tier: vectorstore.TierCold, BytesPerVector: func(d int) int { return d/2 + 8 }, MinHeat: 0.05, MaxHeat: 0.15, MaxError: 0.18},
		{Tier: vectorstore.TierFrozen, BytesPerVector: func(d int) int { return d/8 + 8 }, MinHeat: 0.0, MaxHeat: 0.05, MaxError: 0.45},
	}
}

// Next returns the tier immediately below cur in the forward order, or
// false if cur is already Frozen.
func Next(cur vectorstore.Tier) (vectorstore.Tier, bool) {
	if cur >= vectorstore.TierFrozen {
		return cur, false
	}
	return cur + 1, true
}

// IsForward reports whether to is strictly forward of from, per the
// canonical tier order (spec.md §3, §8).
func IsForward(from, to vectorstore.Tier) bool {
	return to.Index() > from.Index()
}
