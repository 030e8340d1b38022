package vectorstore

import (
	"math"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// Int8Quantizer implements per-vector int8 quantization (C4): a symmetric
// scale derived from the vector's max magnitude, optionally after
// subtracting a mean offset (one mean over all of the vector's components,
// stored once per component). Generalized from the teacher's
// ProductQuantizer (internal/memory/advanced_structures.go), collapsing
// its multi-subvector codebook down to the single-scale scalar case the
// spec calls for, with the quality gate exposed as ValidateQuality.
type Int8Quantizer struct {
	dimension         int
	perComponentOffset bool
	qualityThreshold  float64
}

// NewInt8Quantizer builds a quantizer for vectors of the given dimension.
// qualityThreshold is the maximum acceptable mean(|x-x̂|)/mean(|x|) on the
// sample; ValidateQuality returns ErrReconstructionQuality when exceeded.
func NewInt8Quantizer(dimension int, perComponentOffset bool, qualityThreshold float64) *Int8Quantizer {
	if qualityThreshold <= 0 {
		qualityThreshold = 0.05
	}
	return &Int8Quantizer{dimension: dimension, perComponentOffset: perComponentOffset, qualityThreshold: qualityThreshold}
}

// Int8Code is one quantized vector: codes plus the scale/offset needed to
// reconstruct it.
type Int8Code struct {
	Codes  []int8
	Scale  float32
	Offset []float32 // length 0 (symmetric) or dimension (per-component)
}

// Encode quantizes v: offset = 0 (symmetric) or the mean of v's components,
// scale = max(|x-offset|)/127, codes = round((x-offset)/scale).
func (q *Int8Quantizer) Encode(v []float32) (Int8Code, error) {
	if len(v) != q.dimension {
		return Int8Code{}, &errs.DimensionError{Expected: q.dimension, Actual: len(v)}
	}

	var offset []float32
	centered := v
	if q.perComponentOffset {
		offset = make([]float32, len(v))
		// A single global offset (component mean) keeps the contract
		// simple while still draining DC bias from the signal; true
		// per-component offsets degenerate to storing the vector itself.
		var mean float32
		for _, x := range v {
			mean += x
		}
		mean /= float32(len(v))
		for i := range offset {
			offset[i] = mean
		}
		centered = make([]float32, len(v))
		for i, x := range v {
			centered[i] = x - mean
		}
	}

	var maxAbs float32
	for _, x := range centered {
		a := x
		if a < 0 {
			a = -a
		}
		if a > maxAbs {
			maxAbs = a
		}
	}
	scale := maxAbs / 127
	if scale == 0 {
		scale = 1
	}

	codes := make([]int8, len(v))
	for i, x := range centered {
		c := math.Round(float64(x / scale))
		if c > 127 {
			c = 127
		}
		if c < -127 {
			c = -127
		}
		codes[i] = int8(c)
	}
	return Int8Code{Codes: codes, Scale: scale, Offset: offset}, nil
}

// Decode reconstructs an approximate float32 vector: x ≈ q·scale + offset.
func (q *Int8Quantizer) Decode(code Int8Code) []float32 {
	out := make([]float32, len(code.Codes))
	for i, c := range code.Codes {
		out[i] = float32(c) * code.Scale
		if len(code.Offset) == len(out) {
			out[i] += code.Offset[i]
		}
	}
	return out
}

// ReconstructionError computes mean(|x - x̂|)/mean(|x|) for a single vector.
func (q *Int8Quantizer) ReconstructionError(original, reconstructed []float32) float64 {
	var numerator, denominator float64
	for i := range original {
		diff := float64(original[i] - reconstructed[i])
		if diff < 0 {
			diff = -diff
		}
		numerator += diff
		o := float64(original[i])
		if o < 0 {
			o = -o
		}
		denominator += o
	}
	if denominator == 0 {
		return 0
	}
	return numerator / denominator
}

// ValidateQuality encodes and decodes every vector in sample and reports
// whether the average reconstruction error is within qualityThreshold. A
// quantizer that fails this check must not be installed for a tier —
// training rejects rather than silently degrading recall.
func (q *Int8Quantizer) ValidateQuality(sample [][]float32) (float64, error) {
	if len(sample) == 0 {
		return 0, errs.ErrCodecNotTrained
	}
	var total float64
	for _, v := range sample {
		code, err := q.Encode(v)
		if err != nil {
			return 0, err
		}
		recon := q.Decode(code)
		total += q.ReconstructionError(v, recon)
	}
	avg := total / float64(len(sample))
	if avg > q.qualityThreshold {
		return avg, errs.ErrReconstructionQuality
	}
	return avg, nil
}
