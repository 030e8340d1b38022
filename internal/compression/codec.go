package compression

import (
	"math"
	"sync"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// Codec encodes/decodes a float32 vector into one tier's physical format.
// A codec may need training (PQ8/PQ4); CodecNotTrained is returned by
// Encode until enough sample vectors have been seen.
type Codec interface {
	Encode(v []float32) (payload []byte, err error)
	Decode(payload []byte, dim int) ([]float32, error)
}

// float16Codec stores each component as an IEEE 754 half-precision float.
type float16Codec struct{}

func (float16Codec) Encode(v []float32) ([]byte, error) {
	out := make([]byte, len(v)*2)
	for i, x := range v {
		h := float32ToFloat16(x)
		out[2*i] = byte(h)
		out[2*i+1] = byte(h >> 8)
	}
	return out, nil
}

func (float16Codec) Decode(payload []byte, dim int) ([]float32, error) {
	if len(payload) != dim*2 {
		return nil, errs.ErrCorruptRecord
	}
	out := make([]float32, dim)
	for i := 0; i < dim; i++ {
		h := uint16(payload[2*i]) | uint16(payload[2*i+1])<<8
		out[i] = float16ToFloat32(h)
	}
	return out, nil
}

func float32ToFloat16(f float32) uint16 {
	bits := math.Float32bits(f)
	sign := uint16((bits >> 16) & 0x8000)
	exp := int32((bits>>23)&0xFF) - 127 + 15
	mantissa := bits & 0x7FFFFF

	if exp <= 0 {
		return sign // underflow flushes to signed zero; no half subnormals are produced
	}
	if exp >= 0x1F {
		return sign | 0x7C00 // overflow to infinity
	}
	return sign | uint16(exp)<<10 | uint16(mantissa>>13)
}

func float16ToFloat32(h uint16) float32 {
	sign := uint32(h&0x8000) << 16
	exp := uint32(h>>10) & 0x1F
	mantissa := uint32(h & 0x3FF)

	if exp == 0 {
		if mantissa == 0 {
			return math.Float32frombits(sign)
		}
		// subnormal half -> normalize
		for mantissa&0x400 == 0 {
			mantissa <<= 1
			exp--
		}
		exp++
		mantissa &= 0x3FF
	} else if exp == 0x1F {
		return math.Float32frombits(sign | 0x7F800000 | mantissa<<13)
	}
	exp = exp - 15 + 127
	return math.Float32frombits(sign | exp<<23 | mantissa<<13)
}

// binaryCodec stores one sign bit per component (the Frozen tier).
// Decode reconstructs a unit vector of ±1/√dim so it round-trips through
// the dimension's validator as a legal, if low-fidelity, normalized vector.
type binaryCodec struct{}

func (binaryCodec) Encode(v []float32) ([]byte, error) {
	out := make([]byte, (len(v)+7)/8)
	for i, x := range v {
		if x >= 0 {
			out[i/8] |= 1 << uint(i%8)
		}
	}
	return out, nil
}

func (binaryCodec) Decode(payload []byte, dim int) ([]float32, error) {
	if len(payload) != (dim+7)/8 {
		return nil, errs.ErrCorruptRecord
	}
	out := make([]float32, dim)
	mag := float32(1 / math.Sqrt(float64(dim)))
	for i := 0; i < dim; i++ {
		if payload[i/8]&(1<<uint(i%8)) != 0 {
			out[i] = mag
		} else {
			out[i] = -mag
		}
	}
	return out, nil
}

// pqCodec implements product quantization with a trainable per-subvector
// codebook (Cool=256 centroids/8-bit codes, Cold=16 centroids/4-bit codes),
// ported from the teacher's ProductQuantizer
// (internal/memory/advanced_structures.go) and generalized to either code
// size.
type pqCodec struct {
	mu            sync.RWMutex
	dimension     int
	numSubvectors int
	subDim        int
	numCentroids  int // 256 for PQ8, 16 for PQ4
	centroids     [][][]float32
	trained       bool
	minTraining   int
}

func newPQCodec(dimension, numCentroids, minTrainingSize int) *pqCodec {
	numSubvectors := gcdPQ(dimension, 8)
	if numSubvectors == 0 {
		numSubvectors = 1
	}
	subDim := dimension / numSubvectors
	centroids := make([][][]float32, numSubvectors)
	for m := range centroids {
		centroids[m] = make([][]float32, numCentroids)
		for k := range centroids[m] {
			centroids[m][k] = make([]float32, subDim)
		}
	}
	return &pqCodec{
		dimension:     dimension,
		numSubvectors: numSubvectors,
		subDim:        subDim,
		numCentroids:  numCentroids,
		centroids:     centroids,
		minTraining:   minTrainingSize,
	}
}

func gcdPQ(a, b int) int {
	for b != 0 {
		a, b = b, a%b
	}
	return a
}

// Train fits the codebook via k-means (Lloyd's algorithm), rejecting a
// sample smaller than minTrainingSize (spec.md §3 PQ codebook).
func (p *pqCodec) Train(vectors [][]float32, iterations int) error {
	if len(vectors) < p.minTraining {
		return errs.ErrCodecNotTrained
	}
	p.mu.Lock()
	defer p.mu.Unlock()

	for m := 0; m < p.numSubvectors; m++ {
		start := m * p.subDim
		end := start + p.subDim
		subs := make([][]float32, len(vectors))
		for i, v := range vectors {
			subs[i] = v[start:end]
		}
		for k := 0; k < p.numCentroids && k < len(subs); k++ {
			copy(p.centroids[m][k], subs[k%len(subs)])
		}
		for iter := 0; iter < iterations; iter++ {
			assign := make([]int, len(subs))
			for i, sv := range subs {
				best, bestDist := 0, float32(math.MaxFloat32)
				for k := 0; k < p.numCentroids; k++ {
					d := sqDist(sv, p.centroids[m][k])
					if d < bestDist {
						bestDist, best = d, k
					}
				}
				assign[i] = best
			}
			sums := make([][]float32, p.numCentroids)
			counts := make([]int, p.numCentroids)
			for k := range sums {
				sums[k] = make([]float32, p.subDim)
			}
			for i, sv := range subs {
				k := assign[i]
				counts[k]++
				for d := 0; d < p.subDim; d++ {
					sums[k][d] += sv[d]
				}
			}
			for k := 0; k < p.numCentroids; k++ {
				if counts[k] == 0 {
					continue
				}
				for d := 0; d < p.subDim; d++ {
					p.centroids[m][k][d] = sums[k][d] / float32(counts[k])
				}
			}
		}
	}
	p.trained = true
	return nil
}

func sqDist(a, b []float32) float32 {
	var sum float32
	for i := range a {
		d := a[i] - b[i]
		sum += d * d
	}
	return sum
}

func (p *pqCodec) codeBytes() int {
	if p.numCentroids <= 16 {
		return (p.numSubvectors + 1) / 2 // 4-bit codes, packed two per byte
	}
	return p.numSubvectors // 8-bit codes, one byte each
}

func (p *pqCodec) Encode(v []float32) ([]byte, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.trained {
		return nil, errs.ErrCodecNotTrained
	}
	codes := make([]int, p.numSubvectors)
	for m := 0; m < p.numSubvectors; m++ {
		start := m * p.subDim
		sub := v[start : start+p.subDim]
		best, bestDist := 0, float32(math.MaxFloat32)
		for k := 0; k < p.numCentroids; k++ {
			d := sqDist(sub, p.centroids[m][k])
			if d < bestDist {
				bestDist, best = d, k
			}
		}
		codes[m] = best
	}
	if p.numCentroids <= 16 {
		out := make([]byte, p.codeBytes())
		for i, c := range codes {
			if i%2 == 0 {
				out[i/2] = byte(c)
			} else {
				out[i/2] |= byte(c) << 4
			}
		}
		return out, nil
	}
	out := make([]byte, len(codes))
	for i, c := range codes {
		out[i] = byte(c)
	}
	return out, nil
}

func (p *pqCodec) Decode(payload []byte, dim int) ([]float32, error) {
	p.mu.RLock()
	defer p.mu.RUnlock()
	if !p.trained {
		return nil, errs.ErrCodecNotTrained
	}
	out := make([]float32, dim)
	for m := 0; m < p.numSubvectors; m++ {
		var code int
		if p.numCentroids <= 16 {
			b := payload[m/2]
			if m%2 == 0 {
				code = int(b & 0x0F)
			} else {
				code = int(b >> 4)
			}
		} else {
			code = int(payload[m])
		}
		start := m * p.subDim
		copy(out[start:start+p.subDim], p.centroids[m][code])
	}
	return out, nil
}
