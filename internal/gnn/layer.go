// Package gnn implements the GNN enhancer (C8): a 3-layer dense projection
// network with graph-context attention aggregation, used to turn a query
// embedding into a graph-aware embedding for search re-ranking. The
// activation-caching-for-backprop shape and gradient-clip-by-global-norm
// are grounded on the teacher's meta_learner.go (mean/variance
// accumulation across examples) and curriculum_learner.go (bounded-step
// scoring); no teacher component actually trains a network, so the
// forward/backward math here is original to this package.
package gnn

import (
	"math"
	"math/rand"
)

// Activation is a per-layer nonlinearity kind.
type Activation int

const (
	ReLU Activation = iota
	Identity
)

func (a Activation) forward(x []float32) []float32 {
	out := make([]float32, len(x))
	switch a {
	case ReLU:
		for i, v := range x {
			if v > 0 {
				out[i] = v
			}
		}
	default:
		copy(out, x)
	}
	return out
}

// backward maps a gradient w.r.t. the post-activation output back to a
// gradient w.r.t. the pre-activation input.
func (a Activation) backward(grad, preActivation []float32) []float32 {
	out := make([]float32, len(grad))
	switch a {
	case ReLU:
		for i, g := range grad {
			if preActivation[i] > 0 {
				out[i] = g
			}
		}
	default:
		copy(out, grad)
	}
	return out
}

// Layer is one dense projection y = W·x + b, DimOut x DimIn.
type Layer struct {
	DimIn, DimOut int
	W             [][]float32
	B             []float32
	Act           Activation
}

// NewLayer builds a layer with Xavier-uniform initialized weights:
// limit = sqrt(6/(dimIn+dimOut)), U(-limit, limit).
func NewLayer(dimIn, dimOut int, act Activation, rng *rand.Rand) *Layer {
	limit := math.Sqrt(6.0 / float64(dimIn+dimOut))
	w := make([][]float32, dimOut)
	for i := range w {
		w[i] = make([]float32, dimIn)
		for j := range w[i] {
			w[i][j] = float32((rng.Float64()*2 - 1) * limit)
		}
	}
	return &Layer{DimIn: dimIn, DimOut: dimOut, W: w, B: make([]float32, dimOut), Act: act}
}

// LayerCache holds the intermediates layer_backward needs: the input, the
// pre-activation, and the post-activation (spec.md §4.7 "Backward pass").
type LayerCache struct {
	Input         []float32
	PreActivation []float32
	PostActivation []float32
}

// Forward computes y = Act(W·x + b) and, when collectCache is true, returns
// the cache layer_backward needs.
func (l *Layer) Forward(x []float32, collectCache bool) ([]float32, *LayerCache) {
	pre := make([]float32, l.DimOut)
	for i := 0; i < l.DimOut; i++ {
		var sum float32
		row := l.W[i]
		for j := 0; j < l.DimIn; j++ {
			sum += row[j] * x[j]
		}
		pre[i] = sum + l.B[i]
	}
	post := l.Act.forward(pre)
	if !collectCache {
		return post, nil
	}
	return post, &LayerCache{
		Input:          append([]float32(nil), x...),
		PreActivation:  pre,
		PostActivation: post,
	}
}

// LayerGrad holds the gradients layer_backward produces.
type LayerGrad struct {
	DW [][]float32
	DB []float32
	Dx []float32
}

// Backward computes {dW, db, dx} from dL/dy (the gradient w.r.t. this
// layer's post-activation output) and the forward cache, via standard
// matrix-calculus rules for y = Act(W·x + b).
func (l *Layer) Backward(dLdy []float32, cache *LayerCache) *LayerGrad {
	dPre := l.Act.backward(dLdy, cache.PreActivation)

	dW := make([][]float32, l.DimOut)
	for i := range dW {
		dW[i] = make([]float32, l.DimIn)
		for j := 0; j < l.DimIn; j++ {
			dW[i][j] = dPre[i] * cache.Input[j]
		}
	}
	dB := append([]float32(nil), dPre...)

	dx := make([]float32, l.DimIn)
	for j := 0; j < l.DimIn; j++ {
		var sum float32
		for i := 0; i < l.DimOut; i++ {
			sum += dPre[i] * l.W[i][j]
		}
		dx[j] = sum
	}
	return &LayerGrad{DW: dW, DB: dB, Dx: dx}
}

// ApplyGradient performs a plain SGD step: W -= lr*dW, b -= lr*db.
func (l *Layer) ApplyGradient(g *LayerGrad, lr float32) {
	for i := range l.W {
		for j := range l.W[i] {
			l.W[i][j] -= lr * g.DW[i][j]
		}
		l.B[i] -= lr * g.DB[i]
	}
}

func dot32(a, b []float32) float32 {
	var s float32
	for i := range a {
		s += a[i] * b[i]
	}
	return s
}

func l2norm(v []float32) float32 {
	return float32(math.Sqrt(float64(dot32(v, v))))
}

func l2normalize(v []float32) []float32 {
	n := l2norm(v)
	if n == 0 {
		return v
	}
	out := make([]float32, len(v))
	for i, x := range v {
		out[i] = x / n
	}
	return out
}

// clipGlobalNorm scales every slice in grads so the combined L2 norm of
// all gradients does not exceed maxNorm (spec.md §4.7: "gradient clipping
// by global L2 norm (default 5.0)"). Returns false (no scaling, caller
// must reject) if any value is NaN/Inf.
func clipGlobalNorm(grads []*LayerGrad, maxNorm float32) bool {
	var sumSq float64
	for _, g := range grads {
		for _, row := range g.DW {
			for _, v := range row {
				if isBad(v) {
					return false
				}
				sumSq += float64(v) * float64(v)
			}
		}
		for _, v := range g.DB {
			if isBad(v) {
				return false
			}
			sumSq += float64(v) * float64(v)
		}
	}
	norm := math.Sqrt(sumSq)
	if norm <= float64(maxNorm) || norm == 0 {
		return true
	}
	scale := float32(float64(maxNorm) / norm)
	for _, g := range grads {
		for _, row := range g.DW {
			for i := range row {
				row[i] *= scale
			}
		}
		for i := range g.DB {
			g.DB[i] *= scale
		}
	}
	return true
}

func isBad(v float32) bool {
	f := float64(v)
	return math.IsNaN(f) || math.IsInf(f, 0)
}
