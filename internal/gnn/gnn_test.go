package gnn

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

func randomVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	for i := range v {
		v[i] = float32(rng.NormFloat64())
	}
	return v
}

func TestNetwork_EnhanceProducesUnitNormOutput(t *testing.T) {
	rng := rand.New(rand.NewSource(1))
	net := NewNetwork(NetworkConfig{Dim: 16, Hidden1: 20, Hidden2: 24}, rng)

	q := randomVector(rng, 16)
	res := net.Enhance(q, nil, false)

	n := l2norm(res.Vector)
	if math.Abs(float64(n)-1.0) > 1e-3 {
		t.Fatalf("expected L2-normalized output, got norm %v", n)
	}
}

func TestAggregate_IsolatedNodeStillParticipates(t *testing.T) {
	rng := rand.New(rand.NewSource(2))
	center := randomVector(rng, 8)
	graph := &TrajectoryGraph{
		Nodes: []GraphNode{
			{ID: "n1", Features: randomVector(rng, 8), Importance: 0},
			{ID: "n2", Features: randomVector(rng, 8), Importance: 5},
		},
	}

	out := Aggregate(center, graph)
	if len(out) != len(center) {
		t.Fatalf("expected output dimension to match center")
	}
	var same bool
	for i := range out {
		if out[i] != center[i] {
			same = false
			break
		}
		same = true
	}
	if same {
		t.Fatalf("expected aggregation to move the vector away from the bare center")
	}
}

func TestAggregate_NoGraphReturnsCenterUnchanged(t *testing.T) {
	center := []float32{1, 2, 3}
	out := Aggregate(center, nil)
	for i := range center {
		if out[i] != center[i] {
			t.Fatalf("expected passthrough with no graph, got %v", out)
		}
	}
}

func TestNetwork_BackwardRejectsMissingCaches(t *testing.T) {
	rng := rand.New(rand.NewSource(3))
	net := NewNetwork(NetworkConfig{Dim: 8, Hidden1: 10, Hidden2: 12}, rng)

	_, _, err := net.Backward(make([]float32, 8), []*LayerCache{nil, nil, nil})
	if err != errs.ErrGradientInvalid {
		t.Fatalf("expected ErrGradientInvalid for missing caches, got %v", err)
	}
}

func TestNetwork_BackwardProducesUsableGradients(t *testing.T) {
	rng := rand.New(rand.NewSource(4))
	net := NewNetwork(NetworkConfig{Dim: 8, Hidden1: 10, Hidden2: 12}, rng)

	q := randomVector(rng, 8)
	res := net.Enhance(q, nil, true)
	dLdy := make([]float32, 8)
	for i := range dLdy {
		dLdy[i] = res.Vector[i] - q[i]
	}

	grads, dx, err := net.Backward(dLdy, res.Caches)
	if err != nil {
		t.Fatalf("backward: %v", err)
	}
	if len(grads) != 3 {
		t.Fatalf("expected 3 layer gradients, got %d", len(grads))
	}
	if len(dx) != 8 {
		t.Fatalf("expected input gradient of dimension 8, got %d", len(dx))
	}
	net.ApplyGradients(grads)
}

func TestClipGlobalNorm_RejectsNaN(t *testing.T) {
	grads := []*LayerGrad{
		{DW: [][]float32{{float32(math.NaN())}}, DB: []float32{0}, Dx: []float32{0}},
	}
	if clipGlobalNorm(grads, 5.0) {
		t.Fatalf("expected NaN gradient to be rejected")
	}
}

func TestClipGlobalNorm_ScalesDownOversizedGradient(t *testing.T) {
	grads := []*LayerGrad{
		{DW: [][]float32{{100, 100}}, DB: []float32{100}, Dx: []float32{0}},
	}
	if !clipGlobalNorm(grads, 1.0) {
		t.Fatalf("expected oversized gradient to be scaled, not rejected")
	}
	var sumSq float64
	for _, v := range grads[0].DW[0] {
		sumSq += float64(v) * float64(v)
	}
	for _, v := range grads[0].DB {
		sumSq += float64(v) * float64(v)
	}
	if norm := math.Sqrt(sumSq); norm > 1.0001 {
		t.Fatalf("expected clipped norm <= 1.0, got %v", norm)
	}
}

func TestLayer_SerializeRoundTrip(t *testing.T) {
	rng := rand.New(rand.NewSource(5))
	l := NewLayer(4, 6, ReLU, rng)

	wts := l.Serialize(1)
	got, err := LoadLayer(wts, 4, 6, ReLU)
	if err != nil {
		t.Fatalf("load: %v", err)
	}
	for i := range l.W {
		for j := range l.W[i] {
			if got.W[i][j] != l.W[i][j] {
				t.Fatalf("weight mismatch at [%d][%d]: got %v want %v", i, j, got.W[i][j], l.W[i][j])
			}
		}
	}
}

func TestLoadLayer_RejectsDimensionMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(6))
	l := NewLayer(4, 6, ReLU, rng)
	wts := l.Serialize(1)

	if _, err := LoadLayer(wts, 4, 7, ReLU); err == nil {
		t.Fatalf("expected dimension mismatch to be rejected")
	}
}

func TestLoadLayer_RejectsChecksumMismatch(t *testing.T) {
	rng := rand.New(rand.NewSource(7))
	l := NewLayer(3, 3, ReLU, rng)
	wts := l.Serialize(1)
	wts.Bytes[0] ^= 0xFF

	if _, err := LoadLayer(wts, 3, 3, ReLU); err != errs.ErrChecksumMismatch {
		t.Fatalf("expected ErrChecksumMismatch, got %v", err)
	}
}

func TestCheckpointRing_KeepsOnlyLastN(t *testing.T) {
	store := NewMemCheckpointStore()
	ring := NewCheckpointRing(store, "net", 3)

	for i := 0; i < 5; i++ {
		if err := ring.Save([]byte{byte(i)}); err != nil {
			t.Fatalf("save %d: %v", i, err)
		}
	}

	names, err := store.List()
	if err != nil {
		t.Fatalf("list: %v", err)
	}
	if len(names) != 3 {
		t.Fatalf("expected exactly 3 retained checkpoints, got %d: %v", len(names), names)
	}

	latest, err := ring.Latest()
	if err != nil {
		t.Fatalf("latest: %v", err)
	}
	if latest[0] != 4 {
		t.Fatalf("expected latest checkpoint to be the 5th save, got %v", latest)
	}
}

func TestEnhancementCache_TTLExpiry(t *testing.T) {
	c := NewEnhancementCache(EnhancementCacheConfig{Dimension: 4, TTL: time.Millisecond})
	key := CacheKey([]float32{1, 2, 3, 4}, []string{"e1"})

	if err := c.Put(key, []float32{1, 2, 3, 4}, []string{"n1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	time.Sleep(5 * time.Millisecond)
	if _, ok := c.Get(key); ok {
		t.Fatalf("expected entry to have expired")
	}
}

func TestEnhancementCache_InvalidateNodes(t *testing.T) {
	c := NewEnhancementCache(EnhancementCacheConfig{Dimension: 4, TTL: time.Hour})
	key1 := CacheKey([]float32{1, 0, 0, 0}, []string{"e1"})
	key2 := CacheKey([]float32{0, 1, 0, 0}, []string{"e2"})

	if err := c.Put(key1, []float32{1, 0, 0, 0}, []string{"n1", "n2"}); err != nil {
		t.Fatalf("put key1: %v", err)
	}
	if err := c.Put(key2, []float32{0, 1, 0, 0}, []string{"n3"}); err != nil {
		t.Fatalf("put key2: %v", err)
	}

	c.InvalidateNodes([]string{"n2"})

	if _, ok := c.Get(key1); ok {
		t.Fatalf("expected key1 to be invalidated via n2")
	}
	if _, ok := c.Get(key2); !ok {
		t.Fatalf("expected key2 to survive invalidation of n2")
	}
}

func TestEnhancementCache_MetricsTracksHitsAndMisses(t *testing.T) {
	c := NewEnhancementCache(EnhancementCacheConfig{Dimension: 4, TTL: time.Hour})
	key := CacheKey([]float32{1, 1, 1, 1}, nil)

	if err := c.Put(key, []float32{1, 1, 1, 1}, []string{"n1"}); err != nil {
		t.Fatalf("put: %v", err)
	}
	c.Get(key)
	c.Get(key + 1)

	m := c.Metrics()
	if m.Hits != 1 || m.Misses != 1 {
		t.Fatalf("expected 1 hit / 1 miss, got %+v", m)
	}
}

func TestCacheKey_OrderIndependentOfEdgeIDOrder(t *testing.T) {
	v := []float32{1, 2, 3}
	k1 := CacheKey(v, []string{"e2", "e1"})
	k2 := CacheKey(v, []string{"e1", "e2"})
	if k1 != k2 {
		t.Fatalf("expected cache key to be independent of edge id ordering")
	}
}
