package compression

import (
	"math"
	"math/rand"
	"testing"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

func randomUnitVector(rng *rand.Rand, dim int) []float32 {
	v := make([]float32, dim)
	var norm float64
	for i := range v {
		x := rng.NormFloat64()
		v[i] = float32(x)
		norm += x * x
	}
	norm = math.Sqrt(norm)
	for i := range v {
		v[i] = float32(float64(v[i]) / norm)
	}
	return v
}

func newTestManager(dim int) (*vectorstore.Store, *Manager) {
	store := vectorstore.New(vectorstore.Config{Dimension: dim, Backend: vectorstore.BackendFlat})
	mgr := NewManager(store, ManagerConfig{
		Dimension:         dim,
		MinPQTrainingSize: 32,
		PQIterations:      4,
	})
	return store, mgr
}

// TestManager_TransitionRejectsBackward asserts spec.md §4.4/§8's
// strictly-forward invariant.
func TestManager_TransitionRejectsBackward(t *testing.T) {
	const dim = 32
	rng := rand.New(rand.NewSource(1))
	store, mgr := newTestManager(dim)

	v := randomUnitVector(rng, dim)
	if err := store.Insert("a", v, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mgr.Transition("a", vectorstore.TierWarm); err != nil {
		t.Fatalf("hot->warm: %v", err)
	}
	if err := mgr.Transition("a", vectorstore.TierHot); err == nil {
		t.Fatalf("expected backward transition to be rejected")
	}
}

// TestManager_CoolTransitionRequiresTraining exercises spec.md §4.4's
// CodecNotTrained contract: no silent fallback, a first-class error.
func TestManager_CoolTransitionRequiresTraining(t *testing.T) {
	const dim = 32
	rng := rand.New(rand.NewSource(2))
	store, mgr := newTestManager(dim)

	v := randomUnitVector(rng, dim)
	if err := store.Insert("a", v, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mgr.Transition("a", vectorstore.TierCool); err == nil {
		t.Fatalf("expected CodecNotTrained before the codebook has samples")
	} else if err != errs.ErrCodecNotTrained {
		t.Fatalf("expected ErrCodecNotTrained, got %v", err)
	}
}

// TestManager_WarmRoundTripPreservesDirection checks the float16 codec keeps
// reconstruction error within the Warm tier's bound (spec.md §8).
func TestManager_WarmRoundTripPreservesDirection(t *testing.T) {
	const dim = 64
	rng := rand.New(rand.NewSource(3))
	store, mgr := newTestManager(dim)

	v := randomUnitVector(rng, dim)
	if err := store.Insert("a", v, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	if err := mgr.Transition("a", vectorstore.TierWarm); err != nil {
		t.Fatalf("hot->warm: %v", err)
	}
	got, ok := store.Peek("a")
	if !ok {
		t.Fatalf("record vanished after transition")
	}
	if got.Tier != vectorstore.TierWarm {
		t.Fatalf("expected tier warm, got %s", got.Tier)
	}
	q := vectorstore.NewInt8Quantizer(dim, false, 1)
	errRate := q.ReconstructionError(v, got.Vector)
	if errRate > 0.02 {
		t.Fatalf("warm reconstruction error %.4f exceeds tier bound 0.02", errRate)
	}
}

// TestManager_SchedulerDemotesColdVectors mirrors spec.md scenario 2: a
// vector untouched long enough should be picked up by the scheduler tick
// and demoted from Hot to Warm once its heat falls below Hot's MinHeat.
func TestManager_SchedulerDemotesColdVectors(t *testing.T) {
	const dim = 48
	rng := rand.New(rand.NewSource(4))
	store, mgr := newTestManager(dim)

	v := randomUnitVector(rng, dim)
	if err := store.Insert("a", v, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}
	mgr.RecordAccess("a")

	future := time.Now().Add(48 * time.Hour)
	mgr.Tick(future)

	got, ok := store.Peek("a")
	if !ok {
		t.Fatalf("record vanished")
	}
	if got.Tier != vectorstore.TierWarm {
		t.Fatalf("expected scheduler to demote to warm after heat decay, got %s", got.Tier)
	}
}

// TestManager_SchedulerDemotesNeverAccessedVectors mirrors spec.md scenario
// 2 literally: vectors that are inserted and never read via Get still must
// cool, since most vectors in practice are never touched after insert.
func TestManager_SchedulerDemotesNeverAccessedVectors(t *testing.T) {
	const dim = 48
	rng := rand.New(rand.NewSource(9))
	store, mgr := newTestManager(dim)

	for _, id := range []vectorstore.VectorID{"a", "b", "c"} {
		v := randomUnitVector(rng, dim)
		if err := store.Insert(id, v, vectorstore.NewMetadata()); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
	}

	mgr.Tick(time.Now())

	for _, id := range []vectorstore.VectorID{"a", "b", "c"} {
		got, ok := store.Peek(id)
		if !ok {
			t.Fatalf("record %s vanished", id)
		}
		if got.Tier != vectorstore.TierWarm {
			t.Fatalf("expected %s to demote to warm with zero accesses, got %s", id, got.Tier)
		}
	}
}

// TestManager_FrequentAccessStaysHot asserts a vector accessed continuously
// never crosses Hot's MinHeat threshold and so is never migrated.
func TestManager_FrequentAccessStaysHot(t *testing.T) {
	const dim = 24
	rng := rand.New(rand.NewSource(5))
	store, mgr := newTestManager(dim)

	v := randomUnitVector(rng, dim)
	if err := store.Insert("a", v, vectorstore.NewMetadata()); err != nil {
		t.Fatalf("insert: %v", err)
	}

	now := time.Now()
	for i := 0; i < 10; i++ {
		mgr.ledger.recordAccess("a", vectorstore.TierHot, now.Add(time.Duration(i)*time.Minute))
	}
	mgr.Tick(now.Add(10 * time.Minute))

	got, ok := store.Peek("a")
	if !ok {
		t.Fatalf("record vanished")
	}
	if got.Tier != vectorstore.TierHot {
		t.Fatalf("expected record to remain hot under continuous access, got %s", got.Tier)
	}
}

// TestManager_PQTrainsAfterEnoughSamples checks that once RecordAccess has
// accumulated enough training vectors, a Cool transition succeeds instead
// of returning CodecNotTrained.
func TestManager_PQTrainsAfterEnoughSamples(t *testing.T) {
	const dim = 32
	rng := rand.New(rand.NewSource(6))
	store, mgr := newTestManager(dim)

	var ids []vectorstore.VectorID
	for i := 0; i < 64; i++ {
		id := vectorstore.VectorID(randomUnitVectorID(i))
		v := randomUnitVector(rng, dim)
		if err := store.Insert(id, v, vectorstore.NewMetadata()); err != nil {
			t.Fatalf("insert %s: %v", id, err)
		}
		ids = append(ids, id)
	}
	for _, id := range ids {
		mgr.RecordAccess(id)
	}

	target := ids[0]
	if err := mgr.Transition(target, vectorstore.TierCool); err != nil {
		t.Fatalf("expected cool transition to succeed once trained: %v", err)
	}
	got, ok := store.Peek(target)
	if !ok || got.Tier != vectorstore.TierCool {
		t.Fatalf("expected %s to be at tier cool", target)
	}
}

func randomUnitVectorID(i int) string {
	const letters = "abcdefghijklmnopqrstuvwxyz"
	return "id-" + string(letters[i%len(letters)]) + string(rune('0'+i/len(letters)))
}
