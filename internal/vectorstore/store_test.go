package vectorstore

import (
	"testing"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
)

func oneHot(dim, idx int) []float32 {
	v := make([]float32, dim)
	v[idx] = 1
	return v
}

// TestStore_InsertAndKNN mirrors spec.md's scenario 1: three vectors at
// dimension 1536, querying e_0 with cosine should return v1 then v3, with
// v2 outside the top-2.
func TestStore_InsertAndKNN(t *testing.T) {
	const dim = 1536
	s := New(Config{Dimension: dim, Backend: BackendFlat})

	v1 := oneHot(dim, 0)
	v2 := oneHot(dim, 1)
	v3 := make([]float32, dim)
	v3[0] = float32(1 / sqrt2)
	v3[1] = float32(1 / sqrt2)

	if err := s.Insert("v1", v1, NewMetadata()); err != nil {
		t.Fatalf("insert v1: %v", err)
	}
	if err := s.Insert("v2", v2, NewMetadata()); err != nil {
		t.Fatalf("insert v2: %v", err)
	}
	if err := s.Insert("v3", v3, NewMetadata()); err != nil {
		t.Fatalf("insert v3: %v", err)
	}

	hits, err := s.Search(oneHot(dim, 0), 2, SearchOptions{Metric: vectormath.Cosine})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Fatalf("expected 2 hits, got %d", len(hits))
	}
	if hits[0].ID != "v1" {
		t.Errorf("expected v1 first, got %s", hits[0].ID)
	}
	if hits[0].Score < 0.999 {
		t.Errorf("expected v1 score ~1.0, got %f", hits[0].Score)
	}
	if hits[1].ID != "v3" {
		t.Errorf("expected v3 second, got %s", hits[1].ID)
	}
	if hits[1].Score < 0.85 || hits[1].Score > 0.9 {
		t.Errorf("expected v3 score ~ (1+0.707)/2=0.853, got %f", hits[1].Score)
	}
	for _, h := range hits {
		if h.ID == "v2" {
			t.Errorf("v2 should not appear in top-2")
		}
	}
}

const sqrt2 = 1.4142135623730951

func TestStore_SearchEmptyStore(t *testing.T) {
	s := New(Config{Dimension: 8, Backend: BackendFlat})
	hits, err := s.Search(oneHot(8, 0), 5, SearchOptions{Metric: vectormath.Cosine})
	if err != nil {
		t.Fatalf("expected no error on empty store, got %v", err)
	}
	if len(hits) != 0 {
		t.Errorf("expected 0 hits, got %d", len(hits))
	}
}

func TestStore_TopKGreaterThanN(t *testing.T) {
	s := New(Config{Dimension: 4, Backend: BackendFlat})
	_ = s.Insert("a", oneHot(4, 0), NewMetadata())
	_ = s.Insert("b", oneHot(4, 1), NewMetadata())

	hits, err := s.Search(oneHot(4, 0), 10, SearchOptions{Metric: vectormath.Cosine})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 2 {
		t.Errorf("expected 2 hits when k > n, got %d", len(hits))
	}
}

func TestStore_InsertRejectsBadVectors(t *testing.T) {
	s := New(Config{Dimension: 4, Backend: BackendFlat})

	if err := s.Insert("a", []float32{1, 0, 0}, NewMetadata()); err == nil {
		t.Error("expected dimension mismatch error")
	}
	if err := s.Insert("a", []float32{1, 1, 1, 1}, NewMetadata()); err == nil {
		t.Error("expected not-normalized error")
	}
	nan := float32(0)
	nan = nan / nan
	if err := s.Insert("a", []float32{nan, 0, 0, 0}, NewMetadata()); err == nil {
		t.Error("expected non-finite error")
	}

	if err := s.Insert("a", oneHot(4, 0), NewMetadata()); err != nil {
		t.Fatalf("unexpected error on valid insert: %v", err)
	}
	if err := s.Insert("a", oneHot(4, 1), NewMetadata()); err != errs.ErrDuplicateId {
		t.Errorf("expected ErrDuplicateId, got %v", err)
	}
}

func TestStore_SearchNonNormalizedQueryFailsFast(t *testing.T) {
	s := New(Config{Dimension: 4, Backend: BackendFlat})
	_ = s.Insert("a", oneHot(4, 0), NewMetadata())
	_, err := s.Search([]float32{1, 1, 0, 0}, 1, SearchOptions{Metric: vectormath.Cosine})
	if err != errs.ErrNotNormalized {
		t.Errorf("expected ErrNotNormalized, got %v", err)
	}
}

func TestStore_HNSWBackendMatchesFlatTopResult(t *testing.T) {
	const dim = 64
	s := New(Config{Dimension: dim, Backend: BackendHNSW, HNSW: HNSWConfig{M: 8, EfConstruction: 64, EfSearch: 64}})
	for i := 0; i < dim; i++ {
		if err := s.Insert(VectorID(oneHotName(i)), oneHot(dim, i), NewMetadata()); err != nil {
			t.Fatalf("insert %d: %v", i, err)
		}
	}
	hits, err := s.Search(oneHot(dim, 3), 1, SearchOptions{Metric: vectormath.Cosine})
	if err != nil {
		t.Fatalf("search: %v", err)
	}
	if len(hits) != 1 || hits[0].ID != VectorID(oneHotName(3)) {
		t.Errorf("expected exact match on dim 3, got %+v", hits)
	}
}

func oneHotName(i int) string {
	return "e" + string(rune('0'+i%10)) + string(rune('a'+i/10))
}
