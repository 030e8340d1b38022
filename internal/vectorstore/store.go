package vectorstore

import (
	"math"
	"sort"
	"sync"
	"time"

	"golang.org/x/crypto/blake2b"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/vectormath"
)

// BackendKind selects the kNN strategy at construction (spec.md §4.1: the
// store exposes only one logical API regardless of backend).
type BackendKind int

const (
	BackendFlat BackendKind = iota
	BackendHNSW
)

// Config configures a Store.
type Config struct {
	Dimension    int
	Tolerance    float64 // L2-normalization slack; defaults to vectormath.DefaultTolerance
	Backend      BackendKind
	HNSW         HNSWConfig
}

// Store is the content-addressed vector store (C2). It is safe for
// concurrent use: multiple readers may run alongside a single writer at a
// time (spec.md §5).
type Store struct {
	mu       sync.RWMutex
	cfg      Config
	records  map[VectorID]*Record
	backend  Backend
	notifier AccessNotifier
	order    []VectorID // insertion order, for a stable Iterate
}

// New creates a Store for fixed-dimension vectors using the configured
// backend.
func New(cfg Config) *Store {
	if cfg.Tolerance <= 0 {
		cfg.Tolerance = vectormath.DefaultTolerance
	}
	var backend Backend
	switch cfg.Backend {
	case BackendHNSW:
		hc := cfg.HNSW
		if hc.M == 0 {
			hc = DefaultHNSWConfig()
		}
		backend = newHNSWBackend(hc)
	default:
		backend = newFlatBackend()
	}
	return &Store{
		cfg:     cfg,
		records: make(map[VectorID]*Record),
		backend: backend,
	}
}

// SetAccessNotifier registers the compression manager (or any observer) to
// be told about every logical read, so heat tracking stays decoupled from
// storage (spec.md §4.4).
func (s *Store) SetAccessNotifier(n AccessNotifier) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.notifier = n
}

func (s *Store) validate(v []float32) error {
	return vectormath.Validate(v, s.cfg.Dimension, s.cfg.Tolerance)
}

// Insert adds a new vector. Fails with DimensionError, ErrNotNormalized,
// ErrNonFiniteValue, or ErrDuplicateId.
func (s *Store) Insert(id VectorID, vector []float32, metadata Metadata) error {
	if err := s.validate(vector); err != nil {
		return err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, exists := s.records[id]; exists {
		return errs.ErrDuplicateId
	}
	now := time.Now()
	rec := &Record{
		ID:        id,
		Vector:    append([]float32(nil), vector...),
		Metadata:  metadata.Clone(),
		Tier:      TierHot,
		Bytes:     s.cfg.Dimension * 4,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[id] = rec
	s.order = append(s.order, id)
	s.backend.Add(id, rec.Vector)
	return nil
}

// UpsertResult reports whether Upsert inserted a new record or updated an
// existing one.
type UpsertResult int

const (
	Inserted UpsertResult = iota
	Updated
)

// Upsert inserts or replaces a vector. Same failure modes as Insert minus
// ErrDuplicateId.
func (s *Store) Upsert(id VectorID, vector []float32, metadata Metadata) (UpsertResult, error) {
	if err := s.validate(vector); err != nil {
		return 0, err
	}
	s.mu.Lock()
	defer s.mu.Unlock()
	now := time.Now()
	if existing, ok := s.records[id]; ok {
		existing.Vector = append([]float32(nil), vector...)
		existing.Metadata = metadata.Clone()
		existing.Tier = TierHot
		existing.Bytes = s.cfg.Dimension * 4
		existing.UpdatedAt = now
		s.backend.Add(id, existing.Vector)
		return Updated, nil
	}
	rec := &Record{
		ID:        id,
		Vector:    append([]float32(nil), vector...),
		Metadata:  metadata.Clone(),
		Tier:      TierHot,
		Bytes:     s.cfg.Dimension * 4,
		CreatedAt: now,
		UpdatedAt: now,
	}
	s.records[id] = rec
	s.order = append(s.order, id)
	s.backend.Add(id, rec.Vector)
	return Inserted, nil
}

// Get fetches a record by id, triggering an access notification for heat
// tracking. Returns ErrNotFound if absent.
func (s *Store) Get(id VectorID) (*Record, error) {
	s.mu.RLock()
	rec, ok := s.records[id]
	notifier := s.notifier
	s.mu.RUnlock()
	if !ok {
		return nil, errs.ErrNotFound
	}
	if notifier != nil {
		notifier.RecordAccess(id)
	}
	return rec.clone(), nil
}

// Peek fetches a record without triggering an access notification. Used
// internally by components (e.g. compression) that need the current bytes
// without perturbing heat scores.
func (s *Store) Peek(id VectorID) (*Record, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	rec, ok := s.records[id]
	if !ok {
		return nil, false
	}
	return rec.clone(), true
}

// Delete removes a record, returning whether one existed.
func (s *Store) Delete(id VectorID) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.records[id]; !ok {
		return false
	}
	delete(s.records, id)
	s.backend.Remove(id)
	for i, existing := range s.order {
		if existing == id {
			s.order = append(s.order[:i], s.order[i+1:]...)
			break
		}
	}
	return true
}

// Count returns the number of live records.
func (s *Store) Count() int {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return len(s.records)
}

// Iterate returns a snapshot of all live ids in insertion order. It is a
// finite sequence, not a live cursor: concurrent mutation after the call
// does not affect the returned slice.
func (s *Store) Iterate() []VectorID {
	s.mu.RLock()
	defer s.mu.RUnlock()
	out := make([]VectorID, len(s.order))
	copy(out, s.order)
	return out
}

// Search runs kNN with the given metric, returning at most k hits ordered
// best-first. Never errors on an empty store. A non-normalized query fails
// fast for Cosine (which is only exact on normalized inputs) rather than
// silently normalizing it.
func (s *Store) Search(query []float32, k int, opts SearchOptions) ([]Hit, error) {
	if len(query) != s.cfg.Dimension {
		return nil, &errs.DimensionError{Expected: s.cfg.Dimension, Actual: len(query)}
	}
	if opts.Metric == vectormath.Cosine && !vectormath.IsNormalized(query, s.cfg.Tolerance) {
		return nil, errs.ErrNotNormalized
	}
	if k <= 0 {
		return nil, nil
	}

	s.mu.RLock()
	if len(s.records) == 0 {
		s.mu.RUnlock()
		return nil, nil
	}
	lookup := func(id VectorID) ([]float32, bool) {
		rec, ok := s.records[id]
		if !ok {
			return nil, false
		}
		return rec.Vector, true
	}
	// Over-fetch when a filter is active since the backend doesn't know
	// about it; fall back to a full scan in the (rare) filtered case to
	// guarantee correctness over speed.
	fetchK := k
	if opts.Filter != nil {
		fetchK = len(s.records)
	}
	raw := s.backend.Search(query, fetchK, opts.Metric, lookup)

	hits := make([]Hit, 0, len(raw))
	for _, c := range raw {
		rec, ok := s.records[c.id]
		if !ok {
			continue
		}
		if opts.Filter != nil && !opts.Filter(rec.Metadata) {
			continue
		}
		score := vectormath.Normalize01(opts.Metric, c.raw, true)
		hits = append(hits, Hit{ID: c.id, Score: score, Metadata: rec.Metadata})
	}
	s.mu.RUnlock()

	higherBetter := true // Normalize01 always maps to higher-is-better [0,1]
	sort.SliceStable(hits, func(i, j int) bool {
		if hits[i].Score == hits[j].Score {
			return hits[i].ID < hits[j].ID // ties break by min id
		}
		if higherBetter {
			return hits[i].Score > hits[j].Score
		}
		return hits[i].Score < hits[j].Score
	})
	if len(hits) > k {
		hits = hits[:k]
	}
	return hits, nil
}

// ApplyTierTransition atomically swaps a record's physical representation.
// Only the compression manager should call this; a reader racing with it
// observes either the old tier or the new one, never a torn vector
// (spec.md §5).
func (s *Store) ApplyTierTransition(id VectorID, tier Tier, reconstructed []float32, bytes int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	rec, ok := s.records[id]
	if !ok {
		return errs.ErrNotFound
	}
	rec.Vector = reconstructed
	rec.Tier = tier
	rec.Bytes = bytes
	rec.UpdatedAt = time.Now()
	return nil
}

// ContentHash returns a blake2b-256 content hash of id's current vector
// bytes, computed on demand. Returns false if id is absent. Insert and
// Upsert do not compute it, and identical vectors stored under different
// ids are not flagged.
func (s *Store) ContentHash(id VectorID) ([]byte, bool) {
	s.mu.RLock()
	rec, ok := s.records[id]
	s.mu.RUnlock()
	if !ok {
		return nil, false
	}
	h, err := blake2b.New256(nil)
	if err != nil {
		return nil, false
	}
	buf := make([]byte, 4)
	for _, f := range rec.Vector {
		bits := math.Float32bits(f)
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h.Write(buf)
	}
	return h.Sum(nil), true
}
