package compression

import (
	"fmt"
	"math/rand"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

// Emitter is the narrow interface the manager needs from the observability
// bus (C14); accepting it as an interface rather than importing the bus
// package directly keeps compression a leaf package.
type Emitter interface {
	Emit(component, operation, status string, metadata map[string]interface{})
}

type nopEmitter struct{}

func (nopEmitter) Emit(string, string, string, map[string]interface{}) {}

// Logger is the narrow structured-logging surface the manager needs.
type Logger interface {
	Warn(msg string, fields map[string]interface{})
	Info(msg string, fields map[string]interface{})
}

type nopLogger struct{}

func (nopLogger) Warn(string, map[string]interface{}) {}
func (nopLogger) Info(string, map[string]interface{}) {}

// ManagerConfig configures the compression scheduler and codecs.
type ManagerConfig struct {
	Dimension         int
	Alpha             float64       // heat = alpha*recency + (1-alpha)*frequency
	HalfLife          time.Duration // recency decay half-life
	SchedulerInterval time.Duration
	SampleRate        float64 // chance, per access to a not-yet-sampled Hot vector, of copying it into the quality-measurement reservoir
	MinPQTrainingSize int
	PQIterations      int
}

func (c *ManagerConfig) applyDefaults() {
	if c.Alpha <= 0 {
		c.Alpha = 0.6
	}
	if c.HalfLife <= 0 {
		c.HalfLife = 6 * time.Hour
	}
	if c.SchedulerInterval <= 0 {
		c.SchedulerInterval = time.Hour
	}
	if c.SampleRate <= 0 {
		c.SampleRate = 0.02
	}
	if c.MinPQTrainingSize <= 0 {
		c.MinPQTrainingSize = 256
	}
	if c.PQIterations <= 0 {
		c.PQIterations = 10
	}
}

// Manager is the compression manager (C5): it owns the heat ledger, the
// per-tier codecs, and the scheduler loop that migrates vectors downward as
// their heat decays. It registers itself as the store's AccessNotifier.
type Manager struct {
	mu      sync.Mutex
	store   *vectorstore.Store
	cfg     ManagerConfig
	specs   []TierSpec
	ledger  *heatLedger
	emitter Emitter
	logger  Logger

	warm   float16Codec
	cool   *pqCodec
	cold   *pqCodec
	frozen binaryCodec

	trainingBuf map[vectorstore.Tier][][]float32
	reservoir   map[vectorstore.VectorID][]float32
	rng         *rand.Rand

	stop   chan struct{}
	ticker *time.Ticker
	wg     sync.WaitGroup
}

// NewManager builds a Manager over store and registers it as the store's
// access notifier.
func NewManager(store *vectorstore.Store, cfg ManagerConfig) *Manager {
	cfg.applyDefaults()
	m := &Manager{
		store:       store,
		cfg:         cfg,
		specs:       DefaultTierSpecs(),
		ledger:      newHeatLedger(cfg.Alpha, cfg.HalfLife),
		emitter:     nopEmitter{},
		logger:      nopLogger{},
		cool:        newPQCodec(cfg.Dimension, 256, cfg.MinPQTrainingSize),
		cold:        newPQCodec(cfg.Dimension, 16, cfg.MinPQTrainingSize),
		trainingBuf: make(map[vectorstore.Tier][][]float32),
		reservoir:   make(map[vectorstore.VectorID][]float32),
		rng:         rand.New(rand.NewSource(time.Now().UnixNano())),
	}
	store.SetAccessNotifier(m)
	return m
}

func (m *Manager) SetEmitter(e Emitter) { m.emitter = e }
func (m *Manager) SetLogger(l Logger)   { m.logger = l }

// RecordAccess implements vectorstore.AccessNotifier. It feeds the heat
// ledger and, probabilistically, the quality-measurement reservoir
// (the Open Question in spec.md §9 resolved per SPEC_FULL.md C5: the
// original float32 is retained only for vectors that were sampled while
// Hot). The reservoir has no size cap and entries are never removed.
func (m *Manager) RecordAccess(id vectorstore.VectorID) {
	rec, ok := m.store.Peek(id)
	if !ok {
		return
	}
	now := time.Now()
	m.ledger.recordAccess(id, rec.Tier, now)

	m.mu.Lock()
	defer m.mu.Unlock()
	if _, sampled := m.reservoir[id]; !sampled && rec.Tier == vectorstore.TierHot {
		if m.rng.Float64() < m.cfg.SampleRate {
			m.reservoir[id] = append([]float32(nil), rec.Vector...)
		}
	}
	for t := vectorstore.TierWarm; t <= vectorstore.TierFrozen; t++ {
		if rec.Tier == vectorstore.TierHot {
			m.trainingBuf[t] = append(m.trainingBuf[t], append([]float32(nil), rec.Vector...))
			if len(m.trainingBuf[t]) > m.cfg.MinPQTrainingSize*4 {
				m.trainingBuf[t] = m.trainingBuf[t][len(m.trainingBuf[t])-m.cfg.MinPQTrainingSize*4:]
			}
		}
	}
}

// HeatScore returns id's current heat score, or false if untracked.
func (m *Manager) HeatScore(id vectorstore.VectorID) (float64, bool) {
	rec, ok := m.ledger.get(id)
	if !ok {
		return 0, false
	}
	return rec.HeatScore, true
}

func (m *Manager) specFor(t vectorstore.Tier) TierSpec {
	return m.specs[t.Index()]
}

// backfillUntouched seeds a zero-touch heat-ledger entry for every vector
// the store holds but that has never been read through Get. Without this,
// a vector that is inserted and never accessed again has no ledger entry
// at all (ensure() is only reachable from recordAccess/touch), so it would
// never appear in snapshotAscending and could never cool — violating
// spec.md §8's requirement that idle vectors eventually transition to the
// next-colder tier on zero accesses. touch scores a never-accessed record
// at 0 (no recency, no frequency), same as any other cold record.
func (m *Manager) backfillUntouched(now time.Time) {
	for _, id := range m.store.Iterate() {
		if _, tracked := m.ledger.get(id); tracked {
			continue
		}
		rec, ok := m.store.Peek(id)
		if !ok {
			continue
		}
		m.ledger.touch(id, rec.Tier, now)
	}
}

// Transition performs the single-step forward migration described in
// spec.md §4.4: assert forward, decode current (the store's Record.Vector
// is already the logical float32), encode to target, atomically swap, emit
// an event. A transition failure leaves the vector in its previous tier —
// ApplyTierTransition is only ever called with the already-validated
// result, never partially.
func (m *Manager) Transition(id vectorstore.VectorID, target vectorstore.Tier) error {
	rec, ok := m.store.Peek(id)
	if !ok {
		return errs.ErrNotFound
	}
	if !IsForward(rec.Tier, target) {
		return &errs.TierTransitionError{From: rec.Tier.String(), To: target.String()}
	}

	reconstructed, err := m.encodeDecode(rec.Vector, target)
	if err != nil {
		m.logger.Warn("tier transition deferred", map[string]interface{}{
			"id": string(id), "from": rec.Tier.String(), "to": target.String(), "reason": err.Error(),
		})
		return err
	}

	spec := m.specFor(target)
	bytes := spec.BytesPerVector(m.cfg.Dimension)
	if err := m.store.ApplyTierTransition(id, target, reconstructed, bytes); err != nil {
		return err
	}
	m.ledger.touch(id, target, time.Now())

	if errSample := m.checkQuality(id, target, reconstructed); errSample != nil {
		m.logger.Warn("reconstruction quality check failed", map[string]interface{}{
			"id": string(id), "tier": target.String(), "error": errSample.Error(),
		})
	}

	m.emitter.Emit("compression", "vectordb_tier_transition", "ok", map[string]interface{}{
		"id": string(id), "from": rec.Tier.String(), "to": target.String(), "bytes": bytes,
	})
	return nil
}

// encodeDecode round-trips v through the codec for tier, training PQ
// codebooks lazily when enough samples have accumulated.
func (m *Manager) encodeDecode(v []float32, tier vectorstore.Tier) ([]float32, error) {
	switch tier {
	case vectorstore.TierWarm:
		payload, _ := m.warm.Encode(v)
		return m.warm.Decode(payload, m.cfg.Dimension)
	case vectorstore.TierCool:
		return m.pqRoundTrip(m.cool, v, vectorstore.TierCool)
	case vectorstore.TierCold:
		return m.pqRoundTrip(m.cold, v, vectorstore.TierCold)
	case vectorstore.TierFrozen:
		payload, _ := m.frozen.Encode(v)
		return m.frozen.Decode(payload, m.cfg.Dimension)
	default:
		return nil, &errs.TierTransitionError{From: "hot", To: tier.String()}
	}
}

func (m *Manager) pqRoundTrip(codec *pqCodec, v []float32, tier vectorstore.Tier) ([]float32, error) {
	m.mu.Lock()
	trained := codec.trained
	buf := m.trainingBuf[tier]
	m.mu.Unlock()

	if !trained {
		if len(buf) < m.cfg.MinPQTrainingSize {
			return nil, errs.ErrCodecNotTrained
		}
		if err := codec.Train(buf, m.cfg.PQIterations); err != nil {
			return nil, err
		}
	}
	payload, err := codec.Encode(v)
	if err != nil {
		return nil, err
	}
	return codec.Decode(payload, m.cfg.Dimension)
}

// checkQuality re-validates a transitioned vector against a retained
// original (if the reservoir sampled it), surfacing a non-fatal
// ReconstructionQuality error per spec.md §4.4 ("On read") rather than
// failing the transition that already committed.
func (m *Manager) checkQuality(id vectorstore.VectorID, tier vectorstore.Tier, reconstructed []float32) error {
	m.mu.Lock()
	original, ok := m.reservoir[id]
	m.mu.Unlock()
	if !ok {
		return nil
	}
	q := vectorstore.NewInt8Quantizer(m.cfg.Dimension, false, m.specFor(tier).MaxError)
	errRate := q.ReconstructionError(original, reconstructed)
	if errRate > m.specFor(tier).MaxError {
		return fmt.Errorf("%w: %.4f exceeds %.4f", errs.ErrReconstructionQuality, errRate, m.specFor(tier).MaxError)
	}
	return nil
}

// Start launches the scheduler loop: on each tick it sorts tracked vectors
// by heat ascending and, for each below its current tier's MinHeat, triggers
// the single next-tier transition (spec.md §4.4). Upward transitions never
// happen automatically.
func (m *Manager) Start() {
	m.mu.Lock()
	if m.ticker != nil {
		m.mu.Unlock()
		return
	}
	m.ticker = time.NewTicker(m.cfg.SchedulerInterval)
	m.stop = make(chan struct{})
	ticker := m.ticker
	stop := m.stop
	m.mu.Unlock()

	m.wg.Add(1)
	go func() {
		defer m.wg.Done()
		for {
			select {
			case <-ticker.C:
				m.Tick(time.Now())
			case <-stop:
				return
			}
		}
	}()
}

// Stop halts the scheduler loop, if running.
func (m *Manager) Stop() {
	m.mu.Lock()
	if m.ticker == nil {
		m.mu.Unlock()
		return
	}
	m.ticker.Stop()
	close(m.stop)
	m.ticker = nil
	m.mu.Unlock()
	m.wg.Wait()
}

// Tick runs one scheduler pass synchronously; exported so callers (and
// tests) can drive it deterministically without waiting on the ticker.
func (m *Manager) Tick(now time.Time) {
	m.backfillUntouched(now)
	for _, rec := range m.ledger.snapshotAscending(now) {
		spec := m.specFor(rec.Tier)
		if rec.HeatScore >= spec.MinHeat {
			continue
		}
		target, ok := Next(rec.Tier)
		if !ok {
			continue
		}
		if err := m.Transition(rec.VectorID, target); err != nil {
			m.logger.Info("scheduler skipped transition", map[string]interface{}{
				"id": string(rec.VectorID), "target": target.String(), "reason": err.Error(),
			})
		}
	}
}
