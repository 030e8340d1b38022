package compression

import (
	"math"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

// ringWindow bounds how far back access timestamps are retained.
const ringWindow = 24 * time.Hour

// AccessRecord tracks the recency+frequency signal used to schedule tier
// transitions (spec.md §3). Timestamps outside the 24h ring window are
// dropped lazily on the next access or scheduler tick.
type AccessRecord struct {
	VectorID      vectorstore.VectorID
	Tier          vectorstore.Tier
	timestamps    []time.Time
	TotalAccesses int
	HeatScore     float64
	LastAccess    time.Time
	CreatedAt     time.Time
}

// heatLedger is the compression manager's access-tracking side table,
// generalized from the teacher's internal/memory/consolidator.go scoring
// pass (recency+frequency blended into one scalar, recomputed lazily).
type heatLedger struct {
	mu       sync.Mutex
	alpha    float64 // recency weight; (1-alpha) is the frequency weight
	halfLife time.Duration
	records  map[vectorstore.VectorID]*AccessRecord
}

func newHeatLedger(alpha float64, halfLife time.Duration) *heatLedger {
	if alpha <= 0 || alpha >= 1 {
		alpha = 0.6
	}
	if halfLife <= 0 {
		halfLife = 6 * time.Hour
	}
	return &heatLedger{alpha: alpha, halfLife: halfLife, records: make(map[vectorstore.VectorID]*AccessRecord)}
}

func (l *heatLedger) ensure(id vectorstore.VectorID, tier vectorstore.Tier, now time.Time) *AccessRecord {
	rec, ok := l.records[id]
	if !ok {
		rec = &AccessRecord{VectorID: id, Tier: tier, CreatedAt: now}
		l.records[id] = rec
	}
	return rec
}

// recordAccess pushes now into id's ring buffer and recomputes its heat
// score.
func (l *heatLedger) recordAccess(id vectorstore.VectorID, tier vectorstore.Tier, now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(id, tier, now)
	rec.timestamps = append(rec.timestamps, now)
	rec.TotalAccesses++
	rec.LastAccess = now
	rec.Tier = tier
	l.prune(rec, now)
	rec.HeatScore = l.score(rec, now)
	return rec.HeatScore
}

// touch recomputes id's heat score from decay alone, without registering a
// new access (used by the scheduler tick).
func (l *heatLedger) touch(id vectorstore.VectorID, tier vectorstore.Tier, now time.Time) float64 {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec := l.ensure(id, tier, now)
	rec.Tier = tier
	l.prune(rec, now)
	rec.HeatScore = l.score(rec, now)
	return rec.HeatScore
}

func (l *heatLedger) prune(rec *AccessRecord, now time.Time) {
	cutoff := now.Add(-ringWindow)
	kept := rec.timestamps[:0]
	for _, ts := range rec.timestamps {
		if ts.After(cutoff) {
			kept = append(kept, ts)
		}
	}
	rec.timestamps = kept
}

// score blends a recency term (exponential decay since last access with the
// configured half-life) and a frequency term (accesses within the 24h
// window, saturating at a fixed cap of 20) into [0,1].
func (l *heatLedger) score(rec *AccessRecord, now time.Time) float64 {
	var recency float64
	if !rec.LastAccess.IsZero() {
		elapsed := now.Sub(rec.LastAccess)
		recency = math.Exp(-math.Ln2 * elapsed.Hours() / l.halfLife.Hours())
	}
	const freqSaturation = 20.0
	frequency := float64(len(rec.timestamps)) / freqSaturation
	if frequency > 1 {
		frequency = 1
	}
	heat := l.alpha*recency + (1-l.alpha)*frequency
	if heat < 0 {
		heat = 0
	}
	if heat > 1 {
		heat = 1
	}
	return heat
}

func (l *heatLedger) get(id vectorstore.VectorID) (*AccessRecord, bool) {
	l.mu.Lock()
	defer l.mu.Unlock()
	rec, ok := l.records[id]
	if !ok {
		return nil, false
	}
	cp := *rec
	cp.timestamps = append([]time.Time(nil), rec.timestamps...)
	return &cp, true
}

// snapshotAscending returns every tracked id's current heat score, ascending
// (coldest first) — the order the scheduler walks.
func (l *heatLedger) snapshotAscending(now time.Time) []*AccessRecord {
	l.mu.Lock()
	defer l.mu.Unlock()
	out := make([]*AccessRecord, 0, len(l.records))
	for _, rec := range l.records {
		l.prune(rec, now)
		rec.HeatScore = l.score(rec, now)
		cp := *rec
		out = append(out, &cp)
	}
	for i := 1; i < len(out); i++ {
		j := i
		for j > 0 && out[j].HeatScore < out[j-1].HeatScore {
			out[j], out[j-1] = out[j-1], out[j]
			j--
		}
	}
	return out
}

func (l *heatLedger) delete(id vectorstore.VectorID) {
	l.mu.Lock()
	defer l.mu.Unlock()
	delete(l.records, id)
}
