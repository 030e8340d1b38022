package gnn

import (
	"encoding/binary"
	"fmt"
	"hash/crc32"
	"math"

	"github.com/ashgrove-systems/godagent-memory/internal/errs"
)

// LayerWeights is a layer's weights in their persisted form: version, the
// shape they were trained at, a CRC32 checksum over Bytes, and the raw
// little-endian float32 payload (W rows, then B) — spec.md §4.7 "Weight
// persistence".
type LayerWeights struct {
	Version  int
	DimIn    int
	DimOut   int
	Checksum uint32
	Bytes    []byte
}

// Serialize encodes l's weights for persistence.
func (l *Layer) Serialize(version int) LayerWeights {
	buf := make([]byte, 0, (l.DimIn*l.DimOut+l.DimOut)*4)
	for _, row := range l.W {
		for _, v := range row {
			buf = appendFloat32(buf, v)
		}
	}
	for _, v := range l.B {
		buf = appendFloat32(buf, v)
	}
	return LayerWeights{
		Version:  version,
		DimIn:    l.DimIn,
		DimOut:   l.DimOut,
		Checksum: crc32.ChecksumIEEE(buf),
		Bytes:    buf,
	}
}

func appendFloat32(buf []byte, v float32) []byte {
	var tmp [4]byte
	binary.LittleEndian.PutUint32(tmp[:], math.Float32bits(v))
	return append(buf, tmp[:]...)
}

func readFloat32(buf []byte, offset int) float32 {
	return math.Float32frombits(binary.LittleEndian.Uint32(buf[offset : offset+4]))
}

// LoadLayer reconstructs a Layer from persisted weights, rejecting a
// checksum or dimension mismatch rather than silently loading corrupt or
// stale data (the caller is expected to warn and fall back to fresh
// Xavier init, per spec.md §4.7's "loud warning and fallback").
func LoadLayer(wts LayerWeights, expectDimIn, expectDimOut int, act Activation) (*Layer, error) {
	if wts.DimIn != expectDimIn || wts.DimOut != expectDimOut {
		return nil, fmt.Errorf("%w: weights are %dx%d, expected %dx%d", errs.ErrVersionMismatch, wts.DimIn, wts.DimOut, expectDimIn, expectDimOut)
	}
	if crc32.ChecksumIEEE(wts.Bytes) != wts.Checksum {
		return nil, errs.ErrChecksumMismatch
	}
	want := (wts.DimIn*wts.DimOut + wts.DimOut) * 4
	if len(wts.Bytes) != want {
		return nil, errs.ErrCorruptRecord
	}

	w := make([][]float32, wts.DimOut)
	offset := 0
	for i := range w {
		w[i] = make([]float32, wts.DimIn)
		for j := range w[i] {
			w[i][j] = readFloat32(wts.Bytes, offset)
			offset += 4
		}
	}
	b := make([]float32, wts.DimOut)
	for i := range b {
		b[i] = readFloat32(wts.Bytes, offset)
		offset += 4
	}
	return &Layer{DimIn: wts.DimIn, DimOut: wts.DimOut, W: w, B: b, Act: act}, nil
}

// CheckpointStore persists named byte blobs. A small interface rather
// than a concrete filesystem path lets tests swap in an in-memory store.
type CheckpointStore interface {
	Save(name string, data []byte) error
	Load(name string) ([]byte, error)
	Delete(name string) error
	List() ([]string, error)
}

// MemCheckpointStore is an in-memory CheckpointStore, useful for tests and
// as the default when no on-disk store is configured.
type MemCheckpointStore struct {
	blobs map[string][]byte
}

func NewMemCheckpointStore() *MemCheckpointStore {
	return &MemCheckpointStore{blobs: make(map[string][]byte)}
}

func (s *MemCheckpointStore) Save(name string, data []byte) error {
	s.blobs[name] = append([]byte(nil), data...)
	return nil
}

func (s *MemCheckpointStore) Load(name string) ([]byte, error) {
	b, ok := s.blobs[name]
	if !ok {
		return nil, errs.ErrNotFound
	}
	return b, nil
}

func (s *MemCheckpointStore) Delete(name string) error {
	delete(s.blobs, name)
	return nil
}

func (s *MemCheckpointStore) List() ([]string, error) {
	names := make([]string, 0, len(s.blobs))
	for k := range s.blobs {
		names = append(names, k)
	}
	return names, nil
}

// CheckpointRing rotates numbered snapshots under a CheckpointStore,
// keeping the last KeepLast (spec.md §4.7: "Checkpointing rotates numbered
// snapshots, keeping the configured last-N"), grounded on the teacher's
// consolidator.go ring-buffer-of-snapshots idiom.
type CheckpointRing struct {
	store    CheckpointStore
	prefix   string // e.g. "gnn/checkpoints/layer1"
	keepLast int
	next     int
}

func NewCheckpointRing(store CheckpointStore, prefix string, keepLast int) *CheckpointRing {
	if keepLast <= 0 {
		keepLast = 5
	}
	return &CheckpointRing{store: store, prefix: prefix, keepLast: keepLast}
}

func (r *CheckpointRing) name(n int) string {
	return fmt.Sprintf("%s_%d.ckpt", r.prefix, n)
}

// Save stores data under the next sequence number and prunes anything
// older than keepLast generations.
func (r *CheckpointRing) Save(data []byte) error {
	r.next++
	if err := r.store.Save(r.name(r.next), data); err != nil {
		return err
	}
	if evict := r.next - r.keepLast; evict > 0 {
		_ = r.store.Delete(r.name(evict))
	}
	return nil
}

// Latest loads the most recently saved checkpoint, or ErrNotFound if none
// has been saved yet.
func (r *CheckpointRing) Latest() ([]byte, error) {
	if r.next == 0 {
		return nil, errs.ErrNotFound
	}
	return r.store.Load(r.name(r.next))
}
