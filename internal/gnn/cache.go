package gnn

import (
	"hash/fnv"
	"math"
	"sort"
	"sync"
	"time"

	"github.com/ashgrove-systems/godagent-memory/internal/cache"
	"github.com/ashgrove-systems/godagent-memory/internal/vectorstore"
)

// coordinatePrefixLen is the number of leading embedding coordinates
// folded into the cache key (SPEC_FULL.md's resolution of the C8 Open
// Question: N=32 decorrelates typical 1536-dim embeddings' leading
// coordinates while keeping the hash O(1) per lookup).
const coordinatePrefixLen = 32

// CacheKey hashes an embedding's leading coordinates XOR'd with the sorted
// hyperedge ids contributing to its graph context (spec.md §4.7: "An LRU
// keyed by hash(embedding_first_N_coords) ⊕ hash(sorted_hyperedge_ids)").
func CacheKey(embedding []float32, edgeIDs []string) uint64 {
	h1 := fnv.New64a()
	n := len(embedding)
	if n > coordinatePrefixLen {
		n = coordinatePrefixLen
	}
	var buf [4]byte
	for i := 0; i < n; i++ {
		bits := math.Float32bits(embedding[i])
		buf[0] = byte(bits)
		buf[1] = byte(bits >> 8)
		buf[2] = byte(bits >> 16)
		buf[3] = byte(bits >> 24)
		h1.Write(buf[:])
	}

	sorted := append([]string(nil), edgeIDs...)
	sort.Strings(sorted)
	h2 := fnv.New64a()
	for _, id := range sorted {
		h2.Write([]byte(id))
	}
	return h1.Sum64() ^ h2.Sum64()
}

// entry is an enhanced vector kept int8-quantized to bound cache memory
// independent of the vector store's own tier (SPEC_FULL.md's C4
// supplement: Int8Quantizer is exercised here, not as a C5 tier codec).
type entry struct {
	code      vectorstore.Int8Code
	createdAt time.Time
	bytes     int
}

// EnhancementCache is the GNN enhancer's LRU result cache (spec.md §4.7:
// hits/misses/evictions/memory-bytes/hit-rate metrics, 5-minute default
// TTL, invalidate_nodes/invalidate_all). It keeps a side index of
// key->contributing-node-ids so InvalidateNodes can find affected entries
// without the LRU itself needing an iteration API.
type EnhancementCache struct {
	mu        sync.Mutex
	lru       *cache.Cache[uint64, entry]
	quantizer *vectorstore.Int8Quantizer
	ttl       time.Duration
	byNode    map[uint64][]string
}

// EnhancementCacheConfig configures an EnhancementCache.
type EnhancementCacheConfig struct {
	Dimension  int
	MaxEntries int
	MaxBytes   int
	TTL        time.Duration
}

func NewEnhancementCache(cfg EnhancementCacheConfig) *EnhancementCache {
	if cfg.TTL <= 0 {
		cfg.TTL = 5 * time.Minute
	}
	if cfg.MaxEntries <= 0 {
		cfg.MaxEntries = 10000
	}
	ec := &EnhancementCache{
		quantizer: vectorstore.NewInt8Quantizer(cfg.Dimension, false, 1.0),
		ttl:       cfg.TTL,
		byNode:    make(map[uint64][]string),
	}
	ec.lru = cache.New(cache.Config[uint64, entry]{
		MaxEntries: cfg.MaxEntries,
		MaxBytes:   cfg.MaxBytes,
		Size:       func(e entry) int { return e.bytes },
		OnEvict:    func(e cache.Eviction[uint64]) { ec.forgetKey(e.Key) },
	})
	return ec
}

func (c *EnhancementCache) forgetKey(key uint64) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.byNode, key)
}

// Put stores an enhanced vector under key, recording which node ids
// contributed so InvalidateNodes can find it later.
func (c *EnhancementCache) Put(key uint64, vector []float32, nodeIDs []string) error {
	code, err := c.quantizer.Encode(vector)
	if err != nil {
		return err
	}
	c.mu.Lock()
	c.byNode[key] = append([]string(nil), nodeIDs...)
	c.mu.Unlock()

	c.lru.Put(key, entry{
		code:      code,
		createdAt: time.Now(),
		bytes:     len(code.Codes) + 4,
	})
	return nil
}

// Get returns the cached vector for key, or (nil, false) on a miss or
// TTL expiry. An expired entry is evicted eagerly rather than left to be
// overwritten later.
func (c *EnhancementCache) Get(key uint64) ([]float32, bool) {
	e, ok := c.lru.Get(key)
	if !ok {
		return nil, false
	}
	if time.Since(e.createdAt) > c.ttl {
		c.lru.Delete(key)
		c.forgetKey(key)
		return nil, false
	}
	return c.quantizer.Decode(e.code), true
}

// InvalidateNodes removes every cached entry whose contributing node set
// intersects ids (spec.md §4.7).
func (c *EnhancementCache) InvalidateNodes(ids []string) {
	want := make(map[string]struct{}, len(ids))
	for _, id := range ids {
		want[id] = struct{}{}
	}

	c.mu.Lock()
	var hit []uint64
	for key, nodeIDs := range c.byNode {
		for _, id := range nodeIDs {
			if _, match := want[id]; match {
				hit = append(hit, key)
				break
			}
		}
	}
	c.mu.Unlock()

	for _, key := range hit {
		c.lru.Delete(key)
		c.forgetKey(key)
	}
}

// InvalidateAll clears every cached entry.
func (c *EnhancementCache) InvalidateAll() {
	c.lru.Clear()
	c.mu.Lock()
	c.byNode = make(map[uint64][]string)
	c.mu.Unlock()
}

// Metrics returns the underlying LRU's hit/miss/eviction snapshot.
func (c *EnhancementCache) Metrics() cache.Metrics {
	return c.lru.Metrics()
}
