package boundary

import (
	"container/list"
	"context"
	"sync"
	"sync/atomic"
	"time"

	"github.com/rotisserie/eris"
	"go.uber.org/zap"
)

// Cache stores raw boundary payloads by key string.
type Cache interface {
	Name() string
	Get(ctx context.Context, key string) ([]byte, bool, error)
	Put(ctx context.Context, key string, data []byte) error
}

// LookupFunc observes one cache lookup.
type LookupFunc func(layer string, hit bool)

// CachedProvider consults cache layers in order before falling back to the wrapped provider.
// A hit in a later layer is copied into the earlier ones. Only successful fetches are cached.
type CachedProvider struct {
	next     Provider
	layers   []Cache
	onLookup LookupFunc
}

// NewCachedProvider wraps next with the given layers, fastest first.
func NewCachedProvider(next Provider, onLookup LookupFunc, layers ...Cache) *CachedProvider {
	if onLookup == nil {
		onLookup = func(string, bool) {}
	}
	return &CachedProvider{next: next, layers: layers, onLookup: onLookup}
}

// Fetch implements Provider.
func (c *CachedProvider) Fetch(ctx context.Context, key Key) (*Geometry, error) {
	k := key.String()
	log := zap.L().With(zap.String("component", "boundary.cache"), zap.String("key", k))

	for i, layer := range c.layers {
		data, ok, err := layer.Get(ctx, k)
		if err != nil {
			log.Warn("cache get failed", zap.String("layer", layer.Name()), zap.Error(err))
			c.onLookup(layer.Name(), false)
			continue
		}
		c.onLookup(layer.Name(), ok)
		if !ok {
			continue
		}

		g, err := ParseGeometry(data)
		if err != nil {
			log.Warn("discarding malformed cached payload", zap.String("layer", layer.Name()), zap.Error(err))
			continue
		}
		c.fill(ctx, log, c.layers[:i], k, data)
		return g, nil
	}

	g, err := c.next.Fetch(ctx, key)
	if err != nil {
		return nil, err
	}
	c.fill(ctx, log, c.layers, k, g.Payload)
	return g, nil
}

func (c *CachedProvider) fill(ctx context.Context, log *zap.Logger, layers []Cache, key string, data []byte) {
	for _, layer := range layers {
		if err := layer.Put(ctx, key, data); err != nil {
			log.Warn("cache put failed", zap.String("layer", layer.Name()), zap.Error(err))
		}
	}
}

// CacheStats contains cache performance statistics.
type CacheStats struct {
	Entries    int     `json:"entries"`
	MaxEntries int     `json:"max_entries"`
	Hits       int64   `json:"hits"`
	Misses     int64   `json:"misses"`
	HitRate    float64 `json:"hit_rate"`
}

// MemoryCache is a concurrent-safe LRU cache with TTL expiration.
type MemoryCache struct {
	mu         sync.Mutex
	entries    map[string]*list.Element
	lru        *list.List // front = most recently used
	maxEntries int
	ttl        time.Duration
	now        func() time.Time
	hits       atomic.Int64
	misses     atomic.Int64
}

type memoryEntry struct {
	key       string
	data      []byte
	createdAt time.Time
}

// NewMemoryCache creates a cache holding at most maxEntries payloads for ttl each.
// A zero ttl disables expiry.
func NewMemoryCache(maxEntries int, ttl time.Duration) (*MemoryCache, error) {
	if maxEntries <= 0 {
		return nil, eris.Errorf("boundary: memory cache size must be positive, got %d", maxEntries)
	}
	return &MemoryCache{
		entries:    make(map[string]*list.Element),
		lru:        list.New(),
		maxEntries: maxEntries,
		ttl:        ttl,
		now:        time.Now,
	}, nil
}

// Name implements Cache.
func (c *MemoryCache) Name() string { return "memory" }

// Get implements Cache.
func (c *MemoryCache) Get(_ context.Context, key string) ([]byte, bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	el, ok := c.entries[key]
	if !ok {
		c.misses.Add(1)
		return nil, false, nil
	}

	entry := el.Value.(*memoryEntry)
	if c.ttl > 0 && c.now().Sub(entry.createdAt) > c.ttl {
		c.lru.Remove(el)
		delete(c.entries, key)
		c.misses.Add(1)
		return nil, false, nil
	}

	c.lru.MoveToFront(el)
	c.hits.Add(1)
	return entry.data, true, nil
}

// Put implements Cache, evicting the least recently used entry when full.
func (c *MemoryCache) Put(_ context.Context, key string, data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if el, ok := c.entries[key]; ok {
		el.Value = &memoryEntry{key: key, data: data, createdAt: c.now()}
		c.lru.MoveToFront(el)
		return nil
	}

	for c.lru.Len() >= c.maxEntries {
		oldest := c.lru.Back()
		c.lru.Remove(oldest)
		delete(c.entries, oldest.Value.(*memoryEntry).key)
	}

	c.entries[key] = c.lru.PushFront(&memoryEntry{key: key, data: data, createdAt: c.now()})
	return nil
}

// Stats returns cache performance statistics.
func (c *MemoryCache) Stats() CacheStats {
	c.mu.Lock()
	entries := c.lru.Len()
	c.mu.Unlock()

	hits, misses := c.hits.Load(), c.misses.Load()
	var hitRate float64
	if total := hits + misses; total > 0 {
		hitRate = float64(hits) / float64(total)
	}

	return CacheStats{
		Entries:    entries,
		MaxEntries: c.maxEntries,
		Hits:       hits,
		Misses:     misses,
		HitRate:    hitRate,
	}
}
