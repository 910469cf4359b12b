// Package cache implements the larder cache backends (memory, sharded,
// redis, hybrid), value serialization, and the named-cache manager.
package cache

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/types"
)

// MemoryCache is an in-process bounded cache with a pluggable eviction
// policy. One mutex guards every mutating sequence, so check -> evict ->
// insert runs as a single critical section and the ordering structures can
// never disagree with the entry map.
type MemoryCache struct {
	maxSize    int
	defaultTTL time.Duration
	clock      clock.Clock
	logger     *slog.Logger

	mu      sync.Mutex
	entries map[string]*entry
	policy  evictor
	closed  bool

	// counters, guarded by mu
	hits        int64
	misses      int64
	sets        int64
	deletes     int64
	evictions   int64
	memoryBytes int64
}

// NewMemoryCache creates a memory cache from configuration.
func NewMemoryCache(cfg *config.Config, logger *slog.Logger) (*MemoryCache, error) {
	return NewMemoryCacheWithClock(cfg, logger, clock.New())
}

// NewMemoryCacheWithClock creates a memory cache with an injected clock so
// tests can step through TTL expiry deterministically.
func NewMemoryCacheWithClock(cfg *config.Config, logger *slog.Logger, clk clock.Clock) (*MemoryCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	policy, err := cfg.EvictionPolicy()
	if err != nil {
		return nil, err
	}

	maxSize := cfg.MaxSize
	if maxSize <= 0 {
		maxSize = 1000
	}

	return &MemoryCache{
		maxSize:    maxSize,
		defaultTTL: cfg.DefaultTTL,
		clock:      clk,
		logger:     logger.With("component", "memory-cache"),
		entries:    make(map[string]*entry),
		policy:     newEvictor(policy),
	}, nil
}

// Name returns the backend name.
func (c *MemoryCache) Name() string {
	return "memory"
}

// IsAvailable returns true if the cache is not closed.
func (c *MemoryCache) IsAvailable() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return !c.closed
}

// Get retrieves a value. An expired entry is removed and treated as a miss.
func (c *MemoryCache) Get(ctx context.Context, key string) ([]byte, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClosed
	}

	e, ok := c.entries[key]
	if !ok {
		c.misses++
		return nil, types.ErrCacheMiss
	}

	now := c.clock.Now()
	if e.IsExpired(now) {
		c.removeLocked(e)
		c.misses++
		return nil, types.ErrCacheMiss
	}

	e.Touch(now)
	c.policy.touch(e)
	c.hits++
	return e.Value, nil
}

// Set stores a value, evicting per the configured policy first if the
// insert would exceed MaxSize.
func (c *MemoryCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrClosed
	}

	now := c.clock.Now()

	// Overwrites are remove+insert so the policy sees fresh bookkeeping.
	if old, ok := c.entries[key]; ok {
		c.removeLocked(old)
	}

	for len(c.entries) >= c.maxSize {
		victim := c.policy.victim()
		if victim == nil {
			break
		}
		c.removeLocked(victim)
		c.evictions++
		c.logger.Debug("evicted entry", "key", victim.Key)
	}

	e := &entry{
		CacheEntry: types.CacheEntry{
			Key:          key,
			Value:        value,
			CreatedAt:    now,
			LastAccessed: now,
		},
		heapIdx: -1,
	}
	if ttl := opts.EffectiveTTL(c.defaultTTL); ttl > 0 {
		e.ExpiresAt = now.Add(ttl)
	}

	c.entries[key] = e
	c.policy.add(e)
	c.memoryBytes += e.SizeBytes()
	c.sets++
	return nil
}

// Delete removes a key and reports whether it existed.
func (c *MemoryCache) Delete(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, types.ErrClosed
	}

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}

	c.removeLocked(e)
	c.deletes++
	return true, nil
}

// Exists checks for a key. An expired entry is removed and reported absent.
func (c *MemoryCache) Exists(ctx context.Context, key string) (bool, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return false, types.ErrClosed
	}

	e, ok := c.entries[key]
	if !ok {
		return false, nil
	}

	if e.IsExpired(c.clock.Now()) {
		c.removeLocked(e)
		return false, nil
	}

	return true, nil
}

// Clear removes all entries.
func (c *MemoryCache) Clear(ctx context.Context) error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return types.ErrClosed
	}

	c.entries = make(map[string]*entry)
	c.policy.reset()
	c.memoryBytes = 0
	return nil
}

// Keys returns the live keys matching the pattern.
func (c *MemoryCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, types.ErrClosed
	}

	now := c.clock.Now()
	keys := make([]string, 0, len(c.entries))
	for key, e := range c.entries {
		if e.IsExpired(now) {
			continue
		}
		if matchPattern(key, pattern) {
			keys = append(keys, key)
		}
	}
	return keys, nil
}

// CleanupExpired removes every entry whose expiry has passed and returns
// the number removed.
func (c *MemoryCache) CleanupExpired(ctx context.Context) (int, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return 0, types.ErrClosed
	}

	now := c.clock.Now()
	var expired []*entry
	for _, e := range c.entries {
		if e.IsExpired(now) {
			expired = append(expired, e)
		}
	}
	for _, e := range expired {
		c.removeLocked(e)
	}

	if len(expired) > 0 {
		c.logger.Debug("swept expired entries", "count", len(expired))
	}
	return len(expired), nil
}

// Stats returns a snapshot of the cache counters.
func (c *MemoryCache) Stats() types.CacheStats {
	c.mu.Lock()
	defer c.mu.Unlock()

	return types.CacheStats{
		Hits:             c.hits,
		Misses:           c.misses,
		Sets:             c.sets,
		Deletes:          c.deletes,
		Evictions:        c.evictions,
		Size:             len(c.entries),
		MemoryUsageBytes: c.memoryBytes,
	}
}

// Close marks the cache closed and releases its entries.
func (c *MemoryCache) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil
	}
	c.closed = true
	c.entries = nil
	c.policy.reset()
	return nil
}

// MaxSize returns the configured entry bound.
func (c *MemoryCache) MaxSize() int {
	return c.maxSize
}

// removeLocked unlinks an entry from the map, the policy bookkeeping and
// the memory accounting. Callers hold c.mu.
func (c *MemoryCache) removeLocked(e *entry) {
	delete(c.entries, e.Key)
	c.policy.remove(e)
	c.memoryBytes -= e.SizeBytes()
}

var (
	_ types.Backend = (*MemoryCache)(nil)
	_ types.Sweeper = (*MemoryCache)(nil)
)
