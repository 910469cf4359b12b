package cache

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"time"

	"github.com/allegro/bigcache/v3"

	"github.com/mpetka/larder/internal/types"
)

// ShardedCache is an in-process backend built on bigcache's sharded,
// GC-friendly storage. It trades per-entry control for throughput: all
// entries share one life window and eviction is size-driven inside
// bigcache, so per-entry TTLs and eviction policies do not apply. Use it
// for hot, uniform workloads where the single mutex of MemoryCache shows
// up in profiles.
type ShardedCache struct {
	cache  *bigcache.BigCache
	logger *slog.Logger

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64

	closed atomic.Bool
}

// NewShardedCache creates a sharded cache. defaultTTL becomes the shared
// life window for every entry; zero means ten minutes. maxMemoryMB caps
// total memory in megabytes, not entries; zero leaves it uncapped.
func NewShardedCache(defaultTTL time.Duration, maxMemoryMB int, logger *slog.Logger) (*ShardedCache, error) {
	if logger == nil {
		logger = slog.Default()
	}
	if defaultTTL <= 0 {
		defaultTTL = 10 * time.Minute
	}

	cfg := bigcache.DefaultConfig(defaultTTL)
	if maxMemoryMB > 0 {
		cfg.HardMaxCacheSize = maxMemoryMB
	}
	cfg.Verbose = false

	bc, err := bigcache.New(context.Background(), cfg)
	if err != nil {
		return nil, types.NewCacheError("New", "", "sharded", err)
	}

	return &ShardedCache{
		cache:  bc,
		logger: logger.With("component", "sharded-cache"),
	}, nil
}

// Name returns the backend name.
func (c *ShardedCache) Name() string {
	return "sharded"
}

// IsAvailable reports whether the backend accepts operations.
func (c *ShardedCache) IsAvailable() bool {
	return !c.closed.Load()
}

// Get retrieves a value.
func (c *ShardedCache) Get(_ context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			c.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		return nil, types.NewCacheError("Get", key, "sharded", err)
	}

	c.hits.Add(1)
	return data, nil
}

// Set stores a value. Per-entry TTL options are ignored; the shared life
// window applies.
func (c *ShardedCache) Set(_ context.Context, key string, value []byte, _ *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.cache.Set(key, value); err != nil {
		return types.NewCacheError("Set", key, "sharded", err)
	}

	c.sets.Add(1)
	return nil
}

// Delete removes a key, reporting whether it was present.
func (c *ShardedCache) Delete(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	if err := c.cache.Delete(key); err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, types.NewCacheError("Delete", key, "sharded", err)
	}

	c.deletes.Add(1)
	return true, nil
}

// Exists checks for a key.
func (c *ShardedCache) Exists(_ context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	_, err := c.cache.Get(key)
	if err != nil {
		if errors.Is(err, bigcache.ErrEntryNotFound) {
			return false, nil
		}
		return false, types.NewCacheError("Exists", key, "sharded", err)
	}
	return true, nil
}

// Clear removes all entries.
func (c *ShardedCache) Clear(_ context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.cache.Reset(); err != nil {
		return types.NewCacheError("Clear", "", "sharded", err)
	}
	return nil
}

// Keys returns the keys matching the glob pattern.
func (c *ShardedCache) Keys(_ context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	var keys []string
	it := c.cache.Iterator()
	for it.SetNext() {
		info, err := it.Value()
		if err != nil {
			// Entry evicted mid-iteration; skip it.
			continue
		}
		if matchPattern(info.Key(), pattern) {
			keys = append(keys, info.Key())
		}
	}
	return keys, nil
}

// Stats returns the cumulative counters plus bigcache's own size figures.
func (c *ShardedCache) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Deletes:          c.deletes.Load(),
		Size:             c.cache.Len(),
		MemoryUsageBytes: int64(c.cache.Capacity()),
	}
}

// Close releases the underlying shards.
func (c *ShardedCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	return c.cache.Close()
}

var _ types.Backend = (*ShardedCache)(nil)
