package cache

import (
	"context"
	"errors"
	"log/slog"
	"sort"
	"sync/atomic"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/types"
)

// minL1Size keeps the L1 tier useful even for tiny configured caches.
const minL1Size = 16

// HybridCache layers a small in-process MemoryCache (L1) over a shared
// RedisCache (L2). Reads try L1, fall back to L2 and promote the value on
// a hit. Writes go through to both tiers; an L2 write failure propagates
// because the remote tier is the one other processes see.
type HybridCache struct {
	l1     *MemoryCache
	l2     *RedisCache
	logger *slog.Logger

	hits       atomic.Int64
	misses     atomic.Int64
	sets       atomic.Int64
	deletes    atomic.Int64
	promotions atomic.Int64

	closed atomic.Bool
}

// NewHybridCache builds the two tiers from the configuration. The L1 tier
// is sized to a tenth of the configured limit so the remote tier stays the
// capacity of record.
func NewHybridCache(cfg *config.Config, logger *slog.Logger) (*HybridCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	l1Size := cfg.MaxSize / 10
	if l1Size < minL1Size {
		l1Size = minL1Size
	}
	l1Cfg := *cfg
	l1Cfg.MaxSize = l1Size

	l1, err := NewMemoryCache(&l1Cfg, logger)
	if err != nil {
		return nil, err
	}

	l2, err := NewRedisCache(cfg.Redis, logger)
	if err != nil {
		l1.Close()
		return nil, err
	}

	return &HybridCache{
		l1:     l1,
		l2:     l2,
		logger: logger.With("component", "hybrid-cache"),
	}, nil
}

// Name returns the backend name.
func (c *HybridCache) Name() string {
	return "hybrid"
}

// IsAvailable reports true when either tier can serve. L1 is always local,
// so in practice this degrades gracefully while Redis is down.
func (c *HybridCache) IsAvailable() bool {
	if c.closed.Load() {
		return false
	}
	return c.l1.IsAvailable() || c.l2.IsAvailable()
}

// Get reads L1 first, then L2. An L2 hit is promoted into L1 so the next
// read for the same key stays local.
func (c *HybridCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	data, err := c.l1.Get(ctx, key)
	if err == nil {
		c.hits.Add(1)
		return data, nil
	}
	if !errors.Is(err, types.ErrCacheMiss) {
		return nil, err
	}

	data, err = c.l2.Get(ctx, key)
	if err != nil {
		c.misses.Add(1)
		return nil, err
	}

	if perr := c.l1.Set(ctx, key, data, nil); perr != nil {
		c.logger.Debug("L1 promotion failed", "key", key, "error", perr)
	} else {
		c.promotions.Add(1)
	}

	c.hits.Add(1)
	return data, nil
}

// Set writes through to both tiers. An L1 failure is logged and tolerated;
// an L2 failure is the caller's problem.
func (c *HybridCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.l1.Set(ctx, key, value, opts); err != nil {
		c.logger.Warn("L1 write failed", "key", key, "error", err)
	}
	if err := c.l2.Set(ctx, key, value, opts); err != nil {
		return err
	}

	c.sets.Add(1)
	return nil
}

// Delete removes the key from both tiers. The key existed if either tier
// had it.
func (c *HybridCache) Delete(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	l1Existed, l1Err := c.l1.Delete(ctx, key)
	l2Existed, l2Err := c.l2.Delete(ctx, key)
	if l2Err != nil {
		return l1Existed, l2Err
	}
	if l1Err != nil {
		return l2Existed, l1Err
	}

	c.deletes.Add(1)
	return l1Existed || l2Existed, nil
}

// Exists reports whether either tier holds the key. A value only in L2 is
// not promoted; promotion is reserved for actual reads.
func (c *HybridCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}

	if ok, err := c.l1.Exists(ctx, key); err == nil && ok {
		return true, nil
	}
	return c.l2.Exists(ctx, key)
}

// Clear empties both tiers.
func (c *HybridCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}

	if err := c.l1.Clear(ctx); err != nil {
		return err
	}
	return c.l2.Clear(ctx)
}

// Keys returns the deduplicated union of both tiers' matching keys.
func (c *HybridCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}

	l1Keys, err := c.l1.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}
	l2Keys, err := c.l2.Keys(ctx, pattern)
	if err != nil {
		return nil, err
	}

	seen := make(map[string]struct{}, len(l1Keys)+len(l2Keys))
	union := make([]string, 0, len(l1Keys)+len(l2Keys))
	for _, k := range l1Keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			union = append(union, k)
		}
	}
	for _, k := range l2Keys {
		if _, ok := seen[k]; !ok {
			seen[k] = struct{}{}
			union = append(union, k)
		}
	}
	sort.Strings(union)
	return union, nil
}

// CleanupExpired sweeps the L1 tier. Redis expires its own keys.
func (c *HybridCache) CleanupExpired(ctx context.Context) (int, error) {
	if c.closed.Load() {
		return 0, types.ErrClosed
	}
	return c.l1.CleanupExpired(ctx)
}

// Stats returns the hybrid-level counters. Size and memory reflect the L1
// tier; the remote tier does not report size.
func (c *HybridCache) Stats() types.CacheStats {
	l1 := c.l1.Stats()
	return types.CacheStats{
		Hits:             c.hits.Load(),
		Misses:           c.misses.Load(),
		Sets:             c.sets.Load(),
		Deletes:          c.deletes.Load(),
		Evictions:        l1.Evictions,
		Size:             l1.Size,
		MemoryUsageBytes: l1.MemoryUsageBytes,
	}
}

// Promotions returns how many L2 hits have been copied into L1.
func (c *HybridCache) Promotions() int64 {
	return c.promotions.Load()
}

// L1 exposes the local tier.
func (c *HybridCache) L1() *MemoryCache {
	return c.l1
}

// L2 exposes the remote tier.
func (c *HybridCache) L2() *RedisCache {
	return c.l2
}

// Close closes both tiers.
func (c *HybridCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	l1Err := c.l1.Close()
	l2Err := c.l2.Close()
	if l2Err != nil {
		return l2Err
	}
	return l1Err
}

var (
	_ types.Backend = (*HybridCache)(nil)
	_ types.Sweeper = (*HybridCache)(nil)
)
