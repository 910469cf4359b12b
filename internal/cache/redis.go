package cache

import (
	"context"
	"crypto/tls"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/types"
)

// disconnectErrorThreshold is how many consecutive errors mark the backend
// unavailable until an operation succeeds again.
const disconnectErrorThreshold = 5

// RedisCache is a remote cache backend. Every key is namespaced with the
// configured prefix. The connection is established lazily on first use;
// read failures degrade to a miss so a flaky Redis can only make the cache
// wrong by omission, never by commission. Write failures propagate.
type RedisCache struct {
	client *redis.Client
	config config.RedisConfig
	logger *slog.Logger

	connectOnce sync.Once
	connected   atomic.Bool

	mu            sync.RWMutex
	lastError     error
	lastErrorTime time.Time
	errorCount    atomic.Int64

	hits    atomic.Int64
	misses  atomic.Int64
	sets    atomic.Int64
	deletes atomic.Int64

	closed atomic.Bool
}

// NewRedisCache creates a Redis cache backend. A malformed URL is a
// permanent configuration error. An unreachable server is not: the first
// operation discovers that and degrades.
func NewRedisCache(cfg config.RedisConfig, logger *slog.Logger) (*RedisCache, error) {
	if logger == nil {
		logger = slog.Default()
	}

	opts, err := redis.ParseURL(cfg.URL)
	if err != nil {
		return nil, fmt.Errorf("%w: redis url: %v", types.ErrInvalidConfig, err)
	}

	if cfg.DB != 0 {
		opts.DB = cfg.DB
	}
	if !cfg.Password.IsEmpty() {
		opts.Password = cfg.Password.Value()
	}
	if cfg.PoolSize > 0 {
		opts.PoolSize = cfg.PoolSize
	}
	if cfg.MinIdleConns > 0 {
		opts.MinIdleConns = cfg.MinIdleConns
	}
	if cfg.DialTimeout > 0 {
		opts.DialTimeout = cfg.DialTimeout
	}
	if cfg.ReadTimeout > 0 {
		opts.ReadTimeout = cfg.ReadTimeout
	}
	if cfg.WriteTimeout > 0 {
		opts.WriteTimeout = cfg.WriteTimeout
	}
	if cfg.EnableTLS && opts.TLSConfig == nil {
		opts.TLSConfig = &tls.Config{InsecureSkipVerify: cfg.TLSSkipVerify}
		if cfg.TLSSkipVerify {
			logger.Warn("TLS certificate verification is disabled")
		}
	}

	return &RedisCache{
		client: redis.NewClient(opts),
		config: cfg,
		logger: logger.With("component", "redis-cache"),
	}, nil
}

// ensureConnected pings the server on the first operation. A failed first
// ping is logged, not fatal: availability tracking takes over from there.
func (c *RedisCache) ensureConnected(ctx context.Context) {
	c.connectOnce.Do(func() {
		pingCtx := ctx
		if c.config.DialTimeout > 0 {
			var cancel context.CancelFunc
			pingCtx, cancel = context.WithTimeout(ctx, c.config.DialTimeout)
			defer cancel()
		}
		if err := c.client.Ping(pingCtx).Err(); err != nil {
			c.logger.Warn("redis initial connection failed", "error", err)
			c.handleError(err)
			return
		}
		c.connected.Store(true)
		c.logger.Info("redis connected", "db", c.config.DB)
	})
}

// Name returns the backend name.
func (c *RedisCache) Name() string {
	return "redis"
}

// IsAvailable reports whether the last operations have been succeeding.
func (c *RedisCache) IsAvailable() bool {
	return c.connected.Load() && !c.closed.Load()
}

func (c *RedisCache) prefixKey(key string) string {
	return c.config.KeyPrefix + key
}

// Get retrieves a value. Backend failures are logged and reported as a
// miss so callers fall through to the source of truth.
func (c *RedisCache) Get(ctx context.Context, key string) ([]byte, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	c.ensureConnected(ctx)

	data, err := c.client.Get(ctx, c.prefixKey(key)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			c.misses.Add(1)
			return nil, types.ErrCacheMiss
		}
		c.handleError(err)
		c.logger.Debug("redis GET degraded to miss", "key", key, "error", err)
		c.misses.Add(1)
		return nil, types.ErrCacheMiss
	}

	c.hits.Add(1)
	c.clearError()
	return data, nil
}

// Set stores a value. Write failures propagate to the caller.
func (c *RedisCache) Set(ctx context.Context, key string, value []byte, opts *types.CacheOptions) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	c.ensureConnected(ctx)

	ttl := opts.EffectiveTTL(c.config.DefaultTTL)
	if err := c.client.Set(ctx, c.prefixKey(key), value, ttl).Err(); err != nil {
		c.handleError(err)
		return types.NewCacheError("Set", key, "redis", err)
	}

	c.sets.Add(1)
	c.clearError()
	return nil
}

// Delete removes a key. The existed result and the error are separate so
// "key absent" and "backend down" are never conflated.
func (c *RedisCache) Delete(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}
	c.ensureConnected(ctx)

	removed, err := c.client.Del(ctx, c.prefixKey(key)).Result()
	if err != nil {
		c.handleError(err)
		return false, types.NewCacheError("Delete", key, "redis", err)
	}

	c.deletes.Add(1)
	c.clearError()
	return removed > 0, nil
}

// Exists checks for a key. Backend failures degrade to "absent" (logged),
// mirroring Get.
func (c *RedisCache) Exists(ctx context.Context, key string) (bool, error) {
	if c.closed.Load() {
		return false, types.ErrClosed
	}
	c.ensureConnected(ctx)

	n, err := c.client.Exists(ctx, c.prefixKey(key)).Result()
	if err != nil {
		c.handleError(err)
		c.logger.Debug("redis EXISTS degraded to absent", "key", key, "error", err)
		return false, nil
	}

	c.clearError()
	return n > 0, nil
}

// Clear removes every key under the configured prefix. Failures propagate.
func (c *RedisCache) Clear(ctx context.Context) error {
	if c.closed.Load() {
		return types.ErrClosed
	}
	c.ensureConnected(ctx)

	var cursor uint64
	for {
		keys, next, err := c.client.Scan(ctx, cursor, c.prefixKey("*"), 100).Result()
		if err != nil {
			c.handleError(err)
			return types.NewCacheError("Clear", "", "redis", err)
		}

		if len(keys) > 0 {
			if err := c.client.Del(ctx, keys...).Err(); err != nil {
				c.handleError(err)
				return types.NewCacheError("Clear", "", "redis", err)
			}
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.clearError()
	return nil
}

// Keys returns the unprefixed keys matching the pattern.
func (c *RedisCache) Keys(ctx context.Context, pattern string) ([]string, error) {
	if c.closed.Load() {
		return nil, types.ErrClosed
	}
	c.ensureConnected(ctx)

	if pattern == "" {
		pattern = "*"
	}

	var keys []string
	var cursor uint64
	prefixLen := len(c.config.KeyPrefix)
	for {
		batch, next, err := c.client.Scan(ctx, cursor, c.prefixKey(pattern), 100).Result()
		if err != nil {
			c.handleError(err)
			return nil, types.NewCacheError("Keys", pattern, "redis", err)
		}

		for _, k := range batch {
			keys = append(keys, k[prefixLen:])
		}

		cursor = next
		if cursor == 0 {
			break
		}
	}

	c.clearError()
	return keys, nil
}

// Stats returns the cumulative counters. Size is not tracked for the
// remote backend; it reports zero.
func (c *RedisCache) Stats() types.CacheStats {
	return types.CacheStats{
		Hits:    c.hits.Load(),
		Misses:  c.misses.Load(),
		Sets:    c.sets.Load(),
		Deletes: c.deletes.Load(),
	}
}

// Close closes the client.
func (c *RedisCache) Close() error {
	if c.closed.Swap(true) {
		return nil
	}
	c.connected.Store(false)
	return c.client.Close()
}

// LastError returns the most recent backend error and when it occurred.
func (c *RedisCache) LastError() (error, time.Time) {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return c.lastError, c.lastErrorTime
}

// Ping probes the server directly, bypassing availability tracking.
func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) handleError(err error) {
	c.mu.Lock()
	c.lastError = err
	c.lastErrorTime = time.Now()
	c.mu.Unlock()

	if c.errorCount.Add(1) >= disconnectErrorThreshold {
		if c.connected.CompareAndSwap(true, false) {
			c.logger.Warn("redis marked unavailable after repeated errors", "last_error", err)
		}
	}
}

func (c *RedisCache) clearError() {
	if c.errorCount.Swap(0) > 0 {
		if c.connected.CompareAndSwap(false, true) {
			c.logger.Info("redis connection restored")
		}
	} else {
		c.connected.Store(true)
	}
}

var _ types.Backend = (*RedisCache)(nil)
