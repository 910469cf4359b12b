package cache

import (
	"context"
	"log/slog"
	"time"

	"golang.org/x/sync/singleflight"

	"github.com/mpetka/larder/internal/types"
)

// Cache binds a backend to a serializer and key validator, giving callers
// a typed surface: values in and out are arbitrary Go values, the backend
// only ever sees bytes. One Cache corresponds to one named entry in the
// manager's registry.
type Cache struct {
	name       string
	backend    types.Backend
	serializer types.Serializer
	validator  *types.KeyValidator
	logger     *slog.Logger
	metrics    types.MetricsSink
	monitoring bool

	loads singleflight.Group
}

// LoaderFunc produces a value for a key on a cache miss.
type LoaderFunc func(ctx context.Context) (any, error)

func newCache(name string, backend types.Backend, serializer types.Serializer, validator *types.KeyValidator, logger *slog.Logger, metrics types.MetricsSink, monitoring bool) *Cache {
	return &Cache{
		name:       name,
		backend:    backend,
		serializer: serializer,
		validator:  validator,
		logger:     logger.With("cache", name, "backend", backend.Name()),
		metrics:    metrics,
		monitoring: monitoring,
	}
}

// Name returns the registry name this cache was created under.
func (c *Cache) Name() string {
	return c.name
}

// Backend exposes the underlying backend.
func (c *Cache) Backend() types.Backend {
	return c.backend
}

// validateKey applies the configured key rules. A nil validator means
// validation is disabled.
func (c *Cache) validateKey(key string) error {
	if c.validator == nil {
		return nil
	}
	return c.validator.Validate(key)
}

// Get fetches and deserializes the value for key into dest, which must be
// a pointer. A missing or expired key is types.ErrCacheMiss.
func (c *Cache) Get(ctx context.Context, key string, dest any) error {
	if err := c.validateKey(key); err != nil {
		return err
	}

	start := time.Now()
	data, err := c.backend.Get(ctx, key)
	if err != nil {
		if types.IsCacheMiss(err) {
			c.emitCount("cache.miss", 1)
			return err
		}
		return err
	}
	c.emitCount("cache.hit", 1)
	c.emitTiming("cache.get", time.Since(start))

	if err := c.serializer.Unmarshal(data, dest); err != nil {
		c.logger.Warn("stored value failed to deserialize", "key", key, "error", err)
		return types.NewCacheError("Get", key, c.backend.Name(), err)
	}
	return nil
}

// Set serializes value and stores it under key.
func (c *Cache) Set(ctx context.Context, key string, value any, opts ...types.Option) error {
	if err := c.validateKey(key); err != nil {
		return err
	}

	data, err := c.serializer.Marshal(value)
	if err != nil {
		return types.NewCacheError("Set", key, c.backend.Name(), err)
	}

	start := time.Now()
	if err := c.backend.Set(ctx, key, data, types.ApplyOptions(opts...)); err != nil {
		return err
	}
	c.emitTiming("cache.set", time.Since(start))
	return nil
}

// Delete removes key, reporting whether it was present.
func (c *Cache) Delete(ctx context.Context, key string) (bool, error) {
	if err := c.validateKey(key); err != nil {
		return false, err
	}
	return c.backend.Delete(ctx, key)
}

// Exists reports whether key is present and unexpired.
func (c *Cache) Exists(ctx context.Context, key string) (bool, error) {
	if err := c.validateKey(key); err != nil {
		return false, err
	}
	return c.backend.Exists(ctx, key)
}

// Clear removes every entry.
func (c *Cache) Clear(ctx context.Context) error {
	return c.backend.Clear(ctx)
}

// Keys returns the keys matching the glob pattern.
func (c *Cache) Keys(ctx context.Context, pattern string) ([]string, error) {
	return c.backend.Keys(ctx, pattern)
}

// Stats returns the backend's counters.
func (c *Cache) Stats() types.CacheStats {
	return c.backend.Stats()
}

// GetOrLoad returns the cached value for key, or runs loader to produce
// and cache it. Concurrent callers for the same key share one loader
// invocation. The loaded value is returned as produced by the loader;
// cached values come back through the serializer, so loaders should
// return types that round-trip.
func (c *Cache) GetOrLoad(ctx context.Context, key string, dest any, loader LoaderFunc, opts ...types.Option) error {
	if err := c.Get(ctx, key, dest); err == nil {
		return nil
	} else if !types.IsCacheMiss(err) {
		return err
	}

	data, err, _ := c.loads.Do(key, func() (any, error) {
		// Another caller may have filled the key while we queued.
		if cached, gerr := c.backend.Get(ctx, key); gerr == nil {
			return cached, nil
		}

		value, lerr := loader(ctx)
		if lerr != nil {
			return nil, lerr
		}

		encoded, merr := c.serializer.Marshal(value)
		if merr != nil {
			return nil, types.NewCacheError("GetOrLoad", key, c.backend.Name(), merr)
		}
		if serr := c.backend.Set(ctx, key, encoded, types.ApplyOptions(opts...)); serr != nil {
			c.logger.Warn("loaded value could not be cached", "key", key, "error", serr)
		}
		return encoded, nil
	})
	if err != nil {
		return err
	}

	return c.serializer.Unmarshal(data.([]byte), dest)
}

func (c *Cache) emitCount(name string, value int64) {
	if c.monitoring && c.metrics != nil {
		c.metrics.Count(name, value, "", "cache:"+c.name, "backend:"+c.backend.Name())
	}
}

func (c *Cache) emitTiming(name string, d time.Duration) {
	if c.monitoring && c.metrics != nil {
		c.metrics.Timing(name, d, "cache:"+c.name, "backend:"+c.backend.Name())
	}
}
