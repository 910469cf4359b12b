package larder

import (
	"log/slog"
	"time"

	"github.com/mpetka/larder/internal/cache"
	"github.com/mpetka/larder/internal/types"
)

type (
	Option       = types.Option
	CacheOptions = types.CacheOptions
)

// ApplyOptions resolves per-operation options into a CacheOptions.
func ApplyOptions(opts ...Option) *CacheOptions {
	return types.ApplyOptions(opts...)
}

// WithTTL overrides the cache's default TTL for one write.
func WithTTL(ttl time.Duration) Option {
	return types.WithTTL(ttl)
}

// NoExpiry stores the entry without an expiry.
func NoExpiry() Option {
	return types.NoExpiry()
}

// ManagerOption customizes a Manager's shared dependencies.
type ManagerOption func(*cache.ManagerOptions)

// WithLogger routes the manager's logging through logger.
func WithLogger(logger *slog.Logger) ManagerOption {
	return func(o *cache.ManagerOptions) {
		o.Logger = logger
	}
}

// WithMetricsSink routes emitted measurements to sink.
func WithMetricsSink(sink MetricsSink) ManagerOption {
	return func(o *cache.ManagerOptions) {
		o.Metrics = sink
	}
}
