package types

import "time"

// CacheOptions carries per-operation settings.
type CacheOptions struct {
	// TTL overrides the cache's default TTL for this write. Zero keeps the
	// default; a negative value disables expiry for the entry.
	TTL time.Duration
}

// Option is a functional option applied to a single cache operation.
type Option func(*CacheOptions)

// WithTTL sets the entry TTL for a write.
func WithTTL(ttl time.Duration) Option {
	return func(o *CacheOptions) { o.TTL = ttl }
}

// NoExpiry stores the entry without a TTL regardless of the cache default.
func NoExpiry() Option {
	return func(o *CacheOptions) { o.TTL = -1 }
}

// ApplyOptions folds functional options into a CacheOptions value.
func ApplyOptions(opts ...Option) *CacheOptions {
	options := &CacheOptions{}
	for _, opt := range opts {
		opt(options)
	}
	return options
}

// EffectiveTTL resolves the TTL for a write given the cache default.
func (o *CacheOptions) EffectiveTTL(def time.Duration) time.Duration {
	if o == nil || o.TTL == 0 {
		return def
	}
	if o.TTL < 0 {
		return 0
	}
	return o.TTL
}
