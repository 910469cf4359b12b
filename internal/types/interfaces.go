package types

import (
	"context"
	"time"
)

// Backend is the contract every cache backend implements. Values are raw
// bytes; serialization happens one layer up so all backends share a single
// wire format.
type Backend interface {
	// Name identifies the backend kind ("memory", "redis", ...).
	Name() string
	// IsAvailable reports whether the backend can currently serve requests.
	IsAvailable() bool

	Get(ctx context.Context, key string) ([]byte, error)
	Set(ctx context.Context, key string, value []byte, opts *CacheOptions) error
	// Delete removes a key and reports whether it existed. A backend error
	// is returned explicitly so callers can tell "absent" from "broken".
	Delete(ctx context.Context, key string) (bool, error)
	Exists(ctx context.Context, key string) (bool, error)
	Clear(ctx context.Context) error
	// Keys returns the keys matching a glob-style pattern. An empty
	// pattern matches everything.
	Keys(ctx context.Context, pattern string) ([]string, error)

	Stats() CacheStats
	Close() error
}

// Sweeper is implemented by backends that store expired entries physically
// until swept.
type Sweeper interface {
	// CleanupExpired removes every entry whose expiry has passed and
	// returns the number removed.
	CleanupExpired(ctx context.Context) (int, error)
}

// Serializer converts values to and from the cache wire format.
type Serializer interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, dest any) error
}

// MetricsSink receives observability measurements. Implementations must be
// safe for concurrent use and must never block the caller on I/O.
type MetricsSink interface {
	Gauge(name string, value float64, unit string, tags ...string)
	Count(name string, value int64, unit string, tags ...string)
	Timing(name string, d time.Duration, tags ...string)
}

// Logger is the minimal logging surface callers can supply instead of a
// *slog.Logger.
type Logger interface {
	Debug(msg string, args ...any)
	Info(msg string, args ...any)
	Warn(msg string, args ...any)
	Error(msg string, args ...any)
}
