package types

import (
	"errors"
	"fmt"
)

var (
	// ErrCacheMiss is returned when a key is absent or expired.
	ErrCacheMiss = errors.New("larder: key not found")
	// ErrBackendUnavailable is returned when a remote backend cannot be
	// reached. Reads degrade to a miss instead of surfacing it.
	ErrBackendUnavailable = errors.New("larder: backend unavailable")
	// ErrCircuitOpen is returned when the circuit breaker is fast-failing.
	ErrCircuitOpen = errors.New("larder: circuit breaker open")
	// ErrRateLimited is returned when a sliding-window limit is exceeded.
	ErrRateLimited = errors.New("larder: rate limit exceeded")
	// ErrBulkheadFull is returned when the concurrency limit is reached.
	ErrBulkheadFull = errors.New("larder: bulkhead at capacity")
	// ErrBulkheadTimeout is returned when waiting for a bulkhead slot
	// exceeds the acquire timeout.
	ErrBulkheadTimeout = errors.New("larder: bulkhead timeout")
	// ErrPoolExhausted is returned after the retry budget for pool
	// construction or rebuild is spent.
	ErrPoolExhausted = errors.New("larder: connection pool retries exhausted")
	// ErrPoolClosed is returned for operations on a closed pool manager.
	ErrPoolClosed = errors.New("larder: pool manager closed")
	// ErrInvalidKey is returned when a cache key fails validation.
	ErrInvalidKey = errors.New("larder: invalid key")
	// ErrInvalidConfig is returned for configuration errors. These are
	// permanent and never retried.
	ErrInvalidConfig = errors.New("larder: invalid configuration")
	// ErrClosed is returned for operations on a closed cache or manager.
	ErrClosed = errors.New("larder: closed")
	// ErrShutdownTimeout is returned when background work does not drain
	// within the shutdown timeout.
	ErrShutdownTimeout = errors.New("larder: shutdown timeout waiting for background tasks")
	// ErrSerialization is returned when a value cannot be encoded or decoded.
	ErrSerialization = errors.New("larder: serialization failed")
)

// CacheError wraps a backend failure with its operation context.
type CacheError struct {
	Op      string
	Key     string
	Backend string
	Err     error
}

func (e *CacheError) Error() string {
	if e.Key != "" {
		return fmt.Sprintf("larder %s on %s [%s]: %v", e.Op, e.Backend, e.Key, e.Err)
	}
	return fmt.Sprintf("larder %s on %s: %v", e.Op, e.Backend, e.Err)
}

func (e *CacheError) Unwrap() error {
	return e.Err
}

func NewCacheError(op, key, backend string, err error) *CacheError {
	return &CacheError{Op: op, Key: key, Backend: backend, Err: err}
}

func IsCacheMiss(err error) bool {
	return errors.Is(err, ErrCacheMiss)
}

func IsBackendUnavailable(err error) bool {
	return errors.Is(err, ErrBackendUnavailable)
}

func IsCircuitOpen(err error) bool {
	return errors.Is(err, ErrCircuitOpen)
}

func IsPoolExhausted(err error) bool {
	return errors.Is(err, ErrPoolExhausted)
}

// IsRetryable classifies an error as transient (worth another attempt) or
// permanent. Configuration errors, misses and deliberate gate rejections
// surface immediately; everything else is assumed to be a network or
// timeout blip.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}

	switch {
	case IsCacheMiss(err):
		return false
	case IsCircuitOpen(err):
		return false
	case errors.Is(err, ErrRateLimited):
		return false
	case errors.Is(err, ErrClosed) || errors.Is(err, ErrPoolClosed):
		return false
	case errors.Is(err, ErrInvalidKey):
		return false
	case errors.Is(err, ErrInvalidConfig):
		return false
	case errors.Is(err, ErrSerialization):
		return false
	}

	return true
}
