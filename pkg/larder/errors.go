package larder

import (
	"github.com/mpetka/larder/internal/types"
)

// CacheError wraps an operation failure with its operation, key, and
// backend context.
type CacheError = types.CacheError

var (
	// ErrCacheMiss indicates a requested key was not found.
	ErrCacheMiss = types.ErrCacheMiss
	// ErrBackendUnavailable indicates the backend cannot currently serve.
	ErrBackendUnavailable = types.ErrBackendUnavailable
	// ErrCircuitOpen indicates the circuit breaker is rejecting calls.
	ErrCircuitOpen = types.ErrCircuitOpen
	// ErrRateLimited indicates the caller exceeded its request budget.
	ErrRateLimited = types.ErrRateLimited
	// ErrBulkheadFull indicates the bulkhead is at capacity.
	ErrBulkheadFull = types.ErrBulkheadFull
	// ErrPoolExhausted indicates pool construction failed after retries.
	ErrPoolExhausted = types.ErrPoolExhausted
	// ErrPoolClosed indicates the pool manager has been closed.
	ErrPoolClosed = types.ErrPoolClosed
	// ErrInvalidKey indicates a cache key failed validation.
	ErrInvalidKey = types.ErrInvalidKey
	// ErrInvalidConfig indicates the configuration is unusable.
	ErrInvalidConfig = types.ErrInvalidConfig
	// ErrClosed indicates the manager or cache has been closed.
	ErrClosed = types.ErrClosed
	// ErrSerialization indicates a value could not be encoded or decoded.
	ErrSerialization = types.ErrSerialization
)

// IsCacheMiss reports whether err is a cache miss.
func IsCacheMiss(err error) bool {
	return types.IsCacheMiss(err)
}

// IsCircuitOpen reports whether err means the circuit breaker is open.
func IsCircuitOpen(err error) bool {
	return types.IsCircuitOpen(err)
}

// IsPoolExhausted reports whether err means the pool retry budget ran out.
func IsPoolExhausted(err error) bool {
	return types.IsPoolExhausted(err)
}

// IsRetryable reports whether retrying the failed operation could help.
func IsRetryable(err error) bool {
	return types.IsRetryable(err)
}
