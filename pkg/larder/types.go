package larder

import (
	"github.com/mpetka/larder/internal/pool"
	"github.com/mpetka/larder/internal/resilience"
	"github.com/mpetka/larder/internal/types"
)

type (
	// CacheEntry is a stored value with its metadata.
	CacheEntry = types.CacheEntry
	// CacheStats is a snapshot of a cache's counters.
	CacheStats = types.CacheStats
	// Backend is the storage contract named caches are built on.
	Backend = types.Backend
	// Serializer converts values to and from the cache wire format.
	Serializer = types.Serializer
	// MetricsSink receives observability measurements.
	MetricsSink = types.MetricsSink

	// RetryPolicy executes operations under exponential backoff.
	RetryPolicy = resilience.RetryPolicy
	// CircuitBreaker sheds load to a failing dependency.
	CircuitBreaker = resilience.CircuitBreaker
	// RateLimiter enforces per-key sliding-window request budgets.
	RateLimiter = resilience.RateLimiter
	// Bulkhead bounds concurrent access to a resource.
	Bulkhead = resilience.Bulkhead
	// Policy composes bulkhead, retry, and circuit breaker.
	Policy = resilience.Policy

	// PoolManager lazily builds and health-checks a database pool.
	PoolManager = pool.Manager
	// PoolStats is a snapshot of the pool manager's counters.
	PoolStats = pool.Stats
)

const (
	// BackendMemory is the bounded in-process backend.
	BackendMemory = types.BackendMemory
	// BackendSharded is the bigcache-backed in-process backend.
	BackendSharded = types.BackendSharded
	// BackendRedis is the remote backend.
	BackendRedis = types.BackendRedis
	// BackendHybrid layers memory over Redis.
	BackendHybrid = types.BackendHybrid
)

const (
	// PolicyLRU evicts the least-recently-accessed entry.
	PolicyLRU = types.PolicyLRU
	// PolicyLFU evicts the entry with the lowest access count.
	PolicyLFU = types.PolicyLFU
	// PolicyFIFO evicts the entry with the earliest creation time.
	PolicyFIFO = types.PolicyFIFO
	// PolicyTTL evicts the entry with the earliest expiry.
	PolicyTTL = types.PolicyTTL
)
