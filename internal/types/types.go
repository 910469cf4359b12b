// Package types provides shared types for the larder caching library.
// This package breaks import cycles between pkg/larder and the internal
// cache, pool and resilience packages.
package types

import (
	"fmt"
	"strings"
	"time"
)

// BackendKind selects the storage backend for a cache instance.
type BackendKind int

const (
	BackendMemory BackendKind = iota + 1
	BackendSharded
	BackendRedis
	BackendHybrid
)

func (b BackendKind) String() string {
	switch b {
	case BackendMemory:
		return "memory"
	case BackendSharded:
		return "sharded"
	case BackendRedis:
		return "redis"
	case BackendHybrid:
		return "hybrid"
	default:
		return "unknown"
	}
}

// ParseBackend parses a backend name from configuration.
func ParseBackend(s string) (BackendKind, error) {
	switch strings.ToLower(s) {
	case "memory":
		return BackendMemory, nil
	case "sharded":
		return BackendSharded, nil
	case "redis":
		return BackendRedis, nil
	case "hybrid":
		return BackendHybrid, nil
	default:
		return 0, fmt.Errorf("%w: unknown backend %q", ErrInvalidConfig, s)
	}
}

// EvictionPolicy selects which entry is removed when a bounded cache is full.
type EvictionPolicy int

const (
	// PolicyLRU evicts the least-recently-accessed entry.
	PolicyLRU EvictionPolicy = iota + 1
	// PolicyLFU evicts the entry with the lowest access count.
	PolicyLFU
	// PolicyFIFO evicts the entry with the earliest creation time.
	PolicyFIFO
	// PolicyTTL evicts the entry with the earliest expiry. Entries without
	// a TTL are evicted last.
	PolicyTTL
)

func (p EvictionPolicy) String() string {
	switch p {
	case PolicyLRU:
		return "lru"
	case PolicyLFU:
		return "lfu"
	case PolicyFIFO:
		return "fifo"
	case PolicyTTL:
		return "ttl"
	default:
		return "unknown"
	}
}

// ParseEvictionPolicy parses an eviction policy name from configuration.
func ParseEvictionPolicy(s string) (EvictionPolicy, error) {
	switch strings.ToLower(s) {
	case "lru":
		return PolicyLRU, nil
	case "lfu":
		return PolicyLFU, nil
	case "fifo":
		return PolicyFIFO, nil
	case "ttl":
		return PolicyTTL, nil
	default:
		return 0, fmt.Errorf("%w: unknown eviction policy %q", ErrInvalidConfig, s)
	}
}

// Serialization selects the wire format for cached values.
type Serialization int

const (
	// SerializationJSON encodes values as JSON. Safe for untrusted data.
	SerializationJSON Serialization = iota + 1
	// SerializationBinary encodes values with encoding/gob. Opt-in, for
	// trusted data only.
	SerializationBinary
)

func (s Serialization) String() string {
	switch s {
	case SerializationJSON:
		return "json"
	case SerializationBinary:
		return "binary"
	default:
		return "unknown"
	}
}

// ParseSerialization parses a serialization name from configuration.
// The empty string selects JSON.
func ParseSerialization(s string) (Serialization, error) {
	switch strings.ToLower(s) {
	case "", "json":
		return SerializationJSON, nil
	case "binary":
		return SerializationBinary, nil
	default:
		return 0, fmt.Errorf("%w: unknown serialization %q", ErrInvalidConfig, s)
	}
}

// CacheEntry is a cached value with its bookkeeping metadata. An entry is
// exclusively owned by the cache instance holding it and is mutated only
// under that cache's lock.
type CacheEntry struct {
	Key          string
	Value        []byte
	CreatedAt    time.Time
	ExpiresAt    time.Time // zero means no expiry
	AccessCount  int64
	LastAccessed time.Time
}

// IsExpired reports whether the entry has passed its expiry at the given
// instant. Entries without a TTL never expire.
func (e *CacheEntry) IsExpired(now time.Time) bool {
	if e.ExpiresAt.IsZero() {
		return false
	}
	return !now.Before(e.ExpiresAt)
}

// Touch records an access at the given instant.
func (e *CacheEntry) Touch(now time.Time) {
	e.AccessCount++
	e.LastAccessed = now
}

// SizeBytes approximates the memory footprint of the entry.
func (e *CacheEntry) SizeBytes() int64 {
	return int64(len(e.Key) + len(e.Value))
}

// CacheStats is a point-in-time snapshot of a cache instance's counters.
// All counters accumulate monotonically except Size, which reflects the
// current entry count.
type CacheStats struct {
	Hits             int64
	Misses           int64
	Sets             int64
	Deletes          int64
	Evictions        int64
	Size             int
	MemoryUsageBytes int64
}

// HitRate returns hits/(hits+misses), or 0 before any lookup.
func (s CacheStats) HitRate() float64 {
	total := s.Hits + s.Misses
	if total == 0 {
		return 0
	}
	return float64(s.Hits) / float64(total)
}

// Add returns the element-wise sum of two snapshots. Used by tiered caches
// to combine per-tier counters.
func (s CacheStats) Add(o CacheStats) CacheStats {
	return CacheStats{
		Hits:             s.Hits + o.Hits,
		Misses:           s.Misses + o.Misses,
		Sets:             s.Sets + o.Sets,
		Deletes:          s.Deletes + o.Deletes,
		Evictions:        s.Evictions + o.Evictions,
		Size:             s.Size + o.Size,
		MemoryUsageBytes: s.MemoryUsageBytes + o.MemoryUsageBytes,
	}
}
