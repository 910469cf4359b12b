// Package config provides configuration management for larder.
package config

import (
	"fmt"
	"time"

	"github.com/mpetka/larder/internal/types"
)

// SecretString is re-exported so callers configuring credentials do not
// need to import internal/types.
type SecretString = types.SecretString

// NewSecretString creates a SecretString holding the given value.
func NewSecretString(value string) SecretString {
	return types.NewSecretString(value)
}

// Config describes one cache instance plus the shared infrastructure
// (resilience, pool, metrics). It is immutable after the cache is built.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type Config struct {
	// Backend selects the storage backend: memory, sharded, redis, hybrid.
	Backend string `json:"backend"`
	// Policy selects the eviction policy for bounded memory backends:
	// lru, lfu, fifo, ttl.
	Policy string `json:"policy"`
	// MaxSize bounds the number of live entries in a memory cache.
	MaxSize int `json:"maxSize"`
	// MaxMemoryMB caps the sharded backend's memory in megabytes. Zero
	// leaves bigcache uncapped. Only the sharded backend reads it; the
	// memory backend is bounded by entry count, not bytes.
	MaxMemoryMB int `json:"maxMemoryMB"`
	// DefaultTTL applies to writes that do not override it.
	DefaultTTL time.Duration `json:"defaultTTL"`
	// Serialization selects the value wire format: json (default), binary.
	Serialization string `json:"serialization"`
	// Compression gzips serialized values before storage.
	Compression bool `json:"compression"`
	// Monitoring enables metric emission from the manager's sweep loop.
	Monitoring bool `json:"monitoring"`

	Redis          RedisConfig          `json:"redis"`
	Pool           PoolConfig           `json:"pool"`
	Retry          RetryConfig          `json:"retry"`
	CircuitBreaker CircuitBreakerConfig `json:"circuitBreaker"`
	RateLimit      RateLimitConfig      `json:"rateLimit"`
	Bulkhead       BulkheadConfig       `json:"bulkhead"`
	Metrics        MetricsConfig        `json:"metrics"`
	Sweep          SweepConfig          `json:"sweep"`
	KeyValidation  KeyValidationConfig  `json:"keyValidation"`
}

// RedisConfig configures the remote cache backend.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type RedisConfig struct {
	// URL is a redis:// connection URL. Host/DB/credentials parsed from it
	// can be overridden by the explicit fields below.
	URL          string        `json:"url"`
	DB           int           `json:"db"`
	Password     SecretString  `json:"password"`
	KeyPrefix    string        `json:"keyPrefix"`
	DefaultTTL   time.Duration `json:"defaultTTL"`
	PoolSize     int           `json:"poolSize"`
	MinIdleConns int           `json:"minIdleConns"`
	DialTimeout  time.Duration `json:"dialTimeout"`
	ReadTimeout  time.Duration `json:"readTimeout"`
	WriteTimeout time.Duration `json:"writeTimeout"`
	EnableTLS    bool          `json:"enableTLS"`
	TLSSkipVerify bool         `json:"tlsSkipVerify"`
}

// PoolConfig configures the relational connection pool manager.
//
//nolint:govet // Configuration struct - logical grouping prioritized over alignment
type PoolConfig struct {
	// DSN is the database connection string. Redacted when marshaled.
	DSN             SecretString  `json:"dsn"`
	MaxOpenConns    int           `json:"maxOpenConns"`
	MaxIdleConns    int           `json:"maxIdleConns"`
	ConnMaxLifetime time.Duration `json:"connMaxLifetime"`
	ConnMaxIdleTime time.Duration `json:"connMaxIdleTime"`
	// HealthCheckTTL bounds probe frequency; a health result is reused
	// until it is this old.
	HealthCheckTTL time.Duration `json:"healthCheckTTL"`
	// SessionInit statements run once on every new physical connection.
	SessionInit []string `json:"sessionInit"`
	// BuildRetries is the retry budget for pool construction and rebuild.
	BuildRetries int `json:"buildRetries"`
}

// RetryConfig configures the exponential-backoff retry executor.
type RetryConfig struct {
	InitialBackoff time.Duration `json:"initialBackoff"`
	MaxBackoff     time.Duration `json:"maxBackoff"`
	Multiplier     float64       `json:"multiplier"`
	MaxAttempts    int           `json:"maxAttempts"`
	Enabled        bool          `json:"enabled"`
	Jitter         bool          `json:"jitter"`
}

// CircuitBreakerConfig configures the failure-threshold call gate.
type CircuitBreakerConfig struct {
	Enabled             bool          `json:"enabled"`
	FailureThreshold    int           `json:"failureThreshold"`
	SuccessThreshold    int           `json:"successThreshold"`
	RecoveryTimeout     time.Duration `json:"recoveryTimeout"`
	HalfOpenMaxRequests int           `json:"halfOpenMaxRequests"`
}

// RateLimitConfig configures the per-key sliding-window admission control.
type RateLimitConfig struct {
	Enabled     bool          `json:"enabled"`
	MaxRequests int           `json:"maxRequests"`
	Window      time.Duration `json:"window"`
	// IdleEviction drops a key's window after this long without a call.
	IdleEviction time.Duration `json:"idleEviction"`
}

// BulkheadConfig configures the concurrency limiter around remote calls.
type BulkheadConfig struct {
	Enabled        bool          `json:"enabled"`
	MaxConcurrent  int           `json:"maxConcurrent"`
	MaxQueue       int           `json:"maxQueue"`
	AcquireTimeout time.Duration `json:"acquireTimeout"`
}

// MetricsConfig configures metric publishing.
//
//nolint:govet // Small config struct - minimal alignment benefit
type MetricsConfig struct {
	PublishInterval time.Duration `json:"publishInterval"`
	DataDog         DataDogConfig `json:"datadog"`
	Enabled         bool          `json:"enabled"`
}

// DataDogConfig configures the DataDog StatsD sink.
//
//nolint:govet // Small config struct - minimal alignment benefit
type DataDogConfig struct {
	Tags      []string `json:"tags"`
	AgentHost string   `json:"agentHost"`
	Prefix    string   `json:"prefix"`
	Port      int      `json:"port"`
	Enabled   bool     `json:"enabled"`
}

// SweepConfig configures the manager's background sweep task.
type SweepConfig struct {
	Enabled  bool          `json:"enabled"`
	Interval time.Duration `json:"interval"`
}

// KeyValidationConfig configures cache key validation.
type KeyValidationConfig struct {
	ReservedPrefixes  []string `json:"reservedPrefixes"`
	MaxKeyLength      int      `json:"maxKeyLength"`
	Enabled           bool     `json:"enabled"`
	AllowEmpty        bool     `json:"allowEmpty"`
	AllowControlChars bool     `json:"allowControlChars"`
	AllowWhitespace   bool     `json:"allowWhitespace"`
}

// ToTypesConfig converts to the types-level validation config.
func (c KeyValidationConfig) ToTypesConfig() types.KeyValidationConfig {
	return types.KeyValidationConfig{
		MaxKeyLength:      c.MaxKeyLength,
		AllowEmpty:        c.AllowEmpty,
		AllowControlChars: c.AllowControlChars,
		AllowWhitespace:   c.AllowWhitespace,
		ReservedPrefixes:  c.ReservedPrefixes,
	}
}

// BackendKind returns the parsed backend selector.
func (c *Config) BackendKind() (types.BackendKind, error) {
	if c.Backend == "" {
		return types.BackendMemory, nil
	}
	return types.ParseBackend(c.Backend)
}

// EvictionPolicy returns the parsed eviction policy.
func (c *Config) EvictionPolicy() (types.EvictionPolicy, error) {
	if c.Policy == "" {
		return types.PolicyLRU, nil
	}
	return types.ParseEvictionPolicy(c.Policy)
}

// SerializationKind returns the parsed serialization selector.
func (c *Config) SerializationKind() (types.Serialization, error) {
	return types.ParseSerialization(c.Serialization)
}

// Validate checks the configuration for permanent errors. Validation
// failures are never retried.
func (c *Config) Validate() error {
	backend, err := c.BackendKind()
	if err != nil {
		return err
	}
	if _, err := c.EvictionPolicy(); err != nil {
		return err
	}
	if _, err := c.SerializationKind(); err != nil {
		return err
	}

	if c.MaxSize < 0 {
		return fmt.Errorf("%w: maxSize must not be negative", types.ErrInvalidConfig)
	}
	if c.MaxMemoryMB < 0 {
		return fmt.Errorf("%w: maxMemoryMB must not be negative", types.ErrInvalidConfig)
	}
	if c.DefaultTTL < 0 {
		return fmt.Errorf("%w: defaultTTL must not be negative", types.ErrInvalidConfig)
	}

	needsRedis := backend == types.BackendRedis || backend == types.BackendHybrid
	if needsRedis && c.Redis.URL == "" {
		return fmt.Errorf("%w: backend %q requires redis.url", types.ErrInvalidConfig, backend)
	}

	if c.RateLimit.Enabled {
		if c.RateLimit.MaxRequests <= 0 {
			return fmt.Errorf("%w: rateLimit.maxRequests must be positive", types.ErrInvalidConfig)
		}
		if c.RateLimit.Window <= 0 {
			return fmt.Errorf("%w: rateLimit.window must be positive", types.ErrInvalidConfig)
		}
	}

	return nil
}
