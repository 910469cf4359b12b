package config

import "time"

// DefaultConfig returns a configuration with sensible production defaults:
// an LRU memory cache with resilience patterns enabled and metrics off.
func DefaultConfig() *Config {
	return &Config{
		Backend:       "memory",
		Policy:        "lru",
		MaxSize:       1000,
		DefaultTTL:    5 * time.Minute,
		Serialization: "json",
		Compression:   false,
		Monitoring:    true,
		Redis: RedisConfig{
			URL:          "",
			DB:           0,
			KeyPrefix:    "larder:",
			DefaultTTL:   15 * time.Minute,
			PoolSize:     100,
			MinIdleConns: 10,
			DialTimeout:  5 * time.Second,
			ReadTimeout:  3 * time.Second,
			WriteTimeout: 3 * time.Second,
		},
		Pool: PoolConfig{
			MaxOpenConns:    50,
			MaxIdleConns:    10,
			ConnMaxLifetime: time.Hour,
			ConnMaxIdleTime: 10 * time.Minute,
			HealthCheckTTL:  30 * time.Second,
			BuildRetries:    3,
		},
		Retry: RetryConfig{
			Enabled:        true,
			MaxAttempts:    3,
			InitialBackoff: 100 * time.Millisecond,
			MaxBackoff:     2 * time.Second,
			Multiplier:     2.0,
			Jitter:         true,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             true,
			FailureThreshold:    5,
			SuccessThreshold:    2,
			RecoveryTimeout:     30 * time.Second,
			HalfOpenMaxRequests: 3,
		},
		RateLimit: RateLimitConfig{
			Enabled:      false,
			MaxRequests:  100,
			Window:       time.Minute,
			IdleEviction: 5 * time.Minute,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        true,
			MaxConcurrent:  100,
			MaxQueue:       50,
			AcquireTimeout: 100 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: 10 * time.Second,
			DataDog: DataDogConfig{
				Enabled:   false,
				AgentHost: "127.0.0.1",
				Port:      8125,
				Prefix:    "larder",
				Tags:      []string{},
			},
		},
		Sweep: SweepConfig{
			Enabled:  true,
			Interval: 30 * time.Second,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      1024,
			AllowEmpty:        false,
			AllowControlChars: false,
			AllowWhitespace:   true,
		},
	}
}

// ForTesting returns a minimal configuration suitable for unit tests:
// small caches, tight timeouts, resilience and metrics disabled.
func ForTesting() *Config {
	return &Config{
		Backend:       "memory",
		Policy:        "lru",
		MaxSize:       64,
		DefaultTTL:    time.Minute,
		Serialization: "json",
		Monitoring:    false,
		Redis: RedisConfig{
			KeyPrefix:    "test:",
			DefaultTTL:   time.Minute,
			PoolSize:     10,
			MinIdleConns: 1,
			DialTimeout:  time.Second,
			ReadTimeout:  time.Second,
			WriteTimeout: time.Second,
		},
		Pool: PoolConfig{
			MaxOpenConns:    5,
			MaxIdleConns:    1,
			ConnMaxLifetime: time.Minute,
			ConnMaxIdleTime: time.Minute,
			HealthCheckTTL:  30 * time.Second,
			BuildRetries:    2,
		},
		Retry: RetryConfig{
			Enabled:        false,
			MaxAttempts:    1,
			InitialBackoff: 10 * time.Millisecond,
			MaxBackoff:     100 * time.Millisecond,
			Multiplier:     2.0,
			Jitter:         false,
		},
		CircuitBreaker: CircuitBreakerConfig{
			Enabled:             false,
			FailureThreshold:    3,
			SuccessThreshold:    1,
			RecoveryTimeout:     time.Second,
			HalfOpenMaxRequests: 1,
		},
		RateLimit: RateLimitConfig{
			Enabled:      false,
			MaxRequests:  10,
			Window:       time.Second,
			IdleEviction: time.Minute,
		},
		Bulkhead: BulkheadConfig{
			Enabled:        false,
			MaxConcurrent:  10,
			MaxQueue:       5,
			AcquireTimeout: 50 * time.Millisecond,
		},
		Metrics: MetricsConfig{
			Enabled:         false,
			PublishInterval: time.Second,
		},
		Sweep: SweepConfig{
			Enabled:  false,
			Interval: time.Second,
		},
		KeyValidation: KeyValidationConfig{
			Enabled:           true,
			MaxKeyLength:      1024,
			AllowWhitespace:   true,
			AllowControlChars: false,
		},
	}
}

// ForTestingWithRedis returns a test config pointed at the given Redis
// address with a hybrid backend.
func ForTestingWithRedis(url string) *Config {
	cfg := ForTesting()
	cfg.Backend = "hybrid"
	cfg.Redis.URL = url
	return cfg
}
