package config

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"
)

// Load loads configuration from a JSON file, falling back to defaults when
// the path is empty or the file does not exist.
func Load(path string) (*Config, error) {
	cfg := DefaultConfig()

	if path == "" {
		return cfg, nil
	}

	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return cfg, nil
		}
		return nil, fmt.Errorf("failed to read config file: %w", err)
	}

	if err := json.Unmarshal(data, cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config file: %w", err)
	}

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// LoadWithEnv loads configuration from a JSON file and applies LARDER_*
// environment overrides on top.
func LoadWithEnv(path string) (*Config, error) {
	cfg, err := Load(path)
	if err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

//nolint:gocyclo // Environment variable parsing requires many conditional checks
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("LARDER_BACKEND"); v != "" {
		cfg.Backend = v
	}
	if v := os.Getenv("LARDER_POLICY"); v != "" {
		cfg.Policy = v
	}
	if v := os.Getenv("LARDER_MAX_SIZE"); v != "" {
		cfg.MaxSize = parseInt(v, cfg.MaxSize)
	}
	if v := os.Getenv("LARDER_MAX_MEMORY_MB"); v != "" {
		cfg.MaxMemoryMB = parseInt(v, cfg.MaxMemoryMB)
	}
	if v := os.Getenv("LARDER_DEFAULT_TTL"); v != "" {
		cfg.DefaultTTL = parseDuration(v, cfg.DefaultTTL)
	}
	if v := os.Getenv("LARDER_SERIALIZATION"); v != "" {
		cfg.Serialization = v
	}
	if v := os.Getenv("LARDER_COMPRESSION"); v != "" {
		cfg.Compression = parseBool(v)
	}
	if v := os.Getenv("LARDER_MONITORING"); v != "" {
		cfg.Monitoring = parseBool(v)
	}

	if v := os.Getenv("LARDER_REDIS_URL"); v != "" {
		cfg.Redis.URL = v
	}
	if v := os.Getenv("LARDER_REDIS_DB"); v != "" {
		cfg.Redis.DB = parseInt(v, cfg.Redis.DB)
	}
	if v := os.Getenv("LARDER_REDIS_PASSWORD"); v != "" {
		cfg.Redis.Password = NewSecretString(v)
	}
	if v := os.Getenv("LARDER_REDIS_KEY_PREFIX"); v != "" {
		cfg.Redis.KeyPrefix = v
	}

	if v := os.Getenv("LARDER_POOL_DSN"); v != "" {
		cfg.Pool.DSN = NewSecretString(v)
	}
	if v := os.Getenv("LARDER_POOL_MAX_OPEN_CONNS"); v != "" {
		cfg.Pool.MaxOpenConns = parseInt(v, cfg.Pool.MaxOpenConns)
	}
	if v := os.Getenv("LARDER_POOL_HEALTH_CHECK_TTL"); v != "" {
		cfg.Pool.HealthCheckTTL = parseDuration(v, cfg.Pool.HealthCheckTTL)
	}

	if v := os.Getenv("LARDER_RETRY_ENABLED"); v != "" {
		cfg.Retry.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_RETRY_MAX_ATTEMPTS"); v != "" {
		cfg.Retry.MaxAttempts = parseInt(v, cfg.Retry.MaxAttempts)
	}

	if v := os.Getenv("LARDER_CIRCUIT_BREAKER_ENABLED"); v != "" {
		cfg.CircuitBreaker.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_CIRCUIT_BREAKER_FAILURE_THRESHOLD"); v != "" {
		cfg.CircuitBreaker.FailureThreshold = parseInt(v, cfg.CircuitBreaker.FailureThreshold)
	}

	if v := os.Getenv("LARDER_RATE_LIMIT_ENABLED"); v != "" {
		cfg.RateLimit.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_RATE_LIMIT_MAX_REQUESTS"); v != "" {
		cfg.RateLimit.MaxRequests = parseInt(v, cfg.RateLimit.MaxRequests)
	}
	if v := os.Getenv("LARDER_RATE_LIMIT_WINDOW"); v != "" {
		cfg.RateLimit.Window = parseDuration(v, cfg.RateLimit.Window)
	}

	if v := os.Getenv("LARDER_SWEEP_ENABLED"); v != "" {
		cfg.Sweep.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_SWEEP_INTERVAL"); v != "" {
		cfg.Sweep.Interval = parseDuration(v, cfg.Sweep.Interval)
	}

	if v := os.Getenv("LARDER_METRICS_ENABLED"); v != "" {
		cfg.Metrics.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_DATADOG_ENABLED"); v != "" {
		cfg.Metrics.DataDog.Enabled = parseBool(v)
	}
	if v := os.Getenv("LARDER_DATADOG_AGENT_HOST"); v != "" {
		cfg.Metrics.DataDog.AgentHost = v
	}
	if v := os.Getenv("LARDER_DATADOG_PORT"); v != "" {
		cfg.Metrics.DataDog.Port = parseInt(v, cfg.Metrics.DataDog.Port)
	}
}

func parseBool(s string) bool {
	switch strings.ToLower(s) {
	case "1", "true", "yes", "on":
		return true
	default:
		return false
	}
}

func parseInt(s string, fallback int) int {
	if n, err := strconv.Atoi(s); err == nil {
		return n
	}
	return fallback
}

func parseDuration(s string, fallback time.Duration) time.Duration {
	if d, err := time.ParseDuration(s); err == nil {
		return d
	}
	// Plain numbers are taken as seconds.
	if n, err := strconv.Atoi(s); err == nil {
		return time.Duration(n) * time.Second
	}
	return fallback
}
