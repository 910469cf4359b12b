package larder

import (
	"time"

	"github.com/mpetka/larder/internal/cache"
	"github.com/mpetka/larder/internal/config"
)

// Manager is the registry of named caches.
type Manager = cache.Manager

// Cache is one named cache bound to a backend and serializer.
type Cache = cache.Cache

// LoaderFunc produces a value for a key on a cache miss.
type LoaderFunc = cache.LoaderFunc

// New creates a manager with default configuration.
func New(opts ...ManagerOption) *Manager {
	return cache.NewManager(buildOptions(opts))
}

// NewFromConfig creates a manager and eagerly registers a cache named
// "default" built from cfg.
func NewFromConfig(cfg *config.Config, opts ...ManagerOption) (*Manager, *Cache, error) {
	mgr := cache.NewManager(buildOptions(opts))
	c, err := mgr.GetOrCreateCache("default", cfg)
	if err != nil {
		return nil, nil, err
	}
	return mgr, c, nil
}

// NewMemoryOnly creates a manager plus a memory-backed cache named
// "default", with no remote infrastructure. A non-positive maxSize or
// defaultTTL keeps the built-in default.
func NewMemoryOnly(maxSize int, defaultTTL time.Duration, opts ...ManagerOption) (*Manager, *Cache, error) {
	cfg := config.DefaultConfig()
	cfg.Backend = "memory"
	if maxSize > 0 {
		cfg.MaxSize = maxSize
	}
	if defaultTTL > 0 {
		cfg.DefaultTTL = defaultTTL
	}
	return NewFromConfig(cfg, opts...)
}

// NewFromFile creates a manager from a JSON config file with LARDER_*
// environment overrides applied.
func NewFromFile(path string, opts ...ManagerOption) (*Manager, *Cache, error) {
	cfg, err := config.LoadWithEnv(path)
	if err != nil {
		return nil, nil, err
	}
	return NewFromConfig(cfg, opts...)
}

// Config returns a default configuration to modify before use.
func Config() *config.Config {
	return config.DefaultConfig()
}

// TestConfig returns a configuration suitable for unit tests.
func TestConfig() *config.Config {
	return config.ForTesting()
}

func buildOptions(opts []ManagerOption) cache.ManagerOptions {
	var managerOpts cache.ManagerOptions
	for _, opt := range opts {
		opt(&managerOpts)
	}
	return managerOpts
}
