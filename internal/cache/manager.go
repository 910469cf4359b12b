package cache

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/resilience"
	"github.com/mpetka/larder/internal/types"
)

// Manager owns a registry of named caches and runs their shared background
// work: periodic sweeps of expired entries and metric publication. Caches
// are created on demand and creation is idempotent per name.
type Manager struct {
	logger  *slog.Logger
	metrics types.MetricsSink

	mu      sync.RWMutex
	caches  map[string]*Cache
	stopped bool

	cancel context.CancelFunc
	wg     sync.WaitGroup
}

// ManagerOptions customizes the manager's shared dependencies. Zero-value
// fields fall back to sensible defaults.
type ManagerOptions struct {
	Logger  *slog.Logger
	Metrics types.MetricsSink
}

// NewManager creates a manager and starts its background loop when any
// sweep interval is configured later via GetOrCreateCache.
func NewManager(opts ManagerOptions) *Manager {
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default()
	}

	return &Manager{
		logger:  logger.With("component", "cache-manager"),
		metrics: opts.Metrics,
		caches:  make(map[string]*Cache),
	}
}

// GetOrCreateCache returns the cache registered under name, creating it
// from cfg on first use. Subsequent calls for the same name return the
// existing cache regardless of cfg, so callers can race on initialization
// without creating duplicates.
func (m *Manager) GetOrCreateCache(name string, cfg *config.Config) (*Cache, error) {
	m.mu.RLock()
	if c, ok := m.caches[name]; ok {
		m.mu.RUnlock()
		return c, nil
	}
	stopped := m.stopped
	m.mu.RUnlock()

	if stopped {
		return nil, types.ErrClosed
	}

	m.mu.Lock()
	defer m.mu.Unlock()
	if c, ok := m.caches[name]; ok {
		return c, nil
	}
	if m.stopped {
		return nil, types.ErrClosed
	}

	if cfg == nil {
		cfg = config.DefaultConfig()
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	backend, err := m.buildBackend(cfg)
	if err != nil {
		return nil, err
	}

	serKind, err := cfg.SerializationKind()
	if err != nil {
		backend.Close()
		return nil, err
	}
	serializer := NewSerializer(serKind, cfg.Compression)
	var validator *types.KeyValidator
	if cfg.KeyValidation.Enabled {
		validator = types.NewKeyValidator(cfg.KeyValidation.ToTypesConfig())
	}

	c := newCache(name, backend, serializer, validator, m.logger, m.metrics, cfg.Monitoring)
	m.caches[name] = c
	m.logger.Info("cache created", "name", name, "backend", backend.Name())

	if cfg.Sweep.Enabled && m.cancel == nil {
		m.startSweepLocked(cfg.Sweep.Interval)
	}
	return c, nil
}

// GetCache returns the cache registered under name, or nil.
func (m *Manager) GetCache(name string) *Cache {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.caches[name]
}

// CacheNames returns the registered cache names.
func (m *Manager) CacheNames() []string {
	m.mu.RLock()
	defer m.mu.RUnlock()
	names := make([]string, 0, len(m.caches))
	for name := range m.caches {
		names = append(names, name)
	}
	return names
}

// AllStats returns a snapshot of every registered cache's counters.
func (m *Manager) AllStats() map[string]types.CacheStats {
	m.mu.RLock()
	defer m.mu.RUnlock()
	stats := make(map[string]types.CacheStats, len(m.caches))
	for name, c := range m.caches {
		stats[name] = c.Stats()
	}
	return stats
}

func (m *Manager) buildBackend(cfg *config.Config) (types.Backend, error) {
	kind, err := cfg.BackendKind()
	if err != nil {
		return nil, err
	}

	var backend types.Backend
	switch kind {
	case types.BackendMemory:
		return NewMemoryCache(cfg, m.logger)
	case types.BackendSharded:
		return NewShardedCache(cfg.DefaultTTL, cfg.MaxMemoryMB, m.logger)
	case types.BackendRedis:
		if backend, err = NewRedisCache(cfg.Redis, m.logger); err != nil {
			return nil, err
		}
	case types.BackendHybrid:
		if backend, err = NewHybridCache(cfg, m.logger); err != nil {
			return nil, err
		}
	default:
		return nil, fmt.Errorf("%w: backend %q", types.ErrInvalidConfig, kind)
	}

	// Remote backends get the resilience policy wrapped around every call.
	if cfg.Retry.Enabled || cfg.CircuitBreaker.Enabled || cfg.Bulkhead.Enabled {
		return newResilientBackend(backend, resilience.NewPolicy(cfg)), nil
	}
	return backend, nil
}

// startSweepLocked launches the background loop. Caller holds m.mu.
func (m *Manager) startSweepLocked(interval time.Duration) {
	if interval <= 0 {
		interval = time.Minute
	}

	ctx, cancel := context.WithCancel(context.Background())
	m.cancel = cancel
	m.wg.Add(1)
	go m.sweepLoop(ctx, interval)
	m.logger.Info("background sweep started", "interval", interval)
}

func (m *Manager) sweepLoop(ctx context.Context, interval time.Duration) {
	defer m.wg.Done()

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			m.sweepOnce(ctx)
		}
	}
}

// sweepOnce runs one sweep iteration. A panic in one cache's sweep is
// contained so one misbehaving backend cannot kill the loop.
func (m *Manager) sweepOnce(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("sweep iteration panicked", "panic", r)
		}
	}()

	m.mu.RLock()
	caches := make(map[string]*Cache, len(m.caches))
	for name, c := range m.caches {
		caches[name] = c
	}
	m.mu.RUnlock()

	for name, c := range caches {
		if ctx.Err() != nil {
			return
		}

		if sweeper, ok := c.Backend().(types.Sweeper); ok {
			removed, err := sweeper.CleanupExpired(ctx)
			if err != nil {
				m.logger.Warn("sweep failed", "cache", name, "error", err)
			} else if removed > 0 {
				m.logger.Debug("swept expired entries", "cache", name, "removed", removed)
			}
		}

		m.publishStats(name, c)
	}
}

func (m *Manager) publishStats(name string, c *Cache) {
	if m.metrics == nil || !c.monitoring {
		return
	}

	stats := c.Stats()
	tags := []string{"cache:" + name, "backend:" + c.Backend().Name()}
	m.metrics.Gauge("cache.hit_rate", stats.HitRate(), "ratio", tags...)
	m.metrics.Gauge("cache.size", float64(stats.Size), "entry", tags...)
	m.metrics.Gauge("cache.memory_usage", float64(stats.MemoryUsageBytes), "byte", tags...)
	m.metrics.Gauge("cache.evictions", float64(stats.Evictions), "entry", tags...)
}

// Stop cancels the background loop and waits for it to exit. Caches stay
// usable; only the shared maintenance stops.
func (m *Manager) Stop() {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	if cancel != nil {
		cancel()
		m.wg.Wait()
		m.logger.Info("background sweep stopped")
	}
}

// Close stops the background loop and closes every registered cache.
func (m *Manager) Close() error {
	m.Stop()
	return m.closeCaches()
}

// CloseWithTimeout closes the manager but bounds how long it waits for the
// background loop to drain. Caches are closed either way; if the loop does
// not exit in time the error reports that.
func (m *Manager) CloseWithTimeout(timeout time.Duration) error {
	m.mu.Lock()
	cancel := m.cancel
	m.cancel = nil
	m.mu.Unlock()

	var timedOut bool
	if cancel != nil {
		cancel()
		done := make(chan struct{})
		go func() {
			m.wg.Wait()
			close(done)
		}()
		select {
		case <-done:
		case <-time.After(timeout):
			timedOut = true
			m.logger.Warn("background sweep did not drain before timeout", "timeout", timeout)
		}
	}

	err := m.closeCaches()
	if timedOut {
		return types.ErrShutdownTimeout
	}
	return err
}

func (m *Manager) closeCaches() error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.stopped {
		return nil
	}
	m.stopped = true

	var firstErr error
	for name, c := range m.caches {
		if err := c.Backend().Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("closing cache %q: %w", name, err)
		}
	}
	m.caches = make(map[string]*Cache)
	return firstErr
}
