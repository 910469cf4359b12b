package pool

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/resilience"
	"github.com/mpetka/larder/internal/types"
)

// Stats is a snapshot of the manager's observability counters.
type Stats struct {
	ConnectionsCreated int64 `json:"connectionsCreated"`
	ConnectionsFailed  int64 `json:"connectionsFailed"`
	QueriesExecuted    int64 `json:"queriesExecuted"`
	QueriesFailed      int64 `json:"queriesFailed"`
	RetriesPerformed   int64 `json:"retriesPerformed"`
	HealthChecks       int64 `json:"healthChecks"`
	HealthCheckFails   int64 `json:"healthCheckFails"`
	PoolRebuilds       int64 `json:"poolRebuilds"`
}

// Manager owns a lazily-constructed *sql.DB and keeps it healthy. The pool
// is built on first use under a retry budget; after that, health checks
// are rate-limited by a freshness window and a failed check triggers at
// most one rebuild.
type Manager struct {
	config config.PoolConfig
	opener Opener
	retry  *resilience.RetryPolicy
	logger *slog.Logger
	clock  clock.Clock

	mu        sync.Mutex
	db        *sql.DB
	lastCheck time.Time
	healthy   bool
	closed    bool

	connsCreated     atomic.Int64
	connsFailed      atomic.Int64
	queriesExecuted  atomic.Int64
	queriesFailed    atomic.Int64
	retriesPerformed atomic.Int64
	healthChecks     atomic.Int64
	healthCheckFails atomic.Int64
	rebuilds         atomic.Int64
}

// NewManager creates a pool manager that dials Postgres from the config.
func NewManager(cfg config.PoolConfig, retryCfg config.RetryConfig, logger *slog.Logger) *Manager {
	return NewManagerWithOpener(cfg, retryCfg, logger, NewPostgresOpener(cfg), clock.New())
}

// NewManagerWithOpener creates a pool manager with an injected opener and
// clock, the seams tests use to observe construction and step time.
func NewManagerWithOpener(cfg config.PoolConfig, retryCfg config.RetryConfig, logger *slog.Logger, opener Opener, clk clock.Clock) *Manager {
	if logger == nil {
		logger = slog.Default()
	}
	if cfg.BuildRetries > 0 {
		retryCfg.MaxAttempts = cfg.BuildRetries
		retryCfg.Enabled = true
	}
	if cfg.HealthCheckTTL <= 0 {
		cfg.HealthCheckTTL = 30 * time.Second
	}

	return &Manager{
		config: cfg,
		opener: opener,
		retry:  resilience.NewRetryPolicy(retryCfg),
		logger: logger.With("component", "pool-manager"),
		clock:  clk,
	}
}

// Pool returns the shared *sql.DB, building it on first call. Concurrent
// first callers block on one construction; exactly one opener run succeeds
// for all of them.
func (m *Manager) Pool(ctx context.Context) (*sql.DB, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil, types.ErrPoolClosed
	}
	// Concurrent first callers serialize here; the winner builds, the
	// losers find m.db populated.
	if m.db != nil {
		return m.db, nil
	}
	return m.buildLocked(ctx)
}

// buildLocked constructs the pool under the retry budget. Caller holds m.mu.
func (m *Manager) buildLocked(ctx context.Context) (*sql.DB, error) {
	var db *sql.DB
	err := m.retry.ExecuteCtx(ctx, func(ctx context.Context) error {
		built, err := m.opener(ctx)
		if err != nil {
			m.connsFailed.Add(1)
			m.retriesPerformed.Add(1)
			m.logger.Warn("pool construction failed", "error", err)
			return err
		}
		db = built
		return nil
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", types.ErrPoolExhausted, err)
	}

	m.db = db
	m.healthy = true
	m.lastCheck = m.clock.Now()
	m.connsCreated.Add(1)
	m.logger.Info("connection pool ready",
		"max_open_conns", m.config.MaxOpenConns,
		"max_idle_conns", m.config.MaxIdleConns)
	return db, nil
}

// HealthCheck verifies the pool is alive. Results are cached for the
// configured freshness window so hot paths can call this cheaply. A failed
// ping closes the pool and rebuilds it once; the rebuild's outcome is the
// check's outcome.
func (m *Manager) HealthCheck(ctx context.Context) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return types.ErrPoolClosed
	}
	if m.db == nil {
		_, err := m.buildLocked(ctx)
		return err
	}

	if m.clock.Since(m.lastCheck) < m.config.HealthCheckTTL {
		if m.healthy {
			return nil
		}
		return fmt.Errorf("%w: pool unhealthy as of %s", types.ErrBackendUnavailable, m.lastCheck.Format(time.RFC3339))
	}

	m.healthChecks.Add(1)
	err := m.db.PingContext(ctx)
	m.lastCheck = m.clock.Now()
	if err == nil {
		m.healthy = true
		return nil
	}

	m.healthCheckFails.Add(1)
	m.healthy = false
	m.logger.Warn("health check failed, rebuilding pool", "error", err)

	m.db.Close()
	m.db = nil
	m.rebuilds.Add(1)

	if _, berr := m.buildLocked(ctx); berr != nil {
		return berr
	}
	return nil
}

// PoolWithRetry returns a healthy pool, spending up to maxRetries extra
// health-check-and-rebuild rounds before giving up with ErrPoolExhausted.
func (m *Manager) PoolWithRetry(ctx context.Context, maxRetries int) (*sql.DB, error) {
	var lastErr error
	for attempt := 0; attempt <= maxRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return nil, err
		}

		if lastErr = m.HealthCheck(ctx); lastErr == nil {
			return m.Pool(ctx)
		}
		if attempt < maxRetries {
			m.retriesPerformed.Add(1)
		}
	}
	return nil, fmt.Errorf("%w: after %d retries: %v", types.ErrPoolExhausted, maxRetries, lastErr)
}

// Exec runs a statement on the pool, recording query counters.
func (m *Manager) Exec(ctx context.Context, query string, args ...any) (sql.Result, error) {
	db, err := m.Pool(ctx)
	if err != nil {
		return nil, err
	}

	res, err := db.ExecContext(ctx, query, args...)
	if err != nil {
		m.queriesFailed.Add(1)
		return nil, err
	}
	m.queriesExecuted.Add(1)
	return res, nil
}

// Query runs a query on the pool, recording query counters. The caller
// owns the returned rows.
func (m *Manager) Query(ctx context.Context, query string, args ...any) (*sql.Rows, error) {
	db, err := m.Pool(ctx)
	if err != nil {
		return nil, err
	}

	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		m.queriesFailed.Add(1)
		return nil, err
	}
	m.queriesExecuted.Add(1)
	return rows, nil
}

// QueryRow runs a single-row query on the pool. Errors surface from the
// row's Scan, per database/sql convention; a pool failure yields a row
// that scans to the pool error.
func (m *Manager) QueryRow(ctx context.Context, query string, args ...any) (*sql.Row, error) {
	db, err := m.Pool(ctx)
	if err != nil {
		return nil, err
	}
	m.queriesExecuted.Add(1)
	return db.QueryRowContext(ctx, query, args...), nil
}

// Transaction runs fn inside a transaction, committing when fn returns nil
// and rolling back when it returns an error or panics.
func (m *Manager) Transaction(ctx context.Context, fn func(*sql.Tx) error) error {
	db, err := m.Pool(ctx)
	if err != nil {
		return err
	}

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		m.queriesFailed.Add(1)
		return err
	}

	defer func() {
		if p := recover(); p != nil {
			tx.Rollback() //nolint:errcheck // the panic is the failure being reported
			panic(p)
		}
	}()

	if err := fn(tx); err != nil {
		if rbErr := tx.Rollback(); rbErr != nil {
			return fmt.Errorf("%v (rollback failed: %w)", err, rbErr)
		}
		return err
	}

	if err := tx.Commit(); err != nil {
		m.queriesFailed.Add(1)
		return err
	}
	m.queriesExecuted.Add(1)
	return nil
}

// DBStats returns database/sql's own pool statistics, or a zero value
// before the pool is built.
func (m *Manager) DBStats() sql.DBStats {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.db == nil {
		return sql.DBStats{}
	}
	return m.db.Stats()
}

// Stats returns a snapshot of the counters.
func (m *Manager) Stats() Stats {
	return Stats{
		ConnectionsCreated: m.connsCreated.Load(),
		ConnectionsFailed:  m.connsFailed.Load(),
		QueriesExecuted:    m.queriesExecuted.Load(),
		QueriesFailed:      m.queriesFailed.Load(),
		RetriesPerformed:   m.retriesPerformed.Load(),
		HealthChecks:       m.healthChecks.Load(),
		HealthCheckFails:   m.healthCheckFails.Load(),
		PoolRebuilds:       m.rebuilds.Load(),
	}
}

// IsHealthy reports the result of the most recent health check.
func (m *Manager) IsHealthy() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.db != nil && m.healthy && !m.closed
}

// Close shuts the pool down. Further operations return ErrPoolClosed.
func (m *Manager) Close() error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.closed {
		return nil
	}
	m.closed = true

	if m.db != nil {
		err := m.db.Close()
		m.db = nil
		return err
	}
	return nil
}
