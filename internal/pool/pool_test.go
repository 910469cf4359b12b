package pool

import (
	"context"
	"database/sql"
	"errors"
	"sync"
	"sync/atomic"
	"syscall"
	"testing"
	"time"

	"github.com/DATA-DOG/go-sqlmock"
	"github.com/benbjohnson/clock"

	"github.com/mpetka/larder/internal/config"
	"github.com/mpetka/larder/internal/types"
)

func testPoolConfig() config.PoolConfig {
	return config.PoolConfig{
		MaxOpenConns:   5,
		MaxIdleConns:   1,
		HealthCheckTTL: 30 * time.Second,
		BuildRetries:   3,
	}
}

func fastRetryConfig() config.RetryConfig {
	return config.RetryConfig{
		Enabled:        true,
		InitialBackoff: time.Millisecond,
		MaxBackoff:     5 * time.Millisecond,
		Multiplier:     2.0,
	}
}

// mockOpener hands out fresh sqlmock databases and counts constructions.
type mockOpener struct {
	calls atomic.Int64
	fails int64
	mu    sync.Mutex
	mocks []sqlmock.Sqlmock
}

func (o *mockOpener) open(ctx context.Context) (*sql.DB, error) {
	n := o.calls.Add(1)
	if n <= o.fails {
		return nil, syscall.ECONNREFUSED
	}

	db, mock, err := sqlmock.New(sqlmock.MonitorPingsOption(true))
	if err != nil {
		return nil, err
	}
	o.mu.Lock()
	o.mocks = append(o.mocks, mock)
	o.mu.Unlock()
	return db, nil
}

func (o *mockOpener) lastMock() sqlmock.Sqlmock {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.mocks[len(o.mocks)-1]
}

func newTestManager(t *testing.T, opener *mockOpener, clk clock.Clock) *Manager {
	t.Helper()
	if clk == nil {
		clk = clock.New()
	}
	m := NewManagerWithOpener(testPoolConfig(), fastRetryConfig(), nil, opener.open, clk)
	t.Cleanup(func() { m.Close() })
	return m
}

func TestPoolLazyConstruction(t *testing.T) {
	ctx := context.Background()
	opener := &mockOpener{}
	m := newTestManager(t, opener, nil)

	if opener.calls.Load() != 0 {
		t.Fatal("opener ran before first use")
	}

	db, err := m.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	if db == nil {
		t.Fatal("Pool() = nil")
	}

	// Second call reuses the pool.
	again, err := m.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	if again != db {
		t.Error("Pool() returned a different handle on the second call")
	}
	if got := opener.calls.Load(); got != 1 {
		t.Errorf("opener calls = %d, want 1", got)
	}
}

func TestPoolConcurrentFirstCallers(t *testing.T) {
	ctx := context.Background()
	opener := &mockOpener{}
	m := newTestManager(t, opener, nil)

	const callers = 16
	dbs := make([]*sql.DB, callers)
	var wg sync.WaitGroup
	for i := 0; i < callers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			db, err := m.Pool(ctx)
			if err != nil {
				t.Errorf("Pool() error = %v", err)
				return
			}
			dbs[i] = db
		}(i)
	}
	wg.Wait()

	if got := opener.calls.Load(); got != 1 {
		t.Errorf("opener calls = %d under racing callers, want 1", got)
	}
	for i := 1; i < callers; i++ {
		if dbs[i] != dbs[0] {
			t.Fatal("racing callers received different pools")
		}
	}
}

func TestPoolConstructionRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("transient failures retried within budget", func(t *testing.T) {
		opener := &mockOpener{fails: 2}
		m := newTestManager(t, opener, nil)

		if _, err := m.Pool(ctx); err != nil {
			t.Fatalf("Pool() error = %v", err)
		}
		if got := opener.calls.Load(); got != 3 {
			t.Errorf("opener calls = %d, want 3", got)
		}
		if failed := m.Stats().ConnectionsFailed; failed != 2 {
			t.Errorf("ConnectionsFailed = %d, want 2", failed)
		}
	})

	t.Run("budget exhaustion surfaces ErrPoolExhausted", func(t *testing.T) {
		opener := &mockOpener{fails: 100}
		m := newTestManager(t, opener, nil)

		_, err := m.Pool(ctx)
		if !errors.Is(err, types.ErrPoolExhausted) {
			t.Fatalf("Pool() error = %v, want ErrPoolExhausted", err)
		}
		if got := opener.calls.Load(); got != 3 {
			t.Errorf("opener calls = %d, want 3 (the retry budget)", got)
		}
	})
}

func TestHealthCheckCaching(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	opener := &mockOpener{}
	m := newTestManager(t, opener, mock)

	if _, err := m.Pool(ctx); err != nil {
		t.Fatalf("Pool() error = %v", err)
	}

	t.Run("fresh result reused without pinging", func(t *testing.T) {
		// No ExpectPing is registered: a ping would fail the mock.
		if err := m.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
		if checks := m.Stats().HealthChecks; checks != 0 {
			t.Errorf("HealthChecks = %d inside freshness window, want 0", checks)
		}
	})

	t.Run("stale result pings again", func(t *testing.T) {
		mock.Add(31 * time.Second)
		opener.lastMock().ExpectPing()

		if err := m.HealthCheck(ctx); err != nil {
			t.Errorf("HealthCheck() error = %v", err)
		}
		if checks := m.Stats().HealthChecks; checks != 1 {
			t.Errorf("HealthChecks = %d, want 1", checks)
		}
	})
}

func TestHealthCheckRebuildsOnFailure(t *testing.T) {
	ctx := context.Background()
	mock := clock.NewMock()
	opener := &mockOpener{}
	m := newTestManager(t, opener, mock)

	first, err := m.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}

	mock.Add(31 * time.Second)
	opener.lastMock().ExpectPing().WillReturnError(syscall.ECONNRESET)
	opener.lastMock().ExpectClose()

	if err := m.HealthCheck(ctx); err != nil {
		t.Fatalf("HealthCheck() error = %v, want successful rebuild", err)
	}

	second, err := m.Pool(ctx)
	if err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	if second == first {
		t.Error("pool not replaced after failed health check")
	}

	stats := m.Stats()
	if stats.PoolRebuilds != 1 {
		t.Errorf("PoolRebuilds = %d, want exactly 1", stats.PoolRebuilds)
	}
	if stats.HealthCheckFails != 1 {
		t.Errorf("HealthCheckFails = %d, want 1", stats.HealthCheckFails)
	}
	if got := opener.calls.Load(); got != 2 {
		t.Errorf("opener calls = %d, want 2", got)
	}
}

func TestPoolWithRetry(t *testing.T) {
	ctx := context.Background()

	t.Run("healthy pool returned", func(t *testing.T) {
		opener := &mockOpener{}
		m := newTestManager(t, opener, nil)

		db, err := m.PoolWithRetry(ctx, 2)
		if err != nil {
			t.Fatalf("PoolWithRetry() error = %v", err)
		}
		if db == nil {
			t.Fatal("PoolWithRetry() = nil")
		}
	})

	t.Run("gives up with ErrPoolExhausted", func(t *testing.T) {
		opener := &mockOpener{fails: 1 << 30}
		m := newTestManager(t, opener, nil)

		_, err := m.PoolWithRetry(ctx, 2)
		if !errors.Is(err, types.ErrPoolExhausted) {
			t.Errorf("PoolWithRetry() error = %v, want ErrPoolExhausted", err)
		}
	})

	t.Run("respects context cancellation", func(t *testing.T) {
		opener := &mockOpener{}
		m := newTestManager(t, opener, nil)

		cancelled, cancel := context.WithCancel(ctx)
		cancel()
		if _, err := m.PoolWithRetry(cancelled, 2); !errors.Is(err, context.Canceled) {
			t.Errorf("PoolWithRetry() error = %v, want context.Canceled", err)
		}
	})
}

func TestPoolExecAndQuery(t *testing.T) {
	ctx := context.Background()
	opener := &mockOpener{}
	m := newTestManager(t, opener, nil)

	if _, err := m.Pool(ctx); err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	dbMock := opener.lastMock()

	t.Run("Exec", func(t *testing.T) {
		dbMock.ExpectExec("UPDATE users").WillReturnResult(sqlmock.NewResult(0, 1))

		res, err := m.Exec(ctx, "UPDATE users SET name = $1", "ada")
		if err != nil {
			t.Fatalf("Exec() error = %v", err)
		}
		if n, _ := res.RowsAffected(); n != 1 {
			t.Errorf("RowsAffected() = %d, want 1", n)
		}
	})

	t.Run("Query", func(t *testing.T) {
		rows := sqlmock.NewRows([]string{"id"}).AddRow(7)
		dbMock.ExpectQuery("SELECT id FROM users").WillReturnRows(rows)

		got, err := m.Query(ctx, "SELECT id FROM users")
		if err != nil {
			t.Fatalf("Query() error = %v", err)
		}
		defer got.Close()

		var id int
		if !got.Next() {
			t.Fatal("Query() returned no rows")
		}
		if err := got.Scan(&id); err != nil || id != 7 {
			t.Errorf("Scan() = (%d, %v), want (7, nil)", id, err)
		}
	})

	t.Run("failed query counted", func(t *testing.T) {
		dbMock.ExpectExec("DELETE").WillReturnError(errors.New("syntax error"))

		if _, err := m.Exec(ctx, "DELETE FROM users"); err == nil {
			t.Fatal("Exec() error = nil, want failure")
		}
		if failed := m.Stats().QueriesFailed; failed != 1 {
			t.Errorf("QueriesFailed = %d, want 1", failed)
		}
	})
}

func TestPoolClose(t *testing.T) {
	ctx := context.Background()
	opener := &mockOpener{}
	m := newTestManager(t, opener, nil)

	if _, err := m.Pool(ctx); err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	opener.lastMock().ExpectClose()

	if err := m.Close(); err != nil {
		t.Fatalf("Close() error = %v", err)
	}

	if _, err := m.Pool(ctx); !errors.Is(err, types.ErrPoolClosed) {
		t.Errorf("Pool() error = %v after close, want ErrPoolClosed", err)
	}
	if err := m.HealthCheck(ctx); !errors.Is(err, types.ErrPoolClosed) {
		t.Errorf("HealthCheck() error = %v after close, want ErrPoolClosed", err)
	}
	if m.IsHealthy() {
		t.Error("IsHealthy() = true after close, want false")
	}
	if err := m.Close(); err != nil {
		t.Errorf("second Close() error = %v, want nil", err)
	}
}

func TestTransaction(t *testing.T) {
	ctx := context.Background()

	t.Run("commits when fn succeeds", func(t *testing.T) {
		opener := &mockOpener{}
		m := newTestManager(t, opener, nil)

		if _, err := m.Pool(ctx); err != nil {
			t.Fatalf("Pool() error = %v", err)
		}
		mock := opener.lastMock()
		mock.ExpectBegin()
		mock.ExpectExec("INSERT INTO users").WillReturnResult(sqlmock.NewResult(1, 1))
		mock.ExpectCommit()

		err := m.Transaction(ctx, func(tx *sql.Tx) error {
			_, err := tx.ExecContext(ctx, "INSERT INTO users (name) VALUES ($1)", "ada")
			return err
		})
		if err != nil {
			t.Fatalf("Transaction() error = %v", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
		if got := m.Stats().QueriesExecuted; got != 1 {
			t.Errorf("QueriesExecuted = %d, want 1", got)
		}
	})

	t.Run("rolls back when fn fails", func(t *testing.T) {
		opener := &mockOpener{}
		m := newTestManager(t, opener, nil)

		if _, err := m.Pool(ctx); err != nil {
			t.Fatalf("Pool() error = %v", err)
		}
		mock := opener.lastMock()
		mock.ExpectBegin()
		mock.ExpectRollback()

		boom := errors.New("boom")
		err := m.Transaction(ctx, func(*sql.Tx) error { return boom })
		if !errors.Is(err, boom) {
			t.Fatalf("Transaction() error = %v, want boom", err)
		}
		if err := mock.ExpectationsWereMet(); err != nil {
			t.Errorf("unmet expectations: %v", err)
		}
	})
}

func TestDBStats(t *testing.T) {
	ctx := context.Background()
	opener := &mockOpener{}
	m := newTestManager(t, opener, nil)

	if got := m.DBStats(); got.MaxOpenConnections != 0 {
		t.Errorf("DBStats() before build = %+v, want zero value", got)
	}

	if _, err := m.Pool(ctx); err != nil {
		t.Fatalf("Pool() error = %v", err)
	}
	opener.lastMock().ExpectExec("SELECT 1").WillReturnResult(sqlmock.NewResult(0, 0))
	if _, err := m.Exec(ctx, "SELECT 1"); err != nil {
		t.Fatalf("Exec() error = %v", err)
	}
	if got := m.DBStats(); got.OpenConnections == 0 {
		t.Error("DBStats() after a query reports no open connections")
	}
}
