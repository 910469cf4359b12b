// Package pool manages lazily-built, health-checked database connection
// pools on top of database/sql.
package pool

import (
	"context"
	"database/sql"
	"database/sql/driver"
	"fmt"
	"time"

	"github.com/lib/pq"

	"github.com/mpetka/larder/internal/config"
)

// sessionConnector wraps a driver.Connector and runs the configured
// session-init statements on every new physical connection. database/sql
// reuses connections, so the statements run once per connection, not once
// per query.
type sessionConnector struct {
	inner driver.Connector
	init  []string
}

func (c *sessionConnector) Connect(ctx context.Context) (driver.Conn, error) {
	conn, err := c.inner.Connect(ctx)
	if err != nil {
		return nil, err
	}

	for _, stmt := range c.init {
		if err := execOnConn(ctx, conn, stmt); err != nil {
			conn.Close()
			return nil, fmt.Errorf("session init %q: %w", stmt, err)
		}
	}
	return conn, nil
}

func (c *sessionConnector) Driver() driver.Driver {
	return c.inner.Driver()
}

// execOnConn runs a statement directly on a raw driver connection.
func execOnConn(ctx context.Context, conn driver.Conn, stmt string) error {
	if execer, ok := conn.(driver.ExecerContext); ok {
		_, err := execer.ExecContext(ctx, stmt, nil)
		return err
	}

	prepared, err := conn.Prepare(stmt)
	if err != nil {
		return err
	}
	defer prepared.Close()
	_, err = prepared.Exec(nil) //nolint:staticcheck // raw driver path for drivers without ExecerContext
	return err
}

// Opener builds a ready *sql.DB. It is a seam: production uses
// NewPostgresOpener, tests substitute a stub to observe construction.
type Opener func(ctx context.Context) (*sql.DB, error)

// NewPostgresOpener returns an Opener that dials Postgres through lib/pq,
// applies the configured pool limits, and verifies connectivity with one
// ping before handing the pool over.
func NewPostgresOpener(cfg config.PoolConfig) Opener {
	return func(ctx context.Context) (*sql.DB, error) {
		connector, err := pq.NewConnector(cfg.DSN.Value())
		if err != nil {
			return nil, fmt.Errorf("parsing dsn: %w", err)
		}

		var dc driver.Connector = connector
		if len(cfg.SessionInit) > 0 {
			dc = &sessionConnector{inner: connector, init: cfg.SessionInit}
		}

		db := sql.OpenDB(dc)
		if cfg.MaxOpenConns > 0 {
			db.SetMaxOpenConns(cfg.MaxOpenConns)
		}
		if cfg.MaxIdleConns > 0 {
			db.SetMaxIdleConns(cfg.MaxIdleConns)
		}
		if cfg.ConnMaxLifetime > 0 {
			db.SetConnMaxLifetime(cfg.ConnMaxLifetime)
		}
		if cfg.ConnMaxIdleTime > 0 {
			db.SetConnMaxIdleTime(cfg.ConnMaxIdleTime)
		}

		pingCtx, cancel := context.WithTimeout(ctx, 10*time.Second)
		defer cancel()
		if err := db.PingContext(pingCtx); err != nil {
			db.Close()
			return nil, fmt.Errorf("verifying connection: %w", err)
		}
		return db, nil
	}
}
