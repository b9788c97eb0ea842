package probe

import (
	"context"
	"database/sql"
	"sync"
	"time"

	_ "github.com/lib/pq" // postgres driver
)

// PostgresConfig configures a PostgreSQL liveness probe.
type PostgresConfig struct {
	// Name is the unique probe name.
	Name string

	// DSN is the connection string.
	DSN string

	// Timeout is the per-execution timeout. Default: DefaultTimeout.
	Timeout time.Duration
}

// PostgresProbe checks database liveness with a trivial round-trip.
type PostgresProbe struct {
	config PostgresConfig

	once sync.Once
	db   *sql.DB
	err  error
}

// NewPostgresProbe creates a new PostgreSQL probe. The connection pool is
// opened lazily on the first execution.
func NewPostgresProbe(config PostgresConfig) *PostgresProbe {
	if config.Timeout <= 0 {
		config.Timeout = DefaultTimeout
	}
	return &PostgresProbe{config: config}
}

// Name returns the probe name.
func (p *PostgresProbe) Name() string {
	return p.config.Name
}

// Probe pings the database and runs SELECT 1.
func (p *PostgresProbe) Probe(ctx context.Context) Result {
	return execute(ctx, p.config.Name, p.config.Timeout, func(ctx context.Context) Result {
		p.once.Do(func() {
			p.db, p.err = sql.Open("postgres", p.config.DSN)
			if p.err == nil {
				p.db.SetMaxOpenConns(1)
			}
		})
		if p.err != nil {
			return Fail(p.config.Name, p.err.Error(), p.err)
		}

		if err := p.db.PingContext(ctx); err != nil {
			if ctx.Err() == context.DeadlineExceeded {
				return Fail(p.config.Name, DetailTimeout, ErrTimeout)
			}
			return Fail(p.config.Name, err.Error(), err)
		}

		var one int
		if err := p.db.QueryRowContext(ctx, "SELECT 1").Scan(&one); err != nil {
			return Fail(p.config.Name, err.Error(), err)
		}
		return Pass(p.config.Name, "round-trip ok")
	})
}

// Close releases the connection pool.
func (p *PostgresProbe) Close() error {
	if p.db != nil {
		return p.db.Close()
	}
	return nil
}
