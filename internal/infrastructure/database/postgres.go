package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jackc/pgx/v5/stdlib"
)

var ErrMissingDSN = errors.New("postgres: DB_URL is not set")

// PoolOptions size the message store pool. Zero fields keep the defaults
// below; a DSN pool_max_conns parameter wins over MaxConns.
type PoolOptions struct {
	MaxConns          int32
	MinConns          int32
	MaxConnIdleTime   time.Duration
	MaxConnLifetime   time.Duration
	HealthCheckPeriod time.Duration
	ApplicationName   string
}

const (
	defaultMaxConns          = 16
	defaultMaxConnIdleTime   = 5 * time.Minute
	defaultMaxConnLifetime   = time.Hour
	defaultHealthCheckPeriod = time.Minute
)

// Connect opens the pool and pings it once, so a bad DSN fails at startup
// instead of on the first send.
func Connect(ctx context.Context, dsn string, opts PoolOptions) (*pgxpool.Pool, error) {
	cfg, err := poolConfig(dsn, opts)
	if err != nil {
		return nil, err
	}
	pool, err := pgxpool.NewWithConfig(ctx, cfg)
	if err != nil {
		return nil, fmt.Errorf("postgres: new pool: %w", err)
	}
	if err := pool.Ping(ctx); err != nil {
		pool.Close()
		return nil, fmt.Errorf("postgres: ping: %w", err)
	}
	return pool, nil
}

func poolConfig(dsn string, opts PoolOptions) (*pgxpool.Config, error) {
	normalized := normalizeDSN(dsn)
	if normalized == "" {
		return nil, ErrMissingDSN
	}
	cfg, err := pgxpool.ParseConfig(normalized)
	if err != nil {
		return nil, fmt.Errorf("postgres: parse config: %w", err)
	}

	if !strings.Contains(normalized, "pool_max_conns") {
		cfg.MaxConns = orDefault(opts.MaxConns, defaultMaxConns)
	}
	if opts.MinConns > 0 && opts.MinConns <= cfg.MaxConns {
		cfg.MinConns = opts.MinConns
	}
	cfg.MaxConnIdleTime = orDefault(opts.MaxConnIdleTime, defaultMaxConnIdleTime)
	cfg.MaxConnLifetime = orDefault(opts.MaxConnLifetime, defaultMaxConnLifetime)
	cfg.HealthCheckPeriod = orDefault(opts.HealthCheckPeriod, defaultHealthCheckPeriod)
	if opts.ApplicationName != "" {
		cfg.ConnConfig.RuntimeParams["application_name"] = opts.ApplicationName
	}
	return cfg, nil
}

func orDefault[T int32 | time.Duration](v, def T) T {
	if v > 0 {
		return v
	}
	return def
}

// OpenDB exposes pool through database/sql for collaborators written
// against that interface.
func OpenDB(pool *pgxpool.Pool) *sql.DB {
	return stdlib.OpenDBFromPool(pool)
}

// driverAliases are SQLAlchemy-style schemes that show up in shared .env files.
var driverAliases = map[string]string{
	"postgresql+asyncpg://": "postgresql://",
	"postgres+asyncpg://":   "postgres://",
	"postgresql+pgx://":     "postgresql://",
	"postgres+pgx://":       "postgres://",
}

func normalizeDSN(dsn string) string {
	s := strings.TrimSpace(dsn)
	for alias, scheme := range driverAliases {
		if strings.HasPrefix(s, alias) {
			return scheme + strings.TrimPrefix(s, alias)
		}
	}
	return s
}
