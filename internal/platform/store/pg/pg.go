// Package pg opens a pgx pool with query tracing wired into zerolog and statsd
package pg

import (
	"context"
	"time"

	"exoseek/internal/platform/logger"

	"github.com/jackc/pgx/v5/pgxpool"
)

// Config configures the pool and its tracer
type Config struct {
	URL      string
	MaxConns int32
	Slow     time.Duration // queries at least this slow log at warn; zero disables
	LogSQL   bool          // log every statement, not only slow or failed ones
}

// PG owns the pool
type PG struct {
	Pool *pgxpool.Pool
}

var newPool = pgxpool.NewWithConfig

// Open builds the pool; pgxpool connects lazily so no round trip happens here
func Open(ctx context.Context, cfg Config, log logger.Logger) (*PG, error) {
	pcfg, err := pgxpool.ParseConfig(cfg.URL)
	if err != nil {
		return nil, err
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}
	pcfg.ConnConfig.Tracer = &Tracer{
		Log:  log.With().Str("component", "pg").Logger(),
		Slow: cfg.Slow,
		All:  cfg.LogSQL,
	}
	pool, err := newPool(ctx, pcfg)
	if err != nil {
		return nil, err
	}
	return &PG{Pool: pool}, nil
}

// Ping round trips one connection
func (p *PG) Ping(ctx context.Context) error { return p.Pool.Ping(ctx) }

// Close closes the pool
func (p *PG) Close() {
	if p != nil && p.Pool != nil {
		p.Pool.Close()
	}
}
