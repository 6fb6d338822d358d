// Package store opens the optional audit backends behind small seams
package store

import (
	"context"
	"errors"
	"fmt"
	"time"

	"exoseek/internal/platform/logger"
	chx "exoseek/internal/platform/store/ch"
	"exoseek/internal/platform/store/pg"
)

// Store holds whichever backends are enabled; the zero value has none
type Store struct {
	Log logger.Logger

	// PG is nil when postgres is disabled
	PG RowQuerier

	// CH is nil when clickhouse is disabled
	CH Clickhouse
}

// Row is a single scanned row
type Row interface {
	Scan(dest ...any) error
}

// Rows is a result set; it is also a Row for the current position
type Rows interface {
	Row
	Next() bool
	Err() error
	Close()
}

// CommandTag reports what a write did
type CommandTag interface {
	RowsAffected() int64
}

// RowQuerier is the sql surface repos use
type RowQuerier interface {
	Exec(ctx context.Context, sql string, args ...any) (CommandTag, error)
	Query(ctx context.Context, sql string, args ...any) (Rows, error)
	QueryRow(ctx context.Context, sql string, args ...any) Row
}

// Clickhouse is the columnar surface repos use
type Clickhouse interface {
	Insert(ctx context.Context, table string, rows [][]any) error
	Exec(ctx context.Context, sql string, args ...any) error
	Query(ctx context.Context, sql string, args ...any) (chx.Rows, error)
	Close() error
}

// Pinger reports readiness
type Pinger interface{ Ping(context.Context) error }

// Option mutates Store during Open
type Option func(*Store)

// WithLogger sets the logger backends trace through
func WithLogger(log logger.Logger) Option { return func(s *Store) { s.Log = log } }

// Open connects the enabled backends; disabled ones stay nil
func Open(ctx context.Context, cfg Config, opts ...Option) (*Store, error) {
	s := &Store{Log: *logger.Named("store")}
	for _, o := range opts {
		o(s)
	}

	if cfg.PG.Enabled {
		p, err := openPG(ctx, cfg.PG, s.Log)
		if err != nil {
			return nil, err
		}
		s.PG = p
	}
	if cfg.CH.Enabled {
		c, err := chx.Open(ctx, chx.Config{URL: cfg.CH.URL, ClientRole: cfg.CH.ClientRole, ClientTag: cfg.CH.ClientTag})
		if err != nil {
			_ = s.Close(ctx)
			return nil, err
		}
		s.CH = c
	}
	return s, nil
}

// openPG builds the pool and waits for the server with capped exponential backoff
func openPG(ctx context.Context, cfg PGConfig, log logger.Logger) (*sqlPG, error) {
	p, err := pg.Open(ctx, pg.Config{
		URL:      cfg.URL,
		MaxConns: cfg.MaxConns,
		Slow:     time.Duration(cfg.SlowQueryMs) * time.Millisecond,
		LogSQL:   cfg.LogSQL,
	}, log)
	if err != nil {
		return nil, fmt.Errorf("pg: open: %w", err)
	}

	tries, timeout := cfg.ConnectRetries, cfg.PingTimeout
	if tries <= 0 {
		tries = 20
	}
	if timeout <= 0 {
		timeout = 3 * time.Second
	}

	backoff := 150 * time.Millisecond
	var last error
	for i := range tries {
		pctx, cancel := context.WithTimeout(ctx, timeout)
		last = p.Ping(pctx)
		cancel()
		if last == nil {
			return &sqlPG{p: p}, nil
		}
		log.Warn().Err(last).Int("attempt", i+1).Msg("postgres not ready")

		select {
		case <-ctx.Done():
			p.Close()
			return nil, ctx.Err()
		case <-time.After(backoff):
		}
		backoff = min(2*backoff, 2*time.Second)
	}
	p.Close()
	return nil, fmt.Errorf("pg: ping failed after %d attempts: %w", tries, last)
}

// Guard pings every enabled backend
func (s *Store) Guard(ctx context.Context) error {
	if s == nil {
		return errors.New("nil store")
	}
	var errs []error
	if p, ok := s.PG.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("pg: %w", err))
		}
	}
	if p, ok := s.CH.(Pinger); ok {
		if err := p.Ping(ctx); err != nil {
			errs = append(errs, fmt.Errorf("ch: %w", err))
		}
	}
	return errors.Join(errs...)
}

// Close closes every enabled backend
func (s *Store) Close(context.Context) error {
	var errs []error
	if s.CH != nil {
		errs = append(errs, s.CH.Close())
	}
	if c, ok := s.PG.(interface{ Close() error }); ok {
		errs = append(errs, c.Close())
	}
	return errors.Join(errs...)
}

// Many runs sql and maps every row with scan
func Many[T any](ctx context.Context, q RowQuerier, scan func(Row) (T, error), sql string, args ...any) ([]T, error) {
	rows, err := q.Query(ctx, sql, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		item, err := scan(rows)
		if err != nil {
			return nil, err
		}
		out = append(out, item)
	}
	return out, rows.Err()
}
