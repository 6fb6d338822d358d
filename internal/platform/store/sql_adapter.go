package store

import (
	"context"

	"exoseek/internal/platform/store/pg"
)

// sqlPG narrows the pgx pool to RowQuerier; tracing happens inside pgx
type sqlPG struct{ p *pg.PG }

func (a *sqlPG) Exec(ctx context.Context, sql string, args ...any) (CommandTag, error) {
	return a.p.Pool.Exec(ctx, sql, args...)
}

func (a *sqlPG) Query(ctx context.Context, sql string, args ...any) (Rows, error) {
	return a.p.Pool.Query(ctx, sql, args...)
}

func (a *sqlPG) QueryRow(ctx context.Context, sql string, args ...any) Row {
	return a.p.Pool.QueryRow(ctx, sql, args...)
}

func (a *sqlPG) Ping(ctx context.Context) error { return a.p.Ping(ctx) }

func (a *sqlPG) Close() error { a.p.Close(); return nil }
