package pg

import (
	"context"
	"strings"
	"time"

	"exoseek/internal/platform/logger"
	"exoseek/internal/platform/metrics"

	"github.com/jackc/pgx/v5"
)

// Tracer implements pgx.QueryTracer
// every query feeds the pg.query timing; failed and slow ones always log
type Tracer struct {
	Log  logger.Logger
	Slow time.Duration
	All  bool
}

var _ pgx.QueryTracer = (*Tracer)(nil)

type startKey struct{}

type started struct {
	sql  string
	args []any
	at   time.Time
}

// TraceQueryStart stashes the statement on ctx
func (t *Tracer) TraceQueryStart(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryStartData) context.Context {
	return context.WithValue(ctx, startKey{}, started{sql: d.SQL, args: d.Args, at: time.Now()})
}

// TraceQueryEnd records the outcome
func (t *Tracer) TraceQueryEnd(ctx context.Context, _ *pgx.Conn, d pgx.TraceQueryEndData) {
	s, ok := ctx.Value(startKey{}).(started)
	if !ok {
		return
	}
	took := time.Since(s.at)
	slow := t.Slow > 0 && took >= t.Slow

	outcome := "ok"
	if d.Err != nil {
		outcome = "error"
	}
	metrics.Timing("pg.query", took, "outcome:"+outcome)

	ev := t.Log.Info()
	switch {
	case d.Err != nil || slow:
		ev = t.Log.Warn()
	case !t.All:
		return
	}
	ev.Dur("took", took).
		Bool("slow", slow).
		Str("sql", squash(s.sql)).
		Int("args", len(s.args)).
		Int64("rows", d.CommandTag.RowsAffected()).
		Err(d.Err).
		Msg("pg query")
}

// squash folds runs of whitespace so multi line sql fits one log field
func squash(s string) string { return strings.Join(strings.Fields(s), " ") }
