// Package repokit binds repositories to the store seams
package repokit

import (
	"context"
	"fmt"

	"exoseek/internal/platform/store"
)

// Queryer is the sql surface a repo is bound to
type Queryer = store.RowQuerier

type (
	// Rows is a query result set
	Rows = store.Rows
	// Row is a single result row
	Row = store.Row
)

// Binder builds a repo over a Queryer
type Binder[T any] interface {
	Bind(Queryer) T
}

// MustBind binds b to q; a nil q is a wiring bug and panics
func MustBind[T any](b Binder[T], q Queryer) T {
	if q == nil {
		panic("repokit: bind to nil Queryer")
	}
	return b.Bind(q)
}

// MustGuard pings the store's backends and panics if any is down
func MustGuard(ctx context.Context, st interface{ Guard(context.Context) error }) {
	if err := st.Guard(ctx); err != nil {
		panic(fmt.Errorf("dependency guard failed: %w", err))
	}
}
