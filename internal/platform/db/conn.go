package db

import (
	"context"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
)

// Queryer is the subset of pgx operations the repositories need. Both
// *pgxpool.Pool and pgx.Tx satisfy it, so a transaction placed on the context
// transparently replaces the pool for every repository call in its scope.
type Queryer interface {
	Query(ctx context.Context, sql string, args ...interface{}) (pgx.Rows, error)
	QueryRow(ctx context.Context, sql string, args ...interface{}) pgx.Row
	Exec(ctx context.Context, sql string, args ...interface{}) (pgconn.CommandTag, error)
}

type contextKey string

const queryerKey contextKey = "db_queryer"

// WithQueryer returns a context carrying q. Repositories prefer it over their
// own pool, which is how multi-repo operations share one transaction.
func WithQueryer(ctx context.Context, q Queryer) context.Context {
	return context.WithValue(ctx, queryerKey, q)
}

// QueryerFromContext retrieves the context-scoped queryer, or nil when the
// caller did not install one.
func QueryerFromContext(ctx context.Context) Queryer {
	q, _ := ctx.Value(queryerKey).(Queryer)
	return q
}
