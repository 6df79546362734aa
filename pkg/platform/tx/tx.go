// Package tx carries an open SQL transaction through a context so stores can
// join a caller's unit of work instead of opening their own.
package tx

import (
	"context"
	"database/sql"
)

type ctxKey struct{}

// WithTx returns ctx carrying t. A nil t leaves ctx unchanged.
func WithTx(ctx context.Context, t *sql.Tx) context.Context {
	if t == nil {
		return ctx
	}
	return context.WithValue(ctx, ctxKey{}, t)
}

// From returns the transaction carried by ctx, if any.
func From(ctx context.Context) (*sql.Tx, bool) {
	t, ok := ctx.Value(ctxKey{}).(*sql.Tx)
	return t, ok && t != nil
}
