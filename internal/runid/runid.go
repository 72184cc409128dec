// Package runid carries a correlation id for one command or sweep through
// context, so every log line of a run can be joined.
package runid

import (
	"context"

	"github.com/google/uuid"
)

type ctxKey struct{}

// With returns a context carrying id.
func With(ctx context.Context, id string) context.Context {
	return context.WithValue(ctx, ctxKey{}, id)
}

// From returns the id carried by ctx.
func From(ctx context.Context) (string, bool) {
	id, ok := ctx.Value(ctxKey{}).(string)
	return id, ok && id != ""
}

// Clear returns a context that carries no id, so runs derived from it get
// their own.
func Clear(ctx context.Context) context.Context {
	if _, ok := From(ctx); !ok {
		return ctx
	}
	return With(ctx, "")
}

// Ensure reuses the id already in ctx or attaches a fresh one.
func Ensure(ctx context.Context) (context.Context, string) {
	if id, ok := From(ctx); ok {
		return ctx, id
	}
	id := uuid.NewString()
	return With(ctx, id), id
}
