package middleware

import (
	"context"

	"github.com/risetechapps/jobchain/task"
)

// Handler runs the task's runnable.
type Handler func(ctx context.Context) error

// Middleware wraps a Handler with cross-cutting logic. It must call next
// unless it deliberately short-circuits.
type Middleware func(ctx context.Context, t *task.Task, next Handler) error

// Chain composes middleware so that the first one is the outermost:
//
//	Chain(Recover, Logging)(ctx, t, h) runs Recover → Logging → h
func Chain(mws ...Middleware) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		h := next
		for i := len(mws) - 1; i >= 0; i-- {
			mw, inner := mws[i], h
			h = func(ctx context.Context) error {
				return mw(ctx, t, inner)
			}
		}
		return h(ctx)
	}
}

// Default returns the stack an engine installs when none is configured:
// recover, tracing, metrics, logging and timeout, outermost first.
func Default(logger Logger) Middleware {
	return Chain(
		Recover(logger),
		Tracing(),
		Metrics(),
		Logging(logger),
		Timeout(),
	)
}
