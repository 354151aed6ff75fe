package middleware

import (
	"context"
	"fmt"
	"log/slog"
	"runtime/debug"

	"github.com/risetechapps/jobchain/task"
)

// Recover turns a panic escaping the runnable into an error.
func Recover(logger Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) (err error) {
		defer func() {
			if p := recover(); p != nil {
				logger.ErrorContext(ctx, "chain panicked",
					append(taskAttrs(t),
						slog.Any("panic", p),
						slog.String("stack", string(debug.Stack())),
					)...,
				)
				err = fmt.Errorf("panic in %s: %v", t.Name, p)
			}
		}()
		return next(ctx)
	}
}
