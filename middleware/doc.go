// Package middleware wraps each attempt a worker makes at running a
// chain task.
//
// [Chain] composes middleware outermost first. [Default] is the stack the
// engine installs: [Recover], [Tracing], [Metrics], [Logging], [Timeout].
//
//	func audit(ctx context.Context, t *task.Task, next middleware.Handler) error {
//	    err := next(ctx)
//	    slog.InfoContext(ctx, "audited", "task", t.ID, "err", err)
//	    return err
//	}
package middleware
