package middleware

import (
	"context"
	"log/slog"
	"time"

	"github.com/risetechapps/jobchain/task"
)

// Logger is the logger middleware writes to.
type Logger = *slog.Logger

func taskAttrs(t *task.Task) []any {
	return []any{
		slog.String("task_id", t.ID.String()),
		slog.String("chain", t.Name),
		slog.String("queue", t.Queue),
		slog.Int("attempt", t.RetryCount+1),
	}
}

// Logging logs chain start and the result of every attempt.
func Logging(logger Logger) Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		logger.DebugContext(ctx, "chain started", taskAttrs(t)...)

		start := time.Now()
		err := next(ctx)
		attrs := append(taskAttrs(t), slog.Duration("elapsed", time.Since(start)))

		if err != nil {
			logger.ErrorContext(ctx, "chain failed", append(attrs, slog.String("error", err.Error()))...)
			return err
		}
		logger.InfoContext(ctx, "chain completed", attrs...)
		return nil
	}
}
