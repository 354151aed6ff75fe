package middleware

import (
	"context"
	"errors"
	"fmt"

	"github.com/risetechapps/jobchain/task"
)

// ErrTimeout is wrapped by the error Timeout returns when the task's
// deadline expired while its runnable was still running.
var ErrTimeout = errors.New("jobchain: task timed out")

// Timeout bounds each attempt by t.Timeout. A zero timeout leaves the
// context untouched.
func Timeout() Middleware {
	return func(ctx context.Context, t *task.Task, next Handler) error {
		if t.Timeout <= 0 {
			return next(ctx)
		}
		ctx, cancel := context.WithTimeoutCause(ctx, t.Timeout, ErrTimeout)
		defer cancel()

		err := next(ctx)
		if err != nil && errors.Is(context.Cause(ctx), ErrTimeout) && !errors.Is(err, ErrTimeout) {
			return fmt.Errorf("%w after %s: %w", ErrTimeout, t.Timeout, err)
		}
		return err
	}
}
