package chain

import (
	"context"
	"fmt"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/report"
)

// Listener is the function shape of an event listener.
type Listener = func(ctx context.Context, args ...any) error

// ToListener returns a listener that binds the chain to the trigger
// arguments and submits the snapshot to the dispatcher.
//
// A chain without jobs yields a listener that does nothing. A chain that
// should not be enqueued builds the snapshot but never submits it. Inside
// an open transaction the submission is deferred until the outermost
// commit; errors from a deferred submission go to the reporter.
func (c *Chain) ToListener() Listener {
	if len(c.jobs) == 0 {
		return func(context.Context, ...any) error { return nil }
	}

	return func(ctx context.Context, args ...any) error {
		b, err := c.bind(args)
		if err != nil {
			return err
		}
		if !c.shouldEnqueue {
			return nil
		}
		if c.env.dispatcher == nil {
			return jobchain.ErrNoDispatcher
		}

		if c.env.tracker.Depth(ctx) > 0 {
			c.env.tracker.AfterCommit(ctx, func(ctx context.Context) {
				if err := c.env.dispatcher.Submit(ctx, b); err != nil {
					report.Safe(ctx, c.env.reporter, fmt.Errorf("chain: deferred submit of %q: %w", b.DisplayName(), err))
				}
			})
			return nil
		}
		return c.env.dispatcher.Submit(ctx, b)
	}
}

// bind is Executable with a panicking transform turned into an error.
func (c *Chain) bind(args []any) (b *Bound, err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("chain: transform: %v", r)
		}
	}()
	return c.Executable(args...), nil
}
