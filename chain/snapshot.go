package chain

import (
	"context"
	"time"

	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/task"
)

// Bound is a chain snapshot bound to one trigger. It carries its own
// passable tuple and no transform, and is what the host queue runs.
type Bound struct {
	jobs       []job.Spec
	passable   job.Args
	onSuccess  func(ctx context.Context)
	onFailure  func(ctx context.Context, cause error)
	onFinally  func(ctx context.Context)
	timeout    time.Duration
	queue      string
	maxRetries int

	env *env
}

// Executable binds the template to args. The job list is shared with the
// template; every other field is copied, so snapshots built from the same
// template never observe each other.
func (c *Chain) Executable(args ...any) *Bound {
	return &Bound{
		jobs:       c.jobs,
		passable:   c.passable(args),
		onSuccess:  c.onSuccess,
		onFailure:  c.onFailure,
		onFinally:  c.onFinally,
		timeout:    c.timeout,
		queue:      c.queue,
		maxRetries: c.maxRetries,
		env:        c.env,
	}
}

func (c *Chain) passable(args []any) job.Args {
	if c.transform == nil {
		return tuple(passThrough(args...))
	}
	return tuple(c.transform(args...))
}

// passThrough is the default transform: one argument is passed on as it is,
// several become the tuple.
func passThrough(args ...any) any {
	if len(args) == 1 {
		return args[0]
	}
	return append([]any(nil), args...)
}

func tuple(v any) job.Args {
	switch t := v.(type) {
	case job.Args:
		return append(job.Args(nil), t...)
	case []any:
		return append(job.Args(nil), t...)
	default:
		return job.Args{v}
	}
}

// Passable returns a copy of the bound arguments.
func (b *Bound) Passable() job.Args {
	return append(job.Args(nil), b.passable...)
}

// DisplayName describes the chain by its job names.
func (b *Bound) DisplayName() string {
	return displayName(b.jobs)
}

// Timeout returns the advisory execution budget.
func (b *Bound) Timeout() time.Duration { return b.timeout }

// TaskOptions carries the queue, timeout and retry budget into the host
// queue record.
func (b *Bound) TaskOptions() []task.Option {
	return []task.Option{
		task.WithQueue(b.queue),
		task.WithTimeout(b.timeout),
		task.WithMaxRetries(b.maxRetries),
	}
}

var (
	_ task.Runnable   = (*Bound)(nil)
	_ task.Configurer = (*Bound)(nil)
)
