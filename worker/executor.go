// Package worker runs claimed chain tasks. The Executor drives a single
// attempt through middleware and settles the task record; the Pool polls
// the store and feeds the Executor from a fixed set of goroutines.
package worker

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/backoff"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/middleware"
	"github.com/risetechapps/jobchain/task"
)

// Executor runs one attempt of a task and records what happened.
type Executor struct {
	runnables  *task.Runnables
	extensions *ext.Registry
	store      task.Store
	dlq        *dlq.Service
	backoff    backoff.Strategy
	mw         middleware.Middleware
	logger     *slog.Logger
}

// NewExecutor creates an Executor. dlqService may be nil, in which case
// exhausted tasks are only marked failed.
func NewExecutor(
	runnables *task.Runnables,
	extensions *ext.Registry,
	store task.Store,
	dlqService *dlq.Service,
	bo backoff.Strategy,
	logger *slog.Logger,
	mws ...middleware.Middleware,
) *Executor {
	if bo == nil {
		bo = backoff.Default()
	}
	return &Executor{
		runnables:  runnables,
		extensions: extensions,
		store:      store,
		dlq:        dlqService,
		backoff:    bo,
		mw:         middleware.Chain(mws...),
		logger:     logger,
	}
}

// Execute runs t's runnable once. On success the task completes and its
// runnable is released. On failure it is rescheduled while retries remain,
// otherwise it fails and is pushed to the dead letter queue.
func (e *Executor) Execute(ctx context.Context, t *task.Task) error {
	r, ok := e.runnables.Get(t.ID)
	if !ok {
		// Records can survive a restart while runnables do not.
		return e.fail(ctx, t, fmt.Errorf("%w: %s", jobchain.ErrRunnableNotFound, t.ID))
	}

	start := time.Now()
	err := e.mw(ctx, t, r.Run)
	elapsed := time.Since(start)

	if err != nil {
		t.RetryCount++
		t.LastError = err.Error()
		if t.RetryCount <= t.MaxRetries {
			return e.retry(ctx, t, err)
		}
		return e.fail(ctx, t, err)
	}
	return e.complete(ctx, t, elapsed)
}

func (e *Executor) complete(ctx context.Context, t *task.Task, elapsed time.Duration) error {
	now := time.Now().UTC()
	t.State = task.StateCompleted
	t.CompletedAt = &now
	t.UpdatedAt = now

	if err := e.store.UpdateTask(ctx, t); err != nil {
		e.logger.Error("failed to record completed task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.runnables.Delete(t.ID)
	e.extensions.EmitTaskCompleted(ctx, t, elapsed)
	return nil
}

func (e *Executor) retry(ctx context.Context, t *task.Task, runErr error) error {
	now := time.Now().UTC()
	delay := e.backoff.Delay(t.RetryCount)
	t.State = task.StateRetrying
	t.RunAt = now.Add(delay)
	t.UpdatedAt = now
	t.StartedAt = nil
	t.HeartbeatAt = nil

	if err := e.store.UpdateTask(ctx, t); err != nil {
		e.logger.Error("failed to reschedule task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}

	e.extensions.EmitTaskRetrying(ctx, t, t.RetryCount, t.RunAt)
	e.logger.Info("chain scheduled for retry",
		slog.String("task_id", t.ID.String()),
		slog.String("chain", t.Name),
		slog.Int("attempt", t.RetryCount),
		slog.Int("max_retries", t.MaxRetries),
		slog.Duration("delay", delay),
	)
	return fmt.Errorf("retry %d/%d: %w", t.RetryCount, t.MaxRetries, runErr)
}

// fail dead-letters t and marks it failed. The entry is written first so
// that a failed record always has its entry. The runnable stays in the
// table only when an entry exists to replay it; purging the entry
// releases it.
func (e *Executor) fail(ctx context.Context, t *task.Task, runErr error) error {
	now := time.Now().UTC()
	t.State = task.StateFailed
	t.LastError = runErr.Error()
	t.CompletedAt = &now
	t.UpdatedAt = now

	dead := false
	if e.dlq != nil {
		if err := e.dlq.Push(ctx, t, runErr); err != nil {
			e.logger.Error("failed to push task to DLQ",
				slog.String("task_id", t.ID.String()),
				slog.String("error", err.Error()),
			)
		} else {
			dead = true
		}
	}
	if !dead {
		e.runnables.Delete(t.ID)
	}

	if err := e.store.UpdateTask(ctx, t); err != nil {
		e.logger.Error("failed to record failed task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
		return err
	}
	e.extensions.EmitTaskFailed(ctx, t, runErr)
	if dead {
		e.extensions.EmitTaskDLQ(ctx, t, runErr)
	}

	e.logger.Warn("chain failed permanently",
		slog.String("task_id", t.ID.String()),
		slog.String("chain", t.Name),
		slog.Int("retry_count", t.RetryCount),
		slog.String("error", runErr.Error()),
	)
	return runErr
}
