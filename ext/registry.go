package ext

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/risetechapps/jobchain/task"
)

// entry pairs a hook with the extension name captured at registration.
type entry[H any] struct {
	name string
	hook H
}

// Registry holds registered extensions and fans lifecycle events out to
// the ones that implement each hook. Hooks are type-cached on Register.
type Registry struct {
	extensions []Extension
	logger     *slog.Logger

	enqueued  []entry[TaskEnqueued]
	started   []entry[TaskStarted]
	completed []entry[TaskCompleted]
	failed    []entry[TaskFailed]
	retrying  []entry[TaskRetrying]
	dlq       []entry[TaskDLQ]
	shutdown  []entry[Shutdown]
}

// NewRegistry creates an extension registry. A nil logger discards hook errors.
func NewRegistry(logger *slog.Logger) *Registry {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &Registry{logger: logger}
}

func cache[H any](dst []entry[H], name string, e Extension) []entry[H] {
	if h, ok := e.(H); ok {
		return append(dst, entry[H]{name, h})
	}
	return dst
}

// Register adds an extension. Extensions are notified in registration order.
func (r *Registry) Register(e Extension) {
	r.extensions = append(r.extensions, e)
	name := e.Name()

	r.enqueued = cache(r.enqueued, name, e)
	r.started = cache(r.started, name, e)
	r.completed = cache(r.completed, name, e)
	r.failed = cache(r.failed, name, e)
	r.retrying = cache(r.retrying, name, e)
	r.dlq = cache(r.dlq, name, e)
	r.shutdown = cache(r.shutdown, name, e)
}

// Extensions returns all registered extensions.
func (r *Registry) Extensions() []Extension { return r.extensions }

// emit calls fn for every entry. Errors and panics are logged, never
// propagated, so a broken extension cannot stall the worker.
func emit[H any](r *Registry, hookName string, entries []entry[H], fn func(H) error) {
	for _, e := range entries {
		func() {
			defer func() {
				if p := recover(); p != nil {
					r.logHookError(hookName, e.name, fmt.Errorf("panic: %v", p))
				}
			}()
			if err := fn(e.hook); err != nil {
				r.logHookError(hookName, e.name, err)
			}
		}()
	}
}

// EmitTaskEnqueued notifies TaskEnqueued extensions.
func (r *Registry) EmitTaskEnqueued(ctx context.Context, t *task.Task) {
	emit(r, "OnTaskEnqueued", r.enqueued, func(h TaskEnqueued) error {
		return h.OnTaskEnqueued(ctx, t)
	})
}

// EmitTaskStarted notifies TaskStarted extensions.
func (r *Registry) EmitTaskStarted(ctx context.Context, t *task.Task) {
	emit(r, "OnTaskStarted", r.started, func(h TaskStarted) error {
		return h.OnTaskStarted(ctx, t)
	})
}

// EmitTaskCompleted notifies TaskCompleted extensions.
func (r *Registry) EmitTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) {
	emit(r, "OnTaskCompleted", r.completed, func(h TaskCompleted) error {
		return h.OnTaskCompleted(ctx, t, elapsed)
	})
}

// EmitTaskFailed notifies TaskFailed extensions.
func (r *Registry) EmitTaskFailed(ctx context.Context, t *task.Task, taskErr error) {
	emit(r, "OnTaskFailed", r.failed, func(h TaskFailed) error {
		return h.OnTaskFailed(ctx, t, taskErr)
	})
}

// EmitTaskRetrying notifies TaskRetrying extensions.
func (r *Registry) EmitTaskRetrying(ctx context.Context, t *task.Task, attempt int, nextRunAt time.Time) {
	emit(r, "OnTaskRetrying", r.retrying, func(h TaskRetrying) error {
		return h.OnTaskRetrying(ctx, t, attempt, nextRunAt)
	})
}

// EmitTaskDLQ notifies TaskDLQ extensions.
func (r *Registry) EmitTaskDLQ(ctx context.Context, t *task.Task, taskErr error) {
	emit(r, "OnTaskDLQ", r.dlq, func(h TaskDLQ) error {
		return h.OnTaskDLQ(ctx, t, taskErr)
	})
}

// EmitShutdown notifies Shutdown extensions.
func (r *Registry) EmitShutdown(ctx context.Context) {
	emit(r, "OnShutdown", r.shutdown, func(h Shutdown) error {
		return h.OnShutdown(ctx)
	})
}

func (r *Registry) logHookError(hook, extName string, err error) {
	r.logger.Warn("extension hook error",
		slog.String("hook", hook),
		slog.String("extension", extName),
		slog.String("error", err.Error()),
	)
}
