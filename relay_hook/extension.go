package relayhook

import (
	"context"
	"time"

	"github.com/risetechapps/jobchain/event"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/task"
)

var (
	_ ext.Extension     = (*Extension)(nil)
	_ ext.TaskEnqueued  = (*Extension)(nil)
	_ ext.TaskStarted   = (*Extension)(nil)
	_ ext.TaskCompleted = (*Extension)(nil)
	_ ext.TaskFailed    = (*Extension)(nil)
	_ ext.TaskRetrying  = (*Extension)(nil)
	_ ext.TaskDLQ       = (*Extension)(nil)
)

// Publisher is the part of *event.Bus the extension needs.
type Publisher interface {
	Publish(ctx context.Context, name string, args ...any) (*event.Event, error)
}

// Extension publishes task lifecycle events.
type Extension struct {
	bus      Publisher
	enabled  map[string]bool        // nil = all enabled
	payloads map[string]PayloadFunc // custom payload builders
}

// New returns an Extension that publishes on bus.
func New(bus Publisher, opts ...Option) *Extension {
	h := &Extension{bus: bus}
	for _, opt := range opts {
		opt(h)
	}
	return h
}

// Name implements ext.Extension.
func (h *Extension) Name() string { return "relay-hook" }

// OnTaskEnqueued implements ext.TaskEnqueued.
func (h *Extension) OnTaskEnqueued(ctx context.Context, t *task.Task) error {
	return h.send(ctx, EventTaskEnqueued, newPayload(t))
}

// OnTaskStarted implements ext.TaskStarted.
func (h *Extension) OnTaskStarted(ctx context.Context, t *task.Task) error {
	return h.send(ctx, EventTaskStarted, newPayload(t))
}

// OnTaskCompleted implements ext.TaskCompleted.
func (h *Extension) OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error {
	p := newPayload(t)
	p.ElapsedMs = elapsed.Milliseconds()
	return h.send(ctx, EventTaskCompleted, p)
}

// OnTaskFailed implements ext.TaskFailed.
func (h *Extension) OnTaskFailed(ctx context.Context, t *task.Task, taskErr error) error {
	p := newPayload(t)
	p.Error = taskErr.Error()
	return h.send(ctx, EventTaskFailed, p)
}

// OnTaskRetrying implements ext.TaskRetrying.
func (h *Extension) OnTaskRetrying(ctx context.Context, t *task.Task, attempt int, nextRunAt time.Time) error {
	p := newPayload(t)
	p.Attempt = attempt
	p.NextRunAt = nextRunAt.Format(time.RFC3339)
	return h.send(ctx, EventTaskRetrying, p)
}

// OnTaskDLQ implements ext.TaskDLQ.
func (h *Extension) OnTaskDLQ(ctx context.Context, t *task.Task, taskErr error) error {
	p := newPayload(t)
	p.Error = taskErr.Error()
	return h.send(ctx, EventTaskDLQ, p)
}

// send publishes name if it is enabled. Listener errors are returned so the
// ext registry logs them.
func (h *Extension) send(ctx context.Context, name string, p *TaskPayload) error {
	if h.enabled != nil && !h.enabled[name] {
		return nil
	}
	var data any = p
	if fn, ok := h.payloads[name]; ok {
		custom, err := fn(p)
		if err != nil {
			return err
		}
		data = custom
	}
	_, err := h.bus.Publish(ctx, name, data)
	return err
}

func newPayload(t *task.Task) *TaskPayload {
	return &TaskPayload{
		TaskID:  t.ID.String(),
		Chain:   t.Name,
		Queue:   t.Queue,
		Attempt: t.RetryCount + 1,
	}
}
