// Package ext lets callers observe the task lifecycle of an engine.
//
// Each hook is its own interface, so an extension implements only the
// events it cares about:
//
//	type auditor struct{}
//
//	func (auditor) Name() string { return "auditor" }
//
//	func (auditor) OnTaskDLQ(ctx context.Context, t *task.Task, err error) error {
//	    slog.WarnContext(ctx, "chain dead-lettered", "task", t.Name, "error", err)
//	    return nil
//	}
//
// Hooks: [TaskEnqueued], [TaskStarted], [TaskCompleted], [TaskFailed],
// [TaskRetrying], [TaskDLQ] and [Shutdown]. The [Registry] fans each
// event out in registration order and swallows hook errors and panics.
package ext
