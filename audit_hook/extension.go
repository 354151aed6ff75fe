package audithook

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/report"
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

// Recorder persists audit events.
type Recorder interface {
	Record(ctx context.Context, event *AuditEvent) error
}

// AuditEvent is one audit trail entry.
type AuditEvent struct {
	Action   string `json:"action"`
	Resource string `json:"resource"`
	Category string `json:"category"`

	ResourceID string         `json:"resource_id,omitempty"`
	Metadata   map[string]any `json:"metadata,omitempty"`
	Outcome    string         `json:"outcome"`
	Severity   string         `json:"severity"`
	Reason     string         `json:"reason,omitempty"`
}

// RecorderFunc adapts a plain function to Recorder.
type RecorderFunc func(ctx context.Context, event *AuditEvent) error

// Record calls f.
func (f RecorderFunc) Record(ctx context.Context, event *AuditEvent) error {
	return f(ctx, event)
}

// LogRecorder writes each event as one structured log line.
func LogRecorder(logger *slog.Logger) Recorder {
	return RecorderFunc(func(ctx context.Context, evt *AuditEvent) error {
		level := slog.LevelInfo
		switch evt.Severity {
		case SeverityWarning:
			level = slog.LevelWarn
		case SeverityCritical:
			level = slog.LevelError
		}
		logger.LogAttrs(ctx, level, "audit",
			slog.String("action", evt.Action),
			slog.String("resource", evt.Resource),
			slog.String("resource_id", evt.ResourceID),
			slog.String("outcome", evt.Outcome),
			slog.Any("metadata", evt.Metadata),
		)
		return nil
	})
}

// Severity levels.
const (
	SeverityInfo     = "info"
	SeverityWarning  = "warning"
	SeverityCritical = "critical"
)

// Outcomes.
const (
	OutcomeSuccess = "success"
	OutcomeFailure = "failure"
)

// Extension records lifecycle events through a Recorder.
type Extension struct {
	recorder Recorder
	enabled  map[string]bool // nil = all enabled
	logger   *slog.Logger
}

// New returns an Extension that records through r.
func New(r Recorder, opts ...Option) *Extension {
	e := &Extension{recorder: r, logger: slog.Default()}
	for _, opt := range opts {
		opt(e)
	}
	return e
}

// Name implements ext.Extension.
func (e *Extension) Name() string { return "audit-hook" }

// OnTaskEnqueued implements ext.TaskEnqueued.
func (e *Extension) OnTaskEnqueued(ctx context.Context, t *task.Task) error {
	return e.task(ctx, ActionTaskEnqueued, SeverityInfo, OutcomeSuccess, t, nil,
		"priority", t.Priority,
		"timeout", t.Timeout.String(),
	)
}

// OnTaskStarted implements ext.TaskStarted.
func (e *Extension) OnTaskStarted(ctx context.Context, t *task.Task) error {
	return e.task(ctx, ActionTaskStarted, SeverityInfo, OutcomeSuccess, t, nil,
		"worker_id", t.WorkerID.String(),
	)
}

// OnTaskCompleted implements ext.TaskCompleted.
func (e *Extension) OnTaskCompleted(ctx context.Context, t *task.Task, elapsed time.Duration) error {
	return e.task(ctx, ActionTaskCompleted, SeverityInfo, OutcomeSuccess, t, nil,
		"elapsed_ms", elapsed.Milliseconds(),
	)
}

// OnTaskFailed implements ext.TaskFailed.
func (e *Extension) OnTaskFailed(ctx context.Context, t *task.Task, taskErr error) error {
	return e.task(ctx, ActionTaskFailed, SeverityCritical, OutcomeFailure, t, taskErr,
		"retry_count", t.RetryCount,
		"max_retries", t.MaxRetries,
	)
}

// OnTaskRetrying implements ext.TaskRetrying.
func (e *Extension) OnTaskRetrying(ctx context.Context, t *task.Task, attempt int, nextRunAt time.Time) error {
	return e.task(ctx, ActionTaskRetrying, SeverityWarning, OutcomeFailure, t, nil,
		"attempt", attempt,
		"next_run_at", nextRunAt.Format(time.RFC3339),
	)
}

// OnTaskDLQ implements ext.TaskDLQ.
func (e *Extension) OnTaskDLQ(ctx context.Context, t *task.Task, taskErr error) error {
	return e.task(ctx, ActionTaskDLQ, SeverityCritical, OutcomeFailure, t, taskErr,
		"retry_count", t.RetryCount,
	)
}

// Reporter returns a report.Reporter that records chain failures. A
// JobFailure becomes a chain.job_failed event, a SecondaryFailure a
// chain.failure_hook_failed event, anything else a chain.error event.
func (e *Extension) Reporter() report.Reporter {
	return report.Func(func(ctx context.Context, err error) {
		var secondary *chain.SecondaryFailure
		var failure *chain.JobFailure
		switch {
		case errors.As(err, &secondary):
			_ = e.record(ctx, ActionFailureHookFail, SeverityWarning, OutcomeFailure,
				ResourceJob, secondary.Job, CategoryChain, err,
				"cause", errString(secondary.Cause),
			)
		case errors.As(err, &failure):
			_ = e.record(ctx, ActionJobFailed, SeverityCritical, OutcomeFailure,
				ResourceJob, failure.Job, CategoryChain, err,
				"index", failure.Index,
			)
		default:
			_ = e.record(ctx, ActionChainError, SeverityCritical, OutcomeFailure,
				ResourceJob, "", CategoryChain, err)
		}
	})
}

func (e *Extension) task(ctx context.Context, action, severity, outcome string, t *task.Task, err error, kvPairs ...any) error {
	kvPairs = append(kvPairs, "chain", t.Name, "queue", t.Queue)
	return e.record(ctx, action, severity, outcome, ResourceTask, t.ID.String(), CategoryTask, err, kvPairs...)
}

// record builds and sends an audit event if the action is enabled. kvPairs
// are alternating keys and values added to Metadata. Recorder errors are
// logged and never fail the hook.
func (e *Extension) record(
	ctx context.Context,
	action, severity, outcome string,
	resource, resourceID, category string,
	err error,
	kvPairs ...any,
) error {
	if e.enabled != nil && !e.enabled[action] {
		return nil
	}

	meta := make(map[string]any, len(kvPairs)/2+1)
	for i := 0; i+1 < len(kvPairs); i += 2 {
		key, ok := kvPairs[i].(string)
		if !ok {
			key = fmt.Sprintf("%v", kvPairs[i])
		}
		meta[key] = kvPairs[i+1]
	}

	var reason string
	if err != nil {
		reason = err.Error()
		meta["error"] = reason
	}

	evt := &AuditEvent{
		Action:     action,
		Resource:   resource,
		Category:   category,
		ResourceID: resourceID,
		Metadata:   meta,
		Outcome:    outcome,
		Severity:   severity,
		Reason:     reason,
	}
	if recErr := e.recorder.Record(ctx, evt); recErr != nil {
		e.logger.Warn("audit_hook: failed to record audit event",
			slog.String("action", action),
			slog.String("resource_id", resourceID),
			slog.String("error", recErr.Error()),
		)
	}
	return nil
}

func errString(err error) string {
	if err == nil {
		return ""
	}
	return err.Error()
}
