package audithook_test

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	ah "github.com/risetechapps/jobchain/audit_hook"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/task"
)

type mockRecorder struct {
	mu     sync.Mutex
	events []*ah.AuditEvent
	err    error
}

func (m *mockRecorder) Record(_ context.Context, evt *ah.AuditEvent) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.events = append(m.events, evt)
	return m.err
}

func (m *mockRecorder) find(action string) *ah.AuditEvent {
	m.mu.Lock()
	defer m.mu.Unlock()
	for _, evt := range m.events {
		if evt.Action == action {
			return evt
		}
	}
	return nil
}

func (m *mockRecorder) count() int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return len(m.events)
}

func newTask() *task.Task {
	return &task.Task{
		ID:         id.NewTaskID(),
		Name:       "Atomic Chain: Reserve, Charge",
		Queue:      "billing",
		RetryCount: 3,
		MaxRetries: 3,
		WorkerID:   id.NewWorkerID(),
	}
}

func TestExtension_TaskHooks(t *testing.T) {
	rec := &mockRecorder{}
	x := ah.New(rec)
	ctx := context.Background()
	tk := newTask()
	boom := errors.New("boom")

	_ = x.OnTaskEnqueued(ctx, tk)
	_ = x.OnTaskStarted(ctx, tk)
	_ = x.OnTaskCompleted(ctx, tk, 1500*time.Millisecond)
	_ = x.OnTaskRetrying(ctx, tk, 2, time.Now())
	_ = x.OnTaskFailed(ctx, tk, boom)
	_ = x.OnTaskDLQ(ctx, tk, boom)

	if rec.count() != 6 {
		t.Fatalf("events = %d, want 6", rec.count())
	}

	done := rec.find(ah.ActionTaskCompleted)
	if done.ResourceID != tk.ID.String() || done.Metadata["elapsed_ms"] != int64(1500) {
		t.Errorf("completed = %+v", done)
	}
	if done.Metadata["chain"] != tk.Name || done.Metadata["queue"] != "billing" {
		t.Errorf("metadata = %v", done.Metadata)
	}

	dead := rec.find(ah.ActionTaskDLQ)
	if dead.Severity != ah.SeverityCritical || dead.Outcome != ah.OutcomeFailure || dead.Reason != "boom" {
		t.Errorf("dlq = %+v", dead)
	}
	if retry := rec.find(ah.ActionTaskRetrying); retry.Severity != ah.SeverityWarning || retry.Metadata["attempt"] != 2 {
		t.Errorf("retrying = %+v", retry)
	}
}

func TestExtension_WithActionsFilters(t *testing.T) {
	rec := &mockRecorder{}
	x := ah.New(rec, ah.WithActions(ah.ActionTaskDLQ))
	tk := newTask()

	_ = x.OnTaskEnqueued(context.Background(), tk)
	_ = x.OnTaskDLQ(context.Background(), tk, errors.New("x"))

	if rec.count() != 1 || rec.find(ah.ActionTaskDLQ) == nil {
		t.Errorf("events = %d", rec.count())
	}
}

func TestExtension_RecorderErrorDoesNotFailHook(t *testing.T) {
	x := ah.New(&mockRecorder{err: errors.New("backend down")})
	if err := x.OnTaskStarted(context.Background(), newTask()); err != nil {
		t.Errorf("hook err = %v", err)
	}
}

type compensating struct{}

func (compensating) Handle(context.Context, job.Args) (any, error) {
	return nil, errors.New("declined")
}

func (compensating) Failed(context.Context, error) error {
	return errors.New("refund failed")
}

func TestReporter_RecordsChainFailures(t *testing.T) {
	rec := &mockRecorder{}
	x := ah.New(rec)

	reg := job.NewRegistry()
	reg.MustRegister("billing.Charge", func() job.Unit { return compensating{} })
	c := chain.New([]job.Spec{job.Named("billing.Charge")},
		chain.WithRegistry(reg), chain.WithReporter(x.Reporter()))

	if _, err := c.Run(context.Background()); err == nil {
		t.Fatal("expected failure")
	}

	failed := rec.find(ah.ActionJobFailed)
	if failed == nil || failed.ResourceID != "billing.Charge" || failed.Metadata["index"] != 0 {
		t.Fatalf("job_failed = %+v", failed)
	}
	hook := rec.find(ah.ActionFailureHookFail)
	if hook == nil || hook.Reason == "" || hook.Metadata["cause"] == "" {
		t.Fatalf("failure_hook_failed = %+v", hook)
	}
}

func TestReporter_OtherErrors(t *testing.T) {
	rec := &mockRecorder{}
	ah.New(rec).Reporter().Report(context.Background(), errors.New("submit failed"))
	if evt := rec.find(ah.ActionChainError); evt == nil || evt.Reason != "submit failed" {
		t.Errorf("chain.error = %+v", evt)
	}
}
