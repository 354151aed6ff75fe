package worker_test

import (
	"context"
	"errors"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/backoff"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/middleware"
	"github.com/risetechapps/jobchain/queue"
	"github.com/risetechapps/jobchain/store/memory"
	"github.com/risetechapps/jobchain/task"
	"github.com/risetechapps/jobchain/worker"
)

type harness struct {
	pool      *worker.Pool
	store     *memory.Store
	runnables *task.Runnables
}

func setup(t *testing.T, opts ...worker.PoolOption) *harness {
	t.Helper()
	logger := slog.Default()
	s := memory.New()
	runnables := task.NewRunnables()
	extensions := ext.NewRegistry(logger)

	executor := worker.NewExecutor(
		runnables, extensions, s,
		dlq.NewService(s, s, runnables),
		backoff.None(), logger,
		middleware.Recover(logger), middleware.Timeout(),
	)
	opts = append([]worker.PoolOption{
		worker.WithPoolConcurrency(1),
		worker.WithPollInterval(5 * time.Millisecond),
	}, opts...)

	pool := worker.NewPool(s, executor, extensions, logger, opts...)
	t.Cleanup(func() {
		ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
		defer cancel()
		_ = pool.Stop(ctx)
	})
	return &harness{pool: pool, store: s, runnables: runnables}
}

func (h *harness) submit(t *testing.T, r task.Runnable, maxRetries int) *task.Task {
	t.Helper()
	now := time.Now().UTC()
	tk := &task.Task{
		ID:         id.NewTaskID(),
		Name:       r.DisplayName(),
		Queue:      "default",
		State:      task.StatePending,
		MaxRetries: maxRetries,
		Timeout:    r.Timeout(),
		RunAt:      now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	h.runnables.Put(tk.ID, r)
	if err := h.store.EnqueueTask(context.Background(), tk); err != nil {
		t.Fatalf("enqueue: %v", err)
	}
	return tk
}

func (h *harness) waitState(t *testing.T, taskID id.TaskID, want task.State) *task.Task {
	t.Helper()
	deadline := time.Now().Add(3 * time.Second)
	for time.Now().Before(deadline) {
		got, err := h.store.GetTask(context.Background(), taskID)
		if err == nil && got.State == want {
			return got
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatalf("task %s never reached %s", taskID, want)
	return nil
}

func stop(t *testing.T, p *worker.Pool) {
	t.Helper()
	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := p.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPool_StartStopIdempotent(t *testing.T) {
	h := setup(t)
	ctx := context.Background()
	if err := h.pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.pool.Start(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
	if err := h.pool.Stop(ctx); err != nil {
		t.Fatal(err)
	}
}

func TestPool_RunsChainToCompletion(t *testing.T) {
	h := setup(t)

	var total atomic.Int64
	add := func(n int) job.Spec {
		return job.Action("add", func(context.Context) error {
			total.Add(int64(n))
			return nil
		})
	}
	c := chain.New([]job.Spec{add(1), add(2), add(3)})
	tk := h.submit(t, c.Executable(), 0)

	_ = h.pool.Start(context.Background())
	got := h.waitState(t, tk.ID, task.StateCompleted)
	stop(t, h.pool)

	if total.Load() != 6 {
		t.Errorf("total = %d, want 6", total.Load())
	}
	if got.CompletedAt == nil {
		t.Error("CompletedAt not set")
	}
	if h.runnables.Len() != 0 {
		t.Errorf("runnable not released, %d left", h.runnables.Len())
	}
}

func TestPool_RetriesThenDeadLetters(t *testing.T) {
	h := setup(t)

	var attempts atomic.Int32
	r := task.RunnableFunc{Name: "Atomic Chain: flaky", Fn: func(context.Context) error {
		attempts.Add(1)
		return &chain.JobFailure{Job: "flaky", Index: 0, Err: errors.New("down")}
	}}
	tk := h.submit(t, r, 2)

	_ = h.pool.Start(context.Background())
	got := h.waitState(t, tk.ID, task.StateFailed)

	if attempts.Load() != 3 {
		t.Errorf("attempts = %d, want 3", attempts.Load())
	}
	if got.RetryCount != 3 {
		t.Errorf("RetryCount = %d, want 3", got.RetryCount)
	}

	entries, err := h.store.ListDLQ(context.Background(), dlq.ListOpts{})
	if err != nil || len(entries) != 1 {
		t.Fatalf("dlq = %v, %v", entries, err)
	}
	if entries[0].FailedJob != "flaky" || entries[0].TaskID != tk.ID {
		t.Errorf("entry = %+v", entries[0])
	}
	if _, ok := h.runnables.Get(tk.ID); !ok {
		t.Error("runnable dropped before replay")
	}
}

func TestPool_MissingRunnableFails(t *testing.T) {
	h := setup(t)
	tk := h.submit(t, task.RunnableFunc{Name: "gone", Fn: func(context.Context) error { return nil }}, 3)
	h.runnables.Delete(tk.ID)

	_ = h.pool.Start(context.Background())
	got := h.waitState(t, tk.ID, task.StateFailed)
	if got.RetryCount != 0 {
		t.Errorf("RetryCount = %d, want 0", got.RetryCount)
	}
	if got.LastError == "" {
		t.Errorf("LastError = %q", got.LastError)
	}
}

func TestExecutor_MissingRunnableError(t *testing.T) {
	s := memory.New()
	runnables := task.NewRunnables()
	e := worker.NewExecutor(runnables, ext.NewRegistry(nil), s, nil, nil, slog.Default())

	tk := &task.Task{ID: id.NewTaskID(), Name: "x", Queue: "default", State: task.StateRunning}
	_ = s.EnqueueTask(context.Background(), tk)

	err := e.Execute(context.Background(), tk)
	if !errors.Is(err, jobchain.ErrRunnableNotFound) {
		t.Errorf("err = %v", err)
	}
}

func TestExecutor_ReleasesRunnableWithoutDLQ(t *testing.T) {
	s := memory.New()
	runnables := task.NewRunnables()
	e := worker.NewExecutor(runnables, ext.NewRegistry(nil), s, nil, nil, slog.Default())

	tk := &task.Task{ID: id.NewTaskID(), Name: "x", Queue: "default", State: task.StateRunning}
	_ = s.EnqueueTask(context.Background(), tk)
	runnables.Put(tk.ID, task.RunnableFunc{Name: "x", Fn: func(context.Context) error { return errors.New("down") }})

	if err := e.Execute(context.Background(), tk); err == nil {
		t.Fatal("expected the run error")
	}
	if tk.State != task.StateFailed {
		t.Errorf("state = %s", tk.State)
	}
	if runnables.Len() != 0 {
		t.Errorf("runnable kept with no entry to replay it, %d left", runnables.Len())
	}
}

func TestPool_QueueConcurrencyLimit(t *testing.T) {
	qm := queue.NewManager(queue.Config{Name: "default", MaxConcurrency: 1})
	h := setup(t, worker.WithPoolConcurrency(4), worker.WithQueueManager(qm))

	var running, peak atomic.Int32
	r := task.RunnableFunc{Name: "slow", Fn: func(context.Context) error {
		n := running.Add(1)
		for {
			p := peak.Load()
			if n <= p || peak.CompareAndSwap(p, n) {
				break
			}
		}
		time.Sleep(20 * time.Millisecond)
		running.Add(-1)
		return nil
	}}
	var tasks []*task.Task
	for range 4 {
		tasks = append(tasks, h.submit(t, r, 0))
	}

	_ = h.pool.Start(context.Background())
	for _, tk := range tasks {
		h.waitState(t, tk.ID, task.StateCompleted)
	}
	if peak.Load() != 1 {
		t.Errorf("peak concurrency = %d, want 1", peak.Load())
	}
}

func TestPool_StopCancelsRunningChain(t *testing.T) {
	h := setup(t)
	started := make(chan struct{})
	r := task.RunnableFunc{Name: "blocker", Fn: func(ctx context.Context) error {
		close(started)
		<-ctx.Done()
		return ctx.Err()
	}}
	h.submit(t, r, 0)

	_ = h.pool.Start(context.Background())
	<-started

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	done := make(chan struct{})
	go func() {
		_ = h.pool.Stop(ctx)
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("Stop did not cancel the running chain")
	}
}

func TestPool_ReapsStaleTasks(t *testing.T) {
	h := setup(t, worker.WithStaleThreshold(20*time.Millisecond), worker.WithQueueManager(
		queue.NewManager(queue.Config{Name: "default", MaxConcurrency: 1}),
	))

	var ran atomic.Bool
	tk := h.submit(t, task.RunnableFunc{Name: "orphan", Fn: func(context.Context) error {
		ran.Store(true)
		return nil
	}}, 0)

	// Simulate a worker that claimed the task and died.
	tk.State = task.StateRunning
	old := time.Now().UTC().Add(-time.Minute)
	tk.HeartbeatAt = &old
	if err := h.store.UpdateTask(context.Background(), tk); err != nil {
		t.Fatal(err)
	}

	_ = h.pool.Start(context.Background())
	h.waitState(t, tk.ID, task.StateCompleted)
	if !ran.Load() {
		t.Error("reaped task never ran")
	}
}
