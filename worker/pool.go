package worker

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/queue"
	"github.com/risetechapps/jobchain/task"
)

// Pool polls the store from a fixed number of goroutines and hands every
// claimed task to the Executor.
type Pool struct {
	store        task.Store
	executor     *Executor
	extensions   *ext.Registry
	queues       *queue.Manager
	concurrency  int
	names        []string
	pollInterval time.Duration
	workerID     id.WorkerID
	logger       *slog.Logger

	heartbeatInterval time.Duration
	staleThreshold    time.Duration

	stopCh  chan struct{}
	wg      sync.WaitGroup
	mu      sync.Mutex
	running bool

	activeMu sync.Mutex
	active   map[id.TaskID]context.CancelFunc
}

// PoolOption configures a Pool.
type PoolOption func(*Pool)

// WithPoolConcurrency sets the number of worker goroutines.
func WithPoolConcurrency(n int) PoolOption {
	return func(p *Pool) {
		if n > 0 {
			p.concurrency = n
		}
	}
}

// WithPoolQueues sets the queues the pool polls.
func WithPoolQueues(names []string) PoolOption {
	return func(p *Pool) {
		if len(names) > 0 {
			p.names = names
		}
	}
}

// WithPollInterval sets how long an idle worker sleeps between polls.
func WithPollInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.pollInterval = d }
}

// WithHeartbeatInterval sets the heartbeat period for running tasks.
// Zero disables heartbeats.
func WithHeartbeatInterval(d time.Duration) PoolOption {
	return func(p *Pool) { p.heartbeatInterval = d }
}

// WithStaleThreshold sets how old a heartbeat may get before the task is
// handed back to pending. Zero disables reaping.
func WithStaleThreshold(d time.Duration) PoolOption {
	return func(p *Pool) { p.staleThreshold = d }
}

// WithQueueManager sets per-queue rate and concurrency limits.
func WithQueueManager(m *queue.Manager) PoolOption {
	return func(p *Pool) { p.queues = m }
}

// NewPool creates a worker pool.
func NewPool(store task.Store, executor *Executor, extensions *ext.Registry, logger *slog.Logger, opts ...PoolOption) *Pool {
	p := &Pool{
		store:        store,
		executor:     executor,
		extensions:   extensions,
		concurrency:  10,
		names:        []string{"default"},
		pollInterval: time.Second,
		workerID:     id.NewWorkerID(),
		logger:       logger,
		stopCh:       make(chan struct{}),
		active:       make(map[id.TaskID]context.CancelFunc),
	}
	for _, opt := range opts {
		opt(p)
	}
	if p.queues == nil {
		p.queues = queue.NewManager()
	}
	return p
}

// WorkerID returns the identifier this pool heartbeats with.
func (p *Pool) WorkerID() id.WorkerID { return p.workerID }

// Start launches the worker goroutines and returns. Starting a running
// pool is a no-op.
func (p *Pool) Start(_ context.Context) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	if p.running {
		return nil
	}
	p.running = true

	p.logger.Info("worker pool starting",
		slog.String("worker_id", p.workerID.String()),
		slog.Int("concurrency", p.concurrency),
		slog.Any("queues", p.names),
	)

	for range p.concurrency {
		p.wg.Add(1)
		go p.loop()
	}
	if p.heartbeatInterval > 0 {
		p.wg.Add(1)
		go p.every(p.heartbeatInterval, p.heartbeat)
	}
	if p.staleThreshold > 0 {
		p.wg.Add(1)
		go p.every(p.staleThreshold, p.reap)
	}
	return nil
}

// Stop signals the workers and waits for running tasks. When ctx ends
// first, running tasks are cancelled and Stop waits for them to return.
func (p *Pool) Stop(ctx context.Context) error {
	p.mu.Lock()
	if !p.running {
		p.mu.Unlock()
		return nil
	}
	p.running = false
	p.mu.Unlock()

	p.logger.Info("worker pool stopping", slog.String("worker_id", p.workerID.String()))
	close(p.stopCh)

	done := make(chan struct{})
	go func() {
		p.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-ctx.Done():
		p.logger.Warn("worker pool shutdown timed out, cancelling running chains")
		p.cancelAll()
		<-done
	}
	return nil
}

func (p *Pool) loop() {
	defer p.wg.Done()
	for {
		select {
		case <-p.stopCh:
			return
		default:
		}
		if !p.poll() {
			p.sleep()
		}
	}
}

// poll claims and runs at most one task. It reports whether it found one.
func (p *Pool) poll() bool {
	names := p.queues.Admit(p.names)
	if len(names) == 0 {
		return false
	}

	claimed, err := p.store.DequeueTasks(context.Background(), names, 1)
	if err != nil {
		p.logger.Error("dequeue error", slog.String("error", err.Error()))
		return false
	}
	if len(claimed) == 0 {
		return false
	}
	t := claimed[0]

	if !p.queues.Acquire(t.Queue) {
		// Lost the slot between Admit and Acquire.
		p.requeue(t)
		return false
	}
	defer p.queues.Release(t.Queue)

	t.WorkerID = p.workerID
	p.extensions.EmitTaskStarted(context.Background(), t)

	ctx, cancel := context.WithCancel(context.Background())
	p.track(t.ID, cancel)
	defer func() {
		p.untrack(t.ID)
		cancel()
	}()

	if err := p.executor.Execute(ctx, t); err != nil {
		p.logger.Debug("chain attempt failed",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}
	return true
}

func (p *Pool) requeue(t *task.Task) {
	t.State = task.StatePending
	t.RunAt = time.Now().UTC().Add(p.pollInterval)
	t.StartedAt = nil
	t.HeartbeatAt = nil
	if err := p.store.UpdateTask(context.Background(), t); err != nil {
		p.logger.Error("failed to requeue rate-limited task",
			slog.String("task_id", t.ID.String()),
			slog.String("error", err.Error()),
		)
	}
}

func (p *Pool) every(d time.Duration, fn func()) {
	defer p.wg.Done()
	ticker := time.NewTicker(d)
	defer ticker.Stop()
	for {
		select {
		case <-p.stopCh:
			return
		case <-ticker.C:
			fn()
		}
	}
}

func (p *Pool) heartbeat() {
	p.activeMu.Lock()
	ids := make([]id.TaskID, 0, len(p.active))
	for taskID := range p.active {
		ids = append(ids, taskID)
	}
	p.activeMu.Unlock()

	for _, taskID := range ids {
		if err := p.store.HeartbeatTask(context.Background(), taskID, p.workerID); err != nil {
			p.logger.Warn("heartbeat failed",
				slog.String("task_id", taskID.String()),
				slog.String("error", err.Error()),
			)
		}
	}
}

// reap hands tasks whose worker went silent back to pending.
func (p *Pool) reap() {
	stale, err := p.store.ReapStaleTasks(context.Background(), p.staleThreshold)
	if err != nil {
		p.logger.Error("reap stale tasks error", slog.String("error", err.Error()))
		return
	}
	for _, t := range stale {
		t.State = task.StatePending
		t.RunAt = time.Now().UTC()
		t.WorkerID = id.Nil
		t.StartedAt = nil
		t.HeartbeatAt = nil
		if err := p.store.UpdateTask(context.Background(), t); err != nil {
			p.logger.Error("failed to reset stale task",
				slog.String("task_id", t.ID.String()),
				slog.String("error", err.Error()),
			)
			continue
		}
		p.logger.Info("reaped stale task", slog.String("task_id", t.ID.String()))
	}
}

func (p *Pool) sleep() {
	select {
	case <-time.After(p.pollInterval):
	case <-p.stopCh:
	}
}

// Active returns the number of chains this pool is executing, including
// their lifecycle hooks.
func (p *Pool) Active() int {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	return len(p.active)
}

func (p *Pool) track(taskID id.TaskID, cancel context.CancelFunc) {
	p.activeMu.Lock()
	p.active[taskID] = cancel
	p.activeMu.Unlock()
}

func (p *Pool) untrack(taskID id.TaskID) {
	p.activeMu.Lock()
	delete(p.active, taskID)
	p.activeMu.Unlock()
}

func (p *Pool) cancelAll() {
	p.activeMu.Lock()
	defer p.activeMu.Unlock()
	for taskID, cancel := range p.active {
		p.logger.Warn("cancelling running chain", slog.String("task_id", taskID.String()))
		cancel()
	}
}
