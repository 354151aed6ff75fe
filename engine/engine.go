// Package engine is the host queue chains are submitted to. It wires the
// store, the in-process runnable table, the worker pool, middleware and
// lifecycle extensions, and implements chain.Dispatcher.
package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"go.opentelemetry.io/otel/metric"
	"go.opentelemetry.io/otel/trace"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/backoff"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/ext"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/job"
	mw "github.com/risetechapps/jobchain/middleware"
	"github.com/risetechapps/jobchain/observability"
	"github.com/risetechapps/jobchain/queue"
	"github.com/risetechapps/jobchain/store"
	"github.com/risetechapps/jobchain/task"
	"github.com/risetechapps/jobchain/txn"
	"github.com/risetechapps/jobchain/worker"
)

const instrumentationName = "github.com/risetechapps/jobchain"

// waitInterval is how often Wait re-counts unfinished tasks.
const waitInterval = 10 * time.Millisecond

var _ chain.Dispatcher = (*Engine)(nil)

// Engine persists submitted chains and runs them on a worker pool.
type Engine struct {
	store      store.Store
	config     jobchain.Config
	logger     *slog.Logger
	runnables  *task.Runnables
	extensions *ext.Registry
	dlq        *dlq.Service
	pool       *worker.Pool
	queues     *queue.Manager
	registry   *job.Registry
	tracker    txn.Tracker

	bo             backoff.Strategy
	mws            []mw.Middleware
	queueConfigs   []queue.Config
	pendingExts    []ext.Extension
	tracerProvider trace.TracerProvider
	meterProvider  metric.MeterProvider

	mu      sync.Mutex
	running bool
}

// Option configures an Engine.
type Option func(*Engine)

// WithStore sets the backing store. Required.
func WithStore(s store.Store) Option {
	return func(e *Engine) { e.store = s }
}

// WithLogger sets the engine logger. Defaults to slog.Default().
func WithLogger(l *slog.Logger) Option {
	return func(e *Engine) { e.logger = l }
}

// WithConfig replaces the default configuration.
func WithConfig(cfg jobchain.Config) Option {
	return func(e *Engine) { e.config = cfg }
}

// WithExtension registers a lifecycle extension.
func WithExtension(x ext.Extension) Option {
	return func(e *Engine) { e.pendingExts = append(e.pendingExts, x) }
}

// WithMiddleware appends middleware inside the default stack.
func WithMiddleware(m mw.Middleware) Option {
	return func(e *Engine) { e.mws = append(e.mws, m) }
}

// WithBackoff sets the retry delay strategy. Defaults to backoff.Default().
func WithBackoff(b backoff.Strategy) Option {
	return func(e *Engine) { e.bo = b }
}

// WithQueueConfig adds per-queue rate limits and concurrency caps.
func WithQueueConfig(configs ...queue.Config) Option {
	return func(e *Engine) { e.queueConfigs = append(e.queueConfigs, configs...) }
}

// WithRegistry sets the unit registry handed to chains built by Chain.
func WithRegistry(r *job.Registry) Option {
	return func(e *Engine) { e.registry = r }
}

// WithTracker sets the transaction tracker handed to chains built by Chain.
func WithTracker(t txn.Tracker) Option {
	return func(e *Engine) { e.tracker = t }
}

// WithTracerProvider sets the provider for task and job spans. Defaults
// to the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(e *Engine) { e.tracerProvider = tp }
}

// WithMeterProvider sets the provider for task metrics. Defaults to the
// global provider.
func WithMeterProvider(mp metric.MeterProvider) Option {
	return func(e *Engine) { e.meterProvider = mp }
}

// New builds an engine. It fails with jobchain.ErrNoStore when no store
// was given.
func New(opts ...Option) (*Engine, error) {
	e := &Engine{
		config:    jobchain.DefaultConfig(),
		logger:    slog.Default(),
		runnables: task.NewRunnables(),
		registry:  job.NewRegistry(),
		tracker:   txn.None,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.store == nil {
		return nil, jobchain.ErrNoStore
	}
	if e.bo == nil {
		e.bo = backoff.Default()
	}

	e.extensions = ext.NewRegistry(e.logger)
	if e.meterProvider != nil {
		e.extensions.Register(observability.NewMetricsExtensionWithMeter(
			e.meterProvider.Meter(instrumentationName + "/observability")))
	} else {
		e.extensions.Register(observability.NewMetricsExtension())
	}
	for _, x := range e.pendingExts {
		e.extensions.Register(x)
	}

	e.dlq = dlq.NewService(e.store, e.store, e.runnables)
	e.queues = queue.NewManager(e.queueConfigs...)

	executor := worker.NewExecutor(e.runnables, e.extensions, e.store, e.dlq, e.bo, e.logger, e.middleware()...)
	e.pool = worker.NewPool(e.store, executor, e.extensions, e.logger,
		worker.WithPoolConcurrency(e.config.Concurrency),
		worker.WithPoolQueues(e.config.Queues),
		worker.WithPollInterval(e.config.PollInterval),
		worker.WithHeartbeatInterval(e.config.HeartbeatInterval),
		worker.WithStaleThreshold(e.config.StaleThreshold),
		worker.WithQueueManager(e.queues),
	)
	return e, nil
}

// middleware returns recover → tracing → metrics → logging → custom → timeout.
func (e *Engine) middleware() []mw.Middleware {
	tracing := mw.Tracing()
	if e.tracerProvider != nil {
		tracing = mw.TracingWithTracer(e.tracerProvider.Tracer(instrumentationName))
	}
	metrics := mw.Metrics()
	if e.meterProvider != nil {
		metrics = mw.MetricsWithMeter(e.meterProvider.Meter(instrumentationName))
	}

	out := []mw.Middleware{mw.Recover(e.logger), tracing, metrics, mw.Logging(e.logger)}
	out = append(out, e.mws...)
	return append(out, mw.Timeout())
}

// Chain declares a chain bound to this engine: listeners submit here and
// the engine's registry, tracker, tracer provider and config apply.
// opts are applied last.
func (e *Engine) Chain(jobs []job.Spec, opts ...chain.Option) *chain.Chain {
	base := []chain.Option{
		chain.WithDispatcher(e),
		chain.WithRegistry(e.registry),
		chain.WithTracker(e.tracker),
		chain.WithConfig(e.config),
	}
	if e.tracerProvider != nil {
		base = append(base, chain.WithTracerProvider(e.tracerProvider))
	}
	return chain.New(jobs, append(base, opts...)...)
}

// Submit implements chain.Dispatcher.
func (e *Engine) Submit(ctx context.Context, r task.Runnable) error {
	_, err := e.Enqueue(ctx, r)
	return err
}

// Enqueue persists a task for r and keeps r for the workers. Options are
// applied over the engine defaults in this order: r's own TaskOptions,
// then opts. r.Timeout() seeds the timeout.
func (e *Engine) Enqueue(ctx context.Context, r task.Runnable, opts ...task.Option) (*task.Task, error) {
	o := task.DefaultOptions()
	o.MaxRetries = e.config.MaxRetries
	o.Timeout = r.Timeout()
	if c, ok := r.(task.Configurer); ok {
		for _, opt := range c.TaskOptions() {
			opt(&o)
		}
	}
	for _, opt := range opts {
		opt(&o)
	}

	now := time.Now().UTC()
	t := &task.Task{
		ID:         id.NewTaskID(),
		Name:       r.DisplayName(),
		Queue:      o.Queue,
		State:      task.StatePending,
		Priority:   o.Priority,
		MaxRetries: o.MaxRetries,
		Timeout:    o.Timeout,
		RunAt:      now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	if !o.RunAt.IsZero() {
		t.RunAt = o.RunAt.UTC()
	}

	// The runnable must be visible before a worker can claim the record.
	e.runnables.Put(t.ID, r)
	if err := e.store.EnqueueTask(ctx, t); err != nil {
		e.runnables.Delete(t.ID)
		return nil, fmt.Errorf("enqueue %q: %w", t.Name, err)
	}

	e.logger.DebugContext(ctx, "chain enqueued",
		slog.String("task_id", t.ID.String()),
		slog.String("chain", t.Name),
		slog.String("queue", t.Queue),
	)
	e.extensions.EmitTaskEnqueued(ctx, t)
	return t, nil
}

// Start starts the worker pool.
func (e *Engine) Start(ctx context.Context) error {
	e.mu.Lock()
	defer e.mu.Unlock()
	if e.running {
		return nil
	}
	if err := e.pool.Start(ctx); err != nil {
		return err
	}
	e.running = true
	return nil
}

// Stop drains the pool within ctx, or within Config.ShutdownTimeout when
// ctx has no deadline, then notifies Shutdown extensions.
func (e *Engine) Stop(ctx context.Context) error {
	e.mu.Lock()
	if !e.running {
		e.mu.Unlock()
		return nil
	}
	e.running = false
	e.mu.Unlock()

	if _, ok := ctx.Deadline(); !ok && e.config.ShutdownTimeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, e.config.ShutdownTimeout)
		defer cancel()
	}

	err := e.pool.Stop(ctx)
	e.extensions.EmitShutdown(ctx)
	return err
}

// Running reports whether the pool has been started and not stopped.
func (e *Engine) Running() bool {
	e.mu.Lock()
	defer e.mu.Unlock()
	return e.running
}

// Wait blocks until no task is pending, running or retrying and no chain
// or lifecycle hook is still executing. It fails with
// jobchain.ErrNotRunning when the pool is stopped and work remains.
func (e *Engine) Wait(ctx context.Context) error {
	ticker := time.NewTicker(waitInterval)
	defer ticker.Stop()
	for {
		// Read the pool before the store: a hook that enqueues a follow-up
		// finishes before its chain leaves the active set.
		active := e.pool.Active()
		n, err := e.unfinished(ctx)
		if err != nil {
			return err
		}
		if n == 0 && active == 0 {
			return nil
		}
		if !e.Running() {
			return fmt.Errorf("%w: %d tasks unfinished", jobchain.ErrNotRunning, n)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-ticker.C:
		}
	}
}

func (e *Engine) unfinished(ctx context.Context) (int64, error) {
	var total int64
	var errs []error
	for _, s := range []task.State{task.StatePending, task.StateRunning, task.StateRetrying} {
		n, err := e.store.CountTasks(ctx, task.CountOpts{State: s})
		if err != nil {
			errs = append(errs, err)
			continue
		}
		total += n
	}
	return total, errors.Join(errs...)
}

// Task returns the persisted record of taskID.
func (e *Engine) Task(ctx context.Context, taskID id.TaskID) (*task.Task, error) {
	return e.store.GetTask(ctx, taskID)
}

// Store returns the backing store.
func (e *Engine) Store() store.Store { return e.store }

// Config returns the engine configuration.
func (e *Engine) Config() jobchain.Config { return e.config }

// Registry returns the unit registry handed to chains built by Chain.
func (e *Engine) Registry() *job.Registry { return e.registry }

// Extensions returns the extension registry.
func (e *Engine) Extensions() *ext.Registry { return e.extensions }

// DLQService returns the dead letter queue service.
func (e *Engine) DLQService() *dlq.Service { return e.dlq }

// QueueManager returns the per-queue limiter.
func (e *Engine) QueueManager() *queue.Manager { return e.queues }

// Runnables returns the in-process runnable table.
func (e *Engine) Runnables() *task.Runnables { return e.runnables }
