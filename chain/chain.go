package chain

import (
	"context"
	"log/slog"
	"strings"
	"time"

	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/trace"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/invoke"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/report"
	"github.com/risetechapps/jobchain/task"
	"github.com/risetechapps/jobchain/txn"
)

// tracerName is the instrumentation scope name for chain tracing.
const tracerName = "github.com/risetechapps/jobchain/chain"

// displayPrefix starts every chain display name.
const displayPrefix = "Atomic Chain: "

// Transform maps trigger arguments to the passable tuple. A result that is
// not a []any or job.Args becomes a one-element tuple.
type Transform func(args ...any) any

// Dispatcher is the host queue a triggered chain is submitted to.
type Dispatcher interface {
	Submit(ctx context.Context, r task.Runnable) error
}

// DispatcherFunc adapts an ordinary function to the Dispatcher interface.
type DispatcherFunc func(ctx context.Context, r task.Runnable) error

// Submit implements Dispatcher.
func (f DispatcherFunc) Submit(ctx context.Context, r task.Runnable) error { return f(ctx, r) }

// env holds the collaborators shared by a template and its snapshots.
type env struct {
	resolver   *job.Resolver
	registry   *job.Registry
	caller     invoke.Caller
	reporter   report.Reporter
	logger     *slog.Logger
	dispatcher Dispatcher
	tracker    txn.Tracker
	tracer     trace.Tracer
}

// Option configures a Chain.
type Option func(*Chain)

// WithRegistry sets the registry named units are resolved from.
func WithRegistry(r *job.Registry) Option {
	return func(c *Chain) { c.env.registry = r }
}

// WithCaller sets the Caller used for constructors and inline actions.
func WithCaller(caller invoke.Caller) Option {
	return func(c *Chain) { c.env.caller = caller }
}

// WithReporter sets the error reporter. Defaults to report.Nop.
func WithReporter(r report.Reporter) Option {
	return func(c *Chain) { c.env.reporter = r }
}

// WithLogger sets the logger that receives one line per job start and per
// failure. Without it the chain does not log.
func WithLogger(l *slog.Logger) Option {
	return func(c *Chain) { c.env.logger = l }
}

// WithDispatcher sets the host queue used by listeners.
func WithDispatcher(d Dispatcher) Option {
	return func(c *Chain) { c.env.dispatcher = d }
}

// WithTracker sets the transaction tracker consulted by listeners.
// Defaults to txn.None.
func WithTracker(t txn.Tracker) Option {
	return func(c *Chain) { c.env.tracker = t }
}

// WithTracerProvider sets the provider used for per-job spans. Defaults to
// the global provider.
func WithTracerProvider(tp trace.TracerProvider) Option {
	return func(c *Chain) { c.env.tracer = tp.Tracer(tracerName) }
}

// WithConfig applies the chain defaults of cfg: timeout, retry budget and
// the enqueue default.
func WithConfig(cfg jobchain.Config) Option {
	return func(c *Chain) {
		if cfg.ChainTimeout > 0 {
			c.timeout = cfg.ChainTimeout
		}
		c.maxRetries = cfg.MaxRetries
		c.shouldEnqueue = cfg.EnqueueByDefault
	}
}

// Chain is a declared, reusable chain template. Builder methods mutate the
// template and return it; they must not be called once the template is
// shared with listeners.
type Chain struct {
	jobs          []job.Spec
	transform     Transform
	shouldEnqueue bool
	onSuccess     func(ctx context.Context)
	onFailure     func(ctx context.Context, cause error)
	onFinally     func(ctx context.Context)
	timeout       time.Duration
	queue         string
	maxRetries    int

	env *env
}

// Make declares a chain over jobs with default collaborators. Use With to
// attach a registry or dispatcher.
func Make(jobs ...job.Spec) *Chain {
	return New(jobs)
}

// New declares a chain over jobs. The job list is copied and never changes
// afterwards.
func New(jobs []job.Spec, opts ...Option) *Chain {
	c := &Chain{
		jobs:    append([]job.Spec(nil), jobs...),
		timeout: jobchain.DefaultChainTimeout,
		env: &env{
			reporter: report.Nop,
			tracker:  txn.None,
			tracer:   otel.Tracer(tracerName),
		},
	}
	return c.With(opts...)
}

// With applies opts to the template and rebuilds its resolver. Snapshots
// taken earlier keep the collaborators they were bound with.
func (c *Chain) With(opts ...Option) *Chain {
	e := *c.env
	c.env = &e
	for _, opt := range opts {
		opt(c)
	}
	c.env.resolver = job.NewResolver(c.env.registry, c.env.caller)
	if c.env.reporter == nil {
		c.env.reporter = report.Nop
	}
	if c.env.tracker == nil {
		c.env.tracker = txn.None
	}
	return c
}

// Send sets the transform applied to trigger arguments. Without one, a
// single argument becomes the one-element tuple and several arguments are
// all kept, in order, since event listeners are variadic here. Use
// Send(func(args ...any) any { return args[0] }) to keep only the first.
func (c *Chain) Send(fn Transform) *Chain {
	c.transform = fn
	return c
}

// ShouldEnqueue sets whether listeners submit the chain to the dispatcher.
func (c *Chain) ShouldEnqueue(enqueue bool) *Chain {
	c.shouldEnqueue = enqueue
	return c
}

// Then sets the callback run after every job succeeded or the chain was
// stopped early.
func (c *Chain) Then(fn func(ctx context.Context)) *Chain {
	c.onSuccess = fn
	return c
}

// Catch sets the callback run with the cause of the first failure.
func (c *Chain) Catch(fn func(ctx context.Context, cause error)) *Chain {
	c.onFailure = fn
	return c
}

// Finally sets the callback run once at the end of every run.
func (c *Chain) Finally(fn func(ctx context.Context)) *Chain {
	c.onFinally = fn
	return c
}

// Within sets the advisory execution budget handed to the host queue.
func (c *Chain) Within(d time.Duration) *Chain {
	c.timeout = d
	return c
}

// OnQueue sets the host queue name.
func (c *Chain) OnQueue(name string) *Chain {
	c.queue = name
	return c
}

// Retries sets how many times the host queue may retry a failed run.
func (c *Chain) Retries(n int) *Chain {
	c.maxRetries = n
	return c
}

// Jobs returns a copy of the declared job list.
func (c *Chain) Jobs() []job.Spec {
	return append([]job.Spec(nil), c.jobs...)
}

// Timeout returns the advisory execution budget.
func (c *Chain) Timeout() time.Duration { return c.timeout }

// DisplayName describes the chain by its job names.
func (c *Chain) DisplayName() string {
	return displayName(c.jobs)
}

// Run builds a snapshot from args and executes it in the calling goroutine.
func (c *Chain) Run(ctx context.Context, args ...any) (Outcome, error) {
	return c.Executable(args...).Execute(ctx)
}

func displayName(jobs []job.Spec) string {
	names := make([]string, len(jobs))
	for i, s := range jobs {
		names[i] = s.Name()
	}
	return displayPrefix + strings.Join(names, ", ")
}
