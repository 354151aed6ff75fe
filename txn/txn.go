// Package txn tracks in-process transaction frames so work can be deferred
// until the outermost frame commits.
//
// A frame is opened with Manager.Begin and closed with Commit or Rollback.
// Frames nest through the context: a Begin on a context that already holds
// a frame opens a child frame, and committing the child hands its
// after-commit hooks to the parent. Only the outermost commit runs hooks.
// A rollback at any level discards the hooks registered in that frame.
//
//	ctx, tx := mgr.Begin(ctx)
//	defer tx.Rollback() // no-op after Commit
//
//	mgr.AfterCommit(ctx, func(ctx context.Context) { ... })
//
//	return tx.Commit()
package txn

import (
	"context"
	"fmt"
	"log/slog"
	"sync"

	"github.com/risetechapps/jobchain"
)

// Tracker reports the transaction depth of a context and schedules work to
// run once the enclosing transaction commits.
type Tracker interface {
	// Depth returns the number of open frames in ctx.
	Depth(ctx context.Context) int

	// AfterCommit schedules fn for the moment the outermost frame in ctx
	// commits. With no open frame fn runs immediately. fn is never run
	// when the frame it was registered in rolls back.
	AfterCommit(ctx context.Context, fn func(context.Context))
}

type frameKey struct{}

type frame struct {
	parent *frame
	depth  int

	mu    sync.Mutex
	hooks []func(context.Context)
	done  bool
}

func frameFrom(ctx context.Context) *frame {
	f, _ := ctx.Value(frameKey{}).(*frame)
	return f
}

// Manager is the in-process Tracker. The zero value is not usable; create
// one with NewManager.
type Manager struct {
	logger *slog.Logger
}

// Option configures a Manager.
type Option func(*Manager)

// WithLogger sets the logger used for panicking hooks.
func WithLogger(l *slog.Logger) Option {
	return func(m *Manager) { m.logger = l }
}

// NewManager creates a Manager.
func NewManager(opts ...Option) *Manager {
	m := &Manager{logger: slog.Default()}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

// Begin opens a frame in ctx. The returned context carries the frame and
// must be used for work that belongs to the transaction.
func (m *Manager) Begin(ctx context.Context) (context.Context, *Tx) {
	parent := frameFrom(ctx)
	f := &frame{parent: parent, depth: 1}
	if parent != nil {
		f.depth = parent.depth + 1
	}
	return context.WithValue(ctx, frameKey{}, f), &Tx{m: m, f: f, ctx: ctx}
}

// Depth implements Tracker.
func (m *Manager) Depth(ctx context.Context) int {
	for f := frameFrom(ctx); f != nil; f = f.parent {
		if !f.finished() {
			return f.depth
		}
	}
	return 0
}

// AfterCommit implements Tracker.
func (m *Manager) AfterCommit(ctx context.Context, fn func(context.Context)) {
	for f := frameFrom(ctx); f != nil; f = f.parent {
		if f.add(fn) {
			return
		}
	}
	m.run(context.WithoutCancel(ctx), fn)
}

func (m *Manager) run(ctx context.Context, fn func(context.Context)) {
	defer func() {
		if r := recover(); r != nil {
			m.logger.Error("after-commit hook panicked",
				slog.String("panic", fmt.Sprint(r)),
			)
		}
	}()
	fn(ctx)
}

func (f *frame) finished() bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.done
}

func (f *frame) add(fn func(context.Context)) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return false
	}
	f.hooks = append(f.hooks, fn)
	return true
}

func (f *frame) finish() ([]func(context.Context), bool) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.done {
		return nil, false
	}
	f.done = true
	hooks := f.hooks
	f.hooks = nil
	return hooks, true
}

// Tx is one open frame.
type Tx struct {
	m   *Manager
	f   *frame
	ctx context.Context
}

// Depth returns the nesting level of this frame, starting at 1.
func (tx *Tx) Depth() int { return tx.f.depth }

// Commit closes the frame. Hooks move to the parent frame, or run in
// registration order when this is the outermost frame. When the parent is
// already finished the hooks are dropped. Hooks receive a
// context detached from the cancellation of the context Begin was called
// with. Commit on a finished frame returns jobchain.ErrTxDone.
func (tx *Tx) Commit() error {
	hooks, ok := tx.f.finish()
	if !ok {
		return jobchain.ErrTxDone
	}
	if p := tx.f.parent; p != nil {
		// A parent that already closed took its transaction with it.
		p.addAll(hooks)
		return nil
	}
	ctx := context.WithoutCancel(tx.ctx)
	for _, fn := range hooks {
		tx.m.run(ctx, fn)
	}
	return nil
}

// Rollback closes the frame and discards its hooks. It is a no-op on a
// finished frame so it can always be deferred.
func (tx *Tx) Rollback() error {
	tx.f.finish()
	return nil
}

func (f *frame) addAll(hooks []func(context.Context)) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if !f.done {
		f.hooks = append(f.hooks, hooks...)
	}
}

// RunInTx runs fn inside a frame, committing when fn returns nil and
// rolling back otherwise. A panic in fn rolls back and is re-raised.
func (m *Manager) RunInTx(ctx context.Context, fn func(ctx context.Context) error) error {
	txCtx, tx := m.Begin(ctx)
	defer func() {
		if r := recover(); r != nil {
			_ = tx.Rollback()
			panic(r)
		}
	}()
	if err := fn(txCtx); err != nil {
		_ = tx.Rollback()
		return err
	}
	return tx.Commit()
}

// None is a Tracker that never reports an open transaction.
var None Tracker = none{}

type none struct{}

func (none) Depth(context.Context) int { return 0 }

func (none) AfterCommit(ctx context.Context, fn func(context.Context)) { fn(ctx) }
