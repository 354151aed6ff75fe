package chain_test

import (
	"context"
	"errors"
	"sync"
	"testing"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/report"
	"github.com/risetechapps/jobchain/task"
	"github.com/risetechapps/jobchain/txn"
)

type fakeDispatcher struct {
	mu        sync.Mutex
	submitted []task.Runnable
	err       error
}

func (d *fakeDispatcher) Submit(_ context.Context, r task.Runnable) error {
	d.mu.Lock()
	defer d.mu.Unlock()
	d.submitted = append(d.submitted, r)
	return d.err
}

func (d *fakeDispatcher) count() int {
	d.mu.Lock()
	defer d.mu.Unlock()
	return len(d.submitted)
}

func TestListener_EmptyChainIsNoop(t *testing.T) {
	d := &fakeDispatcher{}
	transformed := false
	c := chain.New(nil, chain.WithDispatcher(d)).
		ShouldEnqueue(true).
		Send(func(args ...any) any { transformed = true; return args })

	if err := c.ToListener()(context.Background(), "evt"); err != nil {
		t.Fatal(err)
	}
	if d.count() != 0 || transformed {
		t.Errorf("empty chain must not bind or submit (submitted=%d transformed=%v)", d.count(), transformed)
	}
}

func TestListener_NotEnqueuedSubmitsNothing(t *testing.T) {
	d := &fakeDispatcher{}
	c := chain.New([]job.Spec{job.Named("A")}, chain.WithDispatcher(d))

	if err := c.ToListener()(context.Background(), "evt"); err != nil {
		t.Fatal(err)
	}
	if d.count() != 0 {
		t.Errorf("submitted %d, want 0", d.count())
	}
}

func TestListener_SubmitsImmediatelyWithoutTransaction(t *testing.T) {
	d := &fakeDispatcher{}
	c := chain.New([]job.Spec{job.Named("A")},
		chain.WithDispatcher(d),
		chain.WithTracker(txn.NewManager()),
	).ShouldEnqueue(true)

	if err := c.ToListener()(context.Background(), "evt"); err != nil {
		t.Fatal(err)
	}
	if d.count() != 1 {
		t.Fatalf("submitted %d, want 1", d.count())
	}

	b, ok := d.submitted[0].(*chain.Bound)
	if !ok {
		t.Fatalf("submitted %T, want *chain.Bound", d.submitted[0])
	}
	if p := b.Passable(); len(p) != 1 || p[0] != "evt" {
		t.Errorf("Passable = %v", p)
	}
}

func TestListener_DefersUntilCommit(t *testing.T) {
	d := &fakeDispatcher{}
	m := txn.NewManager()
	c := chain.New([]job.Spec{job.Named("A")},
		chain.WithDispatcher(d),
		chain.WithTracker(m),
	).ShouldEnqueue(true)
	listener := c.ToListener()

	ctx, tx := m.Begin(context.Background())
	if err := listener(ctx, "evt"); err != nil {
		t.Fatal(err)
	}
	if d.count() != 0 {
		t.Fatalf("submitted %d inside open transaction, want 0", d.count())
	}

	if err := tx.Commit(); err != nil {
		t.Fatal(err)
	}
	if d.count() != 1 {
		t.Errorf("submitted %d after commit, want 1", d.count())
	}
}

func TestListener_RollbackNeverSubmits(t *testing.T) {
	d := &fakeDispatcher{}
	m := txn.NewManager()
	c := chain.New([]job.Spec{job.Named("A")},
		chain.WithDispatcher(d),
		chain.WithTracker(m),
	).ShouldEnqueue(true)

	ctx, tx := m.Begin(context.Background())
	_ = c.ToListener()(ctx, "evt")
	_ = tx.Rollback()

	if d.count() != 0 {
		t.Errorf("submitted %d after rollback, want 0", d.count())
	}
}

func TestListener_DeferredSubmitErrorIsReported(t *testing.T) {
	submitErr := errors.New("queue down")
	d := &fakeDispatcher{err: submitErr}
	m := txn.NewManager()
	var reported []error
	c := chain.New([]job.Spec{job.Named("A")},
		chain.WithDispatcher(d),
		chain.WithTracker(m),
		chain.WithReporter(report.Func(func(_ context.Context, err error) { reported = append(reported, err) })),
	).ShouldEnqueue(true)

	_ = m.RunInTx(context.Background(), func(ctx context.Context) error {
		return c.ToListener()(ctx, "evt")
	})

	if len(reported) != 1 || !errors.Is(reported[0], submitErr) {
		t.Errorf("reported = %v", reported)
	}
}

func TestListener_ImmediateSubmitErrorIsReturned(t *testing.T) {
	submitErr := errors.New("queue down")
	c := chain.New([]job.Spec{job.Named("A")},
		chain.WithDispatcher(&fakeDispatcher{err: submitErr}),
	).ShouldEnqueue(true)

	if err := c.ToListener()(context.Background()); !errors.Is(err, submitErr) {
		t.Errorf("err = %v", err)
	}
}

func TestListener_NoDispatcher(t *testing.T) {
	c := chain.Make(job.Named("A")).ShouldEnqueue(true)
	if err := c.ToListener()(context.Background()); !errors.Is(err, jobchain.ErrNoDispatcher) {
		t.Errorf("err = %v, want ErrNoDispatcher", err)
	}
}

func TestListener_TransformPanicIsError(t *testing.T) {
	d := &fakeDispatcher{}
	c := chain.New([]job.Spec{job.Named("A")}, chain.WithDispatcher(d)).
		ShouldEnqueue(true).
		Send(func(args ...any) any { return args[5] })

	if err := c.ToListener()(context.Background()); err == nil {
		t.Error("expected an error from the panicking transform")
	}
	if d.count() != 0 {
		t.Error("nothing should be submitted")
	}
}

func TestListener_EachTriggerGetsOwnSnapshot(t *testing.T) {
	d := &fakeDispatcher{}
	c := chain.New([]job.Spec{job.Named("A")}, chain.WithDispatcher(d)).ShouldEnqueue(true)
	l := c.ToListener()

	_ = l(context.Background(), 1)
	_ = l(context.Background(), 2)

	if d.count() != 2 {
		t.Fatalf("submitted %d", d.count())
	}
	a := d.submitted[0].(*chain.Bound).Passable()
	b := d.submitted[1].(*chain.Bound).Passable()
	if a[0] != 1 || b[0] != 2 {
		t.Errorf("snapshots share state: %v %v", a, b)
	}
}
