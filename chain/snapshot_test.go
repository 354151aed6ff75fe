package chain_test

import (
	"context"
	"testing"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/chain"
	"github.com/risetechapps/jobchain/job"
	"github.com/risetechapps/jobchain/task"
)

type order struct{ ID int }

func TestExecutable_SnapshotIndependence(t *testing.T) {
	var seen []int
	c := chain.Make(job.Inline(func(o *order) { seen = append(seen, o.ID) }))

	first := c.Executable(&order{ID: 1})
	second := c.Executable(&order{ID: 2})

	if err := second.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if err := first.Run(context.Background()); err != nil {
		t.Fatal(err)
	}
	if len(seen) != 2 || seen[0] != 2 || seen[1] != 1 {
		t.Errorf("seen = %v, want [2 1]", seen)
	}

	p := first.Passable()
	p[0] = &order{ID: 99}
	if got := first.Passable()[0].(*order).ID; got != 1 {
		t.Errorf("Passable must return a copy, got ID %d", got)
	}
}

func TestExecutable_DefaultTransform(t *testing.T) {
	c := chain.Make(job.Named("A"))

	if p := c.Executable("evt").Passable(); len(p) != 1 || p[0] != "evt" {
		t.Errorf("single argument: %v", p)
	}
	if p := c.Executable("a", 2).Passable(); len(p) != 2 || p[0] != "a" || p[1] != 2 {
		t.Errorf("several arguments: %v", p)
	}
	if p := c.Executable([]any{"x", "y"}).Passable(); len(p) != 2 {
		t.Errorf("slice argument should be spread: %v", p)
	}
	if p := c.Executable().Passable(); len(p) != 0 {
		t.Errorf("no arguments: %v", p)
	}
}

func TestExecutable_SendFirstArgumentOnly(t *testing.T) {
	c := chain.Make(job.Named("A")).Send(func(args ...any) any { return args[0] })
	if p := c.Executable("evt", "ignored").Passable(); len(p) != 1 || p[0] != "evt" {
		t.Errorf("passable = %v, want [evt]", p)
	}
}

func TestExecutable_TransformWrapsScalar(t *testing.T) {
	c := chain.Make(job.Named("A")).Send(func(args ...any) any {
		return args[0].(*order).ID
	})

	p := c.Executable(&order{ID: 7}).Passable()
	if len(p) != 1 || p[0] != 7 {
		t.Errorf("Passable = %v, want [7]", p)
	}
}

func TestExecutable_TransformReturnsTuple(t *testing.T) {
	c := chain.Make(job.Named("A")).Send(func(args ...any) any {
		o := args[0].(*order)
		return job.Args{o.ID, "ctx"}
	})

	p := c.Executable(&order{ID: 3}).Passable()
	if len(p) != 2 || p[0] != 3 || p[1] != "ctx" {
		t.Errorf("Passable = %v", p)
	}
}

func TestExecutable_PassableReachesConstructors(t *testing.T) {
	var got []int
	reg := job.NewRegistry()
	reg.MustRegister("Charge", func(o *order) job.Unit {
		return job.UnitFunc(func(context.Context, job.Args) (any, error) {
			got = append(got, o.ID)
			return nil, nil
		})
	})

	c := chain.New([]job.Spec{job.Named("Charge"), job.Named("Charge")}, chain.WithRegistry(reg))
	if _, err := c.Run(context.Background(), &order{ID: 42}); err != nil {
		t.Fatal(err)
	}
	if len(got) != 2 || got[0] != 42 || got[1] != 42 {
		t.Errorf("got = %v, want [42 42]", got)
	}
}

func TestBound_HostMetadata(t *testing.T) {
	b := chain.Make(job.Named("A")).OnQueue("mail").Retries(2).Executable()

	if b.Timeout() != jobchain.DefaultChainTimeout {
		t.Errorf("Timeout = %v, want %v", b.Timeout(), jobchain.DefaultChainTimeout)
	}

	o := task.DefaultOptions()
	for _, opt := range b.TaskOptions() {
		opt(&o)
	}
	if o.Queue != "mail" || o.MaxRetries != 2 || o.Timeout != jobchain.DefaultChainTimeout {
		t.Errorf("options = %+v", o)
	}
}

func TestChain_WithConfig(t *testing.T) {
	cfg := jobchain.DefaultConfig()
	cfg.ChainTimeout = time.Minute
	cfg.MaxRetries = 5
	cfg.EnqueueByDefault = true

	c := chain.New([]job.Spec{job.Named("A")}, chain.WithConfig(cfg))
	if c.Timeout() != time.Minute {
		t.Errorf("Timeout = %v", c.Timeout())
	}

	o := task.DefaultOptions()
	for _, opt := range c.Executable().TaskOptions() {
		opt(&o)
	}
	if o.MaxRetries != 5 {
		t.Errorf("MaxRetries = %d", o.MaxRetries)
	}
}

func TestChain_WithinOverridesTimeout(t *testing.T) {
	b := chain.Make(job.Named("A")).Within(30 * time.Second).Executable()
	if b.Timeout() != 30*time.Second {
		t.Errorf("Timeout = %v", b.Timeout())
	}
}
