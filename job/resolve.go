package job

import (
	"context"
	"errors"
	"fmt"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/invoke"
)

// InstantiationError reports that a named unit could not be constructed
// from the passable arguments.
type InstantiationError struct {
	Job string
	Err error
}

func (e *InstantiationError) Error() string {
	return fmt.Sprintf("job [%s] could not be instantiated: %v", e.Job, e.Err)
}

func (e *InstantiationError) Unwrap() error { return e.Err }

var errNilUnit = errors.New("constructor returned a nil unit")

// Resolver turns specs into invocables.
type Resolver struct {
	registry *Registry
	caller   invoke.Caller
}

// NewResolver creates a Resolver. A nil registry resolves no named units;
// a nil caller uses invoke.New().
func NewResolver(registry *Registry, caller invoke.Caller) *Resolver {
	if registry == nil {
		registry = NewRegistry()
	}
	if caller == nil {
		caller = invoke.New()
	}
	return &Resolver{registry: registry, caller: caller}
}

// Invocable is a resolved spec bound to its entry point.
type Invocable struct {
	spec   Spec
	unit   Unit
	fn     any
	caller invoke.Caller
}

// Resolve produces an invocable for spec. Named units are constructed
// fresh, with args injected into the constructor; inline actions are
// returned as they are and ignore args until invoked.
func (r *Resolver) Resolve(ctx context.Context, spec Spec, args Args) (*Invocable, error) {
	switch s := spec.(type) {
	case NamedUnit:
		u, err := r.construct(ctx, s, args)
		if err != nil {
			return nil, &InstantiationError{Job: s.ID(), Err: err}
		}
		return &Invocable{spec: s, unit: u, caller: r.caller}, nil
	case InlineAction:
		return &Invocable{spec: s, fn: s.fn, caller: r.caller}, nil
	default:
		return nil, fmt.Errorf("job: unsupported spec %T", spec)
	}
}

func (r *Resolver) construct(ctx context.Context, s NamedUnit, args Args) (Unit, error) {
	ctor, ok := r.registry.Get(s.Identifier)
	if !ok {
		return nil, jobchain.ErrUnitNotFound
	}
	out, err := r.caller.Call(ctx, ctor, args)
	if err != nil {
		return nil, err
	}
	u, _ := invoke.First(out).(Unit)
	if u == nil {
		return nil, errNilUnit
	}
	return u, nil
}

// Spec returns the spec this invocable was resolved from.
func (i *Invocable) Spec() Spec { return i.spec }

// Unit returns the constructed unit, or nil for inline actions.
func (i *Invocable) Unit() Unit { return i.unit }

// Invoke calls the entry point with args.
func (i *Invocable) Invoke(ctx context.Context, args Args) (any, error) {
	if i.unit != nil {
		return i.unit.Handle(ctx, args)
	}
	out, err := i.caller.Call(ctx, i.fn, args)
	return invoke.First(out), err
}

// Failer returns the unit's failure hook when it has one.
func (i *Invocable) Failer() (Failer, bool) {
	f, ok := i.unit.(Failer)
	return f, ok
}
