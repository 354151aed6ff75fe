package job

import (
	"context"
	"strings"
)

// Args is the passable tuple handed to every entry of one chain run.
type Args []any

// Unit is a constructed chain entry.
type Unit interface {
	// Handle runs the unit. Returning the literal value false stops the
	// chain without failing it.
	Handle(ctx context.Context, args Args) (any, error)
}

// UnitFunc adapts an ordinary function to the Unit interface.
type UnitFunc func(ctx context.Context, args Args) (any, error)

// Handle implements Unit.
func (f UnitFunc) Handle(ctx context.Context, args Args) (any, error) { return f(ctx, args) }

// Failer is implemented by units that want to observe their own failure.
type Failer interface {
	Failed(ctx context.Context, cause error) error
}

// InlineLabel is the display name of inline actions without a label.
const InlineLabel = "Closure"

// Spec is one entry of a chain. It is either a NamedUnit or an
// InlineAction.
type Spec interface {
	// ID returns the full identifier used in error messages.
	ID() string
	// Name returns the short display name.
	Name() string

	isSpec()
}

// NamedUnit references a constructor registered under Identifier.
type NamedUnit struct {
	Identifier string
}

// Named returns a spec that resolves identifier through the Registry.
func Named(identifier string) NamedUnit {
	return NamedUnit{Identifier: identifier}
}

// ID returns the registered identifier.
func (n NamedUnit) ID() string { return n.Identifier }

// Name returns the last segment of the identifier.
func (n NamedUnit) Name() string { return basename(n.Identifier) }

func (NamedUnit) isSpec() {}

// InlineAction is a function invoked directly with the passable arguments.
type InlineAction struct {
	label string
	fn    any
}

// Inline returns a spec for fn. See package invoke for how its parameters
// are resolved.
func Inline(fn any) InlineAction {
	return InlineAction{label: InlineLabel, fn: fn}
}

// Action is like Inline but carries a display label.
func Action(label string, fn any) InlineAction {
	if label == "" {
		label = InlineLabel
	}
	return InlineAction{label: label, fn: fn}
}

// ID returns the action label.
func (a InlineAction) ID() string { return a.label }

// Name returns the action label.
func (a InlineAction) Name() string { return a.label }

// Func returns the wrapped function.
func (a InlineAction) Func() any { return a.fn }

func (InlineAction) isSpec() {}

func basename(identifier string) string {
	if i := strings.LastIndexAny(identifier, `/.\`); i >= 0 {
		return identifier[i+1:]
	}
	return identifier
}
