package invoke

import (
	"context"
	"errors"
	"fmt"
	"math"
	"reflect"
)

var (
	// ErrNotFunc is returned when the call target is not a function.
	ErrNotFunc = errors.New("invoke: target is not a function")

	// ErrMissingArgument is returned when a parameter cannot be resolved
	// from the argument list.
	ErrMissingArgument = errors.New("invoke: missing argument")

	// ErrPanic wraps a panic raised by the called function.
	ErrPanic = errors.New("invoke: panic")
)

var (
	contextType = reflect.TypeOf((*context.Context)(nil)).Elem()
	errorType   = reflect.TypeOf((*error)(nil)).Elem()
)

// Caller invokes fn with parameters resolved from args.
type Caller interface {
	Call(ctx context.Context, fn any, args []any) ([]any, error)
}

// CallerFunc adapts an ordinary function to the Caller interface.
type CallerFunc func(ctx context.Context, fn any, args []any) ([]any, error)

// Call implements Caller.
func (f CallerFunc) Call(ctx context.Context, fn any, args []any) ([]any, error) {
	return f(ctx, fn, args)
}

// Reflect is the default reflection-based Caller. It is stateless and safe
// for concurrent use.
type Reflect struct{}

// New returns the default Caller.
func New() *Reflect { return &Reflect{} }

// Call resolves the parameters of fn from ctx and args and calls it.
func (r *Reflect) Call(ctx context.Context, fn any, args []any) (out []any, err error) {
	fv := reflect.ValueOf(fn)
	if !fv.IsValid() || fv.Kind() != reflect.Func {
		return nil, fmt.Errorf("%w: %T", ErrNotFunc, fn)
	}
	if fv.IsNil() {
		return nil, fmt.Errorf("%w: nil %T", ErrNotFunc, fn)
	}

	in, err := resolve(ctx, fv.Type(), args)
	if err != nil {
		return nil, err
	}

	defer func() {
		if rec := recover(); rec != nil {
			out = nil
			err = fmt.Errorf("%w: %v", ErrPanic, rec)
		}
	}()

	return split(fv.Call(in))
}

// resolve builds the reflect argument list for a function of type ft.
func resolve(ctx context.Context, ft reflect.Type, args []any) ([]reflect.Value, error) {
	fixed := ft.NumIn()
	if ft.IsVariadic() {
		fixed--
	}

	used := make([]bool, len(args))
	in := make([]reflect.Value, 0, ft.NumIn())

	for i := range fixed {
		pt := ft.In(i)

		if pt == contextType {
			if ctx == nil {
				ctx = context.Background()
			}
			in = append(in, reflect.ValueOf(ctx))
			continue
		}

		v, ok := byType(pt, args, used)
		if !ok {
			v, ok = byPosition(pt, args, used)
		}
		if !ok {
			return nil, fmt.Errorf("%w: parameter %d (%s)", ErrMissingArgument, i, pt)
		}
		in = append(in, v)
	}

	if ft.IsVariadic() {
		elem := ft.In(fixed).Elem()
		for i, a := range args {
			if used[i] {
				continue
			}
			if a == nil {
				if nillable(elem) {
					used[i] = true
					in = append(in, reflect.Zero(elem))
				}
				continue
			}
			if reflect.TypeOf(a).AssignableTo(elem) {
				used[i] = true
				in = append(in, reflect.ValueOf(a))
			}
		}
	}

	return in, nil
}

func byType(pt reflect.Type, args []any, used []bool) (reflect.Value, bool) {
	for i, a := range args {
		if used[i] || a == nil {
			continue
		}
		if reflect.TypeOf(a).AssignableTo(pt) {
			used[i] = true
			return reflect.ValueOf(a), true
		}
	}
	return reflect.Value{}, false
}

func byPosition(pt reflect.Type, args []any, used []bool) (reflect.Value, bool) {
	for i, a := range args {
		if used[i] {
			continue
		}
		// Only the next unused argument is a positional candidate.
		if a == nil {
			if !nillable(pt) {
				return reflect.Value{}, false
			}
			used[i] = true
			return reflect.Zero(pt), true
		}
		av := reflect.ValueOf(a)
		if numeric(av.Kind()) && numeric(pt.Kind()) {
			v, ok := convertNumber(av, pt)
			if ok {
				used[i] = true
			}
			return v, ok
		}
		return reflect.Value{}, false
	}
	return reflect.Value{}, false
}

// split separates a trailing error result from the other results.
func split(results []reflect.Value) ([]any, error) {
	var err error
	if n := len(results); n > 0 && results[n-1].Type() == errorType {
		if e := results[n-1].Interface(); e != nil {
			err = e.(error) //nolint:forcetypeassert // type checked above
		}
		results = results[:n-1]
	}

	out := make([]any, len(results))
	for i, v := range results {
		out[i] = v.Interface()
	}
	return out, err
}

func nillable(t reflect.Type) bool {
	switch t.Kind() {
	case reflect.Pointer, reflect.Interface, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan:
		return true
	default:
		return false
	}
}

// convertNumber converts av to pt only when the value survives unchanged:
// no overflow, no dropped fraction, no negative value for unsigned targets.
func convertNumber(av reflect.Value, pt reflect.Type) (reflect.Value, bool) {
	target := reflect.Zero(pt)
	switch {
	case isFloat(av.Kind()):
		f := av.Float()
		if math.IsNaN(f) || math.IsInf(f, 0) {
			if !isFloat(pt.Kind()) {
				return reflect.Value{}, false
			}
			return av.Convert(pt), true
		}
		switch {
		case isFloat(pt.Kind()):
			if target.OverflowFloat(f) {
				return reflect.Value{}, false
			}
		case f != math.Trunc(f):
			return reflect.Value{}, false
		case isUnsigned(pt.Kind()):
			if f < 0 || f >= math.Exp2(64) || target.OverflowUint(uint64(f)) {
				return reflect.Value{}, false
			}
		default:
			if f < -math.Exp2(63) || f >= math.Exp2(63) || target.OverflowInt(int64(f)) {
				return reflect.Value{}, false
			}
		}
	case isUnsigned(av.Kind()):
		u := av.Uint()
		switch {
		case isFloat(pt.Kind()):
			if uint64(float64(u)) != u || target.OverflowFloat(float64(u)) {
				return reflect.Value{}, false
			}
		case isUnsigned(pt.Kind()):
			if target.OverflowUint(u) {
				return reflect.Value{}, false
			}
		default:
			if u > math.MaxInt64 || target.OverflowInt(int64(u)) {
				return reflect.Value{}, false
			}
		}
	default:
		n := av.Int()
		switch {
		case isFloat(pt.Kind()):
			if int64(float64(n)) != n || target.OverflowFloat(float64(n)) {
				return reflect.Value{}, false
			}
		case isUnsigned(pt.Kind()):
			if n < 0 || target.OverflowUint(uint64(n)) {
				return reflect.Value{}, false
			}
		default:
			if target.OverflowInt(n) {
				return reflect.Value{}, false
			}
		}
	}
	return av.Convert(pt), true
}

func isFloat(k reflect.Kind) bool {
	return k == reflect.Float32 || k == reflect.Float64
}

func isUnsigned(k reflect.Kind) bool {
	switch k {
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return true
	default:
		return false
	}
}

func numeric(k reflect.Kind) bool {
	switch k {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64,
		reflect.Float32, reflect.Float64:
		return true
	default:
		return false
	}
}

// First returns the first value of a call result, or nil when the function
// returned nothing besides an optional error.
func First(values []any) any {
	if len(values) == 0 {
		return nil
	}
	return values[0]
}
