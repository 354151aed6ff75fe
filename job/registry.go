package job

import (
	"fmt"
	"reflect"
	"sort"
	"sync"
)

var (
	unitType  = reflect.TypeOf((*Unit)(nil)).Elem()
	errorType = reflect.TypeOf((*error)(nil)).Elem()
)

// Registry maps unit identifiers to constructors.
// It is safe for concurrent use.
type Registry struct {
	mu    sync.RWMutex
	ctors map[string]any
}

// NewRegistry creates an empty unit registry.
func NewRegistry() *Registry {
	return &Registry{
		ctors: make(map[string]any),
	}
}

// Register stores ctor under name, replacing any previous constructor. ctor
// must be a function returning a Unit, or a Unit and an error. Its
// parameters are resolved from the passable arguments at execution time.
func (r *Registry) Register(name string, ctor any) error {
	if name == "" {
		return fmt.Errorf("job: register: empty unit name")
	}
	if err := checkConstructor(ctor); err != nil {
		return fmt.Errorf("job: register %q: %w", name, err)
	}

	r.mu.Lock()
	defer r.mu.Unlock()
	r.ctors[name] = ctor
	return nil
}

// MustRegister is like Register but panics on an invalid constructor.
func (r *Registry) MustRegister(name string, ctor any) {
	if err := r.Register(name, ctor); err != nil {
		panic(err)
	}
}

// RegisterFunc registers a unit whose constructor takes the raw passable
// tuple.
func RegisterFunc(r *Registry, name string, ctor func(args Args) (Unit, error)) {
	r.MustRegister(name, func(args ...any) (Unit, error) {
		return ctor(Args(args))
	})
}

// Get returns the constructor registered under name.
func (r *Registry) Get(name string) (any, bool) {
	r.mu.RLock()
	defer r.mu.RUnlock()
	c, ok := r.ctors[name]
	return c, ok
}

// Names returns all registered unit names in sorted order.
func (r *Registry) Names() []string {
	r.mu.RLock()
	defer r.mu.RUnlock()
	names := make([]string, 0, len(r.ctors))
	for name := range r.ctors {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

func checkConstructor(ctor any) error {
	t := reflect.TypeOf(ctor)
	if t == nil || t.Kind() != reflect.Func {
		return fmt.Errorf("constructor must be a function, got %T", ctor)
	}
	switch t.NumOut() {
	case 1:
	case 2:
		if t.Out(1) != errorType {
			return fmt.Errorf("second result of %s must be error", t)
		}
	default:
		return fmt.Errorf("constructor %s must return (Unit) or (Unit, error)", t)
	}
	if !t.Out(0).Implements(unitType) {
		return fmt.Errorf("%s does not implement job.Unit", t.Out(0))
	}
	return nil
}
