package job_test

import (
	"context"
	"errors"
	"testing"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/invoke"
	"github.com/risetechapps/jobchain/job"
)

type user struct{ Email string }

type sendWelcome struct {
	user   user
	failed error
}

func (s *sendWelcome) Handle(_ context.Context, _ job.Args) (any, error) {
	if s.user.Email == "" {
		return nil, errors.New("missing email")
	}
	return nil, nil
}

func (s *sendWelcome) Failed(_ context.Context, cause error) error {
	s.failed = cause
	return nil
}

func TestRegistry_RegisterAndGet(t *testing.T) {
	r := job.NewRegistry()
	if err := r.Register("mail.SendWelcome", func(u user) *sendWelcome { return &sendWelcome{user: u} }); err != nil {
		t.Fatalf("unexpected error: %v", err)
	}

	if _, ok := r.Get("mail.SendWelcome"); !ok {
		t.Fatal("expected constructor to be registered")
	}
	if _, ok := r.Get("nonexistent"); ok {
		t.Fatal("expected no constructor for unregistered unit")
	}
}

func TestRegistry_RejectsInvalidConstructors(t *testing.T) {
	r := job.NewRegistry()
	tests := []struct {
		name string
		ctor any
	}{
		{"not a func", 42},
		{"no unit result", func() string { return "" }},
		{"bad second result", func() (*sendWelcome, string) { return nil, "" }},
		{"too many results", func() (*sendWelcome, error, int) { return nil, nil, 0 }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := r.Register("bad", tt.ctor); err == nil {
				t.Error("expected registration error")
			}
		})
	}
	if err := r.Register("", func() *sendWelcome { return nil }); err == nil {
		t.Error("expected error for empty name")
	}
}

func TestRegistry_Names(t *testing.T) {
	r := job.NewRegistry()
	job.RegisterFunc(r, "b", func(job.Args) (job.Unit, error) { return &sendWelcome{}, nil })
	job.RegisterFunc(r, "a", func(job.Args) (job.Unit, error) { return &sendWelcome{}, nil })
	job.RegisterFunc(r, "c", func(job.Args) (job.Unit, error) { return &sendWelcome{}, nil })

	names := r.Names()
	expected := []string{"a", "b", "c"}
	if len(names) != len(expected) {
		t.Fatalf("expected %d names, got %d", len(expected), len(names))
	}
	for i, want := range expected {
		if names[i] != want {
			t.Errorf("names[%d] = %q, want %q", i, names[i], want)
		}
	}
}

func TestSpec_Names(t *testing.T) {
	if got := job.Named("mail.SendWelcome").Name(); got != "SendWelcome" {
		t.Errorf("Name() = %q, want SendWelcome", got)
	}
	if got := job.Named("app/jobs/Notify").ID(); got != "app/jobs/Notify" {
		t.Errorf("ID() = %q, want full identifier", got)
	}
	if got := job.Inline(func() {}).Name(); got != job.InlineLabel {
		t.Errorf("Name() = %q, want %q", got, job.InlineLabel)
	}
	if got := job.Action("audit", func() {}).Name(); got != "audit" {
		t.Errorf("Name() = %q, want audit", got)
	}
}

func TestResolve_NamedUnitGetsFreshInstancePerResolve(t *testing.T) {
	r := job.NewRegistry()
	r.MustRegister("welcome", func(u user) *sendWelcome { return &sendWelcome{user: u} })
	res := job.NewResolver(r, nil)

	args := job.Args{user{Email: "a@example.com"}}
	first, err := res.Resolve(context.Background(), job.Named("welcome"), args)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	second, err := res.Resolve(context.Background(), job.Named("welcome"), args)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if first.Unit() == second.Unit() {
		t.Fatal("expected a fresh unit per resolution")
	}

	if _, err := first.Invoke(context.Background(), args); err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if _, ok := first.Failer(); !ok {
		t.Error("expected unit to expose its failure hook")
	}
}

func TestResolve_UnknownUnit(t *testing.T) {
	res := job.NewResolver(job.NewRegistry(), nil)
	_, err := res.Resolve(context.Background(), job.Named("missing"), nil)

	var instErr *job.InstantiationError
	if !errors.As(err, &instErr) {
		t.Fatalf("expected InstantiationError, got %v", err)
	}
	if instErr.Job != "missing" {
		t.Errorf("Job = %q, want missing", instErr.Job)
	}
	if !errors.Is(err, jobchain.ErrUnitNotFound) {
		t.Errorf("expected ErrUnitNotFound in chain, got %v", err)
	}
}

func TestResolve_ConstructorFailures(t *testing.T) {
	r := job.NewRegistry()
	boom := errors.New("bad config")
	r.MustRegister("erroring", func() (*sendWelcome, error) { return nil, boom })
	r.MustRegister("panicking", func() *sendWelcome { panic("ctor exploded") })
	r.MustRegister("needs-user", func(u user) *sendWelcome { return &sendWelcome{user: u} })
	res := job.NewResolver(r, nil)

	_, err := res.Resolve(context.Background(), job.Named("erroring"), nil)
	if !errors.Is(err, boom) {
		t.Errorf("expected constructor error, got %v", err)
	}

	_, err = res.Resolve(context.Background(), job.Named("panicking"), nil)
	if !errors.Is(err, invoke.ErrPanic) {
		t.Errorf("expected panic to surface as ErrPanic, got %v", err)
	}

	_, err = res.Resolve(context.Background(), job.Named("needs-user"), job.Args{"wrong"})
	if !errors.Is(err, invoke.ErrMissingArgument) {
		t.Errorf("expected ErrMissingArgument, got %v", err)
	}
}

func TestResolve_InlineActionReceivesArgs(t *testing.T) {
	res := job.NewResolver(nil, nil)
	var got user
	inv, err := res.Resolve(context.Background(), job.Inline(func(u user) bool {
		got = u
		return false
	}), nil)
	if err != nil {
		t.Fatalf("resolve: %v", err)
	}
	if inv.Unit() != nil {
		t.Error("inline action should not construct a unit")
	}

	out, err := inv.Invoke(context.Background(), job.Args{user{Email: "b@example.com"}})
	if err != nil {
		t.Fatalf("invoke: %v", err)
	}
	if out != false {
		t.Errorf("out = %v, want false", out)
	}
	if got.Email != "b@example.com" {
		t.Errorf("Email = %q", got.Email)
	}
	if _, ok := inv.Failer(); ok {
		t.Error("inline action has no failure hook")
	}
}

func TestRegisterFunc_ReceivesPassableTuple(t *testing.T) {
	r := job.NewRegistry()
	var got job.Args
	job.RegisterFunc(r, "orders.Capture", func(args job.Args) (job.Unit, error) {
		got = args
		return &sendWelcome{}, nil
	})

	res := job.NewResolver(r, nil)
	if _, err := res.Resolve(context.Background(), job.Named("orders.Capture"), job.Args{"o-1", 42}); err != nil {
		t.Fatalf("Resolve: %v", err)
	}
	if len(got) != 2 || got[0] != "o-1" || got[1] != 42 {
		t.Errorf("constructor args = %v", got)
	}

	if _, err := res.Resolve(context.Background(), job.Named("orders.Capture"), nil); err != nil {
		t.Errorf("Resolve without args: %v", err)
	}
	if len(got) != 0 {
		t.Errorf("constructor args = %v, want empty", got)
	}
}
