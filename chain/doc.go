// Package chain runs an ordered list of jobs as one atomic unit.
//
// A [Chain] is declared once and is reusable. Every trigger produces an
// independent [Bound] snapshot that owns its own passable arguments:
//
//	welcome := chain.Make(
//	    job.Named("users.CreateAccount"),
//	    job.Named("mail.SendWelcome"),
//	    job.Inline(func(ctx context.Context, u *User) bool { return u.Active }),
//	    job.Named("crm.Sync"),
//	).
//	    With(WithRegistry(units), WithDispatcher(eng)).
//	    Then(func(ctx context.Context) { ... }).
//	    Catch(func(ctx context.Context, cause error) { ... }).
//	    Finally(func(ctx context.Context) { ... }).
//	    ShouldEnqueue(true)
//
//	bus.Subscribe("user.registered", welcome.ToListener())
//
// Jobs run one at a time in declared order. The first failing job halts
// the chain: the failure callback receives the cause, the unit's own
// Failed hook runs, the wrapped [JobFailure] is reported and returned.
// A job that returns the literal value false stops the chain without
// failing it. The finally callback runs exactly once on every path.
//
// Listeners built with [Chain.ToListener] submit the snapshot to a
// [Dispatcher]. When the trigger happens inside an open transaction the
// submission waits for the outermost commit.
package chain
