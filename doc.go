// Package jobchain runs ordered lists of jobs as atomic chains on top of a
// background queue.
//
// A chain is declared once, with its jobs and its success, failure and
// finally callbacks, and is then triggered any number of times. Each trigger
// produces an independent bound copy that is either run inline or handed to
// the host queue, optionally deferred until the surrounding database
// transaction commits.
//
// # Quick Start
//
//	welcome := chain.Make(
//	    job.Named("mail.SendWelcome"),
//	    job.Named("crm.CreateContact"),
//	    job.Inline(func(ctx context.Context, u User) error { return audit(ctx, u) }),
//	).
//	    With(chain.WithRegistry(units), chain.WithDispatcher(eng)).
//	    ShouldEnqueue(true).
//	    Catch(func(ctx context.Context, err error) { alert(err) })
//
//	bus.Subscribe("user.registered", welcome.ToListener())
//
// # Execution Guarantees
//
// Jobs run one at a time in declared order. The first failing job stops the
// chain: later jobs never run, the failure callback receives the cause, and
// the wrapped error propagates to the host queue. A job returning the literal
// value false stops the chain without failing it. The finally callback runs
// exactly once on every path.
//
// # Architecture
//
// The chain package owns the state machine. Everything it talks to is a
// narrow collaborator: [invoke.Caller] for argument injection,
// [txn.Tracker] for transaction depth, [report.Reporter] for error
// reporting and chain.Dispatcher for submission. The engine package provides
// a reference host queue with retries, middleware and a dead letter queue.
package jobchain
