// Package audithook turns host-queue lifecycle events and chain failures
// into structured audit events.
//
// The Extension implements the ext task hooks, so registering it with the
// engine records every enqueue, start, completion, retry, failure and
// dead-letter of a chain task. Its Reporter method returns a
// report.Reporter that records job failures and failed compensation hooks
// from inside a chain run:
//
//	audit := audithook.New(audithook.LogRecorder(logger))
//	eng, _ := engine.New(engine.WithStore(s), engine.WithExtension(audit))
//	c := eng.Chain(jobs, chain.WithReporter(audit.Reporter()))
//
// Severity is info for normal operation, warning for retries and failed
// compensation hooks, critical for terminal failures.
package audithook
