// Package task defines the host-queue record for submitted runnables, its
// state machine, submission options and the store contract.
//
// A [Task] is the persisted view of one submission. The runnable itself
// (for example a bound chain) lives in process memory next to the engine;
// the store only tracks metadata so workers can claim, retry and
// dead-letter it:
//
//	pending → running → completed
//	pending → running → retrying → running → ...
//	pending → running → failed
//	pending → running → failed → dlq
//	pending → cancelled
//
// Fields of note:
//   - Queue: which queue the task belongs to (default: "default")
//   - Priority: higher values are dequeued first
//   - MaxRetries / RetryCount: controls retry budget
//   - RunAt: earliest time the task may be dequeued
//   - Timeout: advisory execution budget applied by the worker
package task
