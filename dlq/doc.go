// Package dlq keeps chain runs that exhausted their retry budget.
//
// When a bound chain fails and its task has no retries left, the worker
// calls [Service.Push]. The entry records which chain failed, the job that
// broke it and the final error, so operators can inspect it and replay it.
//
//	svc := dlq.NewService(store, taskStore, runnables)
//	entries, _ := svc.DLQStore().ListDLQ(ctx, dlq.ListOpts{Limit: 50})
//	t, err := svc.Replay(ctx, entries[0].ID)
//
// Replay enqueues a fresh task for the same in-process runnable. Entries
// whose runnable belongs to a previous process cannot be replayed and
// return jobchain.ErrRunnableNotFound.
package dlq
