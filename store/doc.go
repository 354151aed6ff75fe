// Package store defines the aggregate persistence interface for the host
// queue.
//
// The task record store ([task.Store]) and the dead letter store
// ([dlq.Store]) are separate contracts; a backend implements both plus
// lifecycle methods to satisfy [Store].
//
// # Available Backends
//
//   - store/memory: in-process maps, for tests and single-process runs
//   - store/redis: Redis hashes and sorted sets, shared between processes
//
// Only task metadata is persisted. The runnable behind a record stays in
// the memory of the process that submitted it.
//
//	s := redis.New(client)
//	if err := s.Migrate(ctx); err != nil {
//	    log.Fatal(err)
//	}
//	eng, err := engine.Build(engine.WithStore(s))
package store
