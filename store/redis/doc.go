// Package redis implements store.Store on Redis so several processes can
// share one task table.
//
// Layout, under the "jobchain:" prefix:
//
//	task:{id}       hash   record JSON plus state and queue fields
//	task_ids        set    every task ID
//	queue:{name}    zset   claimable task IDs, best priority first
//	dlq:{id}        hash   dead letter entry JSON
//	dlq_index       zset   dead letter IDs scored by failure time
//
// A task is claimed by whichever worker removes it from its queue set
// first, so concurrent DequeueTasks calls never hand out the same task.
package redis
