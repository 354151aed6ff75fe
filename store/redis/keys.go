package redis

// All keys are prefixed with "jobchain:" to avoid collisions.
const keyPrefix = "jobchain:"

// taskKey returns the hash key of a task record.
func taskKey(id string) string { return keyPrefix + "task:" + id }

// queueKey returns the sorted set of claimable tasks of a queue.
func queueKey(name string) string { return keyPrefix + "queue:" + name }

// taskIDsKey is the set of all task IDs.
const taskIDsKey = keyPrefix + "task_ids"

// dlqKey returns the hash key of a dead letter entry.
func dlqKey(id string) string { return keyPrefix + "dlq:" + id }

// dlqIndexKey orders dead letter IDs by failure time.
const dlqIndexKey = keyPrefix + "dlq_index"
