package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

// claimBatch bounds how many queue members DequeueTasks inspects per
// requested task; members scheduled for later are skipped.
const claimBatch = 4

// EnqueueTask stores the record and makes it claimable.
func (s *Store) EnqueueTask(ctx context.Context, t *task.Task) error {
	tID := t.ID.String()
	key := taskKey(tID)

	exists, err := s.client.Exists(ctx, key).Result()
	if err != nil {
		return fmt.Errorf("jobchain/redis: enqueue check exists: %w", err)
	}
	if exists > 0 {
		return jobchain.ErrTaskAlreadyExists
	}

	fields, err := taskFields(t)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, key, fields)
	pipe.SAdd(ctx, taskIDsKey, tID)
	if claimable(t.State) {
		pipe.ZAdd(ctx, queueKey(t.Queue), goredis.Z{Score: score(t.Priority, t.RunAt), Member: tID})
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobchain/redis: enqueue task: %w", err)
	}
	return nil
}

// DequeueTasks claims up to limit due tasks from queues in order.
func (s *Store) DequeueTasks(ctx context.Context, queues []string, limit int) ([]*task.Task, error) {
	now := time.Now().UTC()
	var claimed []*task.Task

	for _, q := range queues {
		if len(claimed) >= limit {
			break
		}
		qk := queueKey(q)

		members, err := s.client.ZRange(ctx, qk, 0, int64((limit-len(claimed))*claimBatch-1)).Result()
		if err != nil {
			return claimed, fmt.Errorf("jobchain/redis: dequeue zrange: %w", err)
		}

		for _, tID := range members {
			if len(claimed) >= limit {
				break
			}
			t, err := s.getTask(ctx, tID)
			if err != nil {
				// Record gone; drop the dangling member.
				s.client.ZRem(ctx, qk, tID)
				continue
			}
			if t.RunAt.After(now) {
				continue
			}

			removed, err := s.client.ZRem(ctx, qk, tID).Result()
			if err != nil {
				return claimed, fmt.Errorf("jobchain/redis: dequeue claim: %w", err)
			}
			if removed == 0 {
				continue // another worker won
			}

			started := now
			t.State = task.StateRunning
			t.StartedAt = &started
			t.HeartbeatAt = &started
			t.UpdatedAt = now
			if err := s.write(ctx, t); err != nil {
				return claimed, err
			}
			claimed = append(claimed, t)
		}
	}
	return claimed, nil
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, taskID id.TaskID) (*task.Task, error) {
	return s.getTask(ctx, taskID.String())
}

// UpdateTask persists t. Pending and retrying tasks become claimable
// again; every other state leaves the queue.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	tID := t.ID.String()
	exists, err := s.client.Exists(ctx, taskKey(tID)).Result()
	if err != nil {
		return fmt.Errorf("jobchain/redis: update task exists: %w", err)
	}
	if exists == 0 {
		return jobchain.ErrTaskNotFound
	}

	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	fields, err := taskFields(&cp)
	if err != nil {
		return err
	}

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, taskKey(tID), fields)
	if claimable(cp.State) {
		pipe.ZAdd(ctx, queueKey(cp.Queue), goredis.Z{Score: score(cp.Priority, cp.RunAt), Member: tID})
	} else {
		pipe.ZRem(ctx, queueKey(cp.Queue), tID)
	}
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobchain/redis: update task: %w", err)
	}
	return nil
}

// DeleteTask removes a task by ID.
func (s *Store) DeleteTask(ctx context.Context, taskID id.TaskID) error {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	tID := taskID.String()

	pipe := s.client.TxPipeline()
	pipe.Del(ctx, taskKey(tID))
	pipe.SRem(ctx, taskIDsKey, tID)
	pipe.ZRem(ctx, queueKey(t.Queue), tID)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobchain/redis: delete task: %w", err)
	}
	return nil
}

// ListTasksByState returns tasks in state, oldest first.
func (s *Store) ListTasksByState(ctx context.Context, state task.State, opts task.ListOpts) ([]*task.Task, error) {
	all, err := s.scan(ctx, func(t *task.Task) bool {
		return t.State == state && (opts.Queue == "" || t.Queue == opts.Queue)
	})
	if err != nil {
		return nil, err
	}
	sortByCreated(all)
	return page(all, opts.Offset, opts.Limit), nil
}

// HeartbeatTask records that workerID is still running the task.
func (s *Store) HeartbeatTask(ctx context.Context, taskID id.TaskID, workerID id.WorkerID) error {
	t, err := s.GetTask(ctx, taskID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	t.HeartbeatAt = &now
	t.WorkerID = workerID
	t.UpdatedAt = now
	return s.write(ctx, t)
}

// ReapStaleTasks returns running tasks whose heartbeat is older than
// threshold.
func (s *Store) ReapStaleTasks(ctx context.Context, threshold time.Duration) ([]*task.Task, error) {
	cutoff := time.Now().UTC().Add(-threshold)
	return s.scan(ctx, func(t *task.Task) bool {
		return t.State == task.StateRunning && t.HeartbeatAt != nil && t.HeartbeatAt.Before(cutoff)
	})
}

// CountTasks returns the number of tasks matching opts.
func (s *Store) CountTasks(ctx context.Context, opts task.CountOpts) (int64, error) {
	ids, err := s.client.SMembers(ctx, taskIDsKey).Result()
	if err != nil {
		return 0, fmt.Errorf("jobchain/redis: count smembers: %w", err)
	}

	var n int64
	for _, tID := range ids {
		vals, err := s.client.HMGet(ctx, taskKey(tID), "state", "queue").Result()
		if err != nil || vals[0] == nil {
			continue
		}
		st, _ := vals[0].(string)
		q, _ := vals[1].(string)
		if opts.State != "" && task.State(st) != opts.State {
			continue
		}
		if opts.Queue != "" && q != opts.Queue {
			continue
		}
		n++
	}
	return n, nil
}

// ── helpers ──

func claimable(s task.State) bool {
	return s == task.StatePending || s == task.StateRetrying
}

// score orders a queue set: higher priority first, then earlier RunAt.
func score(priority int, runAt time.Time) float64 {
	return float64(-priority) + float64(runAt.UnixMilli())/1e15
}

func taskFields(t *task.Task) (map[string]any, error) {
	data, err := json.Marshal(t)
	if err != nil {
		return nil, fmt.Errorf("jobchain/redis: encode task: %w", err)
	}
	return map[string]any{
		"data":  string(data),
		"state": string(t.State),
		"queue": t.Queue,
	}, nil
}

func (s *Store) write(ctx context.Context, t *task.Task) error {
	fields, err := taskFields(t)
	if err != nil {
		return err
	}
	if err := s.client.HSet(ctx, taskKey(t.ID.String()), fields).Err(); err != nil {
		return fmt.Errorf("jobchain/redis: write task: %w", err)
	}
	return nil
}

func (s *Store) getTask(ctx context.Context, tID string) (*task.Task, error) {
	data, err := s.client.HGet(ctx, taskKey(tID), "data").Result()
	if errors.Is(err, goredis.Nil) {
		return nil, jobchain.ErrTaskNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobchain/redis: get task: %w", err)
	}
	var t task.Task
	if err := json.Unmarshal([]byte(data), &t); err != nil {
		return nil, fmt.Errorf("jobchain/redis: decode task %s: %w", tID, err)
	}
	return &t, nil
}

func (s *Store) scan(ctx context.Context, keep func(*task.Task) bool) ([]*task.Task, error) {
	ids, err := s.client.SMembers(ctx, taskIDsKey).Result()
	if err != nil {
		return nil, fmt.Errorf("jobchain/redis: scan smembers: %w", err)
	}
	out := make([]*task.Task, 0, len(ids))
	for _, tID := range ids {
		t, err := s.getTask(ctx, tID)
		if err != nil {
			s.logger.Debug("skipping unreadable task", "task_id", tID, "error", err)
			continue
		}
		if keep(t) {
			out = append(out, t)
		}
	}
	return out, nil
}
