package memory

import (
	"context"
	"sort"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

// EnqueueTask persists a new task.
func (m *Store) EnqueueTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.ID.String()
	if _, exists := m.tasks[key]; exists {
		return jobchain.ErrTaskAlreadyExists
	}
	cp := *t
	m.tasks[key] = &cp
	return nil
}

// DequeueTasks claims up to limit due pending or retrying tasks from
// queues, highest priority first, then oldest RunAt.
func (m *Store) DequeueTasks(_ context.Context, queues []string, limit int) ([]*task.Task, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	wanted := make(map[string]bool, len(queues))
	for _, q := range queues {
		wanted[q] = true
	}
	now := time.Now().UTC()

	due := make([]*task.Task, 0, len(m.tasks))
	for _, t := range m.tasks {
		if t.State != task.StatePending && t.State != task.StateRetrying {
			continue
		}
		if t.RunAt.After(now) {
			continue
		}
		if len(wanted) > 0 && !wanted[t.Queue] {
			continue
		}
		due = append(due, t)
	}

	sort.Slice(due, func(i, k int) bool {
		if due[i].Priority != due[k].Priority {
			return due[i].Priority > due[k].Priority
		}
		return due[i].RunAt.Before(due[k].RunAt)
	})
	due = page(due, 0, limit)

	claimed := make([]*task.Task, len(due))
	for i, t := range due {
		started := now
		t.State = task.StateRunning
		t.StartedAt = &started
		t.HeartbeatAt = &started
		t.UpdatedAt = now
		cp := *t
		claimed[i] = &cp
	}
	return claimed, nil
}

// GetTask retrieves a task by ID.
func (m *Store) GetTask(_ context.Context, taskID id.TaskID) (*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	t, ok := m.tasks[taskID.String()]
	if !ok {
		return nil, jobchain.ErrTaskNotFound
	}
	cp := *t
	return &cp, nil
}

// UpdateTask persists changes to an existing task.
func (m *Store) UpdateTask(_ context.Context, t *task.Task) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := t.ID.String()
	if _, ok := m.tasks[key]; !ok {
		return jobchain.ErrTaskNotFound
	}
	cp := *t
	cp.UpdatedAt = time.Now().UTC()
	m.tasks[key] = &cp
	return nil
}

// DeleteTask removes a task by ID.
func (m *Store) DeleteTask(_ context.Context, taskID id.TaskID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	key := taskID.String()
	if _, ok := m.tasks[key]; !ok {
		return jobchain.ErrTaskNotFound
	}
	delete(m.tasks, key)
	return nil
}

// ListTasksByState returns tasks in state, oldest first.
func (m *Store) ListTasksByState(_ context.Context, state task.State, opts task.ListOpts) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	result := make([]*task.Task, 0)
	for _, t := range m.tasks {
		if t.State != state {
			continue
		}
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		cp := *t
		result = append(result, &cp)
	}
	sort.Slice(result, func(i, k int) bool {
		return result[i].CreatedAt.Before(result[k].CreatedAt)
	})
	return page(result, opts.Offset, opts.Limit), nil
}

// HeartbeatTask updates the heartbeat timestamp for a running task.
func (m *Store) HeartbeatTask(_ context.Context, taskID id.TaskID, workerID id.WorkerID) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	t, ok := m.tasks[taskID.String()]
	if !ok {
		return jobchain.ErrTaskNotFound
	}
	now := time.Now().UTC()
	t.HeartbeatAt = &now
	t.WorkerID = workerID
	return nil
}

// ReapStaleTasks returns running tasks whose last heartbeat is older than
// threshold.
func (m *Store) ReapStaleTasks(_ context.Context, threshold time.Duration) ([]*task.Task, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	cutoff := time.Now().UTC().Add(-threshold)
	var stale []*task.Task
	for _, t := range m.tasks {
		if t.State == task.StateRunning && t.HeartbeatAt != nil && t.HeartbeatAt.Before(cutoff) {
			cp := *t
			stale = append(stale, &cp)
		}
	}
	return stale, nil
}

// CountTasks returns the number of tasks matching opts.
func (m *Store) CountTasks(_ context.Context, opts task.CountOpts) (int64, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()

	var n int64
	for _, t := range m.tasks {
		if opts.Queue != "" && t.Queue != opts.Queue {
			continue
		}
		if opts.State != "" && t.State != opts.State {
			continue
		}
		n++
	}
	return n, nil
}
