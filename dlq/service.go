package dlq

import (
	"context"
	"errors"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

// Service provides high-level DLQ operations over a Store.
type Service struct {
	store     Store
	taskStore task.Store
	runnables *task.Runnables
}

// NewService creates a DLQ service. runnables may be nil, in which case
// Replay always fails with jobchain.ErrRunnableNotFound.
func NewService(store Store, taskStore task.Store, runnables *task.Runnables) *Service {
	if runnables == nil {
		runnables = task.NewRunnables()
	}
	return &Service{store: store, taskStore: taskStore, runnables: runnables}
}

// Push records t as dead. The failing job is taken from runErr when it
// names one.
func (s *Service) Push(ctx context.Context, t *task.Task, runErr error) error {
	now := time.Now().UTC()
	entry := &Entry{
		ID:         id.NewDLQID(),
		TaskID:     t.ID,
		Chain:      t.Name,
		FailedJob:  failedJob(runErr),
		Queue:      t.Queue,
		Error:      runErr.Error(),
		RetryCount: t.RetryCount,
		MaxRetries: t.MaxRetries,
		Timeout:    t.Timeout,
		FailedAt:   now,
		CreatedAt:  now,
	}
	return s.store.PushDLQ(ctx, entry)
}

func failedJob(err error) string {
	var named interface{ JobName() string }
	if errors.As(err, &named) {
		return named.JobName()
	}
	return ""
}

// Replay enqueues a new pending task for the entry's runnable and marks
// the entry replayed. The new task gets a fresh ID and retry count.
func (s *Service) Replay(ctx context.Context, entryID id.DLQID) (*task.Task, error) {
	entry, err := s.store.GetDLQ(ctx, entryID)
	if err != nil {
		return nil, err
	}
	r, ok := s.runnables.Get(entry.TaskID)
	if !ok {
		return nil, jobchain.ErrRunnableNotFound
	}

	now := time.Now().UTC()
	t := &task.Task{
		ID:         id.NewTaskID(),
		Name:       entry.Chain,
		Queue:      entry.Queue,
		State:      task.StatePending,
		MaxRetries: entry.MaxRetries,
		Timeout:    entry.Timeout,
		RunAt:      now,
		CreatedAt:  now,
		UpdatedAt:  now,
	}
	s.runnables.Put(t.ID, r)

	if err := s.taskStore.EnqueueTask(ctx, t); err != nil {
		s.runnables.Delete(t.ID)
		return nil, err
	}
	s.runnables.Delete(entry.TaskID)

	if err := s.store.ReplayDLQ(ctx, entryID); err != nil {
		// The task is already enqueued.
		return t, err
	}
	return t, nil
}

// Purge removes entries that failed before the given time and releases
// the runnables they kept alive for replay.
func (s *Service) Purge(ctx context.Context, before time.Time) (int64, error) {
	entries, err := s.store.ListDLQ(ctx, ListOpts{})
	if err != nil {
		return 0, err
	}
	n, err := s.store.PurgeDLQ(ctx, before)
	if err != nil {
		return 0, err
	}
	for _, e := range entries {
		if e.FailedAt.Before(before) {
			s.runnables.Delete(e.TaskID)
		}
	}
	return n, nil
}

// DLQStore returns the underlying store for list, get, purge and count.
func (s *Service) DLQStore() Store {
	return s.store
}
