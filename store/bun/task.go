package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/uptrace/bun/dialect/pgdialect"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

// EnqueueTask persists a new task in pending state.
func (s *Store) EnqueueTask(ctx context.Context, t *task.Task) error {
	_, err := s.db.NewInsert().Model(toTaskModel(t)).Exec(ctx)
	if err != nil {
		if isDuplicateKey(err) {
			return jobchain.ErrTaskAlreadyExists
		}
		return fmt.Errorf("jobchain/bun: enqueue task: %w", err)
	}
	return nil
}

// DequeueTasks claims up to limit due tasks from queues with
// SELECT ... FOR UPDATE SKIP LOCKED, so concurrent workers never claim the
// same record.
func (s *Store) DequeueTasks(ctx context.Context, queues []string, limit int) ([]*task.Task, error) {
	var models []taskModel
	err := s.db.NewRaw(`
		WITH claimed AS (
			UPDATE jobchain_tasks
			SET state = 'running', started_at = NOW(), heartbeat_at = NOW(), updated_at = NOW()
			WHERE id IN (
				SELECT id FROM jobchain_tasks
				WHERE state IN ('pending', 'retrying')
				  AND queue = ANY(?0)
				  AND run_at <= NOW()
				ORDER BY priority DESC, run_at ASC
				FOR UPDATE SKIP LOCKED
				LIMIT ?1
			)
			RETURNING *
		)
		SELECT * FROM claimed ORDER BY priority DESC, run_at ASC`,
		pgdialect.Array(queues), limit,
	).Scan(ctx, &models)
	if err != nil {
		return nil, fmt.Errorf("jobchain/bun: dequeue tasks: %w", err)
	}
	return fromTaskModels(models)
}

// GetTask retrieves a task by ID.
func (s *Store) GetTask(ctx context.Context, taskID id.TaskID) (*task.Task, error) {
	m := new(taskModel)
	err := s.db.NewSelect().Model(m).Where("id = ?", taskID.String()).Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobchain.ErrTaskNotFound
		}
		return nil, fmt.Errorf("jobchain/bun: get task: %w", err)
	}
	return fromTaskModel(m)
}

// UpdateTask persists changes to an existing task.
func (s *Store) UpdateTask(ctx context.Context, t *task.Task) error {
	m := toTaskModel(t)
	m.UpdatedAt = time.Now().UTC()
	res, err := s.db.NewUpdate().Model(m).WherePK().Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobchain/bun: update task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobchain.ErrTaskNotFound
	}
	t.UpdatedAt = m.UpdatedAt
	return nil
}

// DeleteTask removes a task by ID.
func (s *Store) DeleteTask(ctx context.Context, taskID id.TaskID) error {
	res, err := s.db.NewDelete().TableExpr("jobchain_tasks").Where("id = ?", taskID.String()).Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobchain/bun: delete task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobchain.ErrTaskNotFound
	}
	return nil
}

// ListTasksByState returns tasks in state, oldest first.
func (s *Store) ListTasksByState(ctx context.Context, state task.State, opts task.ListOpts) ([]*task.Task, error) {
	var models []taskModel
	q := s.db.NewSelect().Model(&models).Where("state = ?", string(state))
	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	q = q.Order("created_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobchain/bun: list tasks by state: %w", err)
	}
	return fromTaskModels(models)
}

// HeartbeatTask refreshes the heartbeat of a running task.
func (s *Store) HeartbeatTask(ctx context.Context, taskID id.TaskID, workerID id.WorkerID) error {
	res, err := s.db.NewUpdate().
		TableExpr("jobchain_tasks").
		Set("heartbeat_at = NOW()").
		Set("updated_at = NOW()").
		Set("worker_id = ?", workerID.String()).
		Where("id = ?", taskID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobchain/bun: heartbeat task: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobchain.ErrTaskNotFound
	}
	return nil
}

// ReapStaleTasks returns running tasks whose heartbeat is older than
// threshold.
func (s *Store) ReapStaleTasks(ctx context.Context, threshold time.Duration) ([]*task.Task, error) {
	var models []taskModel
	err := s.db.NewSelect().Model(&models).
		Where("state = ?", string(task.StateRunning)).
		Where("heartbeat_at IS NOT NULL").
		Where("heartbeat_at < ?", time.Now().UTC().Add(-threshold)).
		Scan(ctx)
	if err != nil {
		return nil, fmt.Errorf("jobchain/bun: reap stale tasks: %w", err)
	}
	return fromTaskModels(models)
}

// CountTasks returns the number of tasks matching opts.
func (s *Store) CountTasks(ctx context.Context, opts task.CountOpts) (int64, error) {
	q := s.db.NewSelect().TableExpr("jobchain_tasks")
	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	if opts.State != "" {
		q = q.Where("state = ?", string(opts.State))
	}
	n, err := q.Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobchain/bun: count tasks: %w", err)
	}
	return int64(n), nil
}
