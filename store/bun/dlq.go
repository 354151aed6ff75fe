package bunstore

import (
	"context"
	"fmt"
	"time"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/id"
)

// PushDLQ adds a dead letter entry.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	if _, err := s.db.NewInsert().Model(toDLQModel(entry)).Exec(ctx); err != nil {
		return fmt.Errorf("jobchain/bun: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries oldest first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	var models []dlqModel
	q := s.db.NewSelect().Model(&models)
	if opts.Queue != "" {
		q = q.Where("queue = ?", opts.Queue)
	}
	q = q.Order("failed_at ASC")
	if opts.Limit > 0 {
		q = q.Limit(opts.Limit)
	}
	if opts.Offset > 0 {
		q = q.Offset(opts.Offset)
	}
	if err := q.Scan(ctx); err != nil {
		return nil, fmt.Errorf("jobchain/bun: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(models))
	for i := range models {
		e, err := fromDLQModel(&models[i])
		if err != nil {
			return nil, err
		}
		entries = append(entries, e)
	}
	return entries, nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	m := new(dlqModel)
	err := s.db.NewSelect().Model(m).Where("id = ?", entryID.String()).Limit(1).Scan(ctx)
	if err != nil {
		if isNoRows(err) {
			return nil, jobchain.ErrDLQNotFound
		}
		return nil, fmt.Errorf("jobchain/bun: get dlq: %w", err)
	}
	return fromDLQModel(m)
}

// ReplayDLQ marks an entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	res, err := s.db.NewUpdate().
		TableExpr("jobchain_dlq").
		Set("replayed_at = NOW()").
		Where("id = ?", entryID.String()).
		Exec(ctx)
	if err != nil {
		return fmt.Errorf("jobchain/bun: replay dlq: %w", err)
	}
	if rows, _ := res.RowsAffected(); rows == 0 {
		return jobchain.ErrDLQNotFound
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	res, err := s.db.NewDelete().TableExpr("jobchain_dlq").Where("failed_at < ?", before).Exec(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobchain/bun: purge dlq: %w", err)
	}
	rows, _ := res.RowsAffected()
	return rows, nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.db.NewSelect().TableExpr("jobchain_dlq").Count(ctx)
	if err != nil {
		return 0, fmt.Errorf("jobchain/bun: count dlq: %w", err)
	}
	return int64(n), nil
}
