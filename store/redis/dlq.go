package redis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"time"

	goredis "github.com/redis/go-redis/v9"

	"github.com/risetechapps/jobchain"
	"github.com/risetechapps/jobchain/dlq"
	"github.com/risetechapps/jobchain/id"
	"github.com/risetechapps/jobchain/task"
)

// PushDLQ adds an entry and indexes it by failure time.
func (s *Store) PushDLQ(ctx context.Context, entry *dlq.Entry) error {
	data, err := json.Marshal(entry)
	if err != nil {
		return fmt.Errorf("jobchain/redis: encode dlq: %w", err)
	}
	eID := entry.ID.String()

	pipe := s.client.TxPipeline()
	pipe.HSet(ctx, dlqKey(eID), "data", string(data), "queue", entry.Queue)
	pipe.ZAdd(ctx, dlqIndexKey, goredis.Z{Score: float64(entry.FailedAt.UnixNano()), Member: eID})
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("jobchain/redis: push dlq: %w", err)
	}
	return nil
}

// ListDLQ returns entries matching opts, oldest failure first.
func (s *Store) ListDLQ(ctx context.Context, opts dlq.ListOpts) ([]*dlq.Entry, error) {
	ids, err := s.client.ZRange(ctx, dlqIndexKey, 0, -1).Result()
	if err != nil {
		return nil, fmt.Errorf("jobchain/redis: list dlq: %w", err)
	}

	entries := make([]*dlq.Entry, 0, len(ids))
	for _, eID := range ids {
		e, err := s.getDLQ(ctx, eID)
		if err != nil {
			continue
		}
		if opts.Queue != "" && e.Queue != opts.Queue {
			continue
		}
		entries = append(entries, e)
	}
	return page(entries, opts.Offset, opts.Limit), nil
}

// GetDLQ retrieves an entry by ID.
func (s *Store) GetDLQ(ctx context.Context, entryID id.DLQID) (*dlq.Entry, error) {
	return s.getDLQ(ctx, entryID.String())
}

// ReplayDLQ marks an entry as replayed.
func (s *Store) ReplayDLQ(ctx context.Context, entryID id.DLQID) error {
	e, err := s.GetDLQ(ctx, entryID)
	if err != nil {
		return err
	}
	now := time.Now().UTC()
	e.ReplayedAt = &now

	data, err := json.Marshal(e)
	if err != nil {
		return fmt.Errorf("jobchain/redis: encode dlq: %w", err)
	}
	if err := s.client.HSet(ctx, dlqKey(entryID.String()), "data", string(data)).Err(); err != nil {
		return fmt.Errorf("jobchain/redis: replay dlq: %w", err)
	}
	return nil
}

// PurgeDLQ removes entries that failed before the given time.
func (s *Store) PurgeDLQ(ctx context.Context, before time.Time) (int64, error) {
	ids, err := s.client.ZRangeByScore(ctx, dlqIndexKey, &goredis.ZRangeBy{
		Min: "-inf",
		Max: "(" + strconv.FormatInt(before.UnixNano(), 10),
	}).Result()
	if err != nil {
		return 0, fmt.Errorf("jobchain/redis: purge dlq range: %w", err)
	}
	if len(ids) == 0 {
		return 0, nil
	}

	pipe := s.client.TxPipeline()
	members := make([]any, len(ids))
	for i, eID := range ids {
		pipe.Del(ctx, dlqKey(eID))
		members[i] = eID
	}
	pipe.ZRem(ctx, dlqIndexKey, members...)
	if _, err := pipe.Exec(ctx); err != nil {
		return 0, fmt.Errorf("jobchain/redis: purge dlq: %w", err)
	}
	return int64(len(ids)), nil
}

// CountDLQ returns the number of entries.
func (s *Store) CountDLQ(ctx context.Context) (int64, error) {
	n, err := s.client.ZCard(ctx, dlqIndexKey).Result()
	if err != nil {
		return 0, fmt.Errorf("jobchain/redis: count dlq: %w", err)
	}
	return n, nil
}

func (s *Store) getDLQ(ctx context.Context, eID string) (*dlq.Entry, error) {
	data, err := s.client.HGet(ctx, dlqKey(eID), "data").Result()
	if errors.Is(err, goredis.Nil) {
		return nil, jobchain.ErrDLQNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("jobchain/redis: get dlq: %w", err)
	}
	var e dlq.Entry
	if err := json.Unmarshal([]byte(data), &e); err != nil {
		return nil, fmt.Errorf("jobchain/redis: decode dlq %s: %w", eID, err)
	}
	return &e, nil
}

func sortByCreated(tasks []*task.Task) {
	sort.Slice(tasks, func(i, k int) bool {
		return tasks[i].CreatedAt.Before(tasks[k].CreatedAt)
	})
}

func page[T any](items []T, offset, limit int) []T {
	if offset > 0 {
		if offset >= len(items) {
			return nil
		}
		items = items[offset:]
	}
	if limit > 0 && len(items) > limit {
		items = items[:limit]
	}
	return items
}
