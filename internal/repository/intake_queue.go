package repository

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"

	"github.com/redis/go-redis/v9"

	"github.com/courseflow/courseflow/internal/domain"
	"github.com/courseflow/courseflow/internal/service"
)

// QueueKey is the sorted-set key holding a course's pending requests.
func QueueKey(courseID int64) string {
	return fmt.Sprintf("queue:course:%d", courseID)
}

// EncodeQueuedRequest renders the canonical member encoding. json.Marshal
// emits struct fields in declaration order, so the same logical request is
// always byte-identical and a retry updates the member's score in place
// instead of duplicating it.
func EncodeQueuedRequest(req domain.QueuedRequest) (string, error) {
	raw, err := json.Marshal(req)
	if err != nil {
		return "", err
	}
	return string(raw), nil
}

// DecodeQueuedRequest parses a queue member produced by EncodeQueuedRequest
// (or by any client that writes the canonical triple).
func DecodeQueuedRequest(member string) (domain.QueuedRequest, error) {
	var req domain.QueuedRequest
	if err := json.Unmarshal([]byte(member), &req); err != nil {
		return domain.QueuedRequest{}, fmt.Errorf("decode queue member: %w", err)
	}
	if req.IdempotencyKey == "" {
		return domain.QueuedRequest{}, errors.New("decode queue member: empty idempotency key")
	}
	return req, nil
}

type redisIntakeQueue struct {
	rdb *redis.Client
}

// NewIntakeQueue returns the Redis-backed ordered intake queue.
func NewIntakeQueue(rdb *redis.Client) service.IntakeQueue {
	return &redisIntakeQueue{rdb: rdb}
}

func (q *redisIntakeQueue) Add(ctx context.Context, req domain.QueuedRequest, score float64) error {
	member, err := EncodeQueuedRequest(req)
	if err != nil {
		return err
	}
	return q.rdb.ZAdd(ctx, QueueKey(req.CourseID), redis.Z{Score: score, Member: member}).Err()
}

// PopMin atomically removes and returns the minimum-score member. The third
// return is false when the queue is empty. The raw member is returned even
// when decoding fails so the caller can log what it dropped.
func (q *redisIntakeQueue) PopMin(ctx context.Context, courseID int64) (domain.QueuedRequest, string, bool, error) {
	entries, err := q.rdb.ZPopMin(ctx, QueueKey(courseID), 1).Result()
	if err != nil {
		return domain.QueuedRequest{}, "", false, err
	}
	if len(entries) == 0 {
		return domain.QueuedRequest{}, "", false, nil
	}
	member, _ := entries[0].Member.(string)
	req, err := DecodeQueuedRequest(member)
	if err != nil {
		return domain.QueuedRequest{}, member, true, err
	}
	return req, member, true, nil
}

// Rank reports the zero-based queue position, or false when the member is
// no longer queued (e.g. already popped).
func (q *redisIntakeQueue) Rank(ctx context.Context, req domain.QueuedRequest) (int64, bool, error) {
	member, err := EncodeQueuedRequest(req)
	if err != nil {
		return 0, false, err
	}
	rank, err := q.rdb.ZRank(ctx, QueueKey(req.CourseID), member).Result()
	if errors.Is(err, redis.Nil) {
		return 0, false, nil
	}
	if err != nil {
		return 0, false, err
	}
	return rank, true, nil
}

func (q *redisIntakeQueue) Depth(ctx context.Context, courseID int64) (int64, error) {
	return q.rdb.ZCard(ctx, QueueKey(courseID)).Result()
}

// Ping exposes the queue-service liveness probe for /ready.
func (q *redisIntakeQueue) Ping(ctx context.Context) error {
	return q.rdb.Ping(ctx).Err()
}
