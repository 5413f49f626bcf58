package progress

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rpattn/memberdesk/internal/domain"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

const redisKeyPrefix = "memberdesk:import:progress:"

// RedisTracker shares snapshots between server instances through Redis.
type RedisTracker struct {
	rdb *redis.Client
	ttl time.Duration
}

// NewRedisTracker wraps an existing client. Each write refreshes the key TTL.
func NewRedisTracker(rdb *redis.Client, ttl time.Duration) *RedisTracker {
	if ttl <= 0 {
		ttl = time.Hour
	}
	return &RedisTracker{rdb: rdb, ttl: ttl}
}

func (t *RedisTracker) Update(ctx context.Context, logID uuid.UUID, processed, total int) error {
	return t.set(ctx, running(logID, processed, total, time.Now()))
}

func (t *RedisTracker) Finish(ctx context.Context, logID uuid.UUID, results []domain.ImportResult) error {
	return t.set(ctx, finished(logID, results, time.Now()))
}

func (t *RedisTracker) Get(ctx context.Context, logID uuid.UUID) (Snapshot, error) {
	raw, err := t.rdb.Get(ctx, redisKey(logID)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return Snapshot{}, ErrNotFound
		}
		return Snapshot{}, fmt.Errorf("failed to read progress: %w", err)
	}

	var snapshot Snapshot
	if err := json.Unmarshal(raw, &snapshot); err != nil {
		return Snapshot{}, fmt.Errorf("failed to decode progress: %w", err)
	}
	return snapshot, nil
}

func (t *RedisTracker) set(ctx context.Context, snapshot Snapshot) error {
	payload, err := json.Marshal(snapshot)
	if err != nil {
		return fmt.Errorf("failed to encode progress: %w", err)
	}
	if err := t.rdb.Set(ctx, redisKey(snapshot.LogID), payload, t.ttl).Err(); err != nil {
		return fmt.Errorf("failed to write progress: %w", err)
	}
	return nil
}

func redisKey(logID uuid.UUID) string {
	return redisKeyPrefix + logID.String()
}
