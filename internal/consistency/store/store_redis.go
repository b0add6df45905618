package store

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"chainsense/internal/telemetry"
	"chainsense/pkg/platform/sentinel"
)

const (
	// Redis key prefix for last-known telemetry records.
	lastRecordKeyPrefix = "telemetry:last:"

	// defaultRetention bounds state growth for shipments that stop reporting.
	defaultRetention = 72 * time.Hour
)

// RedisLastRecordStore shares last-known-record state across pipeline
// instances. GETSET gives the atomic read-and-replace per key; a TTL refresh
// on every swap implements the retention policy.
type RedisLastRecordStore struct {
	client    *redis.Client
	retention time.Duration
}

// RedisLastRecordStoreOption configures a RedisLastRecordStore.
type RedisLastRecordStoreOption func(*RedisLastRecordStore)

// WithRetention overrides how long idle keys are kept.
func WithRetention(d time.Duration) RedisLastRecordStoreOption {
	return func(s *RedisLastRecordStore) {
		if d > 0 {
			s.retention = d
		}
	}
}

// NewRedisLastRecordStore constructs a Redis-backed LastRecordStore.
func NewRedisLastRecordStore(client *redis.Client, opts ...RedisLastRecordStoreOption) *RedisLastRecordStore {
	s := &RedisLastRecordStore{client: client, retention: defaultRetention}
	for _, opt := range opts {
		if opt != nil {
			opt(s)
		}
	}
	return s
}

func (s *RedisLastRecordStore) Swap(ctx context.Context, key string, rec telemetry.NormalizedRecord) (telemetry.NormalizedRecord, bool, error) {
	payload, err := json.Marshal(rec)
	if err != nil {
		return telemetry.NormalizedRecord{}, false, fmt.Errorf("marshal record: %w", err)
	}

	redisKey := lastRecordKeyPrefix + key
	prevPayload, err := s.client.GetSet(ctx, redisKey, payload).Result()
	if err != nil && !errors.Is(err, redis.Nil) {
		return telemetry.NormalizedRecord{}, false, fmt.Errorf("getset %s: %w", redisKey, sentinel.ErrUnavailable)
	}
	if expireErr := s.client.Expire(ctx, redisKey, s.retention).Err(); expireErr != nil {
		return telemetry.NormalizedRecord{}, false, fmt.Errorf("expire %s: %w", redisKey, sentinel.ErrUnavailable)
	}
	if errors.Is(err, redis.Nil) {
		return telemetry.NormalizedRecord{}, false, nil
	}

	var prev telemetry.NormalizedRecord
	if err := json.Unmarshal([]byte(prevPayload), &prev); err != nil {
		return telemetry.NormalizedRecord{}, false, fmt.Errorf("unmarshal previous record: %w", err)
	}
	return prev, true, nil
}

func (s *RedisLastRecordStore) Clear(ctx context.Context, key string) error {
	if err := s.client.Del(ctx, lastRecordKeyPrefix+key).Err(); err != nil {
		return fmt.Errorf("del %s: %w", key, sentinel.ErrUnavailable)
	}
	return nil
}
