package store

import (
	"context"
	"hash/fnv"
	"sync"

	"chainsense/internal/telemetry"
)

const defaultShardCount = 64

// InMemoryLastRecordStore is a sharded in-process LastRecordStore. Shards keep
// distinct keys from contending on one lock while the per-shard mutex makes
// Swap atomic for records that hash to the same shard.
type InMemoryLastRecordStore struct {
	shards []*recordShard
}

type recordShard struct {
	mu      sync.Mutex
	records map[string]telemetry.NormalizedRecord
}

// NewInMemoryLastRecordStore constructs an empty sharded store.
func NewInMemoryLastRecordStore() *InMemoryLastRecordStore {
	shards := make([]*recordShard, defaultShardCount)
	for i := range shards {
		shards[i] = &recordShard{records: make(map[string]telemetry.NormalizedRecord)}
	}
	return &InMemoryLastRecordStore{shards: shards}
}

func (s *InMemoryLastRecordStore) Swap(_ context.Context, key string, rec telemetry.NormalizedRecord) (telemetry.NormalizedRecord, bool, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	prev, existed := shard.records[key]
	shard.records[key] = rec
	return prev, existed, nil
}

func (s *InMemoryLastRecordStore) Clear(_ context.Context, key string) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.records, key)
	return nil
}

// Len reports the number of tracked keys across all shards.
func (s *InMemoryLastRecordStore) Len() int {
	total := 0
	for _, shard := range s.shards {
		shard.mu.Lock()
		total += len(shard.records)
		shard.mu.Unlock()
	}
	return total
}

func (s *InMemoryLastRecordStore) shardFor(key string) *recordShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}
