package geofence

import (
	"context"
	"hash/fnv"
	"sync"
)

// MembershipStore tracks whether a device was last seen inside a zone, keyed
// by (device, geofence). Unknown keys read as outside, so the first sample
// observed inside a zone produces an ENTER.
type MembershipStore interface {
	// Swap stores the new membership under key and returns the previous one.
	// Atomic per key.
	Swap(ctx context.Context, key string, inside bool) (bool, error)

	// Clear forgets a key.
	Clear(ctx context.Context, key string) error
}

const membershipShardCount = 64

// InMemoryMembershipStore is a sharded in-process MembershipStore.
type InMemoryMembershipStore struct {
	shards []*membershipShard
}

type membershipShard struct {
	mu     sync.Mutex
	inside map[string]bool
}

// NewInMemoryMembershipStore constructs an empty sharded store.
func NewInMemoryMembershipStore() *InMemoryMembershipStore {
	shards := make([]*membershipShard, membershipShardCount)
	for i := range shards {
		shards[i] = &membershipShard{inside: make(map[string]bool)}
	}
	return &InMemoryMembershipStore{shards: shards}
}

func (s *InMemoryMembershipStore) Swap(_ context.Context, key string, inside bool) (bool, error) {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()

	prev := shard.inside[key]
	if inside {
		shard.inside[key] = true
	} else {
		// Outside is the zero state; deleting keeps the map from accumulating
		// every zone a device ever passed.
		delete(shard.inside, key)
	}
	return prev, nil
}

func (s *InMemoryMembershipStore) Clear(_ context.Context, key string) error {
	shard := s.shardFor(key)
	shard.mu.Lock()
	defer shard.mu.Unlock()
	delete(shard.inside, key)
	return nil
}

func (s *InMemoryMembershipStore) shardFor(key string) *membershipShard {
	h := fnv.New32a()
	h.Write([]byte(key))
	return s.shards[h.Sum32()%uint32(len(s.shards))]
}
