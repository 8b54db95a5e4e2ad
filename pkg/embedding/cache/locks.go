package cache

import (
	"hash/fnv"
	"sync"
)

const lockShards = 64

// keyedMutex serializes mutating operations per key with a fixed set
// of sharded locks. Two different keys may share a shard; that only
// costs contention, never correctness.
type keyedMutex struct {
	shards [lockShards]sync.Mutex
}

// lock acquires the shard for the key and returns the unlock func.
func (m *keyedMutex) lock(key CacheKey) func() {
	shard := &m.shards[shardIndex(key)]
	shard.Lock()
	return shard.Unlock
}

func shardIndex(key CacheKey) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(key))
	return h.Sum32() % lockShards
}
