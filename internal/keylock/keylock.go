// Package keylock provides mutual exclusion scoped to individual key IDs.
//
// Redemption and device binding are read-modify-write sequences on a single
// key record; two concurrent requests for the same ID must serialize while
// requests for different IDs proceed independently.
package keylock

import (
	"hash/fnv"
	"sync"
)

const defaultShards = 64

// KeyLock serializes operations per key ID using a fixed set of shards.
type KeyLock struct {
	shards []sync.Mutex
}

// New constructs a KeyLock with the default shard count.
func New() *KeyLock {
	return &KeyLock{shards: make([]sync.Mutex, defaultShards)}
}

// Lock acquires the mutex for the given key ID and returns its unlock
// function. Callers must release on every exit path:
//
//	unlock := locks.Lock(id)
//	defer unlock()
func (l *KeyLock) Lock(id string) func() {
	shard := &l.shards[l.shardIndex(id)]
	shard.Lock()
	return shard.Unlock
}

func (l *KeyLock) shardIndex(id string) uint32 {
	h := fnv.New32a()
	_, _ = h.Write([]byte(id))
	return h.Sum32() % uint32(len(l.shards))
}
