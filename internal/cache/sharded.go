package cache

import (
	"encoding/binary"
	"hash/maphash"
)

const numShards = 64

// Sharded distributes entries across 64 LRUs to reduce lock contention.
type Sharded struct {
	shards [numShards]*LRU
	seed   maphash.Seed
}

var _ LineCache = (*Sharded)(nil)

// NewSharded creates a sharded LRU. The capacity is divided evenly across
// all shards.
func NewSharded(capacity int64) *Sharded {
	shardCapacity := max(capacity/numShards, 1)

	s := &Sharded{seed: maphash.MakeSeed()}
	for i := range numShards {
		s.shards[i] = NewLRU(shardCapacity)
	}
	return s
}

func (s *Sharded) shard(key Key) *LRU {
	var buf [16]byte
	binary.LittleEndian.PutUint64(buf[0:], uint64(key.Shard))
	binary.LittleEndian.PutUint64(buf[8:], uint64(key.Line))
	return s.shards[maphash.Bytes(s.seed, buf[:])%numShards]
}

// Get returns a cached line.
func (s *Sharded) Get(key Key) ([]byte, bool) {
	return s.shard(key).Get(key)
}

// Set caches a line.
func (s *Sharded) Set(key Key, b []byte) {
	s.shard(key).Set(key, b)
}

// Stats returns aggregated hit/miss statistics.
func (s *Sharded) Stats() (hits, misses int64) {
	for i := range numShards {
		h, m := s.shards[i].Stats()
		hits += h
		misses += m
	}
	return hits, misses
}

// Size returns the total size across all shards.
func (s *Sharded) Size() int64 {
	var total int64
	for i := range numShards {
		total += s.shards[i].Size()
	}
	return total
}
