package cache

// Key identifies one line of one shard.
type Key struct {
	Shard int
	Line  int
}

// LineCache caches raw shard lines.
// Returned slices must be treated as read-only.
type LineCache interface {
	// Get returns a cached line. ok=false if missing.
	Get(key Key) (b []byte, ok bool)
	// Set caches a line. The caller must not modify b afterwards.
	Set(key Key, b []byte)
	// Stats returns hit/miss counters.
	Stats() (hits, misses int64)
	// Size returns the cached bytes.
	Size() int64
}

// New returns a sharded LRU holding at most capacity bytes, or nil when
// capacity is not positive.
func New(capacity int64) LineCache {
	if capacity <= 0 {
		return nil
	}
	return NewSharded(capacity)
}
