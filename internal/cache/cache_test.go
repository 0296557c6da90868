package cache

import (
	"sync"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestLRU_Eviction(t *testing.T) {
	c := NewLRU(10)

	c.Set(Key{0, 0}, []byte("aaaa"))
	c.Set(Key{0, 1}, []byte("bbbb"))
	_, ok := c.Get(Key{0, 0}) // touch a, b becomes oldest
	require.True(t, ok)

	c.Set(Key{0, 2}, []byte("cccc"))
	_, ok = c.Get(Key{0, 1})
	assert.False(t, ok, "least recently used entry should be evicted")
	_, ok = c.Get(Key{0, 0})
	assert.True(t, ok)
	assert.Equal(t, int64(8), c.Size())
	assert.Equal(t, 2, c.Len())
}

func TestLRU_EdgeCases(t *testing.T) {
	c := NewLRU(50)
	k := Key{Shard: 1, Line: 1}

	c.Set(k, make([]byte, 60))
	_, ok := c.Get(k)
	assert.False(t, ok, "item > capacity should not be cached")

	c.Set(k, make([]byte, 10))
	assert.Equal(t, int64(10), c.Size())
	c.Set(k, make([]byte, 20))
	assert.Equal(t, int64(20), c.Size())
	c.Set(k, make([]byte, 5))
	assert.Equal(t, int64(5), c.Size())
}

func TestLRU_Stats(t *testing.T) {
	c := NewLRU(100)
	c.Set(Key{1, 1}, []byte{1})
	c.Get(Key{1, 1})
	c.Get(Key{2, 2})

	hits, misses := c.Stats()
	assert.Equal(t, int64(1), hits)
	assert.Equal(t, int64(1), misses)
}

func TestSharded_Concurrent(t *testing.T) {
	c := NewSharded(1 << 20)

	var wg sync.WaitGroup
	for g := range 8 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := range 100 {
				k := Key{Shard: g, Line: i}
				c.Set(k, []byte("line"))
				got, ok := c.Get(k)
				assert.True(t, ok)
				assert.Equal(t, "line", string(got))
			}
		}()
	}
	wg.Wait()

	hits, misses := c.Stats()
	assert.Equal(t, int64(800), hits)
	assert.Zero(t, misses)
	assert.Equal(t, int64(800*4), c.Size())
}

func TestNew(t *testing.T) {
	assert.Nil(t, New(0))
	assert.NotNil(t, New(1024))
}
