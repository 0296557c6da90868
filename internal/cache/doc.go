// Package cache provides byte-bounded LRU caching of shard lines.
//
// LRU is a single-mutex cache. Sharded spreads keys over 64 LRUs using
// maphash so that concurrent readers of one store rarely contend.
//
// Shards are immutable once written, so cached lines never need
// invalidation while a store is open.
package cache
