package coredata

import (
	"sync/atomic"
	"time"
)

// MetricsCollector defines an interface for collecting operational metrics.
// Implement this interface to integrate with monitoring systems like
// Prometheus (see internal/metrics for the collector the CLI uses).
type MetricsCollector interface {
	// RecordConvert is called once per conversion. records counts ingested
	// records, dropped the duplicates removed, shards the files written.
	RecordConvert(records, dropped, shards int, duration time.Duration, err error)

	// RecordOpen is called after each Open.
	RecordOpen(rows, shards int, duration time.Duration, err error)

	// RecordFetch is called after each line fetch. cacheHit reports whether
	// the line came from the line cache.
	RecordFetch(duration time.Duration, cacheHit bool, err error)

	// RecordIterate is called when an iteration ends.
	RecordIterate(yielded, skipped int, duration time.Duration)
}

// NoopMetricsCollector is a no-op implementation of MetricsCollector.
type NoopMetricsCollector struct{}

func (NoopMetricsCollector) RecordConvert(int, int, int, time.Duration, error) {}
func (NoopMetricsCollector) RecordOpen(int, int, time.Duration, error)         {}
func (NoopMetricsCollector) RecordFetch(time.Duration, bool, error)            {}
func (NoopMetricsCollector) RecordIterate(int, int, time.Duration)             {}

// BasicMetricsCollector provides simple in-memory metrics collection.
// Useful for debugging and tests without external dependencies.
type BasicMetricsCollector struct {
	ConvertCount    atomic.Int64
	ConvertErrors   atomic.Int64
	RecordsIngested atomic.Int64
	RecordsDropped  atomic.Int64
	ShardsWritten   atomic.Int64
	OpenCount       atomic.Int64
	OpenErrors      atomic.Int64
	FetchCount      atomic.Int64
	FetchErrors     atomic.Int64
	FetchCacheHits  atomic.Int64
	FetchTotalNanos atomic.Int64
	IterateCount    atomic.Int64
	IterateYielded  atomic.Int64
	IterateSkipped  atomic.Int64
}

// RecordConvert implements MetricsCollector.
func (b *BasicMetricsCollector) RecordConvert(records, dropped, shards int, _ time.Duration, err error) {
	b.ConvertCount.Add(1)
	b.RecordsIngested.Add(int64(records))
	b.RecordsDropped.Add(int64(dropped))
	b.ShardsWritten.Add(int64(shards))
	if err != nil {
		b.ConvertErrors.Add(1)
	}
}

// RecordOpen implements MetricsCollector.
func (b *BasicMetricsCollector) RecordOpen(_, _ int, _ time.Duration, err error) {
	b.OpenCount.Add(1)
	if err != nil {
		b.OpenErrors.Add(1)
	}
}

// RecordFetch implements MetricsCollector.
func (b *BasicMetricsCollector) RecordFetch(duration time.Duration, cacheHit bool, err error) {
	b.FetchCount.Add(1)
	b.FetchTotalNanos.Add(duration.Nanoseconds())
	if cacheHit {
		b.FetchCacheHits.Add(1)
	}
	if err != nil {
		b.FetchErrors.Add(1)
	}
}

// RecordIterate implements MetricsCollector.
func (b *BasicMetricsCollector) RecordIterate(yielded, skipped int, _ time.Duration) {
	b.IterateCount.Add(1)
	b.IterateYielded.Add(int64(yielded))
	b.IterateSkipped.Add(int64(skipped))
}

// GetStats returns a snapshot of current metrics.
func (b *BasicMetricsCollector) GetStats() BasicMetricsStats {
	return BasicMetricsStats{
		ConvertCount:    b.ConvertCount.Load(),
		ConvertErrors:   b.ConvertErrors.Load(),
		RecordsIngested: b.RecordsIngested.Load(),
		RecordsDropped:  b.RecordsDropped.Load(),
		ShardsWritten:   b.ShardsWritten.Load(),
		OpenCount:       b.OpenCount.Load(),
		OpenErrors:      b.OpenErrors.Load(),
		FetchCount:      b.FetchCount.Load(),
		FetchErrors:     b.FetchErrors.Load(),
		FetchCacheHits:  b.FetchCacheHits.Load(),
		FetchAvgNanos:   b.getAvgFetchNanos(),
		IterateCount:    b.IterateCount.Load(),
		IterateYielded:  b.IterateYielded.Load(),
		IterateSkipped:  b.IterateSkipped.Load(),
	}
}

func (b *BasicMetricsCollector) getAvgFetchNanos() int64 {
	count := b.FetchCount.Load()
	if count == 0 {
		return 0
	}
	return b.FetchTotalNanos.Load() / count
}

// BasicMetricsStats is a snapshot of BasicMetricsCollector state.
type BasicMetricsStats struct {
	ConvertCount    int64
	ConvertErrors   int64
	RecordsIngested int64
	RecordsDropped  int64
	ShardsWritten   int64
	OpenCount       int64
	OpenErrors      int64
	FetchCount      int64
	FetchErrors     int64
	FetchCacheHits  int64
	FetchAvgNanos   int64
	IterateCount    int64
	IterateYielded  int64
	IterateSkipped  int64
}
