package coredata

import (
	"log/slog"
	"math/rand/v2"

	"github.com/hupe1980/coredata/codec"
)

// DefaultLinesPerShard is the shard capacity used when none is configured.
const DefaultLinesPerShard = 10000

// DefaultIndexConcurrency bounds how many shards Open indexes at once.
const DefaultIndexConcurrency = 8

type options struct {
	codec            codec.Codec
	logger           *Logger
	metricsCollector MetricsCollector
	linesPerShard    int
	keepRaw          bool
	indexConcurrency int
	lineCacheBytes   int64
}

func defaultOptions() options {
	return options{
		codec:            codec.Default,
		logger:           NoopLogger(),
		metricsCollector: NoopMetricsCollector{},
		linesPerShard:    DefaultLinesPerShard,
		indexConcurrency: DefaultIndexConcurrency,
	}
}

func applyOptions(opts []Option) options {
	o := defaultOptions()
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// Option configures Convert, Open and Publish.
type Option func(*options)

// WithCodec configures the codec used for shard and metadata lines.
//
// If nil is passed, codec.Default is used.
func WithCodec(c codec.Codec) Option {
	return func(o *options) {
		if c == nil {
			c = codec.Default
		}
		o.codec = c
	}
}

// WithLogger configures structured logging.
// Pass nil to disable logging (uses NoopLogger).
func WithLogger(l *Logger) Option {
	return func(o *options) {
		if l == nil {
			l = NoopLogger()
		}
		o.logger = l
	}
}

// WithLogLevel installs a text logger on stderr at the given level.
func WithLogLevel(level slog.Level) Option {
	return func(o *options) {
		o.logger = NewTextLogger(level)
	}
}

// WithMetricsCollector configures a metrics collector for monitoring operations.
// Pass nil to disable metrics collection.
//
// Example with BasicMetricsCollector:
//
//	metrics := &coredata.BasicMetricsCollector{}
//	store, _ := coredata.Open(ctx, coredata.Local("./data/cs"), coredata.WithMetricsCollector(metrics))
//	// ... use store ...
//	stats := metrics.GetStats()
//	fmt.Printf("Fetches: %d, avg latency: %dns\n", stats.FetchCount, stats.FetchAvgNanos)
func WithMetricsCollector(mc MetricsCollector) Option {
	return func(o *options) {
		if mc == nil {
			mc = NoopMetricsCollector{}
		}
		o.metricsCollector = mc
	}
}

// WithLinesPerShard sets the shard capacity used by Convert.
// Values below one make Convert fail with a ConfigError.
func WithLinesPerShard(n int) Option {
	return func(o *options) {
		o.linesPerShard = n
	}
}

// WithKeepRaw keeps the raw query directory after a successful Convert.
func WithKeepRaw(keep bool) Option {
	return func(o *options) {
		o.keepRaw = keep
	}
}

// WithIndexConcurrency bounds the number of shards Open indexes in
// parallel. n <= 0 means no limit.
func WithIndexConcurrency(n int) Option {
	return func(o *options) {
		o.indexConcurrency = n
	}
}

// WithLineCache enables an LRU cache of fetched lines holding at most
// bytes bytes. Zero disables the cache.
func WithLineCache(bytes int64) Option {
	return func(o *options) {
		o.lineCacheBytes = bytes
	}
}

// Filter decides whether a record is returned by FetchRecord and Iterate.
type Filter func(Record) bool

// Extractor turns a record into the value handed to the caller.
type Extractor func(Record) (any, error)

type readOptions struct {
	filter    Filter
	extractor Extractor
	shuffle   bool
	hasRange  bool
	start     int
	end       int
	rand      *rand.Rand
}

// ReadOption configures FetchRecord and Iterate.
type ReadOption func(*readOptions)

func applyReadOptions(opts []ReadOption) readOptions {
	o := readOptions{extractor: IdentityExtractor}
	for _, opt := range opts {
		opt(&o)
	}
	return o
}

// WithFilter skips records for which f returns false.
func WithFilter(f Filter) ReadOption {
	return func(o *readOptions) {
		o.filter = f
	}
}

// WithExtractor sets the extractor. nil restores IdentityExtractor.
func WithExtractor(e Extractor) ReadOption {
	return func(o *readOptions) {
		if e == nil {
			e = IdentityExtractor
		}
		o.extractor = e
	}
}

// Shuffle makes Iterate visit the records in a uniformly random order.
// Each call to Iterate draws a fresh permutation.
func Shuffle() ReadOption {
	return func(o *readOptions) {
		o.shuffle = true
	}
}

// Range limits Iterate to the inclusive sequence range [start, end].
// The range is clamped to the dataset.
func Range(start, end int) ReadOption {
	return func(o *readOptions) {
		o.hasRange = true
		o.start = start
		o.end = end
	}
}

// WithRand sets the random source used by Shuffle.
//
// A *rand.Rand is not safe for concurrent use: do not share r, or a
// ReadOption built from it, between iterations running in parallel.
func WithRand(r *rand.Rand) ReadOption {
	return func(o *readOptions) {
		o.rand = r
	}
}
