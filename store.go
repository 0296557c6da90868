package coredata

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"io"
	"iter"
	"math/rand/v2"
	"slices"
	"sync/atomic"
	"time"

	"github.com/RoaringBitmap/roaring/v2"
	"golang.org/x/sync/errgroup"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/hupe1980/coredata/internal/cache"
	"github.com/hupe1980/coredata/internal/lineindex"
	"github.com/hupe1980/coredata/internal/shard"
	"github.com/hupe1980/coredata/internal/table"
)

// Location names the blob store a dataset lives in.
type Location struct {
	store blobstore.BlobStore
	name  string
	dir   string
}

// Local returns the location of a dataset in a local directory.
func Local(dir string) Location {
	return Location{
		store: blobstore.NewLocalStore(dir),
		name:  dir,
		dir:   dir,
	}
}

// Remote returns the location of a dataset in an arbitrary blob store,
// for example an S3 bucket prefix.
func Remote(store blobstore.BlobStore) Location {
	return Location{
		store: store,
		name:  fmt.Sprintf("remote(%T)", store),
	}
}

// String returns a human-readable name of the location.
func (l Location) String() string { return l.name }

// Store returns the blob store behind the location.
func (l Location) Store() blobstore.BlobStore { return l.store }

type shardFile struct {
	id    int
	name  string
	blob  blobstore.Blob
	index lineindex.Index
}

// Store is an opened dataset. It is safe for concurrent use.
//
// Store follows Open -> reads -> Close. Reads racing with Close may fail
// with IO errors; reads after Close fail with ErrClosed.
type Store struct {
	location Location
	opts     options
	table    *table.Table
	shards   map[int]*shardFile
	ids      []int
	live     map[int]*roaring.Bitmap
	cache    cache.LineCache
	closed   atomic.Bool
}

// Open loads the metadata table of the dataset at loc and indexes every
// shard. It fails with a DatasetNotFoundError when the metadata file is
// absent.
func Open(ctx context.Context, loc Location, opts ...Option) (*Store, error) {
	o := applyOptions(opts)
	o.logger = o.logger.WithDataset(loc.String())

	start := time.Now()
	s, err := open(ctx, loc, o)

	rows, shards := 0, 0
	if s != nil {
		rows, shards = s.Len(), len(s.ids)
	}
	o.logger.LogOpen(ctx, rows, shards, time.Since(start), err)
	o.metricsCollector.RecordOpen(rows, shards, time.Since(start), err)

	return s, err
}

func open(ctx context.Context, loc Location, o options) (*Store, error) {
	if loc.store == nil {
		return nil, &ConfigError{Field: "location", Reason: "no blob store"}
	}

	tbl, err := loadTable(ctx, loc, o)
	if err != nil {
		return nil, err
	}

	names, err := loc.store.List(ctx, shard.FilePrefix)
	if err != nil {
		return nil, translateError("list shards", loc.String(), err)
	}

	files := make([]*shardFile, 0, len(names))
	for _, name := range names {
		if id, ok := shard.ParseFileName(name); ok {
			files = append(files, &shardFile{id: id, name: name})
		}
	}
	slices.SortFunc(files, func(a, b *shardFile) int { return a.id - b.id })

	g, gctx := errgroup.WithContext(ctx)
	if o.indexConcurrency > 0 {
		g.SetLimit(o.indexConcurrency)
	}
	for _, sf := range files {
		g.Go(func() error {
			b, err := loc.store.Open(gctx, sf.name)
			if err != nil {
				return translateError("open shard", sf.name, err)
			}
			idx, err := lineindex.Build(gctx, b)
			if err != nil {
				_ = b.Close()
				return translateError("index shard", sf.name, err)
			}
			sf.blob, sf.index = b, idx
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		for _, sf := range files {
			if sf.blob != nil {
				_ = sf.blob.Close()
			}
		}
		return nil, err
	}

	s := &Store{
		location: loc,
		opts:     o,
		table:    tbl,
		shards:   make(map[int]*shardFile, len(files)),
		ids:      make([]int, 0, len(files)),
		live:     make(map[int]*roaring.Bitmap),
		cache:    cache.New(o.lineCacheBytes),
	}
	for _, sf := range files {
		s.shards[sf.id] = sf
		s.ids = append(s.ids, sf.id)
	}
	for _, row := range tbl.Rows() {
		bm, ok := s.live[row.Shard]
		if !ok {
			bm = roaring.New()
			s.live[row.Shard] = bm
		}
		bm.Add(uint32(row.Line))
	}

	return s, nil
}

func loadTable(ctx context.Context, loc Location, o options) (*table.Table, error) {
	b, err := loc.store.Open(ctx, table.MetadataFile)
	if err != nil {
		if errors.Is(err, blobstore.ErrNotFound) {
			return nil, &DatasetNotFoundError{Path: loc.String()}
		}
		return nil, translateError("open metadata", table.MetadataFile, err)
	}
	defer b.Close()

	rc, err := b.ReadRange(ctx, 0, b.Size())
	if err != nil {
		return nil, translateError("read metadata", table.MetadataFile, err)
	}
	defer rc.Close()

	tbl, err := table.Read(rc, o.codec)
	if err != nil {
		return nil, translateError("load metadata", table.MetadataFile, err)
	}
	return tbl, nil
}

// Len returns the number of records.
func (s *Store) Len() int { return s.table.Len() }

// Location returns where the dataset was opened from.
func (s *Store) Location() Location { return s.location }

// Metadata returns the metadata row of record seq, including its placement
// fields.
func (s *Store) Metadata(seq int) (Record, error) {
	row, ok := s.table.Row(seq)
	if !ok {
		return nil, &RecordNotFoundError{Seq: seq, Len: s.table.Len()}
	}
	return row.Fields.WithPlacement(row.Placement), nil
}

// FetchLine returns line `line` of shard shardID without its terminating
// newline. Other trailing bytes such as \r are returned as stored. The
// returned slice must not be modified.
func (s *Store) FetchLine(ctx context.Context, shardID, line int) ([]byte, error) {
	start := time.Now()
	b, hit, err := s.fetchLine(ctx, shardID, line)
	s.opts.metricsCollector.RecordFetch(time.Since(start), hit, err)
	return b, err
}

func (s *Store) fetchLine(ctx context.Context, shardID, line int) ([]byte, bool, error) {
	if s.closed.Load() {
		return nil, false, ErrClosed
	}

	sf, ok := s.shards[shardID]
	if !ok {
		return nil, false, &IOError{Op: "fetch line", Path: shard.FileName(shardID), Err: blobstore.ErrNotFound}
	}

	key := cache.Key{Shard: shardID, Line: line}
	if s.cache != nil {
		if b, ok := s.cache.Get(key); ok {
			return b, true, nil
		}
	}

	off, n, ok := sf.index.Span(line, sf.blob.Size())
	if !ok {
		return nil, false, fmt.Errorf("%w: shard %d has %d lines, got %d", ErrLineOutOfRange, shardID, sf.index.Len(), line)
	}

	buf := make([]byte, n)
	m, err := sf.blob.ReadAt(ctx, buf, off)
	if err != nil && (!errors.Is(err, io.EOF) || int64(m) != n) {
		return nil, false, translateError("read line", sf.name, err)
	}
	buf = bytes.TrimSuffix(buf, []byte("\n"))

	if s.cache != nil {
		s.cache.Set(key, buf)
	}
	return buf, false, nil
}

// FetchRecord returns record seq after applying the filter and extractor.
// ok is false when the filter rejected the record. A seq outside [0, Len)
// yields a RecordNotFoundError.
func (s *Store) FetchRecord(ctx context.Context, seq int, opts ...ReadOption) (value any, ok bool, err error) {
	ro := applyReadOptions(opts)
	return s.fetchRecord(ctx, seq, &ro)
}

func (s *Store) fetchRecord(ctx context.Context, seq int, ro *readOptions) (any, bool, error) {
	row, ok := s.table.Row(seq)
	if !ok {
		return nil, false, &RecordNotFoundError{Seq: seq, Len: s.table.Len()}
	}

	line, err := s.FetchLine(ctx, row.Shard, row.Line)
	if err != nil {
		return nil, false, err
	}

	rec := make(Record)
	if err := s.opts.codec.Unmarshal(line, &rec); err != nil {
		return nil, false, &IOError{Op: "decode record", Path: shard.FileName(row.Shard), Err: err}
	}

	if ro.filter != nil && !ro.filter(rec) {
		return nil, false, nil
	}

	v, err := ro.extractor(rec)
	if err != nil {
		return nil, false, fmt.Errorf("extract record %d: %w", seq, err)
	}
	return v, true, nil
}

// Iterate returns a lazy sequence of (sequence number, value) pairs over
// all records, or over the inclusive Range when given. Records rejected by
// the filter are left out. A record that fails to load is logged with its
// sequence number and skipped. With Shuffle every call draws a new
// permutation; otherwise records come in sequence order.
func (s *Store) Iterate(ctx context.Context, opts ...ReadOption) iter.Seq2[int, any] {
	ro := applyReadOptions(opts)

	return func(yield func(int, any) bool) {
		start := time.Now()
		var yielded, skipped int
		defer func() {
			s.opts.metricsCollector.RecordIterate(yielded, skipped, time.Since(start))
		}()

		visit := func(seq int) bool {
			if ctx.Err() != nil {
				return false
			}
			v, ok, err := s.fetchRecord(ctx, seq, &ro)
			if err != nil {
				if errors.Is(err, ErrClosed) || ctx.Err() != nil {
					return false
				}
				s.opts.logger.LogSkip(ctx, "record", seq, err)
				skipped++
				return true
			}
			if !ok {
				return true
			}
			yielded++
			return yield(seq, v)
		}

		lo, hi := s.bounds(&ro)

		if !ro.shuffle {
			for seq := lo; seq < hi; seq++ {
				if !visit(seq) {
					return
				}
			}
			return
		}

		order := make([]int, hi-lo)
		for i := range order {
			order[i] = lo + i
		}
		r := ro.rand
		if r == nil {
			r = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
		}
		r.Shuffle(len(order), func(i, j int) {
			order[i], order[j] = order[j], order[i]
		})
		for _, seq := range order {
			if !visit(seq) {
				return
			}
		}
	}
}

// bounds returns the half-open sequence range selected by ro.
func (s *Store) bounds(ro *readOptions) (lo, hi int) {
	lo, hi = 0, s.table.Len()
	if ro.hasRange {
		lo = max(ro.start, 0)
		if ro.end < hi-1 {
			hi = max(ro.end+1, 0)
		}
	}
	if lo > hi {
		lo = hi
	}
	return lo, hi
}

// ShardStats describes one shard file.
type ShardStats struct {
	ID            int   `json:"id"`
	Bytes         int64 `json:"bytes"`
	PhysicalLines int   `json:"physicalLines"`
	LiveLines     int   `json:"liveLines"`
	DeadLines     int   `json:"deadLines"`
}

// Stats summarizes an opened dataset. Dead lines are physically present
// duplicates that no metadata row references.
type Stats struct {
	Rows          int          `json:"rows"`
	Shards        int          `json:"shards"`
	PhysicalLines int          `json:"physicalLines"`
	LiveLines     int          `json:"liveLines"`
	DeadLines     int          `json:"deadLines"`
	MissingShards []int        `json:"missingShards,omitempty"`
	CacheHits     int64        `json:"cacheHits"`
	CacheMisses   int64        `json:"cacheMisses"`
	PerShard      []ShardStats `json:"perShard"`
}

// Stats returns line accounting for every shard.
func (s *Store) Stats() Stats {
	st := Stats{
		Rows:     s.table.Len(),
		Shards:   len(s.ids),
		PerShard: make([]ShardStats, 0, len(s.ids)),
	}

	for _, id := range s.ids {
		sf := s.shards[id]
		ss := ShardStats{
			ID:            id,
			Bytes:         sf.blob.Size(),
			PhysicalLines: sf.index.Len(),
		}
		if bm, ok := s.live[id]; ok {
			ss.LiveLines = int(bm.GetCardinality())
		}
		ss.DeadLines = ss.PhysicalLines - ss.LiveLines

		st.PhysicalLines += ss.PhysicalLines
		st.LiveLines += ss.LiveLines
		st.DeadLines += ss.DeadLines
		st.PerShard = append(st.PerShard, ss)
	}

	for id := range s.live {
		if _, ok := s.shards[id]; !ok {
			st.MissingShards = append(st.MissingShards, id)
		}
	}
	slices.Sort(st.MissingShards)

	if s.cache != nil {
		st.CacheHits, st.CacheMisses = s.cache.Stats()
	}
	return st
}

// Close releases all shard handles. Closing twice is a no-op.
func (s *Store) Close() error {
	if !s.closed.CompareAndSwap(false, true) {
		return nil
	}
	var errs []error
	for _, id := range s.ids {
		if err := s.shards[id].blob.Close(); err != nil {
			errs = append(errs, err)
		}
	}
	return errors.Join(errs...)
}
