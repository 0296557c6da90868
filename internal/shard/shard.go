// Package shard writes bounded-size JSON-lines shard files.
//
// A Writer assigns every appended record a placement (shard id, line,
// sequence number) and writes the buffered records as one blob whenever a
// shard fills up. The last, partially filled shard stays in memory until
// Flush so that records dropped by deduplication can still be purged from
// it.
package shard

import (
	"bytes"
	"context"
	"errors"
	"fmt"
	"math"
	"regexp"
	"strconv"

	"github.com/RoaringBitmap/roaring/v2"

	"github.com/hupe1980/coredata/blobstore"
	"github.com/hupe1980/coredata/codec"
	"github.com/hupe1980/coredata/internal/table"
)

// ErrInvalidCapacity is returned for a shard capacity below one.
var ErrInvalidCapacity = errors.New("shard: capacity must be at least 1")

// ErrSequenceOverflow is returned once a writer has assigned every
// sequence number a roaring bitmap can hold.
var ErrSequenceOverflow = errors.New("shard: sequence number exceeds uint32 range")

// FilePrefix is the common prefix of all shard blob names.
const FilePrefix = "fulltext_"

var fileNameRE = regexp.MustCompile(`^fulltext_(0|[1-9][0-9]*)\.json$`)

// FileName returns the blob name of shard id.
func FileName(id int) string {
	return FilePrefix + strconv.Itoa(id) + ".json"
}

// ParseFileName returns the shard id encoded in name.
func ParseFileName(name string) (int, bool) {
	m := fileNameRE.FindStringSubmatch(name)
	if m == nil {
		return 0, false
	}
	id, err := strconv.Atoi(m[1])
	if err != nil {
		return 0, false
	}
	return id, true
}

// Info describes a written shard.
type Info struct {
	ID    int
	Lines int
	Bytes int64
}

type entry struct {
	placement table.Placement
	rec       table.Record
}

// Option configures a Writer.
type Option func(*Writer)

// WithFlushHook registers fn to be called after each shard is written.
func WithFlushHook(fn func(Info)) Option {
	return func(w *Writer) {
		w.onFlush = fn
	}
}

// Writer accumulates records and writes them as shards. It is owned by a
// single conversion and is not safe for concurrent use.
type Writer struct {
	store    blobstore.BlobStore
	capacity int
	codec    codec.Codec
	onFlush  func(Info)

	nextShard int
	nextSeq   int
	buf       []entry
	written   []Info
}

// NewWriter creates a writer that stores shards of at most capacity lines.
func NewWriter(store blobstore.BlobStore, capacity int, c codec.Codec, opts ...Option) (*Writer, error) {
	if capacity < 1 {
		return nil, fmt.Errorf("%w: got %d", ErrInvalidCapacity, capacity)
	}
	if c == nil {
		c = codec.Default
	}

	w := &Writer{
		store:    store,
		capacity: capacity,
		codec:    c,
		buf:      make([]entry, 0, capacity),
	}
	for _, opt := range opts {
		opt(w)
	}
	return w, nil
}

// Capacity returns the maximum number of lines per shard.
func (w *Writer) Capacity() int { return w.capacity }

// Append assigns rec the next placement and buffers it. The buffered shard
// is written once it holds capacity records.
func (w *Writer) Append(ctx context.Context, rec table.Record) (table.Placement, error) {
	if uint64(w.nextSeq) > math.MaxUint32 {
		return table.Placement{}, ErrSequenceOverflow
	}
	p := table.Placement{
		Shard: w.nextShard,
		Line:  len(w.buf),
		Seq:   w.nextSeq,
	}
	w.buf = append(w.buf, entry{placement: p, rec: rec})
	w.nextSeq++

	if p.Line == w.capacity-1 {
		if err := w.writeBuffer(ctx); err != nil {
			return p, err
		}
	}
	return p, nil
}

// Buffered returns the number of records waiting for the final shard.
func (w *Writer) Buffered() int { return len(w.buf) }

// Purge removes buffered records whose sequence number is in dropped and
// closes the gaps. It returns the new line of every surviving record that
// moved, keyed by sequence number.
func (w *Writer) Purge(dropped *roaring.Bitmap) map[int]int {
	moves := make(map[int]int)
	kept := w.buf[:0]
	for _, e := range w.buf {
		if dropped.Contains(uint32(e.placement.Seq)) {
			continue
		}
		if line := len(kept); line != e.placement.Line {
			e.placement.Line = line
			moves[e.placement.Seq] = line
		}
		kept = append(kept, e)
	}
	clear(w.buf[len(kept):])
	w.buf = kept
	return moves
}

// Flush writes the remaining buffered records as the final shard. An
// empty buffer writes nothing.
func (w *Writer) Flush(ctx context.Context) error {
	if len(w.buf) == 0 {
		return nil
	}
	return w.writeBuffer(ctx)
}

// Shards returns the shards written so far.
func (w *Writer) Shards() []Info { return w.written }

func (w *Writer) writeBuffer(ctx context.Context) error {
	var data bytes.Buffer
	for _, e := range w.buf {
		line, err := codec.MarshalLine(w.codec, e.rec.WithPlacement(e.placement))
		if err != nil {
			return fmt.Errorf("shard %d line %d: %w", w.nextShard, e.placement.Line, err)
		}
		data.Write(line)
	}

	name := FileName(w.nextShard)
	if err := w.store.Put(ctx, name, data.Bytes()); err != nil {
		return err
	}

	info := Info{ID: w.nextShard, Lines: len(w.buf), Bytes: int64(data.Len())}
	w.written = append(w.written, info)
	if w.onFlush != nil {
		w.onFlush(info)
	}

	clear(w.buf)
	w.buf = w.buf[:0]
	w.nextShard++
	return nil
}
