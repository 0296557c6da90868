// Package lineindex computes byte offsets of line starts in JSON-lines blobs.
package lineindex

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/coredata/blobstore"
)

// DefaultBufferSize is the read buffer used by Build. Lines longer than
// the buffer are consumed in chunks.
const DefaultBufferSize = 64 * 1024

// ErrShortRead is returned when a blob yields fewer bytes than its size.
var ErrShortRead = errors.New("lineindex: short read")

// Index maps a line number to the byte offset where that line starts.
// It is immutable once built.
type Index []int64

// Len returns the number of physical lines.
func (idx Index) Len() int { return len(idx) }

// Span returns the byte range [off, off+n) of line i in a blob of the
// given size. The range includes the trailing newline, if any.
func (idx Index) Span(i int, size int64) (off, n int64, ok bool) {
	if i < 0 || i >= len(idx) {
		return 0, 0, false
	}
	end := size
	if i+1 < len(idx) {
		end = idx[i+1]
	}
	return idx[i], end - idx[i], true
}

// Build scans b once from front to back and records every line start.
// An empty blob yields an empty index. A final line without a trailing
// newline counts as a line.
func Build(ctx context.Context, b blobstore.Blob) (Index, error) {
	size := b.Size()
	if size == 0 {
		return Index{}, nil
	}

	if h, ok := b.(blobstore.SequentialHinter); ok {
		_ = h.AdviseSequential()
	}

	rc, err := b.ReadRange(ctx, 0, size)
	if err != nil {
		return nil, err
	}
	defer rc.Close()

	idx, n, err := Scan(ctx, rc, DefaultBufferSize)
	if err != nil {
		return nil, err
	}
	if n != size {
		return nil, fmt.Errorf("%w: got %d of %d bytes", ErrShortRead, n, size)
	}
	return idx, nil
}

// Scan reads r to EOF using a buffer of bufSize bytes and returns the
// line index together with the number of bytes consumed.
func Scan(ctx context.Context, r io.Reader, bufSize int) (Index, int64, error) {
	br := bufio.NewReaderSize(r, bufSize)

	var (
		idx         Index
		off         int64
		atLineStart = true
	)

	for {
		chunk, err := br.ReadSlice('\n')
		if len(chunk) > 0 {
			if atLineStart {
				idx = append(idx, off)
			}
			off += int64(len(chunk))
			atLineStart = chunk[len(chunk)-1] == '\n'
		}

		switch {
		case err == nil:
			if cerr := ctx.Err(); cerr != nil {
				return nil, off, cerr
			}
		case errors.Is(err, bufio.ErrBufferFull):
			// long line, keep consuming
		case errors.Is(err, io.EOF):
			if idx == nil {
				idx = Index{}
			}
			return idx, off, nil
		default:
			return nil, off, err
		}
	}
}
