package blobstore

import (
	"context"
	"io"
	"os"
)

// ErrNotFound is returned when a blob does not exist.
//
// Implementations should return an error that satisfies `errors.Is(err, ErrNotFound)`.
// The default maps to `os.ErrNotExist`.
var ErrNotFound = os.ErrNotExist

// BlobStore is an abstraction for reading and writing immutable dataset blobs.
// Implementations must be safe for concurrent use.
type BlobStore interface {
	// Open opens a blob for reading.
	Open(ctx context.Context, name string) (Blob, error)
	// Create creates a blob for streaming writes. The blob becomes visible on Close.
	Create(ctx context.Context, name string) (WritableBlob, error)
	// Put writes a blob atomically.
	Put(ctx context.Context, name string, data []byte) error
	// Delete removes a blob. Deleting a missing blob is not an error.
	Delete(ctx context.Context, name string) error
	// List returns the sorted names of all blobs with the given prefix.
	List(ctx context.Context, prefix string) ([]string, error)
}

// Blob is a read-only handle to a data blob.
type Blob interface {
	io.Closer
	// ReadAt reads len(p) bytes starting at off. Semantics follow io.ReaderAt.
	ReadAt(ctx context.Context, p []byte, off int64) (int, error)
	// ReadRange returns a reader for length bytes starting at off.
	ReadRange(ctx context.Context, off, length int64) (io.ReadCloser, error)
	// Size returns the size of the blob in bytes.
	Size() int64
}

// WritableBlob is a blob being written.
type WritableBlob interface {
	io.WriteCloser
	// Sync flushes buffered data to durable storage where supported.
	Sync() error
}

// SequentialHinter is implemented by blobs that can be told a full
// front-to-back scan is about to happen.
type SequentialHinter interface {
	AdviseSequential() error
}

// ReaderAt adapts a Blob to io.ReaderAt, binding ctx to every read.
func ReaderAt(ctx context.Context, b Blob) io.ReaderAt {
	return &readerAt{ctx: ctx, b: b}
}

type readerAt struct {
	ctx context.Context
	b   Blob
}

func (r *readerAt) ReadAt(p []byte, off int64) (int, error) {
	return r.b.ReadAt(r.ctx, p, off)
}

// Copy streams the blob name from src into dst.
func Copy(ctx context.Context, dst, src BlobStore, name string) (int64, error) {
	in, err := src.Open(ctx, name)
	if err != nil {
		return 0, err
	}
	defer in.Close()

	out, err := dst.Create(ctx, name)
	if err != nil {
		return 0, err
	}
	n, err := io.Copy(out, io.NewSectionReader(ReaderAt(ctx, in), 0, in.Size()))
	if err != nil {
		_ = out.Close()
		return n, err
	}
	return n, out.Close()
}
