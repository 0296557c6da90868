// Package compress provides the compression codecs used for raw query
// pages. The codec of a file is chosen by its name suffix.
package compress

import (
	"bytes"
	"errors"
	"io"
	"strings"
	"sync"

	"github.com/klauspost/compress/zstd"
	"github.com/pierrec/lz4/v4"
)

// Type defines the compression algorithm used.
type Type uint8

const (
	// None indicates no compression.
	None Type = 0
	// LZ4 indicates LZ4 frame compression (fast).
	LZ4 Type = 1
	// ZSTD indicates Zstandard frame compression (better ratio).
	ZSTD Type = 2
)

// ErrUnknownType is returned for an unrecognized compression name.
var ErrUnknownType = errors.New("compress: unknown type")

// Ext returns the file name suffix for t.
func (t Type) Ext() string {
	switch t {
	case LZ4:
		return ".lz4"
	case ZSTD:
		return ".zst"
	default:
		return ""
	}
}

func (t Type) String() string {
	switch t {
	case LZ4:
		return "lz4"
	case ZSTD:
		return "zstd"
	default:
		return "none"
	}
}

// Parse maps a configuration value ("", "none", "lz4", "zstd") to a Type.
func Parse(s string) (Type, error) {
	switch strings.ToLower(s) {
	case "", "none":
		return None, nil
	case "lz4":
		return LZ4, nil
	case "zstd", "zst":
		return ZSTD, nil
	default:
		return None, ErrUnknownType
	}
}

// FromName detects the compression of a file by its suffix.
func FromName(name string) Type {
	switch {
	case strings.HasSuffix(name, ".zst"):
		return ZSTD
	case strings.HasSuffix(name, ".lz4"):
		return LZ4
	default:
		return None
	}
}

// TrimExt removes a recognized compression suffix from name.
func TrimExt(name string) string {
	return strings.TrimSuffix(name, FromName(name).Ext())
}

var (
	zstdEncoderPool sync.Pool
	zstdDecoderPool sync.Pool
)

func getZstdEncoder() *zstd.Encoder {
	if v := zstdEncoderPool.Get(); v != nil {
		return v.(*zstd.Encoder)
	}
	enc, _ := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	return enc
}

func putZstdEncoder(enc *zstd.Encoder) {
	zstdEncoderPool.Put(enc)
}

func getZstdDecoder() *zstd.Decoder {
	if v := zstdDecoderPool.Get(); v != nil {
		return v.(*zstd.Decoder)
	}
	dec, _ := zstd.NewReader(nil)
	return dec
}

func putZstdDecoder(dec *zstd.Decoder) {
	zstdDecoderPool.Put(dec)
}

// EncodeAll compresses data in one shot.
func EncodeAll(data []byte, t Type) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case ZSTD:
		enc := getZstdEncoder()
		defer putZstdEncoder(enc)
		return enc.EncodeAll(data, nil), nil
	case LZ4:
		var buf bytes.Buffer
		w := lz4.NewWriter(&buf)
		if _, err := w.Write(data); err != nil {
			return nil, err
		}
		if err := w.Close(); err != nil {
			return nil, err
		}
		return buf.Bytes(), nil
	default:
		return nil, ErrUnknownType
	}
}

// DecodeAll decompresses data in one shot.
func DecodeAll(data []byte, t Type) ([]byte, error) {
	switch t {
	case None:
		return data, nil
	case ZSTD:
		dec := getZstdDecoder()
		defer putZstdDecoder(dec)
		return dec.DecodeAll(data, nil)
	case LZ4:
		return io.ReadAll(lz4.NewReader(bytes.NewReader(data)))
	default:
		return nil, ErrUnknownType
	}
}

// NewReader wraps r with a decompressing reader for t.
func NewReader(r io.Reader, t Type) (io.ReadCloser, error) {
	switch t {
	case None:
		return io.NopCloser(r), nil
	case ZSTD:
		dec, err := zstd.NewReader(r, zstd.WithDecoderConcurrency(1))
		if err != nil {
			return nil, err
		}
		return dec.IOReadCloser(), nil
	case LZ4:
		return io.NopCloser(lz4.NewReader(r)), nil
	default:
		return nil, ErrUnknownType
	}
}

type nopWriteCloser struct{ io.Writer }

func (nopWriteCloser) Close() error { return nil }

// NewWriter wraps w with a compressing writer for t. Close flushes the
// frame but does not close w.
func NewWriter(w io.Writer, t Type) (io.WriteCloser, error) {
	switch t {
	case None:
		return nopWriteCloser{w}, nil
	case ZSTD:
		return zstd.NewWriter(w, zstd.WithEncoderLevel(zstd.SpeedDefault))
	case LZ4:
		return lz4.NewWriter(w), nil
	default:
		return nil, ErrUnknownType
	}
}
