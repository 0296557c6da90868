// Package codec centralizes how dataset rows are encoded on disk.
//
// Shards and the metadata file are JSON lines: one encoded object per line,
// terminated by '\n'. Any codec plugged in here must therefore produce output
// without raw newlines; MarshalLine enforces that.
package codec

import (
	"bytes"
	"errors"
	"fmt"
)

// ErrEmbeddedNewline is returned by MarshalLine when an encoded value would
// span more than one line.
var ErrEmbeddedNewline = errors.New("codec: encoded value contains a newline")

// Codec encodes/decodes values.
// Implementations must be safe for concurrent use.
type Codec interface {
	Marshal(v any) ([]byte, error)
	Unmarshal(data []byte, v any) error
	Name() string
}

// ByName returns a built-in codec by its stable name.
func ByName(name string) (Codec, bool) {
	switch name {
	case "json":
		return JSON{}, true
	case "go-json":
		return GoJSON{}, true
	default:
		return nil, false
	}
}

// MarshalLine encodes v and appends the line terminator.
func MarshalLine(c Codec, v any) ([]byte, error) {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		return nil, err
	}
	if bytes.IndexByte(b, '\n') >= 0 {
		return nil, ErrEmbeddedNewline
	}
	return append(b, '\n'), nil
}

// MustMarshal is a helper for internal tests.
func MustMarshal(c Codec, v any) []byte {
	if c == nil {
		c = Default
	}
	b, err := c.Marshal(v)
	if err != nil {
		panic(fmt.Errorf("codec %s marshal failed: %w", c.Name(), err))
	}
	return b
}
