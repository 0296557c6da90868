// Package rawquery decodes the page files saved by the crawler into
// records ready for conversion.
package rawquery

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/hupe1980/coredata/codec"
	"github.com/hupe1980/coredata/internal/compress"
	"github.com/hupe1980/coredata/internal/table"
)

// ErrUnexpectedShape is returned when a page is neither a JSON array of
// objects nor an envelope with a "data" array.
var ErrUnexpectedShape = errors.New("rawquery: unexpected document shape")

// IsPageFile reports whether name looks like a saved page file.
func IsPageFile(name string) bool {
	return strings.HasSuffix(compress.TrimExt(name), ".json")
}

type envelope struct {
	TotalHits int               `json:"totalHits"`
	Data      []json.RawMessage `json:"data"`
}

// Decode reads one page file. The compression is chosen by name.
func Decode(r io.Reader, name string, c codec.Codec) ([]table.Record, error) {
	zr, err := compress.NewReader(r, compress.FromName(name))
	if err != nil {
		return nil, err
	}
	defer zr.Close()

	data, err := io.ReadAll(zr)
	if err != nil {
		return nil, err
	}
	return DecodeBytes(data, c)
}

// DecodeBytes parses an uncompressed page.
func DecodeBytes(data []byte, c codec.Codec) ([]table.Record, error) {
	if c == nil {
		c = codec.Default
	}

	data = bytes.TrimSpace(data)
	if len(data) == 0 {
		return nil, nil
	}

	var items []json.RawMessage
	switch data[0] {
	case '[':
		if err := c.Unmarshal(data, &items); err != nil {
			return nil, err
		}
	case '{':
		var env envelope
		if err := c.Unmarshal(data, &env); err != nil {
			return nil, err
		}
		if env.Data == nil && !bytes.Contains(data, []byte(`"data"`)) {
			return nil, fmt.Errorf("%w: object without data", ErrUnexpectedShape)
		}
		items = env.Data
	default:
		return nil, fmt.Errorf("%w: starts with %q", ErrUnexpectedShape, data[0])
	}

	recs := make([]table.Record, 0, len(items))
	for i, item := range items {
		item = bytes.TrimSpace(item)
		if len(item) == 0 || item[0] != '{' {
			return nil, fmt.Errorf("%w: item %d is not an object", ErrUnexpectedShape, i)
		}
		rec := make(table.Record)
		if err := c.Unmarshal(item, &rec); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		if err := normalizeRecord(rec); err != nil {
			return nil, fmt.Errorf("item %d: %w", i, err)
		}
		recs = append(recs, rec)
	}
	return recs, nil
}

// normalizeRecord compacts every value onto a single line and replaces the
// repositories list by the id of its first entry.
func normalizeRecord(rec table.Record) error {
	for k, v := range rec {
		var buf bytes.Buffer
		if err := json.Compact(&buf, v); err != nil {
			return fmt.Errorf("field %s: %w", k, err)
		}
		rec[k] = json.RawMessage(buf.Bytes())
	}

	raw, ok := rec[table.FieldRepositories]
	if !ok {
		return nil
	}
	delete(rec, table.FieldRepositories)

	var repos []struct {
		ID json.RawMessage `json:"id"`
	}
	if err := json.Unmarshal(raw, &repos); err != nil || len(repos) == 0 || len(repos[0].ID) == 0 {
		return nil
	}
	rec[table.FieldRepoID] = repoID(repos[0].ID)
	return nil
}

// repoID returns a quoted numeric id as a bare integer.
func repoID(raw json.RawMessage) json.RawMessage {
	var s string
	if err := json.Unmarshal(raw, &s); err == nil {
		if n, err := strconv.ParseInt(s, 10, 64); err == nil {
			return json.RawMessage(strconv.FormatInt(n, 10))
		}
	}
	return raw
}
