// Package table holds the metadata side of a dataset: raw records, their
// placement in shards, first-seen-wins deduplication and the metadata file
// format.
package table

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
)

// Well-known record fields.
const (
	FieldID           = "id"
	FieldOAI          = "oai"
	FieldFullText     = "fullText"
	FieldRepositories = "repositories"
	FieldRepoID       = "repo_id"

	FieldFileNum   = "ft_file_num"
	FieldLineNum   = "ft_line_num"
	FieldNumRecord = "num_record"
)

// DedupKeys are the identity fields used for deduplication, in pass order.
var DedupKeys = []string{FieldID, FieldOAI}

// ErrBadPlacement is returned when a stored row lacks a valid placement field.
var ErrBadPlacement = errors.New("table: invalid placement field")

// Record is one raw record. Values are kept as verbatim JSON.
type Record map[string]json.RawMessage

// Clone returns a shallow copy of r. The JSON values are shared.
func (r Record) Clone() Record {
	out := make(Record, len(r))
	for k, v := range r {
		out[k] = v
	}
	return out
}

// Metadata returns the projection of r without the full text.
func (r Record) Metadata() Record {
	out := make(Record, len(r))
	for k, v := range r {
		if k == FieldFullText {
			continue
		}
		out[k] = v
	}
	return out
}

// Key returns the compacted JSON value of field as a map key. ok is false
// when the field is absent or null; such records never collide. Two
// records that both lack the key are not treated as duplicates, unlike a
// pandas drop_duplicates over the same column.
func (r Record) Key(field string) (string, bool) {
	raw, ok := r[field]
	if !ok {
		return "", false
	}
	var buf bytes.Buffer
	if err := json.Compact(&buf, raw); err != nil {
		buf.Reset()
		buf.Write(bytes.TrimSpace(raw))
	}
	if buf.Len() == 0 || buf.String() == "null" {
		return "", false
	}
	return buf.String(), true
}

// Placement locates a record: shard id, line inside the shard and the
// record's logical sequence number.
type Placement struct {
	Shard int
	Line  int
	Seq   int
}

func (p Placement) String() string {
	return fmt.Sprintf("shard=%d line=%d seq=%d", p.Shard, p.Line, p.Seq)
}

// WithPlacement returns a copy of r carrying p in the placement fields.
func (r Record) WithPlacement(p Placement) Record {
	out := r.Clone()
	out[FieldFileNum] = json.RawMessage(strconv.Itoa(p.Shard))
	out[FieldLineNum] = json.RawMessage(strconv.Itoa(p.Line))
	out[FieldNumRecord] = json.RawMessage(strconv.Itoa(p.Seq))
	return out
}

// SplitPlacement removes the placement fields from r and returns them.
func (r Record) SplitPlacement() (Placement, error) {
	var p Placement
	for _, f := range []struct {
		name string
		dst  *int
	}{
		{FieldFileNum, &p.Shard},
		{FieldLineNum, &p.Line},
		{FieldNumRecord, &p.Seq},
	} {
		raw, ok := r[f.name]
		if !ok {
			return p, fmt.Errorf("%w: missing %s", ErrBadPlacement, f.name)
		}
		n, err := strconv.Atoi(string(bytes.TrimSpace(raw)))
		if err != nil || n < 0 {
			return p, fmt.Errorf("%w: %s=%s", ErrBadPlacement, f.name, raw)
		}
		*f.dst = n
		delete(r, f.name)
	}
	return p, nil
}
