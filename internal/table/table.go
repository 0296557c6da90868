package table

import (
	"bufio"
	"errors"
	"fmt"
	"io"

	"github.com/hupe1980/coredata/codec"
)

// MetadataFile is the name of the metadata blob inside a dataset.
const MetadataFile = "metadata.json"

// ErrNotDense is returned when a metadata file's sequence numbers are not
// exactly 0..N-1 in order.
var ErrNotDense = errors.New("table: sequence numbers are not dense")

// Table is the deduplicated metadata of a dataset, indexed by sequence
// number. It is immutable and safe for concurrent reads.
type Table struct {
	rows []Row
}

// New returns a table over rows. rows[i].Seq must equal i.
func New(rows []Row) (*Table, error) {
	for i, r := range rows {
		if r.Seq != i {
			return nil, fmt.Errorf("%w: row %d has num_record %d", ErrNotDense, i, r.Seq)
		}
	}
	return &Table{rows: rows}, nil
}

// Len returns the number of rows.
func (t *Table) Len() int { return len(t.rows) }

// Row returns the row with sequence number seq.
func (t *Table) Row(seq int) (Row, bool) {
	if seq < 0 || seq >= len(t.rows) {
		return Row{}, false
	}
	return t.rows[seq], true
}

// Rows returns all rows. The slice must not be modified.
func (t *Table) Rows() []Row { return t.rows }

// ShardLines returns the number of rows referencing each shard.
func (t *Table) ShardLines() map[int]int {
	out := make(map[int]int)
	for _, r := range t.rows {
		out[r.Shard]++
	}
	return out
}

// WriteTo encodes the table as JSON lines.
func (t *Table) WriteTo(w io.Writer, c codec.Codec) (int64, error) {
	bw := bufio.NewWriter(w)
	var total int64
	for _, r := range t.rows {
		line, err := codec.MarshalLine(c, r.Fields.WithPlacement(r.Placement))
		if err != nil {
			return total, fmt.Errorf("encode row %d: %w", r.Seq, err)
		}
		n, err := bw.Write(line)
		total += int64(n)
		if err != nil {
			return total, err
		}
	}
	return total, bw.Flush()
}

// Read decodes a metadata file written by WriteTo.
func Read(r io.Reader, c codec.Codec) (*Table, error) {
	if c == nil {
		c = codec.Default
	}

	br := bufio.NewReader(r)
	var rows []Row
	for lineNo := 0; ; lineNo++ {
		line, err := br.ReadBytes('\n')
		if len(line) > 0 && !(len(line) == 1 && line[0] == '\n') {
			rec := make(Record)
			if uerr := c.Unmarshal(line, &rec); uerr != nil {
				return nil, fmt.Errorf("decode line %d: %w", lineNo, uerr)
			}
			p, perr := rec.SplitPlacement()
			if perr != nil {
				return nil, fmt.Errorf("line %d: %w", lineNo, perr)
			}
			rows = append(rows, Row{Placement: p, Fields: rec})
		}
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
	}

	return New(rows)
}
