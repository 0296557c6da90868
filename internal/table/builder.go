package table

import (
	"github.com/RoaringBitmap/roaring/v2"
)

// Row is one metadata entry: the record without its full text, plus its
// placement.
type Row struct {
	Placement
	Fields Record
}

// Builder accumulates metadata rows during a conversion. It is owned by a
// single conversion and is not safe for concurrent use.
type Builder struct {
	rows    []Row
	pos     map[int]int // ingestion seq -> index in rows
	dropped *roaring.Bitmap
}

// NewBuilder returns an empty builder.
func NewBuilder() *Builder {
	return &Builder{
		pos:     make(map[int]int),
		dropped: roaring.New(),
	}
}

// Add records the metadata projection of rec under p.
func (b *Builder) Add(p Placement, rec Record) {
	fields := rec.Metadata()
	delete(fields, FieldFileNum)
	delete(fields, FieldLineNum)
	delete(fields, FieldNumRecord)

	b.pos[p.Seq] = len(b.rows)
	b.rows = append(b.rows, Row{Placement: p, Fields: fields})
}

// Len returns the number of rows that are still alive.
func (b *Builder) Len() int {
	return len(b.rows) - int(b.dropped.GetCardinality())
}

// Dedup drops every row whose value for a key was already seen in an
// earlier surviving row. Keys are processed one pass at a time in the
// given order. It returns the ingestion sequence numbers dropped by this
// call. Rows with an absent or null key are never dropped by that key.
func (b *Builder) Dedup(keys ...string) *roaring.Bitmap {
	dropped := roaring.New()

	for _, key := range keys {
		seen := make(map[string]struct{})
		for _, row := range b.rows {
			if b.dropped.Contains(uint32(row.Seq)) {
				continue
			}
			v, ok := row.Fields.Key(key)
			if !ok {
				continue
			}
			if _, dup := seen[v]; dup {
				b.dropped.Add(uint32(row.Seq))
				dropped.Add(uint32(row.Seq))
				continue
			}
			seen[v] = struct{}{}
		}
	}

	return dropped
}

// Dropped returns the ingestion sequence numbers of all dropped rows.
func (b *Builder) Dropped() *roaring.Bitmap {
	return b.dropped.Clone()
}

// Relocate moves rows to new lines within their shard. moves maps an
// ingestion sequence number to the new line.
func (b *Builder) Relocate(moves map[int]int) {
	for seq, line := range moves {
		if i, ok := b.pos[seq]; ok {
			b.rows[i].Line = line
		}
	}
}

// Table returns the surviving rows in first-seen order with dense
// sequence numbers 0..Len()-1.
func (b *Builder) Table() *Table {
	rows := make([]Row, 0, b.Len())
	for _, row := range b.rows {
		if b.dropped.Contains(uint32(row.Seq)) {
			continue
		}
		row.Seq = len(rows)
		rows = append(rows, row)
	}
	return &Table{rows: rows}
}
