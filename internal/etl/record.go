package etl

import (
	"strings"
	"time"
)

// ── Record ─────────────────────────────────────────────────
// Common normalized data format.
// Every source maps into Records; the resolver and formatter only ever
// see Records and Snapshots, never adapter internals.

// NotAvailable is rendered for values missing from the upstream payload.
const NotAvailable = "N/A"

// ColumnSchema is the ordered list of column names a source produces.
// The first column always holds the node identifier.
type ColumnSchema []string

// Index returns the position of name in the schema, matched case-insensitively,
// or -1 if the schema has no such column.
func (s ColumnSchema) Index(name string) int {
	name = strings.TrimSpace(name)
	for i, col := range s {
		if strings.EqualFold(col, name) {
			return i
		}
	}
	return -1
}

// String joins the column names for messages.
func (s ColumnSchema) String() string {
	return strings.Join(s, ", ")
}

// Field is one named cell of a Record.
type Field struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// Record is a single node's row of metrics.
// Fields keep the upstream column order.
type Record struct {
	NodeID string  `json:"nodeId"`
	Fields []Field `json:"fields"`
}

// Get returns the value of the named field, matched case-insensitively.
func (r Record) Get(name string) (string, bool) {
	for _, f := range r.Fields {
		if strings.EqualFold(f.Name, strings.TrimSpace(name)) {
			return f.Value, true
		}
	}
	return "", false
}

// Schema returns the record's column names in order.
func (r Record) Schema() ColumnSchema {
	cols := make(ColumnSchema, len(r.Fields))
	for i, f := range r.Fields {
		cols[i] = f.Name
	}
	return cols
}

// NewRecord zips a schema with cell values. Values beyond the schema are dropped,
// missing values become NotAvailable. The node id is the first cell.
func NewRecord(schema ColumnSchema, cells []string) Record {
	rec := Record{Fields: make([]Field, len(schema))}
	for i, name := range schema {
		v := NotAvailable
		if i < len(cells) {
			v = cells[i]
		}
		rec.Fields[i] = Field{Name: name, Value: v}
	}
	if len(rec.Fields) > 0 {
		rec.NodeID = rec.Fields[0].Value
	}
	return rec
}

// ── Snapshot ───────────────────────────────────────────────

// Snapshot is the ordered result of one fetch. It is never mutated after
// the source returns it and never outlives the request that produced it.
type Snapshot struct {
	ID        string       `json:"id"`
	Source    string       `json:"source"`
	Schema    ColumnSchema `json:"schema"`
	Records   []Record     `json:"records"`
	FetchedAt time.Time    `json:"fetchedAt"`

	// Stats describes how raw rows became Records.
	Stats NormalizeStats `json:"stats"`
	// CellErrors counts cells holding an "Error: ..." placeholder.
	CellErrors int `json:"cellErrors"`
}

// Len returns the number of records.
func (s *Snapshot) Len() int {
	if s == nil {
		return 0
	}
	return len(s.Records)
}

// MetricQuery addresses a node and optionally one of its columns.
type MetricQuery struct {
	NodeID string `json:"nodeId"`
	Metric string `json:"metric,omitempty"`
}

// NormalizeNodeID trims and lower-cases a node id for comparison.
func NormalizeNodeID(id string) string {
	return strings.ToLower(strings.TrimSpace(id))
}
