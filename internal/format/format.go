// Package format renders Records as human-readable text blocks.
//
// The formatter emits no markup of its own. Every piece of text it writes,
// upstream values and fixed labels alike, goes through the Escaper supplied
// by the delivering transport, so a block is always safe in that transport's
// markup dialect.
package format

import (
	"errors"
	"fmt"
	"strings"

	"nodewatch/internal/etl"
)

// Mode selects how records are laid out.
type Mode string

const (
	ModeSingleNodeFull  Mode = "single-node-full"
	ModeSingleNodeField Mode = "single-node-field"
	ModeRankedList      Mode = "ranked-list"
)

// Fixed messages.
const (
	MsgNodeNotFound = "Node not found."
	MsgNoData       = "No data available."
)

// Escaper makes raw text safe for a transport's markup.
type Escaper func(string) string

// Identity returns text unchanged.
func Identity(s string) string { return s }

// Formatter renders records through an escaper.
type Formatter struct {
	escape Escaper
}

// New returns a Formatter. A nil escaper leaves text unchanged.
func New(escape Escaper) *Formatter {
	if escape == nil {
		escape = Identity
	}
	return &Formatter{escape: escape}
}

// Render lays out records according to mode, one block per record.
// field is only read in ModeSingleNodeField; a record without it yields an
// *etl.UnknownMetricError.
func (f *Formatter) Render(mode Mode, records []etl.Record, field string) ([]string, error) {
	blocks := make([]string, 0, len(records))
	switch mode {
	case ModeSingleNodeFull:
		for _, rec := range records {
			blocks = append(blocks, f.NodeFull(rec))
		}
	case ModeSingleNodeField:
		for _, rec := range records {
			v, ok := rec.Get(field)
			if !ok {
				return nil, &etl.UnknownMetricError{Metric: field, Available: rec.Schema()}
			}
			blocks = append(blocks, f.NodeField(rec.NodeID, field, v))
		}
	case ModeRankedList:
		blocks = append(blocks, f.Ranked(records)...)
	default:
		return nil, fmt.Errorf("unknown render mode: %q", mode)
	}
	return blocks, nil
}

// NodeFull renders every metric of one node, one line per column after the id.
func (f *Formatter) NodeFull(rec etl.Record) string {
	var b strings.Builder
	b.WriteString(f.escape("📊 Metrics for node " + rec.NodeID + ":"))
	for _, field := range metricFields(rec) {
		b.WriteByte('\n')
		b.WriteString(f.line(field.Name, field.Value))
	}
	return b.String()
}

// NodeField renders a single metric of one node.
func (f *Formatter) NodeField(nodeID, name, value string) string {
	return f.escape(nodeID+" · "+name+": ") + f.escape(value)
}

// Ranked renders one block per record, each prefixed with its 1-based rank.
func (f *Formatter) Ranked(records []etl.Record) []string {
	blocks := make([]string, 0, len(records))
	for i, rec := range records {
		var b strings.Builder
		b.WriteString(f.escape(fmt.Sprintf("#%d ", i+1)))
		b.WriteString(f.escape(rec.NodeID))
		for _, field := range metricFields(rec) {
			b.WriteByte('\n')
			b.WriteString(f.line(field.Name, field.Value))
		}
		blocks = append(blocks, b.String())
	}
	return blocks
}

// Error renders a failure as the block a caller should show in place of data.
func (f *Formatter) Error(err error) string {
	var unknown *etl.UnknownMetricError
	switch {
	case errors.As(err, &unknown):
		return f.escape(fmt.Sprintf("Unknown metric %q. Available: %s", unknown.Metric, unknown.Available))
	case errors.Is(err, etl.ErrNodeNotFound):
		return f.escape(MsgNodeNotFound)
	case errors.Is(err, etl.ErrEmptyResult):
		return f.escape(MsgNoData)
	default:
		return f.escape("Error: " + etl.Cause(err))
	}
}

// NodeError renders a failure scoped to one node of a batch.
func (f *Formatter) NodeError(nodeID string, err error) string {
	return f.escape("📊 Metrics for node "+nodeID+":") + "\n" + f.Error(err)
}

// Text escapes a free-form caller message.
func (f *Formatter) Text(s string) string {
	return f.escape(s)
}

func (f *Formatter) line(name, value string) string {
	return f.escape("• " + name + ": " + value)
}

// metricFields skips the node id column.
func metricFields(rec etl.Record) []etl.Field {
	if len(rec.Fields) <= 1 {
		return nil
	}
	return rec.Fields[1:]
}
