package etl

import (
	"strings"
)

// ── Row Transformers ───────────────────────────────────────
// Raw rows pass through a chain of transformers before they become Records.
// Each takes a row and returns a (possibly modified) row and whether to keep it.

// RowTransformer processes a single raw row.
type RowTransformer interface {
	Transform(row []string) ([]string, bool)
}

// RowTransformerFunc adapts a plain function to the RowTransformer interface.
type RowTransformerFunc func([]string) ([]string, bool)

func (f RowTransformerFunc) Transform(row []string) ([]string, bool) { return f(row) }

// TrimCells strips surrounding whitespace from every cell.
var TrimCells = RowTransformerFunc(func(row []string) ([]string, bool) {
	out := make([]string, len(row))
	for i, c := range row {
		out[i] = strings.TrimSpace(c)
	}
	return out, true
})

// MinCellsFilter drops rows with fewer than Min cells. Such rows are headers,
// footers or decoration, not data.
type MinCellsFilter struct {
	Min int
}

func (t MinCellsFilter) Transform(row []string) ([]string, bool) {
	return row, len(row) >= t.Min
}

// TruncateCells drops trailing cells beyond Max, e.g. action buttons rendered as extra <td>s.
type TruncateCells struct {
	Max int
}

func (t TruncateCells) Transform(row []string) ([]string, bool) {
	if len(row) > t.Max {
		return row[:t.Max], true
	}
	return row, true
}

// ApplyRowTransformers runs a chain of transformers on a row.
func ApplyRowTransformers(row []string, ts []RowTransformer) ([]string, bool) {
	for _, t := range ts {
		var keep bool
		row, keep = t.Transform(row)
		if !keep {
			return row, false
		}
	}
	return row, true
}

// ── Normalizer ─────────────────────────────────────────────

// NormalizeStats reports what happened to the raw rows.
type NormalizeStats struct {
	RowsRead    int `json:"rowsRead"`
	RowsKept    int `json:"rowsKept"`
	RowsDropped int `json:"rowsDropped"`
}

// Normalize turns raw rows into Records for schema. Rows shorter than the
// schema are dropped, longer rows are truncated, order is preserved and
// duplicates are kept. extra transformers run after the built-in chain.
func Normalize(rows [][]string, schema ColumnSchema, extra ...RowTransformer) ([]Record, NormalizeStats) {
	chain := []RowTransformer{
		TrimCells,
		MinCellsFilter{Min: len(schema)},
		TruncateCells{Max: len(schema)},
	}
	chain = append(chain, extra...)

	stats := NormalizeStats{RowsRead: len(rows)}
	records := make([]Record, 0, len(rows))
	for _, row := range rows {
		cells, keep := ApplyRowTransformers(row, chain)
		if !keep {
			stats.RowsDropped++
			continue
		}
		records = append(records, NewRecord(schema, cells))
	}
	stats.RowsKept = len(records)
	return records, stats
}
