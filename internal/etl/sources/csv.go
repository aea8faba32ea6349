package sources

import (
	"context"
	"encoding/csv"
	"fmt"
	"os"

	"nodewatch/internal/etl"
)

// ── CSV Source ──────────────────────────────────────────────
// Reads a leaderboard exported as CSV. Rows go through the same normalizer
// as the rendered table, so short rows are dropped the same way.

// CSVConfig configures the CSV source.
type CSVConfig struct {
	Path      string   `mapstructure:"path"`
	Columns   []string `mapstructure:"columns"`
	Delimiter string   `mapstructure:"delimiter"`
	HasHeader bool     `mapstructure:"has_header"`
}

// CSVSource implements etl.Source over a CSV file.
type CSVSource struct {
	cfg    CSVConfig
	schema etl.ColumnSchema
}

// NewCSVSource validates cfg.
func NewCSVSource(cfg CSVConfig) (*CSVSource, error) {
	if cfg.Path == "" {
		return nil, fmt.Errorf("csv path is required")
	}
	schema := etl.ColumnSchema(cfg.Columns)
	if len(schema) == 0 {
		schema = DefaultTableColumns
	}
	return &CSVSource{cfg: cfg, schema: schema}, nil
}

func (s *CSVSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "csv",
		Label: "CSV export",
		ConfigFields: []etl.ConfigField{
			{Key: "path", Label: "File Path", Required: true, Help: "Path to the exported CSV file"},
			{Key: "columns", Label: "Columns", Help: "Column order; the first column is the node id"},
			{Key: "delimiter", Label: "Delimiter", Default: ",", Help: "Column delimiter (default: comma)"},
			{Key: "has_header", Label: "Has Header", Default: "true", Help: "Whether the first row contains column names"},
		},
	}
}

func (s *CSVSource) Schema() etl.ColumnSchema { return s.schema }

func (s *CSVSource) FetchSnapshot(ctx context.Context, _ etl.FetchRequest) (*etl.Snapshot, error) {
	snap := etl.NewSnapshot("csv", s.schema)
	if err := ctx.Err(); err != nil {
		return snap, etl.NetworkError(err)
	}

	rows, err := s.readRows()
	if err != nil {
		return snap, err
	}
	snap.Records, snap.Stats = etl.Normalize(rows, s.schema)
	return snap, nil
}

func (s *CSVSource) readRows() ([][]string, error) {
	f, err := os.Open(s.cfg.Path)
	if err != nil {
		return nil, etl.NetworkError(fmt.Errorf("open file: %w", err))
	}
	defer f.Close()

	reader := csv.NewReader(f)
	if len(s.cfg.Delimiter) > 0 {
		reader.Comma = rune(s.cfg.Delimiter[0])
	}
	reader.LazyQuotes = true
	reader.TrimLeadingSpace = true
	// Rows of any width are allowed; the normalizer decides what to keep.
	reader.FieldsPerRecord = -1

	rows, err := reader.ReadAll()
	if err != nil {
		return nil, etl.MalformedError(fmt.Errorf("parse csv: %w", err))
	}
	if s.cfg.HasHeader && len(rows) > 0 {
		rows = rows[1:]
	}
	return rows, nil
}
