package sources

import (
	"context"
	"fmt"
	"strings"
	"time"

	"nodewatch/internal/etl"
)

// ── Rendered Table Source ──────────────────────────────────
// Loads a leaderboard page, waits for the table body to populate and
// extracts every row. Document order is the node ranking.

const (
	DefaultRowSelector  = "table tbody tr"
	DefaultTableTimeout = 60 * time.Second
	DefaultSettle       = 2 * time.Second
)

// DefaultTableColumns is the leaderboard's column order.
var DefaultTableColumns = etl.ColumnSchema{
	"Miner",
	"Score",
	"Status",
	"Last Active",
	"Precommit Success %",
	"Commit Success %",
	"Prepare Success %",
	"Create Success %",
	"Precommit Count",
	"Commit Count",
	"Uptime",
}

// TableConfig configures the rendered table source.
type TableConfig struct {
	URL            string        `mapstructure:"url"`
	Columns        []string      `mapstructure:"columns"`
	Renderer       string        `mapstructure:"renderer"` // "chrome" | "static"
	RowSelector    string        `mapstructure:"row_selector"`
	ExpandSelector string        `mapstructure:"expand_selector"`
	Scroll         bool          `mapstructure:"scroll"`
	Settle         time.Duration `mapstructure:"settle"`
	Timeout        time.Duration `mapstructure:"timeout"`
	RemoteURL      string        `mapstructure:"remote_url"`
	ExecPath       string        `mapstructure:"exec_path"`
}

// TableSource implements etl.Source over an HTML table.
type TableSource struct {
	cfg      TableConfig
	schema   etl.ColumnSchema
	renderer Renderer
}

// NewTableSource validates cfg. A nil renderer is chosen from cfg.Renderer.
func NewTableSource(cfg TableConfig, renderer Renderer) (*TableSource, error) {
	if cfg.URL == "" {
		return nil, fmt.Errorf("table url is required")
	}
	schema := etl.ColumnSchema(cfg.Columns)
	if len(schema) == 0 {
		schema = DefaultTableColumns
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultTableTimeout
	}
	if cfg.RowSelector == "" {
		cfg.RowSelector = DefaultRowSelector
	}
	// Negative settle disables the delay.
	if cfg.Settle == 0 {
		cfg.Settle = DefaultSettle
	}

	if renderer == nil {
		switch strings.ToLower(cfg.Renderer) {
		case "", "chrome":
			renderer = &ChromeRenderer{
				WaitSelector:   cfg.RowSelector,
				ExpandSelector: cfg.ExpandSelector,
				Scroll:         cfg.Scroll,
				Settle:         cfg.Settle,
				RemoteURL:      cfg.RemoteURL,
				ExecPath:       cfg.ExecPath,
			}
		case "static":
			renderer = &StaticRenderer{}
		default:
			return nil, fmt.Errorf("unknown renderer: %q", cfg.Renderer)
		}
	}
	return &TableSource{cfg: cfg, schema: schema, renderer: renderer}, nil
}

func (s *TableSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "table",
		Label: "Rendered HTML table",
		ConfigFields: []etl.ConfigField{
			{Key: "url", Label: "Page URL", Required: true, Help: "Leaderboard page, or a file path for a saved page"},
			{Key: "columns", Label: "Columns", Help: "Column order of the table; the first column is the node id"},
			{Key: "renderer", Label: "Renderer", Default: "chrome", Help: "chrome (headless browser) or static (plain GET / file)"},
			{Key: "row_selector", Label: "Row selector", Default: DefaultRowSelector},
			{Key: "expand_selector", Label: "Expand selector", Help: "Clicked once to reveal lazily loaded rows"},
			{Key: "scroll", Label: "Scroll to bottom", Default: "true"},
			{Key: "settle", Label: "Settle delay", Default: DefaultSettle.String()},
			{Key: "timeout", Label: "Timeout", Default: DefaultTableTimeout.String()},
		},
	}
}

func (s *TableSource) Schema() etl.ColumnSchema { return s.schema }

// FetchSnapshot renders the page and normalizes its rows. The request's node
// ids are ignored: the whole table is always read. On a load failure an empty
// snapshot is returned together with an ErrNetworkFailure error.
func (s *TableSource) FetchSnapshot(ctx context.Context, _ etl.FetchRequest) (*etl.Snapshot, error) {
	snap := etl.NewSnapshot("table", s.schema)

	renderCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	page, err := s.renderer.Render(renderCtx, s.cfg.URL)
	if err != nil {
		return snap, etl.NetworkError(err)
	}

	rows, err := ExtractTableRows(strings.NewReader(page))
	if err != nil {
		return snap, etl.MalformedError(err)
	}

	snap.Records, snap.Stats = etl.Normalize(rows, s.schema)
	return snap, nil
}
