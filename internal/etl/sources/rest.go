package sources

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"nodewatch/internal/etl"
)

// ── REST Metric Source ──────────────────────────────────────
// One GET per (node, metric) against a templated endpoint such as
//   https://host/stats/node/{nodeId}?metric={metric}
// The response shape drifts between deployments, so the value is extracted
// leniently: time series → last point, object → value-like key, else verbatim.

// DefaultRESTTimeout bounds a single metric request.
const DefaultRESTTimeout = 10 * time.Second

// valueKeys are tried in order when a payload object carries the value.
var valueKeys = []string{"value", "val", "latest"}

// RESTConfig configures the REST metric source.
type RESTConfig struct {
	URLTemplate string            `mapstructure:"url_template"`
	Metrics     []string          `mapstructure:"metrics"`
	Fields      []string          `mapstructure:"fields"`
	Headers     map[string]string `mapstructure:"headers"`
	Timeout     time.Duration     `mapstructure:"timeout"`
}

// RESTSource implements etl.Source over a JSON metric endpoint.
type RESTSource struct {
	cfg    RESTConfig
	client *http.Client
	schema etl.ColumnSchema
}

// NewRESTSource validates cfg and builds the source. client may be nil.
func NewRESTSource(cfg RESTConfig, client *http.Client) (*RESTSource, error) {
	if cfg.URLTemplate == "" {
		return nil, fmt.Errorf("url_template is required")
	}
	if !strings.Contains(cfg.URLTemplate, "{metric}") {
		return nil, fmt.Errorf("url_template must contain {metric}")
	}
	if len(cfg.Metrics) == 0 {
		return nil, fmt.Errorf("at least one metric is required")
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = DefaultRESTTimeout
	}
	if client == nil {
		client = &http.Client{}
	}
	return &RESTSource{cfg: cfg, client: client, schema: restSchema(cfg)}, nil
}

func restSchema(cfg RESTConfig) etl.ColumnSchema {
	schema := etl.ColumnSchema{"Node"}
	for _, m := range cfg.Metrics {
		if len(cfg.Fields) == 0 {
			schema = append(schema, m)
			continue
		}
		for _, f := range cfg.Fields {
			schema = append(schema, m+"."+f)
		}
	}
	return schema
}

func (s *RESTSource) Spec() etl.SourceSpec {
	return etl.SourceSpec{
		Type:  "rest",
		Label: "REST metric endpoint",
		ConfigFields: []etl.ConfigField{
			{Key: "url_template", Label: "URL template", Required: true, Help: "Endpoint with {nodeId} and {metric} placeholders"},
			{Key: "metrics", Label: "Metrics", Required: true, Help: "Metric names requested per node"},
			{Key: "fields", Label: "Fields", Help: "Optional per-metric fields, e.g. successRate, point, counter"},
			{Key: "headers", Label: "Headers", Help: "Extra request headers"},
			{Key: "timeout", Label: "Timeout", Default: DefaultRESTTimeout.String()},
		},
	}
}

func (s *RESTSource) Schema() etl.ColumnSchema { return s.schema }

// FetchSnapshot builds one Record per requested node. A failed metric becomes
// an "Error: <cause>" cell; it never aborts the other metrics or nodes.
func (s *RESTSource) FetchSnapshot(ctx context.Context, req etl.FetchRequest) (*etl.Snapshot, error) {
	snap := etl.NewSnapshot("rest", s.schema)
	if len(req.NodeIDs) == 0 {
		return snap, nil
	}

	rows := make([][]string, 0, len(req.NodeIDs))
	for _, nodeID := range req.NodeIDs {
		if err := ctx.Err(); err != nil {
			return etl.NewSnapshot("rest", s.schema), etl.NetworkError(err)
		}
		nodeID = strings.TrimSpace(nodeID)
		row := []string{nodeID}
		for _, metric := range s.cfg.Metrics {
			cells, err := s.fetchMetric(ctx, nodeID, metric)
			if err != nil {
				placeholder := "Error: " + etl.Cause(err)
				cells = make([]string, s.width())
				for i := range cells {
					cells[i] = placeholder
				}
				snap.CellErrors += len(cells)
			}
			row = append(row, cells...)
		}
		rows = append(rows, row)
	}

	snap.Records, snap.Stats = etl.Normalize(rows, s.schema)
	return snap, nil
}

// width is the number of columns one metric contributes.
func (s *RESTSource) width() int {
	if len(s.cfg.Fields) == 0 {
		return 1
	}
	return len(s.cfg.Fields)
}

// fetchMetric issues one request and extracts the metric's cells.
func (s *RESTSource) fetchMetric(ctx context.Context, nodeID, metric string) ([]string, error) {
	reqCtx, cancel := context.WithTimeout(ctx, s.cfg.Timeout)
	defer cancel()

	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, s.buildURL(nodeID, metric), nil)
	if err != nil {
		return nil, fmt.Errorf("create request: %w", err)
	}
	req.Header.Set("Accept", "application/json")
	for k, v := range s.cfg.Headers {
		req.Header.Set(k, v)
	}

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, etl.NetworkError(fmt.Errorf("http request: %w", err))
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 1024))
		return nil, etl.NetworkError(fmt.Errorf("http %d: %s", resp.StatusCode, strings.TrimSpace(string(body))))
	}

	data, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, etl.NetworkError(fmt.Errorf("read body: %w", err))
	}
	if len(bytes.TrimSpace(data)) == 0 {
		return nil, etl.MalformedError(errors.New("empty body"))
	}

	return s.project(ExtractValue(data)), nil
}

// project maps an extracted value onto the configured fields.
func (s *RESTSource) project(v any) []string {
	if len(s.cfg.Fields) == 0 {
		return []string{formatValue(v)}
	}
	obj, _ := v.(map[string]any)
	cells := make([]string, len(s.cfg.Fields))
	for i, f := range s.cfg.Fields {
		cells[i] = etl.NotAvailable
		if fv, ok := lookupKey(obj, f); ok {
			cells[i] = formatValue(fv)
		}
	}
	return cells
}

// buildURL substitutes the placeholders, path-escaping path segments and
// query-escaping query values.
func (s *RESTSource) buildURL(nodeID, metric string) string {
	tmpl := s.cfg.URLTemplate
	path, query, hasQuery := strings.Cut(tmpl, "?")

	replace := func(str string, esc func(string) string) string {
		r := strings.NewReplacer(
			"{nodeId}", esc(nodeID),
			"{node_id}", esc(nodeID),
			"{metric}", esc(metric),
		)
		return r.Replace(str)
	}

	out := replace(path, url.PathEscape)
	if hasQuery {
		out += "?" + replace(query, url.QueryEscape)
	}
	return out
}

// ── Value extraction ──────────────────────────────────────

// ExtractValue reduces a response body to the metric value.
//   - body that is not JSON → trimmed raw text
//   - {"data": [...]} or a top-level list → last element (empty or null → nil)
//   - object with a value-like key holding a non-null value → that value
//   - top-level object whose value-like keys are all null → nil
//   - anything else → the parsed value itself
func ExtractValue(body []byte) any {
	dec := json.NewDecoder(bytes.NewReader(body))
	dec.UseNumber()
	var raw any
	if err := dec.Decode(&raw); err != nil || dec.More() {
		return strings.TrimSpace(string(body))
	}
	return extract(raw, true)
}

func extract(v any, unwrapData bool) any {
	switch t := v.(type) {
	case []any:
		if len(t) == 0 {
			return nil
		}
		return extract(t[len(t)-1], false)
	case map[string]any:
		if unwrapData {
			if series, ok := lookupKey(t, "data"); ok {
				switch series.(type) {
				case nil:
					return nil
				case []any, map[string]any:
					return extract(series, false)
				}
			}
		}
		nullValue := false
		for _, k := range valueKeys {
			val, ok := lookupKey(t, k)
			if !ok {
				continue
			}
			if val != nil {
				return val
			}
			nullValue = true
		}
		// A series point without a value is shown whole; a top-level
		// {"value": null} means there is no value.
		if nullValue && unwrapData {
			return nil
		}
		return t
	default:
		return v
	}
}

// lookupKey finds key in obj, falling back to a case-insensitive match.
func lookupKey(obj map[string]any, key string) (any, bool) {
	if obj == nil {
		return nil, false
	}
	if v, ok := obj[key]; ok {
		return v, true
	}
	for k, v := range obj {
		if strings.EqualFold(k, key) {
			return v, true
		}
	}
	return nil, false
}

// formatValue renders an extracted value as a cell.
func formatValue(v any) string {
	switch t := v.(type) {
	case nil:
		return etl.NotAvailable
	case string:
		if strings.TrimSpace(t) == "" {
			return etl.NotAvailable
		}
		return t
	case json.Number:
		return t.String()
	case bool:
		if t {
			return "true"
		}
		return "false"
	default:
		b, err := json.Marshal(t)
		if err != nil {
			return fmt.Sprint(t)
		}
		return string(b)
	}
}
