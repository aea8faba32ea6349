package etl_test

import (
	"context"
	"errors"
	"strings"
	"testing"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zapcore"
	"go.uber.org/zap/zaptest/observer"

	"nodewatch/internal/etl"
)

// fakeSource returns canned rows or an error and counts calls.
type fakeSource struct {
	schema etl.ColumnSchema
	rows   [][]string
	err    error
	nilOut bool
	calls  int
	seen   []etl.FetchRequest
}

func (f *fakeSource) Spec() etl.SourceSpec { return etl.SourceSpec{Type: "fake", Label: "Fake"} }
func (f *fakeSource) Schema() etl.ColumnSchema { return f.schema }
func (f *fakeSource) FetchSnapshot(_ context.Context, req etl.FetchRequest) (*etl.Snapshot, error) {
	f.calls++
	f.seen = append(f.seen, req)
	if f.nilOut {
		return nil, f.err
	}
	snap := etl.NewSnapshot("fake", f.schema)
	if f.err != nil {
		return snap, f.err
	}
	snap.Records, snap.Stats = etl.Normalize(f.rows, f.schema)
	return snap, nil
}

func TestEngine_FetchSuccess(t *testing.T) {
	src := &fakeSource{
		schema: etl.ColumnSchema{"Node", "Score"},
		rows:   [][]string{{"0xa", "1"}, {"0xb"}},
	}
	eng := etl.NewEngine(src, nil, nil)

	snap, res, err := eng.Fetch(context.Background(), etl.FetchRequest{NodeIDs: []string{"0xa"}})

	require.NoError(t, err)
	require.NotNil(t, snap)
	assert.Equal(t, 1, snap.Len())
	assert.NotEmpty(t, snap.ID)
	assert.Equal(t, "success", res.Status)
	assert.Equal(t, snap.ID, res.SnapshotID)
	assert.Equal(t, 1, res.Stats.RowsDropped)
	assert.Equal(t, []string{"0xa"}, src.seen[0].NodeIDs)
}

func TestEngine_EachFetchIsFresh(t *testing.T) {
	src := &fakeSource{schema: etl.ColumnSchema{"Node"}, rows: [][]string{{"0xa"}}}
	eng := etl.NewEngine(src, nil, nil)

	first, _, err := eng.Fetch(context.Background(), etl.FetchRequest{})
	require.NoError(t, err)
	second, _, err := eng.Fetch(context.Background(), etl.FetchRequest{})
	require.NoError(t, err)

	assert.Equal(t, 2, src.calls)
	assert.NotEqual(t, first.ID, second.ID)
}

func TestEngine_EmptyResult(t *testing.T) {
	src := &fakeSource{schema: etl.ColumnSchema{"Node", "Score"}}
	eng := etl.NewEngine(src, nil, nil)

	snap, res, err := eng.Fetch(context.Background(), etl.FetchRequest{})

	assert.ErrorIs(t, err, etl.ErrEmptyResult)
	require.NotNil(t, snap)
	assert.Zero(t, snap.Len())
	assert.Equal(t, "empty", res.Status)
}

func TestEngine_UnclassifiedErrorBecomesNetworkFailure(t *testing.T) {
	src := &fakeSource{schema: etl.ColumnSchema{"Node"}, err: errors.New("browser crashed"), nilOut: true}
	eng := etl.NewEngine(src, nil, nil)

	snap, res, err := eng.Fetch(context.Background(), etl.FetchRequest{})

	require.ErrorIs(t, err, etl.ErrNetworkFailure)
	assert.Equal(t, "browser crashed", etl.Cause(err))
	require.NotNil(t, snap, "a failed fetch still yields an empty snapshot")
	assert.Zero(t, snap.Len())
	assert.Equal(t, "error", res.Status)
}

func TestEngine_MalformedIsPreserved(t *testing.T) {
	src := &fakeSource{schema: etl.ColumnSchema{"Node"}, err: etl.MalformedError(errors.New("no table found"))}
	eng := etl.NewEngine(src, nil, nil)

	_, _, err := eng.Fetch(context.Background(), etl.FetchRequest{})

	assert.ErrorIs(t, err, etl.ErrMalformedPayload)
	assert.NotErrorIs(t, err, etl.ErrNetworkFailure)
}

func TestEngine_RecordsMetricsAndLogs(t *testing.T) {
	core, logs := observer.New(zapcore.DebugLevel)
	reg := prometheus.NewRegistry()
	metrics := etl.NewMetrics(reg)

	ok := &fakeSource{schema: etl.ColumnSchema{"Node", "Score"}, rows: [][]string{{"0xa", "1"}, {"short"}}}
	_, _, err := etl.NewEngine(ok, zap.New(core), metrics).Fetch(context.Background(), etl.FetchRequest{})
	require.NoError(t, err)

	bad := &fakeSource{schema: etl.ColumnSchema{"Node"}, err: etl.NetworkError(errors.New("timeout"))}
	_, _, err = etl.NewEngine(bad, zap.New(core), metrics).Fetch(context.Background(), etl.FetchRequest{})
	require.Error(t, err)

	expected := `
# HELP nodewatch_snapshot_fetches_total Snapshot fetches by source and outcome.
# TYPE nodewatch_snapshot_fetches_total counter
nodewatch_snapshot_fetches_total{source="fake",status="error"} 1
nodewatch_snapshot_fetches_total{source="fake",status="success"} 1
# HELP nodewatch_normalizer_rows_dropped_total Raw rows discarded for having fewer cells than the schema.
# TYPE nodewatch_normalizer_rows_dropped_total counter
nodewatch_normalizer_rows_dropped_total{source="fake"} 1
`
	assert.NoError(t, testutil.GatherAndCompare(reg, strings.NewReader(expected),
		"nodewatch_snapshot_fetches_total", "nodewatch_normalizer_rows_dropped_total"))

	assert.Equal(t, 1, logs.FilterMessage("snapshot fetched").Len())
	warn := logs.FilterMessage("snapshot fetch failed").All()
	require.Len(t, warn, 1)
	assert.Equal(t, zapcore.WarnLevel, warn[0].Level)
}

func TestMetrics_NilIsSafe(t *testing.T) {
	var m *etl.Metrics
	m.ObserveDropped("fake", 3)
	m.ObserveCellErrors("fake", 1)
}
