package etl_test

import (
	"errors"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"nodewatch/internal/etl"
)

func sampleSnapshot() *etl.Snapshot {
	schema := etl.ColumnSchema{"Node", "Score", "Uptime"}
	records, _ := etl.Normalize([][]string{
		{"0xAAA", "99", "100%"},
		{"0xbbb", "95", "98%"},
		{"0xccc", "90", "97%"},
	}, schema)
	return &etl.Snapshot{Schema: schema, Records: records}
}

func TestTopN(t *testing.T) {
	snap := sampleSnapshot()

	top := etl.TopN(snap, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "0xAAA", top[0].NodeID)
	assert.Equal(t, "0xbbb", top[1].NodeID)

	assert.Len(t, etl.TopN(snap, 10), 3, "n larger than the snapshot returns everything")
	assert.Empty(t, etl.TopN(snap, 0))
	assert.Empty(t, etl.TopN(snap, -1))
	assert.Empty(t, etl.TopN(nil, 5))
}

func TestTopN_DoesNotAliasSnapshot(t *testing.T) {
	snap := sampleSnapshot()
	top := etl.TopN(snap, 1)
	top = append(top, etl.Record{NodeID: "0xzzz"})

	assert.Equal(t, "0xbbb", snap.Records[1].NodeID)
	assert.Len(t, top, 2)
}

func TestByNodeID_CaseAndWhitespaceInsensitive(t *testing.T) {
	snap := sampleSnapshot()

	rec, err := etl.ByNodeID(snap, "  0xaaa ")
	require.NoError(t, err)
	assert.Equal(t, "0xAAA", rec.NodeID)

	rec, err = etl.ByNodeID(snap, "0XBBB")
	require.NoError(t, err)
	assert.Equal(t, "0xbbb", rec.NodeID)
}

func TestByNodeID_NotFound(t *testing.T) {
	_, err := etl.ByNodeID(sampleSnapshot(), "0xdead")
	require.ErrorIs(t, err, etl.ErrNodeNotFound)
	assert.Contains(t, err.Error(), "0xdead")

	_, err = etl.ByNodeID(sampleSnapshot(), "   ")
	assert.ErrorIs(t, err, etl.ErrNodeNotFound)

	_, err = etl.ByNodeID(nil, "0xaaa")
	assert.ErrorIs(t, err, etl.ErrNodeNotFound)
}

func TestByNodeIDAndMetric(t *testing.T) {
	snap := sampleSnapshot()

	rec, field, err := etl.ByNodeIDAndMetric(snap, "0xccc", "uptime")
	require.NoError(t, err)
	assert.Equal(t, "0xccc", rec.NodeID)
	assert.Equal(t, etl.Field{Name: "Uptime", Value: "97%"}, field)
}

func TestByNodeIDAndMetric_UnknownMetricListsSchema(t *testing.T) {
	_, _, err := etl.ByNodeIDAndMetric(sampleSnapshot(), "0xaaa", "Latency")

	require.ErrorIs(t, err, etl.ErrUnknownMetric)
	assert.False(t, errors.Is(err, etl.ErrNodeNotFound))

	var unknown *etl.UnknownMetricError
	require.ErrorAs(t, err, &unknown)
	assert.Equal(t, "Latency", unknown.Metric)
	assert.Equal(t, etl.ColumnSchema{"Node", "Score", "Uptime"}, unknown.Available)
	assert.Equal(t, `unknown metric "Latency", available: Node, Score, Uptime`, err.Error())
}

func TestByNodeIDAndMetric_MissingNodeWinsOverMetric(t *testing.T) {
	_, _, err := etl.ByNodeIDAndMetric(sampleSnapshot(), "0xdead", "Latency")
	assert.ErrorIs(t, err, etl.ErrNodeNotFound)
	assert.NotErrorIs(t, err, etl.ErrUnknownMetric)
}

func TestResolve(t *testing.T) {
	snap := sampleSnapshot()

	rec, field, err := etl.Resolve(snap, etl.MetricQuery{NodeID: "0xbbb"})
	require.NoError(t, err)
	assert.Equal(t, "0xbbb", rec.NodeID)
	assert.Equal(t, etl.Field{}, field)

	_, field, err = etl.Resolve(snap, etl.MetricQuery{NodeID: "0xbbb", Metric: "Score"})
	require.NoError(t, err)
	assert.Equal(t, "95", field.Value)
}

func TestCause_StripsKindPrefix(t *testing.T) {
	err := etl.NetworkError(fmt.Errorf("http 503: unavailable"))
	assert.ErrorIs(t, err, etl.ErrNetworkFailure)
	assert.Equal(t, "network failure: http 503: unavailable", err.Error())
	assert.Equal(t, "http 503: unavailable", etl.Cause(err))

	err = etl.MalformedError(errors.New("empty body"))
	assert.ErrorIs(t, err, etl.ErrMalformedPayload)
	assert.Equal(t, "empty body", etl.Cause(err))

	assert.Equal(t, "plain", etl.Cause(errors.New("plain")))
	assert.Equal(t, "", etl.Cause(nil))
}

func TestCause_KeepsOuterContext(t *testing.T) {
	err := fmt.Errorf("table fetch: %w", etl.NetworkError(errors.New("timeout")))

	assert.ErrorIs(t, err, etl.ErrNetworkFailure)
	assert.Equal(t, "table fetch: network failure: timeout", etl.Cause(err))
}

func TestNetworkError_DoesNotDoubleWrap(t *testing.T) {
	once := etl.NetworkError(errors.New("dial tcp: refused"))
	assert.Equal(t, once, etl.NetworkError(once))
	assert.Nil(t, etl.NetworkError(nil))
}
