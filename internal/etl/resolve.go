package etl

import "fmt"

// ── Resolver ───────────────────────────────────────────────
// Pure lookups over a Snapshot. None of these mutate or reorder it.

// TopN returns the first n records in snapshot order, or all of them if the
// snapshot is shorter. n <= 0 yields nothing.
func TopN(snap *Snapshot, n int) []Record {
	if snap == nil || n <= 0 {
		return nil
	}
	if n > len(snap.Records) {
		n = len(snap.Records)
	}
	return snap.Records[:n:n]
}

// ByNodeID returns the first record whose node id matches, ignoring case and
// surrounding whitespace.
func ByNodeID(snap *Snapshot, nodeID string) (Record, error) {
	want := NormalizeNodeID(nodeID)
	if snap != nil && want != "" {
		for _, rec := range snap.Records {
			if NormalizeNodeID(rec.NodeID) == want {
				return rec, nil
			}
		}
	}
	return Record{}, fmt.Errorf("%w: %s", ErrNodeNotFound, nodeID)
}

// ByNodeIDAndMetric resolves the node first, then the metric against the
// snapshot schema. An unknown metric on an existing node is reported as
// *UnknownMetricError, never as ErrNodeNotFound.
func ByNodeIDAndMetric(snap *Snapshot, nodeID, metric string) (Record, Field, error) {
	rec, err := ByNodeID(snap, nodeID)
	if err != nil {
		return Record{}, Field{}, err
	}
	idx := snap.Schema.Index(metric)
	if idx < 0 || idx >= len(rec.Fields) {
		return rec, Field{}, &UnknownMetricError{Metric: metric, Available: snap.Schema}
	}
	return rec, rec.Fields[idx], nil
}

// Resolve answers a MetricQuery. Without a metric the whole record is returned
// and the field is zero.
func Resolve(snap *Snapshot, q MetricQuery) (Record, Field, error) {
	if q.Metric == "" {
		rec, err := ByNodeID(snap, q.NodeID)
		return rec, Field{}, err
	}
	return ByNodeIDAndMetric(snap, q.NodeID, q.Metric)
}
