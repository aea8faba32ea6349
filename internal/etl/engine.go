package etl

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"go.uber.org/zap"
)

// NewSnapshot starts an empty snapshot for source with a fresh id.
func NewSnapshot(source string, schema ColumnSchema) *Snapshot {
	return &Snapshot{
		ID:        uuid.NewString(),
		Source:    source,
		Schema:    schema,
		Records:   []Record{},
		FetchedAt: time.Now().UTC(),
	}
}

// FetchResult is the outcome of one engine fetch.
type FetchResult struct {
	SnapshotID string         `json:"snapshotId"`
	Source     string         `json:"source"`
	Status     string         `json:"status"` // "success" | "empty" | "error"
	Stats      NormalizeStats `json:"stats"`
	CellErrors int            `json:"cellErrors"`
	Duration   time.Duration  `json:"duration"`
	Error      string         `json:"error,omitempty"`
}

// ── Engine ─────────────────────────────────────────────────
// The Engine invokes exactly one source per request and classifies the outcome.
// It keeps no state between fetches, so concurrent callers never share a snapshot.

// Engine fetches snapshots from a single configured source.
type Engine struct {
	Source  Source
	Logger  *zap.Logger
	Metrics *Metrics
}

// NewEngine wires an engine. A nil logger logs nowhere, nil metrics record nothing.
func NewEngine(src Source, logger *zap.Logger, metrics *Metrics) *Engine {
	if logger == nil {
		logger = zap.NewNop()
	}
	return &Engine{Source: src, Logger: logger, Metrics: metrics}
}

// Schema returns the column schema of the configured source.
func (e *Engine) Schema() ColumnSchema {
	return e.Source.Schema()
}

// Fetch runs one snapshot fetch. A whole-fetch failure is returned as an error
// wrapping ErrNetworkFailure or ErrMalformedPayload; a fetch that succeeds with
// no records returns ErrEmptyResult. The snapshot is non-nil in every case.
func (e *Engine) Fetch(ctx context.Context, req FetchRequest) (*Snapshot, *FetchResult, error) {
	start := time.Now()
	typ := e.Source.Spec().Type
	log := e.Logger.With(zap.String("source", typ), zap.Strings("nodes", req.NodeIDs))

	snap, err := e.Source.FetchSnapshot(ctx, req)
	if snap == nil {
		snap = NewSnapshot(typ, e.Source.Schema())
	}
	result := &FetchResult{
		SnapshotID: snap.ID,
		Source:     typ,
		Stats:      snap.Stats,
		CellErrors: snap.CellErrors,
	}

	switch {
	case err != nil:
		if !errors.Is(err, ErrNetworkFailure) && !errors.Is(err, ErrMalformedPayload) {
			err = NetworkError(err)
		}
		result.Status = "error"
		result.Error = err.Error()
	case snap.Len() == 0:
		err = ErrEmptyResult
		result.Status = "empty"
		result.Error = err.Error()
	default:
		result.Status = "success"
	}
	result.Duration = time.Since(start)

	e.Metrics.observeFetch(typ, result.Status, result.Duration)
	e.Metrics.ObserveDropped(typ, snap.Stats.RowsDropped)
	e.Metrics.ObserveCellErrors(typ, snap.CellErrors)

	fields := []zap.Field{
		zap.String("snapshot", snap.ID),
		zap.String("status", result.Status),
		zap.Int("rows_kept", snap.Stats.RowsKept),
		zap.Int("rows_dropped", snap.Stats.RowsDropped),
		zap.Int("cell_errors", snap.CellErrors),
		zap.Duration("duration", result.Duration),
	}
	if err != nil {
		log.Warn("snapshot fetch failed", append(fields, zap.Error(err))...)
	} else {
		log.Debug("snapshot fetched", fields...)
	}
	return snap, result, err
}
