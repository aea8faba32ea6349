package service

import (
	"context"
	"errors"
	"strings"

	"go.uber.org/zap"

	"nodewatch/internal/etl"
	"nodewatch/internal/format"
)

// DefaultRankSize is how many nodes rank() shows when the caller gives no count.
const DefaultRankSize = 25

// ─────────────────────────────────────────────────────────────
// QueryService: the inbound query shapes, rendered to text blocks
// ─────────────────────────────────────────────────────────────

// QueryService answers rank/metric/allMetrics queries. Every call fetches a
// fresh snapshot; nothing is cached between calls.
//
// Each method returns the blocks to deliver together with the error that
// produced any failure block, so callers can both show the failure and act on it.
type QueryService struct {
	engine    *etl.Engine
	formatter *format.Formatter
	logger    *zap.Logger

	// Nodes is the configured node list used by rank over row-addressed
	// sources and by allMetrics without arguments.
	Nodes []string
	// RankSize is the default count for Rank.
	RankSize int
}

// NewQueryService wires a query service.
func NewQueryService(engine *etl.Engine, formatter *format.Formatter, logger *zap.Logger, nodes []string) *QueryService {
	if logger == nil {
		logger = zap.NewNop()
	}
	if formatter == nil {
		formatter = format.New(nil)
	}
	return &QueryService{
		engine:    engine,
		formatter: formatter,
		logger:    logger,
		Nodes:     nodes,
		RankSize:  DefaultRankSize,
	}
}

// Schema returns the column schema of the configured source.
func (s *QueryService) Schema() etl.ColumnSchema {
	return s.engine.Schema()
}

// Rank renders the first n nodes of a fresh snapshot, one block per node.
// n <= 0 uses RankSize.
func (s *QueryService) Rank(ctx context.Context, n int) ([]string, error) {
	if n <= 0 {
		n = s.RankSize
	}
	snap, _, err := s.engine.Fetch(ctx, etl.FetchRequest{NodeIDs: s.Nodes})
	if err != nil {
		return []string{s.formatter.Error(err)}, err
	}
	return s.formatter.Render(format.ModeRankedList, etl.TopN(snap, n), "")
}

// Metric renders one node, either every column or the single named metric.
func (s *QueryService) Metric(ctx context.Context, nodeID, metric string) ([]string, error) {
	q := etl.MetricQuery{NodeID: strings.TrimSpace(nodeID), Metric: strings.TrimSpace(metric)}
	if q.NodeID == "" {
		err := errors.New("node id is required")
		return []string{s.formatter.Error(err)}, err
	}

	snap, _, err := s.engine.Fetch(ctx, etl.FetchRequest{NodeIDs: []string{q.NodeID}})
	if err != nil {
		return []string{s.formatter.Error(err)}, err
	}

	rec, field, err := etl.Resolve(snap, q)
	if err != nil {
		return []string{s.formatter.Error(err)}, err
	}
	if q.Metric == "" {
		return []string{s.formatter.NodeFull(rec)}, nil
	}
	return []string{s.formatter.NodeField(rec.NodeID, field.Name, field.Value)}, nil
}

// AllMetrics renders every column of each node, one block per requested node,
// in request order. With no ids the configured node list is used. One fetch
// serves the whole batch; a node missing from it gets its own "not found"
// block and a failed fetch yields one error block per node.
func (s *QueryService) AllMetrics(ctx context.Context, nodeIDs ...string) ([]string, error) {
	ids := cleanIDs(nodeIDs)
	if len(ids) == 0 {
		ids = cleanIDs(s.Nodes)
	}
	if len(ids) == 0 {
		err := errors.New("no node ids given and none configured")
		return []string{s.formatter.Error(err)}, err
	}

	snap, _, err := s.engine.Fetch(ctx, etl.FetchRequest{NodeIDs: ids})
	if err != nil {
		blocks := make([]string, len(ids))
		for i, id := range ids {
			blocks[i] = s.formatter.NodeError(id, err)
		}
		return blocks, err
	}

	var missing []error
	blocks := make([]string, 0, len(ids))
	for _, id := range ids {
		rec, err := etl.ByNodeID(snap, id)
		if err != nil {
			missing = append(missing, err)
			blocks = append(blocks, s.formatter.NodeError(id, err))
			continue
		}
		blocks = append(blocks, s.formatter.NodeFull(rec))
	}
	if len(missing) > 0 {
		s.logger.Debug("nodes missing from snapshot",
			zap.String("snapshot", snap.ID),
			zap.Int("requested", len(ids)),
			zap.Int("missing", len(missing)),
		)
	}
	return blocks, errors.Join(missing...)
}

func cleanIDs(ids []string) []string {
	out := make([]string, 0, len(ids))
	for _, id := range ids {
		if id = strings.TrimSpace(id); id != "" {
			out = append(out, id)
		}
	}
	return out
}
