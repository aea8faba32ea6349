// Package app wires configuration, sources, the query engine and the
// delivery surfaces (CLI, scheduled push, MCP) into one process.
package app

import (
	"fmt"
	"io"
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"go.uber.org/zap"

	"nodewatch/internal/config"
	"nodewatch/internal/etl"
	"nodewatch/internal/etl/sources"
	"nodewatch/internal/format"
	"nodewatch/internal/service"
	"nodewatch/internal/transport"
)

// App holds the wired services for one configuration.
type App struct {
	cfg      *config.Config
	logger   *zap.Logger
	registry *etl.Registry
	engine   *etl.Engine
	fmt      *format.Formatter
	queries  *service.QueryService
}

// New builds every configured source and the query service for the active one.
// metrics may be nil when nothing scrapes the process.
func New(cfg *config.Config, logger *zap.Logger, metrics *etl.Metrics) (*App, error) {
	if logger == nil {
		logger = zap.NewNop()
	}

	registry := BuildRegistry(cfg, logger)
	src, err := registry.Get(cfg.Source)
	if err != nil {
		return nil, fmt.Errorf("source %q is not usable: %w", cfg.Source, err)
	}

	escape, err := transport.Escaper(cfg.Markup)
	if err != nil {
		return nil, err
	}

	engine := etl.NewEngine(src, logger, metrics)
	formatter := format.New(escape)
	queries := service.NewQueryService(engine, formatter, logger, cfg.Nodes)
	queries.RankSize = cfg.RankSize

	return &App{
		cfg:      cfg,
		logger:   logger,
		registry: registry,
		engine:   engine,
		fmt:      formatter,
		queries:  queries,
	}, nil
}

// Queries returns the query service of the active source.
func (a *App) Queries() *service.QueryService { return a.queries }

// Formatter returns the formatter bound to the configured markup dialect.
func (a *App) Formatter() *format.Formatter { return a.fmt }

// Registry returns every source that could be built from the config.
func (a *App) Registry() *etl.Registry { return a.registry }

// BuildRegistry constructs each source whose settings are complete. Sources
// with missing settings are skipped and logged, so only the active one has
// to be fully configured.
func BuildRegistry(cfg *config.Config, logger *zap.Logger) *etl.Registry {
	reg := etl.NewRegistry()

	if src, err := sources.NewRESTSource(cfg.REST, &http.Client{}); err != nil {
		logger.Debug("rest source not configured", zap.Error(err))
	} else {
		reg.Register(src)
	}

	if src, err := sources.NewTableSource(cfg.Table, nil); err != nil {
		logger.Debug("table source not configured", zap.Error(err))
	} else {
		reg.Register(src)
	}

	if src, err := sources.NewCSVSource(cfg.CSV); err != nil {
		logger.Debug("csv source not configured", zap.Error(err))
	} else {
		reg.Register(src)
	}

	return reg
}

// NewSink opens the configured push destination. The stdout sink writes to w.
func NewSink(cfg config.SinkConfig, w io.Writer, logger *zap.Logger) (transport.Sink, error) {
	switch cfg.Type {
	case "", "stdout":
		return transport.NewWriterSink(w), nil
	case "nats":
		sink, err := transport.NewNATSSink(cfg.NATSURL, cfg.Subject, logger)
		if err != nil {
			return nil, err
		}
		return sink, nil
	default:
		return nil, fmt.Errorf("unknown sink type %q", cfg.Type)
	}
}

// NewMetrics registers the engine collectors on a fresh registry.
func NewMetrics() (*prometheus.Registry, *etl.Metrics) {
	reg := prometheus.NewRegistry()
	return reg, etl.NewMetrics(reg)
}
