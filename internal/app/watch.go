package app

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nodewatch/internal/config"
	"nodewatch/internal/etl"
	"nodewatch/internal/service"
)

const (
	reloadDebounce  = 500 * time.Millisecond
	shutdownTimeout = 30 * time.Second
)

func newWatchCmd(opts *rootOptions) *cobra.Command {
	var metricsAddr string
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Push allMetrics blocks for the configured nodes on a schedule",
		Long: `Runs until interrupted. Every tick fetches one snapshot, renders a block
per configured node and delivers the blocks to the sink (stdout or NATS).
A tick that arrives while the previous push is still running is skipped.
Edits to the config file are picked up without a restart; sink changes
still need one.`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()
			if metricsAddr != "" {
				cfg.MetricsAddr = metricsAddr
			}
			ctx, stop := signal.NotifyContext(cmd.Context(), os.Interrupt, syscall.SIGTERM)
			defer stop()
			return runWatch(ctx, cmd, opts, cfg, logger)
		},
	}
	cmd.Flags().StringVar(&metricsAddr, "metrics-addr", "", "Serve Prometheus metrics on this address (e.g. :9102)")
	return cmd
}

func runWatch(ctx context.Context, cmd *cobra.Command, opts *rootOptions, cfg *config.Config, logger *zap.Logger) error {
	promReg, metrics := NewMetrics()
	a, err := New(cfg, logger, metrics)
	if err != nil {
		return err
	}

	sink, err := NewSink(cfg.Sink, cmd.OutOrStdout(), logger)
	if err != nil {
		return err
	}
	defer sink.Close()

	if cfg.MetricsAddr != "" {
		srv := serveMetrics(cfg.MetricsAddr, promReg, logger)
		defer func() {
			sctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
			defer cancel()
			_ = srv.Shutdown(sctx)
		}()
	}

	if cfg.Schedule.Greeting != "" {
		if err := sink.Send(ctx, a.Formatter().Text(cfg.Schedule.Greeting)); err != nil {
			logger.Warn("greeting not delivered", zap.Error(err))
		}
	}

	sched := service.NewScheduler(a.Queries(), sink, logger)
	if err := sched.Start(ctx, cfg.Schedule.Spec); err != nil {
		return err
	}
	defer sched.Stop()

	if cfg.Schedule.RunOnStart {
		go func() {
			select {
			case <-ctx.Done():
				return
			case <-time.After(cfg.Schedule.StartDelay):
			}
			if err := sched.RunOnce(ctx); err != nil {
				logger.Warn("initial push finished with errors", zap.Error(err))
			}
		}()
	}

	if cfg.File != "" {
		reload := func() { reloadConfig(ctx, opts, cfg.File, sched, metrics, logger) }
		if err := service.WatchFile(ctx, cfg.File, reloadDebounce, logger, reload); err != nil {
			logger.Warn("config reload disabled", zap.Error(err))
		}
	}

	logger.Info("watching nodes",
		zap.String("source", cfg.Source),
		zap.Strings("nodes", cfg.Nodes),
		zap.String("schedule", sched.Spec()),
	)
	<-ctx.Done()
	logger.Info("shutting down")

	sched.Stop()
	wctx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	sched.WaitRunning(wctx)
	return nil
}

// reloadConfig re-reads the config file and swaps in the new source, nodes
// and schedule. A broken file keeps the running setup.
func reloadConfig(ctx context.Context, opts *rootOptions, path string, sched *service.Scheduler, metrics *etl.Metrics, logger *zap.Logger) {
	if ctx.Err() != nil {
		return
	}
	cfg, err := opts.readConfig(path)
	if err != nil {
		logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
		return
	}
	a, err := New(cfg, logger, metrics)
	if err != nil {
		logger.Warn("config reload failed, keeping previous settings", zap.Error(err))
		return
	}
	sched.SetQueries(a.Queries())

	spec := cfg.Schedule.Spec
	if spec == "" {
		spec = service.DefaultPushSchedule
	}
	if spec != sched.Spec() {
		if err := sched.Start(ctx, spec); err != nil {
			logger.Warn("new schedule rejected", zap.Error(err))
		}
	}
	logger.Info("config reloaded", zap.String("source", cfg.Source), zap.Strings("nodes", cfg.Nodes))
}

func serveMetrics(addr string, reg *prometheus.Registry, logger *zap.Logger) *http.Server {
	mux := http.NewServeMux()
	mux.Handle("/metrics", promhttp.HandlerFor(reg, promhttp.HandlerOpts{}))
	srv := &http.Server{Addr: addr, Handler: mux, ReadHeaderTimeout: 5 * time.Second}
	go func() {
		logger.Info("metrics listening", zap.String("addr", addr))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			logger.Error("metrics server failed", zap.Error(err))
		}
	}()
	return srv
}
