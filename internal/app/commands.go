package app

import (
	"context"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"
	"go.uber.org/zap"

	"nodewatch/internal/config"
	"nodewatch/internal/transport"
)

// Version is stamped at build time with -ldflags.
var Version = "dev"

type rootOptions struct {
	configPath string
	source     string
	markup     string
	logLevel   string
}

// load reads the config and applies the global flag overrides.
func (o *rootOptions) load() (*config.Config, *zap.Logger, error) {
	cfg, err := o.readConfig(o.configPath)
	if err != nil {
		return nil, nil, err
	}
	logger, err := config.NewLogger(cfg.Log)
	if err != nil {
		return nil, nil, err
	}
	return cfg, logger, nil
}

func (o *rootOptions) readConfig(path string) (*config.Config, error) {
	cfg, err := config.Load(path)
	if err != nil {
		return nil, err
	}
	if o.source != "" {
		cfg.Source = o.source
	}
	if o.markup != "" {
		cfg.Markup = o.markup
	}
	if o.logLevel != "" {
		cfg.Log.Level = o.logLevel
	}
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return cfg, nil
}

// build loads config and wires a one-shot App without metrics.
func (o *rootOptions) build() (*App, func(), error) {
	cfg, logger, err := o.load()
	if err != nil {
		return nil, nil, err
	}
	a, err := New(cfg, logger, nil)
	if err != nil {
		_ = logger.Sync()
		return nil, nil, err
	}
	return a, func() { _ = logger.Sync() }, nil
}

// NewRootCmd creates the root command with all subcommands.
func NewRootCmd() *cobra.Command {
	opts := &rootOptions{}
	root := &cobra.Command{
		Use:   "nodewatch",
		Short: "Fetch, normalize and report node metrics",
		Long: `nodewatch pulls node metrics from a REST metric API, a rendered
leaderboard table or a CSV export, normalizes them into one record per node
and renders text blocks for chat, terminal or agent consumers.

Commands:
  rank       Top nodes of a fresh snapshot
  metric     All metrics of one node, or one named metric
  all        Every metric for several nodes
  columns    Column schema of the active source
  watch      Push allMetrics blocks on a schedule
  mcp        Serve the queries as MCP tools on stdio`,
		Version:       Version,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	pf := root.PersistentFlags()
	pf.StringVarP(&opts.configPath, "config", "c", "", "Config file (default ./nodewatch.yaml or ~/.config/nodewatch/nodewatch.yaml)")
	pf.StringVar(&opts.source, "source", "", "Override the active source (rest, table, csv)")
	pf.StringVar(&opts.markup, "markup", "", "Override the markup dialect (plain, markdown, markdownv2, html)")
	pf.StringVar(&opts.logLevel, "log-level", "", "Override the log level")

	root.AddCommand(
		newRankCmd(opts),
		newMetricCmd(opts),
		newAllCmd(opts),
		newColumnsCmd(opts),
		newWatchCmd(opts),
		newMCPCmd(opts),
	)
	return root
}

// Execute runs the root command and exits non-zero on failure.
func Execute() {
	root := NewRootCmd()
	if err := root.ExecuteContext(context.Background()); err != nil {
		fmt.Fprintln(root.ErrOrStderr(), "Error:", err)
		os.Exit(1)
	}
}

func newRankCmd(opts *rootOptions) *cobra.Command {
	var n int
	cmd := &cobra.Command{
		Use:     "rank [n]",
		Aliases: []string{"top"},
		Short:   "Show the top n nodes of a fresh snapshot",
		Args:    cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			if len(args) == 1 {
				v, err := strconv.Atoi(args[0])
				if err != nil {
					return fmt.Errorf("bad count %q: %w", args[0], err)
				}
				n = v
			}
			a, done, err := opts.build()
			if err != nil {
				return err
			}
			defer done()
			blocks, qerr := a.Queries().Rank(cmd.Context(), n)
			return printBlocks(cmd, blocks, qerr)
		},
	}
	cmd.Flags().IntVarP(&n, "count", "n", 0, "How many nodes to show (default rank_size)")
	return cmd
}

func newMetricCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "metric <node-id> [metric]",
		Short: "Show every metric of a node, or just the named one",
		Args:  cobra.RangeArgs(1, 2),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := opts.build()
			if err != nil {
				return err
			}
			defer done()
			var metric string
			if len(args) == 2 {
				metric = args[1]
			}
			blocks, qerr := a.Queries().Metric(cmd.Context(), args[0], metric)
			return printBlocks(cmd, blocks, qerr)
		},
	}
}

func newAllCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "all [node-id...]",
		Short: "Show every metric for each node (default: configured nodes)",
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := opts.build()
			if err != nil {
				return err
			}
			defer done()
			blocks, qerr := a.Queries().AllMetrics(cmd.Context(), args...)
			return printBlocks(cmd, blocks, qerr)
		},
	}
}

func newColumnsCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "columns",
		Short: "List the column schema of the active source",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			a, done, err := opts.build()
			if err != nil {
				return err
			}
			defer done()
			out := cmd.OutOrStdout()
			for i, col := range a.Queries().Schema() {
				fmt.Fprintf(out, "%2d  %s\n", i, col)
			}
			return nil
		},
	}
}

// printBlocks writes the rendered blocks, then reports the query error so the
// exit status reflects it. Failure blocks are already part of blocks.
func printBlocks(cmd *cobra.Command, blocks []string, qerr error) error {
	sink := transport.NewWriterSink(cmd.OutOrStdout())
	for _, b := range blocks {
		if err := sink.Send(cmd.Context(), b); err != nil {
			return err
		}
	}
	return qerr
}
