package app

import (
	"github.com/spf13/cobra"
	"go.uber.org/zap"

	mcpserver "nodewatch/internal/mcp"
)

// newMCPCmd runs the queries as a standalone MCP server on stdin/stdout.
// Logs go to stderr so they never corrupt the stdio stream.
func newMCPCmd(opts *rootOptions) *cobra.Command {
	return &cobra.Command{
		Use:   "mcp",
		Short: "Serve the node queries as MCP tools over stdio",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, logger, err := opts.load()
			if err != nil {
				return err
			}
			defer func() { _ = logger.Sync() }()

			a, err := New(cfg, logger, nil)
			if err != nil {
				return err
			}

			srv := mcpserver.New(mcpserver.Deps{
				Queries:  a.Queries(),
				Registry: a.Registry(),
				Logger:   logger.Named("mcp"),
				Version:  Version,
			})
			if err := srv.ServeStdio(); err != nil {
				logger.Error("mcp server stopped", zap.Error(err))
				return err
			}
			return nil
		},
	}
}
