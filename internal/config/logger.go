package config

import (
	"fmt"

	"go.uber.org/zap"
)

// NewLogger builds the process logger. Logs always go to stderr so stdout
// stays free for rendered blocks and the MCP stdio stream.
func NewLogger(lc LogConfig) (*zap.Logger, error) {
	var zc zap.Config
	switch lc.Format {
	case "", "console":
		zc = zap.NewDevelopmentConfig()
		zc.DisableStacktrace = true
	case "json":
		zc = zap.NewProductionConfig()
	default:
		return nil, fmt.Errorf("unknown log format %q", lc.Format)
	}

	if lc.Level != "" {
		level, err := zap.ParseAtomicLevel(lc.Level)
		if err != nil {
			return nil, fmt.Errorf("log level: %w", err)
		}
		zc.Level = level
	}
	zc.OutputPaths = []string{"stderr"}
	zc.ErrorOutputPaths = []string{"stderr"}

	return zc.Build()
}
