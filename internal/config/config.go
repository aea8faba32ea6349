// Package config loads nodewatch settings from a YAML file, the environment
// and a .env file, once at startup. The resulting *Config is passed by
// pointer to whatever needs it; nothing reads settings globally.
package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	"nodewatch/internal/etl/sources"
)

// EnvPrefix prefixes every environment override, e.g. NODEWATCH_REST_TIMEOUT.
const EnvPrefix = "NODEWATCH"

// Config is the full process configuration.
type Config struct {
	Source      string   `mapstructure:"source"` // "rest" | "table" | "csv"
	Nodes       []string `mapstructure:"nodes"`
	RankSize    int      `mapstructure:"rank_size"`
	Markup      string   `mapstructure:"markup"` // "plain" | "markdown" | "markdownv2" | "html"
	MetricsAddr string   `mapstructure:"metrics_addr"`

	REST  sources.RESTConfig  `mapstructure:"rest"`
	Table sources.TableConfig `mapstructure:"table"`
	CSV   sources.CSVConfig   `mapstructure:"csv"`

	Schedule ScheduleConfig `mapstructure:"schedule"`
	Sink     SinkConfig     `mapstructure:"sink"`
	Log      LogConfig      `mapstructure:"log"`

	// File is the config file that was read, empty when none was found.
	File string `mapstructure:"-"`
}

// ScheduleConfig drives the periodic push.
type ScheduleConfig struct {
	Spec       string        `mapstructure:"spec"`
	RunOnStart bool          `mapstructure:"run_on_start"`
	StartDelay time.Duration `mapstructure:"start_delay"`
	Greeting   string        `mapstructure:"greeting"`
}

// SinkConfig selects where pushed blocks go.
type SinkConfig struct {
	Type    string `mapstructure:"type"` // "stdout" | "nats"
	NATSURL string `mapstructure:"nats_url"`
	Subject string `mapstructure:"subject"`
}

// LogConfig configures the zap logger.
type LogConfig struct {
	Level  string `mapstructure:"level"`
	Format string `mapstructure:"format"` // "console" | "json"
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("source", "rest")
	v.SetDefault("nodes", []string{"0xdb9f33703aa0d90dfc56c96b2263bacf383db1c7"})
	v.SetDefault("rank_size", 25)
	v.SetDefault("markup", "plain")
	v.SetDefault("metrics_addr", "")

	v.SetDefault("rest.url_template", "https://dashboard-devnet4.cortensor.network/stats/node/{nodeId}?metric={metric}")
	v.SetDefault("rest.metrics", []string{"Precommit", "Commit", "Create", "Prepare"})
	v.SetDefault("rest.fields", []string{})
	v.SetDefault("rest.headers", map[string]string{})
	v.SetDefault("rest.timeout", sources.DefaultRESTTimeout)

	v.SetDefault("table.url", "")
	v.SetDefault("table.columns", []string(sources.DefaultTableColumns))
	v.SetDefault("table.renderer", "chrome")
	v.SetDefault("table.row_selector", sources.DefaultRowSelector)
	v.SetDefault("table.expand_selector", "")
	v.SetDefault("table.scroll", true)
	v.SetDefault("table.settle", sources.DefaultSettle)
	v.SetDefault("table.timeout", sources.DefaultTableTimeout)
	v.SetDefault("table.remote_url", "")
	v.SetDefault("table.exec_path", "")

	v.SetDefault("csv.path", "")
	v.SetDefault("csv.columns", []string(sources.DefaultTableColumns))
	v.SetDefault("csv.delimiter", ",")
	v.SetDefault("csv.has_header", true)

	v.SetDefault("schedule.spec", "@every 5m")
	v.SetDefault("schedule.run_on_start", true)
	v.SetDefault("schedule.start_delay", 10*time.Second)
	v.SetDefault("schedule.greeting", "🚀 Node monitor is running. Metrics are pushed every 5 minutes.")

	v.SetDefault("sink.type", "stdout")
	v.SetDefault("sink.nats_url", "nats://localhost:4222")
	v.SetDefault("sink.subject", "nodewatch.blocks")

	v.SetDefault("log.level", "info")
	v.SetDefault("log.format", "console")
}

// Load reads .env (if present), then path or the default search locations,
// then NODEWATCH_* environment overrides. An empty path tolerates a missing file.
func Load(path string) (*Config, error) {
	if err := godotenv.Load(); err != nil && !errors.Is(err, os.ErrNotExist) {
		return nil, fmt.Errorf("load .env: %w", err)
	}

	v := viper.New()
	setDefaults(v)
	v.SetEnvPrefix(EnvPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()
	// Single-node deployments set NODE_ID.
	_ = v.BindEnv("nodes", EnvPrefix+"_NODES", "NODE_ID")

	if path != "" {
		v.SetConfigFile(path)
		if err := v.ReadInConfig(); err != nil {
			return nil, fmt.Errorf("read config %s: %w", path, err)
		}
	} else {
		v.SetConfigName("nodewatch")
		v.SetConfigType("yaml")
		v.AddConfigPath(".")
		if home, err := os.UserHomeDir(); err == nil {
			v.AddConfigPath(filepath.Join(home, ".config", "nodewatch"))
		}
		if err := v.ReadInConfig(); err != nil {
			var notFound viper.ConfigFileNotFoundError
			if !errors.As(err, &notFound) {
				return nil, fmt.Errorf("read config: %w", err)
			}
		}
	}

	var cfg Config
	if err := v.Unmarshal(&cfg); err != nil {
		return nil, fmt.Errorf("decode config: %w", err)
	}
	cfg.File = v.ConfigFileUsed()

	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	return &cfg, nil
}

// Validate checks the settings that have no sensible fallback.
func (c *Config) Validate() error {
	switch c.Source {
	case "rest", "table", "csv":
	default:
		return fmt.Errorf("unknown source %q (want rest, table or csv)", c.Source)
	}
	if c.RankSize <= 0 {
		return fmt.Errorf("rank_size must be positive, got %d", c.RankSize)
	}
	switch c.Sink.Type {
	case "stdout", "nats":
	default:
		return fmt.Errorf("unknown sink type %q (want stdout or nats)", c.Sink.Type)
	}
	return nil
}
