package config

import (
	"fmt"
	"log/slog"
	"os"
	"strings"

	"gopkg.in/yaml.v3"
)

// Config holds everything the batch CLI needs: where to read the
// intent file, where to write snapshots, and the optional run journal.
type Config struct {
	Input struct {
		OrdersFile string `yaml:"orders_file"`
	} `yaml:"input"`

	Output struct {
		Dir string `yaml:"dir"`
	} `yaml:"output"`

	Journal struct {
		Path string `yaml:"path"` // empty disables the SQLite journal
	} `yaml:"journal"`

	Logging struct {
		Level string `yaml:"level"`
	} `yaml:"logging"`
}

// Default returns the configuration used when no config file exists.
func Default() *Config {
	var cfg Config
	cfg.Input.OrdersFile = "orders.json"
	cfg.Output.Dir = "out"
	cfg.Logging.Level = "info"
	return &cfg
}

// Load reads a YAML config file and applies environment overrides.
// A missing file is not an error: defaults plus environment apply.
func Load(path string) (*Config, error) {
	cfg := Default()

	data, err := os.ReadFile(path)
	switch {
	case os.IsNotExist(err):
		// fall through to env overrides
	case err != nil:
		return nil, fmt.Errorf("read config %s: %w", path, err)
	default:
		if err := yaml.Unmarshal(data, cfg); err != nil {
			return nil, fmt.Errorf("parse config %s: %w", path, err)
		}
	}

	overrideWithEnv(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("invalid configuration: %w", err)
	}
	return cfg, nil
}

// Validate checks configuration validity.
func (c *Config) Validate() error {
	if c.Input.OrdersFile == "" {
		return fmt.Errorf("input.orders_file is required")
	}
	if c.Output.Dir == "" {
		return fmt.Errorf("output.dir is required")
	}
	switch strings.ToLower(c.Logging.Level) {
	case "debug", "info", "warn", "error":
	default:
		return fmt.Errorf("unknown logging level %q", c.Logging.Level)
	}
	return nil
}

// LogLevel maps the configured level name to a slog level.
func (c *Config) LogLevel() slog.Level {
	switch strings.ToLower(c.Logging.Level) {
	case "debug":
		return slog.LevelDebug
	case "warn":
		return slog.LevelWarn
	case "error":
		return slog.LevelError
	default:
		return slog.LevelInfo
	}
}

// overrideWithEnv lets environment variables win over the config file.
func overrideWithEnv(cfg *Config) {
	if v := os.Getenv("ORDERFLOW_ORDERS_FILE"); v != "" {
		cfg.Input.OrdersFile = v
	}
	if v := os.Getenv("ORDERFLOW_OUTPUT_DIR"); v != "" {
		cfg.Output.Dir = v
	}
	if v := os.Getenv("ORDERFLOW_JOURNAL_PATH"); v != "" {
		cfg.Journal.Path = v
	}
	if v := os.Getenv("ORDERFLOW_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
}
