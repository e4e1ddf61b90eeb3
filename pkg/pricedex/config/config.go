// Package config loads pricedex configuration from a YAML file with
// environment-variable overrides, failing fast on misconfiguration.
package config

import (
	"fmt"
	"io"
	"os"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"gopkg.in/yaml.v3"

	"github.com/cognicore/pricedex/pkg/pricedex/internalerr"
)

// Config holds all application configuration
type Config struct {
	// DatasetURL is where the CSV dataset is fetched from (required)
	DatasetURL string `yaml:"dataset_url"`

	// DatabasePath is the SQLite database file
	DatabasePath string `yaml:"database_path"`

	// CacheDir holds the raw dataset cache
	CacheDir string `yaml:"cache_dir"`

	Logging LoggingConfig `yaml:"logging"`
	HTTP    HTTPConfig    `yaml:"http"`
}

// LoggingConfig controls log output
type LoggingConfig struct {
	// Level: debug, info, warn, error (default: info)
	Level string `yaml:"level"`
	// Format: console or json (default: console)
	Format string `yaml:"format"`
}

// HTTPConfig holds settings for the HTTP surface
type HTTPConfig struct {
	Addr            string        `yaml:"addr"`
	ShutdownTimeout time.Duration `yaml:"shutdown_timeout"`
}

// Default returns the configuration used when a field is not set
func Default() Config {
	return Config{
		DatabasePath: "pricedex.db",
		CacheDir:     ".pricedex-cache",
		Logging:      LoggingConfig{Level: "info", Format: "console"},
		HTTP:         HTTPConfig{Addr: ":8080", ShutdownTimeout: 10 * time.Second},
	}
}

// Load reads a YAML config file and layers environment overrides on
// top. An empty path skips the file and uses defaults plus environment
// only. Callers apply any flag overrides of their own, then Validate.
func Load(path string) (Config, error) {
	cfg := Default()

	if path != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return Config{}, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return Config{}, fmt.Errorf("parse config: %w", err)
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

// applyEnv overrides file values from PRICEDEX_* variables
func (c *Config) applyEnv() {
	if v := os.Getenv("PRICEDEX_DATASET_URL"); v != "" {
		c.DatasetURL = v
	}
	if v := os.Getenv("PRICEDEX_DB_PATH"); v != "" {
		c.DatabasePath = v
	}
	if v := os.Getenv("PRICEDEX_CACHE_DIR"); v != "" {
		c.CacheDir = v
	}
	if v := os.Getenv("PRICEDEX_LOG_LEVEL"); v != "" {
		c.Logging.Level = v
	}
	if v := os.Getenv("PRICEDEX_LOG_FORMAT"); v != "" {
		c.Logging.Format = v
	}
	if v := os.Getenv("PRICEDEX_HTTP_ADDR"); v != "" {
		c.HTTP.Addr = v
	}
}

// Validate checks that required fields are present and coherent
func (c Config) Validate() error {
	if c.DatasetURL == "" {
		return fmt.Errorf("%w: dataset_url is required", internalerr.ErrInvalidConfig)
	}
	if c.DatabasePath == "" {
		return fmt.Errorf("%w: database_path is required", internalerr.ErrInvalidConfig)
	}
	switch strings.ToLower(c.Logging.Format) {
	case "", "console", "json":
	default:
		return fmt.Errorf("%w: unknown log format %q", internalerr.ErrInvalidConfig, c.Logging.Format)
	}
	return nil
}

// NewLogger builds a zerolog logger per the logging configuration.
// Output defaults to os.Stderr if w is nil.
func (c LoggingConfig) NewLogger(w io.Writer) zerolog.Logger {
	if w == nil {
		w = os.Stderr
	}
	if strings.ToLower(c.Format) != "json" {
		w = zerolog.ConsoleWriter{Out: w}
	}

	level, err := zerolog.ParseLevel(strings.ToLower(c.Level))
	if err != nil || c.Level == "" {
		level = zerolog.InfoLevel
	}

	return zerolog.New(w).Level(level).With().Timestamp().Logger()
}
