// Package config loads pypi-data settings from defaults, an optional YAML
// file, PYPI_DATA_* environment variables, and command-line flags.
package config

import (
	"errors"
	"fmt"
	"slices"
	"strings"
	"time"

	"github.com/dustin/go-humanize"

	"github.com/pypi-data/cli/pkg/gitlib"
)

// Sentinel validation errors.
var (
	ErrInvalidWorkers  = errors.New("workers must not be negative")
	ErrInvalidSample   = errors.New("sample must not be negative")
	ErrInvalidSize     = errors.New("invalid cache size")
	ErrInvalidDuration = errors.New("duration must not be negative")
	ErrInvalidDepth    = errors.New("max depth must not be negative")
	ErrInvalidFormat   = errors.New("unsupported output format")
	ErrInvalidSort     = errors.New("unsupported result order")
)

var (
	outputFormats = []string{"json", "yaml"}
	outputSorts   = []string{"completion", "index"}
)

// Config is the top-level configuration of a scan run.
// Field tags use mapstructure for viper unmarshalling.
type Config struct {
	BaseDir     string `mapstructure:"base_dir"`
	CommitsFile string `mapstructure:"commits_file"`
	Workers     int    `mapstructure:"workers"`
	// Sample is the number of jobs drawn from the fleet. Zero scans every job.
	Sample int `mapstructure:"sample"`
	// Seed makes sampling reproducible. Zero draws a fresh seed.
	Seed uint64 `mapstructure:"seed"`

	Cache     CacheConfig     `mapstructure:"cache"`
	Progress  ProgressConfig  `mapstructure:"progress"`
	Scan      ScanConfig      `mapstructure:"scan"`
	Output    OutputConfig    `mapstructure:"output"`
	Logging   LoggingConfig   `mapstructure:"logging"`
	Telemetry TelemetryConfig `mapstructure:"telemetry"`
}

// CacheConfig holds per-worker object cache budgets, as human sizes ("512MiB").
type CacheConfig struct {
	TreeSize string `mapstructure:"tree_size"`
	BlobSize string `mapstructure:"blob_size"`
}

// ProgressConfig holds terminal progress settings.
type ProgressConfig struct {
	Enabled  bool          `mapstructure:"enabled"`
	Interval time.Duration `mapstructure:"interval"`
}

// ScanConfig holds matcher patterns and per-job limits.
type ScanConfig struct {
	Globs       []string      `mapstructure:"globs"`
	Literals    []string      `mapstructure:"literals"`
	Regexes     []string      `mapstructure:"regexes"`
	GateContent bool          `mapstructure:"gate_content"`
	MaxDepth    int           `mapstructure:"max_depth"`
	JobTimeout  time.Duration `mapstructure:"job_timeout"`
}

// OutputConfig holds result encoding settings.
type OutputConfig struct {
	Format  string `mapstructure:"format"`
	Sort    string `mapstructure:"sort"`
	Summary bool   `mapstructure:"summary"`
}

// LoggingConfig holds logging settings.
type LoggingConfig struct {
	Level string `mapstructure:"level"`
	JSON  bool   `mapstructure:"json"`
}

// TelemetryConfig holds OpenTelemetry export settings.
type TelemetryConfig struct {
	OTLPEndpoint string `mapstructure:"otlp_endpoint"`
	OTLPHeaders  string `mapstructure:"otlp_headers"`
	OTLPInsecure bool   `mapstructure:"otlp_insecure"`
	MetricsFile  string `mapstructure:"metrics_file"`
}

// Validate checks value ranges and enumerations.
func (c *Config) Validate() error {
	if c.Workers < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidWorkers, c.Workers)
	}

	if c.Sample < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidSample, c.Sample)
	}

	_, err := c.CacheSizes()
	if err != nil {
		return err
	}

	if c.Progress.Interval < 0 {
		return fmt.Errorf("%w: progress.interval %s", ErrInvalidDuration, c.Progress.Interval)
	}

	if c.Scan.JobTimeout < 0 {
		return fmt.Errorf("%w: scan.job_timeout %s", ErrInvalidDuration, c.Scan.JobTimeout)
	}

	if c.Scan.MaxDepth < 0 {
		return fmt.Errorf("%w: %d", ErrInvalidDepth, c.Scan.MaxDepth)
	}

	if !slices.Contains(outputFormats, c.Output.Format) {
		return fmt.Errorf("%w: %q", ErrInvalidFormat, c.Output.Format)
	}

	if !slices.Contains(outputSorts, c.Output.Sort) {
		return fmt.Errorf("%w: %q", ErrInvalidSort, c.Output.Sort)
	}

	return nil
}

// CacheSizes parses the cache budgets. "0" disables a cache and an empty
// value keeps the default budget.
func (c *Config) CacheSizes() (gitlib.CacheConfig, error) {
	sizes := gitlib.DefaultCacheConfig()

	for _, field := range []struct {
		key   string
		value string
		into  *int64
	}{
		{key: "cache.tree_size", value: c.Cache.TreeSize, into: &sizes.TreeCacheSize},
		{key: "cache.blob_size", value: c.Cache.BlobSize, into: &sizes.BlobCacheSize},
	} {
		if strings.TrimSpace(field.value) == "" {
			continue
		}

		n, err := ParseSize(field.value)
		if err != nil {
			return gitlib.CacheConfig{}, fmt.Errorf("%s: %w", field.key, err)
		}

		*field.into = n
	}

	return sizes, nil
}

// ParseSize parses a human size such as "1GiB" or "512MB" into bytes.
func ParseSize(s string) (int64, error) {
	n, err := humanize.ParseBytes(s)
	if err != nil {
		return 0, fmt.Errorf("%w %q: %w", ErrInvalidSize, s, err)
	}

	if n > uint64(1<<62) {
		return 0, fmt.Errorf("%w %q: too large", ErrInvalidSize, s)
	}

	return int64(n), nil
}
