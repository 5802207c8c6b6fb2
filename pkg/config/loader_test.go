package config_test

import (
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/spf13/pflag"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-data/cli/pkg/config"
)

func writeConfig(t *testing.T, content string) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "pypi-data.yaml")
	require.NoError(t, os.WriteFile(path, []byte(content), 0o600))

	return path
}

func TestLoadConfig_EmptyFile_UsesDefaults(t *testing.T) {
	t.Parallel()

	cfg, err := config.LoadConfig(writeConfig(t, ""), nil)
	require.NoError(t, err)

	assert.Empty(t, cfg.BaseDir)
	assert.Equal(t, config.DefaultCommitsFile, cfg.CommitsFile)
	assert.Equal(t, config.DefaultWorkers, cfg.Workers)
	assert.Equal(t, config.DefaultSample, cfg.Sample)
	assert.Equal(t, uint64(config.DefaultSeed), cfg.Seed)
	assert.Equal(t, config.DefaultTreeCacheSize, cfg.Cache.TreeSize)
	assert.Equal(t, config.DefaultBlobCacheSize, cfg.Cache.BlobSize)
	assert.Equal(t, config.DefaultProgressEnabled, cfg.Progress.Enabled)
	assert.Equal(t, config.DefaultProgressInterval, cfg.Progress.Interval)
	assert.Empty(t, cfg.Scan.Globs)
	assert.Equal(t, config.DefaultGateContent, cfg.Scan.GateContent)
	assert.Equal(t, config.DefaultJobTimeout, cfg.Scan.JobTimeout)
	assert.Equal(t, config.DefaultOutputFormat, cfg.Output.Format)
	assert.Equal(t, config.DefaultOutputSort, cfg.Output.Sort)
	assert.Equal(t, config.DefaultLogLevel, cfg.Logging.Level)
	assert.Empty(t, cfg.Telemetry.MetricsFile)
}

func TestLoadConfig_ValidFile_Unmarshals(t *testing.T) {
	t.Parallel()

	path := writeConfig(t, `base_dir: /data/repos
workers: 8
sample: 0
seed: 42
cache:
  tree_size: 256MiB
  blob_size: "0"
progress:
  enabled: false
  interval: 250ms
scan:
  globs: ["*.py", "*.pyi"]
  literals: [numpy]
  regexes: ['import\s+numpy']
  gate_content: true
  max_depth: 64
  job_timeout: 2m
output:
  format: yaml
  sort: index
  summary: true
logging:
  level: debug
  json: true
telemetry:
  metrics_file: /tmp/scan.prom
`)

	cfg, err := config.LoadConfig(path, nil)
	require.NoError(t, err)

	assert.Equal(t, "/data/repos", cfg.BaseDir)
	assert.Equal(t, 8, cfg.Workers)
	assert.Zero(t, cfg.Sample)
	assert.Equal(t, uint64(42), cfg.Seed)
	assert.Equal(t, "256MiB", cfg.Cache.TreeSize)
	assert.False(t, cfg.Progress.Enabled)
	assert.Equal(t, 250*time.Millisecond, cfg.Progress.Interval)
	assert.Equal(t, []string{"*.py", "*.pyi"}, cfg.Scan.Globs)
	assert.Equal(t, []string{"numpy"}, cfg.Scan.Literals)
	assert.Equal(t, []string{`import\s+numpy`}, cfg.Scan.Regexes)
	assert.True(t, cfg.Scan.GateContent)
	assert.Equal(t, 64, cfg.Scan.MaxDepth)
	assert.Equal(t, 2*time.Minute, cfg.Scan.JobTimeout)
	assert.Equal(t, "yaml", cfg.Output.Format)
	assert.Equal(t, "index", cfg.Output.Sort)
	assert.True(t, cfg.Output.Summary)
	assert.Equal(t, "debug", cfg.Logging.Level)
	assert.True(t, cfg.Logging.JSON)
	assert.Equal(t, "/tmp/scan.prom", cfg.Telemetry.MetricsFile)

	sizes, err := cfg.CacheSizes()
	require.NoError(t, err)
	assert.Equal(t, int64(256<<20), sizes.TreeCacheSize)
	assert.Zero(t, sizes.BlobCacheSize)
}

func TestLoadConfig_InvalidValue(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "workers: -2\n"), nil)
	require.ErrorIs(t, err, config.ErrInvalidWorkers)

	_, err = config.LoadConfig(writeConfig(t, "output:\n  format: xml\n"), nil)
	require.ErrorIs(t, err, config.ErrInvalidFormat)
}

func TestLoadConfig_MissingExplicitFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(filepath.Join(t.TempDir(), "absent.yaml"), nil)
	require.Error(t, err)
}

func TestLoadConfig_MalformedFile(t *testing.T) {
	t.Parallel()

	_, err := config.LoadConfig(writeConfig(t, "workers: [\n"), nil)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "read config")
}

func TestLoadConfig_EnvOverridesFile(t *testing.T) {
	t.Setenv("PYPI_DATA_WORKERS", "3")
	t.Setenv("PYPI_DATA_CACHE_TREE_SIZE", "2GiB")
	t.Setenv("PYPI_DATA_OUTPUT_SORT", "index")

	cfg, err := config.LoadConfig(writeConfig(t, "workers: 8\n"), nil)
	require.NoError(t, err)

	assert.Equal(t, 3, cfg.Workers)
	assert.Equal(t, "2GiB", cfg.Cache.TreeSize)
	assert.Equal(t, "index", cfg.Output.Sort)
}

func TestLoadConfig_FlagsOverrideEverything(t *testing.T) {
	t.Setenv("PYPI_DATA_WORKERS", "3")

	flags := pflag.NewFlagSet("scan", pflag.ContinueOnError)
	flags.Int("workers", 0, "")
	flags.StringArray("glob", nil, "")
	flags.Bool("gate-content", false, "")
	flags.Duration("job-timeout", 0, "")
	flags.String("unrelated", "", "")

	require.NoError(t, flags.Parse([]string{
		"--workers", "12",
		"--glob", "*.txt",
		"--glob", "/src/*",
		"--job-timeout", "30s",
	}))

	cfg, err := config.LoadConfig(writeConfig(t, "workers: 8\nscan:\n  gate_content: true\n"), flags)
	require.NoError(t, err)

	assert.Equal(t, 12, cfg.Workers)
	assert.Equal(t, []string{"*.txt", "/src/*"}, cfg.Scan.Globs)
	assert.Equal(t, 30*time.Second, cfg.Scan.JobTimeout)
	assert.True(t, cfg.Scan.GateContent, "unchanged flag does not override the file")
}
