package config_test

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/pypi-data/cli/pkg/config"
	"github.com/pypi-data/cli/pkg/gitlib"
)

func validConfig() config.Config {
	return config.Config{
		Cache:  config.CacheConfig{TreeSize: "1GiB", BlobSize: "0"},
		Output: config.OutputConfig{Format: "json", Sort: "completion"},
	}
}

func TestValidate(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name   string
		mutate func(*config.Config)
		want   error
	}{
		{name: "valid", mutate: func(*config.Config) {}},
		{name: "negative workers", mutate: func(c *config.Config) { c.Workers = -1 }, want: config.ErrInvalidWorkers},
		{name: "negative sample", mutate: func(c *config.Config) { c.Sample = -5 }, want: config.ErrInvalidSample},
		{name: "bad tree size", mutate: func(c *config.Config) { c.Cache.TreeSize = "lots" }, want: config.ErrInvalidSize},
		{name: "bad blob size", mutate: func(c *config.Config) { c.Cache.BlobSize = "" }, want: config.ErrInvalidSize},
		{name: "negative interval", mutate: func(c *config.Config) { c.Progress.Interval = -1 }, want: config.ErrInvalidDuration},
		{name: "negative timeout", mutate: func(c *config.Config) { c.Scan.JobTimeout = -1 }, want: config.ErrInvalidDuration},
		{name: "negative depth", mutate: func(c *config.Config) { c.Scan.MaxDepth = -1 }, want: config.ErrInvalidDepth},
		{name: "csv format", mutate: func(c *config.Config) { c.Output.Format = "csv" }, want: config.ErrInvalidFormat},
		{name: "random sort", mutate: func(c *config.Config) { c.Output.Sort = "random" }, want: config.ErrInvalidSort},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			cfg := validConfig()
			tt.mutate(&cfg)

			err := cfg.Validate()
			if tt.want == nil {
				require.NoError(t, err)

				return
			}

			require.ErrorIs(t, err, tt.want)
		})
	}
}

func TestCacheSizes(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Cache.TreeSize = "512MiB"
	cfg.Cache.BlobSize = "64 MB"

	sizes, err := cfg.CacheSizes()
	require.NoError(t, err)
	assert.Equal(t, int64(512<<20), sizes.TreeCacheSize)
	assert.Equal(t, int64(64_000_000), sizes.BlobCacheSize)
}

func TestCacheSizesEmptyKeepsDefault(t *testing.T) {
	t.Parallel()

	cfg := validConfig()
	cfg.Cache.TreeSize = ""
	cfg.Cache.BlobSize = "0"

	sizes, err := cfg.CacheSizes()
	require.NoError(t, err)
	assert.Equal(t, gitlib.DefaultCacheConfig().TreeCacheSize, sizes.TreeCacheSize)
	assert.Zero(t, sizes.BlobCacheSize)

	cfg.Cache.BlobSize = "lots"

	_, err = cfg.CacheSizes()
	require.ErrorIs(t, err, config.ErrInvalidSize)
	assert.Contains(t, err.Error(), "cache.blob_size")
}

func TestParseSize(t *testing.T) {
	t.Parallel()

	tests := map[string]int64{
		"0":     0,
		"1GiB":  1 << 30,
		"1 GiB": 1 << 30,
		"10KB":  10_000,
		"4096":  4096,
	}

	for input, want := range tests {
		got, err := config.ParseSize(input)
		require.NoError(t, err, input)
		assert.Equal(t, want, got, input)
	}

	_, err := config.ParseSize("-1GiB")
	require.ErrorIs(t, err, config.ErrInvalidSize)
}
