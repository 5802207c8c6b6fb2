package config

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/pflag"
	"github.com/spf13/viper"
)

const (
	// configName is the config file name without extension.
	configName = "pypi-data"

	// configType is the config file format.
	configType = "yaml"

	// envPrefix is the environment variable prefix.
	envPrefix = "PYPI_DATA"

	// envKeySeparator is the nested key separator in environment variable names.
	envKeySeparator = "_"
)

// flagKeys maps command-line flag names to config keys.
var flagKeys = map[string]string{
	"base":            "base_dir",
	"commits-file":    "commits_file",
	"workers":         "workers",
	"sample":          "sample",
	"seed":            "seed",
	"tree-cache-size": "cache.tree_size",
	"blob-cache-size": "cache.blob_size",
	"glob":            "scan.globs",
	"literal":         "scan.literals",
	"regex":           "scan.regexes",
	"gate-content":    "scan.gate_content",
	"max-depth":       "scan.max_depth",
	"job-timeout":     "scan.job_timeout",
	"format":          "output.format",
	"sort":            "output.sort",
	"summary":         "output.summary",
	"log-level":       "logging.level",
	"log-json":        "logging.json",
	"metrics-file":    "telemetry.metrics_file",
	"otlp-endpoint":   "telemetry.otlp_endpoint",
}

// LoadConfig loads configuration from defaults, file, env vars, and flags,
// in increasing precedence. If configPath is non-empty it must exist;
// otherwise pypi-data.yaml is searched in the working directory and in
// $HOME/.config/pypi-data, and a missing file is not an error.
// Only flags present in flags and named in the flag table are bound.
func LoadConfig(configPath string, flags *pflag.FlagSet) (*Config, error) {
	viperCfg := viper.New()

	applyDefaults(viperCfg)

	viperCfg.SetConfigType(configType)
	viperCfg.SetEnvPrefix(envPrefix)
	viperCfg.SetEnvKeyReplacer(strings.NewReplacer(".", envKeySeparator))
	viperCfg.AutomaticEnv()

	if configPath != "" {
		viperCfg.SetConfigFile(configPath)
	} else {
		viperCfg.SetConfigName(configName)
		viperCfg.AddConfigPath(".")

		home, err := os.UserHomeDir()
		if err == nil {
			viperCfg.AddConfigPath(filepath.Join(home, ".config", configName))
		}
	}

	readErr := viperCfg.ReadInConfig()
	if readErr != nil {
		var notFound viper.ConfigFileNotFoundError
		if !errors.As(readErr, &notFound) {
			return nil, fmt.Errorf("read config: %w", readErr)
		}
	}

	bindErr := bindFlags(viperCfg, flags)
	if bindErr != nil {
		return nil, bindErr
	}

	var cfg Config

	unmarshalErr := viperCfg.Unmarshal(&cfg)
	if unmarshalErr != nil {
		return nil, fmt.Errorf("unmarshal config: %w", unmarshalErr)
	}

	validateErr := cfg.Validate()
	if validateErr != nil {
		return nil, fmt.Errorf("validate config: %w", validateErr)
	}

	return &cfg, nil
}

func bindFlags(viperCfg *viper.Viper, flags *pflag.FlagSet) error {
	if flags == nil {
		return nil
	}

	for name, key := range flagKeys {
		flag := flags.Lookup(name)
		if flag == nil {
			continue
		}

		err := viperCfg.BindPFlag(key, flag)
		if err != nil {
			return fmt.Errorf("bind flag --%s: %w", name, err)
		}
	}

	return nil
}

func applyDefaults(viperCfg *viper.Viper) {
	viperCfg.SetDefault("base_dir", "")
	viperCfg.SetDefault("commits_file", DefaultCommitsFile)
	viperCfg.SetDefault("workers", DefaultWorkers)
	viperCfg.SetDefault("sample", DefaultSample)
	viperCfg.SetDefault("seed", DefaultSeed)

	viperCfg.SetDefault("cache.tree_size", DefaultTreeCacheSize)
	viperCfg.SetDefault("cache.blob_size", DefaultBlobCacheSize)

	viperCfg.SetDefault("progress.enabled", DefaultProgressEnabled)
	viperCfg.SetDefault("progress.interval", DefaultProgressInterval)

	viperCfg.SetDefault("scan.globs", []string{})
	viperCfg.SetDefault("scan.literals", []string{})
	viperCfg.SetDefault("scan.regexes", []string{})
	viperCfg.SetDefault("scan.gate_content", DefaultGateContent)
	viperCfg.SetDefault("scan.max_depth", DefaultMaxDepth)
	viperCfg.SetDefault("scan.job_timeout", DefaultJobTimeout)

	viperCfg.SetDefault("output.format", DefaultOutputFormat)
	viperCfg.SetDefault("output.sort", DefaultOutputSort)
	viperCfg.SetDefault("output.summary", DefaultSummary)

	viperCfg.SetDefault("logging.level", DefaultLogLevel)
	viperCfg.SetDefault("logging.json", DefaultLogJSON)

	viperCfg.SetDefault("telemetry.otlp_endpoint", "")
	viperCfg.SetDefault("telemetry.otlp_headers", "")
	viperCfg.SetDefault("telemetry.otlp_insecure", false)
	viperCfg.SetDefault("telemetry.metrics_file", "")
}
