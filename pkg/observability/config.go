// Package observability provides OpenTelemetry-based tracing, metrics, and
// structured logging for pypi-data scans.
package observability

import (
	"io"
	"log/slog"
)

const (
	defaultServiceName        = "pypi-data"
	defaultShutdownTimeoutSec = 5
)

// Config describes the telemetry of one scan run.
type Config struct {
	// Resource identity attached to every span, metric point and log line.
	ServiceName    string
	ServiceVersion string
	Environment    string

	// OTLP gRPC export of traces and metrics. An empty endpoint disables it.
	OTLPEndpoint string
	OTLPHeaders  map[string]string
	OTLPInsecure bool

	// SampleRatio in (0, 1] samples traces by id. Zero samples everything
	// unless OTEL_TRACES_SAMPLER says otherwise.
	SampleRatio float64

	// MetricsFile receives a Prometheus text snapshot at shutdown.
	MetricsFile string

	LogLevel  slog.Level
	LogJSON   bool
	LogOutput io.Writer // nil means stderr

	ShutdownTimeoutSec int
}

// DefaultConfig returns the configuration used when nothing is set:
// text logs at info level and no exporters.
func DefaultConfig() Config {
	return Config{
		ServiceName:        defaultServiceName,
		LogLevel:           slog.LevelInfo,
		ShutdownTimeoutSec: defaultShutdownTimeoutSec,
	}
}

// ParseLogLevel maps a level name such as "debug" or "WARN" to a slog level.
// Unknown names yield info.
func ParseLogLevel(name string) slog.Level {
	var level slog.Level

	if err := level.UnmarshalText([]byte(name)); err != nil {
		return slog.LevelInfo
	}

	return level
}
