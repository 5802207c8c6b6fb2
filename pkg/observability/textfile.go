package observability

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteMetricsFile writes everything gathered from g to path in the
// Prometheus text exposition format, replacing the file atomically.
// The output suits the node_exporter textfile collector.
func WriteMetricsFile(path string, g prometheus.Gatherer) error {
	err := prometheus.WriteToTextfile(path, g)
	if err != nil {
		return fmt.Errorf("write metrics file %s: %w", path, err)
	}

	return nil
}
