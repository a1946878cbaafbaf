package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// WriteTextfile registers m on a fresh registry and writes all metrics to
// filename in the text exposition format, for the node exporter textfile
// collector.
func WriteTextfile(m *Metrics, filename string) error {
	reg := prometheus.NewRegistry()
	m.Register(reg)

	if err := prometheus.WriteToTextfile(filename, reg); err != nil {
		return fmt.Errorf("failed to write metrics to %s: %w", filename, err)
	}

	return nil
}
