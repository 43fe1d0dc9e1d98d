// Package metrics holds the Prometheus collectors for promptpack.
package metrics

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	globalMetrics *Metrics
	metricsOnce   sync.Once
)

// Result label values.
const (
	ResultOK    = "ok"
	ResultError = "error"
)

// Metrics holds Prometheus metrics for the project registry.
type Metrics struct {
	RegistryOperations   *prometheus.CounterVec
	StorageWriteFailures prometheus.Counter
	PromptBytes          prometheus.Histogram
}

// New returns the process wide metrics, registering them on first use.
//
// Metrics:
//   - promptpack_registry_operations_total{operation,result}
//   - promptpack_storage_write_failures_total
//   - promptpack_prompt_bytes
func New() *Metrics {
	metricsOnce.Do(func() {
		globalMetrics = &Metrics{
			RegistryOperations: promauto.NewCounterVec(
				prometheus.CounterOpts{
					Name: "promptpack_registry_operations_total",
					Help: "Total number of registry operations by outcome",
				},
				[]string{"operation", "result"},
			),

			StorageWriteFailures: promauto.NewCounter(
				prometheus.CounterOpts{
					Name: "promptpack_storage_write_failures_total",
					Help: "Total number of failed registry persistence writes",
				},
			),

			PromptBytes: promauto.NewHistogram(
				prometheus.HistogramOpts{
					Name:    "promptpack_prompt_bytes",
					Help:    "Size of generated prompts in bytes",
					Buckets: prometheus.ExponentialBuckets(256, 4, 8), // 256B to 4MB
				},
			),
		}
	})
	return globalMetrics
}

// RecordOperation counts a registry operation. A nil receiver is a no-op.
func (m *Metrics) RecordOperation(operation string, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	m.RegistryOperations.WithLabelValues(operation, result).Inc()
}

// RecordStorageWriteFailure counts a failed persistence write.
func (m *Metrics) RecordStorageWriteFailure() {
	if m == nil {
		return
	}
	m.StorageWriteFailures.Inc()
}

// RecordPrompt observes the size of a generated prompt.
func (m *Metrics) RecordPrompt(size int) {
	if m == nil {
		return
	}
	m.PromptBytes.Observe(float64(size))
}
