// Package metrics instruments make/migrate/status calls with
// Prometheus counters and histograms, following the Registry +
// CounterVec/HistogramVec construction style of the broader example
// pack's daemon metrics (no SPEC_FULL component serves a /metrics
// endpoint itself; callers that embed ddlsync in a long-running process
// register this Registry with their own promhttp handler).
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Metrics collects the counters and histograms for one engine instance.
type Metrics struct {
	registry          *prometheus.Registry
	operationsTotal   *prometheus.CounterVec
	operationSeconds  *prometheus.HistogramVec
	manualReasonsTotal prometheus.Counter
	rollbacksTotal    prometheus.Counter
}

// New constructs a fresh registry and registers all collectors.
func New() *Metrics {
	registry := prometheus.NewRegistry()
	buckets := []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10, 30, 60}

	operationsTotal := prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "ddlsync",
			Name:      "operations_total",
			Help:      "Total number of make/migrate/status calls by outcome.",
		},
		[]string{"operation", "result"},
	)
	operationSeconds := prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "ddlsync",
			Name:      "operation_duration_seconds",
			Help:      "Duration of make/migrate/status calls.",
			Buckets:   buckets,
		},
		[]string{"operation"},
	)
	manualReasonsTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ddlsync",
			Name:      "manual_migration_reasons_total",
			Help:      "Total number of rename/destructive decisions deferred to a human.",
		},
	)
	rollbacksTotal := prometheus.NewCounter(
		prometheus.CounterOpts{
			Namespace: "ddlsync",
			Name:      "migrate_rollbacks_total",
			Help:      "Total number of migrate transactions that rolled back.",
		},
	)

	registry.MustRegister(operationsTotal, operationSeconds, manualReasonsTotal, rollbacksTotal)

	return &Metrics{
		registry:           registry,
		operationsTotal:    operationsTotal,
		operationSeconds:   operationSeconds,
		manualReasonsTotal: manualReasonsTotal,
		rollbacksTotal:     rollbacksTotal,
	}
}

// Registry exposes the underlying *prometheus.Registry for embedding
// callers that want to serve it over HTTP.
func (m *Metrics) Registry() *prometheus.Registry { return m.registry }

// ObserveOperation records one completed operation's duration and
// outcome ("ok", "manual_migration_required", "rolled_back",
// "integrity_error", "error").
func (m *Metrics) ObserveOperation(operation, result string, d time.Duration) {
	m.operationsTotal.WithLabelValues(operation, result).Inc()
	m.operationSeconds.WithLabelValues(operation).Observe(d.Seconds())
}

// AddManualReasons increments the manual-migration-reasons counter by n.
func (m *Metrics) AddManualReasons(n int) {
	if n <= 0 {
		return
	}
	m.manualReasonsTotal.Add(float64(n))
}

// IncRollback increments the rollback counter.
func (m *Metrics) IncRollback() {
	m.rollbacksTotal.Inc()
}
