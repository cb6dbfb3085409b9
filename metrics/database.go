package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

// Default service metrics for database operations.
type DatabaseMetrics struct {
	// Counts of database operations
	databaseOperations *prometheus.CounterVec

	// Latencies of database operations.
	databaseLatencies *prometheus.HistogramVec
}

// NewDefaultDatabaseMetrics creates Prometheus metric instrumentation
// for the directory store, partitioned by operation.
func NewDefaultDatabaseMetrics(pkg string) DatabaseMetrics {
	return DatabaseMetrics{
		databaseOperations: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_db_operations", pkg),
				Help: "How many database operations occur, partitioned by operation and status.",
			},
			[]string{"operation", "status"},
		)),
		databaseLatencies: registerOnce(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_db_latencies", pkg),
				Help: "How long database operations take, partitioned by operation.",
			},
			[]string{"operation"},
		)),
	}
}

// Observe records the outcome of one operation started with DatabaseLatencies.
func (m *DatabaseMetrics) Observe(operation string, timer *prometheus.Timer, err error) {
	timer.ObserveDuration()
	m.databaseOperations.WithLabelValues(operation, outcomeLabel(err)).Inc()
}

// DatabaseLatencies returns a new latency timer for the provided
// database operation.
func (m *DatabaseMetrics) DatabaseLatencies(operation string) *prometheus.Timer {
	return prometheus.NewTimer(m.databaseLatencies.WithLabelValues(operation))
}
