package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
)

// GatewayMetrics instruments calls to the contract host.
type GatewayMetrics struct {
	calls     *prometheus.CounterVec
	latencies *prometheus.HistogramVec
	polls     prometheus.Counter
}

func NewDefaultGatewayMetrics() *GatewayMetrics {
	return &GatewayMetrics{
		calls: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gateway_calls",
				Help: "How many contract calls were made, partitioned by function and outcome kind.",
			},
			[]string{"function", "outcome"},
		)),
		latencies: registerOnce(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: "gateway_call_latencies",
				Help: "How long contract calls take, including signing and confirmation, partitioned by function.",
			},
			[]string{"function"},
		)),
		polls: registerOnce(prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "gateway_transaction_polls",
				Help: "How many times a submitted transaction was polled for its status.",
			},
		)),
	}
}

// Call returns the counter for one finished call.
func (m *GatewayMetrics) Call(function, outcome string) prometheus.Counter {
	return m.calls.WithLabelValues(function, outcome)
}

// Timer returns a latency timer for function.
func (m *GatewayMetrics) Timer(function string) *prometheus.Timer {
	return prometheus.NewTimer(m.latencies.WithLabelValues(function))
}

// Polls counts transaction status polls.
func (m *GatewayMetrics) Polls() prometheus.Counter {
	return m.polls
}

// ReconcilerMetrics instruments dashboard reconciliation.
type ReconcilerMetrics struct {
	runs       *prometheus.CounterVec
	dropped    prometheus.Counter
	candidates prometheus.Histogram
}

func NewDefaultReconcilerMetrics() *ReconcilerMetrics {
	return &ReconcilerMetrics{
		runs: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "reconciler_runs",
				Help: "How many reconciliations ran, partitioned by result (complete, partial, directory_unavailable).",
			},
			[]string{"result"},
		)),
		dropped: registerOnce(prometheus.NewCounter(
			prometheus.CounterOpts{
				Name: "reconciler_dropped_multisigs",
				Help: "How many candidate multisigs were dropped because they could not be resolved on chain.",
			},
		)),
		candidates: registerOnce(prometheus.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "reconciler_candidates",
				Help:    "How many candidate multisigs the directory returned per reconciliation.",
				Buckets: prometheus.LinearBuckets(0, 5, 10),
			},
		)),
	}
}

// Run returns the counter for a finished reconciliation.
func (m *ReconcilerMetrics) Run(result string) prometheus.Counter {
	return m.runs.WithLabelValues(result)
}

// Dropped counts candidates dropped from a dashboard.
func (m *ReconcilerMetrics) Dropped() prometheus.Counter {
	return m.dropped
}

// Candidates observes the size of a directory answer.
func (m *ReconcilerMetrics) Candidates() prometheus.Histogram {
	return m.candidates
}
