package metrics

import (
	"fmt"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	// Labels to use for partitioning requests.
	requestLabels = []string{"endpoint", "status", "cause"}

	// Labels to use for partitioning request latencies.
	requestLatencyLabels = []string{"endpoint"}
)

// Default service metrics for requests.
type RequestMetrics struct {
	// Counts of requests made to each service endpoint.
	RequestCounts *prometheus.CounterVec

	// Latencies of serving incoming requests.
	RequestLatencies *prometheus.HistogramVec
}

// NewDefaultRequestMetrics creates Prometheus metric instrumentation for
// basic metrics common to serving requests. Default metrics include:
//
// 1. Counts of service endpoints hit.
// 2. Latencies for requests.
func NewDefaultRequestMetrics(pkg string) RequestMetrics {
	return RequestMetrics{
		RequestCounts: registerOnce(prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: fmt.Sprintf("%s_requests", pkg),
				Help: "How many service requests were made, partitioned by request endpoint, status, and cause.",
			},
			requestLabels,
		)),
		RequestLatencies: registerOnce(prometheus.NewHistogramVec(
			prometheus.HistogramOpts{
				Name: fmt.Sprintf("%s_request_latencies", pkg),
				Help: "How long requests take to process, partitioned by request endpoint.",
			},
			requestLatencyLabels,
		)),
	}
}

// RequestCounter returns the counter for the calling request.
// Provided labels should be endpoint, status, and cause.
func (m *RequestMetrics) RequestCounter(labels ...string) prometheus.Counter {
	return m.RequestCounts.WithLabelValues(padLabels(labels, len(requestLabels))...)
}

// RequestTimer creates a new latency timer for the provided request endpoint.
func (m *RequestMetrics) RequestTimer(labels ...string) *prometheus.Timer {
	return prometheus.NewTimer(m.RequestLatencies.WithLabelValues(padLabels(labels, len(requestLatencyLabels))...))
}

func padLabels(labels []string, n int) []string {
	if len(labels) > n {
		return labels[:n]
	}
	return append(labels, make([]string, n-len(labels))...)
}
