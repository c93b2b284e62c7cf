package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
)

// Retrieval and classification Prometheus metrics.
var (
	OperationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opskb",
			Name:      "operations_total",
			Help:      "Total retrieval/classification operations",
		},
		[]string{"operation"},
	)

	OperationDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "opskb",
			Name:      "operation_duration_seconds",
			Help:      "Operation duration in seconds",
			Buckets:   []float64{0.005, 0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1, 2.5, 5},
		},
		[]string{"operation"},
	)

	OperationResults = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Namespace: "opskb",
			Name:      "operation_results",
			Help:      "Result count per operation",
			Buckets:   []float64{0, 1, 2, 5, 10, 25, 50, 100},
		},
		[]string{"operation"},
	)

	CacheTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opskb",
			Name:      "result_cache_total",
			Help:      "Result cache hits and misses",
		},
		[]string{"result"}, // "hit" / "miss"
	)

	DegradedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opskb",
			Name:      "degraded_retrievals_total",
			Help:      "Retrievals served from a single source",
		},
		[]string{"failed_source"}, // "vector" / "lexical"
	)

	ClassificationsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: "opskb",
			Name:      "classifications_total",
			Help:      "Classifications by predicted category and method",
		},
		[]string{"category", "method"}, // method: "retrieval" / "keyword" / "none"
	)
)

var retrievalRegistered bool

// RegisterRetrievalMetrics registers retrieval metrics. Must be called once from main.
func RegisterRetrievalMetrics() {
	if retrievalRegistered {
		return
	}
	prometheus.MustRegister(OperationsTotal)
	prometheus.MustRegister(OperationDuration)
	prometheus.MustRegister(OperationResults)
	prometheus.MustRegister(CacheTotal)
	prometheus.MustRegister(DegradedTotal)
	prometheus.MustRegister(ClassificationsTotal)
	retrievalRegistered = true
}

// Recorder implements domain.MetricsSink over the Prometheus collectors.
// Recording never blocks callers.
type Recorder struct{}

// NewRecorder creates a Prometheus-backed metrics recorder.
func NewRecorder() *Recorder { return &Recorder{} }

// RecordOperation records one operation event.
func (*Recorder) RecordOperation(operation string, elapsed time.Duration, resultCount int) {
	OperationsTotal.WithLabelValues(operation).Inc()
	OperationDuration.WithLabelValues(operation).Observe(elapsed.Seconds())
	OperationResults.WithLabelValues(operation).Observe(float64(resultCount))
}

// RecordDegraded records a retrieval served without one of its sources.
func (*Recorder) RecordDegraded(failedSource string) {
	DegradedTotal.WithLabelValues(failedSource).Inc()
}

// RecordClassification records a classification outcome.
func (*Recorder) RecordClassification(category, method string) {
	ClassificationsTotal.WithLabelValues(category, method).Inc()
}
