package observability

import (
	"sync"

	"github.com/prometheus/client_golang/prometheus"
)

var (
	registerOnce           sync.Once
	requestsTotal          *prometheus.CounterVec
	latencySeconds         *prometheus.HistogramVec
	errorsTotal            *prometheus.CounterVec
	evaluationOutcomes     *prometheus.CounterVec
	preconditionRejections *prometheus.CounterVec
)

// RegisterMetrics initialises the Prometheus collectors used by the API.
func RegisterMetrics() {
	registerOnce.Do(func() {
		requestsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markwise_requests_total",
			Help: "Total number of API requests served.",
		}, []string{"method", "route", "status"})

		latencySeconds = prometheus.NewHistogramVec(prometheus.HistogramOpts{
			Name:    "markwise_latency_seconds",
			Help:    "Latency distribution for API requests.",
			Buckets: []float64{0.01, 0.025, 0.05, 0.1, 0.25, 0.5, 1.0, 2.0, 5.0, 15.0, 60.0, 120.0},
		}, []string{"method", "route"})

		errorsTotal = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markwise_errors_total",
			Help: "Total number of error responses returned by the API.",
		}, []string{"method", "route", "status"})

		evaluationOutcomes = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markwise_evaluation_outcomes_total",
			Help: "Evaluation pipeline outcomes by stored status.",
		}, []string{"status"})

		preconditionRejections = prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "markwise_quota_rejections_total",
			Help: "Evaluation requests rejected before the pipeline ran.",
		}, []string{"reason"})

		prometheus.MustRegister(requestsTotal, latencySeconds, errorsTotal, evaluationOutcomes, preconditionRejections)
	})
}

// Requests exposes the counter for API requests.
func Requests() *prometheus.CounterVec {
	RegisterMetrics()
	return requestsTotal
}

// Latency exposes the latency histogram for API requests.
func Latency() *prometheus.HistogramVec {
	RegisterMetrics()
	return latencySeconds
}

// Errors exposes the counter for API error responses.
func Errors() *prometheus.CounterVec {
	RegisterMetrics()
	return errorsTotal
}

// EvaluationOutcomes exposes the counter for pipeline outcomes.
func EvaluationOutcomes() *prometheus.CounterVec {
	RegisterMetrics()
	return evaluationOutcomes
}

// PreconditionRejections exposes the counter for requests rejected before
// the pipeline ran.
func PreconditionRejections() *prometheus.CounterVec {
	RegisterMetrics()
	return preconditionRejections
}
