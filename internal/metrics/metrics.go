// Package metrics holds the Prometheus collectors exported on /metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "receipt_reader"

// Outcome label values.
const (
	OutcomeSuccess = "success"
	OutcomeError   = "error"
)

// Registry is the registry served by Handler.
var Registry = prometheus.NewRegistry()

var (
	httpRequests = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "http_requests_total",
		Help:      "HTTP requests by method, route and status code.",
	}, []string{"method", "route", "status"})

	httpDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "http_request_duration_seconds",
		Help:      "HTTP request latency by method and route.",
		Buckets:   prometheus.DefBuckets,
	}, []string{"method", "route"})

	receiptsProcessed = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "receipts_processed_total",
		Help:      "Receipt uploads by extraction outcome.",
	}, []string{"outcome"})

	modelDuration = prometheus.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: namespace,
		Name:      "model_call_duration_seconds",
		Help:      "Latency of generative model calls by agent and outcome.",
		Buckets:   []float64{0.5, 1, 2, 5, 10, 20, 40, 80},
	}, []string{"agent", "outcome"})

	exports = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "analytics_exports_total",
		Help:      "Receipt exports to the analytics warehouse by outcome.",
	}, []string{"outcome"})

	exportJobs = prometheus.NewCounterVec(prometheus.CounterOpts{
		Namespace: namespace,
		Name:      "export_jobs_total",
		Help:      "Background export job attempts by resulting status.",
	}, []string{"status"})
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
		httpRequests,
		httpDuration,
		receiptsProcessed,
		modelDuration,
		exports,
		exportJobs,
	)
}

// Handler serves the registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// ObserveHTTP records one served request.
func ObserveHTTP(method, route, status string, elapsed time.Duration) {
	httpRequests.WithLabelValues(method, route, status).Inc()
	httpDuration.WithLabelValues(method, route).Observe(elapsed.Seconds())
}

// ObserveModelCall records the latency of a call made by agent.
func ObserveModelCall(agent string, err error, elapsed time.Duration) {
	modelDuration.WithLabelValues(agent, outcome(err)).Observe(elapsed.Seconds())
}

// ReceiptProcessed counts an upload by extraction outcome.
func ReceiptProcessed(err error) {
	receiptsProcessed.WithLabelValues(outcome(err)).Inc()
}

// ReceiptExported counts an analytics export attempt.
func ReceiptExported(err error) {
	exports.WithLabelValues(outcome(err)).Inc()
}

// ExportJobFinished counts one background export attempt.
func ExportJobFinished(status string) {
	exportJobs.WithLabelValues(status).Inc()
}

func outcome(err error) string {
	if err != nil {
		return OutcomeError
	}
	return OutcomeSuccess
}
