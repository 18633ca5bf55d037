package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Registry holds every collector this service exports. It is private so tests
// and multiple servers in one process do not collide on the default registry.
var Registry = prometheus.NewRegistry()

var factory = promauto.With(Registry)

// HTTP
var (
	HTTPRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "http_requests_total",
			Help: "HTTP requests by method, route and status code",
		},
		[]string{"method", "route", "status"},
	)

	HTTPRequestDuration = factory.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "http_request_duration_seconds",
			Help:    "HTTP request latency in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"method", "route"},
	)
)

// Scanning
var (
	ScanRunsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_runs_total",
			Help: "Job source scans by trigger and result (ok, failed, skipped)",
		},
		[]string{"trigger", "result"},
	)

	ScanPostingsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "scan_postings_total",
			Help: "Postings seen by scans, by source and result (new, existing, error)",
		},
		[]string{"source", "result"},
	)

	ScanDuration = factory.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "scan_duration_seconds",
			Help:    "Duration of one user's scan in seconds",
			Buckets: []float64{1, 5, 10, 30, 60, 90, 120},
		},
	)

	SourceBreakerTransitions = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "source_breaker_state_changes_total",
			Help: "Circuit breaker transitions per job source and new state",
		},
		[]string{"source", "state"},
	)
)

// AI and alerts
var (
	LLMRequestsTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "llm_requests_total",
			Help: "LLM completions by provider and result (ok, error)",
		},
		[]string{"provider", "result"},
	)

	AlertsCreatedTotal = factory.NewCounterVec(
		prometheus.CounterOpts{
			Name: "alerts_created_total",
			Help: "Alerts raised by kind",
		},
		[]string{"kind"},
	)
)

// Billing
var BillingWebhooksTotal = factory.NewCounterVec(
	prometheus.CounterOpts{
		Name: "billing_webhooks_total",
		Help: "Stripe webhook events by type and result (ok, error, ignored)",
	},
	[]string{"type", "result"},
)

func init() {
	Registry.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
}

// Handler serves the registry in the Prometheus text format
func Handler() http.Handler {
	return promhttp.HandlerFor(Registry, promhttp.HandlerOpts{Registry: Registry})
}

// Result maps an error to the "ok"/"error" label used across counters
func Result(err error) string {
	if err != nil {
		return "error"
	}
	return "ok"
}
