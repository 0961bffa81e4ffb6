// Package metrics provides Prometheus instrumentation for the service.
//
// Metrics registered here:
//
//	letswatch_http_requests_total                 counter: requests by method, route and status
//	letswatch_http_request_duration_seconds       histogram: request latency by route
//	letswatch_provider_requests_total             counter: catalog calls by provider and outcome
//	letswatch_provider_request_duration_seconds   histogram: catalog call latency by provider
//	letswatch_dashboard_fallbacks_total           counter: buckets served without metadata
package metrics

import (
	"net/http"
	"strconv"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Provider call outcomes
const (
	OutcomeOK       = "ok"
	OutcomeError    = "error"
	OutcomeTimeout  = "timeout"
	OutcomeDegraded = "degraded"
)

// HTTPRequests counts HTTP requests by method, route template and status code.
var HTTPRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "letswatch_http_requests_total",
	Help: "Total HTTP requests handled.",
}, []string{"method", "route", "status"})

// HTTPDuration tracks HTTP request latency.
var HTTPDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "letswatch_http_request_duration_seconds",
	Help:    "HTTP request latency in seconds.",
	Buckets: prometheus.DefBuckets,
}, []string{"route"})

// ProviderRequests counts outbound catalog calls.
var ProviderRequests = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "letswatch_provider_requests_total",
	Help: "Catalog provider calls by outcome.",
}, []string{"provider", "outcome"})

// ProviderDuration tracks catalog call latency, retries included.
var ProviderDuration = promauto.NewHistogramVec(prometheus.HistogramOpts{
	Name:    "letswatch_provider_request_duration_seconds",
	Help:    "Catalog provider call latency in seconds.",
	Buckets: []float64{.05, .1, .25, .5, 1, 2, 4, 8},
}, []string{"provider"})

// DashboardFallbacks counts dashboard buckets returned as raw rows.
var DashboardFallbacks = promauto.NewCounterVec(prometheus.CounterOpts{
	Name: "letswatch_dashboard_fallbacks_total",
	Help: "Dashboard buckets served without metadata after an enrichment failure.",
}, []string{"bucket"})

// ObserveHTTP records one served request
func ObserveHTTP(method, route string, status int, elapsed time.Duration) {
	HTTPRequests.WithLabelValues(method, route, strconv.Itoa(status)).Inc()
	HTTPDuration.WithLabelValues(route).Observe(elapsed.Seconds())
}

// ObserveProvider records one catalog call
func ObserveProvider(provider, outcome string, elapsed time.Duration) {
	ProviderRequests.WithLabelValues(provider, outcome).Inc()
	ProviderDuration.WithLabelValues(provider).Observe(elapsed.Seconds())
}

// Handler returns the Prometheus HTTP handler for /metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}
