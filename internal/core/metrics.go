package core

import (
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// MetricsCollector records API telemetry. The production implementation is
// backed by Prometheus; tests may inject a recording fake or leave it nil.
type MetricsCollector interface {
	RecordRequest(method, endpoint, status string, duration time.Duration)
}

// PrometheusMetrics implements MetricsCollector with a request counter and a
// latency histogram, exposed through the /metrics endpoint.
type PrometheusMetrics struct {
	requests *prometheus.CounterVec
	latency  *prometheus.HistogramVec
}

// NewPrometheusMetrics registers the request metrics on the default registry.
// It must be called at most once per process.
func NewPrometheusMetrics(service string) *PrometheusMetrics {
	labels := prometheus.Labels{"service": service}
	return &PrometheusMetrics{
		requests: promauto.NewCounterVec(prometheus.CounterOpts{
			Name:        "http_requests_total",
			Help:        "Total number of HTTP requests by method, route, and status.",
			ConstLabels: labels,
		}, []string{"method", "route", "status"}),
		latency: promauto.NewHistogramVec(prometheus.HistogramOpts{
			Name:        "http_request_duration_seconds",
			Help:        "HTTP request latency by method and route.",
			Buckets:     prometheus.DefBuckets,
			ConstLabels: labels,
		}, []string{"method", "route"}),
	}
}

// RecordRequest implements MetricsCollector.
func (m *PrometheusMetrics) RecordRequest(method, endpoint, status string, duration time.Duration) {
	m.requests.WithLabelValues(method, endpoint, status).Inc()
	m.latency.WithLabelValues(method, endpoint).Observe(duration.Seconds())
}

// routePattern returns the chi route pattern for the request (e.g.
// "/v1/predict"), falling back to the raw path when the router has no
// pattern. Using the pattern keeps metric cardinality bounded.
func routePattern(r *http.Request) string {
	if rctx := chi.RouteContext(r.Context()); rctx != nil {
		if pattern := rctx.RoutePattern(); pattern != "" {
			return pattern
		}
	}
	return r.URL.Path
}
