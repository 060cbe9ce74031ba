// Package metrics exposes the process-wide Prometheus collectors for the
// dispatcher, the fetchers, and the ops HTTP server.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Submission outcomes recorded by ObserveSubmit.
const (
	SubmitAccepted = "accepted"
	SubmitFull     = "full"
	SubmitShutdown = "shutdown"
)

var (
	fetchResponsesTotal        *prometheus.CounterVec
	fetchBytesTotal            *prometheus.CounterVec
	submissionsTotal           *prometheus.CounterVec
	activeWorkers              prometheus.Gauge
	queueDepth                 prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init registers the collectors with the default registry. It is safe to
// call more than once.
func Init() {
	once.Do(func() {
		fetchResponsesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_responses_total",
				Help: "Fetch outcomes, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_fetch_bytes_total",
				Help: "Response bytes downloaded, labeled by site.",
			},
			[]string{"site"},
		)

		submissionsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_dispatcher_submissions_total",
				Help: "Tasks offered to the dispatcher, labeled by outcome.",
			},
			[]string{"result"},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_dispatcher_active_workers",
				Help: "Workers currently running a crawl task.",
			},
		)

		queueDepth = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_dispatcher_queue_depth",
				Help: "Tasks waiting for a worker.",
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.005, 0.01, 0.05, 0.1, 0.5, 1},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite extracts a lowercase hostname from rawURL, or "unknown".
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveFetch records one fetch outcome. status is an HTTP code or "error".
// Fetchers may run without a dispatcher, so the collectors are initialized
// on first use.
func ObserveFetch(rawURL string, status string, bytesFetched int) {
	Init()
	site := SanitizeSite(rawURL)
	fetchResponsesTotal.WithLabelValues(site, status).Inc()
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveSubmit counts a dispatcher submission by outcome.
func ObserveSubmit(result string) {
	submissionsTotal.WithLabelValues(result).Inc()
}

// SetQueueDepth records the dispatcher backlog.
func SetQueueDepth(n int) {
	queueDepth.Set(float64(n))
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	activeWorkers.Dec()
}

// ObserveHTTPRequest records one request served by the ops server.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
