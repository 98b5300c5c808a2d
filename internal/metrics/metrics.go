// Package metrics exposes Prometheus collectors for the ingestion pipeline.
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

var (
	fetchTotal                 *prometheus.CounterVec
	fetchDurationSeconds       *prometheus.HistogramVec
	fetchBytesTotal            *prometheus.CounterVec
	meetsTotal                 *prometheus.CounterVec
	resultsIngestedTotal       prometheus.Counter
	rowsExcludedTotal          prometheus.Counter
	activeWorkers              prometheus.Gauge
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		fetchTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xc_fetch_total",
				Help: "Upstream fetches, labeled by site and status.",
			},
			[]string{"site", "status"},
		)

		fetchDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xc_fetch_duration_seconds",
				Help:    "Latency of upstream fetches, labeled by site.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"site"},
		)

		fetchBytesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xc_fetch_bytes_total",
				Help: "Bytes fetched from upstream, labeled by site.",
			},
			[]string{"site"},
		)

		meetsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "xc_meets_total",
				Help: "Meets processed by the scheduler, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		resultsIngestedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "xc_results_ingested_total",
				Help: "Result rows persisted.",
			},
		)

		rowsExcludedTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "xc_rows_excluded_total",
				Help: "Result rows dropped as DNF/DNS/DQ or missing a time.",
			},
		)

		activeWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "xc_active_workers",
				Help: "Number of workers currently processing a meet.",
			},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "xc_rate_limit_delays_seconds",
				Help:    "Histogram of rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"domain"},
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
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

// ObserveFetch records one upstream fetch.
func ObserveFetch(rawURL string, status string, bytesFetched int, duration time.Duration) {
	Init()
	site := SanitizeSite(rawURL)
	fetchTotal.WithLabelValues(site, status).Inc()
	fetchDurationSeconds.WithLabelValues(site).Observe(duration.Seconds())
	if bytesFetched > 0 {
		fetchBytesTotal.WithLabelValues(site).Add(float64(bytesFetched))
	}
}

// ObserveMeet increments the meet counter for the given outcome
// ("succeeded", or an error kind such as "fetch").
func ObserveMeet(outcome string) {
	Init()
	meetsTotal.WithLabelValues(outcome).Inc()
}

// ObserveResultsIngested adds persisted result rows.
func ObserveResultsIngested(n int) {
	Init()
	if n > 0 {
		resultsIngestedTotal.Add(float64(n))
	}
}

// ObserveRowsExcluded adds result rows dropped by the parser's row filter.
func ObserveRowsExcluded(n int) {
	Init()
	if n > 0 {
		rowsExcludedTotal.Add(float64(n))
	}
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}

// IncActiveWorkers increments the active workers gauge.
func IncActiveWorkers() {
	Init()
	activeWorkers.Inc()
}

// DecActiveWorkers decrements the active workers gauge.
func DecActiveWorkers() {
	Init()
	activeWorkers.Dec()
}

// ObserveRateLimitDelay records the duration of a rate limit wait.
func ObserveRateLimitDelay(domain string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(domain).Observe(duration.Seconds())
}
