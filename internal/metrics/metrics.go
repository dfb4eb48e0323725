// Package metrics exposes Prometheus collectors for the follow watcher.
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
	providerRequestsTotal      *prometheus.CounterVec
	providerCacheLookupsTotal  *prometheus.CounterVec
	providerRateLimitRetries   *prometheus.CounterVec
	rateLimitDelaysSeconds     *prometheus.HistogramVec
	classifierCallsTotal       *prometheus.CounterVec
	classifierInflight         prometheus.Gauge
	pollerCyclesTotal          *prometheus.CounterVec
	pollerTrackersTotal        *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec
	pollerCycleDurationSeconds prometheus.Histogram

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		providerRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_provider_requests_total",
				Help: "Outbound social-data provider requests, labeled by operation and outcome.",
			},
			[]string{"operation", "outcome"},
		)

		providerCacheLookupsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_provider_cache_lookups_total",
				Help: "Provider response cache lookups, labeled by operation and result.",
			},
			[]string{"operation", "result"},
		)

		providerRateLimitRetries = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_provider_rate_limit_retries_total",
				Help: "Retries scheduled after an upstream 429, labeled by operation.",
			},
			[]string{"operation"},
		)

		rateLimitDelaysSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "followwatch_rate_limit_delays_seconds",
				Help:    "Histogram of client-side rate limit wait durations.",
				Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30},
			},
			[]string{"host"},
		)

		classifierCallsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_classifier_calls_total",
				Help: "Image classification calls, labeled by outcome (match, no_match, failure).",
			},
			[]string{"outcome"},
		)

		classifierInflight = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "followwatch_classifier_inflight",
				Help: "Number of classification calls currently in flight.",
			},
		)

		pollerCyclesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_poller_cycles_total",
				Help: "Polling cycles, labeled by status.",
			},
			[]string{"status"},
		)

		pollerCycleDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "followwatch_poller_cycle_duration_seconds",
				Help:    "Histogram of polling cycle durations.",
				Buckets: []float64{1, 5, 15, 30, 60, 300, 900, 1800},
			},
		)

		pollerTrackersTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_poller_trackers_total",
				Help: "Per-tracker polling outcomes.",
			},
			[]string{"outcome"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "followwatch_notifications_total",
				Help: "Change notifications, labeled by delivery status.",
			},
			[]string{"status"},
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

// SanitizeHost extracts a lowercase hostname from a URL.
// It returns "unknown" if the URL is invalid.
func SanitizeHost(rawURL string) string {
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
	Init()
	return promhttp.Handler()
}

// ObserveProviderRequest counts one outbound provider request.
func ObserveProviderRequest(operation, outcome string) {
	Init()
	providerRequestsTotal.WithLabelValues(operation, outcome).Inc()
}

// ObserveCacheLookup counts a cache hit or miss for an operation.
func ObserveCacheLookup(operation string, hit bool) {
	Init()
	result := "miss"
	if hit {
		result = "hit"
	}
	providerCacheLookupsTotal.WithLabelValues(operation, result).Inc()
}

// ObserveRateLimitRetry counts a retry scheduled after a 429.
func ObserveRateLimitRetry(operation string) {
	Init()
	providerRateLimitRetries.WithLabelValues(operation).Inc()
}

// ObserveRateLimitDelay records the duration of a client-side rate limit wait.
func ObserveRateLimitDelay(host string, duration time.Duration) {
	Init()
	rateLimitDelaysSeconds.WithLabelValues(host).Observe(duration.Seconds())
}

// ObserveClassification counts one classification outcome.
func ObserveClassification(outcome string) {
	Init()
	classifierCallsTotal.WithLabelValues(outcome).Inc()
}

// IncClassifierInflight increments the in-flight classification gauge.
func IncClassifierInflight() {
	Init()
	classifierInflight.Inc()
}

// DecClassifierInflight decrements the in-flight classification gauge.
func DecClassifierInflight() {
	Init()
	classifierInflight.Dec()
}

// ObservePollCycle records a finished polling cycle.
func ObservePollCycle(status string, duration time.Duration) {
	Init()
	pollerCyclesTotal.WithLabelValues(status).Inc()
	pollerCycleDurationSeconds.Observe(duration.Seconds())
}

// ObserveTrackerOutcome counts a per-tracker outcome within a cycle.
func ObserveTrackerOutcome(outcome string) {
	Init()
	pollerTrackersTotal.WithLabelValues(outcome).Inc()
}

// ObserveNotification counts a notification delivery attempt.
func ObserveNotification(status string) {
	Init()
	notificationsTotal.WithLabelValues(status).Inc()
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
