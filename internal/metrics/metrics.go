// Package metrics exposes Prometheus collectors for the agenda watcher.
package metrics

import (
	"net/http"
	"strconv"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	runsTotal                  *prometheus.CounterVec
	runDurationSeconds         prometheus.Histogram
	newDocumentsTotal          prometheus.Counter
	fetchAttemptsTotal         *prometheus.CounterVec
	notificationsTotal         *prometheus.CounterVec
	trackedDocuments           prometheus.Gauge
	lastRunTimestampSeconds    prometheus.Gauge
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpwatch_runs_total",
				Help: "Total number of watcher runs, labeled by outcome.",
			},
			[]string{"outcome"},
		)

		runDurationSeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "gpwatch_run_duration_seconds",
				Help:    "Histogram of watcher run durations, including fetch retries.",
				Buckets: []float64{0.25, 0.5, 1, 2, 5, 10, 30, 60, 120},
			},
		)

		newDocumentsTotal = promauto.NewCounter(
			prometheus.CounterOpts{
				Name: "gpwatch_new_documents_total",
				Help: "Total number of newly published documents detected.",
			},
		)

		fetchAttemptsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpwatch_fetch_attempts_total",
				Help: "Total number of portal fetch attempts, labeled by result.",
			},
			[]string{"result"},
		)

		notificationsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "gpwatch_notifications_total",
				Help: "Total number of notifications, labeled by kind and result (sent, error, skipped).",
			},
			[]string{"kind", "result"},
		)

		trackedDocuments = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpwatch_tracked_documents",
				Help: "Number of document IDs in the persisted state.",
			},
		)

		lastRunTimestampSeconds = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "gpwatch_last_run_timestamp_seconds",
				Help: "Unix time of the last completed watcher run.",
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
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5},
			},
			[]string{"method", "route"},
		)
	})
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run with its outcome and duration.
func ObserveRun(outcome string, duration time.Duration) {
	Init()
	runsTotal.WithLabelValues(outcome).Inc()
	runDurationSeconds.Observe(duration.Seconds())
}

// ObserveNewDocuments adds n to the new documents counter.
func ObserveNewDocuments(n int) {
	Init()
	if n > 0 {
		newDocumentsTotal.Add(float64(n))
	}
}

// ObserveFetchAttempt counts one portal request attempt.
func ObserveFetchAttempt(result string) {
	Init()
	fetchAttemptsTotal.WithLabelValues(result).Inc()
}

// ObserveNotification counts one notification delivery.
func ObserveNotification(kind, result string) {
	Init()
	notificationsTotal.WithLabelValues(kind, result).Inc()
}

// SetTrackedDocuments records the size of the persisted seen set.
func SetTrackedDocuments(n int) {
	Init()
	trackedDocuments.Set(float64(n))
}

// SetLastRun records when the latest run finished.
func SetLastRun(t time.Time) {
	Init()
	lastRunTimestampSeconds.Set(float64(t.Unix()))
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	Init()
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
