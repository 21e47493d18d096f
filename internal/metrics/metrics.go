// Package metrics exposes Prometheus collectors for the sync engine.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	scrapesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cricsync_scrapes_total",
			Help: "Total scrape attempts, labeled by section and outcome.",
		},
		[]string{"section", "outcome"},
	)

	scrapeRetriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cricsync_scrape_retries_total",
			Help: "Total transient retries, labeled by failure kind.",
		},
		[]string{"kind"},
	)

	reconcilesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cricsync_reconciles_total",
			Help: "Total reconcile results, labeled by section and result.",
		},
		[]string{"section", "result"},
	)

	jobsInFlight = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cricsync_jobs_in_flight",
			Help: "Number of scrape jobs currently in flight.",
		},
	)

	sessionsActive = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "cricsync_browser_sessions_active",
			Help: "Number of live browser sessions owned by the pool.",
		},
	)

	sessionsDiscarded = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "cricsync_browser_sessions_discarded_total",
			Help: "Total browser sessions discarded after crashes.",
		},
	)

	tickDurationSeconds = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "cricsync_scheduler_tick_duration_seconds",
			Help:    "Histogram of scheduler tick latencies.",
			Buckets: []float64{0.001, 0.005, 0.01, 0.05, 0.1, 0.5},
		},
	)

	attemptDurationSecs = promauto.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cricsync_attempt_duration_seconds",
			Help:    "Histogram of end-to-end job attempt latencies, labeled by section.",
			Buckets: []float64{0.5, 1, 2, 5, 10, 30, 60},
		},
		[]string{"section"},
	)
)

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveScrape increments the scrape attempt counter.
func ObserveScrape(section string, outcome string) {
	scrapesTotal.WithLabelValues(section, outcome).Inc()
}

// ObserveRetry increments the retry counter for a failure kind.
func ObserveRetry(kind string) {
	scrapeRetriesTotal.WithLabelValues(kind).Inc()
}

// ObserveReconcile increments the reconcile result counter.
func ObserveReconcile(section string, result string) {
	reconcilesTotal.WithLabelValues(section, result).Inc()
}

// IncJobsInFlight increments the in-flight jobs gauge.
func IncJobsInFlight() {
	jobsInFlight.Inc()
}

// DecJobsInFlight decrements the in-flight jobs gauge.
func DecJobsInFlight() {
	jobsInFlight.Dec()
}

// SetSessionsActive records the live browser session count.
func SetSessionsActive(n int) {
	sessionsActive.Set(float64(n))
}

// ObserveSessionDiscarded increments the discarded session counter.
func ObserveSessionDiscarded() {
	sessionsDiscarded.Inc()
}

// ObserveTick records the duration of one scheduler tick.
func ObserveTick(d time.Duration) {
	tickDurationSeconds.Observe(d.Seconds())
}

// ObserveAttempt records the duration of one end-to-end job attempt.
func ObserveAttempt(section string, d time.Duration) {
	attemptDurationSecs.WithLabelValues(section).Observe(d.Seconds())
}
