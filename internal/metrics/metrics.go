// Package metrics exposes Prometheus collectors for the crawl engine.
package metrics

import (
	"net/http"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	crawlerItemsTotal             *prometheus.CounterVec
	crawlerDiscoveredTotal        *prometheus.CounterVec
	crawlerRetriesTotal           *prometheus.CounterVec
	crawlerActiveWorkers          prometheus.Gauge
	crawlerInflightItems          prometheus.Gauge
	crawlerRateLimitDelaySeconds  *prometheus.HistogramVec
	crawlerItemDurationSeconds    *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		crawlerItemsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_items_total",
				Help: "Total number of items processed, labeled by source and outcome.",
			},
			[]string{"source", "outcome"},
		)

		crawlerDiscoveredTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_discovered_total",
				Help: "Total number of identifiers discovered, labeled by source.",
			},
			[]string{"source"},
		)

		crawlerRetriesTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "crawler_retries_total",
				Help: "Total number of retry attempts, labeled by source.",
			},
			[]string{"source"},
		)

		crawlerActiveWorkers = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_active_workers",
				Help: "Number of workers currently running, across all sources.",
			},
		)

		crawlerInflightItems = promauto.NewGauge(
			prometheus.GaugeOpts{
				Name: "crawler_inflight_items",
				Help: "Number of item-processing attempts holding a global concurrency slot.",
			},
		)

		crawlerRateLimitDelaySeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_rate_limit_delay_seconds",
				Help:    "Histogram of rate limit wait durations, labeled by source.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)

		crawlerItemDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "crawler_item_duration_seconds",
				Help:    "Histogram of end-to-end item processing durations, labeled by source.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10},
			},
			[]string{"source"},
		)
	})
}

// IncItem records one terminal item outcome for a source.
func IncItem(source, outcome string) {
	if crawlerItemsTotal != nil {
		crawlerItemsTotal.WithLabelValues(source, outcome).Inc()
	}
}

// AddDiscovered records identifiers found during a source's discovery step.
func AddDiscovered(source string, n int) {
	if crawlerDiscoveredTotal != nil {
		crawlerDiscoveredTotal.WithLabelValues(source).Add(float64(n))
	}
}

// IncRetry records one retry attempt for a source.
func IncRetry(source string) {
	if crawlerRetriesTotal != nil {
		crawlerRetriesTotal.WithLabelValues(source).Inc()
	}
}

// WorkerStarted increments the active worker gauge.
func WorkerStarted() {
	if crawlerActiveWorkers != nil {
		crawlerActiveWorkers.Inc()
	}
}

// WorkerStopped decrements the active worker gauge.
func WorkerStopped() {
	if crawlerActiveWorkers != nil {
		crawlerActiveWorkers.Dec()
	}
}

// SlotAcquired increments the in-flight gauge when a global slot is held.
func SlotAcquired() {
	if crawlerInflightItems != nil {
		crawlerInflightItems.Inc()
	}
}

// SlotReleased decrements the in-flight gauge.
func SlotReleased() {
	if crawlerInflightItems != nil {
		crawlerInflightItems.Dec()
	}
}

// ObserveRateLimitDelay records how long a caller waited on the rate limiter.
func ObserveRateLimitDelay(source string, d time.Duration) {
	if crawlerRateLimitDelaySeconds != nil {
		crawlerRateLimitDelaySeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// ObserveItemDuration records one item's end-to-end processing time.
func ObserveItemDuration(source string, d time.Duration) {
	if crawlerItemDurationSeconds != nil {
		crawlerItemDurationSeconds.WithLabelValues(source).Observe(d.Seconds())
	}
}

// Handler returns the HTTP handler serving the Prometheus registry.
func Handler() http.Handler {
	return promhttp.Handler()
}
