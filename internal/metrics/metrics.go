// Package metrics provides Prometheus metrics for MapVault.
//
// Every Metrics value owns its registry, so several services (or tests) can
// live in one process. All methods are safe on a nil *Metrics.
package metrics

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const DefaultNamespace = "mapvault"

// Fetch results.
const (
	ResultOK      = "ok"
	ResultMissing = "missing"
	ResultError   = "error"
)

// Metrics holds all Prometheus metrics for MapVault.
type Metrics struct {
	registry *prometheus.Registry

	// Loader metrics, labelled by queue ("records", "images")
	QueueDepth  *prometheus.GaugeVec
	InFlight    *prometheus.GaugeVec
	Fetches     *prometheus.CounterVec
	Failures    *prometheus.CounterVec
	Evictions   *prometheus.CounterVec
	CachedItems *prometheus.GaugeVec

	// Search metrics
	Searches       prometheus.Counter
	SearchDuration prometheus.Histogram
	SearchSkipped  prometheus.Counter

	// Ingest metrics
	Ingested    *prometheus.CounterVec
	IngestBytes prometheus.Histogram
}

func New(namespace string) *Metrics {
	if namespace == "" {
		namespace = DefaultNamespace
	}
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	f := promauto.With(reg)

	return &Metrics{
		registry: reg,
		QueueDepth: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_queue_depth",
				Help:      "Items waiting in a load queue",
			},
			[]string{"queue"},
		),
		InFlight: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_in_flight",
				Help:      "Fetches currently running",
			},
			[]string{"queue"},
		),
		Fetches: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_fetches_total",
				Help:      "Fetch attempts by result",
			},
			[]string{"queue", "result"},
		),
		Failures: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_failures_total",
				Help:      "Items moved to the failure set after exhausting their retry budget",
			},
			[]string{"queue"},
		),
		Evictions: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "loader_evictions_total",
				Help:      "Cache entries evicted by the LRU",
			},
			[]string{"queue"},
		),
		CachedItems: f.NewGaugeVec(
			prometheus.GaugeOpts{
				Namespace: namespace,
				Name:      "loader_cached_items",
				Help:      "Entries currently cached, failures included",
			},
			[]string{"queue"},
		),
		Searches: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "searches_total",
				Help:      "Searches run to completion or cancellation",
			},
		),
		SearchDuration: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "search_duration_seconds",
				Help:      "Wall time of one search",
				Buckets:   prometheus.ExponentialBuckets(0.001, 2, 12), // 1ms to ~4s
			},
		),
		SearchSkipped: f.NewCounter(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "search_skipped_total",
				Help:      "Records excluded from a search because they could not be read",
			},
		),
		Ingested: f.NewCounterVec(
			prometheus.CounterOpts{
				Namespace: namespace,
				Name:      "ingested_total",
				Help:      "Ingestion attempts by format variant and result",
			},
			[]string{"variant", "result"},
		),
		IngestBytes: f.NewHistogram(
			prometheus.HistogramOpts{
				Namespace: namespace,
				Name:      "ingest_bytes",
				Help:      "Size of ingested map binaries",
				Buckets:   prometheus.ExponentialBuckets(1024, 4, 10), // 1KB to ~256MB
			},
		),
	}
}

// Registry exposes the underlying registry for tests and custom exporters.
func (m *Metrics) Registry() *prometheus.Registry {
	if m == nil {
		return nil
	}
	return m.registry
}

// Handler serves this instance's metrics for scraping.
func (m *Metrics) Handler() http.Handler {
	if m == nil {
		return promhttp.Handler()
	}
	return promhttp.HandlerFor(m.registry, promhttp.HandlerOpts{Registry: m.registry})
}

// Queue returns the loader metrics for one queue.
func (m *Metrics) Queue(name string) *QueueMetrics {
	if m == nil {
		return nil
	}
	return &QueueMetrics{m: m, name: name}
}

// QueueMetrics is a Metrics view with the queue label applied.
type QueueMetrics struct {
	m    *Metrics
	name string
}

func (q *QueueMetrics) SetDepth(n int) {
	if q == nil {
		return
	}
	q.m.QueueDepth.WithLabelValues(q.name).Set(float64(n))
}

func (q *QueueMetrics) SetInFlight(n int) {
	if q == nil {
		return
	}
	q.m.InFlight.WithLabelValues(q.name).Set(float64(n))
}

func (q *QueueMetrics) SetCached(n int) {
	if q == nil {
		return
	}
	q.m.CachedItems.WithLabelValues(q.name).Set(float64(n))
}

func (q *QueueMetrics) IncFetch(result string) {
	if q == nil {
		return
	}
	q.m.Fetches.WithLabelValues(q.name, result).Inc()
}

func (q *QueueMetrics) IncFailure() {
	if q == nil {
		return
	}
	q.m.Failures.WithLabelValues(q.name).Inc()
}

func (q *QueueMetrics) IncEviction() {
	if q == nil {
		return
	}
	q.m.Evictions.WithLabelValues(q.name).Inc()
}

// ObserveSearch records one finished search.
func (m *Metrics) ObserveSearch(elapsed time.Duration, skipped int) {
	if m == nil {
		return
	}
	m.Searches.Inc()
	m.SearchDuration.Observe(elapsed.Seconds())
	m.SearchSkipped.Add(float64(skipped))
}

// ObserveIngest records one ingestion attempt. variant is empty when the binary
// could not be parsed.
func (m *Metrics) ObserveIngest(variant string, size int, err error) {
	if m == nil {
		return
	}
	result := ResultOK
	if err != nil {
		result = ResultError
	}
	if variant == "" {
		variant = "unknown"
	}
	m.Ingested.WithLabelValues(variant, result).Inc()
	m.IngestBytes.Observe(float64(size))
}
