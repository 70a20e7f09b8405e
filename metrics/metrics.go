// Package metrics exposes Prometheus collectors for the audit pipeline.
package metrics

import (
	"database/sql"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Fetch outcomes
const (
	OutcomeSuccess      = "success"
	OutcomeFetchFailed  = "fetch_failed"
	OutcomeNoParagraphs = "no_paragraphs"
	OutcomeCached       = "cached"
	OutcomePrefetched   = "prefetched"
)

// Pipeline phases
const (
	PhaseFetch      = "fetch"
	PhaseSimilarity = "similarity"
)

// Metrics holds all collectors. A nil *Metrics is valid and records nothing.
type Metrics struct {
	PagesTotal          *prometheus.CounterVec
	FetchDuration       prometheus.Histogram
	ParagraphsExtracted prometheus.Counter
	PhaseDuration       *prometheus.HistogramVec
	BatchesTotal        prometheus.Counter
	CorpusParagraphs    prometheus.Gauge
	HighDuplicatePages  prometheus.Gauge

	DBOpenConnections prometheus.Gauge
	DBInUse           prometheus.Gauge
	DBIdle            prometheus.Gauge
	DBWaitCount       prometheus.Gauge
}

// New registers the collectors under namespace with reg
func New(namespace string, reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)
	return &Metrics{
		PagesTotal: factory.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "pages_total",
			Help:      "Pages processed in the fetch phase by outcome",
		}, []string{"outcome"}),
		FetchDuration: factory.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "fetch_duration_seconds",
			Help:      "Time spent fetching and extracting a single page",
			Buckets:   prometheus.ExponentialBuckets(0.05, 2, 10),
		}),
		ParagraphsExtracted: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "paragraphs_extracted_total",
			Help:      "Body paragraphs kept after filtering",
		}),
		PhaseDuration: factory.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "phase_duration_seconds",
			Help:      "Duration of each batch phase",
			Buckets:   prometheus.ExponentialBuckets(0.01, 4, 8),
		}, []string{"phase"}),
		BatchesTotal: factory.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "batches_total",
			Help:      "Completed duplicate-content batches",
		}),
		CorpusParagraphs: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "corpus_paragraphs",
			Help:      "Paragraphs in the most recent batch corpus",
		}),
		HighDuplicatePages: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "high_duplicate_pages",
			Help:      "Pages at or above the high-duplicate threshold in the most recent batch",
		}),
		DBOpenConnections: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "open_connections",
			Help:      "Established database connections",
		}),
		DBInUse: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "in_use_connections",
			Help:      "Database connections currently in use",
		}),
		DBIdle: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "idle_connections",
			Help:      "Idle database connections",
		}),
		DBWaitCount: factory.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "db",
			Name:      "wait_count",
			Help:      "Total connections waited for",
		}),
	}
}

// ObservePage records the outcome of one page in the fetch phase
func (m *Metrics) ObservePage(outcome string, paragraphs int, d time.Duration) {
	if m == nil {
		return
	}
	m.PagesTotal.WithLabelValues(outcome).Inc()
	m.ParagraphsExtracted.Add(float64(paragraphs))
	if outcome == OutcomeSuccess || outcome == OutcomeFetchFailed || outcome == OutcomeNoParagraphs {
		m.FetchDuration.Observe(d.Seconds())
	}
}

// ObservePhase records how long a batch phase took
func (m *Metrics) ObservePhase(phase string, d time.Duration) {
	if m == nil {
		return
	}
	m.PhaseDuration.WithLabelValues(phase).Observe(d.Seconds())
}

// ObserveBatch records the size and outcome of a finished batch
func (m *Metrics) ObserveBatch(corpusParagraphs, highDuplicates int) {
	if m == nil {
		return
	}
	m.BatchesTotal.Inc()
	m.CorpusParagraphs.Set(float64(corpusParagraphs))
	m.HighDuplicatePages.Set(float64(highDuplicates))
}

// UpdateDBStats copies connection pool statistics into the gauges
func (m *Metrics) UpdateDBStats(db *sql.DB) {
	if m == nil || db == nil {
		return
	}
	stats := db.Stats()
	m.DBOpenConnections.Set(float64(stats.OpenConnections))
	m.DBInUse.Set(float64(stats.InUse))
	m.DBIdle.Set(float64(stats.Idle))
	m.DBWaitCount.Set(float64(stats.WaitCount))
}
