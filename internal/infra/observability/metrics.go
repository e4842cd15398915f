package observability

import (
	"time"

	"github.com/boddenberg/caixa-bfa-go/internal/domain"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	dto "github.com/prometheus/client_model/go"
)

// Metrics holds all Prometheus metrics for the service.
type Metrics struct {
	// Registry is the Prometheus registry that owns these metrics.
	// Exposed so the /metrics endpoint can use it.
	Registry *prometheus.Registry

	requestDuration *prometheus.HistogramVec
	externalErrors  *prometheus.CounterVec
	cacheHits       *prometheus.CounterVec
	cacheMisses     *prometheus.CounterVec
	projections     *prometheus.CounterVec
	reminders       *prometheus.CounterVec
	snapshotSize    *prometheus.HistogramVec
}

// NewMetrics creates a dedicated Prometheus registry and registers all
// application metrics in it. A private registry lets tests call NewMetrics
// more than once.
func NewMetrics() *Metrics {
	reg := prometheus.NewRegistry()
	factory := promauto.With(reg)

	return &Metrics{
		Registry: reg,

		requestDuration: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caixa_operation_duration_seconds",
				Help:    "Duration of service operations.",
				Buckets: prometheus.DefBuckets,
			},
			[]string{"operation"},
		),
		externalErrors: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caixa_external_errors_total",
				Help: "Total errors from external services.",
			},
			[]string{"service"},
		),
		cacheHits: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caixa_cache_hits_total",
				Help: "Total cache hits.",
			},
			[]string{"cache"},
		),
		cacheMisses: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caixa_cache_misses_total",
				Help: "Total cache misses.",
			},
			[]string{"cache"},
		),
		projections: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caixa_projections_total",
				Help: "Projections computed, by outcome.",
			},
			[]string{"status"},
		),
		reminders: factory.NewCounterVec(
			prometheus.CounterOpts{
				Name: "caixa_due_reminders_total",
				Help: "Due reminders published, by outcome.",
			},
			[]string{"status"},
		),
		snapshotSize: factory.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "caixa_snapshot_entities",
				Help:    "Entities loaded per snapshot, by kind.",
				Buckets: prometheus.ExponentialBuckets(1, 4, 8),
			},
			[]string{"kind"},
		),
	}
}

// RecordRequestDuration records the duration of an operation.
func (m *Metrics) RecordRequestDuration(operation string, d time.Duration) {
	m.requestDuration.WithLabelValues(operation).Observe(d.Seconds())
}

// IncrExternalError increments the external error counter.
func (m *Metrics) IncrExternalError(service string) {
	m.externalErrors.WithLabelValues(service).Inc()
}

// IncrCacheHit increments the cache hit counter.
func (m *Metrics) IncrCacheHit(cache string) {
	m.cacheHits.WithLabelValues(cache).Inc()
}

// IncrCacheMiss increments the cache miss counter.
func (m *Metrics) IncrCacheMiss(cache string) {
	m.cacheMisses.WithLabelValues(cache).Inc()
}

// IncrProjection counts a projection with status "success" or "error".
func (m *Metrics) IncrProjection(status string) {
	m.projections.WithLabelValues(status).Inc()
}

// IncrReminder counts a due reminder with status "published" or "error".
func (m *Metrics) IncrReminder(status string) {
	m.reminders.WithLabelValues(status).Inc()
}

// ObserveSnapshot records how many entities of each kind a snapshot holds.
func (m *Metrics) ObserveSnapshot(s *domain.Snapshot) {
	m.snapshotSize.WithLabelValues("accounts").Observe(float64(len(s.Accounts)))
	m.snapshotSize.WithLabelValues("transactions").Observe(float64(len(s.Transactions)))
	m.snapshotSize.WithLabelValues("debts").Observe(float64(len(s.Debts)))
	m.snapshotSize.WithLabelValues("purchases").Observe(float64(len(s.Purchases)))
	m.snapshotSize.WithLabelValues("pockets").Observe(float64(len(s.Pockets)))
}

// GetEngineSnapshot returns cumulative counters for GET /v1/metrics/engine.
func (m *Metrics) GetEngineSnapshot() *domain.EngineMetrics {
	ok := getCounterValue(m.projections, "success")
	failed := getCounterValue(m.projections, "error")
	hits := getCounterValue(m.cacheHits, "rate")
	misses := getCounterValue(m.cacheMisses, "rate")

	errorRate := float64(0)
	if ok+failed > 0 {
		errorRate = failed / (ok + failed)
	}
	hitRate := float64(0)
	if hits+misses > 0 {
		hitRate = hits / (hits + misses)
	}

	return &domain.EngineMetrics{
		Projections:     int64(ok + failed),
		ProjectionErrs:  int64(failed),
		ErrorRate:       errorRate,
		StoreErrors:     int64(getCounterValue(m.externalErrors, "store")),
		RateCacheHits:   int64(hits),
		RateCacheMisses: int64(misses),
		CacheHitRate:    hitRate,
		Reminders:       int64(getCounterValue(m.reminders, "published")),
		Period:          "all_time",
	}
}

// getCounterValue extracts the current float64 value from a CounterVec for a given label.
func getCounterValue(cv *prometheus.CounterVec, label string) float64 {
	counter := cv.WithLabelValues(label)
	m := &dto.Metric{}
	if err := counter.(prometheus.Metric).Write(m); err != nil {
		return 0
	}
	if m.Counter != nil && m.Counter.Value != nil {
		return *m.Counter.Value
	}
	return 0
}
