// Package metrics provides Prometheus metrics for the rankstream ranking engine.
package metrics

import (
	"errors"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the ranking engine.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	constLabels      prometheus.Labels
	registry         prometheus.Registerer

	// Ranking runs
	runsTotal      *prometheus.CounterVec
	runDuration    *prometheus.HistogramVec
	postsProcessed prometheus.Counter
	batches        prometheus.Counter
	malformed      prometheus.Counter
	throughput     prometheus.Gauge
	runMemory      prometheus.Gauge
	scoringWorkers prometheus.Gauge

	// Tracker decisions
	trackerAdmitted prometheus.Counter
	trackerRejected prometheus.Counter
	trackerEvicted  prometheus.Counter

	// Result cache
	cacheHits      prometheus.Counter
	cacheMisses    prometheus.Counter
	cacheBypassed  prometheus.Counter
	cacheEvictions prometheus.Counter
	cacheEntries   prometheus.Gauge

	// Sources
	sourceRejected *prometheus.CounterVec

	// HTTP (observability endpoints)
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

// Global metrics manager instance.
var globalManager *Manager //nolint:gochecknoglobals // intentional global for singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // intentional global for metrics registry

func init() { //nolint:gochecknoinits // intentional init for global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "rankstream",
		subsystem:        "ranking",
		histogramBuckets: prometheus.DefBuckets,
		enabled:          true,
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counter(name, help string) prometheus.Counter {
	return promauto.With(m.registry).NewCounter(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) gauge(name, help string) prometheus.Gauge {
	return promauto.With(m.registry).NewGauge(prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	})
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every metric
	auto := promauto.With(m.registry)

	m.runsTotal = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "runs_total",
		Help:        "Ranking runs by algorithm and outcome",
		ConstLabels: m.constLabels,
	}, []string{"algorithm", "status"})

	m.runDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "run_duration_seconds",
		Help:        "Wall time of completed ranking runs",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"algorithm"})

	m.postsProcessed = m.counter("posts_processed_total", "Post records consumed by ranking runs")
	m.batches = m.counter("batches_total", "Batches pulled from sources")
	m.malformed = m.counter("malformed_records_total", "Records that failed normalization")
	m.throughput = m.gauge("last_run_throughput_posts_per_second", "Throughput of the most recent run")
	m.runMemory = m.gauge("last_run_heap_bytes", "Heap in use at the end of the most recent run")
	m.scoringWorkers = m.gauge("scoring_workers", "Size of the intra-batch scoring pool")

	m.trackerAdmitted = m.counter("tracker_admitted_total", "Offers admitted into the top-k tracker")
	m.trackerRejected = m.counter("tracker_rejected_total", "Offers rejected by the top-k tracker")
	m.trackerEvicted = m.counter("tracker_evicted_total", "Residents evicted from the top-k tracker")

	m.cacheHits = m.counter("cache_hits_total", "Ranking results served from the cache")
	m.cacheMisses = m.counter("cache_misses_total", "Cache lookups that found no live entry")
	m.cacheBypassed = m.counter("cache_bypassed_total", "Runs whose input could not be fingerprinted")
	m.cacheEvictions = m.counter("cache_evictions_total", "Entries evicted to respect the cache bound")
	m.cacheEntries = m.gauge("cache_entries", "Entries currently held by the cache")

	m.sourceRejected = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "source_rejected_total",
		Help:        "Posts a push source refused to buffer",
		ConstLabels: m.constLabels,
	}, []string{"reason"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_requests_total",
		Help:        "Total number of HTTP requests by endpoint and method",
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "http_request_duration_milliseconds",
		Help:        "HTTP request duration in milliseconds",
		Buckets:     m.histogramBuckets,
		ConstLabels: m.constLabels,
	}, []string{"endpoint", "method", "status_code"})

	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "errors_by_component_total",
		Help:        "Errors by component and type",
		ConstLabels: m.constLabels,
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = m.gauge("system_memory_usage_bytes", "System memory usage in bytes")
	m.systemGoroutineCount = m.gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        "system_gc_pause_time_milliseconds",
		Help:        "GC pause time in milliseconds",
		Buckets:     []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
		ConstLabels: m.constLabels,
	})
}

// RegisterRuntimeCollectors adds the Go runtime and process collectors to the
// global registry. Safe to call more than once.
func RegisterRuntimeCollectors() {
	for _, c := range []prometheus.Collector{
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	} {
		if err := customRegistry.Register(c); err != nil {
			var are prometheus.AlreadyRegisteredError
			if !errors.As(err, &are) {
				RecordErrorByComponent("metrics", "register")
			}
		}
	}
}

// RecordRun records the outcome of a ranking run.
func RecordRun(algorithm, status string) {
	if !globalManager.enabled {
		return
	}
	globalManager.runsTotal.WithLabelValues(algorithm, status).Inc()
}

// RecordRunDuration observes the wall time of a completed run in seconds.
func RecordRunDuration(algorithm string, seconds float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.runDuration.WithLabelValues(algorithm).Observe(seconds)
}

// RecordPostsProcessed adds n consumed records.
func RecordPostsProcessed(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.postsProcessed.Add(float64(n))
}

// RecordBatch counts one pulled batch.
func RecordBatch() {
	if !globalManager.enabled {
		return
	}
	globalManager.batches.Inc()
}

// RecordMalformedRecord counts a record that failed normalization.
func RecordMalformedRecord() {
	if !globalManager.enabled {
		return
	}
	globalManager.malformed.Inc()
}

// UpdateLastRun sets the throughput and heap gauges for the latest run.
func UpdateLastRun(throughput float64, heapBytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.throughput.Set(throughput)
	globalManager.runMemory.Set(float64(heapBytes))
}

// UpdateScoringWorkers sets the scoring pool size.
func UpdateScoringWorkers(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.scoringWorkers.Set(float64(n))
}

// RecordTracker adds tracker decision counts.
func RecordTracker(admitted, rejected, evicted uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.trackerAdmitted.Add(float64(admitted))
	globalManager.trackerRejected.Add(float64(rejected))
	globalManager.trackerEvicted.Add(float64(evicted))
}

// RecordCacheHit increments the cache hit counter.
func RecordCacheHit() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheHits.Inc()
}

// RecordCacheMiss increments the cache miss counter.
func RecordCacheMiss() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheMisses.Inc()
}

// RecordCacheBypass counts a run that skipped the cache.
func RecordCacheBypass() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheBypassed.Inc()
}

// RecordCacheEviction counts an entry evicted for space.
func RecordCacheEviction() {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheEvictions.Inc()
}

// UpdateCacheEntries sets the number of cached entries.
func UpdateCacheEntries(n int) {
	if !globalManager.enabled {
		return
	}
	globalManager.cacheEntries.Set(float64(n))
}

// RecordSourceRejected counts a post a push source refused.
func RecordSourceRejected(reason string) {
	if !globalManager.enabled {
		return
	}
	globalManager.sourceRejected.WithLabelValues(reason).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByComponent records errors by component and type.
func RecordErrorByComponent(component, errorType string) {
	if !globalManager.enabled {
		return
	}
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the system memory usage.
func UpdateSystemMemoryUsage(bytes uint64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine count.
func UpdateSystemGoroutineCount(count int) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time.
func RecordSystemGCPauseTime(pauseMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// GetRegistry returns the custom registry for use in HTTP handlers.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
