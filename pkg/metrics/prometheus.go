// Package metrics provides Prometheus metrics for the driftboard leaderboard service.
package metrics

import (
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	enabled          bool
	customLabels     map[string]string
	metricPrefix     string
	registry         prometheus.Registerer

	// Engine
	queries          *prometheus.CounterVec
	queryErrors      *prometheus.CounterVec
	queryLatency     *prometheus.HistogramVec
	strategyFallback *prometheus.CounterVec

	// Write path
	sessionsRecorded  prometheus.Counter
	sessionsDuplicate prometheus.Counter
	sessionsErased    prometheus.Counter

	// Store
	storeLatency *prometheus.HistogramVec
	storeErrors  *prometheus.CounterVec
	storeRecords prometheus.Gauge
	storePlayers prometheus.Gauge
	storePool    *prometheus.GaugeVec

	// Name cache
	nameCacheHits   prometheus.Counter
	nameCacheMisses prometheus.Counter
	nameCacheErrors prometheus.Counter

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorRateByEndpoint *prometheus.CounterVec
	errorRateByType     *prometheus.CounterVec
	rateLimited         *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "driftboard",
		subsystem:        "leaderboard",
		histogramBuckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000, 2500},
		enabled:          true,
		customLabels:     make(map[string]string),
		registry:         prometheus.DefaultRegisterer,
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) name(n string) string {
	if m.metricPrefix == "" {
		return n
	}
	return m.metricPrefix + "_" + n
}

func (m *Manager) initializeMetrics() { //nolint:funlen // flat list of collectors
	auto := promauto.With(m.registry)
	constLabels := prometheus.Labels(m.customLabels)

	counterVec := func(name, help string, labels ...string) *prometheus.CounterVec {
		return auto.NewCounterVec(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		}, labels)
	}
	counter := func(name, help string) prometheus.Counter {
		return auto.NewCounter(prometheus.CounterOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	gauge := func(name, help string) prometheus.Gauge {
		return auto.NewGauge(prometheus.GaugeOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
		})
	}
	histogramVec := func(name, help string, labels ...string) *prometheus.HistogramVec {
		return auto.NewHistogramVec(prometheus.HistogramOpts{
			Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name(name), Help: help, ConstLabels: constLabels,
			Buckets: m.histogramBuckets,
		}, labels)
	}

	m.queries = counterVec("queries_total", "Leaderboard engine queries by operation and strategy path", "operation", "path")
	m.queryErrors = counterVec("query_errors_total", "Leaderboard engine failures by operation and error kind", "operation", "kind")
	m.queryLatency = histogramVec("query_latency_milliseconds", "Leaderboard engine query latency in milliseconds", "operation")
	m.strategyFallback = counterVec("strategy_fallback_total", "Accelerated store queries that fell back to scan-and-reduce", "operation")

	m.sessionsRecorded = counter("sessions_recorded_total", "Session records created")
	m.sessionsDuplicate = counter("sessions_duplicate_total", "Session reports that matched an existing session id")
	m.sessionsErased = counter("sessions_erased_total", "Session records removed by player erasure")

	m.storeLatency = histogramVec("store_latency_milliseconds", "Record store call latency in milliseconds", "operation")
	m.storeErrors = counterVec("store_errors_total", "Record store call failures", "operation")
	m.storeRecords = gauge("store_records", "Session records held by the store")
	m.storePlayers = gauge("store_players", "Distinct players with at least one session")
	m.storePool = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("store_pool_connections"),
		Help: "Database pool connections by state", ConstLabels: constLabels,
	}, []string{"state"})

	m.nameCacheHits = counter("name_cache_hits_total", "Display name cache hits")
	m.nameCacheMisses = counter("name_cache_misses_total", "Display name cache misses")
	m.nameCacheErrors = counter("name_cache_errors_total", "Display name cache backend failures")

	m.httpRequests = counterVec("http_requests_total", "HTTP requests by endpoint and method", "endpoint", "method", "status_code")
	m.httpRequestDuration = histogramVec("http_request_duration_milliseconds", "HTTP request duration in milliseconds", "endpoint", "method", "status_code")
	m.errorRateByEndpoint = counterVec("errors_by_endpoint_total", "HTTP errors by endpoint", "endpoint", "method", "error_type")
	m.errorRateByType = counterVec("errors_by_type_total", "HTTP errors by type", "error_type", "severity")
	m.rateLimited = counterVec("rate_limited_total", "Requests rejected by the rate limiter", "endpoint")

	m.systemMemoryUsage = gauge("system_memory_usage_bytes", "Heap bytes allocated")
	m.systemGoroutineCount = gauge("system_goroutine_count", "Number of goroutines")
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem, Name: m.name("system_gc_pause_time_milliseconds"),
		Help: "Average GC pause time in milliseconds", ConstLabels: constLabels,
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// RecordQuery counts an engine query served through path ("accelerated" or "scan").
func RecordQuery(operation, path string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queries.WithLabelValues(operation, path).Inc()
}

// RecordQueryError counts an engine failure; kind is "validation" or "store_unavailable".
func RecordQueryError(operation, kind string) {
	if !globalManager.enabled {
		return
	}
	globalManager.queryErrors.WithLabelValues(operation, kind).Inc()
}

// RecordQueryLatency records engine query latency in milliseconds.
func RecordQueryLatency(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.queryLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStrategyFallback counts an accelerated path failure that was retried with scan.
func RecordStrategyFallback(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.strategyFallback.WithLabelValues(operation).Inc()
}

// RecordSessionRecorded increments the created sessions counter.
func RecordSessionRecorded() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsRecorded.Inc()
}

// RecordSessionDuplicate increments the duplicate sessions counter.
func RecordSessionDuplicate() {
	if !globalManager.enabled {
		return
	}
	globalManager.sessionsDuplicate.Inc()
}

// RecordSessionsErased adds n erased sessions.
func RecordSessionsErased(n int) {
	if !globalManager.enabled || n <= 0 {
		return
	}
	globalManager.sessionsErased.Add(float64(n))
}

// RecordStoreLatency records a record store call latency.
func RecordStoreLatency(operation string, latencyMs float64) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeLatency.WithLabelValues(operation).Observe(latencyMs)
}

// RecordStoreError counts a failed record store call.
func RecordStoreError(operation string) {
	if !globalManager.enabled {
		return
	}
	globalManager.storeErrors.WithLabelValues(operation).Inc()
}

// UpdateStoreRecords sets the number of records held by the store.
func UpdateStoreRecords(count int) {
	globalManager.storeRecords.Set(float64(count))
}

// UpdateStorePlayers sets the number of distinct players.
func UpdateStorePlayers(count int) {
	globalManager.storePlayers.Set(float64(count))
}

// UpdateStorePool sets the database pool connection gauges.
func UpdateStorePool(acquired, idle, total int32) {
	globalManager.storePool.WithLabelValues("acquired").Set(float64(acquired))
	globalManager.storePool.WithLabelValues("idle").Set(float64(idle))
	globalManager.storePool.WithLabelValues("total").Set(float64(total))
}

// RecordNameCacheHit increments the name cache hit counter.
func RecordNameCacheHit() {
	if !globalManager.enabled {
		return
	}
	globalManager.nameCacheHits.Inc()
}

// RecordNameCacheMiss increments the name cache miss counter.
func RecordNameCacheMiss() {
	if !globalManager.enabled {
		return
	}
	globalManager.nameCacheMisses.Inc()
}

// RecordNameCacheError increments the name cache error counter.
func RecordNameCacheError() {
	if !globalManager.enabled {
		return
	}
	globalManager.nameCacheErrors.Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, duration float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(duration)
}

// RecordErrorByEndpoint records an error with endpoint, method, and error type labels.
func RecordErrorByEndpoint(endpoint, method, errorType string) {
	globalManager.errorRateByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByType records an error with type and severity labels.
func RecordErrorByType(errorType, severity string) {
	globalManager.errorRateByType.WithLabelValues(errorType, severity).Inc()
}

// RecordRateLimited counts a request rejected with 429.
func RecordRateLimited(endpoint string) {
	globalManager.rateLimited.WithLabelValues(endpoint).Inc()
}

// UpdateSystemMemoryUsage sets the heap usage in bytes.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the number of goroutines.
func UpdateSystemGoroutineCount(count int) {
	globalManager.systemGoroutineCount.Set(float64(count))
}

// RecordSystemGCPauseTime records GC pause time in milliseconds.
func RecordSystemGCPauseTime(pauseMs float64) {
	globalManager.systemGCPauseTime.Observe(pauseMs)
}

// SetEnabled toggles recording on the global manager. Gauges always update.
func SetEnabled(enabled bool) {
	globalManager.enabled = enabled
}

// Since returns the elapsed milliseconds since start, as observed by the histograms.
func Since(start time.Time) float64 {
	return float64(time.Since(start).Microseconds()) / 1000
}

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
