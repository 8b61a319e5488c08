// Package metrics provides Prometheus metrics for the chargeview dashboard service.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Manager manages all Prometheus metrics for the service.
type Manager struct {
	namespace string
	subsystem string
	registry  prometheus.Registerer

	// Poll cycle metrics
	cyclesRun      *prometheus.CounterVec
	cyclesSkipped  prometheus.Counter
	cycleDuration  prometheus.Histogram
	triggerPending prometheus.Gauge

	// Backend fetch metrics
	fetches      *prometheus.CounterVec
	fetchLatency *prometheus.HistogramVec

	// Reconciled data metrics
	historyRecords  prometheus.Gauge
	mergedRecords   prometheus.Gauge
	clusterCount    prometheus.Gauge
	assignments     prometheus.Gauge
	recordsExcluded *prometheus.GaugeVec
	snapshotVersion prometheus.Gauge
	snapshotUpdated prometheus.Gauge
	connected       prometheus.Gauge

	// Mirror and stream metrics
	mirrorWrites      *prometheus.CounterVec
	streamSubscribers prometheus.Gauge
	streamMessages    *prometheus.CounterVec

	// HTTP metrics
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec
	errorsByEndpoint    *prometheus.CounterVec
	errorsByComponent   *prometheus.CounterVec

	// System metrics
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
	systemGCPauseTime    prometheus.Histogram
}

var globalManager *Manager //nolint:gochecknoglobals // singleton metrics manager

// Custom registry to avoid default Go metrics.
var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // metrics registry

func init() { //nolint:gochecknoinits // global metrics setup
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a new metrics manager with default configuration.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace: "chargeview",
		subsystem: "dashboard",
		registry:  prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) initializeMetrics() { //nolint:funlen // declarative metric list
	auto := promauto.With(m.registry)
	msBuckets := []float64{5, 10, 25, 50, 100, 250, 500, 1000, 2500, 5000, 10000, 30000}

	m.cyclesRun = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cycles_total",
		Help: "Poll cycles executed, by result (ok, partial, failed)",
	}, []string{"result"})
	m.cyclesSkipped = auto.NewCounter(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cycles_skipped_total",
		Help: "Cycle triggers dropped because a cycle was already pending",
	})
	m.cycleDuration = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "cycle_duration_milliseconds",
		Help:    "Wall-clock duration of a fetch-reconcile cycle",
		Buckets: msBuckets,
	})
	m.triggerPending = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "trigger_queue_pending",
		Help: "Cycle requests waiting in the trigger queue",
	})

	m.fetches = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "fetch_total",
		Help: "Backend fetches by endpoint and outcome",
	}, []string{"endpoint", "outcome"})
	m.fetchLatency = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "fetch_latency_milliseconds",
		Help:    "Backend fetch latency by endpoint",
		Buckets: msBuckets,
	}, []string{"endpoint"})

	m.historyRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "history_records",
		Help: "History records in the current snapshot",
	})
	m.mergedRecords = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "merged_records",
		Help: "History records joined with a cluster label",
	})
	m.clusterCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "clusters",
		Help: "Distinct cluster labels with at least one merged record",
	})
	m.assignments = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "cluster_assignments",
		Help: "Entries in the cluster index",
	})
	m.recordsExcluded = auto.NewGaugeVec(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "records_excluded",
		Help: "Records left out of the current snapshot's join, by reason",
	}, []string{"reason"})
	m.snapshotVersion = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshot_version",
		Help: "Monotonic version of the applied snapshot",
	})
	m.snapshotUpdated = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "snapshot_last_success_unix",
		Help: "Unix time of the last update with at least one successful fetch",
	})
	m.connected = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "backend_connected",
		Help: "1 when the last cycle reached at least one endpoint",
	})

	m.mirrorWrites = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "mirror_writes_total",
		Help: "Snapshot mirror writes by outcome",
	}, []string{"outcome"})
	m.streamSubscribers = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "stream_subscribers",
		Help: "Connected websocket subscribers",
	})
	m.streamMessages = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "stream_messages_total",
		Help: "Snapshot messages pushed to subscribers by outcome",
	}, []string{"outcome"})

	m.httpRequests = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_requests_total",
		Help: "HTTP requests by endpoint, method and status",
	}, []string{"endpoint", "method", "status_code"})
	m.httpRequestDuration = auto.NewHistogramVec(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "http_request_duration_milliseconds",
		Help:    "HTTP request duration",
		Buckets: []float64{0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	}, []string{"endpoint", "method", "status_code"})
	m.errorsByEndpoint = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "http_errors_total",
		Help: "HTTP error responses by endpoint, method and error type",
	}, []string{"endpoint", "method", "error_type"})
	m.errorsByComponent = auto.NewCounterVec(prometheus.CounterOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "errors_total",
		Help: "Errors by component and type",
	}, []string{"component", "error_type"})

	m.systemMemoryUsage = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_memory_bytes",
		Help: "Heap bytes allocated",
	})
	m.systemGoroutineCount = auto.NewGauge(prometheus.GaugeOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name: "system_goroutine_count",
		Help: "Number of goroutines",
	})
	m.systemGCPauseTime = auto.NewHistogram(prometheus.HistogramOpts{
		Namespace: m.namespace, Subsystem: m.subsystem,
		Name:    "system_gc_pause_time_milliseconds",
		Help:    "Average GC pause time in milliseconds",
		Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 25, 50, 100, 250, 500, 1000},
	})
}

// Cycle metrics.

// RecordCycle counts a finished cycle and its duration.
func RecordCycle(result string, durationMs float64) {
	globalManager.cyclesRun.WithLabelValues(result).Inc()
	globalManager.cycleDuration.Observe(durationMs)
}

// RecordCycleSkipped counts a trigger dropped by the queue.
func RecordCycleSkipped() {
	globalManager.cyclesSkipped.Inc()
}

// UpdateTriggerPending sets the pending trigger count.
func UpdateTriggerPending(n int) {
	globalManager.triggerPending.Set(float64(n))
}

// Fetch metrics.

// RecordFetch counts one backend fetch and observes its latency.
func RecordFetch(endpoint, outcome string, latencyMs float64) {
	globalManager.fetches.WithLabelValues(endpoint, outcome).Inc()
	globalManager.fetchLatency.WithLabelValues(endpoint).Observe(latencyMs)
}

// Snapshot metrics.

// UpdateSnapshotSizes sets the record gauges of the current snapshot.
func UpdateSnapshotSizes(history, merged, clusters, assignments int) {
	globalManager.historyRecords.Set(float64(history))
	globalManager.mergedRecords.Set(float64(merged))
	globalManager.clusterCount.Set(float64(clusters))
	globalManager.assignments.Set(float64(assignments))
}

// UpdateExcluded sets how many records the current snapshot excludes for reason.
func UpdateExcluded(reason string, n int) {
	globalManager.recordsExcluded.WithLabelValues(reason).Set(float64(n))
}

// UpdateSnapshotVersion sets the snapshot version gauge.
func UpdateSnapshotVersion(v uint64) {
	globalManager.snapshotVersion.Set(float64(v))
}

// UpdateSnapshotLastSuccess sets the last successful update time.
func UpdateSnapshotLastSuccess(unix int64) {
	globalManager.snapshotUpdated.Set(float64(unix))
}

// UpdateConnected sets the backend connectivity gauge.
func UpdateConnected(ok bool) {
	if ok {
		globalManager.connected.Set(1)
		return
	}
	globalManager.connected.Set(0)
}

// Mirror and stream metrics.

// RecordMirrorWrite counts a mirror write.
func RecordMirrorWrite(outcome string) {
	globalManager.mirrorWrites.WithLabelValues(outcome).Inc()
}

// UpdateStreamSubscribers sets the subscriber gauge.
func UpdateStreamSubscribers(n int) {
	globalManager.streamSubscribers.Set(float64(n))
}

// RecordStreamMessage counts a pushed message.
func RecordStreamMessage(outcome string) {
	globalManager.streamMessages.WithLabelValues(outcome).Inc()
}

// HTTP metrics.

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
	globalManager.errorsByEndpoint.WithLabelValues(endpoint, method, errorType).Inc()
}

// RecordErrorByComponent records an error with component and type labels.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// System metrics.

// UpdateSystemMemoryUsage sets the system memory usage in bytes.
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

// GetRegistry returns the custom Prometheus registry used by our metrics.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
