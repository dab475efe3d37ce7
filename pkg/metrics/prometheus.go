package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Buckets for the pure scoring path, in microseconds.
var scoringBuckets = []float64{1, 2, 5, 10, 25, 50, 100, 250, 500, 1000}

// Manager owns every Prometheus collector of the service.
type Manager struct {
	namespace        string
	subsystem        string
	histogramBuckets []float64
	constLabels      map[string]string
	registry         prometheus.Registerer

	// Matching
	framesScored       *prometheus.CounterVec
	scoringLatency     prometheus.Histogram
	targetsReached     prometheus.Counter
	sequencesCompleted prometheus.Counter
	bestMatchResults   *prometheus.CounterVec
	searchLatency      prometheus.Histogram

	// Reference data
	librarySize    prometheus.Gauge
	sequenceLength prometheus.Gauge
	loaderSkipped  *prometheus.CounterVec

	// Sessions and ingestion
	activeSessions  prometheus.Gauge
	queueSize       prometheus.Gauge
	queueEnqueued   prometheus.Counter
	queueRejected   *prometheus.CounterVec
	framesDuplicate prometheus.Counter
	workerCount     prometheus.Gauge
	published       *prometheus.CounterVec

	// HTTP
	httpRequests        *prometheus.CounterVec
	httpRequestDuration *prometheus.HistogramVec

	// Errors
	errorsByComponent *prometheus.CounterVec

	// System
	systemMemoryUsage    prometheus.Gauge
	systemGoroutineCount prometheus.Gauge
}

var globalManager *Manager //nolint:gochecknoglobals // process-wide collectors

var customRegistry = prometheus.NewRegistry() //nolint:gochecknoglobals // keeps default Go collectors out

func init() { //nolint:gochecknoinits // collectors must exist before first use
	globalManager = NewManager(WithPrometheusRegistry(customRegistry))
}

// NewManager creates a Manager and registers its collectors.
func NewManager(opts ...Option) *Manager {
	m := &Manager{
		namespace:        "posematch",
		subsystem:        "core",
		histogramBuckets: prometheus.DefBuckets,
		constLabels:      map[string]string{},
		registry:         prometheus.NewRegistry(),
	}
	for _, opt := range opts {
		opt(m)
	}
	m.initializeMetrics()
	return m
}

func (m *Manager) counterOpts(name, help string) prometheus.CounterOpts {
	return prometheus.CounterOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) gaugeOpts(name, help string) prometheus.GaugeOpts {
	return prometheus.GaugeOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) histogramOpts(name, help string, buckets []float64) prometheus.HistogramOpts {
	return prometheus.HistogramOpts{
		Namespace:   m.namespace,
		Subsystem:   m.subsystem,
		Name:        name,
		Help:        help,
		Buckets:     buckets,
		ConstLabels: m.constLabels,
	}
}

func (m *Manager) initializeMetrics() { //nolint:funlen // one place for every collector
	auto := promauto.With(m.registry)

	m.framesScored = auto.NewCounterVec(
		m.counterOpts("frames_scored_total", "Frames scored against a sequence target, by outcome"),
		[]string{"outcome"},
	)
	m.scoringLatency = auto.NewHistogram(
		m.histogramOpts("scoring_latency_microseconds", "Latency of a single skeleton comparison", scoringBuckets),
	)
	m.targetsReached = auto.NewCounter(
		m.counterOpts("targets_reached_total", "Sequence targets satisfied"),
	)
	m.sequencesCompleted = auto.NewCounter(
		m.counterOpts("sequences_completed_total", "Sessions that satisfied every target of the sequence"),
	)
	m.bestMatchResults = auto.NewCounterVec(
		m.counterOpts("best_match_total", "Library searches by result"),
		[]string{"result"},
	)
	m.searchLatency = auto.NewHistogram(
		m.histogramOpts("search_latency_milliseconds", "Latency of a full library search", m.histogramBuckets),
	)

	m.librarySize = auto.NewGauge(m.gaugeOpts("library_size", "Reference skeletons in the library"))
	m.sequenceLength = auto.NewGauge(m.gaugeOpts("sequence_length", "Targets in the motion sequence"))
	m.loaderSkipped = auto.NewCounterVec(
		m.counterOpts("loader_skipped_total", "Reference files skipped while loading"),
		[]string{"source"},
	)

	m.activeSessions = auto.NewGauge(m.gaugeOpts("active_sessions", "Live matching sessions"))
	m.queueSize = auto.NewGauge(m.gaugeOpts("queue_size", "Frames waiting in ingestion queues"))
	m.queueEnqueued = auto.NewCounter(m.counterOpts("queue_enqueued_total", "Frames accepted by ingestion queues"))
	m.queueRejected = auto.NewCounterVec(
		m.counterOpts("queue_rejected_total", "Frames rejected by ingestion queues"),
		[]string{"reason"},
	)
	m.framesDuplicate = auto.NewCounter(m.counterOpts("frames_duplicate_total", "Frames dropped as duplicates"))
	m.workerCount = auto.NewGauge(m.gaugeOpts("worker_count", "Frame workers running"))
	m.published = auto.NewCounterVec(
		m.counterOpts("events_published_total", "Motion events handed to publishers"),
		[]string{"publisher", "status"},
	)

	m.httpRequests = auto.NewCounterVec(
		m.counterOpts("http_requests_total", "HTTP requests by endpoint, method and status"),
		[]string{"endpoint", "method", "status_code"},
	)
	m.httpRequestDuration = auto.NewHistogramVec(
		m.histogramOpts("http_request_duration_milliseconds", "HTTP request duration", m.histogramBuckets),
		[]string{"endpoint", "method", "status_code"},
	)

	m.errorsByComponent = auto.NewCounterVec(
		m.counterOpts("errors_total", "Errors by component and type"),
		[]string{"component", "error_type"},
	)

	m.systemMemoryUsage = auto.NewGauge(m.gaugeOpts("system_memory_usage_bytes", "Allocated heap bytes"))
	m.systemGoroutineCount = auto.NewGauge(m.gaugeOpts("system_goroutine_count", "Number of goroutines"))
}

// RecordFrameScored counts a sequence comparison with its outcome label.
func RecordFrameScored(outcome string) {
	globalManager.framesScored.WithLabelValues(outcome).Inc()
}

// RecordScoringLatency observes one comparison in microseconds.
func RecordScoringLatency(us float64) {
	globalManager.scoringLatency.Observe(us)
}

// RecordTargetReached increments the satisfied-target counter.
func RecordTargetReached() {
	globalManager.targetsReached.Inc()
}

// RecordSequenceCompleted increments the completed-sequence counter.
func RecordSequenceCompleted() {
	globalManager.sequencesCompleted.Inc()
}

// RecordBestMatch counts a library search as "match", "reject" or "none".
func RecordBestMatch(result string) {
	globalManager.bestMatchResults.WithLabelValues(result).Inc()
}

// RecordSearchLatency observes a library search in milliseconds.
func RecordSearchLatency(ms float64) {
	globalManager.searchLatency.Observe(ms)
}

// UpdateLibrarySize sets the library size gauge.
func UpdateLibrarySize(n int) {
	globalManager.librarySize.Set(float64(n))
}

// UpdateSequenceLength sets the sequence length gauge.
func UpdateSequenceLength(n int) {
	globalManager.sequenceLength.Set(float64(n))
}

// RecordLoaderSkipped counts a reference file skipped by the loader.
func RecordLoaderSkipped(source string) {
	globalManager.loaderSkipped.WithLabelValues(source).Inc()
}

// UpdateActiveSessions sets the live session gauge.
func UpdateActiveSessions(n int) {
	globalManager.activeSessions.Set(float64(n))
}

// UpdateQueueSize sets the queued frame gauge.
func UpdateQueueSize(n int) {
	globalManager.queueSize.Set(float64(n))
}

// RecordQueueEnqueue counts an accepted frame.
func RecordQueueEnqueue() {
	globalManager.queueEnqueued.Inc()
}

// RecordQueueRejected counts a rejected frame.
func RecordQueueRejected(reason string) {
	globalManager.queueRejected.WithLabelValues(reason).Inc()
}

// RecordFrameDuplicate counts a duplicate frame.
func RecordFrameDuplicate() {
	globalManager.framesDuplicate.Inc()
}

// UpdateWorkerCount sets the worker gauge.
func UpdateWorkerCount(n int) {
	globalManager.workerCount.Set(float64(n))
}

// RecordPublished counts an event handed to a publisher.
func RecordPublished(publisher, status string) {
	globalManager.published.WithLabelValues(publisher, status).Inc()
}

// RecordHTTPRequest records an HTTP request.
func RecordHTTPRequest(endpoint, method, statusCode string) {
	globalManager.httpRequests.WithLabelValues(endpoint, method, statusCode).Inc()
}

// RecordHTTPRequestDuration records HTTP request duration in milliseconds.
func RecordHTTPRequestDuration(endpoint, method, statusCode string, ms float64) {
	globalManager.httpRequestDuration.WithLabelValues(endpoint, method, statusCode).Observe(ms)
}

// RecordErrorByComponent counts an error.
func RecordErrorByComponent(component, errorType string) {
	globalManager.errorsByComponent.WithLabelValues(component, errorType).Inc()
}

// UpdateSystemMemoryUsage sets the heap gauge.
func UpdateSystemMemoryUsage(bytes uint64) {
	globalManager.systemMemoryUsage.Set(float64(bytes))
}

// UpdateSystemGoroutineCount sets the goroutine gauge.
func UpdateSystemGoroutineCount(n int) {
	globalManager.systemGoroutineCount.Set(float64(n))
}

// GetRegistry returns the registry the global collectors live on.
func GetRegistry() *prometheus.Registry {
	return customRegistry
}
