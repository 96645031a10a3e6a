package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Query metrics
	QueriesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_queries_total",
			Help: "Total number of queries processed",
		},
		[]string{"status"},
	)

	QueryDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualmind_query_duration_seconds",
			Help:    "End-to-end query processing duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Planner client metrics
	PlannerRequestsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_planner_requests_total",
			Help: "Total number of requests to the planner service",
		},
		[]string{"status"},
	)

	PlannerRequestDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualmind_planner_request_duration_seconds",
			Help:    "Planner request duration in seconds",
			Buckets: []float64{0.1, 0.5, 1, 2, 5, 10, 30, 60},
		},
	)

	// Synthesis metrics
	SynthesisDuration = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualmind_synthesis_duration_seconds",
			Help:    "Answer synthesis duration in seconds",
			Buckets: []float64{0.0001, 0.001, 0.01, 0.1, 1},
		},
	)

	SourcesConsulted = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "dualmind_sources_consulted",
			Help:    "Number of successful tool results per query",
			Buckets: []float64{0, 1, 2, 3, 4, 5, 8, 12},
		},
	)

	SynthesisStrategies = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_synthesis_strategy_total",
			Help: "Synthesis runs by composition strategy",
		},
		[]string{"strategy"},
	)

	// Streaming metrics
	StreamSubscribers = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dualmind_stream_subscribers",
			Help: "Number of active SSE and WebSocket subscribers",
		},
	)

	StreamEventsDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_stream_events_dropped_total",
			Help: "Total number of events dropped for slow subscribers",
		},
	)

	// Session metrics
	SessionsCreated = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_sessions_created_total",
			Help: "Total number of sessions created",
		},
	)

	SessionCacheHits = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_session_cache_hits_total",
			Help: "Total number of session cache hits",
		},
	)

	SessionCacheMisses = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_session_cache_misses_total",
			Help: "Total number of session cache misses",
		},
	)

	SessionCacheSize = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dualmind_session_cache_size",
			Help: "Current number of sessions in the local cache",
		},
	)

	SessionCacheEvictions = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_session_cache_evictions_total",
			Help: "Total number of sessions evicted from the local cache",
		},
	)

	// History store metrics
	HistoryQueueDepth = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "dualmind_history_queue_depth",
			Help: "Number of history records waiting to be written",
		},
	)

	HistoryWritesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_history_writes_total",
			Help: "Total number of history write attempts",
		},
		[]string{"status"},
	)

	HistoryWritesDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "dualmind_history_writes_dropped_total",
			Help: "Total number of history records dropped on a full queue",
		},
	)

	// HTTP metrics
	RateLimitRejections = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_rate_limit_rejections_total",
			Help: "Total number of requests rejected by rate limiting",
		},
		[]string{"backend"},
	)

	PDFParsesTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_pdf_parses_total",
			Help: "Total number of PDF parse requests",
		},
		[]string{"status"},
	)

	// Circuit breaker metrics
	BreakerState = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "dualmind_circuit_breaker_state",
			Help: "Circuit breaker state (0=closed, 1=half-open, 2=open)",
		},
		[]string{"name"},
	)

	BreakerRequests = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "dualmind_circuit_breaker_requests_total",
			Help: "Total number of requests through circuit breakers",
		},
		[]string{"name", "outcome"},
	)
)

// RecordQuery records the outcome and duration of one query.
func RecordQuery(status string, durationSeconds float64) {
	QueriesTotal.WithLabelValues(status).Inc()
	QueryDuration.Observe(durationSeconds)
}

// RecordPlannerRequest records one round trip to the planner service.
func RecordPlannerRequest(status string, durationSeconds float64) {
	PlannerRequestsTotal.WithLabelValues(status).Inc()
	PlannerRequestDuration.Observe(durationSeconds)
}

// RecordSynthesis records synthesis duration, how many sources fed it,
// and which composition strategy ran.
func RecordSynthesis(durationSeconds float64, sources int, strategy string) {
	SynthesisDuration.Observe(durationSeconds)
	SourcesConsulted.Observe(float64(sources))
	SynthesisStrategies.WithLabelValues(strategy).Inc()
}
