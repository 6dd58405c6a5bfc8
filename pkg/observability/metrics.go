package observability

import (
	"net/http"
	"runtime"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

var (
	// Bus metrics
	eventsPublishedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_events_published_total",
			Help: "Total number of events published on the bus",
		},
		[]string{"kind"},
	)

	eventsDeliveredTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_events_delivered_total",
			Help: "Total number of event deliveries to agent mailboxes",
		},
		[]string{"kind"},
	)

	eventsDroppedTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_events_dropped_total",
			Help: "Total number of events dropped on full agent mailboxes",
		},
		[]string{"kind"},
	)

	handlerFailuresTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_handler_failures_total",
			Help: "Total number of agent event handler failures",
		},
		[]string{"agent_kind"},
	)

	// Direct messaging metrics
	directMessagesTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_direct_messages_total",
			Help: "Total number of direct messages sent to agents",
		},
		[]string{"agent_kind", "status"},
	)

	directMessageDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortexos_direct_message_duration_seconds",
			Help:    "Direct message handling duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"agent_kind"},
	)

	// Inference metrics
	inferenceRequestsTotal = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Name: "cortexos_inference_requests_total",
			Help: "Total number of inference backend calls",
		},
		[]string{"backend", "status"},
	)

	inferenceDuration = prometheus.NewHistogramVec(
		prometheus.HistogramOpts{
			Name:    "cortexos_inference_duration_seconds",
			Help:    "Inference backend call duration in seconds",
			Buckets: prometheus.DefBuckets,
		},
		[]string{"backend"},
	)

	// Registry metrics
	agentsByState = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "cortexos_agents",
			Help: "Number of registered agents by lifecycle state",
		},
		[]string{"state"},
	)

	// Discovery metrics
	discoveryBroadcastsTotal = prometheus.NewCounter(
		prometheus.CounterOpts{
			Name: "cortexos_discovery_broadcasts_total",
			Help: "Total number of discovery announcements requested",
		},
	)

	peersKnown = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexos_peers",
			Help: "Number of known discovered peers",
		},
	)

	// System metrics
	goroutines = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexos_goroutines",
			Help: "Number of goroutines",
		},
	)

	memoryUsage = prometheus.NewGauge(
		prometheus.GaugeOpts{
			Name: "cortexos_memory_usage_bytes",
			Help: "Heap memory in use, in bytes",
		},
	)

	initOnce sync.Once
)

// InitMetrics registers all runtime metrics with the default registerer.
func InitMetrics() {
	initOnce.Do(func() {
		prometheus.MustRegister(
			eventsPublishedTotal,
			eventsDeliveredTotal,
			eventsDroppedTotal,
			handlerFailuresTotal,
			directMessagesTotal,
			directMessageDuration,
			inferenceRequestsTotal,
			inferenceDuration,
			agentsByState,
			discoveryBroadcastsTotal,
			peersKnown,
			goroutines,
			memoryUsage,
		)
	})
}

// MetricsHandler returns an HTTP handler for Prometheus metrics.
func MetricsHandler() http.Handler {
	return promhttp.Handler()
}

// RecordPublish records one published event and its per-agent delivery
// outcome.
func RecordPublish(kind string, delivered, dropped int) {
	eventsPublishedTotal.WithLabelValues(kind).Inc()
	eventsDeliveredTotal.WithLabelValues(kind).Add(float64(delivered))
	eventsDroppedTotal.WithLabelValues(kind).Add(float64(dropped))
}

// RecordHandlerFailure records a failed event handler invocation.
func RecordHandlerFailure(agentKind string) {
	handlerFailuresTotal.WithLabelValues(agentKind).Inc()
}

// RecordDirectMessage records a direct message round trip.
func RecordDirectMessage(agentKind, status string, duration time.Duration) {
	directMessagesTotal.WithLabelValues(agentKind, status).Inc()
	directMessageDuration.WithLabelValues(agentKind).Observe(duration.Seconds())
}

// RecordInference records an inference backend call.
func RecordInference(backend, status string, duration time.Duration) {
	inferenceRequestsTotal.WithLabelValues(backend, status).Inc()
	inferenceDuration.WithLabelValues(backend).Observe(duration.Seconds())
}

// SetAgents sets the agent gauge for one lifecycle state.
func SetAgents(state string, count int) {
	agentsByState.WithLabelValues(state).Set(float64(count))
}

// RecordDiscoveryBroadcast records one requested discovery announcement.
func RecordDiscoveryBroadcast() {
	discoveryBroadcastsTotal.Inc()
}

// SetPeers sets the known-peers gauge.
func SetPeers(count int) {
	peersKnown.Set(float64(count))
}

// SampleSystem refreshes the process-level gauges.
func SampleSystem() {
	var m runtime.MemStats
	runtime.ReadMemStats(&m)
	goroutines.Set(float64(runtime.NumGoroutine()))
	memoryUsage.Set(float64(m.HeapInuse))
}
