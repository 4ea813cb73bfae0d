package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/ent0n29/gearhead/internal/convo"
)

// Metrics groups all Prometheus instruments used by the service.
type Metrics struct {
	TrackedUsers        prometheus.Gauge
	StoredMessages      prometheus.Gauge
	ActiveConversations prometheus.Gauge
	Evictions           *prometheus.CounterVec
	ChatRequests        *prometheus.CounterVec
	WSMessages          *prometheus.CounterVec
	CompletionErrors    *prometheus.CounterVec
	CompletionLatency   prometheus.Histogram
	ArchiveErrors       prometheus.Counter

	stages *stageWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		TrackedUsers: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_tracked_users",
			Help:      "Users with a conversation record, including expired ones not yet swept.",
		}),
		StoredMessages: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_stored_messages",
			Help:      "Messages held across all conversation records.",
		}),
		ActiveConversations: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "memory_active_conversations",
			Help:      "Conversation records that have not expired.",
		}),
		Evictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "memory_evictions_total",
			Help:      "Conversation records removed, by reason.",
		}, []string{"reason"}),
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Inbound chat messages by command.",
		}, []string{"command"}),
		WSMessages: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "ws_messages_total",
			Help:      "WebSocket messages by direction and type.",
		}, []string{"direction", "type"}),
		CompletionErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "completion_errors_total",
			Help:      "Completion provider errors by backend.",
		}, []string{"backend"}),
		CompletionLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "completion_latency_ms",
			Help:      "Completion round trip latency in milliseconds.",
			Buckets:   []float64{250, 500, 1000, 2000, 4000, 8000, 16000, 32000},
		}),
		ArchiveErrors: promauto.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "archive_errors_total",
			Help:      "Failed transcript archive writes.",
		}),
		stages: newStageWindow(256),
	}
}

// ObserveMemory copies a store snapshot into the memory gauges.
func (m *Metrics) ObserveMemory(st convo.Stats) {
	m.TrackedUsers.Set(float64(st.TotalUsers))
	m.StoredMessages.Set(float64(st.TotalMessages))
	m.ActiveConversations.Set(float64(st.ActiveConversations))
}

func (m *Metrics) ObserveCompletion(d time.Duration) {
	m.CompletionLatency.Observe(float64(d.Milliseconds()))
	m.stages.Observe(StageCompletion, d)
}

func (m *Metrics) ObserveStage(stage string, d time.Duration) {
	m.stages.Observe(stage, d)
}

func (m *Metrics) MarkIndicator(name string) {
	m.stages.Mark(name)
}

func (m *Metrics) SnapshotStages() StageSnapshot {
	return m.stages.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
