package observability

import (
	"net/http"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Metrics groups all Prometheus instruments used by the service.
// A nil *Metrics is valid and records nothing.
type Metrics struct {
	ChatRequests     *prometheus.CounterVec
	UpstreamErrors   *prometheus.CounterVec
	UpstreamLatency  prometheus.Histogram
	ActiveSessions   prometheus.Gauge
	RateLimitClients prometheus.Gauge
	JanitorEvictions *prometheus.CounterVec

	latency *latencyWindow
}

func NewMetrics(namespace string) *Metrics {
	return &Metrics{
		ChatRequests: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "chat_requests_total",
			Help:      "Chat requests by outcome.",
		}, []string{"outcome"}),
		UpstreamErrors: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "upstream_errors_total",
			Help:      "Upstream completion failures by kind.",
		}, []string{"kind"}),
		UpstreamLatency: promauto.NewHistogram(prometheus.HistogramOpts{
			Namespace: namespace,
			Name:      "upstream_latency_ms",
			Help:      "Upstream completion call latency in milliseconds.",
			Buckets:   []float64{100, 250, 500, 1000, 2000, 4000, 8000, 16000, 30000},
		}),
		ActiveSessions: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "active_sessions",
			Help:      "Conversations held in memory.",
		}),
		RateLimitClients: promauto.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "rate_limit_clients",
			Help:      "Client identifiers tracked by the rate limiter.",
		}),
		JanitorEvictions: promauto.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "janitor_evictions_total",
			Help:      "Idle entries removed by the janitor, by table.",
		}, []string{"table"}),
		latency: newLatencyWindow(256),
	}
}

func (m *Metrics) ObserveRequest(outcome string) {
	if m == nil {
		return
	}
	m.ChatRequests.WithLabelValues(outcome).Inc()
	m.latency.ObserveIndicator(outcome)
}

func (m *Metrics) ObserveUpstream(d time.Duration, errKind string) {
	if m == nil {
		return
	}
	ms := float64(d.Milliseconds())
	m.UpstreamLatency.Observe(ms)
	m.latency.Observe(StageUpstream, ms)
	if errKind != "" {
		m.UpstreamErrors.WithLabelValues(errKind).Inc()
	}
}

func (m *Metrics) ObserveRequestTotal(d time.Duration) {
	if m == nil {
		return
	}
	m.latency.Observe(StageRequestTotal, float64(d.Milliseconds()))
}

func (m *Metrics) SetTableSizes(sessions, clients int) {
	if m == nil {
		return
	}
	m.ActiveSessions.Set(float64(sessions))
	m.RateLimitClients.Set(float64(clients))
}

func (m *Metrics) ObserveEvictions(table string, n int) {
	if m == nil || n <= 0 {
		return
	}
	m.JanitorEvictions.WithLabelValues(table).Add(float64(n))
}

func (m *Metrics) SnapshotLatency() LatencySnapshot {
	if m == nil {
		return LatencySnapshot{GeneratedAt: time.Now().UTC()}
	}
	return m.latency.Snapshot()
}

func MetricsHandler() http.Handler {
	return promhttp.Handler()
}
