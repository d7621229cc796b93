package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "amen_live"

// NewRegistry creates a Prometheus registry with Go runtime and process collectors.
func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(collectors.NewGoCollector())
	reg.MustRegister(collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	return reg
}

// Handler returns an http.Handler that serves Prometheus metrics.
func Handler(reg *prometheus.Registry) http.Handler {
	return promhttp.HandlerFor(reg, promhttp.HandlerOpts{})
}

// Metrics holds every collector the hub reports. All methods are safe on a
// nil receiver so components can run without metrics in tests.
type Metrics struct {
	ActiveConnections   prometheus.Gauge
	ConnectionsTotal    prometheus.Counter
	SlowClientsEvicted  prometheus.Counter
	InboundMessages     *prometheus.CounterVec
	RateLimited         prometheus.Counter
	OutboundMessages    prometheus.Counter
	ActiveStreams       prometheus.Gauge
	ActiveViewers       prometheus.Gauge
	JoinsRejected       prometheus.Counter
	TranslationRequests *prometheus.CounterVec
	StoreErrors         *prometheus.CounterVec
}

// New creates and registers the hub metrics on reg.
func New(reg prometheus.Registerer) *Metrics {
	m := &Metrics{
		ActiveConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "active_connections",
			Help:      "Number of open WebSocket connections.",
		}),
		ConnectionsTotal: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "connections_total",
			Help:      "Total number of accepted WebSocket connections.",
		}),
		SlowClientsEvicted: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "slow_clients_evicted_total",
			Help:      "Connections closed because their send buffer was full.",
		}),
		InboundMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "inbound_messages_total",
			Help:      "Inbound messages by type.",
		}, []string{"type"}),
		RateLimited: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "rate_limited_messages_total",
			Help:      "Inbound messages dropped by the per-connection rate limit.",
		}),
		OutboundMessages: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "websocket",
			Name:      "outbound_messages_total",
			Help:      "Messages queued to connections.",
		}),
		ActiveStreams: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "active_streams",
			Help:      "Number of live streams.",
		}),
		ActiveViewers: prometheus.NewGauge(prometheus.GaugeOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "active_viewers",
			Help:      "Number of viewers across all live streams.",
		}),
		JoinsRejected: prometheus.NewCounter(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "live",
			Name:      "joins_rejected_total",
			Help:      "live_join requests rejected because the stream was full.",
		}),
		TranslationRequests: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "chat",
			Name:      "translation_requests_total",
			Help:      "Translation attempts by result (ok, fallback, skipped).",
		}, []string{"result"}),
		StoreErrors: prometheus.NewCounterVec(prometheus.CounterOpts{
			Namespace: namespace,
			Subsystem: "store",
			Name:      "errors_total",
			Help:      "Store call failures by operation.",
		}, []string{"operation"}),
	}

	reg.MustRegister(
		m.ActiveConnections,
		m.ConnectionsTotal,
		m.SlowClientsEvicted,
		m.InboundMessages,
		m.RateLimited,
		m.OutboundMessages,
		m.ActiveStreams,
		m.ActiveViewers,
		m.JoinsRejected,
		m.TranslationRequests,
		m.StoreErrors,
	)
	return m
}

func (m *Metrics) ConnectionOpened() {
	if m == nil {
		return
	}
	m.ActiveConnections.Inc()
	m.ConnectionsTotal.Inc()
}

func (m *Metrics) ConnectionClosed() {
	if m == nil {
		return
	}
	m.ActiveConnections.Dec()
}

func (m *Metrics) ClientEvicted() {
	if m == nil {
		return
	}
	m.SlowClientsEvicted.Inc()
}

func (m *Metrics) MessageReceived(msgType string) {
	if m == nil {
		return
	}
	m.InboundMessages.WithLabelValues(msgType).Inc()
}

func (m *Metrics) MessageRateLimited() {
	if m == nil {
		return
	}
	m.RateLimited.Inc()
}

func (m *Metrics) MessagesQueued(n int) {
	if m == nil || n == 0 {
		return
	}
	m.OutboundMessages.Add(float64(n))
}

// SetLiveTotals publishes the current stream and viewer totals.
func (m *Metrics) SetLiveTotals(streams, viewers int) {
	if m == nil {
		return
	}
	m.ActiveStreams.Set(float64(streams))
	m.ActiveViewers.Set(float64(viewers))
}

func (m *Metrics) JoinRejected() {
	if m == nil {
		return
	}
	m.JoinsRejected.Inc()
}

func (m *Metrics) Translation(result string) {
	if m == nil {
		return
	}
	m.TranslationRequests.WithLabelValues(result).Inc()
}

func (m *Metrics) StoreError(operation string) {
	if m == nil {
		return
	}
	m.StoreErrors.WithLabelValues(operation).Inc()
}
