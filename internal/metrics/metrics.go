package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/fx"
)

// Metrics holds the service's prometheus instruments.
type Metrics struct {
	WebhookEvents       *prometheus.CounterVec
	WSConnections       prometheus.Gauge
	WSMessages          *prometheus.CounterVec
	BroadcastsDelivered prometheus.Counter
}

func New(reg *prometheus.Registry) *Metrics {
	m := &Metrics{
		WebhookEvents: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "webhook_events_total",
			Help: "Webhook deliveries by provider, event type and outcome.",
		}, []string{"provider", "event_type", "status"}),
		WSConnections: prometheus.NewGauge(prometheus.GaugeOpts{
			Name: "ws_connections_active",
			Help: "Currently registered realtime connections.",
		}),
		WSMessages: prometheus.NewCounterVec(prometheus.CounterOpts{
			Name: "ws_messages_total",
			Help: "Inbound realtime commands by type.",
		}, []string{"type"}),
		BroadcastsDelivered: prometheus.NewCounter(prometheus.CounterOpts{
			Name: "ws_broadcasts_delivered_total",
			Help: "Outbound realtime events successfully enqueued.",
		}),
	}

	reg.MustRegister(
		m.WebhookEvents,
		m.WSConnections,
		m.WSMessages,
		m.BroadcastsDelivered,
	)
	return m
}

func NewRegistry() *prometheus.Registry {
	reg := prometheus.NewRegistry()
	reg.MustRegister(
		collectors.NewGoCollector(),
		collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}),
	)
	return reg
}

var Module = fx.Module("metrics",
	fx.Provide(NewRegistry),
	fx.Provide(New),
)
