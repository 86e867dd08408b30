package observ

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Metrics is the hub's prometheus instrumentation. All collectors are
// registered against the registry passed to NewMetrics so tests can use an
// isolated registry.
type Metrics struct {
	// ActiveConnections tracks live websocket connections by role.
	ActiveConnections *prometheus.GaugeVec

	// EventsRouted counts inbound client events.
	// Labels: event, outcome (ok|error).
	EventsRouted *prometheus.CounterVec

	// MessagesDelivered counts room fan-out deliveries.
	// Labels: destination (live|queued).
	MessagesDelivered *prometheus.CounterVec

	// AlertsOpen tracks open crisis alerts by status.
	AlertsOpen *prometheus.GaugeVec

	// Escalations counts escalation timer fires that produced a broadcast.
	Escalations prometheus.Counter

	// RateLimited counts denials by category.
	RateLimited *prometheus.CounterVec

	// QueueDepth tracks the total number of queued offline messages.
	QueueDepth prometheus.Gauge
}

func NewMetrics(reg prometheus.Registerer) *Metrics {
	factory := promauto.With(reg)

	return &Metrics{
		ActiveConnections: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "haven_active_connections",
			Help: "Live websocket connections by role.",
		}, []string{"role"}),
		EventsRouted: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_events_routed_total",
			Help: "Inbound client events by type and outcome.",
		}, []string{"event", "outcome"}),
		MessagesDelivered: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_messages_delivered_total",
			Help: "Room message deliveries, live fan-out vs offline queue.",
		}, []string{"destination"}),
		AlertsOpen: factory.NewGaugeVec(prometheus.GaugeOpts{
			Name: "haven_crisis_alerts_open",
			Help: "Open crisis alerts by status.",
		}, []string{"status"}),
		Escalations: factory.NewCounter(prometheus.CounterOpts{
			Name: "haven_crisis_escalations_total",
			Help: "Escalation broadcasts emitted.",
		}),
		RateLimited: factory.NewCounterVec(prometheus.CounterOpts{
			Name: "haven_rate_limited_total",
			Help: "Rate limit denials by action category.",
		}, []string{"category"}),
		QueueDepth: factory.NewGauge(prometheus.GaugeOpts{
			Name: "haven_offline_queue_depth",
			Help: "Messages currently held for offline users.",
		}),
	}
}
