package consumer

import (
	"github.com/prometheus/client_golang/prometheus"
)

type Metrics struct {
	MessagesHandled *prometheus.CounterVec
	MessagesDropped *prometheus.CounterVec
}

func NewMetrics(registry *prometheus.Registry) *Metrics {
	m := &Metrics{
		MessagesHandled: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_messages_handled_total",
				Help: "Messages routed to a handler, by topic, kind and result.",
			},
			[]string{"topic", "kind", "result"},
		),
		MessagesDropped: prometheus.NewCounterVec(
			prometheus.CounterOpts{
				Name: "broker_messages_dropped_total",
				Help: "Messages dropped before dispatch, by topic and reason.",
			},
			[]string{"topic", "reason"},
		),
	}
	registry.MustRegister(m.MessagesHandled, m.MessagesDropped)
	return m
}

func (m *Metrics) IncHandled(topic, kind, result string) {
	if m == nil {
		return
	}
	m.MessagesHandled.WithLabelValues(topic, kind, result).Inc()
}

func (m *Metrics) IncDropped(topic, reason string) {
	if m == nil {
		return
	}
	m.MessagesDropped.WithLabelValues(topic, reason).Inc()
}
