package metrics

import (
	"net/http"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

const namespace = "graylogic_sim"

var (
	// ActorEvents counts events processed by agent and group loops.
	// Labels: kind (led, sensor, blind, group), event (message, tick, call).
	ActorEvents = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "actor_events_total",
			Help:      "Events processed by agent and group loops.",
		},
		[]string{"kind", "event"},
	)

	// InboxDropped counts messages dropped because a mailbox was full.
	InboxDropped = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "inbox_dropped_total",
			Help:      "Inbound messages dropped at a full mailbox.",
		},
		[]string{"kind"},
	)

	// HandlerRejections counts inbound messages that left state unchanged.
	// Labels: kind, class (malformed, invalid, mode_mismatch, unknown_field, panic).
	HandlerRejections = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "handler_rejections_total",
			Help:      "Inbound messages rejected by a handler, by class.",
		},
		[]string{"kind", "class"},
	)

	// Published counts messages published by agents and groups.
	Published = prometheus.NewCounterVec(
		prometheus.CounterOpts{
			Namespace: namespace,
			Name:      "messages_published_total",
			Help:      "Messages published onto the bus.",
		},
		[]string{"kind"},
	)

	// Nodes tracks running agents and groups.
	Nodes = prometheus.NewGaugeVec(
		prometheus.GaugeOpts{
			Namespace: namespace,
			Name:      "nodes",
			Help:      "Running agents and groups by kind.",
		},
		[]string{"kind"},
	)
)

func init() {
	prometheus.MustRegister(ActorEvents, InboxDropped, HandlerRejections, Published, Nodes)
}

// Handler serves the default registry in the Prometheus exposition format.
func Handler() http.Handler {
	return promhttp.Handler()
}

// CounterValue reads the current value of one labelled series from the
// default gatherer. It returns 0 when the series has not been created yet.
func CounterValue(name string, labels map[string]string) float64 {
	families, err := prometheus.DefaultGatherer.Gather()
	if err != nil {
		return 0
	}
	for _, mf := range families {
		if mf.GetName() != name {
			continue
		}
	series:
		for _, m := range mf.GetMetric() {
			for _, lp := range m.GetLabel() {
				if want, ok := labels[lp.GetName()]; ok && want != lp.GetValue() {
					continue series
				}
			}
			if c := m.GetCounter(); c != nil {
				return c.GetValue()
			}
			if g := m.GetGauge(); g != nil {
				return g.GetValue()
			}
		}
	}
	return 0
}
