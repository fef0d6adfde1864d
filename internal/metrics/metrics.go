package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

var (
	// Connection metrics
	ActiveConnections = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "classchat_active_connections",
			Help: "Currently admitted websocket connections",
		},
	)

	AuthFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classchat_auth_failures_total",
			Help: "Connection attempts refused by the identity verifier",
		},
	)

	// Protocol metrics
	EventsReceived = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classchat_events_received_total",
			Help: "Inbound events by name",
		},
		[]string{"event"},
	)

	InvalidEvents = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classchat_invalid_events_total",
			Help: "Inbound frames dropped by validation",
		},
	)

	MessagesPersisted = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classchat_messages_persisted_total",
			Help: "Messages written to the store",
		},
		[]string{"kind"}, // "group" or "direct"
	)

	PersistenceFailures = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "classchat_persistence_failures_total",
			Help: "Store writes that failed",
		},
		[]string{"operation"}, // "send" or "mark_read"
	)

	// Delivery metrics
	OutboundDropped = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classchat_outbound_dropped_total",
			Help: "Queued events discarded because a connection's outbound queue was full",
		},
	)

	DeliveryFailures = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "classchat_delivery_failures_total",
			Help: "Fan-out targets that could not accept an event",
		},
	)

	// Infrastructure metrics
	StoreLatency = promauto.NewHistogram(
		prometheus.HistogramOpts{
			Name:    "classchat_store_latency_seconds",
			Help:    "Message store write latency",
			Buckets: []float64{.001, .005, .01, .025, .05, .1, .25, .5, 1},
		},
	)
)
