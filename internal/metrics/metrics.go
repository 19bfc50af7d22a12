// Package metrics defines the Prometheus metrics exported by the
// realtime core. All metrics are registered via promauto at package
// load; handlers and components increment them directly.
package metrics

import (
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
)

// Connection metrics
var (
	// ConnectionsCurrent tracks open long-lived connections by principal kind.
	ConnectionsCurrent = promauto.NewGaugeVec(
		prometheus.GaugeOpts{
			Name: "realtime_connections_current",
			Help: "Open long-lived connections by kind (admin/display)",
		},
		[]string{"kind"},
	)

	// ConnectionsRejectedTotal counts connections refused at capacity.
	ConnectionsRejectedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_connections_rejected_total",
			Help: "Connections rejected because the instance was at capacity",
		},
	)

	// DisconnectsTotal counts connection teardowns by detection path.
	DisconnectsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_disconnects_total",
			Help: "Connection teardowns by reason (write_error/connection_lost/client_request/shutdown)",
		},
		[]string{"reason"},
	)

	// PingFailuresTotal counts failed liveness ping writes.
	PingFailuresTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_ping_failures_total",
			Help: "Liveness ping writes that failed",
		},
	)
)

// Broadcast metrics
var (
	// EventsPublishedTotal counts published events by type and scope kind.
	EventsPublishedTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_events_published_total",
			Help: "Events accepted for fan-out by type and scope kind",
		},
		[]string{"type", "scope"},
	)

	// EventsDeliveredTotal counts event frames written to clients.
	EventsDeliveredTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_events_delivered_total",
			Help: "Event frames successfully written to client connections",
		},
	)

	// EventsDroppedTotal counts events dropped for slow or closing connections.
	EventsDroppedTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_events_dropped_total",
			Help: "Events dropped because a connection's outbound buffer was full or closing",
		},
	)
)

// Presence metrics
var (
	// HeartbeatsTotal counts received display heartbeats.
	HeartbeatsTotal = promauto.NewCounter(
		prometheus.CounterOpts{
			Name: "realtime_heartbeats_total",
			Help: "Display heartbeats received",
		},
	)

	// KnownDisplays tracks displays with at least one recorded heartbeat.
	KnownDisplays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_known_displays",
			Help: "Displays that have ever sent a heartbeat",
		},
	)

	// OnlineDisplays tracks displays currently within their online window.
	OnlineDisplays = promauto.NewGauge(
		prometheus.GaugeOpts{
			Name: "realtime_online_displays",
			Help: "Displays whose last heartbeat is within three intervals",
		},
	)
)

// Presence store metrics
var (
	// PresenceStoreErrorsTotal counts failed presence persistence operations.
	PresenceStoreErrorsTotal = promauto.NewCounterVec(
		prometheus.CounterOpts{
			Name: "realtime_presence_store_errors_total",
			Help: "Failed presence store operations by operation",
		},
		[]string{"operation"},
	)
)
