package realtime

import (
	"log/slog"
	"sync"

	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// Broadcaster fans a typed event out to every live connection matching
// its scope. Enqueue is non-blocking: a full outbound buffer means the
// event is dropped for that connection and counted, never that the
// publisher stalls. The resolve+dispatch section is serialized by a
// mutex so events published to the same scope arrive in publish order.
type Broadcaster struct {
	registry *Registry
	clock    clockwork.Clock

	mu sync.Mutex
}

// NewBroadcaster creates a broadcaster over the given registry.
func NewBroadcaster(registry *Registry, clock clockwork.Clock) *Broadcaster {
	return &Broadcaster{registry: registry, clock: clock}
}

// Publish delivers the event to every matching connection and returns
// the number of successful enqueues. The registry snapshot may be stale
// by the time frames reach the wire; a connection dying in between is a
// harmless no-op, not an error.
func (b *Broadcaster) Publish(event Event) int {
	if err := event.Scope.Validate(); err != nil {
		slog.Warn("Dropping event with invalid scope", "type", event.Type, "error", err)
		return 0
	}
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.clock.Now()
	}

	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode event", "type", event.Type, "error", err)
		return 0
	}

	b.mu.Lock()
	defer b.mu.Unlock()

	metrics.EventsPublishedTotal.WithLabelValues(event.Type, string(event.Scope.Kind)).Inc()

	delivered := 0
	for _, conn := range b.registry.resolve(event.Scope) {
		if conn.enqueue(data) {
			delivered++
		} else {
			metrics.EventsDroppedTotal.Inc()
			slog.Debug("Dropped event for slow or closing connection",
				"type", event.Type,
				"connection_id", conn.ID.String(),
				"principal", conn.Principal,
			)
		}
	}
	return delivered
}

// sendTo enqueues an event onto a single connection, bypassing scope
// resolution. Used for the initial per-connection "connected" event.
func (b *Broadcaster) sendTo(conn *Connection, event Event) bool {
	if event.CreatedAt.IsZero() {
		event.CreatedAt = b.clock.Now()
	}
	data, err := event.Encode()
	if err != nil {
		slog.Error("Failed to encode event", "type", event.Type, "error", err)
		return false
	}
	return conn.enqueue(data)
}
