package realtime

import (
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// EventTypeConnected is sent to every new connection as its first event,
// carrying the assigned connection id the client needs for an explicit
// disconnect later.
const EventTypeConnected = "connected"

// Manager owns the open/close lifecycle of connections. Three disconnect
// detection paths (write/ping failure, explicit client notification,
// shutdown) all funnel into one idempotent teardown, ordered
// unregister-then-release so the registry never points at a closed
// transport.
type Manager struct {
	registry    *Registry
	broadcaster *Broadcaster
	clock       clockwork.Clock

	pingInterval time.Duration
	bufferSize   int
}

// NewManager creates a lifecycle manager. pingInterval controls the
// per-connection liveness ping cadence; bufferSize is the outbound
// channel capacity per connection.
func NewManager(registry *Registry, broadcaster *Broadcaster, clock clockwork.Clock, pingInterval time.Duration, bufferSize int) *Manager {
	return &Manager{
		registry:     registry,
		broadcaster:  broadcaster,
		clock:        clock,
		pingInterval: pingInterval,
		bufferSize:   bufferSize,
	}
}

// Open registers a new connection over the given transport, sends the
// "connected" event with its assigned id, and starts its writer loop.
func (m *Manager) Open(transport Transport, kind ConnectionKind, principal string) *Connection {
	conn := newConnection(transport, kind, principal, m.clock, m.pingInterval, m.bufferSize, m.onWriterDead)
	m.registry.Register(conn)

	// Enqueued before the writer drains anything else, so it is the
	// first event the client sees.
	m.broadcaster.sendTo(conn, Event{
		Type:    EventTypeConnected,
		Payload: map[string]string{"connection_id": conn.ID.String()},
	})

	conn.start()
	slog.Info("Connection opened",
		"connection_id", conn.ID.String(),
		"kind", kind,
		"principal", principal,
	)
	return conn
}

// NotifyDisconnect handles an explicit client disconnect notification.
// Unknown or already-removed ids are indistinguishable from "already
// gone" and are treated as success.
func (m *Manager) NotifyDisconnect(id uuid.UUID) {
	conn, ok := m.registry.Get(id)
	if !ok {
		slog.Debug("Disconnect notice for unknown connection", "connection_id", id.String())
		return
	}
	m.teardown(conn, ReasonClientRequest)
}

// Disconnect tears down a connection observed dead by its read path
// (EOF, reset, missed pong deadline). Safe to call for a connection that
// another path already reclaimed.
func (m *Manager) Disconnect(conn *Connection, reason DisconnectReason) {
	m.teardown(conn, reason)
}

// Shutdown tears down every registered connection. Used on process exit.
func (m *Manager) Shutdown() {
	conns := m.registry.ListAll()
	slog.Info("Closing all connections", "count", len(conns))
	for _, conn := range conns {
		m.teardown(conn, ReasonShutdown)
	}
}

// onWriterDead runs on the connection's own writer goroutine after a
// write or ping failure, once the writer has exited.
func (m *Manager) onWriterDead(conn *Connection, reason DisconnectReason) {
	m.teardown(conn, reason)
}

// teardown is the single reclamation path. Unregister is idempotent, so
// whichever detection path gets here first does the real work and every
// later call is a no-op. Failure of one connection never touches any
// other.
func (m *Manager) teardown(conn *Connection, reason DisconnectReason) {
	if !m.registry.Unregister(conn.ID) {
		return
	}
	conn.release(reason)

	metrics.DisconnectsTotal.WithLabelValues(string(reason)).Inc()
	slog.Info("Connection closed",
		"connection_id", conn.ID.String(),
		"kind", conn.Kind,
		"principal", conn.Principal,
		"reason", reason,
	)
}
