package realtime

import (
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// Transport is the write side of one long-lived client connection. All
// writes happen on the connection's own writer goroutine; implementations
// do not need to be safe for concurrent writers.
type Transport interface {
	// WriteEvent sends an encoded event frame to the client.
	WriteEvent(data []byte) error
	// Ping sends a lightweight liveness probe.
	Ping() error
	// Close releases the underlying network resource. reason is best
	// effort and may be sent to the client as a close frame.
	Close(reason string) error
}

// DisconnectReason tags which detection path tore a connection down.
type DisconnectReason string

const (
	// ReasonWriteError covers broken-pipe style failures on event or
	// ping writes.
	ReasonWriteError DisconnectReason = "write_error"
	// ReasonConnectionLost covers read-side failures: EOF, reset, or a
	// missed pong deadline.
	ReasonConnectionLost DisconnectReason = "connection_lost"
	// ReasonClientRequest is an explicit disconnect notification carrying
	// a previously issued connection id.
	ReasonClientRequest DisconnectReason = "client_request"
	// ReasonShutdown is administrative teardown of every connection.
	ReasonShutdown DisconnectReason = "shutdown"
)

// Connection is one registered long-lived client connection. It owns its
// outbound channel exclusively: the broadcaster enqueues, the writer
// goroutine drains. Structural state is mutated only by the lifecycle
// manager and the registry.
type Connection struct {
	ID            uuid.UUID
	Kind          ConnectionKind
	Principal     string
	EstablishedAt time.Time

	transport    Transport
	clock        clockwork.Clock
	pingInterval time.Duration
	outbound     chan []byte
	done         chan struct{}
	stopOnce     sync.Once
	wg           sync.WaitGroup

	// onDead is invoked from the writer goroutine after it exits on a
	// write or ping failure. It runs after wg.Done, so teardown can
	// safely wait for the writer.
	onDead func(*Connection, DisconnectReason)

	mu             sync.Mutex
	lastPingSentAt time.Time
	lastPingAckAt  time.Time
	active         bool
}

func newConnection(transport Transport, kind ConnectionKind, principal string, clock clockwork.Clock, pingInterval time.Duration, bufferSize int, onDead func(*Connection, DisconnectReason)) *Connection {
	return &Connection{
		ID:            uuid.New(),
		Kind:          kind,
		Principal:     principal,
		EstablishedAt: clock.Now(),
		transport:     transport,
		clock:         clock,
		pingInterval:  pingInterval,
		outbound:      make(chan []byte, bufferSize),
		done:          make(chan struct{}),
		onDead:        onDead,
		active:        true,
	}
}

func (c *Connection) start() {
	c.wg.Add(1)
	go c.run()
}

func (c *Connection) run() {
	var reason DisconnectReason

	defer func() {
		c.wg.Done()
		// After wg.Done so that teardown's wait cannot deadlock on the
		// goroutine that triggered it.
		if reason != "" && c.onDead != nil {
			c.onDead(c, reason)
		}
	}()

	ticker := c.clock.NewTicker(c.pingInterval)
	defer ticker.Stop()

	for {
		select {
		case data := <-c.outbound:
			if err := c.transport.WriteEvent(data); err != nil {
				reason = ReasonWriteError
				return
			}
			metrics.EventsDeliveredTotal.Inc()
		case <-ticker.Chan():
			c.recordPingSent()
			if err := c.transport.Ping(); err != nil {
				metrics.PingFailuresTotal.Inc()
				reason = ReasonWriteError
				return
			}
		case <-c.done:
			return
		}
	}
}

// enqueue offers an encoded event to the outbound channel without
// blocking. Returns false if the connection is stopping or the buffer is
// full (slow consumer). The done check happens after the send: a frame
// that slips into the buffer while the writer is exiting is reported as
// dropped, since nothing will ever drain it.
func (c *Connection) enqueue(data []byte) bool {
	select {
	case c.outbound <- data:
	default:
		return false
	}
	select {
	case <-c.done:
		return false
	default:
		return true
	}
}

// release stops the writer goroutine and closes the transport. Safe to
// call more than once; only the first call does work. Callers must
// unregister the connection first so the registry never points at a
// closed transport.
func (c *Connection) release(reason DisconnectReason) {
	c.stopOnce.Do(func() {
		close(c.done)
		c.wg.Wait()
		_ = c.transport.Close(string(reason))
	})
}

func (c *Connection) recordPingSent() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPingSentAt = c.clock.Now()
}

// RecordPingAck notes a liveness acknowledgement from the client (e.g. a
// websocket pong). Called from the connection's read path.
func (c *Connection) RecordPingAck() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.lastPingAckAt = c.clock.Now()
}

func (c *Connection) setActive(v bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.active = v
}

// Info returns a point-in-time copy of the connection's bookkeeping
// fields for status reporting.
func (c *Connection) Info() ConnectionInfo {
	c.mu.Lock()
	defer c.mu.Unlock()
	return ConnectionInfo{
		ID:             c.ID,
		Kind:           c.Kind,
		Principal:      c.Principal,
		EstablishedAt:  c.EstablishedAt,
		LastPingSentAt: c.lastPingSentAt,
		LastPingAckAt:  c.lastPingAckAt,
	}
}

// ConnectionInfo is the read-only projection of a Connection.
type ConnectionInfo struct {
	ID             uuid.UUID      `json:"id"`
	Kind           ConnectionKind `json:"kind"`
	Principal      string         `json:"principal"`
	EstablishedAt  time.Time      `json:"established_at"`
	LastPingSentAt time.Time      `json:"last_ping_sent_at,omitzero"`
	LastPingAckAt  time.Time      `json:"last_ping_ack_at,omitzero"`
}
