package realtime

import (
	"fmt"
	"sync"

	"github.com/google/uuid"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// Registry is the concurrency-safe store of all open connections,
// indexed by id, by kind, and by display name. All operations are pure
// in-memory bookkeeping under one short-held mutex; nothing here touches
// the network.
type Registry struct {
	mu        sync.Mutex
	byID      map[uuid.UUID]*Connection
	byKind    map[ConnectionKind]map[uuid.UUID]*Connection
	byDisplay map[string]map[uuid.UUID]*Connection
}

// NewRegistry creates an empty registry. One instance is constructed at
// startup and passed by reference to every collaborator.
func NewRegistry() *Registry {
	return &Registry{
		byID: make(map[uuid.UUID]*Connection),
		byKind: map[ConnectionKind]map[uuid.UUID]*Connection{
			KindAdmin:   make(map[uuid.UUID]*Connection),
			KindDisplay: make(map[uuid.UUID]*Connection),
		},
		byDisplay: make(map[string]map[uuid.UUID]*Connection),
	}
}

// Register adds a connection to every index. Registering the same id
// twice is a bug in the caller, not an expected race, and panics.
func (r *Registry) Register(conn *Connection) {
	r.mu.Lock()
	defer r.mu.Unlock()

	if _, exists := r.byID[conn.ID]; exists {
		panic(fmt.Sprintf("realtime: connection %s registered twice", conn.ID))
	}

	r.byID[conn.ID] = conn
	r.byKind[conn.Kind][conn.ID] = conn
	if conn.Kind == KindDisplay {
		clients, ok := r.byDisplay[conn.Principal]
		if !ok {
			clients = make(map[uuid.UUID]*Connection)
			r.byDisplay[conn.Principal] = clients
		}
		clients[conn.ID] = conn
	}

	metrics.ConnectionsCurrent.WithLabelValues(string(conn.Kind)).Inc()
}

// Unregister removes a connection from every index. Idempotent: returns
// false without side effects when the id is already absent, so racing
// disconnect-detection paths can both call it and only the winner does
// the real work.
func (r *Registry) Unregister(id uuid.UUID) bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	conn, exists := r.byID[id]
	if !exists {
		return false
	}

	delete(r.byID, id)
	delete(r.byKind[conn.Kind], id)
	if conn.Kind == KindDisplay {
		if clients, ok := r.byDisplay[conn.Principal]; ok {
			delete(clients, id)
			if len(clients) == 0 {
				delete(r.byDisplay, conn.Principal)
			}
		}
	}

	conn.setActive(false)
	metrics.ConnectionsCurrent.WithLabelValues(string(conn.Kind)).Dec()
	return true
}

// Get looks up a connection by id.
func (r *Registry) Get(id uuid.UUID) (*Connection, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	conn, ok := r.byID[id]
	return conn, ok
}

// ListByKind returns a snapshot of all connections of one kind.
func (r *Registry) ListByKind(kind ConnectionKind) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return collect(r.byKind[kind])
}

// ListByDisplay returns a snapshot of the connections held by one named
// display.
func (r *Registry) ListByDisplay(name string) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return collect(r.byDisplay[name])
}

// ListAll returns a snapshot of every registered connection.
func (r *Registry) ListAll() []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()
	return collect(r.byID)
}

// Len reports the number of registered connections.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byID)
}

// Counts returns connection totals for status reporting.
func (r *Registry) Counts() ConnectionCounts {
	r.mu.Lock()
	defer r.mu.Unlock()

	counts := ConnectionCounts{
		Total:      len(r.byID),
		Admins:     len(r.byKind[KindAdmin]),
		Displays:   len(r.byKind[KindDisplay]),
		PerDisplay: make(map[string]int, len(r.byDisplay)),
	}
	for name, clients := range r.byDisplay {
		counts.PerDisplay[name] = len(clients)
	}
	return counts
}

// ConnectionCounts is a point-in-time tally of registered connections.
type ConnectionCounts struct {
	Total      int            `json:"total"`
	Admins     int            `json:"admins"`
	Displays   int            `json:"displays"`
	PerDisplay map[string]int `json:"per_display"`
}

// resolve snapshots the connections matching a scope. Called with the
// scope already validated; dispatch happens outside the registry lock.
func (r *Registry) resolve(scope Scope) []*Connection {
	r.mu.Lock()
	defer r.mu.Unlock()

	switch scope.Kind {
	case ScopeKindAllAdmins:
		return collect(r.byKind[KindAdmin])
	case ScopeKindAllDisplays:
		return collect(r.byKind[KindDisplay])
	case ScopeKindDisplay:
		return collect(r.byDisplay[scope.Display])
	case ScopeKindDisplayAndAdmins:
		conns := collect(r.byDisplay[scope.Display])
		return append(conns, collect(r.byKind[KindAdmin])...)
	default:
		return nil
	}
}

func collect(m map[uuid.UUID]*Connection) []*Connection {
	if len(m) == 0 {
		return nil
	}
	conns := make([]*Connection, 0, len(m))
	for _, conn := range m {
		conns = append(conns, conn)
	}
	return conns
}
