package realtime

import (
	"encoding/json"
	"fmt"
	"time"
)

// ConnectionKind distinguishes the two principal types that hold
// long-lived connections.
type ConnectionKind string

const (
	// KindAdmin is a dashboard connection belonging to an administrator.
	KindAdmin ConnectionKind = "admin"
	// KindDisplay is a connection held by a signage display endpoint.
	KindDisplay ConnectionKind = "display"
)

// ScopeKind selects the addressing rule for an event.
type ScopeKind string

const (
	ScopeKindAllAdmins        ScopeKind = "all_admins"
	ScopeKindAllDisplays      ScopeKind = "all_displays"
	ScopeKindDisplay          ScopeKind = "display"
	ScopeKindDisplayAndAdmins ScopeKind = "display_and_admins"
)

// Scope determines which registered connections an event is delivered to.
// Display is set only for the two display-addressed kinds.
type Scope struct {
	Kind    ScopeKind `json:"kind"`
	Display string    `json:"display,omitempty"`
}

// AllAdmins addresses every admin connection.
func AllAdmins() Scope { return Scope{Kind: ScopeKindAllAdmins} }

// AllDisplays addresses every display connection.
func AllDisplays() Scope { return Scope{Kind: ScopeKindAllDisplays} }

// ToDisplay addresses the connections of a single named display.
func ToDisplay(name string) Scope { return Scope{Kind: ScopeKindDisplay, Display: name} }

// ToDisplayAndAdmins addresses one display plus every admin connection.
func ToDisplayAndAdmins(name string) Scope {
	return Scope{Kind: ScopeKindDisplayAndAdmins, Display: name}
}

// Validate checks that the scope kind is known and that display-addressed
// scopes carry a display name.
func (s Scope) Validate() error {
	switch s.Kind {
	case ScopeKindAllAdmins, ScopeKindAllDisplays:
		return nil
	case ScopeKindDisplay, ScopeKindDisplayAndAdmins:
		if s.Display == "" {
			return fmt.Errorf("scope %q requires a display name", s.Kind)
		}
		return nil
	default:
		return fmt.Errorf("unknown scope kind %q", s.Kind)
	}
}

// Event is a fire-and-forget notification fanned out to matching
// connections. There is no persisted event log; delivery is best effort
// to whatever connections are registered at publish time.
type Event struct {
	Type      string    `json:"type"`
	Scope     Scope     `json:"-"`
	Payload   any       `json:"payload,omitempty"`
	CreatedAt time.Time `json:"created_at"`
}

// Encode renders the wire form of the event. The scope is addressing
// metadata and is not sent to clients.
func (e Event) Encode() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("failed to encode event %q: %w", e.Type, err)
	}
	return data, nil
}
