package realtime

import (
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// Reporter joins registry counts with presence snapshots into one
// point-in-time view for dashboards and health probes. Read-only: it
// never mutates either source, and the two reads are not transactional;
// both sides may shift underneath it, which is acceptable.
type Reporter struct {
	registry *Registry
	presence *PresenceTracker
	clock    clockwork.Clock
}

// NewReporter creates a reporter over the given registry and tracker.
func NewReporter(registry *Registry, presence *PresenceTracker, clock clockwork.Clock) *Reporter {
	return &Reporter{registry: registry, presence: presence, clock: clock}
}

// StatusReport is the joined registry + presence view.
type StatusReport struct {
	GeneratedAt time.Time        `json:"generated_at"`
	Connections ConnectionCounts `json:"connections"`
	Displays    []DisplayStatus  `json:"displays"`
}

// DisplayStatus merges a display's heartbeat presence with whether it
// currently holds an open event-stream connection. The two are
// independent signals and are reported separately, not conflated.
type DisplayStatus struct {
	PresenceSnapshot
	StreamConnected bool `json:"stream_connected"`
}

// Report builds the current status view.
func (r *Reporter) Report() StatusReport {
	now := r.clock.Now()
	counts := r.registry.Counts()
	snapshots := r.presence.SnapshotAll(now)

	displays := make([]DisplayStatus, 0, len(snapshots))
	online := 0
	for _, snap := range snapshots {
		if snap.Online {
			online++
		}
		displays = append(displays, DisplayStatus{
			PresenceSnapshot: snap,
			StreamConnected:  counts.PerDisplay[snap.DisplayName] > 0,
		})
	}
	metrics.OnlineDisplays.Set(float64(online))

	return StatusReport{
		GeneratedAt: now,
		Connections: counts,
		Displays:    displays,
	}
}
