package realtime

import (
	"context"
	"log/slog"
	"sort"
	"sync"
	"time"

	"github.com/jonboulle/clockwork"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
)

// offlineAfterMissed is the number of heartbeat intervals a display may
// miss before it is considered offline.
const offlineAfterMissed = 3

// PresenceRecord is the stored heartbeat state for one display. Online
// and missed-heartbeat counts are never stored; they are derived from
// LastSeenAt against whatever "now" the reader uses.
type PresenceRecord struct {
	DisplayName       string        `json:"display_name"`
	LastSeenAt        time.Time     `json:"last_seen_at"`
	HeartbeatInterval time.Duration `json:"heartbeat_interval"`
}

// Online reports whether the display's last heartbeat is recent enough
// at the given instant. Pure function of the record and now. A record
// without a positive interval is never online.
func (r PresenceRecord) Online(now time.Time) bool {
	if r.HeartbeatInterval <= 0 {
		return false
	}
	return now.Sub(r.LastSeenAt) < offlineAfterMissed*r.HeartbeatInterval
}

// MissedHeartbeats counts full heartbeat intervals elapsed since the
// last heartbeat. Pure function of the record and now.
func (r PresenceRecord) MissedHeartbeats(now time.Time) int {
	if r.HeartbeatInterval <= 0 {
		return 0
	}
	elapsed := now.Sub(r.LastSeenAt)
	if elapsed <= 0 {
		return 0
	}
	return int(elapsed / r.HeartbeatInterval)
}

// PresenceSnapshot is the derived view of one display's presence.
type PresenceSnapshot struct {
	DisplayName       string    `json:"display_name"`
	Online            bool      `json:"online"`
	MissedHeartbeats  int       `json:"missed_heartbeats"`
	LastSeenAt        time.Time `json:"last_seen_at"`
	HeartbeatInterval int       `json:"heartbeat_interval_seconds"`
}

// PresenceStore persists presence records so they survive restarts.
// Implementations are best effort; the in-memory map stays authoritative.
type PresenceStore interface {
	Save(ctx context.Context, record PresenceRecord) error
	LoadAll(ctx context.Context) ([]PresenceRecord, error)
}

// PresenceTracker ingests display heartbeats and answers online/offline
// queries. It is fully independent of the connection registry: a display
// may heartbeat over plain requests without holding an open event
// stream, and may hold a stream while overdue on heartbeats.
type PresenceTracker struct {
	clock           clockwork.Clock
	defaultInterval time.Duration
	store           PresenceStore

	mu      sync.Mutex
	records map[string]PresenceRecord

	// saveMu serializes store writes; each write re-reads the current
	// record, so a racing pair of heartbeats can never persist the
	// older one last.
	saveMu sync.Mutex
}

// NewPresenceTracker creates a tracker. defaultInterval applies when a
// heartbeat does not state its own cadence. store may be nil.
func NewPresenceTracker(clock clockwork.Clock, defaultInterval time.Duration, store PresenceStore) *PresenceTracker {
	return &PresenceTracker{
		clock:           clock,
		defaultInterval: defaultInterval,
		store:           store,
		records:         make(map[string]PresenceRecord),
	}
}

// Load seeds the tracker from the persistence store. Called once at
// startup, before heartbeats start arriving.
func (t *PresenceTracker) Load(ctx context.Context) error {
	if t.store == nil {
		return nil
	}
	records, err := t.store.LoadAll(ctx)
	if err != nil {
		return err
	}

	t.mu.Lock()
	for _, rec := range records {
		existing, ok := t.records[rec.DisplayName]
		if ok && existing.LastSeenAt.After(rec.LastSeenAt) {
			continue
		}
		t.records[rec.DisplayName] = rec
	}
	count := len(t.records)
	t.mu.Unlock()

	metrics.KnownDisplays.Set(float64(count))
	slog.Info("Loaded presence records", "count", count)
	return nil
}

// RecordHeartbeat upserts the presence record for a display. Monotonic:
// an out-of-order heartbeat with an earlier timestamp than the stored
// one never moves LastSeenAt backward. interval <= 0 selects the default
// cadence. The persistence write happens outside the map lock,
// serialized so the newest record is always written last.
func (t *PresenceTracker) RecordHeartbeat(displayName string, interval time.Duration, at time.Time) {
	if interval <= 0 {
		interval = t.defaultInterval
	}
	if at.IsZero() {
		at = t.clock.Now()
	}

	t.mu.Lock()
	rec, ok := t.records[displayName]
	if !ok {
		rec = PresenceRecord{DisplayName: displayName}
	}
	if at.After(rec.LastSeenAt) {
		rec.LastSeenAt = at
	}
	rec.HeartbeatInterval = interval
	t.records[displayName] = rec
	count := len(t.records)
	t.mu.Unlock()

	metrics.HeartbeatsTotal.Inc()
	metrics.KnownDisplays.Set(float64(count))

	if t.store == nil {
		return
	}

	t.saveMu.Lock()
	defer t.saveMu.Unlock()

	t.mu.Lock()
	rec = t.records[displayName]
	t.mu.Unlock()

	ctx, cancel := context.WithTimeout(context.Background(), 2*time.Second)
	defer cancel()
	if err := t.store.Save(ctx, rec); err != nil {
		slog.Warn("Failed to persist presence record", "display", displayName, "error", err)
	}
}

// Snapshot derives the presence view for one display at the given
// instant. Returns false if the display has never heartbeated.
func (t *PresenceTracker) Snapshot(displayName string, now time.Time) (PresenceSnapshot, bool) {
	t.mu.Lock()
	rec, ok := t.records[displayName]
	t.mu.Unlock()
	if !ok {
		return PresenceSnapshot{}, false
	}
	return snapshotOf(rec, now), true
}

// SnapshotAll derives the presence view of every known display, sorted
// by name for stable output.
func (t *PresenceTracker) SnapshotAll(now time.Time) []PresenceSnapshot {
	t.mu.Lock()
	records := make([]PresenceRecord, 0, len(t.records))
	for _, rec := range t.records {
		records = append(records, rec)
	}
	t.mu.Unlock()

	snapshots := make([]PresenceSnapshot, 0, len(records))
	for _, rec := range records {
		snapshots = append(snapshots, snapshotOf(rec, now))
	}
	sort.Slice(snapshots, func(i, j int) bool {
		return snapshots[i].DisplayName < snapshots[j].DisplayName
	})
	return snapshots
}

func snapshotOf(rec PresenceRecord, now time.Time) PresenceSnapshot {
	return PresenceSnapshot{
		DisplayName:       rec.DisplayName,
		Online:            rec.Online(now),
		MissedHeartbeats:  rec.MissedHeartbeats(now),
		LastSeenAt:        rec.LastSeenAt,
		HeartbeatInterval: int(rec.HeartbeatInterval / time.Second),
	}
}
