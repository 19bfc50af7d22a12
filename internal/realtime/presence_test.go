package realtime

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/jonboulle/clockwork"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestPresenceRecord_OnlineBoundaries(t *testing.T) {
	base := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rec := PresenceRecord{
		DisplayName:       "lobby",
		LastSeenAt:        base,
		HeartbeatInterval: 60 * time.Second,
	}

	tests := []struct {
		name       string
		elapsed    time.Duration
		wantOnline bool
		wantMissed int
	}{
		{"fresh heartbeat", 59 * time.Second, true, 0},
		{"two intervals missed", 179 * time.Second, true, 2},
		{"exactly at threshold", 180 * time.Second, false, 3},
		{"past threshold", 181 * time.Second, false, 3},
		{"long gone", 601 * time.Second, false, 10},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			now := base.Add(tt.elapsed)
			assert.Equal(t, tt.wantOnline, rec.Online(now))
			assert.Equal(t, tt.wantMissed, rec.MissedHeartbeats(now))
		})
	}
}

func TestPresenceRecord_ClockSkew(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rec := PresenceRecord{
		DisplayName:       "lobby",
		LastSeenAt:        now.Add(5 * time.Second), // heartbeat from the future
		HeartbeatInterval: 60 * time.Second,
	}

	assert.True(t, rec.Online(now))
	assert.Equal(t, 0, rec.MissedHeartbeats(now))
}

func TestPresenceRecord_ZeroInterval(t *testing.T) {
	now := time.Date(2026, 3, 14, 12, 0, 0, 0, time.UTC)
	rec := PresenceRecord{
		DisplayName: "lobby",
		LastSeenAt:  now.Add(-time.Minute),
	}

	// A record without a positive interval has no cadence to judge
	// against: never online, never a missed count.
	assert.False(t, rec.Online(now))
	assert.Equal(t, 0, rec.MissedHeartbeats(now))
}

func TestPresenceTracker_RecordAndSnapshot(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewPresenceTracker(clock, 60*time.Second, nil)

	tracker.RecordHeartbeat("lobby", 30*time.Second, clock.Now())
	clock.Advance(45 * time.Second)

	snap, ok := tracker.Snapshot("lobby", clock.Now())
	require.True(t, ok)
	assert.Equal(t, "lobby", snap.DisplayName)
	assert.True(t, snap.Online)
	assert.Equal(t, 1, snap.MissedHeartbeats)
	assert.Equal(t, 30, snap.HeartbeatInterval)
}

func TestPresenceTracker_UnknownDisplay(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewPresenceTracker(clock, 60*time.Second, nil)

	_, ok := tracker.Snapshot("nowhere", clock.Now())
	assert.False(t, ok)
	assert.Empty(t, tracker.SnapshotAll(clock.Now()))
}

func TestPresenceTracker_DefaultInterval(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewPresenceTracker(clock, 60*time.Second, nil)

	tracker.RecordHeartbeat("lobby", 0, clock.Now())

	snap, ok := tracker.Snapshot("lobby", clock.Now())
	require.True(t, ok)
	assert.Equal(t, 60, snap.HeartbeatInterval)
}

func TestPresenceTracker_MonotonicLastSeen(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewPresenceTracker(clock, 60*time.Second, nil)
	now := clock.Now()

	tracker.RecordHeartbeat("lobby", 60*time.Second, now)
	// A delayed retry carrying an older timestamp must not move the
	// record backward.
	tracker.RecordHeartbeat("lobby", 60*time.Second, now.Add(-2*time.Minute))

	snap, ok := tracker.Snapshot("lobby", now)
	require.True(t, ok)
	assert.True(t, snap.LastSeenAt.Equal(now))
	assert.True(t, snap.Online)
}

func TestPresenceTracker_SnapshotAllSorted(t *testing.T) {
	clock := clockwork.NewFakeClock()
	tracker := NewPresenceTracker(clock, 60*time.Second, nil)

	tracker.RecordHeartbeat("lobby", 60*time.Second, clock.Now())
	tracker.RecordHeartbeat("atrium", 60*time.Second, clock.Now())
	tracker.RecordHeartbeat("entrance", 60*time.Second, clock.Now())

	snapshots := tracker.SnapshotAll(clock.Now())
	require.Len(t, snapshots, 3)
	assert.Equal(t, "atrium", snapshots[0].DisplayName)
	assert.Equal(t, "entrance", snapshots[1].DisplayName)
	assert.Equal(t, "lobby", snapshots[2].DisplayName)
}

// stubPresenceStore records saves and serves canned loads.
type stubPresenceStore struct {
	mu      sync.Mutex
	saved   []PresenceRecord
	loaded  []PresenceRecord
	loadErr error
}

func (s *stubPresenceStore) Save(_ context.Context, record PresenceRecord) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.saved = append(s.saved, record)
	return nil
}

func (s *stubPresenceStore) LoadAll(_ context.Context) ([]PresenceRecord, error) {
	return s.loaded, s.loadErr
}

func TestPresenceTracker_WriteThrough(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &stubPresenceStore{}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)

	tracker.RecordHeartbeat("lobby", 30*time.Second, clock.Now())

	require.Len(t, store.saved, 1)
	assert.Equal(t, "lobby", store.saved[0].DisplayName)
	assert.Equal(t, 30*time.Second, store.saved[0].HeartbeatInterval)
}

func TestPresenceTracker_LoadSeedsRecords(t *testing.T) {
	clock := clockwork.NewFakeClock()
	seen := clock.Now().Add(-time.Minute)
	store := &stubPresenceStore{loaded: []PresenceRecord{
		{DisplayName: "lobby", LastSeenAt: seen, HeartbeatInterval: 60 * time.Second},
	}}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)

	require.NoError(t, tracker.Load(context.Background()))

	snap, ok := tracker.Snapshot("lobby", clock.Now())
	require.True(t, ok)
	assert.True(t, snap.LastSeenAt.Equal(seen))
	assert.True(t, snap.Online)
}

func TestPresenceTracker_LoadNeverRegresses(t *testing.T) {
	clock := clockwork.NewFakeClock()
	now := clock.Now()
	store := &stubPresenceStore{loaded: []PresenceRecord{
		{DisplayName: "lobby", LastSeenAt: now.Add(-time.Hour), HeartbeatInterval: 60 * time.Second},
	}}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)

	// A live heartbeat lands before the stored (stale) record loads.
	tracker.RecordHeartbeat("lobby", 60*time.Second, now)
	require.NoError(t, tracker.Load(context.Background()))

	snap, ok := tracker.Snapshot("lobby", now)
	require.True(t, ok)
	assert.True(t, snap.LastSeenAt.Equal(now))
}

func TestPresenceTracker_LoadZeroIntervalRecord(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &stubPresenceStore{loaded: []PresenceRecord{
		{DisplayName: "lobby", LastSeenAt: clock.Now().Add(-time.Minute)},
	}}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)

	require.NoError(t, tracker.Load(context.Background()))

	// A seeded record with no interval must degrade to offline, not
	// crash the snapshot path.
	snapshots := tracker.SnapshotAll(clock.Now())
	require.Len(t, snapshots, 1)
	assert.False(t, snapshots[0].Online)
	assert.Equal(t, 0, snapshots[0].MissedHeartbeats)
}

func TestPresenceTracker_ConcurrentHeartbeatsPersistNewest(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &stubPresenceStore{}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)
	base := clock.Now()

	var wg sync.WaitGroup
	for i := range 20 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			tracker.RecordHeartbeat("lobby", 60*time.Second, base.Add(time.Duration(i)*time.Second))
		}()
	}
	wg.Wait()

	// Whatever order the writes land in, the last persisted record
	// carries the newest timestamp.
	store.mu.Lock()
	defer store.mu.Unlock()
	require.NotEmpty(t, store.saved)
	last := store.saved[len(store.saved)-1]
	assert.True(t, last.LastSeenAt.Equal(base.Add(19*time.Second)))
}

func TestPresenceTracker_LoadError(t *testing.T) {
	clock := clockwork.NewFakeClock()
	store := &stubPresenceStore{loadErr: errors.New("redis down")}
	tracker := NewPresenceTracker(clock, 60*time.Second, store)

	assert.Error(t, tracker.Load(context.Background()))
}
