package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
)

const presenceKey = "kiosk:presence"

// storedPresence is the persisted form of a presence record.
type storedPresence struct {
	LastSeenAt      time.Time `json:"last_seen_at"`
	IntervalSeconds int       `json:"interval_seconds"`
}

// PresenceStore persists display presence records in a Redis hash so
// online/offline state survives process restarts. Best effort: the
// in-memory tracker stays authoritative and callers treat failures as
// log-and-continue.
type PresenceStore struct {
	client *Client
}

// NewPresenceStore creates a presence store on the given client.
func NewPresenceStore(client *Client) *PresenceStore {
	return &PresenceStore{client: client}
}

// Save upserts one display's presence record.
func (s *PresenceStore) Save(ctx context.Context, record realtime.PresenceRecord) error {
	data, err := json.Marshal(storedPresence{
		LastSeenAt:      record.LastSeenAt,
		IntervalSeconds: int(record.HeartbeatInterval / time.Second),
	})
	if err != nil {
		return fmt.Errorf("failed to marshal presence record: %w", err)
	}

	if err := s.client.rdb.HSet(ctx, presenceKey, record.DisplayName, data).Err(); err != nil {
		metrics.PresenceStoreErrorsTotal.WithLabelValues("save").Inc()
		return fmt.Errorf("failed to save presence for %q: %w", record.DisplayName, err)
	}
	return nil
}

// LoadAll returns every persisted presence record. Entries that fail to
// decode or carry a non-positive interval are skipped rather than
// failing the whole load.
func (s *PresenceStore) LoadAll(ctx context.Context) ([]realtime.PresenceRecord, error) {
	entries, err := s.client.rdb.HGetAll(ctx, presenceKey).Result()
	if err != nil {
		metrics.PresenceStoreErrorsTotal.WithLabelValues("load").Inc()
		return nil, fmt.Errorf("failed to load presence records: %w", err)
	}

	records := make([]realtime.PresenceRecord, 0, len(entries))
	for name, raw := range entries {
		var stored storedPresence
		if err := json.Unmarshal([]byte(raw), &stored); err != nil || stored.IntervalSeconds <= 0 {
			metrics.PresenceStoreErrorsTotal.WithLabelValues("decode").Inc()
			continue
		}
		records = append(records, realtime.PresenceRecord{
			DisplayName:       name,
			LastSeenAt:        stored.LastSeenAt,
			HeartbeatInterval: time.Duration(stored.IntervalSeconds) * time.Second,
		})
	}
	return records, nil
}
