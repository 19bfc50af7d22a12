package realtime

import (
	"encoding/json"
	"errors"
	"sync"
	"testing"
	"time"
)

// stubTransport records writes in memory and can be told to fail them,
// standing in for a websocket connection.
type stubTransport struct {
	mu          sync.Mutex
	frames      [][]byte
	pings       int
	closed      bool
	closeReason string

	failEventWrites bool
	failPings       bool

	// onClose observes transport release, e.g. to assert the connection
	// was unregistered first.
	onClose func(reason string)
}

var errBrokenPipe = errors.New("write: broken pipe")

func (s *stubTransport) WriteEvent(data []byte) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failEventWrites {
		return errBrokenPipe
	}
	frame := make([]byte, len(data))
	copy(frame, data)
	s.frames = append(s.frames, frame)
	return nil
}

func (s *stubTransport) Ping() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.failPings {
		return errBrokenPipe
	}
	s.pings++
	return nil
}

func (s *stubTransport) Close(reason string) error {
	s.mu.Lock()
	s.closed = true
	s.closeReason = reason
	onClose := s.onClose
	s.mu.Unlock()
	if onClose != nil {
		onClose(reason)
	}
	return nil
}

func (s *stubTransport) isClosed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.closed
}

func (s *stubTransport) frameCount() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.frames)
}

// eventTypes decodes the recorded frames and returns their event types
// in write order.
func (s *stubTransport) eventTypes(t *testing.T) []string {
	t.Helper()
	s.mu.Lock()
	defer s.mu.Unlock()

	types := make([]string, 0, len(s.frames))
	for _, frame := range s.frames {
		var decoded struct {
			Type string `json:"type"`
		}
		if err := json.Unmarshal(frame, &decoded); err != nil {
			t.Fatalf("failed to decode frame %q: %v", frame, err)
		}
		types = append(types, decoded.Type)
	}
	return types
}

// waitUntil polls cond for up to a second, matching the writer
// goroutine's asynchronous drain.
func waitUntil(cond func() bool) bool {
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return true
		}
		time.Sleep(time.Millisecond)
	}
	return cond()
}
