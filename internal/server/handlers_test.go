package server

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"
	"github.com/stretchr/testify/require"

	"github.com/jantman/kiosk-show-replacement-sub000/internal/platform/config"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
)

// --- Test helpers ---

func testConfig() *config.Config {
	return &config.Config{
		AppEnv:                   "test",
		Port:                     "0",
		SessionSecret:            "test-secret-key-32-bytes-long!!!",
		PingInterval:             30 * time.Second,
		DefaultHeartbeatInterval: 60 * time.Second,
		OutboundBufferSize:       16,
		MaxConnections:           64,
		HeartbeatRatePerSecond:   1000,
		HeartbeatRateBurst:       1000,
	}
}

func newTestServer(t *testing.T, opts ...func(*Server)) *Server {
	t.Helper()

	cfg := testConfig()
	clock := clockwork.NewRealClock()

	registry := realtime.NewRegistry()
	broadcaster := realtime.NewBroadcaster(registry, clock)
	manager := realtime.NewManager(registry, broadcaster, clock, cfg.PingInterval, cfg.OutboundBufferSize)
	t.Cleanup(manager.Shutdown)

	presence := realtime.NewPresenceTracker(clock, cfg.DefaultHeartbeatInterval, nil)
	reporter := realtime.NewReporter(registry, presence, clock)

	srv := NewServer(cfg, manager, broadcaster, presence, reporter, nil, clock)
	for _, opt := range opts {
		opt(srv)
	}
	return srv
}

func withRedisHealthCheck(redis redisPinger) func(*Server) {
	return func(s *Server) {
		s.redis = redis
	}
}

func withConnectionLimit(max int64) func(*Server) {
	return func(s *Server) {
		s.limiter = NewConnectionLimiter(max)
	}
}

// startTestServer exposes the full route table over a real listener so
// websocket tests can dial it.
func startTestServer(t *testing.T, srv *Server) *httptest.Server {
	t.Helper()
	ts := httptest.NewServer(srv.echo)
	t.Cleanup(ts.Close)
	return ts
}

func dialWS(t *testing.T, ts *httptest.Server, path string) *ws.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + path
	conn, _, err := ws.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

// readEvent reads one event frame and decodes it.
func readEvent(t *testing.T, conn *ws.Conn) map[string]any {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)

	var event map[string]any
	require.NoError(t, json.Unmarshal(data, &event))
	return event
}

// expectNoEvent asserts nothing arrives within the window.
func expectNoEvent(t *testing.T, conn *ws.Conn) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err, "expected no event, but one arrived")
}

func waitUntil(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(2 * time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(5 * time.Millisecond)
	}
	t.Fatal("condition not met within deadline")
}

// doJSON issues a JSON request against the route table.
func doJSON(srv *Server, method, path, body string, cookies ...*http.Cookie) *httptest.ResponseRecorder {
	var req *http.Request
	if body == "" {
		req = httptest.NewRequest(method, path, nil)
	} else {
		req = httptest.NewRequest(method, path, strings.NewReader(body))
		req.Header.Set(echo.HeaderContentType, echo.MIMEApplicationJSON)
	}
	for _, cookie := range cookies {
		req.AddCookie(cookie)
	}
	rec := httptest.NewRecorder()
	srv.echo.ServeHTTP(rec, req)
	return rec
}

// adminCookies logs in and returns the session cookies.
func adminCookies(t *testing.T, srv *Server, username string) []*http.Cookie {
	t.Helper()
	rec := doJSON(srv, http.MethodPost, "/auth/login", `{"username":"`+username+`"}`)
	require.Equal(t, http.StatusOK, rec.Code)
	cookies := rec.Result().Cookies()
	require.NotEmpty(t, cookies)
	return cookies
}
