package server

import (
	"log/slog"
	"net/http"
	"time"

	"github.com/gorilla/websocket"
	"github.com/jonboulle/clockwork"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jantman/kiosk-show-replacement-sub000/internal/errors"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/metrics"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
)

const writeDeadline = 5 * time.Second

var upgrader = websocket.Upgrader{
	ReadBufferSize:  1024,
	WriteBufferSize: 1024,
	CheckOrigin: func(r *http.Request) bool {
		return true // displays run as kiosk browser sources on arbitrary origins
	},
}

// wsTransport adapts a gorilla websocket connection to the realtime
// Transport interface. All writes happen on the connection's writer
// goroutine; the close frame is written only after that goroutine exits.
type wsTransport struct {
	conn  *websocket.Conn
	clock clockwork.Clock
}

func (t *wsTransport) WriteEvent(data []byte) error {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.TextMessage, data)
}

func (t *wsTransport) Ping() error {
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	return t.conn.WriteMessage(websocket.PingMessage, nil)
}

func (t *wsTransport) Close(reason string) error {
	closeMsg := websocket.FormatCloseMessage(websocket.CloseNormalClosure, reason)
	_ = t.conn.SetWriteDeadline(t.clock.Now().Add(writeDeadline))
	_ = t.conn.WriteMessage(websocket.CloseMessage, closeMsg)
	return t.conn.Close()
}

func (s *Server) handleAdminSocket(c echo.Context) error {
	principal := s.adminPrincipal(c)
	if principal == "" {
		principal = c.QueryParam("name")
	}
	if principal == "" {
		return apperrors.Unauthorized("admin socket requires a principal")
	}
	return s.openSocket(c, realtime.KindAdmin, principal)
}

func (s *Server) handleDisplaySocket(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperrors.Validation("display name is required")
	}
	return s.openSocket(c, realtime.KindDisplay, name)
}

// openSocket upgrades the request and runs the read pump until the
// connection dies. The read pump is the ping-timeout detector: pongs
// refresh the read deadline, so a silent peer fails ReadMessage within
// two ping intervals.
func (s *Server) openSocket(c echo.Context, kind realtime.ConnectionKind, principal string) error {
	if !s.limiter.Acquire() {
		metrics.ConnectionsRejectedTotal.Inc()
		return apperrors.Unavailable("connection limit reached").
			WithContext("max_connections", s.limiter.Max())
	}
	defer s.limiter.Release()

	ws, err := upgrader.Upgrade(c.Response(), c.Request(), nil)
	if err != nil {
		// Upgrade writes its own error response.
		slog.Warn("WebSocket upgrade failed", "kind", kind, "principal", principal, "error", err)
		return nil
	}

	conn := s.manager.Open(&wsTransport{conn: ws, clock: s.clock}, kind, principal)

	pongDeadline := 2 * s.config.PingInterval
	_ = ws.SetReadDeadline(s.clock.Now().Add(pongDeadline))
	ws.SetPongHandler(func(string) error {
		_ = ws.SetReadDeadline(s.clock.Now().Add(pongDeadline))
		conn.RecordPingAck()
		return nil
	})

	for {
		if _, _, err := ws.ReadMessage(); err != nil {
			break
		}
	}

	s.manager.Disconnect(conn, realtime.ReasonConnectionLost)
	return nil
}
