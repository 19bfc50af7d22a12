package server

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/google/uuid"
	"github.com/labstack/echo/v4"

	apperrors "github.com/jantman/kiosk-show-replacement-sub000/internal/errors"
	"github.com/jantman/kiosk-show-replacement-sub000/internal/realtime"
)

type heartbeatRequest struct {
	IntervalSeconds int `json:"interval_seconds"`
}

// handleHeartbeat ingests a display liveness report. Heartbeats travel
// out of band from the event stream; a display on polling fallback
// stays "online" through this endpoint alone.
func (s *Server) handleHeartbeat(c echo.Context) error {
	name := c.Param("name")
	if name == "" {
		return apperrors.Validation("display name is required")
	}

	var req heartbeatRequest
	// Body is optional; displays without configuration send none.
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid heartbeat body")
	}
	if req.IntervalSeconds < 0 {
		return apperrors.Validation("interval_seconds must not be negative").
			WithContext("interval_seconds", req.IntervalSeconds)
	}

	s.presence.RecordHeartbeat(name, time.Duration(req.IntervalSeconds)*time.Second, s.clock.Now())
	return c.NoContent(http.StatusNoContent)
}

type disconnectRequest struct {
	ConnectionID string `json:"connection_id"`
}

// handleDisconnect is the explicit client disconnect path. Fire and
// forget: an unknown or already-removed id is indistinguishable from
// "already gone" and acknowledged the same way.
func (s *Server) handleDisconnect(c echo.Context) error {
	var req disconnectRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid disconnect body")
	}

	id, err := uuid.Parse(req.ConnectionID)
	if err != nil {
		return apperrors.Validation("connection_id must be a UUID")
	}

	s.manager.NotifyDisconnect(id)
	return c.JSON(http.StatusAccepted, map[string]string{"status": "accepted"})
}

type publishRequest struct {
	Type    string          `json:"type"`
	Scope   realtime.Scope  `json:"scope"`
	Payload json.RawMessage `json:"payload"`
}

// handlePublish lets the content-management process announce changes
// (e.g. a slideshow assignment) to connected clients.
func (s *Server) handlePublish(c echo.Context) error {
	var req publishRequest
	if err := c.Bind(&req); err != nil {
		return apperrors.Validation("invalid publish body")
	}
	if req.Type == "" {
		return apperrors.Validation("event type is required")
	}
	if err := req.Scope.Validate(); err != nil {
		return apperrors.Validation(err.Error())
	}

	event := realtime.Event{Type: req.Type, Scope: req.Scope}
	if len(req.Payload) > 0 {
		event.Payload = req.Payload
	}

	delivered := s.broadcaster.Publish(event)
	return c.JSON(http.StatusOK, map[string]int{"delivered": delivered})
}

// handleStatus returns the joined registry + presence view.
func (s *Server) handleStatus(c echo.Context) error {
	return c.JSON(http.StatusOK, s.reporter.Report())
}
