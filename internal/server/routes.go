package server

import (
	"github.com/labstack/echo/v4"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func (s *Server) registerRoutes() {
	// Observability endpoints (no auth required)
	s.echo.GET("/health/live", s.handleLiveness)
	s.echo.GET("/health/ready", s.handleReadiness)
	s.echo.GET("/metrics", echo.WrapHandler(promhttp.Handler()))

	// Admin principal cookie
	s.echo.POST("/auth/login", s.handleLogin)

	// Long-lived event streams
	s.echo.GET("/ws/admin", s.handleAdminSocket)
	s.echo.GET("/ws/display/:name", s.handleDisplaySocket)

	// Out-of-band API. Heartbeats and disconnect notices come from
	// display firmware and get per-IP rate limiting.
	heartbeatLimit := newRateLimiter(s.config.HeartbeatRatePerSecond, s.config.HeartbeatRateBurst)
	s.echo.POST("/api/v1/displays/:name/heartbeat", s.handleHeartbeat, heartbeatLimit)
	s.echo.POST("/api/v1/events/disconnect", s.handleDisconnect, heartbeatLimit)
	s.echo.POST("/api/v1/events/publish", s.handlePublish, s.requireAdmin)
	s.echo.GET("/api/v1/status", s.handleStatus)
}
