// Package server implements the HTTP surface using the Echo framework.
//
// Routes: websocket event streams (/ws/admin, /ws/display/:name), the
// out-of-band API (heartbeat, disconnect, publish, status), and the
// observability endpoints (health probes, Prometheus metrics).
// Handlers are split by concern: handlers_ws.go, handlers_api.go,
// handlers_auth.go, handlers_health.go.
package server
