// Package realtime implements the presence and event-broadcast core for
// signage displays: a registry of long-lived push connections, a scoped
// fan-out broadcaster, heartbeat-derived presence, and the connection
// lifecycle manager that funnels every disconnect path into one
// idempotent teardown.
//
// The registry is the only shared mutable state; its lock is held for
// bookkeeping only, never across transport writes. Each connection owns
// a writer goroutine draining a buffered outbound channel, so a slow or
// dead client can never stall a publisher.
package realtime
