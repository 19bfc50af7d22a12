package server

import "sync/atomic"

// ConnectionLimiter caps total concurrent long-lived connections per
// instance using lock-free counting.
type ConnectionLimiter struct {
	current atomic.Int64
	max     int64
}

// NewConnectionLimiter creates a limiter with the specified maximum.
func NewConnectionLimiter(max int64) *ConnectionLimiter {
	return &ConnectionLimiter{max: max}
}

// Acquire attempts to claim a connection slot. Returns false at capacity.
func (l *ConnectionLimiter) Acquire() bool {
	for {
		current := l.current.Load()
		if current >= l.max {
			return false
		}
		if l.current.CompareAndSwap(current, current+1) {
			return true
		}
	}
}

// Release frees a connection slot.
func (l *ConnectionLimiter) Release() {
	l.current.Add(-1)
}

// Current returns the number of held slots.
func (l *ConnectionLimiter) Current() int64 {
	return l.current.Load()
}

// Max returns the configured maximum.
func (l *ConnectionLimiter) Max() int64 {
	return l.max
}
