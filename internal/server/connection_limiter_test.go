package server

import (
	"sync"
	"sync/atomic"
	"testing"

	"github.com/stretchr/testify/assert"
)

func TestConnectionLimiter_AcquireRelease(t *testing.T) {
	limiter := NewConnectionLimiter(3)

	// Acquire 3 slots (at limit)
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// 4th acquire should fail
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())

	// Release one slot
	limiter.Release()
	assert.Equal(t, int64(2), limiter.Current())

	// Now acquire should succeed
	assert.True(t, limiter.Acquire())
	assert.Equal(t, int64(3), limiter.Current())
}

func TestConnectionLimiter_Concurrent(t *testing.T) {
	limiter := NewConnectionLimiter(100)
	var successCount, failCount int64

	// Barrier to ensure all goroutines try to acquire at roughly the same time
	start := make(chan struct{})
	var wg sync.WaitGroup

	for i := 0; i < 200; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			<-start // Wait for signal
			if limiter.Acquire() {
				atomic.AddInt64(&successCount, 1)
			} else {
				atomic.AddInt64(&failCount, 1)
			}
		}()
	}

	// Release all goroutines at once
	close(start)
	wg.Wait()

	// Should have exactly 100 successes and 100 failures
	assert.Equal(t, int64(100), atomic.LoadInt64(&successCount))
	assert.Equal(t, int64(100), atomic.LoadInt64(&failCount))
	assert.Equal(t, int64(100), limiter.Current())

	// Release all to verify counter works correctly
	for i := 0; i < 100; i++ {
		limiter.Release()
	}
	assert.Equal(t, int64(0), limiter.Current())
}

func TestConnectionLimiter_ZeroMax(t *testing.T) {
	limiter := NewConnectionLimiter(0)
	assert.False(t, limiter.Acquire())
	assert.Equal(t, int64(0), limiter.Current())
}
