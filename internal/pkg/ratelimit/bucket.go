package ratelimit

import (
	"sync"
	"time"
)

// TokenBucket is an in-process token bucket limiter. Tokens refill at a
// fixed per-second rate up to the bucket capacity; a request consumes a
// token or is rejected. The bucket starts full so a fresh process can
// absorb a burst immediately.
type TokenBucket struct {
	mu       sync.Mutex
	capacity int64
	rate     int64 // tokens added per second
	tokens   float64
	last     time.Time
}

// NewTokenBucket creates a bucket holding up to capacity tokens that
// refills at rate tokens per second.
func NewTokenBucket(capacity, rate int64) *TokenBucket {
	if capacity <= 0 {
		capacity = 1
	}
	if rate <= 0 {
		rate = 1
	}
	return &TokenBucket{
		capacity: capacity,
		rate:     rate,
		tokens:   float64(capacity),
		last:     time.Now(),
	}
}

// Allow consumes a single token if one is available.
func (b *TokenBucket) Allow() bool {
	return b.AllowN(1)
}

// AllowN consumes n tokens if the bucket holds at least that many.
func (b *TokenBucket) AllowN(n int64) bool {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.refillLocked(time.Now())

	if b.tokens >= float64(n) {
		b.tokens -= float64(n)
		return true
	}
	return false
}

// WaitN blocks until n tokens are available or the timeout passes,
// whichever comes first. Returns false when the deadline won.
func (b *TokenBucket) WaitN(n int64, timeout time.Duration) bool {
	deadline := time.Now().Add(timeout)
	for {
		if b.AllowN(n) {
			return true
		}

		remaining := time.Until(deadline)
		if remaining <= 0 {
			return false
		}

		sleep := 10 * time.Millisecond
		if sleep > remaining {
			sleep = remaining
		}
		time.Sleep(sleep)
	}
}

// refillLocked credits tokens for the time elapsed since the last refill.
// Caller must hold mu.
func (b *TokenBucket) refillLocked(now time.Time) {
	elapsed := now.Sub(b.last).Seconds()
	if elapsed <= 0 {
		return
	}

	b.tokens += elapsed * float64(b.rate)
	if b.tokens > float64(b.capacity) {
		b.tokens = float64(b.capacity)
	}
	b.last = now
}
