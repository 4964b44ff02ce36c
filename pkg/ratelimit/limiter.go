package ratelimit

import (
	"sync"
	"time"
)

// Limiter paces operations against the browser session. The gallery UI is a
// shared single-cursor resource; issuing queries and clicks faster than the
// page re-renders corrupts the crawl, so every driver operation passes
// through a limiter first.
type Limiter interface {
	// Allow checks if an operation is allowed under the current pace
	Allow() bool
	// Wait blocks until the pace allows another operation
	Wait()
	// Reset resets the limiter state
	Reset()
}

// TokenBucket implements a token bucket limiter
type TokenBucket struct {
	capacity     int
	tokens       int
	refillPeriod time.Duration
	lastRefill   time.Time
	mu           sync.Mutex
}

// NewTokenBucket creates a new token bucket limiter
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	return &TokenBucket{
		capacity:     capacity,
		tokens:       capacity,
		refillPeriod: refillPeriod,
		lastRefill:   time.Now(),
	}
}

// Allow checks if an operation can proceed
func (tb *TokenBucket) Allow() bool {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()

	if tb.tokens > 0 {
		tb.tokens--
		return true
	}

	return false
}

// Wait blocks until a token becomes available
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.mu.Lock()
		interval := tb.refillPeriod / time.Duration(max(tb.capacity, 1))
		tb.mu.Unlock()
		time.Sleep(interval)
	}
}

// Reset refills the bucket to capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()
	tb.tokens = tb.capacity
	tb.lastRefill = time.Now()
}

// refill adds tokens back once the refill period has elapsed.
// Caller must hold the lock.
func (tb *TokenBucket) refill() {
	now := time.Now()
	if now.Sub(tb.lastRefill) >= tb.refillPeriod {
		tb.tokens = tb.capacity
		tb.lastRefill = now
	}
}

func max(a, b int) int {
	if a > b {
		return a
	}
	return b
}
