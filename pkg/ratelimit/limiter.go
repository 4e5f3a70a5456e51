package ratelimit

import (
	"sync"
	"time"
)

// Limiter defines the interface for rate limiting
type Limiter interface {
	// Allow checks if a request is allowed under the current rate limit
	Allow() bool
	// Wait blocks until the rate limit allows another request
	Wait()
	// Reset resets the rate limiter state
	Reset()
}

// TokenBucket implements a token bucket rate limiter. Tokens are added one
// at a time, evenly spread over the refill period, up to capacity.
type TokenBucket struct {
	capacity   int           // Maximum number of tokens
	tokens     int           // Current number of tokens
	interval   time.Duration // Time to earn one token
	lastRefill time.Time     // Time the last token was credited
	mu         sync.Mutex

	now   func() time.Time
	sleep func(time.Duration)
}

// NewTokenBucket creates a bucket allowing capacity requests per refillPeriod
func NewTokenBucket(capacity int, refillPeriod time.Duration) *TokenBucket {
	if capacity < 1 {
		capacity = 1
	}
	tb := &TokenBucket{
		capacity: capacity,
		tokens:   capacity,
		interval: refillPeriod / time.Duration(capacity),
		now:      time.Now,
		sleep:    time.Sleep,
	}
	tb.lastRefill = tb.now()
	return tb
}

// PerMinute creates a bucket allowing n requests per minute
func PerMinute(n int) *TokenBucket {
	return NewTokenBucket(n, time.Minute)
}

// Allow checks if a request can proceed
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

// Wait blocks until a token is available
func (tb *TokenBucket) Wait() {
	for !tb.Allow() {
		tb.sleep(tb.untilNextToken())
	}
}

// Reset resets the token bucket to full capacity
func (tb *TokenBucket) Reset() {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.tokens = tb.capacity
	tb.lastRefill = tb.now()
}

// Available returns the number of tokens currently in the bucket
func (tb *TokenBucket) Available() int {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	tb.refill()
	return tb.tokens
}

func (tb *TokenBucket) untilNextToken() time.Duration {
	tb.mu.Lock()
	defer tb.mu.Unlock()

	wait := tb.interval - tb.now().Sub(tb.lastRefill)
	if wait < time.Millisecond {
		wait = time.Millisecond
	}
	return wait
}

// refill credits the tokens earned since lastRefill
func (tb *TokenBucket) refill() {
	if tb.interval <= 0 {
		tb.tokens = tb.capacity
		return
	}

	earned := int(tb.now().Sub(tb.lastRefill) / tb.interval)
	if earned <= 0 {
		return
	}

	tb.tokens += earned
	tb.lastRefill = tb.lastRefill.Add(time.Duration(earned) * tb.interval)
	if tb.tokens >= tb.capacity {
		tb.tokens = tb.capacity
		tb.lastRefill = tb.now()
	}
}

// Unlimited is a Limiter that never blocks
type Unlimited struct{}

func (Unlimited) Allow() bool { return true }
func (Unlimited) Wait()       {}
func (Unlimited) Reset()      {}
