package ratelimit

import (
	"testing"
	"time"
)

type fakeClock struct {
	now   time.Time
	slept []time.Duration
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Sleep(d time.Duration) {
	c.slept = append(c.slept, d)
	c.now = c.now.Add(d)
}

func newTestBucket(capacity int, period time.Duration) (*TokenBucket, *fakeClock) {
	clock := &fakeClock{now: time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)}
	tb := NewTokenBucket(capacity, period)
	tb.now = clock.Now
	tb.sleep = clock.Sleep
	tb.lastRefill = clock.now
	return tb, clock
}

func TestTokenBucket(t *testing.T) {
	tb, clock := newTestBucket(5, 5*time.Second)

	// Test initial capacity
	for i := 0; i < 5; i++ {
		if !tb.Allow() {
			t.Errorf("Expected token %d to be available", i+1)
		}
	}

	// Test exhaustion
	if tb.Allow() {
		t.Error("Expected no more tokens to be available")
	}

	// One token per second
	clock.now = clock.now.Add(1500 * time.Millisecond)
	if !tb.Allow() {
		t.Error("Expected a token after one interval")
	}
	if tb.Allow() {
		t.Error("Expected only one token after one interval")
	}

	// Never above capacity
	clock.now = clock.now.Add(time.Hour)
	if got := tb.Available(); got != 5 {
		t.Errorf("Expected 5 tokens after a long pause, got %d", got)
	}

	// Test reset
	tb.tokens = 0
	tb.Reset()
	if tb.tokens != tb.capacity {
		t.Error("Expected tokens to be reset to capacity")
	}
}

func TestTokenBucketWait(t *testing.T) {
	tb, clock := newTestBucket(2, time.Minute)

	tb.Wait()
	tb.Wait()
	if len(clock.slept) != 0 {
		t.Fatalf("Expected no sleeping while tokens remain, slept %v", clock.slept)
	}

	start := clock.now
	tb.Wait()
	if waited := clock.now.Sub(start); waited != 30*time.Second {
		t.Errorf("Expected to wait one interval (30s), waited %v", waited)
	}
}

func TestPerMinute(t *testing.T) {
	tb := PerMinute(60)
	if tb.interval != time.Second {
		t.Errorf("Expected 1s interval, got %v", tb.interval)
	}

	zero := PerMinute(0)
	if zero.capacity != 1 {
		t.Errorf("Expected capacity clamped to 1, got %d", zero.capacity)
	}
}

func TestUnlimited(t *testing.T) {
	var l Limiter = Unlimited{}
	for i := 0; i < 1000; i++ {
		if !l.Allow() {
			t.Fatal("Unlimited should always allow")
		}
	}
	l.Wait()
	l.Reset()
}
