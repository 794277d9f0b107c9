package ratelimit

import (
	"context"
	"testing"
	"time"
)

type clock struct{ t time.Time }

func (c *clock) now() time.Time          { return c.t }
func (c *clock) advance(d time.Duration) { c.t = c.t.Add(d) }

func newTestLimiter(limit int, window time.Duration) (*Limiter, *clock) {
	c := &clock{t: time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)}
	l := New(limit, window)
	l.now = c.now
	return l, c
}

func TestAllowBurstAndRefill(t *testing.T) {
	l, c := newTestLimiter(3, time.Minute)
	for i := range 3 {
		if !l.Allow("a") {
			t.Fatalf("request %d rejected", i)
		}
	}
	if l.Allow("a") {
		t.Fatal("fourth request should be limited")
	}
	if !l.Allow("b") {
		t.Error("keys must not share a bucket")
	}
	if d := l.RetryAfter("a"); d <= 0 || d > 20*time.Second {
		t.Errorf("RetryAfter = %v", d)
	}

	c.advance(20 * time.Second)
	if !l.Allow("a") {
		t.Error("one token should refill after window/limit")
	}
	if l.Allow("a") {
		t.Error("only one token should have refilled")
	}
}

func TestResetAndEvict(t *testing.T) {
	l, c := newTestLimiter(1, time.Minute)
	l.Allow("a")
	l.Reset("a")
	if !l.Allow("a") {
		t.Error("Reset should restore a full bucket")
	}

	l.Allow("b")
	c.advance(90 * time.Second)
	l.Allow("a")
	c.advance(45 * time.Second)
	if n := l.evict(); n != 1 {
		t.Errorf("evicted %d, want 1", n)
	}
	if l.Len() != 1 {
		t.Errorf("Len = %d", l.Len())
	}
	if l.RetryAfter("missing") != 0 {
		t.Error("unknown key should not wait")
	}
}

func TestRunStops(t *testing.T) {
	l := New(1, time.Minute)
	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		l.Run(ctx, time.Millisecond)
		close(done)
	}()
	cancel()
	select {
	case <-done:
	case <-time.After(time.Second):
		t.Fatal("Run did not stop")
	}
}
