package ratelimit

import (
	"sync"
	"testing"
	"time"
)

var t0 = time.Date(2025, 1, 1, 12, 0, 0, 0, time.UTC)

func TestLimiterAllowsFiveThenRejects(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	for i := 0; i < 5; i++ {
		d := l.CheckAndIncrement("1.2.3.4", t0.Add(time.Duration(i)*time.Second))
		if !d.Allowed {
			t.Fatalf("request %d rejected, want allowed", i+1)
		}
		if d.Remaining != 4-i {
			t.Fatalf("request %d Remaining = %d, want %d", i+1, d.Remaining, 4-i)
		}
	}
	d := l.CheckAndIncrement("1.2.3.4", t0.Add(5*time.Second))
	if d.Allowed {
		t.Fatalf("6th request allowed, want rejected")
	}
	if got := d.RetryAfter(t0.Add(5 * time.Second)); got != 5*time.Second {
		t.Fatalf("RetryAfter = %v, want 5s", got)
	}
}

func TestLimiterRejectionDoesNotIncrement(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	for i := 0; i < 5; i++ {
		l.CheckAndIncrement("c", t0)
	}
	for i := 0; i < 10; i++ {
		if l.CheckAndIncrement("c", t0).Allowed {
			t.Fatalf("rejected client allowed on attempt %d", i)
		}
	}
	l.mu.Lock()
	count := l.entries["c"].count
	l.mu.Unlock()
	if count != 5 {
		t.Fatalf("count = %d, want 5", count)
	}
}

func TestLimiterWindowResetIsStrictlyGreater(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	for i := 0; i < 5; i++ {
		l.CheckAndIncrement("c", t0)
	}

	// Exactly one window later is still inside the window.
	if l.CheckAndIncrement("c", t0.Add(DefaultWindow)).Allowed {
		t.Fatalf("request at window boundary allowed, want rejected")
	}

	d := l.CheckAndIncrement("c", t0.Add(DefaultWindow+time.Millisecond))
	if !d.Allowed {
		t.Fatalf("request after window boundary rejected, want allowed")
	}
	if d.Remaining != 4 {
		t.Fatalf("Remaining = %d, want 4 after reset", d.Remaining)
	}
}

func TestLimiterClientsAreIndependent(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	for i := 0; i < 5; i++ {
		l.CheckAndIncrement("a", t0)
	}
	if l.CheckAndIncrement("a", t0).Allowed {
		t.Fatalf("client a should be limited")
	}
	if !l.CheckAndIncrement("b", t0).Allowed {
		t.Fatalf("client b should not be limited by client a")
	}
	if l.Len() != 2 {
		t.Fatalf("Len() = %d, want 2", l.Len())
	}
}

func TestLimiterExpireIdle(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	l.CheckAndIncrement("old", t0)
	l.CheckAndIncrement("fresh", t0.Add(55*time.Second))

	removed := l.ExpireIdle(t0.Add(61*time.Second), time.Minute)
	if removed != 1 {
		t.Fatalf("ExpireIdle() removed %d, want 1", removed)
	}
	if l.Len() != 1 {
		t.Fatalf("Len() = %d, want 1", l.Len())
	}

	// idle below the window is clamped: nothing inside the window is dropped.
	if got := l.ExpireIdle(t0.Add(60*time.Second), time.Millisecond); got != 0 {
		t.Fatalf("ExpireIdle() with short idle removed %d, want 0", got)
	}
}

func TestLimiterConcurrentAccessNeverExceedsLimit(t *testing.T) {
	l := New(DefaultWindow, DefaultLimit)
	var (
		wg      sync.WaitGroup
		mu      sync.Mutex
		allowed int
	)
	for i := 0; i < 50; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if l.CheckAndIncrement("shared", t0).Allowed {
				mu.Lock()
				allowed++
				mu.Unlock()
			}
		}()
	}
	wg.Wait()
	if allowed != DefaultLimit {
		t.Fatalf("allowed = %d, want %d", allowed, DefaultLimit)
	}
}
