package ratelimit

import (
	"sync"
	"time"
)

const (
	DefaultWindow = 10 * time.Second
	DefaultLimit  = 5
)

// Decision is the outcome of a single CheckAndIncrement call.
type Decision struct {
	Allowed   bool
	Limit     int
	Remaining int
	ResetAt   time.Time
}

// RetryAfter is the time left until the client's window resets.
func (d Decision) RetryAfter(now time.Time) time.Duration {
	if d.Allowed || !d.ResetAt.After(now) {
		return 0
	}
	return d.ResetAt.Sub(now)
}

type entry struct {
	count       int
	windowStart time.Time
}

// Limiter is a fixed-window request counter keyed by client identifier.
// Entries are created lazily and live until the process exits unless
// ExpireIdle is called.
type Limiter struct {
	mu      sync.Mutex
	window  time.Duration
	limit   int
	entries map[string]*entry
}

func New(window time.Duration, limit int) *Limiter {
	if window <= 0 {
		window = DefaultWindow
	}
	if limit <= 0 {
		limit = DefaultLimit
	}
	return &Limiter{
		window:  window,
		limit:   limit,
		entries: make(map[string]*entry),
	}
}

func (l *Limiter) Window() time.Duration { return l.window }

func (l *Limiter) Limit() int { return l.limit }

// CheckAndIncrement counts one request for id at now. A rejected request
// does not consume from the window.
func (l *Limiter) CheckAndIncrement(id string, now time.Time) Decision {
	l.mu.Lock()
	defer l.mu.Unlock()

	e, ok := l.entries[id]
	if !ok {
		e = &entry{windowStart: now}
		l.entries[id] = e
	}
	if now.Sub(e.windowStart) > l.window {
		e.count = 0
		e.windowStart = now
	}

	d := Decision{
		Limit:   l.limit,
		ResetAt: e.windowStart.Add(l.window),
	}
	if e.count >= l.limit {
		return d
	}
	e.count++
	d.Allowed = true
	d.Remaining = l.limit - e.count
	return d
}

// Len reports the number of tracked clients.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}

// ExpireIdle drops entries whose window started more than idle ago.
// idle is clamped to the window so that a dropped entry is always one that
// would have been reset on its next request anyway.
func (l *Limiter) ExpireIdle(now time.Time, idle time.Duration) int {
	if idle < l.window {
		idle = l.window
	}
	l.mu.Lock()
	defer l.mu.Unlock()
	removed := 0
	for id, e := range l.entries {
		if now.Sub(e.windowStart) > idle {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}
