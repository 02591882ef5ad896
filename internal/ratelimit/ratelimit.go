// Package ratelimit implements a keyed fixed-window rate limiter used to
// throttle API clients and per-indexer request bursts.
package ratelimit

import (
	"sync"
	"time"
)

// Result reports the outcome of a single limiter check.
type Result struct {
	Allowed   bool
	Remaining int
	ResetAt   time.Time
}

// RetryAfter returns how long the caller should wait before the window
// resets. It is zero when the request was allowed.
func (r Result) RetryAfter(now time.Time) time.Duration {
	if r.Allowed {
		return 0
	}
	wait := r.ResetAt.Sub(now)
	if wait < 0 {
		return 0
	}
	return wait
}

type window struct {
	start time.Time
	count int
}

// Limiter tracks request counts per key within fixed windows. Windows start
// on the first request for a key and never slide; the N+1th request inside a
// window is rejected and the counter resets when the window elapses.
type Limiter struct {
	mu      sync.Mutex
	windows map[string]*window
	now     func() time.Time

	lastPurge time.Time
}

// New constructs an empty limiter.
func New() *Limiter {
	return &Limiter{
		windows: make(map[string]*window),
		now:     time.Now,
	}
}

// NewWithClock constructs a limiter with an injectable clock for tests.
func NewWithClock(now func() time.Time) *Limiter {
	limiter := New()
	if now != nil {
		limiter.now = now
	}
	return limiter
}

// Allow records one request for key against the given limit and window size
// and reports whether it fits. Limit values below one always reject; window
// durations below one nanosecond always allow.
func (l *Limiter) Allow(key string, limit int, windowSize time.Duration) Result {
	now := l.now()

	if windowSize <= 0 {
		return Result{Allowed: true, Remaining: limit, ResetAt: now}
	}
	if limit <= 0 {
		return Result{Allowed: false, Remaining: 0, ResetAt: now.Add(windowSize)}
	}

	l.mu.Lock()
	defer l.mu.Unlock()

	l.purgeLocked(now, windowSize)

	entry, ok := l.windows[key]
	if !ok || now.Sub(entry.start) >= windowSize {
		entry = &window{start: now}
		l.windows[key] = entry
	}

	resetAt := entry.start.Add(windowSize)
	if entry.count >= limit {
		return Result{Allowed: false, Remaining: 0, ResetAt: resetAt}
	}

	entry.count++
	return Result{Allowed: true, Remaining: limit - entry.count, ResetAt: resetAt}
}

// purgeLocked drops expired windows so idle keys do not accumulate. Runs at
// most once per window to keep Allow O(1) in the common case.
func (l *Limiter) purgeLocked(now time.Time, windowSize time.Duration) {
	if now.Sub(l.lastPurge) < windowSize {
		return
	}
	l.lastPurge = now
	for key, entry := range l.windows {
		if now.Sub(entry.start) >= windowSize {
			delete(l.windows, key)
		}
	}
}

// Len reports the number of tracked keys. Intended for tests and metrics.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.windows)
}
