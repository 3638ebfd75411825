package handlers

import (
	"strings"
	"sync"
	"time"
)

type rateLimiter interface {
	Allow(key string) bool
}

// fixedWindowLimiter counts requests per key inside a fixed window. The
// first request after a window lapses resets the count, so short bursts
// right at a window boundary can briefly see up to 2x the limit. That is
// acceptable for an abuse guard in front of cart and order traffic.
type fixedWindowLimiter struct {
	limit  int
	window time.Duration
	clock  func() time.Time

	mu      sync.Mutex
	windows map[string]rateWindow
}

type rateWindow struct {
	count   int
	resetAt time.Time
}

func newFixedWindowLimiter(limit int, window time.Duration, clock func() time.Time) rateLimiter {
	if limit <= 0 || window <= 0 {
		return nil
	}
	if clock == nil {
		clock = time.Now
	}
	return &fixedWindowLimiter{
		limit:   limit,
		window:  window,
		clock:   clock,
		windows: make(map[string]rateWindow),
	}
}

func (l *fixedWindowLimiter) Allow(key string) bool {
	if l == nil {
		return true
	}
	key = strings.TrimSpace(key)
	if key == "" {
		key = "anonymous"
	}

	now := l.clock()
	l.mu.Lock()
	defer l.mu.Unlock()

	current, ok := l.windows[key]
	if !ok || now.After(current.resetAt) {
		l.dropLapsedLocked(now)
		l.windows[key] = rateWindow{count: 1, resetAt: now.Add(l.window)}
		return true
	}

	if current.count >= l.limit {
		return false
	}
	current.count++
	l.windows[key] = current
	return true
}

// dropLapsedLocked evicts keys whose window has passed so idle actors do
// not accumulate forever. Called with the lock held.
func (l *fixedWindowLimiter) dropLapsedLocked(now time.Time) {
	for key, w := range l.windows {
		if now.After(w.resetAt) {
			delete(l.windows, key)
		}
	}
}
