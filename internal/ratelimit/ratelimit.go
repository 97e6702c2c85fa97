package ratelimit

import (
	"sync"
	"time"

	"golang.org/x/time/rate"
)

// entry tracks the token bucket and last use of a single key.
type entry struct {
	lim      *rate.Limiter
	lastSeen time.Time
}

// Limiter implements a token-bucket rate limiter keyed by arbitrary string
// identifiers (e.g. client IP). Each key may burst up to limit requests and
// refills at limit per window.
type Limiter struct {
	mu      sync.Mutex
	entries map[string]*entry
	limit   int
	window  time.Duration
	now     func() time.Time // injectable clock for testing
}

// New creates a Limiter that allows limit requests per window.
func New(limit int, window time.Duration) *Limiter {
	if limit <= 0 {
		limit = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &Limiter{
		entries: make(map[string]*entry),
		limit:   limit,
		window:  window,
		now:     time.Now,
	}
}

func (l *Limiter) perSecond() rate.Limit {
	return rate.Limit(float64(l.limit) / l.window.Seconds())
}

// get returns the entry for key, creating one if it doesn't exist.
// Must be called with l.mu held.
func (l *Limiter) get(key string, now time.Time) *entry {
	e, ok := l.entries[key]
	if !ok {
		e = &entry{lim: rate.NewLimiter(l.perSecond(), l.limit)}
		l.entries[key] = e
	}
	e.lastSeen = now
	return e
}

// Allow checks whether a request identified by key is permitted. Returns true
// and consumes one token when allowed, false when the limit is exceeded.
func (l *Limiter) Allow(key string) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	return l.get(key, now).lim.AllowN(now, 1)
}

// Status returns the current rate-limit state for key. limit is the maximum
// number of tokens, remaining is the number of tokens left (floored to int),
// and resetAt is the time at which the bucket will be fully replenished.
func (l *Limiter) Status(key string) (limit int, remaining int, resetAt time.Time) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	tokens := l.get(key, now).lim.TokensAt(now)

	limit = l.limit
	remaining = int(tokens)
	if remaining < 0 {
		remaining = 0
	}

	deficit := float64(l.limit) - tokens
	if deficit <= 0 {
		resetAt = now
	} else {
		resetAt = now.Add(time.Duration(deficit / float64(l.perSecond()) * float64(time.Second)))
	}
	return
}

// Sweep forgets keys that have not been seen for longer than idle and returns
// how many were removed. idle is raised to the window: a key idle that long is
// back at a full bucket, so forgetting it changes no decision.
func (l *Limiter) Sweep(idle time.Duration) int {
	l.mu.Lock()
	defer l.mu.Unlock()

	if idle < l.window {
		idle = l.window
	}
	cutoff := l.now().Add(-idle)
	removed := 0
	for key, e := range l.entries {
		if e.lastSeen.Before(cutoff) {
			delete(l.entries, key)
			removed++
		}
	}
	return removed
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.entries)
}
