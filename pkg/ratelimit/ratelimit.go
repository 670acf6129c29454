package ratelimit

import (
	"sync"
	"time"
)

// Limiter is a sliding-window counter keyed by client.
type Limiter struct {
	mu      sync.Mutex
	hits    map[string][]time.Time
	window  time.Duration
	maxHits int
	now     func() time.Time
}

func NewLimiter(window time.Duration, maxHits int) *Limiter {
	return &Limiter{
		hits:    make(map[string][]time.Time),
		window:  window,
		maxHits: maxHits,
		now:     time.Now,
	}
}

// Allow records a hit for key and reports whether it fits in the window.
func (l *Limiter) Allow(key string) bool {
	ok, _ := l.Reserve(key)
	return ok
}

// Reserve is Allow that also returns how long a rejected caller should wait
// before the oldest hit leaves the window.
func (l *Limiter) Reserve(key string) (bool, time.Duration) {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	valid := l.pruneLocked(key, now)

	if len(valid) >= l.maxHits {
		if len(valid) == 0 {
			return false, l.window
		}
		return false, valid[0].Add(l.window).Sub(now)
	}

	l.hits[key] = append(valid, now)
	return true, 0
}

// Sweep drops keys with no hits left in the window.
func (l *Limiter) Sweep() {
	l.mu.Lock()
	defer l.mu.Unlock()

	now := l.now()
	for key := range l.hits {
		l.pruneLocked(key, now)
	}
}

// Len returns the number of tracked keys.
func (l *Limiter) Len() int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return len(l.hits)
}

func (l *Limiter) pruneLocked(key string, now time.Time) []time.Time {
	hits, ok := l.hits[key]
	if !ok {
		return nil
	}
	windowStart := now.Add(-l.window)
	valid := hits[:0]
	for _, hit := range hits {
		if hit.After(windowStart) {
			valid = append(valid, hit)
		}
	}
	if len(valid) == 0 {
		delete(l.hits, key)
		return nil
	}
	l.hits[key] = valid
	return valid
}
