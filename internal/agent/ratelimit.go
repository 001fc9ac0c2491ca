package agent

import (
	"sync"
	"time"
)

// RateLimiter spaces out analysis runs per trigger source
type RateLimiter struct {
	mu      sync.RWMutex
	lastRun map[string]time.Time
	now     func() time.Time
}

// NewRateLimiter creates a limiter reading time from now
func NewRateLimiter(now func() time.Time) *RateLimiter {
	if now == nil {
		now = time.Now
	}
	return &RateLimiter{
		lastRun: make(map[string]time.Time),
		now:     now,
	}
}

// Allow reports whether source may run again and, if so, records the run
func (rl *RateLimiter) Allow(source string, minInterval time.Duration) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	if last, ok := rl.lastRun[source]; ok && now.Sub(last) < minInterval {
		return false
	}
	rl.lastRun[source] = now
	return true
}

// Record marks a run for source without checking the interval.
// Forced triggers use it so they still delay the next regular one.
func (rl *RateLimiter) Record(source string) {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.lastRun[source] = rl.now()
}

// Last returns the time of the last run for source
func (rl *RateLimiter) Last(source string) (time.Time, bool) {
	rl.mu.RLock()
	defer rl.mu.RUnlock()

	t, ok := rl.lastRun[source]
	return t, ok
}
