package middleware

import (
	"context"
	"sync"
	"time"
)

// RateLimiter caps actions per key within a fixed window
type RateLimiter struct {
	limits map[int64]*windowLimit
	mu     sync.Mutex

	maxRequests int
	window      time.Duration
	now         func() time.Time
}

type windowLimit struct {
	requests  int
	resetTime time.Time
}

// NewRateLimiter creates a limiter allowing maxRequests per key per window
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	if maxRequests < 1 {
		maxRequests = 1
	}
	if window <= 0 {
		window = time.Minute
	}
	return &RateLimiter{
		limits:      make(map[int64]*windowLimit),
		maxRequests: maxRequests,
		window:      window,
		now:         time.Now,
	}
}

// Allow records one action for key and reports whether it is within the limit
func (rl *RateLimiter) Allow(key int64) bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()

	limit, exists := rl.limits[key]
	if !exists || now.After(limit.resetTime) {
		rl.limits[key] = &windowLimit{
			requests:  1,
			resetTime: now.Add(rl.window),
		}
		return true
	}

	if limit.requests >= rl.maxRequests {
		return false
	}

	limit.requests++
	return true
}

// Remaining returns how many actions key has left in its window
func (rl *RateLimiter) Remaining(key int64) int {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	limit, exists := rl.limits[key]
	if !exists || rl.now().After(limit.resetTime) {
		return rl.maxRequests
	}

	remaining := rl.maxRequests - limit.requests
	if remaining < 0 {
		return 0
	}
	return remaining
}

// RunCleanup drops expired windows every interval until ctx is done
func (rl *RateLimiter) RunCleanup(ctx context.Context, interval time.Duration) {
	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			rl.cleanup()
		}
	}
}

func (rl *RateLimiter) cleanup() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	for key, limit := range rl.limits {
		if now.After(limit.resetTime) {
			delete(rl.limits, key)
		}
	}
}
