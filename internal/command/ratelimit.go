package command

import (
	"time"

	"github.com/p-blackswan/channel-sweeper/internal/lru"
)

// maxTrackedUsers bounds the memory held by the limiter; the least recently
// active users are forgotten first.
const maxTrackedUsers = 10000

// RateLimiter implements a sliding window rate limiter per user.
type RateLimiter struct {
	maxRequests int
	window      time.Duration
	requests    *lru.Cache[string, []time.Time]
	now         func() time.Time
}

// NewRateLimiter creates a new rate limiter. A non-positive maxRequests
// disables limiting.
func NewRateLimiter(maxRequests int, window time.Duration) *RateLimiter {
	return &RateLimiter{
		maxRequests: maxRequests,
		window:      window,
		requests:    lru.New[string, []time.Time](maxTrackedUsers),
		now:         time.Now,
	}
}

// Allow checks if a request from the given key is allowed.
func (r *RateLimiter) Allow(key string) bool {
	if r == nil || r.maxRequests <= 0 {
		return true
	}

	now := r.now()
	cutoff := now.Add(-r.window)
	allowed := false

	r.requests.Update(key, func(times []time.Time, _ bool) []time.Time {
		valid := times[:0]
		for _, t := range times {
			if t.After(cutoff) {
				valid = append(valid, t)
			}
		}
		if len(valid) >= r.maxRequests {
			return valid
		}
		allowed = true
		return append(valid, now)
	})
	return allowed
}
