package outbound

import (
	"context"
	"sync"
	"time"
)

// RateLimiter is a token-bucket limiter with an additional minimum spacing
// between grants, per spec.md §4.9's "20/s reservoir, inter-call min-spacing
// 50 ms" requirement. The framework fallback in the teacher's voice backend
// (pkg/voice/backend/internal/rate_limiter.go) is a plain token bucket; this
// adds the min-spacing floor the outbound controller also needs.
type RateLimiter struct {
	mu sync.Mutex

	ratePerSecond int
	reservoir     int
	minSpacing    time.Duration

	tokens       float64
	lastRefill   time.Time
	lastGrantedAt time.Time
}

// NewRateLimiter constructs a RateLimiter. ratePerSecond<=0 defaults to 20,
// reservoir<=0 defaults to ratePerSecond, minSpacing<0 defaults to 50ms.
func NewRateLimiter(ratePerSecond, reservoir int, minSpacing time.Duration) *RateLimiter {
	if ratePerSecond <= 0 {
		ratePerSecond = 20
	}
	if reservoir <= 0 {
		reservoir = ratePerSecond
	}
	if minSpacing < 0 {
		minSpacing = 50 * time.Millisecond
	}
	return &RateLimiter{
		ratePerSecond: ratePerSecond,
		reservoir:     reservoir,
		minSpacing:    minSpacing,
		tokens:        float64(reservoir),
		lastRefill:    time.Now(),
	}
}

// Allow reports whether a call may be placed now, consuming a token and
// updating the spacing floor if so.
func (r *RateLimiter) Allow() bool {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := time.Now()
	elapsed := now.Sub(r.lastRefill).Seconds()
	r.tokens += elapsed * float64(r.ratePerSecond)
	if r.tokens > float64(r.reservoir) {
		r.tokens = float64(r.reservoir)
	}
	r.lastRefill = now

	if !r.lastGrantedAt.IsZero() && now.Sub(r.lastGrantedAt) < r.minSpacing {
		return false
	}
	if r.tokens < 1.0 {
		return false
	}

	r.tokens -= 1.0
	r.lastGrantedAt = now
	return true
}

// Wait blocks until a call may be placed, or ctx is cancelled. It is the
// pacing half of the rate limiter: where Allow is a non-blocking check, Wait
// is what the outbound controller uses before every provider call.
func (r *RateLimiter) Wait(ctx context.Context) error {
	const pollInterval = 5 * time.Millisecond
	for {
		if r.Allow() {
			return nil
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(pollInterval):
		}
	}
}
