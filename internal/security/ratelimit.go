package security

// ratelimit.go implements the sliding-window limiter that guards file
// uploads. Unlike a token bucket, the window slides continuously: an
// attempt ages out exactly window after it was recorded, so "10 per
// minute" holds over any 60s span, not per calendar minute.

import (
	"sync"
	"time"
)

// DefaultUploadAttempts is the default number of uploads allowed per window.
const DefaultUploadAttempts = 10

// DefaultUploadWindow is the default sliding window length.
const DefaultUploadWindow = time.Minute

// RateLimiter is a sliding-window attempt limiter. One shared instance
// guards uploads process-wide. Safe for concurrent use.
type RateLimiter struct {
	mu          sync.Mutex
	attempts    []time.Time
	maxAttempts int
	window      time.Duration
	now         func() time.Time
}

// NewRateLimiter creates a limiter allowing maxAttempts per window.
// Non-positive arguments fall back to the defaults.
func NewRateLimiter(maxAttempts int, window time.Duration) *RateLimiter {
	if maxAttempts <= 0 {
		maxAttempts = DefaultUploadAttempts
	}
	if window <= 0 {
		window = DefaultUploadWindow
	}

	return &RateLimiter{
		maxAttempts: maxAttempts,
		window:      window,
		now:         time.Now,
	}
}

// Allow prunes attempts older than the window, then either records the
// attempt and returns true, or returns false without recording when
// the limiter is at capacity.
func (rl *RateLimiter) Allow() bool {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if len(rl.attempts) >= rl.maxAttempts {
		return false
	}

	rl.attempts = append(rl.attempts, now)
	return true
}

// RemainingTime returns how long until the oldest in-window attempt
// ages out, or 0 if the limiter is under capacity.
func (rl *RateLimiter) RemainingTime() time.Duration {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	now := rl.now()
	rl.prune(now)

	if len(rl.attempts) < rl.maxAttempts {
		return 0
	}

	oldest := rl.attempts[0]
	remaining := rl.window - now.Sub(oldest)
	if remaining < 0 {
		return 0
	}
	return remaining
}

// prune drops attempts older than the window. Attempts are recorded in
// order, so the slice stays sorted and the oldest is always first.
// Caller must hold mu.
func (rl *RateLimiter) prune(now time.Time) {
	cutoff := 0
	for cutoff < len(rl.attempts) && now.Sub(rl.attempts[cutoff]) >= rl.window {
		cutoff++
	}
	if cutoff > 0 {
		rl.attempts = append(rl.attempts[:0], rl.attempts[cutoff:]...)
	}
}
