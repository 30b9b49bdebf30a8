// rate_limiter.go - Client-side pacing for Gemini API calls

package ratelimit

import (
	"sync"
	"time"
)

// RateLimiter implements a simple token bucket limiter. A token is consumed
// per model call; tokens refill at a fixed interval.
type RateLimiter struct {
	tokens         int
	maxTokens      int
	refillRate     time.Duration
	lastRefillTime time.Time
	mu             sync.Mutex
}

// NewRateLimiter creates a new rate limiter.
// maxTokens: burst capacity, refillRate: time between token refills.
func NewRateLimiter(maxTokens int, refillRate time.Duration) *RateLimiter {
	return &RateLimiter{
		tokens:         maxTokens,
		maxTokens:      maxTokens,
		refillRate:     refillRate,
		lastRefillTime: time.Now(),
	}
}

// Wait blocks until a token is available.
func (rl *RateLimiter) Wait() {
	rl.mu.Lock()
	defer rl.mu.Unlock()

	rl.refill()

	for rl.tokens <= 0 {
		rl.mu.Unlock()
		time.Sleep(100 * time.Millisecond)
		rl.mu.Lock()
		rl.refill()
	}

	rl.tokens--
}

// refill adds tokens for the time elapsed since the last refill.
// Caller must hold rl.mu.
func (rl *RateLimiter) refill() {
	now := time.Now()
	tokensToAdd := int(now.Sub(rl.lastRefillTime) / rl.refillRate)
	if tokensToAdd > 0 {
		rl.tokens += tokensToAdd
		if rl.tokens > rl.maxTokens {
			rl.tokens = rl.maxTokens
		}
		rl.lastRefillTime = now
	}
}

// Global limiter shared by every stage of a run. The pipeline is strictly
// sequential, but extraction sections and reconciliation batches can still
// burst well past 15 RPM without pacing. 12 tokens refilled every 5s keeps
// a safety margin under the free-tier limit.
var globalRateLimiter = NewRateLimiter(12, 5*time.Second)

// WaitForRateLimit paces the next Gemini call.
func WaitForRateLimit() {
	globalRateLimiter.Wait()
}
