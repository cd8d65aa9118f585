package gateway

import (
	"math"
	"math/rand"
	"time"
)

// retryPolicy implements jittered exponential backoff for transient
// gateway failures.
type retryPolicy struct {
	maxAttempts int
	baseDelay   time.Duration
	maxDelay    time.Duration
}

// shouldRetry reports whether another attempt is allowed after the given
// zero-based attempt number.
func (p retryPolicy) shouldRetry(attempt int) bool {
	return attempt < p.maxAttempts
}

// backoff returns the wait before the next attempt: half the capped
// exponential delay plus a random jitter of up to the other half.
func (p retryPolicy) backoff(attempt int) time.Duration {
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if delay > float64(p.maxDelay) {
		delay = float64(p.maxDelay)
	}
	half := time.Duration(delay / 2)
	if half <= 0 {
		return p.baseDelay
	}
	return half + time.Duration(rand.Int63n(int64(half)))
}
