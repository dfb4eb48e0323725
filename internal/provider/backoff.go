package provider

import (
	"crypto/rand"
	"math"
	"math/big"
	"time"
)

// BackoffPolicy computes waits between retries of rate-limited requests.
type BackoffPolicy struct {
	maxRetries int
	baseDelay  time.Duration
	maxJitter  time.Duration
	maxDelay   time.Duration
}

// NewBackoffPolicy builds a policy allowing maxRetries retries after the first attempt.
func NewBackoffPolicy(maxRetries int, baseDelay, maxJitter, maxDelay time.Duration) *BackoffPolicy {
	if maxRetries < 0 {
		maxRetries = 0
	}
	return &BackoffPolicy{
		maxRetries: maxRetries,
		baseDelay:  baseDelay,
		maxJitter:  maxJitter,
		maxDelay:   maxDelay,
	}
}

// MaxRetries reports the retry ceiling.
func (p *BackoffPolicy) MaxRetries() int {
	return p.maxRetries
}

// ShouldRetry reports whether another attempt is allowed after the given zero-based attempt.
func (p *BackoffPolicy) ShouldRetry(attempt int) bool {
	return attempt < p.maxRetries
}

// Backoff returns the wait before the attempt following the given zero-based attempt.
// A positive hint (an upstream Retry-After) wins over the computed base*2^attempt+jitter.
// Both are capped at the policy's maximum delay.
func (p *BackoffPolicy) Backoff(attempt int, hint time.Duration) time.Duration {
	if hint > 0 {
		return p.capped(hint)
	}
	delay := float64(p.baseDelay) * math.Pow(2, float64(attempt))
	if p.maxDelay > 0 && delay > float64(p.maxDelay) {
		return p.maxDelay
	}
	return p.capped(time.Duration(delay) + p.randomJitter(p.maxJitter))
}

func (p *BackoffPolicy) capped(d time.Duration) time.Duration {
	if p.maxDelay > 0 && d > p.maxDelay {
		return p.maxDelay
	}
	return d
}

func (p *BackoffPolicy) randomJitter(limit time.Duration) time.Duration {
	if limit <= 0 {
		return 0
	}
	bound := big.NewInt(int64(limit))
	n, err := rand.Int(rand.Reader, bound)
	if err != nil {
		return limit / 2
	}
	return time.Duration(n.Int64())
}
