// Package retry runs operations again with exponential backoff.
package retry

import (
	"context"
	"math"
	"math/rand"
	"time"
)

// Policy describes how often and how long to wait between attempts
type Policy struct {
	BaseDelay time.Duration
	MaxDelay  time.Duration
	Jitter    bool
	// MaxAttempts of zero retries until the context ends
	MaxAttempts int
}

// ExponentialBackoff doubles the delay after every failed attempt up to max
func ExponentialBackoff(base, max time.Duration, jitter bool, maxAttempts int) Policy {
	return Policy{
		BaseDelay:   base,
		MaxDelay:    max,
		Jitter:      jitter,
		MaxAttempts: maxAttempts,
	}
}

// Delay returns the wait before the attempt after the given one
func (p Policy) Delay(attempt int) time.Duration {
	if attempt <= 0 {
		attempt = 1
	}
	delay := time.Duration(float64(p.BaseDelay) * math.Pow(2, float64(attempt-1)))
	if p.MaxDelay > 0 && delay > p.MaxDelay {
		delay = p.MaxDelay
	}
	if p.Jitter {
		// scale into [0.8, 1.2)
		delay = time.Duration(float64(delay) * (rand.Float64()*0.4 + 0.8))
	}
	return delay
}

// Do calls fn until it succeeds, the attempts run out, ctx ends or
// retryable rejects the error. A nil retryable retries every error.
func Do(ctx context.Context, policy Policy, fn func(context.Context) error, retryable func(error) bool) error {
	var lastErr error
	for attempt := 1; policy.MaxAttempts == 0 || attempt <= policy.MaxAttempts; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if retryable != nil && !retryable(lastErr) {
			return lastErr
		}
		if policy.MaxAttempts != 0 && attempt == policy.MaxAttempts {
			break
		}

		timer := time.NewTimer(policy.Delay(attempt))
		select {
		case <-ctx.Done():
			timer.Stop()
			return ctx.Err()
		case <-timer.C:
		}
	}
	return lastErr
}
