package registry

import (
	"context"
	"math"
	"time"
)

// RetryPolicy governs retries for network operations. Delay for attempt n
// (0-indexed) is min(InitialDelay * BackoffMultiplier^n, MaxDelay).
type RetryPolicy struct {
	MaxRetries        int
	InitialDelay      time.Duration
	BackoffMultiplier float64
	MaxDelay          time.Duration
}

// DefaultRetryPolicy returns the policy used for registry lookups.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxRetries:        2,
		InitialDelay:      200 * time.Millisecond,
		BackoffMultiplier: 2.0,
		MaxDelay:          2 * time.Second,
	}
}

// Delay returns the backoff delay before retry attempt n.
func (p RetryPolicy) Delay(attempt int) time.Duration {
	d := time.Duration(float64(p.InitialDelay) * math.Pow(p.BackoffMultiplier, float64(attempt)))
	if d > p.MaxDelay {
		return p.MaxDelay
	}
	return d
}

// Do runs op up to MaxRetries+1 times, sleeping the policy delay between
// attempts. It stops early when the context is cancelled.
func (p RetryPolicy) Do(ctx context.Context, op func() error) error {
	var err error
	for attempt := 0; attempt <= p.MaxRetries; attempt++ {
		if err = op(); err == nil {
			return nil
		}
		if attempt == p.MaxRetries {
			break
		}
		select {
		case <-time.After(p.Delay(attempt)):
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return err
}
