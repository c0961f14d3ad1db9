package retry

import (
	"context"
	"fmt"
	"time"

	"github.com/cenkalti/backoff/v4"
)

// Policy bounds how often and how patiently an operation is retried
type Policy struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
	// Jitter is the backoff randomization factor in [0, 1); zero gives exact delays
	Jitter float64
	// Timer replaces the wall-clock timer between attempts
	Timer backoff.Timer
	// OnRetry runs after a failed attempt that will be retried
	OnRetry func(attempt int, err error, next time.Duration)
}

// DefaultPolicy is three attempts with 1s then 2s between them
func DefaultPolicy() Policy {
	return Policy{
		MaxAttempts: 3,
		BaseDelay:   time.Second,
		MaxDelay:    30 * time.Second,
	}
}

// ExhaustedRetries is returned once every attempt has failed
type ExhaustedRetries struct {
	Attempts  int
	LastCause error
}

func (e *ExhaustedRetries) Error() string {
	return fmt.Sprintf("gave up after %d attempts: %v", e.Attempts, e.LastCause)
}

func (e *ExhaustedRetries) Unwrap() error {
	return e.LastCause
}

func (p Policy) backOff(ctx context.Context) backoff.BackOffContext {
	if p.MaxAttempts < 1 {
		p.MaxAttempts = 1
	}
	if p.BaseDelay <= 0 {
		p.BaseDelay = time.Second
	}
	if p.MaxDelay < p.BaseDelay {
		p.MaxDelay = p.BaseDelay
	}

	b := backoff.NewExponentialBackOff()
	b.InitialInterval = p.BaseDelay
	b.Multiplier = 2
	b.MaxInterval = p.MaxDelay
	b.RandomizationFactor = p.Jitter
	// attempts bound the run, not elapsed time
	b.MaxElapsedTime = 0

	return backoff.WithContext(backoff.WithMaxRetries(b, uint64(p.MaxAttempts-1)), ctx)
}

// WithRetry runs op until it succeeds or the policy gives up. Every error is retried.
// The delay before attempt n+1 is min(MaxDelay, BaseDelay*2^(n-1)).
func WithRetry[T any](ctx context.Context, op func(ctx context.Context) (T, error), p Policy) (T, error) {
	attempts := 0
	var lastErr error

	operation := func() (T, error) {
		attempts++
		v, err := op(ctx)
		if err != nil {
			lastErr = err
		}
		return v, err
	}

	notify := func(err error, next time.Duration) {
		if p.OnRetry != nil {
			p.OnRetry(attempts, err, next)
		}
	}

	v, err := backoff.RetryNotifyWithTimerAndData(operation, p.backOff(ctx), notify, p.Timer)
	if err == nil {
		return v, nil
	}

	var zero T
	if lastErr == nil {
		lastErr = err
	}
	return zero, &ExhaustedRetries{Attempts: attempts, LastCause: lastErr}
}
