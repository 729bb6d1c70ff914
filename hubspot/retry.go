package hubspot

import (
	"context"
	"time"

	"churn-calculator/domain"
)

const (
	DefaultMaxAttempts    = 3
	DefaultInitialBackoff = 500 * time.Millisecond
)

// RetryPolicy decides how often and how patiently a CRM call is repeated.
type RetryPolicy struct {
	// MaxAttempts counts the first call; values below 1 mean a single attempt.
	MaxAttempts int
	// Backoff returns the wait after the given failed attempt (1-based).
	Backoff     func(attempt int) time.Duration
	IsRetryable func(err error) bool
	// Sleep waits for d; tests replace it to record delays.
	Sleep func(ctx context.Context, d time.Duration) error
	// OnRetry, when set, is called before each wait.
	OnRetry func(attempt int, delay time.Duration, err error)
}

// DefaultRetryPolicy retries transient failures three times in total,
// waiting 500ms and then 1s.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: DefaultMaxAttempts,
		Backoff:     ExponentialBackoff(DefaultInitialBackoff),
		IsRetryable: domain.IsRetryable,
		Sleep:       SleepContext,
	}
}

// ExponentialBackoff doubles initial after every failed attempt.
func ExponentialBackoff(initial time.Duration) func(attempt int) time.Duration {
	return func(attempt int) time.Duration {
		if attempt < 1 {
			attempt = 1
		}
		return initial * time.Duration(1<<(attempt-1))
	}
}

// SleepContext waits for d or until ctx is done.
func SleepContext(ctx context.Context, d time.Duration) error {
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-timer.C:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// WithOnRetry returns a copy of p reporting retries to fn.
func (p RetryPolicy) WithOnRetry(fn func(attempt int, delay time.Duration, err error)) RetryPolicy {
	p.OnRetry = fn
	return p
}

// Retry runs fn under policy p. It stops at the first success, the first
// non-retryable error, or when attempts run out, returning the last error.
func Retry[T any](ctx context.Context, p RetryPolicy, fn func(ctx context.Context) (T, error)) (T, error) {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	isRetryable := p.IsRetryable
	if isRetryable == nil {
		isRetryable = domain.IsRetryable
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = SleepContext
	}

	var (
		result T
		err    error
	)
	for attempt := 1; attempt <= attempts; attempt++ {
		result, err = fn(ctx)
		if err == nil {
			return result, nil
		}
		if attempt == attempts || !isRetryable(err) {
			break
		}

		var delay time.Duration
		if p.Backoff != nil {
			delay = p.Backoff(attempt)
		}
		if p.OnRetry != nil {
			p.OnRetry(attempt, delay, err)
		}
		if sleepErr := sleep(ctx, delay); sleepErr != nil {
			return result, err
		}
	}
	return result, err
}
