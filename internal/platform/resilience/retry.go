package resilience

import (
	"context"
	"time"
)

// Do runs fn until it succeeds, returns a non-retryable error, the context
// ends, or MaxAttempts calls have been made. The last error is returned.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}

	var lastErr error
	for attempt := 0; attempt < attempts; attempt++ {
		lastErr = fn(ctx)
		if lastErr == nil {
			return nil
		}
		if p.Retryable == nil || !p.Retryable(lastErr) || attempt == attempts-1 {
			return lastErr
		}

		wait := p.delay(attempt)
		if p.OnRetry != nil {
			p.OnRetry(attempt+1, wait, lastErr)
		}
		if err := Sleep(ctx, wait); err != nil {
			return err
		}
	}
	return lastErr
}

// Sleep waits for d or until ctx is done.
func Sleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
