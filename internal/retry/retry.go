// Package retry runs an operation a bounded number of times with exponential backoff.
package retry

import (
	"context"
	"fmt"
	"time"
)

// Policy controls how often and how patiently an operation is retried.
type Policy struct {
	MaxAttempts int           // total attempts, at least 1
	Backoff     time.Duration // wait after the first failure, doubled each time
	MaxBackoff  time.Duration // 0 means uncapped
}

// Default mirrors the data provider contract: three attempts, one second apart and growing.
var Default = Policy{MaxAttempts: 3, Backoff: time.Second, MaxBackoff: 10 * time.Second}

// OnRetry is notified after a failed attempt that will be retried.
type OnRetry func(attempt int, err error, wait time.Duration)

// Delay returns the wait before attempt n+1 (n counts from 1).
func (p Policy) Delay(n int) time.Duration {
	if p.Backoff <= 0 {
		return 0
	}
	d := p.Backoff << uint(n-1)
	if d <= 0 || (p.MaxBackoff > 0 && d > p.MaxBackoff) {
		d = p.MaxBackoff
	}
	return d
}

// Do calls fn until it succeeds, attempts run out or ctx is cancelled.
// fn receives the 1-based attempt number.
func (p Policy) Do(ctx context.Context, fn func(attempt int) error, notify OnRetry) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	var lastErr error
	for i := 1; i <= attempts; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		err := fn(i)
		if err == nil {
			return nil
		}
		lastErr = err
		if i == attempts {
			break
		}
		wait := p.Delay(i)
		if notify != nil {
			notify(i, err, wait)
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
	return fmt.Errorf("all %d attempts failed: %w", attempts, lastErr)
}
