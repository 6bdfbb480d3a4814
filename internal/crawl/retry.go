package crawl

import (
	"context"
	"time"

	"jobwatch-engine/internal/source"
)

// RetryPolicy is an explicit value passed into each fetch call site so retry
// behavior is testable without a real clock.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     func(attempt int) time.Duration // attempt is 1-based
}

func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{
		MaxAttempts: 3,
		Backoff: func(attempt int) time.Duration {
			return time.Duration(1<<(attempt-1)) * time.Second // 1s, 2s, 4s
		},
	}
}

// Do runs fn until it succeeds, fails non-transiently, or the attempt budget
// runs out. Backoff sleeps respect ctx.
func (p RetryPolicy) Do(ctx context.Context, fn func() error) error {
	var err error
	for attempt := 1; attempt <= p.MaxAttempts; attempt++ {
		if attempt > 1 {
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(p.Backoff(attempt - 1)):
			}
		}
		if err = fn(); err == nil {
			return nil
		}
		if !source.IsTransient(err) {
			return err
		}
	}
	return err
}
