package retry

import (
	"context"
	"time"
)

// Policy retries an operation with exponential backoff. Attempts counts the
// first call, so Attempts: 3 means at most two retries.
type Policy struct {
	Attempts   int
	Delay      time.Duration
	MaxDelay   time.Duration
	Multiplier float64
}

func (p Policy) normalized() Policy {
	if p.Attempts <= 0 {
		p.Attempts = 1
	}
	if p.Multiplier < 1 {
		p.Multiplier = 2
	}
	return p
}

// Backoff is the wait before retry number n (1-based).
func (p Policy) Backoff(n int) time.Duration {
	p = p.normalized()

	d := p.Delay
	for i := 1; i < n; i++ {
		d = time.Duration(float64(d) * p.Multiplier)
		if p.MaxDelay > 0 && d >= p.MaxDelay {
			return p.MaxDelay
		}
	}
	return d
}

// Do calls fn until it succeeds, the attempts run out, retryable reports
// false, or ctx is done. onRetry may be nil.
func (p Policy) Do(ctx context.Context, retryable func(error) bool, onRetry func(attempt int, wait time.Duration, err error), fn func(ctx context.Context) error) error {
	p = p.normalized()

	var err error
	for attempt := 1; ; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}

		if attempt >= p.Attempts || (retryable != nil && !retryable(err)) {
			return err
		}

		wait := p.Backoff(attempt)
		if onRetry != nil {
			onRetry(attempt, wait, err)
		}

		timer := time.NewTimer(wait)
		select {
		case <-ctx.Done():
			timer.Stop()
			return err
		case <-timer.C:
		}
	}
}
