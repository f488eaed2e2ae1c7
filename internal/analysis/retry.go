package analysis

import (
	"context"
	"errors"
	"time"
)

type permanentError struct{ err error }

func (e *permanentError) Error() string { return e.err.Error() }
func (e *permanentError) Unwrap() error { return e.err }

// Permanent marks err as not worth retrying.
func Permanent(err error) error {
	if err == nil {
		return nil
	}
	return &permanentError{err: err}
}

// Backoff returns the delay to wait after the given failed attempt (1-based).
type Backoff func(attempt int) time.Duration

// FixedBackoff waits d between every pair of attempts.
func FixedBackoff(d time.Duration) Backoff {
	return func(int) time.Duration { return d }
}

// ExponentialBackoff waits base, 2*base, 4*base and so on, never more than max.
func ExponentialBackoff(base, max time.Duration) Backoff {
	return func(attempt int) time.Duration {
		d := base
		for i := 1; i < attempt; i++ {
			d *= 2
			if d >= max || d <= 0 {
				return max
			}
		}
		if d > max {
			return max
		}
		return d
	}
}

// SleepFunc blocks for d or until ctx is done.
type SleepFunc func(ctx context.Context, d time.Duration) error

// RetryPolicy bounds how often a completion is attempted.
type RetryPolicy struct {
	MaxAttempts int
	Backoff     Backoff
	Sleep       SleepFunc
	// OnFailure, when set, observes each failed attempt.
	OnFailure func(attempt int, err error)
}

// DefaultRetryPolicy makes 3 attempts 1.2s apart.
func DefaultRetryPolicy() RetryPolicy {
	return RetryPolicy{MaxAttempts: 3, Backoff: FixedBackoff(1200 * time.Millisecond)}
}

// Do calls fn until it succeeds or MaxAttempts is reached, sleeping only
// between attempts. It returns the last error. An error wrapped with
// Permanent stops the loop at once.
func (p RetryPolicy) Do(ctx context.Context, fn func(ctx context.Context) error) error {
	attempts := p.MaxAttempts
	if attempts < 1 {
		attempts = 1
	}
	sleep := p.Sleep
	if sleep == nil {
		sleep = contextSleep
	}

	var err error
	for attempt := 1; attempt <= attempts; attempt++ {
		if err = fn(ctx); err == nil {
			return nil
		}
		if p.OnFailure != nil {
			p.OnFailure(attempt, err)
		}
		var perm *permanentError
		if errors.As(err, &perm) || attempt == attempts {
			break
		}
		var d time.Duration
		if p.Backoff != nil {
			d = p.Backoff(attempt)
		}
		if serr := sleep(ctx, d); serr != nil {
			return serr
		}
	}
	return err
}

func contextSleep(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}
