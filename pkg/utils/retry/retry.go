// Package retry repeats fallible calls with backoff.
//
// A call asks to be retried by returning an error wrapping ErrRetry.
// Any other error stops retrying.
package retry

import (
	"context"
	"errors"
	"fmt"
	"time"
)

var (
	// ErrRetry marks errors worth retrying.
	ErrRetry = errors.New("retry")

	// ErrGiveUp is returned by Backoff made by Limited when its attempts are exhausted.
	ErrGiveUp = errors.New("gave up retrying")
)

// Backoff blocks until the next attempt is allowed.
//
// It returns non-nil error to stop attempts, for example ctx.Err() on cancel.
type Backoff func(context.Context) error

// StaticBackoff waits interval before every attempt.
func StaticBackoff(interval time.Duration) Backoff {
	return ExponentialBackoff(interval, 1)
}

// ExponentialBackoff waits initial before the first attempt,
// and multiplies the wait by r for each next attempt.
func ExponentialBackoff(initial time.Duration, r float64) Backoff {
	wait := initial
	return func(ctx context.Context) error {
		timer := time.NewTimer(wait)
		defer timer.Stop()

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-timer.C:
			wait = time.Duration(float64(wait) * r)
			return nil
		}
	}
}

// Limited allows at most attempts (at least 1) attempts.
//
// The first attempt starts immediately, and later ones wait as b does.
func Limited(attempts int, b Backoff) Backoff {
	attempts = max(attempts, 1)
	tried := 0
	return func(ctx context.Context) error {
		tried++
		switch {
		case attempts < tried:
			return ErrGiveUp
		case tried == 1:
			return ctx.Err()
		default:
			return b(ctx)
		}
	}
}

// Blocking calls f after each backoff until f succeeds or fails with non-ErrRetry error.
//
// When b stops attempts, the error tells the last ErrRetry cause, if any.
func Blocking[T any](ctx context.Context, b Backoff, f func() (T, error)) (T, error) {
	var (
		ret  T
		last error
	)
	for {
		if err := b(ctx); err != nil {
			if last == nil {
				return ret, err
			}
			return ret, fmt.Errorf("%w (last error: %w)", err, last)
		}

		v, err := f()
		ret = v
		if err == nil || !errors.Is(err, ErrRetry) {
			return ret, err
		}
		last = err
	}
}
