// Package loop runs a task repeatedly, threading a value through iterations.
package loop

import (
	"context"
	"fmt"
	"time"
)

// Next tells the loop what to do after a task.
//
// The zero value is Continue(0).
type Next struct {
	stop  bool
	err   error
	sleep time.Duration
}

func (n Next) String() string {
	switch {
	case n.err != nil:
		return fmt.Sprintf("[break] with error: %v", n.err)
	case n.stop:
		return "[break] without error"
	default:
		return fmt.Sprintf("[continue] interval: %s", n.sleep)
	}
}

// Continue runs the task again after interval.
func Continue(interval time.Duration) Next {
	return Next{sleep: interval}
}

// Break ends the loop. Start returns err.
func Break(err error) Next {
	return Next{stop: true, err: err}
}

// Task is a body of a loop.
//
// It takes the value it returned last time (or the initial value),
// and returns the new value with what the loop does next.
type Task[T any] func(context.Context, T) (T, Next)

// Start calls task repeatedly until it breaks or ctx is done.
//
// The value returned last is returned with error of Break or ctx.Err().
// Once ctx is done, no more task is started.
//
//	crashed, err := Start(ctx, 0, func(ctx context.Context, crashed int) (int, Next) {
//		n, err := svc.InspectHeartbeats(ctx, time.Now())
//		if err != nil {
//			return crashed, Break(err)
//		}
//		return crashed + n, Continue(10 * time.Second)
//	}, WithTimeout(30*time.Second))
func Start[T any](ctx context.Context, init T, task Task[T], options ...Option) (T, error) {
	value := init
	for {
		if err := ctx.Err(); err != nil {
			return value, err
		}

		v, next := run(ctx, value, task, options)
		value = v
		if next.stop {
			return value, next.err
		}

		if err := sleep(ctx, next.sleep); err != nil {
			return value, err
		}
	}
}

func run[T any](ctx context.Context, value T, task Task[T], options []Option) (T, Next) {
	for _, opt := range options {
		c, cancel := opt(ctx)
		defer cancel()
		ctx = c
	}
	return task(ctx, value)
}

func sleep(ctx context.Context, d time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
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

// Option derives the context passed to each task call.
type Option func(context.Context) (context.Context, context.CancelFunc)

// WithTimeout limits each task call up to d.
func WithTimeout(d time.Duration) Option {
	return func(ctx context.Context) (context.Context, context.CancelFunc) {
		return context.WithTimeout(ctx, d)
	}
}
