// Package recurring builds loop tasks which keep running in background,
// and pace themselves by whether they found something to do.
package recurring

import (
	"context"
	"time"

	"github.com/saveourtool/save-cloud/pkg/loop"
)

// Task is a cycle of a recurring loop.
//
// It returns the new value, whether it did something, and an error of the cycle.
type Task[T any] func(context.Context, T) (T, bool, error)

// Policy decides what the loop does after a cycle.
type Policy interface {
	Next(busy bool, err error) loop.Next
}

// Forever never breaks the loop.
//
// While cycles are busy the next one starts at once, otherwise after cooldown.
// Errors are regarded as idle.
type Forever time.Duration

func (f Forever) Next(busy bool, err error) loop.Next {
	if busy && err == nil {
		return loop.Continue(0)
	}
	return loop.Continue(time.Duration(f))
}

// Applied makes loop.Task paced by p.
func (rt Task[T]) Applied(p Policy) loop.Task[T] {
	return func(ctx context.Context, value T) (T, loop.Next) {
		v, busy, err := rt(ctx, value)
		return v, p.Next(busy, err)
	}
}
