// Package hook calls external parties around lifecycle events of Executions.
package hook

import (
	"context"
	"errors"
	"fmt"
)

// ErrHookFailed marks errors caused by hooks.
var ErrHookFailed = errors.New("hook failed")

// Hook is notified before and after an event about T.
//
// Before can answer R. When Before returns an error, the event should not happen.
type Hook[T any, R any] interface {
	Before(context.Context, T) (R, error)
	After(context.Context, T) error
}

// None is a Hook doing nothing.
type None[T any, R any] struct{}

func (None[T, R]) Before(context.Context, T) (R, error) {
	var zero R
	return zero, nil
}

func (None[T, R]) After(context.Context, T) error {
	return nil
}

// Func is a Hook calling functions in-process. nil functions are skipped.
type Func[T any, R any] struct {
	BeforeFn func(T) (R, error)
	AfterFn  func(T) error
}

func (f Func[T, R]) Before(_ context.Context, value T) (R, error) {
	var ret R
	if f.BeforeFn == nil {
		return ret, nil
	}
	ret, err := f.BeforeFn(value)
	return ret, failed(err)
}

func (f Func[T, R]) After(_ context.Context, value T) error {
	if f.AfterFn == nil {
		return nil
	}
	return failed(f.AfterFn(value))
}

func failed(err error) error {
	if err == nil || errors.Is(err, ErrHookFailed) {
		return err
	}
	return fmt.Errorf("%w: %w", ErrHookFailed, err)
}
