// Package runnererrors classifies failures of container platforms.
package runnererrors

import (
	"errors"

	xe "github.com/saveourtool/save-cloud/pkg/errors"
)

// failure is a message with an optional cause.
type failure struct {
	message string
	cause   error
}

func (f failure) String() string {
	switch {
	case f.cause == nil:
		return f.message
	case f.message == "":
		return "caused by: " + f.cause.Error()
	default:
		return f.message + " / caused by: " + f.cause.Error()
	}
}

// ErrMissing is a failure because the container, pod or job does not exist.
type ErrMissing struct{ failure }

func (e *ErrMissing) Error() string { return e.String() }
func (e *ErrMissing) Unwrap() error { return e.cause }

// ErrConflict is a failure because containers for the execution are already there.
type ErrConflict struct{ failure }

func (e *ErrConflict) Error() string { return e.String() }
func (e *ErrConflict) Unwrap() error { return e.cause }

// ErrContainerRunner is a failure because the container platform
// (k8s API server or docker daemon) rejected or mishandled a request.
type ErrContainerRunner struct{ failure }

func (e *ErrContainerRunner) Error() string { return e.String() }
func (e *ErrContainerRunner) Unwrap() error { return e.cause }

// ErrDeadlineExceeded tells stopping containers takes too long.
var ErrDeadlineExceeded = errors.New("deadline exceeded")

func NewMissingCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrMissing{failure{message, err}}, 1)
}

func NewConflict(message string) error {
	return xe.WrapAsOuter(&ErrConflict{failure{message: message}}, 1)
}

func NewConflictCausedBy(message string, err error) error {
	return xe.WrapAsOuter(&ErrConflict{failure{message, err}}, 1)
}

func NewContainerRunnerError(message string, err error) error {
	return xe.WrapAsOuter(&ErrContainerRunner{failure{message, err}}, 1)
}

func is[E error](err error) bool {
	var target E
	return err != nil && errors.As(err, &target)
}

func AsMissingError(err error) bool { return is[*ErrMissing](err) }

func AsConflict(err error) bool { return is[*ErrConflict](err) }

func AsContainerRunnerError(err error) bool { return is[*ErrContainerRunner](err) }
