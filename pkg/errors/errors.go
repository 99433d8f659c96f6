// Package errors provides error wrappers remembering where they are wrapped.
//
//	return xe.Wrap(err)
//
// Messages are chained like `@ func "file" lN <- cause`;
// read `<-` as a newline to see them as a stack trace.
package errors

import (
	"errors"
	"fmt"
	"runtime"
)

// Frame is a location in the source.
type Frame struct {
	Func string
	File string
	Line int
}

func (f Frame) String() string {
	return fmt.Sprintf(`@ %s "%s" l%d`, f.Func, f.File, f.Line)
}

// Traced is an error with the Frame where it is wrapped.
type Traced struct {
	Frame
	err error
}

func (e *Traced) Error() string {
	return e.Frame.String() + " <- " + e.err.Error()
}

func (e *Traced) Unwrap() error {
	return e.err
}

// New is errors.New with Frame of its caller.
func New(text string) error {
	return trace(errors.New(text), 1)
}

// Wrap annotates err with Frame of its caller. nil stays nil.
func Wrap(err error) error {
	return trace(err, 1)
}

// WrapAsOuter annotates err with Frame of a caller depth levels above.
//
// WrapAsOuter(err, 0) is equivalent to Wrap(err).
func WrapAsOuter(err error, depth int) error {
	return trace(err, depth+1)
}

func trace(err error, depth int) error {
	if err == nil {
		return nil
	}
	fr := Frame{Func: "(unknown func)", File: "?", Line: -1}
	if pc, file, line, ok := runtime.Caller(depth + 1); ok {
		fr.File, fr.Line = file, line
		if fn := runtime.FuncForPC(pc); fn != nil {
			fr.Func = fn.Name()
		}
	}
	return &Traced{Frame: fr, err: err}
}
