// Package try shortens handling of (value, error) pairs where an error is fatal,
// in tests and in main functions.
package try

// Fataler is *testing.T, *log.Logger and so on.
type Fataler interface {
	Fatal(...any)
}

// Result is a (value, error) pair returned from a function call.
type Result[T any] struct {
	value T
	err   error
}

// To wraps a (value, error) pair.
//
//	conf := try.To(orchestrator.LoadOrchestratorConfig(path)).OrFatal(logger)
func To[T any](value T, err error) Result[T] {
	return Result[T]{value: value, err: err}
}

func (r Result[T]) Get() (T, error) {
	return r.value, r.err
}

// OrFatal returns the value, or calls ftl.Fatal with the error.
//
// When ftl has Helper() (like *testing.T), it is called before Fatal.
func (r Result[T]) OrFatal(ftl Fataler) T {
	if r.err == nil {
		return r.value
	}
	if hlp, ok := ftl.(interface{ Helper() }); ok {
		hlp.Helper()
	}
	ftl.Fatal(r.err)
	return *new(T)
}
