package mocks

// CallLog records arguments passed to a mocked method, in call order.
type CallLog[T any] []T

func (l CallLog[T]) Times() uint {
	return uint(len(l))
}

// Last returns arguments of the latest call. It panics when never called.
func (l CallLog[T]) Last() T {
	return l[len(l)-1]
}
