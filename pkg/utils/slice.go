// Package utils has small generic helpers for slices.
package utils

// Map applies f to each element of s, keeping the order.
func Map[T, R any](s []T, f func(T) R) []R {
	ret := make([]R, 0, len(s))
	for _, v := range s {
		ret = append(ret, f(v))
	}
	return ret
}

// MapUntilError is Map with fallible f. It stops at the first error.
func MapUntilError[T, R any](s []T, f func(T) (R, error)) ([]R, error) {
	ret := make([]R, 0, len(s))
	for _, v := range s {
		r, err := f(v)
		if err != nil {
			return nil, err
		}
		ret = append(ret, r)
	}
	return ret, nil
}
