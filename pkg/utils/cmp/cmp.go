package cmp

// SliceEq reports whether a and b have the same elements in the same order.
func SliceEq[T comparable](a []T, b []T) bool {
	return SliceEqWith(a, b, func(x T, y T) bool { return x == y })
}

func SliceEqWith[T any, U any](a []T, b []U, pred func(a T, b U) bool) bool {
	if len(a) != len(b) {
		return false
	}
	for nth := range a {
		if !pred(a[nth], b[nth]) {
			return false
		}
	}
	return true
}

// SliceContentEq reports whether a and b have same elements, ignoring order.
func SliceContentEq[T comparable](a, b []T) bool {
	return SliceContentEqWith(a, b, func(x, y T) bool { return x == y })
}

// SliceContentEqWith reports whether each element in a has its own
// equivalent element in b (and vice versa), ignoring order.
func SliceContentEqWith[S, T any](a []S, b []T, equiv func(S, T) bool) bool {
	if len(a) != len(b) {
		return false
	}

	used := make([]bool, len(b))
	for _, x := range a {
		found := false
		for nth, y := range b {
			if used[nth] || !equiv(x, y) {
				continue
			}
			used[nth] = true
			found = true
			break
		}
		if !found {
			return false
		}
	}
	return true
}

func MapEq[K comparable, V comparable](a map[K]V, b map[K]V) bool {
	if len(a) != len(b) {
		return false
	}
	for k, va := range a {
		vb, ok := b[k]
		if !ok || va != vb {
			return false
		}
	}
	return true
}
