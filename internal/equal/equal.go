// Package equal provides the default value equality shared by signals,
// atoms and refs.
package equal

import "reflect"

// Default reports whether a and b are equal.
// Uses == for the common comparable kinds and reflect.DeepEqual otherwise,
// so slices, maps and structs compare by content. When T is an interface
// type the dynamic types must match as well.
func Default[T any](a, b T) bool {
	switch av := any(a).(type) {
	case int:
		return same(av, b)
	case int8:
		return same(av, b)
	case int16:
		return same(av, b)
	case int32:
		return same(av, b)
	case int64:
		return same(av, b)
	case uint:
		return same(av, b)
	case uint8:
		return same(av, b)
	case uint16:
		return same(av, b)
	case uint32:
		return same(av, b)
	case uint64:
		return same(av, b)
	case float32:
		return same(av, b)
	case float64:
		return same(av, b)
	case string:
		return same(av, b)
	case bool:
		return same(av, b)
	default:
		return reflect.DeepEqual(a, b)
	}
}

func same[V comparable](a V, b any) bool {
	bv, ok := b.(V)
	return ok && a == bv
}
