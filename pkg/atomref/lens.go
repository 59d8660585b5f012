package atomref

import (
	"fmt"
	"reflect"
	"strconv"
)

// Lens focuses on one part F of a value A. Set must not modify its
// argument; it returns an updated copy.
type Lens[A, F any] struct {
	// Key names the focused part in paths.
	Key string

	Get func(A) F
	Set func(A, F) A
}

// NewLens builds a lens from a getter and a copy-on-write setter.
func NewLens[A, F any](key string, get func(A) F, set func(A, F) A) Lens[A, F] {
	return Lens[A, F]{Key: key, Get: get, Set: set}
}

// MapKey focuses on the entry k of a map. Reading a missing key yields the
// zero value; setting copies the map.
func MapKey[K comparable, V any](k K) Lens[map[K]V, V] {
	return Lens[map[K]V, V]{
		Key: fmt.Sprint(k),
		Get: func(m map[K]V) V {
			return m[k]
		},
		Set: func(m map[K]V, v V) map[K]V {
			out := make(map[K]V, len(m)+1)
			for key, val := range m {
				out[key] = val
			}
			out[k] = v
			return out
		},
	}
}

// Index focuses on element i of a slice. Out of range reads yield the zero
// value and out of range writes leave the slice unchanged.
func Index[E any](i int) Lens[[]E, E] {
	return Lens[[]E, E]{
		Key: strconv.Itoa(i),
		Get: func(s []E) E {
			if i < 0 || i >= len(s) {
				var zero E
				return zero
			}
			return s[i]
		},
		Set: func(s []E, e E) []E {
			if i < 0 || i >= len(s) {
				return s
			}
			out := append([]E(nil), s...)
			out[i] = e
			return out
		},
	}
}

// StructField focuses on the exported field name of struct type S. It
// panics when S has no such field or the field's type is not F.
func StructField[S, F any](name string) Lens[S, F] {
	st := reflect.TypeOf((*S)(nil)).Elem()
	if st.Kind() != reflect.Struct {
		panic(fmt.Sprintf("atomref: %s is not a struct", st))
	}
	sf, ok := st.FieldByName(name)
	if !ok || !sf.IsExported() {
		panic(fmt.Sprintf("atomref: %s has no exported field %s", st, name))
	}
	ft := reflect.TypeOf((*F)(nil)).Elem()
	if sf.Type != ft {
		panic(fmt.Sprintf("atomref: field %s.%s is %s, not %s", st, name, sf.Type, ft))
	}

	return Lens[S, F]{
		Key: name,
		Get: func(s S) F {
			var out F
			reflect.ValueOf(&out).Elem().Set(reflect.ValueOf(&s).Elem().FieldByIndex(sf.Index))
			return out
		},
		Set: func(s S, f F) S {
			v := reflect.ValueOf(&s).Elem()
			v.FieldByIndex(sf.Index).Set(reflect.ValueOf(&f).Elem())
			return s
		},
	}
}

// Compose focuses inner on the part outer focuses on.
func Compose[A, B, C any](outer Lens[A, B], inner Lens[B, C]) Lens[A, C] {
	return Lens[A, C]{
		Key: outer.Key + "." + inner.Key,
		Get: func(a A) C {
			return inner.Get(outer.Get(a))
		},
		Set: func(a A, c C) A {
			return outer.Set(a, inner.Set(outer.Get(a), c))
		},
	}
}
