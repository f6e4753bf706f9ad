package typeutils

import (
	"fmt"
	"reflect"
)

func Zero[T any]() T {
	var zero T
	return zero
}

// TypeOf returns the static type T, including interface types
// which reflect.TypeOf would resolve to their dynamic type.
func TypeOf[T any]() reflect.Type {
	return reflect.TypeFor[T]()
}

// Name returns a printable name for v's dynamic type, "<nil>" for nil.
func Name(v any) string {
	return fmt.Sprintf("%T", v)
}
