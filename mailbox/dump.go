package mailbox

import (
	"reflect"
	"strings"

	"github.com/sanity-io/litter"
)

//nolint:gochecknoglobals // Read only.
var dumper = litter.Options{
	Compact:           true,
	HidePrivateFields: true,
}

// dumpPayload renders a payload for debug logs. Fields that can reach state
// shared with other goroutines (pointers, interfaces, maps, channels, funcs)
// are shown by their type only: litter walks the whole value graph, private
// fields included, before it prints anything.
func dumpPayload(v any) string {
	if v == nil {
		return "nil"
	}

	rv := reflect.ValueOf(v)
	if isPlain(rv.Type(), nil) {
		return dumper.Sdump(v)
	}
	if rv.Kind() != reflect.Struct {
		return shallow(rv)
	}

	var b strings.Builder
	b.WriteString(rv.Type().String())
	b.WriteByte('{')

	first := true
	for i := range rv.NumField() {
		field := rv.Type().Field(i)
		if !field.IsExported() {
			continue
		}
		if !first {
			b.WriteString(", ")
		}
		first = false

		b.WriteString(field.Name)
		b.WriteString(": ")

		fv := rv.Field(i)
		if isPlain(field.Type, nil) {
			b.WriteString(dumper.Sdump(fv.Interface()))
		} else {
			b.WriteString(shallow(fv))
		}
	}

	b.WriteByte('}')
	return b.String()
}

func shallow(v reflect.Value) string {
	switch v.Kind() { //nolint:exhaustive // Only nillable kinds matter.
	case reflect.Interface:
		if v.IsNil() {
			return "nil"
		}
		return v.Elem().Type().String()
	case reflect.Pointer, reflect.Map, reflect.Chan, reflect.Func, reflect.Slice:
		if v.IsNil() {
			return "nil"
		}
	}
	return v.Type().String()
}

// isPlain reports whether values of t hold only data owned by the value itself.
func isPlain(t reflect.Type, seen map[reflect.Type]bool) bool {
	if seen[t] {
		return true
	}

	switch t.Kind() { //nolint:exhaustive // Everything else is not plain.
	case reflect.Bool, reflect.String,
		reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64, reflect.Complex64, reflect.Complex128:
		return true
	case reflect.Array, reflect.Slice:
		return isPlain(t.Elem(), seen)
	case reflect.Struct:
		if seen == nil {
			seen = make(map[reflect.Type]bool)
		}
		seen[t] = true
		for i := range t.NumField() {
			if !isPlain(t.Field(i).Type, seen) {
				return false
			}
		}
		return true
	default:
		return false
	}
}
