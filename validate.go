package observable

import "reflect"

// Kind is the runtime kind a value is verified against.
type Kind string

const (
	KindArray    Kind = "array"
	KindFunction Kind = "function"
	KindObject   Kind = "object"
	KindString   Kind = "string"
	KindNumber   Kind = "number"
	KindBoolean  Kind = "boolean"
)

// RequireNotNil fails with ErrInvalidArgument when value is nil.
// Typed nils (pointer, map, slice, func, chan, interface) and empty strings
// count as nil.
func RequireNotNil(value any, label string) error {
	if isNil(value) {
		return invalidArgument(label, "%s cannot be null", label)
	}
	return nil
}

// VerifyType fails with ErrInvalidArgument when the runtime kind of value
// does not match kind. Detection is structural, so named slice types and
// arrays both count as arrays.
func VerifyType(value any, kind Kind, label string) error {
	if kindOf(value) != kind {
		return invalidArgument(label, "Invalid type for %s. Expecting %s.", label, kind)
	}
	return nil
}

func isNil(value any) bool {
	if value == nil {
		return true
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Pointer, reflect.Map, reflect.Slice, reflect.Func, reflect.Chan, reflect.Interface:
		return v.IsNil()
	case reflect.String:
		return v.Len() == 0
	}
	return false
}

func kindOf(value any) Kind {
	if value == nil {
		return ""
	}
	v := reflect.ValueOf(value)
	switch v.Kind() {
	case reflect.Slice, reflect.Array:
		return KindArray
	case reflect.Func:
		// a nil func is not callable
		if v.IsNil() {
			return ""
		}
		return KindFunction
	case reflect.Struct, reflect.Map, reflect.Pointer, reflect.Interface:
		return KindObject
	case reflect.String:
		return KindString
	case reflect.Bool:
		return KindBoolean
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64,
		reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64, reflect.Uintptr,
		reflect.Float32, reflect.Float64:
		return KindNumber
	}
	return ""
}

// isComparable reports whether value can be used as a subscriber identity.
func isComparable(value any) bool {
	return reflect.TypeOf(value).Comparable()
}
