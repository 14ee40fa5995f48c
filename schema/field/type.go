package field

import (
	"database/sql/driver"
	"reflect"
)

// Type is a semantic type tag for a bound value or a nested field.
type Type uint8

// List of field types.
const (
	TypeUnset Type = iota
	TypeString
	TypeInt
	TypeInt64
	TypeFloat
	TypeBool
	TypeDate
	TypeDateTime
	TypeBytes
	endTypes
)

var typeNames = [...]string{
	TypeUnset:    "unset",
	TypeString:   "string",
	TypeInt:      "int",
	TypeInt64:    "int64",
	TypeFloat:    "float",
	TypeBool:     "bool",
	TypeDate:     "date",
	TypeDateTime: "datetime",
	TypeBytes:    "bytes",
}

// String returns the type name.
func (t Type) String() string {
	if t < endTypes {
		return typeNames[t]
	}
	return "invalid"
}

// Valid reports if the given type is known.
func (t Type) Valid() bool {
	return t > TypeUnset && t < endTypes
}

// Numeric reports if the given type is a numeric type.
func (t Type) Numeric() bool {
	return t == TypeInt || t == TypeInt64 || t == TypeFloat
}

// Time reports if the given type is a date or datetime type.
func (t Type) Time() bool {
	return t == TypeDate || t == TypeDateTime
}

// ParseType returns the type registered under the given name.
func ParseType(name string) (Type, bool) {
	for t, n := range typeNames {
		if n == name && Type(t) != TypeUnset {
			return Type(t), true
		}
	}
	return TypeUnset, false
}

// IsNull reports if v represents SQL NULL: nil, a typed nil pointer, or a
// driver.Valuer (sql.NullString and friends) whose value is nil.
func IsNull(v any) bool {
	if v == nil {
		return true
	}
	if rv := reflect.ValueOf(v); rv.Kind() == reflect.Pointer && rv.IsNil() {
		return true
	}
	if vr, ok := v.(driver.Valuer); ok {
		dv, err := vr.Value()
		return err == nil && dv == nil
	}
	return false
}
