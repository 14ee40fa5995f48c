// Package field defines the semantic type tags attached to bound values and
// nested-path writes, and the conversions between them.
//
// # Field Types
//
//	field.TypeString    // text
//	field.TypeInt       // machine int
//	field.TypeInt64     // 64-bit int
//	field.TypeFloat     // float64
//	field.TypeBool      // boolean
//	field.TypeDate      // time.Time truncated to the day
//	field.TypeDateTime  // time.Time
//	field.TypeBytes     // []byte
//
// The zero value, TypeUnset, passes values through untouched.
//
// # Casting
//
//	v, err := field.Cast("42", field.TypeInt)   // 42
//	v, err := field.Cast(nil, field.TypeInt)    // nil, never an error
//	_, err := field.Cast("x", field.TypeInt)    // *portsql.CastError
//
// Null values (nil, typed nil pointers and driver.Valuer values reporting
// NULL) always cast to nil.
package field
