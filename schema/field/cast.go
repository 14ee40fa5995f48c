package field

import (
	"database/sql/driver"
	"errors"
	"fmt"
	"math"
	"reflect"
	"strconv"
	"strings"
	"time"

	"github.com/syssam/portsql"
)

// Layouts used when parsing and formatting time values.
const (
	DateLayout     = "2006-01-02"
	DateTimeLayout = "2006-01-02 15:04:05"
)

// timeLayouts are tried in order when a string is cast to a time type.
var timeLayouts = []string{
	time.RFC3339Nano,
	DateTimeLayout,
	"2006-01-02T15:04:05",
	DateLayout,
}

var errOutOfRange = errors.New("value out of range")

// Cast converts v to the Go representation of t. Null values cast to nil.
// A conversion that is not representable returns a *portsql.CastError
// carrying the target type name.
func Cast(v any, t Type) (any, error) {
	if IsNull(v) {
		return nil, nil
	}
	if t == TypeUnset {
		return v, nil
	}
	v = indirect(v)
	var (
		out any
		err error
	)
	switch t {
	case TypeString:
		out, err = toString(v)
	case TypeInt:
		var n int64
		if n, err = toInt64(v); err == nil {
			if n < math.MinInt || n > math.MaxInt {
				err = errOutOfRange
			}
			out = int(n)
		}
	case TypeInt64:
		out, err = toInt64(v)
	case TypeFloat:
		out, err = toFloat64(v)
	case TypeBool:
		out, err = toBool(v)
	case TypeDate:
		var tm time.Time
		if tm, err = toTime(v); err == nil {
			out = time.Date(tm.Year(), tm.Month(), tm.Day(), 0, 0, 0, 0, tm.Location())
		}
	case TypeDateTime:
		out, err = toTime(v)
	case TypeBytes:
		out, err = toBytes(v)
	default:
		return nil, portsql.NewCastError(t.String(), v, nil)
	}
	if err != nil {
		if errors.Is(err, errUnsupported) {
			err = nil
		}
		return nil, portsql.NewCastError(t.String(), v, err)
	}
	return out, nil
}

// MustCast is like Cast but panics on error. Intended for static values.
func MustCast(v any, t Type) any {
	out, err := Cast(v, t)
	if err != nil {
		panic(err)
	}
	return out
}

var errUnsupported = errors.New("unsupported source type")

// indirect unwraps driver.Valuer values and non-nil pointers.
func indirect(v any) any {
	if vr, ok := v.(driver.Valuer); ok {
		if dv, err := vr.Value(); err == nil && dv != nil {
			v = dv
		}
	}
	rv := reflect.ValueOf(v)
	for rv.Kind() == reflect.Pointer && !rv.IsNil() {
		rv = rv.Elem()
	}
	return rv.Interface()
}

func toString(v any) (string, error) {
	switch v := v.(type) {
	case string:
		return v, nil
	case []byte:
		return string(v), nil
	case time.Time:
		return v.Format(time.RFC3339), nil
	case bool:
		return strconv.FormatBool(v), nil
	case fmt.Stringer:
		return v.String(), nil
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return strconv.FormatInt(rv.Int(), 10), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return strconv.FormatUint(rv.Uint(), 10), nil
	case reflect.Float32:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 32), nil
	case reflect.Float64:
		return strconv.FormatFloat(rv.Float(), 'f', -1, 64), nil
	case reflect.String:
		return rv.String(), nil
	}
	return "", errUnsupported
}

func toInt64(v any) (int64, error) {
	switch v := v.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case string:
		return parseInt(v)
	case []byte:
		return parseInt(string(v))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int(), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		u := rv.Uint()
		if u > math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(u), nil
	case reflect.Float32, reflect.Float64:
		f := rv.Float()
		if f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
			return 0, errOutOfRange
		}
		return int64(f), nil
	case reflect.String:
		return parseInt(rv.String())
	}
	return 0, errUnsupported
}

// parseInt accepts integral decimal strings, including "12.0".
func parseInt(s string) (int64, error) {
	s = strings.TrimSpace(s)
	n, err := strconv.ParseInt(s, 10, 64)
	if err == nil {
		return n, nil
	}
	f, ferr := strconv.ParseFloat(s, 64)
	if ferr != nil || f != math.Trunc(f) || f < math.MinInt64 || f >= math.MaxInt64 {
		return 0, err
	}
	return int64(f), nil
}

func toFloat64(v any) (float64, error) {
	switch v := v.(type) {
	case string:
		return strconv.ParseFloat(strings.TrimSpace(v), 64)
	case []byte:
		return strconv.ParseFloat(strings.TrimSpace(string(v)), 64)
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return float64(rv.Int()), nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return float64(rv.Uint()), nil
	case reflect.Float32, reflect.Float64:
		return rv.Float(), nil
	case reflect.String:
		return strconv.ParseFloat(strings.TrimSpace(rv.String()), 64)
	}
	return 0, errUnsupported
}

func toBool(v any) (bool, error) {
	switch v := v.(type) {
	case bool:
		return v, nil
	case string:
		return strconv.ParseBool(strings.TrimSpace(v))
	case []byte:
		return strconv.ParseBool(strings.TrimSpace(string(v)))
	}
	rv := reflect.ValueOf(v)
	switch rv.Kind() {
	case reflect.Int, reflect.Int8, reflect.Int16, reflect.Int32, reflect.Int64:
		return rv.Int() != 0, nil
	case reflect.Uint, reflect.Uint8, reflect.Uint16, reflect.Uint32, reflect.Uint64:
		return rv.Uint() != 0, nil
	case reflect.Float32, reflect.Float64:
		return rv.Float() != 0, nil
	}
	return false, errUnsupported
}

func toTime(v any) (time.Time, error) {
	switch v := v.(type) {
	case time.Time:
		return v, nil
	case string:
		return parseTime(v)
	case []byte:
		return parseTime(string(v))
	}
	return time.Time{}, errUnsupported
}

func parseTime(s string) (time.Time, error) {
	s = strings.TrimSpace(s)
	var err error
	for _, layout := range timeLayouts {
		var t time.Time
		if t, err = time.Parse(layout, s); err == nil {
			return t, nil
		}
	}
	return time.Time{}, err
}

func toBytes(v any) ([]byte, error) {
	switch v := v.(type) {
	case []byte:
		return append([]byte(nil), v...), nil
	case string:
		return []byte(v), nil
	}
	return nil, errUnsupported
}
