package params

import (
	"fmt"
	"math"
	"strconv"
	"strings"
)

// Kind identifies the dynamic type held by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindNumber
	KindString
	KindBool
)

func (k Kind) String() string {
	switch k {
	case KindNumber:
		return "number"
	case KindString:
		return "string"
	case KindBool:
		return "bool"
	default:
		return "invalid"
	}
}

// Value is a single parameter value. Parameter stores only hold numbers,
// strings and booleans; numbers are always carried as float64.
type Value struct {
	kind Kind
	num  float64
	str  string
	flag bool
}

// NumberValue returns a numeric Value.
func NumberValue(f float64) Value { return Value{kind: KindNumber, num: f} }

// StringValue returns a string Value.
func StringValue(s string) Value { return Value{kind: KindString, str: s} }

// BoolValue returns a boolean Value.
func BoolValue(b bool) Value { return Value{kind: KindBool, flag: b} }

// FromAny converts a decoded YAML/JSON scalar into a Value.
func FromAny(v any) (Value, error) {
	switch val := v.(type) {
	case Value:
		return val, nil
	case float64:
		return NumberValue(val), nil
	case float32:
		return NumberValue(float64(val)), nil
	case int:
		return NumberValue(float64(val)), nil
	case int64:
		return NumberValue(float64(val)), nil
	case uint64:
		return NumberValue(float64(val)), nil
	case string:
		return StringValue(val), nil
	case bool:
		return BoolValue(val), nil
	default:
		return Value{}, fmt.Errorf("unsupported parameter type %T", v)
	}
}

// Kind returns the dynamic kind of v.
func (v Value) Kind() Kind { return v.kind }

// IsValid reports whether v holds a value.
func (v Value) IsValid() bool { return v.kind != KindInvalid }

// Float returns v as a float64 when it is numeric-like: a number, a string
// that parses as a float, or a bool (1 or 0).
func (v Value) Float() (float64, bool) {
	switch v.kind {
	case KindNumber:
		return v.num, true
	case KindString:
		f, err := strconv.ParseFloat(strings.TrimSpace(v.str), 64)
		if err != nil {
			return 0, false
		}
		return f, true
	case KindBool:
		if v.flag {
			return 1, true
		}
		return 0, true
	}
	return 0, false
}

// Text returns the string held by v. Only string values convert.
func (v Value) Text() (string, bool) {
	if v.kind != KindString {
		return "", false
	}
	return v.str, true
}

// Bool returns v as a bool. Numbers convert as non-zero; strings convert when
// they parse with strconv.ParseBool.
func (v Value) Bool() (bool, bool) {
	switch v.kind {
	case KindBool:
		return v.flag, true
	case KindNumber:
		return v.num != 0, true
	case KindString:
		b, err := strconv.ParseBool(strings.TrimSpace(v.str))
		if err != nil {
			return false, false
		}
		return b, true
	}
	return false, false
}

// Int returns v as an int when its numeric form is integral.
func (v Value) Int() (int, bool) {
	f, ok := v.Float()
	if !ok || f != math.Trunc(f) || math.IsInf(f, 0) {
		return 0, false
	}
	return int(f), true
}

// Any returns the underlying Go value: float64, string or bool.
func (v Value) Any() any {
	switch v.kind {
	case KindNumber:
		return v.num
	case KindString:
		return v.str
	case KindBool:
		return v.flag
	}
	return nil
}

func (v Value) String() string {
	switch v.kind {
	case KindNumber:
		return strconv.FormatFloat(v.num, 'g', -1, 64)
	case KindString:
		return v.str
	case KindBool:
		return strconv.FormatBool(v.flag)
	}
	return "<invalid>"
}
