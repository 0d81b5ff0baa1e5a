package listing

import (
	"strconv"
	"strings"
)

// Value is the coerced form of one spec field. Exactly one of Text, Number
// or Flag is meaningful, selected by Kind. A Value that is not Valid is null.
type Value struct {
	Kind   FieldKind
	Valid  bool
	Text   string
	Number float64
	Flag   bool
}

// StringValue returns a non-null string value.
func StringValue(s string) Value {
	return Value{Kind: KindString, Valid: true, Text: s}
}

// NumberValue returns a non-null numeric value.
func NumberValue(n float64) Value {
	return Value{Kind: KindNumber, Valid: true, Number: n}
}

// IntegerValue returns a non-null integer value.
func IntegerValue(n int64) Value {
	return Value{Kind: KindInteger, Valid: true, Number: float64(n)}
}

// BoolValue returns a boolean value. Booleans are never null.
func BoolValue(b bool) Value {
	return Value{Kind: KindBool, Valid: true, Flag: b}
}

// Null returns the null value of the given kind.
func Null(kind FieldKind) Value {
	return Value{Kind: kind}
}

// IsNull reports whether v carries no value.
func (v Value) IsNull() bool {
	return !v.Valid
}

// Int returns the integer form of a numeric value.
func (v Value) Int() int64 {
	return int64(v.Number)
}

// String renders v the way it appears in mismatch log lines.
func (v Value) String() string {
	if !v.Valid {
		return "null"
	}
	switch v.Kind {
	case KindString:
		return v.Text
	case KindNumber:
		return strconv.FormatFloat(v.Number, 'f', -1, 64)
	case KindInteger:
		return strconv.FormatInt(v.Int(), 10)
	case KindBool:
		return strconv.FormatBool(v.Flag)
	default:
		return ""
	}
}

// Any returns v as a plain Go value (nil when null), for JSON and SQL.
func (v Value) Any() any {
	if !v.Valid {
		return nil
	}
	switch v.Kind {
	case KindString:
		return v.Text
	case KindNumber:
		return v.Number
	case KindInteger:
		return v.Int()
	case KindBool:
		return v.Flag
	default:
		return nil
	}
}

// Specs is a set of coerced spec values keyed by canonical field.
type Specs map[CanonicalField]Value

// Get returns the value for f, or the null value of f's kind when absent.
func (s Specs) Get(f CanonicalField) Value {
	if v, ok := s[f]; ok {
		return v
	}
	kind, _ := f.Kind()
	return Null(kind)
}

// Text returns the string value for f, or "" when null.
func (s Specs) Text(f CanonicalField) string {
	v := s.Get(f)
	if !v.Valid {
		return ""
	}
	return strings.TrimSpace(v.Text)
}
