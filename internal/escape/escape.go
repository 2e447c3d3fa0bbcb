// Package escape converts dynamically-typed values into Postgres literals for
// a declared sqltype.Type.
//
// The codec never coerces: a value whose Kind does not match the expected
// shape is rejected with ErrValueMismatch. Character types additionally
// enforce their declared length (counted in characters, as Postgres does).
//
// Nullable is a second-chance path over Value: the value is first escaped as
// a non-null value, and only if that fails is it read as an optional (Null or
// Some). Callers can therefore pass the same value to either entry point
// without classifying it first.
package escape

import (
	"encoding/json"
	"math"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/lib/pq"

	"pgtable/internal/sqltype"
	"pgtable/internal/value"
)

// Null is the literal produced for an absent optional value.
const Null = "NULL"

// Value escapes v as a non-null value of type t.
func Value(t sqltype.Type, v value.Value) (string, error) {
	switch tt := t.(type) {
	case sqltype.Scalar:
		return scalar(tt, v)
	case sqltype.Composite:
		return composite(tt, v)
	case sqltype.Array:
		return array(tt, v)
	case sqltype.Domain:
		if tt.Base() == nil {
			return "", &Error{Type: tt.Name(), Err: ErrUnsupportedKind}
		}
		return Value(tt.Base(), v)
	case sqltype.Enum:
		if v.Kind() != value.KindString || !tt.HasLabel(v.Str()) {
			return "", mismatch(tt)
		}
		return Literal(v.Str()), nil
	default:
		name := "<nil>"
		if t != nil {
			name = t.SQL()
		}
		return "", &Error{Type: name, Err: ErrUnsupportedKind}
	}
}

// Nullable escapes v for a column that accepts NULL. A value that does not
// escape as non-null is retried as an optional: Null renders NULL and Some
// recurses into the wrapped value.
func Nullable(t sqltype.Type, v value.Value) (string, error) {
	s, err := Value(t, v)
	if err == nil {
		return s, nil
	}
	if !v.IsOptional() {
		return "", err
	}
	if v.IsNull() {
		return Null, nil
	}
	inner, _ := v.Inner()
	return Value(t, inner)
}

func scalar(t sqltype.Scalar, v value.Value) (string, error) {
	switch t.ScalarKind() {
	case sqltype.Boolean:
		if v.Kind() == value.KindBool {
			return strconv.FormatBool(v.Bool()), nil
		}
	case sqltype.Int16:
		if v.Kind() == value.KindInt16 {
			return strconv.FormatInt(v.Int(), 10), nil
		}
	case sqltype.Int32:
		if v.Kind() == value.KindInt32 {
			return strconv.FormatInt(v.Int(), 10), nil
		}
	case sqltype.Int64:
		if v.Kind() == value.KindInt64 {
			return strconv.FormatInt(v.Int(), 10), nil
		}
	case sqltype.Serial16:
		return serial(t, v, value.KindInt16)
	case sqltype.Serial32:
		return serial(t, v, value.KindInt32)
	case sqltype.Serial64:
		return serial(t, v, value.KindInt64)
	case sqltype.Uuid:
		if v.Kind() == value.KindUUID {
			return Literal(v.UUID().String()), nil
		}
	case sqltype.Float32:
		if v.Kind() == value.KindFloat32 {
			return formatFloat(v.Float(), 32), nil
		}
	case sqltype.Float64:
		if v.Kind() == value.KindFloat64 {
			return formatFloat(v.Float(), 64), nil
		}
	case sqltype.Date:
		if v.Kind() == value.KindDate {
			return Literal(v.Time().Format(time.DateOnly)), nil
		}
	case sqltype.Json:
		if v.Kind() == value.KindJSON && json.Valid(v.RawJSON()) {
			return Literal(v.Str()), nil
		}
	case sqltype.FixedChar:
		size, ok := t.Size()
		if !ok {
			size = 1
		}
		return characters(t, v, size)
	case sqltype.VarChar:
		size, _ := t.Size()
		return characters(t, v, size)
	case sqltype.Text:
		if v.Kind() == value.KindString {
			return Literal(v.Str()), nil
		}
	default:
		return "", &Error{Type: t.SQL(), Err: ErrUnsupportedKind}
	}
	return "", mismatch(t)
}

func serial(t sqltype.Scalar, v value.Value, want value.Kind) (string, error) {
	switch v.Kind() {
	case value.KindDefault:
		return "DEFAULT", nil
	case want:
		return strconv.FormatInt(v.Int(), 10), nil
	}
	return "", mismatch(t)
}

// characters handles char/varchar; size 0 means unbounded.
func characters(t sqltype.Scalar, v value.Value, size int) (string, error) {
	var s string
	switch v.Kind() {
	case value.KindString:
		s = v.Str()
	case value.KindChar:
		s = string(v.Rune())
	default:
		return "", mismatch(t)
	}
	if size > 0 && utf8.RuneCountInString(s) > size {
		return "", &Error{Type: t.SQL(), Err: ErrLengthExceeded}
	}
	return Literal(s), nil
}

func composite(t sqltype.Composite, v value.Value) (string, error) {
	var vals []value.Value
	switch v.Kind() {
	case value.KindRow:
		vals = v.Items()
	case value.KindObject:
		parts, ok := t.Decompose(v.Object())
		if !ok {
			return "", mismatch(t)
		}
		vals = parts
	default:
		return "", mismatch(t)
	}

	fields := t.Fields()
	if len(vals) != len(fields) {
		return "", mismatch(t)
	}

	parts := make([]string, len(fields))
	for i, f := range fields {
		// Composite attributes are always nullable in Postgres.
		s, err := Nullable(f.Type, vals[i])
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "ROW(" + strings.Join(parts, ", ") + ")::" + t.Name(), nil
}

func array(t sqltype.Array, v value.Value) (string, error) {
	elem := t.Elem()
	if elem == nil {
		return "", &Error{Type: "array", Err: ErrUnsupportedKind}
	}
	if elem.Kind() == sqltype.KindArray {
		return "", &Error{Type: t.SQL(), Err: ErrUnsupportedKind}
	}
	if v.Kind() != value.KindList {
		return "", mismatch(t)
	}

	items := v.Items()
	parts := make([]string, len(items))
	for i, it := range items {
		s, err := Nullable(elem, it)
		if err != nil {
			return "", err
		}
		parts[i] = s
	}
	return "{" + strings.Join(parts, ", ") + "}", nil
}

func formatFloat(f float64, bits int) string {
	switch {
	case math.IsNaN(f):
		return "'NaN'"
	case math.IsInf(f, 1):
		return "'Infinity'"
	case math.IsInf(f, -1):
		return "'-Infinity'"
	}
	return strconv.FormatFloat(f, 'g', -1, bits)
}

// Literal renders s as a single-quoted literal. Strings containing a backslash
// use the E'' form.
func Literal(s string) string {
	return strings.TrimLeft(pq.QuoteLiteral(s), " ")
}
