// Package value defines the dynamically-typed row value consumed by the
// literal codec and by placeholder-based inserts.
//
// A Value is a closed tagged union: every constructor sets an explicit Kind
// and the matching payload. Consumers switch on Kind instead of inspecting
// Go types at runtime, so "wrong shape" is always an ordinary comparison.
package value

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/google/uuid"
)

// Kind tags the payload carried by a Value.
type Kind uint8

const (
	KindInvalid Kind = iota
	KindBool
	KindInt16
	KindInt32
	KindInt64
	KindFloat32
	KindFloat64
	KindUUID
	KindDate
	KindJSON
	KindChar
	KindString
	KindRow
	KindList
	KindObject
	KindNull
	KindSome
	KindDefault
)

var kindNames = [...]string{
	KindInvalid: "invalid",
	KindBool:    "bool",
	KindInt16:   "int16",
	KindInt32:   "int32",
	KindInt64:   "int64",
	KindFloat32: "float32",
	KindFloat64: "float64",
	KindUUID:    "uuid",
	KindDate:    "date",
	KindJSON:    "json",
	KindChar:    "char",
	KindString:  "string",
	KindRow:     "row",
	KindList:    "list",
	KindObject:  "object",
	KindNull:    "null",
	KindSome:    "some",
	KindDefault: "default",
}

func (k Kind) String() string {
	if int(k) < len(kindNames) {
		return kindNames[k]
	}
	return fmt.Sprintf("kind(%d)", uint8(k))
}

// Value is an immutable dynamically-typed value. The zero Value has
// KindInvalid and never matches any SQL type.
type Value struct {
	kind  Kind
	b     bool
	i     int64
	f     float64
	s     string
	u     uuid.UUID
	t     time.Time
	items []Value
	obj   any
}

func Bool(b bool) Value       { return Value{kind: KindBool, b: b} }
func Int16(n int16) Value     { return Value{kind: KindInt16, i: int64(n)} }
func Int32(n int32) Value     { return Value{kind: KindInt32, i: int64(n)} }
func Int64(n int64) Value     { return Value{kind: KindInt64, i: n} }
func Float32(f float32) Value { return Value{kind: KindFloat32, f: float64(f)} }
func Float64(f float64) Value { return Value{kind: KindFloat64, f: f} }
func UUID(u uuid.UUID) Value  { return Value{kind: KindUUID, u: u} }
func Char(r rune) Value       { return Value{kind: KindChar, i: int64(r)} }
func String(s string) Value   { return Value{kind: KindString, s: s} }

// Date keeps only the calendar day of t.
func Date(t time.Time) Value {
	y, m, d := t.Date()
	return Value{kind: KindDate, t: time.Date(y, m, d, 0, 0, 0, 0, time.UTC)}
}

// JSON wraps an already-encoded JSON document. Validity is checked by the
// codec, not here.
func JSON(raw []byte) Value { return Value{kind: KindJSON, s: string(raw)} }

// Row holds the ordered field values of a composite value.
func Row(fields ...Value) Value {
	return Value{kind: KindRow, items: append([]Value(nil), fields...)}
}

// List holds the elements of a single-dimension array value.
func List(elems ...Value) Value {
	return Value{kind: KindList, items: append([]Value(nil), elems...)}
}

// Object carries an arbitrary Go value that a composite type knows how to
// decompose into its fields.
func Object(v any) Value { return Value{kind: KindObject, obj: v} }

// Null is the absent branch of an optional value.
func Null() Value { return Value{kind: KindNull} }

// Some is the present branch of an optional value.
func Some(v Value) Value { return Value{kind: KindSome, items: []Value{v}} }

// Default asks the database to fill the column (serial columns).
func Default() Value { return Value{kind: KindDefault} }

// Kind reports the tag of v.
func (v Value) Kind() Kind { return v.kind }

func (v Value) Bool() bool       { return v.b }
func (v Value) Int() int64       { return v.i }
func (v Value) Float() float64   { return v.f }
func (v Value) Str() string      { return v.s }
func (v Value) UUID() uuid.UUID  { return v.u }
func (v Value) Time() time.Time  { return v.t }
func (v Value) Rune() rune       { return rune(v.i) }
func (v Value) Object() any      { return v.obj }
func (v Value) Items() []Value   { return v.items }
func (v Value) RawJSON() []byte  { return []byte(v.s) }
func (v Value) IsOptional() bool { return v.kind == KindNull || v.kind == KindSome }
func (v Value) IsNull() bool     { return v.kind == KindNull }

// Inner returns the wrapped value of a Some. ok is false for every other
// kind, including Null.
func (v Value) Inner() (Value, bool) {
	if v.kind != KindSome || len(v.items) != 1 {
		return Value{}, false
	}
	return v.items[0], true
}

// Record is the placeholder form of a Row. It satisfies the composite
// encoder interface of pgx (IsNull and Index) so rows bind to composite
// parameters without reflection.
type Record []any

// IsNull reports whether r is a nil record.
func (r Record) IsNull() bool { return r == nil }

// Index returns field i.
func (r Record) Index(i int) any { return r[i] }

// Native converts v into a plain Go value suitable for a driver placeholder
// argument. Null becomes nil; rows become Record and lists become []any.
func (v Value) Native() any {
	switch v.kind {
	case KindBool:
		return v.b
	case KindInt16:
		return int16(v.i)
	case KindInt32:
		return int32(v.i)
	case KindInt64:
		return v.i
	case KindFloat32:
		return float32(v.f)
	case KindFloat64:
		return v.f
	case KindUUID:
		return v.u
	case KindDate:
		return v.t
	case KindJSON:
		return json.RawMessage(v.s)
	case KindChar:
		return string(rune(v.i))
	case KindString:
		return v.s
	case KindRow:
		out := make(Record, len(v.items))
		for i, it := range v.items {
			out[i] = it.Native()
		}
		return out
	case KindList:
		out := make([]any, len(v.items))
		for i, it := range v.items {
			out[i] = it.Native()
		}
		return out
	case KindObject:
		return v.obj
	case KindSome:
		inner, _ := v.Inner()
		return inner.Native()
	default:
		return nil
	}
}

// String renders v for diagnostics.
func (v Value) String() string {
	switch v.kind {
	case KindNull:
		return "null"
	case KindDefault:
		return "default"
	case KindSome:
		inner, _ := v.Inner()
		return "some(" + inner.String() + ")"
	case KindDate:
		return v.t.Format(time.DateOnly)
	case KindJSON:
		return v.s
	default:
		return fmt.Sprintf("%v", v.Native())
	}
}
