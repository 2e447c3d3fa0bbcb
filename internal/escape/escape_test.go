package escape

import (
	"errors"
	"math"
	"testing"
	"time"

	"github.com/google/uuid"

	"pgtable/internal/sqltype"
	"pgtable/internal/value"
)

var point2d = sqltype.StructType("point2d",
	sqltype.Field{Name: "x", Type: sqltype.Int2Type},
	sqltype.Field{Name: "y", Type: sqltype.Int2Type},
)

// pointStruct decomposes a Go struct into point2d fields.
type pointStruct struct{}

type point struct{ X, Y int16 }

func (pointStruct) Name() string { return "point2d" }
func (pointStruct) Fields() []sqltype.Field {
	return []sqltype.Field{{Name: "x", Type: sqltype.Int2Type}, {Name: "y", Type: sqltype.Int2Type}}
}
func (pointStruct) Decompose(v any) ([]value.Value, bool) {
	p, ok := v.(point)
	if !ok {
		return nil, false
	}
	return []value.Value{value.Int16(p.X), value.Int16(p.Y)}, true
}

// TestValue covers strict escaping for every type variant.
func TestValue(t *testing.T) {
	t.Parallel()

	id := uuid.MustParse("a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11")

	tests := []struct {
		name    string
		typ     sqltype.Type
		val     value.Value
		want    string
		wantErr error
	}{
		{name: "bool", typ: sqltype.BoolType, val: value.Bool(false), want: "false"},
		{name: "int2", typ: sqltype.Int2Type, val: value.Int16(-3), want: "-3"},
		{name: "int4", typ: sqltype.Int4Type, val: value.Int32(70000), want: "70000"},
		{name: "int8", typ: sqltype.Int8Type, val: value.Int64(1 << 40), want: "1099511627776"},
		{name: "int width is strict", typ: sqltype.Int4Type, val: value.Int64(1), wantErr: ErrValueMismatch},
		{name: "uuid", typ: sqltype.UUIDType, val: value.UUID(id), want: "'a0eebc99-9c0b-4ef8-bb6d-6bb9bd380a11'"},
		{name: "float4", typ: sqltype.Float4Type, val: value.Float32(14.56), want: "14.56"},
		{name: "float8", typ: sqltype.Float8Type, val: value.Float64(0.1), want: "0.1"},
		{name: "float8 nan", typ: sqltype.Float8Type, val: value.Float64(math.NaN()), want: "'NaN'"},
		{name: "float8 -inf", typ: sqltype.Float8Type, val: value.Float64(math.Inf(-1)), want: "'-Infinity'"},
		{name: "date", typ: sqltype.DateType, val: value.Date(time.Date(2024, 2, 29, 13, 0, 0, 0, time.UTC)), want: "'2024-02-29'"},
		{name: "json", typ: sqltype.JSONType, val: value.JSON([]byte(`{"a":"b's"}`)), want: `'{"a":"b''s"}'`},
		{name: "invalid json", typ: sqltype.JSONType, val: value.JSON([]byte(`{`)), wantErr: ErrValueMismatch},
		{name: "text quotes doubled", typ: sqltype.TextType, val: value.String("O'Brien"), want: "'O''Brien'"},
		{name: "text backslash uses E form", typ: sqltype.TextType, val: value.String(`a\b`), want: `E'a\\b'`},
		{name: "varchar unbounded", typ: sqltype.VarCharType, val: value.String("anything"), want: "'anything'"},
		{name: "varchar within bound", typ: sqltype.VarCharN(3), val: value.String("abc"), want: "'abc'"},
		{name: "varchar counts runes", typ: sqltype.VarCharN(3), val: value.String("żół"), want: "'żół'"},
		{name: "varchar over bound", typ: sqltype.VarCharN(3), val: value.String("abcd"), wantErr: ErrLengthExceeded},
		{name: "char default length is one", typ: sqltype.CharType, val: value.String("ab"), wantErr: ErrLengthExceeded},
		{name: "char rune", typ: sqltype.CharType, val: value.Char('x'), want: "'x'"},
		{name: "char(2)", typ: sqltype.CharN(2), val: value.String("ab"), want: "'ab'"},
		{name: "string for bool", typ: sqltype.BoolType, val: value.String("true"), wantErr: ErrValueMismatch},
		{name: "serial default", typ: sqltype.Serial4Type, val: value.Default(), want: "DEFAULT"},
		{name: "serial value", typ: sqltype.Serial8Type, val: value.Int64(9), want: "9"},
		{name: "serial wrong width", typ: sqltype.Serial2Type, val: value.Int32(9), wantErr: ErrValueMismatch},
		{name: "composite row", typ: point2d, val: value.Row(value.Int16(5), value.Int16(8)), want: "ROW(5, 8)::point2d"},
		{name: "composite nullable field", typ: point2d, val: value.Row(value.Int16(5), value.Null()), want: "ROW(5, NULL)::point2d"},
		{name: "composite arity", typ: point2d, val: value.Row(value.Int16(5)), wantErr: ErrValueMismatch},
		{name: "composite object", typ: sqltype.NewComposite(pointStruct{}), val: value.Object(point{X: 1, Y: 2}), want: "ROW(1, 2)::point2d"},
		{name: "composite object wrong type", typ: sqltype.NewComposite(pointStruct{}), val: value.Object("nope"), wantErr: ErrValueMismatch},
		{name: "array", typ: sqltype.ArrayOf(sqltype.Int4Type), val: value.List(value.Int32(1), value.Int32(2)), want: "{1, 2}"},
		{name: "empty array", typ: sqltype.ArrayOf(sqltype.TextType), val: value.List(), want: "{}"},
		{name: "array of composites", typ: sqltype.ArrayOf(point2d), val: value.List(value.Row(value.Int16(1), value.Int16(2))), want: "{ROW(1, 2)::point2d}"},
		{name: "array element mismatch", typ: sqltype.ArrayOf(sqltype.Int4Type), val: value.List(value.String("x")), wantErr: ErrValueMismatch},
		{name: "array needs list", typ: sqltype.ArrayOf(sqltype.Int4Type), val: value.Int32(1), wantErr: ErrValueMismatch},
		{name: "domain", typ: sqltype.NewDomain("email", sqltype.TextType), val: value.String("a@b"), want: "'a@b'"},
		{name: "domain keeps base bound", typ: sqltype.NewDomain("code", sqltype.VarCharN(2)), val: value.String("abc"), wantErr: ErrLengthExceeded},
		{name: "enum label", typ: sqltype.NewEnum("mood", "sad", "happy"), val: value.String("happy"), want: "'happy'"},
		{name: "enum unknown label", typ: sqltype.NewEnum("mood", "sad", "happy"), val: value.String("meh"), wantErr: ErrValueMismatch},
		{name: "null is not a strict value", typ: sqltype.TextType, val: value.Null(), wantErr: ErrValueMismatch},
		{name: "nil type", typ: nil, val: value.Int32(1), wantErr: ErrUnsupportedKind},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Value(tt.typ, tt.val)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Value() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Value() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Value() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestNullable covers the second-chance optional path.
func TestNullable(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name    string
		typ     sqltype.Type
		val     value.Value
		want    string
		wantErr error
	}{
		{name: "bare value", typ: sqltype.Int4Type, val: value.Int32(3), want: "3"},
		{name: "null", typ: sqltype.Int4Type, val: value.Null(), want: "NULL"},
		{name: "some", typ: sqltype.Int4Type, val: value.Some(value.Int32(3)), want: "3"},
		{name: "null composite", typ: point2d, val: value.Null(), want: "NULL"},
		{name: "some composite", typ: point2d, val: value.Some(value.Row(value.Int16(5), value.Int16(8))), want: "ROW(5, 8)::point2d"},
		{name: "some wrong shape", typ: sqltype.Int4Type, val: value.Some(value.String("x")), wantErr: ErrValueMismatch},
		{name: "some over bound", typ: sqltype.VarCharN(1), val: value.Some(value.String("xy")), wantErr: ErrLengthExceeded},
		{name: "not optional keeps first error", typ: sqltype.VarCharN(1), val: value.String("xy"), wantErr: ErrLengthExceeded},
		{name: "array with null element", typ: sqltype.ArrayOf(sqltype.TextType), val: value.List(value.String("a"), value.Null()), want: "{'a', NULL}"},
	}

	for _, tt := range tests {
		tt := tt
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			got, err := Nullable(tt.typ, tt.val)
			if tt.wantErr != nil {
				if !errors.Is(err, tt.wantErr) {
					t.Fatalf("Nullable() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Nullable() error = %v", err)
			}
			if got != tt.want {
				t.Fatalf("Nullable() = %q, want %q", got, tt.want)
			}
		})
	}
}

// TestNullable_NonNullNeverRendersNull checks that a present scalar never
// escapes to NULL.
func TestNullable_NonNullNeverRendersNull(t *testing.T) {
	t.Parallel()

	vals := []struct {
		typ sqltype.Type
		val value.Value
	}{
		{sqltype.BoolType, value.Bool(true)},
		{sqltype.Int8Type, value.Int64(0)},
		{sqltype.TextType, value.String("")},
		{sqltype.TextType, value.String("NULL")},
		{sqltype.Float8Type, value.Float64(0)},
	}
	for _, v := range vals {
		got, err := Nullable(v.typ, v.val)
		if err != nil {
			t.Fatalf("Nullable(%s, %s) error = %v", v.typ.SQL(), v.val, err)
		}
		if got == Null {
			t.Fatalf("Nullable(%s, %s) = NULL, want a literal", v.typ.SQL(), v.val)
		}
	}
}

// TestError checks the message format and column annotation.
func TestError(t *testing.T) {
	t.Parallel()

	_, err := Value(sqltype.VarCharN(2), value.String("abc"))
	if err == nil {
		t.Fatalf("Value() error = nil")
	}
	if got, want := err.Error(), "escape: type varchar(2): value exceeds declared length"; got != want {
		t.Fatalf("Error() = %q, want %q", got, want)
	}

	withCol := WithColumn(err, "code")
	if got, want := withCol.Error(), `escape: column "code" (varchar(2)): value exceeds declared length`; got != want {
		t.Fatalf("WithColumn().Error() = %q, want %q", got, want)
	}
	if !errors.Is(withCol, ErrLengthExceeded) {
		t.Fatalf("errors.Is(WithColumn(), ErrLengthExceeded) = false")
	}

	var e *Error
	if !errors.As(err, &e) || e.Column != "" {
		t.Fatalf("WithColumn mutated the original error: %v", err)
	}

	plain := errors.New("boom")
	if WithColumn(plain, "c") != plain {
		t.Fatalf("WithColumn() on a foreign error should return it unchanged")
	}
}

var sinkLiteral string

// BenchmarkValue_Composite measures escaping of a nested array of composites.
func BenchmarkValue_Composite(b *testing.B) {
	typ := sqltype.ArrayOf(point2d)
	items := make([]value.Value, 64)
	for i := range items {
		items[i] = value.Row(value.Int16(int16(i)), value.Int16(int16(-i)))
	}
	v := value.List(items...)

	b.ReportAllocs()
	for i := 0; i < b.N; i++ {
		s, err := Value(typ, v)
		if err != nil {
			b.Fatal(err)
		}
		sinkLiteral = s
	}
}
