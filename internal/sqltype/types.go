// Package sqltype models the Postgres types a column can be declared with.
//
// Type is a closed union: Scalar, Composite, Array, Domain and Enum are the
// only implementations. Every node is immutable once constructed and nodes
// are assembled bottom-up, so the public constructors cannot build a cycle.
// Named types (composite, domain, enum) are identified by Name alone: two
// nodes with the same name are the same SQL type.
package sqltype

import (
	"errors"
	"fmt"
	"strconv"

	"github.com/go-openapi/inflect"

	"pgtable/internal/value"
)

// ErrUnsupportedKind reports a type shape that cannot be rendered, such as
// an array of arrays.
var ErrUnsupportedKind = errors.New("unsupported type kind")

// Kind classifies a Type node.
type Kind uint8

const (
	KindScalar Kind = iota + 1
	KindComposite
	KindArray
	KindDomain
	KindEnum
)

func (k Kind) String() string {
	switch k {
	case KindScalar:
		return "scalar"
	case KindComposite:
		return "composite"
	case KindArray:
		return "array"
	case KindDomain:
		return "domain"
	case KindEnum:
		return "enum"
	default:
		return "kind(" + strconv.Itoa(int(k)) + ")"
	}
}

// Type is a node of the type model.
type Type interface {
	// Kind reports the variant of the node.
	Kind() Kind
	// Name is the identity of the type; for named types it is the key used to
	// deduplicate CREATE statements.
	Name() string
	// SQL is the reference used in column definitions and composite fields.
	SQL() string

	sealed()
}

// ScalarKind enumerates the built-in Postgres types.
type ScalarKind uint8

const (
	Boolean ScalarKind = iota + 1
	Int16
	Int32
	Int64
	Uuid
	Float32
	Float64
	Date
	Json
	FixedChar
	VarChar
	Text
	Serial16
	Serial32
	Serial64
)

var scalarNames = map[ScalarKind]string{
	Boolean:   "bool",
	Int16:     "int2",
	Int32:     "int4",
	Int64:     "int8",
	Uuid:      "uuid",
	Float32:   "float4",
	Float64:   "float8",
	Date:      "date",
	Json:      "json",
	FixedChar: "char",
	VarChar:   "varchar",
	Text:      "text",
	Serial16:  "serial2",
	Serial32:  "serial4",
	Serial64:  "serial8",
}

// Scalar is a standard type that never needs a CREATE statement.
type Scalar struct {
	kind ScalarKind
	size int // 0 means no declared length
}

// Builtin scalar types.
var (
	BoolType    Type = Scalar{kind: Boolean}
	Int2Type    Type = Scalar{kind: Int16}
	Int4Type    Type = Scalar{kind: Int32}
	Int8Type    Type = Scalar{kind: Int64}
	UUIDType    Type = Scalar{kind: Uuid}
	Float4Type  Type = Scalar{kind: Float32}
	Float8Type  Type = Scalar{kind: Float64}
	DateType    Type = Scalar{kind: Date}
	JSONType    Type = Scalar{kind: Json}
	CharType    Type = Scalar{kind: FixedChar}
	VarCharType Type = Scalar{kind: VarChar}
	TextType    Type = Scalar{kind: Text}
	Serial2Type Type = Scalar{kind: Serial16}
	Serial4Type Type = Scalar{kind: Serial32}
	Serial8Type Type = Scalar{kind: Serial64}
)

// CharN is a fixed-length character type. n <= 0 leaves the length
// undeclared, which Postgres treats as char(1).
func CharN(n int) Type { return Scalar{kind: FixedChar, size: max(n, 0)} }

// VarCharN is a variable-length character type. n <= 0 means unbounded.
func VarCharN(n int) Type { return Scalar{kind: VarChar, size: max(n, 0)} }

func (Scalar) Kind() Kind { return KindScalar }
func (Scalar) sealed()    {}

// ScalarKind reports which builtin type s is.
func (s Scalar) ScalarKind() ScalarKind { return s.kind }

// Size reports the declared length of a character type and whether one was
// declared.
func (s Scalar) Size() (int, bool) { return s.size, s.size > 0 }

func (s Scalar) Name() string {
	name, ok := scalarNames[s.kind]
	if !ok {
		return "scalar(" + strconv.Itoa(int(s.kind)) + ")"
	}
	if s.size > 0 {
		return name + "(" + strconv.Itoa(s.size) + ")"
	}
	return name
}

func (s Scalar) SQL() string { return s.Name() }

// Field is a named member of a composite type.
type Field struct {
	Name string
	Type Type
}

// Struct describes a composite type: its name, ordered fields, and how to
// split an opaque Go value into per-field values. Decompose reports false
// when v does not have the expected shape.
type Struct interface {
	Name() string
	Fields() []Field
	Decompose(v any) ([]value.Value, bool)
}

// Composite is a named structured type created with CREATE TYPE ... AS (...).
type Composite struct {
	def Struct
}

// NewComposite wraps a user-supplied Struct definition.
func NewComposite(def Struct) Type { return Composite{def: def} }

// StructType declares a row-shaped composite. Its values are value.Row, or
// value.Object holding a []value.Value. It panics when a field has no type.
func StructType(name string, fields ...Field) Type {
	for _, f := range fields {
		if f.Type == nil {
			panic(fmt.Errorf("sqltype: composite %s field %s: %w", name, f.Name, ErrUnsupportedKind))
		}
	}
	return Composite{def: rowStruct{name: name, fields: append([]Field(nil), fields...)}}
}

func (Composite) Kind() Kind { return KindComposite }
func (Composite) sealed()    {}

func (c Composite) Name() string    { return c.def.Name() }
func (c Composite) SQL() string     { return c.def.Name() }
func (c Composite) Fields() []Field { return c.def.Fields() }

// Decompose splits an opaque value into its field values.
func (c Composite) Decompose(v any) ([]value.Value, bool) { return c.def.Decompose(v) }

type rowStruct struct {
	name   string
	fields []Field
}

func (r rowStruct) Name() string    { return r.name }
func (r rowStruct) Fields() []Field { return r.fields }

func (r rowStruct) Decompose(v any) ([]value.Value, bool) {
	vals, ok := v.([]value.Value)
	return vals, ok
}

// Array is a single-dimension array of Elem.
type Array struct {
	elem Type
}

// NewArray builds an array type. Arrays of arrays are rejected.
func NewArray(elem Type) (Type, error) {
	if elem == nil {
		return nil, fmt.Errorf("sqltype: array element: %w", ErrUnsupportedKind)
	}
	if elem.Kind() == KindArray {
		return nil, fmt.Errorf("sqltype: array of %s: multi-dimensional arrays: %w", elem.Name(), ErrUnsupportedKind)
	}
	return Array{elem: elem}, nil
}

// ArrayOf is NewArray for statically known element types; it panics on an
// unsupported element.
func ArrayOf(elem Type) Type {
	t, err := NewArray(elem)
	if err != nil {
		panic(err)
	}
	return t
}

func (Array) Kind() Kind { return KindArray }
func (Array) sealed()    {}

// Elem returns the element type.
func (a Array) Elem() Type { return a.elem }

// Name is a display name only (the pluralised element name).
func (a Array) Name() string { return inflect.Pluralize(a.elem.Name()) }

func (a Array) SQL() string { return a.elem.SQL() + "[]" }

// Domain is a named alias of Base with its own identity.
type Domain struct {
	name string
	base Type
}

// NewDomain declares CREATE DOMAIN name AS base. It panics on a nil base.
func NewDomain(name string, base Type) Type {
	if base == nil {
		panic(fmt.Errorf("sqltype: domain %s base: %w", name, ErrUnsupportedKind))
	}
	return Domain{name: name, base: base}
}

func (Domain) Kind() Kind { return KindDomain }
func (Domain) sealed()    {}

func (d Domain) Name() string { return d.name }
func (d Domain) SQL() string  { return d.name }
func (d Domain) Base() Type   { return d.base }

// Enum is a named type with a fixed set of labels.
type Enum struct {
	name   string
	labels []string
}

// NewEnum declares CREATE TYPE name AS ENUM (labels...).
func NewEnum(name string, labels ...string) Type {
	return Enum{name: name, labels: append([]string(nil), labels...)}
}

func (Enum) Kind() Kind { return KindEnum }
func (Enum) sealed()    {}

func (e Enum) Name() string { return e.name }
func (e Enum) SQL() string  { return e.name }

// Labels returns a copy of the enum labels in declaration order.
func (e Enum) Labels() []string { return append([]string(nil), e.labels...) }

// HasLabel reports whether s is one of the labels.
func (e Enum) HasLabel(s string) bool {
	for _, l := range e.labels {
		if l == s {
			return true
		}
	}
	return false
}

// IsStandard reports whether t needs no CREATE statement of its own and
// references no type that does.
func IsStandard(t Type) bool {
	switch tt := t.(type) {
	case Scalar:
		return true
	case Array:
		return IsStandard(tt.elem)
	default:
		return false
	}
}
