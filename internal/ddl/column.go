package ddl

import (
	"strings"

	"pgtable/internal/escape"
	"pgtable/internal/sqltype"
	"pgtable/internal/typedef"
	"pgtable/internal/value"
)

// IndexMethod is the access method used by CREATE INDEX.
type IndexMethod uint8

const (
	BTree IndexMethod = iota + 1
	Hash
)

func (m IndexMethod) String() string {
	switch m {
	case BTree:
		return "btree"
	case Hash:
		return "hash"
	default:
		return ""
	}
}

// ParseIndexMethod maps "btree" / "hash" (case-insensitive) to an IndexMethod.
func ParseIndexMethod(s string) (IndexMethod, bool) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "btree":
		return BTree, true
	case "hash":
		return Hash, true
	default:
		return 0, false
	}
}

// Index is a single-column index declared on a column.
type Index struct {
	Table  string
	Column string
	Method IndexMethod
}

// Name is derived as <column>_idx_<table>.
func (i Index) Name() string { return i.Column + "_idx_" + i.Table }

// SQL renders the CREATE INDEX statement.
func (i Index) SQL() string {
	return "CREATE INDEX IF NOT EXISTS " + i.Name() + " ON " + i.Table +
		" USING " + i.Method.String() + " (" + i.Column + ");"
}

// Reference is the target of a column-level foreign key.
type Reference struct {
	Table  string
	Column string
}

// Column binds a name to a type plus its modifiers. It is immutable; build
// one with NewColumn(...).Finish().
type Column struct {
	name       string
	typ        sqltype.Type
	nullable   bool
	unique     bool
	primaryKey bool
	ref        *Reference
	index      IndexMethod
}

// ColumnBuilder accumulates column modifiers. Every method returns a new
// builder, so a partially configured builder can be shared safely.
type ColumnBuilder struct {
	col Column
}

// NewColumn starts a NOT NULL column with no modifiers.
func NewColumn(name string, t sqltype.Type) ColumnBuilder {
	return ColumnBuilder{col: Column{name: name, typ: t}}
}

func (b ColumnBuilder) Nullable() ColumnBuilder {
	b.col.nullable = true
	return b
}

func (b ColumnBuilder) Unique() ColumnBuilder {
	b.col.unique = true
	return b
}

// PrimaryKey marks the column as the primary key. It implies Unique.
func (b ColumnBuilder) PrimaryKey() ColumnBuilder {
	b.col.primaryKey = true
	b.col.unique = true
	return b
}

func (b ColumnBuilder) ForeignKey(table, column string) ColumnBuilder {
	b.col.ref = &Reference{Table: table, Column: column}
	return b
}

// Index requests a single-column index with the given method.
func (b ColumnBuilder) Index(m IndexMethod) ColumnBuilder {
	b.col.index = m
	return b
}

// Finish returns the immutable column.
func (b ColumnBuilder) Finish() Column {
	c := b.col
	if c.ref != nil {
		r := *c.ref
		c.ref = &r
	}
	return c
}

func (c Column) Name() string       { return c.name }
func (c Column) Type() sqltype.Type { return c.typ }
func (c Column) IsNullable() bool   { return c.nullable }
func (c Column) IsUnique() bool     { return c.unique }
func (c Column) IsPrimaryKey() bool { return c.primaryKey }

// ForeignKey returns the referenced table and column, if any.
func (c Column) ForeignKey() (Reference, bool) {
	if c.ref == nil {
		return Reference{}, false
	}
	return *c.ref, true
}

// IndexMethod returns the declared index method, if any.
func (c Column) IndexMethod() (IndexMethod, bool) { return c.index, c.index != 0 }

// Definition renders the column fragment used inside CREATE TABLE:
//
//	<name> <type>[ NULL| NOT NULL][ UNIQUE][ PRIMARY KEY][ REFERENCES <table>(<col>)]
func (c Column) Definition() string {
	var sb strings.Builder
	sb.WriteString(c.name)
	sb.WriteByte(' ')
	if c.typ != nil {
		sb.WriteString(c.typ.SQL())
	}
	if c.nullable {
		sb.WriteString(" NULL")
	} else {
		sb.WriteString(" NOT NULL")
	}
	if c.unique {
		sb.WriteString(" UNIQUE")
	}
	if c.primaryKey {
		sb.WriteString(" PRIMARY KEY")
	}
	if c.ref != nil {
		sb.WriteString(" REFERENCES ")
		sb.WriteString(c.ref.Table)
		sb.WriteByte('(')
		sb.WriteString(c.ref.Column)
		sb.WriteByte(')')
	}
	return sb.String()
}

func (c Column) String() string { return c.Definition() }

// TypeDefinitions lists the CREATE TYPE / CREATE DOMAIN statements the
// column's type depends on.
func (c Column) TypeDefinitions() []typedef.Definition {
	if c.typ == nil {
		return nil
	}
	return typedef.For(c.typ)
}

// Index returns the index declared on this column for table.
func (c Column) Index(table string) (Index, bool) {
	if c.index == 0 {
		return Index{}, false
	}
	return Index{Table: table, Column: c.name, Method: c.index}, true
}

// Escape renders v as a literal for this column. Nullable columns accept
// value.Null and value.Some; errors carry the column name.
func (c Column) Escape(v value.Value) (string, error) {
	var (
		s   string
		err error
	)
	if c.nullable {
		s, err = escape.Nullable(c.typ, v)
	} else {
		s, err = escape.Value(c.typ, v)
	}
	if err != nil {
		return "", escape.WithColumn(err, c.name)
	}
	return s, nil
}
