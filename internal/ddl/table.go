// Package ddl compiles typed table descriptions into Postgres DDL and DML
// text.
//
// A Table owns an ordered list of Columns and table-level Constraints. Every
// statement is available as its own operation (types, table, indexes,
// inserts) so the caller decides how to sequence them against a server;
// nothing in this package performs I/O.
//
// Identifiers are emitted verbatim. Values reach SQL either through
// placeholders (InsertSQL, InsertManySQL, Args) or through the literal codec
// (InsertLiteralSQL).
package ddl

import (
	"fmt"
	"strconv"
	"strings"

	"pgtable/internal/typedef"
	"pgtable/internal/value"
)

// Table is an immutable table description.
type Table struct {
	name        string
	columns     []Column
	constraints []Constraint
}

// NewTable validates and assembles a table.
//
// Rules:
//
//   - name must be non-empty.
//   - At least one column is required.
//   - Column names must be non-empty and unique; every column needs a type.
//   - Constraint names must be non-empty.
func NewTable(name string, columns []Column, constraints ...Constraint) (*Table, error) {
	name = strings.TrimSpace(name)
	if name == "" {
		return nil, fmt.Errorf("ddl: table name must not be empty")
	}
	if len(columns) == 0 {
		return nil, fmt.Errorf("ddl: table %s: at least one column is required", name)
	}

	seen := make(map[string]struct{}, len(columns))
	for _, c := range columns {
		if strings.TrimSpace(c.Name()) == "" {
			return nil, fmt.Errorf("ddl: column with empty name in table %s", name)
		}
		if c.Type() == nil {
			return nil, fmt.Errorf("ddl: column %s.%s missing type", name, c.Name())
		}
		if _, dup := seen[c.Name()]; dup {
			return nil, fmt.Errorf("ddl: duplicate column %s in table %s", c.Name(), name)
		}
		seen[c.Name()] = struct{}{}
	}
	for _, k := range constraints {
		if k == nil || strings.TrimSpace(k.Name()) == "" {
			return nil, fmt.Errorf("ddl: constraint with empty name in table %s", name)
		}
	}

	return &Table{
		name:        name,
		columns:     append([]Column(nil), columns...),
		constraints: append([]Constraint(nil), constraints...),
	}, nil
}

// MustTable is NewTable for statically declared tables; it panics on error.
func MustTable(name string, columns []Column, constraints ...Constraint) *Table {
	t, err := NewTable(name, columns, constraints...)
	if err != nil {
		panic(err)
	}
	return t
}

func (t *Table) Name() string { return t.name }

// Columns returns a copy of the columns in declaration order.
func (t *Table) Columns() []Column { return append([]Column(nil), t.columns...) }

// Constraints returns a copy of the table-level constraints.
func (t *Table) Constraints() []Constraint { return append([]Constraint(nil), t.constraints...) }

// ColumnNames returns the column names in declaration order.
func (t *Table) ColumnNames() []string { return columnNames(t.columns) }

// Column looks a column up by name.
func (t *Table) Column(name string) (Column, bool) {
	for _, c := range t.columns {
		if c.name == name {
			return c, true
		}
	}
	return Column{}, false
}

// TypeDefinitions returns the type statements every column depends on,
// deduplicated by type name in first-seen order. Dependencies always precede
// the types that reference them.
func (t *Table) TypeDefinitions() []typedef.Definition {
	var all []typedef.Definition
	for _, c := range t.columns {
		all = append(all, c.TypeDefinitions()...)
	}
	return typedef.Dedup(all)
}

// CreateTypesSQL joins TypeDefinitions with "; ". It is empty when the table
// uses standard types only.
func (t *Table) CreateTypesSQL() string {
	return typedef.Join(t.TypeDefinitions())
}

// CreateTableSQL renders
//
//	CREATE TABLE IF NOT EXISTS <name> (<col defs>[, <constraints>]);
func (t *Table) CreateTableSQL() string {
	parts := make([]string, 0, len(t.columns)+len(t.constraints))
	for _, c := range t.columns {
		parts = append(parts, c.Definition())
	}
	for _, k := range t.constraints {
		parts = append(parts, k.SQL())
	}
	return "CREATE TABLE IF NOT EXISTS " + t.name + " (" + strings.Join(parts, ", ") + ");"
}

// Indexes lists the declared indexes in column order.
func (t *Table) Indexes() []Index {
	var out []Index
	for _, c := range t.columns {
		if idx, ok := c.Index(t.name); ok {
			out = append(out, idx)
		}
	}
	return out
}

// CreateIndexesSQL renders one CREATE INDEX statement per indexed column.
func (t *Table) CreateIndexesSQL() []string {
	idx := t.Indexes()
	out := make([]string, len(idx))
	for i, ix := range idx {
		out[i] = ix.SQL()
	}
	return out
}

// DropTableSQL renders DROP TABLE IF EXISTS <name>;
func (t *Table) DropTableSQL() string {
	return "DROP TABLE IF EXISTS " + t.name + ";"
}

// InsertSQL renders a single-row parameterized insert.
func (t *Table) InsertSQL() string {
	return t.InsertManySQL(1)
}

// InsertManySQL renders a parameterized insert of rows row groups. Group k
// uses placeholders $(k*N+1) .. $(k*N+N). It returns "" when rows <= 0.
func (t *Table) InsertManySQL(rows int) string {
	if rows <= 0 {
		return ""
	}
	n := len(t.columns)

	var sb strings.Builder
	sb.WriteString(t.insertPrefix())
	for r := 0; r < rows; r++ {
		if r > 0 {
			sb.WriteString(", ")
		}
		sb.WriteByte('(')
		for c := 0; c < n; c++ {
			if c > 0 {
				sb.WriteString(", ")
			}
			sb.WriteByte('$')
			sb.WriteString(strconv.Itoa(r*n + c + 1))
		}
		sb.WriteByte(')')
	}
	sb.WriteByte(';')
	return sb.String()
}

// InsertLiteralSQL renders a single-row insert with every value escaped
// inline. The first value that fails to escape aborts the statement; the
// returned error names the column and its declared type.
func (t *Table) InsertLiteralSQL(row []value.Value) (string, error) {
	if err := t.checkArity(row); err != nil {
		return "", err
	}
	lits := make([]string, len(row))
	for i, c := range t.columns {
		s, err := c.Escape(row[i])
		if err != nil {
			return "", err
		}
		lits[i] = s
	}
	return t.insertPrefix() + "(" + strings.Join(lits, ", ") + ");", nil
}

// Args converts one row into placeholder arguments for InsertSQL.
func (t *Table) Args(row []value.Value) ([]any, error) {
	if err := t.checkArity(row); err != nil {
		return nil, err
	}
	out := make([]any, len(row))
	for i, v := range row {
		out[i] = v.Native()
	}
	return out, nil
}

// ArgsMany flattens rows into the argument list for InsertManySQL(len(rows)).
func (t *Table) ArgsMany(rows [][]value.Value) ([]any, error) {
	out := make([]any, 0, len(rows)*len(t.columns))
	for i, r := range rows {
		args, err := t.Args(r)
		if err != nil {
			return nil, fmt.Errorf("row %d: %w", i, err)
		}
		out = append(out, args...)
	}
	return out, nil
}

// SelectSQL renders SELECT * FROM <name>[ WHERE <cond>];. cond is raw SQL.
func (t *Table) SelectSQL(cond string) string {
	cond = strings.TrimSpace(cond)
	if cond == "" {
		return "SELECT * FROM " + t.name + ";"
	}
	return "SELECT * FROM " + t.name + " WHERE " + cond + ";"
}

func (t *Table) insertPrefix() string {
	return "INSERT INTO " + t.name + " (" + strings.Join(t.ColumnNames(), ", ") + ") VALUES "
}

func (t *Table) checkArity(row []value.Value) error {
	if len(row) != len(t.columns) {
		return fmt.Errorf("ddl: table %s: got %d values for %d columns", t.name, len(row), len(t.columns))
	}
	return nil
}
