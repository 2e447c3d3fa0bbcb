package ddl

import "strings"

// Constraint is a named table-level fragment rendered after the column
// definitions of CREATE TABLE.
type Constraint interface {
	Name() string
	// SQL renders "CONSTRAINT <name> <body>".
	SQL() string
}

type checkConstraint struct {
	name, cond string
}

// Check is CHECK (<cond>); cond is raw SQL and is emitted as-is.
func Check(name, cond string) Constraint {
	return checkConstraint{name: name, cond: cond}
}

func (c checkConstraint) Name() string { return c.name }
func (c checkConstraint) SQL() string {
	return "CONSTRAINT " + c.name + " CHECK (" + c.cond + ")"
}

type primaryKeyConstraint struct {
	name string
	cols []string
}

// PrimaryKeyOn declares a (possibly composite) primary key over cols.
func PrimaryKeyOn(name string, cols ...Column) Constraint {
	return primaryKeyConstraint{name: name, cols: columnNames(cols)}
}

func (c primaryKeyConstraint) Name() string { return c.name }
func (c primaryKeyConstraint) SQL() string {
	return "CONSTRAINT " + c.name + " PRIMARY KEY (" + strings.Join(c.cols, ", ") + ")"
}

// ColumnPair maps a local column to a column of the referenced table.
type ColumnPair struct {
	From string
	To   string
}

// Pair builds a ColumnPair from a local column and the target column name.
func Pair(from Column, to string) ColumnPair {
	return ColumnPair{From: from.Name(), To: to}
}

type foreignKeyConstraint struct {
	name  string
	table string
	pairs []ColumnPair
}

// ForeignKeyTo declares FOREIGN KEY (from...) REFERENCES table (to...), with
// columns matched positionally.
func ForeignKeyTo(name, table string, pairs ...ColumnPair) Constraint {
	return foreignKeyConstraint{name: name, table: table, pairs: append([]ColumnPair(nil), pairs...)}
}

func (c foreignKeyConstraint) Name() string { return c.name }
func (c foreignKeyConstraint) SQL() string {
	from := make([]string, len(c.pairs))
	to := make([]string, len(c.pairs))
	for i, p := range c.pairs {
		from[i] = p.From
		to[i] = p.To
	}
	return "CONSTRAINT " + c.name + " FOREIGN KEY (" + strings.Join(from, ", ") +
		") REFERENCES " + c.table + " (" + strings.Join(to, ", ") + ")"
}

type uniqueConstraint struct {
	name             string
	cols             []string
	nullsNotDistinct bool
}

// UniqueOn declares UNIQUE over cols. With nullsNotDistinct, NULLs compare
// equal (UNIQUE NULLS NOT DISTINCT, Postgres 15+).
func UniqueOn(name string, nullsNotDistinct bool, cols ...Column) Constraint {
	return uniqueConstraint{name: name, cols: columnNames(cols), nullsNotDistinct: nullsNotDistinct}
}

func (c uniqueConstraint) Name() string { return c.name }
func (c uniqueConstraint) SQL() string {
	body := "UNIQUE ("
	if c.nullsNotDistinct {
		body = "UNIQUE NULLS NOT DISTINCT ("
	}
	return "CONSTRAINT " + c.name + " " + body + strings.Join(c.cols, ", ") + ")"
}

func columnNames(cols []Column) []string {
	out := make([]string, len(cols))
	for i, c := range cols {
		out[i] = c.Name()
	}
	return out
}
