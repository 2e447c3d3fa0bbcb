package config

import (
	"fmt"
	"strconv"
	"strings"
	"unicode"

	"golang.org/x/text/runes"
	"golang.org/x/text/transform"
	"golang.org/x/text/unicode/norm"

	"pgtable/internal/ddl"
	"pgtable/internal/sqltype"
)

var builtinTypes = map[string]sqltype.Type{
	"bool":             sqltype.BoolType,
	"boolean":          sqltype.BoolType,
	"int2":             sqltype.Int2Type,
	"smallint":         sqltype.Int2Type,
	"int4":             sqltype.Int4Type,
	"int":              sqltype.Int4Type,
	"integer":          sqltype.Int4Type,
	"int8":             sqltype.Int8Type,
	"bigint":           sqltype.Int8Type,
	"uuid":             sqltype.UUIDType,
	"float4":           sqltype.Float4Type,
	"real":             sqltype.Float4Type,
	"float8":           sqltype.Float8Type,
	"double precision": sqltype.Float8Type,
	"date":             sqltype.DateType,
	"json":             sqltype.JSONType,
	"char":             sqltype.CharType,
	"varchar":          sqltype.VarCharType,
	"text":             sqltype.TextType,
	"serial2":          sqltype.Serial2Type,
	"smallserial":      sqltype.Serial2Type,
	"serial4":          sqltype.Serial4Type,
	"serial":           sqltype.Serial4Type,
	"serial8":          sqltype.Serial8Type,
	"bigserial":        sqltype.Serial8Type,
}

// resolver turns type strings into sqltype nodes, building declared types on
// first use. Declared types are constructed bottom-up, so a declaration that
// depends on itself is reported instead of producing a cycle.
type resolver struct {
	specs    map[string]TypeSpec
	built    map[string]sqltype.Type
	building map[string]bool
	ident    func(string) string
}

func newResolver(types []TypeSpec, ident func(string) string) (*resolver, error) {
	r := &resolver{
		specs:    make(map[string]TypeSpec, len(types)),
		built:    map[string]sqltype.Type{},
		building: map[string]bool{},
		ident:    ident,
	}
	for i, ts := range types {
		name := ident(ts.Name)
		if name == "" {
			return nil, fmt.Errorf("config: types[%d]: name must not be empty", i)
		}
		if _, dup := r.specs[name]; dup {
			return nil, fmt.Errorf("config: types[%d]: duplicate type %q", i, name)
		}
		if _, clash := builtinTypes[name]; clash {
			return nil, fmt.Errorf("config: types[%d]: %q shadows a builtin type", i, name)
		}
		r.specs[name] = ts
	}
	return r, nil
}

// ParseType resolves a type string against the builtin types only.
//
// Accepted forms: builtin names and common aliases (int, bigint, boolean,
// serial, ...), char(n), varchar(n), and a single trailing [] for arrays.
func ParseType(s string) (sqltype.Type, error) {
	r := &resolver{ident: func(s string) string { return s }}
	return r.parse(s)
}

func (r *resolver) parse(s string) (sqltype.Type, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return nil, fmt.Errorf("config: empty type")
	}

	if base, ok := strings.CutSuffix(s, "[]"); ok {
		if strings.HasSuffix(strings.TrimSpace(base), "[]") {
			return nil, fmt.Errorf("config: type %q: %w", s, sqltype.ErrUnsupportedKind)
		}
		elem, err := r.parse(base)
		if err != nil {
			return nil, err
		}
		return sqltype.NewArray(elem)
	}

	lower := strings.ToLower(s)
	if t, ok := builtinTypes[lower]; ok {
		return t, nil
	}
	if t, ok, err := parseSized(lower); ok {
		return t, err
	}
	return r.named(s)
}

// parseSized handles char(n) and varchar(n).
func parseSized(s string) (sqltype.Type, bool, error) {
	open := strings.IndexByte(s, '(')
	if open < 0 || !strings.HasSuffix(s, ")") {
		return nil, false, nil
	}
	head := strings.TrimSpace(s[:open])
	var mk func(int) sqltype.Type
	switch head {
	case "char", "character":
		mk = sqltype.CharN
	case "varchar", "character varying":
		mk = sqltype.VarCharN
	default:
		return nil, false, nil
	}
	n, err := strconv.Atoi(strings.TrimSpace(s[open+1 : len(s)-1]))
	if err != nil || n <= 0 {
		return nil, true, fmt.Errorf("config: type %q: length must be a positive integer", s)
	}
	return mk(n), true, nil
}

func (r *resolver) named(raw string) (sqltype.Type, error) {
	name := r.ident(raw)
	if t, ok := r.built[name]; ok {
		return t, nil
	}
	spec, ok := r.specs[name]
	if !ok {
		return nil, fmt.Errorf("config: unknown type %q", raw)
	}
	if r.building[name] {
		return nil, fmt.Errorf("config: type %q refers to itself", name)
	}
	r.building[name] = true
	defer delete(r.building, name)

	t, err := r.build(name, spec)
	if err != nil {
		return nil, err
	}
	r.built[name] = t
	return t, nil
}

func (r *resolver) build(name string, spec TypeSpec) (sqltype.Type, error) {
	switch strings.ToLower(strings.TrimSpace(spec.Kind)) {
	case "composite":
		if len(spec.Fields) == 0 {
			return nil, fmt.Errorf("config: composite %q has no fields", name)
		}
		fields := make([]sqltype.Field, len(spec.Fields))
		for i, f := range spec.Fields {
			ft, err := r.parse(f.Type)
			if err != nil {
				return nil, fmt.Errorf("config: composite %q field %q: %w", name, f.Name, err)
			}
			fields[i] = sqltype.Field{Name: r.ident(f.Name), Type: ft}
		}
		return sqltype.StructType(name, fields...), nil

	case "enum":
		return sqltype.NewEnum(name, spec.Labels...), nil

	case "domain":
		base, err := r.parse(spec.Base)
		if err != nil {
			return nil, fmt.Errorf("config: domain %q: %w", name, err)
		}
		return sqltype.NewDomain(name, base), nil

	default:
		return nil, fmt.Errorf("config: type %q: unknown kind %q", name, spec.Kind)
	}
}

// BuildTypes resolves every declared type, in declaration order.
func BuildTypes(d Document) ([]sqltype.Type, error) {
	r, err := newResolver(d.Types, identFunc(d))
	if err != nil {
		return nil, err
	}
	out := make([]sqltype.Type, 0, len(d.Types))
	for _, ts := range d.Types {
		t, err := r.named(ts.Name)
		if err != nil {
			return nil, err
		}
		out = append(out, t)
	}
	return out, nil
}

// BuildTables compiles every table of the document into a ddl.Table, in
// document order.
func BuildTables(d Document) ([]*ddl.Table, error) {
	ident := identFunc(d)
	r, err := newResolver(d.Types, ident)
	if err != nil {
		return nil, err
	}

	out := make([]*ddl.Table, 0, len(d.Tables))
	for i, ts := range d.Tables {
		t, err := buildTable(r, ident, ts)
		if err != nil {
			return nil, fmt.Errorf("config: tables[%d] %s: %w", i, ts.Name, err)
		}
		out = append(out, t)
	}
	return out, nil
}

func buildTable(r *resolver, ident func(string) string, ts TableSpec) (*ddl.Table, error) {
	name := ident(ts.Name)

	cols := make([]ddl.Column, 0, len(ts.Columns))
	byName := make(map[string]ddl.Column, len(ts.Columns))
	for _, cs := range ts.Columns {
		typ, err := r.parse(cs.Type)
		if err != nil {
			return nil, fmt.Errorf("column %s: %w", cs.Name, err)
		}
		b := ddl.NewColumn(ident(cs.Name), typ)
		if cs.Nullable {
			b = b.Nullable()
		}
		if cs.Unique {
			b = b.Unique()
		}
		if cs.PrimaryKey {
			b = b.PrimaryKey()
		}
		if cs.References != nil {
			b = b.ForeignKey(ident(cs.References.Table), ident(cs.References.Column))
		}
		if cs.Index != "" {
			m, ok := ddl.ParseIndexMethod(cs.Index)
			if !ok {
				return nil, fmt.Errorf("column %s: unknown index method %q", cs.Name, cs.Index)
			}
			b = b.Index(m)
		}
		c := b.Finish()
		cols = append(cols, c)
		byName[c.Name()] = c
	}

	lookup := func(names []string) ([]ddl.Column, error) {
		out := make([]ddl.Column, len(names))
		for i, n := range names {
			c, ok := byName[ident(n)]
			if !ok {
				return nil, fmt.Errorf("unknown column %q", n)
			}
			out[i] = c
		}
		return out, nil
	}

	cons := make([]ddl.Constraint, 0, len(ts.Constraints))
	for _, cs := range ts.Constraints {
		cname := ident(cs.Name)
		switch strings.ToLower(strings.TrimSpace(cs.Kind)) {
		case "check":
			cons = append(cons, ddl.Check(cname, cs.Condition))
		case "primary_key":
			c, err := lookup(cs.Columns)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", cs.Name, err)
			}
			cons = append(cons, ddl.PrimaryKeyOn(cname, c...))
		case "unique":
			c, err := lookup(cs.Columns)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", cs.Name, err)
			}
			cons = append(cons, ddl.UniqueOn(cname, cs.NullsNotDistinct, c...))
		case "foreign_key":
			if len(cs.Columns) != len(cs.RefColumns) {
				return nil, fmt.Errorf("constraint %s: %d columns but %d ref_columns", cs.Name, len(cs.Columns), len(cs.RefColumns))
			}
			c, err := lookup(cs.Columns)
			if err != nil {
				return nil, fmt.Errorf("constraint %s: %w", cs.Name, err)
			}
			pairs := make([]ddl.ColumnPair, len(c))
			for i := range c {
				pairs[i] = ddl.Pair(c[i], ident(cs.RefColumns[i]))
			}
			cons = append(cons, ddl.ForeignKeyTo(cname, ident(cs.Table), pairs...))
		default:
			return nil, fmt.Errorf("constraint %s: unknown kind %q", cs.Name, cs.Kind)
		}
	}

	return ddl.NewTable(name, cols, cons...)
}

func identFunc(d Document) func(string) string {
	if d.NormalizeNames {
		return NormalizeIdentifier
	}
	return strings.TrimSpace
}

// NormalizeIdentifier folds s into a lower-case ASCII snake_case identifier:
// accents are stripped (NFD, drop nonspacing marks, NFC), separators collapse
// to a single underscore, and anything else is dropped. An identifier that
// would start with a digit gets a leading underscore.
func NormalizeIdentifier(s string) string {
	s = strings.ToLower(strings.TrimSpace(s))

	t := transform.Chain(
		norm.NFD,
		runes.Remove(runes.In(unicode.Mn)),
		norm.NFC,
	)
	folded, _, _ := transform.String(t, s)

	var b strings.Builder
	prevUnderscore := false
	for _, r := range folded {
		switch {
		case r >= 'a' && r <= 'z', r >= '0' && r <= '9':
			b.WriteRune(r)
			prevUnderscore = false
		case r == '_' || r == ' ' || r == '-' || r == '.':
			if !prevUnderscore {
				b.WriteRune('_')
				prevUnderscore = true
			}
		}
	}
	name := strings.Trim(b.String(), "_")
	if name != "" && name[0] >= '0' && name[0] <= '9' {
		name = "_" + name
	}
	return name
}
