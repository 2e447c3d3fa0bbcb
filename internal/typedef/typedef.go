// Package typedef derives the CREATE TYPE / CREATE DOMAIN statements a type
// depends on.
//
// The walk is depth-first and post-order, so every type is preceded by the
// definitions of the types it references. Results are deduplicated by type
// name, keeping the first occurrence; a name that is already being expanded
// is skipped, which keeps user-defined composite graphs finite even if they
// refer back to themselves.
package typedef

import (
	"fmt"
	"strings"

	"pgtable/internal/escape"
	"pgtable/internal/sqltype"
)

// Definition is a named type and the statement that creates it.
type Definition struct {
	Name string
	SQL  string
}

// For returns the definitions needed before t can be referenced, in
// dependency order. Standard types yield nothing.
func For(t sqltype.Type) []Definition {
	w := walker{seen: map[string]struct{}{}}
	w.visit(t)
	return w.out
}

// Collect concatenates the definitions of every type and deduplicates them
// by name, preserving first-seen order.
func Collect(types ...sqltype.Type) []Definition {
	w := walker{seen: map[string]struct{}{}}
	for _, t := range types {
		w.visit(t)
	}
	return w.out
}

// Dedup removes later definitions whose name was already seen.
func Dedup(defs []Definition) []Definition {
	seen := make(map[string]struct{}, len(defs))
	out := make([]Definition, 0, len(defs))
	for _, d := range defs {
		if _, ok := seen[d.Name]; ok {
			continue
		}
		seen[d.Name] = struct{}{}
		out = append(out, d)
	}
	return out
}

// Join renders the statements separated by "; ".
func Join(defs []Definition) string {
	parts := make([]string, len(defs))
	for i, d := range defs {
		parts[i] = d.SQL
	}
	return strings.Join(parts, "; ")
}

// Names returns the type names in order.
func Names(defs []Definition) []string {
	out := make([]string, len(defs))
	for i, d := range defs {
		out[i] = d.Name
	}
	return out
}

type walker struct {
	seen map[string]struct{}
	out  []Definition
}

// enter marks name as visited and reports whether it was new.
func (w *walker) enter(name string) bool {
	if _, ok := w.seen[name]; ok {
		return false
	}
	w.seen[name] = struct{}{}
	return true
}

func (w *walker) visit(t sqltype.Type) {
	switch tt := t.(type) {
	case sqltype.Array:
		w.visit(mustType(tt.Elem(), "array element"))

	case sqltype.Domain:
		if !w.enter(tt.Name()) {
			return
		}
		base := mustType(tt.Base(), "domain "+tt.Name()+" base")
		w.visit(base)
		w.out = append(w.out, Definition{
			Name: tt.Name(),
			SQL:  `CREATE DOMAIN "` + tt.Name() + `" AS ` + base.SQL(),
		})

	case sqltype.Enum:
		if !w.enter(tt.Name()) {
			return
		}
		labels := tt.Labels()
		quoted := make([]string, len(labels))
		for i, l := range labels {
			quoted[i] = escape.Literal(l)
		}
		w.out = append(w.out, Definition{
			Name: tt.Name(),
			SQL:  `CREATE TYPE "` + tt.Name() + `" AS ENUM (` + strings.Join(quoted, ", ") + ")",
		})

	case sqltype.Composite:
		if !w.enter(tt.Name()) {
			return
		}
		fields := tt.Fields()
		cols := make([]string, 0, len(fields))
		for _, f := range fields {
			w.visit(mustType(f.Type, "composite "+tt.Name()+" field "+f.Name))
			cols = append(cols, f.Name+" "+f.Type.SQL())
		}
		w.out = append(w.out, Definition{
			Name: tt.Name(),
			SQL:  "CREATE TYPE " + tt.Name() + " AS (" + strings.Join(cols, ", ") + ")",
		})
	}
}

// mustType panics on a missing type; a malformed node has no statement.
func mustType(t sqltype.Type, what string) sqltype.Type {
	if t == nil {
		panic(fmt.Errorf("typedef: %s: %w", what, sqltype.ErrUnsupportedKind))
	}
	return t
}
