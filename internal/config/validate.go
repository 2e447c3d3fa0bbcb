// Package config provides configuration models and helpers for schema
// documents.
//
// This file adds a lightweight linter/validator for Document values. It
// performs static checks over a decoded Document and returns a list of issues
// (errors and warnings) that callers can surface in a CLI or tests.
package config

import (
	"fmt"
	"strings"

	"pgtable/internal/ddl"
)

// IssueSeverity represents the severity of a configuration issue.
type IssueSeverity string

const (
	// SeverityError indicates a configuration error that should block execution.
	SeverityError IssueSeverity = "error"
	// SeverityWarning indicates a configuration warning that should be surfaced
	// to users but may not necessarily block execution.
	SeverityWarning IssueSeverity = "warning"
)

// Issue describes a single validation/lint finding for a Document.
//
// Path is a dotted path into the document (e.g. "tables[0].columns[2].type").
// Message is human-readable.
type Issue struct {
	Severity IssueSeverity
	Path     string
	Message  string
}

// Error implements the error interface so an Issue can be treated as a single
// error in contexts that expect error.
func (i Issue) Error() string {
	return fmt.Sprintf("%s at %s: %s", i.Severity, i.Path, i.Message)
}

// HasErrors reports whether any issue has SeverityError.
func HasErrors(issues []Issue) bool {
	for _, iss := range issues {
		if iss.Severity == SeverityError {
			return true
		}
	}
	return false
}

// ValidateDocument performs static validation / linting of a Document.
//
// It does not mutate the document. Callers may decide whether to treat
// warnings as fatal or not. A document without errors is guaranteed to pass
// BuildTables.
func ValidateDocument(d Document) []Issue {
	var issues []Issue

	if strings.TrimSpace(d.Schema) == "" {
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "schema",
			Message:  "schema is empty; it is used for metrics labeling and logs",
		})
	}

	ident := identFunc(d)
	issues = append(issues, validateTypes(d.Types, ident)...)
	issues = append(issues, validateTables(d, ident)...)
	issues = append(issues, validateStorage(d.Storage)...)
	issues = append(issues, validateRuntime(d.Runtime)...)

	return issues
}

func validateTypes(types []TypeSpec, ident func(string) string) []Issue {
	var issues []Issue
	seen := map[string]int{}

	for i, ts := range types {
		path := fmt.Sprintf("types[%d]", i)
		name := ident(ts.Name)
		if name == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "type name must not be empty"})
			continue
		}
		if j, dup := seen[name]; dup {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate type %q (first declared at types[%d])", name, j)})
		}
		seen[name] = i
		if _, ok := builtinTypes[name]; ok {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("%q shadows a builtin type", name)})
		}

		switch strings.ToLower(strings.TrimSpace(ts.Kind)) {
		case "composite":
			if len(ts.Fields) == 0 {
				issues = append(issues, Issue{SeverityError, path + ".fields", "composite type needs at least one field"})
			}
			fields := map[string]struct{}{}
			for j, f := range ts.Fields {
				fp := fmt.Sprintf("%s.fields[%d]", path, j)
				fn := ident(f.Name)
				if fn == "" {
					issues = append(issues, Issue{SeverityError, fp + ".name", "field name must not be empty"})
				} else if _, dup := fields[fn]; dup {
					issues = append(issues, Issue{SeverityError, fp + ".name", fmt.Sprintf("duplicate field %q", fn)})
				}
				fields[fn] = struct{}{}
				if strings.TrimSpace(f.Type) == "" {
					issues = append(issues, Issue{SeverityError, fp + ".type", "field type must not be empty"})
				}
			}
		case "enum":
			if len(ts.Labels) == 0 {
				issues = append(issues, Issue{SeverityWarning, path + ".labels", "enum has no labels; no value will ever escape against it"})
			}
			labels := map[string]struct{}{}
			for j, l := range ts.Labels {
				if _, dup := labels[l]; dup {
					issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.labels[%d]", path, j), fmt.Sprintf("duplicate label %q", l)})
				}
				labels[l] = struct{}{}
			}
		case "domain":
			if strings.TrimSpace(ts.Base) == "" {
				issues = append(issues, Issue{SeverityError, path + ".base", "domain requires a base type"})
			}
		case "":
			issues = append(issues, Issue{SeverityError, path + ".kind", "type kind must not be empty"})
		default:
			issues = append(issues, Issue{SeverityError, path + ".kind", fmt.Sprintf("unknown type kind %q (want composite, enum or domain)", ts.Kind)})
		}
	}

	if len(issues) > 0 {
		return issues
	}

	// Resolve every declared type so unknown references and self-references
	// surface here rather than at build time.
	r, err := newResolver(types, ident)
	if err != nil {
		return append(issues, Issue{SeverityError, "types", err.Error()})
	}
	for i, ts := range types {
		if _, err := r.named(ts.Name); err != nil {
			issues = append(issues, Issue{SeverityError, fmt.Sprintf("types[%d]", i), err.Error()})
		}
	}
	return issues
}

func validateTables(d Document, ident func(string) string) []Issue {
	var issues []Issue

	if len(d.Tables) == 0 {
		return []Issue{{SeverityError, "tables", "at least one table is required"}}
	}

	// Type errors are reported by validateTypes; resolve column types only
	// when the declarations themselves are sound.
	r, rerr := newResolver(d.Types, ident)

	tables := map[string]map[string]struct{}{}
	for _, ts := range d.Tables {
		cols := map[string]struct{}{}
		for _, c := range ts.Columns {
			cols[ident(c.Name)] = struct{}{}
		}
		tables[ident(ts.Name)] = cols
	}

	seenTables := map[string]struct{}{}
	for i, ts := range d.Tables {
		path := fmt.Sprintf("tables[%d]", i)
		name := ident(ts.Name)
		if name == "" {
			issues = append(issues, Issue{SeverityError, path + ".name", "table name must not be empty"})
		} else if _, dup := seenTables[name]; dup {
			issues = append(issues, Issue{SeverityError, path + ".name", fmt.Sprintf("duplicate table %q", name)})
		}
		seenTables[name] = struct{}{}

		if len(ts.Columns) == 0 {
			issues = append(issues, Issue{SeverityError, path + ".columns", "at least one column is required"})
		}

		seenCols := map[string]struct{}{}
		for j, cs := range ts.Columns {
			cp := fmt.Sprintf("%s.columns[%d]", path, j)
			cn := ident(cs.Name)
			if cn == "" {
				issues = append(issues, Issue{SeverityError, cp + ".name", "column name must not be empty"})
			} else if _, dup := seenCols[cn]; dup {
				issues = append(issues, Issue{SeverityError, cp + ".name", fmt.Sprintf("duplicate column %q", cn)})
			}
			seenCols[cn] = struct{}{}

			if strings.TrimSpace(cs.Type) == "" {
				issues = append(issues, Issue{SeverityError, cp + ".type", "column type must not be empty"})
			} else if rerr == nil {
				if _, err := r.parse(cs.Type); err != nil {
					issues = append(issues, Issue{SeverityError, cp + ".type", err.Error()})
				}
			}

			if cs.PrimaryKey && cs.Nullable {
				issues = append(issues, Issue{SeverityWarning, cp, "primary key column is declared nullable; Postgres will reject NULL values anyway"})
			}
			if cs.Index != "" {
				if _, ok := ddl.ParseIndexMethod(cs.Index); !ok {
					issues = append(issues, Issue{SeverityError, cp + ".index", fmt.Sprintf("unknown index method %q (want btree or hash)", cs.Index)})
				}
			}
			if ref := cs.References; ref != nil {
				issues = append(issues, validateReference(cp+".references", ident(ref.Table), []string{ident(ref.Column)}, tables)...)
			}
		}

		for j, cs := range ts.Constraints {
			issues = append(issues, validateConstraint(fmt.Sprintf("%s.constraints[%d]", path, j), cs, seenCols, tables, ident)...)
		}
	}
	return issues
}

func validateConstraint(path string, cs ConstraintSpec, cols map[string]struct{}, tables map[string]map[string]struct{}, ident func(string) string) []Issue {
	var issues []Issue
	if ident(cs.Name) == "" {
		issues = append(issues, Issue{SeverityError, path + ".name", "constraint name must not be empty"})
	}

	checkCols := func() {
		if len(cs.Columns) == 0 {
			issues = append(issues, Issue{SeverityError, path + ".columns", "constraint needs at least one column"})
		}
		for k, c := range cs.Columns {
			if _, ok := cols[ident(c)]; !ok {
				issues = append(issues, Issue{SeverityError, fmt.Sprintf("%s.columns[%d]", path, k), fmt.Sprintf("unknown column %q", c)})
			}
		}
	}

	switch strings.ToLower(strings.TrimSpace(cs.Kind)) {
	case "check":
		if strings.TrimSpace(cs.Condition) == "" {
			issues = append(issues, Issue{SeverityError, path + ".condition", "check constraint requires a condition"})
		}
	case "primary_key", "unique":
		checkCols()
	case "foreign_key":
		checkCols()
		if len(cs.Columns) != len(cs.RefColumns) {
			issues = append(issues, Issue{SeverityError, path + ".ref_columns", fmt.Sprintf("%d columns but %d ref_columns", len(cs.Columns), len(cs.RefColumns))})
		}
		if strings.TrimSpace(cs.Table) == "" {
			issues = append(issues, Issue{SeverityError, path + ".table", "foreign key requires a target table"})
		} else {
			refs := make([]string, len(cs.RefColumns))
			for i, c := range cs.RefColumns {
				refs[i] = ident(c)
			}
			issues = append(issues, validateReference(path, ident(cs.Table), refs, tables)...)
		}
	default:
		issues = append(issues, Issue{SeverityError, path + ".kind", fmt.Sprintf("unknown constraint kind %q (want check, primary_key, foreign_key or unique)", cs.Kind)})
	}
	return issues
}

// validateReference warns about targets outside the document (they may exist
// server-side) and errors on unknown columns of tables the document declares.
func validateReference(path, table string, columns []string, tables map[string]map[string]struct{}) []Issue {
	if table == "" {
		return []Issue{{SeverityError, path + ".table", "reference requires a table"}}
	}
	cols, ok := tables[table]
	if !ok {
		return []Issue{{SeverityWarning, path + ".table", fmt.Sprintf("table %q is not declared in this document; it must already exist", table)}}
	}
	var issues []Issue
	for _, c := range columns {
		if _, ok := cols[c]; !ok {
			issues = append(issues, Issue{SeverityError, path, fmt.Sprintf("table %q has no column %q", table, c)})
		}
	}
	return issues
}

func validateStorage(s Storage) []Issue {
	if strings.TrimSpace(s.Kind) == "" {
		return nil
	}
	var issues []Issue
	switch s.Kind {
	case "postgres":
		if s.ResolveDSN() == "" {
			issues = append(issues, Issue{
				Severity: SeverityWarning,
				Path:     "storage.db.dsn",
				Message:  "no DSN configured; pass -dsn or set " + strings.Join(DSNEnvVars, " or ") + " before applying",
			})
		}
	default:
		issues = append(issues, Issue{
			Severity: SeverityWarning,
			Path:     "storage.kind",
			Message:  fmt.Sprintf("unknown storage kind %q; ensure a matching implementation exists", s.Kind),
		})
	}
	return issues
}

func validateRuntime(rc RuntimeConfig) []Issue {
	var issues []Issue
	if rc.IndexWorkers < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.index_workers", "index_workers must be >= 0"})
	}
	if rc.BatchSize < 0 {
		issues = append(issues, Issue{SeverityError, "runtime.batch_size", "batch_size must be >= 0"})
	} else if rc.BatchSize > 65535 {
		issues = append(issues, Issue{SeverityWarning, "runtime.batch_size", "batch_size is large; rows*columns must stay below 65535 placeholders"})
	}
	return issues
}
