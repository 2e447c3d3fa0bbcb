// Package config defines the declarative schema document for pgtable: the
// named types, the tables built from them, and where to apply the generated
// statements. Documents are JSON or YAML files (configs/schemas/*).
//
// Example (trimmed):
//
//	{
//	  "schema": "shop",
//	  "types": [
//	    { "name": "point2d", "kind": "composite",
//	      "fields": [ { "name": "x", "type": "int2" }, { "name": "y", "type": "int2" } ] }
//	  ],
//	  "tables": [
//	    { "name": "images", "columns": [
//	      { "name": "id", "type": "serial4", "primary_key": true },
//	      { "name": "corners", "type": "point2d[]", "index": "btree" } ] }
//	  ],
//	  "storage": { "kind": "postgres", "db": { "dsn": "postgres://..." } }
//	}
package config

import (
	"bytes"
	"encoding/json"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"gopkg.in/yaml.v3"
)

// Document is the top-level object decoded from a schema file.
type Document struct {
	// Schema is an informational name used for metrics labels and logs.
	Schema string `json:"schema" yaml:"schema"`

	// NormalizeNames folds every identifier to lower-case ASCII snake_case
	// before building tables.
	NormalizeNames bool `json:"normalize_names" yaml:"normalize_names"`

	// Types declares composite, enum and domain types referenced by columns.
	Types []TypeSpec `json:"types" yaml:"types"`

	// Tables are rendered and applied in document order.
	Tables []TableSpec `json:"tables" yaml:"tables"`

	Storage Storage       `json:"storage" yaml:"storage"`
	Runtime RuntimeConfig `json:"runtime" yaml:"runtime"`
}

// TypeSpec declares a named type. Kind is "composite", "enum" or "domain".
type TypeSpec struct {
	Name   string      `json:"name" yaml:"name"`
	Kind   string      `json:"kind" yaml:"kind"`
	Fields []FieldSpec `json:"fields,omitempty" yaml:"fields,omitempty"` // composite
	Labels []string    `json:"labels,omitempty" yaml:"labels,omitempty"` // enum
	Base   string      `json:"base,omitempty" yaml:"base,omitempty"`     // domain
}

// FieldSpec is a composite attribute.
type FieldSpec struct {
	Name string `json:"name" yaml:"name"`
	Type string `json:"type" yaml:"type"`
}

// TableSpec declares one table.
type TableSpec struct {
	Name        string           `json:"name" yaml:"name"`
	Columns     []ColumnSpec     `json:"columns" yaml:"columns"`
	Constraints []ConstraintSpec `json:"constraints,omitempty" yaml:"constraints,omitempty"`
}

// ColumnSpec declares one column. Type uses the syntax accepted by ParseType.
type ColumnSpec struct {
	Name       string     `json:"name" yaml:"name"`
	Type       string     `json:"type" yaml:"type"`
	Nullable   bool       `json:"nullable,omitempty" yaml:"nullable,omitempty"`
	Unique     bool       `json:"unique,omitempty" yaml:"unique,omitempty"`
	PrimaryKey bool       `json:"primary_key,omitempty" yaml:"primary_key,omitempty"`
	References *Reference `json:"references,omitempty" yaml:"references,omitempty"`

	// Index is "btree" or "hash"; empty means no index.
	Index string `json:"index,omitempty" yaml:"index,omitempty"`
}

// Reference is a column-level foreign key target.
type Reference struct {
	Table  string `json:"table" yaml:"table"`
	Column string `json:"column" yaml:"column"`
}

// ConstraintSpec declares a table-level constraint.
//
// Kind selects the variant:
//   - "check": Condition (raw SQL)
//   - "primary_key": Columns
//   - "foreign_key": Columns, Table, RefColumns (paired positionally)
//   - "unique": Columns, NullsNotDistinct
type ConstraintSpec struct {
	Name             string   `json:"name" yaml:"name"`
	Kind             string   `json:"kind" yaml:"kind"`
	Condition        string   `json:"condition,omitempty" yaml:"condition,omitempty"`
	Columns          []string `json:"columns,omitempty" yaml:"columns,omitempty"`
	Table            string   `json:"table,omitempty" yaml:"table,omitempty"`
	RefColumns       []string `json:"ref_columns,omitempty" yaml:"ref_columns,omitempty"`
	NullsNotDistinct bool     `json:"nulls_not_distinct,omitempty" yaml:"nulls_not_distinct,omitempty"`
}

// Storage selects the database the statements are applied to.
type Storage struct {
	// Kind selects the storage implementation. Current value: "postgres".
	Kind string `json:"kind" yaml:"kind"`

	DB DBConfig `json:"db" yaml:"db"`

	// Options is a free-form bag interpreted by the storage implementation
	// (e.g. "max_conns", "register_types").
	Options Options `json:"options" yaml:"options"`
}

// DBConfig configures the database connection.
type DBConfig struct {
	// DSN is the connection string for pgx/pgxpool (e.g., postgresql://...).
	// When empty, PGTABLE_DSN and then DATABASE_URL are consulted.
	DSN string `json:"dsn" yaml:"dsn"`
}

// RuntimeConfig controls how statements are applied.
type RuntimeConfig struct {
	// IndexWorkers bounds concurrent CREATE INDEX statements per table.
	// Zero means one.
	IndexWorkers int `json:"index_workers" yaml:"index_workers"`

	// BatchSize is the number of rows per multi-row INSERT when loading.
	BatchSize int `json:"batch_size" yaml:"batch_size"`
}

// DSNEnvVars are consulted in order when the document carries no DSN.
var DSNEnvVars = []string{"PGTABLE_DSN", "DATABASE_URL"}

// ResolveDSN returns the configured DSN or the first non-empty environment
// fallback.
func (s Storage) ResolveDSN() string {
	if dsn := strings.TrimSpace(s.DB.DSN); dsn != "" {
		return dsn
	}
	for _, k := range DSNEnvVars {
		if v := strings.TrimSpace(os.Getenv(k)); v != "" {
			return v
		}
	}
	return ""
}

// Load reads a document from path. Files ending in .yaml or .yml are decoded
// as YAML, everything else as JSON.
func Load(path string) (Document, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return Document{}, fmt.Errorf("config: read %s: %w", path, err)
	}
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		return DecodeYAML(b)
	default:
		return DecodeJSON(b)
	}
}

// DecodeJSON decodes a JSON document. Unknown fields are rejected.
func DecodeJSON(b []byte) (Document, error) {
	var d Document
	dec := json.NewDecoder(bytes.NewReader(b))
	dec.DisallowUnknownFields()
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("config: decode json: %w", err)
	}
	d.normalize()
	return d, nil
}

// DecodeYAML decodes a YAML document. Unknown fields are rejected.
func DecodeYAML(b []byte) (Document, error) {
	var d Document
	dec := yaml.NewDecoder(bytes.NewReader(b))
	dec.KnownFields(true)
	if err := dec.Decode(&d); err != nil {
		return Document{}, fmt.Errorf("config: decode yaml: %w", err)
	}
	d.normalize()
	return d, nil
}

// normalize fills in a null or missing storage options map.
func (d *Document) normalize() {
	if d.Storage.Options == nil {
		d.Storage.Options = Options{}
	}
}

// Options is a small helper to fetch typed values from a free-form map. It
// performs only minimal coercion and returns the default when a key is absent
// or of an unexpected type.
type Options map[string]any

// String returns the string value for key or def.
func (o Options) String(key, def string) string {
	if v, ok := o[key]; ok {
		if s, ok := v.(string); ok {
			return s
		}
	}
	return def
}

// Bool returns the bool value for key or def.
func (o Options) Bool(key string, def bool) bool {
	if v, ok := o[key]; ok {
		if b, ok := v.(bool); ok {
			return b
		}
	}
	return def
}

// Int returns the int value for key or def. encoding/json decodes numbers as
// float64 and yaml.v3 as int, so both are accepted.
func (o Options) Int(key string, def int) int {
	if v, ok := o[key]; ok {
		switch n := v.(type) {
		case float64:
			return int(n)
		case int:
			return n
		}
	}
	return def
}

// UnmarshalJSON makes a null "options" object decode to a non-nil, empty
// Options map. A missing one is filled in by the document decoders.
func (o *Options) UnmarshalJSON(b []byte) error {
	var tmp map[string]any
	if len(b) == 0 || string(b) == "null" {
		*o = Options{}
		return nil
	}
	if err := json.Unmarshal(b, &tmp); err != nil {
		return err
	}
	*o = Options(tmp)
	return nil
}
