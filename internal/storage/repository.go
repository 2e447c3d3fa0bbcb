// Package storage contains the storage-agnostic contract used to apply
// generated statements to a live database, a small registry of backends, and
// the orchestration that sequences DDL and DML against a Repository.
//
// Statement text always comes from internal/ddl; this package only decides
// order (types, then table, then indexes, then rows) and talks to the
// backend.
package storage

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// Repository is what a backend must provide.
type Repository interface {
	// Exec runs a statement and returns the number of rows affected.
	Exec(ctx context.Context, sql string, args ...any) (int64, error)

	// TypeExists reports whether a type named name is present server-side.
	TypeExists(ctx context.Context, name string) (bool, error)

	// Select runs a query and returns each row as column name -> value.
	Select(ctx context.Context, sql string, args ...any) ([]map[string]any, error)

	Close()
}

// TypeRegistrar is implemented by backends whose driver must learn about
// user-defined types before it can encode them as placeholder arguments.
type TypeRegistrar interface {
	RegisterTypes(ctx context.Context, names ...string) error
}

// Copier is implemented by backends with a bulk-load primitive faster than
// multi-row INSERT (e.g. Postgres COPY).
type Copier interface {
	CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error)
}

// Config selects and configures a backend.
type Config struct {
	Kind string
	DSN  string

	// MaxConns caps the connection pool; zero keeps the driver default.
	MaxConns int

	// Types lists user-defined type names the driver should load on connect.
	Types []string
}

// Factory opens a Repository for a Config.
type Factory func(ctx context.Context, cfg Config) (Repository, error)

var (
	regMu     sync.RWMutex
	factories = map[string]Factory{}
)

// Register registers (or replaces) the factory for kind. Backends call it
// from init().
func Register(kind string, f Factory) {
	regMu.Lock()
	defer regMu.Unlock()
	factories[kind] = f
}

// New opens a Repository using the factory registered for cfg.Kind.
func New(ctx context.Context, cfg Config) (Repository, error) {
	regMu.RLock()
	f, ok := factories[cfg.Kind]
	regMu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("unsupported storage.kind=%s", cfg.Kind)
	}
	return f(ctx, cfg)
}

// ListKinds returns a sorted snapshot of the registered kinds.
func ListKinds() []string {
	regMu.RLock()
	defer regMu.RUnlock()
	out := make([]string, 0, len(factories))
	for k := range factories {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
