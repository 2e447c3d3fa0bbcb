// Package postgres implements storage.Repository on a pgx v5 connection pool.
// User-defined types created by the migrator are loaded into each
// connection's type map so composite, enum and domain values can be bound as
// placeholder arguments and copied with COPY.
package postgres

import (
	"context"
	"errors"
	"fmt"
	"log"
	"strings"
	"sync"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
)

// Config holds Postgres repository configuration.
type Config struct {
	DSN      string   // connection string for pgxpool
	MaxConns int32    // zero keeps the pgxpool default
	Types    []string // user-defined types to load on every new connection
}

// Repository is a Postgres-backed implementation of storage.Repository.
type Repository struct {
	pool *pgxpool.Pool

	mu    sync.RWMutex
	types []string
}

// NewRepository constructs a Repository and returns a Close function for cleanup.
func NewRepository(ctx context.Context, cfg Config) (*Repository, func(), error) {
	pcfg, err := pgxpool.ParseConfig(cfg.DSN)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: parse dsn: %w", err)
	}
	if cfg.MaxConns > 0 {
		pcfg.MaxConns = cfg.MaxConns
	}

	r := &Repository{types: append([]string(nil), cfg.Types...)}
	pcfg.AfterConnect = r.loadTypes

	pool, err := pgxpool.NewWithConfig(ctx, pcfg)
	if err != nil {
		return nil, nil, fmt.Errorf("pgxpool: %w", err)
	}
	r.pool = pool
	close := func() { pool.Close() }
	return r, close, nil
}

// loadTypes registers every known user-defined type, and its array type,
// with a freshly opened connection. Types that do not exist yet are skipped;
// RegisterTypes resets the pool once they do.
func (r *Repository) loadTypes(ctx context.Context, conn *pgx.Conn) error {
	r.mu.RLock()
	names := append([]string(nil), r.types...)
	r.mu.RUnlock()

	for _, name := range names {
		t, err := conn.LoadType(ctx, name)
		if err != nil {
			log.Printf("postgres: load type %s: %v (skipping)", name, err)
			continue
		}
		conn.TypeMap().RegisterType(t)

		// Array types are named _<elem> in pg_type.
		if at, err := conn.LoadType(ctx, "_"+name); err == nil {
			conn.TypeMap().RegisterType(at)
		}
	}
	return nil
}

// RegisterTypes implements storage.TypeRegistrar. New names are remembered
// and the pool is reset so every connection reloads its type map.
func (r *Repository) RegisterTypes(_ context.Context, names ...string) error {
	r.mu.Lock()
	known := make(map[string]struct{}, len(r.types))
	for _, n := range r.types {
		known[n] = struct{}{}
	}
	added := false
	for _, n := range names {
		if _, ok := known[n]; ok {
			continue
		}
		known[n] = struct{}{}
		r.types = append(r.types, n)
		added = true
	}
	r.mu.Unlock()

	if added && r.pool != nil {
		r.pool.Reset()
	}
	return nil
}

// Exec implements storage.Repository.Exec for Postgres.
func (r *Repository) Exec(ctx context.Context, sql string, args ...any) (int64, error) {
	tag, err := r.pool.Exec(ctx, sql, args...)
	if err != nil {
		return 0, wrapErr("exec", err)
	}
	return tag.RowsAffected(), nil
}

// TypeExists implements storage.Repository.TypeExists by probing pg_type.
func (r *Repository) TypeExists(ctx context.Context, name string) (bool, error) {
	var oid uint32
	err := r.pool.QueryRow(ctx, `SELECT oid FROM pg_catalog.pg_type WHERE typname = $1`, name).Scan(&oid)
	switch {
	case errors.Is(err, pgx.ErrNoRows):
		return false, nil
	case err != nil:
		return false, wrapErr("probe type", err)
	default:
		return true, nil
	}
}

// Select implements storage.Repository.Select. Each row is returned as a
// map keyed by column name.
func (r *Repository) Select(ctx context.Context, sql string, args ...any) ([]map[string]any, error) {
	rows, err := r.pool.Query(ctx, sql, args...)
	if err != nil {
		return nil, wrapErr("select", err)
	}
	out, err := pgx.CollectRows(rows, pgx.RowToMap)
	if err != nil {
		return nil, wrapErr("select", err)
	}
	return out, nil
}

// CopyFrom implements storage.Copier using the COPY protocol. table may be
// schema-qualified.
func (r *Repository) CopyFrom(ctx context.Context, table string, columns []string, rows [][]any) (int64, error) {
	n, err := r.pool.CopyFrom(ctx, splitFQN(table), columns, pgx.CopyFromRows(rows))
	if err != nil {
		return n, wrapErr("copy", err)
	}
	return n, nil
}

// wrapErr keeps server diagnostics (message, detail, SQLSTATE) in the error
// text while leaving the *pgconn.PgError reachable through errors.As.
func wrapErr(op string, err error) error {
	var pgErr *pgconn.PgError
	if errors.As(err, &pgErr) {
		msg := pgErr.Message
		if pgErr.Detail != "" {
			msg += ": " + pgErr.Detail
		}
		return fmt.Errorf("%s: %s (%s): %w", op, msg, pgErr.SQLState(), err)
	}
	return fmt.Errorf("%s: %w", op, err)
}

// splitFQN converts "schema.table" into a pgx.Identifier {"schema","table"}.
// If no dot is present, returns {"table"}.
func splitFQN(fqn string) pgx.Identifier {
	parts := strings.Split(fqn, ".")
	id := make(pgx.Identifier, 0, len(parts))
	for _, p := range parts {
		if p != "" {
			id = append(id, p)
		}
	}
	return id
}
