package storage

import (
	"context"
	"strings"
	"sync"
	"testing"

	"pgtable/internal/ddl"
	"pgtable/internal/sqltype"
)

// fakeRepo records every statement and answers TypeExists from a fixed set.
type fakeRepo struct {
	mu       sync.Mutex
	stmts    []string
	args     [][]any
	probes   []string
	existing map[string]bool
	failOn   string
	err      error

	registered [][]string
	rows       []map[string]any
	closed     bool
}

func (f *fakeRepo) Exec(_ context.Context, sql string, args ...any) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failOn != "" && strings.Contains(sql, f.failOn) {
		return 0, f.err
	}
	f.stmts = append(f.stmts, sql)
	f.args = append(f.args, args)
	if strings.HasPrefix(sql, "INSERT") {
		if len(args) == 0 {
			return 1, nil
		}
		return int64(strings.Count(sql, "), (") + 1), nil
	}
	return 0, nil
}

func (f *fakeRepo) TypeExists(_ context.Context, name string) (bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.probes = append(f.probes, name)
	return f.existing[name], nil
}

func (f *fakeRepo) Select(_ context.Context, sql string, args ...any) ([]map[string]any, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.stmts = append(f.stmts, sql)
	f.args = append(f.args, args)
	return f.rows, nil
}

func (f *fakeRepo) Close() { f.closed = true }

func (f *fakeRepo) statements() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.stmts...)
}

// registrarRepo adds TypeRegistrar.
type registrarRepo struct{ fakeRepo }

func (r *registrarRepo) RegisterTypes(_ context.Context, names ...string) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.registered = append(r.registered, names)
	return nil
}

// copierRepo adds Copier.
type copierRepo struct {
	fakeRepo
	copied  [][]any
	columns []string
}

func (r *copierRepo) CopyFrom(_ context.Context, table string, columns []string, rows [][]any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.columns = columns
	r.copied = append(r.copied, rows...)
	return int64(len(rows)), nil
}

var point2d = sqltype.StructType("point2d",
	sqltype.Field{Name: "x", Type: sqltype.Int2Type},
	sqltype.Field{Name: "y", Type: sqltype.Int2Type},
)

func figuresTable(t testing.TB) *ddl.Table {
	t.Helper()
	tbl, err := ddl.NewTable("figures", []ddl.Column{
		ddl.NewColumn("id", sqltype.Int4Type).PrimaryKey().Finish(),
		ddl.NewColumn("origin", point2d).Index(ddl.BTree).Finish(),
		ddl.NewColumn("path", sqltype.ArrayOf(point2d)).Nullable().Finish(),
		ddl.NewColumn("tag", sqltype.VarCharN(8)).Nullable().Index(ddl.Hash).Finish(),
	})
	if err != nil {
		t.Fatalf("NewTable(figures) error = %v", err)
	}
	return tbl
}

func pointsTable(t testing.TB) *ddl.Table {
	t.Helper()
	tbl, err := ddl.NewTable("points", []ddl.Column{
		ddl.NewColumn("id", sqltype.Int4Type).Finish(),
		ddl.NewColumn("at", point2d).Finish(),
	})
	if err != nil {
		t.Fatalf("NewTable(points) error = %v", err)
	}
	return tbl
}
