package main

import (
	"context"
	"errors"
	"reflect"
	"strings"
	"sync"
	"testing"

	"pgtable/internal/config"
	"pgtable/internal/storage"
)

// recordingRepo is a minimal storage.Repository that records statements.
type recordingRepo struct {
	mu     sync.Mutex
	stmts  []string
	closed bool
	err    error
}

func (r *recordingRepo) Exec(_ context.Context, sql string, _ ...any) (int64, error) {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.err != nil {
		return 0, r.err
	}
	r.stmts = append(r.stmts, sql)
	return 0, nil
}

func (r *recordingRepo) TypeExists(context.Context, string) (bool, error) { return false, nil }

func (r *recordingRepo) Select(context.Context, string, ...any) ([]map[string]any, error) {
	return nil, nil
}

func (r *recordingRepo) Close() { r.closed = true }

func shopDocument(t *testing.T) config.Document {
	t.Helper()
	doc, err := config.Load("../../configs/schemas/shop.yaml")
	if err != nil {
		t.Fatalf("Load() error = %v", err)
	}
	return doc
}

// TestRender prints types before the tables that use them, once each.
func TestRender(t *testing.T) {
	t.Parallel()

	tables, err := config.BuildTables(shopDocument(t))
	if err != nil {
		t.Fatalf("BuildTables() error = %v", err)
	}

	var sb strings.Builder
	if err := render(&sb, tables); err != nil {
		t.Fatalf("render() error = %v", err)
	}
	out := sb.String()

	order := []string{
		"-- table users",
		`CREATE TYPE "mood" AS ENUM ('sad', 'ok', 'happy');`,
		"CREATE TABLE IF NOT EXISTS users",
		"-- table buys",
		"CREATE TABLE IF NOT EXISTS buys",
		"-- table figures",
		"CREATE TYPE point2d AS (x int2, y int2);",
		`CREATE DOMAIN "label" AS varchar(32);`,
		"CREATE TABLE IF NOT EXISTS figures",
		"CREATE INDEX IF NOT EXISTS tag_idx_figures ON figures USING hash (tag);",
		"CREATE INDEX IF NOT EXISTS origin_idx_figures ON figures USING btree (origin);",
	}
	pos := 0
	for _, want := range order {
		i := strings.Index(out[pos:], want)
		if i < 0 {
			t.Fatalf("render() output missing %q after offset %d:\n%s", want, pos, out)
		}
		pos += i + len(want)
	}
	if n := strings.Count(out, "CREATE TYPE point2d"); n != 1 {
		t.Fatalf("point2d rendered %d times, want 1", n)
	}
}

// TestApply opens the repository from the document and migrates every table.
func TestApply(t *testing.T) {
	orig := newRepositoryFn
	defer func() { newRepositoryFn = orig }()

	repo := &recordingRepo{}
	var gotCfg storage.Config
	newRepositoryFn = func(_ context.Context, cfg storage.Config) (storage.Repository, error) {
		gotCfg = cfg
		return repo, nil
	}

	doc := shopDocument(t)
	doc.Storage.DB.DSN = "postgres://test"
	tables, err := config.BuildTables(doc)
	if err != nil {
		t.Fatalf("BuildTables() error = %v", err)
	}

	if err := apply(context.Background(), doc, tables); err != nil {
		t.Fatalf("apply() error = %v", err)
	}

	if gotCfg.Kind != "postgres" || gotCfg.DSN != "postgres://test" || gotCfg.MaxConns != 4 {
		t.Fatalf("storage.Config = %+v", gotCfg)
	}
	if want := []string{"mood", "point2d", "label"}; !reflect.DeepEqual(gotCfg.Types, want) {
		t.Fatalf("Types = %v, want %v", gotCfg.Types, want)
	}
	// 3 types + 3 tables + 2 indexes.
	if len(repo.stmts) != 8 {
		t.Fatalf("statements = %d, want 8: %q", len(repo.stmts), repo.stmts)
	}
	if !repo.closed {
		t.Fatalf("repository not closed")
	}
}

// TestApply_Errors surfaces repository failures.
func TestApply_Errors(t *testing.T) {
	orig := newRepositoryFn
	defer func() { newRepositoryFn = orig }()

	doc := shopDocument(t)
	tables, err := config.BuildTables(doc)
	if err != nil {
		t.Fatalf("BuildTables() error = %v", err)
	}

	boom := errors.New("boom")
	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) { return nil, boom }
	if err := apply(context.Background(), doc, tables); !errors.Is(err, boom) || !strings.Contains(err.Error(), "init repo") {
		t.Fatalf("apply() error = %v, want init repo: boom", err)
	}

	newRepositoryFn = func(context.Context, storage.Config) (storage.Repository, error) {
		return &recordingRepo{err: boom}, nil
	}
	if err := apply(context.Background(), doc, tables); !errors.Is(err, boom) {
		t.Fatalf("apply() error = %v, want boom", err)
	}
}

// TestSetupMetrics returns a usable flush for every backend choice.
func TestSetupMetrics(t *testing.T) {
	for _, backend := range []string{"", "none", "bogus"} {
		flush := setupMetrics(metricsOptions{backend: backend, job: "shop"})
		flush()
	}
	flush := setupMetrics(metricsOptions{backend: "pushgateway", job: "shop"})
	flush()
}

// TestHelpers covers env fallback and pick semantics.
func TestHelpers(t *testing.T) {
	t.Setenv("PGTABLE_TEST_INT", "")
	if v := getenvInt("PGTABLE_TEST_INT", 7); v != 7 {
		t.Fatalf("getenvInt unset = %d, want 7", v)
	}
	t.Setenv("PGTABLE_TEST_INT", "42")
	if v := getenvInt("PGTABLE_TEST_INT", 7); v != 42 {
		t.Fatalf("getenvInt set = %d, want 42", v)
	}
	t.Setenv("PGTABLE_TEST_INT", "x")
	if v := getenvInt("PGTABLE_TEST_INT", 7); v != 7 {
		t.Fatalf("getenvInt invalid = %d, want 7", v)
	}
	if v := pickInt(5, 9); v != 5 {
		t.Fatalf("pickInt(5,9) = %d, want 5", v)
	}
	if v := pickInt(0, 9); v != 9 {
		t.Fatalf("pickInt(0,9) = %d, want 9", v)
	}
	if v := pickString("", "", "c"); v != "c" {
		t.Fatalf("pickString = %q, want c", v)
	}
	if v := pickString(); v != "" {
		t.Fatalf("pickString() = %q, want empty", v)
	}
}
