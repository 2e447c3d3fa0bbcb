package main

// This file keeps the CLI layer thin: rendering and applying depend only on
// the ddl model and the storage-agnostic interfaces, never on a database
// driver directly.

import (
	"context"
	"fmt"
	"io"
	"log"
	"os"
	"strconv"

	"pgtable/internal/config"
	"pgtable/internal/ddl"
	"pgtable/internal/metrics"
	"pgtable/internal/metrics/datadog"
	"pgtable/internal/metrics/prompush"
	"pgtable/internal/storage"
	"pgtable/internal/typedef"
)

// newRepositoryFn is a test hook for storage.New.
var newRepositoryFn = storage.New

// render writes every statement the document needs, per table, in the order
// they would be applied. A type shared by several tables is printed once.
func render(w io.Writer, tables []*ddl.Table) error {
	seen := map[string]struct{}{}
	for i, t := range tables {
		if i > 0 {
			if _, err := fmt.Fprintln(w); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintf(w, "-- table %s\n", t.Name()); err != nil {
			return err
		}
		for _, d := range t.TypeDefinitions() {
			if _, ok := seen[d.Name]; ok {
				continue
			}
			seen[d.Name] = struct{}{}
			if _, err := fmt.Fprintln(w, d.SQL+";"); err != nil {
				return err
			}
		}
		if _, err := fmt.Fprintln(w, t.CreateTableSQL()); err != nil {
			return err
		}
		for _, s := range t.CreateIndexesSQL() {
			if _, err := fmt.Fprintln(w, s); err != nil {
				return err
			}
		}
	}
	return nil
}

// apply opens the configured repository and migrates every table in
// document order.
func apply(ctx context.Context, doc config.Document, tables []*ddl.Table) error {
	repo, err := newRepositoryFn(ctx, storage.Config{
		Kind:     storageKind(doc),
		DSN:      doc.Storage.ResolveDSN(),
		MaxConns: doc.Storage.Options.Int("max_conns", 0),
		Types:    typeNames(tables),
	})
	if err != nil {
		return fmt.Errorf("init repo: %w", err)
	}
	defer repo.Close()

	m := storage.NewMigrator(repo, storage.MigratorConfig{
		Job:          doc.Schema,
		IndexWorkers: pickInt(doc.Runtime.IndexWorkers, getenvInt("PGTABLE_INDEX_WORKERS", 2)),
	})
	for _, t := range tables {
		if err := m.EnsureTable(ctx, t); err != nil {
			return err
		}
		log.Printf("table ensured: %s", t.Name())
	}
	return nil
}

// typeNames lists the user-defined types of all tables, dependencies first.
func typeNames(tables []*ddl.Table) []string {
	var defs []typedef.Definition
	for _, t := range tables {
		defs = append(defs, t.TypeDefinitions()...)
	}
	return typedef.Names(typedef.Dedup(defs))
}

func storageKind(doc config.Document) string {
	return pickString(doc.Storage.Kind, "postgres")
}

// metricsOptions are the resolved metrics settings (flag → env → default).
type metricsOptions struct {
	backend    string
	gatewayURL string
	statsdAddr string
	job        string
	verbose    bool
}

// setupMetrics installs the selected backend and returns a flush function
// that is safe to call more than once.
func setupMetrics(o metricsOptions) func() {
	var b metrics.Backend
	switch o.backend {
	case "pushgateway":
		pb, err := prompush.NewBackend(o.job, o.gatewayURL)
		if err != nil {
			log.Printf("metrics: failed to init prom push backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: url=%v, backend=%v, job_name=%v", o.gatewayURL, o.backend, o.job)
		b = pb

	case "datadog":
		db, err := datadog.NewBackend(datadog.Config{
			Addr:       o.statsdAddr,
			GlobalTags: []string{"schema:" + o.job},
		})
		if err != nil {
			log.Printf("metrics: failed to init datadog backend: %v; using nop", err)
			return func() {}
		}
		log.Printf("metrics: addr=%v, backend=%v", o.statsdAddr, o.backend)
		b = db

	case "", "none":
		if o.verbose {
			log.Printf("metrics: disabled (backend=%q)", o.backend)
		}
		return func() {}

	default:
		log.Printf("metrics: unknown backend %q; metrics disabled", o.backend)
		return func() {}
	}

	metrics.SetBackend(b)
	flushed := false
	return func() {
		if flushed {
			return
		}
		flushed = true
		if err := metrics.Flush(); err != nil {
			log.Printf("metrics: flush error: %v", err)
		}
	}
}

// ----------------------------------------------------------------------------
// Small helpers
// ----------------------------------------------------------------------------

// getenvInt reads an int from environment, returning def when unset/invalid.
func getenvInt(k string, def int) int {
	if s := os.Getenv(k); s != "" {
		if n, err := strconv.Atoi(s); err == nil {
			return n
		}
	}
	return def
}

// pickInt chooses the first positive value 'a', otherwise returns 'b'.
func pickInt(a, b int) int {
	if a > 0 {
		return a
	}
	return b
}

// pickString returns the first non-empty value.
func pickString(vals ...string) string {
	for _, v := range vals {
		if v != "" {
			return v
		}
	}
	return ""
}
