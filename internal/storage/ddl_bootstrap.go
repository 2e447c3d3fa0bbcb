package storage

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"github.com/zeebo/xxh3"
	"golang.org/x/sync/errgroup"

	"pgtable/internal/ddl"
	"pgtable/internal/metrics"
	"pgtable/internal/typedef"
)

// MigratorConfig tunes a Migrator.
type MigratorConfig struct {
	// Job labels metrics (usually the schema document name).
	Job string

	// IndexWorkers bounds concurrent CREATE INDEX statements per table.
	// Values below one mean one.
	IndexWorkers int
}

// Migrator applies table DDL in dependency order: missing types first, then
// the table, then its indexes. Statements that already succeeded through
// this Migrator are not sent again, so applying several tables that share a
// type probes and creates it once.
type Migrator struct {
	repo Repository
	cfg  MigratorConfig

	mu      sync.Mutex
	applied map[uint64]struct{}
}

// NewMigrator wraps repo.
func NewMigrator(repo Repository, cfg MigratorConfig) *Migrator {
	if cfg.IndexWorkers < 1 {
		cfg.IndexWorkers = 1
	}
	return &Migrator{repo: repo, cfg: cfg, applied: map[uint64]struct{}{}}
}

// EnsureTable creates everything t needs. It is idempotent.
func (m *Migrator) EnsureTable(ctx context.Context, t *ddl.Table) error {
	if _, err := m.EnsureTypes(ctx, t.TypeDefinitions()); err != nil {
		return fmt.Errorf("table %s: %w", t.Name(), err)
	}
	if err := m.step(ctx, "create_table", func(ctx context.Context) error {
		return m.exec(ctx, t.CreateTableSQL())
	}); err != nil {
		return fmt.Errorf("table %s: create: %w", t.Name(), err)
	}
	if err := m.EnsureIndexes(ctx, t); err != nil {
		return fmt.Errorf("table %s: %w", t.Name(), err)
	}
	return nil
}

// EnsureTypes creates the definitions whose type does not exist yet, in the
// given order. It returns the names it created. Backends implementing
// TypeRegistrar are told about every type in defs afterwards.
func (m *Migrator) EnsureTypes(ctx context.Context, defs []typedef.Definition) ([]string, error) {
	var created []string
	err := m.step(ctx, "create_types", func(ctx context.Context) error {
		for _, d := range defs {
			if m.seen(d.SQL) {
				continue
			}
			exists, err := m.repo.TypeExists(ctx, d.Name)
			if err != nil {
				return fmt.Errorf("probe type %s: %w", d.Name, err)
			}
			if exists {
				log.Printf("migrate: type=%s exists, skipping", d.Name)
				m.markApplied(d.SQL)
				continue
			}
			if err := m.exec(ctx, d.SQL); err != nil {
				return fmt.Errorf("create type %s: %w", d.Name, err)
			}
			created = append(created, d.Name)
		}
		return nil
	})
	if err != nil {
		return created, err
	}

	if reg, ok := m.repo.(TypeRegistrar); ok && len(defs) > 0 {
		if err := reg.RegisterTypes(ctx, typedef.Names(defs)...); err != nil {
			return created, fmt.Errorf("register types: %w", err)
		}
	}
	return created, nil
}

// EnsureIndexes creates t's indexes, at most IndexWorkers at a time. The
// first failure cancels the remaining statements.
func (m *Migrator) EnsureIndexes(ctx context.Context, t *ddl.Table) error {
	stmts := t.CreateIndexesSQL()
	if len(stmts) == 0 {
		return nil
	}
	return m.step(ctx, "create_indexes", func(ctx context.Context) error {
		g, gctx := errgroup.WithContext(ctx)
		g.SetLimit(m.cfg.IndexWorkers)
		for _, sql := range stmts {
			sql := sql
			g.Go(func() error {
				if err := m.exec(gctx, sql); err != nil {
					return fmt.Errorf("create index: %w", err)
				}
				return nil
			})
		}
		return g.Wait()
	})
}

// DropTable drops t and forgets every statement applied for it so that a
// later EnsureTable recreates it.
func (m *Migrator) DropTable(ctx context.Context, t *ddl.Table) error {
	err := m.step(ctx, "drop_table", func(ctx context.Context) error {
		_, err := m.repo.Exec(ctx, t.DropTableSQL())
		return err
	})
	if err != nil {
		return fmt.Errorf("table %s: drop: %w", t.Name(), err)
	}
	m.mu.Lock()
	delete(m.applied, xxh3.HashString(t.CreateTableSQL()))
	for _, sql := range t.CreateIndexesSQL() {
		delete(m.applied, xxh3.HashString(sql))
	}
	m.mu.Unlock()
	return nil
}

// exec runs sql unless this Migrator already ran it successfully.
func (m *Migrator) exec(ctx context.Context, sql string) error {
	if m.seen(sql) {
		return nil
	}
	if _, err := m.repo.Exec(ctx, sql); err != nil {
		return err
	}
	m.markApplied(sql)
	return nil
}

func (m *Migrator) seen(sql string) bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	_, ok := m.applied[xxh3.HashString(sql)]
	return ok
}

func (m *Migrator) markApplied(sql string) {
	m.mu.Lock()
	m.applied[xxh3.HashString(sql)] = struct{}{}
	m.mu.Unlock()
}

func (m *Migrator) step(ctx context.Context, name string, fn func(context.Context) error) error {
	start := time.Now()
	err := fn(ctx)
	metrics.RecordStep(m.cfg.Job, name, err, time.Since(start))
	return err
}
