package postgres

// This adapter wires the Postgres backend into the storage-agnostic factory
// by registering a constructor at init time. The CLI (cmd/pgtable) and other
// callers obtain a Repository via storage.New(...) and only import this
// package for its side effect.

import (
	"context"

	"pgtable/internal/storage"
)

// newRepository is a test hook that points to NewRepository by default.
// Tests may replace this variable to avoid real DB connections.
var newRepository = NewRepository

// wrappedRepo implements storage.Repository by delegating to the concrete
// *postgres.Repository while providing a Close method that calls the close
// function returned by NewRepository.
type wrappedRepo struct {
	*Repository
	closeFn func()
}

var (
	_ storage.Repository    = (*wrappedRepo)(nil)
	_ storage.TypeRegistrar = (*wrappedRepo)(nil)
	_ storage.Copier        = (*wrappedRepo)(nil)
)

// Close implements storage.Repository.Close.
func (w *wrappedRepo) Close() {
	if w.closeFn != nil {
		w.closeFn()
	}
}

// init registers the "postgres" backend with the storage factory.
//
// Typical usage:
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	defer repo.Close()
//
//	m := storage.NewMigrator(repo, storage.MigratorConfig{Job: "shop"})
//	if err := m.EnsureTable(ctx, table); err != nil {
//	    // handle DDL error
//	}
func init() {
	storage.Register("postgres", func(ctx context.Context, cfg storage.Config) (storage.Repository, error) {
		r, closeFn, err := newRepository(ctx, Config{
			DSN:      cfg.DSN,
			MaxConns: int32(cfg.MaxConns),
			Types:    cfg.Types,
		})
		if err != nil {
			return nil, err
		}
		return &wrappedRepo{Repository: r, closeFn: closeFn}, nil
	})
}
