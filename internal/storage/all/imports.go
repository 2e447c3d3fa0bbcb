// Package all wires the built-in storage backends into the storage factory.
//
// This package exists purely for side effects: importing it (even as a blank
// import) runs the init function of each concrete backend, which registers
// its factory with the storage package. Today that is only "postgres"
// (pgtable/internal/storage/postgres); the generated DDL relies on composite,
// enum and domain types that other engines lack.
//
// Typical usage (in cmd/pgtable/main.go or a similar wiring layer):
//
//	import (
//	    _ "pgtable/internal/storage/all" // enable all built-in backends
//
//	    "pgtable/internal/storage"
//	)
//
//	repo, err := storage.New(ctx, storage.Config{Kind: "postgres", DSN: dsn})
//	if err != nil {
//	    // handle error
//	}
//	defer repo.Close()
package all

import (
	_ "pgtable/internal/storage/postgres"
)
