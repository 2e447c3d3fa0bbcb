package storage

// This file implements a generic, batched loader that drains typed rows from
// a channel and hands each batch to an InsertFn. Backends with a bulk
// primitive (Postgres COPY) are used through CopyInsert; everything else goes
// through multi-row INSERT.
//
// Logging: on every successful flush, a concise progress line is emitted with
// running totals and instantaneous rows/sec since the previous flush.

import (
	"context"
	"fmt"
	"log"
	"time"

	"pgtable/internal/ddl"
	"pgtable/internal/metrics"
	"pgtable/internal/value"
)

// InsertFn inserts rows (aligned to t's column order) and returns the number
// of rows reported as inserted. It must cancel promptly when ctx is done.
type InsertFn func(ctx context.Context, t *ddl.Table, rows [][]value.Value) (int64, error)

// MultiInsert returns an InsertFn backed by InsertRows.
func MultiInsert(repo Repository) InsertFn {
	return func(ctx context.Context, t *ddl.Table, rows [][]value.Value) (int64, error) {
		return InsertRows(ctx, repo, t, rows)
	}
}

// CopyInsert returns an InsertFn backed by the backend's COPY primitive.
func CopyInsert(c Copier) InsertFn {
	return func(ctx context.Context, t *ddl.Table, rows [][]value.Value) (int64, error) {
		args := make([][]any, len(rows))
		for i, r := range rows {
			a, err := t.Args(r)
			if err != nil {
				return 0, fmt.Errorf("row %d: %w", i, err)
			}
			args[i] = a
		}
		n, err := c.CopyFrom(ctx, t.Name(), t.ColumnNames(), args)
		if err != nil {
			return n, fmt.Errorf("copy into %s: %w", t.Name(), err)
		}
		return n, nil
	}
}

// BulkInsert picks CopyInsert when repo supports it and MultiInsert otherwise.
func BulkInsert(repo Repository) InsertFn {
	if c, ok := repo.(Copier); ok {
		return CopyInsert(c)
	}
	return MultiInsert(repo)
}

// LoadBatches drains rows from in, groups them into batches of batchSize, and
// calls insertFn for each non-empty batch. It returns the total number of rows
// reported by insertFn and the first error encountered.
//
// Cancellation: returns (total, ctx.Err()) when canceled. Metrics are labeled
// with the table name.
func LoadBatches(
	ctx context.Context,
	t *ddl.Table,
	in <-chan []value.Value,
	batchSize int,
	insertFn InsertFn,
) (int64, error) {
	if batchSize <= 0 {
		return 0, fmt.Errorf("batchSize must be > 0")
	}
	if insertFn == nil {
		return 0, fmt.Errorf("insertFn must not be nil")
	}

	var (
		job         = t.Name()
		total       int64
		batches     int64
		batch       = make([][]value.Value, 0, batchSize)
		start       = time.Now()
		lastFlushTS = start
		lastTotal   int64
	)

	flush := func() error {
		if len(batch) == 0 {
			return nil
		}
		stepStart := time.Now()
		n, err := insertFn(ctx, t, batch)
		metrics.RecordStep(job, "load_batch", err, time.Since(stepStart))
		total += n
		metrics.RecordRow(job, "inserted", n)

		// Rows may be retained by insertFn only for the duration of the call.
		batch = make([][]value.Value, 0, batchSize)

		if err != nil {
			log.Printf("loader: table=%s insert failed after=%d total=%d err=%v", job, n, total, err)
			metrics.RecordRow(job, "failed", 1)
			return err
		}

		batches++
		metrics.RecordBatches(job, 1)
		now := time.Now()
		sinceLast := now.Sub(lastFlushTS)
		insertedSinceLast := total - lastTotal
		rps := float64(0)
		if sinceLast > 0 {
			rps = float64(insertedSinceLast) / sinceLast.Seconds()
		}
		log.Printf(
			"table=%s batch #%d: rps=%.0f inserted=%d total_inserted=%d elapsed=%s since_last=%s",
			job,
			batches,
			rps,
			n,
			total,
			now.Sub(start).Truncate(time.Millisecond),
			sinceLast.Truncate(time.Millisecond),
		)
		lastFlushTS = now
		lastTotal = total

		return nil
	}

	for {
		select {
		case <-ctx.Done():
			return total, ctx.Err()

		case row, ok := <-in:
			if !ok {
				pending := len(batch)
				if err := flush(); err != nil {
					return total, err
				}
				log.Printf("loader: table=%s input closed, final_flush=%d total_inserted=%d", job, pending, total)

				return total, nil
			}
			batch = append(batch, row)
			if len(batch) >= batchSize {
				if err := flush(); err != nil {
					return total, err
				}
			}
		}
	}
}
