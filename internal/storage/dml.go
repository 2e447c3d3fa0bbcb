package storage

import (
	"context"
	"fmt"

	"pgtable/internal/ddl"
	"pgtable/internal/value"
)

// MaxPlaceholders is the Postgres limit on bind parameters per statement.
const MaxPlaceholders = 65535

// InsertRow inserts one row using placeholders.
func InsertRow(ctx context.Context, repo Repository, t *ddl.Table, row []value.Value) error {
	args, err := t.Args(row)
	if err != nil {
		return err
	}
	if _, err := repo.Exec(ctx, t.InsertSQL(), args...); err != nil {
		return fmt.Errorf("insert into %s: %w", t.Name(), err)
	}
	return nil
}

// InsertRows inserts rows with multi-row INSERT statements, splitting them so
// no statement exceeds MaxPlaceholders. Zero rows is a no-op. It returns the
// number of rows inserted before the first failure.
func InsertRows(ctx context.Context, repo Repository, t *ddl.Table, rows [][]value.Value) (int64, error) {
	if len(rows) == 0 {
		return 0, nil
	}
	per := MaxPlaceholders / len(t.Columns())
	var total int64
	for start := 0; start < len(rows); start += per {
		end := min(start+per, len(rows))
		chunk := rows[start:end]
		args, err := t.ArgsMany(chunk)
		if err != nil {
			return total, fmt.Errorf("insert into %s: %w", t.Name(), err)
		}
		n, err := repo.Exec(ctx, t.InsertManySQL(len(chunk)), args...)
		if err != nil {
			return total, fmt.Errorf("insert into %s: rows %d..%d: %w", t.Name(), start, end-1, err)
		}
		total += n
	}
	return total, nil
}

// InsertLiteral inserts one row with every value escaped inline. Escape
// failures are returned as *escape.Error before anything reaches repo.
func InsertLiteral(ctx context.Context, repo Repository, t *ddl.Table, row []value.Value) error {
	sql, err := t.InsertLiteralSQL(row)
	if err != nil {
		return err
	}
	if _, err := repo.Exec(ctx, sql); err != nil {
		return fmt.Errorf("insert into %s: %w", t.Name(), err)
	}
	return nil
}

// SelectAll returns every row of t.
func SelectAll(ctx context.Context, repo Repository, t *ddl.Table) ([]map[string]any, error) {
	return Select(ctx, repo, t, "")
}

// Select returns the rows of t matching cond, a raw SQL condition that may
// reference args as $1, $2, ...
func Select(ctx context.Context, repo Repository, t *ddl.Table, cond string, args ...any) ([]map[string]any, error) {
	rows, err := repo.Select(ctx, t.SelectSQL(cond), args...)
	if err != nil {
		return nil, fmt.Errorf("select from %s: %w", t.Name(), err)
	}
	return rows, nil
}
