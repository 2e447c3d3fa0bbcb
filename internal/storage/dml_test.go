package storage

import (
	"context"
	"errors"
	"strconv"
	"strings"
	"testing"

	"pgtable/internal/ddl"
	"pgtable/internal/escape"
	"pgtable/internal/sqltype"
	"pgtable/internal/value"
)

func point(x, y int16) value.Value { return value.Row(value.Int16(x), value.Int16(y)) }

// TestInsertRow binds one row with Native arguments.
func TestInsertRow(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	tbl := pointsTable(t)
	if err := InsertRow(context.Background(), repo, tbl, []value.Value{value.Int32(1), point(2, 3)}); err != nil {
		t.Fatalf("InsertRow() error = %v", err)
	}
	if got, want := repo.stmts[0], "INSERT INTO points (id, at) VALUES ($1, $2);"; got != want {
		t.Fatalf("statement = %q, want %q", got, want)
	}
	args := repo.args[0]
	if args[0] != int32(1) {
		t.Fatalf("args[0] = %#v, want int32(1)", args[0])
	}
	if rec, ok := args[1].(value.Record); !ok || rec.Index(1) != int16(3) {
		t.Fatalf("args[1] = %#v, want Record{2, 3}", args[1])
	}

	if err := InsertRow(context.Background(), repo, tbl, []value.Value{value.Int32(1)}); err == nil {
		t.Fatalf("InsertRow(short row) error = nil")
	}
}

// TestInsertRows_Empty sends nothing for zero rows.
func TestInsertRows_Empty(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	n, err := InsertRows(context.Background(), repo, pointsTable(t), nil)
	if err != nil || n != 0 || len(repo.stmts) != 0 {
		t.Fatalf("InsertRows(nil) = %d, %v, statements %d", n, err, len(repo.stmts))
	}
}

// TestInsertRows_Chunks splits statements so none exceeds MaxPlaceholders.
func TestInsertRows_Chunks(t *testing.T) {
	t.Parallel()

	const width = 1000
	cols := make([]ddl.Column, width)
	for i := range cols {
		cols[i] = ddl.NewColumn("c"+strconv.Itoa(i), sqltype.Int4Type).Finish()
	}
	tbl := ddl.MustTable("wide", cols)

	rows := make([][]value.Value, 150)
	for i := range rows {
		r := make([]value.Value, width)
		for j := range r {
			r[j] = value.Int32(int32(i))
		}
		rows[i] = r
	}

	repo := &fakeRepo{}
	n, err := InsertRows(context.Background(), repo, tbl, rows)
	if err != nil {
		t.Fatalf("InsertRows() error = %v", err)
	}
	if n != 150 {
		t.Fatalf("InsertRows() = %d, want 150", n)
	}
	if len(repo.stmts) != 3 {
		t.Fatalf("statements = %d, want 3 (65+65+20)", len(repo.stmts))
	}
	for i, a := range repo.args {
		if len(a) > MaxPlaceholders {
			t.Fatalf("statement %d has %d args", i, len(a))
		}
	}
	if got := len(repo.args[2]); got != 20*width {
		t.Fatalf("last chunk args = %d, want %d", got, 20*width)
	}
}

// TestInsertRows_Error reports the rows already inserted.
func TestInsertRows_Error(t *testing.T) {
	t.Parallel()

	boom := errors.New("boom")
	repo := &fakeRepo{failOn: "INSERT", err: boom}
	rows := [][]value.Value{{value.Int32(1), point(0, 0)}}
	n, err := InsertRows(context.Background(), repo, pointsTable(t), rows)
	if !errors.Is(err, boom) || n != 0 {
		t.Fatalf("InsertRows() = %d, %v, want 0, boom", n, err)
	}
}

// TestInsertLiteral escapes inline and rejects bad values before reaching
// the repository.
func TestInsertLiteral(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{}
	tbl := figuresTable(t)
	row := []value.Value{
		value.Int32(7),
		point(1, -1),
		value.Some(value.List(point(0, 0), point(1, 1))),
		value.Null(),
	}
	if err := InsertLiteral(context.Background(), repo, tbl, row); err != nil {
		t.Fatalf("InsertLiteral() error = %v", err)
	}
	want := "INSERT INTO figures (id, origin, path, tag) VALUES " +
		"(7, ROW(1, -1)::point2d, {ROW(0, 0)::point2d, ROW(1, 1)::point2d}, NULL);"
	if repo.stmts[0] != want {
		t.Fatalf("statement =\n%q\nwant\n%q", repo.stmts[0], want)
	}

	row[3] = value.Some(value.String("much too long"))
	err := InsertLiteral(context.Background(), repo, tbl, row)
	var escErr *escape.Error
	if !errors.As(err, &escErr) || escErr.Column != "tag" || !errors.Is(err, escape.ErrLengthExceeded) {
		t.Fatalf("InsertLiteral() error = %v, want length error on tag", err)
	}
	if len(repo.stmts) != 1 {
		t.Fatalf("bad row reached the repository")
	}
}

// TestSelect renders the condition and passes arguments through.
func TestSelect(t *testing.T) {
	t.Parallel()

	repo := &fakeRepo{rows: []map[string]any{{"id": int32(1)}}}
	tbl := pointsTable(t)

	rows, err := SelectAll(context.Background(), repo, tbl)
	if err != nil || len(rows) != 1 {
		t.Fatalf("SelectAll() = %v, %v", rows, err)
	}
	if _, err := Select(context.Background(), repo, tbl, "id = $1", 1); err != nil {
		t.Fatalf("Select() error = %v", err)
	}
	if got := repo.stmts; got[0] != "SELECT * FROM points;" || !strings.HasSuffix(got[1], "WHERE id = $1;") {
		t.Fatalf("statements = %q", got)
	}
	if repo.args[1][0] != 1 {
		t.Fatalf("args = %v", repo.args[1])
	}
}
