package escape

import (
	"errors"
	"fmt"

	"pgtable/internal/sqltype"
)

var (
	// ErrValueMismatch means the runtime shape of a value does not match the
	// declared type.
	ErrValueMismatch = errors.New("value does not match declared type")

	// ErrLengthExceeded means a character value is longer than the declared
	// length of its type.
	ErrLengthExceeded = errors.New("value exceeds declared length")

	// ErrUnsupportedKind is returned for type shapes the codec cannot render.
	// It signals a broken column declaration rather than bad row data.
	ErrUnsupportedKind = sqltype.ErrUnsupportedKind
)

// Error describes a value that could not be escaped. Column is empty when
// the codec is called directly rather than through a column.
type Error struct {
	Column string
	Type   string
	Err    error
}

func (e *Error) Error() string {
	if e.Column == "" {
		return fmt.Sprintf("escape: type %s: %v", e.Type, e.Err)
	}
	return fmt.Sprintf("escape: column %q (%s): %v", e.Column, e.Type, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }

// WithColumn returns err annotated with the column name when it is an
// *Error; other errors are returned unchanged.
func WithColumn(err error, column string) error {
	var e *Error
	if !errors.As(err, &e) {
		return err
	}
	out := *e
	out.Column = column
	return &out
}

func mismatch(t sqltype.Type) error {
	return &Error{Type: t.SQL(), Err: ErrValueMismatch}
}
