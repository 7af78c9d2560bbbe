package scan

import (
	"errors"
	"fmt"
)

var (
	// ErrProtocolViolation is returned when the remote source hands back a
	// cursor that does not move forward.
	ErrProtocolViolation = errors.New("protocol violation")

	// ErrNilSource is returned when a scanner is built without a source.
	ErrNilSource = errors.New("scanner source cannot be nil")
)

// CursorError describes a cursor that failed to advance, or a fetch that
// returned no page at all.
type CursorError struct {
	Range      BlockRange
	Cursor     uint64
	NextCursor uint64
	NilPage    bool
}

func (e *CursorError) Error() string {
	if e.NilPage {
		return fmt.Sprintf("%v: source returned no page scanning %s (cursor %d)",
			ErrProtocolViolation, e.Range, e.Cursor)
	}
	return fmt.Sprintf("%v: cursor did not advance scanning %s (cursor %d, next %d)",
		ErrProtocolViolation, e.Range, e.Cursor, e.NextCursor)
}

// Unwrap returns ErrProtocolViolation so callers can match with errors.Is.
func (e *CursorError) Unwrap() error {
	return ErrProtocolViolation
}
