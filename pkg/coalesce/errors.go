package coalesce

import (
	"errors"
	"fmt"
)

var (
	// ErrTimestampNotFound is matched by every NotFoundError.
	ErrTimestampNotFound = errors.New("timestamp not found")

	// ErrNilLookup is returned when a coalescer is built without a lookup.
	ErrNilLookup = errors.New("timestamp lookup cannot be nil")
)

// NotFoundError reports a block missing from an otherwise successful listing.
type NotFoundError struct {
	Block uint64
}

func (e *NotFoundError) Error() string {
	return fmt.Sprintf("timestamp not found for block %d", e.Block)
}

// Is reports whether target is ErrTimestampNotFound.
func (e *NotFoundError) Is(target error) bool {
	return target == ErrTimestampNotFound
}
