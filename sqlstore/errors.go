package sqlstore

import "errors"

var (
	// ErrReadOnly indicates a write was attempted inside View.
	ErrReadOnly = errors.New("sqlstore: write in read-only transaction")

	// ErrCorrupt indicates a row could not be decoded.
	ErrCorrupt = errors.New("sqlstore: corrupt row")
)
