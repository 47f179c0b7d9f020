package store

import (
	"errors"
	"fmt"
)

var ErrNoBoard = errors.New("no board; run `rankboard seed` first")

// ConflictError rejects a write that no longer fits current state: the item
// moved, a referenced sibling is gone, or the hierarchy forbids the result.
type ConflictError struct {
	Op     string
	ItemID string
	Reason string
	Err    error
}

func (e *ConflictError) Error() string {
	msg := fmt.Sprintf("%s %s: conflict", e.Op, e.ItemID)
	if e.Reason != "" {
		msg += ": " + e.Reason
	}
	if e.Err != nil {
		msg += ": " + e.Err.Error()
	}
	return msg
}

func (e *ConflictError) Unwrap() error { return e.Err }
