package mutate

import (
	"errors"
	"fmt"
)

// ErrNoop marks a gesture that resolves to nothing to do: a refused hierarchy
// check, a self drop, a cycle, or a move back to the same slot. Callers treat
// it as silent.
var ErrNoop = errors.New("nothing to do")

var ErrInvalidOption = errors.New("invalid option")

type NotFoundError struct {
	Kind string
	ID   string
}

func (e NotFoundError) Error() string {
	return fmt.Sprintf("%s not found: %s", e.Kind, e.ID)
}

// RemoteError wraps a failed remote call after the speculative write has been
// rolled back.
type RemoteError struct {
	MutationID string
	Op         string
	Err        error
}

func (e *RemoteError) Error() string {
	return fmt.Sprintf("%s failed (rolled back): %v", e.Op, e.Err)
}

func (e *RemoteError) Unwrap() error { return e.Err }

func noop(reason error) error {
	if reason == nil {
		return ErrNoop
	}
	return fmt.Errorf("%w: %w", ErrNoop, reason)
}
