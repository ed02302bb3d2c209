package store

import (
	"errors"
	"fmt"
)

var (
	ErrNotFound    = errors.New("not found")
	ErrDuplicate   = errors.New("duplicate key")
	ErrNoAllocator = errors.New("store does not allocate keys")
	// ErrMissing and ErrCorrupt are reported by backends and trigger self-healing on load.
	ErrMissing = errors.New("backing data missing")
	ErrCorrupt = errors.New("backing data corrupt")
)

// Error is a storage failure tied to one store kind.
type Error struct {
	Kind string
	Op   string
	Err  error
}

func (e *Error) Error() string {
	return fmt.Sprintf("store %s: %s: %v", e.Kind, e.Op, e.Err)
}

func (e *Error) Unwrap() error { return e.Err }
