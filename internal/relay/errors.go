package relay

import (
	"errors"
	"fmt"
	"strings"

	"github.com/sweeney/relay-rig/internal/pins"
)

var (
	// ErrBus is matched by every expander read or write failure.
	ErrBus = errors.New("relay bus error")

	// ErrConflictingPins is matched by ConflictingPinsError.
	ErrConflictingPins = errors.New("conflicting pins")

	// ErrUnknownPin is returned when a configuration names an unregistered pin.
	ErrUnknownPin = errors.New("unknown pin")
)

// BusError wraps an expander failure on one bank.
type BusError struct {
	Op   string // "read" or "write"
	Bank pins.Bank
	Err  error
}

func (e *BusError) Error() string {
	return fmt.Sprintf("%s %s: %v", e.Op, e.Bank, e.Err)
}

func (e *BusError) Unwrap() []error { return []error{ErrBus, e.Err} }

// ConflictingPinsError lists the mutual-exclusion rules a configuration
// violates.
type ConflictingPinsError struct {
	Pins      pins.Set
	Conflicts []pins.Conflict
}

func (e *ConflictingPinsError) Error() string {
	parts := make([]string, len(e.Conflicts))
	for i, c := range e.Conflicts {
		parts[i] = c.String()
	}
	return "conflicting pins: " + strings.Join(parts, "; ")
}

func (e *ConflictingPinsError) Unwrap() error { return ErrConflictingPins }
