package systems

import (
	"errors"
	"fmt"
)

// ErrPatchFull is returned when a plant would exceed a patch's density limit.
var ErrPatchFull = errors.New("patch is full")

// InvariantError reports a broken simulation invariant. It is fatal: the run
// that produced it must be aborted.
type InvariantError struct {
	Tick   int32
	Entity string
	Reason string
}

func (e *InvariantError) Error() string {
	return fmt.Sprintf("invariant violated at tick %d (%s): %s", e.Tick, e.Entity, e.Reason)
}

func invariantf(tick int32, entity, format string, args ...any) *InvariantError {
	return &InvariantError{Tick: tick, Entity: entity, Reason: fmt.Sprintf(format, args...)}
}
