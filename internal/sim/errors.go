package sim

import (
	"errors"
	"fmt"
)

var (
	// ErrUnstable indicates the plant state diverged to NaN or Inf.
	ErrUnstable = errors.New("sim: plant unstable (state diverged)")

	// ErrInvalidConfig indicates a run configuration that cannot be executed.
	ErrInvalidConfig = errors.New("sim: invalid config")
)

// RunError wraps an error with the rig time it occurred at.
type RunError struct {
	TimeMs  uint32
	Step    int
	Wrapped error
}

func (e *RunError) Error() string {
	return fmt.Sprintf("t=%dms step=%d: %v", e.TimeMs, e.Step, e.Wrapped)
}

func (e *RunError) Unwrap() error {
	return e.Wrapped
}
