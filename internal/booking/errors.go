package booking

import (
	"errors"
	"fmt"

	"github.com/jakopako/kursbot/internal/types"
)

var (
	ErrNotFound     = errors.New("not found")
	ErrTimeout      = errors.New("timed out")
	ErrFillFailure  = errors.New("form fill failed")
	ErrUncertain    = errors.New("outcome uncertain")
	ErrPopupTimeout = fmt.Errorf("no popup window opened: %w", ErrTimeout)
)

// StageError is the error of the workflow stage that ended a run.
type StageError struct {
	State   types.State
	Outcome types.Outcome
	Err     error
}

func (e *StageError) Error() string {
	return fmt.Sprintf("%s after state %s: %v", e.Outcome, e.State, e.Err)
}

func (e *StageError) Unwrap() error {
	return e.Err
}
