package syncrun

import (
	"errors"
	"fmt"
)

// ErrRunInProgress is returned by TriggerSync when another reconciliation
// pass holds the run-lock. Callers retry later; nothing is queued.
var ErrRunInProgress = errors.New("a sync run is already in progress")

// StateError reports an unmet precondition. It aborts the whole run before
// any item is touched and becomes the run's error message.
type StateError struct {
	Reason string
}

func (e *StateError) Error() string {
	return e.Reason
}

// stateErrorf builds a StateError from a format string.
func stateErrorf(format string, args ...interface{}) error {
	return &StateError{Reason: fmt.Sprintf(format, args...)}
}

// ItemError reports a failed create or update for a single item. It is
// caught per item: the run continues and the item's mapping is left
// unchanged for retry on the next pass.
type ItemError struct {
	Side string // "remote" or "local"
	ID   string
	Err  error
}

func (e *ItemError) Error() string {
	return fmt.Sprintf("%s item %s: %v", e.Side, e.ID, e.Err)
}

func (e *ItemError) Unwrap() error {
	return e.Err
}

func itemErr(side, id string, err error) error {
	return &ItemError{Side: side, ID: id, Err: err}
}
