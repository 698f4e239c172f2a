package batchcount

import (
	"fmt"

	"github.com/pkg/errors"

	"github.com/bcongdon/batchcount/internal/pkg/locator"
)

// Failure kinds. Store and plan failures returned by Planner, ShardProcessor
// and Merger match one of these under errors.Is. Cancellation during local
// computation surfaces as the context's error.
var (
	// ErrInvalidAddress indicates a malformed locator string.
	ErrInvalidAddress = locator.ErrInvalidAddress

	ErrPlanningFailed  = errors.New("planning failed")
	ErrPlanNotFound    = errors.New("plan not found")
	ErrPlanCorrupt     = errors.New("plan corrupt")
	ErrIndexOutOfRange = errors.New("index out of range")

	// ErrIndexUnset indicates that neither the index flag nor the array job
	// environment variable was provided.
	ErrIndexUnset = errors.New("shard index not set")

	ErrObjectFetchFailed = errors.New("object fetch failed")
	ErrObjectWriteFailed = errors.New("object write failed")
)

// Error records a failed operation, the object it concerned and the kind
// of failure.
type Error struct {
	Op   string          // operation that failed
	Loc  locator.Locator // object or prefix involved, may be zero
	Kind error           // one of the Err* kinds above
	Err  error           // underlying cause, may be nil
}

func newError(op string, loc locator.Locator, kind, err error) *Error {
	return &Error{Op: op, Loc: loc, Kind: kind, Err: err}
}

func (e *Error) Error() string {
	msg := e.Op + ": " + e.Kind.Error()
	if !e.Loc.IsZero() {
		msg = fmt.Sprintf("%s: %s", msg, e.Loc)
	}
	if e.Err != nil {
		msg = fmt.Sprintf("%s: %v", msg, e.Err)
	}
	return msg
}

// Unwrap returns the underlying cause.
func (e *Error) Unwrap() error {
	return e.Err
}

// Is reports whether target is e's failure kind.
func (e *Error) Is(target error) bool {
	return target == e.Kind
}
