package inference

import (
	"errors"
	"fmt"
)

var ErrStaleRecord = errors.New("record is not newer than the last processed record")

// InvariantError is a programming error in the inference setup, such as an
// unknown phase or a missing collaborator. The vehicle it happens on cannot
// continue and must be reset.
type InvariantError struct {
	Reason string
	Err    error
}

func (e *InvariantError) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("inference invariant violated: %s", e.Reason)
	}
	return fmt.Sprintf("inference invariant violated: %s: %s", e.Reason, e.Err)
}

func (e *InvariantError) Unwrap() error {
	return e.Err
}

func IsInvariantError(err error) bool {
	var invariantError *InvariantError
	return errors.As(err, &invariantError)
}
