package api

import (
	"errors"
	"fmt"
)

// ErrEmptyBody is returned by Send when the message body is empty after
// trimming. The check happens before any network call.
var ErrEmptyBody = errors.New("message body is empty")

// StoreError wraps a failed REST call. Status is zero for pure network
// failures where no response was received.
type StoreError struct {
	Op     string
	Status int
	Err    error
}

func (e *StoreError) Error() string {
	if e.Status > 0 {
		return fmt.Sprintf("%s: server returned %d", e.Op, e.Status)
	}
	return fmt.Sprintf("%s: %v", e.Op, e.Err)
}

func (e *StoreError) Unwrap() error {
	return e.Err
}
