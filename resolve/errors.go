package resolve

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidAddress          = errors.New("invalid address")
	ErrNameNotFound            = errors.New("name not found")
	ErrResolutionTimeout       = errors.New("resolution timed out")
	ErrHardwareAddressNotFound = errors.New("hardware address not found")

	// ErrNeighborCacheUnavailable is returned when the neighbor table cannot be read.
	ErrNeighborCacheUnavailable = errors.New("neighbor cache unavailable")
)

// Error describes a failed resolution. Reason is one of the sentinel errors
// above (or the caller's context error); Err is the underlying cause, if any.
type Error struct {
	Request Request
	Reason  error
	Err     error
}

func newError(req Request, reason, err error) *Error {
	return &Error{
		Request: req,
		Reason:  reason,
		Err:     err,
	}
}

func (e *Error) Error() string {
	if e.Err == nil {
		return fmt.Sprintf("resolve %s: %s", e.Request, e.Reason)
	}
	return fmt.Sprintf("resolve %s: %s: %s", e.Request, e.Reason, e.Err)
}

func (e *Error) Unwrap() []error {
	if e.Err == nil {
		return []error{e.Reason}
	}
	return []error{e.Reason, e.Err}
}
