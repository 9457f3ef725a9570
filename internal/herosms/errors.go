package herosms

import (
	"errors"
	"fmt"
)

var (
	ErrInvalidCredential   = errors.New("invalid api key")
	ErrInsufficientBalance = errors.New("insufficient balance")
	ErrNoInventory         = errors.New("no numbers available")
	ErrOrderNotFound       = errors.New("activation not found")
)

// UnavailableError wraps a transport-level failure: network error or a
// non-2xx reply from the provider. It is never retried here.
type UnavailableError struct {
	Cause error
}

func (e *UnavailableError) Error() string {
	return "hero-sms unreachable: " + e.Cause.Error()
}

func (e *UnavailableError) Unwrap() error {
	return e.Cause
}

// UnexpectedResponseError is raised when a reply matches no known shape or
// sentinel. Raw keeps the verbatim payload for diagnostics.
type UnexpectedResponseError struct {
	Action string
	Raw    string
}

func (e *UnexpectedResponseError) Error() string {
	return fmt.Sprintf("unexpected %s response: %s", e.Action, e.Raw)
}
