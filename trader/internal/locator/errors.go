package locator

import "fmt"

// ErrElementTimeout is returned when a target's interaction mode is not
// satisfied within its timeout budget.
type ErrElementTimeout struct {
	Target Target
}

func (e *ErrElementTimeout) Error() string {
	return fmt.Sprintf("locator: timeout (%s) waiting for %s", e.Target.timeout(), e.Target)
}

// ErrElementLookup is returned for any non-timeout lookup failure.
type ErrElementLookup struct {
	Target Target
	Cause  error
}

func (e *ErrElementLookup) Error() string {
	return fmt.Sprintf("locator: lookup failed for %s: %v", e.Target, e.Cause)
}

func (e *ErrElementLookup) Unwrap() error { return e.Cause }
