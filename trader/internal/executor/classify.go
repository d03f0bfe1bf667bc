package executor

import (
	"context"
	"errors"
	"strings"

	"github.com/hazyhaar/traderig/trader/internal/locator"
)

// FailureKind tags the outcome of an Execute invocation so the caller's
// handling is a function of the tag, not of error subclassing.
type FailureKind int

const (
	KindNone FailureKind = iota
	KindTransient
	KindFatal
	KindRetryExhausted
	KindVerification
)

func (k FailureKind) String() string {
	switch k {
	case KindNone:
		return "none"
	case KindTransient:
		return "transient"
	case KindFatal:
		return "fatal"
	case KindRetryExhausted:
		return "retry_exhausted"
	case KindVerification:
		return "verification"
	default:
		return "unknown"
	}
}

type transientError struct {
	cause error
}

func (e *transientError) Error() string { return "transient: " + e.cause.Error() }
func (e *transientError) Unwrap() error { return e.cause }

// MarkTransient tags err so Transient reports true for it. Used by page
// drivers for failure modes the generic probes cannot see.
func MarkTransient(err error) error {
	if err == nil {
		return nil
	}
	return &transientError{cause: err}
}

// Transient reports whether err is recoverable by refresh/re-login and a
// retry: element timeouts on interactive steps, stale references, and
// intercepted interactions. Everything else is fatal.
func Transient(err error) bool {
	if err == nil {
		return false
	}

	var marked *transientError
	if errors.As(err, &marked) {
		return true
	}

	var timeout *locator.ErrElementTimeout
	if errors.As(err, &timeout) {
		return true
	}
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}

	return isStale(err) || isIntercepted(err)
}

// isStale probes the error text for CDP faults that mean the node handle
// outlived the DOM it came from. rod surfaces these as plain messages, so
// string probes are the only stable classification.
func isStale(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "cannot find context with specified id") ||
		strings.Contains(msg, "node with given id does not belong to the document") ||
		strings.Contains(msg, "element was detached") ||
		strings.Contains(msg, "session with given id not found")
}

// isIntercepted probes for clicks the page swallowed: an overlay covering
// the control, or the control not accepting pointer events.
func isIntercepted(err error) bool {
	msg := strings.ToLower(err.Error())
	return strings.Contains(msg, "not interactable") ||
		strings.Contains(msg, "covered by") ||
		strings.Contains(msg, "invisible") ||
		strings.Contains(msg, "no pointer events")
}
