// Package locator resolves logical UI targets to live element handles.
//
// A Target names a control the engine wants to touch ("search input",
// "confirm button") together with the interaction mode it needs and a
// timeout budget. Resolve blocks until the control satisfies the mode or
// the budget elapses. No retry happens at this layer; retry is the
// executor's responsibility.
package locator

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/go-rod/rod"
)

// Mode is the interaction requirement a target must satisfy.
type Mode int

const (
	// ModePresent requires the element to exist in the DOM.
	ModePresent Mode = iota
	// ModeVisible requires the element to be rendered and visible.
	ModeVisible
	// ModeClickable requires the element to be visible and enabled.
	ModeClickable
)

func (m Mode) String() string {
	switch m {
	case ModeVisible:
		return "visible"
	case ModeClickable:
		return "clickable"
	default:
		return "present"
	}
}

// Target describes a remote UI control by logical identity. Immutable,
// constructed per lookup.
type Target struct {
	// Name is the logical identity, used in logs and snapshot names.
	Name string
	// Selector is a CSS selector, or an XPath expression when ByXPath.
	Selector string
	ByXPath  bool
	Mode     Mode
	// Timeout bounds the wait. Zero means DefaultTimeout.
	Timeout time.Duration
}

// DefaultTimeout applies when a Target carries no explicit budget.
const DefaultTimeout = 15 * time.Second

func (t Target) String() string {
	return fmt.Sprintf("%s (%s): %s", t.Name, t.Mode, t.Selector)
}

func (t Target) timeout() time.Duration {
	if t.Timeout > 0 {
		return t.Timeout
	}
	return DefaultTimeout
}

// Capturer records a diagnostic snapshot. Advisory only.
type Capturer interface {
	Capture(ctx context.Context, name string)
}

// Locator resolves targets on rod pages and snapshots failures before
// propagating them.
type Locator struct {
	log  *slog.Logger
	diag Capturer
	def  time.Duration
}

// New creates a Locator. diag may be nil; defaultTimeout <= 0 selects
// DefaultTimeout for targets that carry no explicit budget.
func New(log *slog.Logger, diag Capturer, defaultTimeout time.Duration) *Locator {
	if log == nil {
		log = slog.Default()
	}
	return &Locator{log: log, diag: diag, def: defaultTimeout}
}

// Resolve blocks until the target satisfies its mode or its timeout
// elapses. On timeout it fails with *ErrElementTimeout, on any other
// lookup error with *ErrElementLookup; both capture a snapshot first.
func (l *Locator) Resolve(ctx context.Context, page *rod.Page, t Target) (*rod.Element, error) {
	if t.Timeout <= 0 && l.def > 0 {
		// Stamp the effective budget so error values report it.
		t.Timeout = l.def
	}
	p := page.Context(ctx).Timeout(t.timeout())

	var el *rod.Element
	var err error
	if t.ByXPath {
		el, err = p.ElementX(t.Selector)
	} else {
		el, err = p.Element(t.Selector)
	}
	if err != nil {
		return nil, l.fail(ctx, t, err)
	}

	switch t.Mode {
	case ModeVisible:
		err = el.WaitVisible()
	case ModeClickable:
		if err = el.WaitVisible(); err == nil {
			err = el.WaitEnabled()
		}
	}
	if err != nil {
		return nil, l.fail(ctx, t, err)
	}

	// Strip the lookup deadline so the caller's interactions run under
	// their own budgets.
	return el.CancelTimeout(), nil
}

func (l *Locator) fail(ctx context.Context, t Target, cause error) error {
	if deadlineExceeded(ctx, cause) {
		l.log.Error("locator: timeout waiting for element",
			"target", t.Name, "mode", t.Mode.String(), "selector", t.Selector, "timeout", t.timeout())
		if l.diag != nil {
			l.diag.Capture(ctx, "element_timeout_"+t.Name)
		}
		return &ErrElementTimeout{Target: t}
	}

	l.log.Error("locator: element lookup failed",
		"target", t.Name, "selector", t.Selector, "error", cause)
	if l.diag != nil {
		l.diag.Capture(ctx, "element_error_"+t.Name)
	}
	return &ErrElementLookup{Target: t, Cause: cause}
}

func deadlineExceeded(ctx context.Context, err error) bool {
	if errors.Is(err, context.DeadlineExceeded) {
		return true
	}
	// rod can surface the per-lookup deadline as its own error text; the
	// outer context staying live tells the two cases apart.
	if ctx.Err() == nil && err != nil {
		msg := err.Error()
		return strings.Contains(msg, "context deadline exceeded") ||
			strings.Contains(msg, "timeout")
	}
	return false
}
