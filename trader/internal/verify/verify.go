// CLAUDE:SUMMARY Two-channel effect verification: transient toast as a fast hint, positions table as ground truth.
// Package verify confirms that a state-changing UI operation actually
// took effect.
//
// Two independent signals are consulted in order of authority, not speed:
// a transient toast notification (fast, known to be unreliable) and the
// positions table (slower, authoritative). The final verdict is always
// the table's. A positive toast with a negative table is logged as a
// divergence and still reported as failure: a UI acknowledgment is not
// proof of a durable effect.
package verify

import (
	"context"
	"log/slog"
	"time"
)

// Notifier waits for a transient toast whose text contains any of the
// given substrings.
type Notifier interface {
	WaitToast(ctx context.Context, substrings []string, timeout time.Duration) error
}

// TableReader produces a fresh snapshot of the authoritative positions
// table, navigating to it first if needed.
type TableReader interface {
	Positions(ctx context.Context) ([]Position, error)
}

// Capturer records a diagnostic snapshot. Advisory only.
type Capturer interface {
	Capture(ctx context.Context, name string)
}

// Engine reconciles the two signals.
type Engine struct {
	toasts Notifier
	table  TableReader
	diag   Capturer
	log    *slog.Logger
	// poll is the authoritative re-read interval. The table updates on
	// its own schedule, so a single read right after the action races it.
	poll time.Duration
}

// New creates an Engine. toasts and diag may be nil; table must not be.
func New(toasts Notifier, table TableReader, diag Capturer, log *slog.Logger, poll time.Duration) *Engine {
	if log == nil {
		log = slog.Default()
	}
	if poll <= 0 {
		poll = time.Second
	}
	return &Engine{toasts: toasts, table: table, diag: diag, log: log, poll: poll}
}

// Confirm checks exp against both channels. It waits up to fastTimeout
// for the toast (absence is a warning, never a failure) and up to
// authTimeout for the table to satisfy the expectation's predicate.
// It returns nil only when the table was observed in the expected state.
func (e *Engine) Confirm(ctx context.Context, exp Expectation, fastTimeout, authTimeout time.Duration) error {
	fastSeen := false
	if e.toasts != nil && fastTimeout > 0 && len(exp.Toast) > 0 {
		if err := e.toasts.WaitToast(ctx, exp.Toast, fastTimeout); err != nil {
			e.log.Warn("verify: fast signal missed, falling back to table",
				"expectation", exp.Description, "error", err)
			e.capture(ctx, exp.slug()+"_notification_missed")
		} else {
			fastSeen = true
			e.log.Info("verify: fast signal observed", "expectation", exp.Description)
		}
	}

	deadline := time.Now().Add(authTimeout)
	for {
		positions, err := e.table.Positions(ctx)
		if err != nil {
			e.log.Warn("verify: table read failed", "expectation", exp.Description, "error", err)
		} else if exp.Match(positions) {
			e.log.Info("verify: authoritative table confirmed effect",
				"expectation", exp.Description, "positions", len(positions))
			e.capture(ctx, exp.slug()+"_verified")
			return nil
		}

		if time.Now().After(deadline) {
			break
		}
		select {
		case <-ctx.Done():
			e.capture(ctx, exp.slug()+"_verification_cancelled")
			return &ErrVerificationMismatch{Expectation: exp.Description, FastSeen: fastSeen}
		case <-time.After(e.poll):
		}
	}

	if fastSeen {
		e.log.Warn("verify: notification/table divergence, table is ground truth",
			"expectation", exp.Description)
	}
	e.capture(ctx, exp.slug()+"_verification_failed")
	return &ErrVerificationMismatch{Expectation: exp.Description, FastSeen: fastSeen}
}

func (e *Engine) capture(ctx context.Context, name string) {
	if e.diag != nil {
		e.diag.Capture(ctx, name)
	}
}
