// CLAUDE:SUMMARY Bounded retry loop for UI operations: classify transient vs fatal, recover between attempts, verify on apparent success.
// Package executor performs one logical state-changing UI operation as a
// bounded retry loop with recovery between attempts.
//
// The retry decision is a pure function of the failure kind: transient
// failures (element timeout on an interactive step, stale references,
// intercepted clicks) are recovered locally up to the attempt budget;
// anything unclassified is fatal and aborts immediately. An apparent
// success is handed to the operation's verification step, whose verdict
// becomes the final result.
package executor

import (
	"context"
	"fmt"
	"log/slog"
)

// Operation is one idempotent-from-the-caller's-perspective unit of work.
// Because an attempt may partially mutate remote state, Do must begin by
// resetting the portion of UI state it owns (clear-before-type) so
// repeated attempts are safe.
type Operation struct {
	// Name identifies the operation in logs and snapshot names.
	Name string
	// Do performs the operation's interactions.
	Do func(ctx context.Context) error
	// Verify confirms the effect after Do appears to complete. Nil skips
	// verification (for operations whose effect is observed inline).
	Verify func(ctx context.Context) error
}

// Result is the outcome of one Execute invocation. Produced once, not
// retained beyond the caller.
type Result struct {
	Succeeded bool
	Attempts  int
	Failure   FailureKind
	Err       error
}

// Recoverer restores a usable UI state between attempts: a page refresh,
// a session re-login, or both.
type Recoverer interface {
	Recover(ctx context.Context) error
}

// Capturer records a diagnostic snapshot. Advisory only.
type Capturer interface {
	Capture(ctx context.Context, name string)
}

// Executor runs operations against the remote UI.
type Executor struct {
	rec  Recoverer
	diag Capturer
	log  *slog.Logger
}

// New creates an Executor. rec and diag may be nil.
func New(rec Recoverer, diag Capturer, log *slog.Logger) *Executor {
	if log == nil {
		log = slog.Default()
	}
	return &Executor{rec: rec, diag: diag, log: log}
}

// Execute runs op at most maxAttempts times. Transient failures trigger
// recovery and a retry unless the budget is spent; fatal failures abort
// without consuming remaining attempts. Failures surface as a failed
// Result, never as a panic.
func (x *Executor) Execute(ctx context.Context, op Operation, maxAttempts int) Result {
	if maxAttempts < 1 {
		maxAttempts = 1
	}

	var lastErr error
	for attempt := 1; attempt <= maxAttempts; attempt++ {
		x.log.Info("executor: attempt", "operation", op.Name, "attempt", attempt, "max_attempts", maxAttempts)

		err := op.Do(ctx)
		if err == nil {
			if op.Verify != nil {
				if verr := op.Verify(ctx); verr != nil {
					// The authoritative signal already spoke; retrying the
					// interaction would double-apply the effect.
					x.capture(ctx, op.Name+"_verification_failed")
					return Result{Attempts: attempt, Failure: KindVerification, Err: verr}
				}
			}
			return Result{Succeeded: true, Attempts: attempt, Failure: KindNone}
		}

		if ctx.Err() != nil {
			return Result{Attempts: attempt, Failure: KindFatal, Err: ctx.Err()}
		}

		if !Transient(err) {
			x.log.Error("executor: fatal failure", "operation", op.Name, "attempt", attempt, "error", err)
			x.capture(ctx, op.Name+"_fatal")
			return Result{Attempts: attempt, Failure: KindFatal, Err: err}
		}

		lastErr = err
		x.log.Warn("executor: transient failure",
			"operation", op.Name, "attempt", attempt, "max_attempts", maxAttempts, "error", err)
		x.capture(ctx, fmt.Sprintf("%s_attempt_%d_failed", op.Name, attempt))

		if attempt < maxAttempts && x.rec != nil {
			if rerr := x.rec.Recover(ctx); rerr != nil {
				// A failed recovery still leaves the next attempt a chance;
				// the attempt itself will fail fast if the state is gone.
				x.log.Error("executor: recovery failed", "operation", op.Name, "error", rerr)
			}
		}
	}

	x.log.Error("executor: retry budget exhausted",
		"operation", op.Name, "attempts", maxAttempts, "last_error", lastErr)
	x.capture(ctx, op.Name+"_retries_exhausted")
	return Result{Attempts: maxAttempts, Failure: KindRetryExhausted, Err: lastErr}
}

func (x *Executor) capture(ctx context.Context, name string) {
	if x.diag != nil {
		x.diag.Capture(ctx, name)
	}
}
