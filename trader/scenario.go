package trader

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/hazyhaar/traderig/trader/internal/aqx"
	"github.com/hazyhaar/traderig/trader/internal/bulk"
	"github.com/hazyhaar/traderig/trader/internal/diag"
	"github.com/hazyhaar/traderig/trader/internal/executor"
	"github.com/hazyhaar/traderig/trader/internal/verify"
)

// StepResult records the outcome of one scenario step.
type StepResult struct {
	Name      string
	Succeeded bool
	Attempts  int
	Failure   string
	Err       error
}

// Report is the outcome of one full run.
type Report struct {
	RunID      string
	StartedAt  time.Time
	FinishedAt time.Time
	Steps      []StepResult
}

// Passed reports whether every executed step succeeded.
func (r *Report) Passed() bool {
	if len(r.Steps) == 0 {
		return false
	}
	for _, s := range r.Steps {
		if !s.Succeeded {
			return false
		}
	}
	return true
}

// Run executes the full scenario: log in, select the configured
// instrument, place one buy and one sell order, then close every open
// position. Order placement is skipped when the instrument could not be
// selected; closure runs regardless so the account is left clean.
func (t *Trader) Run(ctx context.Context) *Report {
	report := &Report{RunID: t.runID, StartedAt: time.Now()}
	defer func() {
		report.FinishedAt = time.Now()
		t.sink.Capture(ctx, "run_finish_state")
	}()

	if !t.runLogin(ctx, report) {
		return report
	}

	instrumentOK := t.runSelectInstrument(ctx, report)
	if instrumentOK {
		t.runOrder(ctx, report, verify.SideBuy)
		t.runOrder(ctx, report, verify.SideSell)
	} else {
		t.log.Warn("trader: skipping order steps, instrument not selected",
			"instrument", t.cfg.Instrument)
	}

	t.runCloseAll(ctx, report)

	t.log.Info("trader: run finished", "passed", report.Passed(), "steps", len(report.Steps))
	return report
}

func (t *Trader) runLogin(ctx context.Context, report *Report) bool {
	loginCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeouts.Login)
	defer cancel()

	step := StepResult{Name: "login", Attempts: 1}
	if err := t.sess.Login(loginCtx); err != nil {
		step.Err = err
		step.Failure = executor.KindFatal.String()
		diag.RecordLogin("failure")
		t.sink.Capture(ctx, "login_failure")
		t.sink.Event(ctx, "error", "login failed", map[string]string{"error": err.Error()})
	} else {
		step.Succeeded = true
		diag.RecordLogin("success")
		t.sink.Capture(ctx, "login_successful")
	}
	report.Steps = append(report.Steps, step)
	return step.Succeeded
}

func (t *Trader) runSelectInstrument(ctx context.Context, report *Report) bool {
	instrument := t.cfg.Instrument
	op := executor.Operation{
		Name: "select_instrument",
		Do: func(ctx context.Context) error {
			return t.driver.SelectInstrument(ctx, instrument)
		},
	}
	res := t.exec.Execute(ctx, op, t.cfg.Attempts.Select)
	report.Steps = append(report.Steps, t.record(ctx, op.Name, res))
	return res.Succeeded
}

func (t *Trader) runOrder(ctx context.Context, report *Report, side verify.Side) {
	instrument := t.cfg.Instrument
	params := orderParams(t.cfg)
	expect := verify.OrderPlaced(instrument, side)

	op := executor.Operation{
		Name: fmt.Sprintf("%s_order", sideName(side)),
		Do: func(ctx context.Context) error {
			return t.driver.PlaceOrder(ctx, side, params)
		},
		Verify: func(ctx context.Context) error {
			return t.verifier.Confirm(ctx, expect,
				t.cfg.Timeouts.FastSignal, t.cfg.Timeouts.Authoritative)
		},
	}
	res := t.exec.Execute(ctx, op, t.cfg.Attempts.FieldFill)
	if res.Succeeded {
		diag.RecordVerification("confirmed")
	} else if res.Failure == executor.KindVerification {
		diag.RecordVerification("mismatch")
	}
	report.Steps = append(report.Steps, t.record(ctx, op.Name, res))
}

func (t *Trader) runCloseAll(ctx context.Context, report *Report) {
	step := StepResult{Name: "close_positions", Attempts: 1, Succeeded: true}

	var err error
	if t.cfg.CloseMode == CloseBulk {
		err = t.closer.BulkClose(ctx)
	} else {
		err = t.closer.CloseIndividually(ctx)
	}
	if err != nil {
		step.Succeeded = false
		step.Err = err
		step.Failure = closureFailureKind(err).String()
		t.sink.Event(ctx, "error", "position closure incomplete", map[string]string{"error": err.Error()})
	}
	report.Steps = append(report.Steps, step)
}

// closureFailureKind labels a closure error: running out of per-position
// close attempts is exhaustion, not a fatal fault.
func closureFailureKind(err error) executor.FailureKind {
	var remain *bulk.ErrPositionsRemain
	if errors.As(err, &remain) {
		return executor.KindRetryExhausted
	}
	return executor.KindFatal
}

// record turns an executor result into a step entry and feeds the run
// metrics.
func (t *Trader) record(ctx context.Context, name string, res executor.Result) StepResult {
	diag.RecordAttempts(name, res.Attempts)
	step := StepResult{
		Name:      name,
		Succeeded: res.Succeeded,
		Attempts:  res.Attempts,
		Err:       res.Err,
	}
	if !res.Succeeded {
		step.Failure = res.Failure.String()
		diag.RecordFailure(name, res.Failure.String())
		t.sink.Event(ctx, "error", name+" failed", map[string]string{
			"failure": step.Failure,
			"error":   fmt.Sprint(res.Err),
		})
	}
	return step
}

func sideName(side verify.Side) string {
	if side == verify.SideSell {
		return "sell"
	}
	return "buy"
}

func orderParams(cfg *Config) aqx.OrderParams {
	return aqx.OrderParams{
		Size:             cfg.Order.Size,
		StopLossPoints:   cfg.Order.StopLossPoints,
		TakeProfitPoints: cfg.Order.TakeProfitPoints,
	}
}
