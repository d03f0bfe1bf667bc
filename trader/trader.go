// CLAUDE:SUMMARY Top-level orchestrator: wires browser, page driver, session, executor, verification, bulk close and diagnostics.
// Package trader drives a scripted trading session against the AQX web
// platform: login, instrument selection, order placement, and position
// closure, each verified against the authoritative positions table.
//
// The engine observes and acts through one browser page. Transient UI
// failures are retried with recovery in between; verification verdicts
// are final. Diagnostics (screenshots, event timeline, metrics) are
// advisory and never change an outcome.
package trader

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"

	_ "modernc.org/sqlite"

	"github.com/hazyhaar/traderig/dbopen"
	"github.com/hazyhaar/traderig/idgen"
	"github.com/hazyhaar/traderig/trader/internal/aqx"
	"github.com/hazyhaar/traderig/trader/internal/browser"
	"github.com/hazyhaar/traderig/trader/internal/bulk"
	"github.com/hazyhaar/traderig/trader/internal/diag"
	"github.com/hazyhaar/traderig/trader/internal/executor"
	"github.com/hazyhaar/traderig/trader/internal/locator"
	"github.com/hazyhaar/traderig/trader/internal/session"
	"github.com/hazyhaar/traderig/trader/internal/verify"
)

// Credentials authenticate the demo account. Re-exported from internal.
type Credentials = session.Credentials

// Trader owns one browser and one authenticated session for the duration
// of a run.
type Trader struct {
	cfg   *Config
	creds Credentials
	log   *slog.Logger

	runID string
	db    *sql.DB
	sink  *diag.Sink
	mgr   *browser.Manager

	driver   *aqx.Driver
	sess     *session.Manager
	exec     *executor.Executor
	verifier *verify.Engine
	closer   *bulk.Coordinator

	viewer *diag.Server
}

// New prepares a Trader: diagnostics storage and browser manager are
// built here, the page stack in Start.
func New(cfg *Config, creds Credentials, log *slog.Logger) (*Trader, error) {
	if log == nil {
		log = slog.Default()
	}
	if err := creds.Validate(); err != nil {
		return nil, err
	}

	runID := idgen.Prefixed("run_", idgen.NanoID(8))()
	log = log.With("run_id", runID)

	db, err := dbopen.Open(cfg.Diag.DB,
		dbopen.WithMkdirAll(),
		dbopen.WithSchema(diag.Schema),
	)
	if err != nil {
		return nil, fmt.Errorf("trader: open diagnostics db: %w", err)
	}

	sink, err := diag.NewSink(runID, cfg.Diag.Dir, db, log)
	if err != nil {
		db.Close()
		return nil, err
	}

	mgr := browser.NewManager(browser.Config{
		RemoteURL:    cfg.Browser.Remote,
		Headless:     *cfg.Browser.Headless,
		Stealth:      *cfg.Browser.Stealth,
		WindowWidth:  cfg.Browser.WindowWidth,
		WindowHeight: cfg.Browser.WindowHeight,
		Logger:       log,
	})

	return &Trader{
		cfg:   cfg,
		creds: creds,
		log:   log,
		runID: runID,
		db:    db,
		sink:  sink,
		mgr:   mgr,
	}, nil
}

// RunID identifies this engine run in diagnostics.
func (t *Trader) RunID() string { return t.runID }

// Sink exposes the diagnostics sink, mainly for the viewer.
func (t *Trader) Sink() *diag.Sink { return t.sink }

// Start launches the browser, opens the platform page, and wires the
// engine components around it. It does not log in; Run does.
func (t *Trader) Start(ctx context.Context) error {
	if _, err := t.mgr.Start(ctx); err != nil {
		return err
	}

	navCtx, cancel := context.WithTimeout(ctx, t.cfg.Timeouts.Navigation)
	defer cancel()
	page, err := t.mgr.NewPage(navCtx, t.cfg.BaseURL+"/web/login")
	if err != nil {
		return err
	}

	loc := locator.New(t.log, t.sink, t.cfg.Timeouts.Element)
	t.driver = aqx.New(page, loc, t.cfg.BaseURL, t.log)
	t.sink.SetSource(t.driver)

	sess, err := session.NewManager(t.driver, t.creds, t.log)
	if err != nil {
		return err
	}
	t.sess = sess

	rec := &recoverer{page: t.driver, sess: sess, log: t.log}
	t.exec = executor.New(rec, t.sink, t.log)
	t.verifier = verify.New(t.driver, t.driver, t.sink, t.log, t.cfg.Timeouts.TablePoll)
	t.closer = bulk.New(t.driver, t.driver,
		&rowCloser{trader: t}, t.sink, t.log, t.cfg.Attempts.MaxCloseIterations)

	return nil
}

// ServeViewer runs the diagnostics HTTP viewer until ctx is cancelled.
// Call in a goroutine; no-op when the address is empty.
func (t *Trader) ServeViewer(ctx context.Context) error {
	if t.cfg.Diag.Viewer == "" {
		return nil
	}
	t.viewer = diag.NewServer(t.sink, t.log)
	return t.viewer.Serve(ctx, t.cfg.Diag.Viewer)
}

// Close tears down the browser and the diagnostics index.
func (t *Trader) Close() error {
	var firstErr error
	if t.mgr != nil {
		if err := t.mgr.Close(); err != nil {
			firstErr = err
		}
	}
	if t.db != nil {
		if err := t.db.Close(); err != nil && firstErr == nil {
			firstErr = err
		}
	}
	return firstErr
}

// pageRefresher reloads the page into a known-good state.
type pageRefresher interface {
	Refresh(ctx context.Context) error
}

// sessionKeeper reports whether the login still holds and restores it.
type sessionKeeper interface {
	Alive(ctx context.Context) bool
	Recover(ctx context.Context) error
}

// recoverer restores a usable page between retry attempts: refresh first,
// and re-authenticate when the session did not survive it.
type recoverer struct {
	page pageRefresher
	sess sessionKeeper
	log  *slog.Logger
}

func (r *recoverer) Recover(ctx context.Context) error {
	if err := r.page.Refresh(ctx); err != nil {
		r.log.Warn("trader: refresh during recovery failed", "error", err)
	}
	if r.sess.Alive(ctx) {
		return nil
	}
	r.log.Warn("trader: session lost, re-authenticating")
	if err := r.sess.Recover(ctx); err != nil {
		diag.RecordLogin("failure")
		return err
	}
	diag.RecordLogin("success")
	return nil
}

// rowCloser closes one position through the executor and confirms its
// disappearance from the table.
type rowCloser struct {
	trader *Trader
}

func (rc *rowCloser) ClosePosition(ctx context.Context, pos verify.Position) error {
	t := rc.trader
	op := executor.Operation{
		Name: "close_position_" + pos.OrderNo,
		Do: func(ctx context.Context) error {
			return t.driver.CloseRow(ctx, pos.OrderNo)
		},
		Verify: func(ctx context.Context) error {
			return t.verifier.Confirm(ctx, verify.PositionClosed(pos.OrderNo),
				t.cfg.Timeouts.FastSignal, t.cfg.Timeouts.Authoritative)
		},
	}
	res := t.exec.Execute(ctx, op, t.cfg.Attempts.FieldFill)
	diag.RecordAttempts(op.Name, res.Attempts)
	if !res.Succeeded {
		diag.RecordFailure(op.Name, res.Failure.String())
		if res.Failure == executor.KindVerification {
			diag.RecordVerification("mismatch")
		}
		return res.Err
	}
	diag.RecordVerification("confirmed")
	diag.RecordPositionClosed()
	return nil
}
