// CLAUDE:SUMMARY Rod-backed page driver for the AQX trading UI: login, instrument search, order ticket, positions table, toasts.
// Package aqx drives the AQX web trading platform through a rod page. It
// owns every selector and raw interaction; retry, verification and
// orchestration live above it.
package aqx

import (
	"context"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/go-rod/rod"
	"github.com/go-rod/rod/lib/proto"

	"github.com/hazyhaar/traderig/trader/internal/locator"
	"github.com/hazyhaar/traderig/trader/internal/session"
	"github.com/hazyhaar/traderig/trader/internal/verify"
)

// DefaultBaseURL is the platform origin.
const DefaultBaseURL = "https://aqxtrader.aquariux.com"

// OrderParams carries the ticket fields for one market order. Values are
// strings because the UI inputs are typed into, not computed. Empty
// fields are left untouched; a points value wins over a price value for
// the same parameter.
type OrderParams struct {
	Size             string
	StopLossPoints   string
	StopLossPrice    string
	TakeProfitPoints string
	TakeProfitPrice  string
}

// Driver wraps one rod page logged into the platform.
type Driver struct {
	page    *rod.Page
	loc     *locator.Locator
	baseURL string
	log     *slog.Logger

	mu         sync.RWMutex
	instrument string
}

// New creates a Driver over an already-open page. baseURL empty selects
// DefaultBaseURL.
func New(page *rod.Page, loc *locator.Locator, baseURL string, log *slog.Logger) *Driver {
	if baseURL == "" {
		baseURL = DefaultBaseURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &Driver{page: page, loc: loc, baseURL: baseURL, log: log}
}

// ActiveInstrument returns the instrument the driver last selected
// successfully, or empty before any selection.
func (d *Driver) ActiveInstrument() string {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return d.instrument
}

// Login signs into the demo account and waits for the dashboard
// landmark. Safe to call again for session recovery: it re-navigates to
// the login page first.
func (d *Driver) Login(ctx context.Context, creds session.Credentials) error {
	loginURL := d.baseURL + "/web/login"
	if err := d.page.Context(ctx).Navigate(loginURL); err != nil {
		return fmt.Errorf("aqx: navigate login: %w", err)
	}
	if err := d.page.Context(ctx).WaitLoad(); err != nil {
		d.log.Warn("aqx: login page load wait", "error", err)
	}

	tab, err := d.loc.Resolve(ctx, d.page, demoTab)
	if err != nil {
		return err
	}
	if err := tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click demo tab: %w", err)
	}
	d.log.Info("aqx: demo account tab selected")

	if err := d.fillField(ctx, loginUser, creds.AccountID); err != nil {
		return err
	}
	if err := d.fillField(ctx, loginPassword, creds.Password); err != nil {
		return err
	}
	d.log.Info("aqx: credentials entered", "account_id", creds.AccountID)

	submit, err := d.loc.Resolve(ctx, d.page, loginSubmit)
	if err != nil {
		return err
	}
	if err := submit.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click sign in: %w", err)
	}

	if _, err := d.loc.Resolve(ctx, d.page, accountBalance); err != nil {
		return fmt.Errorf("aqx: dashboard landmark: %w", err)
	}
	d.log.Info("aqx: login successful")
	return nil
}

// Alive probes for the dashboard landmark with a short budget.
func (d *Driver) Alive(ctx context.Context) bool {
	probe := accountBalance
	probe.Timeout = 3 * time.Second
	_, err := d.loc.Resolve(ctx, d.page, probe)
	return err == nil
}

// Refresh reloads the page and waits for the platform shell to come back.
func (d *Driver) Refresh(ctx context.Context) error {
	if err := d.page.Context(ctx).Reload(); err != nil {
		return fmt.Errorf("aqx: reload: %w", err)
	}
	if err := d.page.Context(ctx).WaitLoad(); err != nil {
		d.log.Warn("aqx: reload load wait", "error", err)
	}
	search := symbolSearch
	search.Timeout = 20 * time.Second
	search.Mode = locator.ModePresent
	if _, err := d.loc.Resolve(ctx, d.page, search); err != nil {
		return fmt.Errorf("aqx: shell after refresh: %w", err)
	}
	d.log.Info("aqx: page refreshed")
	return nil
}

// SelectInstrument makes code the active instrument: short-circuits when
// the symbol overview already shows it, otherwise searches, clicks the
// dropdown entry, and waits for the overview to flip. One attempt only;
// the caller owns retries.
func (d *Driver) SelectInstrument(ctx context.Context, code string) error {
	// Quick check against the overview before touching the search box.
	probe := symbolOverview
	probe.Timeout = 3 * time.Second
	if el, err := d.loc.Resolve(ctx, d.page, probe); err == nil {
		if text, terr := el.Text(); terr == nil && strings.Contains(text, code) {
			d.log.Info("aqx: instrument already selected", "instrument", code, "overview", text)
			d.setInstrument(code)
			return nil
		}
	}

	if err := d.fillField(ctx, symbolSearch, code); err != nil {
		return err
	}
	d.log.Info("aqx: instrument search entered", "instrument", code)

	if _, err := d.loc.Resolve(ctx, d.page, searchResultHeader); err != nil {
		return err
	}

	option, err := d.loc.Resolve(ctx, d.page, instrumentOption(code))
	if err != nil {
		return err
	}
	if err := option.Click(proto.InputMouseButtonLeft, 1); err != nil {
		// The dropdown can sit under an overlay for a frame; a DOM-level
		// click bypasses the hit test.
		d.log.Warn("aqx: option click intercepted, using DOM click", "instrument", code, "error", err)
		if _, jerr := option.Eval(`() => this.click()`); jerr != nil {
			return fmt.Errorf("aqx: click instrument option: %w", err)
		}
	}
	d.log.Info("aqx: instrument option clicked", "instrument", code)

	if err := d.waitOverviewShows(ctx, code, 20*time.Second); err != nil {
		return err
	}
	d.setInstrument(code)
	d.log.Info("aqx: instrument selection verified", "instrument", code)
	return nil
}

// waitOverviewShows polls the symbol overview until it contains code.
func (d *Driver) waitOverviewShows(ctx context.Context, code string, budget time.Duration) error {
	deadline := time.Now().Add(budget)
	for {
		probe := symbolOverview
		probe.Timeout = 3 * time.Second
		if el, err := d.loc.Resolve(ctx, d.page, probe); err == nil {
			if text, terr := el.Text(); terr == nil && strings.Contains(text, code) {
				return nil
			}
		}
		if time.Now().After(deadline) {
			return &locator.ErrElementTimeout{Target: locator.Target{
				Name:     "symbol_overview_shows_" + code,
				Selector: symbolOverview.Selector,
				Mode:     locator.ModeVisible,
				Timeout:  budget,
			}}
		}
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(500 * time.Millisecond):
		}
	}
}

// PlaceOrder drives the ticket for one market order: pick the side, fill
// size and protective parameters, submit, confirm the dialog. The fill
// steps clear the inputs first so a repeated attempt starts clean.
func (d *Driver) PlaceOrder(ctx context.Context, side verify.Side, params OrderParams) error {
	sideName := strings.ToLower(string(side))

	btn, err := d.loc.Resolve(ctx, d.page, sideButton(sideName))
	if err != nil {
		return err
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: select %s side: %w", sideName, err)
	}
	d.log.Info("aqx: order side selected", "side", sideName)

	if params.Size != "" {
		if err := d.fillField(ctx, volumeInput, params.Size); err != nil {
			return err
		}
	}
	switch {
	case params.StopLossPoints != "":
		if err := d.fillField(ctx, stopLossPoints, params.StopLossPoints); err != nil {
			return err
		}
	case params.StopLossPrice != "":
		if err := d.fillField(ctx, stopLossPrice, params.StopLossPrice); err != nil {
			return err
		}
	}
	switch {
	case params.TakeProfitPoints != "":
		if err := d.fillField(ctx, takeProfitPoints, params.TakeProfitPoints); err != nil {
			return err
		}
	case params.TakeProfitPrice != "":
		if err := d.fillField(ctx, takeProfitPrice, params.TakeProfitPrice); err != nil {
			return err
		}
	}

	place, err := d.loc.Resolve(ctx, d.page, placeOrder)
	if err != nil {
		return err
	}
	if err := place.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click place order: %w", err)
	}
	d.log.Info("aqx: place order clicked", "side", sideName, "size", params.Size)

	return d.confirmDialog(ctx)
}

// WaitToast blocks until any element containing one of the substrings is
// visible, or the timeout elapses.
func (d *Driver) WaitToast(ctx context.Context, substrings []string, timeout time.Duration) error {
	_, err := d.loc.Resolve(ctx, d.page, toastTarget(substrings, timeout))
	return err
}

// OpenPositionsTab selects the Open Positions tab and waits for either
// the table header or the empty-state message.
func (d *Driver) OpenPositionsTab(ctx context.Context) error {
	tab, err := d.loc.Resolve(ctx, d.page, positionsTab)
	if err != nil {
		return err
	}
	if err := tab.ScrollIntoView(); err != nil {
		d.log.Warn("aqx: scroll to positions tab", "error", err)
	}

	selected := false
	if res, err := tab.Eval(`() => this.className`); err == nil {
		selected = strings.Contains(strings.ToLower(res.Value.Str()), "selected")
	}
	if !selected {
		if err := tab.Click(proto.InputMouseButtonLeft, 1); err != nil {
			return fmt.Errorf("aqx: click positions tab: %w", err)
		}
		d.log.Info("aqx: open positions tab clicked")
	}

	if _, err := d.loc.Resolve(ctx, d.page, tableOrEmpty); err != nil {
		return err
	}
	return nil
}

// Positions reads the authoritative open positions table. Each call
// navigates to the tab and parses a fresh snapshot. Rows are stamped with
// the active instrument; the table itself renders no instrument column.
func (d *Driver) Positions(ctx context.Context) ([]verify.Position, error) {
	if err := d.OpenPositionsTab(ctx); err != nil {
		return nil, err
	}

	// Non-waiting existence check; reads against a populated table happen
	// on every verification poll and must not log or screenshot.
	if msgs, err := d.page.Context(ctx).ElementsX(noPositionsXPath); err == nil && len(msgs) > 0 {
		d.log.Info("aqx: no open positions")
		return nil, nil
	}

	rows, err := d.page.Context(ctx).ElementsX(openTableRowsXPath)
	if err != nil {
		return nil, fmt.Errorf("aqx: read table rows: %w", err)
	}

	rawRows := make([][]string, 0, len(rows))
	for i, row := range rows {
		// The platform renders some cells (the leading order-no cell in
		// particular) as th, so td alone would drop rows.
		cells, err := row.ElementsX(rowCellsXPath)
		if err != nil {
			d.log.Warn("aqx: row cells", "row", i+1, "error", err)
			continue
		}
		texts := make([]string, 0, len(cells))
		bad := false
		for j, cell := range cells {
			t, err := cell.Text()
			if err != nil {
				d.log.Warn("aqx: cell text", "row", i+1, "column", j, "error", err)
				bad = true
				break
			}
			texts = append(texts, t)
		}
		if bad {
			continue
		}
		rawRows = append(rawRows, texts)
	}

	out := parsePositions(rawRows, d.ActiveInstrument(), d.log)
	d.log.Info("aqx: positions parsed", "count", len(out))
	return out, nil
}

// parsePositions turns raw row cell texts into positions. Rows with
// fewer than the 6 expected columns (open date, order no, type, P/L,
// size, units) are skipped, as are repeated order numbers; every row is
// stamped with the active instrument.
func parsePositions(rows [][]string, instrument string, log *slog.Logger) []verify.Position {
	if log == nil {
		log = slog.Default()
	}
	seen := make(map[string]bool, len(rows))
	out := make([]verify.Position, 0, len(rows))
	for i, texts := range rows {
		if len(texts) < 6 {
			log.Warn("aqx: short row skipped", "row", i+1, "columns", len(texts))
			continue
		}
		pos := verify.Position{
			OpenedAt:   strings.TrimSpace(texts[0]),
			OrderNo:    strings.TrimSpace(texts[1]),
			Side:       verify.Side(strings.ToUpper(strings.TrimSpace(texts[2]))),
			ProfitLoss: strings.TrimSpace(texts[3]),
			Size:       strings.TrimSpace(texts[4]),
			Units:      strings.TrimSpace(texts[5]),
			Instrument: instrument,
		}
		if seen[pos.OrderNo] {
			log.Warn("aqx: duplicate order number in table read", "order_no", pos.OrderNo)
			continue
		}
		seen[pos.OrderNo] = true
		out = append(out, pos)
	}
	return out
}

// CloseRow clicks Close on the row carrying orderNo and confirms the
// dialog. Verification of the disappearance is the caller's job.
func (d *Driver) CloseRow(ctx context.Context, orderNo string) error {
	if err := d.OpenPositionsTab(ctx); err != nil {
		return err
	}

	btn, err := d.loc.Resolve(ctx, d.page, closeButtonForOrder(orderNo))
	if err != nil {
		return err
	}
	if err := btn.ScrollIntoView(); err != nil {
		d.log.Warn("aqx: scroll to close button", "order_no", orderNo, "error", err)
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click close for %s: %w", orderNo, err)
	}
	d.log.Info("aqx: close clicked", "order_no", orderNo)

	return d.confirmDialog(ctx)
}

// CloseAll performs the collective close: select-all checkbox, bulk close
// button, confirmation dialog. The caller re-reads the table afterwards.
func (d *Driver) CloseAll(ctx context.Context) error {
	if err := d.OpenPositionsTab(ctx); err != nil {
		return err
	}

	box, err := d.loc.Resolve(ctx, d.page, selectAllCheckbox)
	if err != nil {
		return err
	}
	checked := false
	if res, err := box.Eval(`() => this.checked`); err == nil {
		checked = res.Value.Bool()
	}
	if !checked {
		// The checkbox sits under a styled label; a DOM click is the
		// reliable way to toggle it.
		if _, err := box.Eval(`() => this.click()`); err != nil {
			return fmt.Errorf("aqx: select all: %w", err)
		}
	}
	d.log.Info("aqx: select all processed")

	bulk, err := d.loc.Resolve(ctx, d.page, bulkCloseButton)
	if err != nil {
		return err
	}
	if err := bulk.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click bulk close: %w", err)
	}
	d.log.Info("aqx: bulk close clicked")

	return d.confirmDialog(ctx)
}

// Screenshot captures the current viewport as PNG.
func (d *Driver) Screenshot(ctx context.Context) ([]byte, error) {
	return d.page.Context(ctx).Screenshot(false, nil)
}

func (d *Driver) confirmDialog(ctx context.Context) error {
	btn, err := d.loc.Resolve(ctx, d.page, confirmButton)
	if err != nil {
		return err
	}
	if err := btn.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: click confirm: %w", err)
	}
	d.log.Info("aqx: dialog confirmed")
	return nil
}

// fillField resolves the input, clears it, and types value. Clearing
// first keeps repeated attempts from concatenating into stale content.
func (d *Driver) fillField(ctx context.Context, t locator.Target, value string) error {
	el, err := d.loc.Resolve(ctx, d.page, t)
	if err != nil {
		return err
	}
	if err := el.Click(proto.InputMouseButtonLeft, 1); err != nil {
		return fmt.Errorf("aqx: focus %s: %w", t.Name, err)
	}
	if err := el.SelectAllText(); err != nil {
		return fmt.Errorf("aqx: select text in %s: %w", t.Name, err)
	}
	if err := el.Input(value); err != nil {
		return fmt.Errorf("aqx: type into %s: %w", t.Name, err)
	}
	return nil
}

func (d *Driver) setInstrument(code string) {
	d.mu.Lock()
	d.instrument = code
	d.mu.Unlock()
}
