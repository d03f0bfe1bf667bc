package verify

import (
	"context"
	"errors"
	"sync/atomic"
	"testing"
	"time"
)

type fakeNotifier struct {
	seen  bool
	calls int
}

func (f *fakeNotifier) WaitToast(ctx context.Context, substrings []string, timeout time.Duration) error {
	f.calls++
	if f.seen {
		return nil
	}
	return errors.New("toast never appeared")
}

type fakeTable struct {
	reads     atomic.Int32
	snapshots [][]Position // consumed in order; last one repeats
	err       error
}

func (f *fakeTable) Positions(ctx context.Context) ([]Position, error) {
	n := int(f.reads.Add(1)) - 1
	if f.err != nil {
		return nil, f.err
	}
	if n >= len(f.snapshots) {
		n = len(f.snapshots) - 1
	}
	return f.snapshots[n], nil
}

func engine(toasts Notifier, table TableReader) *Engine {
	return New(toasts, table, nil, nil, 5*time.Millisecond)
}

func TestConfirmBuyOrderInTable(t *testing.T) {
	table := &fakeTable{snapshots: [][]Position{{
		{OrderNo: "A1", Side: SideBuy, Instrument: "DASHUSD.std"},
	}}}

	err := engine(&fakeNotifier{seen: true}, table).Confirm(
		context.Background(), OrderPlaced("DASHUSD.std", SideBuy),
		10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestConfirmTrustsTableOverToast(t *testing.T) {
	// Fast signal fires, but the authoritative table never shows the row.
	table := &fakeTable{snapshots: [][]Position{{}}}

	err := engine(&fakeNotifier{seen: true}, table).Confirm(
		context.Background(), OrderPlaced("DASHUSD.std", SideBuy),
		10*time.Millisecond, 30*time.Millisecond)

	var mismatch *ErrVerificationMismatch
	if !errors.As(err, &mismatch) {
		t.Fatalf("error = %v, want ErrVerificationMismatch", err)
	}
	if !mismatch.FastSeen {
		t.Fatal("mismatch should record that the fast signal was positive")
	}
}

func TestConfirmMissedToastStillSucceedsViaTable(t *testing.T) {
	table := &fakeTable{snapshots: [][]Position{{
		{OrderNo: "B2", Side: SideSell, Instrument: "DASHUSD.std"},
	}}}

	err := engine(&fakeNotifier{seen: false}, table).Confirm(
		context.Background(), OrderPlaced("DASHUSD.std", SideSell),
		10*time.Millisecond, 50*time.Millisecond)
	if err != nil {
		t.Fatalf("Confirm: %v (missed toast must not fail a confirmed effect)", err)
	}
}

func TestConfirmPollsUntilTableCatchesUp(t *testing.T) {
	// The table updates on its own schedule: empty twice, then the row.
	table := &fakeTable{snapshots: [][]Position{
		{},
		{},
		{{OrderNo: "C3", Side: SideBuy, Instrument: "DASHUSD.std"}},
	}}

	err := engine(nil, table).Confirm(
		context.Background(), OrderPlaced("DASHUSD.std", SideBuy),
		0, 200*time.Millisecond)
	if err != nil {
		t.Fatalf("Confirm: %v", err)
	}
	if table.reads.Load() < 3 {
		t.Fatalf("table reads = %d, want at least 3", table.reads.Load())
	}
}

func TestConfirmClosureByOrderNoAbsence(t *testing.T) {
	table := &fakeTable{snapshots: [][]Position{{
		{OrderNo: "A1", Side: SideBuy, Instrument: "DASHUSD.std"},
		{OrderNo: "B2", Side: SideSell, Instrument: "DASHUSD.std"},
	}}}

	// B2 still present → closure of B2 must fail.
	err := engine(nil, table).Confirm(
		context.Background(), PositionClosed("B2"),
		0, 20*time.Millisecond)
	if err == nil {
		t.Fatal("closure must not confirm while the order is still listed")
	}

	// A1 absent → closure of A1 confirms.
	table2 := &fakeTable{snapshots: [][]Position{{
		{OrderNo: "B2", Side: SideSell, Instrument: "DASHUSD.std"},
	}}}
	if err := engine(nil, table2).Confirm(
		context.Background(), PositionClosed("A1"),
		0, 20*time.Millisecond); err != nil {
		t.Fatalf("Confirm: %v", err)
	}
}

func TestConfirmTableReadErrorsKeepPolling(t *testing.T) {
	table := &fakeTable{err: errors.New("tab navigation failed")}

	err := engine(nil, table).Confirm(
		context.Background(), OrderPlaced("DASHUSD.std", SideBuy),
		0, 25*time.Millisecond)
	if err == nil {
		t.Fatal("expected failure when the table is unreadable")
	}
	if table.reads.Load() < 2 {
		t.Fatalf("table reads = %d, want retries within the window", table.reads.Load())
	}
}

func TestConfirmContextCancellation(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	table := &fakeTable{snapshots: [][]Position{{}}}

	err := engine(nil, table).Confirm(ctx, OrderPlaced("DASHUSD.std", SideBuy),
		0, time.Minute)
	if err == nil {
		t.Fatal("cancelled context must not confirm")
	}
}

func TestOrderPlacedMatchIsExact(t *testing.T) {
	exp := OrderPlaced("DASHUSD.std", SideBuy)

	if exp.Match([]Position{{OrderNo: "A1", Side: SideSell, Instrument: "DASHUSD.std"}}) {
		t.Error("sell row must not match a buy expectation")
	}
	if exp.Match([]Position{{OrderNo: "A1", Side: SideBuy, Instrument: "BTCUSD.std"}}) {
		t.Error("other instrument must not match")
	}
	if !exp.Match([]Position{{OrderNo: "A1", Side: SideBuy, Instrument: " DASHUSD.std "}}) {
		t.Error("instrument match should tolerate rendered whitespace")
	}
}

func TestExpectationSlug(t *testing.T) {
	exp := OrderPlaced("DASHUSD.std", SideBuy)
	if got := exp.slug(); got != "buy_order_dashusd_std" {
		t.Fatalf("slug = %q", got)
	}
}
