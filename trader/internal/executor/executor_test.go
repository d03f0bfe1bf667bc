package executor

import (
	"context"
	"errors"
	"testing"

	"github.com/hazyhaar/traderig/trader/internal/locator"
)

type fakeRecoverer struct {
	calls int
	err   error
}

func (f *fakeRecoverer) Recover(ctx context.Context) error {
	f.calls++
	return f.err
}

type fakeCapturer struct {
	names []string
}

func (f *fakeCapturer) Capture(ctx context.Context, name string) {
	f.names = append(f.names, name)
}

func transientErr() error {
	return &locator.ErrElementTimeout{Target: locator.Target{Name: "search input"}}
}

func TestExecuteSucceedsFirstAttempt(t *testing.T) {
	x := New(nil, nil, nil)

	res := x.Execute(context.Background(), Operation{
		Name: "fill_volume",
		Do:   func(ctx context.Context) error { return nil },
	}, 1)

	if !res.Succeeded || res.Attempts != 1 || res.Failure != KindNone {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteRetriesTransientThenSucceeds(t *testing.T) {
	rec := &fakeRecoverer{}
	x := New(rec, &fakeCapturer{}, nil)

	fails := 2
	res := x.Execute(context.Background(), Operation{
		Name: "select_instrument",
		Do: func(ctx context.Context) error {
			if fails > 0 {
				fails--
				return transientErr()
			}
			return nil
		},
	}, 3)

	if !res.Succeeded {
		t.Fatalf("expected success, got %+v", res)
	}
	if res.Attempts != 3 {
		t.Fatalf("attempts = %d, want 3", res.Attempts)
	}
	if rec.calls != 2 {
		t.Fatalf("recoverer calls = %d, want 2", rec.calls)
	}
}

func TestExecuteNeverExceedsBudget(t *testing.T) {
	calls := 0
	x := New(&fakeRecoverer{}, nil, nil)

	res := x.Execute(context.Background(), Operation{
		Name: "select_instrument",
		Do: func(ctx context.Context) error {
			calls++
			return transientErr()
		},
	}, 3)

	if calls != 3 {
		t.Fatalf("Do called %d times, want exactly 3", calls)
	}
	if res.Succeeded || res.Failure != KindRetryExhausted {
		t.Fatalf("unexpected result: %+v", res)
	}
	if res.Err == nil {
		t.Fatal("exhausted result should carry the last error")
	}
}

func TestExecuteNoRecoveryAfterLastAttempt(t *testing.T) {
	rec := &fakeRecoverer{}
	x := New(rec, nil, nil)

	x.Execute(context.Background(), Operation{
		Name: "select_instrument",
		Do:   func(ctx context.Context) error { return transientErr() },
	}, 3)

	// Recovery runs between attempts, never after the final one.
	if rec.calls != 2 {
		t.Fatalf("recoverer calls = %d, want 2", rec.calls)
	}
}

func TestExecuteFatalAbortsImmediately(t *testing.T) {
	rec := &fakeRecoverer{}
	x := New(rec, nil, nil)

	calls := 0
	res := x.Execute(context.Background(), Operation{
		Name: "place_order",
		Do: func(ctx context.Context) error {
			calls++
			return errors.New("order form rejected the volume")
		},
	}, 3)

	if calls != 1 {
		t.Fatalf("Do called %d times, want 1 (fatal must not retry)", calls)
	}
	if res.Failure != KindFatal {
		t.Fatalf("failure = %v, want fatal", res.Failure)
	}
	if rec.calls != 0 {
		t.Fatal("fatal failure must not trigger recovery")
	}
}

func TestExecuteVerificationFailureIsFinal(t *testing.T) {
	x := New(&fakeRecoverer{}, &fakeCapturer{}, nil)

	verr := errors.New("table never showed the row")
	calls := 0
	res := x.Execute(context.Background(), Operation{
		Name:   "place_order",
		Do:     func(ctx context.Context) error { calls++; return nil },
		Verify: func(ctx context.Context) error { return verr },
	}, 3)

	if calls != 1 {
		t.Fatalf("Do called %d times, want 1 (verification verdict is final)", calls)
	}
	if res.Succeeded || res.Failure != KindVerification || !errors.Is(res.Err, verr) {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteSuccessRequiresVerification(t *testing.T) {
	verified := false
	x := New(nil, nil, nil)

	res := x.Execute(context.Background(), Operation{
		Name:   "place_order",
		Do:     func(ctx context.Context) error { return nil },
		Verify: func(ctx context.Context) error { verified = true; return nil },
	}, 1)

	if !verified {
		t.Fatal("Verify was not consulted")
	}
	if !res.Succeeded {
		t.Fatalf("unexpected result: %+v", res)
	}
}

func TestExecuteCancelledContextIsFatal(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	x := New(&fakeRecoverer{}, nil, nil)

	res := x.Execute(ctx, Operation{
		Name: "select_instrument",
		Do: func(ctx context.Context) error {
			cancel()
			return transientErr()
		},
	}, 3)

	if res.Failure != KindFatal {
		t.Fatalf("failure = %v, want fatal on cancelled context", res.Failure)
	}
	if res.Attempts != 1 {
		t.Fatalf("attempts = %d, want 1", res.Attempts)
	}
}

func TestExecuteRecoveryFailureStillRetries(t *testing.T) {
	rec := &fakeRecoverer{err: errors.New("re-login refused")}
	x := New(rec, nil, nil)

	fails := 1
	res := x.Execute(context.Background(), Operation{
		Name: "select_instrument",
		Do: func(ctx context.Context) error {
			if fails > 0 {
				fails--
				return transientErr()
			}
			return nil
		},
	}, 3)

	if !res.Succeeded {
		t.Fatalf("expected success despite failed recovery, got %+v", res)
	}
	if rec.calls != 1 {
		t.Fatalf("recoverer calls = %d, want 1", rec.calls)
	}
}

func TestExecuteCapturesSnapshotPerTransientFailure(t *testing.T) {
	sink := &fakeCapturer{}
	x := New(nil, sink, nil)

	x.Execute(context.Background(), Operation{
		Name: "select_instrument",
		Do:   func(ctx context.Context) error { return transientErr() },
	}, 2)

	// One snapshot per failed attempt plus one for exhaustion.
	if len(sink.names) != 3 {
		t.Fatalf("captures = %v, want 3 entries", sink.names)
	}
}

func TestTransientClassification(t *testing.T) {
	tests := []struct {
		name string
		err  error
		want bool
	}{
		{"nil", nil, false},
		{"element timeout", transientErr(), true},
		{"wrapped element timeout", wrap(transientErr()), true},
		{"context deadline", context.DeadlineExceeded, true},
		{"stale node", errors.New("Node with given id does not belong to the document"), true},
		{"stale context", errors.New("Cannot find context with specified id"), true},
		{"detached", errors.New("rod: element was detached"), true},
		{"intercepted", errors.New("element is not interactable"), true},
		{"covered", errors.New("element covered by <div class=\"modal\">"), true},
		{"marked", MarkTransient(errors.New("confirm dialog never appeared")), true},
		{"plain failure", errors.New("login rejected"), false},
		{"lookup error", &locator.ErrElementLookup{Cause: errors.New("bad selector")}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := Transient(tt.err); got != tt.want {
				t.Errorf("Transient(%v) = %v, want %v", tt.err, got, tt.want)
			}
		})
	}
}

func wrap(err error) error {
	return &wrapped{err}
}

type wrapped struct{ err error }

func (w *wrapped) Error() string { return "attempt: " + w.err.Error() }
func (w *wrapped) Unwrap() error { return w.err }

func TestFailureKindString(t *testing.T) {
	tests := []struct {
		kind FailureKind
		want string
	}{
		{KindNone, "none"},
		{KindTransient, "transient"},
		{KindFatal, "fatal"},
		{KindRetryExhausted, "retry_exhausted"},
		{KindVerification, "verification"},
	}
	for _, tt := range tests {
		if got := tt.kind.String(); got != tt.want {
			t.Errorf("FailureKind(%d) = %q, want %q", tt.kind, got, tt.want)
		}
	}
}

func TestMarkTransientNil(t *testing.T) {
	if MarkTransient(nil) != nil {
		t.Fatal("MarkTransient(nil) should stay nil")
	}
}

func TestExecuteZeroBudgetRunsOnce(t *testing.T) {
	calls := 0
	x := New(nil, nil, nil)
	x.Execute(context.Background(), Operation{
		Name: "fill_volume",
		Do:   func(ctx context.Context) error { calls++; return nil },
	}, 0)
	if calls != 1 {
		t.Fatalf("Do called %d times, want 1", calls)
	}
}

// Idempotence discipline: an operation that resets its owned state before
// typing leaves only the last value after repeated attempts.
func TestClearBeforeTypeDiscipline(t *testing.T) {
	field := "0.05" // stale remote state from an earlier partial attempt
	fillOp := func(value string) Operation {
		return Operation{
			Name: "fill_volume",
			Do: func(ctx context.Context) error {
				field = "" // clear-before-type
				field = value
				return nil
			},
		}
	}

	x := New(nil, nil, nil)
	x.Execute(context.Background(), fillOp("0.01"), 1)
	x.Execute(context.Background(), fillOp("0.02"), 1)

	if field != "0.02" {
		t.Fatalf("field = %q, want only the second value", field)
	}
}
