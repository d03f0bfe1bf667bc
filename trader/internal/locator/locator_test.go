package locator

import (
	"context"
	"errors"
	"strings"
	"testing"
	"time"
)

func TestModeString(t *testing.T) {
	tests := []struct {
		mode Mode
		want string
	}{
		{ModePresent, "present"},
		{ModeVisible, "visible"},
		{ModeClickable, "clickable"},
	}
	for _, tt := range tests {
		if got := tt.mode.String(); got != tt.want {
			t.Errorf("Mode(%d).String() = %q, want %q", tt.mode, got, tt.want)
		}
	}
}

func TestTargetTimeoutDefault(t *testing.T) {
	tgt := Target{Name: "search input", Selector: "input"}
	if tgt.timeout() != DefaultTimeout {
		t.Fatalf("timeout = %v, want default %v", tgt.timeout(), DefaultTimeout)
	}

	tgt.Timeout = 3 * time.Second
	if tgt.timeout() != 3*time.Second {
		t.Fatalf("timeout = %v, want 3s", tgt.timeout())
	}
}

func TestErrElementTimeoutMessage(t *testing.T) {
	err := &ErrElementTimeout{Target: Target{
		Name:     "confirm button",
		Selector: "button[data-testid='confirm']",
		Mode:     ModeClickable,
		Timeout:  10 * time.Second,
	}}
	msg := err.Error()
	for _, want := range []string{"confirm button", "clickable", "10s"} {
		if !strings.Contains(msg, want) {
			t.Errorf("error message %q missing %q", msg, want)
		}
	}
}

func TestErrElementLookupUnwrap(t *testing.T) {
	cause := errors.New("page crashed")
	err := &ErrElementLookup{Target: Target{Name: "volume field"}, Cause: cause}
	if !errors.Is(err, cause) {
		t.Fatal("ErrElementLookup should unwrap to its cause")
	}
	if !strings.Contains(err.Error(), "volume field") {
		t.Errorf("error message %q missing target name", err.Error())
	}
}

func TestDeadlineExceededClassification(t *testing.T) {
	ctx := context.Background()

	if !deadlineExceeded(ctx, context.DeadlineExceeded) {
		t.Error("bare context.DeadlineExceeded should classify as deadline")
	}
	if !deadlineExceeded(ctx, errors.New("rod: context deadline exceeded while waiting")) {
		t.Error("wrapped deadline text should classify as deadline")
	}
	if deadlineExceeded(ctx, errors.New("no such element")) {
		t.Error("lookup failure should not classify as deadline")
	}

	// A dead outer context means the caller cancelled, not the element budget.
	cancelled, cancel := context.WithCancel(context.Background())
	cancel()
	if deadlineExceeded(cancelled, errors.New("timeout")) {
		t.Error("cancelled outer context must not classify as element timeout")
	}
}
