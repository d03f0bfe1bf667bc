package verify

import (
	"fmt"
	"strings"
)

// Side of an open position.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// Position is one row of the authoritative table. Derived fresh on every
// read, never mutated in place.
type Position struct {
	// OrderNo is unique per open position within a single table read.
	OrderNo    string
	Instrument string
	Side       Side
	Size       string
	Units      string
	ProfitLoss string
	// OpenedAt is the open date exactly as the table renders it.
	OpenedAt string
}

// Expectation describes the post-condition an operation should have left
// behind: the toast texts that hint at it and the table predicate that
// proves it.
type Expectation struct {
	// Description names the expectation in logs ("buy order DASHUSD.std").
	Description string
	// Toast lists substrings; any toast containing one is a positive fast
	// signal.
	Toast []string
	// Match is the authoritative predicate over a fresh table snapshot.
	Match func(positions []Position) bool
}

func (e Expectation) slug() string {
	s := strings.ToLower(e.Description)
	for _, r := range []string{" ", ":", "/", "."} {
		s = strings.ReplaceAll(s, r, "_")
	}
	return s
}

// OrderPlaced expects a row with the given instrument and side to appear.
func OrderPlaced(instrument string, side Side) Expectation {
	return Expectation{
		Description: fmt.Sprintf("%s order %s", strings.ToLower(string(side)), instrument),
		Toast:       []string{"Market Order Submitted", "Order placed"},
		Match: func(positions []Position) bool {
			for _, p := range positions {
				if p.Side == side && strings.TrimSpace(p.Instrument) == instrument {
					return true
				}
			}
			return false
		},
	}
}

// PositionClosed expects the row with the given order number to be gone.
func PositionClosed(orderNo string) Expectation {
	return Expectation{
		Description: fmt.Sprintf("closure of order %s", orderNo),
		Toast:       []string{"Order Closed", "Position Closed"},
		Match: func(positions []Position) bool {
			for _, p := range positions {
				if p.OrderNo == orderNo {
					return false
				}
			}
			return true
		},
	}
}
