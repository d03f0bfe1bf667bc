// Package bulk coordinates collective position closure with degrade-on-
// failure semantics.
//
// BulkClose tries the one-shot collective path first; if the table is
// still populated afterwards (or the collective action itself failed) it
// degrades to sequential per-item closes. The per-item loop is bounded so
// a single stuck row can never cause nontermination.
package bulk

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/hazyhaar/traderig/trader/internal/verify"
)

// TableReader produces a fresh snapshot of the authoritative positions
// table.
type TableReader interface {
	Positions(ctx context.Context) ([]verify.Position, error)
}

// Collective performs the one-shot bulk close: select-all plus a single
// confirmation.
type Collective interface {
	CloseAll(ctx context.Context) error
}

// RowCloser closes a single position and verifies the closure.
type RowCloser interface {
	ClosePosition(ctx context.Context, pos verify.Position) error
}

// Capturer records a diagnostic snapshot. Advisory only.
type Capturer interface {
	Capture(ctx context.Context, name string)
}

// DefaultMaxIterations bounds the individual-close loop.
const DefaultMaxIterations = 25

// ErrPositionsRemain is returned when the iteration bound is reached with
// rows still open.
type ErrPositionsRemain struct {
	Remaining int
}

func (e *ErrPositionsRemain) Error() string {
	return fmt.Sprintf("bulk: %d position(s) remain after close attempts", e.Remaining)
}

// Coordinator composes the collective path with the per-item fallback.
type Coordinator struct {
	table      TableReader
	collective Collective
	closer     RowCloser
	diag       Capturer
	log        *slog.Logger
	maxIter    int
}

// New creates a Coordinator. diag may be nil; maxIterations <= 0 selects
// DefaultMaxIterations.
func New(table TableReader, collective Collective, closer RowCloser, diag Capturer, log *slog.Logger, maxIterations int) *Coordinator {
	if log == nil {
		log = slog.Default()
	}
	if maxIterations <= 0 {
		maxIterations = DefaultMaxIterations
	}
	return &Coordinator{
		table:      table,
		collective: collective,
		closer:     closer,
		diag:       diag,
		log:        log,
		maxIter:    maxIterations,
	}
}

// BulkClose closes all open positions. An empty table is trivial success
// and the collective action must not run. Partial or total failure of the
// collective path degrades to CloseIndividually.
func (c *Coordinator) BulkClose(ctx context.Context) error {
	positions, err := c.table.Positions(ctx)
	if err != nil {
		return fmt.Errorf("bulk: initial table read: %w", err)
	}
	if len(positions) == 0 {
		c.log.Info("bulk: no open positions to close")
		return nil
	}

	c.log.Info("bulk: attempting collective close", "positions", len(positions))
	c.capture(ctx, "before_bulk_close")

	if err := c.collective.CloseAll(ctx); err != nil {
		c.log.Warn("bulk: collective close failed, degrading to individual closes", "error", err)
		c.capture(ctx, "bulk_close_error")
		return c.CloseIndividually(ctx)
	}

	positions, err = c.table.Positions(ctx)
	if err == nil && len(positions) == 0 {
		c.log.Info("bulk: collective close emptied the table")
		c.capture(ctx, "bulk_close_success")
		return nil
	}

	remaining := len(positions)
	c.log.Warn("bulk: collective close incomplete, degrading to individual closes",
		"remaining", remaining, "read_error", err)
	c.capture(ctx, "bulk_close_positions_remain")
	return c.CloseIndividually(ctx)
}

// CloseIndividually re-reads the table and closes the first remaining row
// until the table empties or the iteration bound is hit. A failing close
// is logged and the loop continues; the bound guarantees termination even
// if closes silently no-op.
func (c *Coordinator) CloseIndividually(ctx context.Context) error {
	for i := 0; i < c.maxIter; i++ {
		if err := ctx.Err(); err != nil {
			return fmt.Errorf("bulk: cancelled after %d iteration(s): %w", i, err)
		}

		positions, err := c.table.Positions(ctx)
		if err != nil {
			return fmt.Errorf("bulk: table read on iteration %d: %w", i+1, err)
		}
		if len(positions) == 0 {
			c.log.Info("bulk: all positions closed individually", "iterations", i)
			return nil
		}

		first := positions[0]
		c.log.Info("bulk: closing position",
			"order_no", first.OrderNo, "side", first.Side, "remaining", len(positions), "iteration", i+1)
		if err := c.closer.ClosePosition(ctx, first); err != nil {
			c.log.Error("bulk: individual close failed",
				"order_no", first.OrderNo, "iteration", i+1, "error", err)
			c.capture(ctx, fmt.Sprintf("individual_close_error_%d", i+1))
		}
	}

	positions, err := c.table.Positions(ctx)
	if err != nil {
		return fmt.Errorf("bulk: final table read: %w", err)
	}
	if len(positions) == 0 {
		return nil
	}
	c.capture(ctx, "individual_close_positions_remain")
	return &ErrPositionsRemain{Remaining: len(positions)}
}

func (c *Coordinator) capture(ctx context.Context, name string) {
	if c.diag != nil {
		c.diag.Capture(ctx, name)
	}
}
