package engine

import (
	"context"
	"fmt"

	"mirrortrade/internal/domain"
)

// admit decides whether a signal may proceed to allocation and execution.
// A non-nil Denial is terminal for the signal; an error means the gateway
// could not be consulted and the signal should be surfaced as a fault.
//
// Check order matters: pending orders block everything, then the short
// toggle, then position preconditions.
func (e *Engine) admit(ctx context.Context, sig *domain.Signal) (*Denial, error) {
	pending, err := e.gw.OpenOrderCount(ctx)
	if err != nil {
		return nil, fmt.Errorf("open order count: %w", err)
	}
	if pending > 0 {
		return &Denial{Reason: DenyPendingOrder, Symbol: sig.Symbol}, nil
	}

	if sig.Action.IsShortSide() && !e.policy.ShortEnabled {
		return &Denial{Reason: DenyShortingDisabled, Symbol: sig.Symbol}, nil
	}

	if sig.Action.IsClosing() {
		if !e.book.Has(sig.Symbol) {
			return &Denial{Reason: DenyNoPosition, Symbol: sig.Symbol}, nil
		}
		live, err := e.gw.PositionQty(ctx, sig.Symbol)
		if err != nil {
			return nil, fmt.Errorf("position qty for %s: %w", sig.Symbol, err)
		}
		if live.IsZero() {
			return &Denial{Reason: DenyNoPosition, Symbol: sig.Symbol}, nil
		}
		return nil, nil
	}

	// Opening a symbol we already hold adds a lot to the ledger and does
	// not count against the concurrency cap.
	if !e.book.Has(sig.Symbol) && e.book.SymbolCount() >= e.policy.MaxConcurrentSymbols {
		return &Denial{Reason: DenyMaxSymbols, Symbol: sig.Symbol}, nil
	}
	return nil, nil
}
