package engine

import (
	"fmt"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

// AllocationMode selects how much capital a new position is granted.
type AllocationMode int

const (
	// ModeEquities sizes every position as a fixed fraction of the cash
	// balance captured when the book was last empty, so concurrent
	// positions get equal slices of the same baseline.
	ModeEquities AllocationMode = iota
	// ModeFutures sizes each position so that the fraction holds against
	// total margin: with n positions already open, the next one receives
	// free * f / (1 - f*n).
	ModeFutures
)

// AllocationTooSmall is a soft sizing failure: the computed allocation cannot
// clear the venue's minimum notional, so the signal is consumed without
// trading.
type AllocationTooSmall struct {
	Symbol     string
	Allocation decimal.Decimal
	Minimum    decimal.Decimal
}

func (e *AllocationTooSmall) Error() string {
	return fmt.Sprintf("%s: allocation %s below minimum notional %s",
		e.Symbol, e.Allocation.StringFixed(2), e.Minimum.StringFixed(2))
}

// Allocator computes the capital slice for a new position. It is not safe
// for concurrent use; the engine serializes all calls.
type Allocator struct {
	mode        AllocationMode
	fraction    decimal.Decimal
	minNotional decimal.Decimal

	// initialCash is the equities baseline, captured when the first
	// position of a cycle opens and cleared when the book empties.
	initialCash *decimal.Decimal
}

func NewAllocator(mode AllocationMode, fraction, minNotional decimal.Decimal) *Allocator {
	return &Allocator{mode: mode, fraction: fraction, minNotional: minNotional}
}

// Allocate returns the notional granted to the next position given the
// current account state and the number of symbols already open. The result
// is truncated to cents and never rounds up.
func (a *Allocator) Allocate(account *domain.AccountSnapshot, openCount int) decimal.Decimal {
	switch a.mode {
	case ModeFutures:
		return a.allocateFutures(account.Cash, openCount)
	default:
		return a.allocateEquities(account.Cash, openCount)
	}
}

func (a *Allocator) allocateEquities(cash decimal.Decimal, openCount int) decimal.Decimal {
	if openCount == 0 || a.initialCash == nil {
		c := cash
		a.initialCash = &c
	}
	alloc := a.initialCash.Mul(a.fraction)
	if alloc.GreaterThan(cash) {
		alloc = cash
	}
	return alloc.Truncate(2)
}

func (a *Allocator) allocateFutures(free decimal.Decimal, openCount int) decimal.Decimal {
	n := decimal.NewFromInt(int64(openCount))
	denom := decimal.NewFromInt(1).Sub(a.fraction.Mul(n))
	if !denom.IsPositive() {
		return decimal.Zero
	}
	return free.Mul(a.fraction).Div(denom).Truncate(2)
}

// CheckMinimum returns an AllocationTooSmall error when the allocation
// cannot clear the configured minimum notional.
func (a *Allocator) CheckMinimum(symbol string, alloc decimal.Decimal) error {
	if a.minNotional.IsPositive() && alloc.LessThan(a.minNotional) {
		return &AllocationTooSmall{Symbol: symbol, Allocation: alloc, Minimum: a.minNotional}
	}
	return nil
}

// Reset clears the equities baseline. Called when the book empties so the
// next trading cycle captures a fresh snapshot including realized P&L.
func (a *Allocator) Reset() { a.initialCash = nil }
