// Package ledger tracks per-symbol open lots in FIFO order. It is the
// engine's source of truth for whether a position can be closed and how
// much of it one close consumes.
package ledger

import (
	"mirrortrade/internal/domain"
)

// Ledger maps each symbol to its open lots in insertion (FIFO) order.
//
// Invariants:
//   - A symbol with no lots is absent from the ledger; presence implies an
//     open position.
//   - Lots are consumed oldest-first.
//
// The ledger is owned by a single engine loop and is not safe for
// concurrent use.
type Ledger struct {
	lots map[string][]domain.Lot
}

// New returns an empty Ledger.
func New() *Ledger {
	return &Ledger{lots: make(map[string][]domain.Lot)}
}

// Open appends a lot for the symbol.
func (l *Ledger) Open(symbol string, lot domain.Lot) {
	l.lots[symbol] = append(l.lots[symbol], lot)
}

// Has reports whether the symbol has at least one open lot.
func (l *Ledger) Has(symbol string) bool {
	return len(l.lots[symbol]) > 0
}

// Oldest returns the earliest-inserted surviving lot for the symbol without
// removing it.
func (l *Ledger) Oldest(symbol string) (domain.Lot, bool) {
	lots := l.lots[symbol]
	if len(lots) == 0 {
		return domain.Lot{}, false
	}
	return lots[0], true
}

// PopOldest removes and returns the earliest-inserted lot for the symbol.
// When the last lot of a symbol is popped, the symbol disappears from the
// ledger entirely.
func (l *Ledger) PopOldest(symbol string) (domain.Lot, bool) {
	lots := l.lots[symbol]
	if len(lots) == 0 {
		return domain.Lot{}, false
	}
	lot := lots[0]
	if len(lots) == 1 {
		delete(l.lots, symbol)
	} else {
		l.lots[symbol] = lots[1:]
	}
	return lot, true
}

// PushFront re-inserts a lot at the head of the symbol's sequence. It undoes
// a PopOldest when the close order that consumed the lot failed, restoring
// the exact pre-attempt state.
func (l *Ledger) PushFront(symbol string, lot domain.Lot) {
	l.lots[symbol] = append([]domain.Lot{lot}, l.lots[symbol]...)
}

// SymbolCount returns the number of symbols with open lots.
func (l *Ledger) SymbolCount() int {
	return len(l.lots)
}

// Empty reports whether no symbol has an open lot.
func (l *Ledger) Empty() bool {
	return len(l.lots) == 0
}

// Symbols returns the symbols with open lots, in unspecified order.
func (l *Ledger) Symbols() []string {
	syms := make([]string, 0, len(l.lots))
	for sym := range l.lots {
		syms = append(syms, sym)
	}
	return syms
}

// Lots returns a copy of the symbol's lot sequence, oldest first.
func (l *Ledger) Lots(symbol string) []domain.Lot {
	lots := l.lots[symbol]
	out := make([]domain.Lot, len(lots))
	copy(out, lots)
	return out
}
