// Package domain defines the core types shared across the trading system:
// signals, lots, account snapshots, order plans, and instrument metadata.
package domain

import (
	"time"

	"github.com/shopspring/decimal"
)

// Action is the normalized intent extracted from an inbound signal message.
type Action string

const (
	ActionBuy   Action = "BUY"
	ActionSell  Action = "SELL"
	ActionShort Action = "SHORT"
	ActionCover Action = "COVER"
)

// IsOpening reports whether the action opens a new position.
func (a Action) IsOpening() bool {
	return a == ActionBuy || a == ActionShort
}

// IsClosing reports whether the action closes an existing position.
func (a Action) IsClosing() bool {
	return a == ActionSell || a == ActionCover
}

// IsShortSide reports whether the action belongs to the short side of the
// book (gated by the short-enabled toggle).
func (a Action) IsShortSide() bool {
	return a == ActionShort || a == ActionCover
}

// Side is the direction of a broker order.
type Side string

const (
	SideBuy  Side = "buy"
	SideSell Side = "sell"
)

// Opposite returns the closing side for a position opened on s.
func (s Side) Opposite() Side {
	if s == SideBuy {
		return SideSell
	}
	return SideBuy
}

// OrderKind selects how an order is priced and triggered at the venue.
type OrderKind string

const (
	OrderKindMarket     OrderKind = "market"
	OrderKindLimit      OrderKind = "limit"
	OrderKindTakeProfit OrderKind = "take_profit"
	OrderKindStopLoss   OrderKind = "stop_loss"
)

// Signal is one normalized trade instruction. ID is the upstream message
// identifier and is owned by the signal source, which deduplicates on it.
type Signal struct {
	Action Action
	Symbol string
	ID     string
}

// Lot is one admitted opening trade for a symbol. Immutable once created;
// it is removed from the ledger only by a matching close.
type Lot struct {
	Qty        decimal.Decimal
	EntryPrice decimal.Decimal
	Short      bool
	OpenedAt   time.Time
}

// RealizedPnL computes the profit of closing this lot at exitPrice,
// sign-adjusted for short lots.
func (l Lot) RealizedPnL(exitPrice decimal.Decimal) decimal.Decimal {
	if l.Short {
		return l.EntryPrice.Sub(exitPrice).Mul(l.Qty)
	}
	return exitPrice.Sub(l.EntryPrice).Mul(l.Qty)
}

// AccountSnapshot is the broker account state fetched fresh each decision
// cycle. It must never be cached across iterations: fills elsewhere change
// the available funds between polls.
type AccountSnapshot struct {
	Cash        decimal.Decimal
	Equity      decimal.Decimal
	BuyingPower decimal.Decimal
}

// InstrumentMeta carries the venue's sizing and pricing rules for a symbol.
type InstrumentMeta struct {
	Symbol   string
	QtyStep  decimal.Decimal // minimum quantity increment; order sizes are floored to it
	TickSize decimal.Decimal // minimum price increment
	MinQty   decimal.Decimal // orders below this are rejected locally

	// RequiresLimit marks IOC-only venues where "market" entries must be
	// expressed as aggressively priced limit orders.
	RequiresLimit bool
}

// OrderRequest describes a single order for the execution gateway.
type OrderRequest struct {
	Symbol        string
	Side          Side
	Qty           decimal.Decimal
	Kind          OrderKind
	LimitPrice    *decimal.Decimal // required for OrderKindLimit
	TriggerPrice  *decimal.Decimal // required for trigger kinds
	ReduceOnly    bool
	ClientOrderID string
}

// Confirmation is the gateway's acknowledgement that an order was accepted.
type Confirmation struct {
	OrderID     string
	Symbol      string
	Side        Side
	Qty         decimal.Decimal
	Price       decimal.Decimal // reference price at submission time
	SubmittedAt time.Time
}

// LivePosition is one broker-reported open position, used to reconcile the
// ledger at startup. Qty is signed: negative for shorts.
type LivePosition struct {
	Symbol     string
	Qty        decimal.Decimal
	EntryPrice decimal.Decimal
}

// OrderPlan is an execution-ready description of an admitted opening
// decision. The execution engine derives the order quantity from Allocation,
// Leverage, and the live price. TakeProfitPct/StopLossPct are fixed offsets
// from the entry reference price, set only for bracketed (leveraged) trades.
type OrderPlan struct {
	Symbol        string
	Side          Side
	Allocation    decimal.Decimal // margin committed, in quote currency
	Leverage      int64
	TakeProfitPct decimal.Decimal // zero when not bracketed
	StopLossPct   decimal.Decimal // zero when not bracketed
}

// Bracketed reports whether the plan carries take-profit/stop-loss exits.
func (p OrderPlan) Bracketed() bool {
	return p.TakeProfitPct.IsPositive() || p.StopLossPct.IsPositive()
}
