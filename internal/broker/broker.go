// Package broker defines the Gateway interface the engine trades through
// and provides implementations for the Alpaca equities API, an HMAC-signed
// USDT-margined perpetual-futures venue, and an in-memory simulator.
package broker

import (
	"context"
	"errors"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

// ErrOrderRejected marks a venue-side rejection of a submitted order, as
// opposed to a transport failure. Gateways wrap rejections with it so the
// engine can classify them without string matching.
var ErrOrderRejected = errors.New("order rejected by venue")

// Gateway abstracts the market-data and execution capabilities the engine
// needs. All calls are blocking with short timeouts at the HTTP layer; the
// engine performs a bounded number of them per iteration.
type Gateway interface {
	// Name returns the gateway identifier (e.g. "alpaca", "futures", "sim").
	Name() string

	// CurrentPrice returns the live reference price for the symbol
	// (ask for equities, mid/mark for futures).
	CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error)

	// Account returns a fresh snapshot of cash, equity, and buying power.
	Account(ctx context.Context) (*domain.AccountSnapshot, error)

	// PositionQty returns the signed live position size for the symbol,
	// zero when flat. Negative means short.
	PositionQty(ctx context.Context, symbol string) (decimal.Decimal, error)

	// LivePositions returns every open position at the venue. Used to
	// reconcile the ledger at startup.
	LivePositions(ctx context.Context) ([]domain.LivePosition, error)

	// OpenOrderCount returns the number of outstanding unfilled orders.
	OpenOrderCount(ctx context.Context) (int, error)

	// SubmitOrder sends one order and returns the venue's acceptance.
	// Venue rejections wrap ErrOrderRejected.
	SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Confirmation, error)

	// InstrumentMeta returns the venue's sizing and pricing rules for the
	// symbol.
	InstrumentMeta(ctx context.Context, symbol string) (*domain.InstrumentMeta, error)
}

// LeverageSetter is implemented by gateways on leveraged venues where the
// per-symbol leverage must be primed once at startup.
type LeverageSetter interface {
	SetLeverage(ctx context.Context, symbol string, leverage int) error
}
