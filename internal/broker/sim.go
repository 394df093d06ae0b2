package broker

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

// Compile-time interface checks.
var _ Gateway = (*SimGateway)(nil)
var _ LeverageSetter = (*SimGateway)(nil)

// SimGateway implements Gateway in memory for paper trading and tests. It
// tracks positions and submitted orders without external calls and can be
// told to reject specific order kinds.
type SimGateway struct {
	mu sync.Mutex

	Prices    map[string]decimal.Decimal
	Snapshot  domain.AccountSnapshot
	Positions map[string]domain.LivePosition
	Meta      map[string]domain.InstrumentMeta
	PendingN  int

	// RejectKinds maps order kinds that SubmitOrder should reject.
	RejectKinds map[domain.OrderKind]bool
	// RejectSymbols maps symbols whose orders should be rejected.
	RejectSymbols map[string]bool

	Submitted []domain.OrderRequest
	Leverage  map[string]int

	nextID int
}

// NewSimGateway creates an empty SimGateway with a default instrument
// (tick $0.01, step 0.01, min 0.01, market orders accepted).
func NewSimGateway() *SimGateway {
	return &SimGateway{
		Prices:        make(map[string]decimal.Decimal),
		Positions:     make(map[string]domain.LivePosition),
		Meta:          make(map[string]domain.InstrumentMeta),
		RejectKinds:   make(map[domain.OrderKind]bool),
		RejectSymbols: make(map[string]bool),
		Leverage:      make(map[string]int),
	}
}

// Name returns "sim".
func (g *SimGateway) Name() string { return "sim" }

// SetPosition installs a live position for a symbol; zero qty removes it.
func (g *SimGateway) SetPosition(symbol string, qty, entry decimal.Decimal) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if qty.IsZero() {
		delete(g.Positions, symbol)
		return
	}
	g.Positions[symbol] = domain.LivePosition{Symbol: symbol, Qty: qty, EntryPrice: entry}
}

// CurrentPrice returns the configured price for the symbol.
func (g *SimGateway) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	price, ok := g.Prices[symbol]
	if !ok {
		return decimal.Zero, fmt.Errorf("no simulated price for %s", symbol)
	}
	return price, nil
}

// Account returns the configured snapshot.
func (g *SimGateway) Account(_ context.Context) (*domain.AccountSnapshot, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	snap := g.Snapshot
	return &snap, nil
}

// PositionQty returns the signed simulated position size.
func (g *SimGateway) PositionQty(_ context.Context, symbol string) (decimal.Decimal, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.Positions[symbol].Qty, nil
}

// LivePositions returns all simulated positions.
func (g *SimGateway) LivePositions(_ context.Context) ([]domain.LivePosition, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	out := make([]domain.LivePosition, 0, len(g.Positions))
	for _, p := range g.Positions {
		out = append(out, p)
	}
	return out, nil
}

// OpenOrderCount returns the configured pending-order count.
func (g *SimGateway) OpenOrderCount(_ context.Context) (int, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.PendingN, nil
}

// SubmitOrder records the order and simulates immediate acceptance, applying
// the position delta so subsequent PositionQty calls see the fill.
func (g *SimGateway) SubmitOrder(_ context.Context, req domain.OrderRequest) (*domain.Confirmation, error) {
	g.mu.Lock()
	defer g.mu.Unlock()

	if g.RejectKinds[req.Kind] || g.RejectSymbols[req.Symbol] {
		return nil, fmt.Errorf("simulated rejection of %s %s: %w", req.Kind, req.Symbol, ErrOrderRejected)
	}

	g.Submitted = append(g.Submitted, req)
	g.nextID++

	// Trigger orders rest at the venue; only entries and closes move the
	// position immediately.
	if req.Kind == domain.OrderKindMarket || req.Kind == domain.OrderKindLimit {
		delta := req.Qty
		if req.Side == domain.SideSell {
			delta = delta.Neg()
		}
		pos := g.Positions[req.Symbol]
		pos.Symbol = req.Symbol
		pos.Qty = pos.Qty.Add(delta)
		if pos.Qty.IsZero() {
			delete(g.Positions, req.Symbol)
		} else {
			g.Positions[req.Symbol] = pos
		}
	}

	conf := &domain.Confirmation{
		OrderID:     fmt.Sprintf("sim-%d", g.nextID),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		SubmittedAt: time.Now().UTC(),
	}
	if req.LimitPrice != nil {
		conf.Price = *req.LimitPrice
	} else {
		conf.Price = g.Prices[req.Symbol]
	}
	return conf, nil
}

// InstrumentMeta returns the configured rules, or cent-tick fractional
// defaults when none were set.
func (g *SimGateway) InstrumentMeta(_ context.Context, symbol string) (*domain.InstrumentMeta, error) {
	g.mu.Lock()
	defer g.mu.Unlock()
	if meta, ok := g.Meta[symbol]; ok {
		return &meta, nil
	}
	return &domain.InstrumentMeta{
		Symbol:   symbol,
		QtyStep:  decimal.New(1, -2),
		TickSize: decimal.New(1, -2),
		MinQty:   decimal.New(1, -2),
	}, nil
}

// SetLeverage records the primed leverage.
func (g *SimGateway) SetLeverage(_ context.Context, symbol string, leverage int) error {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.Leverage[symbol] = leverage
	return nil
}
