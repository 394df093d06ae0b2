package broker

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/alpacahq/alpaca-trade-api-go/v3/alpaca"
	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"
	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

// Compile-time interface check.
var _ Gateway = (*AlpacaGateway)(nil)

// AlpacaGateway implements Gateway over the Alpaca trading and market-data
// APIs. Equities trade as plain market orders; the venue accepts fractional
// quantities for fractionable assets.
type AlpacaGateway struct {
	trading *alpaca.Client
	data    *marketdata.Client
}

// NewAlpacaGateway creates an AlpacaGateway from API credentials. Empty URLs
// fall back to the SDK defaults (paper trading when baseURL points at the
// paper host).
func NewAlpacaGateway(apiKey, apiSecret, baseURL, dataURL string) *AlpacaGateway {
	return &AlpacaGateway{
		trading: alpaca.NewClient(alpaca.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   baseURL,
		}),
		data: marketdata.NewClient(marketdata.ClientOpts{
			APIKey:    apiKey,
			APISecret: apiSecret,
			BaseURL:   dataURL,
		}),
	}
}

// Name returns "alpaca".
func (g *AlpacaGateway) Name() string { return "alpaca" }

// CurrentPrice returns the latest quote's ask price, falling back to the bid
// when the ask is unavailable outside market hours.
func (g *AlpacaGateway) CurrentPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	quote, err := g.data.GetLatestQuote(symbol, marketdata.GetLatestQuoteRequest{})
	if err != nil {
		return decimal.Zero, fmt.Errorf("latest quote for %s: %w", symbol, err)
	}
	price := quote.AskPrice
	if price == 0 {
		price = quote.BidPrice
	}
	if price == 0 {
		return decimal.Zero, fmt.Errorf("no live quote for %s", symbol)
	}
	return decimal.NewFromFloat(price), nil
}

// Account returns the live account snapshot.
func (g *AlpacaGateway) Account(_ context.Context) (*domain.AccountSnapshot, error) {
	acct, err := g.trading.GetAccount()
	if err != nil {
		return nil, fmt.Errorf("fetching account: %w", err)
	}
	return &domain.AccountSnapshot{
		Cash:        acct.Cash,
		Equity:      acct.Equity,
		BuyingPower: acct.BuyingPower,
	}, nil
}

// PositionQty returns the signed open quantity for the symbol, zero when the
// broker holds no position.
func (g *AlpacaGateway) PositionQty(_ context.Context, symbol string) (decimal.Decimal, error) {
	pos, err := g.trading.GetPosition(symbol)
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) && apiErr.StatusCode == 404 {
			return decimal.Zero, nil
		}
		return decimal.Zero, fmt.Errorf("fetching position for %s: %w", symbol, err)
	}
	return pos.Qty, nil
}

// LivePositions returns all open positions at the broker.
func (g *AlpacaGateway) LivePositions(_ context.Context) ([]domain.LivePosition, error) {
	positions, err := g.trading.GetPositions()
	if err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	out := make([]domain.LivePosition, 0, len(positions))
	for _, p := range positions {
		out = append(out, domain.LivePosition{
			Symbol:     p.Symbol,
			Qty:        p.Qty,
			EntryPrice: p.AvgEntryPrice,
		})
	}
	return out, nil
}

// OpenOrderCount returns the number of outstanding unfilled orders.
func (g *AlpacaGateway) OpenOrderCount(_ context.Context) (int, error) {
	orders, err := g.trading.GetOrders(alpaca.GetOrdersRequest{
		Status: "open",
		Limit:  100,
	})
	if err != nil {
		return 0, fmt.Errorf("listing open orders: %w", err)
	}
	return len(orders), nil
}

// SubmitOrder places a day market or limit order. Trigger kinds are not
// supported on this venue; the equities engine never plans brackets.
func (g *AlpacaGateway) SubmitOrder(_ context.Context, req domain.OrderRequest) (*domain.Confirmation, error) {
	var orderType alpaca.OrderType
	switch req.Kind {
	case domain.OrderKindMarket:
		orderType = alpaca.Market
	case domain.OrderKindLimit:
		orderType = alpaca.Limit
	default:
		return nil, fmt.Errorf("alpaca gateway does not support %s orders", req.Kind)
	}

	side := alpaca.Buy
	if req.Side == domain.SideSell {
		side = alpaca.Sell
	}

	qty := req.Qty
	order, err := g.trading.PlaceOrder(alpaca.PlaceOrderRequest{
		Symbol:        req.Symbol,
		Qty:           &qty,
		Side:          side,
		Type:          orderType,
		TimeInForce:   alpaca.Day,
		LimitPrice:    req.LimitPrice,
		ClientOrderID: req.ClientOrderID,
	})
	if err != nil {
		var apiErr *alpaca.APIError
		if errors.As(err, &apiErr) {
			return nil, fmt.Errorf("placing %s %s: %s: %w", req.Side, req.Symbol, apiErr.Message, ErrOrderRejected)
		}
		return nil, fmt.Errorf("placing %s %s: %w", req.Side, req.Symbol, err)
	}

	conf := &domain.Confirmation{
		OrderID:     order.ID,
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		SubmittedAt: time.Now(),
	}
	if req.LimitPrice != nil {
		conf.Price = *req.LimitPrice
	}
	return conf, nil
}

// InstrumentMeta derives the sizing rules from the asset record: fractional
// assets trade in 0.01-share steps, whole-share assets in single shares.
// Equity prices tick in cents. Market orders are accepted, so no aggressive
// limit pricing is required.
func (g *AlpacaGateway) InstrumentMeta(_ context.Context, symbol string) (*domain.InstrumentMeta, error) {
	asset, err := g.trading.GetAsset(symbol)
	if err != nil {
		return nil, fmt.Errorf("fetching asset %s: %w", symbol, err)
	}
	if !asset.Tradable {
		return nil, fmt.Errorf("asset %s is not tradable", symbol)
	}

	meta := &domain.InstrumentMeta{
		Symbol:        symbol,
		TickSize:      decimal.New(1, -2), // $0.01
		QtyStep:       decimal.New(1, 0),
		MinQty:        decimal.New(1, 0),
		RequiresLimit: false,
	}
	if asset.Fractionable {
		meta.QtyStep = decimal.New(1, -2) // 0.01 shares
		meta.MinQty = decimal.New(1, -2)
	}
	return meta, nil
}
