package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
	"mirrortrade/internal/util"
)

// Compile-time interface checks.
var _ Gateway = (*FuturesGateway)(nil)
var _ LeverageSetter = (*FuturesGateway)(nil)

// leverageUnchangedCode is returned by the venue when the requested leverage
// is already set. Not an error.
const leverageUnchangedCode = -4046

// FuturesGateway implements Gateway over a USDT-margined perpetual-futures
// REST API with HMAC-SHA256 signed requests (Binance UM wire format). The
// venue is IOC-limit only for aggressive entries and supports reduce-only
// trigger orders, which carry the bracket exits.
type FuturesGateway struct {
	baseURL    string
	apiKey     string
	secretKey  []byte
	client     *http.Client
	recvWindow int64
	limiter    *util.RateLimiter
}

// NewFuturesGateway creates a FuturesGateway for the given endpoint and
// credentials. Requests are rate-limited well under the venue's weight
// ceiling; at a few calls per poll cycle the limiter only matters when
// several iterations pile up after a stall.
func NewFuturesGateway(baseURL, apiKey, apiSecret string) *FuturesGateway {
	return &FuturesGateway{
		baseURL:    strings.TrimRight(baseURL, "/"),
		apiKey:     apiKey,
		secretKey:  []byte(apiSecret),
		client:     &http.Client{Timeout: 10 * time.Second},
		recvWindow: 5000,
		limiter:    util.NewRateLimiter(600, 10),
	}
}

// Name returns "futures".
func (g *FuturesGateway) Name() string { return "futures" }

// apiError is the venue's error envelope.
type apiError struct {
	Code int    `json:"code"`
	Msg  string `json:"msg"`
}

func (e *apiError) Error() string {
	return fmt.Sprintf("venue error %d: %s", e.Code, e.Msg)
}

// sign appends timestamp, recvWindow, and the HMAC-SHA256 signature to the
// query string.
func (g *FuturesGateway) sign(params url.Values) string {
	params.Set("timestamp", fmt.Sprintf("%d", time.Now().UnixMilli()))
	params.Set("recvWindow", fmt.Sprintf("%d", g.recvWindow))
	payload := params.Encode()

	mac := hmac.New(sha256.New, g.secretKey)
	mac.Write([]byte(payload))
	return payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

// do performs one request and decodes the JSON response into out. Signed
// requests carry the API key header and a signature over the query string.
func (g *FuturesGateway) do(ctx context.Context, method, path string, params url.Values, signed bool, out any) error {
	if err := g.limiter.Wait(ctx); err != nil {
		return err
	}
	if params == nil {
		params = url.Values{}
	}

	query := params.Encode()
	if signed {
		query = g.sign(params)
	}

	endpoint := g.baseURL + path
	var req *http.Request
	var err error
	if method == http.MethodGet {
		if query != "" {
			endpoint += "?" + query
		}
		req, err = http.NewRequestWithContext(ctx, method, endpoint, nil)
	} else {
		req, err = http.NewRequestWithContext(ctx, method, endpoint, strings.NewReader(query))
		if req != nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	}
	if err != nil {
		return err
	}
	if signed {
		req.Header.Set("X-MBX-APIKEY", g.apiKey)
	}

	resp, err := g.client.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(io.LimitReader(resp.Body, 1<<20))
	if err != nil {
		return fmt.Errorf("reading response: %w", err)
	}

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var venueErr apiError
		if json.Unmarshal(body, &venueErr) == nil && venueErr.Code != 0 {
			return &venueErr
		}
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if out == nil {
		return nil
	}
	if err := json.Unmarshal(body, out); err != nil {
		return fmt.Errorf("decoding response: %w", err)
	}
	return nil
}

// CurrentPrice returns the venue's last traded price for the contract.
func (g *FuturesGateway) CurrentPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{"symbol": {symbol}}
	var out struct {
		Price decimal.Decimal `json:"price"`
	}
	if err := g.do(ctx, http.MethodGet, "/fapi/v1/ticker/price", params, false, &out); err != nil {
		return decimal.Zero, fmt.Errorf("ticker price for %s: %w", symbol, err)
	}
	return out.Price, nil
}

// Account maps the USDT wallet to a snapshot: cash is the free margin
// available for new positions; equity is the full wallet balance.
func (g *FuturesGateway) Account(ctx context.Context) (*domain.AccountSnapshot, error) {
	var balances []struct {
		Asset            string          `json:"asset"`
		Balance          decimal.Decimal `json:"balance"`
		AvailableBalance decimal.Decimal `json:"availableBalance"`
	}
	if err := g.do(ctx, http.MethodGet, "/fapi/v2/balance", nil, true, &balances); err != nil {
		return nil, fmt.Errorf("fetching balance: %w", err)
	}
	for _, b := range balances {
		if b.Asset == "USDT" {
			return &domain.AccountSnapshot{
				Cash:        b.AvailableBalance,
				Equity:      b.Balance,
				BuyingPower: b.AvailableBalance,
			}, nil
		}
	}
	return nil, fmt.Errorf("no USDT balance in venue response")
}

// positionRisk is one row of the venue's position endpoint.
type positionRisk struct {
	Symbol      string          `json:"symbol"`
	PositionAmt decimal.Decimal `json:"positionAmt"`
	EntryPrice  decimal.Decimal `json:"entryPrice"`
}

// PositionQty returns the signed contract quantity for the symbol.
func (g *FuturesGateway) PositionQty(ctx context.Context, symbol string) (decimal.Decimal, error) {
	params := url.Values{"symbol": {symbol}}
	var rows []positionRisk
	if err := g.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", params, true, &rows); err != nil {
		return decimal.Zero, fmt.Errorf("position risk for %s: %w", symbol, err)
	}
	if len(rows) == 0 {
		return decimal.Zero, nil
	}
	return rows[0].PositionAmt, nil
}

// LivePositions returns every non-flat contract position.
func (g *FuturesGateway) LivePositions(ctx context.Context) ([]domain.LivePosition, error) {
	var rows []positionRisk
	if err := g.do(ctx, http.MethodGet, "/fapi/v2/positionRisk", nil, true, &rows); err != nil {
		return nil, fmt.Errorf("listing positions: %w", err)
	}
	var out []domain.LivePosition
	for _, row := range rows {
		if row.PositionAmt.IsZero() {
			continue
		}
		out = append(out, domain.LivePosition{
			Symbol:     row.Symbol,
			Qty:        row.PositionAmt,
			EntryPrice: row.EntryPrice,
		})
	}
	return out, nil
}

// OpenOrderCount returns the number of outstanding unfilled entry and close
// orders across all contracts. Reduce-only trigger orders are excluded: the
// take-profit/stop-loss legs rest at the venue for the life of a position
// and must not block new signals.
func (g *FuturesGateway) OpenOrderCount(ctx context.Context) (int, error) {
	var orders []struct {
		Type       string `json:"type"`
		ReduceOnly bool   `json:"reduceOnly"`
	}
	if err := g.do(ctx, http.MethodGet, "/fapi/v1/openOrders", nil, true, &orders); err != nil {
		return 0, fmt.Errorf("listing open orders: %w", err)
	}
	count := 0
	for _, o := range orders {
		if o.ReduceOnly || o.Type == "TAKE_PROFIT_MARKET" || o.Type == "STOP_MARKET" {
			continue
		}
		count++
	}
	return count, nil
}

// SubmitOrder places one order. Entries arrive as IOC limit orders with an
// aggressive price already rounded to tick; bracket exits arrive as
// reduce-only TAKE_PROFIT_MARKET / STOP_MARKET trigger orders.
func (g *FuturesGateway) SubmitOrder(ctx context.Context, req domain.OrderRequest) (*domain.Confirmation, error) {
	params := url.Values{
		"symbol":           {req.Symbol},
		"quantity":         {req.Qty.String()},
		"newOrderRespType": {"RESULT"},
	}
	if req.ClientOrderID != "" {
		params.Set("newClientOrderId", req.ClientOrderID)
	}

	side := "BUY"
	if req.Side == domain.SideSell {
		side = "SELL"
	}
	params.Set("side", side)

	switch req.Kind {
	case domain.OrderKindMarket:
		params.Set("type", "MARKET")
	case domain.OrderKindLimit:
		if req.LimitPrice == nil {
			return nil, fmt.Errorf("limit order for %s without a price", req.Symbol)
		}
		params.Set("type", "LIMIT")
		params.Set("timeInForce", "IOC")
		params.Set("price", req.LimitPrice.String())
	case domain.OrderKindTakeProfit:
		if req.TriggerPrice == nil {
			return nil, fmt.Errorf("take-profit order for %s without a trigger price", req.Symbol)
		}
		params.Set("type", "TAKE_PROFIT_MARKET")
		params.Set("stopPrice", req.TriggerPrice.String())
	case domain.OrderKindStopLoss:
		if req.TriggerPrice == nil {
			return nil, fmt.Errorf("stop-loss order for %s without a trigger price", req.Symbol)
		}
		params.Set("type", "STOP_MARKET")
		params.Set("stopPrice", req.TriggerPrice.String())
	default:
		return nil, fmt.Errorf("unsupported order kind %q", req.Kind)
	}

	if req.ReduceOnly {
		params.Set("reduceOnly", "true")
	}

	var out struct {
		OrderID  int64  `json:"orderId"`
		Status   string `json:"status"`
		Symbol   string `json:"symbol"`
		ClientID string `json:"clientOrderId"`
	}
	if err := g.do(ctx, http.MethodPost, "/fapi/v1/order", params, true, &out); err != nil {
		var venueErr *apiError
		if isVenueError(err, &venueErr) {
			return nil, fmt.Errorf("placing %s %s %s: %s: %w", req.Kind, side, req.Symbol, venueErr.Msg, ErrOrderRejected)
		}
		return nil, fmt.Errorf("placing %s %s %s: %w", req.Kind, side, req.Symbol, err)
	}

	conf := &domain.Confirmation{
		OrderID:     fmt.Sprintf("%d", out.OrderID),
		Symbol:      req.Symbol,
		Side:        req.Side,
		Qty:         req.Qty,
		SubmittedAt: time.Now(),
	}
	if req.LimitPrice != nil {
		conf.Price = *req.LimitPrice
	} else if req.TriggerPrice != nil {
		conf.Price = *req.TriggerPrice
	}
	return conf, nil
}

// InstrumentMeta reads the contract's LOT_SIZE and PRICE_FILTER rules from
// the exchange info endpoint.
func (g *FuturesGateway) InstrumentMeta(ctx context.Context, symbol string) (*domain.InstrumentMeta, error) {
	params := url.Values{"symbol": {symbol}}
	var out struct {
		Symbols []struct {
			Symbol  string `json:"symbol"`
			Filters []struct {
				FilterType string          `json:"filterType"`
				StepSize   decimal.Decimal `json:"stepSize"`
				MinQty     decimal.Decimal `json:"minQty"`
				TickSize   decimal.Decimal `json:"tickSize"`
			} `json:"filters"`
		} `json:"symbols"`
	}
	if err := g.do(ctx, http.MethodGet, "/fapi/v1/exchangeInfo", params, false, &out); err != nil {
		return nil, fmt.Errorf("exchange info for %s: %w", symbol, err)
	}

	for _, s := range out.Symbols {
		if s.Symbol != symbol {
			continue
		}
		meta := &domain.InstrumentMeta{Symbol: symbol, RequiresLimit: true}
		for _, f := range s.Filters {
			switch f.FilterType {
			case "LOT_SIZE":
				meta.QtyStep = f.StepSize
				meta.MinQty = f.MinQty
			case "PRICE_FILTER":
				meta.TickSize = f.TickSize
			}
		}
		if meta.QtyStep.IsZero() || meta.TickSize.IsZero() {
			return nil, fmt.Errorf("incomplete trading rules for %s", symbol)
		}
		return meta, nil
	}
	return nil, fmt.Errorf("symbol %s not found in exchange info", symbol)
}

// SetLeverage primes the contract's leverage. The venue's "leverage
// unchanged" response is treated as success.
func (g *FuturesGateway) SetLeverage(ctx context.Context, symbol string, leverage int) error {
	params := url.Values{
		"symbol":   {symbol},
		"leverage": {fmt.Sprintf("%d", leverage)},
	}
	err := g.do(ctx, http.MethodPost, "/fapi/v1/leverage", params, true, nil)
	if err != nil {
		var venueErr *apiError
		if isVenueError(err, &venueErr) && venueErr.Code == leverageUnchangedCode {
			return nil
		}
		return fmt.Errorf("setting leverage for %s: %w", symbol, err)
	}
	return nil
}

// isVenueError extracts an apiError from err.
func isVenueError(err error, target **apiError) bool {
	return errors.As(err, target)
}
