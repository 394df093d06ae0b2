package broker

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

func TestFuturesSignedRequestCarriesValidSignature(t *testing.T) {
	const secret = "test-secret"
	var gotQuery url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v2/balance" {
			t.Errorf("path = %q, want /fapi/v2/balance", r.URL.Path)
		}
		if r.Header.Get("X-MBX-APIKEY") != "test-key" {
			t.Errorf("missing API key header")
		}
		gotQuery = r.URL.Query()
		w.Write([]byte(`[{"asset":"USDT","balance":"1000.5","availableBalance":"900.25"}]`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "test-key", secret)
	snap, err := g.Account(context.Background())
	if err != nil {
		t.Fatalf("Account returned error: %v", err)
	}
	if snap.Cash.String() != "900.25" || snap.Equity.String() != "1000.5" {
		t.Errorf("snapshot = %+v, want cash 900.25 equity 1000.5", snap)
	}

	// Recompute the signature over the received parameters (minus the
	// signature itself) and compare.
	sig := gotQuery.Get("signature")
	if sig == "" {
		t.Fatal("request carried no signature")
	}
	params := url.Values{}
	for k, vs := range gotQuery {
		if k == "signature" {
			continue
		}
		params[k] = vs
	}
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(params.Encode()))
	if want := hex.EncodeToString(mac.Sum(nil)); sig != want {
		t.Errorf("signature = %s, want %s", sig, want)
	}
}

func TestFuturesOpenOrderCountIgnoresRestingBrackets(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/fapi/v1/openOrders" {
			t.Errorf("path = %q, want /fapi/v1/openOrders", r.URL.Path)
		}
		// One pending entry plus the protective legs of an earlier open.
		w.Write([]byte(`[
			{"symbol":"ETHUSDT","type":"LIMIT","reduceOnly":false},
			{"symbol":"ETHUSDT","type":"TAKE_PROFIT_MARKET","reduceOnly":true},
			{"symbol":"ETHUSDT","type":"STOP_MARKET","reduceOnly":true}
		]`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "k", "s")
	n, err := g.OpenOrderCount(context.Background())
	if err != nil {
		t.Fatalf("OpenOrderCount returned error: %v", err)
	}
	if n != 1 {
		t.Errorf("OpenOrderCount = %d, want 1 (brackets rest for the position's lifetime)", n)
	}
}

func TestFuturesSubmitOrderShapes(t *testing.T) {
	var gotForm url.Values

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := r.ParseForm(); err != nil {
			t.Fatalf("parsing form: %v", err)
		}
		gotForm = r.PostForm
		w.Write([]byte(`{"orderId":42,"status":"NEW","symbol":"ETHUSDT"}`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "k", "s")

	limit := decimal.RequireFromString("3150.50")
	conf, err := g.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:     "ETHUSDT",
		Side:       domain.SideBuy,
		Qty:        decimal.RequireFromString("0.5"),
		Kind:       domain.OrderKindLimit,
		LimitPrice: &limit,
	})
	if err != nil {
		t.Fatalf("SubmitOrder returned error: %v", err)
	}
	if conf.OrderID != "42" {
		t.Errorf("OrderID = %q, want %q", conf.OrderID, "42")
	}
	if gotForm.Get("type") != "LIMIT" || gotForm.Get("timeInForce") != "IOC" {
		t.Errorf("limit order form = %v, want type LIMIT tif IOC", gotForm)
	}
	if gotForm.Get("price") != "3150.5" {
		t.Errorf("price = %q, want 3150.5", gotForm.Get("price"))
	}

	trigger := decimal.RequireFromString("3200")
	_, err = g.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol:       "ETHUSDT",
		Side:         domain.SideSell,
		Qty:          decimal.RequireFromString("0.5"),
		Kind:         domain.OrderKindTakeProfit,
		TriggerPrice: &trigger,
		ReduceOnly:   true,
	})
	if err != nil {
		t.Fatalf("SubmitOrder (tp) returned error: %v", err)
	}
	if gotForm.Get("type") != "TAKE_PROFIT_MARKET" {
		t.Errorf("tp order type = %q, want TAKE_PROFIT_MARKET", gotForm.Get("type"))
	}
	if gotForm.Get("stopPrice") != "3200" || gotForm.Get("reduceOnly") != "true" {
		t.Errorf("tp order form = %v, want stopPrice 3200 reduceOnly true", gotForm)
	}
}

func TestFuturesVenueRejectionWrapsErrOrderRejected(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-2010,"msg":"Order would immediately trigger."}`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "k", "s")
	_, err := g.SubmitOrder(context.Background(), domain.OrderRequest{
		Symbol: "ETHUSDT",
		Side:   domain.SideBuy,
		Qty:    decimal.NewFromInt(1),
		Kind:   domain.OrderKindMarket,
	})
	if !errors.Is(err, ErrOrderRejected) {
		t.Errorf("error = %v, want ErrOrderRejected", err)
	}
}

func TestFuturesSetLeverageIgnoresUnchanged(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusBadRequest)
		w.Write([]byte(`{"code":-4046,"msg":"No need to change leverage."}`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "k", "s")
	if err := g.SetLeverage(context.Background(), "ETHUSDT", 10); err != nil {
		t.Errorf("SetLeverage returned error for unchanged leverage: %v", err)
	}
}

func TestFuturesInstrumentMeta(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[{"symbol":"ETHUSDT","filters":[
			{"filterType":"PRICE_FILTER","tickSize":"0.01"},
			{"filterType":"LOT_SIZE","stepSize":"0.001","minQty":"0.001"}
		]}]}`))
	}))
	defer srv.Close()

	g := NewFuturesGateway(srv.URL, "k", "s")
	meta, err := g.InstrumentMeta(context.Background(), "ETHUSDT")
	if err != nil {
		t.Fatalf("InstrumentMeta returned error: %v", err)
	}
	if meta.QtyStep.String() != "0.001" || meta.TickSize.String() != "0.01" {
		t.Errorf("meta = %+v, want step 0.001 tick 0.01", meta)
	}
	if !meta.RequiresLimit {
		t.Error("futures meta should require limit pricing")
	}
}
