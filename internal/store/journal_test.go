package store

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/shopspring/decimal"

	"mirrortrade/internal/domain"
)

func newTestJournal(t *testing.T) *Journal {
	t.Helper()
	j, err := NewJournal(filepath.Join(t.TempDir(), "journal.db"))
	if err != nil {
		t.Fatalf("NewJournal returned error: %v", err)
	}
	t.Cleanup(func() { j.Close() })
	return j
}

func TestRecordSignalIsIdempotent(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	sig := &domain.Signal{Action: domain.ActionBuy, Symbol: "TSM", ID: "msg-1"}
	if err := j.RecordSignal(ctx, sig); err != nil {
		t.Fatalf("RecordSignal returned error: %v", err)
	}
	// Same ID again must not error.
	if err := j.RecordSignal(ctx, sig); err != nil {
		t.Fatalf("RecordSignal (duplicate) returned error: %v", err)
	}
}

func TestRecordAndListCloses(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	lot := domain.Lot{
		Qty:        decimal.NewFromInt(10),
		EntryPrice: decimal.NewFromInt(50),
		Short:      true,
	}
	exit := decimal.NewFromInt(45)
	pnl := lot.RealizedPnL(exit)

	if err := j.RecordClose(ctx, "NVDA", lot, exit, pnl); err != nil {
		t.Fatalf("RecordClose returned error: %v", err)
	}

	closes, err := j.RecentCloses(ctx, 10)
	if err != nil {
		t.Fatalf("RecentCloses returned error: %v", err)
	}
	if len(closes) != 1 {
		t.Fatalf("got %d closes, want 1", len(closes))
	}
	rec := closes[0]
	if rec.Symbol != "NVDA" {
		t.Errorf("Symbol = %q, want NVDA", rec.Symbol)
	}
	if !rec.PnL.Equal(decimal.NewFromInt(50)) {
		t.Errorf("PnL = %s, want 50", rec.PnL)
	}
	if !rec.Qty.Equal(lot.Qty) || !rec.EntryPrice.Equal(lot.EntryPrice) {
		t.Errorf("close record = %+v, want qty 10 entry 50", rec)
	}
}

func TestRecordOrder(t *testing.T) {
	j := newTestJournal(t)
	ctx := context.Background()

	conf := &domain.Confirmation{
		OrderID: "venue-1",
		Symbol:  "ETHUSDT",
		Side:    domain.SideBuy,
		Qty:     decimal.RequireFromString("0.5"),
		Price:   decimal.RequireFromString("3000"),
	}
	if err := j.RecordOrder(ctx, conf, domain.OrderKindLimit); err != nil {
		t.Fatalf("RecordOrder returned error: %v", err)
	}
}
