package engine

import (
	"context"
	"errors"
	"log/slog"
	"testing"

	"mirrortrade/internal/broker"
	"mirrortrade/internal/decide"
	"mirrortrade/internal/domain"
	"mirrortrade/internal/notify"
)

// queueSource feeds a fixed slice of signals, one per Next call.
type queueSource struct {
	signals []*domain.Signal
	err     error
}

func (q *queueSource) Next(_ context.Context) (*domain.Signal, error) {
	if q.err != nil {
		return nil, q.err
	}
	if len(q.signals) == 0 {
		return nil, nil
	}
	sig := q.signals[0]
	q.signals = q.signals[1:]
	return sig, nil
}

type stubProvider struct {
	decision decide.Decision
	err      error
	calls    int
}

func (p *stubProvider) Decide(_ context.Context) (decide.Decision, error) {
	p.calls++
	return p.decision, p.err
}

func TestIterateProcessesOneSignal(t *testing.T) {
	gw := broker.NewSimGateway()
	gw.Snapshot = domain.AccountSnapshot{Cash: d("10000")}
	gw.Prices["AAPL"] = d("200")
	gw.Prices["TSM"] = d("100")

	e, _ := newTestEngine(gw, ModeEquities, Policy{MaxConcurrentSymbols: 3}, d("0.3"))
	src := &queueSource{signals: []*domain.Signal{
		{Action: domain.ActionBuy, Symbol: "AAPL", ID: "m1"},
		{Action: domain.ActionBuy, Symbol: "TSM", ID: "m2"},
	}}
	loop := NewLoop(e, src, 0, nil, nil, slog.Default())

	loop.iterate(context.Background())
	if len(gw.Submitted) != 1 {
		t.Fatalf("first iteration submitted %d orders, want 1", len(gw.Submitted))
	}

	loop.iterate(context.Background())
	if len(gw.Submitted) != 2 {
		t.Fatalf("second iteration submitted %d orders, want 2", len(gw.Submitted))
	}
}

func TestIterateSurvivesSourceError(t *testing.T) {
	gw := broker.NewSimGateway()
	e, rec := newTestEngine(gw, ModeEquities, Policy{MaxConcurrentSymbols: 1}, d("0.5"))
	src := &queueSource{err: errors.New("feed unreachable")}
	loop := NewLoop(e, src, 0, nil, rec, slog.Default())

	loop.iterate(context.Background())

	if len(rec.titles) != 1 || rec.titles[0] != "Signal fetch failed" {
		t.Fatalf("notifications = %v, want one fetch failure", rec.titles)
	}
	if rec.priorities[0] != notify.PriorityHigh {
		t.Fatal("fetch failures are high priority")
	}
}

func TestIterateContainsPanic(t *testing.T) {
	gw := broker.NewSimGateway()
	e, rec := newTestEngine(gw, ModeEquities, Policy{MaxConcurrentSymbols: 1}, d("0.5"))
	loop := NewLoop(e, panicSource{}, 0, nil, rec, slog.Default())

	// Must not propagate.
	loop.iterate(context.Background())

	if len(rec.titles) != 1 || rec.titles[0] != "Trading loop panic" {
		t.Fatalf("notifications = %v, want one panic alert", rec.titles)
	}
}

type panicSource struct{}

func (panicSource) Next(context.Context) (*domain.Signal, error) { panic("boom") }

func TestIdleHookRunsOnlyWhenNoSignal(t *testing.T) {
	gw := broker.NewSimGateway()
	gw.Snapshot = domain.AccountSnapshot{Cash: d("10000")}
	gw.Prices["AAPL"] = d("200")

	e, _ := newTestEngine(gw, ModeEquities, Policy{MaxConcurrentSymbols: 1}, d("0.5"))
	idleCalls := 0
	src := &queueSource{signals: []*domain.Signal{
		{Action: domain.ActionBuy, Symbol: "AAPL", ID: "m1"},
	}}
	loop := NewLoop(e, src, 0, func(context.Context) { idleCalls++ }, nil, slog.Default())

	loop.iterate(context.Background())
	if idleCalls != 0 {
		t.Fatal("idle hook must not run on an iteration that had a signal")
	}
	loop.iterate(context.Background())
	if idleCalls != 1 {
		t.Fatalf("idle calls = %d, want 1", idleCalls)
	}
}

func TestDecisionIdleOpensWhenFlat(t *testing.T) {
	gw := broker.NewSimGateway()
	gw.Snapshot = domain.AccountSnapshot{Cash: d("1000")}
	gw.Prices["ETHUSDT"] = d("3000")
	gw.Meta["ETHUSDT"] = futuresMeta("ETHUSDT")

	e, _ := newTestEngine(gw, ModeFutures, Policy{
		MaxConcurrentSymbols: 1,
		Leverage:             5,
		ShortEnabled:         true,
		SlippagePct:          d("0.05"),
	}, d("0.3"))
	provider := &stubProvider{decision: decide.Decision{Direction: decide.Short, Reason: "downtrend"}}

	idle := DecisionIdle(e, provider, "ETHUSDT", slog.Default())
	idle(context.Background())

	if provider.calls != 1 {
		t.Fatalf("provider calls = %d, want 1", provider.calls)
	}
	lots := e.Book().Lots("ETHUSDT")
	if len(lots) != 1 || !lots[0].Short {
		t.Fatalf("lots = %+v, want one short lot from the decision", lots)
	}

	// With a position open the provider must not be consulted again.
	idle(context.Background())
	if provider.calls != 1 {
		t.Fatalf("provider calls = %d after second idle, want still 1", provider.calls)
	}
}

func TestDecisionIdleSwallowsProviderError(t *testing.T) {
	gw := broker.NewSimGateway()
	e, _ := newTestEngine(gw, ModeFutures, Policy{MaxConcurrentSymbols: 1}, d("0.3"))
	provider := &stubProvider{err: errors.New("model unavailable")}

	idle := DecisionIdle(e, provider, "ETHUSDT", slog.Default())
	idle(context.Background())

	if !e.Book().Empty() {
		t.Fatal("a failed decision must not open anything")
	}
}
