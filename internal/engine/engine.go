package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"github.com/shopspring/decimal"

	"mirrortrade/internal/broker"
	"mirrortrade/internal/domain"
	"mirrortrade/internal/ledger"
	"mirrortrade/internal/metrics"
	"mirrortrade/internal/notify"
)

// Policy carries the trading parameters the engine enforces. All fields are
// fixed at construction; the engine never reloads configuration.
type Policy struct {
	MaxConcurrentSymbols int
	Leverage             int64
	ShortEnabled         bool
	SlippagePct          decimal.Decimal
	TakeProfitPct        decimal.Decimal
	StopLossPct          decimal.Decimal
}

// Recorder persists the engine's audit trail. *store.Journal satisfies it;
// a nil Recorder disables journaling.
type Recorder interface {
	RecordSignal(ctx context.Context, sig *domain.Signal) error
	RecordOrder(ctx context.Context, conf *domain.Confirmation, kind domain.OrderKind) error
	RecordClose(ctx context.Context, symbol string, lot domain.Lot, exitPrice, pnl decimal.Decimal) error
}

// Engine owns the position lifecycle: admission, allocation, execution, and
// the lot ledger. It is single-threaded; one signal is fully resolved before
// the next is considered.
type Engine struct {
	gw       broker.Gateway
	book     *ledger.Ledger
	alloc    *Allocator
	policy   Policy
	notifier notify.Notifier
	journal  Recorder
	log      *slog.Logger
}

func New(gw broker.Gateway, book *ledger.Ledger, alloc *Allocator, policy Policy, notifier notify.Notifier, journal Recorder, log *slog.Logger) *Engine {
	if notifier == nil {
		notifier = notify.NewMulti()
	}
	if log == nil {
		log = slog.Default()
	}
	return &Engine{
		gw:       gw,
		book:     book,
		alloc:    alloc,
		policy:   policy,
		notifier: notifier,
		journal:  journal,
		log:      log,
	}
}

// Book exposes the ledger for reconciliation checks and tests.
func (e *Engine) Book() *ledger.Ledger { return e.book }

// Flat reports whether the engine currently tracks no open position.
func (e *Engine) Flat() bool { return e.book.Empty() }

// Reconcile seeds the ledger from the venue's live positions. Each live
// position becomes a single synthetic lot at the venue's average entry
// price, so restarts never leave the ledger blind to real exposure.
func (e *Engine) Reconcile(ctx context.Context) error {
	live, err := e.gw.LivePositions(ctx)
	if err != nil {
		return fmt.Errorf("reconcile: %w", err)
	}
	for _, p := range live {
		lot := domain.Lot{
			Qty:        p.Qty.Abs(),
			EntryPrice: p.EntryPrice,
			Short:      p.Qty.IsNegative(),
			OpenedAt:   time.Now().UTC(),
		}
		e.book.Open(p.Symbol, lot)
		e.log.Info("reconciled live position",
			"symbol", p.Symbol, "qty", p.Qty.String(), "entry", p.EntryPrice.String())
	}
	metrics.OpenSymbols.Set(float64(e.book.SymbolCount()))
	return nil
}

// ProcessSignal drives one signal through the full lifecycle. Denials,
// sizing failures, and execution errors are notified and consumed here; the
// returned error is reserved for faults that prevented a decision at all.
func (e *Engine) ProcessSignal(ctx context.Context, sig *domain.Signal) error {
	metrics.SignalsTotal.WithLabelValues(string(sig.Action)).Inc()
	if e.journal != nil {
		if err := e.journal.RecordSignal(ctx, sig); err != nil {
			e.log.Warn("journal signal failed", "id", sig.ID, "error", err)
		}
	}

	denial, err := e.admit(ctx, sig)
	if err != nil {
		return err
	}
	if denial != nil {
		metrics.DenialsTotal.WithLabelValues(string(denial.Reason)).Inc()
		e.log.Info("signal denied", "symbol", sig.Symbol, "action", string(sig.Action), "reason", string(denial.Reason))
		e.notifier.Send(ctx, "Signal denied",
			fmt.Sprintf("%s %s: %s", sig.Action, sig.Symbol, denial.Reason), notify.PriorityLow)
		return nil
	}

	if sig.Action.IsClosing() {
		e.processClose(ctx, sig)
		return nil
	}
	return e.processOpen(ctx, sig)
}

func (e *Engine) processOpen(ctx context.Context, sig *domain.Signal) error {
	account, err := e.gw.Account(ctx)
	if err != nil {
		return fmt.Errorf("account snapshot: %w", err)
	}
	metrics.EquityUSD.Set(account.Equity.InexactFloat64())

	alloc := e.alloc.Allocate(account, e.book.SymbolCount())
	if err := e.alloc.CheckMinimum(sig.Symbol, alloc); err != nil {
		e.log.Info("allocation too small", "symbol", sig.Symbol, "allocation", alloc.String())
		e.notifier.Send(ctx, "Allocation too small", err.Error(), notify.PriorityLow)
		return nil
	}

	plan := domain.OrderPlan{
		Symbol:        sig.Symbol,
		Side:          domain.SideBuy,
		Allocation:    alloc,
		Leverage:      e.policy.Leverage,
		TakeProfitPct: e.policy.TakeProfitPct,
		StopLossPct:   e.policy.StopLossPct,
	}
	if sig.Action.IsShortSide() {
		plan.Side = domain.SideSell
	}

	conf, qty, refPrice, execErr := e.submitEntry(ctx, plan)
	if execErr != nil {
		e.failExecution(ctx, execErr)
		return nil
	}

	lot := domain.Lot{
		Qty:        qty,
		EntryPrice: refPrice,
		Short:      plan.Side == domain.SideSell,
		OpenedAt:   conf.SubmittedAt,
	}
	e.book.Open(sig.Symbol, lot)
	metrics.OpenSymbols.Set(float64(e.book.SymbolCount()))
	e.log.Info("position opened",
		"symbol", sig.Symbol, "side", string(plan.Side), "qty", qty.String(), "price", refPrice.String())
	e.notifier.Send(ctx, "Position opened",
		fmt.Sprintf("%s %s %s @ %s", plan.Side, qty.String(), sig.Symbol, refPrice.String()), notify.PriorityLow)

	if plan.Bracketed() {
		if bracketErr := e.submitBrackets(ctx, plan, qty, refPrice); bracketErr != nil {
			e.failExecution(ctx, bracketErr)
		}
	}
	return nil
}

// submitEntry sizes and places the opening order. The returned reference
// price is the quote used for sizing; bracket legs anchor to it rather than
// the fill price so protection bands match the decision, not the slippage.
func (e *Engine) submitEntry(ctx context.Context, plan domain.OrderPlan) (*domain.Confirmation, decimal.Decimal, decimal.Decimal, *ExecutionError) {
	meta, err := e.gw.InstrumentMeta(ctx, plan.Symbol)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, classifySubmitError(plan.Symbol, err)
	}
	price, err := e.gw.CurrentPrice(ctx, plan.Symbol)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, classifySubmitError(plan.Symbol, err)
	}

	notional := plan.Allocation.Mul(decimal.NewFromInt(max(plan.Leverage, 1)))
	qty := floorToStep(notional.Div(price), meta.QtyStep)
	if qty.LessThan(meta.MinQty) || qty.IsZero() {
		return nil, decimal.Zero, decimal.Zero, &ExecutionError{
			Kind:   ErrBelowMinimumSize,
			Symbol: plan.Symbol,
			Err:    fmt.Errorf("qty %s below venue minimum %s", qty.String(), meta.MinQty.String()),
		}
	}

	req := domain.OrderRequest{
		Symbol:        plan.Symbol,
		Side:          plan.Side,
		Qty:           qty,
		Kind:          domain.OrderKindMarket,
		ClientOrderID: uuid.NewString(),
	}
	if meta.RequiresLimit {
		limit := aggressiveLimit(price, meta.TickSize, plan.Side, e.policy.SlippagePct)
		req.Kind = domain.OrderKindLimit
		req.LimitPrice = &limit
	}

	conf, err := e.gw.SubmitOrder(ctx, req)
	if err != nil {
		return nil, decimal.Zero, decimal.Zero, classifySubmitError(plan.Symbol, err)
	}
	metrics.OrdersTotal.WithLabelValues(string(req.Side), string(req.Kind)).Inc()
	if e.journal != nil {
		if jerr := e.journal.RecordOrder(ctx, conf, req.Kind); jerr != nil {
			e.log.Warn("journal order failed", "order_id", conf.OrderID, "error", jerr)
		}
	}
	return conf, qty, price, nil
}

// aggressiveLimit bands the quote so an immediate-or-cancel limit crosses
// the book: above market for buys, below for sells.
func aggressiveLimit(price, tick decimal.Decimal, side domain.Side, slippagePct decimal.Decimal) decimal.Decimal {
	one := decimal.NewFromInt(1)
	if side == domain.SideBuy {
		return roundToTick(price.Mul(one.Add(slippagePct)), tick, true)
	}
	return roundToTick(price.Mul(one.Sub(slippagePct)), tick, false)
}

// submitBrackets places the take-profit and stop-loss legs as reduce-only
// trigger orders on the opposite side of the entry. Either leg failing
// leaves the position open but unprotected, which is the loudest failure
// the engine can produce short of a fault.
func (e *Engine) submitBrackets(ctx context.Context, plan domain.OrderPlan, qty, refPrice decimal.Decimal) *ExecutionError {
	meta, err := e.gw.InstrumentMeta(ctx, plan.Symbol)
	if err != nil {
		return &ExecutionError{Kind: ErrBracketLegFailed, Symbol: plan.Symbol, Err: err}
	}

	one := decimal.NewFromInt(1)
	type bracketLeg struct {
		kind    domain.OrderKind
		trigger decimal.Decimal
	}
	// A zero percentage means that leg is not wanted. Submitting it anyway
	// would park the trigger at the entry price and fire on the next tick.
	var legs []bracketLeg
	if plan.TakeProfitPct.IsPositive() {
		tpPrice := refPrice.Mul(one.Add(plan.TakeProfitPct))
		if plan.Side == domain.SideSell {
			tpPrice = refPrice.Mul(one.Sub(plan.TakeProfitPct))
		}
		legs = append(legs, bracketLeg{domain.OrderKindTakeProfit, roundToTick(tpPrice, meta.TickSize, false)})
	}
	if plan.StopLossPct.IsPositive() {
		slPrice := refPrice.Mul(one.Sub(plan.StopLossPct))
		if plan.Side == domain.SideSell {
			slPrice = refPrice.Mul(one.Add(plan.StopLossPct))
		}
		legs = append(legs, bracketLeg{domain.OrderKindStopLoss, roundToTick(slPrice, meta.TickSize, false)})
	}
	for _, leg := range legs {
		trigger := leg.trigger
		req := domain.OrderRequest{
			Symbol:        plan.Symbol,
			Side:          plan.Side.Opposite(),
			Qty:           qty,
			Kind:          leg.kind,
			TriggerPrice:  &trigger,
			ReduceOnly:    true,
			ClientOrderID: uuid.NewString(),
		}
		conf, err := e.gw.SubmitOrder(ctx, req)
		if err != nil {
			return &ExecutionError{
				Kind:   ErrBracketLegFailed,
				Symbol: plan.Symbol,
				Err:    fmt.Errorf("%s leg: %w", leg.kind, err),
			}
		}
		metrics.OrdersTotal.WithLabelValues(string(req.Side), string(leg.kind)).Inc()
		if e.journal != nil {
			if err := e.journal.RecordOrder(ctx, conf, leg.kind); err != nil {
				e.log.Warn("journal order failed", "order_id", conf.OrderID, "error", err)
			}
		}
	}
	return nil
}

// processClose closes the oldest lot for the symbol. The lot leaves the
// ledger only after the venue confirms; any failure pushes it back exactly
// as it was.
func (e *Engine) processClose(ctx context.Context, sig *domain.Signal) {
	live, err := e.gw.PositionQty(ctx, sig.Symbol)
	if err != nil {
		e.failExecution(ctx, classifySubmitError(sig.Symbol, err))
		return
	}

	lot, ok := e.book.PopOldest(sig.Symbol)
	if !ok {
		// admit already verified presence; a vanished lot is a fault.
		e.log.Error("ledger lost lot between admission and close", "symbol", sig.Symbol)
		return
	}

	closeQty := decimal.Min(lot.Qty, live.Abs())
	side := domain.SideSell
	if live.IsNegative() {
		side = domain.SideBuy
	}

	price, err := e.gw.CurrentPrice(ctx, sig.Symbol)
	if err != nil {
		e.book.PushFront(sig.Symbol, lot)
		e.failExecution(ctx, classifySubmitError(sig.Symbol, err))
		return
	}

	meta, err := e.gw.InstrumentMeta(ctx, sig.Symbol)
	if err != nil {
		e.book.PushFront(sig.Symbol, lot)
		e.failExecution(ctx, classifySubmitError(sig.Symbol, err))
		return
	}

	req := domain.OrderRequest{
		Symbol:        sig.Symbol,
		Side:          side,
		Qty:           closeQty,
		Kind:          domain.OrderKindMarket,
		ReduceOnly:    true,
		ClientOrderID: uuid.NewString(),
	}
	if meta.RequiresLimit {
		limit := aggressiveLimit(price, meta.TickSize, side, e.policy.SlippagePct)
		req.Kind = domain.OrderKindLimit
		req.LimitPrice = &limit
	}

	conf, err := e.gw.SubmitOrder(ctx, req)
	if err != nil {
		e.book.PushFront(sig.Symbol, lot)
		e.failExecution(ctx, classifySubmitError(sig.Symbol, err))
		return
	}

	if e.book.Empty() {
		e.alloc.Reset()
	}
	metrics.OpenSymbols.Set(float64(e.book.SymbolCount()))
	metrics.OrdersTotal.WithLabelValues(string(side), string(req.Kind)).Inc()

	closed := lot
	closed.Qty = closeQty
	pnl := closed.RealizedPnL(price)
	if e.journal != nil {
		if err := e.journal.RecordOrder(ctx, conf, req.Kind); err != nil {
			e.log.Warn("journal order failed", "order_id", conf.OrderID, "error", err)
		}
		if err := e.journal.RecordClose(ctx, sig.Symbol, closed, price, pnl); err != nil {
			e.log.Warn("journal close failed", "symbol", sig.Symbol, "error", err)
		}
	}
	e.log.Info("position closed",
		"symbol", sig.Symbol, "side", string(side), "qty", closeQty.String(),
		"exit", price.String(), "pnl", pnl.StringFixed(2))
	e.notifier.Send(ctx, "Position closed",
		fmt.Sprintf("%s %s %s @ %s, P&L %s", side, closeQty.String(), sig.Symbol, price.String(), pnl.StringFixed(2)),
		notify.PriorityLow)
}

func (e *Engine) failExecution(ctx context.Context, execErr *ExecutionError) {
	metrics.ExecErrorsTotal.WithLabelValues(string(execErr.Kind)).Inc()
	e.log.Error("execution failed",
		"symbol", execErr.Symbol, "kind", string(execErr.Kind), "error", execErr.Error())
	e.notifier.Send(ctx, "Execution failed", execErr.Error(), notify.PriorityHigh)
}
