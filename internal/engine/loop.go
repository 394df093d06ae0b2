package engine

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"mirrortrade/internal/decide"
	"mirrortrade/internal/domain"
	"mirrortrade/internal/notify"
	"mirrortrade/internal/signal"
)

// IdleFunc runs when an iteration finds no actionable signal.
type IdleFunc func(ctx context.Context)

// Loop polls the signal source and hands each signal to the engine, one per
// iteration. Panics and errors are contained at the iteration boundary so a
// bad iteration never kills the process.
type Loop struct {
	engine   *Engine
	source   signal.Source
	interval time.Duration
	idle     IdleFunc
	notifier notify.Notifier
	log      *slog.Logger
}

func NewLoop(engine *Engine, source signal.Source, interval time.Duration, idle IdleFunc, notifier notify.Notifier, log *slog.Logger) *Loop {
	if notifier == nil {
		notifier = notify.NewMulti()
	}
	if log == nil {
		log = slog.Default()
	}
	if interval <= 0 {
		interval = 5 * time.Second
	}
	return &Loop{
		engine:   engine,
		source:   source,
		interval: interval,
		idle:     idle,
		notifier: notifier,
		log:      log,
	}
}

// Run blocks until the context is canceled.
func (l *Loop) Run(ctx context.Context) error {
	l.log.Info("trading loop started", "interval", l.interval.String())
	for {
		l.iterate(ctx)
		select {
		case <-ctx.Done():
			l.log.Info("trading loop stopped")
			return ctx.Err()
		case <-time.After(l.interval):
		}
	}
}

// iterate processes at most one signal. Remaining queued signals wait for
// subsequent iterations; ordering is preserved by the source.
func (l *Loop) iterate(ctx context.Context) {
	defer func() {
		if r := recover(); r != nil {
			l.log.Error("iteration panic", "panic", fmt.Sprint(r))
			l.notifier.Send(ctx, "Trading loop panic", fmt.Sprint(r), notify.PriorityHigh)
		}
	}()

	sig, err := l.source.Next(ctx)
	if err != nil {
		l.log.Error("signal fetch failed", "error", err)
		l.notifier.Send(ctx, "Signal fetch failed", err.Error(), notify.PriorityHigh)
		return
	}
	if sig == nil {
		if l.idle != nil {
			l.idle(ctx)
		}
		return
	}

	if err := l.engine.ProcessSignal(ctx, sig); err != nil {
		l.log.Error("signal processing fault", "id", sig.ID, "error", err)
		l.notifier.Send(ctx, "Signal processing fault", err.Error(), notify.PriorityHigh)
	}
}

// DecisionIdle builds an idle hook that asks a decision provider for a
// direction when the book is flat and feeds the answer back through the
// engine as a synthetic signal. Positions opened this way obey the same
// admission and sizing rules as mirrored ones.
func DecisionIdle(e *Engine, provider decide.Provider, symbol string, log *slog.Logger) IdleFunc {
	if log == nil {
		log = slog.Default()
	}
	return func(ctx context.Context) {
		if !e.Flat() {
			return
		}
		decision, err := provider.Decide(ctx)
		if err != nil {
			log.Warn("idle decision failed", "symbol", symbol, "error", err)
			return
		}
		action := domain.ActionBuy
		if decision.Direction == decide.Short {
			action = domain.ActionShort
		}
		log.Info("idle decision",
			"symbol", symbol, "direction", string(decision.Direction), "reason", decision.Reason)
		sig := &domain.Signal{
			Action: action,
			Symbol: symbol,
			ID:     "decision-" + uuid.NewString(),
		}
		if err := e.ProcessSignal(ctx, sig); err != nil {
			log.Error("idle decision processing fault", "symbol", symbol, "error", err)
		}
	}
}
