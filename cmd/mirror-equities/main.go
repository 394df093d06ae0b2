package main

import (
	"context"
	"log"
	"log/slog"
	"net/http"
	"os"
	ossignal "os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"mirrortrade/internal/broker"
	"mirrortrade/internal/config"
	"mirrortrade/internal/engine"
	"mirrortrade/internal/ledger"
	"mirrortrade/internal/metrics"
	"mirrortrade/internal/notify"
	"mirrortrade/internal/signal"
	"mirrortrade/internal/store"
	"mirrortrade/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/mirrortrade.yaml"
	if p := os.Getenv("MIRROR_CONFIG"); p != "" {
		cfgPath = p
	}

	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	slog.SetDefault(logger)

	var recorder engine.Recorder
	if cfg.Storage.JournalPath != "" {
		journal, err := store.NewJournal(cfg.Storage.JournalPath)
		if err != nil {
			log.Fatalf("failed to open journal: %v", err)
		}
		defer journal.Close()
		recorder = journal
	}

	var channels []notify.Notifier
	if cfg.Notify.ProwlAPIKey != "" {
		channels = append(channels, notify.NewProwlNotifier(cfg.Notify.ProwlAPIKey, cfg.Notify.ProwlApp))
	}
	if cfg.Notify.TelegramToken != "" {
		channels = append(channels, notify.NewTelegramNotifier(cfg.Notify.TelegramToken, cfg.Notify.TelegramChatID))
	}
	notifier := notify.NewMulti(channels...)

	gw := broker.NewAlpacaGateway(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.BaseURL, cfg.Alpaca.DataURL)

	alloc := engine.NewAllocator(engine.ModeEquities,
		decimal.NewFromFloat(cfg.Trading.InvestFraction),
		decimal.NewFromFloat(cfg.Trading.MinNotional))

	// Equities trade unleveraged market orders without bracket exits; the
	// mirrored closes are the exit.
	policy := engine.Policy{
		MaxConcurrentSymbols: cfg.Trading.MaxConcurrentSymbols,
		Leverage:             1,
		ShortEnabled:         cfg.Trading.ShortEnabled,
	}

	eng := engine.New(gw, ledger.New(), alloc, policy, notifier, recorder, logger)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := eng.Reconcile(ctx); err != nil {
		log.Fatalf("startup reconciliation failed: %v", err)
	}

	if cfg.Metrics.Addr != "" {
		go func() {
			mux := http.NewServeMux()
			mux.Handle("/metrics", metrics.Handler())
			if err := http.ListenAndServe(cfg.Metrics.Addr, mux); err != nil {
				logger.Error("metrics server stopped", "error", err)
			}
		}()
	}

	source := signal.NewFeedSource(
		cfg.Signals.FeedURL,
		signal.NewNormalizer(cfg.Signals.RobotName, cfg.Signals.SymbolMap),
		cfg.Signals.Freshness(),
		cfg.Signals.MaxMessages,
	)

	logger.Info("mirror-equities starting", "broker", gw.Name(), "feed", cfg.Signals.FeedURL)

	loop := engine.NewLoop(eng, source, cfg.Trading.PollInterval(), nil, notifier, logger)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("trading loop error: %v", err)
	}
}
