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
	"mirrortrade/internal/decide"
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

	gw := broker.NewFuturesGateway(cfg.Futures.BaseURL, cfg.Futures.APIKey, cfg.Futures.APISecret)

	alloc := engine.NewAllocator(engine.ModeFutures,
		decimal.NewFromFloat(cfg.Trading.InvestFraction),
		decimal.NewFromFloat(cfg.Trading.MinNotional))

	policy := engine.Policy{
		MaxConcurrentSymbols: cfg.Trading.MaxConcurrentSymbols,
		Leverage:             int64(cfg.Trading.Leverage),
		ShortEnabled:         cfg.Trading.ShortEnabled,
		SlippagePct:          decimal.NewFromFloat(cfg.Trading.SlippagePct),
		TakeProfitPct:        decimal.NewFromFloat(cfg.Trading.TakeProfitPct),
		StopLossPct:          decimal.NewFromFloat(cfg.Trading.StopLossPct),
	}

	eng := engine.New(gw, ledger.New(), alloc, policy, notifier, recorder, logger)

	ctx, cancel := ossignal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	// Prime per-contract leverage once; a rejected change because the
	// value is already set is not an error.
	for _, symbol := range cfg.Futures.Symbols {
		if err := gw.SetLeverage(ctx, symbol, cfg.Trading.Leverage); err != nil {
			log.Fatalf("failed to set leverage for %s: %v", symbol, err)
		}
		logger.Info("leverage primed", "symbol", symbol, "leverage", cfg.Trading.Leverage)
	}

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

	var idle engine.IdleFunc
	if cfg.Decision.Enabled && len(cfg.Futures.Symbols) > 0 {
		provider := decide.NewLLMProvider(cfg.Decision.BaseURL, cfg.Decision.APIKey, cfg.Decision.Model)
		idle = engine.DecisionIdle(eng, provider, cfg.Futures.Symbols[0], logger)
		logger.Info("idle decision provider enabled",
			"model", cfg.Decision.Model, "symbol", cfg.Futures.Symbols[0])
	}

	logger.Info("mirror-futures starting", "broker", gw.Name(), "feed", cfg.Signals.FeedURL)

	loop := engine.NewLoop(eng, source, cfg.Trading.PollInterval(), idle, notifier, logger)
	if err := loop.Run(ctx); err != nil && ctx.Err() == nil {
		log.Fatalf("trading loop error: %v", err)
	}
}
