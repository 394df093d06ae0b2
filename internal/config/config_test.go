package config

import (
	"os"
	"strings"
	"testing"
)

func writeTempConfig(t *testing.T, content string) string {
	t.Helper()
	tmpFile, err := os.CreateTemp("", "mirrortrade-config-*.yaml")
	if err != nil {
		t.Fatalf("failed to create temp file: %v", err)
	}
	t.Cleanup(func() { os.Remove(tmpFile.Name()) })

	if _, err := tmpFile.Write([]byte(content)); err != nil {
		t.Fatalf("failed to write temp file: %v", err)
	}
	if err := tmpFile.Close(); err != nil {
		t.Fatalf("failed to close temp file: %v", err)
	}
	return tmpFile.Name()
}

func clearEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{
		"ALPACA_API_KEY", "ALPACA_API_SECRET", "APCA_API_KEY_ID", "APCA_API_SECRET_KEY",
		"FUTURES_API_KEY", "FUTURES_API_SECRET", "SIGNAL_FEED_URL", "ROBOT_NAME",
		"PROWL_API_KEY", "TELEGRAM_BOT_TOKEN", "TELEGRAM_CHAT_ID", "XAI_API_KEY",
		"JOURNAL_PATH", "LOG_LEVEL",
	} {
		os.Unsetenv(key)
	}
}

const validYAML = `
storage:
  journal_path: "/tmp/mirrortrade/journal.db"
alpaca:
  api_key: "test-key"
  api_secret: "test-secret"
  base_url: "https://paper-api.alpaca.markets"
  data_url: "https://data.alpaca.markets"
futures:
  api_key: "fut-key"
  api_secret: "fut-secret"
  base_url: "https://fapi.example.com"
  symbols: ["ETHUSDT", "XRPUSDT"]
trading:
  max_concurrent_symbols: 2
  invest_fraction: 0.06
  leverage: 10
  short_enabled: true
  poll_interval_ms: 5000
  take_profit_pct: 0.005
  stop_loss_pct: 0.003
  slippage_pct: 0.05
  min_notional: 10
signals:
  feed_url: "http://localhost:9000/messages"
  robot_name: "Swing trader TSM"
  freshness_secs: 120
  max_messages: 10
notify:
  prowl_api_key: "prowl-key"
  prowl_app: "mirrortrade"
logging:
  level: "info"
  format: "json"
`

func TestLoadDefaults(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, validYAML)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Storage.JournalPath != "/tmp/mirrortrade/journal.db" {
		t.Errorf("Storage.JournalPath = %q, want %q", cfg.Storage.JournalPath, "/tmp/mirrortrade/journal.db")
	}
	if cfg.Alpaca.APIKey != "test-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q", cfg.Alpaca.APIKey, "test-key")
	}
	if cfg.Futures.BaseURL != "https://fapi.example.com" {
		t.Errorf("Futures.BaseURL = %q, want %q", cfg.Futures.BaseURL, "https://fapi.example.com")
	}
	if len(cfg.Futures.Symbols) != 2 || cfg.Futures.Symbols[0] != "ETHUSDT" {
		t.Errorf("Futures.Symbols = %v, want [ETHUSDT XRPUSDT]", cfg.Futures.Symbols)
	}
	if cfg.Trading.MaxConcurrentSymbols != 2 {
		t.Errorf("Trading.MaxConcurrentSymbols = %d, want 2", cfg.Trading.MaxConcurrentSymbols)
	}
	if cfg.Trading.InvestFraction != 0.06 {
		t.Errorf("Trading.InvestFraction = %v, want 0.06", cfg.Trading.InvestFraction)
	}
	if !cfg.Trading.ShortEnabled {
		t.Error("Trading.ShortEnabled = false, want true")
	}
	if got := cfg.Trading.PollInterval().Milliseconds(); got != 5000 {
		t.Errorf("PollInterval = %dms, want 5000ms", got)
	}
	if got := cfg.Signals.Freshness().Seconds(); got != 120 {
		t.Errorf("Freshness = %vs, want 120s", got)
	}
	if cfg.Signals.RobotName != "Swing trader TSM" {
		t.Errorf("Signals.RobotName = %q, want %q", cfg.Signals.RobotName, "Swing trader TSM")
	}
	if cfg.Notify.ProwlAPIKey != "prowl-key" {
		t.Errorf("Notify.ProwlAPIKey = %q, want %q", cfg.Notify.ProwlAPIKey, "prowl-key")
	}
	if cfg.Logging.Level != "info" {
		t.Errorf("Logging.Level = %q, want %q", cfg.Logging.Level, "info")
	}
}

func TestLoadEnvOverrides(t *testing.T) {
	clearEnv(t)
	path := writeTempConfig(t, validYAML)

	os.Setenv("ALPACA_API_KEY", "env-key")
	os.Setenv("ROBOT_NAME", "Env Robot")
	os.Setenv("PROWL_API_KEY", "env-prowl")
	defer clearEnv(t)

	cfg, err := Load(path)
	if err != nil {
		t.Fatalf("Load() returned error: %v", err)
	}

	if cfg.Alpaca.APIKey != "env-key" {
		t.Errorf("Alpaca.APIKey = %q, want %q (env override)", cfg.Alpaca.APIKey, "env-key")
	}
	// api_secret should remain from YAML since no env override was set.
	if cfg.Alpaca.APISecret != "test-secret" {
		t.Errorf("Alpaca.APISecret = %q, want %q (from YAML)", cfg.Alpaca.APISecret, "test-secret")
	}
	if cfg.Signals.RobotName != "Env Robot" {
		t.Errorf("Signals.RobotName = %q, want %q (env override)", cfg.Signals.RobotName, "Env Robot")
	}
	if cfg.Notify.ProwlAPIKey != "env-prowl" {
		t.Errorf("Notify.ProwlAPIKey = %q, want %q (env override)", cfg.Notify.ProwlAPIKey, "env-prowl")
	}
}

func TestValidateRejectsBadParams(t *testing.T) {
	cases := []struct {
		name    string
		mutate  string
		wantSub string
	}{
		{
			name:    "zero max symbols",
			mutate:  "max_concurrent_symbols: 0",
			wantSub: "max_concurrent_symbols",
		},
		{
			name:    "fraction too large",
			mutate:  "invest_fraction: 1.5",
			wantSub: "invest_fraction",
		},
		{
			name:    "fraction times count exceeds one",
			mutate:  "invest_fraction: 0.6",
			wantSub: "must be < 1",
		},
		{
			name:    "zero leverage",
			mutate:  "leverage: 0",
			wantSub: "leverage",
		},
	}

	for _, tc := range cases {
		t.Run(tc.name, func(t *testing.T) {
			clearEnv(t)
			yaml := validYAML
			switch tc.mutate {
			case "max_concurrent_symbols: 0":
				yaml = strings.Replace(yaml, "max_concurrent_symbols: 2", tc.mutate, 1)
			case "invest_fraction: 1.5", "invest_fraction: 0.6":
				yaml = strings.Replace(yaml, "invest_fraction: 0.06", tc.mutate, 1)
			case "leverage: 0":
				yaml = strings.Replace(yaml, "leverage: 10", tc.mutate, 1)
			}
			path := writeTempConfig(t, yaml)

			_, err := Load(path)
			if err == nil {
				t.Fatal("Load() succeeded, want validation error")
			}
			if !strings.Contains(err.Error(), tc.wantSub) {
				t.Errorf("error %q does not mention %q", err.Error(), tc.wantSub)
			}
		})
	}
}
