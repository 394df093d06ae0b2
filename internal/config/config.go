// Package config loads the YAML configuration file and applies environment
// variable overrides for credentials and paths.
package config

import (
	"fmt"
	"os"
	"time"

	"gopkg.in/yaml.v3"
)

// ---------------------------------------------------------------------------
// Configuration structs
// ---------------------------------------------------------------------------

// Config is the top-level configuration for the mirrortrade bots. It is read
// once at startup; there is no hot reload.
type Config struct {
	Storage  Storage        `yaml:"storage"`
	Alpaca   Alpaca         `yaml:"alpaca"`
	Futures  Futures        `yaml:"futures"`
	Trading  TradingConfig  `yaml:"trading"`
	Signals  SignalsConfig  `yaml:"signals"`
	Notify   NotifyConfig   `yaml:"notify"`
	Decision DecisionConfig `yaml:"decision"`
	Metrics  MetricsConfig  `yaml:"metrics"`
	Logging  Logging        `yaml:"logging"`
}

// Storage holds the path of the trade journal database.
type Storage struct {
	JournalPath string `yaml:"journal_path"`
}

// Alpaca holds credentials and endpoints for the Alpaca broker API.
type Alpaca struct {
	APIKey    string `yaml:"api_key"`
	APISecret string `yaml:"api_secret"`
	BaseURL   string `yaml:"base_url"`
	DataURL   string `yaml:"data_url"`
}

// Futures holds credentials and the endpoint for the USDT-margined
// perpetual-futures venue.
type Futures struct {
	APIKey    string   `yaml:"api_key"`
	APISecret string   `yaml:"api_secret"`
	BaseURL   string   `yaml:"base_url"`
	Symbols   []string `yaml:"symbols"` // contracts to prime leverage for at startup
}

// TradingConfig defines allocation, concurrency, and exit parameters.
type TradingConfig struct {
	MaxConcurrentSymbols int     `yaml:"max_concurrent_symbols"`
	InvestFraction       float64 `yaml:"invest_fraction"`
	Leverage             int     `yaml:"leverage"`
	ShortEnabled         bool    `yaml:"short_enabled"`
	PollIntervalMS       int     `yaml:"poll_interval_ms"`
	TakeProfitPct        float64 `yaml:"take_profit_pct"`
	StopLossPct          float64 `yaml:"stop_loss_pct"`
	SlippagePct          float64 `yaml:"slippage_pct"`
	MinNotional          float64 `yaml:"min_notional"`
}

// PollInterval returns the poll interval as a duration, defaulting to 5s
// when unset.
func (t TradingConfig) PollInterval() time.Duration {
	if t.PollIntervalMS <= 0 {
		return 5 * time.Second
	}
	return time.Duration(t.PollIntervalMS) * time.Millisecond
}

// SignalsConfig controls the inbound message feed and the normalizer.
type SignalsConfig struct {
	FeedURL       string `yaml:"feed_url"`
	RobotName     string `yaml:"robot_name"`
	FreshnessSecs int    `yaml:"freshness_secs"`
	MaxMessages   int    `yaml:"max_messages"`

	// SymbolMap translates the robot's asset names into venue symbols
	// (e.g. ETH.X -> ETHUSDT) and whitelists which assets are mirrored.
	// Empty means symbols pass through unmapped (equities).
	SymbolMap map[string]string `yaml:"symbol_map"`
}

// Freshness returns the message freshness window, defaulting to 120s.
func (s SignalsConfig) Freshness() time.Duration {
	if s.FreshnessSecs <= 0 {
		return 120 * time.Second
	}
	return time.Duration(s.FreshnessSecs) * time.Second
}

// NotifyConfig holds credentials for the outbound notification channels.
// Channels with empty credentials are skipped at wiring time.
type NotifyConfig struct {
	ProwlAPIKey    string `yaml:"prowl_api_key"`
	ProwlApp       string `yaml:"prowl_app"`
	TelegramToken  string `yaml:"telegram_token"`
	TelegramChatID string `yaml:"telegram_chat_id"`
}

// DecisionConfig configures the LLM decision provider used by the futures
// bot on idle cycles.
type DecisionConfig struct {
	Enabled bool   `yaml:"enabled"`
	BaseURL string `yaml:"base_url"`
	APIKey  string `yaml:"api_key"`
	Model   string `yaml:"model"`
}

// MetricsConfig configures the Prometheus exposition endpoint.
type MetricsConfig struct {
	Addr string `yaml:"addr"`
}

// Logging configures the application logger.
type Logging struct {
	Level  string `yaml:"level"`
	Format string `yaml:"format"`
}

// ---------------------------------------------------------------------------
// Loading
// ---------------------------------------------------------------------------

// Load reads the YAML configuration file at the given path, parses it into a
// Config struct, applies environment variable overrides, and validates it.
func Load(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}

	cfg := &Config{}
	if err := yaml.Unmarshal(data, cfg); err != nil {
		return nil, err
	}

	applyEnvOverrides(cfg)

	if err := cfg.Validate(); err != nil {
		return nil, err
	}

	return cfg, nil
}

// Validate checks that the trading parameters are internally consistent.
func (c *Config) Validate() error {
	t := c.Trading
	if t.MaxConcurrentSymbols < 1 {
		return fmt.Errorf("trading.max_concurrent_symbols must be >= 1, got %d", t.MaxConcurrentSymbols)
	}
	if t.InvestFraction <= 0 || t.InvestFraction >= 1 {
		return fmt.Errorf("trading.invest_fraction must be in (0, 1), got %v", t.InvestFraction)
	}
	// The futures rebalancing formula divides by 1 - fraction*count; the
	// denominator must stay positive for every reachable position count.
	if t.InvestFraction*float64(t.MaxConcurrentSymbols) >= 1 {
		return fmt.Errorf("trading.invest_fraction (%v) * max_concurrent_symbols (%d) must be < 1",
			t.InvestFraction, t.MaxConcurrentSymbols)
	}
	if t.Leverage < 1 {
		return fmt.Errorf("trading.leverage must be >= 1, got %d", t.Leverage)
	}
	if t.TakeProfitPct < 0 || t.StopLossPct < 0 {
		return fmt.Errorf("trading.take_profit_pct and stop_loss_pct must be >= 0")
	}
	return nil
}

// applyEnvOverrides checks well-known environment variables and overrides the
// corresponding configuration fields when they are set.
func applyEnvOverrides(cfg *Config) {
	if v := os.Getenv("JOURNAL_PATH"); v != "" {
		cfg.Storage.JournalPath = v
	}

	if v := os.Getenv("ALPACA_API_KEY"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("ALPACA_API_SECRET"); v != "" {
		cfg.Alpaca.APISecret = v
	}
	if v := os.Getenv("ALPACA_BASE_URL"); v != "" {
		cfg.Alpaca.BaseURL = v
	}
	if v := os.Getenv("ALPACA_DATA_URL"); v != "" {
		cfg.Alpaca.DataURL = v
	}

	if v := os.Getenv("FUTURES_API_KEY"); v != "" {
		cfg.Futures.APIKey = v
	}
	if v := os.Getenv("FUTURES_API_SECRET"); v != "" {
		cfg.Futures.APISecret = v
	}
	if v := os.Getenv("FUTURES_BASE_URL"); v != "" {
		cfg.Futures.BaseURL = v
	}

	if v := os.Getenv("SIGNAL_FEED_URL"); v != "" {
		cfg.Signals.FeedURL = v
	}
	if v := os.Getenv("ROBOT_NAME"); v != "" {
		cfg.Signals.RobotName = v
	}

	if v := os.Getenv("PROWL_API_KEY"); v != "" {
		cfg.Notify.ProwlAPIKey = v
	}
	if v := os.Getenv("TELEGRAM_BOT_TOKEN"); v != "" {
		cfg.Notify.TelegramToken = v
	}
	if v := os.Getenv("TELEGRAM_CHAT_ID"); v != "" {
		cfg.Notify.TelegramChatID = v
	}

	if v := os.Getenv("XAI_API_KEY"); v != "" {
		cfg.Decision.APIKey = v
	}

	if v := os.Getenv("LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}

	// Standard Alpaca env vars (highest priority — canonical names used by SDK).
	if v := os.Getenv("APCA_API_KEY_ID"); v != "" {
		cfg.Alpaca.APIKey = v
	}
	if v := os.Getenv("APCA_API_SECRET_KEY"); v != "" {
		cfg.Alpaca.APISecret = v
	}
}
