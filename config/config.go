// Package config loads the immutable run configuration. A RunConfig is
// built once at startup from an optional YAML file plus environment
// overrides, validated before any network call, and passed explicitly into
// the orchestrator. Nothing in the engine reads ambient process state.
package config

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"gopkg.in/yaml.v3"

	"portfolio-rebalancer/internal/model"
	"portfolio-rebalancer/internal/pricing"
	"portfolio-rebalancer/internal/tradingday"
)

// BrokerConfig holds broker gateway connection settings. Secrets come from
// the environment, never from the YAML file.
type BrokerConfig struct {
	BaseURL    string `yaml:"base_url"`
	WSURL      string `yaml:"ws_url"`
	ClientID   string `yaml:"client_id"`
	APIKey     string `yaml:"-"` // BROKER_API_KEY
	Password   string `yaml:"-"` // BROKER_PASSWORD
	TOTPSecret string `yaml:"-"` // BROKER_TOTP_SECRET
	Simulated  bool   `yaml:"simulated"`
}

// RedisConfig holds the optional fast report-cache layer settings.
type RedisConfig struct {
	Enabled  bool   `yaml:"enabled"`
	Addr     string `yaml:"addr"`
	Password string `yaml:"-"` // REDIS_PASSWORD
	DB       int    `yaml:"db"`
}

// NotifyConfig selects the fatal-alert channel.
type NotifyConfig struct {
	TelegramChatID string `yaml:"telegram_chat_id"`
	TelegramToken  string `yaml:"-"` // TELEGRAM_BOT_TOKEN
	WebhookURL     string `yaml:"webhook_url"`
}

// StrategyConfig selects the engine producing the daily target book.
type StrategyConfig struct {
	ID      string            `yaml:"id"`
	Targets map[string]string `yaml:"targets"` // stock id -> round-lot quantity, fixed-weight engine only
}

// TradingConfig holds order construction tunables.
type TradingConfig struct {
	LotSize        int      `yaml:"lot_size"`        // shares per round lot
	OddLotBook     bool     `yaml:"odd_lot_book"`    // venue has a separate odd-lot book
	Epsilon        string   `yaml:"epsilon"`         // |delta| below this is a no-op
	ExtraBidPct    string   `yaml:"extra_bid_pct"`   // [-0.1, 0.1]
	ExecutionStyle string   `yaml:"execution_style"` // MARKET_AGGRESSIVE | MARKET_PASSIVE | LIMIT
	OrderCondition string   `yaml:"order_condition"` // CASH | MARGIN_TRADING | ...
	Holidays       []string `yaml:"holidays"`        // exchange holidays, "YYYY-MM-DD"
}

// RunConfig is the full, immutable configuration of one rebalance run.
type RunConfig struct {
	AccountID   string         `yaml:"account_id"`
	AccountName string         `yaml:"account_name"`
	Owner       string         `yaml:"owner"`
	SQLitePath  string         `yaml:"sqlite_path"`
	MetricsAddr string         `yaml:"metrics_addr"`
	Broker      BrokerConfig   `yaml:"broker"`
	Redis       RedisConfig    `yaml:"redis"`
	Notify      NotifyConfig   `yaml:"notify"`
	Strategy    StrategyConfig `yaml:"strategy"`
	Trading     TradingConfig  `yaml:"trading"`
}

// Load builds a RunConfig from the YAML file at path (optional, "" skips),
// environment overrides, and defaults. The result is validated.
func Load(path string) (RunConfig, error) {
	cfg := RunConfig{
		SQLitePath:  "data/rebalancer.db",
		MetricsAddr: ":9090",
		Redis:       RedisConfig{Addr: "localhost:6379"},
		Strategy:    StrategyConfig{ID: "fixed-weight"},
		Trading: TradingConfig{
			LotSize:        1000,
			OddLotBook:     true,
			Epsilon:        "0.0001",
			ExtraBidPct:    "0",
			ExecutionStyle: string(pricing.StyleLimit),
			OrderCondition: string(model.ConditionCash),
		},
	}

	if path != "" {
		raw, err := os.ReadFile(path)
		if err != nil {
			return RunConfig{}, fmt.Errorf("config read %s: %w", path, err)
		}
		if err := yaml.Unmarshal(raw, &cfg); err != nil {
			return RunConfig{}, fmt.Errorf("config parse %s: %w", path, err)
		}
	}

	cfg.Broker.APIKey = getEnv("BROKER_API_KEY", cfg.Broker.APIKey)
	cfg.Broker.Password = getEnv("BROKER_PASSWORD", cfg.Broker.Password)
	cfg.Broker.TOTPSecret = getEnv("BROKER_TOTP_SECRET", cfg.Broker.TOTPSecret)
	cfg.Redis.Password = getEnv("REDIS_PASSWORD", cfg.Redis.Password)
	cfg.Notify.TelegramToken = getEnv("TELEGRAM_BOT_TOKEN", cfg.Notify.TelegramToken)
	cfg.SQLitePath = getEnv("SQLITE_PATH", cfg.SQLitePath)

	if err := cfg.Validate(); err != nil {
		return RunConfig{}, err
	}
	return cfg, nil
}

// Validate fails fast on configuration errors, before any network call.
func (c RunConfig) Validate() error {
	if c.AccountID == "" {
		return fmt.Errorf("config: account_id is required")
	}
	if c.SQLitePath == "" {
		return fmt.Errorf("config: sqlite_path is required")
	}
	if c.Trading.LotSize <= 0 {
		return fmt.Errorf("config: lot_size must be positive, got %d", c.Trading.LotSize)
	}

	pct, err := c.ExtraBidPct()
	if err != nil {
		return err
	}
	maxPct := decimal.RequireFromString("0.1")
	if pct.Abs().Cmp(maxPct) > 0 {
		return fmt.Errorf("config: extra_bid_pct %s outside [-0.1, 0.1]", pct)
	}

	style := pricing.ExecutionStyle(c.Trading.ExecutionStyle)
	switch style {
	case pricing.StyleLimit, pricing.StyleMarketAggressive, pricing.StyleMarketPassive:
	default:
		return fmt.Errorf("config: unknown execution_style %q", c.Trading.ExecutionStyle)
	}
	if style != pricing.StyleLimit && !pct.IsZero() {
		return fmt.Errorf("config: execution_style %s cannot be combined with extra_bid_pct %s", style, pct)
	}

	switch model.OrderCondition(c.Trading.OrderCondition) {
	case model.ConditionCash, model.ConditionMarginTrading, model.ConditionShortSelling,
		model.ConditionDayTradeLong, model.ConditionDayTradeShort:
	default:
		return fmt.Errorf("config: unknown order_condition %q", c.Trading.OrderCondition)
	}

	if _, err := decimal.NewFromString(c.Trading.Epsilon); err != nil {
		return fmt.Errorf("config: bad epsilon %q: %w", c.Trading.Epsilon, err)
	}
	if !c.Broker.Simulated && c.Broker.BaseURL == "" {
		return fmt.Errorf("config: broker.base_url is required unless broker.simulated is set")
	}
	if c.Strategy.ID == "" {
		return fmt.Errorf("config: strategy.id is required")
	}
	for _, h := range c.Trading.Holidays {
		if _, err := tradingday.ParseDay(h); err != nil {
			return fmt.Errorf("config: bad holiday %q: %w", h, err)
		}
	}
	if _, err := c.TargetBook(); err != nil {
		return err
	}
	return nil
}

// TargetBook parses the configured fixed-weight targets.
func (c RunConfig) TargetBook() (map[string]decimal.Decimal, error) {
	book := make(map[string]decimal.Decimal, len(c.Strategy.Targets))
	for id, raw := range c.Strategy.Targets {
		qty, err := decimal.NewFromString(raw)
		if err != nil {
			return nil, fmt.Errorf("config: bad target quantity %q for %s: %w", raw, id, err)
		}
		book[id] = qty
	}
	return book, nil
}

// ExtraBidPct parses the configured extra bid fraction.
func (c RunConfig) ExtraBidPct() (decimal.Decimal, error) {
	pct, err := decimal.NewFromString(c.Trading.ExtraBidPct)
	if err != nil {
		return decimal.Decimal{}, fmt.Errorf("config: bad extra_bid_pct %q: %w", c.Trading.ExtraBidPct, err)
	}
	return pct, nil
}

// Epsilon parses the configured diff epsilon.
func (c RunConfig) Epsilon() decimal.Decimal {
	eps, err := decimal.NewFromString(c.Trading.Epsilon)
	if err != nil {
		return decimal.Zero
	}
	return eps
}

// Account returns the account row this config manages.
func (c RunConfig) Account() model.Account {
	name := c.AccountName
	if name == "" {
		name = c.AccountID
	}
	broker := "simulated"
	if !c.Broker.Simulated {
		broker = c.Broker.BaseURL
	}
	return model.Account{ID: c.AccountID, Name: name, Broker: broker, Owner: c.Owner}
}

func getEnv(key, fallback string) string {
	if v := os.Getenv(key); v != "" {
		return v
	}
	return fallback
}
