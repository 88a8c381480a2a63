// Package config provides configuration management for the trading application.
package config

import (
	"fmt"
	"os"
	"path/filepath"
	"strconv"
	"time"

	"github.com/joho/godotenv"
	"github.com/spf13/viper"

	apperrors "spx-orb-trader/internal/errors"
)

// Config holds all application configuration.
type Config struct {
	Trading       TradingConfig      `mapstructure:"trading"`
	Risk          RiskConfig         `mapstructure:"risk"`
	Session       SessionConfig      `mapstructure:"session"`
	Storage       StorageConfig      `mapstructure:"storage"`
	Notifications NotificationConfig `mapstructure:"notifications"`
	Metrics       MetricsConfig      `mapstructure:"metrics"`
	Schedule      ScheduleConfig     `mapstructure:"schedule"`
	Archive       ArchiveConfig      `mapstructure:"archive"`
	Credentials   Credentials        `mapstructure:"-"` // Loaded separately
}

// TradingConfig holds strategy and order-flow configuration.
type TradingConfig struct {
	Mode               string        `mapstructure:"mode"`         // "live", "paper"
	IndexSymbol        string        `mapstructure:"index_symbol"` // "$SPX"
	OptionRoot         string        `mapstructure:"option_root"`  // "SPXW"
	SpreadWidth        float64       `mapstructure:"spread_width"`
	MinNetCredit       float64       `mapstructure:"min_net_credit"`
	SlippageBuffer     float64       `mapstructure:"slippage_buffer"`
	QuotePollInterval  time.Duration `mapstructure:"quote_poll_interval"`
	DryRun             bool          `mapstructure:"dry_run"`
	LiveTradingEnabled bool          `mapstructure:"live_trading_enabled"`
}

// RiskConfig holds position sizing configuration.
type RiskConfig struct {
	DailyRiskFraction float64 `mapstructure:"daily_risk_fraction"`
	MinContracts      int     `mapstructure:"min_contracts"`
	MaxContracts      int     `mapstructure:"max_contracts"`
}

// SessionConfig holds the exchange session timeline. Times are local to
// the exchange timezone in "HH:MM" form.
type SessionConfig struct {
	Timezone      string `mapstructure:"timezone"`
	MarketOpen    string `mapstructure:"market_open"`
	RangeClose    string `mapstructure:"range_close"`
	EntryDeadline string `mapstructure:"entry_deadline"`
	MarketClose   string `mapstructure:"market_close"`
}

// StorageConfig holds journal and database locations.
type StorageConfig struct {
	DatabasePath string `mapstructure:"database_path"`
	JournalPath  string `mapstructure:"journal_path"`
}

// NotificationConfig holds notification configuration.
type NotificationConfig struct {
	Enabled bool          `mapstructure:"enabled"`
	Level   string        `mapstructure:"level"` // all, trades_only, errors_only
	Webhook WebhookConfig `mapstructure:"webhook"`
	Email   EmailConfig   `mapstructure:"email"`
}

// WebhookConfig holds webhook notification configuration.
type WebhookConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	URL     string `mapstructure:"url"`
}

// EmailConfig holds email notification configuration.
type EmailConfig struct {
	Enabled  bool   `mapstructure:"enabled"`
	SMTPHost string `mapstructure:"smtp_host"`
	SMTPPort int    `mapstructure:"smtp_port"`
	Username string `mapstructure:"username"`
	Password string `mapstructure:"password"`
	From     string `mapstructure:"from"`
	To       string `mapstructure:"to"`
}

// MetricsConfig holds Prometheus exposition configuration.
type MetricsConfig struct {
	Enabled    bool   `mapstructure:"enabled"`
	ListenAddr string `mapstructure:"listen_addr"`
}

// ScheduleConfig holds daemon-mode cron expressions (with seconds field).
type ScheduleConfig struct {
	RunAt    string `mapstructure:"run_at"`
	SettleAt string `mapstructure:"settle_at"`
}

// ArchiveConfig holds S3 archive configuration.
type ArchiveConfig struct {
	Enabled bool   `mapstructure:"enabled"`
	Bucket  string `mapstructure:"bucket"`
	Region  string `mapstructure:"region"`
	Prefix  string `mapstructure:"prefix"`
}

// Credentials holds API credentials.
type Credentials struct {
	Schwab SchwabCredentials `mapstructure:"schwab"`
}

// SchwabCredentials holds Schwab API credentials.
type SchwabCredentials struct {
	AppKey      string `mapstructure:"app_key"`
	AppSecret   string `mapstructure:"app_secret"`
	RedirectURI string `mapstructure:"redirect_uri"`
	TokenPath   string `mapstructure:"token_path"`
}

// DefaultConfigDir returns the default configuration directory.
func DefaultConfigDir() string {
	home, err := os.UserHomeDir()
	if err != nil {
		return ".config/orb-trader"
	}
	return filepath.Join(home, ".config", "orb-trader")
}

// Load loads configuration from the specified directory.
// If configDir is empty, uses the default config directory.
func Load(configDir string) (*Config, error) {
	if configDir == "" {
		configDir = DefaultConfigDir()
	}

	_ = godotenv.Load()

	cfg := &Config{}

	// Load main config
	if err := loadConfigFile(configDir, cfg); err != nil {
		return nil, fmt.Errorf("loading config.toml: %w", err)
	}

	// Load credentials
	if err := loadCredentials(configDir, &cfg.Credentials); err != nil {
		return nil, fmt.Errorf("loading credentials.toml: %w", err)
	}

	// Placeholder credentials from the template count as absent.
	if cfg.Credentials.Schwab.AppKey == "YOUR_APP_KEY" {
		cfg.Credentials.Schwab.AppKey = ""
		cfg.Credentials.Schwab.AppSecret = ""
	}

	// Apply environment variable overrides
	applyEnvOverrides(cfg)

	applyPathDefaults(cfg, configDir)

	// Validate configuration
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("validating config: %w", err)
	}

	return cfg, nil
}

func loadConfigFile(configDir string, target *Config) error {
	v := viper.New()
	v.SetConfigName("config")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	setDefaults(v)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			// Config file not found, create template
			return createTemplateConfig(configDir)
		}
		return err
	}

	return v.Unmarshal(target)
}

func setDefaults(v *viper.Viper) {
	v.SetDefault("trading.mode", "live")
	v.SetDefault("trading.index_symbol", "$SPX")
	v.SetDefault("trading.option_root", "SPXW")
	v.SetDefault("trading.spread_width", 10.0)
	v.SetDefault("trading.min_net_credit", 4.60)
	v.SetDefault("trading.slippage_buffer", 0.10)
	v.SetDefault("trading.quote_poll_interval", "10s")
	v.SetDefault("trading.dry_run", true)
	v.SetDefault("trading.live_trading_enabled", false)

	v.SetDefault("risk.daily_risk_fraction", 0.05)
	v.SetDefault("risk.min_contracts", 1)
	v.SetDefault("risk.max_contracts", 50)

	v.SetDefault("session.timezone", "America/New_York")
	v.SetDefault("session.market_open", "09:30")
	v.SetDefault("session.range_close", "10:00")
	v.SetDefault("session.entry_deadline", "12:00")
	v.SetDefault("session.market_close", "16:00")

	v.SetDefault("notifications.level", "all")
	v.SetDefault("notifications.email.smtp_port", 587)

	v.SetDefault("metrics.listen_addr", ":9105")

	v.SetDefault("schedule.run_at", "0 28 9 * * MON-FRI")
	v.SetDefault("schedule.settle_at", "0 15 16 * * MON-FRI")
}

func loadCredentials(configDir string, creds *Credentials) error {
	v := viper.New()
	v.SetConfigName("credentials")
	v.SetConfigType("toml")
	v.AddConfigPath(configDir)

	if err := v.ReadInConfig(); err != nil {
		if _, ok := err.(viper.ConfigFileNotFoundError); ok {
			return createTemplateCredentials(configDir)
		}
		return err
	}

	return v.Unmarshal(creds)
}

func applyEnvOverrides(cfg *Config) {
	// Schwab credentials
	if v := os.Getenv("SCHWAB_APP_KEY"); v != "" {
		cfg.Credentials.Schwab.AppKey = v
	}
	if v := os.Getenv("SCHWAB_APP_SECRET"); v != "" {
		cfg.Credentials.Schwab.AppSecret = v
	}
	if v := os.Getenv("SCHWAB_TOKEN_PATH"); v != "" {
		cfg.Credentials.Schwab.TokenPath = v
	}

	// Risk and safety knobs, legacy env names
	if v := os.Getenv("DAILY_RISK_PCT"); v != "" {
		if f, err := strconv.ParseFloat(v, 64); err == nil {
			cfg.Risk.DailyRiskFraction = f
		}
	}
	if v := os.Getenv("DRY_RUN"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.DryRun = b
		}
	}
	if v := os.Getenv("ENABLE_LIVE_TRADING"); v != "" {
		if b, err := strconv.ParseBool(v); err == nil {
			cfg.Trading.LiveTradingEnabled = b
		}
	}
	if v := os.Getenv("TRADING_MODE"); v != "" {
		cfg.Trading.Mode = v
	}
}

func applyPathDefaults(cfg *Config, configDir string) {
	if cfg.Storage.DatabasePath == "" {
		cfg.Storage.DatabasePath = filepath.Join(configDir, "orb-trader.db")
	}
	if cfg.Storage.JournalPath == "" {
		cfg.Storage.JournalPath = filepath.Join(configDir, "trades.csv")
	}
	if cfg.Credentials.Schwab.TokenPath == "" {
		cfg.Credentials.Schwab.TokenPath = filepath.Join(configDir, "tokens.json")
	}
}

// Validate validates the configuration. Any violation here is fatal at
// startup: the trading day must not run with inconsistent constants.
func (c *Config) Validate() error {
	if c.Trading.Mode != "" && c.Trading.Mode != "live" && c.Trading.Mode != "paper" {
		return apperrors.NewValidationError("trading.mode", c.Trading.Mode, "must be 'live' or 'paper'")
	}
	if c.Trading.SpreadWidth <= 0 {
		return apperrors.NewValidationError("trading.spread_width", c.Trading.SpreadWidth, "must be positive")
	}
	if c.Trading.MinNetCredit <= 0 {
		return apperrors.NewValidationError("trading.min_net_credit", c.Trading.MinNetCredit, "must be positive")
	}
	// A credit threshold at or above the width would make max loss
	// non-positive and the sizing formula meaningless.
	if c.Trading.MinNetCredit >= c.Trading.SpreadWidth {
		return apperrors.NewValidationError("trading.min_net_credit", c.Trading.MinNetCredit, "must be below spread_width")
	}
	if c.Trading.SlippageBuffer < 0 {
		return apperrors.NewValidationError("trading.slippage_buffer", c.Trading.SlippageBuffer, "must be non-negative")
	}
	if c.Trading.QuotePollInterval <= 0 {
		return apperrors.NewValidationError("trading.quote_poll_interval", c.Trading.QuotePollInterval, "must be positive")
	}

	if c.Risk.DailyRiskFraction <= 0 || c.Risk.DailyRiskFraction > 1 {
		return apperrors.NewValidationError("risk.daily_risk_fraction", c.Risk.DailyRiskFraction, "must be in (0, 1]")
	}
	if c.Risk.MinContracts < 1 {
		return apperrors.NewValidationError("risk.min_contracts", c.Risk.MinContracts, "must be at least 1")
	}
	if c.Risk.MaxContracts < c.Risk.MinContracts {
		return apperrors.NewValidationError("risk.max_contracts", c.Risk.MaxContracts, "must be >= min_contracts")
	}

	if _, err := time.LoadLocation(c.Session.Timezone); err != nil {
		return apperrors.NewValidationError("session.timezone", c.Session.Timezone, "unknown timezone")
	}
	times := []struct {
		field string
		value string
	}{
		{"session.market_open", c.Session.MarketOpen},
		{"session.range_close", c.Session.RangeClose},
		{"session.entry_deadline", c.Session.EntryDeadline},
		{"session.market_close", c.Session.MarketClose},
	}
	var minutes [4]int
	for i, tv := range times {
		t, err := time.Parse("15:04", tv.value)
		if err != nil {
			return apperrors.NewValidationError(tv.field, tv.value, "must be HH:MM")
		}
		minutes[i] = t.Hour()*60 + t.Minute()
	}
	for i := 1; i < len(minutes); i++ {
		if minutes[i] <= minutes[i-1] {
			return apperrors.NewValidationError(times[i].field, times[i].value, "session times must be strictly increasing")
		}
	}

	if c.Notifications.Level != "" {
		switch c.Notifications.Level {
		case "all", "trades_only", "errors_only":
		default:
			return apperrors.NewValidationError("notifications.level", c.Notifications.Level, "must be all, trades_only or errors_only")
		}
	}

	if c.Archive.Enabled && c.Archive.Bucket == "" {
		return apperrors.NewValidationError("archive.bucket", "", "required when archive is enabled")
	}

	return nil
}

// IsPaperMode returns true if paper trading mode is enabled.
func (c *Config) IsPaperMode() bool {
	return c.Trading.Mode == "paper"
}

// OrdersAreLive reports whether real orders would reach the brokerage.
func (c *Config) OrdersAreLive() bool {
	return !c.IsPaperMode() && !c.Trading.DryRun && c.Trading.LiveTradingEnabled
}
