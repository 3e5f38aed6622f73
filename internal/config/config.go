package config

import (
	"fmt"
	"os"
	"strconv"
	"time"

	"github.com/shopspring/decimal"
)

// Config holds all configuration for the bot.
type Config struct {
	// Exchange
	RestURL   string
	StreamURL string
	APIKey    string
	APISecret string

	// Trading
	TradingAsset  string
	CheapCeiling  decimal.Decimal // max price for a pair to count as cheap
	DustThreshold decimal.Decimal // balances below this are ignored at reconcile
	DryRun        bool
	Debug         bool

	// Growth strategy
	GrowthEnabled        bool
	GrowthThreshold      decimal.Decimal
	RocketThreshold      decimal.Decimal
	PriceDecreaseFactor  decimal.Decimal
	RocketDecreaseFactor decimal.Decimal
	MonitoringWindow     time.Duration
	PositionBudget       decimal.Decimal
	SignalCooldown       time.Duration

	// Scheduling
	ScanInterval     time.Duration
	RefreshInterval  time.Duration // cheap-pairs recomputation
	SnapshotInterval time.Duration

	// Telegram
	TelegramToken  string
	TelegramChatID int64

	// Database
	DatabasePath string
}

// Load reads configuration from environment variables. Unset variables
// fall back to defaults, but a set variable that does not parse is a
// configuration error, fatal at startup.
func Load() (*Config, error) {
	cfg := &Config{
		RestURL:   getEnv("EXCHANGE_REST_URL", "https://api.binance.com"),
		StreamURL: getEnv("EXCHANGE_STREAM_URL", "wss://stream.binance.com:9443/ws"),
		APIKey:    os.Getenv("EXCHANGE_API_KEY"),
		APISecret: os.Getenv("EXCHANGE_API_SECRET"),

		TradingAsset: getEnv("TRADING_ASSET", "USDT"),
		DryRun:       getEnvBool("DRY_RUN", true),
		Debug:        getEnvBool("DEBUG", false),

		GrowthEnabled: getEnvBool("GROWTH_ENABLED", true),

		TelegramToken: os.Getenv("TELEGRAM_BOT_TOKEN"),

		DatabasePath: getEnv("DATABASE_PATH", "data/spotbot.db"),
	}

	var err error
	if cfg.CheapCeiling, err = getEnvDecimal("CHEAP_PRICE_CEILING", decimal.NewFromInt(1)); err != nil {
		return nil, err
	}
	if cfg.DustThreshold, err = getEnvDecimal("DUST_THRESHOLD", decimal.NewFromFloat(0.001)); err != nil {
		return nil, err
	}
	if cfg.GrowthThreshold, err = getEnvDecimal("GROWTH_THRESHOLD_PCT", decimal.NewFromInt(5)); err != nil {
		return nil, err
	}
	if cfg.RocketThreshold, err = getEnvDecimal("ROCKET_THRESHOLD_PCT", decimal.NewFromInt(12)); err != nil {
		return nil, err
	}
	if cfg.PriceDecreaseFactor, err = getEnvDecimal("PRICE_DECREASE_FACTOR", decimal.NewFromFloat(0.05)); err != nil {
		return nil, err
	}
	if cfg.RocketDecreaseFactor, err = getEnvDecimal("ROCKET_DECREASE_FACTOR", decimal.NewFromFloat(0.10)); err != nil {
		return nil, err
	}
	if cfg.PositionBudget, err = getEnvDecimal("POSITION_BUDGET", decimal.NewFromInt(50)); err != nil {
		return nil, err
	}
	if cfg.MonitoringWindow, err = getEnvDuration("MONITORING_WINDOW", time.Hour); err != nil {
		return nil, err
	}
	if cfg.SignalCooldown, err = getEnvDuration("SIGNAL_COOLDOWN", 6*time.Hour); err != nil {
		return nil, err
	}
	if cfg.ScanInterval, err = getEnvDuration("SCAN_INTERVAL", time.Minute); err != nil {
		return nil, err
	}
	if cfg.RefreshInterval, err = getEnvDuration("REFRESH_INTERVAL", 15*time.Minute); err != nil {
		return nil, err
	}
	if cfg.SnapshotInterval, err = getEnvDuration("SNAPSHOT_INTERVAL", 5*time.Minute); err != nil {
		return nil, err
	}

	if chatID := os.Getenv("TELEGRAM_CHAT_ID"); chatID != "" {
		id, err := strconv.ParseInt(chatID, 10, 64)
		if err != nil {
			return nil, fmt.Errorf("invalid TELEGRAM_CHAT_ID: %w", err)
		}
		cfg.TelegramChatID = id
	}

	// Broken decision parameters are configuration errors, fatal at startup.
	if cfg.SignalCooldown <= 0 {
		return nil, fmt.Errorf("SIGNAL_COOLDOWN must be positive, got %s", cfg.SignalCooldown)
	}
	if cfg.MonitoringWindow <= 0 {
		return nil, fmt.Errorf("MONITORING_WINDOW must be positive, got %s", cfg.MonitoringWindow)
	}
	if !cfg.CheapCeiling.IsPositive() {
		return nil, fmt.Errorf("CHEAP_PRICE_CEILING must be positive, got %s", cfg.CheapCeiling)
	}
	if cfg.GrowthEnabled && !cfg.GrowthThreshold.IsPositive() {
		return nil, fmt.Errorf("GROWTH_THRESHOLD_PCT must be positive, got %s", cfg.GrowthThreshold)
	}
	if cfg.PriceDecreaseFactor.IsNegative() || cfg.PriceDecreaseFactor.GreaterThanOrEqual(decimal.NewFromInt(1)) {
		return nil, fmt.Errorf("PRICE_DECREASE_FACTOR must be in [0,1), got %s", cfg.PriceDecreaseFactor)
	}

	return cfg, nil
}

// Helper functions

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		return value == "true" || value == "1" || value == "yes"
	}
	return defaultValue
}

func getEnvDuration(key string, defaultValue time.Duration) (time.Duration, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := time.ParseDuration(value)
	if err != nil {
		return 0, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}

func getEnvDecimal(key string, defaultValue decimal.Decimal) (decimal.Decimal, error) {
	value := os.Getenv(key)
	if value == "" {
		return defaultValue, nil
	}
	d, err := decimal.NewFromString(value)
	if err != nil {
		return decimal.Zero, fmt.Errorf("invalid %s %q: %w", key, value, err)
	}
	return d, nil
}
