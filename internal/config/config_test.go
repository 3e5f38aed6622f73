package config

import (
	"testing"
	"time"

	"github.com/shopspring/decimal"
)

func TestLoad_Defaults(t *testing.T) {
	cfg, err := Load()
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if !cfg.GrowthThreshold.Equal(decimal.NewFromInt(5)) {
		t.Errorf("GrowthThreshold = %s, want 5", cfg.GrowthThreshold)
	}
	if cfg.SignalCooldown != 6*time.Hour {
		t.Errorf("SignalCooldown = %s, want 6h", cfg.SignalCooldown)
	}
}

func TestLoad_UnparsableDecimalIsFatal(t *testing.T) {
	t.Setenv("GROWTH_THRESHOLD_PCT", "5%%")

	if _, err := Load(); err == nil {
		t.Fatal("unparsable GROWTH_THRESHOLD_PCT must fail loading")
	}
}

func TestLoad_UnparsableDurationIsFatal(t *testing.T) {
	t.Setenv("SIGNAL_COOLDOWN", "six hours")

	if _, err := Load(); err == nil {
		t.Fatal("unparsable SIGNAL_COOLDOWN must fail loading")
	}
}

func TestLoad_NonPositiveCooldownIsFatal(t *testing.T) {
	t.Setenv("SIGNAL_COOLDOWN", "-1h")

	if _, err := Load(); err == nil {
		t.Fatal("non-positive SIGNAL_COOLDOWN must fail loading")
	}
}
