package app

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spotbot/internal/config"
	"spotbot/internal/market"
	"spotbot/internal/model"
	"spotbot/internal/strategy"
)

type fakeExchange struct {
	pairs    []string
	pairsErr error
	prices   map[string]decimal.Decimal
	balances []model.Balance
	balsErr  error
}

func (f *fakeExchange) ListAvailablePairs(_ context.Context, _ string) ([]string, error) {
	return f.pairs, f.pairsErr
}

func (f *fakeExchange) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("no price")
	}
	return price, nil
}

func (f *fakeExchange) GetAccountBalances(_ context.Context) ([]model.Balance, error) {
	return f.balances, f.balsErr
}

func testCfg() *config.Config {
	return &config.Config{
		TradingAsset:        "USDT",
		CheapCeiling:        decimal.NewFromInt(1),
		DustThreshold:       decimal.NewFromFloat(0.001),
		PriceDecreaseFactor: decimal.NewFromFloat(0.05),
		SignalCooldown:      time.Hour,
		MonitoringWindow:    time.Hour,
	}
}

func TestInitializer_PopulatesCacheAndWarmsUpEnabled(t *testing.T) {
	exch := &fakeExchange{
		pairs: []string{"AAAUSDT", "BTCUSDT"},
		prices: map[string]decimal.Decimal{
			"AAAUSDT": decimal.NewFromFloat(0.5),
			"BTCUSDT": decimal.NewFromInt(50000),
		},
		balances: []model.Balance{{Asset: "BTC", Free: decimal.NewFromFloat(0.25)}},
	}
	cache := market.NewCache()
	enabled := &recordingStrategy{name: "growth", enabled: true}
	disabled := &recordingStrategy{name: "idle", enabled: false}

	init := NewInitializer(testCfg(), cache, exch, nil, []strategy.Strategy{enabled, disabled})
	if err := init.Run(context.Background()); err != nil {
		t.Fatalf("Run: %v", err)
	}

	if got := cache.AvailablePairs("USDT"); len(got) != 2 {
		t.Errorf("available pairs = %v", got)
	}
	if got := cache.CheapPairs("USDT"); len(got) != 1 || got[0] != "AAAUSDT" {
		t.Errorf("cheap pairs = %v, want [AAAUSDT]", got)
	}

	pos, ok := cache.Position("BTCUSDT")
	if !ok {
		t.Fatal("balance above dust must become a position")
	}
	if pos.Strategy != "growth" {
		t.Errorf("reconciled position owner = %q, want first enabled strategy", pos.Strategy)
	}

	if !enabled.prepared {
		t.Error("enabled strategy must be warmed up")
	}
	if disabled.prepared {
		t.Error("disabled strategy must never be warmed up")
	}
}

func TestInitializer_FailsWithoutPairUniverse(t *testing.T) {
	exch := &fakeExchange{pairsErr: errors.New("exchange down")}
	init := NewInitializer(testCfg(), market.NewCache(), exch, nil, nil)

	if err := init.Run(context.Background()); err == nil {
		t.Fatal("startup without the pair universe must fail")
	}
}

func TestInitializer_BalanceFailureIsNotFatal(t *testing.T) {
	exch := &fakeExchange{
		pairs:   []string{"AAAUSDT"},
		prices:  map[string]decimal.Decimal{"AAAUSDT": decimal.NewFromFloat(0.5)},
		balsErr: errors.New("auth failure"),
	}
	init := NewInitializer(testCfg(), market.NewCache(), exch, nil, nil)

	if err := init.Run(context.Background()); err != nil {
		t.Fatalf("balance reconcile failure must not abort startup: %v", err)
	}
}
