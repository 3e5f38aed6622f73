package market

import (
	"context"
	"errors"
	"reflect"
	"testing"
	"time"

	"github.com/shopspring/decimal"

	"spotbot/internal/model"
)

type fakePricer struct {
	prices map[string]decimal.Decimal
}

func (f *fakePricer) GetPrice(_ context.Context, symbol string) (decimal.Decimal, error) {
	price, ok := f.prices[symbol]
	if !ok {
		return decimal.Zero, errors.New("price unavailable")
	}
	return price, nil
}

func dec(f float64) decimal.Decimal { return decimal.NewFromFloat(f) }

func TestFillCheapPairs_SkipsFailedLookups(t *testing.T) {
	c := NewCache()
	c.AddAvailablePairs("USDT", []string{"AAAUSDT", "BBBUSDT", "CCCUSDT", "DDDUSDT"})

	pricer := &fakePricer{prices: map[string]decimal.Decimal{
		"AAAUSDT": dec(0.5),
		"BBBUSDT": dec(3.0),
		"DDDUSDT": dec(0.9),
		// CCCUSDT has no price, the lookup fails
	}}

	c.FillCheapPairs(context.Background(), "USDT", dec(1.0), pricer)

	got := c.CheapPairs("USDT")
	want := []string{"AAAUSDT", "DDDUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("cheap pairs = %v, want %v", got, want)
	}
}

func TestAddAvailablePairs_NoDuplicates(t *testing.T) {
	c := NewCache()
	c.AddAvailablePairs("USDT", []string{"AAAUSDT", "BBBUSDT"})
	c.AddAvailablePairs("USDT", []string{"BBBUSDT", "CCCUSDT"})

	got := c.AvailablePairs("USDT")
	want := []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("available pairs = %v, want %v", got, want)
	}
}

func TestCheapPairsExcludeOpenedPositions(t *testing.T) {
	c := NewCache()
	c.AddAvailablePairs("USDT", []string{"AAAUSDT", "BBBUSDT"})
	pricer := &fakePricer{prices: map[string]decimal.Decimal{
		"AAAUSDT": dec(0.5),
		"BBBUSDT": dec(0.7),
	}}
	c.FillCheapPairs(context.Background(), "USDT", dec(1.0), pricer)

	c.OpenPosition(model.Position{
		Symbol:    "AAAUSDT",
		Quantity:  dec(10),
		LastPrice: dec(0.5),
	})

	got := c.CheapPairsExcludeOpenedPositions("USDT")
	if !reflect.DeepEqual(got, []string{"BBBUSDT"}) {
		t.Fatalf("expected AAAUSDT excluded while open, got %v", got)
	}

	// Closing the position restores eligibility.
	c.ClosePosition("AAAUSDT")
	got = c.CheapPairsExcludeOpenedPositions("USDT")
	want := []string{"AAAUSDT", "BBBUSDT"}
	if !reflect.DeepEqual(got, want) {
		t.Fatalf("after close got %v, want %v", got, want)
	}
}

func TestUpdatePositionOnFill_MaxPriceMonotone(t *testing.T) {
	c := NewCache()
	c.OpenPosition(model.Position{
		Symbol:       "AAAUSDT",
		Quantity:     dec(1),
		AveragePrice: dec(10),
		LastPrice:    dec(10),
		MaxPriceSeen: dec(10),
	})

	for _, price := range []float64{8, 12, 9} {
		if _, ok := c.UpdatePositionOnFill(model.FillEvent{
			Symbol:   "AAAUSDT",
			Side:     model.SideBuy,
			Quantity: dec(1),
			Price:    dec(price),
		}); !ok {
			t.Fatalf("fill at %v not applied", price)
		}
	}

	pos, ok := c.Position("AAAUSDT")
	if !ok {
		t.Fatal("position missing")
	}
	if !pos.MaxPriceSeen.Equal(dec(12)) {
		t.Errorf("MaxPriceSeen = %s, want 12", pos.MaxPriceSeen)
	}
	if !pos.LastPrice.Equal(dec(9)) {
		t.Errorf("LastPrice = %s, want 9", pos.LastPrice)
	}
}

func TestUpdatePositionOnFill_SequentialBuys(t *testing.T) {
	c := NewCache()
	c.OpenPosition(model.Position{
		Symbol:       "AAAUSDT",
		Quantity:     dec(1),
		AveragePrice: dec(10),
		LastPrice:    dec(10),
		MaxPriceSeen: dec(10),
	})

	pos, ok := c.UpdatePositionOnFill(model.FillEvent{
		Symbol:   "AAAUSDT",
		Side:     model.SideBuy,
		Quantity: dec(1),
		Price:    dec(12),
	})
	if !ok {
		t.Fatal("fill not applied")
	}

	if !pos.Quantity.Equal(dec(2)) {
		t.Errorf("Quantity = %s, want 2", pos.Quantity)
	}
	if !pos.LastPrice.Equal(dec(12)) {
		t.Errorf("LastPrice = %s, want 12", pos.LastPrice)
	}
	if !pos.MaxPriceSeen.Equal(dec(12)) {
		t.Errorf("MaxPriceSeen = %s, want 12", pos.MaxPriceSeen)
	}
	if !pos.AveragePrice.Equal(dec(11)) {
		t.Errorf("AveragePrice = %s, want 11", pos.AveragePrice)
	}
}

func TestUpdatePositionOnFill_MissingRecordIsNoop(t *testing.T) {
	c := NewCache()
	if _, ok := c.UpdatePositionOnFill(model.FillEvent{
		Symbol: "GHOSTUSDT", Side: model.SideSell, Quantity: dec(1), Price: dec(1),
	}); ok {
		t.Fatal("fill for unknown pair must not create a record")
	}
}

func TestOpenPosition_DuplicateMergesInPlace(t *testing.T) {
	c := NewCache()
	c.OpenPosition(model.Position{
		Symbol: "AAAUSDT", Quantity: dec(1), AveragePrice: dec(10),
		LastPrice: dec(10), MaxPriceSeen: dec(10),
	})
	// Racing second open must not produce a second record.
	c.OpenPosition(model.Position{
		Symbol: "AAAUSDT", Quantity: dec(1), AveragePrice: dec(12),
		LastPrice: dec(12), MaxPriceSeen: dec(12),
	})

	pos, _ := c.Position("AAAUSDT")
	if !pos.Quantity.Equal(dec(2)) {
		t.Errorf("Quantity = %s, want 2 (merged)", pos.Quantity)
	}
	if len(c.OpenPositions()) != 1 {
		t.Errorf("expected one record per pair")
	}
}

func TestMonitoringLifecycle(t *testing.T) {
	c := NewCache()
	c.PutPositionUnderMonitoring("BTCUSDT", dec(100), dec(9), time.Now())

	c.RemovePositionFromMonitoring("BTCUSDT")
	if got := c.MonitoredPositions(); len(got) != 0 {
		t.Fatalf("expected no trace after removal, got %v", got)
	}

	// Second removal is a no-op, not a failure.
	c.RemovePositionFromMonitoring("BTCUSDT")
}

func TestMonitoredPositions_SortedByGrowthAscending(t *testing.T) {
	c := NewCache()
	now := time.Now()
	c.PutPositionUnderMonitoring("DDDUSDT", dec(1), dec(15), now)
	c.PutPositionUnderMonitoring("BBBUSDT", dec(1), dec(9), now)

	got := c.MonitoredPositions()
	if len(got) != 2 || got[0].Symbol != "BBBUSDT" || got[1].Symbol != "DDDUSDT" {
		t.Fatalf("expected [BBBUSDT DDDUSDT], got %v", got)
	}
}

func TestInitializeOpenedPositions(t *testing.T) {
	c := NewCache()
	c.AddAvailablePairs("USDT", []string{"BTCUSDT", "ETHUSDT"})
	pricer := &fakePricer{prices: map[string]decimal.Decimal{
		"BTCUSDT": dec(50000),
		"ETHUSDT": dec(3000),
	}}

	balances := []model.Balance{
		{Asset: "BTC", Free: dec(0.5)},
		{Asset: "ETH", Free: dec(0.000001)}, // dust
		{Asset: "USDT", Free: dec(1000)},    // the quote asset itself
		{Asset: "XYZ", Free: dec(10)},       // not tradable against USDT
	}

	c.InitializeOpenedPositions(context.Background(), "USDT", balances,
		dec(0.0001), dec(0.05), "growth", pricer)

	positions := c.OpenPositions()
	if len(positions) != 1 {
		t.Fatalf("expected 1 reconciled position, got %d", len(positions))
	}
	pos := positions[0]
	if pos.Symbol != "BTCUSDT" || !pos.Quantity.Equal(dec(0.5)) {
		t.Errorf("unexpected position %+v", pos)
	}
	if !pos.MaxPriceSeen.Equal(dec(50000)) {
		t.Errorf("MaxPriceSeen = %s, want 50000", pos.MaxPriceSeen)
	}
}

func TestLoadPositions_ExistingRecordsWin(t *testing.T) {
	c := NewCache()
	c.OpenPosition(model.Position{Symbol: "AAAUSDT", Quantity: dec(2), LastPrice: dec(5)})

	c.LoadPositions([]model.Position{
		{Symbol: "AAAUSDT", Quantity: dec(9), LastPrice: dec(1)},
		{Symbol: "BBBUSDT", Quantity: dec(3), LastPrice: dec(2)},
	})

	pos, _ := c.Position("AAAUSDT")
	if !pos.Quantity.Equal(dec(2)) {
		t.Errorf("live record overwritten by snapshot load")
	}
	if _, ok := c.Position("BBBUSDT"); !ok {
		t.Errorf("restored record missing")
	}
}
