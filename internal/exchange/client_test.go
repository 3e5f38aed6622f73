package exchange

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"

	"github.com/shopspring/decimal"
)

func TestGet24hStats_DropsMalformedRecords(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/api/v3/ticker/24hr" {
			http.NotFound(w, r)
			return
		}
		w.Write([]byte(`[
			{"symbol":"AAAUSDT","priceChangePercent":"4.0","lastPrice":"0.50"},
			{"symbol":"BBBUSDT","priceChangePercent":"not-a-number","lastPrice":"0.70"},
			{"symbol":"CCCUSDT","priceChangePercent":"9.0","lastPrice":"0.30"}
		]`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	stats, err := c.Get24hStats(context.Background(), []string{"AAAUSDT", "BBBUSDT", "CCCUSDT"})
	if err != nil {
		t.Fatalf("Get24hStats: %v", err)
	}

	if len(stats) != 2 {
		t.Fatalf("expected malformed record dropped, got %d records", len(stats))
	}
	if stats[0].Symbol != "AAAUSDT" || stats[1].Symbol != "CCCUSDT" {
		t.Errorf("unexpected surviving records: %+v", stats)
	}
	if !stats[1].PriceChangePercent.Equal(decimal.NewFromFloat(9.0)) {
		t.Errorf("change percent = %s, want 9", stats[1].PriceChangePercent)
	}
}

func TestGetPrice(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if got := r.URL.Query().Get("symbol"); got != "BTCUSDT" {
			t.Errorf("symbol query = %q", got)
		}
		w.Write([]byte(`{"symbol":"BTCUSDT","price":"50123.45"}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	price, err := c.GetPrice(context.Background(), "BTCUSDT")
	if err != nil {
		t.Fatalf("GetPrice: %v", err)
	}
	if !price.Equal(decimal.NewFromFloat(50123.45)) {
		t.Errorf("price = %s, want 50123.45", price)
	}
}

func TestListAvailablePairs_FiltersQuoteAndStatus(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Write([]byte(`{"symbols":[
			{"symbol":"BTCUSDT","quoteAsset":"USDT","status":"TRADING"},
			{"symbol":"ETHBTC","quoteAsset":"BTC","status":"TRADING"},
			{"symbol":"OLDUSDT","quoteAsset":"USDT","status":"BREAK"}
		]}`))
	}))
	defer srv.Close()

	c := NewClient(srv.URL, "", "")
	pairs, err := c.ListAvailablePairs(context.Background(), "USDT")
	if err != nil {
		t.Fatalf("ListAvailablePairs: %v", err)
	}
	if len(pairs) != 1 || pairs[0] != "BTCUSDT" {
		t.Errorf("pairs = %v, want [BTCUSDT]", pairs)
	}
}

func TestStrategyFromOrderID(t *testing.T) {
	cases := []struct {
		id   string
		want string
	}{
		{"growth-1717240000000000000", "growth"},
		{"my-strat-1717240000000000000", "my-strat"},
		{"nodash", ""},
		{"", ""},
	}
	for _, tc := range cases {
		if got := StrategyFromOrderID(tc.id); got != tc.want {
			t.Errorf("StrategyFromOrderID(%q) = %q, want %q", tc.id, got, tc.want)
		}
	}
}
