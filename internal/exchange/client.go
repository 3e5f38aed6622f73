package exchange

import (
	"context"
	"crypto/hmac"
	"crypto/sha256"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"golang.org/x/time/rate"

	"spotbot/internal/model"
)

// Client is a Binance-style spot REST client. It covers only what the
// bot consumes: tradable pairs, prices, 24h statistics, candles and
// account balances, plus plain limit-less market orders for intents.
type Client struct {
	restURL string
	apiKey  string
	secret  string

	http    *http.Client
	limiter *rate.Limiter
}

// NewClient creates a client for the given REST endpoint. Credentials
// may be empty when only public market data is needed.
func NewClient(restURL, apiKey, secret string) *Client {
	return &Client{
		restURL: strings.TrimRight(restURL, "/"),
		apiKey:  apiKey,
		secret:  secret,
		http:    &http.Client{Timeout: 10 * time.Second},
		limiter: rate.NewLimiter(rate.Limit(10), 20),
	}
}

// ListAvailablePairs returns all symbols trading against the quote asset.
func (c *Client) ListAvailablePairs(ctx context.Context, asset string) ([]string, error) {
	var info struct {
		Symbols []struct {
			Symbol     string `json:"symbol"`
			QuoteAsset string `json:"quoteAsset"`
			Status     string `json:"status"`
		} `json:"symbols"`
	}
	if err := c.get(ctx, "/api/v3/exchangeInfo", nil, &info); err != nil {
		return nil, fmt.Errorf("exchange info: %w", err)
	}

	pairs := make([]string, 0, len(info.Symbols))
	for _, s := range info.Symbols {
		if s.QuoteAsset == asset && s.Status == "TRADING" {
			pairs = append(pairs, s.Symbol)
		}
	}
	return pairs, nil
}

// GetPrice returns the last price for one symbol.
func (c *Client) GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error) {
	var out struct {
		Price string `json:"price"`
	}
	q := url.Values{"symbol": {symbol}}
	if err := c.get(ctx, "/api/v3/ticker/price", q, &out); err != nil {
		return decimal.Zero, fmt.Errorf("ticker price %s: %w", symbol, err)
	}
	price, err := decimal.NewFromString(out.Price)
	if err != nil {
		return decimal.Zero, fmt.Errorf("parse price %q for %s: %w", out.Price, symbol, err)
	}
	return price, nil
}

// Get24hStats fetches 24h ticker statistics for the given symbols in one
// batched request. Entries with unparsable numeric fields are dropped
// with a warning so one bad record never spoils the rest of the scan.
func (c *Client) Get24hStats(ctx context.Context, symbols []string) ([]model.PairStats, error) {
	if len(symbols) == 0 {
		return nil, nil
	}

	// Binance batch form: symbols=["AAAUSDT","BBBUSDT"]
	q := url.Values{"symbols": {`["` + strings.Join(symbols, `","`) + `"]`}}

	var raw []struct {
		Symbol             string `json:"symbol"`
		PriceChangePercent string `json:"priceChangePercent"`
		LastPrice          string `json:"lastPrice"`
	}
	if err := c.get(ctx, "/api/v3/ticker/24hr", q, &raw); err != nil {
		return nil, fmt.Errorf("24h stats: %w", err)
	}

	stats := make([]model.PairStats, 0, len(raw))
	for _, r := range raw {
		change, err := decimal.NewFromString(r.PriceChangePercent)
		if err != nil {
			log.Warn().Str("symbol", r.Symbol).Str("value", r.PriceChangePercent).
				Msg("unparsable price change percent, dropping record")
			continue
		}
		last, err := decimal.NewFromString(r.LastPrice)
		if err != nil {
			log.Warn().Str("symbol", r.Symbol).Str("value", r.LastPrice).
				Msg("unparsable last price, dropping record")
			continue
		}
		stats = append(stats, model.PairStats{
			Symbol:             r.Symbol,
			PriceChangePercent: change,
			LastPrice:          last,
		})
	}
	return stats, nil
}

// GetKlines fetches historical candles.
func (c *Client) GetKlines(ctx context.Context, symbol, interval string, limit int) ([]model.Kline, error) {
	q := url.Values{
		"symbol":   {symbol},
		"interval": {interval},
		"limit":    {fmt.Sprint(limit)},
	}
	var raw [][]any
	if err := c.get(ctx, "/api/v3/klines", q, &raw); err != nil {
		return nil, fmt.Errorf("klines %s: %w", symbol, err)
	}

	klines := make([]model.Kline, 0, len(raw))
	for _, k := range raw {
		if len(k) < 7 {
			continue
		}
		openTime, _ := k[0].(float64)
		closeTime, _ := k[6].(float64)
		kl := model.Kline{OpenTime: int64(openTime), CloseTime: int64(closeTime)}
		var err error
		if kl.Open, err = decField(k[1]); err != nil {
			continue
		}
		if kl.High, err = decField(k[2]); err != nil {
			continue
		}
		if kl.Low, err = decField(k[3]); err != nil {
			continue
		}
		if kl.Close, err = decField(k[4]); err != nil {
			continue
		}
		if kl.Volume, err = decField(k[5]); err != nil {
			continue
		}
		klines = append(klines, kl)
	}
	return klines, nil
}

// GetAccountBalances returns the free balances of the account.
func (c *Client) GetAccountBalances(ctx context.Context) ([]model.Balance, error) {
	var out struct {
		Balances []struct {
			Asset string `json:"asset"`
			Free  string `json:"free"`
		} `json:"balances"`
	}
	if err := c.getSigned(ctx, "/api/v3/account", url.Values{}, &out); err != nil {
		return nil, fmt.Errorf("account balances: %w", err)
	}

	balances := make([]model.Balance, 0, len(out.Balances))
	for _, b := range out.Balances {
		free, err := decimal.NewFromString(b.Free)
		if err != nil {
			log.Warn().Str("asset", b.Asset).Str("value", b.Free).
				Msg("unparsable balance, dropping")
			continue
		}
		balances = append(balances, model.Balance{Asset: b.Asset, Free: free})
	}
	return balances, nil
}

// PlaceBuy submits a market buy spending quoteQuantity of the quote
// asset. The client order id carries the strategy name so the user-data
// stream can attribute the resulting fills.
func (c *Client) PlaceBuy(ctx context.Context, strategy, symbol string, quoteQuantity decimal.Decimal) error {
	q := url.Values{
		"symbol":           {symbol},
		"side":             {"BUY"},
		"type":             {"MARKET"},
		"quoteOrderQty":    {quoteQuantity.String()},
		"newClientOrderId": {clientOrderID(strategy)},
	}
	return c.postSigned(ctx, "/api/v3/order", q)
}

// PlaceSell submits a market sell of quantity base units.
func (c *Client) PlaceSell(ctx context.Context, strategy, symbol string, quantity decimal.Decimal) error {
	q := url.Values{
		"symbol":           {symbol},
		"side":             {"SELL"},
		"type":             {"MARKET"},
		"quantity":         {quantity.String()},
		"newClientOrderId": {clientOrderID(strategy)},
	}
	return c.postSigned(ctx, "/api/v3/order", q)
}

func clientOrderID(strategy string) string {
	return fmt.Sprintf("%s-%d", strategy, time.Now().UnixNano())
}

// StrategyFromOrderID recovers the owning strategy from a client order
// id produced by clientOrderID. Unknown formats yield an empty string.
func StrategyFromOrderID(id string) string {
	if i := strings.LastIndex(id, "-"); i > 0 {
		return id[:i]
	}
	return ""
}

func (c *Client) get(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	u := c.restURL + path
	if len(q) > 0 {
		u += "?" + q.Encode()
	}
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
	if err != nil {
		return err
	}
	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) getSigned(ctx context.Context, path string, q url.Values, out any) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet,
		c.restURL+path+"?"+c.sign(q), nil)
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return json.NewDecoder(resp.Body).Decode(out)
}

func (c *Client) postSigned(ctx context.Context, path string, q url.Values) error {
	if err := c.limiter.Wait(ctx); err != nil {
		return err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost,
		c.restURL+path, strings.NewReader(c.sign(q)))
	if err != nil {
		return err
	}
	req.Header.Set("X-MBX-APIKEY", c.apiKey)
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.http.Do(req)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("unexpected status %d", resp.StatusCode)
	}
	return nil
}

func (c *Client) sign(q url.Values) string {
	q.Set("timestamp", fmt.Sprint(time.Now().UnixMilli()))
	payload := q.Encode()

	mac := hmac.New(sha256.New, []byte(c.secret))
	mac.Write([]byte(payload))
	return payload + "&signature=" + hex.EncodeToString(mac.Sum(nil))
}

func decField(v any) (decimal.Decimal, error) {
	s, ok := v.(string)
	if !ok {
		return decimal.Zero, fmt.Errorf("unexpected kline field type %T", v)
	}
	return decimal.NewFromString(s)
}
