package model

import "github.com/shopspring/decimal"

// Side of an order fill.
type Side string

const (
	SideBuy  Side = "BUY"
	SideSell Side = "SELL"
)

// FillEvent is a push-delivered notification that an order executed,
// fully or partially, against the exchange account.
type FillEvent struct {
	Symbol   string
	Side     Side
	Quantity decimal.Decimal
	Price    decimal.Decimal
	Strategy string // which strategy the order belongs to
}

// PairStats is one entry of a 24h ticker statistics response.
type PairStats struct {
	Symbol             string
	PriceChangePercent decimal.Decimal
	LastPrice          decimal.Decimal
}

// Kline represents a candlestick bar.
type Kline struct {
	OpenTime  int64
	Open      decimal.Decimal
	High      decimal.Decimal
	Low       decimal.Decimal
	Close     decimal.Decimal
	Volume    decimal.Decimal
	CloseTime int64
}

// Balance is one asset balance of the exchange account.
type Balance struct {
	Asset string
	Free  decimal.Decimal
}
