package model

import (
	"time"

	"github.com/shopspring/decimal"
)

// Position represents an open spot holding for one trading pair.
// All monetary fields use decimal.Decimal to keep one consistent
// representation across the codebase.
type Position struct {
	Symbol              string
	Quantity            decimal.Decimal
	AveragePrice        decimal.Decimal
	LastPrice           decimal.Decimal
	MaxPriceSeen        decimal.Decimal // monotone non-decreasing while the position is open
	PriceDecreaseFactor decimal.Decimal // trailing-stop distance as a fraction of MaxPriceSeen
	RocketCandidate     bool            // abnormal-growth entries get wider trailing room
	Strategy            string          // strategy that owns this position
	OpenedAt            time.Time
}

// TrailingStopPrice is the price at which the owning strategy should
// consider closing the position: MaxPriceSeen * (1 - PriceDecreaseFactor).
func (p *Position) TrailingStopPrice() decimal.Decimal {
	return p.MaxPriceSeen.Mul(decimal.NewFromInt(1).Sub(p.PriceDecreaseFactor))
}

// MonitoredPosition is a candidate pair flagged by a strategy for possible
// future capital commitment. It never leaves memory.
type MonitoredPosition struct {
	Symbol        string
	PriceAtStart  decimal.Decimal
	GrowthPercent decimal.Decimal
	StartedAt     time.Time
}
