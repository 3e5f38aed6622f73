package exchange

import (
	"context"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"spotbot/internal/model"
)

type pricer interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// PaperExecutor is the dry-run order sink: every intent fills instantly
// at the current market price, and the synthetic fill flows through the
// same channel the live user-data stream would use. Strategy code is
// identical in both modes.
type PaperExecutor struct {
	prices pricer
	out    chan model.FillEvent
}

// NewPaperExecutor creates a paper executor pricing fills via the given
// market-data source.
func NewPaperExecutor(prices pricer) *PaperExecutor {
	return &PaperExecutor{
		prices: prices,
		out:    make(chan model.FillEvent, 64),
	}
}

// Fills returns the synthetic fill channel.
func (p *PaperExecutor) Fills() <-chan model.FillEvent {
	return p.out
}

// PlaceBuy fills a market buy of quoteQuantity worth at the last price.
func (p *PaperExecutor) PlaceBuy(ctx context.Context, strategy, symbol string, quoteQuantity decimal.Decimal) error {
	price, err := p.prices.GetPrice(ctx, symbol)
	if err != nil {
		return err
	}
	if !price.IsPositive() {
		return errZeroPrice(symbol)
	}

	p.out <- model.FillEvent{
		Symbol:   symbol,
		Side:     model.SideBuy,
		Quantity: quoteQuantity.Div(price),
		Price:    price,
		Strategy: strategy,
	}
	log.Info().Str("symbol", symbol).Str("spend", quoteQuantity.String()).
		Str("price", price.String()).Msg("🧾 paper buy filled")
	return nil
}

// PlaceSell fills a market sell of quantity base units at the last price.
func (p *PaperExecutor) PlaceSell(ctx context.Context, strategy, symbol string, quantity decimal.Decimal) error {
	price, err := p.prices.GetPrice(ctx, symbol)
	if err != nil {
		return err
	}

	p.out <- model.FillEvent{
		Symbol:   symbol,
		Side:     model.SideSell,
		Quantity: quantity,
		Price:    price,
		Strategy: strategy,
	}
	log.Info().Str("symbol", symbol).Str("qty", quantity.String()).
		Str("price", price.String()).Msg("🧾 paper sell filled")
	return nil
}

type errZeroPrice string

func (e errZeroPrice) Error() string {
	return "paper fill: zero price for " + string(e)
}
