package strategy

import (
	"context"

	"github.com/shopspring/decimal"

	"spotbot/internal/model"
)

// ═══════════════════════════════════════════════════════════════════════════════
// STRATEGY INTERFACE - Plug-in pattern for trading strategies
// ═══════════════════════════════════════════════════════════════════════════════

// Strategy is the contract every trading strategy implements. Disabled
// strategies never receive PrepareData or fill events. PrepareData is the
// one-time warm-up the initializer calls at startup and must be safe even
// when it has nothing to do. The fill handlers react to exchange order
// fills attributable to this strategy.
type Strategy interface {
	// Name returns the strategy identifier, also used to tag orders.
	Name() string

	// Enabled reports whether the strategy is active.
	Enabled() bool

	// PrepareData performs the one-time startup warm-up.
	PrepareData(ctx context.Context) error

	// HandleBuying reacts to a buy fill for an order this strategy placed.
	HandleBuying(fill model.FillEvent)

	// HandleSelling reacts to a sell fill for an order this strategy placed.
	HandleSelling(fill model.FillEvent)
}

// Scanner is implemented by strategies with periodic evaluation logic,
// driven by the application scheduler.
type Scanner interface {
	Scan(ctx context.Context)
}

// OrderExecutor is where strategies send their buy/sell intents. Actual
// order mechanics (order types, fees) live behind this interface.
type OrderExecutor interface {
	PlaceBuy(ctx context.Context, strategy, symbol string, quoteQuantity decimal.Decimal) error
	PlaceSell(ctx context.Context, strategy, symbol string, quantity decimal.Decimal) error
}

// MarketData is the slice of the exchange client strategies consume.
type MarketData interface {
	Get24hStats(ctx context.Context, symbols []string) ([]model.PairStats, error)
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Notifier delivers human-facing trade notifications. Optional.
type Notifier interface {
	Notifyf(format string, args ...any)
}
