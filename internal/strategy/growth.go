package strategy

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"spotbot/internal/market"
	"spotbot/internal/model"
	"spotbot/internal/signal"
)

// GrowthConfig holds the growth-detection strategy parameters.
type GrowthConfig struct {
	Enabled bool
	Asset   string // quote asset, e.g. "USDT"

	GrowthThreshold decimal.Decimal // min 24h change % to become a candidate
	RocketThreshold decimal.Decimal // change % above which the entry is a rocket candidate

	PriceDecreaseFactor  decimal.Decimal // trailing distance for normal entries
	RocketDecreaseFactor decimal.Decimal // wider trailing distance for rockets

	MonitoringWindow time.Duration   // how long a candidate stays eligible
	PositionBudget   decimal.Decimal // quote spent per entry
	Cooldown         time.Duration   // sell-signal suppression window
}

// Growth is the growth-detection strategy: it hunts cheap pairs whose
// 24h change exceeds a threshold, parks them under monitoring, commits
// capital on a later cycle, and exits via a trailing stop under the
// maximum price seen.
type Growth struct {
	cfg   GrowthConfig
	cache *market.Cache
	data  MarketData
	exec  OrderExecutor
	cond  *signal.Condition

	notifier Notifier
	now      func() time.Time

	mu      sync.Mutex
	pending map[string]decimal.Decimal // symbol -> growth % of an in-flight buy intent
}

// NewGrowth creates the strategy with its own signal condition.
func NewGrowth(cfg GrowthConfig, cache *market.Cache, data MarketData, exec OrderExecutor) *Growth {
	return &Growth{
		cfg:     cfg,
		cache:   cache,
		data:    data,
		exec:    exec,
		cond:    signal.NewCondition(cfg.Cooldown),
		now:     time.Now,
		pending: make(map[string]decimal.Decimal),
	}
}

// SetNotifier wires an optional trade notifier.
func (g *Growth) SetNotifier(n Notifier) { g.notifier = n }

// Condition exposes the strategy's signal condition for persistence.
func (g *Growth) Condition() *signal.Condition { return g.cond }

func (g *Growth) Name() string  { return "growth" }
func (g *Growth) Enabled() bool { return g.cfg.Enabled }

// PrepareData runs the first detection pass so the bot has candidates
// before the scheduler's first tick.
func (g *Growth) PrepareData(ctx context.Context) error {
	g.detect(ctx)
	log.Info().Str("strategy", g.Name()).Msg("🔎 initial growth scan done")
	return nil
}

// Scan is one scheduled evaluation cycle. Candidates registered on the
// previous cycle are committed first, so every candidate survives at
// least one full interval of re-evaluation before capital is spent.
func (g *Growth) Scan(ctx context.Context) {
	g.OpenMonitored(ctx)
	g.detect(ctx)
	g.CheckTrailingStops(ctx)
}

// detect finds cheap pairs with abnormal 24h growth and parks them
// under monitoring, weakest qualifying growth first.
func (g *Growth) detect(ctx context.Context) {
	candidates := g.cache.CheapPairsExcludeOpenedPositions(g.cfg.Asset)
	if len(candidates) == 0 {
		return
	}

	stats, err := g.data.Get24hStats(ctx, candidates)
	if err != nil {
		// Transient failure: this cycle is skipped, the next one retries.
		log.Warn().Err(err).Str("strategy", g.Name()).Msg("24h stats fetch failed, skipping cycle")
		return
	}

	grown := stats[:0:0]
	for _, s := range stats {
		if s.PriceChangePercent.GreaterThan(g.cfg.GrowthThreshold) {
			grown = append(grown, s)
		}
	}
	sort.SliceStable(grown, func(i, j int) bool {
		return grown[i].PriceChangePercent.LessThan(grown[j].PriceChangePercent)
	})

	now := g.now()
	for _, s := range grown {
		g.cache.PutPositionUnderMonitoring(s.Symbol, s.LastPrice, s.PriceChangePercent, now)
		log.Debug().Str("symbol", s.Symbol).Str("change", s.PriceChangePercent.String()).
			Msg("pair under monitoring")
	}
	if len(grown) > 0 {
		log.Info().Str("strategy", g.Name()).Int("candidates", len(grown)).
			Msg("🚀 growth candidates registered")
	}
}

// OpenMonitored consumes the monitored list, emitting a buy intent per
// still-eligible candidate, and clears the list afterward.
func (g *Growth) OpenMonitored(ctx context.Context) {
	for _, m := range g.cache.MonitoredPositions() {
		if g.now().Sub(m.StartedAt) > g.cfg.MonitoringWindow {
			g.cache.RemovePositionFromMonitoring(m.Symbol)
			continue
		}
		if g.cond.WorkedOutBefore(m.Symbol) {
			// The pair was sold recently, do not chase a re-entry.
			continue
		}
		if _, held := g.cache.Position(m.Symbol); held {
			continue
		}
		// The fill can arrive before PlaceBuy returns (the paper
		// executor delivers synchronously), so the pending entry must
		// exist first.
		g.mu.Lock()
		g.pending[m.Symbol] = m.GrowthPercent
		g.mu.Unlock()
		if err := g.exec.PlaceBuy(ctx, g.Name(), m.Symbol, g.cfg.PositionBudget); err != nil {
			log.Warn().Err(err).Str("symbol", m.Symbol).Msg("buy intent failed")
			g.mu.Lock()
			delete(g.pending, m.Symbol)
			g.mu.Unlock()
			continue
		}
	}
	g.cache.ClearMonitoring()
}

// CheckTrailingStops walks this strategy's open positions and emits a
// sell intent when the market trades at or below the trailing stop.
func (g *Growth) CheckTrailingStops(ctx context.Context) {
	for _, pos := range g.cache.OpenPositions() {
		if pos.Strategy != g.Name() {
			continue
		}
		price, err := g.data.GetPrice(ctx, pos.Symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("price lookup failed, skipping pair")
			continue
		}
		updated, ok := g.cache.TouchPrice(pos.Symbol, price)
		if !ok {
			continue
		}
		if price.GreaterThan(updated.TrailingStopPrice()) {
			continue
		}
		if g.cond.WorkedOutBefore(pos.Symbol) {
			continue
		}
		if err := g.exec.PlaceSell(ctx, g.Name(), pos.Symbol, updated.Quantity); err != nil {
			log.Warn().Err(err).Str("symbol", pos.Symbol).Msg("sell intent failed")
			continue
		}
		g.cond.MarkWorkedOut(pos.Symbol)
		log.Info().Str("symbol", pos.Symbol).
			Str("price", price.String()).
			Str("max", updated.MaxPriceSeen.String()).
			Msg("⛔ trailing stop hit, selling")
	}
}

// HandleBuying applies a buy fill: the first fill opens the position
// record, subsequent fills merge into it.
func (g *Growth) HandleBuying(fill model.FillEvent) {
	if _, held := g.cache.Position(fill.Symbol); held {
		g.cache.UpdatePositionOnFill(fill)
		return
	}

	growth, pending := g.takePending(fill.Symbol)
	rocket := pending && growth.GreaterThanOrEqual(g.cfg.RocketThreshold)
	factor := g.cfg.PriceDecreaseFactor
	if rocket {
		factor = g.cfg.RocketDecreaseFactor
	}

	g.cache.OpenPosition(model.Position{
		Symbol:              fill.Symbol,
		Quantity:            fill.Quantity,
		AveragePrice:        fill.Price,
		LastPrice:           fill.Price,
		MaxPriceSeen:        fill.Price,
		PriceDecreaseFactor: factor,
		RocketCandidate:     rocket,
		Strategy:            g.Name(),
		OpenedAt:            g.now(),
	})
	g.cache.RemovePositionFromMonitoring(fill.Symbol)

	log.Info().Str("symbol", fill.Symbol).Str("qty", fill.Quantity.String()).
		Str("price", fill.Price.String()).Bool("rocket", rocket).
		Msg("📈 position opened")
	g.notifyf("📈 %s opened: %s @ %s", fill.Symbol, fill.Quantity, fill.Price)
}

// HandleSelling applies a sell fill; the fill that empties the position
// closes it and starts the sell-signal cooldown for the pair.
func (g *Growth) HandleSelling(fill model.FillEvent) {
	pos, ok := g.cache.UpdatePositionOnFill(fill)
	if !ok {
		return
	}
	if pos.Quantity.Sign() > 0 {
		return // partial exit, the position stays open
	}

	g.cache.ClosePosition(fill.Symbol)
	g.cond.MarkWorkedOut(fill.Symbol)

	// A restored record can carry a zero average price; skip the PnL
	// math rather than divide by it.
	if !pos.AveragePrice.IsPositive() {
		log.Info().Str("symbol", fill.Symbol).Str("exit", fill.Price.String()).
			Msg("📉 position closed")
		g.notifyf("📉 %s closed @ %s", fill.Symbol, fill.Price)
		return
	}

	pnl := fill.Price.Sub(pos.AveragePrice).Div(pos.AveragePrice).Mul(decimal.NewFromInt(100))
	log.Info().Str("symbol", fill.Symbol).Str("exit", fill.Price.String()).
		Str("avg", pos.AveragePrice.String()).Str("pnl_pct", pnl.StringFixed(2)).
		Msg("📉 position closed")
	g.notifyf("📉 %s closed @ %s (%s%%)", fill.Symbol, fill.Price, pnl.StringFixed(2))
}

func (g *Growth) takePending(symbol string) (decimal.Decimal, bool) {
	g.mu.Lock()
	defer g.mu.Unlock()
	growth, ok := g.pending[symbol]
	if ok {
		delete(g.pending, symbol)
	}
	return growth, ok
}

func (g *Growth) notifyf(format string, args ...any) {
	if g.notifier != nil {
		g.notifier.Notifyf(format, args...)
	}
}
