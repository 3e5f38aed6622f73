package market

import (
	"context"
	"sort"
	"sync"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"spotbot/internal/model"
)

// Pricer is the slice of the exchange client the cache needs to
// recompute the cheap-pairs set.
type Pricer interface {
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
}

// Cache is the process-wide source of truth for what can be traded and
// what is currently held. It is shared by every strategy and by the
// fill-event stream; all maps are guarded internally so callers never
// take locks themselves. Each pair's state is an independent unit of
// consistency, no cross-key transactions are provided.
type Cache struct {
	mu sync.RWMutex

	available map[string]map[string]struct{} // trading asset -> pair set
	cheap     map[string]map[string]struct{} // trading asset -> cheap pair set
	positions map[string]*model.Position     // pair -> open position
	monitored map[string]*model.MonitoredPosition
}

// NewCache creates an empty cache.
func NewCache() *Cache {
	return &Cache{
		available: make(map[string]map[string]struct{}),
		cheap:     make(map[string]map[string]struct{}),
		positions: make(map[string]*model.Position),
		monitored: make(map[string]*model.MonitoredPosition),
	}
}

// AddAvailablePairs merges pairs into the available set for a trading
// asset. Pair identity is case-sensitive exact match, duplicates collapse.
func (c *Cache) AddAvailablePairs(asset string, pairs []string) {
	c.mu.Lock()
	defer c.mu.Unlock()

	set, ok := c.available[asset]
	if !ok {
		set = make(map[string]struct{}, len(pairs))
		c.available[asset] = set
	}
	for _, p := range pairs {
		set[p] = struct{}{}
	}
}

// AvailablePairs returns the available pairs for an asset, sorted.
func (c *Cache) AvailablePairs(asset string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.available[asset])
}

// FillCheapPairs recomputes the cheap-pairs subset: available pairs whose
// current price is at or below maxPrice. Price lookups happen before the
// write lock is taken, and a failed lookup only skips that pair.
func (c *Cache) FillCheapPairs(ctx context.Context, asset string, maxPrice decimal.Decimal, pricer Pricer) {
	pairs := c.AvailablePairs(asset)

	cheap := make(map[string]struct{})
	for _, pair := range pairs {
		price, err := pricer.GetPrice(ctx, pair)
		if err != nil {
			log.Warn().Err(err).Str("pair", pair).Msg("price lookup failed, skipping pair")
			continue
		}
		if price.LessThanOrEqual(maxPrice) {
			cheap[pair] = struct{}{}
		}
	}

	c.mu.Lock()
	c.cheap[asset] = cheap
	c.mu.Unlock()

	log.Debug().Str("asset", asset).Int("cheap", len(cheap)).Int("available", len(pairs)).
		Msg("cheap pairs recomputed")
}

// CheapPairs returns the cheap pairs for an asset, sorted.
func (c *Cache) CheapPairs(asset string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()
	return sortedKeys(c.cheap[asset])
}

// CheapPairsExcludeOpenedPositions returns the cheap pairs that have no
// open position. Callers use this to avoid opening a duplicate position
// for a pair they already hold.
func (c *Cache) CheapPairsExcludeOpenedPositions(asset string) []string {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]string, 0, len(c.cheap[asset]))
	for pair := range c.cheap[asset] {
		if _, held := c.positions[pair]; held {
			continue
		}
		out = append(out, pair)
	}
	sort.Strings(out)
	return out
}

// InitializeOpenedPositions reconciles the in-memory positions with the
// actual exchange account balances. Any free balance above dust becomes a
// position priced at the current market price. This is a one-time
// cold-start resync, not a continuous poll.
func (c *Cache) InitializeOpenedPositions(ctx context.Context, asset string, balances []model.Balance,
	dust, decreaseFactor decimal.Decimal, strategy string, pricer Pricer) {

	for _, bal := range balances {
		if bal.Asset == asset || bal.Free.LessThanOrEqual(dust) {
			continue
		}
		symbol := bal.Asset + asset

		c.mu.RLock()
		_, tradable := c.available[asset][symbol]
		_, held := c.positions[symbol]
		c.mu.RUnlock()
		if !tradable || held {
			continue
		}

		price, err := pricer.GetPrice(ctx, symbol)
		if err != nil {
			log.Warn().Err(err).Str("symbol", symbol).Msg("cannot price balance, skipping")
			continue
		}

		c.OpenPosition(model.Position{
			Symbol:              symbol,
			Quantity:            bal.Free,
			AveragePrice:        price,
			LastPrice:           price,
			MaxPriceSeen:        price,
			PriceDecreaseFactor: decreaseFactor,
			Strategy:            strategy,
			OpenedAt:            time.Now(),
		})
		log.Info().Str("symbol", symbol).Str("qty", bal.Free.String()).
			Msg("💼 restored position from account balance")
	}
}

// OpenPosition stores a new position record. If a record for the pair
// already exists the call degrades to a fill-style merge, so there is
// never more than one record per pair.
func (c *Cache) OpenPosition(pos model.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	existing, ok := c.positions[pos.Symbol]
	if !ok {
		p := pos
		if p.MaxPriceSeen.LessThan(p.LastPrice) {
			p.MaxPriceSeen = p.LastPrice
		}
		c.positions[pos.Symbol] = &p
		return
	}
	mergeFill(existing, model.SideBuy, pos.Quantity, pos.LastPrice)
}

// UpdatePositionOnFill applies one order fill to the pair's position and
// returns a copy of the updated record. A fill for a pair with no record
// is a no-op and reports false.
func (c *Cache) UpdatePositionOnFill(fill model.FillEvent) (model.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.positions[fill.Symbol]
	if !ok {
		return model.Position{}, false
	}
	mergeFill(pos, fill.Side, fill.Quantity, fill.Price)
	return *pos, true
}

// ClosePosition removes the pair's position record. Removing an absent
// record is a no-op.
func (c *Cache) ClosePosition(symbol string) bool {
	c.mu.Lock()
	defer c.mu.Unlock()

	if _, ok := c.positions[symbol]; !ok {
		return false
	}
	delete(c.positions, symbol)
	return true
}

// TouchPrice records an observed market price on the pair's position:
// LastPrice follows the market, MaxPriceSeen only ever ratchets up.
func (c *Cache) TouchPrice(symbol string, price decimal.Decimal) (model.Position, bool) {
	c.mu.Lock()
	defer c.mu.Unlock()

	pos, ok := c.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	pos.LastPrice = price
	if price.GreaterThan(pos.MaxPriceSeen) {
		pos.MaxPriceSeen = price
	}
	return *pos, true
}

// Position returns a copy of the pair's open position.
func (c *Cache) Position(symbol string) (model.Position, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	pos, ok := c.positions[symbol]
	if !ok {
		return model.Position{}, false
	}
	return *pos, true
}

// OpenPositions returns copies of all open positions, used by reporting
// collaborators and by the snapshot persistence hook.
func (c *Cache) OpenPositions() []model.Position {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.Position, 0, len(c.positions))
	for _, pos := range c.positions {
		out = append(out, *pos)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Symbol < out[j].Symbol })
	return out
}

// LoadPositions bulk-loads restored position records, used by the
// persistence collaborator on restart. Existing records win.
func (c *Cache) LoadPositions(positions []model.Position) {
	c.mu.Lock()
	defer c.mu.Unlock()

	for i := range positions {
		pos := positions[i]
		if _, ok := c.positions[pos.Symbol]; ok {
			continue
		}
		c.positions[pos.Symbol] = &pos
	}
}

// PutPositionUnderMonitoring flags a pair as a candidate for a future
// entry. A second put for the same pair overwrites the first.
func (c *Cache) PutPositionUnderMonitoring(symbol string, price, growthPercent decimal.Decimal, startedAt time.Time) {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.monitored[symbol] = &model.MonitoredPosition{
		Symbol:        symbol,
		PriceAtStart:  price,
		GrowthPercent: growthPercent,
		StartedAt:     startedAt,
	}
}

// RemovePositionFromMonitoring drops a candidate. Removing an absent
// candidate is a no-op.
func (c *Cache) RemovePositionFromMonitoring(symbol string) {
	c.mu.Lock()
	defer c.mu.Unlock()
	delete(c.monitored, symbol)
}

// MonitoredPosition returns a copy of one candidate.
func (c *Cache) MonitoredPosition(symbol string) (model.MonitoredPosition, bool) {
	c.mu.RLock()
	defer c.mu.RUnlock()

	m, ok := c.monitored[symbol]
	if !ok {
		return model.MonitoredPosition{}, false
	}
	return *m, true
}

// MonitoredPositions returns copies of all candidates, ordered by growth
// percent ascending (weakest qualifying growth first).
func (c *Cache) MonitoredPositions() []model.MonitoredPosition {
	c.mu.RLock()
	defer c.mu.RUnlock()

	out := make([]model.MonitoredPosition, 0, len(c.monitored))
	for _, m := range c.monitored {
		out = append(out, *m)
	}
	sort.SliceStable(out, func(i, j int) bool {
		return out[i].GrowthPercent.LessThan(out[j].GrowthPercent)
	})
	return out
}

// ClearMonitoring drops all candidates.
func (c *Cache) ClearMonitoring() {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.monitored = make(map[string]*model.MonitoredPosition)
}

// mergeFill applies a fill to a record under the cache lock. BUY fills
// grow quantity and re-weight the average price, SELL fills only shrink
// quantity. MaxPriceSeen never decreases.
func mergeFill(pos *model.Position, side model.Side, qty, price decimal.Decimal) {
	switch side {
	case model.SideBuy:
		newQty := pos.Quantity.Add(qty)
		if newQty.IsPositive() {
			pos.AveragePrice = pos.AveragePrice.Mul(pos.Quantity).
				Add(price.Mul(qty)).
				Div(newQty)
		}
		pos.Quantity = newQty
	case model.SideSell:
		pos.Quantity = pos.Quantity.Sub(qty)
	}
	pos.LastPrice = price
	if price.GreaterThan(pos.MaxPriceSeen) {
		pos.MaxPriceSeen = price
	}
}

func sortedKeys(set map[string]struct{}) []string {
	out := make([]string, 0, len(set))
	for k := range set {
		out = append(out, k)
	}
	sort.Strings(out)
	return out
}
