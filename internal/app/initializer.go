package app

import (
	"context"
	"fmt"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"spotbot/internal/config"
	"spotbot/internal/market"
	"spotbot/internal/model"
	"spotbot/internal/signal"
	"spotbot/internal/storage"
	"spotbot/internal/strategy"
)

// ExchangeData is the slice of the exchange client the initializer uses
// to populate the cache at startup.
type ExchangeData interface {
	ListAvailablePairs(ctx context.Context, asset string) ([]string, error)
	GetPrice(ctx context.Context, symbol string) (decimal.Decimal, error)
	GetAccountBalances(ctx context.Context) ([]model.Balance, error)
}

// journalOwner is satisfied by strategies that keep a signal condition,
// letting the initializer restore their journals from snapshots.
type journalOwner interface {
	Name() string
	Condition() *signal.Condition
}

// Initializer performs the one-shot startup sequence: populate the
// market cache from the exchange, restore snapshots, reconcile open
// positions with account balances and warm up the enabled strategies.
type Initializer struct {
	cfg        *config.Config
	cache      *market.Cache
	exch       ExchangeData
	store      *storage.Store // nil disables snapshot restore
	strategies []strategy.Strategy
}

// NewInitializer wires the startup sequence.
func NewInitializer(cfg *config.Config, cache *market.Cache, exch ExchangeData,
	store *storage.Store, strategies []strategy.Strategy) *Initializer {
	return &Initializer{cfg: cfg, cache: cache, exch: exch, store: store, strategies: strategies}
}

// Run executes the startup sequence. Failing to learn the tradable
// universe is fatal; everything downstream degrades gracefully.
func (i *Initializer) Run(ctx context.Context) error {
	asset := i.cfg.TradingAsset

	pairs, err := i.exch.ListAvailablePairs(ctx, asset)
	if err != nil {
		return fmt.Errorf("list available pairs: %w", err)
	}
	i.cache.AddAvailablePairs(asset, pairs)
	log.Info().Str("asset", asset).Int("pairs", len(pairs)).Msg("📋 tradable pairs loaded")

	i.cache.FillCheapPairs(ctx, asset, i.cfg.CheapCeiling, i.exch)

	if i.store != nil {
		i.restoreSnapshots()
	}

	i.reconcilePositions(ctx, asset)

	for _, s := range i.strategies {
		if !s.Enabled() {
			log.Info().Str("strategy", s.Name()).Msg("strategy disabled, skipping warm-up")
			continue
		}
		if err := s.PrepareData(ctx); err != nil {
			log.Error().Err(err).Str("strategy", s.Name()).Msg("strategy warm-up failed")
			continue
		}
		log.Info().Str("strategy", s.Name()).Msg("✅ strategy ready")
	}

	return nil
}

// restoreSnapshots bulk-loads persisted positions and journals. Snapshot
// data never overrides live state, and restore failures only cost the
// recovered history.
func (i *Initializer) restoreSnapshots() {
	positions, err := i.store.LoadPositions()
	if err != nil {
		log.Warn().Err(err).Msg("position snapshot restore failed")
	} else if len(positions) > 0 {
		i.cache.LoadPositions(positions)
		log.Info().Int("positions", len(positions)).Msg("💾 positions restored from snapshot")
	}

	for _, s := range i.strategies {
		owner, ok := s.(journalOwner)
		if !ok {
			continue
		}
		entries, err := i.store.LoadSignals(owner.Name())
		if err != nil {
			log.Warn().Err(err).Str("strategy", owner.Name()).Msg("journal snapshot restore failed")
			continue
		}
		if len(entries) > 0 {
			owner.Condition().Journal().Load(entries)
			log.Info().Str("strategy", owner.Name()).Int("entries", len(entries)).
				Msg("💾 signal journal restored")
		}
	}
}

// reconcilePositions turns leftover account balances into position
// records once, at startup. Streaming fills keep the cache current
// afterward; the reconcile never runs again.
func (i *Initializer) reconcilePositions(ctx context.Context, asset string) {
	balances, err := i.exch.GetAccountBalances(ctx)
	if err != nil {
		log.Warn().Err(err).Msg("balance reconcile skipped")
		return
	}

	owner := ""
	for _, s := range i.strategies {
		if s.Enabled() {
			owner = s.Name()
			break
		}
	}

	i.cache.InitializeOpenedPositions(ctx, asset, balances,
		i.cfg.DustThreshold, i.cfg.PriceDecreaseFactor, owner, i.exch)
}
