package app

import (
	"context"

	"github.com/robfig/cron/v3"
	"github.com/rs/zerolog/log"

	"spotbot/internal/config"
	"spotbot/internal/market"
	"spotbot/internal/storage"
	"spotbot/internal/strategy"
)

// Scheduler drives the periodic work: strategy evaluation cycles,
// cheap-pairs refresh and state snapshots. Exchange calls always happen
// inside the jobs, never while the cache is locked.
type Scheduler struct {
	cron  *cron.Cron
	cfg   *config.Config
	cache *market.Cache
	exch  ExchangeData
	store *storage.Store // nil disables snapshots

	ctx        context.Context
	strategies []strategy.Strategy
}

// NewScheduler creates the scheduler; ctx bounds every job it runs.
func NewScheduler(ctx context.Context, cfg *config.Config, cache *market.Cache,
	exch ExchangeData, store *storage.Store, strategies []strategy.Strategy) *Scheduler {
	return &Scheduler{
		cron:       cron.New(),
		cfg:        cfg,
		cache:      cache,
		exch:       exch,
		store:      store,
		ctx:        ctx,
		strategies: strategies,
	}
}

// Start registers and starts all periodic jobs.
func (s *Scheduler) Start() {
	s.cron.Schedule(cron.Every(s.cfg.ScanInterval), cron.FuncJob(s.scanCycle))
	s.cron.Schedule(cron.Every(s.cfg.RefreshInterval), cron.FuncJob(s.refreshCheapPairs))
	if s.store != nil {
		s.cron.Schedule(cron.Every(s.cfg.SnapshotInterval), cron.FuncJob(s.snapshot))
	}
	s.cron.Start()
	log.Info().
		Str("scan", s.cfg.ScanInterval.String()).
		Str("refresh", s.cfg.RefreshInterval.String()).
		Msg("⏱️ scheduler started")
}

// Stop stops the scheduler, letting running jobs finish.
func (s *Scheduler) Stop() {
	<-s.cron.Stop().Done()
	log.Info().Msg("scheduler stopped")
}

// scanCycle runs one evaluation cycle for every enabled strategy with
// periodic logic.
func (s *Scheduler) scanCycle() {
	for _, st := range s.strategies {
		if !st.Enabled() {
			continue
		}
		scanner, ok := st.(strategy.Scanner)
		if !ok {
			continue
		}
		scanner.Scan(s.ctx)
	}
}

func (s *Scheduler) refreshCheapPairs() {
	s.cache.FillCheapPairs(s.ctx, s.cfg.TradingAsset, s.cfg.CheapCeiling, s.exch)
}

// snapshot hands the current positions and journals to the persistence
// collaborator. A failed snapshot only costs recovery freshness.
func (s *Scheduler) snapshot() {
	if err := s.store.SnapshotPositions(s.cache.OpenPositions()); err != nil {
		log.Warn().Err(err).Msg("position snapshot failed")
	}
	for _, st := range s.strategies {
		owner, ok := st.(journalOwner)
		if !ok {
			continue
		}
		if err := s.store.SnapshotSignals(owner.Name(), owner.Condition().Journal().Entries()); err != nil {
			log.Warn().Err(err).Str("strategy", owner.Name()).Msg("journal snapshot failed")
		}
	}
}
