// spotbot - spot-market trading bot
//
// The bot watches exchange market data, parks abnormal-growth pairs
// under monitoring, commits capital on pluggable strategy decisions and
// trails every open position under its maximum observed price. Sell
// signals per pair are rate-limited by a cooldown journal so one exit
// does not immediately re-trigger.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"spotbot/internal/app"
	"spotbot/internal/bot"
	"spotbot/internal/config"
	"spotbot/internal/exchange"
	"spotbot/internal/market"
	"spotbot/internal/model"
	"spotbot/internal/storage"
	"spotbot/internal/strategy"
)

const version = "1.2.0"

func main() {
	// Setup logging
	log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	zerolog.SetGlobalLevel(zerolog.InfoLevel)

	// Load environment
	if err := godotenv.Load(); err != nil {
		log.Warn().Msg("No .env file found, using environment variables")
	}

	// Load configuration
	cfg, err := config.Load()
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to load configuration")
	}

	if cfg.Debug {
		zerolog.SetGlobalLevel(zerolog.DebugLevel)
	}

	log.Info().
		Str("version", version).
		Str("asset", cfg.TradingAsset).
		Bool("dry_run", cfg.DryRun).
		Msg("⚡ spotbot starting...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Shared state
	cache := market.NewCache()

	// Exchange client - market data and, in live mode, order intents
	client := exchange.NewClient(cfg.RestURL, cfg.APIKey, cfg.APISecret)

	// Snapshot store for restart recovery
	store, err := storage.Open(cfg.DatabasePath)
	if err != nil {
		log.Warn().Err(err).Msg("⚠️ snapshot store unavailable, running without persistence")
		store = nil
	}

	// Order path: paper fills in dry-run, the live user-data stream otherwise
	var (
		executor strategy.OrderExecutor
		fills    <-chan model.FillEvent
		stream   *exchange.FillStream
	)
	if cfg.DryRun {
		paper := exchange.NewPaperExecutor(client)
		executor = paper
		fills = paper.Fills()
		log.Info().Msg("🧾 dry run: paper executor active")
	} else {
		executor = client
		stream = exchange.NewFillStream(cfg.StreamURL)
		stream.Start()
		fills = stream.Fills()
	}

	// Strategies
	growth := strategy.NewGrowth(strategy.GrowthConfig{
		Enabled:              cfg.GrowthEnabled,
		Asset:                cfg.TradingAsset,
		GrowthThreshold:      cfg.GrowthThreshold,
		RocketThreshold:      cfg.RocketThreshold,
		PriceDecreaseFactor:  cfg.PriceDecreaseFactor,
		RocketDecreaseFactor: cfg.RocketDecreaseFactor,
		MonitoringWindow:     cfg.MonitoringWindow,
		PositionBudget:       cfg.PositionBudget,
		Cooldown:             cfg.SignalCooldown,
	}, cache, client, executor)

	strategies := []strategy.Strategy{growth}

	// Telegram bot - notifications and read-only status commands
	if cfg.TelegramToken != "" {
		tg, err := bot.New(cfg, cache)
		if err != nil {
			log.Warn().Err(err).Msg("⚠️ Telegram bot unavailable")
		} else {
			growth.SetNotifier(tg)
			tg.Start()
			defer tg.Stop()
		}
	}

	// Startup sequence: cache population, snapshot restore, balance
	// reconcile, strategy warm-up
	initializer := app.NewInitializer(cfg, cache, client, store, strategies)
	if err := initializer.Run(ctx); err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize")
	}

	// Fill router - applies order fills to strategies in arrival order
	router := app.NewRouter(fills, strategies...)
	go router.Run(ctx)

	// Periodic work - strategy scans, cheap-pair refresh, snapshots
	scheduler := app.NewScheduler(ctx, cfg, cache, client, store, strategies)
	scheduler.Start()

	log.Info().Msg("✅ All systems online")

	// Wait for shutdown signal
	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit
	log.Info().Msg("🛑 Received shutdown signal")

	scheduler.Stop()
	if stream != nil {
		stream.Stop()
	}
	cancel()

	if store != nil {
		if err := store.SnapshotPositions(cache.OpenPositions()); err != nil {
			log.Warn().Err(err).Msg("final snapshot failed")
		}
		if err := store.SnapshotSignals(growth.Name(), growth.Condition().Journal().Entries()); err != nil {
			log.Warn().Err(err).Msg("final journal snapshot failed")
		}
		store.Close()
	}

	log.Info().Msg("👋 Goodbye!")
}
