package storage

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"
	"gorm.io/driver/postgres"
	"gorm.io/driver/sqlite"
	"gorm.io/gorm"
	"gorm.io/gorm/logger"

	"spotbot/internal/model"
	"spotbot/internal/signal"
)

// Store snapshots open positions and signal-journal entries so the bot
// can recover them after a restart. The core owns no persistence logic,
// it only hands state over via the cache/journal enumerate+load hooks.
type Store struct {
	db *gorm.DB
}

// PositionRow mirrors one open position.
type PositionRow struct {
	Symbol              string          `gorm:"primaryKey"`
	Quantity            decimal.Decimal `gorm:"type:decimal(20,8)"`
	AveragePrice        decimal.Decimal `gorm:"type:decimal(20,8)"`
	LastPrice           decimal.Decimal `gorm:"type:decimal(20,8)"`
	MaxPriceSeen        decimal.Decimal `gorm:"type:decimal(20,8)"`
	PriceDecreaseFactor decimal.Decimal `gorm:"type:decimal(10,6)"`
	RocketCandidate     bool
	Strategy            string `gorm:"index"`
	OpenedAt            time.Time
	UpdatedAt           time.Time
}

// SignalRow mirrors one signal-journal entry of one strategy.
type SignalRow struct {
	Strategy  string `gorm:"primaryKey"`
	Pair      string `gorm:"primaryKey"`
	SignalAt  time.Time
	UpdatedAt time.Time
}

// Open connects to the snapshot database. A postgres:// path selects
// PostgreSQL, anything else is treated as a SQLite file path.
func Open(path string) (*Store, error) {
	var (
		db  *gorm.DB
		err error
	)

	gormCfg := &gorm.Config{Logger: logger.Default.LogMode(logger.Silent)}

	if strings.HasPrefix(path, "postgres://") || strings.HasPrefix(path, "postgresql://") {
		db, err = gorm.Open(postgres.Open(path), gormCfg)
	} else {
		if dir := filepath.Dir(path); dir != "." {
			if mkErr := os.MkdirAll(dir, 0o755); mkErr != nil {
				return nil, fmt.Errorf("create database dir: %w", mkErr)
			}
		}
		db, err = gorm.Open(sqlite.Open(path), gormCfg)
	}
	if err != nil {
		return nil, fmt.Errorf("open snapshot database: %w", err)
	}

	if err := db.AutoMigrate(&PositionRow{}, &SignalRow{}); err != nil {
		return nil, fmt.Errorf("migrate snapshot schema: %w", err)
	}

	log.Info().Msg("💾 snapshot store ready")
	return &Store{db: db}, nil
}

// SnapshotPositions replaces the stored position set with the given one.
func (s *Store) SnapshotPositions(positions []model.Position) error {
	rows := make([]PositionRow, 0, len(positions))
	for _, p := range positions {
		rows = append(rows, PositionRow{
			Symbol:              p.Symbol,
			Quantity:            p.Quantity,
			AveragePrice:        p.AveragePrice,
			LastPrice:           p.LastPrice,
			MaxPriceSeen:        p.MaxPriceSeen,
			PriceDecreaseFactor: p.PriceDecreaseFactor,
			RocketCandidate:     p.RocketCandidate,
			Strategy:            p.Strategy,
			OpenedAt:            p.OpenedAt,
		})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("1 = 1").Delete(&PositionRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// LoadPositions returns the stored position records for bulk-load into
// the cache at startup.
func (s *Store) LoadPositions() ([]model.Position, error) {
	var rows []PositionRow
	if err := s.db.Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load positions: %w", err)
	}

	positions := make([]model.Position, 0, len(rows))
	for _, r := range rows {
		positions = append(positions, model.Position{
			Symbol:              r.Symbol,
			Quantity:            r.Quantity,
			AveragePrice:        r.AveragePrice,
			LastPrice:           r.LastPrice,
			MaxPriceSeen:        r.MaxPriceSeen,
			PriceDecreaseFactor: r.PriceDecreaseFactor,
			RocketCandidate:     r.RocketCandidate,
			Strategy:            r.Strategy,
			OpenedAt:            r.OpenedAt,
		})
	}
	return positions, nil
}

// SnapshotSignals replaces one strategy's stored journal entries.
func (s *Store) SnapshotSignals(strategy string, entries []signal.Entry) error {
	rows := make([]SignalRow, 0, len(entries))
	for _, e := range entries {
		rows = append(rows, SignalRow{Strategy: strategy, Pair: e.Pair, SignalAt: e.SignalAt})
	}

	return s.db.Transaction(func(tx *gorm.DB) error {
		if err := tx.Where("strategy = ?", strategy).Delete(&SignalRow{}).Error; err != nil {
			return err
		}
		if len(rows) == 0 {
			return nil
		}
		return tx.Create(&rows).Error
	})
}

// LoadSignals returns one strategy's stored journal entries.
func (s *Store) LoadSignals(strategy string) ([]signal.Entry, error) {
	var rows []SignalRow
	if err := s.db.Where("strategy = ?", strategy).Find(&rows).Error; err != nil {
		return nil, fmt.Errorf("load signals: %w", err)
	}

	entries := make([]signal.Entry, 0, len(rows))
	for _, r := range rows {
		entries = append(entries, signal.Entry{Pair: r.Pair, SignalAt: r.SignalAt})
	}
	return entries, nil
}

// Close releases the underlying connection.
func (s *Store) Close() error {
	sqlDB, err := s.db.DB()
	if err != nil {
		return err
	}
	return sqlDB.Close()
}
