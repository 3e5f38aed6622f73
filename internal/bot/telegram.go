// Package bot provides Telegram bot functionality: trade notifications
// plus a small read-only command surface over the market cache.
package bot

import (
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"spotbot/internal/config"
	"spotbot/internal/market"
)

// Bot handles Telegram interactions. All commands are read-only views
// over the cache; trading is never driven from chat.
type Bot struct {
	api    *tgbotapi.BotAPI
	cfg    *config.Config
	cache  *market.Cache
	stopCh chan struct{}
}

// New creates the Telegram bot.
func New(cfg *config.Config, cache *market.Cache) (*Bot, error) {
	api, err := tgbotapi.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		return nil, fmt.Errorf("failed to create Telegram bot: %w", err)
	}

	log.Info().Str("username", api.Self.UserName).Msg("🤖 Telegram bot connected")

	return &Bot{
		api:    api,
		cfg:    cfg,
		cache:  cache,
		stopCh: make(chan struct{}),
	}, nil
}

// Start begins the bot's command listener.
func (b *Bot) Start() {
	go b.listenForCommands()

	if b.cfg.TelegramChatID != 0 {
		b.send("🚀 spotbot online. /help for commands")
	}
}

// Stop stops the bot.
func (b *Bot) Stop() {
	close(b.stopCh)
}

// Notifyf sends a formatted trade notification to the configured chat.
func (b *Bot) Notifyf(format string, args ...any) {
	if b.cfg.TelegramChatID == 0 {
		return
	}
	b.send(fmt.Sprintf(format, args...))
}

func (b *Bot) listenForCommands() {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	for {
		select {
		case update := <-updates:
			if update.Message != nil {
				b.handleMessage(update.Message)
			}
		case <-b.stopCh:
			return
		}
	}
}

func (b *Bot) handleMessage(msg *tgbotapi.Message) {
	if !msg.IsCommand() {
		return
	}

	var reply string
	switch msg.Command() {
	case "status":
		reply = b.statusText()
	case "positions":
		reply = b.positionsText()
	case "monitoring":
		reply = b.monitoringText()
	case "help", "start":
		reply = "/status — cache overview\n/positions — open positions\n/monitoring — candidate pairs"
	default:
		return
	}

	out := tgbotapi.NewMessage(msg.Chat.ID, reply)
	if _, err := b.api.Send(out); err != nil {
		log.Warn().Err(err).Msg("telegram reply failed")
	}
}

func (b *Bot) statusText() string {
	asset := b.cfg.TradingAsset
	return fmt.Sprintf("📊 %s\navailable pairs: %d\ncheap pairs: %d\nopen positions: %d\nmonitored: %d",
		asset,
		len(b.cache.AvailablePairs(asset)),
		len(b.cache.CheapPairs(asset)),
		len(b.cache.OpenPositions()),
		len(b.cache.MonitoredPositions()),
	)
}

func (b *Bot) positionsText() string {
	positions := b.cache.OpenPositions()
	if len(positions) == 0 {
		return "no open positions"
	}

	var sb strings.Builder
	sb.WriteString("📈 Open positions:\n")
	for _, p := range positions {
		rocket := ""
		if p.RocketCandidate {
			rocket = " 🚀"
		}
		fmt.Fprintf(&sb, "%s%s: %s @ %s (last %s, max %s)\n",
			p.Symbol, rocket, p.Quantity, p.AveragePrice, p.LastPrice, p.MaxPriceSeen)
	}
	return sb.String()
}

func (b *Bot) monitoringText() string {
	monitored := b.cache.MonitoredPositions()
	if len(monitored) == 0 {
		return "no pairs under monitoring"
	}

	var sb strings.Builder
	sb.WriteString("🔎 Under monitoring:\n")
	for _, m := range monitored {
		fmt.Fprintf(&sb, "%s: +%s%% @ %s\n", m.Symbol, m.GrowthPercent, m.PriceAtStart)
	}
	return sb.String()
}

func (b *Bot) send(text string) {
	msg := tgbotapi.NewMessage(b.cfg.TelegramChatID, text)
	if _, err := b.api.Send(msg); err != nil {
		log.Warn().Err(err).Msg("telegram send failed")
	}
}
