package exchange

import (
	"encoding/json"
	"time"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog/log"
	"github.com/shopspring/decimal"

	"spotbot/internal/model"
)

// FillStream delivers order-fill events from the exchange user-data
// WebSocket. Fills are pushed onto a single channel so they are applied
// in arrival order; a full channel drops nothing, the reader blocks.
type FillStream struct {
	wsURL string
	conn  *websocket.Conn

	out     chan model.FillEvent
	running bool
	stopCh  chan struct{}
}

// NewFillStream creates a stream for the given WebSocket endpoint.
func NewFillStream(wsURL string) *FillStream {
	return &FillStream{
		wsURL:  wsURL,
		out:    make(chan model.FillEvent, 256),
		stopCh: make(chan struct{}),
	}
}

// Fills returns the channel of incoming fill events.
func (s *FillStream) Fills() <-chan model.FillEvent {
	return s.out
}

// Start connects and begins streaming, reconnecting on failure.
func (s *FillStream) Start() {
	s.running = true
	go s.run()
	log.Info().Str("url", s.wsURL).Msg("📡 fill stream started")
}

// Stop closes the stream.
func (s *FillStream) Stop() {
	s.running = false
	close(s.stopCh)
	if s.conn != nil {
		s.conn.Close()
	}
}

func (s *FillStream) run() {
	for s.running {
		if err := s.connect(); err != nil {
			log.Error().Err(err).Msg("fill stream connect failed")
			if !s.sleep(5 * time.Second) {
				return
			}
			continue
		}

		s.readMessages()

		if s.running {
			log.Warn().Msg("fill stream disconnected, reconnecting...")
			if !s.sleep(time.Second) {
				return
			}
		}
	}
}

// sleep waits for d unless Stop is called first; it reports whether the
// stream should keep running.
func (s *FillStream) sleep(d time.Duration) bool {
	select {
	case <-s.stopCh:
		return false
	case <-time.After(d):
		return true
	}
}

func (s *FillStream) connect() error {
	dialer := websocket.Dialer{HandshakeTimeout: 10 * time.Second}
	conn, _, err := dialer.Dial(s.wsURL, nil)
	if err != nil {
		return err
	}
	s.conn = conn
	log.Info().Msg("🔌 fill stream connected")
	return nil
}

func (s *FillStream) readMessages() {
	for s.running {
		_, message, err := s.conn.ReadMessage()
		if err != nil {
			if s.running {
				log.Error().Err(err).Msg("fill stream read error")
			}
			return
		}
		s.handleMessage(message)
	}
}

// executionReport is the user-data event for order state changes.
type executionReport struct {
	EventType     string `json:"e"`
	Symbol        string `json:"s"`
	Side          string `json:"S"`
	ExecType      string `json:"x"`
	ClientOrderID string `json:"c"`
	LastQty       string `json:"l"`
	LastPrice     string `json:"L"`
}

func (s *FillStream) handleMessage(data []byte) {
	var report executionReport
	if err := json.Unmarshal(data, &report); err != nil {
		return
	}
	if report.EventType != "executionReport" || report.ExecType != "TRADE" {
		return
	}

	qty, err := decimal.NewFromString(report.LastQty)
	if err != nil {
		log.Warn().Str("symbol", report.Symbol).Str("value", report.LastQty).
			Msg("unparsable fill quantity, dropping event")
		return
	}
	price, err := decimal.NewFromString(report.LastPrice)
	if err != nil {
		log.Warn().Str("symbol", report.Symbol).Str("value", report.LastPrice).
			Msg("unparsable fill price, dropping event")
		return
	}

	s.out <- model.FillEvent{
		Symbol:   report.Symbol,
		Side:     model.Side(report.Side),
		Quantity: qty,
		Price:    price,
		Strategy: StrategyFromOrderID(report.ClientOrderID),
	}
}
