package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"sync"
	"time"

	"MarkWatch/internal/domain/models"
	drepo "MarkWatch/internal/domain/repository"
	"MarkWatch/pkg/logger"

	"github.com/gorilla/websocket"
)

// Stream implements a PriceStream backed by the futures mark-price
// WebSocket (<symbol>@markPrice@1s).
type Stream struct {
	websocketURL   string
	symbols        []string
	reconnectDelay time.Duration
	pingInterval   time.Duration
	logger         *logger.Logger

	mu        sync.Mutex
	conn      *websocket.Conn
	connected bool
	subSeq    int
}

// New creates a mark-price PriceStream for the given symbols.
func New(websocketURL string, symbols []string, reconnectDelay, pingInterval time.Duration, lgr *logger.Logger) drepo.PriceStream {
	return &Stream{
		websocketURL:   websocketURL,
		symbols:        symbols,
		reconnectDelay: reconnectDelay,
		pingInterval:   pingInterval,
		logger:         lgr,
	}
}

// Connect establishes the WebSocket connection.
func (s *Stream) Connect(ctx context.Context) error {
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, s.websocketURL, nil)
	if err != nil {
		return fmt.Errorf("pricefeed connect: %w", err)
	}
	s.mu.Lock()
	s.conn = conn
	s.connected = true
	s.mu.Unlock()
	s.logger.Info("price stream connected")
	return nil
}

// Subscribe subscribes to the mark-price stream of every configured symbol.
func (s *Stream) Subscribe(ctx context.Context) error {
	s.mu.Lock()
	conn, connected := s.conn, s.connected
	s.subSeq++
	id := s.subSeq
	s.mu.Unlock()
	if conn == nil || !connected {
		return fmt.Errorf("pricefeed not connected")
	}

	params := make([]string, 0, len(s.symbols))
	for _, sym := range s.symbols {
		params = append(params, strings.ToLower(sym)+"@markPrice@1s")
	}
	msg := map[string]interface{}{"method": "SUBSCRIBE", "params": params, "id": id}
	if err := conn.WriteJSON(msg); err != nil {
		return fmt.Errorf("subscribe: %w", err)
	}
	s.logger.Debug("price stream subscribed", logger.Int("streams", len(params)))
	return nil
}

type wsMarkPrice struct {
	Event  string `json:"e"`
	Time   int64  `json:"E"` // ms
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Index  string `json:"i"`
	Rate   string `json:"r"`
}

// Read streams MarkPriceTick events and errors.
func (s *Stream) Read(ctx context.Context) (<-chan *models.MarkPriceTick, <-chan error) {
	ticks := make(chan *models.MarkPriceTick, 1024)
	errs := make(chan error, 1)

	// ping loop
	go func() {
		ticker := time.NewTicker(s.pingInterval)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				s.mu.Lock()
				conn := s.conn
				s.mu.Unlock()
				if conn != nil {
					_ = conn.WriteMessage(websocket.PingMessage, nil)
				}
			}
		}
	}()

	// read loop
	go func() {
		defer close(ticks)
		defer close(errs)
		for {
			select {
			case <-ctx.Done():
				return
			default:
				s.mu.Lock()
				conn := s.conn
				s.mu.Unlock()
				if conn == nil {
					errs <- fmt.Errorf("pricefeed conn nil")
					return
				}
				_, b, err := conn.ReadMessage()
				if err != nil {
					errs <- fmt.Errorf("pricefeed read: %w", err)
					return
				}
				var m wsMarkPrice
				if err := json.Unmarshal(b, &m); err != nil {
					// ignore subscription acks and other frames
					continue
				}
				if m.Event != "markPriceUpdate" {
					continue
				}
				price, err := strconv.ParseFloat(m.Price, 64)
				if err != nil || price <= 0 {
					continue
				}
				tick := &models.MarkPriceTick{
					Symbol:      m.Symbol,
					MarkPrice:   price,
					IndexPrice:  parseFloatOr(m.Index, 0),
					FundingRate: parseFloatOr(m.Rate, 0),
					EventTime:   time.UnixMilli(m.Time),
				}
				select {
				case ticks <- tick:
				default:
					// drop on backpressure
				}
			}
		}
	}()

	return ticks, errs
}

// Reconnect closes and reconnects.
func (s *Stream) Reconnect(ctx context.Context) error {
	_ = s.Close()
	time.Sleep(s.reconnectDelay)
	if err := s.Connect(ctx); err != nil {
		return err
	}
	return s.Subscribe(ctx)
}

// Close closes the WS connection.
func (s *Stream) Close() error {
	s.mu.Lock()
	s.connected = false
	conn := s.conn
	s.mu.Unlock()
	if conn != nil {
		return conn.Close()
	}
	return nil
}

// IsConnected indicates status.
func (s *Stream) IsConnected() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.connected
}

func parseFloatOr(s string, def float64) float64 {
	if s == "" {
		return def
	}
	f, err := strconv.ParseFloat(s, 64)
	if err != nil {
		return def
	}
	return f
}
