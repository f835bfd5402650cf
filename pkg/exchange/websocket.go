package exchange

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"strconv"
	"time"

	"github.com/gorilla/websocket"

	"trident/internal/model"
)

const (
	heartbeatInterval = 15 * time.Second
	readTimeout       = 60 * time.Second
	maxBackoff        = 30 * time.Second
)

// Stream consumes the exchange's trade WebSocket and emits normalized ticks.
// It reconnects with exponential backoff and keeps the connection alive with
// periodic pings.
type Stream struct {
	wsURL  string
	symbol string

	conn   *websocket.Conn
	tickCh chan model.Tick

	// Callbacks (optional, for metrics and health)
	OnConnect   func()
	OnReconnect func()
	OnTick      func(model.Tick)
}

// tradeEvent is the wire format of one trade message.
type tradeEvent struct {
	Symbol string `json:"s"`
	Price  string `json:"p"`
	Qty    string `json:"q"`
	TimeMs int64  `json:"T"`
}

// NewStream creates a trade stream for one symbol.
func NewStream(wsURL, symbol string, tickBufferSize int) *Stream {
	return &Stream{
		wsURL:  wsURL,
		symbol: symbol,
		tickCh: make(chan model.Tick, tickBufferSize),
	}
}

// Ticks returns the channel of normalized ticks.
func (s *Stream) Ticks() <-chan model.Tick {
	return s.tickCh
}

// Run connects and consumes the stream until ctx is cancelled, reconnecting
// on any error.
func (s *Stream) Run(ctx context.Context) {
	defer close(s.tickCh)

	backoff := time.Second
	for {
		select {
		case <-ctx.Done():
			return
		default:
		}

		if err := s.connect(ctx); err != nil {
			log.Printf("[ws] connect failed: %v (retrying in %s)", err, backoff)
			select {
			case <-ctx.Done():
				return
			case <-time.After(backoff):
			}
			backoff *= 2
			if backoff > maxBackoff {
				backoff = maxBackoff
			}
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
			continue
		}
		backoff = time.Second

		if err := s.readLoop(ctx); err != nil {
			log.Printf("[ws] read loop ended: %v", err)
		}
		s.conn.Close()

		select {
		case <-ctx.Done():
			return
		default:
			if s.OnReconnect != nil {
				s.OnReconnect()
			}
		}
	}
}

func (s *Stream) connect(ctx context.Context) error {
	streamURL := fmt.Sprintf("%s/%s@trade", s.wsURL, s.symbol)
	conn, _, err := websocket.DefaultDialer.DialContext(ctx, streamURL, nil)
	if err != nil {
		return err
	}
	s.conn = conn

	conn.SetReadDeadline(time.Now().Add(readTimeout))
	conn.SetPongHandler(func(string) error {
		conn.SetReadDeadline(time.Now().Add(readTimeout))
		return nil
	})

	log.Printf("[ws] connected to %s", streamURL)
	if s.OnConnect != nil {
		s.OnConnect()
	}
	return nil
}

func (s *Stream) readLoop(ctx context.Context) error {
	// Heartbeat keeps intermediaries from closing the idle connection.
	pingCtx, cancelPing := context.WithCancel(ctx)
	defer cancelPing()
	go s.heartbeat(pingCtx)

	for {
		select {
		case <-ctx.Done():
			return ctx.Err()
		default:
		}

		_, msg, err := s.conn.ReadMessage()
		if err != nil {
			return err
		}
		s.conn.SetReadDeadline(time.Now().Add(readTimeout))

		var ev tradeEvent
		if err := json.Unmarshal(msg, &ev); err != nil {
			log.Printf("[ws] malformed trade message: %v", err)
			continue
		}
		if ev.Symbol == "" {
			continue // control frame or subscription ack
		}

		price, err := strconv.ParseFloat(ev.Price, 64)
		if err != nil {
			continue
		}
		qty, _ := strconv.ParseFloat(ev.Qty, 64)

		tick := model.Tick{
			Symbol: ev.Symbol,
			Price:  price,
			Qty:    qty,
			TS:     time.Unix(0, ev.TimeMs*int64(time.Millisecond)).UTC(),
		}

		if s.OnTick != nil {
			s.OnTick(tick)
		}

		select {
		case s.tickCh <- tick:
		default:
			log.Printf("[ws] tick channel full, dropping tick for %s", tick.Symbol)
		}
	}
}

func (s *Stream) heartbeat(ctx context.Context) {
	ticker := time.NewTicker(heartbeatInterval)
	defer ticker.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			if err := s.conn.WriteControl(websocket.PingMessage, nil, time.Now().Add(5*time.Second)); err != nil {
				return
			}
		}
	}
}
