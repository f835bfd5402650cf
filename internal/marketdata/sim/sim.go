// Package sim provides a simulated tick source for paper trading without
// exchange credentials. It generates a random walk around a starting price
// and feeds ticks into the same channel the live WebSocket stream would.
package sim

import (
	"context"
	"log"
	"math/rand"
	"time"

	"trident/internal/model"
)

// Config holds configuration for the tick simulator.
type Config struct {
	Symbol     string
	StartPrice float64       // e.g. 50000 for BTCUSDT
	Interval   time.Duration // time between ticks; defaults to 100ms
	WalkPct    float64       // max move per tick as a fraction; defaults to 0.001 (±0.1%)
}

func (c *Config) defaults() {
	if c.Interval == 0 {
		c.Interval = 100 * time.Millisecond
	}
	if c.WalkPct == 0 {
		c.WalkPct = 0.001
	}
	if c.StartPrice == 0 {
		c.StartPrice = 50000
	}
}

// Simulator generates random-walk ticks for one symbol.
type Simulator struct {
	cfg   Config
	price float64
	rng   *rand.Rand

	// OnTick is called for every generated tick (optional, for metrics).
	OnTick func(model.Tick)
}

// New creates a Simulator.
func New(cfg Config) *Simulator {
	cfg.defaults()
	return &Simulator{
		cfg:   cfg,
		price: cfg.StartPrice,
		rng:   rand.New(rand.NewSource(time.Now().UnixNano())),
	}
}

// Run generates ticks into tickCh until ctx is cancelled.
func (s *Simulator) Run(ctx context.Context, tickCh chan<- model.Tick) {
	ticker := time.NewTicker(s.cfg.Interval)
	defer ticker.Stop()

	log.Printf("[sim] generating ticks for %s from %.2f every %s", s.cfg.Symbol, s.price, s.cfg.Interval)

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.price = s.walk(s.price)
			tick := model.Tick{
				Symbol: s.cfg.Symbol,
				Price:  s.price,
				Qty:    s.rng.Float64()*0.5 + 0.001,
				TS:     time.Now().UTC(),
			}
			if s.OnTick != nil {
				s.OnTick(tick)
			}
			select {
			case tickCh <- tick:
			default:
				log.Println("[sim] tickCh full, dropping tick")
			}
		}
	}
}

// walk applies a small random move, floored above zero.
func (s *Simulator) walk(price float64) float64 {
	pct := (s.rng.Float64()*2 - 1) * s.cfg.WalkPct
	next := price * (1 + pct)
	if next < 0.01 {
		next = 0.01
	}
	return next
}

// Price returns the current simulated price.
func (s *Simulator) Price() float64 {
	return s.price
}
