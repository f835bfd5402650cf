// Package strategy provides the strategy engine for running trading strategies.
//
// A Strategy receives market data (closed bars, ticks) and fill confirmations,
// and emits order signals. The Engine manages strategy lifecycle: registration,
// data routing, and signal collection.
package strategy

import (
	"context"
	"log"

	"trident/internal/model"
)

// Signal represents an order intent emitted by a strategy. Price is left at
// zero: the execution adapter derives the limit price from the live quote.
type Signal struct {
	StrategyName string       `json:"strategy_name"`
	Symbol       string       `json:"symbol"`
	Side         model.Side   `json:"side"`
	Offset       model.Offset `json:"offset"`
	Qty          float64      `json:"qty"`
	Reason       string       `json:"reason"`
}

// Strategy is the interface that all trading strategies must implement.
type Strategy interface {
	// Name returns the unique name of the strategy.
	Name() string

	// OnBar is called once for each closed bar, in order.
	// Return a Signal if the strategy wants to act, or nil to skip.
	OnBar(bar model.Bar) *Signal

	// OnTick is called for each raw tick (optional, can be a no-op).
	OnTick(tick model.Tick)

	// OnFill is called when the broker confirms a trade.
	OnFill(fill model.Fill)
}

// Engine manages registered strategies and routes market data to them.
type Engine struct {
	strategies []Strategy
	signalCh   chan Signal
}

// NewEngine creates a new strategy engine.
func NewEngine(signalBufferSize int) *Engine {
	return &Engine{
		signalCh: make(chan Signal, signalBufferSize),
	}
}

// Register adds a strategy to the engine.
func (e *Engine) Register(s Strategy) {
	e.strategies = append(e.strategies, s)
}

// Signals returns the channel of signals emitted by strategies.
func (e *Engine) Signals() <-chan Signal {
	return e.signalCh
}

// RouteTick forwards a raw tick to all registered strategies.
func (e *Engine) RouteTick(tick model.Tick) {
	for _, s := range e.strategies {
		s.OnTick(tick)
	}
}

// RouteFill forwards a fill confirmation to all registered strategies.
func (e *Engine) RouteFill(fill model.Fill) {
	for _, s := range e.strategies {
		s.OnFill(fill)
	}
}

// Run consumes closed bars and routes them to all registered strategies.
// Blocks until ctx is cancelled or barCh is closed.
func (e *Engine) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			for _, s := range e.strategies {
				if sig := s.OnBar(bar); sig != nil {
					select {
					case e.signalCh <- *sig:
					default:
						log.Printf("[strategy] signal channel full, dropping %s %s %s", sig.StrategyName, sig.Side, sig.Offset)
					}
				}
			}
		}
	}
}
