// Package execution translates strategy signals into exchange orders.
//
// The Executor rounds quantities and prices to the symbol's trading rules,
// bounds slippage by deriving limit prices from the live quote, and hands the
// finished order to the broker. Orders left open from the previous bar are
// cancelled at each bar open.
package execution

import (
	"context"
	"errors"
	"fmt"
	"log"
	"math"
	"time"

	"trident/internal/model"
	"trident/internal/strategy"
)

// ErrBelowMinQty rejects orders whose rounded quantity is under the
// exchange minimum.
var ErrBelowMinQty = errors.New("quantity below exchange minimum")

// OrderResult represents the outcome of an order placement.
type OrderResult struct {
	OrderID string `json:"order_id"`
	Status  string `json:"status"` // PLACED, REJECTED, ERROR
	Message string `json:"message"`
	Signal  strategy.Signal
}

// RoundQuantity truncates qty down to the symbol's step size and rejects
// quantities under the minimum. Truncation never rounds up: an order must
// not exceed what the strategy asked for.
func RoundQuantity(qty float64, rules model.TradingRules) (float64, error) {
	if rules.StepSize > 0 {
		steps := math.Floor(qty/rules.StepSize + 1e-9)
		qty = steps * rules.StepSize
	}
	if qty <= 0 || (rules.MinQty > 0 && qty < rules.MinQty) {
		return 0, fmt.Errorf("%w: %.8f < %.8f", ErrBelowMinQty, qty, rules.MinQty)
	}
	return qty, nil
}

// RoundPrice truncates price down to the symbol's tick size.
func RoundPrice(price float64, rules model.TradingRules) float64 {
	if rules.TickSize <= 0 {
		return price
	}
	ticks := math.Floor(price/rules.TickSize + 1e-9)
	return ticks * rules.TickSize
}

// Executor places orders based on strategy signals.
type Executor struct {
	broker      model.Broker
	quotes      model.QuoteSource
	rules       model.TradingRules
	slippageTol float64 // max slippage fraction on limit prices

	resultCh chan OrderResult
}

// NewExecutor creates an order executor bound to one symbol's trading rules.
// slippageTol is the tolerated slippage fraction (e.g. 0.001 = 0.1%).
func NewExecutor(broker model.Broker, quotes model.QuoteSource, rules model.TradingRules, slippageTol float64, resultBufferSize int) *Executor {
	return &Executor{
		broker:      broker,
		quotes:      quotes,
		rules:       rules,
		slippageTol: slippageTol,
		resultCh:    make(chan OrderResult, resultBufferSize),
	}
}

// Results returns the channel of order results.
func (e *Executor) Results() <-chan OrderResult {
	return e.resultCh
}

// CancelOpen cancels all open orders for the executor's symbol. Called at
// each bar open so stale orders never survive into the next decision.
func (e *Executor) CancelOpen(ctx context.Context) error {
	return e.broker.CancelOpen(ctx, e.rules.Symbol)
}

// BuildOrder converts a signal into a rounded, slippage-bounded order
// request. Buys cap the limit at ask*(1+tol); sells floor it at bid*(1-tol).
// Without a live quote the order goes out as a market order.
func (e *Executor) BuildOrder(sig strategy.Signal) (model.OrderRequest, error) {
	qty, err := RoundQuantity(sig.Qty, e.rules)
	if err != nil {
		return model.OrderRequest{}, err
	}

	req := model.OrderRequest{
		Symbol:    sig.Symbol,
		Side:      sig.Side,
		Offset:    sig.Offset,
		Qty:       qty,
		Reason:    sig.Reason,
		CreatedAt: time.Now(),
	}

	quote, ok := e.quotes.LastQuote(sig.Symbol)
	if !ok || quote.Bid <= 0 || quote.Ask <= 0 {
		req.Type = model.OrderMarket
		return req, nil
	}

	req.Type = model.OrderLimit
	if sig.Side == model.SideBuy {
		req.Price = RoundPrice(quote.Ask*(1+e.slippageTol), e.rules)
	} else {
		req.Price = RoundPrice(quote.Bid*(1-e.slippageTol), e.rules)
	}
	return req, nil
}

// Run consumes signals and places orders.
// Blocks until ctx is cancelled or signalCh is closed.
func (e *Executor) Run(ctx context.Context, signalCh <-chan strategy.Signal) {
	for {
		select {
		case <-ctx.Done():
			return
		case sig, ok := <-signalCh:
			if !ok {
				return
			}
			e.execute(ctx, sig)
		}
	}
}

func (e *Executor) execute(ctx context.Context, sig strategy.Signal) {
	req, err := e.BuildOrder(sig)
	if err != nil {
		log.Printf("[executor] rejected %s %s %s qty=%.8f: %v", sig.StrategyName, sig.Side, sig.Offset, sig.Qty, err)
		e.emit(OrderResult{Status: "REJECTED", Message: err.Error(), Signal: sig})
		return
	}

	orderID, err := e.broker.Place(ctx, req)
	if err != nil {
		log.Printf("[executor] place failed %s %s qty=%.8f price=%.2f: %v", req.Side, req.Offset, req.Qty, req.Price, err)
		e.emit(OrderResult{Status: "ERROR", Message: err.Error(), Signal: sig})
		return
	}

	log.Printf("[executor] placed %s: %s %s %s qty=%.8f price=%.2f reason=%s",
		orderID, req.Type, req.Side, req.Offset, req.Qty, req.Price, req.Reason)
	e.emit(OrderResult{OrderID: orderID, Status: "PLACED", Signal: sig})
}

func (e *Executor) emit(res OrderResult) {
	select {
	case e.resultCh <- res:
	default:
		// result channel full, drop
	}
}
