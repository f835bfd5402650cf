package execution

import (
	"context"
	"fmt"
	"log"
	"sync"
	"time"

	"trident/internal/model"
)

// PaperBroker simulates order execution without real exchange calls.
// Limit orders fill at their limit price; market orders fill at the last
// mark price. Useful for backtesting and paper trading.
type PaperBroker struct {
	mu        sync.RWMutex
	fills     []model.Fill
	fillCh    chan model.Fill
	orderSeq  int64
	markPrice float64
	cancels   int64
}

// NewPaperBroker creates a paper trading broker.
func NewPaperBroker(fillBufferSize int) *PaperBroker {
	return &PaperBroker{
		fills:  make([]model.Fill, 0, 1000),
		fillCh: make(chan model.Fill, fillBufferSize),
	}
}

// SetMarkPrice updates the price used to fill market orders. The backtest
// driver sets it to each bar's close before feeding the bar downstream.
func (p *PaperBroker) SetMarkPrice(price float64) {
	p.mu.Lock()
	p.markPrice = price
	p.mu.Unlock()
}

// Place fills the order immediately and returns its id.
func (p *PaperBroker) Place(ctx context.Context, req model.OrderRequest) (string, error) {
	p.mu.Lock()
	p.orderSeq++
	orderID := fmt.Sprintf("PAPER-%d", p.orderSeq)

	fillPrice := req.Price
	if req.Type == model.OrderMarket || fillPrice == 0 {
		fillPrice = p.markPrice
	}

	fill := model.Fill{
		OrderID:  orderID,
		Symbol:   req.Symbol,
		Side:     req.Side,
		Offset:   req.Offset,
		Qty:      req.Qty,
		Price:    fillPrice,
		Reason:   req.Reason,
		FilledAt: time.Now(),
	}
	p.fills = append(p.fills, fill)
	p.mu.Unlock()

	log.Printf("[paper] filled %s: %s %s %.8f@%.2f reason=%s",
		orderID, req.Side, req.Offset, req.Qty, fillPrice, req.Reason)

	select {
	case p.fillCh <- fill:
	case <-ctx.Done():
		return orderID, ctx.Err()
	}
	return orderID, nil
}

// CancelOpen is a no-op for the paper broker: every order fills instantly,
// so there is never anything to cancel. The call count is kept for tests.
func (p *PaperBroker) CancelOpen(ctx context.Context, symbol string) error {
	p.mu.Lock()
	p.cancels++
	p.mu.Unlock()
	return nil
}

// Fills returns the channel of simulated fills.
func (p *PaperBroker) Fills() <-chan model.Fill {
	return p.fillCh
}

// AllFills returns a snapshot of every fill so far.
func (p *PaperBroker) AllFills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}
