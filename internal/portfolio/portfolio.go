// Package portfolio tracks positions, P&L, and risk limits.
//
// It maintains an accounting view of open positions (average entry price,
// mark price, unrealized P&L) separate from the strategy's trading state.
package portfolio

import (
	"sync"

	"trident/internal/model"
)

// Position is the accounting view of a single instrument position.
type Position struct {
	Symbol   string  `json:"symbol"`
	Qty      float64 `json:"qty"`       // positive = long, negative = short
	AvgPrice float64 `json:"avg_price"` // average entry price
	Mark     float64 `json:"mark"`      // last mark price
}

// UnrealizedPnL returns the unrealized P&L at the current mark.
func (p *Position) UnrealizedPnL() float64 {
	return (p.Mark - p.AvgPrice) * p.Qty
}

// Portfolio tracks all open positions.
type Portfolio struct {
	mu        sync.RWMutex
	positions map[string]*Position
}

// New creates a new empty Portfolio.
func New() *Portfolio {
	return &Portfolio{
		positions: make(map[string]*Position),
	}
}

// MarkPrice updates the mark price for a symbol from a closed bar.
func (pf *Portfolio) MarkPrice(bar model.Bar) {
	pf.mu.Lock()
	defer pf.mu.Unlock()
	if pos, ok := pf.positions[bar.Symbol]; ok {
		pos.Mark = bar.Close
	}
}

// Apply updates the position from a fill. Opens add to the signed quantity
// with weighted-average pricing; closes reduce it. Flat positions are removed.
func (pf *Portfolio) Apply(fill model.Fill) {
	pf.mu.Lock()
	defer pf.mu.Unlock()

	pos, ok := pf.positions[fill.Symbol]
	if !ok {
		pos = &Position{Symbol: fill.Symbol, Mark: fill.Price}
		pf.positions[fill.Symbol] = pos
	}

	signed := fill.Qty
	if fill.Side == model.SideSell {
		signed = -fill.Qty
	}

	if fill.Offset == model.OffsetOpen {
		newQty := pos.Qty + signed
		if newQty != 0 {
			pos.AvgPrice = (pos.AvgPrice*abs(pos.Qty) + fill.Price*fill.Qty) / (abs(pos.Qty) + fill.Qty)
		}
		pos.Qty = newQty
	} else {
		pos.Qty += signed
	}
	pos.Mark = fill.Price

	if pos.Qty == 0 {
		delete(pf.positions, fill.Symbol)
	}
}

// GetPositions returns a snapshot of all positions.
func (pf *Portfolio) GetPositions() []Position {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	result := make([]Position, 0, len(pf.positions))
	for _, p := range pf.positions {
		result = append(result, *p)
	}
	return result
}

// TotalUnrealizedPnL returns the total unrealized P&L across all positions.
func (pf *Portfolio) TotalUnrealizedPnL() float64 {
	pf.mu.RLock()
	defer pf.mu.RUnlock()
	var total float64
	for _, p := range pf.positions {
		total += p.UnrealizedPnL()
	}
	return total
}

func abs(x float64) float64 {
	if x < 0 {
		return -x
	}
	return x
}
