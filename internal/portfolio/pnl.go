package portfolio

import (
	"sync"

	"trident/internal/model"
)

// PnLTracker tracks realized P&L from fills. Both long and short round trips
// are supported: a short entry (SELL OPEN) realizes profit when the position
// is bought back lower.
type PnLTracker struct {
	mu    sync.RWMutex
	fills []model.Fill

	realizedPnL float64

	// Per-symbol cost basis
	costBasis map[string]costEntry

	roundTrips int
	wins       int
}

type costEntry struct {
	Qty      float64 // signed: positive = long, negative = short
	AvgPrice float64
}

// NewPnLTracker creates a new P&L tracker.
func NewPnLTracker() *PnLTracker {
	return &PnLTracker{
		fills:     make([]model.Fill, 0, 500),
		costBasis: make(map[string]costEntry),
	}
}

// RecordFill records a fill and returns the realized P&L it produced
// (zero for opening fills).
func (p *PnLTracker) RecordFill(fill model.Fill) float64 {
	p.mu.Lock()
	defer p.mu.Unlock()

	p.fills = append(p.fills, fill)
	entry := p.costBasis[fill.Symbol]

	var realized float64

	if fill.Offset == model.OffsetOpen {
		signed := fill.Qty
		if fill.Side == model.SideSell {
			signed = -fill.Qty
		}
		if entry.Qty == 0 {
			entry.Qty = signed
			entry.AvgPrice = fill.Price
		} else {
			// Weighted average price on adds in the same direction
			totalCost := entry.AvgPrice*abs(entry.Qty) + fill.Price*fill.Qty
			entry.Qty += signed
			if entry.Qty != 0 {
				entry.AvgPrice = totalCost / abs(entry.Qty)
			}
		}
	} else {
		closeQty := fill.Qty
		if closeQty > abs(entry.Qty) {
			closeQty = abs(entry.Qty)
		}
		if entry.Qty > 0 {
			// Closing a long: SELL at fill price
			realized = (fill.Price - entry.AvgPrice) * closeQty
			entry.Qty -= closeQty
		} else if entry.Qty < 0 {
			// Closing a short: BUY back at fill price
			realized = (entry.AvgPrice - fill.Price) * closeQty
			entry.Qty += closeQty
		}
		if entry.Qty == 0 {
			entry.AvgPrice = 0
			p.roundTrips++
			if realized > 0 {
				p.wins++
			}
		}
		p.realizedPnL += realized
	}

	p.costBasis[fill.Symbol] = entry
	return realized
}

// GetRealizedPnL returns total realized P&L.
func (p *PnLTracker) GetRealizedPnL() float64 {
	p.mu.RLock()
	defer p.mu.RUnlock()
	return p.realizedPnL
}

// GetFills returns a snapshot of all recorded fills.
func (p *PnLTracker) GetFills() []model.Fill {
	p.mu.RLock()
	defer p.mu.RUnlock()
	cp := make([]model.Fill, len(p.fills))
	copy(cp, p.fills)
	return cp
}

// PnLSummary is a point-in-time P&L report.
type PnLSummary struct {
	RealizedPnL   float64 `json:"realized_pnl"`
	UnrealizedPnL float64 `json:"unrealized_pnl"`
	TotalPnL      float64 `json:"total_pnl"`
	TotalFills    int     `json:"total_fills"`
	RoundTrips    int     `json:"round_trips"`
	Wins          int     `json:"wins"`
	WinRatePct    float64 `json:"win_rate_pct"`
	OpenPositions int     `json:"open_positions"`
}

// GetSummary returns the current P&L summary. currentPrices maps
// symbol -> latest mark price for unrealized P&L.
func (p *PnLTracker) GetSummary(currentPrices map[string]float64) PnLSummary {
	p.mu.RLock()
	defer p.mu.RUnlock()

	unrealized := 0.0
	openPositions := 0
	for symbol, entry := range p.costBasis {
		if entry.Qty == 0 {
			continue
		}
		openPositions++
		if price, ok := currentPrices[symbol]; ok {
			unrealized += (price - entry.AvgPrice) * entry.Qty
		}
	}

	winRate := 0.0
	if p.roundTrips > 0 {
		winRate = float64(p.wins) / float64(p.roundTrips) * 100
	}

	return PnLSummary{
		RealizedPnL:   p.realizedPnL,
		UnrealizedPnL: unrealized,
		TotalPnL:      p.realizedPnL + unrealized,
		TotalFills:    len(p.fills),
		RoundTrips:    p.roundTrips,
		Wins:          p.wins,
		WinRatePct:    winRate,
		OpenPositions: openPositions,
	}
}
