package portfolio

import (
	"log"
	"sync"
)

// RiskLimits defines configurable risk management thresholds.
type RiskLimits struct {
	MaxPositionSize  float64 `json:"max_position_size"`  // max qty per instrument
	MaxDailyLoss     float64 `json:"max_daily_loss"`     // max daily loss in quote currency
	MaxOpenPositions int     `json:"max_open_positions"` // max number of concurrent positions
	MaxDrawdownPct   float64 `json:"max_drawdown_pct"`   // max drawdown percentage (0-100)
}

// DefaultRiskLimits returns conservative default limits for a single-symbol
// BTC strategy.
func DefaultRiskLimits() RiskLimits {
	return RiskLimits{
		MaxPositionSize:  0.1,
		MaxDailyLoss:     1000,
		MaxOpenPositions: 1,
		MaxDrawdownPct:   10.0,
	}
}

// RiskManager validates new entries against risk limits and tracks equity.
type RiskManager struct {
	mu        sync.RWMutex
	limits    RiskLimits
	portfolio *Portfolio

	dailyPnL   float64
	equity     float64
	peakEquity float64
}

// NewRiskManager creates a RiskManager with the given limits, portfolio, and starting equity.
func NewRiskManager(limits RiskLimits, pf *Portfolio, initialEquity float64) *RiskManager {
	return &RiskManager{
		limits:     limits,
		portfolio:  pf,
		equity:     initialEquity,
		peakEquity: initialEquity,
	}
}

// CanTrade checks if a new entry would violate any risk limits.
// Returns true if the trade is allowed, false with a reason if not.
func (rm *RiskManager) CanTrade(symbol string, qty float64) (bool, string) {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	positions := rm.portfolio.GetPositions()

	isNew := true
	for _, pos := range positions {
		if pos.Symbol == symbol {
			isNew = false
			break
		}
	}
	if isNew && len(positions) >= rm.limits.MaxOpenPositions {
		return false, "max open positions reached"
	}

	if qty > rm.limits.MaxPositionSize || qty < -rm.limits.MaxPositionSize {
		return false, "position size exceeds limit"
	}

	if rm.dailyPnL < -rm.limits.MaxDailyLoss {
		return false, "max daily loss reached"
	}

	if rm.peakEquity > 0 {
		drawdown := (rm.peakEquity - rm.equity) / rm.peakEquity * 100
		if drawdown > rm.limits.MaxDrawdownPct {
			return false, "max drawdown exceeded"
		}
	}

	return true, ""
}

// RecordPnL updates daily P&L and equity tracking.
func (rm *RiskManager) RecordPnL(pnl float64) {
	rm.mu.Lock()
	defer rm.mu.Unlock()

	rm.dailyPnL += pnl
	rm.equity += pnl
	if rm.equity > rm.peakEquity {
		rm.peakEquity = rm.equity
	}

	log.Printf("[risk] daily P&L: %.2f, equity: %.2f, peak: %.2f", rm.dailyPnL, rm.equity, rm.peakEquity)
}

// ResetDaily resets the daily P&L counter (call at UTC midnight).
func (rm *RiskManager) ResetDaily() {
	rm.mu.Lock()
	defer rm.mu.Unlock()
	rm.dailyPnL = 0
}

// GetStatus returns current risk status.
func (rm *RiskManager) GetStatus() map[string]interface{} {
	rm.mu.RLock()
	defer rm.mu.RUnlock()

	drawdown := 0.0
	if rm.peakEquity > 0 {
		drawdown = (rm.peakEquity - rm.equity) / rm.peakEquity * 100
	}

	return map[string]interface{}{
		"daily_pnl":    rm.dailyPnL,
		"equity":       rm.equity,
		"peak_equity":  rm.peakEquity,
		"drawdown_pct": drawdown,
		"limits":       rm.limits,
	}
}
