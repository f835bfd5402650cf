package strategy

import (
	"log"

	"trident/internal/model"
)

// Position tracks one symbol's open position and its protective stop.
// Qty is signed: positive long, negative short, zero flat.
type Position struct {
	Qty   float64
	Entry float64

	IntraTradeHigh float64
	IntraTradeLow  float64

	// Stop is the protective stop price. It only ever moves in the
	// favorable direction while the trailing ratchet is armed.
	Stop float64

	// Pending is set while an order is in flight; cleared when the broker
	// confirms a fill or the order is cancelled at the next bar open.
	Pending bool
}

// Long reports an open long position.
func (ps *Position) Long() bool { return ps.Qty > 0 }

// Short reports an open short position.
func (ps *Position) Short() bool { return ps.Qty < 0 }

// Flat reports no open position.
func (ps *Position) Flat() bool { return ps.Qty == 0 }

// Track extends the intratrade extremes with a new bar.
func (ps *Position) Track(bar model.Bar) {
	if ps.Qty > 0 && bar.High > ps.IntraTradeHigh {
		ps.IntraTradeHigh = bar.High
	}
	if ps.Qty < 0 && bar.Low < ps.IntraTradeLow {
		ps.IntraTradeLow = bar.Low
	}
}

// ApplyFill updates position state from a broker fill. Opening fills seed the
// entry price, the intratrade extreme and the initial ATR stop; closing fills
// reset everything.
func (ps *Position) ApplyFill(fill model.Fill, atr, atrMultiplier float64) {
	ps.Pending = false

	if fill.Offset == model.OffsetOpen {
		ps.Entry = fill.Price
		if fill.Side == model.SideBuy {
			ps.Qty += fill.Qty
			ps.IntraTradeHigh = fill.Price
			ps.Stop = fill.Price - atr*atrMultiplier
			log.Printf("[position] long open %.6f@%.2f initial stop %.2f (ATR=%.2f)", fill.Qty, fill.Price, ps.Stop, atr)
		} else {
			ps.Qty -= fill.Qty
			ps.IntraTradeLow = fill.Price
			ps.Stop = fill.Price + atr*atrMultiplier
			log.Printf("[position] short open %.6f@%.2f initial stop %.2f (ATR=%.2f)", fill.Qty, fill.Price, ps.Stop, atr)
		}
		return
	}

	// A close fill against a flat book means this state has desynced from
	// the broker. Trading on would compound the damage, so stop the process.
	if ps.Flat() {
		log.Panicf("[position] close fill on a flat book: %s %.6f@%.2f (%s)",
			fill.Side, fill.Qty, fill.Price, fill.Reason)
	}

	// Closing fill: flatten and reset trade state
	if fill.Side == model.SideBuy {
		ps.Qty += fill.Qty
	} else {
		ps.Qty -= fill.Qty
	}
	if ps.Qty == 0 {
		ps.reset()
		log.Printf("[position] flat after close %.6f@%.2f (%s)", fill.Qty, fill.Price, fill.Reason)
	}
}

func (ps *Position) reset() {
	ps.Entry = 0
	ps.IntraTradeHigh = 0
	ps.IntraTradeLow = 0
	ps.Stop = 0
}

// RaiseStop ratchets a long stop upward. Returns true if the stop moved.
func (ps *Position) RaiseStop(candidate float64) bool {
	if candidate > ps.Stop {
		old := ps.Stop
		ps.Stop = candidate
		log.Printf("[position] long trailing stop %.2f -> %.2f (high=%.2f)", old, ps.Stop, ps.IntraTradeHigh)
		return true
	}
	return false
}

// LowerStop ratchets a short stop downward. Returns true if the stop moved.
func (ps *Position) LowerStop(candidate float64) bool {
	if ps.Stop == 0 || candidate < ps.Stop {
		old := ps.Stop
		ps.Stop = candidate
		log.Printf("[position] short trailing stop %.2f -> %.2f (low=%.2f)", old, ps.Stop, ps.IntraTradeLow)
		return true
	}
	return false
}
