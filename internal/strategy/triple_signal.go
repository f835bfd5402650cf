package strategy

import (
	"log"
	"sync"

	"trident/internal/indicator"
	"trident/internal/model"
)

// TripleSignal implements the layered triple-signal strategy.
//
// Entries pass three filters in order: ADX must show a trending market, the
// fast/slow SMA pair must agree on a direction, and at least SignalNum of the
// three oscillators (RSI, MACD histogram, stochastic) must vote that way on a
// bar with above-average volume.
//
// An open position is managed before any entry logic runs, and at most one
// order is emitted per bar. Exits check in strict order: ATR trailing stop,
// RSI take-profit, then signal reversal.
type TripleSignal struct {
	name   string
	params Params

	// mu serializes OnBar against OnFill: bars and fills arrive on
	// different goroutines in the live pipeline, and both mutate pos.
	mu sync.Mutex

	eng *indicator.Engine
	pos Position

	// crossOver holds the stochastic state: armed by a golden cross,
	// cleared by a dead cross.
	crossOver bool

	// lastATR is kept for stop seeding when a fill arrives between bars.
	lastATR  float64
	barCount int
}

// NewTripleSignal creates the strategy with the given parameters.
func NewTripleSignal(p Params) *TripleSignal {
	return &TripleSignal{
		name:   "Triple_Signal",
		params: p,
		eng:    indicator.NewEngine(p.IndicatorConfig()),
	}
}

func (s *TripleSignal) Name() string {
	return s.name
}

func (s *TripleSignal) OnTick(tick model.Tick) {
	// No-op: decisions are made on closed bars only
}

// OnFill updates position state from broker confirmations.
func (s *TripleSignal) OnFill(fill model.Fill) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.pos.ApplyFill(fill, s.lastATR, s.params.ATRMultiplier)
}

// Position exposes the current position state (for reporting).
func (s *TripleSignal) Position() Position {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.pos
}

// OnBar processes one closed bar and returns at most one order signal.
func (s *TripleSignal) OnBar(bar model.Bar) *Signal {
	s.mu.Lock()
	defer s.mu.Unlock()

	// Unfilled orders are cancelled at each bar open, so any pending flag
	// from the previous bar is stale by now.
	s.pos.Pending = false

	s.barCount++
	s.pos.Track(bar)

	snap := s.eng.Update(bar)
	if !snap.Ready {
		if s.barCount%10 == 0 {
			log.Printf("[strategy] %s: warming up, %d bars seen", s.name, s.barCount)
		}
		return nil
	}

	if snap.GoldenCross() {
		s.crossOver = true
	} else if snap.DeadCross() {
		s.crossOver = false
	}
	s.lastATR = snap.ATR

	// Position management is exclusive: never enter on the same bar
	if s.pos.Long() {
		return s.manageLong(snap)
	}
	if s.pos.Short() {
		return s.manageShort(snap)
	}
	return s.evaluateEntry(snap)
}

func (s *TripleSignal) manageLong(snap indicator.Snapshot) *Signal {
	p := s.params
	bar := snap.Bar

	// Ratchet the trailing stop once price clears the activation threshold
	if bar.Close > s.pos.Entry*(1+p.TrailingActivationPct) {
		s.pos.RaiseStop(s.pos.IntraTradeHigh - snap.ATR*p.ATRMultiplier)
	}

	if bar.Close <= s.pos.Stop {
		log.Printf("[strategy] %s: long stop hit, close=%.2f stop=%.2f", s.name, bar.Close, s.pos.Stop)
		return s.exit(model.SideSell, "trailing stop")
	}

	if snap.RSI >= p.RSISellLevel {
		log.Printf("[strategy] %s: long take-profit, RSI=%.2f >= %.2f", s.name, snap.RSI, p.RSISellLevel)
		return s.exit(model.SideSell, "rsi take profit")
	}

	votes := countVotes(snap, s.crossOver, p)
	if votes.Short >= p.SignalNum && snap.Trend == -1 {
		log.Printf("[strategy] %s: long reversal exit, short votes=%d", s.name, votes.Short)
		return s.exit(model.SideSell, "signal reversal")
	}

	return nil
}

func (s *TripleSignal) manageShort(snap indicator.Snapshot) *Signal {
	p := s.params
	bar := snap.Bar

	if bar.Close < s.pos.Entry*(1-p.TrailingActivationPct) {
		s.pos.LowerStop(s.pos.IntraTradeLow + snap.ATR*p.ATRMultiplier)
	}

	if bar.Close >= s.pos.Stop {
		log.Printf("[strategy] %s: short stop hit, close=%.2f stop=%.2f", s.name, bar.Close, s.pos.Stop)
		return s.exit(model.SideBuy, "trailing stop")
	}

	if snap.RSI <= p.RSIBuyLevel {
		log.Printf("[strategy] %s: short take-profit, RSI=%.2f <= %.2f", s.name, snap.RSI, p.RSIBuyLevel)
		return s.exit(model.SideBuy, "rsi take profit")
	}

	votes := countVotes(snap, s.crossOver, p)
	if votes.Long >= p.SignalNum && snap.Trend == 1 {
		log.Printf("[strategy] %s: short reversal exit, long votes=%d", s.name, votes.Long)
		return s.exit(model.SideBuy, "signal reversal")
	}

	return nil
}

func (s *TripleSignal) evaluateEntry(snap indicator.Snapshot) *Signal {
	p := s.params
	votes := countVotes(snap, s.crossOver, p)

	dir := evaluateEntry(snap, votes, p)
	if dir == 0 {
		return nil
	}

	side := model.SideBuy
	if dir == -1 {
		side = model.SideSell
	}

	log.Printf("[strategy] %s: entry %s votes=(%d long, %d short) ADX=%.2f trend=%d vol=%.2f avg=%.2f",
		s.name, side, votes.Long, votes.Short, snap.ADX, snap.Trend, snap.Bar.Volume, snap.AvgVolume)

	s.pos.Pending = true
	return &Signal{
		StrategyName: s.name,
		Symbol:       snap.Bar.Symbol,
		Side:         side,
		Offset:       model.OffsetOpen,
		Qty:          p.FixedSize,
		Reason:       "triple signal entry",
	}
}

func (s *TripleSignal) exit(side model.Side, reason string) *Signal {
	qty := s.pos.Qty
	if qty < 0 {
		qty = -qty
	}
	s.pos.Pending = true
	return &Signal{
		StrategyName: s.name,
		Symbol:       s.params.Symbol,
		Side:         side,
		Offset:       model.OffsetClose,
		Qty:          qty,
		Reason:       reason,
	}
}
