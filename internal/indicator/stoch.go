package indicator

import "trident/internal/model"

// Stoch calculates the Stochastic Oscillator %K/%D.
//
// Raw %K = 100 * (close - lowestLow(kPeriod)) / (highestHigh(kPeriod) - lowestLow(kPeriod)).
// %K is the SMA of raw %K over the slowing period; %D is the SMA of %K over
// the d period. A flat range (highest == lowest) is defined as %K = 50 so a
// dead market reads neutral instead of propagating NaN.
type Stoch struct {
	kPeriod int

	highs []float64 // circular buffers over the lookback window
	lows  []float64
	idx   int
	count int

	slowK *SMA // slowing SMA over raw %K
	d     *SMA // %D: SMA over slowed %K
}

// NewStoch creates a Stochastic oscillator with the given periods
// (typically 14/3/3 for k/slowing/d).
func NewStoch(kPeriod, slowingPeriod, dPeriod int) *Stoch {
	return &Stoch{
		kPeriod: kPeriod,
		highs:   make([]float64, kPeriod),
		lows:    make([]float64, kPeriod),
		slowK:   NewSMA(slowingPeriod),
		d:       NewSMA(dPeriod),
	}
}

func (s *Stoch) Name() string { return "STOCH" }

func (s *Stoch) Update(bar model.Bar) {
	s.highs[s.idx] = bar.High
	s.lows[s.idx] = bar.Low
	s.idx = (s.idx + 1) % s.kPeriod
	s.count++

	if s.count < s.kPeriod {
		return
	}

	hh := s.highs[0]
	ll := s.lows[0]
	for i := 1; i < s.kPeriod; i++ {
		if s.highs[i] > hh {
			hh = s.highs[i]
		}
		if s.lows[i] < ll {
			ll = s.lows[i]
		}
	}

	rawK := 50.0 // neutral when the range is flat
	if hh > ll {
		rawK = 100.0 * (bar.Close - ll) / (hh - ll)
	}

	s.slowK.Push(rawK)
	if s.slowK.Ready() {
		s.d.Push(s.slowK.Value())
	}
}

// K returns the slowed %K value.
func (s *Stoch) K() float64 { return s.slowK.Value() }

// D returns the %D value.
func (s *Stoch) D() float64 { return s.d.Value() }

// Value returns %K (the primary line).
func (s *Stoch) Value() float64 { return s.K() }

func (s *Stoch) Ready() bool { return s.slowK.Ready() && s.d.Ready() }
