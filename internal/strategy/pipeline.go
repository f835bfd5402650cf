package strategy

import "trident/internal/indicator"

// Votes tallies the per-oscillator direction votes for one bar.
type Votes struct {
	Long  int
	Short int
}

// countVotes scores RSI, MACD histogram and the stochastic for one bar.
//
// RSI votes long at or below the buy level, short at or above the sell level.
// MACD votes by histogram sign. The stochastic vote carries state: a golden
// cross arms the long vote until a dead cross clears it, and the short vote
// requires the cleared state with both %K and %D in the overbought zone.
func countVotes(snap indicator.Snapshot, crossOver bool, p Params) Votes {
	var v Votes

	if snap.RSI <= p.RSIBuyLevel {
		v.Long++
	} else if snap.RSI >= p.RSISellLevel {
		v.Short++
	}

	if snap.MACDHist > 0 {
		v.Long++
	} else if snap.MACDHist < 0 {
		v.Short++
	}

	if crossOver {
		v.Long++
	} else if snap.K > 80 && snap.D > 80 {
		v.Short++
	}

	return v
}

// evaluateEntry runs the layered entry filter and returns the entry
// direction: +1 long, -1 short, 0 no trade.
//
// Layer 1 rejects trendless markets (ADX below threshold). Layer 2 rejects
// bars without a moving-average direction. Layer 3 demands enough oscillator
// votes in the MA direction plus above-average volume.
func evaluateEntry(snap indicator.Snapshot, votes Votes, p Params) int {
	if snap.ADX < p.ADXThreshold {
		return 0
	}

	if snap.Trend == 0 {
		return 0
	}

	if snap.Bar.Volume <= snap.AvgVolume*p.VolumeMultiplier {
		return 0
	}

	if snap.Trend == 1 && votes.Long >= p.SignalNum {
		return 1
	}
	if snap.Trend == -1 && votes.Short >= p.SignalNum {
		return -1
	}
	return 0
}
