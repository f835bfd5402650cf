package indicator

import (
	"math"

	"trident/internal/model"
)

// ADX calculates the Average Directional Index: Wilder-smoothed directional
// movement (+DM/-DM) normalized by true range, with the resulting DX values
// smoothed once more. ADX measures trend strength only — it asserts no trend
// direction.
type ADX struct {
	period int
	count  int

	prevHigh  float64
	prevLow   float64
	prevClose float64

	// Wilder-smoothed running sums
	smTR     float64
	smPlusDM float64
	smMinDM  float64

	dxSum   float64 // accumulates DX for the ADX seed
	dxCount int
	current float64
}

// NewADX creates a new ADX indicator with the given period (typically 14).
func NewADX(period int) *ADX {
	return &ADX{period: period}
}

func (a *ADX) Name() string { return "ADX" }

func (a *ADX) Update(bar model.Bar) {
	a.count++

	if a.count == 1 {
		a.prevHigh = bar.High
		a.prevLow = bar.Low
		a.prevClose = bar.Close
		return
	}

	upMove := bar.High - a.prevHigh
	downMove := a.prevLow - bar.Low

	plusDM := 0.0
	minDM := 0.0
	if upMove > downMove && upMove > 0 {
		plusDM = upMove
	}
	if downMove > upMove && downMove > 0 {
		minDM = downMove
	}
	tr := trueRange(bar, a.prevClose)

	a.prevHigh = bar.High
	a.prevLow = bar.Low
	a.prevClose = bar.Close

	p := float64(a.period)
	if a.count <= a.period+1 {
		// Accumulation phase: plain sums seed the smoothed values
		a.smTR += tr
		a.smPlusDM += plusDM
		a.smMinDM += minDM
		if a.count < a.period+1 {
			return
		}
	} else {
		// Wilder's smoothing: sm = sm - sm/period + new
		a.smTR = a.smTR - a.smTR/p + tr
		a.smPlusDM = a.smPlusDM - a.smPlusDM/p + plusDM
		a.smMinDM = a.smMinDM - a.smMinDM/p + minDM
	}

	if a.smTR == 0 {
		return
	}
	plusDI := 100.0 * a.smPlusDM / a.smTR
	minDI := 100.0 * a.smMinDM / a.smTR

	diSum := plusDI + minDI
	if diSum == 0 {
		return
	}
	dx := 100.0 * math.Abs(plusDI-minDI) / diSum

	a.dxCount++
	if a.dxCount <= a.period {
		// ADX seed: SMA of the first `period` DX values
		a.dxSum += dx
		if a.dxCount == a.period {
			a.current = a.dxSum / p
		}
		return
	}

	// Wilder's smoothing of DX into ADX
	a.current = (a.current*(p-1) + dx) / p
}

func (a *ADX) Value() float64 { return a.current }

// Ready becomes true once the first seeded ADX exists: period bars for the
// DM/TR seed plus period DX values.
func (a *ADX) Ready() bool { return a.dxCount >= a.period }
