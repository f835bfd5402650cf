package indicator

import (
	"math"

	"trident/internal/model"
)

// ATR calculates Average True Range using Wilder's smoothing.
//
// True range = max(high-low, |high-prevClose|, |low-prevClose|). The first
// `period` true ranges seed the average; after that Wilder smoothing applies.
type ATR struct {
	period    int
	count     int
	prevClose float64
	sum       float64
	current   float64
}

// NewATR creates a new ATR indicator with the given period (typically 14).
func NewATR(period int) *ATR {
	return &ATR{period: period}
}

func (a *ATR) Name() string { return "ATR" }

func (a *ATR) Update(bar model.Bar) {
	a.count++

	if a.count == 1 {
		// No previous close yet — true range is undefined on the first bar
		a.prevClose = bar.Close
		return
	}

	tr := trueRange(bar, a.prevClose)
	a.prevClose = bar.Close

	if a.count <= a.period+1 {
		a.sum += tr
		if a.count == a.period+1 {
			a.current = a.sum / float64(a.period)
		}
		return
	}

	// Wilder's smoothing: ATR = (prevATR * (period-1) + TR) / period
	p := float64(a.period)
	a.current = (a.current*(p-1) + tr) / p
}

func (a *ATR) Value() float64 { return a.current }
func (a *ATR) Ready() bool    { return a.count > a.period }

// trueRange computes max(high-low, |high-prevClose|, |low-prevClose|).
func trueRange(bar model.Bar, prevClose float64) float64 {
	tr := bar.High - bar.Low
	if hc := math.Abs(bar.High - prevClose); hc > tr {
		tr = hc
	}
	if lc := math.Abs(bar.Low - prevClose); lc > tr {
		tr = lc
	}
	return tr
}
