package indicator

import (
	"math"
	"testing"

	"trident/internal/model"
)

// ────────────────────────────────────────────────────────────
// Helpers
// ────────────────────────────────────────────────────────────

func bar(close float64) model.Bar {
	return model.Bar{
		Symbol: "BTCUSDT", Interval: 3600,
		Open: close, High: close + 0.5, Low: close - 0.5, Close: close,
		Volume: 100,
	}
}

func ohlc(open, high, low, close float64) model.Bar {
	return model.Bar{
		Symbol: "BTCUSDT", Interval: 3600,
		Open: open, High: high, Low: low, Close: close,
		Volume: 100,
	}
}

func assertClose(t *testing.T, label string, got, want, tol float64) {
	t.Helper()
	if math.Abs(got-want) > tol {
		t.Errorf("%s: got %.6f, want %.6f (tol=%.6f, diff=%.6f)", label, got, want, tol, math.Abs(got-want))
	}
}

// ────────────────────────────────────────────────────────────
// SMA Correctness
// ────────────────────────────────────────────────────────────

func TestSMA_Correctness_Period3(t *testing.T) {
	// Hand-calculated SMA(3) for a known price series:
	// Prices: 100, 102, 104, 103, 105
	// SMA after bar 3: (100+102+104)/3 = 102.0000
	// SMA after bar 4: (102+104+103)/3 = 103.0000
	// SMA after bar 5: (104+103+105)/3 = 104.0000

	sma := NewSMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 103.0, 104.0}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(3)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Correctness_Period5(t *testing.T) {
	// Prices: 10, 11, 12, 13, 14, 15, 16
	// SMA(5) after bar 5: (10+11+12+13+14)/5 = 12.0
	// SMA(5) after bar 6: (11+12+13+14+15)/5 = 13.0
	// SMA(5) after bar 7: (12+13+14+15+16)/5 = 14.0

	sma := NewSMA(5)
	prices := []float64{10, 11, 12, 13, 14, 15, 16}
	expected := []float64{0, 0, 0, 0, 12.0, 13.0, 14.0}
	ready := []bool{false, false, false, false, true, true, true}

	for i, p := range prices {
		sma.Update(bar(p))
		if sma.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, sma.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "SMA(5)", sma.Value(), expected[i], 0.0001)
		}
	}
}

func TestSMA_Push_RawSeries(t *testing.T) {
	// Push feeds arbitrary series (the engine averages volume this way)
	sma := NewSMA(3)
	for _, v := range []float64{10, 20, 30} {
		sma.Push(v)
	}
	assertClose(t, "SMA Push", sma.Value(), 20.0, 0.0001)

	sma.Push(40)
	assertClose(t, "SMA Push rollover", sma.Value(), 30.0, 0.0001)
}

// ────────────────────────────────────────────────────────────
// EMA Correctness
// ────────────────────────────────────────────────────────────

func TestEMA_Correctness_Period3(t *testing.T) {
	// EMA(3): multiplier = 2/(3+1) = 0.5
	// Prices: 100, 102, 104, 103, 105
	//
	// Bar 1: sum=100
	// Bar 2: sum=202
	// Bar 3: sum=306 → initial EMA = 306/3 = 102.0 (SMA seed)
	// Bar 4: EMA = 103*0.5 + 102.0*0.5 = 102.5
	// Bar 5: EMA = 105*0.5 + 102.5*0.5 = 103.75

	ema := NewEMA(3)
	prices := []float64{100, 102, 104, 103, 105}
	expected := []float64{0, 0, 102.0, 102.5, 103.75}
	ready := []bool{false, false, true, true, true}

	for i, p := range prices {
		ema.Update(bar(p))
		if ema.Ready() != ready[i] {
			t.Errorf("bar %d: Ready()=%v, want %v", i, ema.Ready(), ready[i])
		}
		if ready[i] {
			assertClose(t, "EMA(3)", ema.Value(), expected[i], 0.0001)
		}
	}
}

func TestEMA_Correctness_Period5(t *testing.T) {
	// EMA(5): multiplier = 2/(5+1) = 1/3
	// Prices: 44, 44.25, 44.50, 43.75, 44.50 → SMA seed = 44.20
	// Bar 6 (44.25): EMA = 44.25*(1/3) + 44.20*(2/3) = 44.2167
	// Bar 7 (44.00): EMA = 44.00*(1/3) + 44.2167*(2/3) = 44.1444

	mult := 2.0 / 6.0
	prices := []float64{44.00, 44.25, 44.50, 43.75, 44.50, 44.25, 44.00}
	seedExpected := (44.0 + 44.25 + 44.50 + 43.75 + 44.50) / 5.0

	ema := NewEMA(5)
	for _, p := range prices[:5] {
		ema.Update(bar(p))
	}
	assertClose(t, "EMA(5) seed", ema.Value(), seedExpected, 0.0001)

	ema.Update(bar(prices[5]))
	expected6 := 44.25*mult + seedExpected*(1-mult)
	assertClose(t, "EMA(5) bar 6", ema.Value(), expected6, 0.0001)

	ema.Update(bar(prices[6]))
	expected7 := 44.00*mult + expected6*(1-mult)
	assertClose(t, "EMA(5) bar 7", ema.Value(), expected7, 0.0001)
}

func TestEMA_MoreResponsiveThanSMA(t *testing.T) {
	sma := NewSMA(10)
	ema := NewEMA(10)

	// 20 bars flat at 100, then a sudden jump to 120
	for i := 0; i < 20; i++ {
		b := bar(100)
		sma.Update(b)
		ema.Update(b)
	}

	b := bar(120)
	sma.Update(b)
	ema.Update(b)

	if ema.Value() <= sma.Value() {
		t.Errorf("EMA should react more than SMA to sudden price jump: EMA=%.4f, SMA=%.4f", ema.Value(), sma.Value())
	}
}

// ────────────────────────────────────────────────────────────
// RSI Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestRSI_Correctness_Period5(t *testing.T) {
	// Using a small period (5) for manual calculation.
	// Prices: 44, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84
	//
	// Deltas (from price 2 onward):
	//   +0.34 (gain), -0.25 (loss), -0.48 (loss), +0.72 (gain), +0.50 (gain)
	//
	// First RSI (after 6 bars, period=5):
	//   avgGain = (0.34+0.72+0.50)/5 = 0.312
	//   avgLoss = (0.25+0.48)/5      = 0.146
	//   RS = 2.13699 → RSI = 100 - 100/(1+RS) = 68.112
	//
	// Bar 7 (45.10): gain=0.27
	//   avgGain = (0.312*4+0.27)/5 = 0.3036, avgLoss = 0.1168 → RSI = 72.219
	// Bar 8 (45.42): gain=0.32
	//   avgGain = 0.30688, avgLoss = 0.09344 → RSI = 76.658
	// Bar 9 (45.84): gain=0.42
	//   avgGain = 0.329504, avgLoss = 0.074752 → RSI = 81.509

	prices := []float64{44.00, 44.34, 44.09, 43.61, 44.33, 44.83, 45.10, 45.42, 45.84}

	rsi := NewRSI(5)
	for i := 0; i <= 5; i++ {
		rsi.Update(bar(prices[i]))
	}
	assertClose(t, "RSI(5) bar 6", rsi.Value(), 68.112, 0.1)

	rsi.Update(bar(prices[6]))
	assertClose(t, "RSI(5) bar 7", rsi.Value(), 72.219, 0.1)

	rsi.Update(bar(prices[7]))
	assertClose(t, "RSI(5) bar 8", rsi.Value(), 76.658, 0.1)

	rsi.Update(bar(prices[8]))
	assertClose(t, "RSI(5) bar 9", rsi.Value(), 81.509, 0.2)
}

func TestRSI_AllUp_Is100(t *testing.T) {
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(100 + float64(i)))
	}
	assertClose(t, "RSI all up", rsi.Value(), 100.0, 0.001)
}

func TestRSI_AllDown_Is0(t *testing.T) {
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(200 - float64(i)))
	}
	assertClose(t, "RSI all down", rsi.Value(), 0.0, 0.001)
}

func TestRSI_Flat_Is100(t *testing.T) {
	// Flat prices: avgGain and avgLoss both 0. The avgLoss==0 branch wins,
	// so RSI reads 100.
	rsi := NewRSI(5)
	for i := 0; i < 10; i++ {
		rsi.Update(bar(100))
	}
	assertClose(t, "RSI flat", rsi.Value(), 100.0, 0.001)
}

func TestRSI_NotReadyBeforeLookback(t *testing.T) {
	rsi := NewRSI(14)
	for i := 0; i < 14; i++ {
		rsi.Update(bar(100 + float64(i)))
		if rsi.Ready() {
			t.Fatalf("RSI ready after %d bars, lookback needs 15", i+1)
		}
	}
	rsi.Update(bar(115))
	if !rsi.Ready() {
		t.Error("RSI not ready after 15 bars")
	}
}

// ────────────────────────────────────────────────────────────
// MACD Correctness
// ────────────────────────────────────────────────────────────

func TestMACD_Correctness_Small(t *testing.T) {
	// MACD(2,4,2) on prices 10, 11, 12, 13, 14, 15, 20.
	// EMA(2) mult=2/3, EMA(4) mult=2/5, signal EMA(2) mult=2/3.
	//
	// Fast EMA(2): seed 10.5, then 11.5, 12.5, 13.5, 14.5
	// Slow EMA(4): seed 11.5 at bar 4, then 12.5, 13.5
	// Linear prices pin the MACD line at exactly 1.0 from bar 4 on:
	//   bar 4: line = 12.5-11.5 = 1.0 → first signal input
	//   bar 5: line = 1.0 → signal seed = (1.0+1.0)/2 = 1.0, hist = 0
	//   bar 6: line = 1.0 → signal = 1.0, hist = 0
	// Bar 7 jumps to 20:
	//   fast = 20*(2/3)+14.5*(1/3) = 18.1667; slow = 20*0.4+13.5*0.6 = 16.1
	//   line = 2.0667; signal = 2.0667*(2/3)+1.0*(1/3) = 1.7111
	//   hist = 2.0667-1.7111 = 0.3556

	macd := NewMACD(2, 4, 2)
	prices := []float64{10, 11, 12, 13, 14, 15}

	for i, p := range prices {
		macd.Update(bar(p))
		if i < 4 && macd.Ready() {
			t.Fatalf("MACD ready after %d bars", i+1)
		}
	}
	if !macd.Ready() {
		t.Fatal("MACD not ready after 6 bars")
	}

	assertClose(t, "MACD line linear", macd.Line(), 1.0, 0.0001)
	assertClose(t, "MACD signal linear", macd.Signal(), 1.0, 0.0001)
	assertClose(t, "MACD hist linear", macd.Value(), 0.0, 0.0001)

	macd.Update(bar(20))
	assertClose(t, "MACD line jump", macd.Line(), 2.0667, 0.001)
	assertClose(t, "MACD signal jump", macd.Signal(), 1.7111, 0.001)
	assertClose(t, "MACD hist jump", macd.Value(), 0.3556, 0.001)
}

func TestMACD_UptrendHistogramPositiveEarly(t *testing.T) {
	// In a fresh, accelerating uptrend the fast EMA pulls ahead of the slow
	// EMA faster than the signal line can catch up.
	macd := NewMACD(12, 26, 9)
	price := 100.0
	for i := 0; i < 40; i++ {
		price *= 1.01
		macd.Update(bar(price))
	}
	if !macd.Ready() {
		t.Fatal("MACD not ready after 40 bars")
	}
	if macd.Line() <= 0 {
		t.Errorf("MACD line should be positive in uptrend: %.4f", macd.Line())
	}
}

// ────────────────────────────────────────────────────────────
// Stochastic Correctness
// ────────────────────────────────────────────────────────────

func TestStoch_Correctness_Small(t *testing.T) {
	// Stoch(3,1,2): slowing=1 so %K = raw %K directly.
	// Bars (high, low, close):
	//   (12, 8, 10), (13, 9, 12), (14, 10, 13), (15, 11, 14)
	// Bar 3: hh=14, ll=8 → rawK = 100*(13-8)/6 = 83.3333
	// Bar 4: window [2..4]: hh=15, ll=9 → rawK = 100*(14-9)/6 = 83.3333
	//   %D = (83.3333+83.3333)/2 = 83.3333

	st := NewStoch(3, 1, 2)
	st.Update(ohlc(10, 12, 8, 10))
	st.Update(ohlc(12, 13, 9, 12))
	st.Update(ohlc(13, 14, 10, 13))

	if st.Ready() {
		t.Fatal("Stoch ready before %D has 2 values")
	}
	assertClose(t, "Stoch K bar 3", st.K(), 83.3333, 0.001)

	st.Update(ohlc(14, 15, 11, 14))
	if !st.Ready() {
		t.Fatal("Stoch not ready after 4 bars")
	}
	assertClose(t, "Stoch K bar 4", st.K(), 83.3333, 0.001)
	assertClose(t, "Stoch D bar 4", st.D(), 83.3333, 0.001)
}

func TestStoch_FlatRange_Reads50(t *testing.T) {
	// Identical bars: highest == lowest, %K defined as neutral 50
	st := NewStoch(3, 1, 2)
	for i := 0; i < 6; i++ {
		st.Update(ohlc(100, 100, 100, 100))
	}
	assertClose(t, "Stoch flat K", st.K(), 50.0, 0.0001)
	assertClose(t, "Stoch flat D", st.D(), 50.0, 0.0001)
}

func TestStoch_CloseAtHigh_Reads100(t *testing.T) {
	st := NewStoch(3, 1, 2)
	// Rising bars closing at their highs
	for i := 0; i < 6; i++ {
		p := 100 + float64(i)
		st.Update(ohlc(p-1, p, p-2, p))
	}
	if st.K() < 90 {
		t.Errorf("close-at-high %%K should be near 100: %.2f", st.K())
	}
}

// ────────────────────────────────────────────────────────────
// ATR Correctness (Wilder's Method)
// ────────────────────────────────────────────────────────────

func TestATR_Correctness_Period3(t *testing.T) {
	// Bars (high, low, close):
	//   (10, 8, 9)    — bar 1: TR undefined, prevClose=9
	//   (11, 9, 10)   — TR = max(2, |11-9|, |9-9|)   = 2
	//   (12, 10, 11)  — TR = max(2, |12-10|, |10-10|) = 2
	//   (14, 10, 13)  — TR = max(4, |14-11|, |10-11|) = 4
	//     seed: ATR = (2+2+4)/3 = 2.6667
	//   (13, 12, 12)  — TR = max(1, |13-13|, |12-13|) = 1
	//     ATR = (2.6667*2 + 1)/3 = 2.1111

	atr := NewATR(3)
	atr.Update(ohlc(9, 10, 8, 9))
	atr.Update(ohlc(9, 11, 9, 10))
	atr.Update(ohlc(10, 12, 10, 11))
	if atr.Ready() {
		t.Fatal("ATR ready before period+1 bars")
	}

	atr.Update(ohlc(11, 14, 10, 13))
	if !atr.Ready() {
		t.Fatal("ATR not ready after period+1 bars")
	}
	assertClose(t, "ATR seed", atr.Value(), 2.6667, 0.001)

	atr.Update(ohlc(13, 13, 12, 12))
	assertClose(t, "ATR Wilder step", atr.Value(), 2.1111, 0.001)
}

func TestATR_GapUp_UsesPrevClose(t *testing.T) {
	// A gap beyond the bar's own range must widen TR via |high-prevClose|
	atr := NewATR(2)
	atr.Update(ohlc(100, 101, 99, 100))
	atr.Update(ohlc(100, 101, 99, 100)) // TR = 2
	atr.Update(ohlc(110, 111, 109, 110)) // TR = max(2, 11, 9) = 11
	// seed = (2+11)/2 = 6.5
	assertClose(t, "ATR gap", atr.Value(), 6.5, 0.001)
}

// ────────────────────────────────────────────────────────────
// ADX Correctness
// ────────────────────────────────────────────────────────────

func TestADX_StrongTrend_High(t *testing.T) {
	// A relentless one-way move is the strongest possible trend: every bar
	// contributes only +DM, so DI- stays 0 and DX pins at 100.
	adx := NewADX(5)
	for i := 0; i < 30; i++ {
		p := 100 + float64(i)*2
		adx.Update(ohlc(p-1, p+1, p-2, p))
	}
	if !adx.Ready() {
		t.Fatal("ADX not ready after 30 bars")
	}
	if adx.Value() < 90 {
		t.Errorf("ADX should read near 100 in a one-way trend: %.2f", adx.Value())
	}
}

func TestADX_Chop_Low(t *testing.T) {
	// Alternating up/down bars: +DM and -DM balance out, ADX stays weak
	adx := NewADX(5)
	for i := 0; i < 40; i++ {
		var b model.Bar
		if i%2 == 0 {
			b = ohlc(100, 103, 99, 102)
		} else {
			b = ohlc(102, 101, 97, 100)
		}
		adx.Update(b)
	}
	if !adx.Ready() {
		t.Fatal("ADX not ready after 40 bars")
	}
	if adx.Value() > 40 {
		t.Errorf("ADX should be low in chop: %.2f", adx.Value())
	}
}

func TestADX_ReadyGating(t *testing.T) {
	// ADX needs period+1 bars for the DM/TR seed (first DX lands on bar
	// period+1) plus period-1 more DX values: ready on bar 2*period.
	adx := NewADX(3)
	for i := 0; i < 5; i++ {
		p := 100 + float64(i)
		adx.Update(ohlc(p-1, p+1, p-2, p))
		if adx.Ready() {
			t.Fatalf("ADX ready after %d bars, needs 2*period", i+1)
		}
	}
	adx.Update(ohlc(104, 106, 103, 105))
	if !adx.Ready() {
		t.Error("ADX not ready after 2*period bars")
	}
}

// ────────────────────────────────────────────────────────────
// Cross-indicator: same data → correct ordering
// ────────────────────────────────────────────────────────────

func TestIndicators_TrendingUp_Ordering(t *testing.T) {
	// With steadily rising prices, faster MAs sit above slower MAs
	sma5 := NewSMA(5)
	sma20 := NewSMA(20)
	ema5 := NewEMA(5)

	for i := 0; i < 30; i++ {
		b := bar(100 + float64(i))
		sma5.Update(b)
		sma20.Update(b)
		ema5.Update(b)
	}

	if sma5.Value() <= sma20.Value() {
		t.Errorf("SMA(5) should be > SMA(20) in uptrend: SMA5=%.2f, SMA20=%.2f", sma5.Value(), sma20.Value())
	}
	if ema5.Value() <= sma20.Value() {
		t.Errorf("EMA(5) should be > SMA(20) in uptrend: EMA5=%.2f, SMA20=%.2f", ema5.Value(), sma20.Value())
	}
}

func TestIndicators_TrendingDown_Ordering(t *testing.T) {
	sma5 := NewSMA(5)
	sma20 := NewSMA(20)

	for i := 0; i < 30; i++ {
		b := bar(200 - float64(i))
		sma5.Update(b)
		sma20.Update(b)
	}

	if sma5.Value() >= sma20.Value() {
		t.Errorf("SMA(5) should be < SMA(20) in downtrend: SMA5=%.2f, SMA20=%.2f", sma5.Value(), sma20.Value())
	}
}
