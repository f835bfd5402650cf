package indicator

import (
	"testing"

	"trident/internal/model"
)

func testConfig() Config {
	// Short lookbacks so fixtures stay hand-checkable
	return Config{
		FastMAPeriod: 2,
		SlowMAPeriod: 3,
		RSIPeriod:    2,
		MACDFast:     2,
		MACDSlow:     3,
		MACDSignal:   2,
		StochK:       2,
		StochSlowing: 1,
		StochD:       2,
		ATRPeriod:    2,
		ADXPeriod:    2,
		VolumePeriod: 3,
	}
}

func volBar(close, volume float64) model.Bar {
	return model.Bar{
		Symbol: "BTCUSDT", Interval: 3600,
		Open: close, High: close + 1, Low: close - 1, Close: close,
		Volume: volume,
	}
}

func TestEngine_ReadyGating(t *testing.T) {
	// With testConfig the slowest constraints are the MACD signal line
	// (first input on bar 3, seeded on bar 4) and ADX (ready on bar 4).
	eng := NewEngine(testConfig())

	for i := 0; i < 3; i++ {
		snap := eng.Update(volBar(100+float64(i), 50))
		if snap.Ready {
			t.Fatalf("snapshot ready after %d bars", i+1)
		}
	}

	snap := eng.Update(volBar(103, 50))
	if !snap.Ready {
		t.Fatal("snapshot not ready after 4 bars")
	}
}

func TestEngine_TrendSign(t *testing.T) {
	eng := NewEngine(testConfig())

	var snap Snapshot
	for i := 0; i < 10; i++ {
		snap = eng.Update(volBar(100+float64(i), 50))
	}
	if snap.Trend != 1 {
		t.Errorf("uptrend should read Trend=+1, got %d", snap.Trend)
	}

	eng = NewEngine(testConfig())
	for i := 0; i < 10; i++ {
		snap = eng.Update(volBar(200-float64(i), 50))
	}
	if snap.Trend != -1 {
		t.Errorf("downtrend should read Trend=-1, got %d", snap.Trend)
	}
}

func TestEngine_AvgVolume(t *testing.T) {
	eng := NewEngine(testConfig())

	eng.Update(volBar(100, 10))
	eng.Update(volBar(101, 20))
	snap := eng.Update(volBar(102, 30))
	// VolumePeriod=3 → (10+20+30)/3
	if snap.AvgVolume != 20 {
		t.Errorf("AvgVolume = %.2f, want 20", snap.AvgVolume)
	}

	snap = eng.Update(volBar(103, 40))
	// Oldest bar evicted from the averaging window: (20+30+40)/3
	if snap.AvgVolume != 30 {
		t.Errorf("AvgVolume after rollover = %.2f, want 30", snap.AvgVolume)
	}
}

func TestEngine_FirstReadySnapshot_NoPhantomCross(t *testing.T) {
	// The first ready snapshot has no prior %K/%D; prev values mirror the
	// current ones so no crossover can fire on it.
	eng := NewEngine(testConfig())

	var snap Snapshot
	for i := 0; !snap.Ready; i++ {
		snap = eng.Update(volBar(100+float64(i%3), 50))
		if i > 50 {
			t.Fatal("engine never became ready")
		}
	}

	if snap.GoldenCross() || snap.DeadCross() {
		t.Errorf("first ready snapshot flagged a crossover: K=%.2f D=%.2f prevK=%.2f prevD=%.2f",
			snap.K, snap.D, snap.PrevK, snap.PrevD)
	}
}

func TestEngine_PrevValuesTrackPriorBar(t *testing.T) {
	eng := NewEngine(testConfig())

	var prev, cur Snapshot
	for i := 0; i < 10; i++ {
		prev = cur
		cur = eng.Update(volBar(100+float64(i), 50))
	}

	if !prev.Ready || !cur.Ready {
		t.Fatal("snapshots not ready after 10 bars")
	}
	if cur.PrevFastMA != prev.FastMA || cur.PrevSlowMA != prev.SlowMA {
		t.Errorf("prev MAs do not match prior snapshot: got (%.4f, %.4f), want (%.4f, %.4f)",
			cur.PrevFastMA, cur.PrevSlowMA, prev.FastMA, prev.SlowMA)
	}
	if cur.PrevK != prev.K || cur.PrevD != prev.D {
		t.Errorf("prev K/D do not match prior snapshot: got (%.4f, %.4f), want (%.4f, %.4f)",
			cur.PrevK, cur.PrevD, prev.K, prev.D)
	}
}

func TestSnapshot_CrossoverFlags(t *testing.T) {
	tests := []struct {
		name   string
		snap   Snapshot
		golden bool
		dead   bool
	}{
		{"k crosses above d", Snapshot{PrevK: 40, PrevD: 45, K: 50, D: 48}, true, false},
		{"k crosses below d", Snapshot{PrevK: 85, PrevD: 82, K: 80, D: 83}, false, true},
		{"k stays above d", Snapshot{PrevK: 60, PrevD: 50, K: 65, D: 55}, false, false},
		{"k stays below d", Snapshot{PrevK: 40, PrevD: 50, K: 42, D: 51}, false, false},
		{"touch without cross", Snapshot{PrevK: 50, PrevD: 50, K: 50, D: 50}, false, false},
		{"cross from equality", Snapshot{PrevK: 50, PrevD: 50, K: 55, D: 52}, true, false},
	}

	for _, tt := range tests {
		if got := tt.snap.GoldenCross(); got != tt.golden {
			t.Errorf("%s: GoldenCross()=%v, want %v", tt.name, got, tt.golden)
		}
		if got := tt.snap.DeadCross(); got != tt.dead {
			t.Errorf("%s: DeadCross()=%v, want %v", tt.name, got, tt.dead)
		}
	}
}

func TestWindow_LastAndEviction(t *testing.T) {
	w := NewWindow(4)
	for i := 1; i <= 6; i++ {
		w.Push(volBar(float64(i), float64(i)*10))
	}

	if w.Len() != 4 {
		t.Fatalf("Len()=%d, want 4", w.Len())
	}

	last3 := w.Last(3)
	if len(last3) != 3 {
		t.Fatalf("Last(3) returned %d bars", len(last3))
	}
	// Oldest first: closes 4, 5, 6
	for i, want := range []float64{4, 5, 6} {
		if last3[i].Close != want {
			t.Errorf("Last(3)[%d].Close = %.0f, want %.0f", i, last3[i].Close, want)
		}
	}

	// Asking for more than held returns everything
	all := w.Last(10)
	if len(all) != 4 {
		t.Errorf("Last(10) returned %d bars, want 4", len(all))
	}
}
