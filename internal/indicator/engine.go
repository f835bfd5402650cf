package indicator

import "trident/internal/model"

// Config holds the lookback periods for every indicator the engine maintains.
type Config struct {
	FastMAPeriod int
	SlowMAPeriod int

	RSIPeriod int

	MACDFast   int
	MACDSlow   int
	MACDSignal int

	StochK       int
	StochSlowing int
	StochD       int

	ATRPeriod int
	ADXPeriod int

	VolumePeriod int
}

// DefaultConfig returns the standard periods used by the hourly strategy.
func DefaultConfig() Config {
	return Config{
		FastMAPeriod: 10,
		SlowMAPeriod: 20,
		RSIPeriod:    14,
		MACDFast:     12,
		MACDSlow:     26,
		MACDSignal:   9,
		StochK:       14,
		StochSlowing: 3,
		StochD:       3,
		ATRPeriod:    14,
		ADXPeriod:    14,
		VolumePeriod: 20,
	}
}

// Snapshot is the engine's per-bar output: every indicator value the filter
// pipeline consumes, plus the previous fast/slow MA and %K/%D values so
// crossovers can be detected without the caller keeping history.
type Snapshot struct {
	Bar model.Bar

	FastMA     float64
	PrevFastMA float64
	SlowMA     float64
	PrevSlowMA float64
	Trend      int // +1 fast above slow, -1 fast below slow, 0 equal

	RSI      float64
	MACDHist float64

	K     float64
	D     float64
	PrevK float64
	PrevD float64

	ATR float64
	ADX float64

	AvgVolume float64

	// Ready is false until every indicator has its full lookback. Consumers
	// must not act on a snapshot that is not ready.
	Ready bool
}

// GoldenCross reports %K crossing above %D on this bar.
func (s Snapshot) GoldenCross() bool {
	return s.PrevK <= s.PrevD && s.K > s.D
}

// DeadCross reports %K crossing below %D on this bar.
func (s Snapshot) DeadCross() bool {
	return s.PrevK >= s.PrevD && s.K < s.D
}

// windowCapacity bounds the bar ring the engine keeps for volume averaging.
const windowCapacity = 200

// Engine maintains the full indicator set for one symbol/interval stream.
// Feed it closed bars in order; each Update returns a fresh Snapshot.
// Not safe for concurrent use.
type Engine struct {
	cfg    Config
	window *Window

	fastMA *SMA
	slowMA *SMA
	rsi    *RSI
	macd   *MACD
	stoch  *Stoch
	atr    *ATR
	adx    *ADX

	prevFast  float64
	prevSlow  float64
	prevK     float64
	prevD     float64
	prevReady bool
}

// NewEngine creates an indicator engine with the given periods.
func NewEngine(cfg Config) *Engine {
	return &Engine{
		cfg:    cfg,
		window: NewWindow(windowCapacity),
		fastMA: NewSMA(cfg.FastMAPeriod),
		slowMA: NewSMA(cfg.SlowMAPeriod),
		rsi:    NewRSI(cfg.RSIPeriod),
		macd:   NewMACD(cfg.MACDFast, cfg.MACDSlow, cfg.MACDSignal),
		stoch:  NewStoch(cfg.StochK, cfg.StochSlowing, cfg.StochD),
		atr:    NewATR(cfg.ATRPeriod),
		adx:    NewADX(cfg.ADXPeriod),
	}
}

// Update feeds one closed bar through every indicator and returns the
// resulting snapshot.
func (e *Engine) Update(bar model.Bar) Snapshot {
	e.window.Push(bar)
	e.fastMA.Update(bar)
	e.slowMA.Update(bar)
	e.rsi.Update(bar)
	e.macd.Update(bar)
	e.stoch.Update(bar)
	e.atr.Update(bar)
	e.adx.Update(bar)

	snap := Snapshot{
		Bar:       bar,
		FastMA:    e.fastMA.Value(),
		SlowMA:    e.slowMA.Value(),
		RSI:       e.rsi.Value(),
		MACDHist:  e.macd.Value(),
		K:         e.stoch.K(),
		D:         e.stoch.D(),
		ATR:       e.atr.Value(),
		ADX:       e.adx.Value(),
		AvgVolume: e.window.MeanVolume(e.cfg.VolumePeriod),
		Ready:     e.ready(),
	}

	if snap.FastMA > snap.SlowMA {
		snap.Trend = 1
	} else if snap.FastMA < snap.SlowMA {
		snap.Trend = -1
	}

	if e.prevReady {
		snap.PrevFastMA = e.prevFast
		snap.PrevSlowMA = e.prevSlow
		snap.PrevK = e.prevK
		snap.PrevD = e.prevD
	} else {
		// First ready bar has no prior values; mirroring the current ones
		// guarantees no phantom crossover fires.
		snap.PrevFastMA = snap.FastMA
		snap.PrevSlowMA = snap.SlowMA
		snap.PrevK = snap.K
		snap.PrevD = snap.D
	}

	if snap.Ready {
		e.prevFast = snap.FastMA
		e.prevSlow = snap.SlowMA
		e.prevK = snap.K
		e.prevD = snap.D
		e.prevReady = true
	}

	return snap
}

func (e *Engine) ready() bool {
	return e.fastMA.Ready() &&
		e.slowMA.Ready() &&
		e.rsi.Ready() &&
		e.macd.Ready() &&
		e.stoch.Ready() &&
		e.atr.Ready() &&
		e.adx.Ready() &&
		e.window.Len() >= e.cfg.VolumePeriod
}
