package strategy

import "trident/internal/indicator"

// Params holds every tunable of the triple-signal strategy. Zero values are
// not meaningful; start from DefaultParams and override.
type Params struct {
	Symbol    string
	FixedSize float64 // order quantity in base asset
	SignalNum int     // oscillator votes required to enter

	FastWindow int
	SlowWindow int

	RSILength    int
	RSIBuyLevel  float64
	RSISellLevel float64

	MACDFastPeriod   int
	MACDSlowPeriod   int
	MACDSignalPeriod int

	KPeriod       int
	SlowingPeriod int
	DPeriod       int

	ATRLength     int
	ATRMultiplier float64

	ADXLength    int
	ADXThreshold float64

	VolumeWindow     int
	VolumeMultiplier float64

	// TrailingActivationPct is the profit fraction past entry that arms the
	// trailing stop ratchet.
	TrailingActivationPct float64
}

// DefaultParams returns the hourly BTC tuning.
func DefaultParams() Params {
	return Params{
		Symbol:    "BTCUSDT",
		FixedSize: 0.01,
		SignalNum: 2,

		FastWindow: 10,
		SlowWindow: 20,

		RSILength:    14,
		RSIBuyLevel:  30,
		RSISellLevel: 70,

		MACDFastPeriod:   12,
		MACDSlowPeriod:   26,
		MACDSignalPeriod: 9,

		KPeriod:       14,
		SlowingPeriod: 3,
		DPeriod:       3,

		ATRLength:     14,
		ATRMultiplier: 2.5,

		ADXLength:    14,
		ADXThreshold: 20,

		VolumeWindow:     20,
		VolumeMultiplier: 1.2,

		TrailingActivationPct: 0.01,
	}
}

// IndicatorConfig maps the strategy lookbacks onto the indicator engine.
func (p Params) IndicatorConfig() indicator.Config {
	return indicator.Config{
		FastMAPeriod: p.FastWindow,
		SlowMAPeriod: p.SlowWindow,
		RSIPeriod:    p.RSILength,
		MACDFast:     p.MACDFastPeriod,
		MACDSlow:     p.MACDSlowPeriod,
		MACDSignal:   p.MACDSignalPeriod,
		StochK:       p.KPeriod,
		StochSlowing: p.SlowingPeriod,
		StochD:       p.DPeriod,
		ATRPeriod:    p.ATRLength,
		ADXPeriod:    p.ADXLength,
		VolumePeriod: p.VolumeWindow,
	}
}
