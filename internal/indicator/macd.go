package indicator

import "trident/internal/model"

// MACD calculates Moving Average Convergence Divergence: the difference of a
// fast and a slow EMA, a signal EMA of that difference, and the histogram
// (MACD line minus signal line). The strategy consumes only the histogram.
type MACD struct {
	fast   *EMA
	slow   *EMA
	signal *EMA

	line float64
	hist float64
}

// NewMACD creates a MACD indicator with the given periods (typically 12/26/9).
func NewMACD(fastPeriod, slowPeriod, signalPeriod int) *MACD {
	return &MACD{
		fast:   NewEMA(fastPeriod),
		slow:   NewEMA(slowPeriod),
		signal: NewEMA(signalPeriod),
	}
}

func (m *MACD) Name() string { return "MACD" }

func (m *MACD) Update(bar model.Bar) {
	m.fast.Push(bar.Close)
	m.slow.Push(bar.Close)

	// The signal line is an EMA over the MACD line, so it only starts
	// receiving values once the slow EMA has seeded.
	if !m.slow.Ready() {
		return
	}

	m.line = m.fast.Value() - m.slow.Value()
	m.signal.Push(m.line)
	if m.signal.Ready() {
		m.hist = m.line - m.signal.Value()
	}
}

// Value returns the histogram (MACD line - signal line).
func (m *MACD) Value() float64 { return m.hist }

// Line returns the raw MACD line (fast EMA - slow EMA).
func (m *MACD) Line() float64 { return m.line }

// Signal returns the signal line value.
func (m *MACD) Signal() float64 { return m.signal.Value() }

func (m *MACD) Ready() bool { return m.slow.Ready() && m.signal.Ready() }
