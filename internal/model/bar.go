package model

import (
	"encoding/json"
	"time"
)

// Bar represents an OHLCV bar for a single instrument at a fixed interval.
// Prices and volume are float64 — crypto lot sizes are fractional (BTC step
// sizes go down to 1e-5), so integer minor units don't fit here.
type Bar struct {
	Symbol   string    `json:"symbol"`
	Interval int       `json:"interval"` // bar interval in seconds
	TS       time.Time `json:"ts"`       // bucket start time (UTC, interval-aligned)
	Open     float64   `json:"open"`
	High     float64   `json:"high"`
	Low      float64   `json:"low"`
	Close    float64   `json:"close"`
	Volume   float64   `json:"volume"`
	Trades   int       `json:"trades"` // number of trades aggregated
}

// Key returns a unique key for this bar's instrument: "symbol:interval".
func (b *Bar) Key() string {
	return b.Symbol + ":" + itoa(b.Interval)
}

// JSON returns the JSON-encoded bar (ignoring errors for hot-path usage).
func (b *Bar) JSON() []byte {
	j, _ := json.Marshal(b)
	return j
}

// Tick represents a single trade from the exchange feed.
type Tick struct {
	Symbol string    `json:"symbol"`
	Price  float64   `json:"price"`
	Qty    float64   `json:"qty"`
	TS     time.Time `json:"ts"` // exchange timestamp, UTC
}

// Quote is the current best bid/ask, used for slippage-bounded limit pricing.
type Quote struct {
	Symbol string    `json:"symbol"`
	Bid    float64   `json:"bid"`
	Ask    float64   `json:"ask"`
	TS     time.Time `json:"ts"`
}

// itoa converts a non-negative int to string without importing strconv.
func itoa(n int) string {
	if n == 0 {
		return "0"
	}
	buf := [20]byte{}
	i := len(buf)
	for n > 0 {
		i--
		buf[i] = byte('0' + n%10)
		n /= 10
	}
	return string(buf[i:])
}
