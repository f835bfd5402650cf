// Package agg builds fixed-interval OHLCV bars from a stream of trade ticks.
package agg

import (
	"context"
	"log"
	"sync"
	"time"

	"trident/internal/model"
)

// barState holds the in-progress bar for one symbol in the current bucket.
type barState struct {
	bucket int64 // Unix second of the bucket open
	bar    model.Bar
}

// Aggregator builds interval-aligned OHLCV bars from a stream of ticks.
// Buckets open at timestamps divisible by the interval; a bar is emitted
// once its bucket rolls over.
type Aggregator struct {
	mu     sync.Mutex
	states map[string]*barState // key = symbol

	interval      int64 // bucket width in seconds
	flushInterval time.Duration

	// Metrics hooks (optional, set externally)
	OnDroppedTick func()
}

// New creates an Aggregator producing bars of the given interval in seconds.
func New(intervalSec int) *Aggregator {
	return &Aggregator{
		states:        make(map[string]*barState),
		interval:      int64(intervalSec),
		flushInterval: 250 * time.Millisecond, // check frequency for bucket rollover
	}
}

// Run consumes ticks from tickCh in a single goroutine, aggregates them into
// interval bars, and sends finalized bars to barCh. Blocks until ctx is
// cancelled or tickCh is closed.
func (a *Aggregator) Run(ctx context.Context, tickCh <-chan model.Tick, barCh chan<- model.Bar) {
	ticker := time.NewTicker(a.flushInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			// Flush any remaining open bars before exit
			a.flushAll(barCh)
			return

		case tick, ok := <-tickCh:
			if !ok {
				a.flushAll(barCh)
				return
			}
			a.processTick(tick, barCh)

		case <-ticker.C:
			// Periodic flush: emit any bars whose bucket is in the past
			a.flushOld(barCh)
		}
	}
}

// processTick incorporates a single tick into the bar state.
func (a *Aggregator) processTick(tick model.Tick, barCh chan<- model.Bar) {
	bucket := tick.TS.Unix() - tick.TS.Unix()%a.interval

	a.mu.Lock()
	defer a.mu.Unlock()

	state, exists := a.states[tick.Symbol]

	if exists && bucket < state.bucket {
		// Late tick — belongs to an older bucket, drop it
		if a.OnDroppedTick != nil {
			a.OnDroppedTick()
		}
		return
	}

	if exists && bucket > state.bucket {
		// New bucket — finalize the old bar first
		a.emit(state, barCh)
		delete(a.states, tick.Symbol)
		exists = false
	}

	if !exists {
		// Start a new bar for this bucket
		a.states[tick.Symbol] = &barState{
			bucket: bucket,
			bar: model.Bar{
				Symbol:   tick.Symbol,
				Interval: int(a.interval),
				TS:       time.Unix(bucket, 0).UTC(),
				Open:     tick.Price,
				High:     tick.Price,
				Low:      tick.Price,
				Close:    tick.Price,
				Volume:   tick.Qty,
				Trades:   1,
			},
		}
		return
	}

	// Same bucket — update OHLCV
	b := &state.bar
	if tick.Price > b.High {
		b.High = tick.Price
	}
	if tick.Price < b.Low {
		b.Low = tick.Price
	}
	b.Close = tick.Price
	b.Volume += tick.Qty
	b.Trades++
}

// flushOld emits bars for any bucket that has fully elapsed.
func (a *Aggregator) flushOld(barCh chan<- model.Bar) {
	now := time.Now().Unix()

	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, state := range a.states {
		if state.bucket+a.interval <= now {
			a.emit(state, barCh)
			delete(a.states, symbol)
		}
	}
}

// flushAll emits all open bars regardless of bucket.
func (a *Aggregator) flushAll(barCh chan<- model.Bar) {
	a.mu.Lock()
	defer a.mu.Unlock()

	for symbol, state := range a.states {
		a.emit(state, barCh)
		delete(a.states, symbol)
	}
}

// emit sends a finalized bar to barCh. Non-blocking to avoid deadlocks.
func (a *Aggregator) emit(state *barState, barCh chan<- model.Bar) {
	select {
	case barCh <- state.bar:
	default:
		log.Printf("[agg] barCh full, dropping bar %s ts=%v", state.bar.Key(), state.bar.TS)
	}
}
