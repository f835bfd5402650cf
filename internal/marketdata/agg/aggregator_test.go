package agg

import (
	"context"
	"testing"
	"time"

	"trident/internal/model"
)

func TestAggregator_BasicBar(t *testing.T) {
	agg := New(60) // 1-minute buckets
	tickCh := make(chan model.Tick, 100)
	barCh := make(chan model.Bar, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, tickCh, barCh)
		close(done)
	}()

	open := time.Now().UTC().Truncate(time.Minute)

	// Three ticks in the same minute
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50000, Qty: 0.5, TS: open}
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50500, Qty: 0.2, TS: open.Add(10 * time.Second)}
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 49800, Qty: 0.3, TS: open.Add(40 * time.Second)}

	// A tick in the next minute triggers flush of the previous bucket
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50100, Qty: 0.1, TS: open.Add(time.Minute)}

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done // wait for goroutine to finish

	// Collect bars (safe now since goroutine exited)
	var bars []model.Bar
	for {
		select {
		case b := <-barCh:
			bars = append(bars, b)
		default:
			goto collected
		}
	}
collected:

	if len(bars) < 1 {
		t.Fatalf("expected at least 1 bar, got %d", len(bars))
	}

	b := bars[0]
	if !b.TS.Equal(open) {
		t.Errorf("bar TS = %v, want bucket open %v", b.TS, open)
	}
	if b.Interval != 60 {
		t.Errorf("interval = %d, want 60", b.Interval)
	}
	if b.Open != 50000 {
		t.Errorf("open = %.2f, want 50000", b.Open)
	}
	if b.High != 50500 {
		t.Errorf("high = %.2f, want 50500", b.High)
	}
	if b.Low != 49800 {
		t.Errorf("low = %.2f, want 49800", b.Low)
	}
	if b.Close != 49800 {
		t.Errorf("close = %.2f, want 49800", b.Close)
	}
	if b.Trades != 3 {
		t.Errorf("trades = %d, want 3", b.Trades)
	}
	if b.Volume != 1.0 {
		t.Errorf("volume = %.2f, want 1.0", b.Volume)
	}
}

func TestAggregator_MultipleSymbols(t *testing.T) {
	agg := New(60)
	tickCh := make(chan model.Tick, 100)
	barCh := make(chan model.Bar, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, tickCh, barCh)
		close(done)
	}()

	open := time.Now().UTC().Truncate(time.Minute)

	// Two symbols in the same bucket
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50000, Qty: 0.5, TS: open}
	tickCh <- model.Tick{Symbol: "ETHUSDT", Price: 3000, Qty: 2, TS: open}

	// Next bucket triggers flush
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50100, Qty: 0.1, TS: open.Add(time.Minute)}
	tickCh <- model.Tick{Symbol: "ETHUSDT", Price: 3010, Qty: 1, TS: open.Add(time.Minute)}

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	count := 0
	for {
		select {
		case <-barCh:
			count++
		default:
			goto done2
		}
	}
done2:
	// At least one bar per symbol for the first bucket, plus the flush
	if count < 2 {
		t.Errorf("expected at least 2 bars, got %d", count)
	}
}

func TestAggregator_LateTickDropped(t *testing.T) {
	agg := New(60)
	dropped := 0
	dropCh := make(chan struct{}, 10)
	agg.OnDroppedTick = func() {
		dropCh <- struct{}{}
	}

	tickCh := make(chan model.Tick, 100)
	barCh := make(chan model.Bar, 100)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		agg.Run(ctx, tickCh, barCh)
		close(done)
	}()

	open := time.Now().UTC().Truncate(time.Minute)

	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 50000, Qty: 0.5, TS: open}
	// Late tick from the previous bucket
	tickCh <- model.Tick{Symbol: "BTCUSDT", Price: 49000, Qty: 0.1, TS: open.Add(-time.Minute)}

	time.Sleep(200 * time.Millisecond)
	cancel()
	<-done

	close(dropCh)
	for range dropCh {
		dropped++
	}

	if dropped != 1 {
		t.Errorf("expected 1 dropped tick, got %d", dropped)
	}
}
