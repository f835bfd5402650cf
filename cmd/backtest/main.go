// cmd/backtest replays historical bars from SQLite through the triple-signal
// strategy and a paper broker to evaluate the strategy without live market
// data.
//
// Usage:
//
//	go run ./cmd/backtest --symbol=BTCUSDT --interval=3600 --speed=0
package main

import (
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"trident/internal/execution"
	"trident/internal/marketdata/replay"
	"trident/internal/model"
	"trident/internal/portfolio"
	sqlitestore "trident/internal/store/sqlite"
	"trident/internal/strategy"
)

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	// Flags
	speed := flag.Float64("speed", 0, "Playback speed multiplier (0=max, 1=realtime, 100=100x)")
	fromTS := flag.Int64("from", 0, "Unix timestamp to start replay from (0=all)")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite database")
	symbol := flag.String("symbol", "BTCUSDT", "Symbol to backtest")
	interval := flag.Int("interval", 3600, "Bar interval in seconds")
	size := flag.Float64("size", 0.01, "Order size in base asset")
	flag.Parse()

	// Open SQLite
	reader, err := sqlitestore.NewReader(*dbPath)
	if err != nil {
		log.Fatalf("[backtest] sqlite open failed: %v", err)
	}
	defer reader.Close()

	// Strategy
	params := strategy.DefaultParams()
	params.Symbol = *symbol
	params.FixedSize = *size
	strat := strategy.NewTripleSignal(params)

	// Paper broker with BTC-grade trading rules
	rules := model.TradingRules{
		Symbol:   *symbol,
		MinQty:   0.0001,
		StepSize: 0.00001,
		TickSize: 0.01,
	}
	broker := execution.NewPaperBroker(10000)
	quotes := &barQuotes{}
	executor := execution.NewExecutor(broker, quotes, rules, 0.001, 10000)

	pnl := portfolio.NewPnLTracker()

	// Setup context
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	go func() {
		<-sigCh
		cancel()
	}()

	// Replay in background
	replayer := replay.New(reader)
	barCh := make(chan model.Bar, 10000)
	go func() {
		if err := replayer.Run(ctx, *symbol, *interval, *fromTS, *speed, barCh); err != nil {
			log.Printf("[backtest] replay error: %v", err)
		}
		close(barCh)
	}()

	// Process bars synchronously: decide, fill, account, next bar
	processed := 0
	lastClose := 0.0
	peakEquity := 0.0
	maxDrawdown := 0.0
	for bar := range barCh {
		processed++
		lastClose = bar.Close
		broker.SetMarkPrice(bar.Close)
		quotes.set(bar)

		equity := pnl.GetSummary(map[string]float64{*symbol: bar.Close}).TotalPnL
		if equity > peakEquity {
			peakEquity = equity
		}
		if dd := peakEquity - equity; dd > maxDrawdown {
			maxDrawdown = dd
		}

		sig := strat.OnBar(bar)
		if sig == nil {
			continue
		}

		req, err := executor.BuildOrder(*sig)
		if err != nil {
			log.Printf("[backtest] order rejected: %v", err)
			continue
		}
		if _, err := broker.Place(ctx, req); err != nil {
			log.Printf("[backtest] paper place failed: %v", err)
			continue
		}

		// Paper fills are immediate; apply before the next bar
		drainFills(broker, strat, pnl)
	}

	// Print summary
	summary := pnl.GetSummary(map[string]float64{*symbol: lastClose})
	fmt.Println()
	fmt.Println("╔══════════════════════════════════════╗")
	fmt.Println("║        BACKTEST COMPLETE             ║")
	fmt.Println("╠══════════════════════════════════════╣")
	fmt.Printf("║  Bars processed:    %-16d ║\n", processed)
	fmt.Printf("║  Fills:             %-16d ║\n", summary.TotalFills)
	fmt.Printf("║  Round trips:       %-16d ║\n", summary.RoundTrips)
	fmt.Printf("║  Win rate:          %-15.1f%% ║\n", summary.WinRatePct)
	fmt.Printf("║  Realized P&L:      %-16.2f ║\n", summary.RealizedPnL)
	fmt.Printf("║  Unrealized P&L:    %-16.2f ║\n", summary.UnrealizedPnL)
	fmt.Printf("║  Total P&L:         %-16.2f ║\n", summary.TotalPnL)
	fmt.Printf("║  Max drawdown:      %-16.2f ║\n", maxDrawdown)
	fmt.Println("╚══════════════════════════════════════╝")
}

func drainFills(broker *execution.PaperBroker, strat *strategy.TripleSignal, pnl *portfolio.PnLTracker) {
	for {
		select {
		case fill := <-broker.Fills():
			strat.OnFill(fill)
			pnl.RecordFill(fill)
			log.Printf("[backtest] fill: %s %s qty=%.5f @ %.2f (%s)",
				fill.Side, fill.Offset, fill.Qty, fill.Price, fill.Reason)
		default:
			return
		}
	}
}

// barQuotes synthesizes a quote from the latest bar close.
type barQuotes struct {
	q model.Quote
}

func (b *barQuotes) set(bar model.Bar) {
	const halfSpread = 0.0001
	b.q = model.Quote{
		Symbol: bar.Symbol,
		Bid:    bar.Close * (1 - halfSpread),
		Ask:    bar.Close * (1 + halfSpread),
		TS:     bar.TS,
	}
}

func (b *barQuotes) LastQuote(symbol string) (model.Quote, bool) {
	if b.q.Symbol != symbol {
		return model.Quote{}, false
	}
	return b.q, true
}
