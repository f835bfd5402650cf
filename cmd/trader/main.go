// cmd/trader runs the live trading pipeline:
//
//	[Exchange WS] → [ring buffer] → [aggregator] → [fan-out] → strategy / SQLite / Redis
//	strategy signals → [risk gate] → [executor] → broker
//	broker fills → strategy / journal / portfolio / Redis / notifications
//
// Set PAPER_MODE=true to trade against the built-in tick simulator and paper
// broker instead of the live exchange (no credentials required).
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"trident/config"
	"trident/internal/execution"
	"trident/internal/marketdata/agg"
	"trident/internal/marketdata/bus"
	"trident/internal/marketdata/sim"
	"trident/internal/metrics"
	"trident/internal/model"
	"trident/internal/notification"
	"trident/internal/portfolio"
	"trident/internal/ringbuf"
	redisstore "trident/internal/store/redis"
	sqlitestore "trident/internal/store/sqlite"
	"trident/internal/strategy"
	"trident/pkg/exchange"
)

const warmupBars = 200

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)
	log.Println("[trader] starting...")

	paperMode := os.Getenv("PAPER_MODE") == "true"
	if paperMode {
		log.Println("[trader] *** PAPER MODE — simulated ticks, paper broker, no credentials ***")
	}

	var cfg *config.Config
	if paperMode {
		cfg = paperConfig()
	} else {
		cfg = config.Load()
	}

	params := strategyParams(cfg)

	// ---- Pipeline channels ----
	tickCh := make(chan model.Tick, 10000)
	barCh := make(chan model.Bar, 5000)

	// ---- Metrics & health ----
	prom := metrics.NewMetrics()
	health := metrics.NewHealthStatus()
	metricsSrv := metrics.NewServer(cfg.MetricsAddr, health)
	metricsSrv.Start()

	// ---- Graceful shutdown ----
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)

	// ---- SQLite bar store ----
	os.MkdirAll("data", 0o755)
	sqlWriter, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: cfg.SQLitePath})
	if err != nil {
		log.Fatalf("[trader] sqlite init failed: %v", err)
	}
	defer sqlWriter.Close()
	health.SetSQLiteOK(true)

	// ---- Trade journal ----
	journal, err := execution.NewJournal(cfg.JournalPath)
	if err != nil {
		log.Fatalf("[trader] journal init failed: %v", err)
	}
	defer journal.Close()

	// ---- Redis writer behind a circuit breaker ----
	var redisWriter *redisstore.Writer
	var bufferedRedis *redisstore.BufferedWriter
	redisWriter, err = redisstore.New(redisstore.WriterConfig{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
	})
	if err != nil {
		log.Printf("[trader] WARNING: redis init failed: %v (continuing without redis)", err)
		health.SetRedisConnected(false)
		redisWriter = nil
	} else {
		health.SetRedisConnected(true)
		cb := redisstore.NewCircuitBreaker(5, 30*time.Second)
		cb.OnStateChange = func(from, to redisstore.State) {
			prom.RedisCircuitBreakerState.Set(float64(to))
			if to == redisstore.StateOpen {
				prom.RedisCircuitBreakerTrips.Inc()
			}
		}
		bufferedRedis = redisstore.NewBufferedWriter(ctx, redisWriter, cb, 10000)
		bufferedRedis.OnBuffer = func() { prom.RedisBufferedWrites.Inc() }
	}

	// ---- Liveness checks ----
	if redisWriter != nil {
		health.StartLivenessChecker(ctx, redisWriter.Client(), sqlWriter.DB(), 10*time.Second)
	} else {
		health.StartLivenessChecker(ctx, nil, sqlWriter.DB(), 10*time.Second)
	}

	// ---- Broker & quote source ----
	var broker model.Broker
	var quotes model.QuoteSource
	var paperBroker *execution.PaperBroker
	var liveClient *exchange.Client

	rules := model.TradingRules{
		Symbol:   cfg.Symbol,
		MinQty:   0.0001,
		StepSize: 0.00001,
		TickSize: 0.01,
	}

	simQS := &lastTickQuotes{}

	if paperMode {
		paperBroker = execution.NewPaperBroker(1000)
		broker = paperBroker
		quotes = simQS
	} else {
		liveClient = exchange.NewClient(exchange.Config{
			APIKey:     cfg.ExchangeAPIKey,
			APISecret:  cfg.ExchangeAPISecret,
			TOTPSecret: cfg.ExchangeTOTPSecret,
			BaseURL:    cfg.ExchangeBaseURL,
		})
		if err := liveClient.Login(ctx); err != nil {
			log.Fatalf("[trader] exchange login failed: %v", err)
		}
		fetched, err := liveClient.TradingRules(ctx, cfg.Symbol)
		if err != nil {
			log.Fatalf("[trader] exchange info failed: %v", err)
		}
		fetched.Symbol = cfg.Symbol
		rules = fetched
		log.Printf("[trader] trading rules: minQty=%.8f step=%.8f tick=%.8f",
			rules.MinQty, rules.StepSize, rules.TickSize)

		liveBroker := exchange.NewBroker(liveClient, 1000)
		broker = liveBroker
		quotes = liveBroker

		// Keep the quote cache fresh for slippage-bounded pricing
		go func() {
			ticker := time.NewTicker(5 * time.Second)
			defer ticker.Stop()
			for {
				select {
				case <-ctx.Done():
					return
				case <-ticker.C:
					if err := liveBroker.RefreshQuote(ctx, cfg.Symbol); err != nil {
						log.Printf("[trader] quote refresh failed: %v", err)
					}
				}
			}
		}()
	}

	// ---- Executor ----
	executor := execution.NewExecutor(broker, quotes, rules, cfg.SlippageTol, 1000)

	// ---- Strategy ----
	strat := strategy.NewTripleSignal(params)
	stratEngine := strategy.NewEngine(1000)
	stratEngine.Register(strat)

	// Warm the indicators from stored history before going live
	warmupFromStore(cfg, strat)

	// ---- Portfolio, P&L and risk ----
	pf := portfolio.New()
	pnl := portfolio.NewPnLTracker()
	riskLimits := portfolio.DefaultRiskLimits()
	riskMgr := portfolio.NewRiskManager(riskLimits, pf, 10000)

	go func() {
		// Daily loss counter resets at UTC midnight
		for {
			now := time.Now().UTC()
			next := now.Truncate(24 * time.Hour).Add(24 * time.Hour)
			select {
			case <-ctx.Done():
				return
			case <-time.After(next.Sub(now)):
				riskMgr.ResetDaily()
			}
		}
	}()

	// ---- Notifications ----
	notifier := buildNotifier()

	// ---- Fan-out closed bars ----
	fanout := bus.New(5000)
	fanout.OnDrop = func(subscriberIdx int) {
		prom.FanoutDropsTotal.WithLabelValues(strconv.Itoa(subscriberIdx)).Inc()
	}

	sqliteBarCh := fanout.Subscribe()
	strategyBarCh := fanout.Subscribe()
	var redisBarCh <-chan model.Bar
	if bufferedRedis != nil {
		redisBarCh = fanout.Subscribe()
	}
	go fanout.Run(ctx, barCh)

	go func() {
		ticker := time.NewTicker(5 * time.Second)
		defer ticker.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-ticker.C:
				for i, s := range fanout.ChannelStats() {
					if s.Cap > 0 {
						pct := float64(s.Len) / float64(s.Cap) * 100
						prom.ChannelSaturationPct.WithLabelValues("fanout_" + strconv.Itoa(i)).Set(pct)
					}
				}
			}
		}
	}()

	go sqlWriter.Run(ctx, sqliteBarCh)
	if bufferedRedis != nil {
		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case bar, ok := <-redisBarCh:
					if !ok {
						return
					}
					start := time.Now()
					bufferedRedis.WriteBar(bar)
					prom.RedisWriteDur.Observe(time.Since(start).Seconds())
				}
			}
		}()
	}

	// ---- Strategy feed: cancel stale orders at bar open, then decide ----
	engineBarCh := make(chan model.Bar, 1000)
	go stratEngine.Run(ctx, engineBarCh)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case bar, ok := <-strategyBarCh:
				if !ok {
					return
				}
				prom.BarsTotal.Inc()
				prom.BarLag.Set(time.Since(bar.TS.Add(time.Duration(bar.Interval) * time.Second)).Seconds())
				pf.MarkPrice(bar)

				if err := executor.CancelOpen(ctx); err != nil {
					log.Printf("[trader] cancel open orders failed: %v", err)
				}

				start := time.Now()
				select {
				case engineBarCh <- bar:
				default:
					log.Printf("[trader] strategy channel full, dropping bar %s", bar.Key())
				}
				prom.BarComputeDur.Observe(time.Since(start).Seconds())
			}
		}
	}()

	// ---- Risk gate between strategy and executor ----
	gatedSignals := make(chan strategy.Signal, 1000)
	go executor.Run(ctx, gatedSignals)

	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case sig, ok := <-stratEngine.Signals():
				if !ok {
					return
				}
				prom.SignalsTotal.WithLabelValues(sig.StrategyName, string(sig.Side)).Inc()
				if sig.Offset == model.OffsetClose {
					prom.ExitsTotal.WithLabelValues(sig.StrategyName, sig.Reason).Inc()
				}

				if sig.Offset == model.OffsetOpen {
					if ok, reason := riskMgr.CanTrade(sig.Symbol, sig.Qty); !ok {
						log.Printf("[trader] risk gate blocked %s %s: %s", sig.Side, sig.Symbol, reason)
						continue
					}
				}

				if redisWriter != nil {
					redisWriter.PublishSignal(ctx, sig.Symbol, sig)
				}

				select {
				case gatedSignals <- sig:
				default:
					log.Printf("[trader] executor channel full, dropping signal %s %s", sig.Side, sig.Offset)
				}
			}
		}
	}()

	// ---- Order result accounting ----
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case res, ok := <-executor.Results():
				if !ok {
					return
				}
				prom.OrdersTotal.WithLabelValues(string(res.Signal.Side), res.Status).Inc()
				if res.Status == "REJECTED" {
					prom.RejectedOrders.Inc()
				}
			}
		}
	}()

	// ---- Fill handling ----
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case fill, ok := <-broker.Fills():
				if !ok {
					return
				}
				prom.FillsTotal.Inc()
				stratEngine.RouteFill(fill)
				pf.Apply(fill)
				if realized := pnl.RecordFill(fill); fill.Offset == model.OffsetClose {
					riskMgr.RecordPnL(realized)
				}
				prom.PositionSize.Set(signedPosition(pf, fill.Symbol))

				if err := journal.RecordFill(fill); err != nil {
					log.Printf("[trader] journal write failed: %v", err)
				}
				if redisWriter != nil {
					redisWriter.PublishFill(ctx, fill)
				}

				alert := notification.FillAlert(fill)
				if fill.Reason == "trailing stop" {
					alert = notification.StopAlert(fill)
				}
				if err := notifier.Send(ctx, alert); err != nil {
					log.Printf("[trader] alert delivery failed: %v", err)
				}
			}
		}
	}()

	// ---- Aggregator ----
	aggregator := agg.New(cfg.IntervalSec)
	aggregator.OnDroppedTick = func() { prom.DroppedTicks.Inc() }
	go aggregator.Run(ctx, tickCh, barCh)

	// ---- Tick source ----
	if paperMode {
		simulator := sim.New(sim.Config{Symbol: cfg.Symbol})
		simulator.OnTick = func(t model.Tick) {
			prom.TicksTotal.Inc()
			health.SetLastTickTime(t.TS)
			simQS.update(t)
			paperBroker.SetMarkPrice(t.Price)
		}
		health.SetWSConnected(true)
		go simulator.Run(ctx, tickCh)
		log.Printf("[trader] paper pipeline ready: sim → agg(%ds) → strategy → paper broker", cfg.IntervalSec)
	} else {
		// Ring buffer decouples the WS reader from the aggregation path
		ring := ringbuf.New(8192)
		stream := exchange.NewStream(cfg.ExchangeWSURL, cfg.Symbol, 10000)
		stream.OnConnect = func() { health.SetWSConnected(true) }
		stream.OnReconnect = func() {
			prom.WSReconnects.Inc()
			health.SetWSConnected(false)
		}
		stream.OnTick = func(t model.Tick) {
			prom.TicksTotal.Inc()
			health.SetLastTickTime(t.TS)
		}
		go stream.Run(ctx)

		go func() {
			for {
				select {
				case <-ctx.Done():
					return
				case t, ok := <-stream.Ticks():
					if !ok {
						return
					}
					if !ring.Push(t) {
						prom.RingBufOverflow.Inc()
					}
					// Drain immediately; the ring absorbs read-side stalls
					for {
						tick, ok := ring.Pop()
						if !ok {
							break
						}
						select {
						case tickCh <- tick:
						default:
							prom.DroppedTicks.Inc()
						}
					}
				}
			}
		}()
		log.Printf("[trader] live pipeline ready: ws → ring → agg(%ds) → strategy → exchange", cfg.IntervalSec)
	}

	// ---- Wait for shutdown ----
	<-sigCh
	log.Println("[trader] shutdown signal received, cleaning up...")
	cancel()

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer shutdownCancel()
	metricsSrv.Stop(shutdownCtx)

	if redisWriter != nil {
		redisWriter.Close()
	}

	summary := pnl.GetSummary(nil)
	log.Printf("[trader] session summary: realized=%.2f fills=%d round trips=%d win rate=%.1f%%",
		summary.RealizedPnL, summary.TotalFills, summary.RoundTrips, summary.WinRatePct)
	log.Println("[trader] shutdown complete.")
}

// warmupFromStore replays recent stored bars through the strategy so the
// indicators are ready before the first live bar. Warm-up signals are
// discarded.
func warmupFromStore(cfg *config.Config, strat *strategy.TripleSignal) {
	reader, err := sqlitestore.NewReader(cfg.SQLitePath)
	if err != nil {
		log.Printf("[trader] warm-up skipped, sqlite open failed: %v", err)
		return
	}
	defer reader.Close()

	bars, err := reader.ReadRecentBars(cfg.Symbol, cfg.IntervalSec, warmupBars)
	if err != nil {
		log.Printf("[trader] warm-up skipped, read failed: %v", err)
		return
	}
	for _, bar := range bars {
		strat.OnBar(bar)
	}
	log.Printf("[trader] warmed up on %d stored bars", len(bars))
}

func strategyParams(cfg *config.Config) strategy.Params {
	p := strategy.DefaultParams()
	p.Symbol = cfg.Symbol
	p.FixedSize = cfg.FixedSize
	p.SignalNum = cfg.SignalNum
	p.FastWindow = cfg.FastWindow
	p.SlowWindow = cfg.SlowWindow
	p.RSILength = cfg.RSILength
	p.RSIBuyLevel = cfg.RSIBuyLevel
	p.RSISellLevel = cfg.RSISellLevel
	p.MACDFastPeriod = cfg.MACDFast
	p.MACDSlowPeriod = cfg.MACDSlow
	p.MACDSignalPeriod = cfg.MACDSignal
	p.KPeriod = cfg.KPeriod
	p.SlowingPeriod = cfg.SlowingPeriod
	p.DPeriod = cfg.DPeriod
	p.ATRLength = cfg.ATRLength
	p.ATRMultiplier = cfg.ATRMultiplier
	p.ADXLength = cfg.ADXLength
	p.ADXThreshold = cfg.ADXThreshold
	p.VolumeWindow = cfg.VolumeWindow
	p.VolumeMultiplier = cfg.VolumeMultiplier
	p.TrailingActivationPct = cfg.TrailingActivationPct
	return p
}

// paperConfig builds a config without requiring exchange credentials.
func paperConfig() *config.Config {
	os.Setenv("EXCHANGE_API_KEY", "paper")
	os.Setenv("EXCHANGE_API_SECRET", "paper")
	return config.Load()
}

func buildNotifier() notification.Notifier {
	backends := []notification.Notifier{notification.NewLogNotifier()}
	if token := os.Getenv("TELEGRAM_BOT_TOKEN"); token != "" {
		chatID := os.Getenv("TELEGRAM_CHAT_ID")
		backends = append(backends, notification.NewTelegramNotifier(token, chatID))
	}
	if url := os.Getenv("ALERT_WEBHOOK_URL"); url != "" {
		backends = append(backends, notification.NewWebhookNotifier(url))
	}
	return notification.NewMulti(backends...)
}

func signedPosition(pf *portfolio.Portfolio, symbol string) float64 {
	for _, pos := range pf.GetPositions() {
		if pos.Symbol == symbol {
			return pos.Qty
		}
	}
	return 0
}

// lastTickQuotes synthesizes a quote from the latest tick for paper mode.
type lastTickQuotes struct {
	mu sync.RWMutex
	q  model.Quote
}

func (l *lastTickQuotes) update(t model.Tick) {
	const halfSpread = 0.0001 // 1bp synthetic spread
	l.mu.Lock()
	l.q = model.Quote{
		Symbol: t.Symbol,
		Bid:    t.Price * (1 - halfSpread),
		Ask:    t.Price * (1 + halfSpread),
		TS:     t.TS,
	}
	l.mu.Unlock()
}

func (l *lastTickQuotes) LastQuote(symbol string) (model.Quote, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()
	if l.q.Symbol != symbol {
		return model.Quote{}, false
	}
	return l.q, true
}
