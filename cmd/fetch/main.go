// cmd/fetch downloads historical klines from the exchange into the SQLite
// bar store. Safe to re-run: it resumes from the last stored bar.
//
// Usage:
//
//	go run ./cmd/fetch --symbol=BTCUSDT --interval=3600 --pages=10
package main

import (
	"context"
	"flag"
	"log"
	"os"
	"time"

	"trident/config"
	sqlitestore "trident/internal/store/sqlite"
	"trident/pkg/exchange"
)

const pageSize = 1000

func main() {
	log.SetFlags(log.LstdFlags | log.Lmicroseconds | log.Lshortfile)

	symbol := flag.String("symbol", "BTCUSDT", "Symbol to download")
	interval := flag.Int("interval", 3600, "Bar interval in seconds")
	dbPath := flag.String("db", "data/bars.db", "Path to SQLite database")
	pages := flag.Int("pages", 10, "Max pages of klines to fetch (1000 bars per page)")
	flag.Parse()

	cfg := config.Load()

	os.MkdirAll("data", 0o755)
	writer, err := sqlitestore.New(sqlitestore.WriterConfig{DBPath: *dbPath})
	if err != nil {
		log.Fatalf("[fetch] sqlite init failed: %v", err)
	}
	defer writer.Close()

	client := exchange.NewClient(exchange.Config{
		APIKey:     cfg.ExchangeAPIKey,
		APISecret:  cfg.ExchangeAPISecret,
		TOTPSecret: cfg.ExchangeTOTPSecret,
		BaseURL:    cfg.ExchangeBaseURL,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Minute)
	defer cancel()

	if err := client.Login(ctx); err != nil {
		log.Fatalf("[fetch] exchange login failed: %v", err)
	}

	total := 0
	for page := 0; page < *pages; page++ {
		lastTS, err := writer.GetLastTimestamp(*symbol, *interval)
		if err != nil {
			log.Fatalf("[fetch] last timestamp lookup failed: %v", err)
		}

		bars, err := client.Klines(ctx, *symbol, *interval, lastTS, pageSize)
		if err != nil {
			log.Fatalf("[fetch] klines download failed: %v", err)
		}
		if len(bars) == 0 {
			log.Println("[fetch] no new bars, done")
			break
		}

		if err := writer.InsertBars(bars); err != nil {
			log.Fatalf("[fetch] insert failed: %v", err)
		}
		total += len(bars)
		log.Printf("[fetch] page %d: stored %d bars through %s", page+1, len(bars), bars[len(bars)-1].TS.Format(time.RFC3339))

		if len(bars) < pageSize {
			break
		}
		time.Sleep(300 * time.Millisecond) // stay under the exchange rate limit
	}

	log.Printf("[fetch] complete: %d bars stored for %s:%d", total, *symbol, *interval)
}
