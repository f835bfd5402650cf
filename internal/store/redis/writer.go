// Package redis publishes closed bars, strategy signals and fills to Redis
// so dashboards and other consumers can follow the trader in real time.
package redis

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	"trident/internal/model"

	goredis "github.com/go-redis/redis/v8"
)

const (
	// Stream trimming: roughly a month of hourly bars
	barStreamMaxLen  = 1000
	signalStreamMax  = 500
	defaultLatestTTL = 30 * time.Minute
)

// WriterConfig configures the Redis writer.
type WriterConfig struct {
	Addr     string // Redis address, e.g. "localhost:6379"
	Password string
	DB       int
}

// Writer writes bars, signals and fills to Redis.
type Writer struct {
	client *goredis.Client
}

// Client returns the underlying Redis client for health checks.
func (w *Writer) Client() *goredis.Client { return w.client }

// New creates a new Redis Writer and pings the server.
func New(cfg WriterConfig) (*Writer, error) {
	client := goredis.NewClient(&goredis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	log.Printf("[redis] connected to %s", cfg.Addr)
	return &Writer{client: client}, nil
}

// Run reads closed bars from barCh and writes them to Redis.
// Blocks until ctx is cancelled or barCh is closed.
func (w *Writer) Run(ctx context.Context, barCh <-chan model.Bar) {
	for {
		select {
		case <-ctx.Done():
			return
		case bar, ok := <-barCh:
			if !ok {
				return
			}
			w.WriteBar(ctx, bar)
		}
	}
}

// WriteBar performs pipelined writes for one closed bar:
// SET latest + XADD to the bar stream + PUBLISH for live subscribers.
func (w *Writer) WriteBar(ctx context.Context, bar model.Bar) {
	latestKey := "bar:latest:" + bar.Key()
	streamKey := "bar:" + bar.Key()
	pubsubCh := "pub:bar:" + bar.Key()
	jsonData := string(bar.JSON())

	pipe := w.client.Pipeline()

	pipe.Set(ctx, latestKey, jsonData, defaultLatestTTL)
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: streamKey,
		MaxLen: barStreamMaxLen,
		Approx: true,
		Values: map[string]interface{}{
			"data": jsonData,
		},
	})
	pipe.Publish(ctx, pubsubCh, jsonData)

	_, err := pipe.Exec(ctx)
	if err != nil {
		log.Printf("[redis] bar pipeline error for %s: %v", bar.Key(), err)
	}
}

// PublishSignal records a strategy signal: XADD to the signal stream plus
// PUBLISH for live subscribers. The payload marshals whatever the strategy
// emitted.
func (w *Writer) PublishSignal(ctx context.Context, symbol string, signal interface{}) {
	data, err := json.Marshal(signal)
	if err != nil {
		log.Printf("[redis] marshal signal: %v", err)
		return
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "signal:" + symbol,
		MaxLen: signalStreamMax,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Publish(ctx, "pub:signal:"+symbol, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] signal pipeline error for %s: %v", symbol, err)
	}
}

// PublishFill records a broker fill the same way signals are recorded.
func (w *Writer) PublishFill(ctx context.Context, fill model.Fill) {
	data, err := json.Marshal(fill)
	if err != nil {
		log.Printf("[redis] marshal fill: %v", err)
		return
	}
	jsonData := string(data)

	pipe := w.client.Pipeline()
	pipe.XAdd(ctx, &goredis.XAddArgs{
		Stream: "fill:" + fill.Symbol,
		MaxLen: signalStreamMax,
		Approx: true,
		Values: map[string]interface{}{"data": jsonData},
	})
	pipe.Set(ctx, "fill:latest:"+fill.Symbol, jsonData, defaultLatestTTL)
	pipe.Publish(ctx, "pub:fill:"+fill.Symbol, jsonData)

	if _, err := pipe.Exec(ctx); err != nil {
		log.Printf("[redis] fill pipeline error for %s: %v", fill.Symbol, err)
	}
}

// Close closes the Redis client.
func (w *Writer) Close() error {
	return w.client.Close()
}
