// Package replay provides a bar replayer that reads historical data from
// SQLite and emits it at configurable speed for backtesting.
package replay

import (
	"context"
	"log"
	"time"

	"trident/internal/model"
	sqlitestore "trident/internal/store/sqlite"
)

// Replayer reads historical bars from SQLite and replays them
// at a configurable speed multiplier.
type Replayer struct {
	reader *sqlitestore.Reader
}

// New creates a Replayer backed by a SQLite reader.
func New(reader *sqlitestore.Reader) *Replayer {
	return &Replayer{reader: reader}
}

// Run replays all bars for the given symbol and interval, emitting them into outCh.
// speed controls the playback rate: 1.0 = real-time, 10.0 = 10x, 0 = as fast as possible.
// fromTS filters bars to those after this Unix timestamp (0 = all).
func (r *Replayer) Run(ctx context.Context, symbol string, interval int, fromTS int64, speed float64, outCh chan<- model.Bar) error {
	bars, err := r.reader.ReadBars(symbol, interval, fromTS)
	if err != nil {
		return err
	}

	if len(bars) == 0 {
		log.Println("[replay] no bars found in SQLite")
		return nil
	}

	log.Printf("[replay] loaded %d bars for %s:%d, speed=%.1fx", len(bars), symbol, interval, speed)

	var prevTS time.Time
	emitted := 0

	for _, b := range bars {
		select {
		case <-ctx.Done():
			log.Printf("[replay] cancelled after %d bars", emitted)
			return ctx.Err()
		default:
		}

		// Simulate time gaps between bars
		if speed > 0 && !prevTS.IsZero() {
			gap := b.TS.Sub(prevTS)
			if gap > 0 {
				scaledGap := time.Duration(float64(gap) / speed)
				// Cap max sleep to avoid very long waits
				if scaledGap > 5*time.Second {
					scaledGap = 5 * time.Second
				}
				select {
				case <-ctx.Done():
					return ctx.Err()
				case <-time.After(scaledGap):
				}
			}
		}
		prevTS = b.TS

		outCh <- b
		emitted++
	}

	log.Printf("[replay] completed: %d bars replayed", emitted)
	return nil
}
