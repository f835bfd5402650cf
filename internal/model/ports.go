package model

import "context"

// ── Port Interfaces ──
// These interfaces decouple the strategy core from concrete collaborators
// (exchange gateway, Redis, SQLite). Each implementation satisfies one or
// more of these interfaces.

// Broker submits orders and reports fills. The live exchange gateway and the
// paper broker both implement it.
type Broker interface {
	// Place submits an order request. Returns the broker order ID.
	Place(ctx context.Context, req OrderRequest) (string, error)

	// CancelOpen cancels all unfilled resting orders for the symbol.
	// Called at the start of every bar before new decisions are made.
	CancelOpen(ctx context.Context, symbol string) error

	// Fills returns the channel of asynchronous fill confirmations.
	Fills() <-chan Fill
}

// QuoteSource supplies the latest best bid/ask for slippage-bounded pricing.
// Returns ok=false when no quote is available (market-order fallback).
type QuoteSource interface {
	LastQuote(symbol string) (Quote, bool)
}

// BarWriter persists completed bars.
type BarWriter interface {
	// Run reads bars from barCh and writes them.
	// Blocks until ctx is cancelled or barCh is closed.
	Run(ctx context.Context, barCh <-chan Bar)

	// Close releases underlying resources.
	Close() error
}

// BarReader reads stored bars for backfill, warm-up, and replay.
type BarReader interface {
	// ReadBars reads bars for a symbol and interval after a Unix timestamp,
	// ordered by time ascending.
	ReadBars(symbol string, interval int, afterTS int64) ([]Bar, error)

	// Close releases underlying resources.
	Close() error
}
