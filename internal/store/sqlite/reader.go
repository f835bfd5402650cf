package sqlite

import (
	"fmt"
	"log"
	"time"

	"database/sql"

	"trident/internal/model"

	_ "github.com/mattn/go-sqlite3"
)

// Reader provides read-only access to SQLite for backtests and indicator
// warm-up on startup.
type Reader struct {
	db *sql.DB
}

// NewReader opens a SQLite connection for reading.
func NewReader(dbPath string) (*Reader, error) {
	db, err := sql.Open("sqlite3", dbPath+"?_journal_mode=WAL&_synchronous=NORMAL&_busy_timeout=5000")
	if err != nil {
		return nil, fmt.Errorf("sqlite open reader: %w", err)
	}
	db.SetMaxOpenConns(2)
	db.SetMaxIdleConns(2)

	log.Printf("[sqlite-reader] opened %s", dbPath)
	return &Reader{db: db}, nil
}

// ReadBars reads bars for a symbol and interval after the given Unix
// timestamp (0 = all), ordered by timestamp ascending for correct replay.
func (r *Reader) ReadBars(symbol string, interval int, afterTS int64) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, interval, ts, open, high, low, close, volume, trades
		FROM bars
		WHERE symbol = ? AND interval = ? AND ts > ?
		ORDER BY ts ASC
	`, symbol, interval, afterTS)
	if err != nil {
		return nil, fmt.Errorf("sqlite query bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &b.Interval, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Trades); err != nil {
			return nil, fmt.Errorf("sqlite scan bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// ReadRecentBars returns the most recent N bars for a symbol and interval in
// ascending order. Used to warm up the indicator engine before going live.
func (r *Reader) ReadRecentBars(symbol string, interval, limit int) ([]model.Bar, error) {
	rows, err := r.db.Query(`
		SELECT symbol, interval, ts, open, high, low, close, volume, trades
		FROM (
			SELECT * FROM bars
			WHERE symbol = ? AND interval = ?
			ORDER BY ts DESC LIMIT ?
		)
		ORDER BY ts ASC
	`, symbol, interval, limit)
	if err != nil {
		return nil, fmt.Errorf("sqlite query recent bars: %w", err)
	}
	defer rows.Close()

	var bars []model.Bar
	for rows.Next() {
		var b model.Bar
		var tsUnix int64
		if err := rows.Scan(&b.Symbol, &b.Interval, &tsUnix, &b.Open, &b.High, &b.Low, &b.Close, &b.Volume, &b.Trades); err != nil {
			return nil, fmt.Errorf("sqlite scan recent bars: %w", err)
		}
		b.TS = time.Unix(tsUnix, 0).UTC()
		bars = append(bars, b)
	}
	return bars, rows.Err()
}

// Close closes the reader.
func (r *Reader) Close() error {
	return r.db.Close()
}
