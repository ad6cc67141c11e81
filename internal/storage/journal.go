package storage

import (
	"database/sql"
	"fmt"
	"log/slog"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"github.com/lmvdz/zo-mm/internal/domain"
)

// Journal is a write-only audit trail of spreads and quotes in SQLite.
// It is strictly observability: every method on a nil *Journal is a no-op
// and recording errors are logged, never returned to the trading path.
type Journal struct {
	db  *sql.DB
	log *slog.Logger
}

const journalSchema = `
CREATE TABLE IF NOT EXISTS spreads (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_unix_m INTEGER NOT NULL,
	asset     TEXT    NOT NULL,
	exchange  TEXT    NOT NULL,
	bid_micros INTEGER NOT NULL,
	ask_micros INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS orders (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_unix_m INTEGER NOT NULL,
	symbol    TEXT    NOT NULL,
	side      TEXT    NOT NULL,
	price_micros INTEGER NOT NULL,
	size_sats    INTEGER NOT NULL
);
CREATE TABLE IF NOT EXISTS cancels (
	id        INTEGER PRIMARY KEY AUTOINCREMENT,
	ts_unix_m INTEGER NOT NULL,
	symbol    TEXT    NOT NULL,
	order_id  TEXT    NOT NULL
);
`

// OpenJournal opens (creating if needed) the journal database.
func OpenJournal(path string, log *slog.Logger) (*Journal, error) {
	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, fmt.Errorf("open journal: %w", err)
	}
	// Single writer; WAL keeps the write path from blocking on fsync.
	if _, err := db.Exec("PRAGMA journal_mode=WAL; PRAGMA synchronous=NORMAL;"); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal pragmas: %w", err)
	}
	if _, err := db.Exec(journalSchema); err != nil {
		db.Close()
		return nil, fmt.Errorf("journal schema: %w", err)
	}
	return &Journal{db: db, log: log}, nil
}

// RecordSpreads stores one row per exchange of a spreads message.
func (j *Journal) RecordSpreads(asset string, spreads map[string]domain.ExchangeQuote) {
	if j == nil {
		return
	}
	now := time.Now().UnixMicro()
	for exchange, q := range spreads {
		_, err := j.db.Exec(
			"INSERT INTO spreads (ts_unix_m, asset, exchange, bid_micros, ask_micros) VALUES (?, ?, ?, ?, ?)",
			now, asset, exchange, int64(q.BestBidMicros), int64(q.BestAskMicros))
		if err != nil {
			j.log.Warn("journal spreads write failed", slog.Any("error", err))
			return
		}
	}
}

// RecordOrder stores one placed quote.
func (j *Journal) RecordOrder(symbol, side string, priceMicros, sizeSats int64) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		"INSERT INTO orders (ts_unix_m, symbol, side, price_micros, size_sats) VALUES (?, ?, ?, ?, ?)",
		time.Now().UnixMicro(), symbol, side, priceMicros, sizeSats)
	if err != nil {
		j.log.Warn("journal order write failed", slog.Any("error", err))
	}
}

// RecordCancel stores one settled cancellation.
func (j *Journal) RecordCancel(symbol, orderID string) {
	if j == nil {
		return
	}
	_, err := j.db.Exec(
		"INSERT INTO cancels (ts_unix_m, symbol, order_id) VALUES (?, ?, ?)",
		time.Now().UnixMicro(), symbol, orderID)
	if err != nil {
		j.log.Warn("journal cancel write failed", slog.Any("error", err))
	}
}

// Count returns the number of rows in a journal table.
func (j *Journal) Count(table string) (int, error) {
	if j == nil {
		return 0, nil
	}
	switch table {
	case "spreads", "orders", "cancels":
	default:
		return 0, fmt.Errorf("unknown journal table: %s", table)
	}
	var n int
	err := j.db.QueryRow("SELECT COUNT(*) FROM " + table).Scan(&n)
	return n, err
}

// Close flushes and closes the database.
func (j *Journal) Close() error {
	if j == nil {
		return nil
	}
	return j.db.Close()
}
