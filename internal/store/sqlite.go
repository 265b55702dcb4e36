// Package store persists closed trades and the coordinator event stream.
package store

import (
	"context"
	"database/sql"
	"os"
	"path/filepath"
	"time"

	_ "modernc.org/sqlite"

	"spreadbot-go/internal/market"
	"spreadbot-go/internal/position"
)

// TradeStore keeps the closed-trade history in a local SQLite file.
type TradeStore struct {
	db *sql.DB
}

// NewTradeStore opens (creating if needed) the database at path and
// runs migrations.
func NewTradeStore(path string) (*TradeStore, error) {
	if dir := filepath.Dir(path); dir != "." && dir != "" {
		_ = os.MkdirAll(dir, 0o755)
	}

	db, err := sql.Open("sqlite", path)
	if err != nil {
		return nil, err
	}
	db.SetMaxOpenConns(1)

	s := &TradeStore{db: db}
	if err := s.migrate(context.Background()); err != nil {
		_ = db.Close()
		return nil, err
	}
	return s, nil
}

func (s *TradeStore) Close() error { return s.db.Close() }

func (s *TradeStore) migrate(ctx context.Context) error {
	_, err := s.db.ExecContext(ctx, `
CREATE TABLE IF NOT EXISTS trades (
  id INTEGER PRIMARY KEY AUTOINCREMENT,
  direction TEXT NOT NULL,
  entry_time INTEGER NOT NULL,
  exit_time INTEGER NOT NULL,
  entry_spread REAL NOT NULL,
  exit_spread REAL NOT NULL,
  pnl REAL NOT NULL,
  reason TEXT NOT NULL,
  duration_ticks INTEGER NOT NULL,
  created_at INTEGER NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trades_exit_time ON trades(exit_time);
`)
	return err
}

// Insert appends one closed trade.
func (s *TradeStore) Insert(ctx context.Context, t position.Trade) error {
	_, err := s.db.ExecContext(ctx, `
INSERT INTO trades (direction, entry_time, exit_time, entry_spread, exit_spread, pnl, reason, duration_ticks, created_at)
VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		string(t.Direction),
		t.EntryTime.UnixMilli(),
		t.ExitTime.UnixMilli(),
		t.EntrySpread,
		t.ExitSpread,
		t.PnL,
		string(t.Reason),
		t.DurationTicks,
		time.Now().UnixMilli(),
	)
	return err
}

// List returns up to limit trades, most recent exit first.
func (s *TradeStore) List(ctx context.Context, limit int) ([]position.Trade, error) {
	if limit <= 0 {
		limit = 100
	}
	rows, err := s.db.QueryContext(ctx, `
SELECT direction, entry_time, exit_time, entry_spread, exit_spread, pnl, reason, duration_ticks
FROM trades ORDER BY exit_time DESC LIMIT ?`, limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []position.Trade
	for rows.Next() {
		var t position.Trade
		var dir, reason string
		var entryMs, exitMs int64
		if err := rows.Scan(&dir, &entryMs, &exitMs, &t.EntrySpread, &t.ExitSpread, &t.PnL, &reason, &t.DurationTicks); err != nil {
			return nil, err
		}
		t.Direction = market.Direction(dir)
		t.Reason = market.ExitReason(reason)
		t.EntryTime = time.UnixMilli(entryMs)
		t.ExitTime = time.UnixMilli(exitMs)
		out = append(out, t)
	}
	return out, rows.Err()
}
