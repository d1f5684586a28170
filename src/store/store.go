package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	_ "github.com/glebarez/go-sqlite"

	"orderflow/src/engine"
)

// RunStore journals batch runs and their executed trades in SQLite.
// One row per run, one row per trade, keyed by the run's uuid, so
// independent runs against the same database stay separable.
type RunStore struct {
	db *sql.DB
}

// NewRunStore opens (or creates) the journal database with WAL mode
// enabled and the schema in place.
func NewRunStore(dbPath string) (*RunStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, fmt.Errorf("open sqlite: %w", err)
	}

	pragmas := []string{
		"PRAGMA journal_mode=WAL;",
		"PRAGMA synchronous=NORMAL;",
		"PRAGMA foreign_keys=ON;",
	}
	for _, pragma := range pragmas {
		if _, err := db.Exec(pragma); err != nil {
			return nil, fmt.Errorf("set pragma %s: %w", pragma, err)
		}
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS runs (
			id TEXT PRIMARY KEY,
			started_at INTEGER NOT NULL,
			finished_at INTEGER,
			applied INTEGER NOT NULL DEFAULT 0,
			skipped INTEGER NOT NULL DEFAULT 0,
			trade_count INTEGER NOT NULL DEFAULT 0
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create runs table: %w", err)
	}

	_, err = db.Exec(`
		CREATE TABLE IF NOT EXISTS trades (
			run_id TEXT NOT NULL REFERENCES runs(id),
			trade_id INTEGER NOT NULL,
			buy_order_id TEXT NOT NULL,
			sell_order_id TEXT NOT NULL,
			amount TEXT NOT NULL,
			price TEXT NOT NULL,
			pair TEXT NOT NULL,
			executed_at INTEGER NOT NULL,
			PRIMARY KEY (run_id, trade_id)
		);
	`)
	if err != nil {
		return nil, fmt.Errorf("create trades table: %w", err)
	}

	return &RunStore{db: db}, nil
}

// BeginRun records the start of a batch run.
func (s *RunStore) BeginRun(ctx context.Context, runID string, startedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"INSERT INTO runs (id, started_at) VALUES (?, ?)",
		runID, startedAt.UnixMilli(),
	)
	if err != nil {
		return fmt.Errorf("insert run %s: %w", runID, err)
	}
	return nil
}

// FinishRun stamps the run with its completion time and counters.
func (s *RunStore) FinishRun(ctx context.Context, runID string, stats engine.Stats, finishedAt time.Time) error {
	_, err := s.db.ExecContext(ctx,
		"UPDATE runs SET finished_at = ?, applied = ?, skipped = ?, trade_count = ? WHERE id = ?",
		finishedAt.UnixMilli(), stats.Applied, stats.Skipped, stats.Trades, runID,
	)
	if err != nil {
		return fmt.Errorf("finish run %s: %w", runID, err)
	}
	return nil
}

// SaveTrades journals every trade of a run in one transaction. Amounts
// and prices are stored as decimal text, never as binary floats.
func (s *RunStore) SaveTrades(ctx context.Context, runID string, trades []engine.Trade) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("begin trades tx: %w", err)
	}
	defer tx.Rollback()

	stmt, err := tx.PrepareContext(ctx,
		"INSERT INTO trades (run_id, trade_id, buy_order_id, sell_order_id, amount, price, pair, executed_at) VALUES (?, ?, ?, ?, ?, ?, ?, ?)",
	)
	if err != nil {
		return fmt.Errorf("prepare trade insert: %w", err)
	}
	defer stmt.Close()

	for _, t := range trades {
		_, err := stmt.ExecContext(ctx,
			runID, t.TradeID, t.BuyOrderID, t.SellOrderID,
			engine.Fixed8(t.Amount), t.Price.String(), t.Pair, t.Timestamp.UnixMilli(),
		)
		if err != nil {
			return fmt.Errorf("insert trade %d: %w", t.TradeID, err)
		}
	}
	return tx.Commit()
}

// TradeCount returns how many trades a run journaled.
func (s *RunStore) TradeCount(ctx context.Context, runID string) (int, error) {
	var n int
	err := s.db.QueryRowContext(ctx,
		"SELECT COUNT(*) FROM trades WHERE run_id = ?", runID,
	).Scan(&n)
	if err != nil {
		return 0, fmt.Errorf("count trades for run %s: %w", runID, err)
	}
	return n, nil
}

// Close closes the database connection.
func (s *RunStore) Close() error {
	return s.db.Close()
}
