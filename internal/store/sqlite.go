package store

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"driftguard/internal/domain"

	_ "modernc.org/sqlite" // Pure-Go SQLite driver.
)

// Compile-time interface checks.
var _ TradeLogStore = (*SQLiteStore)(nil)
var _ StopLossLogStore = (*SQLiteStore)(nil)

// SQLiteStore implements TradeLogStore and StopLossLogStore backed by a
// SQLite database. Both tables are insert-only; rows are never updated or
// removed, so the log doubles as a tamper-evident audit trail.
type SQLiteStore struct {
	db *sql.DB
}

const schema = `
CREATE TABLE IF NOT EXISTS trade_log (
	id         INTEGER PRIMARY KEY AUTOINCREMENT,
	ts         INTEGER NOT NULL,
	symbol     TEXT    NOT NULL,
	side       TEXT    NOT NULL,
	amount     REAL    NOT NULL,
	price      REAL    NOT NULL,
	status     TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_trade_log_ts ON trade_log (ts);

CREATE TABLE IF NOT EXISTS stop_loss_log (
	id            INTEGER PRIMARY KEY AUTOINCREMENT,
	ts            INTEGER NOT NULL,
	symbol        TEXT    NOT NULL,
	kind          TEXT    NOT NULL,
	entry_price   REAL    NOT NULL,
	exit_price    REAL    NOT NULL,
	loss_fraction REAL    NOT NULL,
	amount        REAL    NOT NULL,
	reason        TEXT    NOT NULL,
	status        TEXT    NOT NULL
);
CREATE INDEX IF NOT EXISTS idx_stop_loss_log_ts ON stop_loss_log (ts);
`

// NewSQLiteStore opens (or creates) a SQLite database at dbPath and applies
// the schema.
func NewSQLiteStore(dbPath string) (*SQLiteStore, error) {
	db, err := sql.Open("sqlite", dbPath)
	if err != nil {
		return nil, err
	}
	if _, err := db.Exec(schema); err != nil {
		db.Close()
		return nil, fmt.Errorf("applying schema: %w", err)
	}
	return &SQLiteStore{db: db}, nil
}

// Close closes the underlying database connection.
func (s *SQLiteStore) Close() error {
	return s.db.Close()
}

// ---------------------------------------------------------------------------
// TradeLogStore implementation
// ---------------------------------------------------------------------------

// AppendTrade inserts one trade audit record.
func (s *SQLiteStore) AppendTrade(ctx context.Context, e domain.TradeLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO trade_log (ts, symbol, side, amount, price, status)
		 VALUES (?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixMilli(), e.Symbol, string(e.Side), e.Amount, e.Price, e.Status)
	if err != nil {
		return fmt.Errorf("inserting trade log entry: %w", err)
	}
	return nil
}

// ListTrades returns the most recent trade records up to limit, newest first.
func (s *SQLiteStore) ListTrades(ctx context.Context, limit int) ([]domain.TradeLogEntry, error) {
	query := `SELECT ts, symbol, side, amount, price, status FROM trade_log ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying trade log: %w", err)
	}
	defer rows.Close()

	var entries []domain.TradeLogEntry
	for rows.Next() {
		var (
			e  domain.TradeLogEntry
			ts int64
		)
		if err := rows.Scan(&ts, &e.Symbol, &e.Side, &e.Amount, &e.Price, &e.Status); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}

// ---------------------------------------------------------------------------
// StopLossLogStore implementation
// ---------------------------------------------------------------------------

// AppendStopLoss inserts one stop-loss audit record.
func (s *SQLiteStore) AppendStopLoss(ctx context.Context, e domain.StopLossLogEntry) error {
	_, err := s.db.ExecContext(ctx,
		`INSERT INTO stop_loss_log (ts, symbol, kind, entry_price, exit_price, loss_fraction, amount, reason, status)
		 VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?)`,
		e.Timestamp.UnixMilli(), e.Symbol, string(e.Kind), e.EntryPrice, e.ExitPrice,
		e.LossFraction, e.Amount, e.Reason, e.Status)
	if err != nil {
		return fmt.Errorf("inserting stop-loss log entry: %w", err)
	}
	return nil
}

// ListStopLosses returns the most recent stop-loss records up to limit,
// newest first.
func (s *SQLiteStore) ListStopLosses(ctx context.Context, limit int) ([]domain.StopLossLogEntry, error) {
	query := `SELECT ts, symbol, kind, entry_price, exit_price, loss_fraction, amount, reason, status
	          FROM stop_loss_log ORDER BY id DESC`
	args := []any{}
	if limit > 0 {
		query += ` LIMIT ?`
		args = append(args, limit)
	}

	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("querying stop-loss log: %w", err)
	}
	defer rows.Close()

	var entries []domain.StopLossLogEntry
	for rows.Next() {
		var (
			e  domain.StopLossLogEntry
			ts int64
		)
		if err := rows.Scan(&ts, &e.Symbol, &e.Kind, &e.EntryPrice, &e.ExitPrice,
			&e.LossFraction, &e.Amount, &e.Reason, &e.Status); err != nil {
			return nil, err
		}
		e.Timestamp = time.UnixMilli(ts).UTC()
		entries = append(entries, e)
	}
	return entries, rows.Err()
}
