// Package store defines storage interfaces for the agent's audit trail and
// portfolio snapshot archive.
package store

import (
	"context"
	"time"

	"driftguard/internal/domain"
)

// TradeLogStore is an append-only log of executed rebalancing trades. Entries
// are write-once; there is no update or delete.
type TradeLogStore interface {
	// AppendTrade persists one trade audit record.
	AppendTrade(ctx context.Context, entry domain.TradeLogEntry) error

	// ListTrades returns the most recent trade records up to limit, newest
	// first. limit <= 0 returns everything.
	ListTrades(ctx context.Context, limit int) ([]domain.TradeLogEntry, error)
}

// StopLossLogStore is an append-only log of stop-loss liquidations.
type StopLossLogStore interface {
	// AppendStopLoss persists one stop-loss audit record.
	AppendStopLoss(ctx context.Context, entry domain.StopLossLogEntry) error

	// ListStopLosses returns the most recent stop-loss records up to limit,
	// newest first. limit <= 0 returns everything.
	ListStopLosses(ctx context.Context, limit int) ([]domain.StopLossLogEntry, error)
}

// SnapshotArchive persists per-cycle portfolio snapshots for offline analysis.
type SnapshotArchive interface {
	// WriteSnapshot archives the holdings and prices observed during one
	// evaluation cycle, stamped with the cycle time.
	WriteSnapshot(ctx context.Context, at time.Time, holdings domain.Holdings, prices domain.PriceSnapshot) error

	// ReadSnapshots returns archived rows with cycle timestamps in
	// [start, end], ordered by timestamp then symbol.
	ReadSnapshots(ctx context.Context, start, end time.Time) ([]SnapshotRow, error)
}

// SnapshotRow is one symbol's state within an archived cycle.
type SnapshotRow struct {
	Timestamp time.Time
	Symbol    string
	Price     float64
	Amount    float64
	Value     float64
}
