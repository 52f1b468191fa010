// Package domain defines the core value types shared across the trading
// agent: price snapshots, holdings, target allocations, positions, orders,
// stop-loss triggers, and audit log entries.
package domain

import "time"

// ---------------------------------------------------------------------------
// Market data
// ---------------------------------------------------------------------------

// PriceSnapshot maps symbol to current spot price in USD. A price of 0 means
// "unavailable this cycle". Snapshots are ephemeral: refetched every
// evaluation cycle and never reused across cycles.
type PriceSnapshot map[string]float64

// Known reports whether the snapshot carries a usable price for symbol.
func (p PriceSnapshot) Known(symbol string) bool {
	price, ok := p[symbol]
	return ok && price > 0
}

// Holdings maps symbol to quantity held, in whole-token units (not base
// units). Refetched every cycle.
type Holdings map[string]float64

// TargetAllocation maps symbol to its target portfolio weight (fraction of
// total value, 0..1). Weights are not required to sum to exactly 1; callers
// warn when the sum deviates materially.
type TargetAllocation map[string]float64

// WeightSum returns the sum of all target weights.
func (t TargetAllocation) WeightSum() float64 {
	var sum float64
	for _, w := range t {
		sum += w
	}
	return sum
}

// MarketMetrics carries extended per-token market data used by the risk
// adjuster and the analysis reports.
type MarketMetrics struct {
	PriceChange24h float64 // percent, signed
	Volume24h      float64 // USD
	MarketCap      float64 // USD
	MarketCapRank  int
}

// TokenInfo describes one token returned by a top-N market query.
type TokenInfo struct {
	ID             string
	Symbol         string
	Name           string
	Price          float64
	MarketCap      float64
	Volume24h      float64
	PriceChange24h float64
}

// ---------------------------------------------------------------------------
// Positions
// ---------------------------------------------------------------------------

// Position is the tracked cost-basis state for one held symbol. EntryPrice is
// set once, the first time the symbol is observed with a nonzero holding, and
// never changes for the life of the position. HighestPrice ratchets upward
// every cycle the price is known and is the reference for trailing stops.
type Position struct {
	Symbol       string
	EntryPrice   float64
	HighestPrice float64
	EnteredAt    time.Time
}

// ---------------------------------------------------------------------------
// Orders and triggers
// ---------------------------------------------------------------------------

// OrderSide is the direction of a rebalancing order.
type OrderSide string

const (
	OrderSideBuy  OrderSide = "buy"
	OrderSideSell OrderSide = "sell"
)

// Order is a single rebalancing trade: amount is in whole-token units and is
// always positive. Orders are produced fresh each planning cycle and are not
// persisted; only their execution result is logged.
type Order struct {
	Symbol string
	Side   OrderSide
	Amount float64
	Drift  float64 // signed drift fraction that produced the order
}

// TriggerKind classifies why a stop-loss fired.
type TriggerKind string

const (
	TriggerFixed              TriggerKind = "fixed"
	TriggerTrailing           TriggerKind = "trailing"
	TriggerEmergency          TriggerKind = "emergency"
	TriggerPortfolioEmergency TriggerKind = "portfolio_emergency"
)

// Trigger is one stop-loss decision: liquidate the entire held amount of
// Symbol. LossFraction is (entry-current)/entry; negative values mean the
// position is actually in profit (possible for portfolio_emergency).
type Trigger struct {
	Symbol       string
	Kind         TriggerKind
	CurrentPrice float64
	EntryPrice   float64
	LossFraction float64
	Amount       float64
	Reason       string
}

// ---------------------------------------------------------------------------
// Audit records
// ---------------------------------------------------------------------------

// TradeLogEntry is the write-once audit record for one executed (or failed)
// rebalancing trade.
type TradeLogEntry struct {
	Timestamp time.Time
	Symbol    string
	Side      OrderSide
	Amount    float64
	Price     float64
	Status    string
}

// StopLossLogEntry is the write-once audit record for one stop-loss
// liquidation.
type StopLossLogEntry struct {
	Timestamp    time.Time
	Symbol       string
	Kind         TriggerKind
	EntryPrice   float64
	ExitPrice    float64
	LossFraction float64
	Amount       float64
	Reason       string
	Status       string
}
