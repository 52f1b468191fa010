// Package exchange defines the Exchange interface and provides the Recall
// sandbox implementation plus an in-memory simulator for paper trading and
// tests.
package exchange

import (
	"context"

	"driftguard/internal/domain"
)

// TradeRequest describes one trade to execute. Amount is in whole-token
// units of the traded symbol; conversion to base units happens inside the
// implementation.
type TradeRequest struct {
	Symbol string
	Side   domain.OrderSide
	Amount float64
	Reason string
}

// TradeResult is the exchange's answer to a trade submission.
type TradeResult struct {
	Status string
}

// Exchange abstracts the sandbox exchange: account balances and trade
// execution.
type Exchange interface {
	// Name returns the exchange identifier (e.g. "recall", "sim").
	Name() string

	// Balances returns the account's current holdings in whole-token units.
	Balances(ctx context.Context) (domain.Holdings, error)

	// ExecuteTrade submits one trade for execution. Sells convert the symbol
	// to USDC; buys spend USDC for the symbol.
	ExecuteTrade(ctx context.Context, req TradeRequest) (TradeResult, error)
}
