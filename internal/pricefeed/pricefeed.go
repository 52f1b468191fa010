// Package pricefeed provides spot price and market metric sources for the
// agent. The primary implementation talks to CoinGecko; an alternate feed
// uses the Alpaca crypto market-data API. Both tolerate unknown symbols by
// reporting a zero price instead of failing the batch.
package pricefeed

import (
	"context"

	"driftguard/internal/domain"
)

// PriceFeed supplies current market data for a set of symbols.
type PriceFeed interface {
	// Prices returns the current USD spot price per symbol. Symbols the
	// source does not know come back with price 0, never as an error.
	Prices(ctx context.Context, symbols []string) (domain.PriceSnapshot, error)

	// Metrics returns extended 24h market metrics per symbol. Symbols
	// without data are absent from the result.
	Metrics(ctx context.Context, symbols []string) (map[string]domain.MarketMetrics, error)

	// TopTokens returns the top-N tokens by market capitalization,
	// optionally filtered by category ("" for no filter).
	TopTokens(ctx context.Context, limit int, category string) ([]domain.TokenInfo, error)
}
