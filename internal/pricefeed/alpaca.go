package pricefeed

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/alpacahq/alpaca-trade-api-go/v3/marketdata"

	"driftguard/internal/domain"
)

// Compile-time interface check.
var _ PriceFeed = (*AlpacaFeed)(nil)

// ErrNotSupported is returned for feed features the Alpaca crypto API does
// not expose (market-cap data and market-cap-ordered listings).
var ErrNotSupported = errors.New("not supported by the alpaca crypto feed")

// AlpacaFeed is the alternate spot price source, backed by the Alpaca crypto
// market-data API. Symbols are quoted against USD (ETH → ETH/USD). Alpaca
// has no market-cap data, so Metrics reports volume and 24h change only and
// TopTokens is unsupported; the risk-adjustment pass should stay on
// CoinGecko.
type AlpacaFeed struct {
	client *marketdata.Client
	log    *slog.Logger
}

// NewAlpacaFeed creates an AlpacaFeed with the given credentials. dataURL
// overrides the default market-data endpoint when non-empty.
func NewAlpacaFeed(apiKey, apiSecret, dataURL string, log *slog.Logger) *AlpacaFeed {
	opts := marketdata.ClientOpts{
		APIKey:    apiKey,
		APISecret: apiSecret,
	}
	if dataURL != "" {
		opts.BaseURL = dataURL
	}
	if log == nil {
		log = slog.Default()
	}
	return &AlpacaFeed{
		client: marketdata.NewClient(opts),
		log:    log.With("component", "alpaca-feed"),
	}
}

// Prices implements PriceFeed using latest crypto trades. Pairs Alpaca does
// not trade come back at 0 with a warning, matching the CoinGecko feed's
// unknown-symbol behavior.
func (f *AlpacaFeed) Prices(_ context.Context, symbols []string) (domain.PriceSnapshot, error) {
	pairs := make([]string, 0, len(symbols))
	pairToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		pair := symbol + "/USD"
		pairs = append(pairs, pair)
		pairToSymbol[pair] = symbol
	}

	trades, err := f.client.GetLatestCryptoTrades(pairs, marketdata.GetLatestCryptoTradeRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetching latest crypto trades: %w", err)
	}

	prices := make(domain.PriceSnapshot, len(symbols))
	for pair, symbol := range pairToSymbol {
		trade, ok := trades[pair]
		if !ok {
			f.log.Warn("no price data", "symbol", symbol, "pair", pair)
			prices[symbol] = 0
			continue
		}
		prices[symbol] = trade.Price
	}
	return prices, nil
}

// Metrics implements PriceFeed with the data Alpaca can provide: 24h change
// and volume derived from daily bars. MarketCap is always 0.
func (f *AlpacaFeed) Metrics(_ context.Context, symbols []string) (map[string]domain.MarketMetrics, error) {
	pairs := make([]string, 0, len(symbols))
	pairToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		pair := symbol + "/USD"
		pairs = append(pairs, pair)
		pairToSymbol[pair] = symbol
	}

	snapshots, err := f.client.GetCryptoSnapshots(pairs, marketdata.GetCryptoSnapshotRequest{})
	if err != nil {
		return nil, fmt.Errorf("fetching crypto snapshots: %w", err)
	}

	metrics := make(map[string]domain.MarketMetrics, len(symbols))
	for pair, snap := range snapshots {
		symbol, ok := pairToSymbol[pair]
		if !ok || snap.DailyBar == nil {
			continue
		}
		m := domain.MarketMetrics{
			Volume24h: snap.DailyBar.Volume * snap.DailyBar.Close,
		}
		if snap.PrevDailyBar != nil && snap.PrevDailyBar.Close > 0 {
			m.PriceChange24h = (snap.DailyBar.Close - snap.PrevDailyBar.Close) / snap.PrevDailyBar.Close * 100
		}
		metrics[symbol] = m
	}
	return metrics, nil
}

// TopTokens implements PriceFeed. Alpaca cannot order by market cap.
func (f *AlpacaFeed) TopTokens(context.Context, int, string) ([]domain.TokenInfo, error) {
	return nil, ErrNotSupported
}
