package pricefeed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"driftguard/internal/domain"
	"driftguard/internal/tokens"
	"driftguard/internal/util"
)

// Compile-time interface check.
var _ PriceFeed = (*CoinGeckoFeed)(nil)

// retryAttempts bounds the read-side retry; trade execution never retries.
const retryAttempts = 2

// CoinGeckoFeed fetches prices and market metrics from the CoinGecko REST
// API. Symbol ↔ CoinGecko-id translation goes through the token registry.
// The free tier is aggressively rate limited, so every request passes
// through a token bucket first.
type CoinGeckoFeed struct {
	baseURL  string
	apiKey   string
	registry *tokens.Registry
	client   *http.Client
	limiter  *util.RateLimiter
	log      *slog.Logger
}

// NewCoinGeckoFeed creates a feed against baseURL (the public API when
// empty). apiKey is the optional demo/pro key sent as a query parameter.
func NewCoinGeckoFeed(baseURL, apiKey string, ratePerMin int, registry *tokens.Registry, log *slog.Logger) *CoinGeckoFeed {
	if baseURL == "" {
		baseURL = "https://api.coingecko.com/api/v3"
	}
	if ratePerMin <= 0 {
		ratePerMin = 30
	}
	if log == nil {
		log = slog.Default()
	}
	return &CoinGeckoFeed{
		baseURL:  strings.TrimRight(baseURL, "/"),
		apiKey:   apiKey,
		registry: registry,
		client:   &http.Client{Timeout: 10 * time.Second},
		limiter:  util.NewRateLimiter(ratePerMin),
		log:      log.With("component", "coingecko"),
	}
}

// Prices implements PriceFeed. Symbols without a registry mapping or without
// price data are reported at 0 with a warning.
func (f *CoinGeckoFeed) Prices(ctx context.Context, symbols []string) (domain.PriceSnapshot, error) {
	ids := f.idsFor(symbols)
	if len(ids) == 0 {
		return domain.PriceSnapshot{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currencies", "usd")

	// map[coingecko-id]map[currency]price
	var data map[string]map[string]float64
	if err := f.getJSON(ctx, "/simple/price", params, &data); err != nil {
		return nil, fmt.Errorf("fetching prices: %w", err)
	}

	prices := make(domain.PriceSnapshot, len(symbols))
	for _, symbol := range symbols {
		id := f.registry.CoinGeckoID(symbol)
		if entry, ok := data[id]; ok && id != "" {
			prices[symbol] = entry["usd"]
			continue
		}
		f.log.Warn("no price data", "symbol", symbol)
		prices[symbol] = 0
	}
	return prices, nil
}

// marketRow is the subset of the coins/markets response the agent uses.
type marketRow struct {
	ID             string  `json:"id"`
	Symbol         string  `json:"symbol"`
	Name           string  `json:"name"`
	CurrentPrice   float64 `json:"current_price"`
	MarketCap      float64 `json:"market_cap"`
	MarketCapRank  int     `json:"market_cap_rank"`
	TotalVolume    float64 `json:"total_volume"`
	PriceChange24h float64 `json:"price_change_percentage_24h"`
}

// Metrics implements PriceFeed.
func (f *CoinGeckoFeed) Metrics(ctx context.Context, symbols []string) (map[string]domain.MarketMetrics, error) {
	ids := f.idsFor(symbols)
	if len(ids) == 0 {
		return map[string]domain.MarketMetrics{}, nil
	}

	params := url.Values{}
	params.Set("ids", strings.Join(ids, ","))
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", "250")
	params.Set("page", "1")
	params.Set("sparkline", "false")

	var rows []marketRow
	if err := f.getJSON(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, fmt.Errorf("fetching metrics: %w", err)
	}

	idToSymbol := make(map[string]string, len(symbols))
	for _, symbol := range symbols {
		if id := f.registry.CoinGeckoID(symbol); id != "" {
			idToSymbol[id] = symbol
		}
	}

	metrics := make(map[string]domain.MarketMetrics, len(rows))
	for _, row := range rows {
		symbol, ok := idToSymbol[row.ID]
		if !ok {
			continue
		}
		metrics[symbol] = domain.MarketMetrics{
			PriceChange24h: row.PriceChange24h,
			Volume24h:      row.TotalVolume,
			MarketCap:      row.MarketCap,
			MarketCapRank:  row.MarketCapRank,
		}
	}
	return metrics, nil
}

// TopTokens implements PriceFeed.
func (f *CoinGeckoFeed) TopTokens(ctx context.Context, limit int, category string) ([]domain.TokenInfo, error) {
	if limit <= 0 || limit > 250 {
		limit = 250
	}

	params := url.Values{}
	params.Set("vs_currency", "usd")
	params.Set("order", "market_cap_desc")
	params.Set("per_page", strconv.Itoa(limit))
	params.Set("page", "1")
	params.Set("sparkline", "false")
	if category != "" {
		params.Set("category", category)
	}

	var rows []marketRow
	if err := f.getJSON(ctx, "/coins/markets", params, &rows); err != nil {
		return nil, fmt.Errorf("fetching top tokens: %w", err)
	}

	out := make([]domain.TokenInfo, 0, len(rows))
	for _, row := range rows {
		out = append(out, domain.TokenInfo{
			ID:             row.ID,
			Symbol:         strings.ToUpper(row.Symbol),
			Name:           row.Name,
			Price:          row.CurrentPrice,
			MarketCap:      row.MarketCap,
			Volume24h:      row.TotalVolume,
			PriceChange24h: row.PriceChange24h,
		})
	}
	return out, nil
}

func (f *CoinGeckoFeed) idsFor(symbols []string) []string {
	ids := make([]string, 0, len(symbols))
	for _, symbol := range symbols {
		if id := f.registry.CoinGeckoID(symbol); id != "" {
			ids = append(ids, id)
		}
	}
	return ids
}

// getJSON performs a rate-limited GET with bounded retry and decodes the
// JSON body into out.
func (f *CoinGeckoFeed) getJSON(ctx context.Context, path string, params url.Values, out any) error {
	if f.apiKey != "" {
		params.Set("x_cg_demo_api_key", f.apiKey)
	}
	reqURL := f.baseURL + path + "?" + params.Encode()

	return util.Retry(ctx, retryAttempts, 500*time.Millisecond, func() error {
		if err := f.limiter.Wait(ctx); err != nil {
			return err
		}

		req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
		if err != nil {
			return err
		}
		resp, err := f.client.Do(req)
		if err != nil {
			return err
		}
		defer resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			body, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
			return fmt.Errorf("GET %s: status %d: %s", path, resp.StatusCode, strings.TrimSpace(string(body)))
		}
		return json.NewDecoder(resp.Body).Decode(out)
	})
}
