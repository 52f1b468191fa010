package exchange

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"strings"
	"time"

	"driftguard/internal/domain"
	"driftguard/internal/tokens"
)

// Compile-time interface check.
var _ Exchange = (*RecallExchange)(nil)

// quoteSymbol is the asset every trade settles against in the sandbox.
const quoteSymbol = "USDC"

// RecallExchange talks to the Recall competition sandbox API. Balance reads
// use a 10s timeout; trade execution gets 20s since the sandbox simulates a
// swap before answering.
type RecallExchange struct {
	baseURL     string
	apiKey      string
	registry    *tokens.Registry
	readClient  *http.Client
	tradeClient *http.Client
	log         *slog.Logger
}

// NewRecallExchange creates a sandbox client authenticated with apiKey.
func NewRecallExchange(baseURL, apiKey string, registry *tokens.Registry, log *slog.Logger) *RecallExchange {
	if log == nil {
		log = slog.Default()
	}
	return &RecallExchange{
		baseURL:     strings.TrimRight(baseURL, "/"),
		apiKey:      apiKey,
		registry:    registry,
		readClient:  &http.Client{Timeout: 10 * time.Second},
		tradeClient: &http.Client{Timeout: 20 * time.Second},
		log:         log.With("component", "recall"),
	}
}

// Name returns "recall".
func (e *RecallExchange) Name() string { return "recall" }

// Balances implements Exchange via GET /api/balance.
func (e *RecallExchange) Balances(ctx context.Context) (domain.Holdings, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, e.baseURL+"/api/balance", nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)

	resp, err := e.readClient.Do(req)
	if err != nil {
		return nil, fmt.Errorf("fetching balances: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("fetching balances: status %d", resp.StatusCode)
	}

	var holdings domain.Holdings
	if err := json.NewDecoder(resp.Body).Decode(&holdings); err != nil {
		return nil, fmt.Errorf("decoding balances: %w", err)
	}
	return holdings, nil
}

// tradePayload is the sandbox's trade execution request body. Amount is the
// base-unit integer string of the from-token.
type tradePayload struct {
	FromToken string `json:"fromToken"`
	ToToken   string `json:"toToken"`
	Amount    string `json:"amount"`
	Reason    string `json:"reason"`
}

// ExecuteTrade implements Exchange via POST /api/trade/execute. Sells route
// symbol → USDC; buys route USDC → symbol. The base-unit amount always uses
// the decimals of the token whose quantity the request names.
func (e *RecallExchange) ExecuteTrade(ctx context.Context, tr TradeRequest) (TradeResult, error) {
	token, ok := e.registry.Lookup(tr.Symbol)
	if !ok {
		return TradeResult{}, fmt.Errorf("unknown token symbol %q", tr.Symbol)
	}
	quote, ok := e.registry.Lookup(quoteSymbol)
	if !ok {
		return TradeResult{}, fmt.Errorf("quote token %s missing from registry", quoteSymbol)
	}

	payload := tradePayload{
		Amount: ToBaseUnits(tr.Amount, token.Decimals),
		Reason: tr.Reason,
	}
	switch tr.Side {
	case domain.OrderSideSell:
		payload.FromToken, payload.ToToken = token.Address, quote.Address
	case domain.OrderSideBuy:
		payload.FromToken, payload.ToToken = quote.Address, token.Address
	default:
		return TradeResult{}, fmt.Errorf("invalid order side %q", tr.Side)
	}

	body, err := json.Marshal(payload)
	if err != nil {
		return TradeResult{}, err
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, e.baseURL+"/api/trade/execute", bytes.NewReader(body))
	if err != nil {
		return TradeResult{}, err
	}
	req.Header.Set("Authorization", "Bearer "+e.apiKey)
	req.Header.Set("Content-Type", "application/json")

	resp, err := e.tradeClient.Do(req)
	if err != nil {
		return TradeResult{}, fmt.Errorf("executing trade: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return TradeResult{}, fmt.Errorf("executing trade: status %d: %s", resp.StatusCode, strings.TrimSpace(string(msg)))
	}

	var result struct {
		Status string `json:"status"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		return TradeResult{}, fmt.Errorf("decoding trade result: %w", err)
	}
	if result.Status == "" {
		result.Status = "unknown"
	}

	e.log.Info("trade executed", "symbol", tr.Symbol, "side", tr.Side, "amount", tr.Amount, "status", result.Status)
	return TradeResult{Status: result.Status}, nil
}
