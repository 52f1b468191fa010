package exchange

import (
	"context"
	"fmt"
	"sync"

	"driftguard/internal/domain"
)

// Compile-time interface check.
var _ Exchange = (*SimExchange)(nil)

// SimExchange implements Exchange in memory for paper trading and tests.
// Trades fill instantly at the prices supplied via SetPrices; balances are
// adjusted as if the sandbox executed a USDC swap with no fees.
type SimExchange struct {
	mu       sync.Mutex
	balances domain.Holdings
	prices   domain.PriceSnapshot
	trades   []TradeRequest
	failNext error
}

// NewSimExchange creates a simulator seeded with the given balances.
func NewSimExchange(initial domain.Holdings) *SimExchange {
	balances := make(domain.Holdings, len(initial))
	for symbol, amount := range initial {
		balances[symbol] = amount
	}
	return &SimExchange{balances: balances, prices: domain.PriceSnapshot{}}
}

// Name returns "sim".
func (s *SimExchange) Name() string { return "sim" }

// SetPrices updates the fill prices used by subsequent trades.
func (s *SimExchange) SetPrices(prices domain.PriceSnapshot) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.prices = prices
}

// FailNext makes the next ExecuteTrade call return err, then clears itself.
// Used by tests to exercise partial-batch semantics.
func (s *SimExchange) FailNext(err error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.failNext = err
}

// Balances implements Exchange.
func (s *SimExchange) Balances(context.Context) (domain.Holdings, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make(domain.Holdings, len(s.balances))
	for symbol, amount := range s.balances {
		out[symbol] = amount
	}
	return out, nil
}

// ExecuteTrade implements Exchange with an instant fill at the current sim
// price.
func (s *SimExchange) ExecuteTrade(_ context.Context, tr TradeRequest) (TradeResult, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.failNext != nil {
		err := s.failNext
		s.failNext = nil
		return TradeResult{}, err
	}

	price, ok := s.prices[tr.Symbol]
	if !ok || price <= 0 {
		return TradeResult{}, fmt.Errorf("no sim price for %s", tr.Symbol)
	}

	value := tr.Amount * price
	switch tr.Side {
	case domain.OrderSideSell:
		if s.balances[tr.Symbol] < tr.Amount {
			return TradeResult{}, fmt.Errorf("insufficient %s balance: have %v, want %v", tr.Symbol, s.balances[tr.Symbol], tr.Amount)
		}
		s.balances[tr.Symbol] -= tr.Amount
		s.balances[quoteSymbol] += value
	case domain.OrderSideBuy:
		if s.balances[quoteSymbol] < value {
			return TradeResult{}, fmt.Errorf("insufficient %s balance: have %v, want %v", quoteSymbol, s.balances[quoteSymbol], value)
		}
		s.balances[quoteSymbol] -= value
		s.balances[tr.Symbol] += tr.Amount
	default:
		return TradeResult{}, fmt.Errorf("invalid order side %q", tr.Side)
	}

	s.trades = append(s.trades, tr)
	return TradeResult{Status: "executed"}, nil
}

// Trades returns every trade executed so far, in order.
func (s *SimExchange) Trades() []TradeRequest {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := make([]TradeRequest, len(s.trades))
	copy(out, s.trades)
	return out
}
