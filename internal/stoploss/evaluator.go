// Package stoploss implements the stop-loss decision engine: per-position
// fixed, trailing, and emergency stop levels, and the portfolio-level
// circuit breaker. Evaluation is a pure computation over the current
// snapshot and tracked positions; execution belongs to the caller.
package stoploss

import (
	"fmt"
	"sort"

	"driftguard/internal/domain"
)

// Levels are the three reference prices computed for one position.
type Levels struct {
	Fixed     float64
	Trailing  float64
	Emergency float64
}

// LevelsFor computes the stop levels for a position under the given params.
// The trailing level follows the high-water mark, not the entry price.
func LevelsFor(pos domain.Position, params Params) Levels {
	stopPct := params.stopFor(pos.Symbol)
	return Levels{
		Fixed:     pos.EntryPrice * (1 - stopPct),
		Trailing:  pos.HighestPrice * (1 - params.TrailingStop),
		Emergency: pos.EntryPrice * (1 - params.EmergencyStop),
	}
}

// PortfolioLoss returns the aggregate unrealized loss fraction across all
// symbols that are held, priced, and tracked: (cost - value) / cost, or 0
// when nothing has a cost basis yet.
func PortfolioLoss(holdings domain.Holdings, prices domain.PriceSnapshot, positions map[string]domain.Position) float64 {
	var totalCost, totalValue float64
	for symbol, amount := range holdings {
		if amount <= 0 || !prices.Known(symbol) {
			continue
		}
		pos, ok := positions[symbol]
		if !ok {
			continue
		}
		totalCost += amount * pos.EntryPrice
		totalValue += amount * prices[symbol]
	}
	if totalCost == 0 {
		return 0
	}
	return (totalCost - totalValue) / totalCost
}

// Evaluate returns the stop-loss triggers for this cycle. If the portfolio
// loss exceeds params.MaxPortfolioLoss, it returns one portfolio_emergency
// trigger per held symbol and performs no individual checks at all.
// Otherwise each held, priced, tracked symbol is checked against its levels
// in fixed, trailing, emergency order and at most one trigger is reported
// per symbol: a price can sit below several levels at once, and the first
// match wins.
//
// Symbols without a tracked position or without a known price are silently
// skipped: no cost basis means no stop is possible yet. Triggers come back
// in symbol order, never map order.
func Evaluate(holdings domain.Holdings, prices domain.PriceSnapshot, positions map[string]domain.Position, params Params) []domain.Trigger {
	portfolioLoss := PortfolioLoss(holdings, prices, positions)
	if portfolioLoss > params.MaxPortfolioLoss {
		return portfolioTriggers(holdings, prices, positions, portfolioLoss)
	}

	var triggers []domain.Trigger
	for _, symbol := range heldSymbols(holdings) {
		amount := holdings[symbol]
		if !prices.Known(symbol) {
			continue
		}
		pos, ok := positions[symbol]
		if !ok {
			continue
		}

		current := prices[symbol]
		levels := LevelsFor(pos, params)
		loss := (pos.EntryPrice - current) / pos.EntryPrice

		switch {
		case current <= levels.Fixed:
			triggers = append(triggers, domain.Trigger{
				Symbol:       symbol,
				Kind:         domain.TriggerFixed,
				CurrentPrice: current,
				EntryPrice:   pos.EntryPrice,
				LossFraction: loss,
				Amount:       amount,
				Reason:       fmt.Sprintf("fixed stop-loss triggered at %.2f%% loss", loss*100),
			})
		case params.EnableTrailingStops && current <= levels.Trailing:
			triggers = append(triggers, domain.Trigger{
				Symbol:       symbol,
				Kind:         domain.TriggerTrailing,
				CurrentPrice: current,
				EntryPrice:   pos.EntryPrice,
				LossFraction: loss,
				Amount:       amount,
				Reason:       fmt.Sprintf("trailing stop-loss triggered at %.2f%% loss", loss*100),
			})
		case params.EnableEmergencyStops && current <= levels.Emergency:
			triggers = append(triggers, domain.Trigger{
				Symbol:       symbol,
				Kind:         domain.TriggerEmergency,
				CurrentPrice: current,
				EntryPrice:   pos.EntryPrice,
				LossFraction: loss,
				Amount:       amount,
				Reason:       fmt.Sprintf("EMERGENCY stop-loss triggered at %.2f%% loss", loss*100),
			})
		}
	}
	return triggers
}

// portfolioTriggers emits one portfolio_emergency trigger for every
// currently held symbol, regardless of its individual stop levels.
func portfolioTriggers(holdings domain.Holdings, prices domain.PriceSnapshot, positions map[string]domain.Position, portfolioLoss float64) []domain.Trigger {
	var triggers []domain.Trigger
	for _, symbol := range heldSymbols(holdings) {
		amount := holdings[symbol]
		triggers = append(triggers, domain.Trigger{
			Symbol:       symbol,
			Kind:         domain.TriggerPortfolioEmergency,
			CurrentPrice: prices[symbol],
			EntryPrice:   positions[symbol].EntryPrice,
			LossFraction: portfolioLoss,
			Amount:       amount,
			Reason:       fmt.Sprintf("portfolio emergency stop-loss at %.2f%% loss", portfolioLoss*100),
		})
	}
	return triggers
}

// heldSymbols returns the symbols with a positive holding, sorted so the
// trigger list has a stable order.
func heldSymbols(holdings domain.Holdings) []string {
	out := make([]string, 0, len(holdings))
	for symbol, amount := range holdings {
		if amount > 0 {
			out = append(out, symbol)
		}
	}
	sort.Strings(out)
	return out
}
