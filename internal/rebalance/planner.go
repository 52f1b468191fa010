// Package rebalance implements the drift-correction planner: given target
// weights and a price/holdings snapshot, it computes the buy/sell orders
// that bring the portfolio back within tolerance, sells ordered before buys.
package rebalance

import (
	"errors"
	"math"
	"sort"

	"driftguard/internal/domain"
)

// ErrNoFundedPositions is returned when the portfolio has zero total value:
// there is nothing to rebalance against and the cycle must not proceed to
// order computation.
var ErrNoFundedPositions = errors.New("no funded positions: portfolio value is zero")

// Planner computes rebalancing orders.
type Planner struct {
	driftThreshold float64
	maxSlippage    float64
}

// NewPlanner creates a Planner. driftThreshold is the minimum |drift|
// fraction that produces an order (typically 0.03); maxSlippage is the
// pre-funding pad applied to buy amounts (typically 0.05).
func NewPlanner(driftThreshold, maxSlippage float64) *Planner {
	return &Planner{driftThreshold: driftThreshold, maxSlippage: maxSlippage}
}

// TotalValue returns the portfolio value over the target symbols.
func TotalValue(targets domain.TargetAllocation, prices domain.PriceSnapshot, holdings domain.Holdings) float64 {
	var total float64
	for symbol := range targets {
		total += holdings[symbol] * prices[symbol]
	}
	return total
}

// ComputeOrders returns the orders needed to close every drift at or beyond
// the threshold, sells first so their proceeds can fund the buys (the
// sandbox has no margin). Within each side, orders are in symbol order so
// the sequence is deterministic rather than an accident of map iteration.
//
// Buy amounts are inflated by (1 + maxSlippage) to pre-fund
// expected execution slippage; realized allocations therefore trend slightly
// overweight across repeated buy cycles. Symbols with an unknown or zero
// price are skipped entirely: temporarily untradeable, not an error.
func (p *Planner) ComputeOrders(targets domain.TargetAllocation, prices domain.PriceSnapshot, holdings domain.Holdings) ([]domain.Order, error) {
	totalValue := TotalValue(targets, prices, holdings)
	if totalValue == 0 {
		return nil, ErrNoFundedPositions
	}

	var sells, buys []domain.Order
	for symbol, weight := range targets {
		if !prices.Known(symbol) {
			continue
		}

		currentValue := holdings[symbol] * prices[symbol]
		targetValue := totalValue * weight
		drift := (currentValue - targetValue) / totalValue

		if math.Abs(drift) < p.driftThreshold {
			continue
		}

		deltaValue := math.Abs(targetValue - currentValue)
		amount := deltaValue / prices[symbol]

		if drift > 0 {
			sells = append(sells, domain.Order{Symbol: symbol, Side: domain.OrderSideSell, Amount: amount, Drift: drift})
		} else {
			amount *= 1 + p.maxSlippage
			buys = append(buys, domain.Order{Symbol: symbol, Side: domain.OrderSideBuy, Amount: amount, Drift: drift})
		}
	}

	bySymbol := func(orders []domain.Order) {
		sort.Slice(orders, func(i, j int) bool { return orders[i].Symbol < orders[j].Symbol })
	}
	bySymbol(sells)
	bySymbol(buys)

	return append(sells, buys...), nil
}
