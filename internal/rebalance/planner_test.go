package rebalance

import (
	"errors"
	"math"
	"testing"

	"driftguard/internal/domain"
)

func TestComputeOrdersExampleScenario(t *testing.T) {
	// Targets 50/50, only A funded: total 100, A at 100% vs 50% → drift 0.5,
	// sell A for 50 of value → 5 tokens. B should be bought with the
	// slippage pad: 50/10 × 1.05 = 5.25.
	p := NewPlanner(0.03, 0.05)

	orders, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 0.5, "B": 0.5},
		domain.PriceSnapshot{"A": 10, "B": 10},
		domain.Holdings{"A": 10, "B": 0},
	)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}

	if len(orders) != 2 {
		t.Fatalf("got %d orders, want 2", len(orders))
	}
	sell := orders[0]
	if sell.Symbol != "A" || sell.Side != domain.OrderSideSell {
		t.Errorf("first order = %+v, want sell A", sell)
	}
	if math.Abs(sell.Amount-5) > 1e-9 {
		t.Errorf("sell amount = %v, want 5", sell.Amount)
	}
	buy := orders[1]
	if buy.Symbol != "B" || buy.Side != domain.OrderSideBuy {
		t.Errorf("second order = %+v, want buy B", buy)
	}
	if math.Abs(buy.Amount-5.25) > 1e-9 {
		t.Errorf("buy amount = %v, want exactly (1+slippage)×5 = 5.25", buy.Amount)
	}
}

func TestComputeOrdersZeroValueFails(t *testing.T) {
	p := NewPlanner(0.03, 0.05)

	_, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 1},
		domain.PriceSnapshot{"A": 10},
		domain.Holdings{},
	)
	if !errors.Is(err, ErrNoFundedPositions) {
		t.Errorf("err = %v, want ErrNoFundedPositions", err)
	}
}

func TestComputeOrdersWithinThresholdIsEmpty(t *testing.T) {
	p := NewPlanner(0.03, 0.05)

	// 51/49 split vs 50/50 targets: |drift| = 0.01 < 0.03 for both.
	orders, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 0.5, "B": 0.5},
		domain.PriceSnapshot{"A": 1, "B": 1},
		domain.Holdings{"A": 51, "B": 49},
	)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}
	if len(orders) != 0 {
		t.Errorf("got %d orders inside the drift threshold, want 0", len(orders))
	}
}

func TestComputeOrdersNeverTradesUnpricedSymbols(t *testing.T) {
	p := NewPlanner(0.03, 0.05)

	orders, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 0.5, "B": 0.3, "C": 0.2},
		domain.PriceSnapshot{"A": 10, "B": 0}, // B zero, C missing
		domain.Holdings{"A": 100},
	)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}
	for _, o := range orders {
		if o.Symbol == "B" || o.Symbol == "C" {
			t.Errorf("order emitted for unpriced symbol %s", o.Symbol)
		}
	}
}

func TestSellsAlwaysPrecedeBuys(t *testing.T) {
	p := NewPlanner(0.03, 0.05)

	orders, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 0.25, "B": 0.25, "C": 0.25, "D": 0.25},
		domain.PriceSnapshot{"A": 1, "B": 1, "C": 1, "D": 1},
		domain.Holdings{"A": 100, "B": 0, "C": 80, "D": 0},
	)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}

	seenBuy := false
	for _, o := range orders {
		if o.Side == domain.OrderSideBuy {
			seenBuy = true
		}
		if o.Side == domain.OrderSideSell && seenBuy {
			t.Fatalf("sell order after a buy order: %v", orders)
		}
	}
}

func TestComputeOrdersDeterministicOrder(t *testing.T) {
	p := NewPlanner(0.03, 0.05)
	targets := domain.TargetAllocation{"D": 0.25, "A": 0.25, "C": 0.25, "B": 0.25}
	prices := domain.PriceSnapshot{"A": 1, "B": 1, "C": 1, "D": 1}
	holdings := domain.Holdings{"A": 100, "C": 100}

	first, err := p.ComputeOrders(targets, prices, holdings)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}
	for i := 0; i < 20; i++ {
		again, _ := p.ComputeOrders(targets, prices, holdings)
		if len(again) != len(first) {
			t.Fatal("order count changed across runs")
		}
		for j := range again {
			if again[j] != first[j] {
				t.Fatalf("run %d produced different sequence: %v vs %v", i, again, first)
			}
		}
	}
}

func TestAmountsArePositive(t *testing.T) {
	p := NewPlanner(0.03, 0.05)
	orders, err := p.ComputeOrders(
		domain.TargetAllocation{"A": 0.7, "B": 0.3},
		domain.PriceSnapshot{"A": 3, "B": 7},
		domain.Holdings{"A": 1, "B": 9},
	)
	if err != nil {
		t.Fatalf("ComputeOrders() error: %v", err)
	}
	for _, o := range orders {
		if o.Amount <= 0 {
			t.Errorf("order %+v has non-positive amount", o)
		}
	}
}
