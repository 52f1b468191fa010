package position

import (
	"testing"

	"driftguard/internal/domain"
)

func TestObserveSeedsEntryPrice(t *testing.T) {
	tr := NewTracker(nil)

	tr.Observe(domain.Holdings{"ETH": 2}, domain.PriceSnapshot{"ETH": 3000})

	pos, ok := tr.Get("ETH")
	if !ok {
		t.Fatal("expected ETH position after first observation")
	}
	if pos.EntryPrice != 3000 {
		t.Errorf("EntryPrice = %v, want 3000", pos.EntryPrice)
	}
	if pos.HighestPrice != 3000 {
		t.Errorf("HighestPrice = %v, want 3000", pos.HighestPrice)
	}
}

func TestObserveNeverOverwritesEntryPrice(t *testing.T) {
	tr := NewTracker(nil)
	holdings := domain.Holdings{"ETH": 2}

	tr.Observe(holdings, domain.PriceSnapshot{"ETH": 3000})
	for _, price := range []float64{3500, 2800, 4100, 1900, 3000.01} {
		tr.Observe(holdings, domain.PriceSnapshot{"ETH": price})
	}

	pos, _ := tr.Get("ETH")
	if pos.EntryPrice != 3000 {
		t.Errorf("EntryPrice = %v after fluctuating prices, want 3000", pos.EntryPrice)
	}
}

func TestHighestPriceIsNonDecreasing(t *testing.T) {
	tr := NewTracker(nil)
	holdings := domain.Holdings{"UNI": 100}

	prev := 0.0
	for _, price := range []float64{10, 12, 11, 15, 9, 14, 15.5, 3} {
		tr.Observe(holdings, domain.PriceSnapshot{"UNI": price})
		pos, _ := tr.Get("UNI")
		if pos.HighestPrice < prev {
			t.Fatalf("HighestPrice decreased from %v to %v", prev, pos.HighestPrice)
		}
		prev = pos.HighestPrice
	}

	pos, _ := tr.Get("UNI")
	if pos.HighestPrice != 15.5 {
		t.Errorf("HighestPrice = %v, want 15.5", pos.HighestPrice)
	}
}

func TestObserveSkipsUnknownPricesAndZeroHoldings(t *testing.T) {
	tr := NewTracker(nil)

	tr.Observe(
		domain.Holdings{"AAVE": 5, "MKR": 0, "SNX": 10},
		domain.PriceSnapshot{"AAVE": 0, "MKR": 1200}, // AAVE unavailable, SNX missing
	)

	if _, ok := tr.Get("AAVE"); ok {
		t.Error("position created despite unavailable price")
	}
	if _, ok := tr.Get("MKR"); ok {
		t.Error("position created despite zero holding")
	}
	if _, ok := tr.Get("SNX"); ok {
		t.Error("position created despite missing price")
	}

	// An unknown price on a later cycle must not disturb the high-water mark.
	tr.Observe(domain.Holdings{"LINK": 50}, domain.PriceSnapshot{"LINK": 20})
	tr.Observe(domain.Holdings{"LINK": 50}, domain.PriceSnapshot{"LINK": 0})
	pos, _ := tr.Get("LINK")
	if pos.HighestPrice != 20 {
		t.Errorf("HighestPrice = %v after unavailable price, want 20", pos.HighestPrice)
	}
}

func TestClearAndReentrySeedsFreshEntry(t *testing.T) {
	tr := NewTracker(nil)

	tr.Observe(domain.Holdings{"CRV": 1000}, domain.PriceSnapshot{"CRV": 0.50})
	tr.Clear("CRV")

	if _, ok := tr.Get("CRV"); ok {
		t.Fatal("position still tracked after Clear")
	}

	tr.Observe(domain.Holdings{"CRV": 500}, domain.PriceSnapshot{"CRV": 0.80})
	pos, ok := tr.Get("CRV")
	if !ok {
		t.Fatal("expected fresh position after re-entry")
	}
	if pos.EntryPrice != 0.80 {
		t.Errorf("re-entry EntryPrice = %v, want 0.80 (prior basis must be forgotten)", pos.EntryPrice)
	}
}

func TestPositionsReturnsCopies(t *testing.T) {
	tr := NewTracker(nil)
	tr.Observe(domain.Holdings{"ETH": 1}, domain.PriceSnapshot{"ETH": 3000})

	snapshot := tr.Positions()
	if len(snapshot) != 1 {
		t.Fatalf("Positions() returned %d entries, want 1", len(snapshot))
	}
	mutated := snapshot["ETH"]
	mutated.EntryPrice = 1

	pos, _ := tr.Get("ETH")
	if pos.EntryPrice != 3000 {
		t.Error("mutating the returned map affected tracker state")
	}
}
