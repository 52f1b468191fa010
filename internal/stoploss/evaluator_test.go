package stoploss

import (
	"math"
	"path/filepath"
	"testing"

	"driftguard/internal/domain"
)

func testParams() Params {
	return Params{
		Enabled:              true,
		DefaultStopLoss:      0.15,
		TrailingStop:         0.10,
		EmergencyStop:        0.25,
		TokenStopLoss:        map[string]float64{"USDC": 0.05},
		MaxPortfolioLoss:     0.20,
		EnableTrailingStops:  true,
		EnableEmergencyStops: true,
	}
}

func pos(symbol string, entry, high float64) domain.Position {
	return domain.Position{Symbol: symbol, EntryPrice: entry, HighestPrice: high}
}

func TestFixedStopFires(t *testing.T) {
	// Entry 100, default stop 15% → fixed level 85. Price 84 breaches it.
	triggers := Evaluate(
		domain.Holdings{"X": 10},
		domain.PriceSnapshot{"X": 84},
		map[string]domain.Position{"X": pos("X", 100, 100)},
		testParams(),
	)

	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}
	tr := triggers[0]
	if tr.Kind != domain.TriggerFixed {
		t.Errorf("Kind = %q, want fixed", tr.Kind)
	}
	if math.Abs(tr.LossFraction-0.16) > 1e-9 {
		t.Errorf("LossFraction = %v, want 0.16", tr.LossFraction)
	}
	if tr.Amount != 10 {
		t.Errorf("Amount = %v, want the entire holding (10)", tr.Amount)
	}
}

func TestFixedWinsWhenAllLevelsBreached(t *testing.T) {
	// Entry 100, high 200: fixed 85, trailing 180, emergency 75.
	// Price 50 is below all three; the first-match policy must report fixed.
	// The breaker ceiling is lifted so the 50% single-symbol loss exercises
	// the individual checks rather than the portfolio short-circuit.
	params := testParams()
	params.MaxPortfolioLoss = 0.9

	triggers := Evaluate(
		domain.Holdings{"X": 1},
		domain.PriceSnapshot{"X": 50},
		map[string]domain.Position{"X": pos("X", 100, 200)},
		params,
	)

	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}
	if triggers[0].Kind != domain.TriggerFixed {
		t.Errorf("Kind = %q, want fixed (first-match precedence)", triggers[0].Kind)
	}
}

func TestTrailingStopFollowsHighWaterMark(t *testing.T) {
	// Entry 100, high 200: fixed level 85 is safe at price 150, but the
	// trailing level 180 is breached.
	triggers := Evaluate(
		domain.Holdings{"X": 1},
		domain.PriceSnapshot{"X": 150},
		map[string]domain.Position{"X": pos("X", 100, 200)},
		testParams(),
	)

	if len(triggers) != 1 {
		t.Fatalf("got %d triggers, want 1", len(triggers))
	}
	if triggers[0].Kind != domain.TriggerTrailing {
		t.Errorf("Kind = %q, want trailing", triggers[0].Kind)
	}
	// Trailing can fire while the position is still in profit.
	if triggers[0].LossFraction >= 0 {
		t.Errorf("LossFraction = %v, want negative (position is in profit)", triggers[0].LossFraction)
	}
}

func TestTrailingDisabledFallsThrough(t *testing.T) {
	params := testParams()
	params.EnableTrailingStops = false

	triggers := Evaluate(
		domain.Holdings{"X": 1},
		domain.PriceSnapshot{"X": 150},
		map[string]domain.Position{"X": pos("X", 100, 200)},
		params,
	)
	if len(triggers) != 0 {
		t.Errorf("got %d triggers with trailing disabled, want 0", len(triggers))
	}
}

func TestPerSymbolOverride(t *testing.T) {
	// USDC override is 5%: entry 1.00, price 0.96 breaches 0.95? No — level
	// is 0.95 and 0.96 > 0.95, so no trigger. 0.94 does breach.
	positions := map[string]domain.Position{"USDC": pos("USDC", 1.00, 1.00)}

	safe := Evaluate(domain.Holdings{"USDC": 100}, domain.PriceSnapshot{"USDC": 0.96}, positions, testParams())
	if len(safe) != 0 {
		t.Errorf("got %d triggers at 4%% loss with 5%% override, want 0", len(safe))
	}

	hit := Evaluate(domain.Holdings{"USDC": 100}, domain.PriceSnapshot{"USDC": 0.94}, positions, testParams())
	if len(hit) != 1 || hit[0].Kind != domain.TriggerFixed {
		t.Fatalf("expected fixed trigger at 6%% loss with 5%% override, got %v", hit)
	}
}

func TestUntrackedOrUnpricedSymbolsAreSkipped(t *testing.T) {
	triggers := Evaluate(
		domain.Holdings{"A": 5, "B": 5, "C": 0},
		domain.PriceSnapshot{"A": 0, "B": 10}, // A unavailable; B priced but untracked
		map[string]domain.Position{"A": pos("A", 100, 100)},
		testParams(),
	)
	if len(triggers) != 0 {
		t.Errorf("got %d triggers, want 0 (no cost basis or no price)", len(triggers))
	}
}

func TestPortfolioBreakerShortCircuits(t *testing.T) {
	// Two positions, both down 50%: portfolio loss 0.5 > 0.2 breaker.
	// Every held symbol must appear as portfolio_emergency, even one that
	// would individually trigger a fixed stop, and no individual kinds may
	// be emitted.
	holdings := domain.Holdings{"A": 10, "B": 20, "Z": 0}
	prices := domain.PriceSnapshot{"A": 50, "B": 5}
	positions := map[string]domain.Position{
		"A": pos("A", 100, 100),
		"B": pos("B", 10, 10),
	}

	triggers := Evaluate(holdings, prices, positions, testParams())

	if len(triggers) != 2 {
		t.Fatalf("got %d triggers, want 2 (every held symbol)", len(triggers))
	}
	seen := map[string]bool{}
	for _, tr := range triggers {
		if tr.Kind != domain.TriggerPortfolioEmergency {
			t.Errorf("Kind = %q for %s, want portfolio_emergency only", tr.Kind, tr.Symbol)
		}
		if math.Abs(tr.LossFraction-0.5) > 1e-9 {
			t.Errorf("LossFraction = %v, want portfolio loss 0.5", tr.LossFraction)
		}
		seen[tr.Symbol] = true
	}
	if !seen["A"] || !seen["B"] {
		t.Errorf("triggers missing a held symbol: %v", seen)
	}
}

func TestTriggerOrderIsStable(t *testing.T) {
	// Three symbols all breach their fixed stops; the trigger list must come
	// back in symbol order on every run, not in map iteration order.
	params := testParams()
	params.MaxPortfolioLoss = 0.9

	holdings := domain.Holdings{"C": 1, "A": 1, "B": 1}
	prices := domain.PriceSnapshot{"A": 80, "B": 80, "C": 80}
	positions := map[string]domain.Position{
		"A": pos("A", 100, 100),
		"B": pos("B", 100, 100),
		"C": pos("C", 100, 100),
	}

	for run := 0; run < 20; run++ {
		triggers := Evaluate(holdings, prices, positions, params)
		if len(triggers) != 3 {
			t.Fatalf("got %d triggers, want 3", len(triggers))
		}
		for i, want := range []string{"A", "B", "C"} {
			if triggers[i].Symbol != want {
				t.Fatalf("run %d: triggers[%d] = %s, want %s", run, i, triggers[i].Symbol, want)
			}
		}
	}

	// The breaker path sorts too.
	params.MaxPortfolioLoss = 0.1
	triggers := Evaluate(holdings, prices, positions, params)
	if len(triggers) != 3 {
		t.Fatalf("breaker emitted %d triggers, want 3", len(triggers))
	}
	for i, want := range []string{"A", "B", "C"} {
		if triggers[i].Symbol != want {
			t.Fatalf("breaker triggers[%d] = %s, want %s", i, triggers[i].Symbol, want)
		}
	}
}

func TestPortfolioLossBoundary(t *testing.T) {
	// Loss exactly at the maximum must NOT fire the breaker.
	holdings := domain.Holdings{"A": 10}
	prices := domain.PriceSnapshot{"A": 80}
	positions := map[string]domain.Position{"A": pos("A", 100, 100)}
	params := testParams()
	params.TokenStopLoss = map[string]float64{"A": 0.30} // keep fixed stop out of the way
	params.EnableTrailingStops = false
	params.EnableEmergencyStops = false

	if loss := PortfolioLoss(holdings, prices, positions); math.Abs(loss-0.20) > 1e-9 {
		t.Fatalf("PortfolioLoss = %v, want 0.20", loss)
	}
	triggers := Evaluate(holdings, prices, positions, params)
	for _, tr := range triggers {
		if tr.Kind == domain.TriggerPortfolioEmergency {
			t.Error("breaker fired at exactly max_portfolio_loss; it requires strictly greater")
		}
	}
}

func TestPortfolioLossEmptyCostBasis(t *testing.T) {
	if loss := PortfolioLoss(domain.Holdings{"A": 1}, domain.PriceSnapshot{"A": 5}, nil); loss != 0 {
		t.Errorf("PortfolioLoss with no tracked positions = %v, want 0", loss)
	}
}

func TestParamsRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "stop_loss_config.json")
	overrides := map[string]float64{"ETH": 0.12, "YFI": 0.25}

	// First load writes defaults.
	params, err := LoadParams(path, overrides)
	if err != nil {
		t.Fatalf("LoadParams() error: %v", err)
	}
	if !params.Enabled || params.DefaultStopLoss != 0.15 {
		t.Errorf("unexpected defaults: %+v", params)
	}
	if params.TokenStopLoss["ETH"] != 0.12 {
		t.Errorf("TokenStopLoss[ETH] = %v, want 0.12", params.TokenStopLoss["ETH"])
	}

	// Second load reads back the identical values.
	reloaded, err := LoadParams(path, nil)
	if err != nil {
		t.Fatalf("LoadParams() reload error: %v", err)
	}
	if reloaded.DefaultStopLoss != params.DefaultStopLoss ||
		reloaded.MaxPortfolioLoss != params.MaxPortfolioLoss ||
		reloaded.TokenStopLoss["YFI"] != 0.25 {
		t.Errorf("reloaded params differ: %+v vs %+v", reloaded, params)
	}
}

func TestStopForOverride(t *testing.T) {
	params := testParams()
	if got := params.stopFor("USDC"); got != 0.05 {
		t.Errorf("stopFor(USDC) = %v, want override 0.05", got)
	}
	if got := params.stopFor("ETH"); got != 0.15 {
		t.Errorf("stopFor(ETH) = %v, want default 0.15", got)
	}
}
