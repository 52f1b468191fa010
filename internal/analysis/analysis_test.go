package analysis

import (
	"math"
	"strings"
	"testing"

	"driftguard/internal/config"
	"driftguard/internal/domain"
)

func TestPortfolioReport(t *testing.T) {
	targets := domain.TargetAllocation{"ETH": 0.6, "LINK": 0.4}
	prices := domain.PriceSnapshot{"ETH": 2000, "LINK": 10}
	holdings := domain.Holdings{"ETH": 1, "LINK": 100} // $2000 + $1000

	report := PortfolioReport(targets, prices, holdings)

	for _, want := range []string{"ETH", "LINK", "$2000.00", "$1000.00", "total value: $3000.00"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
	// ETH current 66.67% vs target 60% → drift +6.67%, LINK mirrors it, so
	// the average drift is 6.67%.
	if !strings.Contains(report, "average drift: 6.67%") {
		t.Errorf("report missing average drift:\n%s", report)
	}
	// Largest value first.
	if strings.Index(report, "ETH") > strings.Index(report, "LINK") {
		t.Errorf("rows not sorted by value:\n%s", report)
	}
}

func TestPortfolioReportEmpty(t *testing.T) {
	report := PortfolioReport(domain.TargetAllocation{"ETH": 1}, domain.PriceSnapshot{}, domain.Holdings{})
	if !strings.Contains(report, "no funded positions") {
		t.Errorf("empty portfolio report = %q", report)
	}
}

func TestWeightedMetrics(t *testing.T) {
	targets := domain.TargetAllocation{"ETH": 0.5, "LINK": 0.5}
	metrics := map[string]domain.MarketMetrics{
		"ETH":  {PriceChange24h: -10, Volume24h: 1e9, MarketCap: 3e11},
		"LINK": {PriceChange24h: 20, Volume24h: 1e8, MarketCap: 1e10},
	}

	w := WeightedMetrics(targets, metrics)
	if w.Volatility != 15 {
		t.Errorf("Volatility = %v, want 15", w.Volatility)
	}
	if w.Volume24h != 5.5e8 {
		t.Errorf("Volume24h = %v, want 5.5e8", w.Volume24h)
	}
}

func TestWeightedMetricsRenormalizesOverCoverage(t *testing.T) {
	// Only half the allocation has metrics; the weighted result should not
	// be diluted by the uncovered half.
	targets := domain.TargetAllocation{"ETH": 0.5, "XXX": 0.5}
	metrics := map[string]domain.MarketMetrics{
		"ETH": {PriceChange24h: 8, Volume24h: 1e9, MarketCap: 3e11},
	}

	w := WeightedMetrics(targets, metrics)
	if w.Volatility != 8 {
		t.Errorf("Volatility = %v, want 8", w.Volatility)
	}
	if w.MarketCap != 3e11 {
		t.Errorf("MarketCap = %v, want 3e11", w.MarketCap)
	}
}

func TestRiskAlerts(t *testing.T) {
	cfg := config.RiskConfig{
		HighVolatilityPct: 30,
		LowVolumeUSD:      10_000_000,
		SmallCapUSD:       50_000_000,
	}
	targets := domain.TargetAllocation{"AAA": 0.3, "BBB": 0.3, "CCC": 0.4}
	metrics := map[string]domain.MarketMetrics{
		"AAA": {PriceChange24h: -35, Volume24h: 1e9, MarketCap: 1e10},
		"BBB": {PriceChange24h: 2, Volume24h: 5_000_000, MarketCap: 40_000_000},
		"CCC": {PriceChange24h: 1, Volume24h: 1e9, MarketCap: 1e10},
	}

	alerts := RiskAlerts(targets, metrics, cfg)
	if len(alerts) != 3 {
		t.Fatalf("got %d alerts, want 3: %v", len(alerts), alerts)
	}
	joined := strings.Join(alerts, "\n")
	for _, want := range []string{"AAA: high volatility", "BBB: low liquidity", "BBB: small market cap"} {
		if !strings.Contains(joined, want) {
			t.Errorf("alerts missing %q: %v", want, alerts)
		}
	}
}

func TestMarketMovers(t *testing.T) {
	tokens := []domain.TokenInfo{
		{Symbol: "a", PriceChange24h: 12, MarketCap: 100},
		{Symbol: "b", PriceChange24h: 5, MarketCap: 100},
		{Symbol: "c", PriceChange24h: -3, MarketCap: 100},
		{Symbol: "d", PriceChange24h: -8, MarketCap: 100},
		{Symbol: "e", PriceChange24h: 1, MarketCap: 100},
	}

	m := MarketMovers(tokens, 2)
	if len(m.Gainers) != 2 || m.Gainers[0].Symbol != "a" || m.Gainers[1].Symbol != "b" {
		t.Errorf("Gainers = %v", m.Gainers)
	}
	if len(m.Losers) != 2 || m.Losers[0].Symbol != "d" || m.Losers[1].Symbol != "c" {
		t.Errorf("Losers = %v", m.Losers)
	}
	wantImpact := (12.0 + 5 - 3 - 8 + 1) / 5
	if math.Abs(m.NetImpact-wantImpact) > 1e-9 {
		t.Errorf("NetImpact = %v, want %v", m.NetImpact, wantImpact)
	}
}

func TestMoversReport(t *testing.T) {
	report := MoversReport(Movers{
		Gainers:   []domain.TokenInfo{{Symbol: "eth", PriceChange24h: 4.2, Price: 2000}},
		Losers:    []domain.TokenInfo{{Symbol: "uni", PriceChange24h: -6.1, Price: 8}},
		NetImpact: 1.3,
	})
	for _, want := range []string{"net 24h market impact: +1.30%", "ETH +4.20%", "UNI -6.10%"} {
		if !strings.Contains(report, want) {
			t.Errorf("report missing %q:\n%s", want, report)
		}
	}
}
