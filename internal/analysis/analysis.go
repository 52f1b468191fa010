// Package analysis renders portfolio and market reports for logs and the
// demo binary. Reports are plain text; the agent emits them at Info level
// before acting on a rebalance plan.
package analysis

import (
	"fmt"
	"math"
	"sort"
	"strings"
	"text/tabwriter"

	"driftguard/internal/config"
	"driftguard/internal/domain"
	"driftguard/internal/rebalance"
)

// ---------------------------------------------------------------------------
// Portfolio performance
// ---------------------------------------------------------------------------

// PortfolioReport renders a per-symbol table of current vs target weight,
// drift, and USD value, followed by totals. Symbols appear sorted by value,
// largest first. An unpriced or zero-value portfolio produces a one-line
// notice instead of a table.
func PortfolioReport(targets domain.TargetAllocation, prices domain.PriceSnapshot, holdings domain.Holdings) string {
	total := rebalance.TotalValue(targets, prices, holdings)
	if total <= 0 {
		return "portfolio report: no funded positions"
	}

	type row struct {
		symbol  string
		value   float64
		current float64
		target  float64
	}
	rows := make([]row, 0, len(targets))
	for symbol, target := range targets {
		value := holdings[symbol] * prices[symbol]
		rows = append(rows, row{
			symbol:  symbol,
			value:   value,
			current: value / total,
			target:  target,
		})
	}
	sort.Slice(rows, func(i, j int) bool {
		if rows[i].value != rows[j].value {
			return rows[i].value > rows[j].value
		}
		return rows[i].symbol < rows[j].symbol
	})

	var sb strings.Builder
	w := tabwriter.NewWriter(&sb, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "SYMBOL\tVALUE\tCURRENT\tTARGET\tDRIFT")

	var driftSum float64
	for _, r := range rows {
		drift := r.current - r.target
		driftSum += math.Abs(drift)
		fmt.Fprintf(w, "%s\t$%.2f\t%.2f%%\t%.2f%%\t%+.2f%%\n",
			r.symbol, r.value, r.current*100, r.target*100, drift*100)
	}
	w.Flush()

	avgDrift := 0.0
	if len(rows) > 0 {
		avgDrift = driftSum / float64(len(rows))
	}
	fmt.Fprintf(&sb, "total value: $%.2f  average drift: %.2f%%\n", total, avgDrift*100)
	return sb.String()
}

// ---------------------------------------------------------------------------
// Weighted market metrics
// ---------------------------------------------------------------------------

// Weighted aggregates market metrics across the allocation, weighted by
// target weight. Symbols without metrics contribute nothing; weights are
// renormalized over the symbols that do have data.
type Weighted struct {
	Volatility float64 // weighted |24h change|, percent
	Volume24h  float64 // weighted 24h volume, USD
	MarketCap  float64 // weighted market cap, USD
}

// WeightedMetrics computes allocation-weighted market metrics.
func WeightedMetrics(targets domain.TargetAllocation, metrics map[string]domain.MarketMetrics) Weighted {
	var out Weighted
	var covered float64
	for symbol, weight := range targets {
		m, ok := metrics[symbol]
		if !ok {
			continue
		}
		covered += weight
		out.Volatility += weight * math.Abs(m.PriceChange24h)
		out.Volume24h += weight * m.Volume24h
		out.MarketCap += weight * m.MarketCap
	}
	if covered > 0 {
		out.Volatility /= covered
		out.Volume24h /= covered
		out.MarketCap /= covered
	}
	return out
}

// ---------------------------------------------------------------------------
// Risk alerts
// ---------------------------------------------------------------------------

// RiskAlerts flags allocation symbols whose market metrics cross the
// configured risk thresholds. One message per symbol per condition, sorted
// for stable output.
func RiskAlerts(targets domain.TargetAllocation, metrics map[string]domain.MarketMetrics, cfg config.RiskConfig) []string {
	var alerts []string
	for symbol := range targets {
		m, ok := metrics[symbol]
		if !ok {
			continue
		}
		if math.Abs(m.PriceChange24h) > cfg.HighVolatilityPct {
			alerts = append(alerts, fmt.Sprintf("%s: high volatility (24h change %.1f%%)", symbol, m.PriceChange24h))
		}
		if m.Volume24h > 0 && m.Volume24h < cfg.LowVolumeUSD {
			alerts = append(alerts, fmt.Sprintf("%s: low liquidity (24h volume $%.0f)", symbol, m.Volume24h))
		}
		if m.MarketCap > 0 && m.MarketCap < cfg.SmallCapUSD {
			alerts = append(alerts, fmt.Sprintf("%s: small market cap ($%.0f)", symbol, m.MarketCap))
		}
	}
	sort.Strings(alerts)
	return alerts
}

// ---------------------------------------------------------------------------
// Market movers
// ---------------------------------------------------------------------------

// Movers summarizes the 24h market: the strongest gainers and losers among
// the supplied tokens and the cap-weighted net price impact of the whole set.
type Movers struct {
	Gainers   []domain.TokenInfo
	Losers    []domain.TokenInfo
	NetImpact float64 // cap-weighted average 24h change, percent
}

// MarketMovers ranks tokens by 24h change and computes the cap-weighted net
// impact. n limits each of the gainer and loser lists.
func MarketMovers(tokens []domain.TokenInfo, n int) Movers {
	sorted := make([]domain.TokenInfo, len(tokens))
	copy(sorted, tokens)
	sort.Slice(sorted, func(i, j int) bool {
		return sorted[i].PriceChange24h > sorted[j].PriceChange24h
	})

	var m Movers
	for _, t := range sorted {
		if t.PriceChange24h > 0 && len(m.Gainers) < n {
			m.Gainers = append(m.Gainers, t)
		}
	}
	for i := len(sorted) - 1; i >= 0; i-- {
		t := sorted[i]
		if t.PriceChange24h < 0 && len(m.Losers) < n {
			m.Losers = append(m.Losers, t)
		}
	}

	var capSum, impactSum float64
	for _, t := range tokens {
		capSum += t.MarketCap
		impactSum += t.MarketCap * t.PriceChange24h
	}
	if capSum > 0 {
		m.NetImpact = impactSum / capSum
	}
	return m
}

// MoversReport renders a Movers summary as plain text.
func MoversReport(m Movers) string {
	var sb strings.Builder
	fmt.Fprintf(&sb, "net 24h market impact: %+.2f%%\n", m.NetImpact)
	if len(m.Gainers) > 0 {
		sb.WriteString("top gainers:\n")
		for _, t := range m.Gainers {
			fmt.Fprintf(&sb, "  %s %+.2f%% ($%.4f)\n", strings.ToUpper(t.Symbol), t.PriceChange24h, t.Price)
		}
	}
	if len(m.Losers) > 0 {
		sb.WriteString("top losers:\n")
		for _, t := range m.Losers {
			fmt.Fprintf(&sb, "  %s %+.2f%% ($%.4f)\n", strings.ToUpper(t.Symbol), t.PriceChange24h, t.Price)
		}
	}
	return sb.String()
}
