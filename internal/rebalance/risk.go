package rebalance

import (
	"log/slog"
	"math"

	"driftguard/internal/config"
	"driftguard/internal/domain"
)

// RiskAdjuster is the optional policy pass that scales target weights by
// market-risk heuristics before planning. It is best-effort, not a formal
// risk model: independent multiplicative penalties for volatility, thin
// volume, and small market cap, plus a small bonus for stable large-caps,
// then renormalization so the weights sum to 1.
type RiskAdjuster struct {
	cfg config.RiskConfig
	log *slog.Logger
}

// NewRiskAdjuster creates a RiskAdjuster with the given thresholds.
func NewRiskAdjuster(cfg config.RiskConfig, log *slog.Logger) *RiskAdjuster {
	if log == nil {
		log = slog.Default()
	}
	return &RiskAdjuster{cfg: cfg, log: log.With("component", "risk")}
}

// Adjust returns a new allocation with risk-scaled, renormalized weights.
// Symbols without metrics keep their weight untouched (they still take part
// in renormalization). The input allocation is never mutated.
func (r *RiskAdjuster) Adjust(targets domain.TargetAllocation, metrics map[string]domain.MarketMetrics) domain.TargetAllocation {
	adjusted := make(domain.TargetAllocation, len(targets))
	for symbol, weight := range targets {
		adjusted[symbol] = weight
	}

	for symbol, m := range metrics {
		weight, ok := adjusted[symbol]
		if !ok {
			continue
		}

		change := math.Abs(m.PriceChange24h)
		factor := 1.0

		if change > r.cfg.HighVolatilityPct {
			factor *= 0.8
			r.log.Info("reducing allocation for volatility", "symbol", symbol, "change_24h", m.PriceChange24h)
		}
		if m.Volume24h < r.cfg.LowVolumeUSD {
			factor *= 0.9
			r.log.Info("reducing allocation for low volume", "symbol", symbol, "volume_24h", m.Volume24h)
		}
		if m.MarketCap < r.cfg.SmallCapUSD {
			factor *= 0.85
			r.log.Info("reducing allocation for small cap", "symbol", symbol, "market_cap", m.MarketCap)
		}
		if change < r.cfg.StableChangePct && m.Volume24h > r.cfg.StableVolumeUSD && m.MarketCap > r.cfg.StableCapUSD {
			factor *= 1.05
			r.log.Info("increasing allocation for stability", "symbol", symbol)
		}

		adjusted[symbol] = weight * factor
	}

	if total := adjusted.WeightSum(); total > 0 {
		for symbol := range adjusted {
			adjusted[symbol] /= total
		}
	}
	return adjusted
}
