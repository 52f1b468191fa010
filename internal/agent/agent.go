// Package agent orchestrates the rebalancing and stop-loss jobs: it pulls
// balances and prices, keeps position tracking up to date, and turns planner
// and evaluator decisions into sandbox trades with an audit trail.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"driftguard/internal/allocation"
	"driftguard/internal/analysis"
	"driftguard/internal/config"
	"driftguard/internal/domain"
	"driftguard/internal/exchange"
	"driftguard/internal/position"
	"driftguard/internal/pricefeed"
	"driftguard/internal/rebalance"
	"driftguard/internal/stoploss"
	"driftguard/internal/store"
	"driftguard/internal/tokens"
)

// Deps are the injected collaborators of an Agent. Archive may be nil to
// disable snapshot archiving; everything else is required.
type Deps struct {
	Feed     pricefeed.PriceFeed
	Exchange exchange.Exchange
	TradeLog store.TradeLogStore
	StopLog  store.StopLossLogStore
	Archive  store.SnapshotArchive
	Registry *tokens.Registry
	Logger   *slog.Logger
}

// Agent runs the portfolio jobs. Its methods are not safe for concurrent
// use; the scheduler serializes them.
type Agent struct {
	cfg      config.Config
	feed     pricefeed.PriceFeed
	ex       exchange.Exchange
	tracker  *position.Tracker
	planner  *rebalance.Planner
	risk     *rebalance.RiskAdjuster
	trades   store.TradeLogStore
	stops    store.StopLossLogStore
	archive  store.SnapshotArchive
	registry *tokens.Registry
	log      *slog.Logger
	now      func() time.Time
}

// New wires an Agent from configuration and dependencies.
func New(cfg config.Config, d Deps) *Agent {
	log := d.Logger
	if log == nil {
		log = slog.Default()
	}
	a := &Agent{
		cfg:      cfg,
		feed:     d.Feed,
		ex:       d.Exchange,
		tracker:  position.NewTracker(log),
		planner:  rebalance.NewPlanner(cfg.Rebalance.DriftThreshold, cfg.Rebalance.MaxSlippage),
		trades:   d.TradeLog,
		stops:    d.StopLog,
		archive:  d.Archive,
		registry: d.Registry,
		log:      log.With("component", "agent"),
		now:      time.Now,
	}
	if cfg.Rebalance.RiskAdjust {
		a.risk = rebalance.NewRiskAdjuster(cfg.Rebalance.Risk, log)
	}
	return a
}

// VerifyConnection pings the exchange balance endpoint. Called once at
// startup so credential problems surface before the first scheduled run.
func (a *Agent) VerifyConnection(ctx context.Context) error {
	holdings, err := a.ex.Balances(ctx)
	if err != nil {
		return fmt.Errorf("verifying %s connection: %w", a.ex.Name(), err)
	}
	a.log.Info("exchange connection verified",
		"exchange", a.ex.Name(), "assets", len(holdings))
	return nil
}

// ---------------------------------------------------------------------------
// Stop-loss job
// ---------------------------------------------------------------------------

// RunStopLossCheck performs one stop-loss evaluation cycle. Parameters are
// reloaded from disk each run so edits to the params file take effect at the
// next tick without a restart. Every trigger liquidates the full held amount
// to the quote asset; a failed liquidation is logged and does not stop the
// rest of the batch.
func (a *Agent) RunStopLossCheck(ctx context.Context) error {
	params, err := stoploss.LoadParams(a.cfg.StopLoss.ParamsPath, a.registry.StopOverrides())
	if err != nil {
		return err
	}
	if !params.Enabled {
		a.log.Debug("stop-loss checks disabled")
		return nil
	}

	holdings, prices, err := a.observe(ctx)
	if err != nil {
		return err
	}

	triggers := stoploss.Evaluate(holdings, prices, a.tracker.Positions(), params)
	if len(triggers) == 0 {
		a.log.Info("stop-loss check complete", "positions", len(a.tracker.Positions()), "triggers", 0)
		return nil
	}

	for _, trig := range triggers {
		a.liquidate(ctx, trig)
	}
	a.log.Info("stop-loss check complete",
		"positions", len(a.tracker.Positions()), "triggers", len(triggers))
	return nil
}

// liquidate sells the full triggered amount and records the outcome. The
// tracker forgets the position only after a successful exit, so a failed
// sell is retried in full on the next cycle.
func (a *Agent) liquidate(ctx context.Context, trig domain.Trigger) {
	a.log.Warn("stop-loss triggered",
		"symbol", trig.Symbol, "kind", string(trig.Kind),
		"loss", fmt.Sprintf("%.2f%%", trig.LossFraction*100), "reason", trig.Reason)

	result, err := a.ex.ExecuteTrade(ctx, exchange.TradeRequest{
		Symbol: trig.Symbol,
		Side:   domain.OrderSideSell,
		Amount: trig.Amount,
		Reason: trig.Reason,
	})
	status := result.Status
	if err != nil {
		status = "failed"
		a.log.Error("stop-loss liquidation failed", "symbol", trig.Symbol, "error", err)
	} else {
		a.tracker.Clear(trig.Symbol)
	}

	entry := domain.StopLossLogEntry{
		Timestamp:    a.now().UTC(),
		Symbol:       trig.Symbol,
		Kind:         trig.Kind,
		EntryPrice:   trig.EntryPrice,
		ExitPrice:    trig.CurrentPrice,
		LossFraction: trig.LossFraction,
		Amount:       trig.Amount,
		Reason:       trig.Reason,
		Status:       status,
	}
	if err := a.stops.AppendStopLoss(ctx, entry); err != nil {
		a.log.Error("writing stop-loss log entry", "symbol", trig.Symbol, "error", err)
	}
}

// ---------------------------------------------------------------------------
// Rebalance job
// ---------------------------------------------------------------------------

// RunRebalance performs one rebalancing cycle: load targets, observe the
// portfolio, optionally risk-adjust the targets, plan orders, then execute
// sells before buys. A single failed order is logged and skipped; the rest
// of the batch still executes.
func (a *Agent) RunRebalance(ctx context.Context) error {
	targets, err := allocation.LoadTargets(a.cfg.Rebalance.TargetsPath, tokens.DefaultTargets(), a.log)
	if err != nil {
		return err
	}

	holdings, prices, err := a.observe(ctx)
	if err != nil {
		return err
	}

	// One metrics fetch feeds both the risk pass and the alerts; the feed is
	// rate limited.
	metrics := a.marketMetrics(ctx, targets)
	targets = a.riskAdjust(targets, metrics)

	a.log.Info("portfolio state\n" + analysis.PortfolioReport(targets, prices, holdings))
	for _, alert := range analysis.RiskAlerts(targets, metrics, a.cfg.Rebalance.Risk) {
		a.log.Warn("risk alert: " + alert)
	}

	orders, err := a.planner.ComputeOrders(targets, prices, holdings)
	if err != nil {
		return fmt.Errorf("planning rebalance: %w", err)
	}
	if len(orders) == 0 {
		a.log.Info("rebalance complete: all positions within drift threshold")
		return nil
	}

	executed := 0
	for _, order := range orders {
		if a.execute(ctx, order, prices) {
			executed++
		}
	}
	a.log.Info("rebalance complete", "orders", len(orders), "executed", executed)
	return nil
}

// marketMetrics fetches the metrics shared by the risk pass and the alert
// log. Failures degrade to nil; both consumers tolerate that.
func (a *Agent) marketMetrics(ctx context.Context, targets domain.TargetAllocation) map[string]domain.MarketMetrics {
	metrics, err := a.feed.Metrics(ctx, symbolsOf(targets))
	if err != nil {
		a.log.Warn("market metrics unavailable", "error", err)
		return nil
	}
	return metrics
}

// riskAdjust applies the optional risk pass and persists the adjusted
// targets. Missing metrics degrade to the unadjusted targets.
func (a *Agent) riskAdjust(targets domain.TargetAllocation, metrics map[string]domain.MarketMetrics) domain.TargetAllocation {
	if a.risk == nil || len(metrics) == 0 {
		return targets
	}
	adjusted := a.risk.Adjust(targets, metrics)
	if err := allocation.SaveTargets(a.cfg.Rebalance.TargetsPath, adjusted); err != nil {
		a.log.Warn("persisting risk-adjusted targets", "error", err)
	}
	return adjusted
}

// execute runs one planner order and records the outcome. Returns true when
// the trade went through.
func (a *Agent) execute(ctx context.Context, order domain.Order, prices domain.PriceSnapshot) bool {
	reason := fmt.Sprintf("rebalance %s: drift %+.2f%%", order.Symbol, order.Drift*100)
	result, err := a.ex.ExecuteTrade(ctx, exchange.TradeRequest{
		Symbol: order.Symbol,
		Side:   order.Side,
		Amount: order.Amount,
		Reason: reason,
	})
	status := result.Status
	ok := err == nil
	if err != nil {
		status = "failed"
		a.log.Error("rebalance order failed",
			"symbol", order.Symbol, "side", string(order.Side), "amount", order.Amount, "error", err)
	} else {
		a.log.Info("rebalance order executed",
			"symbol", order.Symbol, "side", string(order.Side), "amount", order.Amount, "status", status)
	}

	entry := domain.TradeLogEntry{
		Timestamp: a.now().UTC(),
		Symbol:    order.Symbol,
		Side:      order.Side,
		Amount:    order.Amount,
		Price:     prices[order.Symbol],
		Status:    status,
	}
	if err := a.trades.AppendTrade(ctx, entry); err != nil {
		a.log.Error("writing trade log entry", "symbol", order.Symbol, "error", err)
	}
	return ok
}

// ---------------------------------------------------------------------------
// Shared observation step
// ---------------------------------------------------------------------------

// observe fetches balances and prices, updates position tracking, and
// archives the cycle snapshot.
func (a *Agent) observe(ctx context.Context) (domain.Holdings, domain.PriceSnapshot, error) {
	holdings, err := a.ex.Balances(ctx)
	if err != nil {
		return nil, nil, fmt.Errorf("fetching balances: %w", err)
	}

	prices, err := a.feed.Prices(ctx, a.watchedSymbols(holdings))
	if err != nil {
		return nil, nil, fmt.Errorf("fetching prices: %w", err)
	}

	a.tracker.Observe(holdings, prices)

	if a.archive != nil {
		if err := a.archive.WriteSnapshot(ctx, a.now().UTC(), holdings, prices); err != nil {
			a.log.Warn("archiving snapshot", "error", err)
		}
	}
	return holdings, prices, nil
}

// watchedSymbols is the union of registry symbols and currently held
// symbols, sorted for deterministic price requests.
func (a *Agent) watchedSymbols(holdings domain.Holdings) []string {
	seen := make(map[string]bool)
	for _, s := range a.registry.Symbols() {
		seen[s] = true
	}
	for s := range holdings {
		seen[s] = true
	}
	out := make([]string, 0, len(seen))
	for s := range seen {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}

func symbolsOf(targets domain.TargetAllocation) []string {
	out := make([]string, 0, len(targets))
	for s := range targets {
		out = append(out, s)
	}
	sort.Strings(out)
	return out
}
