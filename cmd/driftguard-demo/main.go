// Command driftguard-demo exercises the whole pipeline without touching the
// sandbox: it checks the price feed, prints market and portfolio reports,
// and dry-runs a rebalance against the in-memory simulator.
package main

import (
	"context"
	"fmt"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"driftguard/internal/agent"
	"driftguard/internal/allocation"
	"driftguard/internal/analysis"
	"driftguard/internal/config"
	"driftguard/internal/domain"
	"driftguard/internal/exchange"
	"driftguard/internal/pricefeed"
	"driftguard/internal/store"
	"driftguard/internal/tokens"
	"driftguard/internal/util"
)

func main() {
	_ = godotenv.Load()

	cfgPath := "config/driftguard.yaml"
	if p := os.Getenv("DRIFTGUARD_CONFIG"); p != "" {
		cfgPath = p
	}
	cfg, err := config.Load(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	logger := util.NewLogger(cfg.Logging.Level, cfg.Logging.Format)
	util.SetDefault(logger)

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	registry := tokens.Default()
	feed := pricefeed.NewCoinGeckoFeed(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey,
		cfg.PriceFeed.RateLimitPerMin, registry, logger)

	targets, err := allocation.LoadTargets(cfg.Rebalance.TargetsPath, tokens.DefaultTargets(), logger)
	if err != nil {
		log.Fatalf("failed to load targets: %v", err)
	}

	prices, err := feed.Prices(ctx, registry.Symbols())
	if err != nil {
		log.Fatalf("price feed check failed: %v", err)
	}
	fmt.Printf("price feed ok: %d symbols priced\n\n", len(prices))

	// Market overview.
	if top, err := feed.TopTokens(ctx, 25, "ethereum-ecosystem"); err != nil {
		logger.Warn("market movers unavailable", "error", err)
	} else {
		fmt.Println(analysis.MoversReport(analysis.MarketMovers(top, 5)))
	}
	if metrics, err := feed.Metrics(ctx, registry.Symbols()); err != nil {
		logger.Warn("market metrics unavailable", "error", err)
	} else {
		w := analysis.WeightedMetrics(targets, metrics)
		fmt.Printf("allocation-weighted metrics: volatility %.2f%%, 24h volume $%.0f, market cap $%.0f\n",
			w.Volatility, w.Volume24h, w.MarketCap)
		for _, alert := range analysis.RiskAlerts(targets, metrics, cfg.Rebalance.Risk) {
			fmt.Println("risk alert:", alert)
		}
		fmt.Println()
	}

	// Dry-run rebalance against a simulated portfolio funded with USDC.
	sim := exchange.NewSimExchange(domain.Holdings{"ETH": 2, "USDC": 5_000})
	sim.SetPrices(prices)

	holdings, _ := sim.Balances(ctx)
	fmt.Println(analysis.PortfolioReport(targets, prices, holdings))

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}
	defer st.Close()

	a := agent.New(*cfg, agent.Deps{
		Feed:     feed,
		Exchange: sim,
		TradeLog: st,
		StopLog:  st,
		Registry: registry,
		Logger:   logger,
	})
	if err := a.RunRebalance(ctx); err != nil {
		log.Fatalf("dry-run rebalance failed: %v", err)
	}

	fmt.Println("\nsimulated trades:")
	for _, tr := range sim.Trades() {
		fmt.Printf("  %-4s %-6s %.6f\n", tr.Side, tr.Symbol, tr.Amount)
	}
}
