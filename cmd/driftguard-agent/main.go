// Command driftguard-agent runs the full trading agent: a daily rebalance
// job plus interval stop-loss checks, until interrupted.
package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"driftguard/internal/agent"
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

	registry := tokens.Default()
	feed := buildFeed(cfg, registry)

	var ex exchange.Exchange
	if cfg.Exchange.PaperMode {
		ex = exchange.NewSimExchange(domain.Holdings{"USDC": 10_000})
		logger.Info("paper mode: trading against the in-memory simulator")
	} else {
		ex = exchange.NewRecallExchange(cfg.Exchange.BaseURL, cfg.Exchange.APIKey, registry, logger)
	}

	st, err := store.NewSQLiteStore(cfg.Storage.SQLitePath)
	if err != nil {
		log.Fatalf("failed to open audit store: %v", err)
	}
	defer st.Close()

	a := agent.New(*cfg, agent.Deps{
		Feed:     feed,
		Exchange: ex,
		TradeLog: st,
		StopLog:  st,
		Archive:  store.NewParquetArchive(cfg.Storage.SnapshotDir),
		Registry: registry,
		Logger:   logger,
	})

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := a.VerifyConnection(ctx); err != nil {
		log.Fatalf("exchange connection check failed: %v", err)
	}

	sched := agent.NewScheduler(logger)
	if err := sched.AddDaily(cfg.Rebalance.DailyAt, agent.NewJob("rebalance", a.RunRebalance)); err != nil {
		log.Fatalf("failed to schedule rebalance: %v", err)
	}
	if err := sched.AddEvery(cfg.StopLoss.Interval(), agent.NewJob("stop-loss", a.RunStopLossCheck)); err != nil {
		log.Fatalf("failed to schedule stop-loss checks: %v", err)
	}

	// Seed position tracking right away instead of waiting for the first tick.
	if err := sched.RunNow(ctx, agent.NewJob("stop-loss", a.RunStopLossCheck)); err != nil {
		logger.Warn("initial stop-loss check failed", "error", err)
	}

	logger.Info("driftguard-agent started",
		"rebalance_at", cfg.Rebalance.DailyAt, "stoploss_every", cfg.StopLoss.Interval().String())
	sched.Start(ctx)
	logger.Info("driftguard-agent stopped")
}

func buildFeed(cfg *config.Config, registry *tokens.Registry) pricefeed.PriceFeed {
	if cfg.PriceFeed.Provider == "alpaca" {
		return pricefeed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, nil)
	}
	return pricefeed.NewCoinGeckoFeed(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey,
		cfg.PriceFeed.RateLimitPerMin, registry, nil)
}
