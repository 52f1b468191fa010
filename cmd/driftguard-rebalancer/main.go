// Command driftguard-rebalancer runs the portfolio rebalance job, either
// once (-once) or on the configured daily schedule.
package main

import (
	"context"
	"flag"
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
	once := flag.Bool("once", false, "run a single rebalance and exit")
	flag.Parse()

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
	var feed pricefeed.PriceFeed
	if cfg.PriceFeed.Provider == "alpaca" {
		feed = pricefeed.NewAlpacaFeed(cfg.Alpaca.APIKey, cfg.Alpaca.APISecret, cfg.Alpaca.DataURL, nil)
	} else {
		feed = pricefeed.NewCoinGeckoFeed(cfg.PriceFeed.BaseURL, cfg.PriceFeed.APIKey,
			cfg.PriceFeed.RateLimitPerMin, registry, nil)
	}

	var ex exchange.Exchange
	if cfg.Exchange.PaperMode {
		ex = exchange.NewSimExchange(domain.Holdings{"USDC": 10_000})
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

	if *once {
		if err := a.RunRebalance(ctx); err != nil {
			log.Fatalf("rebalance failed: %v", err)
		}
		return
	}

	sched := agent.NewScheduler(logger)
	if err := sched.AddDaily(cfg.Rebalance.DailyAt, agent.NewJob("rebalance", a.RunRebalance)); err != nil {
		log.Fatalf("failed to schedule rebalance: %v", err)
	}
	logger.Info("driftguard-rebalancer started", "daily_at", cfg.Rebalance.DailyAt)
	sched.Start(ctx)
}
