// Command driftguard-stoploss runs only the stop-loss monitor on its
// configured interval.
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
	once := flag.Bool("once", false, "run a single check and exit")
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
		if err := a.RunStopLossCheck(ctx); err != nil {
			log.Fatalf("stop-loss check failed: %v", err)
		}
		return
	}

	sched := agent.NewScheduler(logger)
	job := agent.NewJob("stop-loss", a.RunStopLossCheck)
	if err := sched.AddEvery(cfg.StopLoss.Interval(), job); err != nil {
		log.Fatalf("failed to schedule stop-loss checks: %v", err)
	}
	if err := sched.RunNow(ctx, job); err != nil {
		logger.Warn("initial stop-loss check failed", "error", err)
	}

	logger.Info("driftguard-stoploss started", "every", cfg.StopLoss.Interval().String())
	sched.Start(ctx)
}
