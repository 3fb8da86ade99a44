package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/collector"
	"FuturesBacktest/internal/config"
	"FuturesBacktest/internal/logger"
	"FuturesBacktest/internal/metrics"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/notifier"
	"FuturesBacktest/internal/recorder"
	"FuturesBacktest/internal/scheduler"
	"FuturesBacktest/internal/strategy"
)

func main() {
	_ = godotenv.Load() // best-effort

	// Load config
	cfgPath := "configs/config.yaml"
	if v := os.Getenv("CONFIG_PATH"); v != "" {
		cfgPath = v
	}
	cfg, err := config.Load(cfgPath)
	boot := logger.New("info")
	if err != nil {
		boot.Fatal().Err(err).Msg("load config")
	}
	if err := cfg.Validate(); err != nil {
		boot.Fatal().Err(err).Msg("config validation")
	}
	log := logger.New(cfg.Log.Level)
	log.Info().Str("config", cfgPath).Msg("backtest bot starting")

	loc, _ := cfg.Location()
	interval, _ := model.ParseInterval(cfg.Backtest.Interval)
	secondary, _ := model.ParseInterval(cfg.Strategy.SecondaryInterval)

	// Init data source
	src, err := collector.NewSource(cfg.DataSource.Provider, cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	if err != nil {
		log.Fatal().Err(err).Msg("init data source")
	}
	provider := collector.NewProvider(src, loc, log)
	provider.ChunkDays = cfg.DataSource.ChunkDays
	log.Info().Str("source", src.Name()).Msg("data source ready")

	factory, err := strategy.Lookup(cfg.Backtest.Strategy, strategy.Params{
		Anchor:            cfg.Strategy.Anchor,
		RewardRisk:        cfg.Strategy.RewardRisk,
		Size:              cfg.Strategy.Size,
		SecondaryInterval: secondary,
	})
	if err != nil {
		log.Fatal().Err(err).Msg("init strategy")
	}

	// Init notifier
	var n notifier.Notifier = notifier.Noop{}
	var tn *notifier.TelegramNotifier
	if cfg.Telegram.BotToken != "" && cfg.Telegram.ChatID != "" {
		tn = notifier.NewTelegramNotifier(cfg.Telegram.BotToken, cfg.Telegram.ChatID, cfg.Proxy, log)
		n = tn
	} else {
		log.Warn().Msg("telegram not configured, reports are only logged")
	}

	// Init recorder
	var rec recorder.Recorder
	if cfg.Database.SQLitePath != "" {
		sr, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			log.Warn().Err(err).Msg("init sqlite recorder failed, using noop")
			rec = recorder.NewNoopRecorder()
		} else {
			rec = sr
			defer sr.Close()
		}
	} else {
		rec = recorder.NewNoopRecorder()
	}

	if cfg.Metrics.Addr != "" {
		srv := metrics.Serve(cfg.Metrics.Addr)
		defer srv.Close()
		log.Info().Str("addr", cfg.Metrics.Addr).Msg("metrics up")
	}

	// Context for graceful shutdown
	ctx, cancel := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer cancel()

	sched := scheduler.NewScheduler(ctx, provider, factory, scheduler.Job{
		Symbols:      cfg.Backtest.Symbols,
		Interval:     interval,
		LookbackDays: cfg.Backtest.LookbackDays,
		StartingCash: decimal.NewFromFloat(cfg.Backtest.StartingCash),
		Parallelism:  cfg.Backtest.Parallelism,
		Location:     loc,
	}, n, rec, log)
	if err := sched.Register(cfg.Schedule.BacktestCron); err != nil {
		log.Fatal().Err(err).Msg("register cron task")
	}
	sched.Start()
	defer sched.Stop()

	if tn != nil {
		go tn.StartPolling(ctx, sched.HandleCommand)
		log.Info().Msg("telegram polling started")
	}

	// Optional: run immediately on start
	if os.Getenv("RUN_ON_START") == "true" {
		log.Info().Msg("RUN_ON_START enabled, running backtests now")
		go sched.RunAll(ctx, "startup", cfg.Backtest.Symbols)
	}

	log.Info().Msg("backtest bot is running. Press Ctrl+C to stop.")
	<-ctx.Done()
	log.Info().Msg("shutdown signal received, stopping")
}
