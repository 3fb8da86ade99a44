package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"io"
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/backtest"
	"FuturesBacktest/internal/collector"
	"FuturesBacktest/internal/config"
	"FuturesBacktest/internal/logger"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/notifier"
	"FuturesBacktest/internal/recorder"
	"FuturesBacktest/internal/strategy"
)

func main() {
	if err := run(os.Args[1:], os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

// run executes one backtest. Every resource it opens is closed before it returns.
func run(args []string, stdout io.Writer) error {
	var (
		cfgPath  string
		symbol   string
		fromStr  string
		toStr    string
		tfStr    string
		cash     float64
		outCSV   string
		outJSON  string
		record   bool
		strat    string
		logLevel string
	)
	fs := flag.NewFlagSet("backtest", flag.ContinueOnError)
	fs.StringVar(&cfgPath, "config", "configs/config.yaml", "config file")
	fs.StringVar(&symbol, "symbol", "ES=F", "futures symbol")
	fs.StringVar(&fromStr, "start", "", "start date (YYYY-MM-DD)")
	fs.StringVar(&toStr, "end", "", "end date (YYYY-MM-DD), exclusive")
	fs.StringVar(&tfStr, "interval", "", "bar interval (1m,5m,15m,30m,1h,4h,1d); default from config")
	fs.Float64Var(&cash, "cash", 0, "starting cash; default from config")
	fs.StringVar(&outCSV, "csv", "", "optional: write trades to CSV")
	fs.StringVar(&outJSON, "json", "", "optional: write the full report as JSON ('-' for stdout)")
	fs.BoolVar(&record, "record", false, "store the run in the configured SQLite database")
	fs.StringVar(&strat, "strategy", "", fmt.Sprintf("strategy %v; default from config", strategy.Names()))
	fs.StringVar(&logLevel, "log", "", "log level; default from config")
	if err := fs.Parse(args); err != nil {
		return err
	}

	_ = godotenv.Load() // best-effort

	cfg, err := config.Load(cfgPath)
	if err != nil {
		return fmt.Errorf("load config: %w", err)
	}
	if tfStr != "" {
		cfg.Backtest.Interval = tfStr
	}
	if cash != 0 {
		cfg.Backtest.StartingCash = cash
	}
	if strat != "" {
		cfg.Backtest.Strategy = strat
	}
	if logLevel != "" {
		cfg.Log.Level = logLevel
	}
	if err := cfg.Validate(); err != nil {
		return fmt.Errorf("config: %w", err)
	}
	log := logger.Console(cfg.Log.Level)

	if fromStr == "" || toStr == "" {
		return errors.New("-start and -end are required (YYYY-MM-DD)")
	}
	loc, _ := cfg.Location()
	from, err := time.ParseInLocation("2006-01-02", fromStr, loc)
	if err != nil {
		return fmt.Errorf("bad -start: %w", err)
	}
	to, err := time.ParseInLocation("2006-01-02", toStr, loc)
	if err != nil {
		return fmt.Errorf("bad -end: %w", err)
	}
	if !to.After(from) {
		return errors.New("-end must be after -start")
	}
	interval, _ := model.ParseInterval(cfg.Backtest.Interval)
	secondary, _ := model.ParseInterval(cfg.Strategy.SecondaryInterval)

	src, err := collector.NewSource(cfg.DataSource.Provider, cfg.DataSource.BaseURL, cfg.DataSource.APIKey, cfg.Proxy)
	if err != nil {
		return fmt.Errorf("data source: %w", err)
	}
	provider := collector.NewProvider(src, loc, log)
	provider.ChunkDays = cfg.DataSource.ChunkDays

	factory, err := strategy.Lookup(cfg.Backtest.Strategy, strategy.Params{
		Anchor:            cfg.Strategy.Anchor,
		RewardRisk:        cfg.Strategy.RewardRisk,
		Size:              cfg.Strategy.Size,
		SecondaryInterval: secondary,
	})
	if err != nil {
		return fmt.Errorf("strategy: %w", err)
	}

	req := backtest.Request{
		Symbol:       symbol,
		Start:        from,
		End:          to,
		Interval:     interval,
		StartingCash: decimal.NewFromFloat(cfg.Backtest.StartingCash),
	}
	ctx := log.WithContext(context.Background())
	res, err := backtest.Run(ctx, provider, req, factory)
	if err != nil {
		var nd *collector.NoDataError
		if errors.As(err, &nd) {
			return nd
		}
		return fmt.Errorf("backtest: %w", err)
	}

	fmt.Fprint(stdout, stripTags(notifier.FormatRunReport(res)))

	if outCSV != "" {
		if err := backtest.WriteCSVFile(outCSV, res.Trades()); err != nil {
			return fmt.Errorf("write csv: %w", err)
		}
		log.Info().Str("path", outCSV).Msg("trades written")
	}
	if outJSON != "" {
		w := stdout
		if outJSON != "-" {
			f, err := os.Create(outJSON)
			if err != nil {
				return fmt.Errorf("create json: %w", err)
			}
			defer f.Close()
			w = f
		}
		if err := backtest.WriteJSON(w, res); err != nil {
			return fmt.Errorf("write json: %w", err)
		}
	}
	if record {
		rec, err := recorder.NewSQLiteRecorder(cfg.Database.SQLitePath, log)
		if err != nil {
			return fmt.Errorf("open recorder: %w", err)
		}
		defer rec.Close()
		rr := recorder.NewRun("cli", res)
		if err := rec.RecordRun(rr); err != nil {
			return fmt.Errorf("record run: %w", err)
		}
		log.Info().Str("run_id", rr.ID).Msg("run recorded")
	}
	return nil
}
