// Package backtest replays a strategy over historical bars and reports the outcome.
package backtest

import (
	"context"
	"fmt"
	"time"

	"github.com/rs/zerolog"
	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/broker"
	"FuturesBacktest/internal/metrics"
	"FuturesBacktest/internal/model"
	"FuturesBacktest/internal/performance"
	"FuturesBacktest/internal/strategy"
)

// Request describes one run.
type Request struct {
	Symbol       string          `json:"symbol"`
	Start        time.Time       `json:"start"`
	End          time.Time       `json:"end"`
	Interval     model.Interval  `json:"interval"`
	StartingCash decimal.Decimal `json:"starting_cash"`
}

// Result is everything a run produced. The ledger is discarded; its records are copied here.
type Result struct {
	Request      Request
	Primary      *model.PriceSeries
	EquityCurve  []model.EquityPoint
	Fills        []model.Fill
	StartingCash decimal.Decimal
	Summary      model.Summary
	// Phase is the strategy's final state when it reports one.
	Phase model.Phase
}

type phaser interface {
	Phase() model.Phase
}

// Run fetches the primary series, then steps every bar through a fresh strategy and ledger.
// After each OnBar the ledger records equity marked at the bar's close.
//
// A *collector.NoDataError from the primary fetch is returned as is. The logger is taken from ctx
// (zerolog.Ctx).
func Run(ctx context.Context, fetcher strategy.Fetcher, req Request, factory strategy.Factory) (*Result, error) {
	log := zerolog.Ctx(ctx).With().Str("symbol", req.Symbol).Str("interval", req.Interval.String()).Logger()

	res, err := run(ctx, fetcher, req, factory, log)
	if err != nil {
		metrics.RunsTotal.WithLabelValues("error").Inc()
		log.Error().Err(err).Msg("backtest failed")
		return nil, err
	}
	metrics.RunsTotal.WithLabelValues("ok").Inc()
	return res, nil
}

func run(ctx context.Context, fetcher strategy.Fetcher, req Request, factory strategy.Factory, log zerolog.Logger) (*Result, error) {
	if factory == nil {
		return nil, fmt.Errorf("no strategy")
	}
	primary, err := fetcher.Fetch(ctx, req.Symbol, req.Start, req.End, req.Interval)
	if err != nil {
		return nil, err
	}

	ledger := broker.NewLedger(req.StartingCash)
	strat := factory()
	env := strategy.Env{Symbol: req.Symbol, Fetcher: fetcher, Logger: log}
	if err := strat.OnStart(ctx, env, primary, ledger); err != nil {
		return nil, fmt.Errorf("start strategy: %w", err)
	}

	stepped := metrics.BarsSimulatedTotal.WithLabelValues(req.Symbol)
	for _, bar := range primary.Bars {
		if err := ctx.Err(); err != nil {
			return nil, err
		}
		strat.OnBar(bar.Time, bar, ledger)
		ledger.RecordEquity(bar.Time, bar.Close)
		stepped.Inc()
	}

	res := &Result{
		Request:      req,
		Primary:      primary,
		EquityCurve:  ledger.EquityCurve(),
		Fills:        ledger.Fills(),
		StartingCash: ledger.StartingCash(),
	}
	for _, f := range res.Fills {
		metrics.FillsTotal.WithLabelValues(req.Symbol, string(f.Side)).Inc()
	}
	res.Summary = performance.Summarize(res.Fills, res.EquityCurve, res.StartingCash)
	if p, ok := strat.(phaser); ok {
		res.Phase = p.Phase()
	}

	if res.Summary.UnpairedSells > 0 {
		log.Warn().Int("unpaired_sells", res.Summary.UnpairedSells).Msg("sell fills with no open buy were given zero P&L")
	}
	log.Info().Int("bars", primary.Len()).Int("fills", len(res.Fills)).
		Str("net_pl", res.Summary.NetPL.StringFixed(2)).Str("phase", string(res.Phase)).Msg("backtest finished")
	return res, nil
}
