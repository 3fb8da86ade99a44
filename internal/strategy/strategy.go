// Package strategy defines the bar-driven strategy contract and its implementations.
package strategy

import (
	"context"
	"fmt"
	"sort"
	"time"

	"github.com/rs/zerolog"

	"FuturesBacktest/internal/broker"
	"FuturesBacktest/internal/model"
)

// Fetcher loads a normalised price series. *collector.Provider satisfies it.
type Fetcher interface {
	Fetch(ctx context.Context, symbol string, start, end time.Time, interval model.Interval) (*model.PriceSeries, error)
}

// Env carries what a strategy may use besides its bars.
type Env struct {
	Symbol  string
	Fetcher Fetcher
	Logger  zerolog.Logger
}

// Strategy receives the primary series once, then every primary bar in order.
// OnBar may place any number of orders on the ledger; it never fails.
type Strategy interface {
	OnStart(ctx context.Context, env Env, primary *model.PriceSeries, ledger *broker.Ledger) error
	OnBar(ts time.Time, bar model.Bar, ledger *broker.Ledger)
}

// Factory builds a fresh strategy for one run.
type Factory func() Strategy

// Params configures the built-in strategies.
type Params struct {
	Anchor            string // "HH:MM" exchange local
	RewardRisk        float64
	Size              int64
	SecondaryInterval model.Interval
}

// DefaultParams returns the trading-day defaults: 06:30 anchor, 1:1 reward/risk, one contract, 1m confirmation bars.
func DefaultParams() Params {
	return Params{Anchor: "06:30", RewardRisk: 1, Size: 1, SecondaryInterval: model.Interval1m}
}

// Builder validates params and returns a factory.
type Builder func(Params) (Factory, error)

var registry = map[string]Builder{
	SweepFVGName: NewSweepFVGFactory,
}

// Lookup returns the factory registered under name.
func Lookup(name string, p Params) (Factory, error) {
	b, ok := registry[name]
	if !ok {
		return nil, fmt.Errorf("unknown strategy %q (available: %v)", name, Names())
	}
	return b(p)
}

// Names lists registered strategies in sorted order.
func Names() []string {
	out := make([]string, 0, len(registry))
	for n := range registry {
		out = append(out, n)
	}
	sort.Strings(out)
	return out
}
