// Package broker holds the per-run accounting ledger: cash, net position, fills and the equity curve.
package broker

import (
	"time"

	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/model"
)

// Ledger tracks cash, position, the fill log and the mark-to-market equity curve of one run.
// It is an accounting record, not a risk engine: every order is accepted, including ones that
// drive cash negative or flip the position short.
//
// A Ledger is owned by a single run and is not safe for concurrent use.
type Ledger struct {
	startingCash decimal.Decimal
	cash         decimal.Decimal
	position     int64
	fills        []model.Fill
	equity       []model.EquityPoint
}

// NewLedger creates a ledger funded with startingCash.
func NewLedger(startingCash decimal.Decimal) *Ledger {
	return &Ledger{startingCash: startingCash, cash: startingCash}
}

// Buy pays price*size and increases the position by size.
func (l *Ledger) Buy(ts time.Time, price float64, size int64) model.Fill {
	return l.apply(ts, model.Buy, price, size)
}

// Sell receives price*size and decreases the position by size.
func (l *Ledger) Sell(ts time.Time, price float64, size int64) model.Fill {
	return l.apply(ts, model.Sell, price, size)
}

func (l *Ledger) apply(ts time.Time, side model.Side, price float64, size int64) model.Fill {
	px := decimal.NewFromFloat(price)
	notional := px.Mul(decimal.NewFromInt(size))
	switch side {
	case model.Buy:
		l.cash = l.cash.Sub(notional)
		l.position += size
	case model.Sell:
		l.cash = l.cash.Add(notional)
		l.position -= size
	}
	fill := model.Fill{Time: ts, Side: side, Price: px, Size: size}
	l.fills = append(l.fills, fill)
	return fill
}

// RecordEquity appends one equity point from the current cash and position marked at price.
// The driver calls it exactly once per bar, after the strategy has acted on that bar.
func (l *Ledger) RecordEquity(ts time.Time, price float64) model.EquityPoint {
	mark := decimal.NewFromFloat(price)
	pt := model.EquityPoint{
		Time:     ts,
		Cash:     l.cash,
		Position: l.position,
		Mark:     mark,
		Equity:   l.cash.Add(mark.Mul(decimal.NewFromInt(l.position))),
	}
	l.equity = append(l.equity, pt)
	return pt
}

func (l *Ledger) StartingCash() decimal.Decimal { return l.startingCash }
func (l *Ledger) Cash() decimal.Decimal         { return l.cash }
func (l *Ledger) Position() int64               { return l.position }

// Fills returns a copy of the fill log.
func (l *Ledger) Fills() []model.Fill {
	out := make([]model.Fill, len(l.fills))
	copy(out, l.fills)
	return out
}

// EquityCurve returns a copy of the recorded equity points.
func (l *Ledger) EquityCurve() []model.EquityPoint {
	out := make([]model.EquityPoint, len(l.equity))
	copy(out, l.equity)
	return out
}

// Equity marks the current state at price without recording it.
func (l *Ledger) Equity(price float64) decimal.Decimal {
	return l.cash.Add(decimal.NewFromFloat(price).Mul(decimal.NewFromInt(l.position)))
}
