// Package performance reduces a run's fill log and equity curve into summary statistics.
package performance

import (
	"github.com/shopspring/decimal"

	"FuturesBacktest/internal/model"
)

// Pairing is the P&L outcome of a single fill after FIFO matching.
type Pairing struct {
	Fill model.Fill
	PnL  decimal.Decimal
	// Unpaired is set on a SELL that found no open BUY. Its PnL is zero; short-sale
	// P&L is not modelled.
	Unpaired bool
}

// PairFIFO matches every SELL against the oldest open BUY. BUY fills and unpaired SELLs carry zero P&L.
// A paired SELL earns (sell - buy) * sell size.
func PairFIFO(fills []model.Fill) []Pairing {
	out := make([]Pairing, len(fills))
	var open []decimal.Decimal
	for i, f := range fills {
		out[i] = Pairing{Fill: f, PnL: decimal.Zero}
		switch f.Side {
		case model.Buy:
			open = append(open, f.Price)
		case model.Sell:
			if len(open) == 0 {
				out[i].Unpaired = true
				continue
			}
			entry := open[0]
			open = open[1:]
			out[i].PnL = f.Price.Sub(entry).Mul(decimal.NewFromInt(f.Size))
		}
	}
	return out
}

// Summarize computes the performance snapshot. Win rate counts strictly positive pairs over
// non-zero pairs, and is 0 when there are none.
func Summarize(fills []model.Fill, curve []model.EquityPoint, startingCash decimal.Decimal) model.Summary {
	s := model.Summary{
		StartBalance: startingCash,
		EndBalance:   startingCash,
	}
	if len(curve) > 0 {
		s.EndBalance = curve[len(curve)-1].Equity
	}
	s.NetPL = s.EndBalance.Sub(s.StartBalance)

	for _, p := range PairFIFO(fills) {
		if p.Unpaired {
			s.UnpairedSells++
		}
		if p.PnL.IsZero() {
			continue
		}
		s.TotalTrades++
		if p.PnL.IsPositive() {
			s.Wins++
		}
	}
	if s.TotalTrades > 0 {
		s.WinRate = float64(s.Wins) / float64(s.TotalTrades) * 100
	}
	s.MaxDrawdown = MaxDrawdown(curve)
	return s
}

// MaxDrawdown is the largest peak-to-trough fall of the equity curve, as a positive amount.
func MaxDrawdown(curve []model.EquityPoint) decimal.Decimal {
	dd := decimal.Zero
	if len(curve) == 0 {
		return dd
	}
	peak := curve[0].Equity
	for _, pt := range curve {
		if pt.Equity.GreaterThan(peak) {
			peak = pt.Equity
		}
		if d := peak.Sub(pt.Equity); d.GreaterThan(dd) {
			dd = d
		}
	}
	return dd
}
